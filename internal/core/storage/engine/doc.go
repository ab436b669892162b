// Package engine 定义存储引擎接口
//
// 持久缓存层与服务指针表都建立在 Engine 之上，底层实现见 engine/badger。
//
//	eng, err := badger.New(engine.DefaultConfig("/path/to/db"))
//	if err != nil {
//	    return err
//	}
//	defer eng.Close()
package engine
