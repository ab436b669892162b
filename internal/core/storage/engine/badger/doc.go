// Package badger 实现基于 BadgerDB 的存储引擎
//
//	eng, err := badger.New(engine.DefaultConfig(path))
//	if err != nil {
//	    return err
//	}
//	defer eng.Close()
//
//	err = eng.Put([]byte("key"), []byte("value"))
//	value, err := eng.Get([]byte("key"))
package badger
