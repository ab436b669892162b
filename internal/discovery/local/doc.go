// Package local 实现进程内服务发现注册表
//
// Registry 是一张内存表，宣告与查询都是同步的、零网络开销。
// 内存表对同机的其他进程不可见，因此另有一张持久化的指针表
// （服务名 → 宿主进程号），让第二个进程能判断“已有别的进程托管
// 该能力”，转而走网络发现，而不是重复实例化。指针指向的进程
// 已经退出时，指针在读取时被丢弃。
//
// 指针表保存在 SQLite（WAL 模式）中，允许多个进程同时读写。
package local
