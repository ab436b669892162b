package local

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"path/filepath"
	"strings"
	"sync/atomic"
	"time"

	// SQLite 驱动（纯 Go）
	_ "modernc.org/sqlite"
)

const pointerSchema = `
CREATE TABLE IF NOT EXISTS service_directory (
    service_name  TEXT PRIMARY KEY,
    pid           INTEGER NOT NULL,
    registered_at INTEGER NOT NULL
);`

// Pointer 服务指针
type Pointer struct {
	Service      string    `json:"service"`
	PID          int       `json:"pid"`
	RegisteredAt time.Time `json:"registered_at"`
}

// Pointers 跨进程服务指针表
//
// 表中只记录“哪个进程托管了哪个服务”，不记录地址；
// 发现别的进程托管时由调用方转向网络发现。
type Pointers struct {
	db     *sql.DB
	alive  func(pid int) bool
	closed atomic.Bool
}

// OpenPointers 打开（或创建）指针表
func OpenPointers(path string) (*Pointers, error) {
	if strings.TrimSpace(path) == "" {
		return nil, fmt.Errorf("pointer table path is required")
	}
	dsn := filepath.Clean(path) + "?_pragma=journal_mode(WAL)&_pragma=busy_timeout(5000)&_pragma=synchronous(NORMAL)"
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("open sqlite db: %w", err)
	}
	if err := db.Ping(); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("ping sqlite db: %w", err)
	}
	if _, err := db.Exec(pointerSchema); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("ensure pointer table: %w", err)
	}
	return &Pointers{db: db, alive: processAlive}, nil
}

// Register 记录 name 由 pid 托管，覆盖旧记录
func (p *Pointers) Register(ctx context.Context, name string, pid int) error {
	if p.closed.Load() {
		return ErrPointersClosed
	}
	_, err := p.db.ExecContext(ctx,
		`INSERT INTO service_directory (service_name, pid, registered_at) VALUES (?, ?, ?)
		 ON CONFLICT(service_name) DO UPDATE SET pid = excluded.pid, registered_at = excluded.registered_at`,
		name, pid, time.Now().UTC().UnixMilli(),
	)
	return err
}

// Owner 返回托管 name 的存活进程
//
// 记录的进程已退出时删除该记录并返回 ok=false。
func (p *Pointers) Owner(ctx context.Context, name string) (pid int, ok bool, err error) {
	if p.closed.Load() {
		return 0, false, ErrPointersClosed
	}

	row := p.db.QueryRowContext(ctx, `SELECT pid FROM service_directory WHERE service_name = ?`, name)
	if err := row.Scan(&pid); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return 0, false, nil
		}
		return 0, false, err
	}

	if !p.alive(pid) {
		log.Debug("丢弃失效的服务指针", "service", name, "pid", pid)
		_, err := p.db.ExecContext(ctx,
			`DELETE FROM service_directory WHERE service_name = ? AND pid = ?`, name, pid)
		return 0, false, err
	}
	return pid, true, nil
}

// Remove 删除 name 的指针
func (p *Pointers) Remove(ctx context.Context, name string) error {
	if p.closed.Load() {
		return ErrPointersClosed
	}
	_, err := p.db.ExecContext(ctx, `DELETE FROM service_directory WHERE service_name = ?`, name)
	return err
}

// RemoveOwned 删除 pid 托管的全部指针，返回删除数量
func (p *Pointers) RemoveOwned(ctx context.Context, pid int) (int, error) {
	if p.closed.Load() {
		return 0, ErrPointersClosed
	}
	res, err := p.db.ExecContext(ctx, `DELETE FROM service_directory WHERE pid = ?`, pid)
	if err != nil {
		return 0, err
	}
	n, err := res.RowsAffected()
	return int(n), err
}

// List 列出所有指针（含可能已失效的）
func (p *Pointers) List(ctx context.Context) ([]Pointer, error) {
	if p.closed.Load() {
		return nil, ErrPointersClosed
	}
	rows, err := p.db.QueryContext(ctx,
		`SELECT service_name, pid, registered_at FROM service_directory ORDER BY service_name`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []Pointer
	for rows.Next() {
		var (
			ptr Pointer
			ms  int64
		)
		if err := rows.Scan(&ptr.Service, &ptr.PID, &ms); err != nil {
			return nil, err
		}
		ptr.RegisteredAt = time.UnixMilli(ms).UTC()
		out = append(out, ptr)
	}
	return out, rows.Err()
}

// Close 关闭指针表
func (p *Pointers) Close() error {
	if p.closed.Swap(true) {
		return nil
	}
	return p.db.Close()
}
