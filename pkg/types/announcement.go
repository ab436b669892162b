package types

import (
	"net"
	"strconv"
	"strings"
	"time"
)

// ============================================================================
//                              ServiceAnnouncement
// ============================================================================

// Source 宣告来源
type Source string

const (
	// SourceLocal 进程内注册表
	SourceLocal Source = "local"
	// SourceNetwork mDNS 网络发现
	SourceNetwork Source = "network"
)

// ServiceAnnouncement 服务宣告
//
// 由宣告方产生，被定位器和远程代理消费。没有权威持有者，
// 任何进程都可能持有过期副本；缺失只表示“本进程尚未发现”。
type ServiceAnnouncement struct {
	// Name 服务名
	Name string `json:"name"`

	// Capabilities 能力描述列表
	Capabilities []string `json:"capabilities"`

	// Examples 使用示例
	Examples []string `json:"examples,omitempty"`

	// Host 主机（仅网络宣告）
	Host string `json:"host,omitempty"`

	// Port 端口（仅网络宣告）
	Port int `json:"port,omitempty"`

	// InstanceID 宣告方实例 ID
	InstanceID string `json:"instance_id,omitempty"`

	// PID 宣告方进程号（仅本地宣告）
	PID int `json:"pid,omitempty"`

	// Source 来源
	Source Source `json:"source"`

	// DiscoveredAt 宣告或发现时间
	DiscoveredAt time.Time `json:"discovered_at"`
}

// Addr 返回 host:port，没有端口时返回空串
func (a ServiceAnnouncement) Addr() string {
	if a.Port <= 0 {
		return ""
	}
	host := a.Host
	if host == "" {
		host = "127.0.0.1"
	}
	return net.JoinHostPort(host, strconv.Itoa(a.Port))
}

// HasCapability 能力描述中是否包含 query（忽略大小写的子串匹配）
func (a ServiceAnnouncement) HasCapability(query string) bool {
	q := strings.ToLower(query)
	for _, c := range a.Capabilities {
		if strings.Contains(strings.ToLower(c), q) {
			return true
		}
	}
	return false
}

// Clone 深拷贝
func (a ServiceAnnouncement) Clone() ServiceAnnouncement {
	a.Capabilities = append([]string(nil), a.Capabilities...)
	a.Examples = append([]string(nil), a.Examples...)
	return a
}
