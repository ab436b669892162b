package mdns

import (
	"strings"
	"unicode/utf8"

	"github.com/hashicorp/mdns"

	"github.com/dep2p/go-capmesh/pkg/types"
)

// TXT 记录限制
const (
	maxValueLen  = 200
	maxKeyLen    = 63
	maxRecordLen = 255

	txtType    = "capmesh"
	txtVersion = "1.0"
)

// TXT 键
const (
	keyName         = "name"
	keyCapabilities = "capabilities"
	keyExamples     = "examples"
	keyType         = "type"
	keyVersion      = "version"
	keyID           = "id"
)

// truncateValue 截断超长属性值
func truncateValue(v string) string {
	if len(v) > maxValueLen {
		return cutUTF8(v, maxValueLen) + "..."
	}
	return v
}

// cutUTF8 截取不超过 n 字节的前缀，不切断多字节字符
func cutUTF8(s string, n int) string {
	if len(s) <= n {
		return s
	}
	for n > 0 && !utf8.RuneStart(s[n]) {
		n--
	}
	return s[:n]
}

// buildTXTRecords 构建 TXT 记录，键顺序固定
func buildTXTRecords(name string, capabilities, examples []string, instanceID string) []string {
	pairs := [][2]string{
		{keyName, name},
		{keyCapabilities, strings.Join(capabilities, ",")},
		{keyExamples, strings.Join(examples, "|")},
		{keyType, txtType},
		{keyVersion, txtVersion},
		{keyID, instanceID},
	}

	txt := make([]string, 0, len(pairs))
	for _, kv := range pairs {
		k := kv[0]
		k = cutUTF8(k, maxKeyLen)
		rec := cutUTF8(k+"="+truncateValue(kv[1]), maxRecordLen)
		txt = append(txt, rec)
	}
	return txt
}

// parseTXTRecords 解析 "k=v" 形式的 TXT 字段，重复键保留第一个
func parseTXTRecords(fields []string) map[string]string {
	props := make(map[string]string, len(fields))
	for _, f := range fields {
		k, v, ok := strings.Cut(f, "=")
		if !ok || k == "" {
			continue
		}
		if _, dup := props[k]; !dup {
			props[k] = v
		}
	}
	return props
}

func splitNonEmpty(s, sep string) []string {
	if s == "" {
		return nil
	}
	return strings.Split(s, sep)
}

// entryToAnnouncement 把 mDNS 条目转换为服务宣告
//
// 缺少 name 属性时从实例名中去掉服务类型后缀。
// 返回的 InstanceID 用于过滤本进程的宣告。
func entryToAnnouncement(entry *mdns.ServiceEntry, serviceSuffix string) (types.ServiceAnnouncement, bool) {
	if entry == nil {
		return types.ServiceAnnouncement{}, false
	}
	props := parseTXTRecords(entry.InfoFields)

	name := props[keyName]
	if name == "" {
		name = strings.TrimSuffix(entry.Name, "."+serviceSuffix)
		name = strings.ReplaceAll(name, `\ `, " ")
	}
	if name == "" {
		return types.ServiceAnnouncement{}, false
	}

	host := ""
	switch {
	case entry.AddrV4 != nil:
		host = entry.AddrV4.String()
	case entry.AddrV6 != nil:
		host = entry.AddrV6.String()
	default:
		host = strings.TrimSuffix(entry.Host, ".")
	}

	return types.ServiceAnnouncement{
		Name:         name,
		Capabilities: splitNonEmpty(props[keyCapabilities], ","),
		Examples:     splitNonEmpty(props[keyExamples], "|"),
		Host:         host,
		Port:         entry.Port,
		InstanceID:   props[keyID],
		Source:       types.SourceNetwork,
	}, true
}
