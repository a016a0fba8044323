package ssh

import (
	"fmt"
	"math"
	"net"
	"strconv"
	"time"
)

// 会话参数的固定默认值
const (
	DefaultUsername       = "user"
	DefaultPort    uint16 = 22
	DefaultTimeout        = 30 * time.Second
)

// maxTimeoutSeconds 可表示为 time.Duration 的最大秒数，超出部分截断
const maxTimeoutSeconds = uint64(math.MaxInt64 / int64(time.Second))

// HostKeyPolicy 主机密钥信任策略
type HostKeyPolicy int

const (
	// HostKeyStrict 仅接受 known_hosts 中已记录且未变化的主机密钥
	HostKeyStrict HostKeyPolicy = iota
	// HostKeyAccept 不校验主机密钥（调用方显式选择的安全折衷）
	HostKeyAccept
)

func (p HostKeyPolicy) String() string {
	if p == HostKeyAccept {
		return "accept"
	}
	return "strict"
}

// SessionConfig 调用方提供的可选会话参数，nil 表示使用默认值
type SessionConfig struct {
	Username              *string `json:"username,omitempty"`
	Port                  *uint16 `json:"port,omitempty"`
	StrictHostKeyChecking *bool   `json:"strict_host_key_checking,omitempty"`
	// ConnectTimeout 连接超时（秒），0 与未设置同义
	ConnectTimeout *uint64 `json:"connect_timeout,omitempty"`
}

// ResolvedConfig 解析后的会话参数，不可变
type ResolvedConfig struct {
	Username       string
	Port           uint16
	HostKeyPolicy  HostKeyPolicy
	ConnectTimeout time.Duration
}

// Resolve 将缺省字段填充为固定默认值，不做任何 I/O
func (c SessionConfig) Resolve() ResolvedConfig {
	r := ResolvedConfig{
		Username:       DefaultUsername,
		Port:           DefaultPort,
		HostKeyPolicy:  HostKeyStrict,
		ConnectTimeout: DefaultTimeout,
	}
	if c.Username != nil && *c.Username != "" {
		r.Username = *c.Username
	}
	if c.Port != nil && *c.Port != 0 {
		r.Port = *c.Port
	}
	if c.StrictHostKeyChecking != nil && !*c.StrictHostKeyChecking {
		r.HostKeyPolicy = HostKeyAccept
	}
	if c.ConnectTimeout != nil && *c.ConnectTimeout > 0 {
		r.ConnectTimeout = time.Duration(min(*c.ConnectTimeout, maxTimeoutSeconds)) * time.Second
	}
	return r
}

// Address 生成连接串：默认端口时为 user@host，否则 user@host:port
func (r ResolvedConfig) Address(host string) string {
	if r.Port == DefaultPort {
		return fmt.Sprintf("%s@%s", r.Username, host)
	}
	return fmt.Sprintf("%s@%s:%d", r.Username, host, r.Port)
}

// DialAddress 生成 TCP 拨号地址 host:port（IPv6 自动加括号）
func (r ResolvedConfig) DialAddress(host string) string {
	return net.JoinHostPort(host, strconv.Itoa(int(r.Port)))
}

// WithUsername 等便捷构造器，便于 CLI 与测试组装 SessionConfig
func (c SessionConfig) WithUsername(username string) SessionConfig {
	c.Username = &username
	return c
}

func (c SessionConfig) WithPort(port uint16) SessionConfig {
	c.Port = &port
	return c
}

func (c SessionConfig) WithStrictHostKeyChecking(strict bool) SessionConfig {
	c.StrictHostKeyChecking = &strict
	return c
}

func (c SessionConfig) WithConnectTimeout(seconds uint64) SessionConfig {
	c.ConnectTimeout = &seconds
	return c
}
