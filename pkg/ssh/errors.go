package ssh

import (
	"context"
	"errors"
	"fmt"
	"net"
	"os"
	"strings"
	"syscall"

	"golang.org/x/crypto/ssh/knownhosts"
)

// ErrorKind 连接失败分类
type ErrorKind string

const (
	KindTimeout         ErrorKind = "timeout"
	KindRefused         ErrorKind = "refused"
	KindUnreachable     ErrorKind = "unreachable"
	KindHostKeyMismatch ErrorKind = "host_key_mismatch"
	KindUnknownHostKey  ErrorKind = "unknown_host_key"
	KindAuthFailed      ErrorKind = "auth_failed"
	KindHandshake       ErrorKind = "handshake"
)

// ConnectionError 会话建立失败
type ConnectionError struct {
	Kind     ErrorKind
	Hostname string
	Address  string // user@host[:port]
	Err      error
}

func (e *ConnectionError) Error() string {
	return fmt.Sprintf("failed to connect to %s (%s): %s: %v", e.Hostname, e.Address, e.describe(), e.Err)
}

func (e *ConnectionError) Unwrap() error { return e.Err }

func (e *ConnectionError) describe() string {
	switch e.Kind {
	case KindTimeout:
		return "connection timed out"
	case KindRefused:
		return "connection refused"
	case KindUnreachable:
		return "host unreachable"
	case KindHostKeyMismatch:
		return "host key mismatch"
	case KindUnknownHostKey:
		return "unknown host key"
	case KindAuthFailed:
		return "authentication failed"
	default:
		return "handshake failed"
	}
}

// IsKind 判断错误链中是否为指定类型的连接失败
func IsKind(err error, kind ErrorKind) bool {
	var ce *ConnectionError
	return errors.As(err, &ce) && ce.Kind == kind
}

// HostKeyError 严格模式下主机密钥校验失败
type HostKeyError struct {
	Host         string
	ReceivedType string
	KnownHosts   string
	// Want 为空表示主机未记录，非空表示密钥已变化
	Want []knownhosts.KnownKey
}

func (e *HostKeyError) Error() string {
	if len(e.Want) == 0 {
		return fmt.Sprintf("host %s is not in %s (server sent %s key)", e.Host, e.KnownHosts, e.ReceivedType)
	}
	return fmt.Sprintf("host key for %s does not match %s (server sent %s key)", e.Host, e.KnownHosts, e.ReceivedType)
}

// Mismatch 是否为已记录主机的密钥变化
func (e *HostKeyError) Mismatch() bool { return len(e.Want) > 0 }

// classifyDialError 归类 TCP 拨号阶段的错误
func classifyDialError(err error) ErrorKind {
	if isTimeout(err) {
		return KindTimeout
	}
	if errors.Is(err, syscall.ECONNREFUSED) || strings.Contains(err.Error(), "connection refused") {
		return KindRefused
	}
	return KindUnreachable
}

// classifyHandshakeError 归类 SSH 握手阶段的错误
func classifyHandshakeError(err error, hostKeyErr *HostKeyError) ErrorKind {
	if hostKeyErr != nil {
		if hostKeyErr.Mismatch() {
			return KindHostKeyMismatch
		}
		return KindUnknownHostKey
	}
	if isTimeout(err) {
		return KindTimeout
	}
	msg := err.Error()
	if strings.Contains(msg, "unable to authenticate") || strings.Contains(msg, "no supported methods remain") {
		return KindAuthFailed
	}
	if errors.Is(err, syscall.ECONNREFUSED) {
		return KindRefused
	}
	return KindHandshake
}

func isTimeout(err error) bool {
	if errors.Is(err, os.ErrDeadlineExceeded) || errors.Is(err, context.DeadlineExceeded) {
		return true
	}
	var ne net.Error
	if errors.As(err, &ne) && ne.Timeout() {
		return true
	}
	return strings.Contains(err.Error(), "i/o timeout")
}
