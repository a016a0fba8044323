package ssh

import (
	"errors"
	"fmt"
	"net"
	"os"

	"golang.org/x/crypto/ssh"
	"golang.org/x/crypto/ssh/knownhosts"
)

// hostKeyCallback 按策略构建主机密钥校验回调
// 严格模式下校验失败时把详情写入 *failure，握手错误链被包装后仍可据此归类
func hostKeyCallback(policy HostKeyPolicy, knownHostsPath string, failure **HostKeyError) (ssh.HostKeyCallback, error) {
	if policy == HostKeyAccept {
		return ssh.InsecureIgnoreHostKey(), nil //nolint:gosec // caller opted into accept policy
	}

	var verify ssh.HostKeyCallback
	if knownHostsPath != "" {
		if _, err := os.Stat(knownHostsPath); err == nil {
			cb, err := knownhosts.New(knownHostsPath)
			if err != nil {
				return nil, fmt.Errorf("failed to load known_hosts %s: %w", knownHostsPath, err)
			}
			verify = cb
		} else if !os.IsNotExist(err) {
			return nil, fmt.Errorf("failed to stat known_hosts %s: %w", knownHostsPath, err)
		}
	}

	return func(hostname string, remote net.Addr, key ssh.PublicKey) error {
		he := &HostKeyError{Host: hostname, ReceivedType: key.Type(), KnownHosts: knownHostsPath}
		if verify != nil {
			err := verify(hostname, remote, key)
			if err == nil {
				return nil
			}
			var keyErr *knownhosts.KeyError
			if !errors.As(err, &keyErr) {
				return err
			}
			he.Want = keyErr.Want
		}
		*failure = he
		return he
	}, nil
}

// KnownHostsLine 生成 known_hosts 条目，address 为拨号地址 host:port
func KnownHostsLine(address string, key ssh.PublicKey) string {
	return knownhosts.Line([]string{knownhosts.Normalize(address)}, key)
}
