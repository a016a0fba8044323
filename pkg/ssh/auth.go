package ssh

import (
	"bytes"
	"net"
	"os"
	"path/filepath"
	"strings"

	"github.com/kevinburke/ssh_config"
	"golang.org/x/crypto/ssh"
	"golang.org/x/crypto/ssh/agent"
)

// authMethods 收集可用的认证方式：agent、显式密钥、ssh_config 中的 IdentityFile、默认密钥
// 返回的 release 用于在握手结束后关闭 agent 连接
func (c *Connector) authMethods(host string) ([]ssh.AuthMethod, func()) {
	var methods []ssh.AuthMethod
	release := func() {}

	if c.config.UseAgent {
		if socket := os.Getenv("SSH_AUTH_SOCK"); socket != "" {
			if conn, err := net.Dial("unix", socket); err == nil {
				client := agent.NewClient(conn)
				// 空 agent 放在前面会导致服务端提前断开
				if signers, err := client.Signers(); err == nil && len(signers) > 0 {
					methods = append(methods, ssh.PublicKeysCallback(client.Signers))
					release = func() { _ = conn.Close() }
				} else {
					_ = conn.Close()
				}
			}
		}
	}

	var signers []ssh.Signer
	seen := make(map[string]bool)
	tryKey := func(path string) {
		if path == "" || seen[path] {
			return
		}
		seen[path] = true
		signer, err := loadSigner(path)
		if err != nil {
			return
		}
		signers = append(signers, signer)
	}

	for _, p := range c.config.IdentityFiles {
		tryKey(p)
	}
	tryKey(identityFileFromSSHConfig(c.config.SSHConfigPath, host))
	if len(c.config.IdentityFiles) == 0 {
		home, _ := os.UserHomeDir()
		if home != "" {
			for _, name := range []string{"id_ed25519", "id_rsa", "id_ecdsa"} {
				tryKey(filepath.Join(home, ".ssh", name))
			}
		}
	}
	if len(signers) > 0 {
		methods = append(methods, ssh.PublicKeys(signers...))
	}
	return methods, release
}

// loadSigner 读取私钥；加密私钥直接返回错误由调用方跳过
func loadSigner(path string) (ssh.Signer, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	return ssh.ParsePrivateKey(data)
}

// identityFileFromSSHConfig 查询 ssh_config 中 host 对应的 IdentityFile
// 第三方库不支持 Match 指令，只解析第一个 Match 之前的内容
func identityFileFromSSHConfig(path, host string) string {
	if path == "" {
		return ""
	}
	content, err := os.ReadFile(path)
	if err != nil {
		return ""
	}
	var kept []string
	for _, line := range strings.Split(string(content), "\n") {
		if strings.HasPrefix(strings.ToLower(strings.TrimSpace(line)), "match ") {
			break
		}
		kept = append(kept, line)
	}
	cfg, err := ssh_config.Decode(bytes.NewReader([]byte(strings.Join(kept, "\n"))))
	if err != nil {
		return ""
	}
	identity, err := cfg.Get(host, "IdentityFile")
	if err != nil || identity == "" {
		return ""
	}
	if strings.HasPrefix(identity, "~/") {
		home, _ := os.UserHomeDir()
		identity = filepath.Join(home, identity[2:])
	}
	return identity
}
