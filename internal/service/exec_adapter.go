package service

import (
	"context"

	"github.com/ssedge/ssedge/pkg/ssh"
)

// Session 一次已建立的远程会话
type Session interface {
	Run(ctx context.Context, command string) (*ssh.CommandResult, error)
	Close() error
}

// Connector 建立会话；测试中可替换为假实现
type Connector interface {
	Open(ctx context.Context, hostname, ip string, cfg ssh.SessionConfig) (Session, error)
	Test(ctx context.Context, hostname, ip string, cfg ssh.SessionConfig) (string, error)
}

// SSHConnector 适配 ssh.Connector
type SSHConnector struct {
	connector *ssh.Connector
}

// NewSSHConnector 包装传输层连接器
func NewSSHConnector(c *ssh.Connector) *SSHConnector {
	return &SSHConnector{connector: c}
}

// Open 建立会话
func (a *SSHConnector) Open(ctx context.Context, hostname, ip string, cfg ssh.SessionConfig) (Session, error) {
	client, err := a.connector.Connect(ctx, hostname, ip, cfg)
	if err != nil {
		return nil, err
	}
	return client, nil
}

// Test 建立后立即关闭会话
func (a *SSHConnector) Test(ctx context.Context, hostname, ip string, cfg ssh.SessionConfig) (string, error) {
	return a.connector.Test(ctx, hostname, ip, cfg)
}
