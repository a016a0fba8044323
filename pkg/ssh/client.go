package ssh

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"net"
	"sync"
	"time"

	"golang.org/x/crypto/ssh"
)

// TransportConfig 进程级 SSH 传输配置（与单次会话参数无关）
type TransportConfig struct {
	KnownHostsPath string
	SSHConfigPath  string
	IdentityFiles  []string
	UseAgent       bool
	// KeepAlive 大于 0 时在会话存活期间定期发送保活请求
	KeepAlive time.Duration
}

// Connector 建立经过校验的 SSH 会话
type Connector struct {
	config TransportConfig
}

// NewConnector 创建连接器
func NewConnector(config TransportConfig) *Connector {
	return &Connector{config: config}
}

// Client 已建立的 SSH 会话，由调用方独占并负责关闭
type Client struct {
	hostname   string
	ip         string
	resolved   ResolvedConfig
	connection *ssh.Client
	mutex      sync.Mutex
	stop       chan struct{}
}

// CommandResult 命令执行结果
type CommandResult struct {
	Command  string        `json:"command"`
	Stdout   string        `json:"stdout"`
	Stderr   string        `json:"stderr"`
	ExitCode int           `json:"exit_code"`
	Duration time.Duration `json:"duration"`
}

// Connect 按会话参数连接 ip，失败时返回 *ConnectionError
// TCP 连接与握手共用同一个超时窗口
func (c *Connector) Connect(ctx context.Context, hostname, ip string, cfg SessionConfig) (*Client, error) {
	resolved := cfg.Resolve()
	address := resolved.DialAddress(ip)
	fail := func(kind ErrorKind, err error) error {
		return &ConnectionError{Kind: kind, Hostname: hostname, Address: resolved.Address(ip), Err: err}
	}

	var hostKeyErr *HostKeyError
	callback, err := hostKeyCallback(resolved.HostKeyPolicy, c.config.KnownHostsPath, &hostKeyErr)
	if err != nil {
		return nil, fail(KindHandshake, err)
	}

	auth, release := c.authMethods(ip)
	defer release()
	if len(auth) == 0 {
		return nil, fail(KindAuthFailed, errors.New("no usable credentials: ssh agent and identity files unavailable"))
	}

	sshConfig := &ssh.ClientConfig{
		User:            resolved.Username,
		Auth:            auth,
		HostKeyCallback: callback,
		Timeout:         resolved.ConnectTimeout,
	}

	deadline := time.Now().Add(resolved.ConnectTimeout)
	dialCtx, cancel := context.WithDeadline(ctx, deadline)
	defer cancel()

	dialer := &net.Dialer{}
	conn, err := dialer.DialContext(dialCtx, "tcp", address)
	if err != nil {
		return nil, fail(classifyDialError(err), err)
	}

	// 握手阶段没有 context，用连接截止时间兜底；ctx 取消时主动关闭连接
	_ = conn.SetDeadline(deadline)
	handshakeDone := make(chan struct{})
	aborted := make(chan bool, 1)
	go func() {
		select {
		case <-dialCtx.Done():
			_ = conn.Close()
			aborted <- true
		case <-handshakeDone:
			aborted <- false
		}
	}()

	sshConn, chans, reqs, err := ssh.NewClientConn(conn, address, sshConfig)
	close(handshakeDone)
	if <-aborted && err == nil {
		_ = sshConn.Close()
		err = errors.New("handshake interrupted")
	}
	if err != nil {
		_ = conn.Close()
		if hostKeyErr != nil {
			err = hostKeyErr
		} else if ctxErr := dialCtx.Err(); ctxErr != nil {
			err = fmt.Errorf("%w: %v", ctxErr, err)
		}
		return nil, fail(classifyHandshakeError(err, hostKeyErr), err)
	}
	_ = conn.SetDeadline(time.Time{})

	client := &Client{
		hostname:   hostname,
		ip:         ip,
		resolved:   resolved,
		connection: ssh.NewClient(sshConn, chans, reqs),
		stop:       make(chan struct{}),
	}
	if c.config.KeepAlive > 0 {
		go client.keepAlive(c.config.KeepAlive)
	}
	return client, nil
}

// Test 建立并立即关闭会话，成功时返回描述信息
func (c *Connector) Test(ctx context.Context, hostname, ip string, cfg SessionConfig) (string, error) {
	client, err := c.Connect(ctx, hostname, ip, cfg)
	if err != nil {
		return "", err
	}
	_ = client.Close()
	r := client.resolved
	return fmt.Sprintf("Successfully connected to %s@%s:%d", r.Username, ip, r.Port), nil
}

// Hostname 会话对应的主机名
func (c *Client) Hostname() string { return c.hostname }

// IP 会话对应的地址
func (c *Client) IP() string { return c.ip }

// Config 会话使用的解析后参数
func (c *Client) Config() ResolvedConfig { return c.resolved }

// Run 在新通道上执行命令，分别收集 stdout 与 stderr
// 远端非零退出不视为错误，由 ExitCode 体现；ctx 取消时关闭通道并返回 ctx.Err()
func (c *Client) Run(ctx context.Context, command string) (*CommandResult, error) {
	c.mutex.Lock()
	conn := c.connection
	c.mutex.Unlock()
	if conn == nil {
		return nil, fmt.Errorf("SSH connection not established")
	}

	start := time.Now()
	result := &CommandResult{Command: command}

	session, err := conn.NewSession()
	if err != nil {
		return nil, fmt.Errorf("failed to create session: %w", err)
	}
	defer session.Close()

	var stdout, stderr bytes.Buffer
	session.Stdout = &stdout
	session.Stderr = &stderr

	if err := session.Start(command); err != nil {
		return nil, fmt.Errorf("failed to start command: %w", err)
	}

	done := make(chan error, 1)
	go func() { done <- session.Wait() }()

	select {
	case err = <-done:
	case <-ctx.Done():
		_ = session.Signal(ssh.SIGTERM)
		_ = session.Close()
		return nil, ctx.Err()
	}

	result.Duration = time.Since(start)
	result.Stdout = stdout.String()
	result.Stderr = stderr.String()
	if err != nil {
		var exitErr *ssh.ExitError
		if !errors.As(err, &exitErr) {
			return nil, fmt.Errorf("command %q failed: %w", command, err)
		}
		result.ExitCode = exitErr.ExitStatus()
	}
	return result, nil
}

// Close 关闭SSH连接，可重复调用
func (c *Client) Close() error {
	c.mutex.Lock()
	defer c.mutex.Unlock()

	if c.connection == nil {
		return nil
	}
	close(c.stop)
	err := c.connection.Close()
	c.connection = nil
	return err
}

// keepAlive 保持连接活跃
func (c *Client) keepAlive(interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-c.stop:
			return
		case <-ticker.C:
			c.mutex.Lock()
			conn := c.connection
			c.mutex.Unlock()
			if conn == nil {
				return
			}
			// 不等待回复，避免不支持该请求的服务端导致错误
			if _, _, err := conn.SendRequest("keepalive@openssh.com", false, nil); err != nil {
				return
			}
		}
	}
}
