package simulate

import (
	"crypto/ed25519"
	"crypto/rand"
	"crypto/x509"
	"encoding/pem"
	"errors"
	"fmt"
	"net"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/spf13/viper"
	"golang.org/x/crypto/ssh"

	"github.com/ssedge/ssedge/pkg/logger"
)

// DefaultMetricsOutput 模拟主机对指标脚本的默认应答
const DefaultMetricsOutput = "12.50|512.00 2048.00 25.00|10.00 50.00 20.00|3600|0.10,0.20,0.30"

// Config simulate.yaml 配置结构
type Config struct {
	Listen             string          `mapstructure:"listen"`
	HostKeyPath        string          `mapstructure:"host_key_path"`
	AuthorizedKeysPath string          `mapstructure:"authorized_keys_path"`
	MetricsOutput      string          `mapstructure:"metrics_output"`
	Commands           []CommandConfig `mapstructure:"commands"`
}

// CommandConfig 固定命令应答
type CommandConfig struct {
	Match      string `mapstructure:"match"`
	Stdout     string `mapstructure:"stdout"`
	Stderr     string `mapstructure:"stderr"`
	ExitStatus int    `mapstructure:"exit_status"`
}

// Response exec 请求的应答
type Response struct {
	Stdout     string
	Stderr     string
	ExitStatus int
}

// ExecHandler 自定义 exec 处理
type ExecHandler func(user, command string) Response

// Server 单端口 SSH 模拟主机：公钥认证，只处理 exec 请求
type Server struct {
	cfg        Config
	hostKey    ssh.Signer
	authorized map[string]bool
	handler    ExecHandler
	listener   net.Listener
	mu         sync.Mutex
	wg         sync.WaitGroup
	execCount  int
}

// LoadConfig 读取 simulate.yaml
func LoadConfig(path string) (*Config, error) {
	v := viper.New()
	v.SetConfigType("yaml")
	v.SetConfigFile(path)
	v.SetDefault("listen", "127.0.0.1:2222")
	v.SetDefault("metrics_output", DefaultMetricsOutput)
	if err := v.ReadInConfig(); err != nil {
		return nil, fmt.Errorf("failed to read simulate config: %w", err)
	}
	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal simulate config: %w", err)
	}
	return &cfg, nil
}

// New 创建模拟主机；HostKeyPath 为空时使用临时 ed25519 密钥
func New(cfg Config) (*Server, error) {
	if cfg.Listen == "" {
		cfg.Listen = "127.0.0.1:0"
	}
	if cfg.MetricsOutput == "" {
		cfg.MetricsOutput = DefaultMetricsOutput
	}

	signer, err := loadOrCreateHostKey(cfg.HostKeyPath)
	if err != nil {
		return nil, fmt.Errorf("failed to init host key: %w", err)
	}

	s := &Server{cfg: cfg, hostKey: signer, authorized: make(map[string]bool)}
	if cfg.AuthorizedKeysPath != "" {
		if err := s.loadAuthorizedKeys(cfg.AuthorizedKeysPath); err != nil {
			return nil, err
		}
	}
	return s, nil
}

// Authorize 允许指定公钥登录；一个都未授权时接受任意公钥
func (s *Server) Authorize(key ssh.PublicKey) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.authorized[string(key.Marshal())] = true
}

// HandleExec 替换默认的 exec 处理
func (s *Server) HandleExec(h ExecHandler) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.handler = h
}

// HostKey 模拟主机的公钥，用于写入 known_hosts
func (s *Server) HostKey() ssh.PublicKey { return s.hostKey.PublicKey() }

// Addr 实际监听地址
func (s *Server) Addr() string {
	if s.listener == nil {
		return s.cfg.Listen
	}
	return s.listener.Addr().String()
}

// Port 实际监听端口
func (s *Server) Port() uint16 {
	if s.listener == nil {
		return 0
	}
	return uint16(s.listener.Addr().(*net.TCPAddr).Port)
}

// ExecCount 已处理的 exec 请求数
func (s *Server) ExecCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.execCount
}

// Start 开始监听
func (s *Server) Start() error {
	ln, err := net.Listen("tcp", s.cfg.Listen)
	if err != nil {
		return err
	}
	s.listener = ln
	logger.WithField("addr", ln.Addr().String()).Debug("Simulate: listener started")

	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		for {
			conn, err := ln.Accept()
			if err != nil {
				if ne, ok := err.(net.Error); ok && ne.Timeout() {
					time.Sleep(200 * time.Millisecond)
					continue
				}
				// listener closed
				return
			}
			s.wg.Add(1)
			go func(c net.Conn) {
				defer s.wg.Done()
				s.handleConn(c)
			}(conn)
		}
	}()
	return nil
}

// Stop 关闭监听并等待在途连接结束
func (s *Server) Stop() {
	if s.listener != nil {
		_ = s.listener.Close()
	}
	s.wg.Wait()
}

func (s *Server) loadAuthorizedKeys(path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("failed to read authorized keys: %w", err)
	}
	for len(data) > 0 {
		key, _, _, rest, err := ssh.ParseAuthorizedKey(data)
		if err != nil {
			break
		}
		s.authorized[string(key.Marshal())] = true
		data = rest
	}
	return nil
}

func (s *Server) handleConn(nc net.Conn) {
	log := logger.WithField("remote", nc.RemoteAddr().String())
	srvCfg := &ssh.ServerConfig{
		PublicKeyCallback: func(meta ssh.ConnMetadata, key ssh.PublicKey) (*ssh.Permissions, error) {
			s.mu.Lock()
			defer s.mu.Unlock()
			if len(s.authorized) == 0 || s.authorized[string(key.Marshal())] {
				return nil, nil
			}
			return nil, fmt.Errorf("public key of %s rejected", meta.User())
		},
	}
	srvCfg.AddHostKey(s.hostKey)

	conn, chans, reqs, err := ssh.NewServerConn(nc, srvCfg)
	if err != nil {
		log.WithError(err).Debug("Simulate: SSH handshake failed")
		_ = nc.Close()
		return
	}
	defer conn.Close()
	log.WithField("user", conn.User()).Debug("Simulate: handshake success")

	go ssh.DiscardRequests(reqs)

	for ch := range chans {
		if ch.ChannelType() != "session" {
			_ = ch.Reject(ssh.UnknownChannelType, "unknown channel type")
			continue
		}
		channel, requests, err := ch.Accept()
		if err != nil {
			log.WithError(err).Error("Simulate: channel accept failed")
			continue
		}
		go s.handleSession(channel, requests, conn.User(), log)
	}
}

func (s *Server) handleSession(channel ssh.Channel, requests <-chan *ssh.Request, user string, log *logrus.Entry) {
	defer channel.Close()

	for req := range requests {
		if req.Type != "exec" {
			_ = req.Reply(false, nil)
			continue
		}
		var payload struct{ Command string }
		if err := ssh.Unmarshal(req.Payload, &payload); err != nil {
			_ = req.Reply(false, nil)
			return
		}
		_ = req.Reply(true, nil)
		log.WithField("cmd", payload.Command).Debug("Simulate: exec cmd")

		resp := s.respond(user, payload.Command)
		_, _ = channel.Write([]byte(resp.Stdout))
		_, _ = channel.Stderr().Write([]byte(resp.Stderr))
		status := struct{ Status uint32 }{uint32(resp.ExitStatus)}
		_, _ = channel.SendRequest("exit-status", false, ssh.Marshal(&status))
		return
	}
}

func (s *Server) respond(user, command string) Response {
	s.mu.Lock()
	s.execCount++
	handler := s.handler
	s.mu.Unlock()

	if handler != nil {
		return handler(user, command)
	}
	for _, c := range s.cfg.Commands {
		if strings.TrimSpace(c.Match) == strings.TrimSpace(command) {
			return Response{Stdout: c.Stdout, Stderr: c.Stderr, ExitStatus: c.ExitStatus}
		}
	}
	if IsMetricsScript(command) {
		return Response{Stdout: s.cfg.MetricsOutput + "\n"}
	}
	return Response{Stderr: fmt.Sprintf("bash: %s: command not found\n", firstWord(command)), ExitStatus: 127}
}

// IsMetricsScript 判断命令是否为指标采集脚本
func IsMetricsScript(command string) bool {
	return strings.Contains(command, "/proc/loadavg") && strings.Contains(command, "/proc/uptime")
}

func firstWord(s string) string {
	fields := strings.Fields(s)
	if len(fields) == 0 {
		return ""
	}
	return fields[0]
}

// loadOrCreateHostKey 加载或生成持久化的 host key（ed25519）
func loadOrCreateHostKey(path string) (ssh.Signer, error) {
	if path != "" {
		if bs, err := os.ReadFile(path); err == nil {
			signer, err := ssh.ParsePrivateKey(bs)
			if err == nil {
				return signer, nil
			}
			logger.WithError(err).Warn("Simulate: host key parse failed, regenerating")
		} else if !errors.Is(err, os.ErrNotExist) {
			return nil, err
		}
	}

	pemBytes, err := GenerateKeyPEM()
	if err != nil {
		return nil, err
	}
	if path != "" {
		if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
			return nil, fmt.Errorf("failed to ensure host key dir: %w", err)
		}
		if err := os.WriteFile(path, pemBytes, 0o600); err != nil {
			return nil, fmt.Errorf("failed to write host key: %w", err)
		}
		logger.WithField("file", path).Info("Simulate: host key generated")
	}
	return ssh.ParsePrivateKey(pemBytes)
}

// GenerateKeyPEM 生成 PKCS#8 PEM 编码的 ed25519 私钥
func GenerateKeyPEM() ([]byte, error) {
	_, priv, err := ed25519.GenerateKey(rand.Reader)
	if err != nil {
		return nil, fmt.Errorf("failed to generate key: %w", err)
	}
	der, err := x509.MarshalPKCS8PrivateKey(priv)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal key: %w", err)
	}
	return pem.EncodeToMemory(&pem.Block{Type: "PRIVATE KEY", Bytes: der}), nil
}
