package service

import (
	"context"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/ssedge/ssedge/internal/config"
	"github.com/ssedge/ssedge/internal/database"
	"github.com/ssedge/ssedge/pkg/ssh"
)

type fakeSession struct {
	mu       sync.Mutex
	result   *ssh.CommandResult
	runErr   error
	commands []string
	closed   int
}

func (s *fakeSession) Run(_ context.Context, command string) (*ssh.CommandResult, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.commands = append(s.commands, command)
	if s.runErr != nil {
		return nil, s.runErr
	}
	res := *s.result
	res.Command = command
	return &res, nil
}

func (s *fakeSession) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.closed++
	return nil
}

// fakeConnector 按 ip 返回预置会话或错误
type fakeConnector struct {
	mu       sync.Mutex
	sessions map[string]*fakeSession
	errs     map[string]error
	opened   []string
}

func newFakeConnector() *fakeConnector {
	return &fakeConnector{sessions: map[string]*fakeSession{}, errs: map[string]error{}}
}

func (c *fakeConnector) Open(_ context.Context, _, ip string, _ ssh.SessionConfig) (Session, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.opened = append(c.opened, ip)
	if err := c.errs[ip]; err != nil {
		return nil, err
	}
	if s, ok := c.sessions[ip]; ok {
		return s, nil
	}
	return &fakeSession{result: &ssh.CommandResult{}}, nil
}

func (c *fakeConnector) Test(ctx context.Context, hostname, ip string, cfg ssh.SessionConfig) (string, error) {
	s, err := c.Open(ctx, hostname, ip, cfg)
	if err != nil {
		return "", err
	}
	_ = s.Close()
	r := cfg.Resolve()
	return "Successfully connected to " + r.Username + "@" + ip, nil
}

func (c *fakeConnector) openedCount() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.opened)
}

func openTestStore(t *testing.T) *database.Store {
	t.Helper()
	s, err := database.Open(config.SQLiteConfig{
		Path:            filepath.Join(t.TempDir(), "ssedge.db"),
		MaxOpenConns:    4,
		ConnMaxLifetime: time.Hour,
	})
	require.NoError(t, err)
	t.Cleanup(func() { _ = s.Close() })
	return s
}

func refused(ip string) error {
	return &ssh.ConnectionError{Kind: ssh.KindRefused, Hostname: ip, Address: "user@" + ip}
}
