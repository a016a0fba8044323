package simulate

import (
	"bytes"
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/ssh"
)

func clientSigner(t *testing.T) ssh.Signer {
	t.Helper()
	pemBytes, err := GenerateKeyPEM()
	require.NoError(t, err)
	signer, err := ssh.ParsePrivateKey(pemBytes)
	require.NoError(t, err)
	return signer
}

func startServer(t *testing.T, cfg Config) *Server {
	t.Helper()
	s, err := New(cfg)
	require.NoError(t, err)
	require.NoError(t, s.Start())
	t.Cleanup(s.Stop)
	return s
}

func run(t *testing.T, s *Server, signer ssh.Signer, command string) (string, string, int) {
	t.Helper()
	client, err := ssh.Dial("tcp", s.Addr(), &ssh.ClientConfig{
		User:            "tester",
		Auth:            []ssh.AuthMethod{ssh.PublicKeys(signer)},
		HostKeyCallback: ssh.FixedHostKey(s.HostKey()),
		Timeout:         5 * time.Second,
	})
	require.NoError(t, err)
	defer client.Close()

	session, err := client.NewSession()
	require.NoError(t, err)
	defer session.Close()

	var stdout, stderr bytes.Buffer
	session.Stdout = &stdout
	session.Stderr = &stderr
	code := 0
	if err := session.Run(command); err != nil {
		var exitErr *ssh.ExitError
		require.True(t, errors.As(err, &exitErr), err)
		code = exitErr.ExitStatus()
	}
	return stdout.String(), stderr.String(), code
}

func TestCannedResponses(t *testing.T) {
	s := startServer(t, Config{
		Commands: []CommandConfig{
			{Match: "uname -s", Stdout: "Linux\n"},
			{Match: "false", Stderr: "nope\n", ExitStatus: 1},
		},
	})
	signer := clientSigner(t)

	out, _, code := run(t, s, signer, "uname -s")
	assert.Equal(t, "Linux\n", out)
	assert.Zero(t, code)

	_, errOut, code := run(t, s, signer, "false")
	assert.Equal(t, "nope\n", errOut)
	assert.Equal(t, 1, code)

	out, _, code = run(t, s, signer, "bash -c 'cat /proc/uptime; cat /proc/loadavg'")
	assert.Equal(t, DefaultMetricsOutput+"\n", out)
	assert.Zero(t, code)

	_, errOut, code = run(t, s, signer, "frobnicate --now")
	assert.Equal(t, 127, code)
	assert.Contains(t, errOut, "frobnicate")

	assert.Equal(t, 4, s.ExecCount())
}

func TestAuthorizedKeysOnly(t *testing.T) {
	s := startServer(t, Config{})
	allowed := clientSigner(t)
	s.Authorize(allowed.PublicKey())

	_, err := ssh.Dial("tcp", s.Addr(), &ssh.ClientConfig{
		User:            "tester",
		Auth:            []ssh.AuthMethod{ssh.PublicKeys(clientSigner(t))},
		HostKeyCallback: ssh.InsecureIgnoreHostKey(),
		Timeout:         5 * time.Second,
	})
	assert.Error(t, err)

	s.HandleExec(func(user, command string) Response {
		return Response{Stdout: user + ":" + command}
	})
	out, _, _ := run(t, s, allowed, "hello")
	assert.Equal(t, "tester:hello", out)
}

func TestLoadConfigAndPersistentHostKey(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "simulate.yaml")
	yaml := "listen: 127.0.0.1:0\n" +
		"host_key_path: " + filepath.Join(dir, "host_key") + "\n" +
		"commands:\n" +
		"  - match: hostname\n" +
		"    stdout: sim-01\n"
	require.NoError(t, os.WriteFile(path, []byte(yaml), 0o644))

	cfg, err := LoadConfig(path)
	require.NoError(t, err)
	assert.Equal(t, DefaultMetricsOutput, cfg.MetricsOutput)
	require.Len(t, cfg.Commands, 1)
	assert.Equal(t, "sim-01", cfg.Commands[0].Stdout)

	a, err := New(*cfg)
	require.NoError(t, err)
	b, err := New(*cfg)
	require.NoError(t, err)
	assert.Equal(t, a.HostKey().Marshal(), b.HostKey().Marshal())

	_, err = LoadConfig(filepath.Join(dir, "missing.yaml"))
	assert.Error(t, err)
}
