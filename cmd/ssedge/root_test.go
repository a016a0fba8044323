package main

import (
	"bytes"
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"strconv"
	"testing"

	"github.com/spf13/cobra"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	gossh "golang.org/x/crypto/ssh"

	"github.com/ssedge/ssedge/pkg/ssh"
	"github.com/ssedge/ssedge/simulate"
)

// writeConfig 生成指向临时目录的配置文件
func writeConfig(t *testing.T, extra string) string {
	t.Helper()
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	content := "database:\n  sqlite:\n    path: " + filepath.Join(dir, "ssedge.db") + "\n" +
		"log:\n  output: file\n  file_path: " + filepath.Join(dir, "ssedge.log") + "\n" +
		"ssh:\n  use_agent: false\n  known_hosts_path: " + filepath.Join(dir, "known_hosts") + "\n" +
		"  ssh_config_path: " + filepath.Join(dir, "ssh_config") + "\n" + extra
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func execute(t *testing.T, args ...string) (string, error) {
	t.Helper()
	root := newRootCmd()
	var out, errOut bytes.Buffer
	root.SetOut(&out)
	root.SetErr(&errOut)
	root.SetArgs(args)
	err := root.ExecuteContext(context.Background())
	return out.String(), err
}

func TestVersion(t *testing.T) {
	out, err := execute(t, "version")
	require.NoError(t, err)
	assert.Equal(t, "ssedge dev\n", out)
}

func TestDeviceCommands(t *testing.T) {
	cfg := writeConfig(t, "")

	out, err := execute(t, "-c", cfg, "-o", "json", "device", "add", "web-1", "10.0.0.1")
	require.NoError(t, err)
	var created struct {
		ID   int64  `json:"id"`
		Name string `json:"name"`
	}
	require.NoError(t, json.Unmarshal([]byte(out), &created))
	assert.Equal(t, "web-1", created.Name)

	out, err = execute(t, "-c", cfg, "device", "list")
	require.NoError(t, err)
	assert.Contains(t, out, "NAME")
	assert.Contains(t, out, "10.0.0.1")

	out, err = execute(t, "-c", cfg, "-o", "yaml", "device", "list")
	require.NoError(t, err)
	assert.Contains(t, out, "ip: 10.0.0.1")

	id := strconv.FormatInt(created.ID, 10)
	_, err = execute(t, "-c", cfg, "device", "delete", id)
	require.NoError(t, err)
	_, err = execute(t, "-c", cfg, "device", "delete", id)
	assert.Error(t, err)

	_, err = execute(t, "-c", cfg, "device", "add", "bad", "not an ip")
	assert.Error(t, err)
	_, err = execute(t, "-c", cfg, "-o", "xml", "device", "list")
	assert.Error(t, err)
}

func TestSessionConfigOnlyChangedFlags(t *testing.T) {
	c := &cli{}
	var got ssh.SessionConfig
	root := newRootCmd()
	probe := &cobra.Command{
		Use: "probe",
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error { return nil },
		RunE: func(cmd *cobra.Command, args []string) error {
			c.session.user, _ = cmd.Flags().GetString("user")
			c.session.port, _ = cmd.Flags().GetUint16("port")
			c.session.strict, _ = cmd.Flags().GetBool("strict")
			c.session.timeout, _ = cmd.Flags().GetUint64("timeout")
			got = c.sessionConfig(cmd)
			return nil
		},
	}
	root.AddCommand(probe)
	root.SetArgs([]string{"probe", "--port", "2222", "--strict=false"})
	require.NoError(t, root.Execute())

	assert.Nil(t, got.Username)
	assert.Nil(t, got.ConnectTimeout)
	r := got.Resolve()
	assert.Equal(t, uint16(2222), r.Port)
	assert.Equal(t, ssh.HostKeyAccept, r.HostKeyPolicy)
	assert.Equal(t, ssh.DefaultUsername, r.Username)
}

func TestConnectAndMetricsAgainstSimulator(t *testing.T) {
	dir := t.TempDir()
	keyPEM, err := simulate.GenerateKeyPEM()
	require.NoError(t, err)
	keyPath := filepath.Join(dir, "id_ed25519")
	require.NoError(t, os.WriteFile(keyPath, keyPEM, 0o600))
	signer, err := gossh.ParsePrivateKey(keyPEM)
	require.NoError(t, err)

	sim, err := simulate.New(simulate.Config{})
	require.NoError(t, err)
	sim.Authorize(signer.PublicKey())
	require.NoError(t, sim.Start())
	t.Cleanup(sim.Stop)

	cfg := writeConfig(t, "  identity_files:\n    - "+keyPath+"\n")
	port := strconv.Itoa(int(sim.Port()))

	_, err = execute(t, "-c", cfg, "--port", port, "--timeout", "5", "test", "sim", "127.0.0.1")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "known_hosts")

	out, err := execute(t, "-c", cfg, "--port", port, "--strict=false", "test", "sim", "127.0.0.1")
	require.NoError(t, err)
	assert.Equal(t, "Successfully connected to user@127.0.0.1:"+port+"\n", out)

	out, err = execute(t, "-c", cfg, "--port", port, "--strict=false", "connect", "sim", "127.0.0.1")
	require.NoError(t, err)
	assert.Contains(t, out, "Successfully connected to sim at IP 127.0.0.1")

	out, err = execute(t, "-c", cfg, "-o", "json", "--port", port, "--strict=false", "metrics", "127.0.0.1")
	require.NoError(t, err)
	var m map[string]interface{}
	require.NoError(t, json.Unmarshal([]byte(out), &m))
	assert.Equal(t, 12.5, m["cpu_usage"])
}
