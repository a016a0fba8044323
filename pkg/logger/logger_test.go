package logger

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewFileOutput(t *testing.T) {
	path := filepath.Join(t.TempDir(), "logs", "ssedge.log")
	l, err := New(Config{Level: "debug", Format: "json", Output: "file", FilePath: path, MaxSize: 1})
	require.NoError(t, err)
	assert.Equal(t, logrus.DebugLevel, l.GetLevel())

	l.WithField("device", "web-1").Info("hello")
	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Contains(t, string(data), `"device":"web-1"`)
	assert.Contains(t, string(data), `"level":"info"`)
}

func TestNewDefaults(t *testing.T) {
	l, err := New(Config{Level: "loud", Output: "console"})
	require.NoError(t, err)
	assert.Equal(t, logrus.InfoLevel, l.GetLevel())

	_, err = New(Config{Output: "file"})
	assert.Error(t, err)
}

func TestInitReplacesGlobal(t *testing.T) {
	require.NoError(t, Init(Config{Level: "warn", Output: "console"}))
	assert.Equal(t, logrus.WarnLevel, GetLogger().GetLevel())
	require.NoError(t, Init(Config{Level: "info", Output: "console"}))
	assert.Equal(t, logrus.InfoLevel, GetLogger().GetLevel())
}
