package service

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ssedge/ssedge/internal/database"
	"github.com/ssedge/ssedge/pkg/ssh"
)

func TestCommandRunRecordsLog(t *testing.T) {
	store := openTestStore(t)
	ctx := context.Background()
	id, err := store.InsertDevice(ctx, "web-1", "10.0.0.1", nil)
	require.NoError(t, err)

	conn := newFakeConnector()
	conn.sessions["10.0.0.1"] = &fakeSession{result: &ssh.CommandResult{Stdout: "out\n", Stderr: "warn\n", ExitCode: 2}}
	svc := NewCommandService(store, conn)

	res, err := svc.Run(ctx, id, "  systemctl status nginx ", ssh.SessionConfig{})
	require.NoError(t, err)
	assert.Equal(t, "systemctl status nginx", res.Command)
	assert.Equal(t, 2, res.ExitCode)

	logs, err := svc.Logs(ctx, id, 0)
	require.NoError(t, err)
	require.Len(t, logs, 1)
	assert.Equal(t, res.LogID, logs[0].ID)
	require.NotNil(t, logs[0].Output)
	assert.Equal(t, "out\nwarn\n", *logs[0].Output)
	assert.Equal(t, 2, logs[0].ExitCode)
}

func TestCommandRunWithoutOutputStoresNull(t *testing.T) {
	store := openTestStore(t)
	ctx := context.Background()
	id, err := store.InsertDevice(ctx, "web-1", "10.0.0.1", nil)
	require.NoError(t, err)

	conn := newFakeConnector()
	conn.sessions["10.0.0.1"] = &fakeSession{result: &ssh.CommandResult{}}
	svc := NewCommandService(store, conn)

	_, err = svc.Run(ctx, id, "true", ssh.SessionConfig{})
	require.NoError(t, err)

	logs, err := svc.Logs(ctx, id, 0)
	require.NoError(t, err)
	require.Len(t, logs, 1)
	assert.Nil(t, logs[0].Output)
}

func TestCommandRunErrors(t *testing.T) {
	store := openTestStore(t)
	ctx := context.Background()
	svc := NewCommandService(store, newFakeConnector())

	_, err := svc.Run(ctx, 1, "   ", ssh.SessionConfig{})
	assert.ErrorIs(t, err, ErrInvalidArgument)

	_, err = svc.Run(ctx, 42, "uptime", ssh.SessionConfig{})
	assert.ErrorIs(t, err, database.ErrNotFound)
}
