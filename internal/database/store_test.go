package database

import (
	"context"
	"fmt"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/sync/errgroup"

	"github.com/ssedge/ssedge/internal/config"
	"github.com/ssedge/ssedge/internal/model"
)

func testConfig(t *testing.T) config.SQLiteConfig {
	t.Helper()
	return config.SQLiteConfig{
		Path:            filepath.Join(t.TempDir(), "data", "ssedge.db"),
		MaxOpenConns:    4,
		MaxIdleConns:    4,
		ConnMaxLifetime: time.Hour,
		BusyTimeoutMS:   15000,
	}
}

func openStore(t *testing.T) *Store {
	t.Helper()
	s, err := Open(testConfig(t))
	require.NoError(t, err)
	t.Cleanup(func() { _ = s.Close() })
	return s
}

func TestOpenIsIdempotent(t *testing.T) {
	cfg := testConfig(t)
	ctx := context.Background()

	s1, err := Open(cfg)
	require.NoError(t, err)
	id, err := s1.InsertDevice(ctx, "h1", "10.0.0.1", nil)
	require.NoError(t, err)
	require.NoError(t, s1.Close())

	s2, err := Open(cfg)
	require.NoError(t, err)
	defer s2.Close()

	d, err := s2.GetDevice(ctx, id)
	require.NoError(t, err)
	assert.Equal(t, "h1", d.Name)

	for _, idx := range []struct {
		table interface{}
		name  string
	}{
		{&model.Metric{}, "idx_metrics_device_timestamp"},
		{&model.Tunnel{}, "idx_tunnels_device_status"},
	} {
		assert.True(t, s2.DB().Migrator().HasIndex(idx.table, idx.name), idx.name)
	}
	assert.NoError(t, s2.Health(ctx))
	assert.Equal(t, 4, s2.Stats()["max_open_connections"])
}

func TestDeviceCRUD(t *testing.T) {
	s := openStore(t)
	ctx := context.Background()

	id, err := s.InsertDevice(ctx, "h1", "10.0.0.1", nil)
	require.NoError(t, err)
	assert.Positive(t, id)

	devices, err := s.GetAllDevices(ctx)
	require.NoError(t, err)
	require.Len(t, devices, 1)
	assert.Equal(t, model.Device{ID: id, Name: "h1", IP: "10.0.0.1"}, devices[0])

	seen := time.Now().Unix()
	n, err := s.TouchDevice(ctx, id, seen)
	require.NoError(t, err)
	assert.Equal(t, int64(1), n)
	d, err := s.GetDevice(ctx, id)
	require.NoError(t, err)
	require.NotNil(t, d.LastSeen)
	assert.Equal(t, seen, *d.LastSeen)

	n, err = s.DeleteDevice(ctx, id)
	require.NoError(t, err)
	assert.Equal(t, int64(1), n)

	_, err = s.GetDevice(ctx, id)
	assert.ErrorIs(t, err, ErrNotFound)
	var se *StoreError
	assert.ErrorAs(t, err, &se)

	n, err = s.DeleteDevice(ctx, id)
	require.NoError(t, err)
	assert.Zero(t, n)
}

func TestDuplicateDevicesAllowed(t *testing.T) {
	s := openStore(t)
	ctx := context.Background()

	a, err := s.InsertDevice(ctx, "h1", "10.0.0.1", nil)
	require.NoError(t, err)
	b, err := s.InsertDevice(ctx, "h1", "10.0.0.1", nil)
	require.NoError(t, err)
	assert.NotEqual(t, a, b)

	same, err := s.GetDevicesByIP(ctx, "10.0.0.1")
	require.NoError(t, err)
	assert.Len(t, same, 2)
}

func TestConcurrentInserts(t *testing.T) {
	s := openStore(t)
	ctx := context.Background()
	const n = 50

	ids := make([]int64, n)
	var g errgroup.Group
	for i := 0; i < n; i++ {
		i := i
		g.Go(func() error {
			id, err := s.InsertDevice(ctx, fmt.Sprintf("h%d", i), fmt.Sprintf("10.0.1.%d", i), nil)
			ids[i] = id
			return err
		})
	}
	require.NoError(t, g.Wait())

	unique := make(map[int64]bool)
	for _, id := range ids {
		unique[id] = true
	}
	assert.Len(t, unique, n)

	devices, err := s.GetAllDevices(ctx)
	require.NoError(t, err)
	require.Len(t, devices, n)
	for i := 1; i < len(devices); i++ {
		assert.Less(t, devices[i-1].ID, devices[i].ID)
	}
}

func TestForeignKeyEnforced(t *testing.T) {
	s := openStore(t)
	ctx := context.Background()

	_, err := s.InsertTunnel(ctx, 999, model.TunnelStatusUp, nil)
	assert.ErrorIs(t, err, ErrUnknownDevice)
	_, err = s.InsertMetric(ctx, 999, 1, 2, time.Now().Unix())
	assert.ErrorIs(t, err, ErrUnknownDevice)
	_, err = s.InsertCommandLog(ctx, 999, "uptime", nil, 0, time.Now().Unix())
	assert.ErrorIs(t, err, ErrUnknownDevice)
}

func TestTunnels(t *testing.T) {
	s := openStore(t)
	ctx := context.Background()
	dev, err := s.InsertDevice(ctx, "h1", "10.0.0.1", nil)
	require.NoError(t, err)

	up, err := s.InsertTunnel(ctx, dev, model.TunnelStatusUp, nil)
	require.NoError(t, err)
	_, err = s.InsertTunnel(ctx, dev, model.TunnelStatusDown, nil)
	require.NoError(t, err)

	all, err := s.GetTunnelsByDevice(ctx, dev, "")
	require.NoError(t, err)
	assert.Len(t, all, 2)
	onlyUp, err := s.GetTunnelsByDevice(ctx, dev, model.TunnelStatusUp)
	require.NoError(t, err)
	require.Len(t, onlyUp, 1)
	assert.Equal(t, up, onlyUp[0].ID)

	n, err := s.UpdateTunnelStatus(ctx, up, model.TunnelStatusDown, 1700000000)
	require.NoError(t, err)
	assert.Equal(t, int64(1), n)
	tun, err := s.GetTunnel(ctx, up)
	require.NoError(t, err)
	assert.Equal(t, model.TunnelStatusDown, tun.Status)
	require.NotNil(t, tun.LastChecked)
	assert.Equal(t, int64(1700000000), *tun.LastChecked)

	n, err = s.DeleteTunnel(ctx, up)
	require.NoError(t, err)
	assert.Equal(t, int64(1), n)
	_, err = s.GetTunnel(ctx, up)
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestMetricsNewestFirst(t *testing.T) {
	s := openStore(t)
	ctx := context.Background()
	dev, err := s.InsertDevice(ctx, "h1", "10.0.0.1", nil)
	require.NoError(t, err)

	for i, ts := range []int64{100, 300, 200} {
		_, err := s.InsertMetric(ctx, dev, float64(i), float64(i*10), ts)
		require.NoError(t, err)
	}

	metrics, err := s.GetMetricsByDevice(ctx, dev, 2)
	require.NoError(t, err)
	require.Len(t, metrics, 2)
	assert.Equal(t, int64(300), metrics[0].Timestamp)
	assert.Equal(t, int64(200), metrics[1].Timestamp)

	got, err := s.GetMetric(ctx, metrics[0].ID)
	require.NoError(t, err)
	assert.Equal(t, 1.0, got.CPU)
	assert.Equal(t, 10.0, got.Mem)

	n, err := s.DeleteMetric(ctx, got.ID)
	require.NoError(t, err)
	assert.Equal(t, int64(1), n)
}

func TestCommandLogs(t *testing.T) {
	s := openStore(t)
	ctx := context.Background()
	dev, err := s.InsertDevice(ctx, "h1", "10.0.0.1", nil)
	require.NoError(t, err)

	out := "Linux\n"
	id, err := s.InsertCommandLog(ctx, dev, "uname -a", &out, 0, 100)
	require.NoError(t, err)
	_, err = s.InsertCommandLog(ctx, dev, "false", nil, 1, 200)
	require.NoError(t, err)

	l, err := s.GetCommandLog(ctx, id)
	require.NoError(t, err)
	assert.Equal(t, "uname -a", l.Command)
	require.NotNil(t, l.Output)
	assert.Equal(t, "Linux\n", *l.Output)

	logs, err := s.GetCommandLogsByDevice(ctx, dev, 0)
	require.NoError(t, err)
	require.Len(t, logs, 2)
	assert.Equal(t, "false", logs[0].Command)
	assert.Equal(t, 1, logs[0].ExitCode)
	assert.Nil(t, logs[0].Output)

	n, err := s.DeleteCommandLog(ctx, id)
	require.NoError(t, err)
	assert.Equal(t, int64(1), n)
}

func TestDeleteDeviceCascades(t *testing.T) {
	s := openStore(t)
	ctx := context.Background()
	dev, err := s.InsertDevice(ctx, "h1", "10.0.0.1", nil)
	require.NoError(t, err)

	tid, err := s.InsertTunnel(ctx, dev, model.TunnelStatusUp, nil)
	require.NoError(t, err)
	mid, err := s.InsertMetric(ctx, dev, 1, 2, 100)
	require.NoError(t, err)
	up := "up"
	cid, err := s.InsertCommandLog(ctx, dev, "uptime", &up, 0, 100)
	require.NoError(t, err)

	_, err = s.DeleteDevice(ctx, dev)
	require.NoError(t, err)

	_, err = s.GetTunnel(ctx, tid)
	assert.ErrorIs(t, err, ErrNotFound)
	_, err = s.GetMetric(ctx, mid)
	assert.ErrorIs(t, err, ErrNotFound)
	_, err = s.GetCommandLog(ctx, cid)
	assert.ErrorIs(t, err, ErrNotFound)
}
