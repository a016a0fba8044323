package database

import (
	"context"

	"github.com/ssedge/ssedge/internal/model"
)

// InsertDevice 新增设备，返回生成的 id
func (s *Store) InsertDevice(ctx context.Context, name, ip string, lastSeen *int64) (int64, error) {
	d := &model.Device{Name: name, IP: ip, LastSeen: lastSeen}
	if err := s.db.WithContext(ctx).Create(d).Error; err != nil {
		return 0, wrap("insert device", err)
	}
	return d.ID, nil
}

// DeleteDevice 删除设备（级联删除其隧道、指标与命令记录），返回影响行数
func (s *Store) DeleteDevice(ctx context.Context, id int64) (int64, error) {
	res := s.db.WithContext(ctx).Delete(&model.Device{}, id)
	if res.Error != nil {
		return 0, wrap("delete device", res.Error)
	}
	return res.RowsAffected, nil
}

// GetDevice 按 id 查询设备
func (s *Store) GetDevice(ctx context.Context, id int64) (*model.Device, error) {
	var d model.Device
	if err := s.db.WithContext(ctx).First(&d, id).Error; err != nil {
		return nil, wrap("get device", err)
	}
	return &d, nil
}

// GetAllDevices 按 id 升序返回全部设备
func (s *Store) GetAllDevices(ctx context.Context) ([]model.Device, error) {
	devices := make([]model.Device, 0)
	if err := s.db.WithContext(ctx).Order("id ASC").Find(&devices).Error; err != nil {
		return nil, wrap("list devices", err)
	}
	return devices, nil
}

// GetDevicesByIP 查询同一 ip 的全部设备
func (s *Store) GetDevicesByIP(ctx context.Context, ip string) ([]model.Device, error) {
	devices := make([]model.Device, 0)
	if err := s.db.WithContext(ctx).Where("ip = ?", ip).Order("id ASC").Find(&devices).Error; err != nil {
		return nil, wrap("list devices by ip", err)
	}
	return devices, nil
}

// TouchDevice 更新设备的 last_seen
func (s *Store) TouchDevice(ctx context.Context, id, seenAt int64) (int64, error) {
	res := s.db.WithContext(ctx).Model(&model.Device{}).Where("id = ?", id).Update("last_seen", seenAt)
	if res.Error != nil {
		return 0, wrap("touch device", res.Error)
	}
	return res.RowsAffected, nil
}

// InsertTunnel 新增隧道状态记录
func (s *Store) InsertTunnel(ctx context.Context, deviceID int64, status string, lastChecked *int64) (int64, error) {
	t := &model.Tunnel{DeviceID: deviceID, Status: status, LastChecked: lastChecked}
	if err := s.db.WithContext(ctx).Create(t).Error; err != nil {
		return 0, wrap("insert tunnel", err)
	}
	return t.ID, nil
}

// DeleteTunnel 删除隧道记录
func (s *Store) DeleteTunnel(ctx context.Context, id int64) (int64, error) {
	res := s.db.WithContext(ctx).Delete(&model.Tunnel{}, id)
	if res.Error != nil {
		return 0, wrap("delete tunnel", res.Error)
	}
	return res.RowsAffected, nil
}

// GetTunnel 按 id 查询隧道
func (s *Store) GetTunnel(ctx context.Context, id int64) (*model.Tunnel, error) {
	var t model.Tunnel
	if err := s.db.WithContext(ctx).First(&t, id).Error; err != nil {
		return nil, wrap("get tunnel", err)
	}
	return &t, nil
}

// UpdateTunnelStatus 更新隧道状态与检查时间
func (s *Store) UpdateTunnelStatus(ctx context.Context, id int64, status string, checkedAt int64) (int64, error) {
	res := s.db.WithContext(ctx).Model(&model.Tunnel{}).Where("id = ?", id).
		Updates(map[string]interface{}{"status": status, "last_checked": checkedAt})
	if res.Error != nil {
		return 0, wrap("update tunnel", res.Error)
	}
	return res.RowsAffected, nil
}

// GetTunnelsByDevice 查询设备的隧道，可按状态过滤
func (s *Store) GetTunnelsByDevice(ctx context.Context, deviceID int64, status string) ([]model.Tunnel, error) {
	tunnels := make([]model.Tunnel, 0)
	q := s.db.WithContext(ctx).Where("device_id = ?", deviceID)
	if status != "" {
		q = q.Where("status = ?", status)
	}
	if err := q.Order("id ASC").Find(&tunnels).Error; err != nil {
		return nil, wrap("list tunnels", err)
	}
	return tunnels, nil
}

// InsertMetric 新增指标记录
func (s *Store) InsertMetric(ctx context.Context, deviceID int64, cpu, mem float64, timestamp int64) (int64, error) {
	m := &model.Metric{DeviceID: deviceID, CPU: cpu, Mem: mem, Timestamp: timestamp}
	if err := s.db.WithContext(ctx).Create(m).Error; err != nil {
		return 0, wrap("insert metric", err)
	}
	return m.ID, nil
}

// DeleteMetric 删除指标记录
func (s *Store) DeleteMetric(ctx context.Context, id int64) (int64, error) {
	res := s.db.WithContext(ctx).Delete(&model.Metric{}, id)
	if res.Error != nil {
		return 0, wrap("delete metric", res.Error)
	}
	return res.RowsAffected, nil
}

// GetMetric 按 id 查询指标
func (s *Store) GetMetric(ctx context.Context, id int64) (*model.Metric, error) {
	var m model.Metric
	if err := s.db.WithContext(ctx).First(&m, id).Error; err != nil {
		return nil, wrap("get metric", err)
	}
	return &m, nil
}

// GetMetricsByDevice 按时间倒序查询设备指标，limit<=0 表示不限制
func (s *Store) GetMetricsByDevice(ctx context.Context, deviceID int64, limit int) ([]model.Metric, error) {
	metrics := make([]model.Metric, 0)
	q := s.db.WithContext(ctx).Where("device_id = ?", deviceID).Order("timestamp DESC").Order("id DESC")
	if limit > 0 {
		q = q.Limit(limit)
	}
	if err := q.Find(&metrics).Error; err != nil {
		return nil, wrap("list metrics", err)
	}
	return metrics, nil
}

// InsertCommandLog 新增命令执行记录，output 为 nil 时写入 NULL
func (s *Store) InsertCommandLog(ctx context.Context, deviceID int64, command string, output *string, exitCode int, timestamp int64) (int64, error) {
	l := &model.CommandLog{DeviceID: deviceID, Command: command, Output: output, ExitCode: exitCode, Timestamp: timestamp}
	if err := s.db.WithContext(ctx).Create(l).Error; err != nil {
		return 0, wrap("insert command log", err)
	}
	return l.ID, nil
}

// DeleteCommandLog 删除命令执行记录
func (s *Store) DeleteCommandLog(ctx context.Context, id int64) (int64, error) {
	res := s.db.WithContext(ctx).Delete(&model.CommandLog{}, id)
	if res.Error != nil {
		return 0, wrap("delete command log", res.Error)
	}
	return res.RowsAffected, nil
}

// GetCommandLog 按 id 查询命令执行记录
func (s *Store) GetCommandLog(ctx context.Context, id int64) (*model.CommandLog, error) {
	var l model.CommandLog
	if err := s.db.WithContext(ctx).First(&l, id).Error; err != nil {
		return nil, wrap("get command log", err)
	}
	return &l, nil
}

// GetCommandLogsByDevice 按时间倒序查询设备的命令记录
func (s *Store) GetCommandLogsByDevice(ctx context.Context, deviceID int64, limit int) ([]model.CommandLog, error) {
	logs := make([]model.CommandLog, 0)
	q := s.db.WithContext(ctx).Where("device_id = ?", deviceID).Order("timestamp DESC").Order("id DESC")
	if limit > 0 {
		q = q.Limit(limit)
	}
	if err := q.Find(&logs).Error; err != nil {
		return nil, wrap("list command logs", err)
	}
	return logs, nil
}
