package model

// Device 已登记的远程主机
// name 与 ip 均无唯一约束，重复登记会产生多行
type Device struct {
	ID       int64  `json:"id" gorm:"primaryKey;autoIncrement"`
	Name     string `json:"name" gorm:"type:text;not null"`
	IP       string `json:"ip" gorm:"type:text;not null"`
	LastSeen *int64 `json:"last_seen,omitempty"` // epoch 秒
}

// TableName 表名
func (Device) TableName() string {
	return "devices"
}

// Tunnel 隧道状态记录（只记录状态，不负责建立隧道）
type Tunnel struct {
	ID          int64   `json:"id" gorm:"primaryKey;autoIncrement"`
	DeviceID    int64   `json:"device_id" gorm:"not null;index:idx_tunnels_device_status,priority:1"`
	Status      string  `json:"status" gorm:"type:text;not null;index:idx_tunnels_device_status,priority:2"`
	LastChecked *int64  `json:"last_checked,omitempty"`
	Device      *Device `json:"-" gorm:"foreignKey:DeviceID;constraint:OnDelete:CASCADE"`
}

// TableName 表名
func (Tunnel) TableName() string {
	return "tunnels"
}

// 隧道状态
const (
	TunnelStatusUp      = "up"
	TunnelStatusDown    = "down"
	TunnelStatusUnknown = "unknown"
)

// Metric 持久化的指标快照（cpu 与内存百分比）
type Metric struct {
	ID        int64   `json:"id" gorm:"primaryKey;autoIncrement"`
	DeviceID  int64   `json:"device_id" gorm:"not null;index:idx_metrics_device_timestamp,priority:1"`
	CPU       float64 `json:"cpu" gorm:"column:cpu;not null"`
	Mem       float64 `json:"mem" gorm:"column:mem;not null"`
	Timestamp int64   `json:"timestamp" gorm:"not null;index:idx_metrics_device_timestamp,priority:2"`
	Device    *Device `json:"-" gorm:"foreignKey:DeviceID;constraint:OnDelete:CASCADE"`
}

// TableName 表名
func (Metric) TableName() string {
	return "metrics"
}

// CommandLog 远程命令执行记录
type CommandLog struct {
	ID        int64   `json:"id" gorm:"primaryKey;autoIncrement"`
	DeviceID  int64   `json:"device_id" gorm:"not null;index"`
	Command   string  `json:"command" gorm:"type:text;not null"`
	Output    *string `json:"output" gorm:"type:text"` // 无输出时为 NULL
	ExitCode  int     `json:"exit_code" gorm:"not null;default:0"`
	Timestamp int64   `json:"timestamp" gorm:"not null"`
	Device    *Device `json:"-" gorm:"foreignKey:DeviceID;constraint:OnDelete:CASCADE"`
}

// TableName 表名
func (CommandLog) TableName() string {
	return "command_logs"
}
