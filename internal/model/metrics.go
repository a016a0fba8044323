package model

// SystemMetrics 单次采集得到的主机资源快照，不直接持久化
type SystemMetrics struct {
	CPUUsage      float64 `json:"cpu_usage"`
	MemoryUsedMB  float64 `json:"memory_used_mb"`
	MemoryTotalMB float64 `json:"memory_total_mb"`
	MemoryPercent float64 `json:"memory_percent"`
	DiskUsedGB    float64 `json:"disk_used_gb"`
	DiskTotalGB   float64 `json:"disk_total_gb"`
	DiskPercent   float64 `json:"disk_percent"`
	UptimeSeconds uint64  `json:"uptime_seconds"`
	LoadAverage   string  `json:"load_average"` // "1m,5m,15m"
	Timestamp     int64   `json:"timestamp"`
}
