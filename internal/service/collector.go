package service

import (
	"context"
	"fmt"
	"math"
	"strconv"
	"strings"
	"time"

	"github.com/ssedge/ssedge/internal/model"
	"github.com/ssedge/ssedge/internal/util"
)

// MetricsScript 单次往返采集 cpu、内存、根分区、运行时长与负载，输出
// cpu|mem_used mem_total mem_pct|disk_used disk_total disk_pct|uptime|load1,load5,load15
const MetricsScript = `cpu=$(top -bn2 -d 0.5 | grep "Cpu(s)" | tail -1 | awk '{print 100 - $8}')
mem=$(free -m | awk 'NR==2{printf "%.2f %.2f %.2f", $3, $2, $3*100/$2}')
disk=$(df -BG / | awk 'NR==2{gsub(/G/, "", $3); gsub(/G/, "", $2); printf "%.2f %.2f %.2f", $3, $2, $3*100/$2}')
uptime=$(awk '{print int($1)}' /proc/uptime)
loadavg=$(cat /proc/loadavg | awk '{print $1","$2","$3}')
echo "$cpu|$mem|$disk|$uptime|$loadavg"`

// CollectionErrorKind 采集失败分类
type CollectionErrorKind string

const (
	// CollectCommand 远程命令执行失败或非零退出
	CollectCommand CollectionErrorKind = "command"
	// CollectFormat 输出结构不符合五段格式
	CollectFormat CollectionErrorKind = "format"
)

// CollectionError 指标采集失败
type CollectionError struct {
	Kind   CollectionErrorKind
	Raw    string
	Stderr string
	Err    error
}

func (e *CollectionError) Error() string {
	switch e.Kind {
	case CollectFormat:
		return fmt.Sprintf("Unexpected metrics output format: %s", e.Raw)
	default:
		if e.Err != nil {
			return fmt.Sprintf("Failed to execute metrics command: %v", e.Err)
		}
		return fmt.Sprintf("Metrics command failed: %s", e.Stderr)
	}
}

func (e *CollectionError) Unwrap() error { return e.Err }

// MetricsCollector 在已建立的会话上执行指标脚本并解析
type MetricsCollector struct {
	now func() time.Time
}

// NewMetricsCollector 创建采集器
func NewMetricsCollector() *MetricsCollector {
	return &MetricsCollector{now: time.Now}
}

// Collect 执行一次远程脚本；命令一旦提交不再受超时约束
func (c *MetricsCollector) Collect(ctx context.Context, session Session) (*model.SystemMetrics, error) {
	res, err := session.Run(context.WithoutCancel(ctx), "bash -c "+shellQuote(MetricsScript))
	if err != nil {
		return nil, &CollectionError{Kind: CollectCommand, Err: err}
	}
	if res.ExitCode != 0 {
		return nil, &CollectionError{Kind: CollectCommand, Stderr: strings.TrimSpace(util.EnsureUTF8(res.Stderr))}
	}
	return ParseMetrics(util.EnsureUTF8(res.Stdout), c.now())
}

// ParseMetrics 解析脚本输出
// 段数不为 5 时整体失败；单个数值解析失败时取默认值（总量默认 1，其余 0）
func ParseMetrics(raw string, now time.Time) (*model.SystemMetrics, error) {
	line := strings.TrimSpace(raw)
	parts := strings.Split(line, "|")
	if len(parts) != 5 {
		return nil, &CollectionError{Kind: CollectFormat, Raw: line}
	}

	memUsed, memTotal, memPct := triple(parts[1])
	diskUsed, diskTotal, diskPct := triple(parts[2])

	uptime, err := strconv.ParseUint(strings.TrimSpace(parts[3]), 10, 64)
	if err != nil {
		uptime = 0
	}

	return &model.SystemMetrics{
		CPUUsage:      floatOr(strings.TrimSpace(parts[0]), 0),
		MemoryUsedMB:  memUsed,
		MemoryTotalMB: memTotal,
		MemoryPercent: memPct,
		DiskUsedGB:    diskUsed,
		DiskTotalGB:   diskTotal,
		DiskPercent:   diskPct,
		UptimeSeconds: uptime,
		LoadAverage:   strings.TrimSpace(parts[4]),
		Timestamp:     now.Unix(),
	}, nil
}

// triple 解析 "used total pct"
func triple(s string) (used, total, pct float64) {
	fields := strings.Fields(s)
	at := func(i int) string {
		if i < len(fields) {
			return fields[i]
		}
		return ""
	}
	return floatOr(at(0), 0), floatOr(at(1), 1), floatOr(at(2), 0)
}

// floatOr 解析失败或结果非有限值（awk 除零输出的 nan、inf）时返回 def
func floatOr(s string, def float64) float64 {
	v, err := strconv.ParseFloat(s, 64)
	if err != nil || math.IsNaN(v) || math.IsInf(v, 0) {
		return def
	}
	return v
}

// shellQuote 单引号包裹，用于 bash -c
func shellQuote(s string) string {
	return "'" + strings.ReplaceAll(s, "'", `'\''`) + "'"
}
