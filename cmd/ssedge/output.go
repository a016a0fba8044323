package main

import (
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
	"text/tabwriter"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/ssedge/ssedge/internal/model"
	"github.com/ssedge/ssedge/internal/service"
)

// render 按 --output 输出；table 模式下调用 table 回调
func (c *cli) render(v interface{}, table func(w *tabwriter.Writer)) error {
	switch c.output {
	case "json":
		enc := json.NewEncoder(c.out)
		enc.SetIndent("", "  ")
		return enc.Encode(v)
	case "yaml":
		return writeYAML(c, v)
	default:
		w := tabwriter.NewWriter(c.out, 0, 4, 2, ' ', 0)
		table(w)
		return w.Flush()
	}
}

// writeYAML 先经 JSON 编码，使 YAML 键名与 json 标签一致
func writeYAML(c *cli, v interface{}) error {
	raw, err := json.Marshal(v)
	if err != nil {
		return err
	}
	var generic interface{}
	if err := yaml.Unmarshal(raw, &generic); err != nil {
		return err
	}
	enc := yaml.NewEncoder(c.out)
	enc.SetIndent(2)
	defer enc.Close()
	return enc.Encode(generic)
}

func formatEpoch(ts *int64) string {
	if ts == nil {
		return "-"
	}
	return time.Unix(*ts, 0).Format("2006-01-02 15:04:05")
}

func deviceTable(devices []model.Device) func(w *tabwriter.Writer) {
	return func(w *tabwriter.Writer) {
		fmt.Fprintln(w, "ID\tNAME\tIP\tLAST SEEN")
		for _, d := range devices {
			fmt.Fprintf(w, "%d\t%s\t%s\t%s\n", d.ID, d.Name, d.IP, formatEpoch(d.LastSeen))
		}
	}
}

func metricsTable(label string, m *model.SystemMetrics) func(w *tabwriter.Writer) {
	return func(w *tabwriter.Writer) {
		fmt.Fprintf(w, "HOST\t%s\n", label)
		fmt.Fprintf(w, "CPU\t%.2f%%\n", m.CPUUsage)
		fmt.Fprintf(w, "MEMORY\t%.2f / %.2f MB (%.2f%%)\n", m.MemoryUsedMB, m.MemoryTotalMB, m.MemoryPercent)
		fmt.Fprintf(w, "DISK\t%.2f / %.2f GB (%.2f%%)\n", m.DiskUsedGB, m.DiskTotalGB, m.DiskPercent)
		fmt.Fprintf(w, "UPTIME\t%s\n", (time.Duration(m.UptimeSeconds) * time.Second).String())
		fmt.Fprintf(w, "LOAD\t%s\n", m.LoadAverage)
	}
}

func fanOutTable(results []service.DeviceMetrics) func(w *tabwriter.Writer) {
	return func(w *tabwriter.Writer) {
		fmt.Fprintln(w, "ID\tNAME\tIP\tCPU\tMEM\tDISK\tSTATUS")
		for _, r := range results {
			if r.Metrics == nil {
				fmt.Fprintf(w, "%d\t%s\t%s\t-\t-\t-\t%s\n", r.Device.ID, r.Device.Name, r.Device.IP, oneLine(r.Error))
				continue
			}
			status := "ok"
			if r.Warning != "" {
				status = "warn: " + oneLine(r.Warning)
			}
			fmt.Fprintf(w, "%d\t%s\t%s\t%.1f%%\t%.1f%%\t%.1f%%\t%s\n", r.Device.ID, r.Device.Name, r.Device.IP,
				r.Metrics.CPUUsage, r.Metrics.MemoryPercent, r.Metrics.DiskPercent, status)
		}
	}
}

func tunnelTable(tunnels []model.Tunnel) func(w *tabwriter.Writer) {
	return func(w *tabwriter.Writer) {
		fmt.Fprintln(w, "ID\tDEVICE\tSTATUS\tLAST CHECKED")
		for _, t := range tunnels {
			fmt.Fprintf(w, "%d\t%d\t%s\t%s\n", t.ID, t.DeviceID, t.Status, formatEpoch(t.LastChecked))
		}
	}
}

func oneLine(s string) string {
	s = strings.TrimSpace(s)
	if i := strings.IndexByte(s, '\n'); i >= 0 {
		s = s[:i] + " ..."
	}
	return s
}

func parseID(s string) (int64, error) {
	id, err := strconv.ParseInt(strings.TrimSpace(s), 10, 64)
	if err != nil || id <= 0 {
		return 0, fmt.Errorf("invalid id %q", s)
	}
	return id, nil
}
