package logger

import (
	"strings"

	"github.com/sirupsen/logrus"
)

// OutputLines 命令输出的头部与尾部行
type OutputLines struct {
	HeadLines []string `json:"head_lines"`
	TailLines []string `json:"tail_lines"`
	Total     int      `json:"total"`
}

// ParseOutputLines 提取输出的前后各 maxLines 行，末尾空行不计
func ParseOutputLines(output string, maxLines int) OutputLines {
	if maxLines <= 0 {
		maxLines = 5
	}

	output = strings.ReplaceAll(output, "\r\n", "\n")
	output = strings.ReplaceAll(output, "\r", "\n")
	output = strings.TrimRight(output, "\n")
	if output == "" {
		return OutputLines{}
	}
	lines := strings.Split(output, "\n")
	total := len(lines)

	n := maxLines
	if n > total {
		n = total
	}
	head := append([]string(nil), lines[:n]...)
	tail := append([]string(nil), lines[total-n:]...)
	return OutputLines{HeadLines: head, TailLines: tail, Total: total}
}

// FormatOutputLines 将头尾行压缩为单行文本用于日志
func FormatOutputLines(lines OutputLines) string {
	if lines.Total == 0 {
		return ""
	}
	var parts []string
	parts = append(parts, "head-lines: ["+strings.Join(lines.HeadLines, " ⟩ ")+"]")
	if lines.Total > len(lines.HeadLines) {
		parts = append(parts, "tail-lines: ["+strings.Join(lines.TailLines, " ⟩ ")+"]")
	}
	return strings.Join(parts, ", ")
}

// DebugCommandOutput 在 debug 级别记录远程命令回显摘要
func DebugCommandOutput(host, command, output string, maxLines int) {
	if GetLogger().Level < logrus.DebugLevel {
		return
	}
	lines := ParseOutputLines(output, maxLines)
	if lines.Total == 0 {
		return
	}
	WithFields(logrus.Fields{
		"host":    host,
		"command": command,
		"lines":   lines.Total,
	}).Debug(FormatOutputLines(lines))
}
