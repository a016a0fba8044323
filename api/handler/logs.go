package handler

import (
	"bufio"
	"net/http"
	"os"
	"path/filepath"
	"strings"

	"github.com/gin-gonic/gin"
)

// LogsHandler 日志查询处理器，日志路径在启动时注入
type LogsHandler struct {
	path string
}

func NewLogsHandler(path string) *LogsHandler {
	return &LogsHandler{path: strings.TrimSpace(path)}
}

// LogPath 返回日志文件的绝对路径
func (h *LogsHandler) LogPath(c *gin.Context) {
	if h.path == "" {
		c.JSON(http.StatusNotFound, ErrorResponse{Code: "LOG_PATH_EMPTY", Message: "日志路径未配置"})
		return
	}
	abs, err := filepath.Abs(h.path)
	if err != nil {
		abs = h.path
	}
	ok(c, http.StatusOK, "获取日志路径成功", gin.H{"path": abs})
}

// TailLogs 简易日志Tail查询（按关键字、级别过滤，返回末尾N行）
func (h *LogsHandler) TailLogs(c *gin.Context) {
	if h.path == "" {
		c.JSON(http.StatusNotFound, ErrorResponse{Code: "LOG_PATH_EMPTY", Message: "日志路径未配置"})
		return
	}
	limit := parseLimit(c, 200, 1000)
	q := strings.ToLower(strings.TrimSpace(c.Query("q")))
	lvl := strings.ToLower(strings.TrimSpace(c.Query("level")))

	lines, err := readAllLines(h.path)
	if err != nil {
		if os.IsNotExist(err) {
			ok(c, http.StatusOK, "日志文件尚未生成", gin.H{"path": h.path, "count": 0, "lines": []string{}})
			return
		}
		c.JSON(http.StatusInternalServerError, ErrorResponse{Code: "READ_FAILED", Message: "读取日志失败: " + err.Error()})
		return
	}

	filtered := make([]string, 0, len(lines))
	for _, ln := range lines {
		lc := strings.ToLower(ln)
		if q != "" && !strings.Contains(lc, q) {
			continue
		}
		// 兼容 json 与 text 两种格式
		if lvl != "" && !strings.Contains(lc, `"level":"`+lvl+`"`) && !strings.Contains(lc, "level="+lvl) {
			continue
		}
		filtered = append(filtered, ln)
	}

	start := 0
	if len(filtered) > limit {
		start = len(filtered) - limit
	}
	tail := filtered[start:]

	ok(c, http.StatusOK, "获取日志成功", gin.H{
		"path":  h.path,
		"count": len(tail),
		"lines": tail,
	})
}

func readAllLines(path string) ([]string, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	s := bufio.NewScanner(f)
	s.Buffer(make([]byte, 0, 64*1024), 10*1024*1024) // up to 10MB per line
	res := make([]string, 0, 1024)
	for s.Scan() {
		res = append(res, s.Text())
	}
	if err := s.Err(); err != nil {
		return nil, err
	}
	return res, nil
}
