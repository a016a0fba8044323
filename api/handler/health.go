package handler

import (
	"context"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/ssedge/ssedge/internal/database"
)

// Version 构建时通过 -ldflags 注入
var Version = "dev"

// HealthHandler 健康检查
type HealthHandler struct {
	store   *database.Store
	started time.Time
}

func NewHealthHandler(store *database.Store) *HealthHandler {
	return &HealthHandler{store: store, started: time.Now()}
}

// Health 检查数据库连通性并返回连接池统计
func (h *HealthHandler) Health(c *gin.Context) {
	ctx, cancel := context.WithTimeout(c.Request.Context(), 3*time.Second)
	defer cancel()

	data := gin.H{
		"version": Version,
		"uptime":  time.Since(h.started).Round(time.Second).String(),
		"pool":    h.store.Stats(),
	}
	if err := h.store.Health(ctx); err != nil {
		data["database"] = "unhealthy"
		c.JSON(http.StatusServiceUnavailable, gin.H{
			"code":    "UNHEALTHY",
			"message": "数据库不可用: " + err.Error(),
			"data":    data,
		})
		return
	}
	data["database"] = "healthy"
	ok(c, http.StatusOK, "服务正常", data)
}
