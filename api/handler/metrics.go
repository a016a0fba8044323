package handler

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/ssedge/ssedge/internal/service"
	"github.com/ssedge/ssedge/pkg/ssh"
)

// MetricsHandler 指标采集处理器
type MetricsHandler struct {
	metrics *service.MetricsService
}

// NewMetricsHandler 创建指标处理器
func NewMetricsHandler(metrics *service.MetricsService) *MetricsHandler {
	return &MetricsHandler{metrics: metrics}
}

// FetchMetricsRequest 按 ip 采集的请求体
type FetchMetricsRequest struct {
	IP     string            `json:"ip" binding:"required"`
	Config ssh.SessionConfig `json:"config"`
}

// DeviceSessionRequest 已登记设备操作的可选会话参数
type DeviceSessionRequest struct {
	Config ssh.SessionConfig `json:"config"`
}

// FetchMetrics 连接 ip 采集一次快照，不落地
// @Summary 按需采集指标
// @Tags metrics
// @Accept json
// @Produce json
// @Param request body FetchMetricsRequest true "采集参数"
// @Success 200 {object} SuccessResponse
// @Failure 502 {object} ErrorResponse "连接或采集失败"
// @Router /api/v1/metrics/fetch [post]
func (h *MetricsHandler) FetchMetrics(c *gin.Context) {
	var req FetchMetricsRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, "采集参数无效: "+err.Error())
		return
	}
	m, err := h.metrics.FetchMetrics(c.Request.Context(), req.IP, req.Config)
	if err != nil {
		respondError(c, err)
		return
	}
	ok(c, http.StatusOK, "采集成功", m)
}

// FetchDeviceMetrics 采集已登记设备并写入配置的去向
// @Router /api/v1/devices/{id}/metrics [post]
func (h *MetricsHandler) FetchDeviceMetrics(c *gin.Context) {
	id, valid := parseID(c, "id")
	if !valid {
		return
	}
	var req DeviceSessionRequest
	if err := bindOptionalJSON(c, &req); err != nil {
		badRequest(c, "采集参数无效: "+err.Error())
		return
	}

	m, err := h.metrics.FetchDeviceMetrics(c.Request.Context(), id, req.Config)
	var sinkErr *service.SinkError
	switch {
	case err == nil:
		ok(c, http.StatusOK, "采集成功", m)
	case errors.As(err, &sinkErr) && m != nil:
		// 快照已采集，去向失败作为告警返回
		c.JSON(http.StatusOK, SuccessResponse{Code: "SUCCESS", Message: "采集成功，部分记录失败", Data: m, Warning: err.Error()})
	default:
		respondError(c, err)
	}
}

// History 查询设备历史指标
// @Router /api/v1/devices/{id}/metrics [get]
func (h *MetricsHandler) History(c *gin.Context) {
	id, valid := parseID(c, "id")
	if !valid {
		return
	}
	limit := parseLimit(c, 100, 1000)
	items, err := h.metrics.History(c.Request.Context(), id, limit)
	if err != nil {
		respondError(c, err)
		return
	}
	ok(c, http.StatusOK, "获取历史指标成功", gin.H{"total": len(items), "items": items})
}

// FetchAll 并发采集全部设备
// 会话参数可通过查询参数或请求体 config 提供，请求体中的字段优先
// @Summary 批量采集指标
// @Tags metrics
// @Produce json
// @Param username query string false "登录用户"
// @Param port query int false "端口"
// @Param strict_host_key_checking query bool false "是否校验主机密钥"
// @Param connect_timeout query int false "连接超时（秒）"
// @Success 200 {object} SuccessResponse
// @Router /api/v1/metrics/all [get]
// @Router /api/v1/metrics/all [post]
func (h *MetricsHandler) FetchAll(c *gin.Context) {
	var query SessionQuery
	if err := c.ShouldBindQuery(&query); err != nil {
		badRequest(c, "会话参数无效: "+err.Error())
		return
	}
	req := DeviceSessionRequest{Config: query.SessionConfig()}
	if err := bindOptionalJSON(c, &req); err != nil {
		badRequest(c, "会话参数无效: "+err.Error())
		return
	}

	results, err := h.metrics.FetchAllMetrics(c.Request.Context(), req.Config)
	if err != nil {
		respondError(c, err)
		return
	}
	failed := 0
	for _, r := range results {
		if r.Error != "" {
			failed++
		}
	}
	ok(c, http.StatusOK, "批量采集完成", gin.H{
		"total":  len(results),
		"failed": failed,
		"items":  results,
	})
}
