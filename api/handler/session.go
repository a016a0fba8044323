package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/ssedge/ssedge/internal/service"
	"github.com/ssedge/ssedge/pkg/logger"
)

// SessionHandler SSH 连接处理器
type SessionHandler struct {
	devices *service.DeviceService
}

// NewSessionHandler 创建连接处理器
func NewSessionHandler(devices *service.DeviceService) *SessionHandler {
	return &SessionHandler{devices: devices}
}

// Connect 连接成功后登记设备
// @Summary 连接并登记
// @Tags session
// @Accept json
// @Produce json
// @Param request body SessionRequest true "连接参数"
// @Success 201 {object} SuccessResponse
// @Failure 502 {object} ErrorResponse "连接失败"
// @Failure 504 {object} ErrorResponse "连接超时"
// @Router /api/v1/sessions/connect [post]
func (h *SessionHandler) Connect(c *gin.Context) {
	var req SessionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, "连接参数无效: "+err.Error())
		return
	}
	res, err := h.devices.ConnectAndRegister(c.Request.Context(), req.Hostname, req.IP, req.Config)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusCreated, SuccessResponse{Code: "SUCCESS", Message: res.Message, Data: res.Device})
}

// Test 只测试连通性，不写库
// @Router /api/v1/sessions/test [post]
func (h *SessionHandler) Test(c *gin.Context) {
	var req SessionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, "连接参数无效: "+err.Error())
		return
	}
	msg, err := h.devices.TestConnection(c.Request.Context(), req.Hostname, req.IP, req.Config)
	if err != nil {
		respondError(c, err)
		return
	}
	logger.WithField("ip", req.IP).Debugf("Connection test passed: %s", msg)
	ok(c, http.StatusOK, msg, gin.H{"hostname": req.Hostname, "ip": req.IP})
}
