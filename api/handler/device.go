package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/ssedge/ssedge/internal/service"
	"github.com/ssedge/ssedge/pkg/logger"
)

// DeviceHandler 设备处理器
type DeviceHandler struct {
	devices *service.DeviceService
}

// NewDeviceHandler 创建设备处理器
func NewDeviceHandler(devices *service.DeviceService) *DeviceHandler {
	return &DeviceHandler{devices: devices}
}

// CreateDeviceRequest 直接登记设备的请求体
type CreateDeviceRequest struct {
	Name string `json:"name" binding:"required"`
	IP   string `json:"ip" binding:"required"`
}

// CreateDevice 创建设备
// @Summary 登记新设备
// @Description 不做连通性检查，直接写入设备表
// @Tags device
// @Accept json
// @Produce json
// @Param device body CreateDeviceRequest true "设备信息"
// @Success 201 {object} SuccessResponse "创建成功"
// @Failure 400 {object} ErrorResponse "请求参数错误"
// @Router /api/v1/devices [post]
func (h *DeviceHandler) CreateDevice(c *gin.Context) {
	var req CreateDeviceRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		logger.Warnf("Invalid device parameters: %v", err)
		badRequest(c, "设备参数无效: "+err.Error())
		return
	}

	device, err := h.devices.AddDevice(c.Request.Context(), req.Name, req.IP)
	if err != nil {
		respondError(c, err)
		return
	}
	ok(c, http.StatusCreated, "设备创建成功", device)
}

// ListDevices 按 id 顺序列出设备
// @Router /api/v1/devices [get]
func (h *DeviceHandler) ListDevices(c *gin.Context) {
	devices, err := h.devices.ListDevices(c.Request.Context())
	if err != nil {
		respondError(c, err)
		return
	}
	ok(c, http.StatusOK, "获取设备列表成功", gin.H{
		"total": len(devices),
		"items": devices,
	})
}

// GetDevice 获取设备详情
// @Router /api/v1/devices/{id} [get]
func (h *DeviceHandler) GetDevice(c *gin.Context) {
	id, valid := parseID(c, "id")
	if !valid {
		return
	}
	device, err := h.devices.GetDevice(c.Request.Context(), id)
	if err != nil {
		respondError(c, err)
		return
	}
	ok(c, http.StatusOK, "获取设备成功", device)
}

// DeleteDevice 删除设备，不存在时返回 404
// @Router /api/v1/devices/{id} [delete]
func (h *DeviceHandler) DeleteDevice(c *gin.Context) {
	id, valid := parseID(c, "id")
	if !valid {
		return
	}
	n, err := h.devices.DeleteDevice(c.Request.Context(), id)
	if err != nil {
		respondError(c, err)
		return
	}
	if n == 0 {
		c.JSON(http.StatusNotFound, ErrorResponse{Code: "NOT_FOUND", Message: "设备不存在"})
		return
	}
	ok(c, http.StatusOK, "设备删除成功", gin.H{"id": id, "deleted": n})
}
