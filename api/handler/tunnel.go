package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/ssedge/ssedge/internal/service"
)

// TunnelHandler 隧道状态处理器
type TunnelHandler struct {
	tunnels *service.TunnelService
}

func NewTunnelHandler(tunnels *service.TunnelService) *TunnelHandler {
	return &TunnelHandler{tunnels: tunnels}
}

// TunnelStatusRequest 隧道状态请求体
type TunnelStatusRequest struct {
	Status string `json:"status"`
}

// Create POST /api/v1/devices/:id/tunnels
func (h *TunnelHandler) Create(c *gin.Context) {
	deviceID, valid := parseID(c, "id")
	if !valid {
		return
	}
	var req TunnelStatusRequest
	if err := bindOptionalJSON(c, &req); err != nil {
		badRequest(c, "隧道参数无效: "+err.Error())
		return
	}
	t, err := h.tunnels.Create(c.Request.Context(), deviceID, req.Status)
	if err != nil {
		respondError(c, err)
		return
	}
	ok(c, http.StatusCreated, "隧道创建成功", t)
}

// ListByDevice GET /api/v1/devices/:id/tunnels?status=up
func (h *TunnelHandler) ListByDevice(c *gin.Context) {
	deviceID, valid := parseID(c, "id")
	if !valid {
		return
	}
	items, err := h.tunnels.ListByDevice(c.Request.Context(), deviceID, c.Query("status"))
	if err != nil {
		respondError(c, err)
		return
	}
	ok(c, http.StatusOK, "获取隧道列表成功", gin.H{"total": len(items), "items": items})
}

func (h *TunnelHandler) Get(c *gin.Context) {
	id, valid := parseID(c, "id")
	if !valid {
		return
	}
	t, err := h.tunnels.Get(c.Request.Context(), id)
	if err != nil {
		respondError(c, err)
		return
	}
	ok(c, http.StatusOK, "获取隧道成功", t)
}

// UpdateStatus PUT /api/v1/tunnels/:id
func (h *TunnelHandler) UpdateStatus(c *gin.Context) {
	id, valid := parseID(c, "id")
	if !valid {
		return
	}
	var req TunnelStatusRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, "隧道参数无效: "+err.Error())
		return
	}
	t, err := h.tunnels.UpdateStatus(c.Request.Context(), id, req.Status)
	if err != nil {
		respondError(c, err)
		return
	}
	ok(c, http.StatusOK, "隧道状态已更新", t)
}

func (h *TunnelHandler) Delete(c *gin.Context) {
	id, valid := parseID(c, "id")
	if !valid {
		return
	}
	n, err := h.tunnels.Delete(c.Request.Context(), id)
	if err != nil {
		respondError(c, err)
		return
	}
	if n == 0 {
		c.JSON(http.StatusNotFound, ErrorResponse{Code: "NOT_FOUND", Message: "隧道不存在"})
		return
	}
	ok(c, http.StatusOK, "隧道删除成功", gin.H{"id": id})
}
