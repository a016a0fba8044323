package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/ssedge/ssedge/internal/service"
	"github.com/ssedge/ssedge/pkg/ssh"
)

// CommandHandler 远程命令处理器
type CommandHandler struct {
	commands *service.CommandService
}

// NewCommandHandler 创建命令处理器
func NewCommandHandler(commands *service.CommandService) *CommandHandler {
	return &CommandHandler{commands: commands}
}

// ExecRequest 执行命令请求体
type ExecRequest struct {
	Command string            `json:"command" binding:"required"`
	Config  ssh.SessionConfig `json:"config"`
}

// Exec 在设备上执行一条命令，非零退出也返回 200 并记录
// @Router /api/v1/devices/{id}/exec [post]
func (h *CommandHandler) Exec(c *gin.Context) {
	id, valid := parseID(c, "id")
	if !valid {
		return
	}
	var req ExecRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, "命令参数无效: "+err.Error())
		return
	}
	res, err := h.commands.Run(c.Request.Context(), id, req.Command, req.Config)
	if err != nil {
		respondError(c, err)
		return
	}
	ok(c, http.StatusOK, "命令执行完成", res)
}

// Logs 查询设备的命令记录
// @Router /api/v1/devices/{id}/commands [get]
func (h *CommandHandler) Logs(c *gin.Context) {
	id, valid := parseID(c, "id")
	if !valid {
		return
	}
	items, err := h.commands.Logs(c.Request.Context(), id, parseLimit(c, 50, 500))
	if err != nil {
		respondError(c, err)
		return
	}
	ok(c, http.StatusOK, "获取命令记录成功", gin.H{"total": len(items), "items": items})
}
