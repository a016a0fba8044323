package handler

import (
	"errors"
	"io"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"github.com/ssedge/ssedge/internal/database"
	"github.com/ssedge/ssedge/internal/service"
	"github.com/ssedge/ssedge/pkg/logger"
	"github.com/ssedge/ssedge/pkg/ssh"
)

// ErrorResponse 错误响应
type ErrorResponse struct {
	Code    string `json:"code"`
	Message string `json:"message"`
	Kind    string `json:"kind,omitempty"`
}

// SuccessResponse 成功响应
type SuccessResponse struct {
	Code    string      `json:"code"`
	Message string      `json:"message"`
	Data    interface{} `json:"data,omitempty"`
	Warning string      `json:"warning,omitempty"`
}

// SessionRequest 会话请求体，config 中缺省字段使用默认值
type SessionRequest struct {
	Hostname string            `json:"hostname"`
	IP       string            `json:"ip" binding:"required"`
	Config   ssh.SessionConfig `json:"config"`
}

// SessionQuery 以查询参数提供的可选会话参数
type SessionQuery struct {
	Username              *string `form:"username"`
	Port                  *uint16 `form:"port"`
	StrictHostKeyChecking *bool   `form:"strict_host_key_checking"`
	ConnectTimeout        *uint64 `form:"connect_timeout"`
}

// SessionConfig 转为会话参数
func (q SessionQuery) SessionConfig() ssh.SessionConfig {
	return ssh.SessionConfig{
		Username:              q.Username,
		Port:                  q.Port,
		StrictHostKeyChecking: q.StrictHostKeyChecking,
		ConnectTimeout:        q.ConnectTimeout,
	}
}

// bindOptionalJSON 绑定可选请求体；没有请求体（含分块传输的空体）时保持 obj 不变
func bindOptionalJSON(c *gin.Context, obj interface{}) error {
	if c.Request.Body == nil || c.Request.Body == http.NoBody {
		return nil
	}
	if err := c.ShouldBindJSON(obj); err != nil && !errors.Is(err, io.EOF) {
		return err
	}
	return nil
}

func ok(c *gin.Context, status int, message string, data interface{}) {
	c.JSON(status, SuccessResponse{Code: "SUCCESS", Message: message, Data: data})
}

func badRequest(c *gin.Context, message string) {
	c.JSON(http.StatusBadRequest, ErrorResponse{Code: "INVALID_PARAMS", Message: message})
}

// respondError 按错误类型映射状态码
func respondError(c *gin.Context, err error) {
	var (
		connErr    *ssh.ConnectionError
		collectErr *service.CollectionError
		storeErr   *database.StoreError
	)
	switch {
	case errors.Is(err, service.ErrInvalidArgument):
		c.JSON(http.StatusBadRequest, ErrorResponse{Code: "INVALID_PARAMS", Message: err.Error()})
	case errors.Is(err, database.ErrNotFound):
		c.JSON(http.StatusNotFound, ErrorResponse{Code: "NOT_FOUND", Message: err.Error()})
	case errors.Is(err, database.ErrUnknownDevice):
		c.JSON(http.StatusNotFound, ErrorResponse{Code: "DEVICE_NOT_FOUND", Message: err.Error()})
	case errors.As(err, &connErr):
		status := http.StatusBadGateway
		if connErr.Kind == ssh.KindTimeout {
			status = http.StatusGatewayTimeout
		}
		c.JSON(status, ErrorResponse{Code: "CONNECTION_FAILED", Message: err.Error(), Kind: string(connErr.Kind)})
	case errors.As(err, &collectErr):
		c.JSON(http.StatusBadGateway, ErrorResponse{Code: "COLLECTION_FAILED", Message: err.Error(), Kind: string(collectErr.Kind)})
	case errors.As(err, &storeErr) && database.IsBusyError(err):
		c.JSON(http.StatusServiceUnavailable, ErrorResponse{Code: "STORE_BUSY", Message: err.Error()})
	default:
		logger.WithError(err).WithField("request_id", c.GetString("request_id")).Error("Request failed")
		c.JSON(http.StatusInternalServerError, ErrorResponse{Code: "INTERNAL_ERROR", Message: err.Error()})
	}
}

// parseID 解析路径中的数值 id
func parseID(c *gin.Context, name string) (int64, bool) {
	id, err := strconv.ParseInt(c.Param(name), 10, 64)
	if err != nil || id <= 0 {
		badRequest(c, "invalid "+name+": "+c.Param(name))
		return 0, false
	}
	return id, true
}

// parseLimit 解析 limit 查询参数
func parseLimit(c *gin.Context, def, max int) int {
	limit, err := strconv.Atoi(c.DefaultQuery("limit", strconv.Itoa(def)))
	if err != nil || limit <= 0 || limit > max {
		return def
	}
	return limit
}
