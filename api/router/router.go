package router

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"github.com/ssedge/ssedge/api/handler"
	"github.com/ssedge/ssedge/internal/database"
	"github.com/ssedge/ssedge/internal/service"
	"github.com/ssedge/ssedge/pkg/logger"
)

// Services 路由依赖的服务
type Services struct {
	Store    *database.Store
	Devices  *service.DeviceService
	Metrics  *service.MetricsService
	Commands *service.CommandService
	Tunnels  *service.TunnelService
	// LogPath 日志文件路径，由启动流程注入
	LogPath string
}

// SetupRouter 设置路由
func SetupRouter(mode string, svc Services) *gin.Engine {
	if mode == "" {
		mode = gin.ReleaseMode
	}
	gin.SetMode(mode)

	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(RequestIDMiddleware())
	r.Use(CORSMiddleware())
	r.Use(LoggingMiddleware())

	deviceHandler := handler.NewDeviceHandler(svc.Devices)
	sessionHandler := handler.NewSessionHandler(svc.Devices)
	metricsHandler := handler.NewMetricsHandler(svc.Metrics)
	commandHandler := handler.NewCommandHandler(svc.Commands)
	tunnelHandler := handler.NewTunnelHandler(svc.Tunnels)
	logsHandler := handler.NewLogsHandler(svc.LogPath)
	healthHandler := handler.NewHealthHandler(svc.Store)

	r.GET("/", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{
			"name":    "ssedge",
			"version": handler.Version,
			"status":  "running",
		})
	})

	v1 := r.Group("/api/v1")
	{
		v1.GET("/health", healthHandler.Health)

		devices := v1.Group("/devices")
		{
			devices.POST("", deviceHandler.CreateDevice)
			devices.GET("", deviceHandler.ListDevices)
			devices.GET("/:id", deviceHandler.GetDevice)
			devices.DELETE("/:id", deviceHandler.DeleteDevice)
			devices.POST("/:id/metrics", metricsHandler.FetchDeviceMetrics)
			devices.GET("/:id/metrics", metricsHandler.History)
			devices.POST("/:id/exec", commandHandler.Exec)
			devices.GET("/:id/commands", commandHandler.Logs)
			devices.POST("/:id/tunnels", tunnelHandler.Create)
			devices.GET("/:id/tunnels", tunnelHandler.ListByDevice)
		}

		sessions := v1.Group("/sessions")
		{
			sessions.POST("/connect", sessionHandler.Connect)
			sessions.POST("/test", sessionHandler.Test)
		}

		metrics := v1.Group("/metrics")
		{
			metrics.POST("/fetch", metricsHandler.FetchMetrics)
			metrics.GET("/all", metricsHandler.FetchAll)
			metrics.POST("/all", metricsHandler.FetchAll)
		}

		tunnels := v1.Group("/tunnels")
		{
			tunnels.GET("/:id", tunnelHandler.Get)
			tunnels.PUT("/:id", tunnelHandler.UpdateStatus)
			tunnels.DELETE("/:id", tunnelHandler.Delete)
		}

		logs := v1.Group("/logs")
		{
			logs.GET("/path", logsHandler.LogPath)
			logs.GET("/tail", logsHandler.TailLogs)
		}
	}

	r.NoRoute(func(c *gin.Context) {
		c.JSON(http.StatusNotFound, gin.H{
			"code":    "NOT_FOUND",
			"message": "接口不存在",
			"path":    c.Request.URL.Path,
		})
	})

	return r
}

// CORSMiddleware 跨域中间件
func CORSMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Header("Access-Control-Allow-Origin", "*")
		c.Header("Access-Control-Allow-Headers", "Content-Type, Content-Length, Accept-Encoding, Authorization, accept, origin, Cache-Control, X-Requested-With, X-Request-ID")
		c.Header("Access-Control-Allow-Methods", "POST, OPTIONS, GET, PUT, DELETE")
		c.Header("Access-Control-Expose-Headers", "X-Request-ID")

		if c.Request.Method == http.MethodOptions {
			c.AbortWithStatus(http.StatusNoContent)
			return
		}
		c.Next()
	}
}

// RequestIDMiddleware 请求ID中间件，缺省时生成 UUID
func RequestIDMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		requestID := c.GetHeader("X-Request-ID")
		if requestID == "" {
			requestID = uuid.NewString()
		}
		c.Header("X-Request-ID", requestID)
		c.Set("request_id", requestID)
		c.Next()
	}
}

// LoggingMiddleware 访问日志，4xx 记 warn，5xx 记 error
func LoggingMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()

		status := c.Writer.Status()
		entry := logger.WithFields(logrus.Fields{
			"request_id": c.GetString("request_id"),
			"method":     c.Request.Method,
			"path":       c.Request.URL.Path,
			"status":     status,
			"duration":   time.Since(start).String(),
			"client_ip":  c.ClientIP(),
		})
		switch {
		case status >= http.StatusInternalServerError:
			entry.Error("HTTP Error")
		case status >= http.StatusBadRequest:
			entry.Warn("HTTP Request")
		default:
			entry.Info("HTTP Request")
		}
	}
}
