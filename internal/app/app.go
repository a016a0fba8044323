package app

import (
	"fmt"

	"github.com/sirupsen/logrus"

	"github.com/ssedge/ssedge/internal/config"
	"github.com/ssedge/ssedge/internal/database"
	"github.com/ssedge/ssedge/internal/service"
	"github.com/ssedge/ssedge/pkg/logger"
	"github.com/ssedge/ssedge/pkg/ssh"
)

// App 进程内共享的存储与服务
type App struct {
	Config   *config.Config
	Store    *database.Store
	Devices  *service.DeviceService
	Metrics  *service.MetricsService
	Commands *service.CommandService
	Tunnels  *service.TunnelService
}

// LoggerConfig 将配置中的日志段转换为日志模块参数
func LoggerConfig(c config.LogConfig) logger.Config {
	return logger.Config{
		Level:      c.Level,
		Format:     c.Format,
		Output:     c.Output,
		FilePath:   config.ExpandHome(c.FilePath),
		MaxSize:    c.MaxSize,
		MaxBackups: c.MaxBackups,
		MaxAge:     c.MaxAge,
		Compress:   c.Compress,
	}
}

// Sinks 按配置组装指标去向，未启用时为空
func Sinks(cfg *config.Config, store *database.Store) []service.MetricsSink {
	var sinks []service.MetricsSink
	if cfg.Metrics.Persist {
		sinks = append(sinks, service.NewStoreSink(store))
	}
	if w := service.NewStorageWriter(cfg.Archive); w != nil {
		sinks = append(sinks, service.NewArchiveSink(w))
	}
	return sinks
}

// New 打开数据库并创建各服务
func New(cfg *config.Config) (*App, error) {
	sqlite := cfg.Database.SQLite
	sqlite.Path = config.ExpandHome(sqlite.Path)
	store, err := database.Open(sqlite)
	if err != nil {
		return nil, fmt.Errorf("failed to open store: %w", err)
	}

	connector := service.NewSSHConnector(ssh.NewConnector(ssh.TransportConfig{
		KnownHostsPath: cfg.SSH.KnownHostsPath,
		SSHConfigPath:  cfg.SSH.SSHConfigPath,
		IdentityFiles:  cfg.SSH.IdentityFiles,
		UseAgent:       cfg.SSH.UseAgent,
		KeepAlive:      cfg.SSH.KeepAlive,
	}))

	sinks := Sinks(cfg, store)
	names := make([]string, 0, len(sinks))
	for _, s := range sinks {
		names = append(names, s.Name())
	}
	logger.WithFields(logrus.Fields{
		"sinks":       names,
		"concurrency": cfg.Metrics.Concurrency,
	}).Info("Services initialized")

	return &App{
		Config:   cfg,
		Store:    store,
		Devices:  service.NewDeviceService(store, connector),
		Metrics:  service.NewMetricsService(store, connector, cfg.Metrics.Concurrency, sinks...),
		Commands: service.NewCommandService(store, connector),
		Tunnels:  service.NewTunnelService(store),
	}, nil
}

// Close 释放数据库连接池
func (a *App) Close() error {
	return a.Store.Close()
}
