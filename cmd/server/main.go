package main

import (
	"context"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/sirupsen/logrus"

	"github.com/ssedge/ssedge/api/handler"
	"github.com/ssedge/ssedge/api/router"
	"github.com/ssedge/ssedge/internal/app"
	"github.com/ssedge/ssedge/internal/config"
	"github.com/ssedge/ssedge/pkg/logger"
)

func main() {
	configPath := flag.String("config", "", "path to config.yaml")
	flag.Parse()

	// 加载配置
	cfg, err := config.Load(*configPath)
	if err != nil {
		fmt.Printf("Failed to load config: %v\n", err)
		os.Exit(1)
	}

	// 初始化日志
	logCfg := app.LoggerConfig(cfg.Log)
	if err := logger.Init(logCfg); err != nil {
		fmt.Printf("Failed to initialize logger: %v\n", err)
		os.Exit(1)
	}
	logger.WithFields(logrus.Fields{
		"version": handler.Version,
		"config":  cfg.File,
	}).Info("Starting ssedge server")

	a, err := app.New(cfg)
	if err != nil {
		logger.Fatalf("Failed to initialize services: %v", err)
	}
	defer a.Close()

	r := router.SetupRouter(cfg.Server.Mode, router.Services{
		Store:    a.Store,
		Devices:  a.Devices,
		Metrics:  a.Metrics,
		Commands: a.Commands,
		Tunnels:  a.Tunnels,
		LogPath:  logCfg.FilePath,
	})

	server := &http.Server{
		Addr:           cfg.GetServerAddr(),
		Handler:        r,
		ReadTimeout:    cfg.Server.ReadTimeout,
		WriteTimeout:   cfg.Server.WriteTimeout,
		MaxHeaderBytes: 1 << 20, // 1MB
	}

	go func() {
		logger.WithFields(logrus.Fields{"addr": server.Addr, "mode": cfg.Server.Mode}).Info("Server starting")
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Fatalf("Failed to start server: %v", err)
		}
	}()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if cfg.File != "" {
		go watchConfig(ctx, cfg.File)
	}

	<-ctx.Done()
	logger.Info("Server shutting down...")

	// 优雅关闭服务器
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.WithError(err).Error("Server forced to shutdown")
	} else {
		logger.Info("Server shutdown complete")
	}
}

// watchConfig 监听配置文件，变更后重新应用日志配置
// 日志文件路径在启动时已注入处理器，运行中不变
func watchConfig(ctx context.Context, path string) {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		logger.WithError(err).Warn("Config watch init failed")
		return
	}
	defer watcher.Close()
	if err := watcher.Add(path); err != nil {
		logger.WithError(err).Warn("Config watch add failed")
		return
	}

	var debounce *time.Timer
	trigger := func() {
		newCfg, err := config.Load(path)
		if err != nil {
			logger.WithError(err).Warn("Config reload failed")
			return
		}
		if err := logger.Init(app.LoggerConfig(newCfg.Log)); err != nil {
			logger.WithError(err).Warn("Logger reload failed")
			return
		}
		logger.WithField("level", newCfg.Log.Level).Info("Config reloaded")
	}

	for {
		select {
		case <-ctx.Done():
			return
		case ev, ok := <-watcher.Events:
			if !ok {
				return
			}
			if ev.Op&(fsnotify.Write|fsnotify.Create|fsnotify.Rename) != 0 {
				if debounce != nil {
					debounce.Stop()
				}
				debounce = time.AfterFunc(300*time.Millisecond, trigger)
			}
		case err, ok := <-watcher.Errors:
			if !ok {
				return
			}
			logger.WithError(err).Warn("Config watch error")
		}
	}
}
