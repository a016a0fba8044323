package service

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/ssedge/ssedge/internal/database"
	"github.com/ssedge/ssedge/internal/model"
	"github.com/ssedge/ssedge/internal/util"
	"github.com/ssedge/ssedge/pkg/logger"
	"github.com/ssedge/ssedge/pkg/ssh"
)

// CommandResult 带审计记录 id 的命令结果
type CommandResult struct {
	LogID    int64  `json:"log_id"`
	Command  string `json:"command"`
	Stdout   string `json:"stdout"`
	Stderr   string `json:"stderr"`
	ExitCode int    `json:"exit_code"`
	Duration string `json:"duration"`
}

// CommandService 在已登记设备上执行命令并记录
type CommandService struct {
	store     *database.Store
	connector Connector
	now       func() time.Time
}

// NewCommandService 创建命令服务
func NewCommandService(store *database.Store, connector Connector) *CommandService {
	return &CommandService{store: store, connector: connector, now: time.Now}
}

// Run 新建会话执行一条命令；非零退出同样记录
func (s *CommandService) Run(ctx context.Context, deviceID int64, command string, cfg ssh.SessionConfig) (*CommandResult, error) {
	command = strings.TrimSpace(command)
	if command == "" {
		return nil, fmt.Errorf("%w: command is required", ErrInvalidArgument)
	}
	device, err := s.store.GetDevice(ctx, deviceID)
	if err != nil {
		return nil, err
	}

	session, err := s.connector.Open(ctx, device.Name, device.IP, cfg)
	if err != nil {
		return nil, err
	}
	res, err := session.Run(context.WithoutCancel(ctx), command)
	_ = session.Close()
	if err != nil {
		return nil, err
	}

	stdout := util.EnsureUTF8(res.Stdout)
	stderr := util.EnsureUTF8(res.Stderr)
	logger.DebugCommandOutput(device.IP, command, stdout, 5)

	var output *string
	if combined := stdout + stderr; combined != "" {
		output = &combined
	}
	id, err := s.store.InsertCommandLog(ctx, device.ID, command, output, res.ExitCode, s.now().Unix())
	if err != nil {
		return nil, err
	}
	logger.WithFields(logrus.Fields{
		"device_id": device.ID,
		"command":   command,
		"exit_code": res.ExitCode,
		"duration":  res.Duration.String(),
	}).Info("Command executed")

	return &CommandResult{
		LogID:    id,
		Command:  command,
		Stdout:   stdout,
		Stderr:   stderr,
		ExitCode: res.ExitCode,
		Duration: res.Duration.String(),
	}, nil
}

// Logs 查询设备的命令记录
func (s *CommandService) Logs(ctx context.Context, deviceID int64, limit int) ([]model.CommandLog, error) {
	if _, err := s.store.GetDevice(ctx, deviceID); err != nil {
		return nil, err
	}
	return s.store.GetCommandLogsByDevice(ctx, deviceID, limit)
}
