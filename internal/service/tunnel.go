package service

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/ssedge/ssedge/internal/database"
	"github.com/ssedge/ssedge/internal/model"
)

// TunnelService 隧道状态记录，只维护状态不建立转发
type TunnelService struct {
	store *database.Store
	now   func() time.Time
}

// NewTunnelService 创建隧道服务
func NewTunnelService(store *database.Store) *TunnelService {
	return &TunnelService{store: store, now: time.Now}
}

// Create 为设备新增隧道记录，status 为空时记为 unknown
func (s *TunnelService) Create(ctx context.Context, deviceID int64, status string) (*model.Tunnel, error) {
	status, err := normalizeStatus(status)
	if err != nil {
		return nil, err
	}
	checked := s.now().Unix()
	id, err := s.store.InsertTunnel(ctx, deviceID, status, &checked)
	if err != nil {
		return nil, err
	}
	return &model.Tunnel{ID: id, DeviceID: deviceID, Status: status, LastChecked: &checked}, nil
}

// Get 查询隧道
func (s *TunnelService) Get(ctx context.Context, id int64) (*model.Tunnel, error) {
	return s.store.GetTunnel(ctx, id)
}

// ListByDevice 列出设备的隧道
func (s *TunnelService) ListByDevice(ctx context.Context, deviceID int64, status string) ([]model.Tunnel, error) {
	if _, err := s.store.GetDevice(ctx, deviceID); err != nil {
		return nil, err
	}
	return s.store.GetTunnelsByDevice(ctx, deviceID, strings.TrimSpace(status))
}

// UpdateStatus 更新状态与检查时间
func (s *TunnelService) UpdateStatus(ctx context.Context, id int64, status string) (*model.Tunnel, error) {
	status, err := normalizeStatus(status)
	if err != nil {
		return nil, err
	}
	n, err := s.store.UpdateTunnelStatus(ctx, id, status, s.now().Unix())
	if err != nil {
		return nil, err
	}
	if n == 0 {
		return nil, &database.StoreError{Op: "update tunnel", Err: database.ErrNotFound}
	}
	return s.store.GetTunnel(ctx, id)
}

// Delete 删除隧道记录
func (s *TunnelService) Delete(ctx context.Context, id int64) (int64, error) {
	return s.store.DeleteTunnel(ctx, id)
}

func normalizeStatus(status string) (string, error) {
	switch s := strings.ToLower(strings.TrimSpace(status)); s {
	case "":
		return model.TunnelStatusUnknown, nil
	case model.TunnelStatusUp, model.TunnelStatusDown, model.TunnelStatusUnknown:
		return s, nil
	default:
		return "", fmt.Errorf("%w: unsupported tunnel status %q", ErrInvalidArgument, status)
	}
}
