package service

import (
	"context"
	"errors"
	"fmt"
	"net"
	"strings"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/ssedge/ssedge/internal/database"
	"github.com/ssedge/ssedge/internal/model"
	"github.com/ssedge/ssedge/pkg/logger"
	"github.com/ssedge/ssedge/pkg/ssh"
)

// ErrInvalidArgument 调用参数不合法
var ErrInvalidArgument = errors.New("invalid argument")

// RegisterResult 连接并登记的结果
type RegisterResult struct {
	Message string        `json:"message"`
	Device  *model.Device `json:"device"`
}

// DeviceService 设备登记与连接
type DeviceService struct {
	store     *database.Store
	connector Connector
	now       func() time.Time
}

// NewDeviceService 创建设备服务
func NewDeviceService(store *database.Store, connector Connector) *DeviceService {
	return &DeviceService{store: store, connector: connector, now: time.Now}
}

// AddDevice 直接登记设备，不做连通性检查
func (s *DeviceService) AddDevice(ctx context.Context, name, ip string) (*model.Device, error) {
	name, ip = strings.TrimSpace(name), strings.TrimSpace(ip)
	if err := validateHost(name, ip); err != nil {
		return nil, err
	}
	s.warnDuplicate(ctx, name, ip)
	id, err := s.store.InsertDevice(ctx, name, ip, nil)
	if err != nil {
		return nil, err
	}
	logger.WithFields(logrus.Fields{"id": id, "name": name, "ip": ip}).Info("Device added")
	return &model.Device{ID: id, Name: name, IP: ip}, nil
}

// DeleteDevice 删除设备，返回影响行数
func (s *DeviceService) DeleteDevice(ctx context.Context, id int64) (int64, error) {
	n, err := s.store.DeleteDevice(ctx, id)
	if err != nil {
		return 0, err
	}
	logger.WithFields(logrus.Fields{"id": id, "rows": n}).Info("Device deleted")
	return n, nil
}

// ListDevices 按 id 顺序列出设备
func (s *DeviceService) ListDevices(ctx context.Context) ([]model.Device, error) {
	return s.store.GetAllDevices(ctx)
}

// GetDevice 查询单个设备
func (s *DeviceService) GetDevice(ctx context.Context, id int64) (*model.Device, error) {
	return s.store.GetDevice(ctx, id)
}

// ConnectAndRegister 建立会话成功后登记设备
// 两步不在同一事务中：登记失败时设备不会被记录，由调用方整体重试
func (s *DeviceService) ConnectAndRegister(ctx context.Context, hostname, ip string, cfg ssh.SessionConfig) (*RegisterResult, error) {
	hostname, ip = strings.TrimSpace(hostname), strings.TrimSpace(ip)
	if err := validateHost(hostname, ip); err != nil {
		return nil, err
	}
	resolved := cfg.Resolve()
	log := logger.WithFields(logrus.Fields{
		"hostname": hostname,
		"address":  resolved.Address(ip),
		"policy":   resolved.HostKeyPolicy.String(),
	})
	log.Info("Attempting SSH connection")

	session, err := s.connector.Open(ctx, hostname, ip, cfg)
	if err != nil {
		log.WithError(err).Error("SSH connection failed")
		return nil, err
	}
	_ = session.Close()

	s.warnDuplicate(ctx, hostname, ip)
	seen := s.now().Unix()
	id, err := s.store.InsertDevice(ctx, hostname, ip, &seen)
	if err != nil {
		log.WithError(err).Error("Device registration failed after successful connection")
		return nil, err
	}
	log.WithField("id", id).Info("Device added successfully")

	return &RegisterResult{
		Message: fmt.Sprintf("Successfully connected to %s at IP %s", hostname, ip),
		Device:  &model.Device{ID: id, Name: hostname, IP: ip, LastSeen: &seen},
	}, nil
}

// TestConnection 只做连通性测试，不写库
func (s *DeviceService) TestConnection(ctx context.Context, hostname, ip string, cfg ssh.SessionConfig) (string, error) {
	hostname, ip = strings.TrimSpace(hostname), strings.TrimSpace(ip)
	if err := validateHost(hostname, ip); err != nil {
		return "", err
	}
	msg, err := s.connector.Test(ctx, hostname, ip, cfg)
	if err != nil {
		logger.WithError(err).WithField("hostname", hostname).Warn("Connection test failed")
		return "", err
	}
	return msg, nil
}

// warnDuplicate 同一 ip 重复登记时只记录告警，不阻止写入
func (s *DeviceService) warnDuplicate(ctx context.Context, name, ip string) {
	existing, err := s.store.GetDevicesByIP(ctx, ip)
	if err != nil || len(existing) == 0 {
		return
	}
	logger.WithFields(logrus.Fields{
		"name":     name,
		"ip":       ip,
		"existing": len(existing),
	}).Warn("Device with the same ip is already registered; a duplicate row will be created")
}

func validateHost(name, ip string) error {
	if name == "" {
		return fmt.Errorf("%w: name is required", ErrInvalidArgument)
	}
	if ip == "" {
		return fmt.Errorf("%w: ip is required", ErrInvalidArgument)
	}
	if strings.ContainsAny(ip, " \t/@") {
		return fmt.Errorf("%w: malformed ip %q", ErrInvalidArgument, ip)
	}
	if net.ParseIP(ip) == nil && !validHostname(ip) {
		return fmt.Errorf("%w: malformed ip %q", ErrInvalidArgument, ip)
	}
	return nil
}

// validHostname 允许 DNS 名称作为地址
func validHostname(h string) bool {
	if len(h) > 253 {
		return false
	}
	for _, label := range strings.Split(h, ".") {
		if label == "" || len(label) > 63 {
			return false
		}
		for _, r := range label {
			if !(r == '-' || r >= '0' && r <= '9' || r >= 'a' && r <= 'z' || r >= 'A' && r <= 'Z') {
				return false
			}
		}
	}
	return true
}
