package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/sirupsen/logrus"
	"golang.org/x/sync/errgroup"

	"github.com/ssedge/ssedge/internal/database"
	"github.com/ssedge/ssedge/internal/model"
	"github.com/ssedge/ssedge/pkg/logger"
	"github.com/ssedge/ssedge/pkg/ssh"
)

// MetricsSink 指标快照的可选去向
type MetricsSink interface {
	Name() string
	Record(ctx context.Context, device model.Device, m *model.SystemMetrics) error
}

// StoreSink 写入 metrics 表（cpu 与内存百分比）
type StoreSink struct {
	store *database.Store
}

// NewStoreSink 创建数据库去向
func NewStoreSink(store *database.Store) *StoreSink {
	return &StoreSink{store: store}
}

func (s *StoreSink) Name() string { return "store" }

func (s *StoreSink) Record(ctx context.Context, device model.Device, m *model.SystemMetrics) error {
	_, err := s.store.InsertMetric(ctx, device.ID, m.CPUUsage, m.MemoryPercent, m.Timestamp)
	return err
}

// ArchiveSink 以 JSON 写入本地目录或对象存储
type ArchiveSink struct {
	writer StorageWriter
}

// NewArchiveSink 创建归档去向
func NewArchiveSink(writer StorageWriter) *ArchiveSink {
	return &ArchiveSink{writer: writer}
}

func (s *ArchiveSink) Name() string { return "archive" }

func (s *ArchiveSink) Record(ctx context.Context, device model.Device, m *model.SystemMetrics) error {
	data, err := json.Marshal(struct {
		DeviceID int64  `json:"device_id"`
		Name     string `json:"name"`
		IP       string `json:"ip"`
		*model.SystemMetrics
	}{device.ID, device.Name, device.IP, m})
	if err != nil {
		return err
	}
	obj, err := s.writer.Write(ctx, StorageMeta{
		DeviceID:   device.ID,
		DeviceName: device.Name,
		DeviceIP:   device.IP,
		Taken:      time.Unix(m.Timestamp, 0),
	}, data, "application/json")
	if obj.URI != "" {
		logger.WithFields(logrus.Fields{"device_id": device.ID, "uri": obj.URI}).Debug("Metrics snapshot archived")
	}
	return err
}

// SinkError 去向写入失败，指标本身仍然有效
type SinkError struct {
	Errs []error
}

func (e *SinkError) Error() string {
	return fmt.Sprintf("metrics collected but not fully recorded: %v", errors.Join(e.Errs...))
}

func (e *SinkError) Unwrap() []error { return e.Errs }

// DeviceMetrics 批量采集中单台设备的结果
type DeviceMetrics struct {
	Device  model.Device         `json:"device"`
	Metrics *model.SystemMetrics `json:"metrics,omitempty"`
	Error   string               `json:"error,omitempty"`
	Warning string               `json:"warning,omitempty"`
}

// MetricsService 按需采集指标
// 每次调用都新建会话，不复用会话也不缓存结果
type MetricsService struct {
	store       *database.Store
	connector   Connector
	collector   *MetricsCollector
	sinks       []MetricsSink
	concurrency int
	now         func() time.Time
}

// NewMetricsService 创建指标服务；sinks 为空时只返回快照不落地
func NewMetricsService(store *database.Store, connector Connector, concurrency int, sinks ...MetricsSink) *MetricsService {
	if concurrency < 1 {
		concurrency = 1
	}
	return &MetricsService{
		store:       store,
		connector:   connector,
		collector:   NewMetricsCollector(),
		sinks:       sinks,
		concurrency: concurrency,
		now:         time.Now,
	}
}

// FetchMetrics 连接 ip 并采集一次快照，不写任何去向
func (s *MetricsService) FetchMetrics(ctx context.Context, ip string, cfg ssh.SessionConfig) (*model.SystemMetrics, error) {
	if err := validateHost(ip, ip); err != nil {
		return nil, err
	}
	session, err := s.connector.Open(ctx, ip, ip, cfg)
	if err != nil {
		return nil, err
	}
	defer session.Close()

	m, err := s.collector.Collect(ctx, session)
	if err != nil {
		logger.WithError(err).WithField("ip", ip).Warn("Metrics collection failed")
		return nil, err
	}
	return m, nil
}

// FetchDeviceMetrics 采集已登记设备，并写入配置的去向
// 去向失败时返回快照与 *SinkError
func (s *MetricsService) FetchDeviceMetrics(ctx context.Context, deviceID int64, cfg ssh.SessionConfig) (*model.SystemMetrics, error) {
	device, err := s.store.GetDevice(ctx, deviceID)
	if err != nil {
		return nil, err
	}
	return s.fetchDevice(ctx, *device, cfg)
}

func (s *MetricsService) fetchDevice(ctx context.Context, device model.Device, cfg ssh.SessionConfig) (*model.SystemMetrics, error) {
	session, err := s.connector.Open(ctx, device.Name, device.IP, cfg)
	if err != nil {
		return nil, err
	}
	m, err := s.collector.Collect(ctx, session)
	_ = session.Close()
	if err != nil {
		return nil, err
	}

	var errs []error
	if _, err := s.store.TouchDevice(ctx, device.ID, s.now().Unix()); err != nil {
		errs = append(errs, err)
	}
	for _, sink := range s.sinks {
		if err := sink.Record(ctx, device, m); err != nil {
			logger.WithError(err).WithFields(logrus.Fields{"device_id": device.ID, "sink": sink.Name()}).Warn("Metrics sink failed")
			errs = append(errs, fmt.Errorf("%s: %w", sink.Name(), err))
		}
	}
	if len(errs) > 0 {
		return m, &SinkError{Errs: errs}
	}
	return m, nil
}

// History 查询设备的历史指标（时间倒序）
func (s *MetricsService) History(ctx context.Context, deviceID int64, limit int) ([]model.Metric, error) {
	if _, err := s.store.GetDevice(ctx, deviceID); err != nil {
		return nil, err
	}
	return s.store.GetMetricsByDevice(ctx, deviceID, limit)
}

// FetchAllMetrics 并发采集全部设备，单台失败记录在结果中
func (s *MetricsService) FetchAllMetrics(ctx context.Context, cfg ssh.SessionConfig) ([]DeviceMetrics, error) {
	devices, err := s.store.GetAllDevices(ctx)
	if err != nil {
		return nil, err
	}

	results := make([]DeviceMetrics, len(devices))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(s.concurrency)
	for i, d := range devices {
		i, d := i, d
		g.Go(func() error {
			results[i].Device = d
			m, err := s.fetchDevice(gctx, d, cfg)
			results[i].Metrics = m
			var sinkErr *SinkError
			switch {
			case err == nil:
			case errors.As(err, &sinkErr) && m != nil:
				results[i].Warning = err.Error()
			default:
				results[i].Error = err.Error()
			}
			return nil
		})
	}
	_ = g.Wait()

	logger.WithField("devices", len(devices)).Info("Metrics fan-out finished")
	return results, nil
}
