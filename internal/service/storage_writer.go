package service

import (
	"bytes"
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"net"
	"net/http"
	"os"
	"path"
	"path/filepath"
	"regexp"
	"strings"
	"sync"
	"time"

	minio "github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"

	"github.com/ssedge/ssedge/internal/config"
	"github.com/ssedge/ssedge/pkg/logger"
)

// StorageWriter 抽象存储写入器
type StorageWriter interface {
	Write(ctx context.Context, meta StorageMeta, data []byte, contentType string) (StoredObject, error)
}

// StorageMeta 写入元数据，对象路径为 <prefix>/<device>-<id>/<YYYYMMDD>/<HHMMSS>.json
// 设备名允许重复，id 用于区分同名设备
type StorageMeta struct {
	DeviceID   int64
	DeviceName string
	DeviceIP   string
	Taken      time.Time
}

// StoredObject 存储的对象信息
type StoredObject struct {
	URI         string `json:"uri"`
	Size        int64  `json:"size"`
	Checksum    string `json:"checksum"`
	ContentType string `json:"content_type"`
}

// objectKey 本地与 MinIO 共用的相对路径（POSIX 风格）
func objectKey(prefix string, meta StorageMeta) string {
	label := strings.TrimSpace(meta.DeviceName)
	if label == "" {
		label = strings.TrimSpace(meta.DeviceIP)
	}
	taken := meta.Taken
	if taken.IsZero() {
		taken = time.Now()
	}
	parts := []string{}
	if p := strings.Trim(strings.TrimSpace(prefix), "/"); p != "" {
		parts = append(parts, p)
	}
	dir := slug(label)
	if meta.DeviceID > 0 {
		dir = fmt.Sprintf("%s-%d", dir, meta.DeviceID)
	}
	parts = append(parts, dir, taken.Format("20060102"), taken.Format("150405")+".json")
	return path.Join(parts...)
}

// NewStorageWriter 根据 archive.backend 创建写入器，none 时返回 nil
func NewStorageWriter(cfg config.ArchiveConfig) StorageWriter {
	switch strings.ToLower(strings.TrimSpace(cfg.Backend)) {
	case "local":
		return &LocalStorageWriter{cfg: cfg}
	case "minio":
		return &DelegatingStorageWriter{local: &LocalStorageWriter{cfg: cfg}, minio: initMinioWriter(cfg)}
	default:
		return nil
	}
}

// DelegatingStorageWriter 优先写 MinIO，失败时回退本地
type DelegatingStorageWriter struct {
	local *LocalStorageWriter
	minio *MinioStorageWriter
}

func (w *DelegatingStorageWriter) Write(ctx context.Context, meta StorageMeta, data []byte, contentType string) (StoredObject, error) {
	if w.minio == nil {
		logger.Warn("MinIO backend selected but client not initialized; falling back to local")
		obj, lerr := w.local.Write(ctx, meta, data, contentType)
		if lerr != nil {
			return StoredObject{}, fmt.Errorf("minio client not initialized; local fallback failed: %w", lerr)
		}
		// 返回对象同时返回预警错误，便于上层记录但不中断流程
		return obj, fmt.Errorf("minio client not initialized; wrote to local instead")
	}
	obj, err := w.minio.Write(ctx, meta, data, contentType)
	if err != nil {
		logger.WithError(err).Warn("MinIO write failed; falling back to local")
		objLocal, lerr := w.local.Write(ctx, meta, data, contentType)
		if lerr != nil {
			return StoredObject{}, fmt.Errorf("minio write failed: %v; local fallback failed: %w", err, lerr)
		}
		return objLocal, fmt.Errorf("minio write failed: %w; fell back to local successfully", err)
	}
	return obj, nil
}

// LocalStorageWriter 本地文件写入
type LocalStorageWriter struct {
	cfg config.ArchiveConfig
}

func (w *LocalStorageWriter) Write(ctx context.Context, meta StorageMeta, data []byte, contentType string) (StoredObject, error) {
	baseDir := strings.TrimSpace(w.cfg.Local.BaseDir)
	if baseDir == "" {
		baseDir = "./data/archive"
	}
	fullPath := filepath.Join(baseDir, filepath.FromSlash(objectKey(w.cfg.Prefix, meta)))
	if err := os.MkdirAll(filepath.Dir(fullPath), 0o755); err != nil {
		return StoredObject{}, fmt.Errorf("failed to create dir: %w", err)
	}
	if err := os.WriteFile(fullPath, data, 0o644); err != nil {
		return StoredObject{}, fmt.Errorf("failed to write file: %w", err)
	}

	return StoredObject{
		URI:         "file://" + fullPath,
		Size:        int64(len(data)),
		Checksum:    checksum(data),
		ContentType: contentTypeOr(contentType),
	}, nil
}

// MinioStorageWriter MinIO 对象存储写入
type MinioStorageWriter struct {
	cfg           config.ArchiveConfig
	client        *minio.Client
	endpoint      string
	mu            sync.Mutex
	bucketEnsured bool
}

// initMinioWriter 初始化 MinIO 写入器，配置不完整时返回 nil
func initMinioWriter(cfg config.ArchiveConfig) *MinioStorageWriter {
	host := strings.TrimSpace(cfg.Minio.Host)
	port := cfg.Minio.Port
	if host == "" || port <= 0 {
		logger.Warn("MinIO configuration incomplete; host/port missing")
		return nil
	}
	endpoint := net.JoinHostPort(host, fmt.Sprint(port))

	transport := &http.Transport{
		DialContext:           (&net.Dialer{Timeout: 5 * time.Second, KeepAlive: 30 * time.Second}).DialContext,
		TLSHandshakeTimeout:   5 * time.Second,
		ResponseHeaderTimeout: 30 * time.Second,
		IdleConnTimeout:       90 * time.Second,
		MaxIdleConnsPerHost:   16,
	}

	client, err := minio.New(endpoint, &minio.Options{
		Creds:     credentials.NewStaticV4(cfg.Minio.AccessKey, cfg.Minio.SecretKey, ""),
		Secure:    cfg.Minio.Secure,
		Transport: transport,
	})
	if err != nil {
		logger.WithError(err).Error("MinIO client initialization failed")
		return nil
	}
	return &MinioStorageWriter{cfg: cfg, client: client, endpoint: endpoint}
}

// Write 将内容写入 MinIO，不做重试
func (w *MinioStorageWriter) Write(ctx context.Context, meta StorageMeta, data []byte, contentType string) (StoredObject, error) {
	bucket := strings.TrimSpace(w.cfg.Minio.Bucket)
	if bucket == "" {
		return StoredObject{}, fmt.Errorf("minio bucket not configured")
	}

	w.mu.Lock()
	if !w.bucketEnsured {
		if err := w.ensureBucket(ctx, bucket); err != nil {
			w.mu.Unlock()
			return StoredObject{}, fmt.Errorf("minio ensure bucket failed on %s: %w", w.endpoint, err)
		}
		w.bucketEnsured = true
	}
	w.mu.Unlock()

	objectName := objectKey(w.cfg.Prefix, meta)
	ct := contentTypeOr(contentType)
	_, err := w.client.PutObject(ctx, bucket, objectName, bytes.NewReader(data), int64(len(data)), minio.PutObjectOptions{ContentType: ct})
	if err != nil {
		return StoredObject{}, fmt.Errorf("minio put object failed: %w", err)
	}

	return StoredObject{
		URI:         "minio://" + path.Join(bucket, objectName),
		Size:        int64(len(data)),
		Checksum:    checksum(data),
		ContentType: ct,
	}, nil
}

// ensureBucket 校验并创建 bucket
func (w *MinioStorageWriter) ensureBucket(ctx context.Context, bucket string) error {
	exists, err := w.client.BucketExists(ctx, bucket)
	if err != nil {
		return err
	}
	if exists {
		return nil
	}
	return w.client.MakeBucket(ctx, bucket, minio.MakeBucketOptions{})
}

func checksum(data []byte) string {
	sum := sha256.Sum256(data)
	return "sha256:" + hex.EncodeToString(sum[:])
}

func contentTypeOr(ct string) string {
	if ct != "" {
		return ct
	}
	return "application/json"
}

var slugRe = regexp.MustCompile(`[^a-z0-9._-]+`)

func slug(s string) string {
	s = strings.TrimSpace(s)
	s = strings.ToLower(s)
	s = strings.ReplaceAll(s, " ", "_")
	s = strings.ReplaceAll(s, "/", "_")
	s = strings.ReplaceAll(s, "\\", "_")
	s = slugRe.ReplaceAllString(s, "")
	if s == "" {
		s = "unknown"
	}
	return s
}
