package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// EnvPrefix 环境变量前缀，例如 SSEDGE_DATABASE_SQLITE_PATH
const EnvPrefix = "SSEDGE"

// Config 应用配置结构
type Config struct {
	Server   ServerConfig   `mapstructure:"server"`
	Database DatabaseConfig `mapstructure:"database"`
	SSH      SSHConfig      `mapstructure:"ssh"`
	Log      LogConfig      `mapstructure:"log"`
	Metrics  MetricsConfig  `mapstructure:"metrics"`
	Archive  ArchiveConfig  `mapstructure:"archive"`

	// 实际读取到的配置文件路径，未找到文件时为空
	File string `mapstructure:"-"`
}

// ServerConfig HTTP 服务配置
type ServerConfig struct {
	Host         string        `mapstructure:"host"`
	Port         int           `mapstructure:"port"`
	Mode         string        `mapstructure:"mode"`
	ReadTimeout  time.Duration `mapstructure:"read_timeout"`
	WriteTimeout time.Duration `mapstructure:"write_timeout"`
}

// DatabaseConfig 数据库配置
type DatabaseConfig struct {
	SQLite SQLiteConfig `mapstructure:"sqlite"`
}

// SQLiteConfig SQLite 连接池配置
type SQLiteConfig struct {
	Path            string        `mapstructure:"path"`
	MaxOpenConns    int           `mapstructure:"max_open_conns"`
	MaxIdleConns    int           `mapstructure:"max_idle_conns"`
	ConnMaxLifetime time.Duration `mapstructure:"conn_max_lifetime"`
	BusyTimeoutMS   int           `mapstructure:"busy_timeout_ms"`
}

// SSHConfig 传输层配置（会话参数的默认值固定在 pkg/ssh 中）
type SSHConfig struct {
	KnownHostsPath string   `mapstructure:"known_hosts_path"`
	SSHConfigPath  string   `mapstructure:"ssh_config_path"`
	IdentityFiles  []string `mapstructure:"identity_files"`
	UseAgent       bool     `mapstructure:"use_agent"`
	// KeepAlive 会话保活间隔，0 表示不发送
	KeepAlive time.Duration `mapstructure:"keep_alive"`
}

// LogConfig 日志配置
type LogConfig struct {
	Level      string `mapstructure:"level"`
	Format     string `mapstructure:"format"`
	Output     string `mapstructure:"output"`
	FilePath   string `mapstructure:"file_path"`
	MaxSize    int    `mapstructure:"max_size"`
	MaxBackups int    `mapstructure:"max_backups"`
	MaxAge     int    `mapstructure:"max_age"`
	Compress   bool   `mapstructure:"compress"`
}

// MetricsConfig 指标采集配置
type MetricsConfig struct {
	// Persist 为 true 时按设备采集的指标写入 metrics 表
	Persist bool `mapstructure:"persist"`
	// Concurrency 批量采集的并发数
	Concurrency int `mapstructure:"concurrency"`
}

// ArchiveConfig 指标快照归档配置
type ArchiveConfig struct {
	Backend string             `mapstructure:"backend"` // none|local|minio
	Prefix  string             `mapstructure:"prefix"`
	Local   LocalArchiveConfig `mapstructure:"local"`
	Minio   MinioConfig        `mapstructure:"minio"`
}

// LocalArchiveConfig 本地归档目录
type LocalArchiveConfig struct {
	BaseDir string `mapstructure:"base_dir"`
}

// MinioConfig 对象存储配置
type MinioConfig struct {
	Host      string `mapstructure:"host"`
	Port      int    `mapstructure:"port"`
	AccessKey string `mapstructure:"access_key"`
	SecretKey string `mapstructure:"secret_key"`
	Bucket    string `mapstructure:"bucket"`
	Secure    bool   `mapstructure:"secure"`
}

// Load 加载配置
// configPath 为空时在 ./configs、$HOME/.ssedge 中查找 config.yaml，找不到则只使用默认值与环境变量；
// 显式指定的文件必须存在。
func Load(configPath string) (*Config, error) {
	v := viper.New()
	v.SetConfigType("yaml")
	setDefaults(v)

	if configPath != "" {
		v.SetConfigFile(configPath)
	} else {
		v.SetConfigName("config")
		v.AddConfigPath("./configs")
		v.AddConfigPath("$HOME/.ssedge")
	}

	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if configPath != "" || !errors.As(err, &notFound) {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}
	cfg.File = v.ConfigFileUsed()

	cfg.SSH.KnownHostsPath = ExpandHome(cfg.SSH.KnownHostsPath)
	cfg.SSH.SSHConfigPath = ExpandHome(cfg.SSH.SSHConfigPath)
	for i, p := range cfg.SSH.IdentityFiles {
		cfg.SSH.IdentityFiles[i] = ExpandHome(p)
	}
	if cfg.Metrics.Concurrency <= 0 {
		cfg.Metrics.Concurrency = 1
	}
	return &cfg, nil
}

// setDefaults 设置默认值
func setDefaults(v *viper.Viper) {
	v.SetDefault("server.host", "0.0.0.0")
	v.SetDefault("server.port", 8787)
	v.SetDefault("server.mode", "release")
	v.SetDefault("server.read_timeout", 30*time.Second)
	// 指标采集的远程命令不受连接超时约束，写超时留足余量
	v.SetDefault("server.write_timeout", 120*time.Second)

	v.SetDefault("database.sqlite.path", "./data/ssedge.db")
	v.SetDefault("database.sqlite.max_open_conns", 4)
	v.SetDefault("database.sqlite.max_idle_conns", 4)
	v.SetDefault("database.sqlite.conn_max_lifetime", time.Hour)
	v.SetDefault("database.sqlite.busy_timeout_ms", 15000)

	v.SetDefault("ssh.known_hosts_path", "~/.ssh/known_hosts")
	v.SetDefault("ssh.ssh_config_path", "~/.ssh/config")
	v.SetDefault("ssh.identity_files", []string{})
	v.SetDefault("ssh.use_agent", true)
	v.SetDefault("ssh.keep_alive", "0s")

	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "text")
	v.SetDefault("log.output", "both")
	v.SetDefault("log.file_path", "./logs/ssedge.log")
	v.SetDefault("log.max_size", 100)
	v.SetDefault("log.max_backups", 5)
	v.SetDefault("log.max_age", 30)
	v.SetDefault("log.compress", false)

	v.SetDefault("metrics.persist", false)
	v.SetDefault("metrics.concurrency", 4)

	v.SetDefault("archive.backend", "none")
	v.SetDefault("archive.prefix", "metrics")
	v.SetDefault("archive.local.base_dir", "./data/archive")
	v.SetDefault("archive.minio.host", "")
	v.SetDefault("archive.minio.port", 9000)
	v.SetDefault("archive.minio.access_key", "")
	v.SetDefault("archive.minio.secret_key", "")
	v.SetDefault("archive.minio.bucket", "")
	v.SetDefault("archive.minio.secure", false)
}

// GetServerAddr 获取服务器监听地址
func (c *Config) GetServerAddr() string {
	return fmt.Sprintf("%s:%d", c.Server.Host, c.Server.Port)
}

// ExpandHome 展开以 ~/ 开头的路径
func ExpandHome(path string) string {
	if path == "~" || strings.HasPrefix(path, "~/") {
		home, err := os.UserHomeDir()
		if err != nil {
			home = os.Getenv("HOME")
		}
		return filepath.Join(home, strings.TrimPrefix(path[1:], "/"))
	}
	return path
}
