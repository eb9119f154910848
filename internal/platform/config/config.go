package config

import (
	"fmt"
	"net/url"
	"os"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// Config はアプリケーション全体の設定を表現します。
type Config struct {
	Server   ServerConfig   `yaml:"server"`
	Database DatabaseConfig `yaml:"database"`
	Log      LogConfig      `yaml:"log"`
	Metrics  MetricsConfig  `yaml:"metrics"`
	Broker   BrokerConfig   `yaml:"broker"`
}

// ServerConfig は gRPC サーバーに関する設定です。
type ServerConfig struct {
	ListenAddr string `yaml:"listen_addr"`
}

// DatabaseConfig は PostgreSQL 接続に関する設定です。
type DatabaseConfig struct {
	Host               string        `yaml:"host"`
	Port               int           `yaml:"port"`
	User               string        `yaml:"user"`
	Password           string        `yaml:"password"`
	Name               string        `yaml:"name"`
	SSLMode            string        `yaml:"ssl_mode"`
	MaxOpenConns       int           `yaml:"max_open_conns"`
	MaxIdleConns       int           `yaml:"max_idle_conns"`
	ConnMaxLifetime    time.Duration `yaml:"-"`
	ConnMaxIdleTime    time.Duration `yaml:"-"`
	ConnMaxLifetimeRaw string        `yaml:"conn_max_lifetime"`
	ConnMaxIdleTimeRaw string        `yaml:"conn_max_idle_time"`
}

// LogConfig はロガーの設定です。
type LogConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
}

// MetricsConfig は Prometheus エンドポイントの設定です。ListenAddr が空の場合は公開しません。
type MetricsConfig struct {
	ListenAddr string `yaml:"listen_addr"`
	Namespace  string `yaml:"namespace"`
}

// BrokerConfig はメッセージキューの消費に関する設定です。
type BrokerConfig struct {
	PollInterval         time.Duration `yaml:"-"`
	VisibilityTimeout    time.Duration `yaml:"-"`
	RetryBackoff         time.Duration `yaml:"-"`
	PollIntervalRaw      string        `yaml:"poll_interval"`
	VisibilityTimeoutRaw string        `yaml:"visibility_timeout"`
	RetryBackoffRaw      string        `yaml:"retry_backoff"`
	BatchSize            int           `yaml:"batch_size"`
	Workers              int           `yaml:"workers"`
	MaxAttempts          int           `yaml:"max_attempts"`
}

const (
	defaultLogLevel          = "info"
	defaultLogFormat         = "text"
	defaultMetricsNamespace  = "worker_lifecycle"
	defaultPollInterval      = time.Second
	defaultVisibilityTimeout = 30 * time.Second
	defaultRetryBackoff      = 5 * time.Second
	defaultBatchSize         = 20
	defaultWorkers           = 4
	defaultMaxAttempts       = 10
)

// Load は指定されたパスから設定ファイルを読み込みます。
func Load(path string) (*Config, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("config: read file %s: %w", path, err)
	}

	var cfg Config
	if err := yaml.Unmarshal(b, &cfg); err != nil {
		return nil, fmt.Errorf("config: parse yaml: %w", err)
	}

	if err := cfg.validateAndNormalize(); err != nil {
		return nil, err
	}

	return &cfg, nil
}

func (c *Config) validateAndNormalize() error {
	if c.Server.ListenAddr == "" {
		return fmt.Errorf("config: server.listen_addr must be set")
	}

	if err := c.Database.validateAndNormalize(); err != nil {
		return err
	}
	if err := c.Log.validateAndNormalize(); err != nil {
		return err
	}
	c.Metrics.normalize()
	if err := c.Broker.validateAndNormalize(); err != nil {
		return err
	}

	return nil
}

func (d *DatabaseConfig) validateAndNormalize() error {
	if d.Host == "" {
		return fmt.Errorf("config: database.host must be set")
	}
	if d.Port == 0 {
		return fmt.Errorf("config: database.port must be set")
	}
	if d.User == "" {
		return fmt.Errorf("config: database.user must be set")
	}
	if d.Password == "" {
		return fmt.Errorf("config: database.password must be set")
	}
	if d.Name == "" {
		return fmt.Errorf("config: database.name must be set")
	}
	if d.SSLMode == "" {
		d.SSLMode = "disable"
	}

	lifetime, err := parseDurationAllowEmpty(d.ConnMaxLifetimeRaw)
	if err != nil {
		return fmt.Errorf("config: database.conn_max_lifetime: %w", err)
	}
	d.ConnMaxLifetime = lifetime

	idleTime, err := parseDurationAllowEmpty(d.ConnMaxIdleTimeRaw)
	if err != nil {
		return fmt.Errorf("config: database.conn_max_idle_time: %w", err)
	}
	d.ConnMaxIdleTime = idleTime

	return nil
}

func (l *LogConfig) validateAndNormalize() error {
	l.Level = strings.ToLower(strings.TrimSpace(l.Level))
	if l.Level == "" {
		l.Level = defaultLogLevel
	}

	l.Format = strings.ToLower(strings.TrimSpace(l.Format))
	switch l.Format {
	case "":
		l.Format = defaultLogFormat
	case "text", "json":
	default:
		return fmt.Errorf("config: log.format must be text or json, got %q", l.Format)
	}

	return nil
}

func (m *MetricsConfig) normalize() {
	if m.Namespace == "" {
		m.Namespace = defaultMetricsNamespace
	}
}

func (b *BrokerConfig) validateAndNormalize() error {
	var err error
	if b.PollInterval, err = parseDurationDefault(b.PollIntervalRaw, defaultPollInterval); err != nil {
		return fmt.Errorf("config: broker.poll_interval: %w", err)
	}
	if b.VisibilityTimeout, err = parseDurationDefault(b.VisibilityTimeoutRaw, defaultVisibilityTimeout); err != nil {
		return fmt.Errorf("config: broker.visibility_timeout: %w", err)
	}
	if b.RetryBackoff, err = parseDurationDefault(b.RetryBackoffRaw, defaultRetryBackoff); err != nil {
		return fmt.Errorf("config: broker.retry_backoff: %w", err)
	}

	if b.BatchSize < 0 || b.Workers < 0 || b.MaxAttempts < 0 {
		return fmt.Errorf("config: broker.batch_size, broker.workers and broker.max_attempts must not be negative")
	}
	if b.BatchSize == 0 {
		b.BatchSize = defaultBatchSize
	}
	if b.Workers == 0 {
		b.Workers = defaultWorkers
	}
	if b.MaxAttempts == 0 {
		b.MaxAttempts = defaultMaxAttempts
	}

	return nil
}

func parseDurationAllowEmpty(raw string) (time.Duration, error) {
	if raw == "" {
		return 0, nil
	}
	d, err := time.ParseDuration(raw)
	if err != nil {
		return 0, err
	}
	return d, nil
}

func parseDurationDefault(raw string, fallback time.Duration) (time.Duration, error) {
	d, err := parseDurationAllowEmpty(raw)
	if err != nil {
		return 0, err
	}
	if d <= 0 {
		return fallback, nil
	}
	return d, nil
}

// DSN は pgx 用の接続文字列を返します。認証情報はエスケープされます。
func (d DatabaseConfig) DSN() string {
	u := url.URL{
		Scheme:   "postgres",
		User:     url.UserPassword(d.User, d.Password),
		Host:     d.Host + ":" + strconv.Itoa(d.Port),
		Path:     "/" + d.Name,
		RawQuery: "sslmode=" + url.QueryEscape(d.SSLMode),
	}
	return u.String()
}
