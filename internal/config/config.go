package config

import (
	"errors"
	"fmt"
	"net/url"
	"os"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

// Store backends.
const (
	BackendMemory   = "memory"
	BackendSQLite   = "sqlite"
	BackendSheets   = "sheets"
	BackendPostgres = "postgres"
)

// Lock backends.
const (
	LockMemory = "memory"
	LockRedis  = "redis"
)

type Config struct {
	App            AppConfig            `yaml:"app"`
	Logging        LoggingConfig        `yaml:"logging"`
	Monitoring     MonitoringConfig     `yaml:"monitoring"`
	API            APIConfig            `yaml:"api"`
	Store          StoreConfig          `yaml:"store"`
	Lock           LockConfig           `yaml:"lock"`
	Redis          RedisConfig          `yaml:"redis"`
	Database       DatabaseConfig       `yaml:"database"`
	Backup         BackupConfig         `yaml:"backup"`
	Google         GoogleConfig         `yaml:"google"`
	Postgres       PostgresConfig       `yaml:"postgres"`
	Client         ClientConfig         `yaml:"client"`
	Session        SessionConfig        `yaml:"session"`
	BootstrapAdmin BootstrapAdminConfig `yaml:"bootstrap_admin"`
	Notify         NotifyConfig         `yaml:"notify"`
	Events         EventsConfig         `yaml:"events"`
	Exports        ExportConfig         `yaml:"exports"`
}

type AppConfig struct {
	Name        string `yaml:"name"`
	Environment string `yaml:"environment"`
	Version     string `yaml:"version"`
}

type LoggingConfig struct {
	Level    string `yaml:"level"`
	Format   string `yaml:"format"`
	Output   string `yaml:"output"`
	FilePath string `yaml:"file_path"`
}

type MonitoringConfig struct {
	PrometheusEnabled bool `yaml:"prometheus_enabled"`
	PrometheusPort    int  `yaml:"prometheus_port"`
}

type APIConfig struct {
	Enabled   bool               `yaml:"enabled"`
	HTTP      APIHTTPConfig      `yaml:"http"`
	Auth      APIAuthConfig      `yaml:"auth"`
	RateLimit APIRateLimitConfig `yaml:"rate_limit"`
}

type APIHTTPConfig struct {
	Enabled         bool          `yaml:"enabled"`
	Port            int           `yaml:"port"`
	ReadTimeout     time.Duration `yaml:"read_timeout"`
	WriteTimeout    time.Duration `yaml:"write_timeout"`
	ShutdownTimeout time.Duration `yaml:"shutdown_timeout"`
}

type APIAuthConfig struct {
	Enabled      bool           `yaml:"enabled"`
	HeaderAPIKey string         `yaml:"header_api_key"`
	HeaderExtra  string         `yaml:"header_extra"`
	APIKeys      []APIClientKey `yaml:"api_keys"`
}

type APIClientKey struct {
	Key         string   `yaml:"key"`
	Extra       string   `yaml:"extra"`
	Name        string   `yaml:"name"`
	Permissions []string `yaml:"permissions"`
}

type APIRateLimitConfig struct {
	RPS   float64 `yaml:"rps"`
	Burst int     `yaml:"burst"`
}

type StoreConfig struct {
	Backend     string        `yaml:"backend"`
	LockWait    time.Duration `yaml:"lock_wait"`
	SnapshotTTL time.Duration `yaml:"snapshot_ttl"`
}

type LockConfig struct {
	Backend string        `yaml:"backend"`
	Key     string        `yaml:"key"`
	TTL     time.Duration `yaml:"ttl"`
}

type RedisConfig struct {
	Address  string `yaml:"address"`
	Password string `yaml:"password"`
	DB       int    `yaml:"db"`
	PoolSize int    `yaml:"pool_size"`
}

type DatabaseConfig struct {
	Path string `yaml:"path"`
}

type BackupConfig struct {
	Enabled       bool   `yaml:"enabled"`
	Schedule      string `yaml:"schedule"`
	RetentionDays int    `yaml:"retention_days"`
	StoragePath   string `yaml:"storage_path"`
}

type GoogleConfig struct {
	CredentialsFile string `yaml:"credentials_file"`
	SpreadsheetID   string `yaml:"spreadsheet_id"`
}

type PostgresConfig struct {
	URL      string `yaml:"url"`
	Host     string `yaml:"host"`
	Port     int    `yaml:"port"`
	User     string `yaml:"user"`
	Password string `yaml:"password"`
	DBName   string `yaml:"dbname"`
	SSLMode  string `yaml:"sslmode"`
}

// DSN returns URL when set, otherwise a URL assembled from the discrete fields.
func (p PostgresConfig) DSN() string {
	if p.URL != "" {
		return p.URL
	}
	if p.Host == "" {
		return ""
	}
	u := url.URL{
		Scheme: "postgres",
		User:   url.UserPassword(p.User, p.Password),
		Host:   fmt.Sprintf("%s:%d", p.Host, p.Port),
		Path:   "/" + p.DBName,
	}
	if p.SSLMode != "" {
		u.RawQuery = url.Values{"sslmode": {p.SSLMode}}.Encode()
	}
	return u.String()
}

type ClientConfig struct {
	BaseURL     string        `yaml:"base_url"`
	APIKey      string        `yaml:"api_key"`
	APIExtra    string        `yaml:"api_extra"`
	Timeout     time.Duration `yaml:"timeout"`
	Workers     int           `yaml:"workers"`
	QueueSize   int           `yaml:"queue_size"`
	CacheTTL    time.Duration `yaml:"cache_ttl"`
	JournalPath string        `yaml:"journal_path"`
}

type SessionConfig struct {
	Secret    string        `yaml:"secret"`
	Issuer    string        `yaml:"issuer"`
	TTL       time.Duration `yaml:"ttl"`
	TokenFile string        `yaml:"token_file"`
}

type BootstrapAdminConfig struct {
	FullName string `yaml:"full_name"`
	Mobile   string `yaml:"mobile"`
	Email    string `yaml:"email"`
	Password string `yaml:"password"`
}

type NotifyConfig struct {
	TelegramToken  string `yaml:"telegram_token"`
	TelegramChatID int64  `yaml:"telegram_chat_id"`
	Debug          bool   `yaml:"debug"`
}

type EventsConfig struct {
	Enabled bool     `yaml:"enabled"`
	Brokers []string `yaml:"brokers"`
	Topic   string   `yaml:"topic"`
}

type ExportConfig struct {
	Path string `yaml:"path"`
}

// Load reads configPath, expanding ${VAR} references from the environment and
// an optional .env file next to the working directory.
func Load(configPath string) (*Config, error) {
	if err := godotenv.Load(".env"); err != nil && !errors.Is(err, os.ErrNotExist) {
		return nil, fmt.Errorf("load .env: %w", err)
	}

	data, err := os.ReadFile(configPath)
	if err != nil {
		return nil, err
	}

	expandedData := []byte(os.ExpandEnv(string(data)))

	var config Config
	if err := yaml.Unmarshal(expandedData, &config); err != nil {
		return nil, err
	}

	config.applyDefaults()

	if err := config.Validate(); err != nil {
		return nil, fmt.Errorf("config validation failed: %w", err)
	}

	return &config, nil
}

func (c *Config) Validate() error {
	switch c.Store.Backend {
	case BackendMemory:
	case BackendSQLite:
		if c.Database.Path == "" {
			return errors.New("database path is required for the sqlite backend")
		}
	case BackendSheets:
		if c.Google.CredentialsFile == "" || c.Google.SpreadsheetID == "" {
			return errors.New("google credentials_file and spreadsheet_id are required for the sheets backend")
		}
	case BackendPostgres:
		if c.Postgres.DSN() == "" {
			return errors.New("postgres url or host is required for the postgres backend")
		}
	default:
		return fmt.Errorf("unknown store backend %q", c.Store.Backend)
	}

	switch c.Lock.Backend {
	case LockMemory:
	case LockRedis:
		if c.Redis.Address == "" {
			return errors.New("redis address is required for the redis lock")
		}
	default:
		return fmt.Errorf("unknown lock backend %q", c.Lock.Backend)
	}

	if c.API.HTTP.Enabled && c.API.Auth.Enabled && len(c.API.Auth.APIKeys) == 0 {
		return errors.New("api auth is enabled but no api_keys are configured")
	}
	for _, k := range c.API.Auth.APIKeys {
		if k.Key == "" {
			return fmt.Errorf("api key %q has an empty key", k.Name)
		}
	}

	if c.Session.Secret != "" && len(c.Session.Secret) < 16 {
		return errors.New("session secret must be at least 16 characters")
	}
	if c.BootstrapAdmin.Password != "" && c.BootstrapAdmin.Mobile == "" && c.BootstrapAdmin.Email == "" {
		return errors.New("bootstrap_admin needs a mobile or email")
	}
	if c.Events.Enabled && (len(c.Events.Brokers) == 0 || c.Events.Topic == "") {
		return errors.New("events brokers and topic are required when events are enabled")
	}
	if c.Client.Workers < 0 || c.Client.QueueSize < 0 {
		return errors.New("client workers and queue_size must not be negative")
	}
	return nil
}

func (c *Config) applyDefaults() {
	if c.App.Name == "" {
		c.App.Name = "aquaflow"
	}
	if c.API.HTTP.Port == 0 {
		c.API.HTTP.Port = 8080
	}
	if c.API.HTTP.ReadTimeout == 0 {
		c.API.HTTP.ReadTimeout = 15 * time.Second
	}
	if c.API.HTTP.WriteTimeout == 0 {
		c.API.HTTP.WriteTimeout = 60 * time.Second
	}
	if c.API.HTTP.ShutdownTimeout == 0 {
		c.API.HTTP.ShutdownTimeout = 10 * time.Second
	}
	if c.Monitoring.PrometheusEnabled && c.Monitoring.PrometheusPort == 0 {
		c.Monitoring.PrometheusPort = 9090
	}
	if !c.API.HTTP.Enabled && c.API.Enabled {
		c.API.HTTP.Enabled = true
	}
	if c.API.Auth.HeaderAPIKey == "" {
		c.API.Auth.HeaderAPIKey = "x-api-key"
	}
	if c.API.Auth.HeaderExtra == "" {
		c.API.Auth.HeaderExtra = "x-api-extra"
	}

	if c.Store.Backend == "" {
		c.Store.Backend = BackendMemory
	}
	if c.Store.LockWait == 0 {
		c.Store.LockWait = 30 * time.Second
	}
	if c.Store.SnapshotTTL == 0 {
		c.Store.SnapshotTTL = 30 * time.Second
	}
	if c.Lock.Backend == "" {
		c.Lock.Backend = LockMemory
	}
	if c.Lock.TTL == 0 {
		c.Lock.TTL = 2 * c.Store.LockWait
	}

	if c.Backup.StoragePath == "" && c.Database.Path != "" {
		c.Backup.StoragePath = "backups"
	}

	if c.Client.BaseURL == "" {
		c.Client.BaseURL = fmt.Sprintf("http://localhost:%d", c.API.HTTP.Port)
	}
	if c.Client.Timeout == 0 {
		c.Client.Timeout = 45 * time.Second
	}
	if c.Client.Workers == 0 {
		c.Client.Workers = 4
	}
	if c.Client.QueueSize == 0 {
		c.Client.QueueSize = 64
	}

	if c.Session.Issuer == "" {
		c.Session.Issuer = c.App.Name
	}
	if c.Session.TTL == 0 {
		c.Session.TTL = 12 * time.Hour
	}
	if c.Session.TokenFile == "" {
		c.Session.TokenFile = ".aquaflow_session"
	}
	if c.BootstrapAdmin.FullName == "" {
		c.BootstrapAdmin.FullName = "Administrator"
	}

	if c.Events.Topic == "" {
		c.Events.Topic = "aquaflow.events"
	}
	if c.Exports.Path == "" {
		c.Exports.Path = "exports"
	}
}
