package config

import (
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Config holds all application configuration
type Config struct {
	App          AppConfig
	HTTP         HTTPConfig
	Database     DatabaseConfig
	Redis        RedisConfig
	Log          LogConfig
	JWT          JWTConfig
	MercadoLivre MercadoLivreConfig
	Shopee       ShopeeConfig
	Fiscal       FiscalConfig
	Storage      StorageConfig
	SMTP         SMTPConfig
	Scheduler    SchedulerConfig
	Secrets      SecretsConfig
	Telemetry    TelemetryConfig
}

// AppConfig holds application-specific settings
type AppConfig struct {
	Name string
	Env  string
	Port string
}

// HTTPConfig holds HTTP server configuration
type HTTPConfig struct {
	ReadTimeout    time.Duration
	WriteTimeout   time.Duration
	IdleTimeout    time.Duration
	MaxHeaderBytes int
	RequestTimeout time.Duration
	MaxBodyBytes   int64
	CORSOrigins    []string
	// RateLimit is the number of requests allowed per client per RateWindow; 0 disables limiting
	RateLimit  int
	RateWindow time.Duration
	Swagger    SwaggerConfig
}

// SwaggerConfig controls access to the API documentation
type SwaggerConfig struct {
	Enabled     bool
	RequireAuth bool
	AllowedIPs  []string
}

// DatabaseConfig holds database connection settings.
// Driver selects between postgres (Host/Port/...) and sqlite (Path).
type DatabaseConfig struct {
	Driver          string
	Host            string
	Port            int
	User            string
	Password        string
	DBName          string
	SSLMode         string
	Path            string
	MaxOpenConns    int
	MaxIdleConns    int
	ConnMaxLifetime int // in minutes
}

// RedisConfig holds Redis connection settings
type RedisConfig struct {
	Enabled  bool
	Host     string
	Port     int
	Password string
	DB       int
}

// Addr returns host:port for the redis client
func (r RedisConfig) Addr() string {
	return fmt.Sprintf("%s:%d", r.Host, r.Port)
}

// LogConfig holds logging configuration
type LogConfig struct {
	Level  string // debug, info, warn, error
	Format string // json, console
	Output string // stdout, stderr, or file path
}

// JWTConfig holds settings for operator route authentication
type JWTConfig struct {
	Secret          string
	Issuer          string
	TokenExpiration time.Duration
}

// MercadoLivreConfig holds Mercado Livre OAuth application settings
type MercadoLivreConfig struct {
	Enabled      bool
	ClientID     string
	ClientSecret string
	RedirectURI  string
	AuthURL      string
	APIBaseURL   string
	Timeout      time.Duration
}

// ShopeeConfig toggles the simulated Shopee marketplace
type ShopeeConfig struct {
	Enabled bool
}

// FiscalConfig holds fiscal emission settings
type FiscalConfig struct {
	APIKey           string
	BaseURL          string
	Timeout          time.Duration
	ArtifactDir      string
	DocumentRenderer string // text, chromedp
	ChromePath       string
}

// StorageConfig holds artifact storage settings
type StorageConfig struct {
	Type            string // local, s3
	Endpoint        string
	Region          string
	Bucket          string
	AccessKeyID     string
	SecretAccessKey string
	UsePathStyle    bool
	Prefix          string
}

// SMTPConfig holds email delivery settings
type SMTPConfig struct {
	Enabled  bool
	Host     string
	Port     int
	Username string
	Password string
	From     string
	TLS      bool
}

// SchedulerConfig holds pipeline scheduler settings
type SchedulerConfig struct {
	Enabled        bool
	SyncInterval   time.Duration
	DrainInterval  time.Duration
	DrainBatchSize int
	RunTimeout     time.Duration
	HistorySize    int
}

// SecretsConfig holds the master key used to encrypt stored secrets
type SecretsConfig struct {
	MasterKey string
}

// TelemetryConfig holds OpenTelemetry and profiling configuration
type TelemetryConfig struct {
	MetricsEnabled    bool
	TracingEnabled    bool
	LogsEnabled       bool
	DBTracing         bool
	CollectorEndpoint string
	ExportInterval    time.Duration
	SamplingRatio     float64
	ServiceName       string
	Insecure          bool
	ProfilingEnabled  bool
	PyroscopeAddress  string
}

// Load loads configuration from TOML file and environment variables
// Priority (highest to lowest):
// 1. Environment variables with MSYNC_ prefix (e.g., MSYNC_DATABASE_PASSWORD)
// 2. config.toml
// 3. Built-in defaults
func Load() (*Config, error) {
	v := viper.New()

	v.SetConfigName("config")
	v.SetConfigType("toml")
	v.AddConfigPath(".")
	v.AddConfigPath("./config")
	v.AddConfigPath("/etc/marketsync")

	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("error reading config file: %w", err)
		}
		// Config file not found is OK, we'll use defaults and env vars
	}

	v.SetEnvPrefix("MSYNC")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	cfg := &Config{
		App: AppConfig{
			Name: v.GetString("app.name"),
			Env:  v.GetString("app.env"),
			Port: v.GetString("app.port"),
		},
		HTTP: HTTPConfig{
			ReadTimeout:    v.GetDuration("http.read_timeout"),
			WriteTimeout:   v.GetDuration("http.write_timeout"),
			IdleTimeout:    v.GetDuration("http.idle_timeout"),
			MaxHeaderBytes: v.GetInt("http.max_header_bytes"),
			RequestTimeout: v.GetDuration("http.request_timeout"),
			MaxBodyBytes:   v.GetInt64("http.max_body_bytes"),
			CORSOrigins:    v.GetStringSlice("http.cors_origins"),
			RateLimit:      v.GetInt("http.rate_limit"),
			RateWindow:     v.GetDuration("http.rate_window"),
			Swagger: SwaggerConfig{
				Enabled:     v.GetBool("http.swagger.enabled"),
				RequireAuth: v.GetBool("http.swagger.require_auth"),
				AllowedIPs:  v.GetStringSlice("http.swagger.allowed_ips"),
			},
		},
		Database: DatabaseConfig{
			Driver:          v.GetString("database.driver"),
			Host:            v.GetString("database.host"),
			Port:            v.GetInt("database.port"),
			User:            v.GetString("database.user"),
			Password:        v.GetString("database.password"),
			DBName:          v.GetString("database.dbname"),
			SSLMode:         v.GetString("database.sslmode"),
			Path:            v.GetString("database.path"),
			MaxOpenConns:    v.GetInt("database.max_open_conns"),
			MaxIdleConns:    v.GetInt("database.max_idle_conns"),
			ConnMaxLifetime: v.GetInt("database.conn_max_lifetime"),
		},
		Redis: RedisConfig{
			Enabled:  v.GetBool("redis.enabled"),
			Host:     v.GetString("redis.host"),
			Port:     v.GetInt("redis.port"),
			Password: v.GetString("redis.password"),
			DB:       v.GetInt("redis.db"),
		},
		Log: LogConfig{
			Level:  v.GetString("log.level"),
			Format: v.GetString("log.format"),
			Output: v.GetString("log.output"),
		},
		JWT: JWTConfig{
			Secret:          v.GetString("jwt.secret"),
			Issuer:          v.GetString("jwt.issuer"),
			TokenExpiration: v.GetDuration("jwt.token_expiration"),
		},
		MercadoLivre: MercadoLivreConfig{
			Enabled:      v.GetBool("mercadolivre.enabled"),
			ClientID:     v.GetString("mercadolivre.client_id"),
			ClientSecret: v.GetString("mercadolivre.client_secret"),
			RedirectURI:  v.GetString("mercadolivre.redirect_uri"),
			AuthURL:      v.GetString("mercadolivre.auth_url"),
			APIBaseURL:   v.GetString("mercadolivre.api_base_url"),
			Timeout:      v.GetDuration("mercadolivre.timeout"),
		},
		Shopee: ShopeeConfig{
			Enabled: v.GetBool("shopee.enabled"),
		},
		Fiscal: FiscalConfig{
			APIKey:           v.GetString("fiscal.api_key"),
			BaseURL:          v.GetString("fiscal.base_url"),
			Timeout:          v.GetDuration("fiscal.timeout"),
			ArtifactDir:      v.GetString("fiscal.artifact_dir"),
			DocumentRenderer: v.GetString("fiscal.document_renderer"),
			ChromePath:       v.GetString("fiscal.chrome_path"),
		},
		Storage: StorageConfig{
			Type:            v.GetString("storage.type"),
			Endpoint:        v.GetString("storage.endpoint"),
			Region:          v.GetString("storage.region"),
			Bucket:          v.GetString("storage.bucket"),
			AccessKeyID:     v.GetString("storage.access_key_id"),
			SecretAccessKey: v.GetString("storage.secret_access_key"),
			UsePathStyle:    v.GetBool("storage.use_path_style"),
			Prefix:          v.GetString("storage.prefix"),
		},
		SMTP: SMTPConfig{
			Enabled:  v.GetBool("smtp.enabled"),
			Host:     v.GetString("smtp.host"),
			Port:     v.GetInt("smtp.port"),
			Username: v.GetString("smtp.username"),
			Password: v.GetString("smtp.password"),
			From:     v.GetString("smtp.from"),
			TLS:      v.GetBool("smtp.tls"),
		},
		Scheduler: SchedulerConfig{
			Enabled:        v.GetBool("scheduler.enabled"),
			SyncInterval:   v.GetDuration("scheduler.sync_interval"),
			DrainInterval:  v.GetDuration("scheduler.drain_interval"),
			DrainBatchSize: v.GetInt("scheduler.drain_batch_size"),
			RunTimeout:     v.GetDuration("scheduler.run_timeout"),
			HistorySize:    v.GetInt("scheduler.history_size"),
		},
		Secrets: SecretsConfig{
			MasterKey: v.GetString("secrets.master_key"),
		},
		Telemetry: TelemetryConfig{
			MetricsEnabled:    v.GetBool("telemetry.metrics_enabled"),
			TracingEnabled:    v.GetBool("telemetry.tracing_enabled"),
			LogsEnabled:       v.GetBool("telemetry.logs_enabled"),
			DBTracing:         v.GetBool("telemetry.db_tracing"),
			CollectorEndpoint: v.GetString("telemetry.collector_endpoint"),
			ExportInterval:    v.GetDuration("telemetry.export_interval"),
			SamplingRatio:     v.GetFloat64("telemetry.sampling_ratio"),
			ServiceName:       v.GetString("telemetry.service_name"),
			Insecure:          v.GetBool("telemetry.insecure"),
			ProfilingEnabled:  v.GetBool("telemetry.profiling_enabled"),
			PyroscopeAddress:  v.GetString("telemetry.pyroscope_address"),
		},
	}

	applyDefaults(cfg)

	if err := cfg.validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

// applyDefaults sets default values for any empty config fields
func applyDefaults(cfg *Config) {
	if cfg.App.Name == "" {
		cfg.App.Name = "marketsync"
	}
	if cfg.App.Env == "" {
		cfg.App.Env = "development"
	}
	if cfg.App.Port == "" {
		cfg.App.Port = "8080"
	}
	if cfg.HTTP.ReadTimeout == 0 {
		cfg.HTTP.ReadTimeout = 15 * time.Second
	}
	if cfg.HTTP.WriteTimeout == 0 {
		cfg.HTTP.WriteTimeout = 30 * time.Second
	}
	if cfg.HTTP.IdleTimeout == 0 {
		cfg.HTTP.IdleTimeout = 60 * time.Second
	}
	if cfg.HTTP.MaxHeaderBytes == 0 {
		cfg.HTTP.MaxHeaderBytes = 1 << 20 // 1MB
	}
	if cfg.HTTP.RequestTimeout == 0 {
		cfg.HTTP.RequestTimeout = 60 * time.Second
	}
	if cfg.HTTP.MaxBodyBytes == 0 {
		cfg.HTTP.MaxBodyBytes = 1 << 20
	}
	if cfg.HTTP.RateWindow == 0 {
		cfg.HTTP.RateWindow = time.Minute
	}
	if cfg.Database.Driver == "" {
		cfg.Database.Driver = "postgres"
	}
	if cfg.Database.Host == "" {
		cfg.Database.Host = "localhost"
	}
	if cfg.Database.Port == 0 {
		cfg.Database.Port = 5432
	}
	if cfg.Database.User == "" {
		cfg.Database.User = "postgres"
	}
	if cfg.Database.DBName == "" {
		cfg.Database.DBName = "marketsync"
	}
	if cfg.Database.SSLMode == "" {
		cfg.Database.SSLMode = "disable"
	}
	if cfg.Database.Path == "" {
		cfg.Database.Path = "marketsync.db"
	}
	if cfg.Database.MaxOpenConns == 0 {
		cfg.Database.MaxOpenConns = 10
	}
	if cfg.Database.MaxIdleConns == 0 {
		cfg.Database.MaxIdleConns = 2
	}
	if cfg.Database.ConnMaxLifetime == 0 {
		cfg.Database.ConnMaxLifetime = 60
	}
	if cfg.Redis.Host == "" {
		cfg.Redis.Host = "localhost"
	}
	if cfg.Redis.Port == 0 {
		cfg.Redis.Port = 6379
	}
	if cfg.Log.Level == "" {
		cfg.Log.Level = "info"
	}
	if cfg.Log.Format == "" {
		cfg.Log.Format = "console"
	}
	if cfg.Log.Output == "" {
		cfg.Log.Output = "stdout"
	}
	if cfg.JWT.Issuer == "" {
		cfg.JWT.Issuer = "marketsync"
	}
	if cfg.JWT.TokenExpiration == 0 {
		cfg.JWT.TokenExpiration = 12 * time.Hour
	}
	if cfg.MercadoLivre.AuthURL == "" {
		cfg.MercadoLivre.AuthURL = "https://auth.mercadolibre.com.br/authorization"
	}
	if cfg.MercadoLivre.APIBaseURL == "" {
		cfg.MercadoLivre.APIBaseURL = "https://api.mercadolibre.com"
	}
	if cfg.MercadoLivre.Timeout == 0 {
		cfg.MercadoLivre.Timeout = 30 * time.Second
	}
	if cfg.Fiscal.BaseURL == "" {
		cfg.Fiscal.BaseURL = "https://bling.com.br/Api/v2"
	}
	if cfg.Fiscal.Timeout == 0 {
		cfg.Fiscal.Timeout = 60 * time.Second
	}
	if cfg.Fiscal.ArtifactDir == "" {
		cfg.Fiscal.ArtifactDir = "nfe_files"
	}
	if cfg.Fiscal.DocumentRenderer == "" {
		cfg.Fiscal.DocumentRenderer = "text"
	}
	if cfg.Storage.Type == "" {
		cfg.Storage.Type = "local"
	}
	if cfg.Storage.Region == "" {
		cfg.Storage.Region = "us-east-1"
	}
	if cfg.SMTP.Port == 0 {
		cfg.SMTP.Port = 587
	}
	if cfg.SMTP.From == "" {
		cfg.SMTP.From = cfg.SMTP.Username
	}
	if cfg.Scheduler.SyncInterval == 0 {
		cfg.Scheduler.SyncInterval = 5 * time.Minute
	}
	if cfg.Scheduler.DrainInterval == 0 {
		cfg.Scheduler.DrainInterval = 10 * time.Minute
	}
	if cfg.Scheduler.DrainBatchSize == 0 {
		cfg.Scheduler.DrainBatchSize = 5
	}
	if cfg.Scheduler.RunTimeout == 0 {
		cfg.Scheduler.RunTimeout = 4 * time.Minute
	}
	if cfg.Scheduler.HistorySize == 0 {
		cfg.Scheduler.HistorySize = 50
	}
	if cfg.Telemetry.CollectorEndpoint == "" {
		cfg.Telemetry.CollectorEndpoint = "localhost:4317"
	}
	if cfg.Telemetry.ExportInterval == 0 {
		cfg.Telemetry.ExportInterval = 60 * time.Second
	}
	if cfg.Telemetry.ServiceName == "" {
		cfg.Telemetry.ServiceName = "marketsync"
	}
	if cfg.Telemetry.SamplingRatio == 0 {
		cfg.Telemetry.SamplingRatio = 1.0
	}
}

// MaxDrainBatchSize bounds scheduler.drain_batch_size. It matches the cap
// the queue processor applies.
const MaxDrainBatchSize = 100

// validate performs validation on the configuration
func (c *Config) validate() error {
	switch c.Database.Driver {
	case "postgres", "sqlite":
	default:
		return fmt.Errorf("database.driver must be postgres or sqlite, got %q", c.Database.Driver)
	}
	if c.Database.MaxOpenConns <= 0 {
		return fmt.Errorf("database.max_open_conns must be positive")
	}
	if c.Database.MaxIdleConns > c.Database.MaxOpenConns {
		return fmt.Errorf("database.max_idle_conns (%d) cannot exceed database.max_open_conns (%d)",
			c.Database.MaxIdleConns, c.Database.MaxOpenConns)
	}

	switch c.Storage.Type {
	case "local":
	case "s3":
		if c.Storage.Bucket == "" {
			return fmt.Errorf("storage.bucket is required when storage.type is s3")
		}
	default:
		return fmt.Errorf("storage.type must be local or s3, got %q", c.Storage.Type)
	}

	switch c.Fiscal.DocumentRenderer {
	case "text", "chromedp":
	default:
		return fmt.Errorf("fiscal.document_renderer must be text or chromedp, got %q", c.Fiscal.DocumentRenderer)
	}

	if c.MercadoLivre.Enabled {
		if c.MercadoLivre.ClientID == "" || c.MercadoLivre.ClientSecret == "" {
			return fmt.Errorf("mercadolivre.client_id and mercadolivre.client_secret are required when enabled")
		}
		if c.MercadoLivre.RedirectURI == "" {
			return fmt.Errorf("mercadolivre.redirect_uri is required when enabled")
		}
	}

	if c.SMTP.Enabled && c.SMTP.Host == "" {
		return fmt.Errorf("smtp.host is required when smtp is enabled")
	}

	if c.Scheduler.SyncInterval <= 0 || c.Scheduler.DrainInterval <= 0 {
		return fmt.Errorf("scheduler intervals must be positive")
	}
	if c.Scheduler.DrainBatchSize <= 0 || c.Scheduler.DrainBatchSize > MaxDrainBatchSize {
		return fmt.Errorf("scheduler.drain_batch_size must be between 1 and %d", MaxDrainBatchSize)
	}

	if c.Telemetry.SamplingRatio < 0 || c.Telemetry.SamplingRatio > 1 {
		return fmt.Errorf("telemetry.sampling_ratio must be between 0 and 1")
	}
	if c.Telemetry.ProfilingEnabled && c.Telemetry.PyroscopeAddress == "" {
		return fmt.Errorf("telemetry.pyroscope_address is required when profiling is enabled")
	}

	if c.Secrets.MasterKey != "" && len(c.Secrets.MasterKey) < 16 {
		return fmt.Errorf("secrets.master_key must be at least 16 characters")
	}

	if c.App.Env == "production" {
		if len(c.JWT.Secret) < 32 {
			return fmt.Errorf("jwt.secret must be at least 32 characters in production")
		}
		if c.Database.Driver == "postgres" && c.Database.SSLMode == "disable" {
			return fmt.Errorf("database.sslmode cannot be 'disable' in production")
		}
		if c.Secrets.MasterKey == "" {
			return fmt.Errorf("secrets.master_key is required in production")
		}
	}

	return nil
}

// DSN returns the database connection string with properly escaped values
func (d *DatabaseConfig) DSN() string {
	if d.Driver == "sqlite" {
		return d.Path
	}
	u := url.URL{
		Scheme: "postgres",
		User:   url.UserPassword(d.User, d.Password),
		Host:   fmt.Sprintf("%s:%d", d.Host, d.Port),
		Path:   d.DBName,
	}
	q := u.Query()
	q.Set("sslmode", d.SSLMode)
	u.RawQuery = q.Encode()
	return u.String()
}
