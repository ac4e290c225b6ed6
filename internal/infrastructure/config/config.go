package config

import (
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/spf13/viper"
)

// Config holds all configuration for the importer service
type Config struct {
	App       AppConfig
	Database  DatabaseConfig
	Redis     RedisConfig
	Log       LogConfig
	HTTP      HTTPConfig
	Scheduler SchedulerConfig
	Telemetry TelemetryConfig
	Import    ImportConfig
	Storage   StorageConfig
	Kafka     KafkaConfig
	Mail      MailConfig
	Scraper   ScraperConfig
	Suppliers []SupplierConfig `validate:"dive"`
}

// LogConfig holds logging configuration
type LogConfig struct {
	Level      string // debug, info, warn, error
	Format     string // json, console
	Output     string // stdout, stderr, or file path
	MaxSizeMB  int
	MaxBackups int
	MaxAgeDays int
}

// AppConfig holds application-level configuration
type AppConfig struct {
	Name string
	Env  string
	Port string
}

// DatabaseConfig holds database connection configuration
type DatabaseConfig struct {
	Host            string
	Port            int
	User            string
	Password        string
	DBName          string
	SSLMode         string
	MaxOpenConns    int
	MaxIdleConns    int
	ConnMaxLifetime int // in minutes
	ConnMaxIdleTime int // in minutes
}

// RedisConfig holds Redis connection configuration
type RedisConfig struct {
	Enabled  bool
	Host     string
	Port     int
	Password string
	DB       int
}

// Addr returns host:port.
func (r RedisConfig) Addr() string {
	return fmt.Sprintf("%s:%d", r.Host, r.Port)
}

// HTTPConfig holds HTTP server configuration
type HTTPConfig struct {
	ReadTimeout      time.Duration
	WriteTimeout     time.Duration
	IdleTimeout      time.Duration
	CORSAllowOrigins []string
	// TriggerPerMinute limits manual import triggers per client IP.
	TriggerPerMinute int
}

// SchedulerConfig holds the import scheduler configuration
type SchedulerConfig struct {
	Enabled           bool
	MaxConcurrentJobs int
	JobTimeout        time.Duration
	RetryAttempts     int
	RetryDelay        time.Duration
	CheckInterval     time.Duration
	// SweepTime is the daily HH:MM of the archive sweep.
	SweepTime string `validate:"omitempty,datetime=15:04"`
}

// TelemetryConfig holds OpenTelemetry configuration
type TelemetryConfig struct {
	Enabled           bool
	CollectorEndpoint string
	SamplingRatio     float64
	ServiceName       string
	Insecure          bool
	MetricsEnabled    bool
	LogsEnabled       bool
	DBTraceEnabled    bool
	ProfilingEnabled  bool
	PyroscopeAddress  string
}

// ImportConfig holds the batch and cache tuning of import runs
type ImportConfig struct {
	CreateBatchSize  int
	UpdateBatchSize  int
	CreatePause      time.Duration
	UpdatePause      time.Duration
	RetryBackoff     time.Duration
	CachePageSize    int
	CachePagePause   time.Duration
	ForceGC          bool
	RunLockTTL       time.Duration
	ArchiveAfter     time.Duration
	DiscontinueAfter time.Duration
	MaxErrorDetails  int
	// AskForPrice lists brands and name terms that never show a buy price.
	AskForPrice []string
}

// StorageConfig holds S3-compatible object storage configuration
type StorageConfig struct {
	Enabled         bool
	Endpoint        string
	Region          string
	Bucket          string
	AccessKey       string
	SecretKey       string
	UseSSL          bool
	UsePathStyle    bool
	PublicURL       string
	KeyPrefix       string
	DownloadTimeout time.Duration
}

// KafkaConfig holds the product event publisher configuration
type KafkaConfig struct {
	Enabled bool
	Brokers []string
	Topic   string
}

// MailConfig holds the back-in-stock notification mail configuration
type MailConfig struct {
	Enabled    bool
	Host       string
	Port       int
	Username   string
	Password   string
	From       string   `validate:"omitempty,email"`
	Recipients []string `validate:"dive,email"`
}

// ScraperConfig holds the headless browser configuration
type ScraperConfig struct {
	// RemoteURL points to a running Chrome DevTools endpoint. Empty starts a local browser.
	RemoteURL         string
	ExecPath          string
	PageTimeout       time.Duration
	RequestsPerSecond float64
	MaxPages          int
}

// SupplierConfig is one supplier import entry
type SupplierConfig struct {
	Name     string `mapstructure:"name" validate:"required"`
	Active   bool   `mapstructure:"active"`
	FeedURL  string `mapstructure:"feed_url" validate:"omitempty,url"`
	Username string `mapstructure:"username"`
	Password string `mapstructure:"password"`
	APIKey   string `mapstructure:"api_key"`
	// Schedule lists daily run times as HH:MM.
	Schedule []string `mapstructure:"schedule" validate:"dive,datetime=15:04"`
}

// Supplier returns the entry named name.
func (c *Config) Supplier(name string) (SupplierConfig, bool) {
	for _, s := range c.Suppliers {
		if strings.EqualFold(s.Name, name) {
			return s, true
		}
	}
	return SupplierConfig{}, false
}

// Load reads configuration from config.toml and SHOP_ prefixed environment variables.
func Load() (*Config, error) {
	v := viper.New()

	v.SetConfigName("config")
	v.SetConfigType("toml")
	v.AddConfigPath(".")
	v.AddConfigPath("./backend")
	v.AddConfigPath("/app")

	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("error reading config file: %w", err)
		}
	}

	v.SetEnvPrefix("SHOP")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	cfg := &Config{
		App: AppConfig{
			Name: v.GetString("app.name"),
			Env:  v.GetString("app.env"),
			Port: v.GetString("app.port"),
		},
		Database: DatabaseConfig{
			Host:            v.GetString("database.host"),
			Port:            v.GetInt("database.port"),
			User:            v.GetString("database.user"),
			Password:        v.GetString("database.password"),
			DBName:          v.GetString("database.dbname"),
			SSLMode:         v.GetString("database.sslmode"),
			MaxOpenConns:    v.GetInt("database.max_open_conns"),
			MaxIdleConns:    v.GetInt("database.max_idle_conns"),
			ConnMaxLifetime: v.GetInt("database.conn_max_lifetime"),
			ConnMaxIdleTime: v.GetInt("database.conn_max_idle_time"),
		},
		Redis: RedisConfig{
			Enabled:  v.GetBool("redis.enabled"),
			Host:     v.GetString("redis.host"),
			Port:     v.GetInt("redis.port"),
			Password: v.GetString("redis.password"),
			DB:       v.GetInt("redis.db"),
		},
		Log: LogConfig{
			Level:      v.GetString("log.level"),
			Format:     v.GetString("log.format"),
			Output:     v.GetString("log.output"),
			MaxSizeMB:  v.GetInt("log.max_size_mb"),
			MaxBackups: v.GetInt("log.max_backups"),
			MaxAgeDays: v.GetInt("log.max_age_days"),
		},
		HTTP: HTTPConfig{
			ReadTimeout:      v.GetDuration("http.read_timeout"),
			WriteTimeout:     v.GetDuration("http.write_timeout"),
			IdleTimeout:      v.GetDuration("http.idle_timeout"),
			CORSAllowOrigins: v.GetStringSlice("http.cors_allow_origins"),
			TriggerPerMinute: v.GetInt("http.trigger_per_minute"),
		},
		Scheduler: SchedulerConfig{
			Enabled:           v.GetBool("scheduler.enabled"),
			MaxConcurrentJobs: v.GetInt("scheduler.max_concurrent_jobs"),
			JobTimeout:        v.GetDuration("scheduler.job_timeout"),
			RetryAttempts:     v.GetInt("scheduler.retry_attempts"),
			RetryDelay:        v.GetDuration("scheduler.retry_delay"),
			CheckInterval:     v.GetDuration("scheduler.check_interval"),
			SweepTime:         v.GetString("scheduler.sweep_time"),
		},
		Telemetry: TelemetryConfig{
			Enabled:           v.GetBool("telemetry.enabled"),
			CollectorEndpoint: v.GetString("telemetry.collector_endpoint"),
			SamplingRatio:     v.GetFloat64("telemetry.sampling_ratio"),
			ServiceName:       v.GetString("telemetry.service_name"),
			Insecure:          v.GetBool("telemetry.insecure"),
			MetricsEnabled:    v.GetBool("telemetry.metrics_enabled"),
			LogsEnabled:       v.GetBool("telemetry.logs_enabled"),
			DBTraceEnabled:    v.GetBool("telemetry.db_trace_enabled"),
			ProfilingEnabled:  v.GetBool("telemetry.profiling_enabled"),
			PyroscopeAddress:  v.GetString("telemetry.pyroscope_address"),
		},
		Import: ImportConfig{
			CreateBatchSize:  v.GetInt("import.create_batch_size"),
			UpdateBatchSize:  v.GetInt("import.update_batch_size"),
			CreatePause:      v.GetDuration("import.create_pause"),
			UpdatePause:      v.GetDuration("import.update_pause"),
			RetryBackoff:     v.GetDuration("import.retry_backoff"),
			CachePageSize:    v.GetInt("import.cache_page_size"),
			CachePagePause:   v.GetDuration("import.cache_page_pause"),
			ForceGC:          v.GetBool("import.force_gc"),
			RunLockTTL:       v.GetDuration("import.run_lock_ttl"),
			ArchiveAfter:     v.GetDuration("import.archive_after"),
			DiscontinueAfter: v.GetDuration("import.discontinue_after"),
			MaxErrorDetails:  v.GetInt("import.max_error_details"),
			AskForPrice:      v.GetStringSlice("import.ask_for_price"),
		},
		Storage: StorageConfig{
			Enabled:         v.GetBool("storage.enabled"),
			Endpoint:        v.GetString("storage.endpoint"),
			Region:          v.GetString("storage.region"),
			Bucket:          v.GetString("storage.bucket"),
			AccessKey:       v.GetString("storage.access_key"),
			SecretKey:       v.GetString("storage.secret_key"),
			UseSSL:          v.GetBool("storage.use_ssl"),
			UsePathStyle:    v.GetBool("storage.use_path_style"),
			PublicURL:       v.GetString("storage.public_url"),
			KeyPrefix:       v.GetString("storage.key_prefix"),
			DownloadTimeout: v.GetDuration("storage.download_timeout"),
		},
		Kafka: KafkaConfig{
			Enabled: v.GetBool("kafka.enabled"),
			Brokers: v.GetStringSlice("kafka.brokers"),
			Topic:   v.GetString("kafka.topic"),
		},
		Mail: MailConfig{
			Enabled:    v.GetBool("mail.enabled"),
			Host:       v.GetString("mail.host"),
			Port:       v.GetInt("mail.port"),
			Username:   v.GetString("mail.username"),
			Password:   v.GetString("mail.password"),
			From:       v.GetString("mail.from"),
			Recipients: v.GetStringSlice("mail.recipients"),
		},
		Scraper: ScraperConfig{
			RemoteURL:         v.GetString("scraper.remote_url"),
			ExecPath:          v.GetString("scraper.exec_path"),
			PageTimeout:       v.GetDuration("scraper.page_timeout"),
			RequestsPerSecond: v.GetFloat64("scraper.requests_per_second"),
			MaxPages:          v.GetInt("scraper.max_pages"),
		},
	}

	if err := v.UnmarshalKey("suppliers", &cfg.Suppliers); err != nil {
		return nil, fmt.Errorf("error reading suppliers: %w", err)
	}

	applyDefaults(cfg)

	if err := cfg.validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

// applyDefaults sets default values for any missing configuration
func applyDefaults(cfg *Config) {
	if cfg.App.Name == "" {
		cfg.App.Name = "supplier-importer"
	}
	if cfg.App.Env == "" {
		cfg.App.Env = "development"
	}
	if cfg.App.Port == "" {
		cfg.App.Port = "8080"
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
		cfg.Database.DBName = "eshop"
	}
	if cfg.Database.SSLMode == "" {
		cfg.Database.SSLMode = "disable"
	}
	if cfg.Database.MaxOpenConns == 0 {
		cfg.Database.MaxOpenConns = 25
	}
	if cfg.Database.MaxIdleConns == 0 {
		cfg.Database.MaxIdleConns = 5
	}
	if cfg.Database.ConnMaxLifetime == 0 {
		cfg.Database.ConnMaxLifetime = 60
	}
	if cfg.Database.ConnMaxIdleTime == 0 {
		cfg.Database.ConnMaxIdleTime = 30
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
	if cfg.Log.MaxSizeMB == 0 {
		cfg.Log.MaxSizeMB = 100
	}
	if cfg.HTTP.ReadTimeout == 0 {
		cfg.HTTP.ReadTimeout = 15 * time.Second
	}
	if cfg.HTTP.WriteTimeout == 0 {
		cfg.HTTP.WriteTimeout = 15 * time.Second
	}
	if cfg.HTTP.IdleTimeout == 0 {
		cfg.HTTP.IdleTimeout = 60 * time.Second
	}
	if cfg.HTTP.TriggerPerMinute == 0 {
		cfg.HTTP.TriggerPerMinute = 6
	}
	if cfg.Scheduler.MaxConcurrentJobs == 0 {
		cfg.Scheduler.MaxConcurrentJobs = 3
	}
	if cfg.Scheduler.JobTimeout == 0 {
		cfg.Scheduler.JobTimeout = 2 * time.Hour
	}
	if cfg.Scheduler.RetryDelay == 0 {
		cfg.Scheduler.RetryDelay = 5 * time.Minute
	}
	if cfg.Scheduler.CheckInterval == 0 {
		cfg.Scheduler.CheckInterval = time.Minute
	}
	if cfg.Scheduler.SweepTime == "" {
		cfg.Scheduler.SweepTime = "03:30"
	}
	if cfg.Telemetry.CollectorEndpoint == "" {
		cfg.Telemetry.CollectorEndpoint = "localhost:4317"
	}
	if cfg.Telemetry.SamplingRatio == 0 {
		cfg.Telemetry.SamplingRatio = 1.0
	}
	if cfg.Telemetry.ServiceName == "" {
		cfg.Telemetry.ServiceName = cfg.App.Name
	}
	if cfg.Import.CreateBatchSize == 0 {
		cfg.Import.CreateBatchSize = 10
	}
	if cfg.Import.UpdateBatchSize == 0 {
		cfg.Import.UpdateBatchSize = 20
	}
	if cfg.Import.CreatePause == 0 {
		cfg.Import.CreatePause = time.Second
	}
	if cfg.Import.UpdatePause == 0 {
		cfg.Import.UpdatePause = 500 * time.Millisecond
	}
	if cfg.Import.RetryBackoff == 0 {
		cfg.Import.RetryBackoff = time.Second
	}
	if cfg.Import.CachePageSize == 0 {
		cfg.Import.CachePageSize = 5000
	}
	if cfg.Import.CachePagePause == 0 {
		cfg.Import.CachePagePause = 100 * time.Millisecond
	}
	if cfg.Import.RunLockTTL == 0 {
		cfg.Import.RunLockTTL = 3 * time.Hour
	}
	if cfg.Import.ArchiveAfter == 0 {
		cfg.Import.ArchiveAfter = 90 * 24 * time.Hour
	}
	if cfg.Import.DiscontinueAfter == 0 {
		cfg.Import.DiscontinueAfter = 180 * 24 * time.Hour
	}
	if cfg.Import.MaxErrorDetails == 0 {
		cfg.Import.MaxErrorDetails = 100
	}
	if cfg.Storage.Region == "" {
		cfg.Storage.Region = "us-east-1"
	}
	if cfg.Storage.KeyPrefix == "" {
		cfg.Storage.KeyPrefix = "products"
	}
	if cfg.Storage.DownloadTimeout == 0 {
		cfg.Storage.DownloadTimeout = 30 * time.Second
	}
	if cfg.Kafka.Topic == "" {
		cfg.Kafka.Topic = "product-events"
	}
	if cfg.Mail.Port == 0 {
		cfg.Mail.Port = 587
	}
	if cfg.Scraper.PageTimeout == 0 {
		cfg.Scraper.PageTimeout = 45 * time.Second
	}
	if cfg.Scraper.RequestsPerSecond == 0 {
		cfg.Scraper.RequestsPerSecond = 1
	}
	if cfg.Scraper.MaxPages == 0 {
		cfg.Scraper.MaxPages = 200
	}
}

// validate performs validation on the configuration
func (c *Config) validate() error {
	if c.Database.MaxOpenConns <= 0 {
		return fmt.Errorf("database.max_open_conns must be positive")
	}
	if c.Database.MaxIdleConns > c.Database.MaxOpenConns {
		return fmt.Errorf("database.max_idle_conns (%d) cannot exceed database.max_open_conns (%d)",
			c.Database.MaxIdleConns, c.Database.MaxOpenConns)
	}
	if c.Telemetry.SamplingRatio < 0.0 || c.Telemetry.SamplingRatio > 1.0 {
		return fmt.Errorf("telemetry.sampling_ratio must be between 0.0 and 1.0, got %f", c.Telemetry.SamplingRatio)
	}
	if c.Import.CreateBatchSize < 1 || c.Import.UpdateBatchSize < 1 {
		return fmt.Errorf("import batch sizes must be positive")
	}
	if c.Import.DiscontinueAfter < c.Import.ArchiveAfter {
		return fmt.Errorf("import.discontinue_after must not be shorter than import.archive_after")
	}
	if c.Kafka.Enabled && len(c.Kafka.Brokers) == 0 {
		return fmt.Errorf("kafka.brokers is required when kafka is enabled")
	}
	if c.Storage.Enabled && c.Storage.Bucket == "" {
		return fmt.Errorf("storage.bucket is required when storage is enabled")
	}

	seen := make(map[string]struct{}, len(c.Suppliers))
	for _, s := range c.Suppliers {
		key := strings.ToLower(s.Name)
		if _, dup := seen[key]; dup {
			return fmt.Errorf("supplier %q is configured twice", s.Name)
		}
		seen[key] = struct{}{}
	}

	if err := validator.New().Struct(c); err != nil {
		return fmt.Errorf("invalid configuration: %w", err)
	}

	if c.App.Env == "production" {
		if c.Database.Password == "" {
			return fmt.Errorf("database.password is required in production")
		}
		if c.Database.SSLMode == "disable" {
			return fmt.Errorf("database.sslmode cannot be 'disable' in production")
		}
	}
	return nil
}

// DSN returns the database connection string with properly escaped values
func (d *DatabaseConfig) DSN() string {
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
