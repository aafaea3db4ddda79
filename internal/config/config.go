package config

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/cuongbtq/hotel-scout/internal/domain"
)

const (
	// MinPort is the minimum valid port number
	MinPort = 1
	// MaxPort is the maximum valid port number
	MaxPort = 65535
)

// Database drivers
const (
	DriverPostgres = "postgres"
	DriverMemory   = "memory"
)

// Config represents the complete application configuration
type Config struct {
	Server     ServerConfig     `yaml:"server"`
	Database   DatabaseConfig   `yaml:"database"`
	RabbitMQ   RabbitMQConfig   `yaml:"rabbitmq"`
	Redis      RedisConfig      `yaml:"redis"`
	Metrics    MetricsConfig    `yaml:"metrics"`
	Logging    LoggingConfig    `yaml:"logging"`
	App        AppConfig        `yaml:"app"`
	Worker     WorkerConfig     `yaml:"worker"`
	Connectors ConnectorsConfig `yaml:"connectors"`
	Pipeline   PipelineConfig   `yaml:"pipeline"`
	Defaults   DefaultsConfig   `yaml:"defaults"`
}

// ServerConfig holds HTTP server configuration
type ServerConfig struct {
	Port            int           `yaml:"port"`
	ReadTimeout     time.Duration `yaml:"read_timeout"`
	WriteTimeout    time.Duration `yaml:"write_timeout"`
	IdleTimeout     time.Duration `yaml:"idle_timeout"`
	ShutdownTimeout time.Duration `yaml:"shutdown_timeout"`
}

// DatabaseConfig holds PostgreSQL connection configuration
type DatabaseConfig struct {
	Driver          string        `yaml:"driver"`
	Host            string        `yaml:"host"`
	Port            int           `yaml:"port"`
	User            string        `yaml:"user"`
	Password        string        `yaml:"password"`
	Database        string        `yaml:"database"`
	SSLMode         string        `yaml:"sslmode"`
	MaxOpenConns    int           `yaml:"max_open_conns"`
	MaxIdleConns    int           `yaml:"max_idle_conns"`
	ConnMaxLifetime time.Duration `yaml:"conn_max_lifetime"`
	ConnMaxIdleTime time.Duration `yaml:"conn_max_idle_time"`
	ConnectTimeout  time.Duration `yaml:"connect_timeout"`
	MigrationsDir   string        `yaml:"migrations_dir"`
	AutoMigrate     bool          `yaml:"auto_migrate"`
}

// RabbitMQConfig holds RabbitMQ connection and exchange/queue configuration
type RabbitMQConfig struct {
	Host       string           `yaml:"host"`
	Port       int              `yaml:"port"`
	User       string           `yaml:"user"`
	Password   string           `yaml:"password"`
	VHost      string           `yaml:"vhost"`
	Exchange   ExchangeConfig   `yaml:"exchange"`
	Queue      QueueConfig      `yaml:"queue"`
	RoutingKey string           `yaml:"routing_key"`
	Connection ConnectionConfig `yaml:"connection"`
	Publish    PublishConfig    `yaml:"publish"`
	Consumer   ConsumerConfig   `yaml:"consumer"`
}

// ExchangeConfig holds RabbitMQ exchange configuration
type ExchangeConfig struct {
	Name       string `yaml:"name"`
	Type       string `yaml:"type"`
	Durable    bool   `yaml:"durable"`
	AutoDelete bool   `yaml:"auto_delete"`
}

// QueueConfig holds RabbitMQ queue configuration
type QueueConfig struct {
	Name       string `yaml:"name"`
	Durable    bool   `yaml:"durable"`
	AutoDelete bool   `yaml:"auto_delete"`
	Exclusive  bool   `yaml:"exclusive"`
}

// ConnectionConfig holds RabbitMQ connection settings
type ConnectionConfig struct {
	RetryAttempts     int           `yaml:"retry_attempts"`
	RetryInterval     time.Duration `yaml:"retry_interval"`
	Heartbeat         time.Duration `yaml:"heartbeat"`
	ConnectionTimeout time.Duration `yaml:"connection_timeout"`
}

// PublishConfig holds RabbitMQ publish retry settings
type PublishConfig struct {
	RetryAttempts     int           `yaml:"retry_attempts"`
	RetryInterval     time.Duration `yaml:"retry_interval"`
	BackoffMultiplier float64       `yaml:"backoff_multiplier"`
}

// ConsumerConfig holds RabbitMQ consumer settings
type ConsumerConfig struct {
	PrefetchCount int `yaml:"prefetch_count"`
}

// RedisConfig holds the status cache connection
type RedisConfig struct {
	Enabled   bool          `yaml:"enabled"`
	URL       string        `yaml:"url"`
	StatusTTL time.Duration `yaml:"status_ttl"`
}

// MetricsConfig holds the Prometheus exposition settings. The API serves
// metrics on its own port; the worker listens on Port.
type MetricsConfig struct {
	Enabled bool   `yaml:"enabled"`
	Path    string `yaml:"path"`
	Port    int    `yaml:"port"`
}

// LoggingConfig holds logging configuration
type LoggingConfig struct {
	Level        string `yaml:"level"`
	Format       string `yaml:"format"`
	Output       string `yaml:"output"`
	EnableCaller bool   `yaml:"enable_caller"`
}

// AppConfig holds application metadata
type AppConfig struct {
	Name        string `yaml:"name"`
	Version     string `yaml:"version"`
	Environment string `yaml:"environment"`
}

// WorkerConfig holds worker service configuration
type WorkerConfig struct {
	ID              string        `yaml:"id"`
	Concurrency     int           `yaml:"concurrency"`
	JobTimeout      time.Duration `yaml:"job_timeout"`
	ShutdownTimeout time.Duration `yaml:"shutdown_timeout"`
}

// ConnectorsConfig describes how the scrapers are launched
type ConnectorsConfig struct {
	WorkDir     string        `yaml:"work_dir"`
	Timeout     time.Duration `yaml:"timeout"`
	LaunchRate  float64       `yaml:"launch_rate"` // launches per second across all jobs
	LaunchBurst int           `yaml:"launch_burst"`
	Breaker     BreakerConfig `yaml:"breaker"`
	SourceA     CommandConfig `yaml:"source_a"`
	SourceB     CommandConfig `yaml:"source_b"`
}

// BreakerConfig configures the per-source circuit breaker
type BreakerConfig struct {
	FailureThreshold uint32        `yaml:"failure_threshold"`
	MaxRequests      uint32        `yaml:"max_requests"`
	Interval         time.Duration `yaml:"interval"`
	Timeout          time.Duration `yaml:"timeout"`
}

// CommandConfig is the command line of one scraper
type CommandConfig struct {
	Command string   `yaml:"command"`
	Args    []string `yaml:"args"`
	Dir     string   `yaml:"dir"`
	Env     []string `yaml:"env"`
}

// PipelineConfig holds normalization and reconciliation settings
type PipelineConfig struct {
	SourceBRate    float64 `yaml:"source_b_rate"`
	MatchThreshold float64 `yaml:"match_threshold"`
	MatchPolicy    string  `yaml:"match_policy"`
}

// DefaultsConfig fills in query parameters a client leaves out
type DefaultsConfig struct {
	Location   string  `yaml:"location"`
	PriceMin   float64 `yaml:"price_min"`
	PriceMax   float64 `yaml:"price_max"`
	Stars      float64 `yaml:"stars"`
	StayNights int     `yaml:"stay_nights"`
}

// QueryDefaults converts the section into the defaults used when resolving a job query
func (d DefaultsConfig) QueryDefaults() domain.QueryDefaults {
	return domain.QueryDefaults{
		Location:   d.Location,
		PriceMin:   d.PriceMin,
		PriceMax:   d.PriceMax,
		Stars:      d.Stars,
		StayNights: d.StayNights,
	}
}

// Load reads and parses the configuration file. Secrets may be supplied
// through the environment instead of the file.
func Load(configPath string) (*Config, error) {
	data, err := os.ReadFile(configPath)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	var config Config
	if err := yaml.Unmarshal(data, &config); err != nil {
		return nil, fmt.Errorf("failed to parse config file: %w", err)
	}

	config.applyEnv()
	config.applyDefaults()

	return &config, nil
}

func (c *Config) applyEnv() {
	c.Database.Password = envString("DATABASE_PASSWORD", c.Database.Password)
	c.RabbitMQ.Password = envString("RABBITMQ_PASSWORD", c.RabbitMQ.Password)
	c.Redis.URL = envString("REDIS_URL", c.Redis.URL)
	c.Worker.ID = envString("WORKER_ID", c.Worker.ID)
	c.Worker.Concurrency = envInt("WORKER_CONCURRENCY", c.Worker.Concurrency)
}

func (c *Config) applyDefaults() {
	if c.Database.Driver == "" {
		c.Database.Driver = DriverPostgres
	}
	if c.Database.MigrationsDir == "" {
		c.Database.MigrationsDir = "migrations"
	}
	if c.Metrics.Path == "" {
		c.Metrics.Path = "/metrics"
	}
	if c.Redis.StatusTTL == 0 {
		c.Redis.StatusTTL = 24 * time.Hour
	}
	if c.Pipeline.SourceBRate == 0 {
		c.Pipeline.SourceBRate = 122
	}
	if c.Pipeline.MatchThreshold == 0 {
		c.Pipeline.MatchThreshold = 0.8
	}
	if c.Pipeline.MatchPolicy == "" {
		c.Pipeline.MatchPolicy = "exclusive"
	}
	if c.Defaults.Location == "" {
		c.Defaults.Location = "Dhaka"
	}
	if c.Defaults.PriceMin == 0 && c.Defaults.PriceMax == 0 {
		c.Defaults.PriceMin = 1500
		c.Defaults.PriceMax = 25500
	}
	if c.Defaults.Stars == 0 {
		c.Defaults.Stars = 3
	}
	if c.Defaults.StayNights == 0 {
		c.Defaults.StayNights = 1
	}
}

// ValidateAPIConfig checks the settings the API service needs
func (c *Config) ValidateAPIConfig() error {
	if c.Server.Port < MinPort || c.Server.Port > MaxPort {
		return fmt.Errorf("invalid server port: %d (must be between %d and %d)", c.Server.Port, MinPort, MaxPort)
	}

	if err := c.validateDatabase(); err != nil {
		return err
	}

	if err := c.validateRabbitMQ(); err != nil {
		return err
	}

	if c.Redis.Enabled && c.Redis.URL == "" {
		return fmt.Errorf("redis url is required when redis is enabled")
	}

	if c.Defaults.PriceMin > c.Defaults.PriceMax {
		return fmt.Errorf("defaults price_min must not exceed price_max")
	}

	if c.Defaults.Stars < 0 || c.Defaults.Stars > 5 {
		return fmt.Errorf("defaults stars must be between 0 and 5")
	}

	return nil
}

// ValidateWorkerConfig checks the settings the worker service needs
func (c *Config) ValidateWorkerConfig() error {
	if err := c.validateDatabase(); err != nil {
		return err
	}

	if err := c.validateRabbitMQ(); err != nil {
		return err
	}

	if c.Worker.Concurrency <= 0 {
		return fmt.Errorf("worker concurrency must be greater than 0")
	}

	if c.Worker.JobTimeout <= 0 {
		return fmt.Errorf("worker job_timeout must be greater than 0")
	}

	if c.Worker.ShutdownTimeout <= 0 {
		return fmt.Errorf("worker shutdown_timeout must be greater than 0")
	}

	if c.Connectors.WorkDir == "" {
		return fmt.Errorf("connectors work_dir is required")
	}

	if c.Connectors.Timeout <= 0 {
		return fmt.Errorf("connectors timeout must be greater than 0")
	}

	if c.Connectors.SourceA.Command == "" || c.Connectors.SourceB.Command == "" {
		return fmt.Errorf("connectors source_a and source_b commands are required")
	}

	if c.Pipeline.SourceBRate <= 0 {
		return fmt.Errorf("pipeline source_b_rate must be greater than 0")
	}

	if c.Pipeline.MatchThreshold <= 0 || c.Pipeline.MatchThreshold > 1 {
		return fmt.Errorf("pipeline match_threshold must be in (0, 1]")
	}

	if c.Metrics.Enabled && (c.Metrics.Port < MinPort || c.Metrics.Port > MaxPort) {
		return fmt.Errorf("invalid metrics port: %d (must be between %d and %d)", c.Metrics.Port, MinPort, MaxPort)
	}

	return nil
}

func (c *Config) validateDatabase() error {
	switch c.Database.Driver {
	case DriverMemory:
		return nil
	case DriverPostgres:
	default:
		return fmt.Errorf("unknown database driver: %q", c.Database.Driver)
	}

	if c.Database.Host == "" {
		return fmt.Errorf("database host is required")
	}

	if c.Database.Port < MinPort || c.Database.Port > MaxPort {
		return fmt.Errorf("invalid database port: %d (must be between %d and %d)", c.Database.Port, MinPort, MaxPort)
	}

	if c.Database.Database == "" {
		return fmt.Errorf("database name is required")
	}

	return nil
}

func (c *Config) validateRabbitMQ() error {
	if c.RabbitMQ.Host == "" {
		return fmt.Errorf("rabbitmq host is required")
	}

	if c.RabbitMQ.Port < MinPort || c.RabbitMQ.Port > MaxPort {
		return fmt.Errorf("invalid rabbitmq port: %d (must be between %d and %d)", c.RabbitMQ.Port, MinPort, MaxPort)
	}

	if c.RabbitMQ.Exchange.Name == "" {
		return fmt.Errorf("rabbitmq exchange name is required")
	}

	if c.RabbitMQ.Queue.Name == "" {
		return fmt.Errorf("rabbitmq queue name is required")
	}

	return nil
}

func envString(key, defaultVal string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return defaultVal
}

func envInt(key string, defaultVal int) int {
	v := os.Getenv(key)
	if v == "" {
		return defaultVal
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return defaultVal
	}
	return n
}
