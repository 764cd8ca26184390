package config

import (
	"os"

	"gopkg.in/yaml.v3"
)

var GlobalConfig *Config

// Config global configuration
type Config struct {
	Server   ServerConfig   `yaml:"server"`
	Redis    RedisConfig    `yaml:"redis"`
	MySQL    MySQLConfig    `yaml:"mysql"`
	Worker   WorkerConfig   `yaml:"worker"`
	Health   HealthConfig   `yaml:"health"`
	Dispatch DispatchConfig `yaml:"dispatch"`
	Reports  ReportsConfig  `yaml:"reports"`
	Logger   LoggerConfig   `yaml:"logger"`
}

// ServerConfig server configuration
type ServerConfig struct {
	Port   int    `yaml:"port"`
	Mode   string `yaml:"mode"`    // debug, release
	APIKey string `yaml:"api_key"` // Shared key for mutating routes (empty disables auth)
}

// RedisConfig Redis configuration
type RedisConfig struct {
	Addr     string `yaml:"addr"`
	Password string `yaml:"password"`
	DB       int    `yaml:"db"`
}

// MySQLConfig result archive database (optional; empty host disables archival)
type MySQLConfig struct {
	Host     string `yaml:"host"`
	Port     int    `yaml:"port"`
	User     string `yaml:"user"`
	Password string `yaml:"password"`
	Database string `yaml:"database"`
}

// WorkerConfig fleet heartbeat configuration
type WorkerConfig struct {
	HeartbeatInterval int `yaml:"heartbeat_interval"` // Expected heartbeat cadence (seconds)
	HeartbeatTimeout  int `yaml:"heartbeat_timeout"`  // Seconds without heartbeat before a worker is faulty
}

// TimeoutPolicy what happens to a running job that exceeds its deadline
type TimeoutPolicy string

const (
	TimeoutPolicyFail    TimeoutPolicy = "fail"    // Job becomes failed, worker stays active
	TimeoutPolicyRequeue TimeoutPolicy = "requeue" // Job returns to pending, worker marked faulty
)

// HealthConfig background sweep configuration
type HealthConfig struct {
	CheckInterval    int           `yaml:"check_interval"`     // Worker sweep interval (seconds)
	JobCheckInterval int           `yaml:"job_check_interval"` // Job timeout sweep interval (seconds)
	JobTimeout       int           `yaml:"job_timeout"`        // Max job execution time (seconds)
	TimeoutPolicy    TimeoutPolicy `yaml:"timeout_policy"`     // fail or requeue
}

// DispatchConfig dispatcher configuration
type DispatchConfig struct {
	TickInterval int `yaml:"tick_interval"` // Safety-net dispatch interval (seconds)
	MaxTxRetries int `yaml:"max_tx_retries"`
}

// ReportsConfig campaign report generation
type ReportsConfig struct {
	Dir         string `yaml:"dir"`         // Directory for generated CSV files
	Concurrency int    `yaml:"concurrency"` // Report queue concurrency
	MaxRetry    int    `yaml:"max_retry"`
}

// LoggerConfig logger configuration
type LoggerConfig struct {
	Level  string           `yaml:"level"`  // debug, info, warn, error
	Output string           `yaml:"output"` // console, file, both
	File   LoggerFileConfig `yaml:"file"`
}

// LoggerFileConfig logger file configuration
type LoggerFileConfig struct {
	Path string `yaml:"path"`
}

// Init initializes configuration
func Init() error {
	configPath := os.Getenv("CONFIG_PATH")
	if configPath == "" {
		configPath = "config/config.yaml"
	}

	data, err := os.ReadFile(configPath)
	if err != nil {
		return err
	}

	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return err
	}

	cfg.ApplyDefaults()
	GlobalConfig = &cfg
	return nil
}

// ApplyDefaults fills in zero-valued fields.
func (c *Config) ApplyDefaults() {
	if c.Server.Port == 0 {
		c.Server.Port = 5000
	}
	if c.Server.Mode == "" {
		c.Server.Mode = "debug"
	}
	if c.Worker.HeartbeatInterval == 0 {
		c.Worker.HeartbeatInterval = 10
	}
	if c.Worker.HeartbeatTimeout == 0 {
		c.Worker.HeartbeatTimeout = 60
	}
	if c.Health.CheckInterval == 0 {
		c.Health.CheckInterval = 10
	}
	if c.Health.JobCheckInterval == 0 {
		c.Health.JobCheckInterval = 30
	}
	if c.Health.JobTimeout == 0 {
		c.Health.JobTimeout = 3600
	}
	if c.Health.TimeoutPolicy == "" {
		c.Health.TimeoutPolicy = TimeoutPolicyFail
	}
	if c.Dispatch.TickInterval == 0 {
		c.Dispatch.TickInterval = 5
	}
	if c.Dispatch.MaxTxRetries == 0 {
		c.Dispatch.MaxTxRetries = 5
	}
	if c.Reports.Dir == "" {
		c.Reports.Dir = "reports"
	}
	if c.Reports.Concurrency == 0 {
		c.Reports.Concurrency = 2
	}
	if c.Reports.MaxRetry == 0 {
		c.Reports.MaxRetry = 3
	}
}
