package config

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"net"
	"os"
	"strconv"
	"strings"
	"time"

	"ticket-kiosk/internal/actuator"
	"ticket-kiosk/internal/ingest"
	"ticket-kiosk/internal/input"
	"ticket-kiosk/internal/journal"
	"ticket-kiosk/internal/redeemer"
	"ticket-kiosk/internal/store"

	"gopkg.in/yaml.v3"
)

// Config holds all application configuration.
type Config struct {
	Store    StoreConfig    `yaml:"store"`
	Ingest   IngestConfig   `yaml:"ingest"`
	S3       S3Config       `yaml:"s3"`
	Actuator ActuatorConfig `yaml:"actuator"`
	Input    InputConfig    `yaml:"input"`
	Logger   LoggerConfig   `yaml:"logger"`
	Ops      OpsConfig      `yaml:"ops"`
	Journal  JournalConfig  `yaml:"journal"`
	Database DatabaseConfig `yaml:"database"`
	Redis    RedisConfig    `yaml:"redis"`
}

// StoreConfig holds the location of the code lists.
type StoreConfig struct {
	DataDir   string `yaml:"data_dir"`
	ValidFile string `yaml:"valid_file"`
	UsedFile  string `yaml:"used_file"`
	Mode      string `yaml:"mode"` // "track" or "validate-only"
}

// IngestConfig holds batch file discovery settings.
type IngestConfig struct {
	Interval       time.Duration `yaml:"interval"`
	Mounts         []string      `yaml:"mounts"`
	Filename       string        `yaml:"filename"`
	FirstMatchOnly bool          `yaml:"first_match_only"`
}

// S3Config holds AWS S3 configuration for batch files.
type S3Config struct {
	Enabled bool   `yaml:"enabled"`
	Bucket  string `yaml:"bucket"`
	Region  string `yaml:"region"`
	Prefix  string `yaml:"prefix"` // Path prefix within bucket (e.g., "kiosk/")
}

// ActuatorConfig holds the GPIO output settings.
type ActuatorConfig struct {
	Enabled  bool          `yaml:"enabled"`
	GPIOChip string        `yaml:"gpio_chip"`
	GPIOPin  int           `yaml:"gpio_pin"`
	Pulse    time.Duration `yaml:"pulse"`
}

// InputConfig selects the code input sources.
type InputConfig struct {
	LineEnabled      bool     `yaml:"line_enabled"`
	ScannerEnabled   bool     `yaml:"scanner_enabled"`
	ScannerDevice    string   `yaml:"scanner_device"` // explicit evdev node, skips discovery
	ScannerDeviceDir string   `yaml:"scanner_device_dir"`
	ScannerPatterns  []string `yaml:"scanner_patterns"`
	ScannerGrab      bool     `yaml:"scanner_grab"`
}

// LoggerConfig holds logger-related configuration.
type LoggerConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"` // "json" or "console"
	File   string `yaml:"file"`   // "-" for stdout
}

// OpsConfig holds the local ops endpoint settings. An empty Addr disables it.
type OpsConfig struct {
	Addr string `yaml:"addr"`
}

// JournalConfig selects where redemption events are recorded.
type JournalConfig struct {
	Backend string `yaml:"backend"` // "file", "postgres", "redis" or "none"
	File    string `yaml:"file"`
}

// DatabaseConfig holds database-related configuration.
type DatabaseConfig struct {
	Host            string `yaml:"host"`
	Port            int    `yaml:"port"`
	User            string `yaml:"user"`
	Password        string `yaml:"password"`
	Database        string `yaml:"name"`
	MaxConnections  int    `yaml:"max_connections"`
	MinConnections  int    `yaml:"min_connections"`
	MaxConnLifetime int    `yaml:"max_conn_lifetime"` // seconds
}

// RedisConfig holds the Redis journal settings.
type RedisConfig struct {
	Addr     string `yaml:"addr"`
	Password string `yaml:"password"`
	DB       int    `yaml:"db"`
	Stream   string `yaml:"stream"`
}

// Default returns the configuration used when nothing is overridden.
func Default() *Config {
	gpio := actuator.DefaultGPIOConfig()
	files := store.DefaultConfig()
	return &Config{
		Store: StoreConfig{
			DataDir:   files.Dir,
			ValidFile: files.ValidFile,
			UsedFile:  files.UsedFile,
			Mode:      string(files.Mode),
		},
		Ingest: IngestConfig{
			Interval:       ingest.DefaultInterval,
			Mounts:         append([]string(nil), ingest.DefaultMountRoots...),
			Filename:       ingest.DefaultFilename,
			FirstMatchOnly: true,
		},
		S3: S3Config{
			Region: "us-east-1",
			Prefix: "kiosk/",
		},
		Actuator: ActuatorConfig{
			Enabled:  true,
			GPIOChip: gpio.Chip,
			GPIOPin:  gpio.Pin,
			Pulse:    redeemer.DefaultPulseDuration,
		},
		Input: InputConfig{
			LineEnabled:      true,
			ScannerEnabled:   false,
			ScannerDeviceDir: input.DefaultDeviceDir,
			ScannerPatterns:  append([]string(nil), input.DefaultDevicePatterns...),
			ScannerGrab:      true,
		},
		Logger: LoggerConfig{
			Level:  "info",
			Format: "json",
			File:   "scanner.log",
		},
		Journal: JournalConfig{
			Backend: "file",
			File:    "redemptions.jsonl",
		},
		Database: DatabaseConfig{
			Host:            "localhost",
			Port:            5432,
			User:            "postgres",
			Database:        "kiosk",
			MaxConnections:  5,
			MinConnections:  1,
			MaxConnLifetime: 300,
		},
		Redis: RedisConfig{
			Addr:   "localhost:6379",
			Stream: journal.DefaultRedisStream,
		},
	}
}

// Load builds the configuration from defaults, then the YAML file at path
// (or $KIOSK_CONFIG when path is empty), then environment variables.
func Load(path string) (*Config, error) {
	cfg := Default()

	if path == "" {
		path = os.Getenv("KIOSK_CONFIG")
	}
	if path != "" {
		if err := cfg.loadFile(path); err != nil {
			return nil, err
		}
	}

	cfg.applyEnv()

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("configuration validation failed: %w", err)
	}

	return cfg, nil
}

func (c *Config) loadFile(path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("failed to read config file %s: %w", path, err)
	}

	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	if err := dec.Decode(c); err != nil && !errors.Is(err, io.EOF) {
		return fmt.Errorf("failed to parse config file %s: %w", path, err)
	}

	return nil
}

func (c *Config) applyEnv() {
	c.Store.DataDir = getEnv("KIOSK_DATA_DIR", c.Store.DataDir)
	c.Store.ValidFile = getEnv("KIOSK_VALID_FILE", c.Store.ValidFile)
	c.Store.UsedFile = getEnv("KIOSK_USED_FILE", c.Store.UsedFile)
	c.Store.Mode = getEnv("REDEMPTION_MODE", c.Store.Mode)

	c.Ingest.Interval = getEnvAsDuration("INGEST_INTERVAL", c.Ingest.Interval)
	c.Ingest.Mounts = getEnvAsList("INGEST_MOUNTS", c.Ingest.Mounts)
	c.Ingest.Filename = getEnv("INGEST_FILENAME", c.Ingest.Filename)
	c.Ingest.FirstMatchOnly = getEnvAsBool("INGEST_FIRST_MATCH_ONLY", c.Ingest.FirstMatchOnly)

	c.S3.Enabled = getEnvAsBool("S3_ENABLED", c.S3.Enabled)
	c.S3.Bucket = getEnv("S3_BUCKET", c.S3.Bucket)
	c.S3.Region = getEnv("S3_REGION", c.S3.Region)
	c.S3.Prefix = getEnv("S3_PREFIX", c.S3.Prefix)

	c.Actuator.Enabled = getEnvAsBool("ACTUATOR_ENABLED", c.Actuator.Enabled)
	c.Actuator.GPIOChip = getEnv("ACTUATOR_GPIO_CHIP", c.Actuator.GPIOChip)
	c.Actuator.GPIOPin = getEnvAsInt("ACTUATOR_GPIO_PIN", c.Actuator.GPIOPin)
	c.Actuator.Pulse = getEnvAsDuration("ACTUATOR_PULSE", c.Actuator.Pulse)

	c.Input.LineEnabled = getEnvAsBool("LINE_INPUT_ENABLED", c.Input.LineEnabled)
	c.Input.ScannerEnabled = getEnvAsBool("SCANNER_ENABLED", c.Input.ScannerEnabled)
	c.Input.ScannerDevice = getEnv("SCANNER_DEVICE", c.Input.ScannerDevice)
	c.Input.ScannerDeviceDir = getEnv("SCANNER_DEVICE_DIR", c.Input.ScannerDeviceDir)
	c.Input.ScannerPatterns = getEnvAsList("SCANNER_PATTERNS", c.Input.ScannerPatterns)
	c.Input.ScannerGrab = getEnvAsBool("SCANNER_GRAB", c.Input.ScannerGrab)

	c.Logger.Level = getEnv("LOG_LEVEL", c.Logger.Level)
	c.Logger.Format = getEnv("LOG_FORMAT", c.Logger.Format)
	c.Logger.File = getEnv("LOG_FILE", c.Logger.File)

	c.Ops.Addr = getEnv("OPS_ADDR", c.Ops.Addr)

	c.Journal.Backend = getEnv("JOURNAL_BACKEND", c.Journal.Backend)
	c.Journal.File = getEnv("JOURNAL_FILE", c.Journal.File)

	c.Database.Host = getEnv("DB_HOST", c.Database.Host)
	c.Database.Port = getEnvAsInt("DB_PORT", c.Database.Port)
	c.Database.User = getEnv("DB_USER", c.Database.User)
	c.Database.Password = getEnv("DB_PASSWORD", c.Database.Password)
	c.Database.Database = getEnv("DB_NAME", c.Database.Database)
	c.Database.MaxConnections = getEnvAsInt("DB_MAX_CONNECTIONS", c.Database.MaxConnections)
	c.Database.MinConnections = getEnvAsInt("DB_MIN_CONNECTIONS", c.Database.MinConnections)
	c.Database.MaxConnLifetime = getEnvAsInt("DB_MAX_CONN_LIFETIME", c.Database.MaxConnLifetime)

	c.Redis.Addr = getEnv("REDIS_ADDR", c.Redis.Addr)
	c.Redis.Password = getEnv("REDIS_PASSWORD", c.Redis.Password)
	c.Redis.DB = getEnvAsInt("REDIS_DB", c.Redis.DB)
	c.Redis.Stream = getEnv("REDIS_STREAM", c.Redis.Stream)
}

// Validate validates the configuration.
func (c *Config) Validate() error {
	if c.Store.DataDir == "" {
		return fmt.Errorf("data directory is required")
	}

	if c.Store.ValidFile == "" || c.Store.UsedFile == "" {
		return fmt.Errorf("valid and used list file names are required")
	}

	if c.Store.Mode != "track" && c.Store.Mode != "validate-only" {
		return fmt.Errorf("invalid redemption mode: %s (must be track or validate-only)", c.Store.Mode)
	}

	if c.Ingest.Interval <= 0 {
		return fmt.Errorf("ingest interval must be positive")
	}

	if c.Ingest.Filename == "" {
		return fmt.Errorf("ingest filename is required")
	}

	if c.S3.Enabled {
		if c.S3.Bucket == "" {
			return fmt.Errorf("S3 bucket is required when S3 is enabled")
		}
		if c.S3.Region == "" {
			return fmt.Errorf("S3 region is required when S3 is enabled")
		}
	}

	if c.Actuator.Enabled {
		if c.Actuator.GPIOChip == "" {
			return fmt.Errorf("GPIO chip is required when the actuator is enabled")
		}
		if c.Actuator.GPIOPin < 0 {
			return fmt.Errorf("invalid GPIO pin: %d", c.Actuator.GPIOPin)
		}
		if c.Actuator.Pulse <= 0 {
			return fmt.Errorf("actuator pulse must be positive")
		}
	}

	if c.Input.ScannerEnabled && c.Input.ScannerDevice == "" && len(c.Input.ScannerPatterns) == 0 {
		return fmt.Errorf("scanner device or scanner patterns are required when the scanner is enabled")
	}

	validLogLevels := map[string]bool{
		"debug": true,
		"info":  true,
		"warn":  true,
		"error": true,
	}

	if !validLogLevels[c.Logger.Level] {
		return fmt.Errorf("invalid log level: %s (must be debug, info, warn, or error)", c.Logger.Level)
	}

	if c.Logger.Format != "json" && c.Logger.Format != "console" {
		return fmt.Errorf("invalid log format: %s (must be json or console)", c.Logger.Format)
	}

	if c.Ops.Addr != "" {
		if _, _, err := net.SplitHostPort(c.Ops.Addr); err != nil {
			return fmt.Errorf("invalid ops address %q: %w", c.Ops.Addr, err)
		}
	}

	switch c.Journal.Backend {
	case "none":
	case "file":
		if c.Journal.File == "" {
			return fmt.Errorf("journal file is required for the file journal")
		}
	case "postgres":
		if err := c.Database.Validate(); err != nil {
			return err
		}
	case "redis":
		if c.Redis.Addr == "" {
			return fmt.Errorf("redis address is required for the redis journal")
		}
	default:
		return fmt.Errorf("invalid journal backend: %s (must be file, postgres, redis, or none)", c.Journal.Backend)
	}

	return nil
}

// Validate validates the database settings.
func (c *DatabaseConfig) Validate() error {
	if c.Host == "" {
		return fmt.Errorf("database host is required")
	}

	if c.Port < 1 || c.Port > 65535 {
		return fmt.Errorf("invalid database port: %d", c.Port)
	}

	if c.User == "" {
		return fmt.Errorf("database user is required")
	}

	if c.Database == "" {
		return fmt.Errorf("database name is required")
	}

	if c.MaxConnections < 1 {
		return fmt.Errorf("database max connections must be at least 1")
	}

	if c.MinConnections < 1 {
		return fmt.Errorf("database min connections must be at least 1")
	}

	if c.MinConnections > c.MaxConnections {
		return fmt.Errorf("database min connections cannot exceed max connections")
	}

	return nil
}

// ConnectionString returns the PostgreSQL connection string.
func (c *DatabaseConfig) ConnectionString() string {
	return fmt.Sprintf(
		"postgres://%s:%s@%s:%d/%s?sslmode=disable",
		c.User,
		c.Password,
		c.Host,
		c.Port,
		c.Database,
	)
}

// getEnv retrieves an environment variable or returns a default value.
func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

// getEnvAsInt retrieves an environment variable as an integer or returns a default value.
func getEnvAsInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if intValue, err := strconv.Atoi(value); err == nil {
			return intValue
		}
	}
	return defaultValue
}

// getEnvAsBool retrieves an environment variable as a boolean or returns a default value.
func getEnvAsBool(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		if boolValue, err := strconv.ParseBool(value); err == nil {
			return boolValue
		}
	}
	return defaultValue
}

// getEnvAsDuration accepts Go durations ("10s") or a bare number of seconds.
func getEnvAsDuration(key string, defaultValue time.Duration) time.Duration {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	if d, err := time.ParseDuration(value); err == nil {
		return d
	}
	if secs, err := strconv.Atoi(value); err == nil {
		return time.Duration(secs) * time.Second
	}
	return defaultValue
}

// getEnvAsList splits a comma-separated variable, dropping blank items.
func getEnvAsList(key string, defaultValue []string) []string {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	var out []string
	for _, item := range strings.Split(value, ",") {
		if item = strings.TrimSpace(item); item != "" {
			out = append(out, item)
		}
	}
	return out
}
