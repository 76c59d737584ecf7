package config

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// Config holds the server wiring. Fields left out of the YAML file keep
// their defaults.
type Config struct {
	HTTPAddr       string `yaml:"http_addr"`
	MySQLDSN       string `yaml:"mysql_dsn"`
	RedisAddr      string `yaml:"redis_addr"`
	AuditQueueSize int    `yaml:"audit_queue_size"`
	AuditWorkers   int    `yaml:"audit_workers"`
}

// Default is the configuration used when no file is given.
func Default() Config {
	return Config{
		HTTPAddr:       ":8080",
		MySQLDSN:       "root:root@tcp(localhost:3306)/farmstand?parseTime=true",
		RedisAddr:      "localhost:6379",
		AuditQueueSize: 1024,
		AuditWorkers:   2,
	}
}

// Load reads a YAML config file on top of the defaults. An empty path
// returns the defaults unchanged.
func Load(path string) (Config, error) {
	cfg := Default()
	if path == "" {
		return cfg, nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return Config{}, fmt.Errorf("config: read %s: %w", path, err)
	}
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return Config{}, fmt.Errorf("config: decode %s: %w", path, err)
	}
	if err := cfg.validate(); err != nil {
		return Config{}, fmt.Errorf("config: %s: %w", path, err)
	}
	return cfg, nil
}

func (c Config) validate() error {
	if c.HTTPAddr == "" {
		return fmt.Errorf("http_addr must not be empty")
	}
	if c.MySQLDSN == "" {
		return fmt.Errorf("mysql_dsn must not be empty")
	}
	if c.RedisAddr == "" {
		return fmt.Errorf("redis_addr must not be empty")
	}
	if c.AuditQueueSize < 1 {
		return fmt.Errorf("audit_queue_size must be at least 1, got %d", c.AuditQueueSize)
	}
	if c.AuditWorkers < 1 {
		return fmt.Errorf("audit_workers must be at least 1, got %d", c.AuditWorkers)
	}
	return nil
}
