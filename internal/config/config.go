package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"

	"gopkg.in/yaml.v3"
)

// History drivers.
const (
	DriverFile     = "file"
	DriverMySQL    = "mysql"
	DriverPostgres = "postgres"
	DriverSQLite   = "sqlite"
)

type Config struct {
	Server struct {
		Port               int               `yaml:"port"`
		CORSOrigins        []string          `yaml:"corsOrigins"`
		APIKeys            map[string]string `yaml:"apiKeys"`
		SessionIdleMinutes int               `yaml:"sessionIdleMinutes"`
		RateLimit          struct {
			Burst     int     `yaml:"burst"`
			PerSecond float64 `yaml:"perSecond"`
		} `yaml:"rateLimit"`
	} `yaml:"server"`

	Log struct {
		Level  string `yaml:"level"`
		Format string `yaml:"format"`
	} `yaml:"log"`

	AI struct {
		APIKey         string  `yaml:"apiKey"`
		BaseURL        string  `yaml:"baseURL"`
		Model          string  `yaml:"model"`
		Temperature    float32 `yaml:"temperature"`
		TimeoutSeconds int     `yaml:"timeoutSeconds"`
		Referer        string  `yaml:"referer"`
		Title          string  `yaml:"title"`
	} `yaml:"ai"`

	History struct {
		Driver string `yaml:"driver"`
		Path   string `yaml:"path"`
		DSN    string `yaml:"dsn"`
	} `yaml:"history"`

	Database struct {
		Host     string `yaml:"host"`
		Port     int    `yaml:"port"`
		User     string `yaml:"user"`
		Password string `yaml:"password"`
		Name     string `yaml:"name"`
	} `yaml:"database"`

	Minio struct {
		Enabled    bool   `yaml:"enabled"`
		Endpoint   string `yaml:"endpoint"`
		AccessKey  string `yaml:"accessKey"`
		SecretKey  string `yaml:"secretKey"`
		BucketName string `yaml:"bucketName"`
		Region     string `yaml:"region"`
		UseSSL     bool   `yaml:"useSSL"`
	} `yaml:"minio"`
}

// Default returns a configuration that runs locally with a JSON history file.
func Default() *Config {
	var c Config
	c.Server.Port = 8080
	c.Server.CORSOrigins = []string{"*"}
	c.Server.SessionIdleMinutes = 30
	c.Server.RateLimit.Burst = 5
	c.Server.RateLimit.PerSecond = 0.5
	c.Log.Level = "info"
	c.Log.Format = "text"
	c.AI.BaseURL = "https://openrouter.ai/api/v1"
	c.AI.Model = "google/gemini-2.0-flash-001"
	c.AI.Temperature = 0.1
	c.AI.TimeoutSeconds = 60
	c.AI.Title = "NutriSnap"
	c.History.Driver = DriverFile
	c.History.Path = "history.json"
	c.Database.Port = 3306
	c.Minio.BucketName = "nutrisnap-photos"
	c.Minio.Region = "us-east-1"
	return &c
}

// Load reads the YAML file at path over the defaults, then applies
// environment overrides. A missing file is not an error.
func Load(path string) (*Config, error) {
	cfg := Default()
	data, err := os.ReadFile(path)
	switch {
	case errors.Is(err, os.ErrNotExist):
	case err != nil:
		return nil, fmt.Errorf("read config %s: %w", path, err)
	default:
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("parse config %s: %w", path, err)
		}
	}
	if err := cfg.applyEnv(); err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) applyEnv() error {
	if v := os.Getenv("OPENROUTER_API_KEY"); v != "" {
		c.AI.APIKey = v
	}
	if v := os.Getenv("NUTRISNAP_BASE_URL"); v != "" {
		c.AI.BaseURL = v
	}
	if v := os.Getenv("NUTRISNAP_MODEL"); v != "" {
		c.AI.Model = v
	}
	if v := os.Getenv("NUTRISNAP_HISTORY_DRIVER"); v != "" {
		c.History.Driver = v
	}
	if v := os.Getenv("NUTRISNAP_HISTORY_PATH"); v != "" {
		c.History.Path = v
	}
	if v := os.Getenv("NUTRISNAP_HISTORY_DSN"); v != "" {
		c.History.DSN = v
	}
	if v := os.Getenv("NUTRISNAP_LOG_LEVEL"); v != "" {
		c.Log.Level = v
	}
	if v := os.Getenv("NUTRISNAP_PORT"); v != "" {
		port, err := strconv.Atoi(v)
		if err != nil {
			return fmt.Errorf("NUTRISNAP_PORT: %w", err)
		}
		c.Server.Port = port
	}
	return nil
}

// Validate rejects settings the server cannot start with. A missing API key
// is allowed; submissions then fail with a credential error.
func (c *Config) Validate() error {
	var errs []error
	if c.Server.Port <= 0 || c.Server.Port > 65535 {
		errs = append(errs, fmt.Errorf("server.port out of range: %d", c.Server.Port))
	}
	if c.AI.TimeoutSeconds <= 0 {
		errs = append(errs, fmt.Errorf("ai.timeoutSeconds must be positive"))
	}
	// zero is omitted from the request body, so the provider default would apply
	if c.AI.Temperature <= 0 || c.AI.Temperature > 2 {
		errs = append(errs, fmt.Errorf("ai.temperature must be within (0, 2]"))
	}
	if c.Server.RateLimit.Burst <= 0 || c.Server.RateLimit.PerSecond <= 0 {
		errs = append(errs, fmt.Errorf("server.rateLimit burst and perSecond must be positive"))
	}

	c.History.Driver = strings.ToLower(strings.TrimSpace(c.History.Driver))
	switch c.History.Driver {
	case DriverFile, DriverSQLite:
		if c.History.Path == "" {
			errs = append(errs, fmt.Errorf("history.path is required for driver %s", c.History.Driver))
		}
	case DriverMySQL:
		if c.History.DSN == "" && c.Database.Host == "" {
			errs = append(errs, fmt.Errorf("history.dsn or database.host is required for driver mysql"))
		}
	case DriverPostgres:
		if c.History.DSN == "" {
			errs = append(errs, fmt.Errorf("history.dsn is required for driver postgres"))
		}
	default:
		errs = append(errs, fmt.Errorf("unknown history.driver %q", c.History.Driver))
	}

	if c.Minio.Enabled && (c.Minio.Endpoint == "" || c.Minio.BucketName == "") {
		errs = append(errs, fmt.Errorf("minio.endpoint and minio.bucketName are required when minio is enabled"))
	}
	return errors.Join(errs...)
}

// MySQLDSN builds a DSN from the database section.
func (c *Config) MySQLDSN() string {
	return fmt.Sprintf("%s:%s@tcp(%s:%d)/%s?parseTime=true&charset=utf8mb4&loc=UTC",
		c.Database.User,
		c.Database.Password,
		c.Database.Host,
		c.Database.Port,
		c.Database.Name,
	)
}

// HistoryDSN is the DSN for SQL history drivers.
func (c *Config) HistoryDSN() string {
	if c.History.DSN == "" && c.History.Driver == DriverMySQL {
		return c.MySQLDSN()
	}
	return c.History.DSN
}
