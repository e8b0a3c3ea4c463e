package config

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

type Config struct {
	Server struct {
		Port           int      `yaml:"port"`
		AllowedOrigins []string `yaml:"allowedOrigins"`
	} `yaml:"server"`

	Database struct {
		Driver   string `yaml:"driver"` // mysql | postgres
		Host     string `yaml:"host"`
		Port     int    `yaml:"port"`
		User     string `yaml:"user"`
		Password string `yaml:"password"`
		Name     string `yaml:"name"`
		SSLMode  string `yaml:"sslMode"`
	} `yaml:"database"`

	Minio struct {
		Endpoint   string `yaml:"endpoint"`
		AccessKey  string `yaml:"accessKey"`
		SecretKey  string `yaml:"secretKey"`
		BucketName string `yaml:"bucketName"`
		Region     string `yaml:"region"`
		UseSSL     bool   `yaml:"useSSL"`
	} `yaml:"minio"`

	OpenAI struct {
		APIKey         string   `yaml:"apiKey"`
		Models         []string `yaml:"models"`
		TimeoutSeconds int      `yaml:"timeoutSeconds"`
	} `yaml:"openai"`

	Static struct {
		Image          string `yaml:"image"`
		TimeoutSeconds int    `yaml:"timeoutSeconds"`
	} `yaml:"static"`

	Workers struct {
		Static int `yaml:"static"`
		AI     int `yaml:"ai"`
		Full   int `yaml:"full"`
	} `yaml:"workers"`

	Reports struct {
		Dir string `yaml:"dir"`
	} `yaml:"reports"`

	Auth struct {
		// requester id -> api key
		APIKeys map[string]string `yaml:"apiKeys"`
	} `yaml:"auth"`
}

// Load reads config.yaml and applies defaults
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, err
	}
	cfg.applyDefaults()
	return &cfg, nil
}

func (c *Config) applyDefaults() {
	if c.Server.Port == 0 {
		c.Server.Port = 8080
	}
	if c.Database.Driver == "" {
		c.Database.Driver = "mysql"
	}
	if c.Database.SSLMode == "" {
		c.Database.SSLMode = "disable"
	}
	if len(c.OpenAI.Models) == 0 {
		c.OpenAI.Models = []string{"gpt-4o", "gpt-4o-mini"}
	}
	if c.OpenAI.TimeoutSeconds <= 0 {
		c.OpenAI.TimeoutSeconds = 180
	}
	if c.Static.Image == "" {
		c.Static.Image = "ghcr.io/crytic/slither:latest"
	}
	if c.Static.TimeoutSeconds <= 0 {
		c.Static.TimeoutSeconds = 120
	}
	// small fixed pools: the AI and Full lanes are rate-limit sensitive
	if c.Workers.Static <= 0 {
		c.Workers.Static = 2
	}
	if c.Workers.AI <= 0 {
		c.Workers.AI = 1
	}
	if c.Workers.Full <= 0 {
		c.Workers.Full = 1
	}
}

// Helper untuk build DSN MySQL
func (c *Config) MySQLDSN() string {
	return fmt.Sprintf("%s:%s@tcp(%s:%d)/%s?parseTime=true&charset=utf8mb4&loc=UTC",
		c.Database.User,
		c.Database.Password,
		c.Database.Host,
		c.Database.Port,
		c.Database.Name,
	)
}

// PostgresDSN builds a lib/pq connection string
func (c *Config) PostgresDSN() string {
	return fmt.Sprintf("host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
		c.Database.Host,
		c.Database.Port,
		c.Database.User,
		c.Database.Password,
		c.Database.Name,
		c.Database.SSLMode,
	)
}

// StaticTimeout returns the static analyzer time limit as a duration.
func (c *Config) StaticTimeout() time.Duration {
	return time.Duration(c.Static.TimeoutSeconds) * time.Second
}

// AITimeout returns the AI analyzer time limit as a duration.
func (c *Config) AITimeout() time.Duration {
	return time.Duration(c.OpenAI.TimeoutSeconds) * time.Second
}
