package config

import (
	"bytes"
	"fmt"
	"os"
	"strings"

	"github.com/veloghq/velog-server/internal/pkg/mail"
	"gopkg.in/yaml.v3"
)

const (
	// DefaultConfigPath is used when --config is not provided.
	DefaultConfigPath = "config.yml"

	defaultPort        = 2077
	defaultEnv         = "development"
	defaultDBHost      = "127.0.0.1"
	defaultDBPort      = 3306
	defaultDBUser      = "root"
	defaultDBPassword  = "password"
	defaultDBName      = "velog"
	defaultDBCharset   = "utf8mb4"
	defaultDBLoc       = "Local"
	defaultRedisHost   = "localhost"
	defaultRedisPort   = 6379
	defaultRedisDB     = 0
	defaultMeiliHost   = "localhost"
	defaultMeiliPort   = 7700
	defaultMeiliIndex  = "velog-posts"
	defaultS3Region    = "us-east-1"
	defaultWebURL      = "http://localhost:3000"
)

// AppConfig holds runtime startup configuration loaded from YAML.
type AppConfig struct {
	Port           int                `yaml:"port"`
	Env            string             `yaml:"env"` // "development" | "production"
	WebURL         string             `yaml:"web_url"`
	AllowedOrigins []string           `yaml:"allowed_origins"`
	JWTSecret      string             `yaml:"jwt_secret"`
	Database       DatabaseConfig     `yaml:"database"`
	Redis          RedisConfig        `yaml:"redis"`
	Search         SearchConfig       `yaml:"search"`
	Storage        StorageConfig      `yaml:"storage"`
	Mail           mail.Config        `yaml:"mail"`
	SlackWebhook   string             `yaml:"slack_webhook"`
	OAuth          OAuthConfig        `yaml:"oauth"`

	// Derived at load time.
	DSN      string `yaml:"-"`
	RedisURL string `yaml:"-"`
}

type DatabaseConfig struct {
	DSN      string `yaml:"dsn"`
	Host     string `yaml:"host"`
	Port     int    `yaml:"port"`
	User     string `yaml:"user"`
	Password string `yaml:"password"`
	Name     string `yaml:"name"`
	Charset  string `yaml:"charset"`
	Loc      string `yaml:"loc"`
}

type RedisConfig struct {
	URL      string `yaml:"url"`
	Host     string `yaml:"host"`
	Port     int    `yaml:"port"`
	Username string `yaml:"username"`
	Password string `yaml:"password"`
	DB       int    `yaml:"db"`
	TLS      bool   `yaml:"tls"`
}

// SearchConfig targets a Meilisearch-compatible server. Disabled falls back
// to SQL LIKE search.
type SearchConfig struct {
	Enable    bool   `yaml:"enable"`
	Host      string `yaml:"host"`
	Port      int    `yaml:"port"`
	APIKey    string `yaml:"api_key"`
	IndexName string `yaml:"index_name"`
}

// StorageConfig targets any S3-compatible object store (AWS S3, Backblaze B2).
type StorageConfig struct {
	Enable    bool   `yaml:"enable"`
	Endpoint  string `yaml:"endpoint"`
	Region    string `yaml:"region"`
	Bucket    string `yaml:"bucket"`
	AccessKey string `yaml:"access_key"`
	SecretKey string `yaml:"secret_key"`
	PublicURL string `yaml:"public_url"` // CDN/base URL uploads are served from
}

type OAuthConfig struct {
	GitHub OAuthProvider `yaml:"github"`
	Google OAuthProvider `yaml:"google"`
}

type OAuthProvider struct {
	ClientID     string `yaml:"client_id"`
	ClientSecret string `yaml:"client_secret"`
}

// Load reads, defaults and validates the YAML config file.
func Load(configPath string) (*AppConfig, error) {
	path := strings.TrimSpace(configPath)
	if path == "" {
		path = DefaultConfigPath
	}

	content, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config file %q: %w", path, err)
	}

	cfg := defaultAppConfig()
	decoder := yaml.NewDecoder(bytes.NewReader(content))
	decoder.KnownFields(true)
	if err := decoder.Decode(&cfg); err != nil {
		return nil, fmt.Errorf("parse config file %q: %w", path, err)
	}

	if cfg.Port < 1 || cfg.Port > 65535 {
		return nil, fmt.Errorf("invalid port %d in %q, expected 1-65535", cfg.Port, path)
	}
	if cfg.Database.Port < 1 || cfg.Database.Port > 65535 {
		return nil, fmt.Errorf("invalid database.port %d in %q, expected 1-65535", cfg.Database.Port, path)
	}
	if cfg.Redis.Port < 1 || cfg.Redis.Port > 65535 {
		return nil, fmt.Errorf("invalid redis.port %d in %q, expected 1-65535", cfg.Redis.Port, path)
	}
	if cfg.Redis.DB < 0 {
		return nil, fmt.Errorf("invalid redis.db %d in %q, expected >= 0", cfg.Redis.DB, path)
	}
	if cfg.Storage.Enable && cfg.Storage.Bucket == "" {
		return nil, fmt.Errorf("storage.bucket is required when storage is enabled in %q", path)
	}

	cfg.DSN = cfg.Database.DSNValue()
	cfg.RedisURL = cfg.Redis.URLValue()
	return &cfg, nil
}

func defaultAppConfig() AppConfig {
	return AppConfig{
		Port:   defaultPort,
		Env:    defaultEnv,
		WebURL: defaultWebURL,
		Database: DatabaseConfig{
			Host:     defaultDBHost,
			Port:     defaultDBPort,
			User:     defaultDBUser,
			Password: defaultDBPassword,
			Name:     defaultDBName,
			Charset:  defaultDBCharset,
			Loc:      defaultDBLoc,
		},
		Redis: RedisConfig{
			Host: defaultRedisHost,
			Port: defaultRedisPort,
			DB:   defaultRedisDB,
		},
		Search: SearchConfig{
			Host:      defaultMeiliHost,
			Port:      defaultMeiliPort,
			IndexName: defaultMeiliIndex,
		},
		Storage: StorageConfig{
			Region: defaultS3Region,
		},
	}
}

// IsDev reports whether the app runs in development mode.
func (c *AppConfig) IsDev() bool {
	return strings.ToLower(strings.TrimSpace(c.Env)) != "production"
}
