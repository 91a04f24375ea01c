package config

import (
	"errors"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"
	"time"

	"huddle_backend/internal/logger"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v2"
)

type Config struct {
	Server struct {
		Host           string   `yaml:"host"`
		Port           int      `yaml:"port"`
		Env            string   `yaml:"env"`
		AllowedOrigins []string `yaml:"allowed_origins"`
	} `yaml:"server"`

	Database struct {
		DSN          string `yaml:"url"`
		MaxOpenConns int    `yaml:"max_open_conns"`
		AutoMigrate  bool   `yaml:"auto_migrate"`
	} `yaml:"database"`

	// Redis is optional. Without a URL the process runs a single-instance local broker.
	Redis struct {
		URL           string `yaml:"url"`
		ChannelPrefix string `yaml:"channel_prefix"`
	} `yaml:"redis"`

	JWT struct {
		Secret string `yaml:"secret"`
	} `yaml:"jwt"`

	// Media describes the blob store. BaseURLs are the prefixes a message media URL must start with;
	// the S3 fields enable presigned upload tickets and are optional.
	Media struct {
		BaseURLs            []string `yaml:"base_urls"`
		PublicBaseURL       string   `yaml:"public_base_url"`
		Bucket              string   `yaml:"bucket"`
		Endpoint            string   `yaml:"endpoint"`
		Region              string   `yaml:"region"`
		AccessKey           string   `yaml:"access_key"`
		SecretKey           string   `yaml:"secret_key"`
		UploadExpirySeconds int      `yaml:"upload_expiry_seconds"`
	} `yaml:"media"`

	Realtime struct {
		SendBuffer         int `yaml:"send_buffer"`
		WriteWaitSeconds   int `yaml:"write_wait_seconds"`
		PresenceTTLSeconds int `yaml:"presence_ttl_seconds"`
	} `yaml:"realtime"`
}

var AppConfig *Config

func (c *Config) WriteWait() time.Duration {
	return time.Duration(c.Realtime.WriteWaitSeconds) * time.Second
}

func (c *Config) PresenceTTL() time.Duration {
	return time.Duration(c.Realtime.PresenceTTLSeconds) * time.Second
}

func (c *Config) UploadExpiry() time.Duration {
	return time.Duration(c.Media.UploadExpirySeconds) * time.Second
}

// MediaURLPrefixes returns BaseURLs plus PublicBaseURL, so uploaded media is always accepted.
func (c *Config) MediaURLPrefixes() []string {
	prefixes := append([]string(nil), c.Media.BaseURLs...)
	if c.Media.PublicBaseURL == "" {
		return prefixes
	}
	public := strings.TrimSuffix(c.Media.PublicBaseURL, "/") + "/"
	for _, p := range prefixes {
		if p == public {
			return prefixes
		}
	}
	return append(prefixes, public)
}

func (c *Config) Address() string {
	return fmt.Sprintf("%s:%d", c.Server.Host, c.Server.Port)
}

// Default returns the configuration used when no file and no environment is present.
func Default() *Config {
	var cfg Config
	cfg.Server.Port = 8080
	cfg.Server.Env = "development"
	cfg.Server.AllowedOrigins = []string{"*"}
	cfg.Database.MaxOpenConns = 20
	cfg.Database.AutoMigrate = true
	cfg.Redis.ChannelPrefix = "huddle:"
	cfg.Media.Region = "auto"
	cfg.Media.UploadExpirySeconds = 300
	cfg.Realtime.SendBuffer = 256
	cfg.Realtime.WriteWaitSeconds = 10
	cfg.Realtime.PresenceTTLSeconds = 120
	return &cfg
}

// LoadConfig reads .env (if any), then CONFIG_PATH, then environment overrides.
func LoadConfig() {
	if err := godotenv.Load(); err != nil && !errors.Is(err, os.ErrNotExist) {
		logger.Warn("failed to read .env", "error", err)
	}

	configPath := os.Getenv("CONFIG_PATH")
	if configPath == "" {
		configPath = "config/config.yaml"
	}

	cfg, err := Load(configPath)
	if err != nil {
		logger.Fatal("failed to load config", "path", configPath, "error", err)
	}
	AppConfig = cfg
}

// Load builds a Config from defaults, the YAML file at path (a missing file is not an error)
// and the process environment.
func Load(path string) (*Config, error) {
	cfg := Default()

	f, err := os.Open(path)
	switch {
	case err == nil:
		defer f.Close()
		if err := decode(f, cfg); err != nil {
			return nil, fmt.Errorf("parse %s: %w", path, err)
		}
	case errors.Is(err, os.ErrNotExist):
		logger.Info("config file not found, using defaults and environment", "path", path)
	default:
		return nil, fmt.Errorf("open %s: %w", path, err)
	}

	if err := applyEnv(cfg, os.LookupEnv); err != nil {
		return nil, err
	}
	return cfg, nil
}

func decode(r io.Reader, cfg *Config) error {
	err := yaml.NewDecoder(r).Decode(cfg)
	if errors.Is(err, io.EOF) {
		return nil
	}
	return err
}

func applyEnv(cfg *Config, lookup func(string) (string, bool)) error {
	if v, ok := lookup("DATABASE_URL"); ok && v != "" {
		cfg.Database.DSN = v
	}
	if v, ok := lookup("REDIS_URL"); ok {
		cfg.Redis.URL = v
	}
	if v, ok := lookup("SERVER_ENV"); ok && v != "" {
		cfg.Server.Env = v
	}
	if v, ok := lookup("SERVER_PORT"); ok && v != "" {
		port, err := strconv.Atoi(v)
		if err != nil {
			return fmt.Errorf("SERVER_PORT: %w", err)
		}
		cfg.Server.Port = port
	}
	if v, ok := lookup("JWT_SECRET"); ok && v != "" {
		cfg.JWT.Secret = v
	}
	if v, ok := lookup("MEDIA_BASE_URLS"); ok {
		cfg.Media.BaseURLs = splitList(v)
	}
	for env, field := range map[string]*string{
		"MEDIA_PUBLIC_BASE_URL": &cfg.Media.PublicBaseURL,
		"MEDIA_BUCKET":          &cfg.Media.Bucket,
		"MEDIA_ENDPOINT":        &cfg.Media.Endpoint,
		"MEDIA_REGION":          &cfg.Media.Region,
		"MEDIA_ACCESS_KEY":      &cfg.Media.AccessKey,
		"MEDIA_SECRET_KEY":      &cfg.Media.SecretKey,
	} {
		if v, ok := lookup(env); ok && v != "" {
			*field = v
		}
	}
	return nil
}

func splitList(v string) []string {
	var out []string
	for _, part := range strings.Split(v, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}

func GetConfig() *Config {
	if AppConfig == nil {
		LoadConfig()
	}
	return AppConfig
}
