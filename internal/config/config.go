package config

import (
	"fmt"
	"os"
	"strconv"

	"gopkg.in/yaml.v3"
)

type Config struct {
	Server    ServerConfig    `yaml:"server"`
	Database  DatabaseConfig  `yaml:"database"`
	NATS      NATSConfig      `yaml:"nats"`
	MinIO     MinIOConfig     `yaml:"minio"`
	Redis     RedisConfig     `yaml:"redis"`
	Vision    VisionConfig    `yaml:"vision"`
	Geocode   GeocodeConfig   `yaml:"geocode"`
	Metadata  MetadataConfig  `yaml:"metadata"`
	Thumbnail ThumbnailConfig `yaml:"thumbnail"`
	Logging   LoggingConfig   `yaml:"logging"`
}

type ServerConfig struct {
	Port   int    `yaml:"port"`
	APIKey string `yaml:"api_key"`
}

type DatabaseConfig struct {
	Host     string `yaml:"host"`
	Port     int    `yaml:"port"`
	Name     string `yaml:"name"`
	User     string `yaml:"user"`
	Password string `yaml:"password"`
	MaxConns int    `yaml:"max_conns"`
}

func (d DatabaseConfig) DSN() string {
	return fmt.Sprintf("postgres://%s:%s@%s:%d/%s?sslmode=disable",
		d.User, d.Password, d.Host, d.Port, d.Name)
}

type NATSConfig struct {
	URL string `yaml:"url"`
}

type MinIOConfig struct {
	Endpoint  string `yaml:"endpoint"`
	AccessKey string `yaml:"access_key"`
	SecretKey string `yaml:"secret_key"`
	Bucket    string `yaml:"bucket"`
	UseSSL    bool   `yaml:"use_ssl"`
}

type RedisConfig struct {
	Addr     string `yaml:"addr"`
	Password string `yaml:"password"`
	DB       int    `yaml:"db"`
}

type VisionConfig struct {
	ModelsDir          string  `yaml:"models_dir"`
	DetectionThreshold float64 `yaml:"detection_threshold"`
	CaptionerURL       string  `yaml:"captioner_url"`
	WorkerCount        int     `yaml:"worker_count"`
}

type GeocodeConfig struct {
	MapboxToken string `yaml:"mapbox_token"`
	BaseURL     string `yaml:"base_url"`
}

type MetadataConfig struct {
	ExiftoolPath string `yaml:"exiftool_path"`
}

type ThumbnailConfig struct {
	FFmpegPath     string `yaml:"ffmpeg_path"`
	AnimatedLength int    `yaml:"animated_length"` // seconds of video in the looped square clips
}

type LoggingConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
}

// Load reads config from YAML file and applies environment variable overrides.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config file: %w", err)
	}

	cfg := &Config{}
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parse config: %w", err)
	}

	applyEnvOverrides(cfg)
	setDefaults(cfg)

	return cfg, nil
}

func setDefaults(cfg *Config) {
	if cfg.Server.Port == 0 {
		cfg.Server.Port = 8080
	}
	if cfg.Database.Port == 0 {
		cfg.Database.Port = 5432
	}
	if cfg.Database.MaxConns == 0 {
		cfg.Database.MaxConns = 20
	}
	if cfg.Redis.Addr == "" {
		cfg.Redis.Addr = "localhost:6379"
	}
	if cfg.Vision.DetectionThreshold == 0 {
		cfg.Vision.DetectionThreshold = 0.5
	}
	if cfg.Vision.WorkerCount == 0 {
		cfg.Vision.WorkerCount = 4
	}
	if cfg.Geocode.BaseURL == "" {
		cfg.Geocode.BaseURL = "https://api.mapbox.com"
	}
	if cfg.Metadata.ExiftoolPath == "" {
		cfg.Metadata.ExiftoolPath = "exiftool"
	}
	if cfg.Thumbnail.FFmpegPath == "" {
		cfg.Thumbnail.FFmpegPath = "ffmpeg"
	}
	if cfg.Thumbnail.AnimatedLength == 0 {
		cfg.Thumbnail.AnimatedLength = 5
	}
	if cfg.Logging.Level == "" {
		cfg.Logging.Level = "info"
	}
	if cfg.Logging.Format == "" {
		cfg.Logging.Format = "json"
	}
}

func applyEnvOverrides(cfg *Config) {
	if v := os.Getenv("LP_SERVER_PORT"); v != "" {
		if port, err := strconv.Atoi(v); err == nil {
			cfg.Server.Port = port
		}
	}
	if v := os.Getenv("LP_API_KEY"); v != "" {
		cfg.Server.APIKey = v
	}
	if v := os.Getenv("LP_DB_HOST"); v != "" {
		cfg.Database.Host = v
	}
	if v := os.Getenv("LP_DB_PORT"); v != "" {
		if port, err := strconv.Atoi(v); err == nil {
			cfg.Database.Port = port
		}
	}
	if v := os.Getenv("LP_DB_NAME"); v != "" {
		cfg.Database.Name = v
	}
	if v := os.Getenv("LP_DB_USER"); v != "" {
		cfg.Database.User = v
	}
	if v := os.Getenv("LP_DB_PASSWORD"); v != "" {
		cfg.Database.Password = v
	}
	if v := os.Getenv("LP_NATS_URL"); v != "" {
		cfg.NATS.URL = v
	}
	if v := os.Getenv("LP_MINIO_ENDPOINT"); v != "" {
		cfg.MinIO.Endpoint = v
	}
	if v := os.Getenv("LP_MINIO_ACCESS_KEY"); v != "" {
		cfg.MinIO.AccessKey = v
	}
	if v := os.Getenv("LP_MINIO_SECRET_KEY"); v != "" {
		cfg.MinIO.SecretKey = v
	}
	if v := os.Getenv("LP_MINIO_BUCKET"); v != "" {
		cfg.MinIO.Bucket = v
	}
	if v := os.Getenv("LP_REDIS_ADDR"); v != "" {
		cfg.Redis.Addr = v
	}
	if v := os.Getenv("LP_MAPBOX_TOKEN"); v != "" {
		cfg.Geocode.MapboxToken = v
	}
	if v := os.Getenv("LP_MODELS_DIR"); v != "" {
		cfg.Vision.ModelsDir = v
	}
	if v := os.Getenv("LP_CAPTIONER_URL"); v != "" {
		cfg.Vision.CaptionerURL = v
	}
	if v := os.Getenv("LP_WORKER_COUNT"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			cfg.Vision.WorkerCount = n
		}
	}
}
