package app

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/yungbote/promptstudy-backend/internal/data/db"
	"github.com/yungbote/promptstudy-backend/internal/observability"
	"github.com/yungbote/promptstudy-backend/internal/platform/envutil"
	"github.com/yungbote/promptstudy-backend/internal/platform/fetch"
)

const (
	StorageModeLocal       = "local"
	StorageModeGCS         = "gcs"
	StorageModeGCSEmulator = "gcs_emulator"
)

// Config is built once at startup: defaults, then the optional YAML file named by
// CONFIG_FILE, then environment variables. It is passed explicitly to every component.
type Config struct {
	Port          string `yaml:"port"`
	LogMode       string `yaml:"log_mode"`
	LogRedaction  bool   `yaml:"log_redaction"`
	LogHashSalt   string `yaml:"log_hash_salt"`
	Version       string `yaml:"version"`
	Environment   string `yaml:"environment"`
	PublicBaseURL string `yaml:"public_base_url"`

	DataRoot            string `yaml:"data_root"`
	ObjectStorageMode   string `yaml:"object_storage_mode"`
	GCSBucket           string `yaml:"gcs_bucket_name"`
	GCSPrefix           string `yaml:"gcs_prefix"`
	StorageEmulatorHost string `yaml:"storage_emulator_host"`
	GCSCredentialsJSON  string `yaml:"gcs_credentials_json"`

	OpenAIAPIKey     string        `yaml:"openai_api_key"`
	OpenAIBaseURL    string        `yaml:"openai_base_url"`
	OpenAIImageModel string        `yaml:"openai_image_model"`
	OpenAIImageSize  string        `yaml:"openai_image_size"`
	OpenAITimeout    time.Duration `yaml:"openai_timeout"`
	OpenAIMaxRetries int           `yaml:"openai_max_retries"`
	OpenAIRPM        int           `yaml:"openai_requests_per_minute"`

	DownloadTimeout     time.Duration `yaml:"download_timeout"`
	DownloadMaxRetries  int           `yaml:"download_max_retries"`
	FallbackNameservers []string      `yaml:"fallback_nameservers"`

	WorkerConcurrency int           `yaml:"worker_concurrency"`
	WorkerQueueSize   int           `yaml:"worker_queue_size"`
	GenerationTimeout time.Duration `yaml:"generation_timeout"`
	MaxImageSize      int           `yaml:"max_image_size"`

	RedisAddr    string `yaml:"redis_addr"`
	LedgerDriver string `yaml:"ledger_driver"`
	LedgerDSN    string `yaml:"ledger_dsn"`

	CORSAllowedOrigins []string `yaml:"cors_allowed_origins"`

	OtelEnabled     bool    `yaml:"otel_enabled"`
	OtelEndpoint    string  `yaml:"otel_endpoint"`
	OtelProtocol    string  `yaml:"otel_protocol"`
	OtelHeaders     string  `yaml:"otel_headers"`
	OtelInsecure    bool    `yaml:"otel_insecure"`
	OtelSampleRatio float64 `yaml:"otel_sample_ratio"`
}

func DefaultConfig() Config {
	return Config{
		Port:                "8000",
		LogMode:             "development",
		LogRedaction:        true,
		Version:             "dev",
		Environment:         "development",
		PublicBaseURL:       "http://localhost:8000",
		DataRoot:            "data",
		ObjectStorageMode:   StorageModeLocal,
		OpenAIImageModel:    "dall-e-3",
		OpenAIImageSize:     "1024x1024",
		OpenAITimeout:       30 * time.Second,
		OpenAIMaxRetries:    3,
		DownloadTimeout:     30 * time.Second,
		DownloadMaxRetries:  3,
		FallbackNameservers: append([]string(nil), fetch.DefaultNameservers...),
		WorkerConcurrency:   4,
		WorkerQueueSize:     128,
		GenerationTimeout:   3 * time.Minute,
		MaxImageSize:        1024,
		LedgerDriver:        db.DriverSQLite,
		OtelProtocol:        observability.ProtocolHTTP,
		OtelSampleRatio:     0.1,
	}
}

// LoadConfig reads the configuration from CONFIG_FILE (if set) and the environment.
func LoadConfig() (Config, error) {
	cfg := DefaultConfig()
	if path := envutil.String("CONFIG_FILE", ""); path != "" {
		if err := overlayFile(&cfg, path); err != nil {
			return Config{}, err
		}
	}
	overlayEnv(&cfg)
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

func overlayFile(cfg *Config, path string) error {
	raw, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("read config file %s: %w", path, err)
	}
	dec := yaml.NewDecoder(bytes.NewReader(raw))
	dec.KnownFields(true)
	if err := dec.Decode(cfg); err != nil && !errors.Is(err, io.EOF) {
		return fmt.Errorf("parse config file %s: %w", path, err)
	}
	return nil
}

func overlayEnv(cfg *Config) {
	cfg.Port = envutil.String("PORT", cfg.Port)
	cfg.LogMode = envutil.String("LOG_MODE", cfg.LogMode)
	cfg.LogRedaction = envutil.Bool("LOG_REDACTION_ENABLED", cfg.LogRedaction)
	cfg.LogHashSalt = envutil.String("LOG_HASH_SALT", cfg.LogHashSalt)
	cfg.Version = envutil.String("APP_VERSION", cfg.Version)
	cfg.Environment = envutil.String("APP_ENV", cfg.Environment)
	cfg.PublicBaseURL = envutil.String("PUBLIC_BASE_URL", cfg.PublicBaseURL)

	cfg.DataRoot = envutil.String("DATA_ROOT", cfg.DataRoot)
	cfg.ObjectStorageMode = strings.ToLower(envutil.String("OBJECT_STORAGE_MODE", cfg.ObjectStorageMode))
	cfg.GCSBucket = envutil.String("GCS_BUCKET_NAME", cfg.GCSBucket)
	cfg.GCSPrefix = envutil.String("GCS_PREFIX", cfg.GCSPrefix)
	cfg.StorageEmulatorHost = envutil.String("STORAGE_EMULATOR_HOST", cfg.StorageEmulatorHost)
	cfg.GCSCredentialsJSON = envutil.String("GOOGLE_APPLICATION_CREDENTIALS_JSON", cfg.GCSCredentialsJSON)

	cfg.OpenAIAPIKey = envutil.String("OPENAI_API_KEY", cfg.OpenAIAPIKey)
	cfg.OpenAIBaseURL = envutil.String("OPENAI_BASE_URL", cfg.OpenAIBaseURL)
	cfg.OpenAIImageModel = envutil.String("OPENAI_IMAGE_MODEL", cfg.OpenAIImageModel)
	cfg.OpenAIImageSize = envutil.String("OPENAI_IMAGE_SIZE", cfg.OpenAIImageSize)
	cfg.OpenAITimeout = envutil.Seconds("OPENAI_TIMEOUT_SECONDS", cfg.OpenAITimeout)
	cfg.OpenAIMaxRetries = envutil.Int("OPENAI_MAX_RETRIES", cfg.OpenAIMaxRetries)
	cfg.OpenAIRPM = envutil.Int("OPENAI_REQUESTS_PER_MINUTE", cfg.OpenAIRPM)

	cfg.DownloadTimeout = envutil.Seconds("DOWNLOAD_TIMEOUT_SECONDS", cfg.DownloadTimeout)
	cfg.DownloadMaxRetries = envutil.Int("DOWNLOAD_MAX_RETRIES", cfg.DownloadMaxRetries)
	cfg.FallbackNameservers = envutil.List("FALLBACK_NAMESERVERS", cfg.FallbackNameservers)

	cfg.WorkerConcurrency = envutil.Int("WORKER_CONCURRENCY", cfg.WorkerConcurrency)
	cfg.WorkerQueueSize = envutil.Int("WORKER_QUEUE_SIZE", cfg.WorkerQueueSize)
	cfg.GenerationTimeout = envutil.Seconds("GENERATION_TIMEOUT_SECONDS", cfg.GenerationTimeout)
	cfg.MaxImageSize = envutil.Int("MAX_IMAGE_SIZE", cfg.MaxImageSize)

	cfg.RedisAddr = envutil.String("REDIS_ADDR", cfg.RedisAddr)
	cfg.LedgerDriver = strings.ToLower(envutil.String("LEDGER_DRIVER", cfg.LedgerDriver))
	cfg.LedgerDSN = envutil.String("LEDGER_DSN", cfg.LedgerDSN)

	cfg.CORSAllowedOrigins = envutil.List("CORS_ALLOWED_ORIGINS", cfg.CORSAllowedOrigins)

	cfg.OtelEnabled = envutil.Bool("OTEL_ENABLED", cfg.OtelEnabled)
	cfg.OtelEndpoint = envutil.String("OTEL_EXPORTER_OTLP_ENDPOINT", cfg.OtelEndpoint)
	cfg.OtelProtocol = envutil.String("OTEL_EXPORTER_OTLP_PROTOCOL", cfg.OtelProtocol)
	cfg.OtelHeaders = envutil.String("OTEL_EXPORTER_OTLP_HEADERS", cfg.OtelHeaders)
	cfg.OtelInsecure = envutil.Bool("OTEL_EXPORTER_OTLP_INSECURE", cfg.OtelInsecure)
	cfg.OtelSampleRatio = envutil.Float("OTEL_SAMPLER_RATIO", cfg.OtelSampleRatio)
}

// Validate rejects combinations the process cannot start with.
func (c Config) Validate() error {
	var errs []error
	if strings.TrimSpace(c.Port) == "" {
		errs = append(errs, errors.New("PORT must not be empty"))
	}
	switch c.ObjectStorageMode {
	case StorageModeLocal:
		if strings.TrimSpace(c.DataRoot) == "" {
			errs = append(errs, errors.New("DATA_ROOT must not be empty in local mode"))
		}
	case StorageModeGCS, StorageModeGCSEmulator:
	default:
		errs = append(errs, fmt.Errorf("invalid OBJECT_STORAGE_MODE=%q (allowed: %s, %s, %s)",
			c.ObjectStorageMode, StorageModeLocal, StorageModeGCS, StorageModeGCSEmulator))
	}
	if c.LedgerDSN != "" && c.LedgerDriver != db.DriverPostgres && c.LedgerDriver != db.DriverSQLite {
		errs = append(errs, fmt.Errorf("invalid LEDGER_DRIVER=%q", c.LedgerDriver))
	}
	if c.WorkerConcurrency < 1 {
		errs = append(errs, errors.New("WORKER_CONCURRENCY must be at least 1"))
	}
	if c.WorkerQueueSize < 1 {
		errs = append(errs, errors.New("WORKER_QUEUE_SIZE must be at least 1"))
	}
	return errors.Join(errs...)
}
