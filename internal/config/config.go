package config

import (
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

const (
	defaultHTTPAddr       = ":8080"
	defaultDatabaseURL    = "contacts.db"
	defaultJWTSecret      = "change-me-jwt-secret"
	defaultLogLevel       = "info"
	defaultStorageDriver  = DriverLocal
	defaultUploadMode     = ModePut
	defaultUploadURLTTL   = "60s"
	defaultLocalDir       = "./uploads"
	defaultPublicBaseURL  = "http://localhost:8080"
	defaultAWSRegion      = "us-east-1"
	minUploadURLTTL       = 60 * time.Second
	maxUploadURLTTL       = 3600 * time.Second
	defaultShutdownPeriod = "10s"
)

// Storage drivers.
const (
	DriverS3    = "s3"
	DriverLocal = "local"
)

// Upload authorization protocols.
const (
	ModePut  = "put"
	ModePost = "post"
)

type Config struct {
	AppEnv         string
	HTTPAddr       string
	DatabaseURL    string
	JWTSecret      string
	LogLevel       string
	CORSOrigins    []string
	ShutdownPeriod time.Duration
	Storage        StorageConfig
}

type StorageConfig struct {
	Driver        string
	UploadMode    string
	UploadURLTTL  time.Duration
	Region        string
	Bucket        string
	AccessKeyID   string
	SecretKey     string
	EndpointURL   string
	LocalDir      string
	PublicBaseURL string
}

// Load reads configuration from the environment. A .env file in the working
// directory is applied first when present; real environment variables win.
func Load() (*Config, error) {
	if err := godotenv.Load(); err != nil && !os.IsNotExist(err) {
		return nil, fmt.Errorf("load .env: %w", err)
	}

	cfg := &Config{}
	appEnv := strings.TrimSpace(os.Getenv("APP_ENV"))
	if appEnv == "" {
		appEnv = strings.TrimSpace(os.Getenv("ENV"))
	}
	if appEnv == "" {
		appEnv = "dev"
	}
	cfg.AppEnv = strings.ToLower(appEnv)

	cfg.HTTPAddr = strings.TrimSpace(getEnv("HTTP_ADDR", defaultHTTPAddr))
	cfg.DatabaseURL = strings.TrimSpace(getEnv("DATABASE_URL", defaultDatabaseURL))
	cfg.JWTSecret = strings.TrimSpace(getEnv("JWT_SECRET", defaultJWTSecret))
	cfg.LogLevel = strings.ToLower(strings.TrimSpace(getEnv("LOG_LEVEL", defaultLogLevel)))
	cfg.CORSOrigins = splitList(os.Getenv("CORS_ALLOWED_ORIGINS"))

	var err error
	cfg.ShutdownPeriod, err = parseDurationEnv("SHUTDOWN_PERIOD", defaultShutdownPeriod)
	if err != nil {
		return nil, err
	}

	st := &cfg.Storage
	st.Driver = strings.ToLower(strings.TrimSpace(getEnv("STORAGE_DRIVER", defaultStorageDriver)))
	st.UploadMode = strings.ToLower(strings.TrimSpace(getEnv("UPLOAD_MODE", defaultUploadMode)))
	st.UploadURLTTL, err = parseDurationEnv("UPLOAD_URL_TTL", defaultUploadURLTTL)
	if err != nil {
		return nil, err
	}
	st.Region = strings.TrimSpace(getEnv("AWS_REGION", defaultAWSRegion))
	st.Bucket = strings.TrimSpace(os.Getenv("AWS_BUCKET_NAME"))
	st.AccessKeyID = strings.TrimSpace(os.Getenv("AWS_ACCESS_KEY_ID"))
	st.SecretKey = strings.TrimSpace(os.Getenv("AWS_SECRET_ACCESS_KEY"))
	st.EndpointURL = strings.TrimSpace(os.Getenv("AWS_ENDPOINT_URL"))
	st.LocalDir = strings.TrimSpace(getEnv("STORAGE_LOCAL_DIR", defaultLocalDir))
	st.PublicBaseURL = strings.TrimRight(strings.TrimSpace(getEnv("STORAGE_PUBLIC_BASE_URL", defaultPublicBaseURL)), "/")

	if err := validateConfig(cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}

func validateConfig(cfg *Config) error {
	if cfg.HTTPAddr == "" {
		return fmt.Errorf("HTTP_ADDR must not be empty")
	}
	if cfg.DatabaseURL == "" {
		return fmt.Errorf("DATABASE_URL must not be empty")
	}
	switch cfg.LogLevel {
	case "debug", "info", "warn", "error":
	default:
		return fmt.Errorf("LOG_LEVEL must be one of: debug, info, warn, error")
	}
	if cfg.ShutdownPeriod <= 0 {
		return fmt.Errorf("SHUTDOWN_PERIOD must be > 0")
	}

	st := cfg.Storage
	if st.UploadURLTTL < minUploadURLTTL || st.UploadURLTTL > maxUploadURLTTL {
		return fmt.Errorf("UPLOAD_URL_TTL must be between %s and %s", minUploadURLTTL, maxUploadURLTTL)
	}
	if st.UploadMode != ModePut && st.UploadMode != ModePost {
		return fmt.Errorf("UPLOAD_MODE must be one of: put, post")
	}
	switch st.Driver {
	case DriverS3:
		if st.Bucket == "" {
			return fmt.Errorf("AWS_BUCKET_NAME is required when STORAGE_DRIVER=s3")
		}
		if st.Region == "" {
			return fmt.Errorf("AWS_REGION is required when STORAGE_DRIVER=s3")
		}
		if (st.AccessKeyID == "") != (st.SecretKey == "") {
			return fmt.Errorf("AWS_ACCESS_KEY_ID and AWS_SECRET_ACCESS_KEY must be set together")
		}
	case DriverLocal:
		if st.LocalDir == "" {
			return fmt.Errorf("STORAGE_LOCAL_DIR must not be empty")
		}
		if st.PublicBaseURL == "" {
			return fmt.Errorf("STORAGE_PUBLIC_BASE_URL must not be empty")
		}
	default:
		return fmt.Errorf("STORAGE_DRIVER must be one of: s3, local")
	}

	if isProdLike(cfg.AppEnv) {
		if isEmptyOrDefault(cfg.JWTSecret, defaultJWTSecret) {
			return fmt.Errorf("in prod/release JWT_SECRET must be set and not default")
		}
		if st.Driver == DriverLocal {
			return fmt.Errorf("in prod/release STORAGE_DRIVER must be s3")
		}
	}

	return nil
}

// IsProd reports whether the service runs with production settings.
func (c *Config) IsProd() bool {
	return isProdLike(c.AppEnv)
}

func isProdLike(env string) bool {
	env = strings.ToLower(strings.TrimSpace(env))
	return env == "prod" || env == "production" || env == "release"
}

func isEmptyOrDefault(v, def string) bool {
	trimmed := strings.TrimSpace(v)
	return trimmed == "" || trimmed == def
}

func parseDurationEnv(name, fallback string) (time.Duration, error) {
	value := strings.TrimSpace(getEnv(name, fallback))
	d, err := time.ParseDuration(value)
	if err != nil {
		return 0, fmt.Errorf("invalid %s value %q: %w", name, value, err)
	}
	return d, nil
}

func splitList(raw string) []string {
	var out []string
	for _, item := range strings.Split(raw, ",") {
		item = strings.TrimSpace(item)
		if item != "" {
			out = append(out, item)
		}
	}
	return out
}

func getEnv(name, fallback string) string {
	if v := os.Getenv(name); v != "" {
		return v
	}
	return fallback
}
