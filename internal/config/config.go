package config

import (
	"errors"
	"fmt"
	"log/slog"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

type Environment string

const (
	EnvironmentDevelopment Environment = "development"
	EnvironmentTest        Environment = "test"
	EnvironmentProduction  Environment = "production"
)

type Config struct {
	Server    ServerConfig
	Database  DatabaseConfig
	Redis     RedisConfig
	Storage   StorageConfig
	Telemetry TelemetryConfig
	Auth      AuthConfig
	Upload    UploadConfig
	KPI       KPIConfig
	Daemon    DaemonConfig
}

type ServerConfig struct {
	Host         string
	Port         string
	ReadTimeout  time.Duration
	WriteTimeout time.Duration
	// RequestTimeout bounds the context handed to the service layer.
	RequestTimeout time.Duration
	Environment    Environment
	FrontendDir    string
	AllowedOrigins string
}

func (s ServerConfig) Addr() string {
	return s.Host + ":" + s.Port
}

type DatabaseConfig struct {
	Host         string
	Port         int
	User         string
	Password     string
	Name         string
	SSLMode      string
	MaxOpenConns int
	MaxIdleConns int
	AutoMigrate  bool
}

func (d DatabaseConfig) DSN() string {
	return fmt.Sprintf("host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
		d.Host, d.Port, d.User, d.Password, d.Name, d.SSLMode)
}

// URL returns the connection string in URL form, as expected by the migration driver.
func (d DatabaseConfig) URL() string {
	return fmt.Sprintf("postgres://%s:%s@%s:%d/%s?sslmode=%s",
		d.User, d.Password, d.Host, d.Port, d.Name, d.SSLMode)
}

type RedisConfig struct {
	Enabled  bool
	Addr     string
	Password string
	DB       int
	Prefix   string
}

type StorageType string

const (
	StorageTypeLocal StorageType = "local"
	StorageTypeS3    StorageType = "s3"
)

type StorageConfig struct {
	Type      StorageType
	LocalPath string
	S3Bucket  string
	S3Region  string
}

type TelemetryConfig struct {
	Enabled        bool
	ExporterURL    string
	ServiceName    string
	ServiceVersion string
	Environment    string
	SamplingRatio  float64
}

type AuthConfig struct {
	// PublicKeyPEM is the realm public key used to verify Keycloak access tokens.
	PublicKeyPEM string
	Issuer       string
	// Insecure skips signature verification. Never allowed in production.
	Insecure bool
}

type UploadConfig struct {
	MaxFileSize   int
	RateLimit     int
	RateLimitSpan time.Duration
}

type KPIConfig struct {
	ActiveWindow time.Duration
	CacheTTL     time.Duration
}

type DaemonConfig struct {
	SessionRetention time.Duration
	AuditRetention   time.Duration
	CleanupInterval  time.Duration
}

// Load reads an optional .env file and then the process environment.
func Load() (*Config, error) {
	if err := godotenv.Load(); err != nil && !errors.Is(err, os.ErrNotExist) {
		slog.Warn("Failed to load .env file", "error", err)
	}

	cfg := NewConfig()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func NewConfig() *Config {
	env := Environment(getEnv("SERVER_ENVIRONMENT", string(EnvironmentDevelopment)))

	return &Config{
		Server: ServerConfig{
			Host:           getEnv("SERVER_HOST", "0.0.0.0"),
			Port:           getEnv("SERVER_PORT", "4000"),
			ReadTimeout:    getEnvDuration("SERVER_READ_TIMEOUT", 10*time.Second),
			WriteTimeout:   getEnvDuration("SERVER_WRITE_TIMEOUT", 30*time.Second),
			RequestTimeout: getEnvDuration("SERVER_REQUEST_TIMEOUT", 25*time.Second),
			Environment:    env,
			FrontendDir:    getEnv("FRONTEND_DIR", ""),
			AllowedOrigins: getEnv("ALLOWED_ORIGINS", "*"),
		},
		Database: DatabaseConfig{
			Host:         getEnv("DB_HOST", "localhost"),
			Port:         getEnvInt("DB_PORT", 5432),
			User:         getEnv("DB_USER", "postgres"),
			Password:     getEnv("DB_PASSWORD", "postgres"),
			Name:         getEnv("DB_NAME", "careplan"),
			SSLMode:      getEnv("DB_SSL_MODE", "disable"),
			MaxOpenConns: getEnvInt("DB_MAX_OPEN_CONNS", 10),
			MaxIdleConns: getEnvInt("DB_MAX_IDLE_CONNS", 5),
			AutoMigrate:  getEnvBool("DB_AUTO_MIGRATE", true),
		},
		Redis: RedisConfig{
			Enabled:  getEnvBool("REDIS_ENABLED", true),
			Addr:     getEnv("REDIS_ADDR", "localhost:6379"),
			Password: getEnv("REDIS_PASSWORD", ""),
			DB:       getEnvInt("REDIS_DB", 0),
			Prefix:   getEnv("REDIS_PREFIX", "careplan"),
		},
		Storage: StorageConfig{
			Type:      StorageType(getEnv("STORAGE_TYPE", string(StorageTypeLocal))),
			LocalPath: getEnv("STORAGE_LOCAL_PATH", "./uploads"),
			S3Bucket:  getEnv("STORAGE_S3_BUCKET", ""),
			S3Region:  getEnv("STORAGE_S3_REGION", ""),
		},
		Telemetry: TelemetryConfig{
			Enabled:        getEnvBool("TELEMETRY_ENABLED", false),
			ExporterURL:    getEnv("TELEMETRY_EXPORTER_URL", ""),
			ServiceName:    getEnv("TELEMETRY_SERVICE_NAME", "careplan-api"),
			ServiceVersion: getEnv("VERSION", "dev"),
			Environment:    string(env),
			SamplingRatio:  getEnvFloat("TELEMETRY_SAMPLING_RATIO", 1.0),
		},
		Auth: AuthConfig{
			PublicKeyPEM: normalizePEM(getEnv("AUTH_PUBLIC_KEY", "")),
			Issuer:       getEnv("AUTH_ISSUER", ""),
			Insecure:     getEnvBool("AUTH_INSECURE", false),
		},
		Upload: UploadConfig{
			MaxFileSize:   getEnvInt("UPLOAD_MAX_FILE_SIZE", 10<<20),
			RateLimit:     getEnvInt("UPLOAD_RATE_LIMIT", 20),
			RateLimitSpan: getEnvDuration("UPLOAD_RATE_LIMIT_SPAN", 15*time.Minute),
		},
		KPI: KPIConfig{
			ActiveWindow: getEnvDuration("KPI_ACTIVE_WINDOW", 30*24*time.Hour),
			CacheTTL:     getEnvDuration("KPI_CACHE_TTL", 5*time.Minute),
		},
		Daemon: DaemonConfig{
			SessionRetention: getEnvDuration("SESSION_RETENTION", 180*24*time.Hour),
			AuditRetention:   getEnvDuration("AUDIT_RETENTION", 365*24*time.Hour),
			CleanupInterval:  getEnvDuration("CLEANUP_INTERVAL", time.Hour),
		},
	}
}

func (c *Config) Validate() error {
	switch c.Server.Environment {
	case EnvironmentDevelopment, EnvironmentTest, EnvironmentProduction:
	default:
		return fmt.Errorf("config: unknown environment %q", c.Server.Environment)
	}

	if c.Server.Environment == EnvironmentProduction {
		if c.Auth.Insecure {
			return errors.New("config: AUTH_INSECURE cannot be enabled in production")
		}
		if c.Auth.PublicKeyPEM == "" {
			return errors.New("config: AUTH_PUBLIC_KEY is required in production")
		}
	}

	switch c.Storage.Type {
	case StorageTypeLocal:
	case StorageTypeS3:
		if c.Storage.S3Bucket == "" || c.Storage.S3Region == "" {
			return errors.New("config: S3 storage requires STORAGE_S3_BUCKET and STORAGE_S3_REGION")
		}
	default:
		return fmt.Errorf("config: unsupported storage type %q", c.Storage.Type)
	}

	return nil
}

// normalizePEM accepts a bare base64 realm key, as shown in the Keycloak admin console.
func normalizePEM(key string) string {
	key = strings.TrimSpace(key)
	if key == "" || strings.HasPrefix(key, "-----BEGIN") {
		return key
	}
	return "-----BEGIN PUBLIC KEY-----\n" + key + "\n-----END PUBLIC KEY-----"
}

func getEnv(key string, defaultValue string) string {
	if value, exists := os.LookupEnv(key); exists {
		return value
	}
	return defaultValue
}

func getEnvInt(key string, defaultValue int) int {
	if value, exists := os.LookupEnv(key); exists {
		if intValue, err := strconv.Atoi(value); err == nil {
			return intValue
		}
	}
	return defaultValue
}

func getEnvFloat(key string, defaultValue float64) float64 {
	if value, exists := os.LookupEnv(key); exists {
		if floatValue, err := strconv.ParseFloat(value, 64); err == nil {
			return floatValue
		}
	}
	return defaultValue
}

func getEnvBool(key string, defaultValue bool) bool {
	if value, exists := os.LookupEnv(key); exists {
		if boolValue, err := strconv.ParseBool(value); err == nil {
			return boolValue
		}
	}
	return defaultValue
}

func getEnvDuration(key string, defaultValue time.Duration) time.Duration {
	if value, exists := os.LookupEnv(key); exists {
		if durationValue, err := time.ParseDuration(value); err == nil {
			return durationValue
		}
	}
	return defaultValue
}
