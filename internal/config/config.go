package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

// Config holds all application configuration.
type Config struct {
	Server  ServerConfig
	DB      DBConfig
	JWT     JWTConfig
	S3      S3Config
	Log     LogConfig
	Email   EmailConfig
	Signing SigningConfig
	Geo     GeoConfig
	Lock    LockConfig
}

// EmailConfig holds email delivery settings.
type EmailConfig struct {
	Provider    string `mapstructure:"provider"`
	Region      string `mapstructure:"region"`
	FromAddress string `mapstructure:"from_address"`
	FromName    string `mapstructure:"from_name"`
}

// ServerConfig holds HTTP server settings.
type ServerConfig struct {
	Port          string        `mapstructure:"port"`
	ReadTimeout   time.Duration `mapstructure:"read_timeout"`
	WriteTimeout  time.Duration `mapstructure:"write_timeout"`
	Environment   string        `mapstructure:"environment"`
	PublicBaseURL string        `mapstructure:"public_base_url"`
	SweepInterval time.Duration `mapstructure:"sweep_interval"`
	CORSOrigins   []string      `mapstructure:"cors_origins"`
}

// DBConfig holds database connection settings. Driver "memory" keeps all
// state in process and is meant for development and tests.
type DBConfig struct {
	Driver   string `mapstructure:"driver"`
	Host     string `mapstructure:"host"`
	Port     int    `mapstructure:"port"`
	User     string `mapstructure:"user"`
	Password string `mapstructure:"password"`
	Name     string `mapstructure:"name"`
	SSLMode  string `mapstructure:"sslmode"`
	MaxOpen  int    `mapstructure:"max_open"`
	MaxIdle  int    `mapstructure:"max_idle"`
}

// DSN returns the PostgreSQL connection string.
func (d *DBConfig) DSN() string {
	return fmt.Sprintf(
		"postgres://%s:%s@%s:%d/%s?sslmode=%s",
		d.User, d.Password, d.Host, d.Port, d.Name, d.SSLMode,
	)
}

// JWTConfig holds JWT signing and expiry settings.
type JWTConfig struct {
	Secret            string        `mapstructure:"secret"`
	AccessTokenExpiry time.Duration `mapstructure:"access_expiry"`
	Issuer            string        `mapstructure:"issuer"`
}

// S3Config holds AWS S3 settings. An empty bucket keeps artifacts in memory.
type S3Config struct {
	Region        string `mapstructure:"region"`
	Bucket        string `mapstructure:"bucket"`
	Prefix        string `mapstructure:"prefix"`
	Endpoint      string `mapstructure:"endpoint"`
	AccessKey     string `mapstructure:"access_key"`
	SecretKey     string `mapstructure:"secret_key"`
	MaxFileSizeMB int64  `mapstructure:"max_file_size_mb"`
	PresignExpiry int64  `mapstructure:"presign_expiry"`
}

// LogConfig holds logging settings.
type LogConfig struct {
	Level      string `mapstructure:"level"`
	Format     string `mapstructure:"format"`
	File       string `mapstructure:"file"`
	MaxSizeMB  int    `mapstructure:"max_size_mb"`
	MaxBackups int    `mapstructure:"max_backups"`
	MaxAgeDays int    `mapstructure:"max_age_days"`
	Compress   bool   `mapstructure:"compress"`
}

// SigningConfig holds signing engine and protocol settings.
type SigningConfig struct {
	Timeout                 time.Duration `mapstructure:"timeout"`
	Workers                 int           `mapstructure:"workers"`
	QueueSize               int           `mapstructure:"queue_size"`
	ProtocolValidityYears   int           `mapstructure:"protocol_validity_years"`
	MaxCodeAttempts         int           `mapstructure:"max_code_attempts"`
	DegradedMode            bool          `mapstructure:"degraded_mode"`
	RequireRecognizedIssuer bool          `mapstructure:"require_recognized_issuer"`
	IssuersFile             string        `mapstructure:"issuers_file"`
	TrustRootsFile          string        `mapstructure:"trust_roots_file"`
	CPFPepper               string        `mapstructure:"cpf_pepper"`
	RecentAuditEntries      int           `mapstructure:"recent_audit_entries"`
}

// GeoConfig holds the MaxMind database location. An empty path disables geo lookup.
type GeoConfig struct {
	MMDBPath string `mapstructure:"mmdb_path"`
}

// LockConfig selects the per-document signing lock.
type LockConfig struct {
	Provider string        `mapstructure:"provider"`
	Addr     string        `mapstructure:"addr"`
	Password string        `mapstructure:"password"`
	DB       int           `mapstructure:"db"`
	TTL      time.Duration `mapstructure:"ttl"`
	Wait     time.Duration `mapstructure:"wait"`
}

// Load reads configuration from environment variables with the DOCSIGN_ prefix.
// A .env file in the working directory is applied first when present.
func Load() (*Config, error) {
	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("loading .env: %w", err)
	}

	v := viper.New()
	v.SetEnvPrefix("DOCSIGN")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	// Server defaults
	v.SetDefault("server.port", ":8080")
	v.SetDefault("server.read_timeout", "30s")
	v.SetDefault("server.write_timeout", "60s")
	v.SetDefault("server.environment", "development")
	v.SetDefault("server.public_base_url", "http://localhost:8080")
	v.SetDefault("server.sweep_interval", "1h")
	v.SetDefault("server.cors_origins", "*")

	// DB defaults
	v.SetDefault("db.driver", "postgres")
	v.SetDefault("db.host", "localhost")
	v.SetDefault("db.port", 5432)
	v.SetDefault("db.user", "docsign")
	v.SetDefault("db.password", "docsign_secret")
	v.SetDefault("db.name", "docsign_db")
	v.SetDefault("db.sslmode", "disable")
	v.SetDefault("db.max_open", 25)
	v.SetDefault("db.max_idle", 10)

	// JWT defaults
	v.SetDefault("jwt.secret", "change-me-in-production")
	v.SetDefault("jwt.access_expiry", "1h")
	v.SetDefault("jwt.issuer", "docsign")

	// S3 defaults
	v.SetDefault("s3.region", "us-east-1")
	v.SetDefault("s3.bucket", "")
	v.SetDefault("s3.prefix", "documents")
	v.SetDefault("s3.endpoint", "")
	v.SetDefault("s3.max_file_size_mb", 25)
	v.SetDefault("s3.presign_expiry", 3600)

	// Log defaults
	v.SetDefault("log.level", "debug")
	v.SetDefault("log.format", "console")
	v.SetDefault("log.file", "")
	v.SetDefault("log.max_size_mb", 100)
	v.SetDefault("log.max_backups", 10)
	v.SetDefault("log.max_age_days", 90)
	v.SetDefault("log.compress", true)

	// Email defaults
	v.SetDefault("email.provider", "noop")
	v.SetDefault("email.region", "sa-east-1")
	v.SetDefault("email.from_address", "noreply@docsign.local")
	v.SetDefault("email.from_name", "DocSign")

	// Signing defaults
	v.SetDefault("signing.timeout", "30s")
	v.SetDefault("signing.workers", 4)
	v.SetDefault("signing.queue_size", 64)
	v.SetDefault("signing.protocol_validity_years", 5)
	v.SetDefault("signing.max_code_attempts", 10)
	v.SetDefault("signing.degraded_mode", false)
	v.SetDefault("signing.require_recognized_issuer", false)
	v.SetDefault("signing.issuers_file", "")
	v.SetDefault("signing.trust_roots_file", "")
	v.SetDefault("signing.cpf_pepper", "")
	v.SetDefault("signing.recent_audit_entries", 20)

	// Geo defaults
	v.SetDefault("geo.mmdb_path", "")

	// Lock defaults
	v.SetDefault("lock.provider", "local")
	v.SetDefault("lock.addr", "localhost:6379")
	v.SetDefault("lock.password", "")
	v.SetDefault("lock.db", 0)
	v.SetDefault("lock.ttl", "2m")
	v.SetDefault("lock.wait", "10s")

	// Bind environment variables explicitly for nested keys
	envBindings := map[string]string{
		"server.port":                       "DOCSIGN_SERVER_PORT",
		"server.read_timeout":               "DOCSIGN_SERVER_READ_TIMEOUT",
		"server.write_timeout":              "DOCSIGN_SERVER_WRITE_TIMEOUT",
		"server.environment":                "DOCSIGN_SERVER_ENVIRONMENT",
		"server.public_base_url":            "DOCSIGN_SERVER_PUBLIC_BASE_URL",
		"server.sweep_interval":             "DOCSIGN_SERVER_SWEEP_INTERVAL",
		"server.cors_origins":               "DOCSIGN_SERVER_CORS_ORIGINS",
		"db.driver":                         "DOCSIGN_DB_DRIVER",
		"db.host":                           "DOCSIGN_DB_HOST",
		"db.port":                           "DOCSIGN_DB_PORT",
		"db.user":                           "DOCSIGN_DB_USER",
		"db.password":                       "DOCSIGN_DB_PASSWORD",
		"db.name":                           "DOCSIGN_DB_NAME",
		"db.sslmode":                        "DOCSIGN_DB_SSLMODE",
		"db.max_open":                       "DOCSIGN_DB_MAX_OPEN",
		"db.max_idle":                       "DOCSIGN_DB_MAX_IDLE",
		"jwt.secret":                        "DOCSIGN_JWT_SECRET",
		"jwt.access_expiry":                 "DOCSIGN_JWT_ACCESS_EXPIRY",
		"jwt.issuer":                        "DOCSIGN_JWT_ISSUER",
		"s3.region":                         "DOCSIGN_S3_REGION",
		"s3.bucket":                         "DOCSIGN_S3_BUCKET",
		"s3.prefix":                         "DOCSIGN_S3_PREFIX",
		"s3.endpoint":                       "DOCSIGN_S3_ENDPOINT",
		"s3.access_key":                     "DOCSIGN_S3_ACCESS_KEY",
		"s3.secret_key":                     "DOCSIGN_S3_SECRET_KEY",
		"s3.max_file_size_mb":               "DOCSIGN_S3_MAX_FILE_SIZE_MB",
		"s3.presign_expiry":                 "DOCSIGN_S3_PRESIGN_EXPIRY",
		"log.level":                         "DOCSIGN_LOG_LEVEL",
		"log.format":                        "DOCSIGN_LOG_FORMAT",
		"log.file":                          "DOCSIGN_LOG_FILE",
		"log.max_size_mb":                   "DOCSIGN_LOG_MAX_SIZE_MB",
		"log.max_backups":                   "DOCSIGN_LOG_MAX_BACKUPS",
		"log.max_age_days":                  "DOCSIGN_LOG_MAX_AGE_DAYS",
		"log.compress":                      "DOCSIGN_LOG_COMPRESS",
		"email.provider":                    "DOCSIGN_EMAIL_PROVIDER",
		"email.region":                      "DOCSIGN_EMAIL_REGION",
		"email.from_address":                "DOCSIGN_EMAIL_FROM_ADDRESS",
		"email.from_name":                   "DOCSIGN_EMAIL_FROM_NAME",
		"signing.timeout":                   "DOCSIGN_SIGNING_TIMEOUT",
		"signing.workers":                   "DOCSIGN_SIGNING_WORKERS",
		"signing.queue_size":                "DOCSIGN_SIGNING_QUEUE_SIZE",
		"signing.protocol_validity_years":   "DOCSIGN_SIGNING_PROTOCOL_VALIDITY_YEARS",
		"signing.max_code_attempts":         "DOCSIGN_SIGNING_MAX_CODE_ATTEMPTS",
		"signing.degraded_mode":             "DOCSIGN_SIGNING_DEGRADED_MODE",
		"signing.require_recognized_issuer": "DOCSIGN_SIGNING_REQUIRE_RECOGNIZED_ISSUER",
		"signing.issuers_file":              "DOCSIGN_SIGNING_ISSUERS_FILE",
		"signing.trust_roots_file":          "DOCSIGN_SIGNING_TRUST_ROOTS_FILE",
		"signing.cpf_pepper":                "DOCSIGN_SIGNING_CPF_PEPPER",
		"signing.recent_audit_entries":      "DOCSIGN_SIGNING_RECENT_AUDIT_ENTRIES",
		"geo.mmdb_path":                     "DOCSIGN_GEO_MMDB_PATH",
		"lock.provider":                     "DOCSIGN_LOCK_PROVIDER",
		"lock.addr":                         "DOCSIGN_LOCK_ADDR",
		"lock.password":                     "DOCSIGN_LOCK_PASSWORD",
		"lock.db":                           "DOCSIGN_LOCK_DB",
		"lock.ttl":                          "DOCSIGN_LOCK_TTL",
		"lock.wait":                         "DOCSIGN_LOCK_WAIT",
	}
	for key, env := range envBindings {
		_ = v.BindEnv(key, env)
	}

	cfg := &Config{}

	// Platforms that inject PORT win unless DOCSIGN_SERVER_PORT is set.
	serverPort := v.GetString("server.port")
	if port := os.Getenv("PORT"); port != "" && os.Getenv("DOCSIGN_SERVER_PORT") == "" {
		serverPort = ":" + port
	}

	cfg.Server = ServerConfig{
		Port:          serverPort,
		ReadTimeout:   v.GetDuration("server.read_timeout"),
		WriteTimeout:  v.GetDuration("server.write_timeout"),
		Environment:   v.GetString("server.environment"),
		PublicBaseURL: strings.TrimRight(v.GetString("server.public_base_url"), "/"),
		SweepInterval: v.GetDuration("server.sweep_interval"),
		CORSOrigins:   splitList(v.GetString("server.cors_origins")),
	}
	cfg.DB = DBConfig{
		Driver:   v.GetString("db.driver"),
		Host:     v.GetString("db.host"),
		Port:     v.GetInt("db.port"),
		User:     v.GetString("db.user"),
		Password: v.GetString("db.password"),
		Name:     v.GetString("db.name"),
		SSLMode:  v.GetString("db.sslmode"),
		MaxOpen:  v.GetInt("db.max_open"),
		MaxIdle:  v.GetInt("db.max_idle"),
	}
	cfg.JWT = JWTConfig{
		Secret:            v.GetString("jwt.secret"),
		AccessTokenExpiry: v.GetDuration("jwt.access_expiry"),
		Issuer:            v.GetString("jwt.issuer"),
	}
	cfg.S3 = S3Config{
		Region:        v.GetString("s3.region"),
		Bucket:        v.GetString("s3.bucket"),
		Prefix:        strings.Trim(v.GetString("s3.prefix"), "/"),
		Endpoint:      v.GetString("s3.endpoint"),
		AccessKey:     v.GetString("s3.access_key"),
		SecretKey:     v.GetString("s3.secret_key"),
		MaxFileSizeMB: v.GetInt64("s3.max_file_size_mb"),
		PresignExpiry: v.GetInt64("s3.presign_expiry"),
	}
	cfg.Log = LogConfig{
		Level:      v.GetString("log.level"),
		Format:     v.GetString("log.format"),
		File:       v.GetString("log.file"),
		MaxSizeMB:  v.GetInt("log.max_size_mb"),
		MaxBackups: v.GetInt("log.max_backups"),
		MaxAgeDays: v.GetInt("log.max_age_days"),
		Compress:   v.GetBool("log.compress"),
	}
	cfg.Email = EmailConfig{
		Provider:    v.GetString("email.provider"),
		Region:      v.GetString("email.region"),
		FromAddress: v.GetString("email.from_address"),
		FromName:    v.GetString("email.from_name"),
	}
	cfg.Signing = SigningConfig{
		Timeout:                 v.GetDuration("signing.timeout"),
		Workers:                 v.GetInt("signing.workers"),
		QueueSize:               v.GetInt("signing.queue_size"),
		ProtocolValidityYears:   v.GetInt("signing.protocol_validity_years"),
		MaxCodeAttempts:         v.GetInt("signing.max_code_attempts"),
		DegradedMode:            v.GetBool("signing.degraded_mode"),
		RequireRecognizedIssuer: v.GetBool("signing.require_recognized_issuer"),
		IssuersFile:             v.GetString("signing.issuers_file"),
		TrustRootsFile:          v.GetString("signing.trust_roots_file"),
		CPFPepper:               v.GetString("signing.cpf_pepper"),
		RecentAuditEntries:      v.GetInt("signing.recent_audit_entries"),
	}
	cfg.Geo = GeoConfig{
		MMDBPath: v.GetString("geo.mmdb_path"),
	}
	cfg.Lock = LockConfig{
		Provider: v.GetString("lock.provider"),
		Addr:     v.GetString("lock.addr"),
		Password: v.GetString("lock.password"),
		DB:       v.GetInt("lock.db"),
		TTL:      v.GetDuration("lock.ttl"),
		Wait:     v.GetDuration("lock.wait"),
	}

	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) validate() error {
	switch c.DB.Driver {
	case "postgres", "memory":
	default:
		return fmt.Errorf("config: unknown db.driver %q", c.DB.Driver)
	}
	switch c.Lock.Provider {
	case "local", "redis":
	default:
		return fmt.Errorf("config: unknown lock.provider %q", c.Lock.Provider)
	}
	if c.Signing.Workers < 1 {
		return fmt.Errorf("config: signing.workers must be at least 1")
	}
	if c.Signing.ProtocolValidityYears < 1 {
		return fmt.Errorf("config: signing.protocol_validity_years must be at least 1")
	}
	if c.Signing.MaxCodeAttempts < 1 {
		return fmt.Errorf("config: signing.max_code_attempts must be at least 1")
	}
	if c.Server.Environment == "production" && c.JWT.Secret == "change-me-in-production" {
		return fmt.Errorf("config: jwt.secret must be set in production")
	}
	return nil
}

func splitList(s string) []string {
	var out []string
	for _, part := range strings.Split(s, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}
