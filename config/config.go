package config

import (
	"errors"
	"fmt"
	"log/slog"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/kevinaaaquil/readersync/utils"
)

const (
	BackendMongo  = "mongo"
	BackendMemory = "memory"

	defaultJWTSecret = "change-me-in-production"
)

type Config struct {
	Port         string
	StoreBackend string
	MongoURI     string
	DBName       string

	JWTSecret string
	AuthEmail string
	AuthPass  string

	RedisAddr             string
	RedisPassword         string
	SendCodeRatePerMinute int
	VerifyRatePerMinute   int
	TokenCleanupInterval  time.Duration

	SMTPHost      string
	SMTPPort      int
	SMTPUsername  string
	SMTPPassword  string // decrypted when configured as enc:
	SMTPFrom      string
	MailBrand     string
	PublicBaseURL string

	S3Bucket        string
	S3Region        string
	S3AccessKeyID   string
	S3SecretKey     string
	BackupRetention int

	LogLevel string
	LogFile  string
}

func Load() (*Config, error) {
	mailKey, err := utils.DecodeKey(getEnv("MAIL_ENCRYPTION_KEY", ""))
	if err != nil {
		return nil, fmt.Errorf("MAIL_ENCRYPTION_KEY: %w", err)
	}
	smtpPass, err := utils.ResolveSecret(getEnv("SMTP_PASSWORD", ""), mailKey)
	if err != nil {
		return nil, fmt.Errorf("SMTP_PASSWORD: %w", err)
	}
	smtpPort, err := getInt("SMTP_PORT", 587)
	if err != nil {
		return nil, err
	}
	sendRate, err := getInt("SEND_CODE_RATE_LIMIT_PER_MINUTE", 5)
	if err != nil {
		return nil, err
	}
	verifyRate, err := getInt("VERIFY_RATE_LIMIT_PER_MINUTE", 10)
	if err != nil {
		return nil, err
	}
	retention, err := getInt("BACKUP_RETENTION", 10)
	if err != nil {
		return nil, err
	}
	cleanup, err := getDuration("TOKEN_CLEANUP_INTERVAL", time.Hour)
	if err != nil {
		return nil, err
	}

	return &Config{
		Port:         getEnv("PORT", "8080"),
		StoreBackend: strings.ToLower(getEnv("STORE_BACKEND", BackendMongo)),
		MongoURI:     getEnv("MONGODB_URI", "mongodb://localhost:27017"),
		DBName:       getEnv("MONGODB_DB", "readersync"),

		JWTSecret: getEnv("JWT_SECRET", defaultJWTSecret),
		AuthEmail: getEnv("AUTH_EMAIL", "admin@example.com"),
		AuthPass:  getEnv("AUTH_PASSWORD", "password"),

		RedisAddr:             getEnv("REDIS_ADDR", ""),
		RedisPassword:         getEnv("REDIS_PASSWORD", ""),
		SendCodeRatePerMinute: sendRate,
		VerifyRatePerMinute:   verifyRate,
		TokenCleanupInterval:  cleanup,

		SMTPHost:      getEnv("SMTP_HOST", ""),
		SMTPPort:      smtpPort,
		SMTPUsername:  getEnv("SMTP_USERNAME", ""),
		SMTPPassword:  smtpPass,
		SMTPFrom:      getEnv("SMTP_FROM", ""),
		MailBrand:     getEnv("MAIL_BRAND", "Life Force Books"),
		PublicBaseURL: strings.TrimRight(getEnv("PUBLIC_BASE_URL", ""), "/"),

		S3Bucket:        getEnv("AWS_S3_BUCKET", ""),
		S3Region:        getEnv("AWS_REGION", "us-east-1"),
		S3AccessKeyID:   getEnv("AWS_ACCESS_KEY_ID", ""),
		S3SecretKey:     getEnv("AWS_SECRET_ACCESS_KEY", ""),
		BackupRetention: retention,

		LogLevel: getEnv("LOG_LEVEL", "info"),
		LogFile:  getEnv("LOG_FILE", ""),
	}, nil
}

// Validate reports every misconfiguration at once.
func (c *Config) Validate() error {
	var errs []error
	switch c.StoreBackend {
	case BackendMongo:
		if c.MongoURI == "" || c.DBName == "" {
			errs = append(errs, errors.New("MONGODB_URI and MONGODB_DB are required for the mongo backend"))
		}
	case BackendMemory:
	default:
		errs = append(errs, fmt.Errorf("STORE_BACKEND must be %q or %q, got %q", BackendMongo, BackendMemory, c.StoreBackend))
	}
	if c.JWTSecret == defaultJWTSecret && c.StoreBackend == BackendMongo {
		errs = append(errs, errors.New("JWT_SECRET must be set to a strong secret"))
	}
	if c.SMTPHost != "" && c.SMTPFrom == "" {
		errs = append(errs, errors.New("SMTP_FROM is required when SMTP_HOST is set"))
	}
	if c.SMTPPort <= 0 || c.SMTPPort > 65535 {
		errs = append(errs, fmt.Errorf("SMTP_PORT out of range: %d", c.SMTPPort))
	}
	if c.SendCodeRatePerMinute <= 0 || c.VerifyRatePerMinute <= 0 {
		errs = append(errs, errors.New("rate limits must be positive"))
	}
	if c.TokenCleanupInterval <= 0 {
		errs = append(errs, errors.New("TOKEN_CLEANUP_INTERVAL must be positive"))
	}
	if c.BackupRetention < 0 {
		errs = append(errs, errors.New("BACKUP_RETENTION must not be negative"))
	}
	return errors.Join(errs...)
}

// LogSummary logs which optional integrations are enabled, without secrets.
func (c *Config) LogSummary() {
	slog.Info("config loaded",
		"port", c.Port,
		"store", c.StoreBackend,
		"redis", c.RedisAddr != "",
		"smtp", c.SMTPHost != "",
		"s3_backups", c.S3Bucket != "",
		"public_base_url", c.PublicBaseURL,
	)
}

func getEnv(key, fallback string) string {
	if v := strings.TrimSpace(os.Getenv(key)); v != "" {
		return v
	}
	return fallback
}

func getInt(key string, fallback int) (int, error) {
	v := getEnv(key, "")
	if v == "" {
		return fallback, nil
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return 0, fmt.Errorf("%s: %w", key, err)
	}
	return n, nil
}

func getDuration(key string, fallback time.Duration) (time.Duration, error) {
	v := getEnv(key, "")
	if v == "" {
		return fallback, nil
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		return 0, fmt.Errorf("%s: %w", key, err)
	}
	return d, nil
}
