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

type Config struct {
	AppEnv      string
	AppName     string
	AppURL      string
	ServerURL   string
	ServerPort  string
	CORSOrigins []string
	LogFormat   string

	DatabaseURL string
	DBHost      string
	DBPort      string
	DBUser      string
	DBPassword  string
	DBName      string
	DBSSLMode   string
	DBMaxConns  int

	JWTSecret string
	JWTTTL    time.Duration

	RedisURL         string
	KafkaBrokers     []string
	KafkaTopicPrefix string

	SMTPHost     string
	SMTPPort     int
	SMTPUser     string
	SMTPPass     string
	MailFrom     string
	MailFromName string

	StripeAPIKey        string
	StripeWebhookSecret string
	DefaultCurrency     string

	AdminEmail    string
	AdminPassword string

	JobPollInterval time.Duration
	JobBatchSize    int
	JobMaxRetries   int

	LoginMaxAttempts int
	LoginLockTime    time.Duration

	MediaDir string
}

func LoadConfig() (*Config, error) {
	if err := godotenv.Load(); err != nil {
		slog.Info("no .env file loaded, using environment variables")
	}

	p := &parser{}
	cfg := &Config{
		AppEnv:      getEnv("APP_ENV", "development"),
		AppName:     getEnv("APP_NAME", "Academy"),
		AppURL:      getEnv("APP_URL", "http://localhost:3000"),
		ServerURL:   getEnv("SERVER_URL", "http://localhost:8080"),
		ServerPort:  getEnv("SERVER_PORT", "8080"),
		CORSOrigins: getEnvList("CORS_ORIGINS", []string{"*"}),
		LogFormat:   getEnv("LOG_FORMAT", ""),

		DatabaseURL: getEnv("DATABASE_URL", ""),
		DBHost:      getEnv("DB_HOST", "localhost"),
		DBPort:      getEnv("DB_PORT", "5432"),
		DBUser:      getEnv("DB_USER", "postgres"),
		DBPassword:  getEnv("DB_PASSWORD", "postgres"),
		DBName:      getEnv("DB_NAME", "academy"),
		DBSSLMode:   getEnv("DB_SSLMODE", "disable"),
		DBMaxConns:  p.getInt("DB_MAX_CONNS", 10),

		JWTSecret: getEnv("JWT_SECRET", "secret"),
		JWTTTL:    p.getDuration("JWT_TTL", 72*time.Hour),

		RedisURL:         getEnv("REDIS_URL", ""),
		KafkaBrokers:     getEnvList("KAFKA_BROKERS", nil),
		KafkaTopicPrefix: getEnv("KAFKA_TOPIC_PREFIX", "academy"),

		SMTPHost:     getEnv("SMTP_HOST", ""),
		SMTPPort:     p.getInt("SMTP_PORT", 587),
		SMTPUser:     getEnv("SMTP_USER", ""),
		SMTPPass:     getEnv("SMTP_PASS", ""),
		MailFrom:     getEnv("MAIL_FROM", "noreply@localhost"),
		MailFromName: getEnv("MAIL_FROM_NAME", ""),

		StripeAPIKey:        getEnv("STRIPE_API_KEY", ""),
		StripeWebhookSecret: getEnv("STRIPE_WEBHOOK_SECRET", ""),
		DefaultCurrency:     strings.ToLower(getEnv("DEFAULT_CURRENCY", "ngn")),

		AdminEmail:    getEnv("ADMIN_EMAIL", ""),
		AdminPassword: getEnv("ADMIN_PASSWORD", ""),

		JobPollInterval: p.getDuration("JOB_POLL_INTERVAL", 5*time.Second),
		JobBatchSize:    p.getInt("JOB_BATCH_SIZE", 20),
		JobMaxRetries:   p.getInt("JOB_MAX_RETRIES", 3),

		LoginMaxAttempts: p.getInt("LOGIN_MAX_ATTEMPTS", 5),
		LoginLockTime:    p.getDuration("LOGIN_LOCK_TIME", 10*time.Minute),

		MediaDir: getEnv("MEDIA_DIR", "./media"),
	}
	if cfg.MailFromName == "" {
		cfg.MailFromName = cfg.AppName
	}
	if cfg.AppEnv != "development" && cfg.AppEnv != "production" {
		p.errs = append(p.errs, fmt.Errorf("APP_ENV: unknown environment %q", cfg.AppEnv))
	}
	if err := errors.Join(p.errs...); err != nil {
		return nil, fmt.Errorf("load config: %w", err)
	}
	return cfg, nil
}

func (c *Config) IsProduction() bool {
	return c.AppEnv == "production"
}

// DSN returns DATABASE_URL when set, otherwise a DSN built from the DB_* parts.
func (c *Config) DSN() string {
	if c.DatabaseURL != "" {
		return c.DatabaseURL
	}
	return fmt.Sprintf("host=%s port=%s user=%s password=%s dbname=%s sslmode=%s",
		c.DBHost, c.DBPort, c.DBUser, c.DBPassword, c.DBName, c.DBSSLMode)
}

func getEnv(key, defaultValue string) string {
	if value, exists := os.LookupEnv(key); exists {
		return value
	}
	return defaultValue
}

func getEnvList(key string, defaultValue []string) []string {
	raw, exists := os.LookupEnv(key)
	if !exists || strings.TrimSpace(raw) == "" {
		return defaultValue
	}
	var out []string
	for _, part := range strings.Split(raw, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}

// parser collects conversion errors so every bad variable is reported at once.
type parser struct {
	errs []error
}

func (p *parser) getInt(key string, defaultValue int) int {
	raw, exists := os.LookupEnv(key)
	if !exists || raw == "" {
		return defaultValue
	}
	n, err := strconv.Atoi(raw)
	if err != nil {
		p.errs = append(p.errs, fmt.Errorf("%s: %w", key, err))
		return defaultValue
	}
	return n
}

func (p *parser) getDuration(key string, defaultValue time.Duration) time.Duration {
	raw, exists := os.LookupEnv(key)
	if !exists || raw == "" {
		return defaultValue
	}
	d, err := time.ParseDuration(raw)
	if err != nil {
		p.errs = append(p.errs, fmt.Errorf("%s: %w", key, err))
		return defaultValue
	}
	return d
}
