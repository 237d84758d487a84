package config

import (
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

// Config holds all application configuration
type Config struct {
	GoEnv       string
	Port        string
	DatabaseURL string
	LogLevel    string

	JWTSecret   string
	JWTIssuer   string
	JWTAudience string
	TokenTTL    time.Duration

	RedisAddr         string
	RedisPassword     string
	RedisDB           int
	WorkerConcurrency int

	AWSRegion          string
	AWSS3Bucket        string
	AWSAccessKeyID     string
	AWSSecretAccessKey string

	CORSAllowedOrigins    []string
	OtpRateLimitPerMinute int
	OtpRateLimitBurst     int
	NotificationTimeout   time.Duration
}

var appConfig *Config

// Load reads .env.<GO_ENV>, then .env, then the process environment. Values
// already present in the environment win over both files.
func Load() (*Config, error) {
	env := os.Getenv("GO_ENV")
	if env == "" {
		env = "development"
	}

	envFile := fmt.Sprintf(".env.%s", env)
	loaded := envFile
	if err := godotenv.Load(envFile); err != nil {
		loaded = ".env"
		if err := godotenv.Load(); err != nil {
			loaded = ""
		}
	}

	v := viper.New()
	v.AutomaticEnv()
	setDefaults(v)

	config := &Config{
		GoEnv:       v.GetString("GO_ENV"),
		Port:        v.GetString("PORT"),
		DatabaseURL: v.GetString("DATABASE_URL"),
		LogLevel:    v.GetString("LOG_LEVEL"),

		JWTSecret:   v.GetString("JWT_SECRET"),
		JWTIssuer:   v.GetString("JWT_ISSUER"),
		JWTAudience: v.GetString("JWT_AUDIENCE"),
		TokenTTL:    v.GetDuration("TOKEN_TTL"),

		RedisAddr:         v.GetString("REDIS_ADDR"),
		RedisPassword:     v.GetString("REDIS_PASSWORD"),
		RedisDB:           v.GetInt("REDIS_DB"),
		WorkerConcurrency: v.GetInt("WORKER_CONCURRENCY"),

		AWSRegion:          v.GetString("AWS_REGION"),
		AWSS3Bucket:        v.GetString("AWS_S3_BUCKET"),
		AWSAccessKeyID:     v.GetString("AWS_ACCESS_KEY_ID"),
		AWSSecretAccessKey: v.GetString("AWS_SECRET_ACCESS_KEY"),

		CORSAllowedOrigins:    parseList(v.GetString("CORS_ALLOWED_ORIGINS")),
		OtpRateLimitPerMinute: v.GetInt("OTP_RATE_LIMIT_PER_MINUTE"),
		OtpRateLimitBurst:     v.GetInt("OTP_RATE_LIMIT_BURST"),
		NotificationTimeout:   v.GetDuration("NOTIFICATION_TIMEOUT"),
	}

	if err := config.Validate(); err != nil {
		return nil, err
	}

	if loaded != "" {
		fmt.Fprintf(os.Stderr, "loaded configuration from %s\n", loaded)
	}
	return config, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("GO_ENV", "development")
	v.SetDefault("PORT", "8080")
	v.SetDefault("LOG_LEVEL", "info")
	v.SetDefault("JWT_ISSUER", "helphub-api")
	v.SetDefault("JWT_AUDIENCE", "helphub-volunteers")
	v.SetDefault("TOKEN_TTL", "168h")
	v.SetDefault("REDIS_DB", 0)
	v.SetDefault("WORKER_CONCURRENCY", 10)
	v.SetDefault("AWS_REGION", "us-east-1")
	v.SetDefault("CORS_ALLOWED_ORIGINS", "http://localhost:3000")
	v.SetDefault("OTP_RATE_LIMIT_PER_MINUTE", 10)
	v.SetDefault("OTP_RATE_LIMIT_BURST", 5)
	v.SetDefault("NOTIFICATION_TIMEOUT", "10s")
}

// Validate checks that all required configuration values are set
func (c *Config) Validate() error {
	if c.DatabaseURL == "" {
		return fmt.Errorf("DATABASE_URL is required")
	}
	if c.JWTSecret == "" {
		return fmt.Errorf("JWT_SECRET is required")
	}
	if c.TokenTTL <= 0 {
		return fmt.Errorf("TOKEN_TTL must be a positive duration")
	}
	if c.OtpRateLimitPerMinute <= 0 || c.OtpRateLimitBurst <= 0 {
		return fmt.Errorf("OTP rate limit settings must be positive")
	}
	return nil
}

// IsProduction returns true if the application is running in production mode
func (c *Config) IsProduction() bool {
	return c.GoEnv == "production"
}

// IsTest returns true if the application is running in test mode
func (c *Config) IsTest() bool {
	return c.GoEnv == "test"
}

// IsDevelopment returns true if the application is running in development mode
func (c *Config) IsDevelopment() bool {
	return c.GoEnv == "development"
}

// RedisEnabled reports whether a Redis address was configured
func (c *Config) RedisEnabled() bool {
	return c.RedisAddr != ""
}

// S3Enabled reports whether profile image storage was configured
func (c *Config) S3Enabled() bool {
	return c.AWSS3Bucket != ""
}

// GetConfig returns the configuration stored by SetConfig
func GetConfig() *Config {
	return appConfig
}

// SetConfig stores the process-wide configuration
func SetConfig(cfg *Config) {
	appConfig = cfg
}

func parseList(raw string) []string {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return nil
	}
	items := strings.Split(raw, ",")
	result := make([]string, 0, len(items))
	for _, item := range items {
		if item = strings.TrimSpace(item); item != "" {
			result = append(result, item)
		}
	}
	return result
}
