package config

import (
	"fmt"
	"net/url"
	"os"
	"strconv"
	"strings"
	"time"
	_ "time/tzdata"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

const (
	DriverPostgres = "postgres"
	DriverMemory   = "memory"
)

type Config struct {
	Server     ServerConfig     `yaml:"server"`
	Postgres   PostgresConfig   `yaml:"postgres"`
	Redis      RedisConfig      `yaml:"redis"`
	Storage    StorageConfig    `yaml:"storage"`
	Auth       AuthConfig       `yaml:"auth"`
	Billing    BillingConfig    `yaml:"billing"`
	Automation AutomationConfig `yaml:"automation"`
	AI         AIConfig         `yaml:"ai"`
	Push       PushConfig       `yaml:"push"`
	RateLimit  RateLimitConfig  `yaml:"rate_limit"`
	Log        LogConfig        `yaml:"log"`
}

type ServerConfig struct {
	Host string `yaml:"host"`
	Port int    `yaml:"port"`
}

type RedisConfig struct {
	Addr     string `yaml:"addr"`
	Password string `yaml:"password"`
	DB       int    `yaml:"db"`
}

type PostgresConfig struct {
	User     string `yaml:"user"`
	Password string `yaml:"password"`
	Name     string `yaml:"name"`
	Host     string `yaml:"host"`
	Port     int    `yaml:"port"`
	SSLMode  string `yaml:"sslmode"`
}

// DSN renders the connection string accepted by both pgxpool and the pgx database/sql driver.
func (p PostgresConfig) DSN() string {
	u := url.URL{
		Scheme:   "postgres",
		User:     url.UserPassword(p.User, p.Password),
		Host:     fmt.Sprintf("%s:%d", p.Host, p.Port),
		Path:     p.Name,
		RawQuery: "sslmode=" + p.SSLMode,
	}
	return u.String()
}

type StorageConfig struct {
	Driver         string `yaml:"driver"`
	MigrationsAuto bool   `yaml:"migrations_auto"`
}

type AuthConfig struct {
	JWTSecret string        `yaml:"jwt_secret"`
	JWTTTL    time.Duration `yaml:"jwt_ttl"`
	OTPTTL    time.Duration `yaml:"otp_ttl"`
	OTPLength int           `yaml:"otp_length"`
	OTPEcho   bool          `yaml:"otp_echo"`
}

type BillingConfig struct {
	Timezone           string  `yaml:"timezone"`
	ExtensionPricing   string  `yaml:"extension_pricing"`
	OverstayMultiplier float64 `yaml:"overstay_multiplier"`
	NoShowPenalty      float64 `yaml:"noshow_penalty"`
}

type AutomationConfig struct {
	NoShowGrace   time.Duration `yaml:"noshow_grace"`
	OverstayMax   time.Duration `yaml:"overstay_max"`
	SweepInterval time.Duration `yaml:"sweep_interval"`
}

type AIConfig struct {
	BaseURL string        `yaml:"base_url"`
	APIKey  string        `yaml:"api_key"`
	Model   string        `yaml:"model"`
	Timeout time.Duration `yaml:"timeout"`
}

type PushConfig struct {
	VAPIDPublicKey  string `yaml:"vapid_public_key"`
	VAPIDPrivateKey string `yaml:"vapid_private_key"`
	Subscriber      string `yaml:"subscriber"`
	Workers         int    `yaml:"workers"`
}

type RateLimitConfig struct {
	RPS   float64 `yaml:"rps"`
	Burst int     `yaml:"burst"`
}

type LogConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
	Output string `yaml:"output"`
}

func defaults() Config {
	return Config{
		Server: ServerConfig{Host: "localhost", Port: 8080},
		Postgres: PostgresConfig{
			Host:    "localhost",
			Port:    5432,
			SSLMode: "disable",
		},
		Redis:   RedisConfig{Addr: "localhost:6379"},
		Storage: StorageConfig{Driver: DriverPostgres, MigrationsAuto: true},
		Auth: AuthConfig{
			JWTTTL:    30 * 24 * time.Hour,
			OTPTTL:    5 * time.Minute,
			OTPLength: 6,
		},
		Billing: BillingConfig{
			Timezone:           "Asia/Kolkata",
			ExtensionPricing:   "base",
			OverstayMultiplier: 1.5,
			NoShowPenalty:      50,
		},
		Automation: AutomationConfig{
			NoShowGrace:   15 * time.Minute,
			OverstayMax:   4 * time.Hour,
			SweepInterval: time.Minute,
		},
		AI: AIConfig{
			BaseURL: "https://api.openai.com/v1",
			Model:   "gpt-4o-mini",
			Timeout: 20 * time.Second,
		},
		Push:      PushConfig{Workers: 4},
		RateLimit: RateLimitConfig{RPS: 20, Burst: 40},
		Log:       LogConfig{Level: "info", Format: "json", Output: "stdout"},
	}
}

// New builds the configuration from defaults, an optional YAML file named by CONFIG_FILE,
// and the environment (a .env file is loaded first when present). Environment wins.
func New() (*Config, error) {
	const op = "config.New"

	_ = godotenv.Load()

	cfg := defaults()

	if path := os.Getenv("CONFIG_FILE"); path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("%s: read %s: %w", op, path, err)
		}
		if err := yaml.Unmarshal(data, &cfg); err != nil {
			return nil, fmt.Errorf("%s: decode %s: %w", op, path, err)
		}
	}

	e := envReader{}

	e.str("SERVER_HOST", &cfg.Server.Host)
	e.integer("SERVER_PORT", &cfg.Server.Port)

	e.str("POSTGRES_HOST", &cfg.Postgres.Host)
	e.integer("POSTGRES_PORT", &cfg.Postgres.Port)
	e.str("POSTGRES_USER", &cfg.Postgres.User)
	e.str("POSTGRES_PASSWORD", &cfg.Postgres.Password)
	e.str("POSTGRES_DB", &cfg.Postgres.Name)
	e.str("POSTGRES_SSLMODE", &cfg.Postgres.SSLMode)

	e.str("REDIS_ADDR", &cfg.Redis.Addr)
	e.str("REDIS_PASSWORD", &cfg.Redis.Password)
	e.integer("REDIS_DB", &cfg.Redis.DB)

	e.str("STORAGE_DRIVER", &cfg.Storage.Driver)
	e.boolean("MIGRATIONS_AUTO", &cfg.Storage.MigrationsAuto)

	e.str("JWT_SECRET", &cfg.Auth.JWTSecret)
	e.duration("JWT_TTL", &cfg.Auth.JWTTTL)
	e.duration("OTP_TTL", &cfg.Auth.OTPTTL)
	e.integer("OTP_LENGTH", &cfg.Auth.OTPLength)
	e.boolean("OTP_ECHO", &cfg.Auth.OTPEcho)

	e.str("CAFE_TIMEZONE", &cfg.Billing.Timezone)
	e.str("EXTENSION_PRICING", &cfg.Billing.ExtensionPricing)
	e.float("OVERSTAY_MULTIPLIER", &cfg.Billing.OverstayMultiplier)
	e.float("NOSHOW_PENALTY", &cfg.Billing.NoShowPenalty)

	e.duration("NOSHOW_GRACE", &cfg.Automation.NoShowGrace)
	e.duration("OVERSTAY_MAX", &cfg.Automation.OverstayMax)
	e.duration("SWEEP_INTERVAL", &cfg.Automation.SweepInterval)

	e.str("AI_BASE_URL", &cfg.AI.BaseURL)
	e.str("AI_API_KEY", &cfg.AI.APIKey)
	e.str("AI_MODEL", &cfg.AI.Model)
	e.duration("AI_TIMEOUT", &cfg.AI.Timeout)

	e.str("VAPID_PUBLIC_KEY", &cfg.Push.VAPIDPublicKey)
	e.str("VAPID_PRIVATE_KEY", &cfg.Push.VAPIDPrivateKey)
	e.str("VAPID_SUBSCRIBER", &cfg.Push.Subscriber)
	e.integer("PUSH_WORKERS", &cfg.Push.Workers)

	e.float("RATE_LIMIT_RPS", &cfg.RateLimit.RPS)
	e.integer("RATE_LIMIT_BURST", &cfg.RateLimit.Burst)

	e.str("LOG_LEVEL", &cfg.Log.Level)
	e.str("LOG_FORMAT", &cfg.Log.Format)
	e.str("LOG_OUTPUT", &cfg.Log.Output)

	if e.err != nil {
		return nil, fmt.Errorf("%s: %w", op, e.err)
	}

	if err := cfg.validate(); err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	return &cfg, nil
}

func (c *Config) validate() error {
	c.Storage.Driver = strings.ToLower(c.Storage.Driver)

	switch c.Storage.Driver {
	case DriverPostgres:
		if c.Postgres.User == "" {
			return fmt.Errorf("missing POSTGRES_USER")
		}
		if c.Postgres.Password == "" {
			return fmt.Errorf("missing POSTGRES_PASSWORD")
		}
		if c.Postgres.Name == "" {
			return fmt.Errorf("missing POSTGRES_DB")
		}
	case DriverMemory:
	default:
		return fmt.Errorf("invalid STORAGE_DRIVER %q", c.Storage.Driver)
	}

	if c.Auth.JWTSecret == "" {
		return fmt.Errorf("missing JWT_SECRET")
	}

	if _, err := time.LoadLocation(c.Billing.Timezone); err != nil {
		return fmt.Errorf("invalid CAFE_TIMEZONE: %w", err)
	}

	switch c.Billing.ExtensionPricing {
	case "base", "dynamic":
	default:
		return fmt.Errorf("invalid EXTENSION_PRICING %q", c.Billing.ExtensionPricing)
	}

	if c.Billing.OverstayMultiplier <= 0 {
		return fmt.Errorf("OVERSTAY_MULTIPLIER must be positive")
	}

	if c.Billing.NoShowPenalty < 0 {
		return fmt.Errorf("NOSHOW_PENALTY must not be negative")
	}

	if c.Auth.OTPLength < 4 || c.Auth.OTPLength > 10 {
		return fmt.Errorf("OTP_LENGTH must be between 4 and 10")
	}

	return nil
}

// envReader applies environment overrides and keeps the first parse error.
type envReader struct {
	err error
}

func (e *envReader) lookup(key string) (string, bool) {
	if e.err != nil {
		return "", false
	}
	v, ok := os.LookupEnv(key)
	if !ok || v == "" {
		return "", false
	}
	return v, true
}

func (e *envReader) str(key string, dst *string) {
	if v, ok := e.lookup(key); ok {
		*dst = v
	}
}

func (e *envReader) integer(key string, dst *int) {
	v, ok := e.lookup(key)
	if !ok {
		return
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		e.err = fmt.Errorf("invalid %s: %w", key, err)
		return
	}
	*dst = n
}

func (e *envReader) float(key string, dst *float64) {
	v, ok := e.lookup(key)
	if !ok {
		return
	}
	f, err := strconv.ParseFloat(v, 64)
	if err != nil {
		e.err = fmt.Errorf("invalid %s: %w", key, err)
		return
	}
	*dst = f
}

func (e *envReader) boolean(key string, dst *bool) {
	v, ok := e.lookup(key)
	if !ok {
		return
	}
	b, err := strconv.ParseBool(v)
	if err != nil {
		e.err = fmt.Errorf("invalid %s: %w", key, err)
		return
	}
	*dst = b
}

func (e *envReader) duration(key string, dst *time.Duration) {
	v, ok := e.lookup(key)
	if !ok {
		return
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		e.err = fmt.Errorf("invalid %s: %w", key, err)
		return
	}
	*dst = d
}
