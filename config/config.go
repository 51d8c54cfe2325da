package config

import (
	"fmt"
	"net/url"
	"os"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/joho/godotenv"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/v2"
	"github.com/pkg/errors"
	"github.com/spf13/pflag"
	"go.yaml.in/yaml/v4"
)

// EnvPrefix selects overrides such as ZAPSHIFT_DATABASE__PASSWORD (database.password).
const EnvPrefix = "ZAPSHIFT_"

type Config struct {
	Env      string         `yaml:"env" validate:"oneof=local dev staging production test"`
	HTTP     HTTPConfig     `yaml:"http"`
	Log      LogConfig      `yaml:"log"`
	Storage  StorageConfig  `yaml:"storage"`
	Database DatabaseConfig `yaml:"database"`
	Mongo    MongoConfig    `yaml:"mongo"`
	Redis    RedisConfig    `yaml:"redis"`
	Kafka    KafkaConfig    `yaml:"kafka"`
	Auth     AuthConfig     `yaml:"auth"`
	Payments PaymentsConfig `yaml:"payments"`
	Email    EmailConfig    `yaml:"email"`
	Cache    CacheConfig    `yaml:"cache"`
	Worker   WorkerConfig   `yaml:"worker"`
}

type HTTPConfig struct {
	Addr                string   `yaml:"addr"`
	PublicBaseURL       string   `yaml:"public_base_url" validate:"required,url"`
	SwaggerPath         string   `yaml:"swagger_path"`
	CORSAllowedOrigins  []string `yaml:"cors_allowed_origins"`
	ReadTimeoutSeconds  int      `yaml:"read_timeout_seconds" validate:"gte=0"`
	WriteTimeoutSeconds int      `yaml:"write_timeout_seconds" validate:"gte=0"`
}

type LogConfig struct {
	Level string `yaml:"level" validate:"omitempty,oneof=trace debug info warn error"`
}

type StorageConfig struct {
	Driver string `yaml:"driver" validate:"oneof=postgres mongo memory"`
}

type DatabaseConfig struct {
	Host     string `yaml:"host"`
	Port     int    `yaml:"port"`
	Username string `yaml:"username"`
	Password string `yaml:"password"`
	DBName   string `yaml:"name"`
	SSLMode  string `yaml:"ssl_mode"`
}

type MongoConfig struct {
	URI      string `yaml:"uri"`
	Database string `yaml:"database"`
}

type RedisConfig struct {
	Host string `yaml:"host"`
	Port int    `yaml:"port"`
}

type KafkaConfig struct {
	Host                     string `yaml:"host"`
	Port                     int    `yaml:"port"`
	CheckoutCheckedTopicName string `yaml:"checkout_checked_topic_name"`
	ConsumerGroup            string `yaml:"consumer_group"`
}

type AuthConfig struct {
	Provider       string `yaml:"provider" validate:"oneof=jwt clerk"`
	JWTSecret      string `yaml:"jwt_secret" validate:"required_if=Provider jwt"`
	ClerkSecretKey string `yaml:"clerk_secret_key" validate:"required_if=Provider clerk"`
}

type PaymentsConfig struct {
	Provider            string `yaml:"provider" validate:"oneof=stripe fake"`
	StripeSecretKey     string `yaml:"stripe_secret_key" validate:"required_if=Provider stripe"`
	StripeWebhookSecret string `yaml:"stripe_webhook_secret"`
	Currency            string `yaml:"currency" validate:"len=3"`
}

type EmailConfig struct {
	ResendAPIKey string `yaml:"resend_api_key"`
	From         string `yaml:"from"`
}

type CacheConfig struct {
	// 0 disables the role cache.
	RoleTTLSeconds int `yaml:"role_ttl_seconds" validate:"gte=0"`
}

type WorkerConfig struct {
	HTTPAddr string `yaml:"http_addr"`

	PollIntervalSeconds int `yaml:"poll_interval_seconds"`
	BatchSize           int `yaml:"batch_size"`
	Concurrency         int `yaml:"concurrency"`
	LeaseSeconds        int `yaml:"lease_seconds"`
	RateLimitPerMinute  int `yaml:"rate_limit_per_minute"`

	// Re-check delay for sessions that are still open; failures back off 1/5/15/60 minutes
	// unless overridden.
	RecheckOpenSeconds int `yaml:"recheck_open_seconds"`
	Backoff1Seconds    int `yaml:"backoff_1_seconds"`
	Backoff2Seconds    int `yaml:"backoff_2_seconds"`
	Backoff3Seconds    int `yaml:"backoff_3_seconds"`
	Backoff4Seconds    int `yaml:"backoff_4_seconds"`

	JobConcurrency int `yaml:"job_concurrency"`
}

func (c DatabaseConfig) ConnString() string {
	sslMode := c.SSLMode
	if sslMode == "" {
		sslMode = "disable"
	}
	u := url.URL{
		Scheme:   "postgres",
		User:     url.UserPassword(c.Username, c.Password),
		Host:     fmt.Sprintf("%s:%d", c.Host, c.Port),
		Path:     "/" + c.DBName,
		RawQuery: "sslmode=" + sslMode,
	}
	return u.String()
}

func (c RedisConfig) Addr() string {
	return fmt.Sprintf("%s:%d", c.Host, c.Port)
}

func (c KafkaConfig) Brokers() []string {
	return []string{fmt.Sprintf("%s:%d", c.Host, c.Port)}
}

// Flags are the command line switches shared by both binaries.
type Flags struct {
	ConfigPath string
	Addr       string
}

// ParseFlags reads --config (falling back to the configPath env var) and --addr.
func ParseFlags(name string, args []string) (Flags, error) {
	var f Flags
	fs := pflag.NewFlagSet(name, pflag.ContinueOnError)
	fs.StringVarP(&f.ConfigPath, "config", "c", os.Getenv("configPath"), "path to the YAML config file")
	fs.StringVar(&f.Addr, "addr", "", "listen address, overrides http.addr / worker.http_addr")
	if err := fs.Parse(args); err != nil {
		return Flags{}, err
	}
	return f, nil
}

// LoadConfig reads configuration in order: YAML file (optional) → .env →
// ZAPSHIFT_* environment → legacy deployment variables → defaults, then validates.
func LoadConfig(filename string) (*Config, error) {
	var cfg Config

	if filename != "" {
		data, err := os.ReadFile(filename)
		if err != nil {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
		if err := yaml.Unmarshal(data, &cfg); err != nil {
			return nil, fmt.Errorf("failed to unmarshal YAML: %w", err)
		}
	}

	// A missing .env is normal outside local development.
	_ = godotenv.Load()

	if err := applyEnv(&cfg); err != nil {
		return nil, err
	}
	applyLegacyEnv(&cfg)
	applyDefaults(&cfg)

	if err := validator.New().Struct(&cfg); err != nil {
		return nil, errors.Wrap(err, "validate config")
	}
	return &cfg, nil
}

func applyEnv(cfg *Config) error {
	k := koanf.New(".")
	err := k.Load(env.Provider(EnvPrefix, ".", func(s string) string {
		return strings.ReplaceAll(strings.ToLower(strings.TrimPrefix(s, EnvPrefix)), "__", ".")
	}), nil)
	if err != nil {
		return errors.Wrap(err, "load env")
	}
	if len(k.Keys()) == 0 {
		return nil
	}
	if err := k.UnmarshalWithConf("", cfg, koanf.UnmarshalConf{Tag: "yaml"}); err != nil {
		return errors.Wrap(err, "unmarshal env")
	}
	return nil
}

// applyLegacyEnv honours the unprefixed variables older deployments set.
func applyLegacyEnv(cfg *Config) {
	if v := os.Getenv("PORT"); v != "" {
		cfg.HTTP.Addr = ":" + v
	}
	if v := os.Getenv("DB_USER"); v != "" {
		cfg.Database.Username = v
	}
	if v := os.Getenv("DB_PASS"); v != "" {
		cfg.Database.Password = v
	}
	if v := os.Getenv("PAYMENT_SECRET"); v != "" {
		cfg.Payments.StripeSecretKey = v
	}
	if v := os.Getenv("DOMAIN_NAME"); v != "" {
		cfg.HTTP.PublicBaseURL = v
	}
}

func applyDefaults(cfg *Config) {
	if cfg.Env == "" {
		cfg.Env = "local"
	}
	if cfg.HTTP.Addr == "" {
		cfg.HTTP.Addr = ":3000"
	}
	if cfg.HTTP.PublicBaseURL == "" {
		cfg.HTTP.PublicBaseURL = "http://localhost:5173"
	}
	cfg.HTTP.PublicBaseURL = strings.TrimRight(cfg.HTTP.PublicBaseURL, "/")
	if len(cfg.HTTP.CORSAllowedOrigins) == 0 {
		cfg.HTTP.CORSAllowedOrigins = []string{"*"}
	}
	if cfg.HTTP.ReadTimeoutSeconds == 0 {
		cfg.HTTP.ReadTimeoutSeconds = 15
	}
	if cfg.HTTP.WriteTimeoutSeconds == 0 {
		cfg.HTTP.WriteTimeoutSeconds = 15
	}
	if cfg.Log.Level == "" {
		cfg.Log.Level = "info"
	}
	if cfg.Storage.Driver == "" {
		cfg.Storage.Driver = "postgres"
	}
	if cfg.Mongo.Database == "" {
		cfg.Mongo.Database = "Zap-Shift"
	}
	if cfg.Kafka.CheckoutCheckedTopicName == "" {
		cfg.Kafka.CheckoutCheckedTopicName = "checkout.checked"
	}
	if cfg.Kafka.ConsumerGroup == "" {
		cfg.Kafka.ConsumerGroup = "zapshift-api"
	}
	if cfg.Auth.Provider == "" {
		cfg.Auth.Provider = "jwt"
	}
	if cfg.Payments.Provider == "" {
		cfg.Payments.Provider = "stripe"
	}
	if cfg.Payments.Currency == "" {
		cfg.Payments.Currency = "usd"
	}
	cfg.Payments.Currency = strings.ToLower(cfg.Payments.Currency)
	if cfg.Email.From == "" {
		cfg.Email.From = "Zap Shift <onboarding@resend.dev>"
	}
	if cfg.Worker.HTTPAddr == "" {
		cfg.Worker.HTTPAddr = ":8082"
	}
}
