// Package config loads runtime settings from defaults, an optional YAML file,
// a .env file and CARIMPORT_ environment variables, in rising priority.
package config

import (
	"encoding/hex"
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

// EnvPrefix namespaces environment variables: CARIMPORT_DATABASE_URL, CARIMPORT_EMAIL_PROVIDER, ...
const EnvPrefix = "CARIMPORT"

// Validation errors
var (
	ErrInvalidCSRFKey     = errors.New("csrf_key must be 64 hex characters")
	ErrMissingDatabaseURL = errors.New("database_url is required")
	ErrMissingEmailKey    = errors.New("email provider key is required in production")
	ErrUnknownEmail       = errors.New("email.provider must be brevo, resend or noop")
	ErrUnknownBlob        = errors.New("blob.backend must be local or r2")
	ErrIncompleteR2       = errors.New("r2 backend needs account_id, access_key_id, secret_access_key and bucket")
	ErrMissingAdminInbox  = errors.New("email.admin_inbox is required in production")
)

// Config is the full process configuration.
type Config struct {
	Env            string        `mapstructure:"env"`
	Addr           string        `mapstructure:"addr"`
	SiteURL        string        `mapstructure:"site_url"`
	Brand          string        `mapstructure:"brand"`
	DatabaseURL    string        `mapstructure:"database_url"`
	CSRFKey        string        `mapstructure:"csrf_key"`
	TrustProxy     bool          `mapstructure:"trust_proxy"`
	TrustedOrigins []string      `mapstructure:"trusted_origins"`
	SlowQuery      time.Duration `mapstructure:"slow_query"`
	SlowRequest    time.Duration `mapstructure:"slow_request"`
	RatesFile      string        `mapstructure:"rates_file"`

	Log       LogConfig       `mapstructure:"log"`
	Admin     AdminConfig     `mapstructure:"admin"`
	Email     EmailConfig     `mapstructure:"email"`
	Blob      BlobConfig      `mapstructure:"blob"`
	OCR       OCRConfig       `mapstructure:"ocr"`
	Redis     RedisConfig     `mapstructure:"redis"`
	RateLimit RateLimitConfig `mapstructure:"rate_limit"`
	Analytics AnalyticsConfig `mapstructure:"analytics"`
	Outbox    OutboxConfig    `mapstructure:"outbox"`
}

type LogConfig struct {
	Level string `mapstructure:"level"`
}

// AdminConfig seeds the first administrator.
type AdminConfig struct {
	Email    string `mapstructure:"email"`
	Password string `mapstructure:"password"`
	Name     string `mapstructure:"name"`
}

type EmailConfig struct {
	Provider   string `mapstructure:"provider"` // brevo, resend or noop
	From       string `mapstructure:"from"`
	AdminInbox string `mapstructure:"admin_inbox"`
	BrevoKey   string `mapstructure:"brevo_key"`
	ResendKey  string `mapstructure:"resend_key"`
}

type BlobConfig struct {
	Backend  string   `mapstructure:"backend"` // local or r2
	LocalDir string   `mapstructure:"local_dir"`
	R2       R2Config `mapstructure:"r2"`
}

type R2Config struct {
	AccountID       string        `mapstructure:"account_id"`
	AccessKeyID     string        `mapstructure:"access_key_id"`
	SecretAccessKey string        `mapstructure:"secret_access_key"`
	Bucket          string        `mapstructure:"bucket"`
	Endpoint        string        `mapstructure:"endpoint"`
	URLExpiry       time.Duration `mapstructure:"url_expiry"`
}

// OCRConfig names providers in preference order, e.g. "azure,gemini".
type OCRConfig struct {
	Provider      string `mapstructure:"provider"`
	AzureEndpoint string `mapstructure:"azure_endpoint"`
	AzureKey      string `mapstructure:"azure_key"`
	OpenAIKey     string `mapstructure:"openai_key"`
	OpenAIModel   string `mapstructure:"openai_model"`
	GeminiKey     string `mapstructure:"gemini_key"`
	GeminiModel   string `mapstructure:"gemini_model"`
}

// RedisConfig enables Redis-backed sessions and rate limits when URL is set.
type RedisConfig struct {
	URL string `mapstructure:"url"`
}

type RateLimitConfig struct {
	PerMinute    int           `mapstructure:"per_minute"`
	Burst        int           `mapstructure:"burst"`
	StrictLimit  int           `mapstructure:"strict_limit"`
	StrictWindow time.Duration `mapstructure:"strict_window"`
}

type AnalyticsConfig struct {
	PlausibleURL    string `mapstructure:"plausible_url"`
	PlausibleDomain string `mapstructure:"plausible_domain"`
	UmamiURL        string `mapstructure:"umami_url"`
	UmamiWebsiteID  string `mapstructure:"umami_website_id"`
}

type OutboxConfig struct {
	Interval      time.Duration `mapstructure:"interval"`
	BaseDelay     time.Duration `mapstructure:"base_delay"`
	MaxDelay      time.Duration `mapstructure:"max_delay"`
	DisableWorker bool          `mapstructure:"disable_worker"`
}

// setDefaults registers every key, which also lets AutomaticEnv see nested keys on Unmarshal.
func setDefaults(v *viper.Viper) {
	v.SetDefault("env", "development")
	v.SetDefault("addr", ":8080")
	v.SetDefault("site_url", "http://localhost:8080")
	v.SetDefault("brand", "CarImport")
	v.SetDefault("database_url", "carimport.db")
	v.SetDefault("csrf_key", "")
	v.SetDefault("trust_proxy", false)
	v.SetDefault("trusted_origins", []string{})
	v.SetDefault("slow_query", 200*time.Millisecond)
	v.SetDefault("slow_request", time.Second)
	v.SetDefault("rates_file", "")

	v.SetDefault("log.level", "info")

	v.SetDefault("admin.email", "")
	v.SetDefault("admin.password", "")
	v.SetDefault("admin.name", "Administrator")

	v.SetDefault("email.provider", "noop")
	v.SetDefault("email.from", "CarImport <noreply@localhost>")
	v.SetDefault("email.admin_inbox", "")
	v.SetDefault("email.brevo_key", "")
	v.SetDefault("email.resend_key", "")

	v.SetDefault("blob.backend", "local")
	v.SetDefault("blob.local_dir", "data/blobs")
	v.SetDefault("blob.r2.account_id", "")
	v.SetDefault("blob.r2.access_key_id", "")
	v.SetDefault("blob.r2.secret_access_key", "")
	v.SetDefault("blob.r2.bucket", "")
	v.SetDefault("blob.r2.endpoint", "")
	v.SetDefault("blob.r2.url_expiry", 15*time.Minute)

	v.SetDefault("ocr.provider", "noop")
	v.SetDefault("ocr.azure_endpoint", "")
	v.SetDefault("ocr.azure_key", "")
	v.SetDefault("ocr.openai_key", "")
	v.SetDefault("ocr.openai_model", "gpt-4o-mini")
	v.SetDefault("ocr.gemini_key", "")
	v.SetDefault("ocr.gemini_model", "gemini-2.0-flash")

	v.SetDefault("redis.url", "")

	v.SetDefault("rate_limit.per_minute", 120)
	v.SetDefault("rate_limit.burst", 40)
	v.SetDefault("rate_limit.strict_limit", 10)
	v.SetDefault("rate_limit.strict_window", time.Minute)

	v.SetDefault("analytics.plausible_url", "")
	v.SetDefault("analytics.plausible_domain", "")
	v.SetDefault("analytics.umami_url", "")
	v.SetDefault("analytics.umami_website_id", "")

	v.SetDefault("outbox.interval", 15*time.Second)
	v.SetDefault("outbox.base_delay", 30*time.Second)
	v.SetDefault("outbox.max_delay", time.Hour)
	v.SetDefault("outbox.disable_worker", false)
}

// Load reads configuration. configFile may be empty.
// PRE: configFile, when set, is a readable YAML file
// POST: Returns a Config with defaults filled in; call Validate before serving
func Load(configFile string) (*Config, error) {
	// A missing .env is normal; a broken one is not.
	if err := godotenv.Load(); err != nil && !errors.Is(err, os.ErrNotExist) {
		return nil, fmt.Errorf("load .env: %w", err)
	}

	v := viper.New()
	setDefaults(v)
	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if configFile != "" {
		v.SetConfigFile(configFile)
		v.SetConfigType("yaml")
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("read config %s: %w", configFile, err)
		}
	}

	cfg := &Config{}
	if err := v.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("decode config: %w", err)
	}
	cfg.TrustedOrigins = splitList(cfg.TrustedOrigins)
	cfg.Email.Provider = strings.ToLower(strings.TrimSpace(cfg.Email.Provider))
	cfg.Blob.Backend = strings.ToLower(strings.TrimSpace(cfg.Blob.Backend))
	return cfg, nil
}

// splitList accepts both YAML lists and a comma-separated env value.
func splitList(in []string) []string {
	var out []string
	for _, item := range in {
		for _, part := range strings.Split(item, ",") {
			if part = strings.TrimSpace(part); part != "" {
				out = append(out, part)
			}
		}
	}
	return out
}

// IsProduction reports whether the process runs with production safeguards.
func (c *Config) IsProduction() bool {
	return c.Env == "production"
}

// Validate checks the settings needed to serve traffic.
// PRE: c came from Load
// POST: Returns every problem found, joined; nil when the config is usable
func (c *Config) Validate() error {
	var errs []error
	if strings.TrimSpace(c.DatabaseURL) == "" {
		errs = append(errs, ErrMissingDatabaseURL)
	}
	if c.CSRFKey != "" || c.IsProduction() {
		if _, err := c.CSRFKeyBytes(); err != nil {
			errs = append(errs, err)
		}
	}

	switch c.Email.Provider {
	case "noop":
		if c.IsProduction() {
			errs = append(errs, fmt.Errorf("%w: email.provider is noop", ErrMissingEmailKey))
		}
	case "brevo":
		if c.Email.BrevoKey == "" && c.IsProduction() {
			errs = append(errs, fmt.Errorf("%w: email.brevo_key", ErrMissingEmailKey))
		}
	case "resend":
		if c.Email.ResendKey == "" && c.IsProduction() {
			errs = append(errs, fmt.Errorf("%w: email.resend_key", ErrMissingEmailKey))
		}
	default:
		errs = append(errs, fmt.Errorf("%w: %q", ErrUnknownEmail, c.Email.Provider))
	}
	if c.IsProduction() && c.Email.AdminInbox == "" {
		errs = append(errs, ErrMissingAdminInbox)
	}

	switch c.Blob.Backend {
	case "local":
	case "r2":
		r2 := c.Blob.R2
		if (r2.AccountID == "" && r2.Endpoint == "") || r2.AccessKeyID == "" || r2.SecretAccessKey == "" || r2.Bucket == "" {
			errs = append(errs, ErrIncompleteR2)
		}
	default:
		errs = append(errs, fmt.Errorf("%w: %q", ErrUnknownBlob, c.Blob.Backend))
	}
	return errors.Join(errs...)
}

// CSRFKeyBytes decodes the 32-byte CSRF key.
func (c *Config) CSRFKeyBytes() ([]byte, error) {
	key, err := hex.DecodeString(c.CSRFKey)
	if err != nil || len(key) != 32 {
		return nil, ErrInvalidCSRFKey
	}
	return key, nil
}
