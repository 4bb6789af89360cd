package config

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/pashumandi/mandi-gateway/internal/platform/logger"
	"github.com/spf13/viper"
)

type Config struct {
	ServiceName string              `mapstructure:"service_name"`
	HTTP        HTTPConfig          `mapstructure:"http"`
	Backend     BackendConfig       `mapstructure:"backend"`
	Cache       CacheConfig         `mapstructure:"cache"`
	Redis       RedisConfig         `mapstructure:"redis"`
	NATS        NATSConfig          `mapstructure:"nats"`
	Auth        AuthConfig          `mapstructure:"auth"`
	Roles       RolesConfig         `mapstructure:"roles"`
	Payment     PaymentConfig       `mapstructure:"payment"`
	Posting     PostingConfig       `mapstructure:"posting"`
	Messaging   MessagingConfig     `mapstructure:"messaging"`
	Locations   LocationsConfig     `mapstructure:"locations"`
	Support     SupportConfig       `mapstructure:"support"`
	Metrics     MetricsConfig       `mapstructure:"metrics"`
	Tracing     TracingConfig       `mapstructure:"tracing"`
	Log         logger.LoggerConfig `mapstructure:"log"`
}

type HTTPConfig struct {
	Port            string        `mapstructure:"port"`
	ReadTimeout     time.Duration `mapstructure:"read_timeout"`
	WriteTimeout    time.Duration `mapstructure:"write_timeout"`
	ShutdownTimeout time.Duration `mapstructure:"shutdown_timeout"`
}

type BackendConfig struct {
	Address         string        `mapstructure:"address"`
	CallTimeout     time.Duration `mapstructure:"call_timeout"`
	ReadyWait       time.Duration `mapstructure:"ready_wait"`
	MaxReadAttempts int           `mapstructure:"max_read_attempts"`
	InitialBackoff  time.Duration `mapstructure:"initial_backoff"`
	MaxBackoff      time.Duration `mapstructure:"max_backoff"`
	HealthCheck     bool          `mapstructure:"health_check"`
}

type CacheConfig struct {
	// Driver is "memory" or "redis".
	Driver        string        `mapstructure:"driver"`
	Namespace     string        `mapstructure:"namespace"`
	DefaultTTL    time.Duration `mapstructure:"default_ttl"`
	Conversation  time.Duration `mapstructure:"conversation"`
	Conversations time.Duration `mapstructure:"conversations"`
	AdminStale    time.Duration `mapstructure:"admin_stale"`
}

type RedisConfig struct {
	Address  string `mapstructure:"address"`
	Password string `mapstructure:"password"`
	DB       int    `mapstructure:"db"`
}

type NATSConfig struct {
	// URL empty disables cross-instance invalidation.
	URL            string        `mapstructure:"url"`
	Subject        string        `mapstructure:"subject"`
	SupportSubject string        `mapstructure:"support_subject"`
	ConnectTimeout time.Duration `mapstructure:"connect_timeout"`
}

type AuthConfig struct {
	JWTSecret       string        `mapstructure:"jwt_secret"`
	SessionTTL      time.Duration `mapstructure:"session_ttl"`
	LoginRetryDelay time.Duration `mapstructure:"login_retry_delay"`
	CookieName      string        `mapstructure:"cookie_name"`
	CookieSecure    bool          `mapstructure:"cookie_secure"`
}

// RolesConfig holds the principal allow-lists for the non-admin roles.
type RolesConfig struct {
	Management []string `mapstructure:"management"`
	Owner      []string `mapstructure:"owner"`
	Tracker    []string `mapstructure:"tracker"`
}

type PaymentConfig struct {
	// Mode is "trust": the user's payment assertion is accepted unverified.
	Mode            string   `mapstructure:"mode"`
	UPIID           string   `mapstructure:"upi_id"`
	PayeeNote       string   `mapstructure:"payee_note"`
	RegularPrice    int64    `mapstructure:"regular_price"`
	VIPPrice        int64    `mapstructure:"vip_price"`
	DiscountedPrice int64    `mapstructure:"discounted_price"`
	PromoCodes      []string `mapstructure:"promo_codes"`
	FreeCode        string   `mapstructure:"free_code"`
	QRBaseURL       string   `mapstructure:"qr_base_url"`
}

type SupportConfig struct {
	Phones []string `mapstructure:"phones"`
	Email  string   `mapstructure:"email"`
	Hours  string   `mapstructure:"hours"`
}

type PostingConfig struct {
	DraftTTL          time.Duration `mapstructure:"draft_ttl"`
	MaxPhotos         int           `mapstructure:"max_photos"`
	MaxTitleLength    int           `mapstructure:"max_title_length"`
	MaxDescription    int           `mapstructure:"max_description_length"`
	MaxPhotoSizeBytes int           `mapstructure:"max_photo_size_bytes"`
}

type MessagingConfig struct {
	Timezone string `mapstructure:"timezone"`
}

// LocationsConfig is the state list offered by the location picker.
type LocationsConfig struct {
	States []string `mapstructure:"states"`
}

type MetricsConfig struct {
	Port string `mapstructure:"port"`
}

type TracingConfig struct {
	OTLPEndpoint string `mapstructure:"otlp_endpoint"`
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("service_name", "mandi-gateway")

	v.SetDefault("http.port", "8080")
	v.SetDefault("http.read_timeout", "15s")
	v.SetDefault("http.write_timeout", "30s")
	v.SetDefault("http.shutdown_timeout", "10s")

	v.SetDefault("backend.address", "localhost:50051")
	v.SetDefault("backend.call_timeout", "10s")
	v.SetDefault("backend.ready_wait", "5s")
	v.SetDefault("backend.max_read_attempts", 3)
	v.SetDefault("backend.initial_backoff", "200ms")
	v.SetDefault("backend.max_backoff", "2s")
	v.SetDefault("backend.health_check", false)

	v.SetDefault("cache.driver", "memory")
	v.SetDefault("cache.namespace", "mandi")
	v.SetDefault("cache.default_ttl", "1h")
	v.SetDefault("cache.conversation", "5s")
	v.SetDefault("cache.conversations", "10s")
	v.SetDefault("cache.admin_stale", "5m")

	v.SetDefault("redis.address", "localhost:6379")
	v.SetDefault("redis.password", "")
	v.SetDefault("redis.db", 0)

	v.SetDefault("nats.url", "")
	v.SetDefault("nats.subject", "mandi.cache.invalidate")
	v.SetDefault("nats.support_subject", "mandi.support.tickets")
	v.SetDefault("nats.connect_timeout", "5s")

	v.SetDefault("auth.jwt_secret", "")
	v.SetDefault("auth.session_ttl", "168h")
	v.SetDefault("auth.login_retry_delay", "300ms")
	v.SetDefault("auth.cookie_name", "mandi_session")
	v.SetDefault("auth.cookie_secure", false)

	v.SetDefault("roles.management", []string{})
	v.SetDefault("roles.owner", []string{})
	v.SetDefault("roles.tracker", []string{})

	v.SetDefault("payment.mode", "trust")
	v.SetDefault("payment.upi_id", "8431207776king@ybl")
	v.SetDefault("payment.payee_note", "PashuMandiPostingFee")
	v.SetDefault("payment.regular_price", 199)
	v.SetDefault("payment.vip_price", 500)
	v.SetDefault("payment.discounted_price", 99)
	v.SetDefault("payment.promo_codes", []string{"PASHU99", "MANDI99", "SAVE100", "LAUNCH99", "PASHU50"})
	v.SetDefault("payment.free_code", "FREEADMIN")
	v.SetDefault("payment.qr_base_url", "https://chart.googleapis.com/chart")

	v.SetDefault("support.phones", []string{"7829297025", "8431207976"})
	v.SetDefault("support.email", "irfankhansingboard1998@gmail.com")
	v.SetDefault("support.hours", "10 AM - 6 PM (Mon-Sat)")

	v.SetDefault("posting.draft_ttl", "24h")
	v.SetDefault("posting.max_photos", 5)
	v.SetDefault("posting.max_title_length", 100)
	v.SetDefault("posting.max_description_length", 2000)
	v.SetDefault("posting.max_photo_size_bytes", 5*1024*1024)

	v.SetDefault("messaging.timezone", "Asia/Kolkata")
	v.SetDefault("locations.states", []string{
		"Andaman & Nicobar Islands", "Andhra Pradesh", "Arunachal Pradesh", "Assam",
		"Bihar", "Chandigarh", "Chhattisgarh", "Dadra & Nagar Haveli", "Daman & Diu",
		"Delhi", "Goa", "Gujarat", "Haryana", "Himachal Pradesh", "Jammu & Kashmir",
		"Jharkhand", "Karnataka", "Kerala", "Ladakh", "Lakshadweep", "Madhya Pradesh",
		"Maharashtra", "Manipur", "Meghalaya", "Mizoram", "Nagaland", "Odisha",
		"Puducherry", "Punjab", "Rajasthan", "Sikkim", "Tamil Nadu", "Telangana",
		"Tripura", "Uttar Pradesh", "Uttarakhand", "West Bengal",
	})

	v.SetDefault("metrics.port", "9100")
	v.SetDefault("tracing.otlp_endpoint", "")

	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "json")
	v.SetDefault("log.output_file", "stdout")
}

// LoadConfig reads .env (if present), then config.yaml from path, then
// MANDI_* environment variables, e.g. MANDI_BACKEND_ADDRESS.
func LoadConfig(path string) (*Config, error) {
	_ = godotenv.Load()

	v := viper.New()
	setDefaults(v)

	if path != "" {
		if fi, err := os.Stat(path); err == nil && !fi.IsDir() {
			v.SetConfigFile(path)
		} else {
			v.AddConfigPath(path)
			v.SetConfigName("config")
			v.SetConfigType("yaml")
		}
	} else {
		v.AddConfigPath(".")
		v.SetConfigName("config")
		v.SetConfigType("yaml")
	}

	v.SetEnvPrefix("MANDI")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) && !os.IsNotExist(err) {
			return nil, fmt.Errorf("config.LoadConfig: read config: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("config.LoadConfig: unmarshal: %w", err)
	}
	cfg.normalize()

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func (c *Config) normalize() {
	c.Roles.Management = trimAll(c.Roles.Management, false)
	c.Roles.Owner = trimAll(c.Roles.Owner, false)
	c.Roles.Tracker = trimAll(c.Roles.Tracker, false)
	c.Payment.PromoCodes = trimAll(c.Payment.PromoCodes, true)
	c.Locations.States = trimAll(c.Locations.States, false)
	c.Payment.FreeCode = strings.ToUpper(strings.TrimSpace(c.Payment.FreeCode))
	c.Cache.Driver = strings.ToLower(strings.TrimSpace(c.Cache.Driver))
	c.Payment.Mode = strings.ToLower(strings.TrimSpace(c.Payment.Mode))
}

func trimAll(in []string, upper bool) []string {
	out := make([]string, 0, len(in))
	for _, s := range in {
		s = strings.TrimSpace(s)
		if s == "" {
			continue
		}
		if upper {
			s = strings.ToUpper(s)
		}
		out = append(out, s)
	}
	return out
}

func (c *Config) Validate() error {
	var problems []string
	if c.Backend.Address == "" {
		problems = append(problems, "backend.address is required")
	}
	// Without a secret no provider token verifies and every login fails.
	if strings.TrimSpace(c.Auth.JWTSecret) == "" {
		problems = append(problems, "auth.jwt_secret is required")
	}
	if c.Backend.CallTimeout <= 0 {
		problems = append(problems, "backend.call_timeout must be positive")
	}
	if c.Backend.MaxReadAttempts < 1 {
		problems = append(problems, "backend.max_read_attempts must be at least 1")
	}
	switch c.Cache.Driver {
	case "memory", "redis":
	default:
		problems = append(problems, fmt.Sprintf("cache.driver %q is not one of memory, redis", c.Cache.Driver))
	}
	if c.Payment.Mode != "trust" {
		problems = append(problems, fmt.Sprintf("payment.mode %q is not supported (only trust)", c.Payment.Mode))
	}
	if c.Posting.MaxPhotos < 1 {
		problems = append(problems, "posting.max_photos must be at least 1")
	}
	if _, err := time.LoadLocation(c.Messaging.Timezone); err != nil {
		problems = append(problems, fmt.Sprintf("messaging.timezone: %v", err))
	}
	if len(problems) > 0 {
		return fmt.Errorf("config.Validate: %s", strings.Join(problems, "; "))
	}
	return nil
}
