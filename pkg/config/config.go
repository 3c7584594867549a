package config

import (
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/kelseyhightower/envconfig"
)

const EnvPrefix = ""

const (
	AppEnvDev  = "dev"
	AppEnvProd = "prod"
)

// Payment collection modes for the checkout flow.
const (
	PaymentFlowTerminal = "terminal"
	PaymentFlowWeb      = "web"
)

// Authorization timing modes for the payment ledger.
const (
	AuthorizeAtEnd   = "at_end"
	AuthorizeAsYouGo = "as_you_go"
)

type Config struct {
	App      AppConfig
	Commerce CommerceConfig
	Checkout CheckoutConfig
	Redis    RedisConfig
	Snapshot SnapshotConfig
}

func Load() (*Config, error) {
	var cfg Config
	if err := envconfig.Process(EnvPrefix, &cfg); err != nil {
		return nil, fmt.Errorf("parsing config: %w", err)
	}
	if err := cfg.Commerce.validate(); err != nil {
		return nil, err
	}
	if err := cfg.Checkout.validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

type AppConfig struct {
	Env          string `envconfig:"CLIENTELING_APP_ENV" required:"true"`
	Port         string `envconfig:"CLIENTELING_APP_PORT" default:"8137"`
	LogLevel     string `envconfig:"CLIENTELING_LOG_LEVEL" default:"info"`
	LogWarnStack bool   `envconfig:"CLIENTELING_LOG_WARN_STACK" default:"false"`
}

func (a AppConfig) IsDev() bool {
	return strings.EqualFold(a.Env, AppEnvDev)
}

func (a AppConfig) IsProd() bool {
	return strings.EqualFold(a.Env, AppEnvProd)
}

// CommerceConfig points the engine at one storefront of the commerce platform.
type CommerceConfig struct {
	Host            string        `envconfig:"CLIENTELING_COMMERCE_HOST" required:"true"`
	SiteID          string        `envconfig:"CLIENTELING_COMMERCE_SITE_ID" required:"true"`
	ClientID        string        `envconfig:"CLIENTELING_COMMERCE_CLIENT_ID" required:"true"`
	APIVersion      string        `envconfig:"CLIENTELING_COMMERCE_API_VERSION" default:"v20_4"`
	SiteCurrency    string        `envconfig:"CLIENTELING_COMMERCE_SITE_CURRENCY" default:"USD"`
	DisplayCurrency string        `envconfig:"CLIENTELING_COMMERCE_DISPLAY_CURRENCY" default:"USD"`
	Timeout         time.Duration `envconfig:"CLIENTELING_COMMERCE_TIMEOUT" default:"30s"`
}

func (c CommerceConfig) validate() error {
	host := strings.TrimSpace(c.Host)
	if host == "" {
		return fmt.Errorf("commerce host is required")
	}
	if _, err := url.Parse("https://" + host); err != nil {
		return fmt.Errorf("invalid commerce host %q: %w", c.Host, err)
	}
	return nil
}

// BaseURL builds the shop API root for the configured site.
func (c CommerceConfig) BaseURL() string {
	return fmt.Sprintf("https://%s/s/%s/dw/shop/%s", strings.TrimSpace(c.Host), c.SiteID, c.APIVersion)
}

// NeedsCurrencyConversion reports whether fetched baskets must be converted
// to the display currency.
func (c CommerceConfig) NeedsCurrencyConversion() bool {
	return !strings.EqualFold(c.SiteCurrency, c.DisplayCurrency)
}

// CheckoutConfig selects which checkout stages exist for this deployment.
type CheckoutConfig struct {
	PaymentFlow          string `envconfig:"CLIENTELING_CHECKOUT_PAYMENT_FLOW" default:"terminal"`
	AuthorizeMode        string `envconfig:"CLIENTELING_CHECKOUT_AUTHORIZE_MODE" default:"as_you_go"`
	AlwaysCollectBilling bool   `envconfig:"CLIENTELING_CHECKOUT_ALWAYS_COLLECT_BILLING" default:"true"`
	MultiTender          bool   `envconfig:"CLIENTELING_CHECKOUT_MULTI_TENDER" default:"true"`
}

func (c CheckoutConfig) validate() error {
	switch c.PaymentFlow {
	case PaymentFlowTerminal, PaymentFlowWeb:
	default:
		return fmt.Errorf("checkout payment flow must be %q or %q", PaymentFlowTerminal, PaymentFlowWeb)
	}
	switch c.AuthorizeMode {
	case AuthorizeAtEnd, AuthorizeAsYouGo:
	default:
		return fmt.Errorf("checkout authorize mode must be %q or %q", AuthorizeAtEnd, AuthorizeAsYouGo)
	}
	return nil
}

type RedisConfig struct {
	URL          string        `envconfig:"CLIENTELING_REDIS_URL"`
	Address      string        `envconfig:"CLIENTELING_REDIS_ADDR"`
	Password     string        `envconfig:"CLIENTELING_REDIS_PASSWORD"`
	DB           int           `envconfig:"CLIENTELING_REDIS_DB" default:"0"`
	PoolSize     int           `envconfig:"CLIENTELING_REDIS_POOL_SIZE" default:"10"`
	MinIdleConns int           `envconfig:"CLIENTELING_REDIS_MIN_IDLE_CONNS" default:"2"`
	DialTimeout  time.Duration `envconfig:"CLIENTELING_REDIS_DIAL_TIMEOUT" default:"5s"`
	ReadTimeout  time.Duration `envconfig:"CLIENTELING_REDIS_READ_TIMEOUT" default:"5s"`
	WriteTimeout time.Duration `envconfig:"CLIENTELING_REDIS_WRITE_TIMEOUT" default:"5s"`
}

// Enabled reports whether a Redis token cache was configured at all. The
// engine runs without one; tokens are then held in process memory only.
func (r RedisConfig) Enabled() bool {
	return r.URL != "" || r.Address != ""
}

type SnapshotConfig struct {
	Path string `envconfig:"CLIENTELING_SNAPSHOT_PATH" default:"clienteling.db"`
}
