package config

import (
	"errors"
	"strings"
	"time"

	"github.com/spf13/viper"
)

const DefaultGatewayBaseURL = "https://api-checkout.cinetpay.com/v2"

type Config struct {
	CinetPayAPIKey    string
	CinetPaySiteID    string
	CinetPaySecret    string
	GatewayBaseURL    string
	AppBaseURL        string
	GatewayTimeout    time.Duration
	GatewayMaxRetries int

	LedgerDriver   string
	DatabaseURL    string
	RedisURL       string
	KafkaBrokers   string
	NatsURL        string
	JaegerEndpoint string
	Port           string
	LockTTL        time.Duration
}

func Load() *Config {
	v := viper.New()
	v.AutomaticEnv()

	v.SetDefault("PORT", "8082")
	v.SetDefault("CINETPAY_API_BASE_URL", DefaultGatewayBaseURL)
	v.SetDefault("APP_BASE_URL", "http://localhost:8082")
	v.SetDefault("GATEWAY_TIMEOUT", "30s")
	v.SetDefault("GATEWAY_MAX_RETRIES", 3)
	v.SetDefault("LEDGER_DRIVER", "postgres")
	v.SetDefault("LOCK_TTL", "30s")

	return &Config{
		CinetPayAPIKey:    v.GetString("CINETPAY_APIKEY"),
		CinetPaySiteID:    v.GetString("CINETPAY_SITE_ID"),
		CinetPaySecret:    v.GetString("CINETPAY_SECRET_KEY"),
		GatewayBaseURL:    strings.TrimRight(v.GetString("CINETPAY_API_BASE_URL"), "/"),
		AppBaseURL:        strings.TrimRight(v.GetString("APP_BASE_URL"), "/"),
		GatewayTimeout:    v.GetDuration("GATEWAY_TIMEOUT"),
		GatewayMaxRetries: v.GetInt("GATEWAY_MAX_RETRIES"),
		LedgerDriver:      strings.ToLower(v.GetString("LEDGER_DRIVER")),
		DatabaseURL:       v.GetString("DATABASE_URL"),
		RedisURL:          v.GetString("REDIS_URL"),
		KafkaBrokers:      v.GetString("KAFKA_BROKERS"),
		NatsURL:           v.GetString("NATS_URL"),
		JaegerEndpoint:    v.GetString("JAEGER_ENDPOINT"),
		Port:              v.GetString("PORT"),
		LockTTL:           v.GetDuration("LOCK_TTL"),
	}
}

// Validate reports every missing setting the service cannot run without.
func (c *Config) Validate() error {
	var errs []error
	if c.CinetPayAPIKey == "" {
		errs = append(errs, errors.New("CINETPAY_APIKEY is not set"))
	}
	if c.CinetPaySiteID == "" {
		errs = append(errs, errors.New("CINETPAY_SITE_ID is not set"))
	}
	if c.CinetPaySecret == "" {
		errs = append(errs, errors.New("CINETPAY_SECRET_KEY is not set"))
	}
	if c.GatewayBaseURL == "" {
		errs = append(errs, errors.New("CINETPAY_API_BASE_URL is empty"))
	}
	if c.AppBaseURL == "" {
		errs = append(errs, errors.New("APP_BASE_URL is empty"))
	}
	switch c.LedgerDriver {
	case "postgres", "sqlite":
		if c.DatabaseURL == "" {
			errs = append(errs, errors.New("DATABASE_URL is required for ledger driver "+c.LedgerDriver))
		}
	case "memory":
	default:
		errs = append(errs, errors.New("unknown LEDGER_DRIVER "+c.LedgerDriver))
	}
	return errors.Join(errs...)
}
