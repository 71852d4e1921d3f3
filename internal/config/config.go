// Package config loads the server configuration from the environment, with
// an optional .env file for development.
package config

import (
	"encoding/json"
	"fmt"
	"os"
	"time"

	"github.com/joho/godotenv"
)

// DefaultRecencyWindow bounds confirmation lookups when the environment
// does not override it.
const DefaultRecencyWindow = time.Minute

// StripeConfig holds the direct-charge gateway credentials.
type StripeConfig struct {
	APIKey     string
	APIBaseURL string // empty means the adapter default
}

// PayPalConfig holds the two-phase gateway credentials and the buyer
// redirect targets embedded in created payments.
type PayPalConfig struct {
	ClientID     string
	ClientSecret string
	APIBaseURL   string // empty means the adapter default
	ReturnURL    string
	CancelURL    string
}

// Config is the full server configuration.
type Config struct {
	Addr          string
	MySQLDSN      string // empty selects the in-memory store
	Stripe        StripeConfig
	PayPal        PayPalConfig
	RecencyWindow time.Duration
}

// Load reads the configuration from the environment. A .env file in the
// working directory is merged in first when present; real environment
// variables win.
func Load() (Config, error) {
	_ = godotenv.Load()

	cfg := Config{
		Addr:     getenv("ADDR", ":8080"),
		MySQLDSN: os.Getenv("MYSQL_DSN"),
		Stripe: StripeConfig{
			APIKey:     os.Getenv("STRIPE_API_KEY"),
			APIBaseURL: os.Getenv("STRIPE_API_BASE_URL"),
		},
		PayPal: PayPalConfig{
			ClientID:     os.Getenv("PAYPAL_CLIENT_ID"),
			ClientSecret: os.Getenv("PAYPAL_CLIENT_SECRET"),
			APIBaseURL:   os.Getenv("PAYPAL_API_BASE_URL"),
			ReturnURL:    getenv("PAYPAL_RETURN_URL", "/"),
			CancelURL:    getenv("PAYPAL_CANCEL_URL", "/"),
		},
		RecencyWindow: DefaultRecencyWindow,
	}

	if raw := os.Getenv("ORDER_RECENCY_WINDOW"); raw != "" {
		window, err := time.ParseDuration(raw)
		if err != nil {
			return Config{}, fmt.Errorf("ORDER_RECENCY_WINDOW: %w", err)
		}
		if window <= 0 {
			return Config{}, fmt.Errorf("ORDER_RECENCY_WINDOW must be positive, got %s", window)
		}
		cfg.RecencyWindow = window
	}
	return cfg, nil
}

// Document renders the gateway configuration as the JSON document the
// contract monitor validates at startup. Secrets appear as values here;
// the document is validated, never logged.
func (c Config) Document() ([]byte, error) {
	doc := map[string]any{
		"stripe": map[string]any{
			"api_key": c.Stripe.APIKey,
		},
		"paypal": map[string]any{
			"client_id":     c.PayPal.ClientID,
			"client_secret": c.PayPal.ClientSecret,
		},
		"recency_window_seconds": int(c.RecencyWindow / time.Second),
	}
	return json.Marshal(doc)
}

func getenv(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}
