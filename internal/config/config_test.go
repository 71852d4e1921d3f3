package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadDefaults(t *testing.T) {
	t.Setenv("STRIPE_API_KEY", "sk_test_1")
	t.Setenv("PAYPAL_CLIENT_ID", "cid")
	t.Setenv("PAYPAL_CLIENT_SECRET", "cs")
	t.Setenv("ORDER_RECENCY_WINDOW", "")
	t.Setenv("ADDR", "")
	t.Setenv("MYSQL_DSN", "")

	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, ":8080", cfg.Addr)
	assert.Empty(t, cfg.MySQLDSN)
	assert.Equal(t, "sk_test_1", cfg.Stripe.APIKey)
	assert.Equal(t, time.Minute, cfg.RecencyWindow)
}

func TestLoadRecencyWindow(t *testing.T) {
	t.Setenv("ORDER_RECENCY_WINDOW", "90s")
	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, 90*time.Second, cfg.RecencyWindow)

	t.Setenv("ORDER_RECENCY_WINDOW", "bogus")
	_, err = Load()
	assert.Error(t, err)

	t.Setenv("ORDER_RECENCY_WINDOW", "-1m")
	_, err = Load()
	assert.Error(t, err)
}

func TestDocument(t *testing.T) {
	cfg := Config{
		Stripe:        StripeConfig{APIKey: "sk_test_1"},
		PayPal:        PayPalConfig{ClientID: "cid", ClientSecret: "cs"},
		RecencyWindow: 2 * time.Minute,
	}
	doc, err := cfg.Document()
	require.NoError(t, err)
	assert.JSONEq(t, `{
		"stripe": {"api_key": "sk_test_1"},
		"paypal": {"client_id": "cid", "client_secret": "cs"},
		"recency_window_seconds": 120
	}`, string(doc))
}
