package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadDefaults(t *testing.T) {
	t.Setenv("STOREFRONT_DATABASE_URL", "postgres://u:p@db:5432/shop?sslmode=disable")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "postgres://u:p@db:5432/shop?sslmode=disable", cfg.Database.URL)
	assert.Equal(t, 25, cfg.Database.MaxOpenConns)
	assert.Equal(t, "8080", cfg.Server.Port)
	assert.Equal(t, 10*time.Second, cfg.Server.ReadTimeout)
	assert.Equal(t, 5, cfg.Fulfillment.LowStockThreshold)
	assert.Equal(t, 8, cfg.Password.MinLength)
	assert.Equal(t, 15*time.Minute, cfg.JWT.AccessTokenTTL())
	assert.Equal(t, 720*time.Hour, cfg.Cart.TTL)
	assert.Empty(t, cfg.Kafka.BrokerList())
}

func TestLoadOverrides(t *testing.T) {
	t.Setenv("STOREFRONT_LOW_STOCK_THRESHOLD", "12")
	t.Setenv("STOREFRONT_KAFKA_BROKERS", "k1:9092, k2:9092,")
	t.Setenv("STOREFRONT_SERVER_WRITE_TIMEOUT", "30s")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, 12, cfg.Fulfillment.LowStockThreshold)
	assert.Equal(t, []string{"k1:9092", "k2:9092"}, cfg.Kafka.BrokerList())
	assert.Equal(t, 30*time.Second, cfg.Server.WriteTimeout)
}

func TestLoadRejectsShortRefreshTTL(t *testing.T) {
	t.Setenv("STOREFRONT_JWT_EXPIRATION_MINUTES", "120")
	t.Setenv("STOREFRONT_REFRESH_TOKEN_TTL_HOURS", "1")

	_, err := Load()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "refresh token ttl")
}

func TestLoadRejectsInvalidDuration(t *testing.T) {
	t.Setenv("STOREFRONT_CART_TTL", "forever")

	_, err := Load()
	require.Error(t, err)
}
