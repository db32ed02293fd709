package config

import (
	"testing"
	"time"

	"github.com/ayo6706/solar-ledger/internal/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const testSecret = "0123456789abcdef0123456789abcdef"

func setBaseEnv(t *testing.T) {
	t.Helper()
	t.Setenv("JWT_SECRET", testSecret)
	t.Setenv("WEBHOOK_HMAC_KEY", "hook-secret")
}

func TestLoadDefaults(t *testing.T) {
	setBaseEnv(t)

	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, "8080", cfg.HTTPPort)
	assert.Equal(t, StorageDriverPostgres, cfg.StorageDriver)
	assert.Empty(t, cfg.RedisURL)
	assert.Equal(t, 24*time.Hour, cfg.IdempotencyTTL)
	assert.Equal(t, BrokerLog, cfg.Events.Broker)
	assert.Equal(t, int32(100), cfg.OutboxBatchSize)
	assert.Equal(t, "0 2 * * *", cfg.ReconciliationSchedule)
	assert.Equal(t, time.UTC, cfg.ReconciliationLocation)

	assert.Equal(t, domain.DefaultMinDeposit, cfg.Ledger.MinDeposit)
	assert.Equal(t, domain.DefaultMinWithdrawal, cfg.Ledger.MinWithdrawal)
	assert.Equal(t, domain.DefaultReferralBonus, cfg.Ledger.ReferralBonus)
	assert.Equal(t, "0.1", cfg.Ledger.WithdrawalFeeRate.Rate.String())
	assert.Equal(t, int64(1), cfg.Ledger.PurchaseLimits.Limit(1))
	assert.Equal(t, domain.Unlimited, cfg.Ledger.PurchaseLimits.Limit(3))
	assert.Equal(t, "Africa/Nairobi", cfg.Ledger.WithdrawalWindow.Location.String())
}

func TestLoadPrefixedOverrides(t *testing.T) {
	setBaseEnv(t)
	t.Setenv("LEDGER_MIN_DEPOSIT", "500")
	t.Setenv("LEDGER_WITHDRAWAL_FEE_RATE", "0.05")
	t.Setenv("WITHDRAWAL_DAYS", "0,6")
	t.Setenv("LEDGER_PURCHASE_LIMITS", "4:2")
	t.Setenv("CORS_ALLOWED_ORIGINS", "https://app.example.com, https://admin.example.com")
	t.Setenv("EVENT_BROKER", "Kafka")
	t.Setenv("KAFKA_BROKERS", "k1:9092,k2:9092")
	t.Setenv("STORAGE_DRIVER", "memory")
	t.Setenv("LEDGER_RECONCILIATION_TIMEZONE", "Africa/Nairobi")

	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, int64(500), cfg.Ledger.MinDeposit)
	assert.Equal(t, "0.05", cfg.Ledger.WithdrawalFeeRate.Rate.String())
	assert.True(t, cfg.Ledger.WithdrawalWindow.Days[time.Sunday])
	assert.False(t, cfg.Ledger.WithdrawalWindow.Days[time.Monday])
	assert.Equal(t, int64(2), cfg.Ledger.PurchaseLimits.Limit(4))
	assert.Equal(t, domain.Unlimited, cfg.Ledger.PurchaseLimits.Limit(1))
	assert.Equal(t, []string{"https://app.example.com", "https://admin.example.com"}, cfg.CORSAllowedOrigins)
	assert.Equal(t, BrokerKafka, cfg.Events.Broker)
	assert.Equal(t, []string{"k1:9092", "k2:9092"}, cfg.Events.KafkaBrokers)
	assert.Equal(t, "Africa/Nairobi", cfg.ReconciliationLocation.String())
	assert.Equal(t, StorageDriverMemory, cfg.StorageDriver)
}

func TestLoadRejectsInvalidSettings(t *testing.T) {
	tests := []struct {
		name string
		env  map[string]string
	}{
		{"short jwt secret", map[string]string{"JWT_SECRET": "short"}},
		{"missing webhook key", map[string]string{"WEBHOOK_HMAC_KEY": ""}},
		{"fee rate above one", map[string]string{"WITHDRAWAL_FEE_RATE": "1.5"}},
		{"bad window hours", map[string]string{"WITHDRAWAL_START_HOUR": "18", "WITHDRAWAL_END_HOUR": "9"}},
		{"bad timezone", map[string]string{"WITHDRAWAL_TIMEZONE": "Mars/Olympus"}},
		{"bad purchase limits", map[string]string{"PURCHASE_LIMITS": "1=1"}},
		{"unknown broker", map[string]string{"EVENT_BROKER": "nats"}},
		{"unknown storage", map[string]string{"STORAGE_DRIVER": "sqlite"}},
		{"bad ttl", map[string]string{"IDEMPOTENCY_TTL": "forever"}},
		{"bad reconciliation timezone", map[string]string{"RECONCILIATION_TIMEZONE": "Mars/Olympus"}},
		{"zero minimum", map[string]string{"MIN_WITHDRAWAL": "0"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			setBaseEnv(t)
			for k, v := range tt.env {
				t.Setenv(k, v)
			}
			_, err := Load()
			require.Error(t, err)
		})
	}
}
