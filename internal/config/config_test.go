package config

import (
	"log/slog"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefaultPolicy(t *testing.T) {
	p := DefaultPolicy()
	require.NoError(t, p.Validate())

	th, ok := p.Threshold("release_payout")
	assert.True(t, ok)
	assert.Equal(t, int64(10_000_000), th)

	_, ok = p.Threshold("unknown_action")
	assert.False(t, ok)
}

func TestLoadPolicy(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "policy.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
approval_thresholds:
  release_payout: 5000
alerts:
  shipment_grace: 24h
  kyc_stale_after: 48h
`), 0o644))

	p, err := LoadPolicy(path)
	require.NoError(t, err)
	assert.Equal(t, map[string]int64{"release_payout": 5000, "wallet_adjustment": 1_000_000}, p.ApprovalThresholds)
	assert.Equal(t, 24*time.Hour, p.Alerts.ShipmentGrace)
	assert.Equal(t, 48*time.Hour, p.Alerts.KYCStaleAfter)
}

func TestLoadPolicyInvalid(t *testing.T) {
	tests := []struct {
		name   string
		body   string
		errMsg string
	}{
		{
			name:   "negative threshold",
			body:   "approval_thresholds:\n  release_payout: -1\n",
			errMsg: "approval_thresholds.release_payout must not be negative",
		},
		{
			name:   "zero kyc window",
			body:   "alerts:\n  kyc_stale_after: 0s\n",
			errMsg: "alerts.kyc_stale_after must be positive",
		},
		{
			name:   "not yaml",
			body:   "approval_thresholds: [",
			errMsg: "parse policy file",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			path := filepath.Join(t.TempDir(), "policy.yaml")
			require.NoError(t, os.WriteFile(path, []byte(tt.body), 0o644))

			_, err := LoadPolicy(path)
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.errMsg)
		})
	}
}

func TestLoadFromEnv(t *testing.T) {
	t.Chdir(t.TempDir())
	t.Setenv("DB_SOURCE", "postgres://localhost/test")
	t.Setenv("AUTH_TOKEN", "secret")
	t.Setenv("SERVER_PORT", "")
	t.Setenv("LOG_LEVEL", "debug")
	t.Setenv("TX_TIMEOUT", "3s")
	t.Setenv("ALERT_SCAN_INTERVAL", "1m")
	t.Setenv("POLICY_FILE", "")

	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, "8080", cfg.Port)
	assert.Equal(t, slog.LevelDebug, cfg.LogLevel)
	assert.Equal(t, 3*time.Second, cfg.TxTimeout)
	assert.Equal(t, time.Minute, cfg.AlertScanInterval)
	assert.Equal(t, DefaultPolicy(), cfg.Policy)
}

func TestLoadRequiresSecrets(t *testing.T) {
	t.Chdir(t.TempDir())
	t.Setenv("DB_SOURCE", "")
	t.Setenv("AUTH_TOKEN", "x")
	_, err := Load()
	assert.EqualError(t, err, "DB_SOURCE environment variable is required")

	t.Setenv("DB_SOURCE", "postgres://localhost/test")
	t.Setenv("AUTH_TOKEN", " ")
	_, err = Load()
	assert.EqualError(t, err, "AUTH_TOKEN environment variable is required")
}

func TestLoadRejectsBadDuration(t *testing.T) {
	t.Chdir(t.TempDir())
	t.Setenv("DB_SOURCE", "postgres://localhost/test")
	t.Setenv("AUTH_TOKEN", "secret")
	t.Setenv("TX_TIMEOUT", "soon")
	_, err := Load()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "TX_TIMEOUT")
}
