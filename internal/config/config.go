package config

import (
	"errors"
	"fmt"
	"log/slog"
	"os"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

type Config struct {
	DBSource          string
	Port              string
	Env               string
	AuthToken         string
	LogLevel          slog.Level
	TxTimeout         time.Duration
	AlertScanInterval time.Duration
	Policy            Policy
}

// Policy holds the operator-supplied risk settings. Thresholds are plain
// configuration; no rule is derived from them beyond the comparison.
type Policy struct {
	// ApprovalThresholds maps an action to the magnitude (minor units) at or
	// above which a second admin must approve. Actions not listed are never held.
	ApprovalThresholds map[string]int64 `yaml:"approval_thresholds"`
	Alerts             AlertPolicy      `yaml:"alerts"`
}

type AlertPolicy struct {
	ShipmentGrace time.Duration `yaml:"shipment_grace"`
	KYCStaleAfter time.Duration `yaml:"kyc_stale_after"`
}

// DefaultPolicy is used when no policy file is configured.
func DefaultPolicy() Policy {
	return Policy{
		ApprovalThresholds: map[string]int64{
			"release_payout":    10_000_000, // $100,000.00
			"wallet_adjustment": 1_000_000,  // $10,000.00
		},
		Alerts: AlertPolicy{
			ShipmentGrace: 72 * time.Hour,
			KYCStaleAfter: 7 * 24 * time.Hour,
		},
	}
}

// Threshold returns the approval threshold for action and whether one is set.
func (p Policy) Threshold(action string) (int64, bool) {
	t, ok := p.ApprovalThresholds[action]
	return t, ok
}

func (p Policy) Validate() error {
	for action, t := range p.ApprovalThresholds {
		if t < 0 {
			return fmt.Errorf("approval_thresholds.%s must not be negative", action)
		}
	}
	if p.Alerts.ShipmentGrace < 0 {
		return errors.New("alerts.shipment_grace must not be negative")
	}
	if p.Alerts.KYCStaleAfter <= 0 {
		return errors.New("alerts.kyc_stale_after must be positive")
	}
	return nil
}

// LoadPolicy reads a YAML policy file over the defaults.
func LoadPolicy(path string) (Policy, error) {
	p := DefaultPolicy()
	data, err := os.ReadFile(path)
	if err != nil {
		return Policy{}, fmt.Errorf("read policy file: %w", err)
	}
	if err := yaml.Unmarshal(data, &p); err != nil {
		return Policy{}, fmt.Errorf("parse policy file: %w", err)
	}
	if err := p.Validate(); err != nil {
		return Policy{}, fmt.Errorf("invalid policy: %w", err)
	}
	return p, nil
}

// Load reads configuration from the environment. A .env file in the working
// directory is loaded first when present; real environment variables win.
func Load() (*Config, error) {
	_ = godotenv.Load()

	dbSource := os.Getenv("DB_SOURCE")
	if dbSource == "" {
		return nil, fmt.Errorf("DB_SOURCE environment variable is required")
	}

	authToken := strings.TrimSpace(os.Getenv("AUTH_TOKEN"))
	if authToken == "" {
		return nil, fmt.Errorf("AUTH_TOKEN environment variable is required")
	}

	port := os.Getenv("SERVER_PORT")
	if port == "" {
		port = "8080"
	}

	env := os.Getenv("ENVIRONMENT")
	if env == "" {
		env = "development"
	}

	var level slog.Level
	if raw := os.Getenv("LOG_LEVEL"); raw != "" {
		if err := level.UnmarshalText([]byte(raw)); err != nil {
			return nil, fmt.Errorf("LOG_LEVEL: %w", err)
		}
	}

	txTimeout, err := durationEnv("TX_TIMEOUT", 10*time.Second)
	if err != nil {
		return nil, err
	}
	if txTimeout <= 0 {
		return nil, fmt.Errorf("TX_TIMEOUT must be positive")
	}

	scanInterval, err := durationEnv("ALERT_SCAN_INTERVAL", 0)
	if err != nil {
		return nil, err
	}

	policy := DefaultPolicy()
	if path := os.Getenv("POLICY_FILE"); path != "" {
		policy, err = LoadPolicy(path)
		if err != nil {
			return nil, err
		}
	}

	return &Config{
		DBSource:          dbSource,
		Port:              port,
		Env:               env,
		AuthToken:         authToken,
		LogLevel:          level,
		TxTimeout:         txTimeout,
		AlertScanInterval: scanInterval,
		Policy:            policy,
	}, nil
}

func durationEnv(name string, def time.Duration) (time.Duration, error) {
	raw := os.Getenv(name)
	if raw == "" {
		return def, nil
	}
	d, err := time.ParseDuration(raw)
	if err != nil {
		return 0, fmt.Errorf("%s: %w", name, err)
	}
	return d, nil
}
