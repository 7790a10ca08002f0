package core

import (
	"errors"
	"strings"
	"testing"
)

func TestValidateEncryptionSecret(t *testing.T) {
	if err := ValidateEncryptionSecret(testSecretHex); err != nil {
		t.Fatalf("a 32-byte hex secret should validate: %v", err)
	}
	if err := ValidateEncryptionSecret("  " + testSecretHex + "  "); err != nil {
		t.Fatalf("surrounding whitespace should be tolerated: %v", err)
	}

	cases := map[string]string{
		"empty":     "",
		"blank":     "   ",
		"not hex":   "zz" + testSecretHex[2:],
		"too short": testSecretHex[:32],
		"too long":  testSecretHex + "ff",
	}
	for name, secret := range cases {
		err := ValidateEncryptionSecret(secret)
		if !errors.Is(err, ErrInvalidSecretKey) {
			t.Fatalf("%s: expected ErrInvalidSecretKey, got %v", name, err)
		}
	}
}

func TestConfigValidate(t *testing.T) {
	valid := DefaultConfig()
	valid.EncryptionKey = testSecretHex
	if err := valid.Validate(); err != nil {
		t.Fatalf("default config with a secret should validate: %v", err)
	}

	cases := map[string]func(*Config){
		"missing service name": func(c *Config) { c.ServiceName = "" },
		"missing secret":       func(c *Config) { c.EncryptionKey = "" },
		"zero threshold":       func(c *Config) { c.FundingThresholdHbar = 0 },
		"negative threshold":   func(c *Config) { c.FundingThresholdHbar = -1 },
		"missing network":      func(c *Config) { c.Ledger.Network = "" },
		"zero timeout":         func(c *Config) { c.Ledger.RequestTimeoutSecs = 0 },
	}
	for name, mutate := range cases {
		cfg := valid
		mutate(&cfg)
		if err := cfg.Validate(); err == nil {
			t.Fatalf("%s: expected a validation error", name)
		}
	}
}

func TestConfigProduction(t *testing.T) {
	cases := map[string]bool{
		"production":   true,
		"PRODUCTION":   true,
		" production ": true,
		"development":  false,
		"staging":      false,
		"":             false,
	}
	for env, want := range cases {
		cfg := Config{Environment: env}
		if got := cfg.Production(); got != want {
			t.Fatalf("Production() with %q = %v, want %v", env, got, want)
		}
	}
}

func TestDefaultConfig(t *testing.T) {
	cfg := DefaultConfig()
	if cfg.ServiceName != "party-polaris" {
		t.Fatalf("unexpected service name %q", cfg.ServiceName)
	}
	if cfg.FundingThresholdHbar != 10 {
		t.Fatalf("unexpected funding threshold %d", cfg.FundingThresholdHbar)
	}
	if !strings.EqualFold(cfg.Ledger.Network, "local") {
		t.Fatalf("unexpected ledger network %q", cfg.Ledger.Network)
	}
	if cfg.Production() {
		t.Fatal("defaults must not claim production")
	}
}
