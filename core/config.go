package core

import (
	"encoding/hex"
	"fmt"
	"strings"
)

const (
	// EncryptionSecretBytes is the required decoded length of the process
	// encryption secret.
	EncryptionSecretBytes = 32

	defaultFundingThresholdHbar = 10
	defaultLedgerNetwork        = "local"
)

type LedgerConfig struct {
	Network              string `koanf:"network" mapstructure:"network"`
	OperatorAccountID    string `koanf:"operator_account_id" mapstructure:"operator_account_id"`
	OperatorPrivateKey   string `koanf:"operator_private_key" mapstructure:"operator_private_key"`
	RequestTimeoutSecs   int    `koanf:"request_timeout_secs" mapstructure:"request_timeout_secs"`
	BalanceRetryAttempts int    `koanf:"balance_retry_attempts" mapstructure:"balance_retry_attempts"`
}

type Config struct {
	ServiceName          string       `koanf:"service_name" mapstructure:"service_name"`
	Environment          string       `koanf:"environment" mapstructure:"environment"`
	EncryptionKey        string       `koanf:"encryption_key" mapstructure:"encryption_key"`
	FundingThresholdHbar int64        `koanf:"funding_threshold_hbar" mapstructure:"funding_threshold_hbar"`
	Ledger               LedgerConfig `koanf:"ledger" mapstructure:"ledger"`
}

func DefaultConfig() Config {
	return Config{
		ServiceName:          "party-polaris",
		Environment:          "development",
		FundingThresholdHbar: defaultFundingThresholdHbar,
		Ledger: LedgerConfig{
			Network:              defaultLedgerNetwork,
			RequestTimeoutSecs:   30,
			BalanceRetryAttempts: 3,
		},
	}
}

func (c Config) Production() bool {
	return strings.EqualFold(strings.TrimSpace(c.Environment), "production")
}

func (c Config) Validate() error {
	if strings.TrimSpace(c.ServiceName) == "" {
		return fmt.Errorf("core: service_name is required")
	}
	if err := ValidateEncryptionSecret(c.EncryptionKey); err != nil {
		return err
	}
	if c.FundingThresholdHbar <= 0 {
		return fmt.Errorf("core: funding_threshold_hbar must be positive")
	}
	if strings.TrimSpace(c.Ledger.Network) == "" {
		return fmt.Errorf("core: ledger.network is required")
	}
	if c.Ledger.RequestTimeoutSecs <= 0 {
		return fmt.Errorf("core: ledger.request_timeout_secs must be positive")
	}
	return nil
}

// ValidateEncryptionSecret checks the process-wide secret before any vault
// use: present, valid hex, exactly 32 bytes decoded. Runs at startup and is
// cheap to re-run.
func ValidateEncryptionSecret(hexSecret string) error {
	trimmed := strings.TrimSpace(hexSecret)
	if trimmed == "" {
		return fmt.Errorf("%w: secret is not set", ErrInvalidSecretKey)
	}
	decoded, err := hex.DecodeString(trimmed)
	if err != nil {
		return fmt.Errorf("%w: secret is not valid hex", ErrInvalidSecretKey)
	}
	if len(decoded) != EncryptionSecretBytes {
		return fmt.Errorf("%w: decoded length %d", ErrInvalidSecretKey, len(decoded))
	}
	return nil
}
