package core

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

var (
	ErrEventNotFound                 = errors.New("core: event not found")
	ErrDonationNotFound              = errors.New("core: donation not found")
	ErrWalletAlreadyProvisioned      = errors.New("core: event wallet already provisioned")
	ErrWalletNotProvisioned          = errors.New("core: event wallet not provisioned")
	ErrTokenAlreadyIssued            = errors.New("core: event token already issued")
	ErrTokenNotIssued                = errors.New("core: event token not issued")
	ErrInvalidDonationStatusChange   = errors.New("core: invalid donation status transition")
	ErrInvalidJournalStageTransition = errors.New("core: invalid settlement journal stage transition")
)

// EncryptedSecret is the opaque at-rest form of a custodial private key:
// base64(ciphertext ‖ 16-byte IV). Only the key vault reads its contents.
type EncryptedSecret string

func (s EncryptedSecret) IsZero() bool {
	return strings.TrimSpace(string(s)) == ""
}

// Event is an organizer party with a custodial treasury wallet and, once
// issued, a fungible token whose supply grows with settled donations.
type Event struct {
	ID                      string
	Name                    string
	WalletAccountID         string
	WalletPrivateKey        EncryptedSecret
	TokenID                 string
	TokenSupplyPublicKey    string
	TokenSupplyPrivateKey   EncryptedSecret
	TokenAdminPublicKey     string
	TokenAdminPrivateKey    EncryptedSecret
	TokenMetadataPublicKey  string
	TokenMetadataPrivateKey EncryptedSecret
	CollectedAmount         decimal.Decimal
	CreatedAt               time.Time
	UpdatedAt               time.Time
}

func (e Event) WalletProvisioned() bool {
	return strings.TrimSpace(e.WalletAccountID) != ""
}

func (e Event) TokenIssued() bool {
	return strings.TrimSpace(e.TokenID) != ""
}

// TokenSymbol derives the ledger token symbol from the event name: the first
// three characters, upper-cased.
func (e Event) TokenSymbol() string {
	name := strings.TrimSpace(e.Name)
	if name == "" {
		return ""
	}
	runes := []rune(name)
	if len(runes) > 3 {
		runes = runes[:3]
	}
	return strings.ToUpper(string(runes))
}

type DonationStatus string

const (
	DonationStatusPending DonationStatus = "pending"
	DonationStatusSettled DonationStatus = "settled"
	DonationStatusFailed  DonationStatus = "failed"
)

// Donation is a single contribution. Amount is in the ledger's native
// currency; MintedAmount is the token amount derived from it at settlement.
type Donation struct {
	ID            string
	EventID       string
	DonorWallet   string
	Amount        decimal.Decimal
	MintedAmount  decimal.Decimal
	TransactionID string
	Status        DonationStatus
	LastError     string
	CreatedAt     time.Time
	UpdatedAt     time.Time
}

func (d *Donation) TransitionTo(status DonationStatus, reason string, now time.Time) error {
	if d == nil {
		return nil
	}
	if d.Status == status {
		d.UpdatedAt = now
		if strings.TrimSpace(reason) != "" {
			d.LastError = strings.TrimSpace(reason)
		}
		return nil
	}
	if !donationTransitionAllowed(d.Status, status) {
		return fmt.Errorf("%w: %s -> %s", ErrInvalidDonationStatusChange, d.Status, status)
	}
	d.Status = status
	d.UpdatedAt = now
	if strings.TrimSpace(reason) != "" {
		d.LastError = strings.TrimSpace(reason)
	}
	if status == DonationStatusSettled {
		d.LastError = ""
	}
	return nil
}

func donationTransitionAllowed(from, to DonationStatus) bool {
	allowed, ok := donationTransitions[from]
	if !ok {
		return false
	}
	for _, candidate := range allowed {
		if candidate == to {
			return true
		}
	}
	return false
}

// Donation rows are never deleted and never leave a terminal status.
var donationTransitions = map[DonationStatus][]DonationStatus{
	DonationStatusPending: {DonationStatusSettled, DonationStatusFailed},
	DonationStatusSettled: {},
	DonationStatusFailed:  {},
}

// TokenGrant carries everything persisted when a token is issued for an
// event: the token id plus the three capability key pairs, private halves
// encrypted.
type TokenGrant struct {
	TokenID            string
	SupplyPublicKey    string
	SupplyPrivateKey   EncryptedSecret
	AdminPublicKey     string
	AdminPrivateKey    EncryptedSecret
	MetadataPublicKey  string
	MetadataPrivateKey EncryptedSecret
}

func (g TokenGrant) Validate() error {
	if strings.TrimSpace(g.TokenID) == "" {
		return fmt.Errorf("core: token grant requires a token id")
	}
	if g.SupplyPrivateKey.IsZero() || g.AdminPrivateKey.IsZero() || g.MetadataPrivateKey.IsZero() {
		return fmt.Errorf("core: token grant requires all three encrypted capability keys")
	}
	return nil
}
