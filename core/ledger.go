package core

import (
	"context"
	"crypto/ed25519"
	"crypto/rand"
	"encoding/hex"
	"fmt"
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

// LedgerKeyPair is a locally-generated signing key pair. The private half
// never leaves the process unencrypted; only the public half is transmitted
// to the ledger network.
type LedgerKeyPair struct {
	PrivateKey string
	PublicKey  string
}

type AccountReceipt struct {
	AccountID     string
	TransactionID string
}

type TokenReceipt struct {
	TokenID       string
	TransactionID string
}

type MintReceipt struct {
	TransactionID string
	TotalSupply   decimal.Decimal
}

type TransferReceipt struct {
	TransactionID string
}

// TokenDefinition describes the fungible token created for an event:
// decimals fixed at 2, initial supply 0, treasury owned by the event wallet.
type TokenDefinition struct {
	Name              string
	Symbol            string
	Decimals          int
	InitialSupply     int64
	TreasuryAccountID string
	SupplyPublicKey   string
	AdminPublicKey    string
	MetadataPublicKey string
}

// TokenSigningKeys carries the private keys a token-creation submission must
// be signed with: the treasury key plus the three capability keys.
type TokenSigningKeys struct {
	TreasuryPrivateKey string
	SupplyPrivateKey   string
	AdminPrivateKey    string
	MetadataPrivateKey string
}

type MintRequest struct {
	TokenID            string
	Amount             decimal.Decimal
	TreasuryAccountID  string
	TreasuryPrivateKey string
	SupplyPrivateKey   string
}

type TransferRequest struct {
	TokenID            string
	Amount             decimal.Decimal
	FromAccountID      string
	ToAccountID        string
	TreasuryPrivateKey string
}

// LedgerGateway is the contract the orchestrators need from the distributed
// ledger client. Every call either returns a confirmed receipt or fails;
// there is no partial acceptance at this boundary. Submissions are not
// idempotent, so callers must never blind-retry mint or transfer.
type LedgerGateway interface {
	CreateAccount(ctx context.Context, publicKey string, initialBalanceTinybar int64) (AccountReceipt, error)
	AccountBalance(ctx context.Context, accountID string) (int64, error)
	CreateToken(ctx context.Context, def TokenDefinition, keys TokenSigningKeys) (TokenReceipt, error)
	MintToken(ctx context.Context, req MintRequest) (MintReceipt, error)
	TransferToken(ctx context.Context, req TransferRequest) (TransferReceipt, error)
}

// KeyGenerator produces ledger signing key pairs locally.
type KeyGenerator interface {
	Generate() (LedgerKeyPair, error)
}

// Ed25519KeyGenerator generates hex-encoded ed25519 key pairs, the curve the
// ledger network accounts with.
type Ed25519KeyGenerator struct{}

func (Ed25519KeyGenerator) Generate() (LedgerKeyPair, error) {
	public, private, err := ed25519.GenerateKey(rand.Reader)
	if err != nil {
		return LedgerKeyPair{}, fmt.Errorf("core: generate ed25519 key pair: %w", err)
	}
	return LedgerKeyPair{
		PrivateKey: hex.EncodeToString(private.Seed()),
		PublicKey:  hex.EncodeToString(public),
	}, nil
}

const (
	defaultLedgerTimeout        = 30 * time.Second
	defaultBalanceRetryAttempts = 3
	defaultBalanceRetryInitial  = 250 * time.Millisecond
	defaultBalanceRetryMax      = 5 * time.Second
)

type BackoffScheduler interface {
	NextDelay(attempt int) time.Duration
}

type ExponentialBackoffScheduler struct {
	Initial time.Duration
	Max     time.Duration
}

func (s ExponentialBackoffScheduler) NextDelay(attempt int) time.Duration {
	if attempt < 1 {
		attempt = 1
	}
	initial := s.Initial
	if initial <= 0 {
		initial = defaultBalanceRetryInitial
	}
	max := s.Max
	if max <= 0 {
		max = defaultBalanceRetryMax
	}

	delay := initial
	for i := 1; i < attempt; i++ {
		delay *= 2
		if delay >= max {
			return max
		}
	}
	if delay > max {
		return max
	}
	return delay
}

func waitWithContext(ctx context.Context, delay time.Duration) error {
	if delay <= 0 {
		return nil
	}
	timer := time.NewTimer(delay)
	defer timer.Stop()

	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}

// RetryingLedgerGateway bounds every gateway call with a timeout and retries
// balance queries only. Mint, transfer, account and token submissions go out
// exactly once per call: the gateway contract offers no client-supplied
// deduplication id, so a resubmission could duplicate the ledger effect.
type RetryingLedgerGateway struct {
	base            LedgerGateway
	timeout         time.Duration
	balanceAttempts int
	scheduler       BackoffScheduler
}

func NewRetryingLedgerGateway(base LedgerGateway, cfg LedgerConfig, scheduler BackoffScheduler) (*RetryingLedgerGateway, error) {
	if base == nil {
		return nil, fmt.Errorf("core: ledger gateway is required")
	}
	timeout := time.Duration(cfg.RequestTimeoutSecs) * time.Second
	if timeout <= 0 {
		timeout = defaultLedgerTimeout
	}
	attempts := cfg.BalanceRetryAttempts
	if attempts < 1 {
		attempts = defaultBalanceRetryAttempts
	}
	if scheduler == nil {
		scheduler = ExponentialBackoffScheduler{
			Initial: defaultBalanceRetryInitial,
			Max:     defaultBalanceRetryMax,
		}
	}
	return &RetryingLedgerGateway{
		base:            base,
		timeout:         timeout,
		balanceAttempts: attempts,
		scheduler:       scheduler,
	}, nil
}

func (g *RetryingLedgerGateway) CreateAccount(ctx context.Context, publicKey string, initialBalanceTinybar int64) (AccountReceipt, error) {
	if err := g.ready(); err != nil {
		return AccountReceipt{}, err
	}
	ctx, cancel := context.WithTimeout(ctx, g.timeout)
	defer cancel()
	receipt, err := g.base.CreateAccount(ctx, strings.TrimSpace(publicKey), initialBalanceTinybar)
	if err != nil {
		return AccountReceipt{}, fmt.Errorf("%w: create account: %v", ErrLedgerUnavailable, err)
	}
	return receipt, nil
}

func (g *RetryingLedgerGateway) AccountBalance(ctx context.Context, accountID string) (int64, error) {
	if err := g.ready(); err != nil {
		return 0, err
	}
	accountID = strings.TrimSpace(accountID)

	var lastErr error
	for attempt := 1; attempt <= g.balanceAttempts; attempt++ {
		balance, err := g.balanceOnce(ctx, accountID)
		if err == nil {
			return balance, nil
		}
		lastErr = err
		if attempt == g.balanceAttempts {
			break
		}
		if waitErr := waitWithContext(ctx, g.scheduler.NextDelay(attempt)); waitErr != nil {
			return 0, fmt.Errorf("%w: balance query: %v", ErrLedgerUnavailable, waitErr)
		}
	}
	return 0, fmt.Errorf("%w: balance query after %d attempts: %v", ErrLedgerUnavailable, g.balanceAttempts, lastErr)
}

func (g *RetryingLedgerGateway) balanceOnce(ctx context.Context, accountID string) (int64, error) {
	ctx, cancel := context.WithTimeout(ctx, g.timeout)
	defer cancel()
	return g.base.AccountBalance(ctx, accountID)
}

func (g *RetryingLedgerGateway) CreateToken(ctx context.Context, def TokenDefinition, keys TokenSigningKeys) (TokenReceipt, error) {
	if err := g.ready(); err != nil {
		return TokenReceipt{}, err
	}
	ctx, cancel := context.WithTimeout(ctx, g.timeout)
	defer cancel()
	receipt, err := g.base.CreateToken(ctx, def, keys)
	if err != nil {
		return TokenReceipt{}, fmt.Errorf("%w: create token: %v", ErrLedgerUnavailable, err)
	}
	return receipt, nil
}

func (g *RetryingLedgerGateway) MintToken(ctx context.Context, req MintRequest) (MintReceipt, error) {
	if err := g.ready(); err != nil {
		return MintReceipt{}, err
	}
	ctx, cancel := context.WithTimeout(ctx, g.timeout)
	defer cancel()
	receipt, err := g.base.MintToken(ctx, req)
	if err != nil {
		return MintReceipt{}, fmt.Errorf("%w: mint: %v", ErrLedgerUnavailable, err)
	}
	return receipt, nil
}

func (g *RetryingLedgerGateway) TransferToken(ctx context.Context, req TransferRequest) (TransferReceipt, error) {
	if err := g.ready(); err != nil {
		return TransferReceipt{}, err
	}
	ctx, cancel := context.WithTimeout(ctx, g.timeout)
	defer cancel()
	receipt, err := g.base.TransferToken(ctx, req)
	if err != nil {
		return TransferReceipt{}, fmt.Errorf("%w: transfer: %v", ErrLedgerUnavailable, err)
	}
	return receipt, nil
}

func (g *RetryingLedgerGateway) ready() error {
	if g == nil || g.base == nil {
		return fmt.Errorf("core: retrying ledger gateway is not configured")
	}
	return nil
}

var _ LedgerGateway = (*RetryingLedgerGateway)(nil)
