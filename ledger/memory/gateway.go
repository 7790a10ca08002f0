// Package memoryledger provides an in-process ledger simulation. It backs
// the local network profile and the integration tests: receipts, balances
// and token supplies behave like the real network, minus consensus.
package memoryledger

import (
	"context"
	"fmt"
	"strings"
	"sync"

	"github.com/shopspring/decimal"

	"github.com/MrWiki15/server-party-polaris/core"
)

const firstEntityNum = 1001

type account struct {
	publicKey      string
	balanceTinybar int64
}

type token struct {
	definition  core.TokenDefinition
	totalSupply decimal.Decimal
	balances    map[string]decimal.Decimal
}

// Gateway is a thread-safe in-memory core.LedgerGateway.
type Gateway struct {
	mu sync.Mutex

	accounts   map[string]*account
	tokens     map[string]*token
	nextEntity int
	nextTx     int

	mintErr     error
	transferErr error
}

func NewGateway() *Gateway {
	return &Gateway{
		accounts:   map[string]*account{},
		tokens:     map[string]*token{},
		nextEntity: firstEntityNum,
	}
}

func (g *Gateway) CreateAccount(ctx context.Context, publicKey string, initialBalanceTinybar int64) (core.AccountReceipt, error) {
	if err := ctx.Err(); err != nil {
		return core.AccountReceipt{}, err
	}
	publicKey = strings.TrimSpace(publicKey)
	if publicKey == "" {
		return core.AccountReceipt{}, fmt.Errorf("memoryledger: public key is required")
	}
	if initialBalanceTinybar < 0 {
		return core.AccountReceipt{}, fmt.Errorf("memoryledger: initial balance must not be negative")
	}

	g.mu.Lock()
	defer g.mu.Unlock()

	accountID := g.nextEntityID()
	g.accounts[accountID] = &account{
		publicKey:      publicKey,
		balanceTinybar: initialBalanceTinybar,
	}
	return core.AccountReceipt{
		AccountID:     accountID,
		TransactionID: g.nextTransactionID(),
	}, nil
}

func (g *Gateway) AccountBalance(ctx context.Context, accountID string) (int64, error) {
	if err := ctx.Err(); err != nil {
		return 0, err
	}
	g.mu.Lock()
	defer g.mu.Unlock()

	acct, ok := g.accounts[strings.TrimSpace(accountID)]
	if !ok {
		return 0, fmt.Errorf("memoryledger: account %s does not exist", accountID)
	}
	return acct.balanceTinybar, nil
}

func (g *Gateway) CreateToken(ctx context.Context, def core.TokenDefinition, keys core.TokenSigningKeys) (core.TokenReceipt, error) {
	if err := ctx.Err(); err != nil {
		return core.TokenReceipt{}, err
	}
	if strings.TrimSpace(def.Name) == "" || strings.TrimSpace(def.Symbol) == "" {
		return core.TokenReceipt{}, fmt.Errorf("memoryledger: token name and symbol are required")
	}
	if strings.TrimSpace(keys.TreasuryPrivateKey) == "" || strings.TrimSpace(keys.SupplyPrivateKey) == "" {
		return core.TokenReceipt{}, fmt.Errorf("memoryledger: treasury and supply signatures are required")
	}

	g.mu.Lock()
	defer g.mu.Unlock()

	treasury := strings.TrimSpace(def.TreasuryAccountID)
	if _, ok := g.accounts[treasury]; !ok {
		return core.TokenReceipt{}, fmt.Errorf("memoryledger: treasury account %s does not exist", treasury)
	}

	tokenID := g.nextEntityID()
	initial := decimal.NewFromInt(def.InitialSupply)
	tok := &token{
		definition:  def,
		totalSupply: initial,
		balances:    map[string]decimal.Decimal{},
	}
	if initial.IsPositive() {
		tok.balances[treasury] = initial
	}
	g.tokens[tokenID] = tok

	return core.TokenReceipt{
		TokenID:       tokenID,
		TransactionID: g.nextTransactionID(),
	}, nil
}

func (g *Gateway) MintToken(ctx context.Context, req core.MintRequest) (core.MintReceipt, error) {
	if err := ctx.Err(); err != nil {
		return core.MintReceipt{}, err
	}
	if !req.Amount.IsPositive() {
		return core.MintReceipt{}, fmt.Errorf("memoryledger: mint amount must be positive")
	}
	if strings.TrimSpace(req.SupplyPrivateKey) == "" {
		return core.MintReceipt{}, fmt.Errorf("memoryledger: supply signature is required")
	}

	g.mu.Lock()
	defer g.mu.Unlock()

	if err := g.takeInjectedError(&g.mintErr); err != nil {
		return core.MintReceipt{}, err
	}

	tok, ok := g.tokens[strings.TrimSpace(req.TokenID)]
	if !ok {
		return core.MintReceipt{}, fmt.Errorf("memoryledger: token %s does not exist", req.TokenID)
	}
	treasury := strings.TrimSpace(req.TreasuryAccountID)
	if treasury == "" {
		treasury = strings.TrimSpace(tok.definition.TreasuryAccountID)
	}

	tok.totalSupply = tok.totalSupply.Add(req.Amount)
	tok.balances[treasury] = tok.balances[treasury].Add(req.Amount)

	return core.MintReceipt{
		TransactionID: g.nextTransactionID(),
		TotalSupply:   tok.totalSupply,
	}, nil
}

func (g *Gateway) TransferToken(ctx context.Context, req core.TransferRequest) (core.TransferReceipt, error) {
	if err := ctx.Err(); err != nil {
		return core.TransferReceipt{}, err
	}
	if !req.Amount.IsPositive() {
		return core.TransferReceipt{}, fmt.Errorf("memoryledger: transfer amount must be positive")
	}
	from := strings.TrimSpace(req.FromAccountID)
	to := strings.TrimSpace(req.ToAccountID)
	if from == "" || to == "" {
		return core.TransferReceipt{}, fmt.Errorf("memoryledger: transfer endpoints are required")
	}
	if strings.TrimSpace(req.TreasuryPrivateKey) == "" {
		return core.TransferReceipt{}, fmt.Errorf("memoryledger: treasury signature is required")
	}

	g.mu.Lock()
	defer g.mu.Unlock()

	if err := g.takeInjectedError(&g.transferErr); err != nil {
		return core.TransferReceipt{}, err
	}

	tok, ok := g.tokens[strings.TrimSpace(req.TokenID)]
	if !ok {
		return core.TransferReceipt{}, fmt.Errorf("memoryledger: token %s does not exist", req.TokenID)
	}
	available := tok.balances[from]
	if available.LessThan(req.Amount) {
		return core.TransferReceipt{}, fmt.Errorf("memoryledger: account %s holds %s, cannot transfer %s",
			from, available.String(), req.Amount.String())
	}

	// Donor wallets are external accounts; they receive token units without
	// having been created through this gateway.
	tok.balances[from] = available.Sub(req.Amount)
	tok.balances[to] = tok.balances[to].Add(req.Amount)

	return core.TransferReceipt{TransactionID: g.nextTransactionID()}, nil
}

// Fund credits tinybar to an existing account, simulating an external
// deposit into the event wallet.
func (g *Gateway) Fund(accountID string, tinybar int64) error {
	if tinybar <= 0 {
		return fmt.Errorf("memoryledger: fund amount must be positive")
	}
	g.mu.Lock()
	defer g.mu.Unlock()

	acct, ok := g.accounts[strings.TrimSpace(accountID)]
	if !ok {
		return fmt.Errorf("memoryledger: account %s does not exist", accountID)
	}
	acct.balanceTinybar += tinybar
	return nil
}

// TokenBalance reports the units of a token an account holds.
func (g *Gateway) TokenBalance(tokenID, accountID string) (decimal.Decimal, error) {
	g.mu.Lock()
	defer g.mu.Unlock()

	tok, ok := g.tokens[strings.TrimSpace(tokenID)]
	if !ok {
		return decimal.Zero, fmt.Errorf("memoryledger: token %s does not exist", tokenID)
	}
	return tok.balances[strings.TrimSpace(accountID)], nil
}

// TokenSupply reports the total minted supply of a token.
func (g *Gateway) TokenSupply(tokenID string) (decimal.Decimal, error) {
	g.mu.Lock()
	defer g.mu.Unlock()

	tok, ok := g.tokens[strings.TrimSpace(tokenID)]
	if !ok {
		return decimal.Zero, fmt.Errorf("memoryledger: token %s does not exist", tokenID)
	}
	return tok.totalSupply, nil
}

// FailNextMint makes the next mint submission fail once with err.
func (g *Gateway) FailNextMint(err error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.mintErr = err
}

// FailNextTransfer makes the next transfer submission fail once with err.
func (g *Gateway) FailNextTransfer(err error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.transferErr = err
}

func (g *Gateway) takeInjectedError(slot *error) error {
	err := *slot
	*slot = nil
	return err
}

func (g *Gateway) nextEntityID() string {
	id := fmt.Sprintf("0.0.%d", g.nextEntity)
	g.nextEntity++
	return id
}

func (g *Gateway) nextTransactionID() string {
	g.nextTx++
	return fmt.Sprintf("0.0.2@%06d", g.nextTx)
}

var _ core.LedgerGateway = (*Gateway)(nil)
