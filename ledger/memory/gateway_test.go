package memoryledger

import (
	"context"
	"errors"
	"testing"

	"github.com/shopspring/decimal"

	"github.com/MrWiki15/server-party-polaris/core"
)

func TestGateway_AccountLifecycle(t *testing.T) {
	ctx := context.Background()
	gw := NewGateway()

	receipt, err := gw.CreateAccount(ctx, "aabbcc", 0)
	if err != nil {
		t.Fatalf("create account: %v", err)
	}
	if receipt.AccountID == "" || receipt.TransactionID == "" {
		t.Fatalf("expected populated receipt, got %#v", receipt)
	}

	balance, err := gw.AccountBalance(ctx, receipt.AccountID)
	if err != nil {
		t.Fatalf("balance: %v", err)
	}
	if balance != 0 {
		t.Fatalf("expected empty wallet, got %d", balance)
	}

	if err := gw.Fund(receipt.AccountID, 15*core.TinybarPerHbar); err != nil {
		t.Fatalf("fund: %v", err)
	}
	balance, err = gw.AccountBalance(ctx, receipt.AccountID)
	if err != nil {
		t.Fatalf("balance after fund: %v", err)
	}
	if balance != 15*core.TinybarPerHbar {
		t.Fatalf("expected 15 hbar in tinybar, got %d", balance)
	}

	if _, err := gw.AccountBalance(ctx, "0.0.9999999"); err == nil {
		t.Fatalf("expected error for unknown account")
	}
	if _, err := gw.CreateAccount(ctx, "", 0); err == nil {
		t.Fatalf("expected error for empty public key")
	}
}

func TestGateway_TokenMintAndTransfer(t *testing.T) {
	ctx := context.Background()
	gw := NewGateway()

	treasury, err := gw.CreateAccount(ctx, "treasury-pub", 0)
	if err != nil {
		t.Fatalf("create treasury: %v", err)
	}

	tokenReceipt, err := gw.CreateToken(ctx, core.TokenDefinition{
		Name:              "Summer Gala",
		Symbol:            "SUM",
		Decimals:          2,
		InitialSupply:     0,
		TreasuryAccountID: treasury.AccountID,
	}, core.TokenSigningKeys{
		TreasuryPrivateKey: "treasury-priv",
		SupplyPrivateKey:   "supply-priv",
	})
	if err != nil {
		t.Fatalf("create token: %v", err)
	}

	mint, err := gw.MintToken(ctx, core.MintRequest{
		TokenID:            tokenReceipt.TokenID,
		Amount:             decimal.RequireFromString("10"),
		TreasuryAccountID:  treasury.AccountID,
		TreasuryPrivateKey: "treasury-priv",
		SupplyPrivateKey:   "supply-priv",
	})
	if err != nil {
		t.Fatalf("mint: %v", err)
	}
	if !mint.TotalSupply.Equal(decimal.RequireFromString("10")) {
		t.Fatalf("expected supply 10, got %s", mint.TotalSupply)
	}

	donor := "0.0.4242"
	if _, err := gw.TransferToken(ctx, core.TransferRequest{
		TokenID:            tokenReceipt.TokenID,
		Amount:             decimal.RequireFromString("10"),
		FromAccountID:      treasury.AccountID,
		ToAccountID:        donor,
		TreasuryPrivateKey: "treasury-priv",
	}); err != nil {
		t.Fatalf("transfer: %v", err)
	}

	donorBalance, err := gw.TokenBalance(tokenReceipt.TokenID, donor)
	if err != nil {
		t.Fatalf("donor balance: %v", err)
	}
	if !donorBalance.Equal(decimal.RequireFromString("10")) {
		t.Fatalf("expected donor to hold 10, got %s", donorBalance)
	}
	treasuryBalance, err := gw.TokenBalance(tokenReceipt.TokenID, treasury.AccountID)
	if err != nil {
		t.Fatalf("treasury balance: %v", err)
	}
	if !treasuryBalance.IsZero() {
		t.Fatalf("expected drained treasury, got %s", treasuryBalance)
	}
}

func TestGateway_TransferRequiresFunds(t *testing.T) {
	ctx := context.Background()
	gw := NewGateway()

	treasury, _ := gw.CreateAccount(ctx, "treasury-pub", 0)
	tokenReceipt, err := gw.CreateToken(ctx, core.TokenDefinition{
		Name:              "Gala",
		Symbol:            "GAL",
		TreasuryAccountID: treasury.AccountID,
	}, core.TokenSigningKeys{
		TreasuryPrivateKey: "treasury-priv",
		SupplyPrivateKey:   "supply-priv",
	})
	if err != nil {
		t.Fatalf("create token: %v", err)
	}

	_, err = gw.TransferToken(ctx, core.TransferRequest{
		TokenID:            tokenReceipt.TokenID,
		Amount:             decimal.RequireFromString("1"),
		FromAccountID:      treasury.AccountID,
		ToAccountID:        "0.0.4242",
		TreasuryPrivateKey: "treasury-priv",
	})
	if err == nil {
		t.Fatalf("expected transfer to fail without minted supply")
	}
}

func TestGateway_CreateTokenRequiresTreasury(t *testing.T) {
	gw := NewGateway()
	_, err := gw.CreateToken(context.Background(), core.TokenDefinition{
		Name:              "Gala",
		Symbol:            "GAL",
		TreasuryAccountID: "0.0.404",
	}, core.TokenSigningKeys{
		TreasuryPrivateKey: "treasury-priv",
		SupplyPrivateKey:   "supply-priv",
	})
	if err == nil {
		t.Fatalf("expected error for unknown treasury account")
	}
}

func TestGateway_InjectedFailuresFireOnce(t *testing.T) {
	ctx := context.Background()
	gw := NewGateway()

	treasury, _ := gw.CreateAccount(ctx, "treasury-pub", 0)
	tokenReceipt, err := gw.CreateToken(ctx, core.TokenDefinition{
		Name:              "Gala",
		Symbol:            "GAL",
		TreasuryAccountID: treasury.AccountID,
	}, core.TokenSigningKeys{
		TreasuryPrivateKey: "treasury-priv",
		SupplyPrivateKey:   "supply-priv",
	})
	if err != nil {
		t.Fatalf("create token: %v", err)
	}

	boom := errors.New("consensus timeout")
	gw.FailNextMint(boom)

	req := core.MintRequest{
		TokenID:            tokenReceipt.TokenID,
		Amount:             decimal.RequireFromString("5"),
		TreasuryAccountID:  treasury.AccountID,
		TreasuryPrivateKey: "treasury-priv",
		SupplyPrivateKey:   "supply-priv",
	}
	if _, err := gw.MintToken(ctx, req); !errors.Is(err, boom) {
		t.Fatalf("expected injected mint failure, got %v", err)
	}
	if _, err := gw.MintToken(ctx, req); err != nil {
		t.Fatalf("expected second mint to succeed, got %v", err)
	}
}
