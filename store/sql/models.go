package sqlstore

import (
	"time"

	"github.com/shopspring/decimal"
	"github.com/uptrace/bun"
)

type eventRecord struct {
	bun.BaseModel `bun:"table:party_events,alias:pe"`

	ID                      string          `bun:"id,pk"`
	Name                    string          `bun:"name,notnull"`
	WalletAccountID         string          `bun:"wallet_account_id"`
	WalletPrivateKey        string          `bun:"wallet_private_key"`
	TokenID                 string          `bun:"token_id"`
	TokenSupplyPublicKey    string          `bun:"token_supply_public_key"`
	TokenSupplyPrivateKey   string          `bun:"token_supply_private_key"`
	TokenAdminPublicKey     string          `bun:"token_admin_public_key"`
	TokenAdminPrivateKey    string          `bun:"token_admin_private_key"`
	TokenMetadataPublicKey  string          `bun:"token_metadata_public_key"`
	TokenMetadataPrivateKey string          `bun:"token_metadata_private_key"`
	CollectedAmount         decimal.Decimal `bun:"collected_amount,notnull,type:numeric"`
	CreatedAt               time.Time       `bun:"created_at,nullzero,notnull,default:current_timestamp"`
	UpdatedAt               time.Time       `bun:"updated_at,nullzero,notnull,default:current_timestamp"`
}

type donationRecord struct {
	bun.BaseModel `bun:"table:party_donations,alias:pd"`

	ID            string          `bun:"id,pk"`
	EventID       string          `bun:"event_id,notnull"`
	DonorWallet   string          `bun:"donor_wallet,notnull"`
	Amount        decimal.Decimal `bun:"amount,notnull,type:numeric"`
	MintedAmount  decimal.Decimal `bun:"minted_amount,notnull,type:numeric"`
	TransactionID string          `bun:"transaction_id"`
	Status        string          `bun:"status,notnull"`
	LastError     string          `bun:"last_error"`
	CreatedAt     time.Time       `bun:"created_at,nullzero,notnull,default:current_timestamp"`
	UpdatedAt     time.Time       `bun:"updated_at,nullzero,notnull,default:current_timestamp"`
}

type settlementJournalRecord struct {
	bun.BaseModel `bun:"table:settlement_journal,alias:sj"`

	ID                    string          `bun:"id,pk"`
	DonationID            string          `bun:"donation_id,notnull"`
	EventID               string          `bun:"event_id,notnull"`
	DonorWallet           string          `bun:"donor_wallet,notnull"`
	Amount                decimal.Decimal `bun:"amount,notnull,type:numeric"`
	MintAmount            decimal.Decimal `bun:"mint_amount,notnull,type:numeric"`
	Stage                 string          `bun:"stage,notnull"`
	Attempts              int             `bun:"attempts,notnull"`
	LastError             string          `bun:"last_error"`
	MintTransactionID     string          `bun:"mint_transaction_id"`
	TransferTransactionID string          `bun:"transfer_transaction_id"`
	CreatedAt             time.Time       `bun:"created_at,nullzero,notnull,default:current_timestamp"`
	UpdatedAt             time.Time       `bun:"updated_at,nullzero,notnull,default:current_timestamp"`
}
