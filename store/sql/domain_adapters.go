package sqlstore

import (
	"time"

	"github.com/MrWiki15/server-party-polaris/core"
)

func newEventRecord(event core.Event, now time.Time) *eventRecord {
	createdAt := event.CreatedAt
	if createdAt.IsZero() {
		createdAt = now
	}
	return &eventRecord{
		ID:                      event.ID,
		Name:                    event.Name,
		WalletAccountID:         event.WalletAccountID,
		WalletPrivateKey:        string(event.WalletPrivateKey),
		TokenID:                 event.TokenID,
		TokenSupplyPublicKey:    event.TokenSupplyPublicKey,
		TokenSupplyPrivateKey:   string(event.TokenSupplyPrivateKey),
		TokenAdminPublicKey:     event.TokenAdminPublicKey,
		TokenAdminPrivateKey:    string(event.TokenAdminPrivateKey),
		TokenMetadataPublicKey:  event.TokenMetadataPublicKey,
		TokenMetadataPrivateKey: string(event.TokenMetadataPrivateKey),
		CollectedAmount:         event.CollectedAmount,
		CreatedAt:               createdAt,
		UpdatedAt:               now,
	}
}

func (r *eventRecord) toDomain() core.Event {
	if r == nil {
		return core.Event{}
	}
	return core.Event{
		ID:                      r.ID,
		Name:                    r.Name,
		WalletAccountID:         r.WalletAccountID,
		WalletPrivateKey:        core.EncryptedSecret(r.WalletPrivateKey),
		TokenID:                 r.TokenID,
		TokenSupplyPublicKey:    r.TokenSupplyPublicKey,
		TokenSupplyPrivateKey:   core.EncryptedSecret(r.TokenSupplyPrivateKey),
		TokenAdminPublicKey:     r.TokenAdminPublicKey,
		TokenAdminPrivateKey:    core.EncryptedSecret(r.TokenAdminPrivateKey),
		TokenMetadataPublicKey:  r.TokenMetadataPublicKey,
		TokenMetadataPrivateKey: core.EncryptedSecret(r.TokenMetadataPrivateKey),
		CollectedAmount:         r.CollectedAmount,
		CreatedAt:               r.CreatedAt,
		UpdatedAt:               r.UpdatedAt,
	}
}

func newDonationRecord(donation core.Donation, now time.Time) *donationRecord {
	createdAt := donation.CreatedAt
	if createdAt.IsZero() {
		createdAt = now
	}
	return &donationRecord{
		ID:            donation.ID,
		EventID:       donation.EventID,
		DonorWallet:   donation.DonorWallet,
		Amount:        donation.Amount,
		MintedAmount:  donation.MintedAmount,
		TransactionID: donation.TransactionID,
		Status:        string(donation.Status),
		LastError:     donation.LastError,
		CreatedAt:     createdAt,
		UpdatedAt:     now,
	}
}

func (r *donationRecord) toDomain() core.Donation {
	if r == nil {
		return core.Donation{}
	}
	return core.Donation{
		ID:            r.ID,
		EventID:       r.EventID,
		DonorWallet:   r.DonorWallet,
		Amount:        r.Amount,
		MintedAmount:  r.MintedAmount,
		TransactionID: r.TransactionID,
		Status:        core.DonationStatus(r.Status),
		LastError:     r.LastError,
		CreatedAt:     r.CreatedAt,
		UpdatedAt:     r.UpdatedAt,
	}
}

func newJournalRecord(entry core.JournalEntry, now time.Time) *settlementJournalRecord {
	createdAt := entry.CreatedAt
	if createdAt.IsZero() {
		createdAt = now
	}
	return &settlementJournalRecord{
		ID:                    entry.ID,
		DonationID:            entry.DonationID,
		EventID:               entry.EventID,
		DonorWallet:           entry.DonorWallet,
		Amount:                entry.Amount,
		MintAmount:            entry.MintAmount,
		Stage:                 string(entry.Stage),
		Attempts:              entry.Attempts,
		LastError:             entry.LastError,
		MintTransactionID:     entry.MintTransactionID,
		TransferTransactionID: entry.TransferTransactionID,
		CreatedAt:             createdAt,
		UpdatedAt:             now,
	}
}

func (r *settlementJournalRecord) toDomain() core.JournalEntry {
	if r == nil {
		return core.JournalEntry{}
	}
	return core.JournalEntry{
		ID:                    r.ID,
		DonationID:            r.DonationID,
		EventID:               r.EventID,
		DonorWallet:           r.DonorWallet,
		Amount:                r.Amount,
		MintAmount:            r.MintAmount,
		Stage:                 core.JournalStage(r.Stage),
		Attempts:              r.Attempts,
		LastError:             r.LastError,
		MintTransactionID:     r.MintTransactionID,
		TransferTransactionID: r.TransferTransactionID,
		CreatedAt:             r.CreatedAt,
		UpdatedAt:             r.UpdatedAt,
	}
}
