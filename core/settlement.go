package core

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

type SettleDonationRequest struct {
	EventID     string
	DonorWallet string
	Amount      decimal.Decimal
}

func (r SettleDonationRequest) Validate() error {
	if strings.TrimSpace(r.EventID) == "" {
		return fmt.Errorf("core: event id is required")
	}
	if strings.TrimSpace(r.DonorWallet) == "" {
		return fmt.Errorf("core: donor wallet is required")
	}
	if !r.Amount.IsPositive() {
		return fmt.Errorf("core: contribution amount must be positive")
	}
	if MintAmount(r.Amount).IsZero() {
		return fmt.Errorf("core: contribution amount must be at least 0.01")
	}
	return nil
}

type SettlementResult struct {
	Donation      Donation
	TransactionID string
	TokensMinted  decimal.Decimal
}

// SettleDonation runs the full donation sequence for a funded, token-bearing
// event: record a journal intent and a pending donation, mint half the
// contributed amount, transfer the minted tokens to the donor, then settle
// the donation and grow the event aggregate.
//
// The journal intent is durable before the mint goes out, and neither mint
// nor transfer is ever resubmitted: a duplicate submission would double the
// ledger effect. A failed transfer leaves the entry stranded and a failed
// store write leaves it unrecorded, both terminal stages an operator
// reconciles from.
func (s *Service) SettleDonation(ctx context.Context, req SettleDonationRequest) (result SettlementResult, err error) {
	startedAt := time.Now().UTC()
	fields := map[string]any{
		"event_id":     req.EventID,
		"donor_wallet": req.DonorWallet,
		"amount":       req.Amount.String(),
	}
	defer func() {
		if result.Donation.ID != "" {
			fields["donation_id"] = result.Donation.ID
		}
		s.observeOperation(ctx, startedAt, "settle_donation", err, fields)
	}()

	if err = req.Validate(); err != nil {
		err = s.mapError(err)
		return SettlementResult{}, err
	}
	if err = s.requireSettlementDeps(); err != nil {
		err = s.mapError(err)
		return SettlementResult{}, err
	}
	eventID := strings.TrimSpace(req.EventID)
	donorWallet := strings.TrimSpace(req.DonorWallet)

	unlock, err := s.lockEvent(ctx, eventID)
	if err != nil {
		return SettlementResult{}, err
	}
	defer unlock()

	event, err := s.eventStore.Get(ctx, eventID)
	if err != nil {
		err = s.mapError(err)
		return SettlementResult{}, err
	}
	if !event.WalletProvisioned() {
		err = s.mapError(fmt.Errorf("%w: event %q", ErrWalletNotProvisioned, eventID))
		return SettlementResult{}, err
	}
	if !event.TokenIssued() {
		err = s.mapError(fmt.Errorf("%w: event %q", ErrTokenNotIssued, eventID))
		return SettlementResult{}, err
	}

	now := time.Now().UTC()
	mintAmount := MintAmount(req.Amount)
	donation := Donation{
		ID:           uuid.NewString(),
		EventID:      eventID,
		DonorWallet:  donorWallet,
		Amount:       req.Amount,
		MintedAmount: mintAmount,
		Status:       DonationStatusPending,
		CreatedAt:    now,
		UpdatedAt:    now,
	}

	// The intent goes down before the donation row. A crash between the two
	// writes leaves a stale intent the sweep escalates, never a pending
	// donation with no journal trail behind it.
	entry := JournalEntry{
		ID:          uuid.NewString(),
		DonationID:  donation.ID,
		EventID:     eventID,
		DonorWallet: donorWallet,
		Amount:      req.Amount,
		MintAmount:  mintAmount,
		Stage:       JournalStageIntent,
		CreatedAt:   now,
		UpdatedAt:   now,
	}
	if err = s.journal.RecordIntent(ctx, entry); err != nil {
		// Nothing persisted yet: the request fails cleanly.
		err = s.mapError(err)
		return SettlementResult{}, err
	}

	donation, err = s.donationStore.Create(ctx, donation)
	if err != nil {
		s.markJournal(ctx, entry.ID, JournalStageFailed, err)
		err = s.mapError(err)
		return SettlementResult{}, err
	}
	result.Donation = donation

	treasuryKey, err := s.vault.Decrypt(ctx, event.WalletPrivateKey)
	if err != nil {
		s.markJournal(ctx, entry.ID, JournalStageFailed, err)
		s.failDonation(ctx, donation.ID, "treasury key unavailable")
		err = s.mapError(err)
		return SettlementResult{}, err
	}
	supplyKey, err := s.vault.Decrypt(ctx, event.TokenSupplyPrivateKey)
	if err != nil {
		s.markJournal(ctx, entry.ID, JournalStageFailed, err)
		s.failDonation(ctx, donation.ID, "supply key unavailable")
		err = s.mapError(err)
		return SettlementResult{}, err
	}

	mintReceipt, err := s.gateway.MintToken(ctx, MintRequest{
		TokenID:            event.TokenID,
		Amount:             mintAmount,
		TreasuryAccountID:  event.WalletAccountID,
		TreasuryPrivateKey: treasuryKey,
		SupplyPrivateKey:   supplyKey,
	})
	supplyKey = ""
	if err != nil {
		// Mint ambiguity: the submission failed before a receipt came back,
		// so nothing was confirmed minted. The entry fails terminally and
		// the caller may retry the whole donation.
		s.markJournal(ctx, entry.ID, JournalStageFailed, err)
		s.failDonation(ctx, donation.ID, "mint failed")
		err = s.mapError(err)
		return SettlementResult{}, err
	}
	if markErr := s.journal.MarkMinted(ctx, entry.ID, mintReceipt.TransactionID); markErr != nil {
		// Bookkeeping only: the mint is confirmed, so the transfer still
		// runs. The gap is logged for reconciliation.
		s.logError(ctx, "journal minted mark failed", map[string]any{
			"entry_id":    entry.ID,
			"donation_id": donation.ID,
			"error":       markErr.Error(),
		})
	}

	transferReceipt, err := s.gateway.TransferToken(ctx, TransferRequest{
		TokenID:            event.TokenID,
		Amount:             mintAmount,
		FromAccountID:      event.WalletAccountID,
		ToAccountID:        donorWallet,
		TreasuryPrivateKey: treasuryKey,
	})
	treasuryKey = ""
	if err != nil {
		// Tokens exist in the treasury but never reached the donor. A blind
		// retry would mint a second batch, so the entry strands instead.
		s.markJournal(ctx, entry.ID, JournalStageStranded, err)
		s.failDonation(ctx, donation.ID, "minted but transfer failed")
		err = s.mapError(fmt.Errorf(
			"%w: donation %s minted %s via %s: %v",
			ErrMintedNotDelivered, donation.ID, mintAmount.String(), mintReceipt.TransactionID, err,
		))
		return SettlementResult{}, err
	}

	if err = s.donationStore.UpdateStatus(ctx, donation.ID, DonationStatusSettled, transferReceipt.TransactionID, ""); err != nil {
		s.markJournal(ctx, entry.ID, JournalStageUnrecorded, err)
		err = s.mapError(fmt.Errorf(
			"%w: donation %s transferred via %s: settle donation: %v",
			ErrLedgerNotRecorded, donation.ID, transferReceipt.TransactionID, err,
		))
		return SettlementResult{}, err
	}
	if err = s.eventStore.ApplySettlement(ctx, eventID, req.Amount); err != nil {
		s.markJournal(ctx, entry.ID, JournalStageUnrecorded, err)
		err = s.mapError(fmt.Errorf(
			"%w: donation %s transferred via %s: apply settlement: %v",
			ErrLedgerNotRecorded, donation.ID, transferReceipt.TransactionID, err,
		))
		return SettlementResult{}, err
	}

	if markErr := s.journal.MarkCompleted(ctx, entry.ID, transferReceipt.TransactionID); markErr != nil {
		s.logError(ctx, "journal completion mark failed", map[string]any{
			"entry_id":    entry.ID,
			"donation_id": donation.ID,
			"error":       markErr.Error(),
		})
	}

	donation.Status = DonationStatusSettled
	donation.TransactionID = transferReceipt.TransactionID
	donation.LastError = ""
	result = SettlementResult{
		Donation:      donation,
		TransactionID: transferReceipt.TransactionID,
		TokensMinted:  mintAmount,
	}
	return result, nil
}

func (s *Service) requireSettlementDeps() error {
	if err := s.requireProvisioningDeps(); err != nil {
		return err
	}
	if s.donationStore == nil {
		return fmt.Errorf("core: donation store is required")
	}
	if s.journal == nil {
		return fmt.Errorf("core: settlement journal is required")
	}
	return nil
}

// failDonation moves a donation to failed without masking the settlement
// error that caused it.
func (s *Service) failDonation(ctx context.Context, donationID string, reason string) {
	if s == nil || s.donationStore == nil {
		return
	}
	if err := s.donationStore.UpdateStatus(ctx, donationID, DonationStatusFailed, "", reason); err != nil {
		s.logError(ctx, "donation failure mark failed", map[string]any{
			"donation_id": donationID,
			"error":       err.Error(),
		})
	}
}

func (s *Service) markJournal(ctx context.Context, entryID string, stage JournalStage, cause error) {
	if s == nil || s.journal == nil {
		return
	}
	if err := s.journal.MarkStage(ctx, entryID, stage, cause); err != nil {
		s.logError(ctx, "journal stage mark failed", map[string]any{
			"entry_id": entryID,
			"stage":    string(stage),
			"error":    err.Error(),
		})
	}
}
