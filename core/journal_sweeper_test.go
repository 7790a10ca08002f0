package core

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/shopspring/decimal"
)

func staleIntent(id, donationID string, age time.Duration) JournalEntry {
	at := time.Now().UTC().Add(-age)
	return JournalEntry{
		ID:          id,
		DonationID:  donationID,
		EventID:     "evt_1",
		DonorWallet: "0.0.4242",
		Amount:      decimal.RequireFromString("20"),
		MintAmount:  decimal.RequireFromString("10"),
		Stage:       JournalStageIntent,
		CreatedAt:   at,
		UpdatedAt:   at,
	}
}

func TestSweepJournal_EscalatesStaleIntents(t *testing.T) {
	ctx := context.Background()
	fx := newTestService(t, newMemEventStore(tokenizedEvent("evt_1")))

	for _, entry := range []JournalEntry{
		staleIntent("jrn_1", "don_1", time.Hour),
		staleIntent("jrn_2", "don_2", time.Hour),
	} {
		if err := fx.journal.RecordIntent(ctx, entry); err != nil {
			t.Fatalf("seeding journal: %v", err)
		}
	}
	for _, id := range []string{"don_1", "don_2"} {
		if _, err := fx.donations.Create(ctx, Donation{ID: id, EventID: "evt_1", Status: DonationStatusPending}); err != nil {
			t.Fatalf("seeding donation: %v", err)
		}
	}

	report, err := fx.service.SweepJournal(ctx, SweepJournalRequest{OlderThan: 5 * time.Minute})
	if err != nil {
		t.Fatalf("SweepJournal failed: %v", err)
	}
	if report.Claimed != 2 || report.Escalated != 2 {
		t.Fatalf("unexpected report %+v", report)
	}
	if len(report.Events) != 1 || report.Events[0] != "evt_1" {
		t.Fatalf("escalated events %v, want [evt_1]", report.Events)
	}

	for _, id := range []string{"jrn_1", "jrn_2"} {
		entry := fx.journal.entries[id]
		if entry.Stage != JournalStageFailed {
			t.Fatalf("entry %s stage %q, want failed", id, entry.Stage)
		}
	}
	for _, id := range []string{"don_1", "don_2"} {
		donation, err := fx.donations.Get(ctx, id)
		if err != nil {
			t.Fatalf("reading donation %s: %v", id, err)
		}
		if donation.Status != DonationStatusFailed {
			t.Fatalf("donation %s status %q, want failed", id, donation.Status)
		}
	}
	// A sweep resolves bookkeeping only; it must never touch the ledger.
	if fx.gateway.mintCalls != 0 || fx.gateway.transferCalls != 0 {
		t.Fatalf("sweep reached the ledger: %d mints, %d transfers", fx.gateway.mintCalls, fx.gateway.transferCalls)
	}
}

func TestSweepJournal_SkipsFreshAndAdvancedEntries(t *testing.T) {
	ctx := context.Background()
	fx := newTestService(t, newMemEventStore(tokenizedEvent("evt_1")))

	fresh := staleIntent("jrn_fresh", "don_fresh", 0)
	if err := fx.journal.RecordIntent(ctx, fresh); err != nil {
		t.Fatalf("seeding journal: %v", err)
	}
	minted := staleIntent("jrn_minted", "don_minted", time.Hour)
	if err := fx.journal.RecordIntent(ctx, minted); err != nil {
		t.Fatalf("seeding journal: %v", err)
	}
	if err := fx.journal.MarkMinted(ctx, "jrn_minted", "tx_1"); err != nil {
		t.Fatalf("advancing entry: %v", err)
	}

	report, err := fx.service.SweepJournal(ctx, SweepJournalRequest{OlderThan: 5 * time.Minute})
	if err != nil {
		t.Fatalf("SweepJournal failed: %v", err)
	}
	if report.Claimed != 0 {
		t.Fatalf("expected nothing claimed, got %+v", report)
	}
	if entry := fx.journal.entries["jrn_minted"]; entry.Stage != JournalStageMinted {
		t.Fatalf("minted entry must stay untouched, got stage %q", entry.Stage)
	}
}

func TestSweepJournal_BumpsAttemptCount(t *testing.T) {
	ctx := context.Background()
	fx := newTestService(t, newMemEventStore(tokenizedEvent("evt_1")))

	cutoff := time.Now().UTC().Add(time.Second)
	if err := fx.journal.RecordIntent(ctx, staleIntent("jrn_1", "don_1", time.Hour)); err != nil {
		t.Fatalf("seeding journal: %v", err)
	}
	claimed, err := fx.journal.ClaimStaleIntents(ctx, cutoff, 10)
	if err != nil {
		t.Fatalf("ClaimStaleIntents failed: %v", err)
	}
	if len(claimed) != 1 || claimed[0].Attempts != 1 {
		t.Fatalf("expected one claim with attempt 1, got %+v", claimed)
	}
}

func TestSweepJournal_ClaimFailureSurfaces(t *testing.T) {
	fx := newTestService(t, newMemEventStore(tokenizedEvent("evt_1")))
	fx.journal.recordErr = errors.New("lock timeout")

	_, err := fx.service.SweepJournal(context.Background(), SweepJournalRequest{})
	if err == nil {
		t.Fatal("expected the claim failure to surface")
	}
}

func TestSweepJournal_NoJournalIsNoop(t *testing.T) {
	service, err := NewService(Config{EncryptionKey: testSecretHex})
	if err != nil {
		t.Fatalf("NewService failed: %v", err)
	}
	report, err := service.SweepJournal(context.Background(), SweepJournalRequest{})
	if err != nil {
		t.Fatalf("SweepJournal failed: %v", err)
	}
	if report.Claimed != 0 || report.Escalated != 0 {
		t.Fatalf("unexpected report %+v", report)
	}
}
