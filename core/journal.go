package core

import (
	"context"
	"fmt"
	"time"

	"github.com/shopspring/decimal"
)

// Settlement journal stages. The journal is a write-ahead marker around the
// irreversible ledger steps: an intent row goes in before the mint, stage
// advances after each confirmed receipt, and a completed row means the
// backing store matches ledger reality. Anything stuck in between is
// operator-visible reconciliation input.
type JournalStage string

const (
	JournalStageIntent    JournalStage = "intent"
	JournalStageMinted    JournalStage = "minted"
	JournalStageCompleted JournalStage = "completed"
	JournalStageFailed    JournalStage = "failed"
	// JournalStageStranded marks mint-succeeded/transfer-failed entries:
	// tokens sit in the treasury undelivered and a blind retry would
	// double-mint.
	JournalStageStranded JournalStage = "stranded"
	// JournalStageUnrecorded marks transfer-succeeded/store-write-failed
	// entries: the ledger moved but the donation or aggregate write did not.
	JournalStageUnrecorded JournalStage = "unrecorded"
)

type JournalEntry struct {
	ID                    string
	DonationID            string
	EventID               string
	DonorWallet           string
	Amount                decimal.Decimal
	MintAmount            decimal.Decimal
	Stage                 JournalStage
	Attempts              int
	LastError             string
	MintTransactionID     string
	TransferTransactionID string
	CreatedAt             time.Time
	UpdatedAt             time.Time
}

func journalStageTransitionAllowed(from, to JournalStage) bool {
	allowed, ok := journalStageTransitions[from]
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

var journalStageTransitions = map[JournalStage][]JournalStage{
	JournalStageIntent:     {JournalStageMinted, JournalStageFailed},
	JournalStageMinted:     {JournalStageCompleted, JournalStageStranded, JournalStageUnrecorded},
	JournalStageCompleted:  {},
	JournalStageFailed:     {},
	JournalStageStranded:   {},
	JournalStageUnrecorded: {},
}

func (e *JournalEntry) AdvanceTo(stage JournalStage, reason string, now time.Time) error {
	if e == nil {
		return nil
	}
	if !journalStageTransitionAllowed(e.Stage, stage) {
		return fmt.Errorf("%w: %s -> %s", ErrInvalidJournalStageTransition, e.Stage, stage)
	}
	e.Stage = stage
	e.LastError = reason
	e.UpdatedAt = now
	return nil
}

// SettlementJournal persists the write-ahead markers. Implementations must
// make RecordIntent durable before the caller submits the mint.
type SettlementJournal interface {
	RecordIntent(ctx context.Context, entry JournalEntry) error
	MarkMinted(ctx context.Context, entryID string, mintTransactionID string) error
	MarkCompleted(ctx context.Context, entryID string, transferTransactionID string) error
	MarkStage(ctx context.Context, entryID string, stage JournalStage, cause error) error
	// ClaimStaleIntents returns intent-stage entries untouched since the
	// cutoff, bumping their attempt count so a sweep crash cannot loop on
	// the same rows forever.
	ClaimStaleIntents(ctx context.Context, cutoff time.Time, limit int) ([]JournalEntry, error)
}
