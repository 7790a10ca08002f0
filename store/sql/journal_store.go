package sqlstore

import (
	"context"
	"fmt"
	"strings"
	"time"

	repository "github.com/goliatone/go-repository-bun"
	"github.com/google/uuid"
	"github.com/uptrace/bun"

	"github.com/MrWiki15/server-party-polaris/core"
)

type JournalStore struct {
	db   *bun.DB
	repo repository.Repository[*settlementJournalRecord]
}

func NewJournalStore(db *bun.DB) (*JournalStore, error) {
	if db == nil {
		return nil, fmt.Errorf("sqlstore: bun db is required")
	}
	repo := repository.NewRepository[*settlementJournalRecord](db, journalHandlers())
	if validator, ok := repo.(repository.Validator); ok {
		if err := validator.Validate(); err != nil {
			return nil, fmt.Errorf("sqlstore: invalid journal repository wiring: %w", err)
		}
	}
	return &JournalStore{db: db, repo: repo}, nil
}

func (s *JournalStore) RecordIntent(ctx context.Context, entry core.JournalEntry) error {
	if s == nil || s.repo == nil {
		return fmt.Errorf("sqlstore: journal store is not configured")
	}
	if strings.TrimSpace(entry.DonationID) == "" {
		return fmt.Errorf("sqlstore: journal donation id is required")
	}
	if strings.TrimSpace(entry.EventID) == "" {
		return fmt.Errorf("sqlstore: journal event id is required")
	}
	if strings.TrimSpace(entry.ID) == "" {
		entry.ID = uuid.NewString()
	}
	entry.Stage = core.JournalStageIntent

	record := newJournalRecord(entry, time.Now().UTC())
	_, err := s.repo.Create(ctx, record)
	return err
}

// MarkMinted is conditional on the entry still sitting at intent: a sweep
// that already escalated the entry must not be overwritten backwards.
func (s *JournalStore) MarkMinted(ctx context.Context, entryID string, mintTransactionID string) error {
	if s == nil || s.db == nil {
		return fmt.Errorf("sqlstore: journal store is not configured")
	}
	entryID = strings.TrimSpace(entryID)
	if entryID == "" {
		return fmt.Errorf("sqlstore: journal entry id is required")
	}

	result, err := s.db.NewUpdate().
		Model((*settlementJournalRecord)(nil)).
		Set("stage = ?", string(core.JournalStageMinted)).
		Set("mint_transaction_id = ?", strings.TrimSpace(mintTransactionID)).
		Set("updated_at = ?", time.Now().UTC()).
		Where("id = ?", entryID).
		Where("stage = ?", string(core.JournalStageIntent)).
		Exec(ctx)
	if err != nil {
		return err
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return err
	}
	if affected == 0 {
		return fmt.Errorf("%w: entry %s is not at intent", core.ErrInvalidJournalStageTransition, entryID)
	}
	return nil
}

func (s *JournalStore) MarkCompleted(ctx context.Context, entryID string, transferTransactionID string) error {
	if s == nil || s.db == nil {
		return fmt.Errorf("sqlstore: journal store is not configured")
	}
	entryID = strings.TrimSpace(entryID)
	if entryID == "" {
		return fmt.Errorf("sqlstore: journal entry id is required")
	}

	result, err := s.db.NewUpdate().
		Model((*settlementJournalRecord)(nil)).
		Set("stage = ?", string(core.JournalStageCompleted)).
		Set("transfer_transaction_id = ?", strings.TrimSpace(transferTransactionID)).
		Set("last_error = ?", "").
		Set("updated_at = ?", time.Now().UTC()).
		Where("id = ?", entryID).
		Where("stage = ?", string(core.JournalStageMinted)).
		Exec(ctx)
	if err != nil {
		return err
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return err
	}
	if affected == 0 {
		return fmt.Errorf("%w: entry %s is not at minted", core.ErrInvalidJournalStageTransition, entryID)
	}
	return nil
}

// MarkStage applies the domain transition rules before writing, so a
// terminal entry stays terminal no matter who calls.
func (s *JournalStore) MarkStage(ctx context.Context, entryID string, stage core.JournalStage, cause error) error {
	if s == nil || s.repo == nil {
		return fmt.Errorf("sqlstore: journal store is not configured")
	}
	entryID = strings.TrimSpace(entryID)
	if entryID == "" {
		return fmt.Errorf("sqlstore: journal entry id is required")
	}
	record, err := s.repo.GetByID(ctx, entryID)
	if err != nil {
		return err
	}

	entry := record.toDomain()
	reason := ""
	if cause != nil {
		reason = strings.TrimSpace(cause.Error())
	}
	now := time.Now().UTC()
	if err := entry.AdvanceTo(stage, reason, now); err != nil {
		return err
	}

	updated := newJournalRecord(entry, now)
	_, err = s.repo.Update(ctx, updated, repository.UpdateByID(entryID))
	return err
}

// ClaimStaleIntents atomically bumps the attempt counter on intent entries
// untouched since the cutoff and returns the claimed rows. The bump inside
// the claim keeps a crashing sweeper from reprocessing the same rows without
// bound.
func (s *JournalStore) ClaimStaleIntents(ctx context.Context, cutoff time.Time, limit int) ([]core.JournalEntry, error) {
	if s == nil || s.db == nil {
		return nil, fmt.Errorf("sqlstore: journal store is not configured")
	}
	if limit <= 0 {
		limit = 1
	}
	now := time.Now().UTC()
	var records []settlementJournalRecord
	err := s.db.RunInTx(ctx, nil, func(ctx context.Context, tx bun.Tx) error {
		query := `
WITH claimed AS (
	SELECT id
	FROM settlement_journal
	WHERE stage = ?
	  AND updated_at <= ?
	ORDER BY updated_at ASC
	LIMIT ?
)
UPDATE settlement_journal
SET attempts = attempts + 1, updated_at = ?
WHERE id IN (SELECT id FROM claimed)
  AND stage = ?
RETURNING
	id,
	donation_id,
	event_id,
	donor_wallet,
	amount,
	mint_amount,
	stage,
	attempts,
	last_error,
	mint_transaction_id,
	transfer_transaction_id,
	created_at,
	updated_at
`
		return tx.NewRaw(
			query,
			string(core.JournalStageIntent),
			cutoff.UTC(),
			limit,
			now,
			string(core.JournalStageIntent),
		).Scan(ctx, &records)
	})
	if err != nil {
		return nil, err
	}

	entries := make([]core.JournalEntry, 0, len(records))
	for _, record := range records {
		entries = append(entries, record.toDomain())
	}
	return entries, nil
}
