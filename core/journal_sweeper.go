package core

import (
	"context"
	"time"
)

const (
	defaultSweepOlderThan = 5 * time.Minute
	defaultSweepLimit     = 50
)

type SweepJournalRequest struct {
	// OlderThan is how long an intent entry must sit untouched before the
	// sweep claims it. Defaults to five minutes.
	OlderThan time.Duration
	Limit     int
}

type SweepReport struct {
	Claimed   int
	Escalated int
	// Events lists the distinct event ids whose donations were escalated,
	// so a follow-up can re-verify their wallet funding.
	Events []string
}

// SweepJournal escalates journal entries stuck at the intent stage: a crash
// between recording the intent and confirming the mint leaves the ledger
// state unknown, so the sweep marks the entry failed, fails the pending
// donation, and surfaces the entry for operator review. It never resubmits
// a mint.
func (s *Service) SweepJournal(ctx context.Context, req SweepJournalRequest) (report SweepReport, err error) {
	startedAt := time.Now().UTC()
	fields := map[string]any{}
	defer func() {
		fields["claimed"] = report.Claimed
		fields["escalated"] = report.Escalated
		s.observeOperation(ctx, startedAt, "sweep_journal", err, fields)
	}()

	if s == nil || s.journal == nil {
		return SweepReport{}, nil
	}
	olderThan := req.OlderThan
	if olderThan <= 0 {
		olderThan = defaultSweepOlderThan
	}
	limit := req.Limit
	if limit <= 0 {
		limit = defaultSweepLimit
	}

	cutoff := time.Now().UTC().Add(-olderThan)
	entries, err := s.journal.ClaimStaleIntents(ctx, cutoff, limit)
	if err != nil {
		err = s.mapError(err)
		return SweepReport{}, err
	}
	report.Claimed = len(entries)

	seenEvents := map[string]struct{}{}
	for _, entry := range entries {
		if ctx.Err() != nil {
			err = s.mapError(ctx.Err())
			return report, err
		}
		s.markJournal(ctx, entry.ID, JournalStageFailed, ErrLedgerUnavailable)
		s.failDonation(ctx, entry.DonationID, "settlement abandoned before mint confirmation")
		s.logError(ctx, "stale settlement intent escalated", map[string]any{
			"entry_id":    entry.ID,
			"donation_id": entry.DonationID,
			"event_id":    entry.EventID,
			"attempts":    entry.Attempts,
		})
		report.Escalated++
		if _, seen := seenEvents[entry.EventID]; !seen && entry.EventID != "" {
			seenEvents[entry.EventID] = struct{}{}
			report.Events = append(report.Events, entry.EventID)
		}
	}
	return report, nil
}
