package core

import (
	"errors"
	"testing"
	"time"
)

func TestJournalEntryAdvanceTo(t *testing.T) {
	now := time.Now().UTC()

	entry := JournalEntry{Stage: JournalStageIntent}
	if err := entry.AdvanceTo(JournalStageMinted, "", now); err != nil {
		t.Fatalf("intent -> minted should succeed: %v", err)
	}
	if err := entry.AdvanceTo(JournalStageCompleted, "", now); err != nil {
		t.Fatalf("minted -> completed should succeed: %v", err)
	}
	if err := entry.AdvanceTo(JournalStageFailed, "", now); !errors.Is(err, ErrInvalidJournalStageTransition) {
		t.Fatalf("completed is terminal, got %v", err)
	}
}

func TestJournalEntryAdvanceTo_TerminalBranches(t *testing.T) {
	now := time.Now().UTC()

	entry := JournalEntry{Stage: JournalStageIntent}
	if err := entry.AdvanceTo(JournalStageFailed, "mint failed", now); err != nil {
		t.Fatalf("intent -> failed should succeed: %v", err)
	}
	if entry.LastError != "mint failed" {
		t.Fatalf("unexpected last error %q", entry.LastError)
	}

	entry = JournalEntry{Stage: JournalStageMinted}
	if err := entry.AdvanceTo(JournalStageStranded, "transfer failed", now); err != nil {
		t.Fatalf("minted -> stranded should succeed: %v", err)
	}
	if err := entry.AdvanceTo(JournalStageCompleted, "", now); !errors.Is(err, ErrInvalidJournalStageTransition) {
		t.Fatalf("stranded is terminal, got %v", err)
	}

	entry = JournalEntry{Stage: JournalStageMinted}
	if err := entry.AdvanceTo(JournalStageUnrecorded, "store write failed", now); err != nil {
		t.Fatalf("minted -> unrecorded should succeed: %v", err)
	}
}

func TestJournalEntryAdvanceTo_RejectsSkips(t *testing.T) {
	now := time.Now().UTC()

	entry := JournalEntry{Stage: JournalStageIntent}
	// Completing without a confirmed mint would hide a ledger gap.
	if err := entry.AdvanceTo(JournalStageCompleted, "", now); !errors.Is(err, ErrInvalidJournalStageTransition) {
		t.Fatalf("intent -> completed must be rejected, got %v", err)
	}
	if err := entry.AdvanceTo(JournalStageStranded, "", now); !errors.Is(err, ErrInvalidJournalStageTransition) {
		t.Fatalf("intent -> stranded must be rejected, got %v", err)
	}
	if entry.Stage != JournalStageIntent {
		t.Fatalf("a rejected transition must not move the stage, got %q", entry.Stage)
	}
}
