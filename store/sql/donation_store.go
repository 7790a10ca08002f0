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

type DonationStore struct {
	db   *bun.DB
	repo repository.Repository[*donationRecord]
}

func NewDonationStore(db *bun.DB) (*DonationStore, error) {
	if db == nil {
		return nil, fmt.Errorf("sqlstore: bun db is required")
	}
	repo := repository.NewRepository[*donationRecord](db, donationHandlers())
	if validator, ok := repo.(repository.Validator); ok {
		if err := validator.Validate(); err != nil {
			return nil, fmt.Errorf("sqlstore: invalid donation repository wiring: %w", err)
		}
	}
	return &DonationStore{db: db, repo: repo}, nil
}

func (s *DonationStore) Create(ctx context.Context, donation core.Donation) (core.Donation, error) {
	if s == nil || s.repo == nil {
		return core.Donation{}, fmt.Errorf("sqlstore: donation store is not configured")
	}
	if strings.TrimSpace(donation.EventID) == "" {
		return core.Donation{}, fmt.Errorf("sqlstore: donation event id is required")
	}
	if strings.TrimSpace(donation.DonorWallet) == "" {
		return core.Donation{}, fmt.Errorf("sqlstore: donor wallet is required")
	}
	if strings.TrimSpace(donation.ID) == "" {
		donation.ID = uuid.NewString()
	}
	if strings.TrimSpace(string(donation.Status)) == "" {
		donation.Status = core.DonationStatusPending
	}

	record := newDonationRecord(donation, time.Now().UTC())
	created, err := s.repo.Create(ctx, record)
	if err != nil {
		return core.Donation{}, err
	}
	return created.toDomain(), nil
}

func (s *DonationStore) Get(ctx context.Context, donationID string) (core.Donation, error) {
	if s == nil || s.repo == nil {
		return core.Donation{}, fmt.Errorf("sqlstore: donation store is not configured")
	}
	donationID = strings.TrimSpace(donationID)
	if donationID == "" {
		return core.Donation{}, fmt.Errorf("sqlstore: donation id is required")
	}
	record, err := s.repo.GetByID(ctx, donationID)
	if err != nil {
		if isNotFound(err) {
			return core.Donation{}, fmt.Errorf("%w: %s", core.ErrDonationNotFound, donationID)
		}
		return core.Donation{}, err
	}
	return record.toDomain(), nil
}

// UpdateStatus runs the domain transition check against the stored row, so
// an already-terminal donation never silently changes state.
func (s *DonationStore) UpdateStatus(ctx context.Context, donationID string, status core.DonationStatus, transactionID string, reason string) error {
	if s == nil || s.repo == nil {
		return fmt.Errorf("sqlstore: donation store is not configured")
	}
	donation, err := s.Get(ctx, donationID)
	if err != nil {
		return err
	}

	now := time.Now().UTC()
	if err := donation.TransitionTo(status, reason, now); err != nil {
		return err
	}
	if trimmed := strings.TrimSpace(transactionID); trimmed != "" {
		donation.TransactionID = trimmed
	}

	record := newDonationRecord(donation, now)
	_, err = s.repo.Update(ctx, record, repository.UpdateByID(strings.TrimSpace(donationID)))
	return err
}

func (s *DonationStore) ListByEvent(ctx context.Context, eventID string) ([]core.Donation, error) {
	if s == nil || s.repo == nil {
		return nil, fmt.Errorf("sqlstore: donation store is not configured")
	}
	eventID = strings.TrimSpace(eventID)
	if eventID == "" {
		return nil, fmt.Errorf("sqlstore: event id is required")
	}
	records, _, err := s.repo.List(ctx,
		repository.SelectBy("event_id", "=", eventID),
		repository.OrderBy("created_at ASC"),
	)
	if err != nil {
		return nil, err
	}

	out := make([]core.Donation, 0, len(records))
	for _, record := range records {
		out = append(out, record.toDomain())
	}
	return out, nil
}
