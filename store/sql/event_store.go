package sqlstore

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	goerrors "github.com/goliatone/go-errors"
	repository "github.com/goliatone/go-repository-bun"
	"github.com/shopspring/decimal"
	"github.com/uptrace/bun"

	"github.com/MrWiki15/server-party-polaris/core"
)

type EventStore struct {
	db   *bun.DB
	repo repository.Repository[*eventRecord]
}

func NewEventStore(db *bun.DB) (*EventStore, error) {
	if db == nil {
		return nil, fmt.Errorf("sqlstore: bun db is required")
	}
	repo := repository.NewRepository[*eventRecord](db, eventHandlers())
	if validator, ok := repo.(repository.Validator); ok {
		if err := validator.Validate(); err != nil {
			return nil, fmt.Errorf("sqlstore: invalid event repository wiring: %w", err)
		}
	}
	return &EventStore{db: db, repo: repo}, nil
}

// Create registers a bare event row with no wallet and no token. Events are
// normally created by the organizer-facing application; this exists for
// seeding and tests.
func (s *EventStore) Create(ctx context.Context, event core.Event) (core.Event, error) {
	if s == nil || s.repo == nil {
		return core.Event{}, fmt.Errorf("sqlstore: event store is not configured")
	}
	if strings.TrimSpace(event.ID) == "" {
		return core.Event{}, fmt.Errorf("sqlstore: event id is required")
	}
	if strings.TrimSpace(event.Name) == "" {
		return core.Event{}, fmt.Errorf("sqlstore: event name is required")
	}
	record := newEventRecord(event, time.Now().UTC())
	created, err := s.repo.Create(ctx, record)
	if err != nil {
		return core.Event{}, err
	}
	return created.toDomain(), nil
}

func (s *EventStore) Get(ctx context.Context, eventID string) (core.Event, error) {
	if s == nil || s.repo == nil {
		return core.Event{}, fmt.Errorf("sqlstore: event store is not configured")
	}
	eventID = strings.TrimSpace(eventID)
	if eventID == "" {
		return core.Event{}, fmt.Errorf("sqlstore: event id is required")
	}
	record, err := s.repo.GetByID(ctx, eventID)
	if err != nil {
		if isNotFound(err) {
			return core.Event{}, fmt.Errorf("%w: %s", core.ErrEventNotFound, eventID)
		}
		return core.Event{}, err
	}
	return record.toDomain(), nil
}

// AttachWallet writes the account id and encrypted treasury key in a single
// conditional update so concurrent provisioners cannot both win. The losing
// writer observes zero affected rows and reports the wallet as taken.
func (s *EventStore) AttachWallet(ctx context.Context, eventID string, accountID string, treasuryKey core.EncryptedSecret) error {
	if s == nil || s.db == nil {
		return fmt.Errorf("sqlstore: event store is not configured")
	}
	eventID = strings.TrimSpace(eventID)
	accountID = strings.TrimSpace(accountID)
	if eventID == "" {
		return fmt.Errorf("sqlstore: event id is required")
	}
	if accountID == "" {
		return fmt.Errorf("sqlstore: account id is required")
	}
	if treasuryKey.IsZero() {
		return fmt.Errorf("sqlstore: encrypted treasury key is required")
	}

	result, err := s.db.NewUpdate().
		Model((*eventRecord)(nil)).
		Set("wallet_account_id = ?", accountID).
		Set("wallet_private_key = ?", string(treasuryKey)).
		Set("updated_at = ?", time.Now().UTC()).
		Where("id = ?", eventID).
		Where("(wallet_account_id IS NULL OR wallet_account_id = '')").
		Exec(ctx)
	if err != nil {
		return err
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return err
	}
	if affected == 0 {
		if _, getErr := s.Get(ctx, eventID); getErr != nil {
			return getErr
		}
		return fmt.Errorf("%w: event %s", core.ErrWalletAlreadyProvisioned, eventID)
	}
	return nil
}

// AttachToken follows the same conditional-update shape keyed on an empty
// token id.
func (s *EventStore) AttachToken(ctx context.Context, eventID string, grant core.TokenGrant) error {
	if s == nil || s.db == nil {
		return fmt.Errorf("sqlstore: event store is not configured")
	}
	eventID = strings.TrimSpace(eventID)
	if eventID == "" {
		return fmt.Errorf("sqlstore: event id is required")
	}
	if err := grant.Validate(); err != nil {
		return err
	}

	result, err := s.db.NewUpdate().
		Model((*eventRecord)(nil)).
		Set("token_id = ?", strings.TrimSpace(grant.TokenID)).
		Set("token_supply_public_key = ?", grant.SupplyPublicKey).
		Set("token_supply_private_key = ?", string(grant.SupplyPrivateKey)).
		Set("token_admin_public_key = ?", grant.AdminPublicKey).
		Set("token_admin_private_key = ?", string(grant.AdminPrivateKey)).
		Set("token_metadata_public_key = ?", grant.MetadataPublicKey).
		Set("token_metadata_private_key = ?", string(grant.MetadataPrivateKey)).
		Set("updated_at = ?", time.Now().UTC()).
		Where("id = ?", eventID).
		Where("(token_id IS NULL OR token_id = '')").
		Exec(ctx)
	if err != nil {
		return err
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return err
	}
	if affected == 0 {
		if _, getErr := s.Get(ctx, eventID); getErr != nil {
			return getErr
		}
		return fmt.Errorf("%w: event %s", core.ErrTokenAlreadyIssued, eventID)
	}
	return nil
}

// ApplySettlement grows the collected aggregate in-place so concurrent
// settlements on different events never clobber each other's totals.
func (s *EventStore) ApplySettlement(ctx context.Context, eventID string, amount decimal.Decimal) error {
	if s == nil || s.db == nil {
		return fmt.Errorf("sqlstore: event store is not configured")
	}
	eventID = strings.TrimSpace(eventID)
	if eventID == "" {
		return fmt.Errorf("sqlstore: event id is required")
	}
	if !amount.IsPositive() {
		return fmt.Errorf("sqlstore: settlement amount must be positive")
	}

	result, err := s.db.NewUpdate().
		Model((*eventRecord)(nil)).
		Set("collected_amount = collected_amount + ?", amount).
		Set("updated_at = ?", time.Now().UTC()).
		Where("id = ?", eventID).
		Exec(ctx)
	if err != nil {
		return err
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return err
	}
	if affected == 0 {
		return fmt.Errorf("%w: %s", core.ErrEventNotFound, eventID)
	}
	return nil
}

func isNotFound(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, sql.ErrNoRows) {
		return true
	}
	var richErr *goerrors.Error
	if goerrors.As(err, &richErr) {
		return richErr.Category == goerrors.CategoryNotFound
	}
	return false
}
