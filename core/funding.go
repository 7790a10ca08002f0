package core

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

// FundingStatus reports whether an event wallet holds enough of the native
// currency to cover token issuance fees. Amounts are whole native units.
type FundingStatus struct {
	EventID      string
	AccountID    string
	Funded       bool
	RequiredHbar decimal.Decimal
	CurrentHbar  decimal.Decimal
}

// CheckFunding queries the live ledger balance of the event wallet and
// compares it against the configured threshold. Read-only: no event lock.
func (s *Service) CheckFunding(ctx context.Context, eventID string) (status FundingStatus, err error) {
	startedAt := time.Now().UTC()
	fields := map[string]any{
		"event_id": eventID,
	}
	defer func() {
		if status.AccountID != "" {
			fields["account_id"] = status.AccountID
			fields["funded"] = status.Funded
		}
		s.observeOperation(ctx, startedAt, "check_funding", err, fields)
	}()

	eventID = strings.TrimSpace(eventID)
	if eventID == "" {
		err = s.mapError(fmt.Errorf("core: event id is required"))
		return FundingStatus{}, err
	}
	if s == nil || s.eventStore == nil {
		err = s.mapError(fmt.Errorf("core: event store is required"))
		return FundingStatus{}, err
	}
	if s.gateway == nil {
		err = s.mapError(ErrGatewayRequired)
		return FundingStatus{}, err
	}

	event, err := s.eventStore.Get(ctx, eventID)
	if err != nil {
		err = s.mapError(err)
		return FundingStatus{}, err
	}
	if !event.WalletProvisioned() {
		err = s.mapError(fmt.Errorf("%w: event %q", ErrWalletNotProvisioned, eventID))
		return FundingStatus{}, err
	}

	tinybar, err := s.gateway.AccountBalance(ctx, event.WalletAccountID)
	if err != nil {
		err = s.mapError(err)
		return FundingStatus{}, err
	}

	required := decimal.NewFromInt(s.config.FundingThresholdHbar)
	current := HbarFromTinybar(tinybar)
	status = FundingStatus{
		EventID:      eventID,
		AccountID:    event.WalletAccountID,
		Funded:       current.GreaterThanOrEqual(required),
		RequiredHbar: required,
		CurrentHbar:  current,
	}
	return status, nil
}

// requireFunded is the issuance-side gate: same balance check, but an
// underfunded wallet is an error instead of a report.
func (s *Service) requireFunded(ctx context.Context, eventID string) (FundingStatus, error) {
	status, err := s.CheckFunding(ctx, eventID)
	if err != nil {
		return FundingStatus{}, err
	}
	if !status.Funded {
		return status, s.mapError(fmt.Errorf(
			"%w: event %q holds %s of required %s",
			ErrWalletUnderfunded, eventID, status.CurrentHbar.String(), status.RequiredHbar.String(),
		))
	}
	return status, nil
}
