package core

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"
)

type ProvisionWalletRequest struct {
	EventID string
}

type ProvisionedWallet struct {
	EventID   string
	AccountID string
	PublicKey string
}

// ProvisionWallet creates the custodial treasury account for an event and
// stores the account id alongside the encrypted private key. The
// already-provisioned guard runs before any ledger call so a duplicate
// request never creates an orphaned account.
func (s *Service) ProvisionWallet(ctx context.Context, req ProvisionWalletRequest) (wallet ProvisionedWallet, err error) {
	startedAt := time.Now().UTC()
	fields := map[string]any{
		"event_id": req.EventID,
	}
	defer func() {
		s.observeOperation(ctx, startedAt, "provision_wallet", err, fields)
	}()

	eventID := strings.TrimSpace(req.EventID)
	if eventID == "" {
		err = s.mapError(fmt.Errorf("core: event id is required"))
		return ProvisionedWallet{}, err
	}
	if err = s.requireProvisioningDeps(); err != nil {
		err = s.mapError(err)
		return ProvisionedWallet{}, err
	}

	unlock, err := s.lockEvent(ctx, eventID)
	if err != nil {
		return ProvisionedWallet{}, err
	}
	defer unlock()

	event, err := s.eventStore.Get(ctx, eventID)
	if err != nil {
		err = s.mapError(err)
		return ProvisionedWallet{}, err
	}
	if event.WalletProvisioned() {
		err = s.mapError(fmt.Errorf("%w: event %q", ErrWalletAlreadyProvisioned, eventID))
		return ProvisionedWallet{}, err
	}

	keys, err := s.keyGenerator.Generate()
	if err != nil {
		err = s.mapError(err)
		return ProvisionedWallet{}, err
	}

	receipt, err := s.gateway.CreateAccount(ctx, keys.PublicKey, 0)
	if err != nil {
		err = s.mapError(err)
		return ProvisionedWallet{}, err
	}
	fields["account_id"] = receipt.AccountID

	// The account now exists on the ledger. Any failure from here on is a
	// persistence gap: the account id goes into the error metadata so an
	// operator can reconcile instead of losing the wallet.
	encrypted, err := s.vault.Encrypt(ctx, keys.PrivateKey)
	if err != nil {
		err = s.mapError(fmt.Errorf("%w: account %s: encrypt treasury key: %v", ErrLedgerNotRecorded, receipt.AccountID, err))
		return ProvisionedWallet{}, err
	}

	if err = s.eventStore.AttachWallet(ctx, eventID, receipt.AccountID, encrypted); err != nil {
		if isWalletAlreadyProvisioned(err) {
			// Lost the conditional update to a concurrent writer. The event
			// keeps the winner's wallet, which leaves this account orphaned
			// on the ledger: still a persistence gap, with the idempotency
			// sentinel kept in the chain for callers that match on it.
			err = s.mapError(fmt.Errorf(
				"%w: account %s orphaned by concurrent provisioning: %w",
				ErrLedgerNotRecorded, receipt.AccountID, err,
			))
			return ProvisionedWallet{}, err
		}
		err = s.mapError(fmt.Errorf("%w: account %s: attach wallet: %v", ErrLedgerNotRecorded, receipt.AccountID, err))
		return ProvisionedWallet{}, err
	}

	wallet = ProvisionedWallet{
		EventID:   eventID,
		AccountID: receipt.AccountID,
		PublicKey: keys.PublicKey,
	}
	return wallet, nil
}

func (s *Service) requireProvisioningDeps() error {
	if s == nil {
		return fmt.Errorf("core: service is not configured")
	}
	if s.eventStore == nil {
		return fmt.Errorf("core: event store is required")
	}
	if s.vault == nil {
		return fmt.Errorf("core: secret vault is required")
	}
	if s.gateway == nil {
		return ErrGatewayRequired
	}
	if s.keyGenerator == nil {
		return fmt.Errorf("core: key generator is required")
	}
	return nil
}

func isWalletAlreadyProvisioned(err error) bool {
	return err != nil && errors.Is(err, ErrWalletAlreadyProvisioned)
}
