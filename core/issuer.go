package core

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"
)

const (
	tokenDecimals      = 2
	tokenInitialSupply = 0
)

type IssueTokenRequest struct {
	EventID string
	// Name overrides the token name; defaults to the event name.
	Name string
}

type IssuedToken struct {
	EventID       string
	TokenID       string
	Name          string
	Symbol        string
	TransactionID string
}

// IssueToken creates the event's fungible token on the ledger and persists
// the grant. Requires a provisioned, funded wallet; refuses a second token
// for the same event. Supply, admin and metadata capability keys are
// generated locally and stored encrypted next to the token id.
func (s *Service) IssueToken(ctx context.Context, req IssueTokenRequest) (issued IssuedToken, err error) {
	startedAt := time.Now().UTC()
	fields := map[string]any{
		"event_id": req.EventID,
	}
	defer func() {
		if issued.TokenID != "" {
			fields["token_id"] = issued.TokenID
		}
		s.observeOperation(ctx, startedAt, "issue_token", err, fields)
	}()

	eventID := strings.TrimSpace(req.EventID)
	if eventID == "" {
		err = s.mapError(fmt.Errorf("core: event id is required"))
		return IssuedToken{}, err
	}
	if err = s.requireProvisioningDeps(); err != nil {
		err = s.mapError(err)
		return IssuedToken{}, err
	}

	unlock, err := s.lockEvent(ctx, eventID)
	if err != nil {
		return IssuedToken{}, err
	}
	defer unlock()

	event, err := s.eventStore.Get(ctx, eventID)
	if err != nil {
		err = s.mapError(err)
		return IssuedToken{}, err
	}
	if !event.WalletProvisioned() {
		err = s.mapError(fmt.Errorf("%w: event %q", ErrWalletNotProvisioned, eventID))
		return IssuedToken{}, err
	}
	if event.TokenIssued() {
		err = s.mapError(fmt.Errorf("%w: event %q has token %s", ErrTokenAlreadyIssued, eventID, event.TokenID))
		return IssuedToken{}, err
	}

	if _, err = s.requireFunded(ctx, eventID); err != nil {
		return IssuedToken{}, err
	}

	name := strings.TrimSpace(req.Name)
	if name == "" {
		name = strings.TrimSpace(event.Name)
	}
	if name == "" {
		err = s.mapError(fmt.Errorf("core: token name is required"))
		return IssuedToken{}, err
	}
	symbol := tokenSymbolFromName(name)

	supplyKeys, err := s.keyGenerator.Generate()
	if err != nil {
		err = s.mapError(err)
		return IssuedToken{}, err
	}
	adminKeys, err := s.keyGenerator.Generate()
	if err != nil {
		err = s.mapError(err)
		return IssuedToken{}, err
	}
	metadataKeys, err := s.keyGenerator.Generate()
	if err != nil {
		err = s.mapError(err)
		return IssuedToken{}, err
	}

	treasuryKey, err := s.vault.Decrypt(ctx, event.WalletPrivateKey)
	if err != nil {
		err = s.mapError(err)
		return IssuedToken{}, err
	}

	receipt, err := s.gateway.CreateToken(ctx, TokenDefinition{
		Name:              name,
		Symbol:            symbol,
		Decimals:          tokenDecimals,
		InitialSupply:     tokenInitialSupply,
		TreasuryAccountID: event.WalletAccountID,
		SupplyPublicKey:   supplyKeys.PublicKey,
		AdminPublicKey:    adminKeys.PublicKey,
		MetadataPublicKey: metadataKeys.PublicKey,
	}, TokenSigningKeys{
		TreasuryPrivateKey: treasuryKey,
		SupplyPrivateKey:   supplyKeys.PrivateKey,
		AdminPrivateKey:    adminKeys.PrivateKey,
		MetadataPrivateKey: metadataKeys.PrivateKey,
	})
	treasuryKey = ""
	if err != nil {
		err = s.mapError(err)
		return IssuedToken{}, err
	}

	// Token exists on the ledger now; failures below are persistence gaps
	// carrying the token id for reconciliation.
	grant := TokenGrant{TokenID: receipt.TokenID}
	grant.SupplyPublicKey = supplyKeys.PublicKey
	grant.AdminPublicKey = adminKeys.PublicKey
	grant.MetadataPublicKey = metadataKeys.PublicKey
	if grant.SupplyPrivateKey, err = s.vault.Encrypt(ctx, supplyKeys.PrivateKey); err != nil {
		err = s.mapError(fmt.Errorf("%w: token %s: encrypt supply key: %v", ErrLedgerNotRecorded, receipt.TokenID, err))
		return IssuedToken{}, err
	}
	if grant.AdminPrivateKey, err = s.vault.Encrypt(ctx, adminKeys.PrivateKey); err != nil {
		err = s.mapError(fmt.Errorf("%w: token %s: encrypt admin key: %v", ErrLedgerNotRecorded, receipt.TokenID, err))
		return IssuedToken{}, err
	}
	if grant.MetadataPrivateKey, err = s.vault.Encrypt(ctx, metadataKeys.PrivateKey); err != nil {
		err = s.mapError(fmt.Errorf("%w: token %s: encrypt metadata key: %v", ErrLedgerNotRecorded, receipt.TokenID, err))
		return IssuedToken{}, err
	}
	if err = grant.Validate(); err != nil {
		err = s.mapError(fmt.Errorf("%w: token %s: %v", ErrLedgerNotRecorded, receipt.TokenID, err))
		return IssuedToken{}, err
	}

	if err = s.eventStore.AttachToken(ctx, eventID, grant); err != nil {
		if errors.Is(err, ErrTokenAlreadyIssued) {
			err = s.mapError(err)
			return IssuedToken{}, err
		}
		err = s.mapError(fmt.Errorf("%w: token %s: attach token: %v", ErrLedgerNotRecorded, receipt.TokenID, err))
		return IssuedToken{}, err
	}

	issued = IssuedToken{
		EventID:       eventID,
		TokenID:       receipt.TokenID,
		Name:          name,
		Symbol:        symbol,
		TransactionID: receipt.TransactionID,
	}
	return issued, nil
}

func tokenSymbolFromName(name string) string {
	runes := []rune(strings.TrimSpace(name))
	if len(runes) > 3 {
		runes = runes[:3]
	}
	return strings.ToUpper(string(runes))
}
