package core

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/shopspring/decimal"
)

// 32 bytes of hex, the shape the vault requires.
const testSecretHex = "000102030405060708090a0b0c0d0e0f101112131415161718191a1b1c1d1e1f"

type fakeVault struct {
	mu         sync.Mutex
	encryptErr error
	decryptErr error
}

func (v *fakeVault) Encrypt(_ context.Context, plaintextKey string) (EncryptedSecret, error) {
	v.mu.Lock()
	defer v.mu.Unlock()
	if v.encryptErr != nil {
		err := v.encryptErr
		v.encryptErr = nil
		return "", err
	}
	return EncryptedSecret("enc|" + plaintextKey), nil
}

func (v *fakeVault) Decrypt(_ context.Context, secret EncryptedSecret) (string, error) {
	v.mu.Lock()
	defer v.mu.Unlock()
	if v.decryptErr != nil {
		err := v.decryptErr
		v.decryptErr = nil
		return "", err
	}
	raw := string(secret)
	if !strings.HasPrefix(raw, "enc|") {
		return "", fmt.Errorf("%w: unexpected payload", ErrInvalidCiphertext)
	}
	return strings.TrimPrefix(raw, "enc|"), nil
}

func sealedKey(plaintext string) EncryptedSecret {
	return EncryptedSecret("enc|" + plaintext)
}

type memEventStore struct {
	mu             sync.Mutex
	events         map[string]Event
	getErr         error
	attachWallet   error
	attachToken    error
	applySettleErr error
}

func newMemEventStore(events ...Event) *memEventStore {
	store := &memEventStore{events: map[string]Event{}}
	for _, event := range events {
		store.events[event.ID] = event
	}
	return store
}

func (s *memEventStore) Get(_ context.Context, eventID string) (Event, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.getErr != nil {
		return Event{}, s.getErr
	}
	event, ok := s.events[eventID]
	if !ok {
		return Event{}, fmt.Errorf("%w: %q", ErrEventNotFound, eventID)
	}
	return event, nil
}

func (s *memEventStore) AttachWallet(_ context.Context, eventID string, accountID string, treasuryKey EncryptedSecret) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.attachWallet != nil {
		return s.attachWallet
	}
	event, ok := s.events[eventID]
	if !ok {
		return fmt.Errorf("%w: %q", ErrEventNotFound, eventID)
	}
	if event.WalletProvisioned() {
		return fmt.Errorf("%w: event %q", ErrWalletAlreadyProvisioned, eventID)
	}
	event.WalletAccountID = accountID
	event.WalletPrivateKey = treasuryKey
	s.events[eventID] = event
	return nil
}

func (s *memEventStore) AttachToken(_ context.Context, eventID string, grant TokenGrant) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.attachToken != nil {
		return s.attachToken
	}
	event, ok := s.events[eventID]
	if !ok {
		return fmt.Errorf("%w: %q", ErrEventNotFound, eventID)
	}
	if event.TokenIssued() {
		return fmt.Errorf("%w: event %q", ErrTokenAlreadyIssued, eventID)
	}
	event.TokenID = grant.TokenID
	event.TokenSupplyPublicKey = grant.SupplyPublicKey
	event.TokenSupplyPrivateKey = grant.SupplyPrivateKey
	event.TokenAdminPublicKey = grant.AdminPublicKey
	event.TokenAdminPrivateKey = grant.AdminPrivateKey
	event.TokenMetadataPublicKey = grant.MetadataPublicKey
	event.TokenMetadataPrivateKey = grant.MetadataPrivateKey
	s.events[eventID] = event
	return nil
}

func (s *memEventStore) ApplySettlement(_ context.Context, eventID string, amount decimal.Decimal) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.applySettleErr != nil {
		return s.applySettleErr
	}
	event, ok := s.events[eventID]
	if !ok {
		return fmt.Errorf("%w: %q", ErrEventNotFound, eventID)
	}
	event.CollectedAmount = event.CollectedAmount.Add(amount)
	s.events[eventID] = event
	return nil
}

func (s *memEventStore) snapshot(eventID string) Event {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.events[eventID]
}

type memDonationStore struct {
	mu        sync.Mutex
	donations map[string]Donation
	createErr error
	updateErr error
}

func newMemDonationStore() *memDonationStore {
	return &memDonationStore{donations: map[string]Donation{}}
}

func (s *memDonationStore) Create(_ context.Context, donation Donation) (Donation, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.createErr != nil {
		return Donation{}, s.createErr
	}
	s.donations[donation.ID] = donation
	return donation, nil
}

func (s *memDonationStore) Get(_ context.Context, donationID string) (Donation, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	donation, ok := s.donations[donationID]
	if !ok {
		return Donation{}, fmt.Errorf("%w: %q", ErrDonationNotFound, donationID)
	}
	return donation, nil
}

func (s *memDonationStore) UpdateStatus(_ context.Context, donationID string, status DonationStatus, transactionID string, reason string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.updateErr != nil {
		err := s.updateErr
		s.updateErr = nil
		return err
	}
	donation, ok := s.donations[donationID]
	if !ok {
		return fmt.Errorf("%w: %q", ErrDonationNotFound, donationID)
	}
	if err := donation.TransitionTo(status, reason, time.Now().UTC()); err != nil {
		return err
	}
	if transactionID != "" {
		donation.TransactionID = transactionID
	}
	s.donations[donationID] = donation
	return nil
}

func (s *memDonationStore) ListByEvent(_ context.Context, eventID string) ([]Donation, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []Donation
	for _, donation := range s.donations {
		if donation.EventID == eventID {
			out = append(out, donation)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.Before(out[j].CreatedAt) })
	return out, nil
}

func (s *memDonationStore) only(t *testing.T) Donation {
	t.Helper()
	s.mu.Lock()
	defer s.mu.Unlock()
	if len(s.donations) != 1 {
		t.Fatalf("expected exactly one donation, found %d", len(s.donations))
	}
	for _, donation := range s.donations {
		return donation
	}
	return Donation{}
}

type memJournal struct {
	mu            sync.Mutex
	entries       map[string]JournalEntry
	recordErr     error
	markMintedErr error
}

func newMemJournal() *memJournal {
	return &memJournal{entries: map[string]JournalEntry{}}
}

func (j *memJournal) RecordIntent(_ context.Context, entry JournalEntry) error {
	j.mu.Lock()
	defer j.mu.Unlock()
	if j.recordErr != nil {
		return j.recordErr
	}
	j.entries[entry.ID] = entry
	return nil
}

func (j *memJournal) MarkMinted(_ context.Context, entryID string, mintTransactionID string) error {
	j.mu.Lock()
	defer j.mu.Unlock()
	if j.markMintedErr != nil {
		return j.markMintedErr
	}
	entry, ok := j.entries[entryID]
	if !ok {
		return fmt.Errorf("journal entry %q not found", entryID)
	}
	if err := entry.AdvanceTo(JournalStageMinted, "", time.Now().UTC()); err != nil {
		return err
	}
	entry.MintTransactionID = mintTransactionID
	j.entries[entryID] = entry
	return nil
}

func (j *memJournal) MarkCompleted(_ context.Context, entryID string, transferTransactionID string) error {
	j.mu.Lock()
	defer j.mu.Unlock()
	entry, ok := j.entries[entryID]
	if !ok {
		return fmt.Errorf("journal entry %q not found", entryID)
	}
	if err := entry.AdvanceTo(JournalStageCompleted, "", time.Now().UTC()); err != nil {
		return err
	}
	entry.TransferTransactionID = transferTransactionID
	j.entries[entryID] = entry
	return nil
}

func (j *memJournal) MarkStage(_ context.Context, entryID string, stage JournalStage, cause error) error {
	j.mu.Lock()
	defer j.mu.Unlock()
	entry, ok := j.entries[entryID]
	if !ok {
		return fmt.Errorf("journal entry %q not found", entryID)
	}
	reason := ""
	if cause != nil {
		reason = cause.Error()
	}
	if err := entry.AdvanceTo(stage, reason, time.Now().UTC()); err != nil {
		return err
	}
	j.entries[entryID] = entry
	return nil
}

func (j *memJournal) ClaimStaleIntents(_ context.Context, cutoff time.Time, limit int) ([]JournalEntry, error) {
	j.mu.Lock()
	defer j.mu.Unlock()
	if j.recordErr != nil {
		return nil, j.recordErr
	}
	var claimed []JournalEntry
	for id, entry := range j.entries {
		if entry.Stage != JournalStageIntent || !entry.UpdatedAt.Before(cutoff) {
			continue
		}
		entry.Attempts++
		j.entries[id] = entry
		claimed = append(claimed, entry)
		if limit > 0 && len(claimed) >= limit {
			break
		}
	}
	return claimed, nil
}

func (j *memJournal) only(t *testing.T) JournalEntry {
	t.Helper()
	j.mu.Lock()
	defer j.mu.Unlock()
	if len(j.entries) != 1 {
		t.Fatalf("expected exactly one journal entry, found %d", len(j.entries))
	}
	for _, entry := range j.entries {
		return entry
	}
	return JournalEntry{}
}

type fakeGateway struct {
	mu             sync.Mutex
	balanceTinybar int64
	nextEntity     int
	nextTx         int

	createAccountCalls int
	balanceCalls       int
	createTokenCalls   int
	mintCalls          int
	transferCalls      int

	createAccountErr error
	balanceErr       error
	createTokenErr   error
	mintErr          error
	transferErr      error
}

func (g *fakeGateway) nextTxID() string {
	g.nextTx++
	return fmt.Sprintf("tx_%d", g.nextTx)
}

func (g *fakeGateway) CreateAccount(_ context.Context, publicKey string, _ int64) (AccountReceipt, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.createAccountCalls++
	if g.createAccountErr != nil {
		return AccountReceipt{}, g.createAccountErr
	}
	if strings.TrimSpace(publicKey) == "" {
		return AccountReceipt{}, fmt.Errorf("public key is required")
	}
	g.nextEntity++
	return AccountReceipt{
		AccountID:     fmt.Sprintf("0.0.%d", 1000+g.nextEntity),
		TransactionID: g.nextTxID(),
	}, nil
}

func (g *fakeGateway) AccountBalance(_ context.Context, _ string) (int64, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.balanceCalls++
	if g.balanceErr != nil {
		return 0, g.balanceErr
	}
	return g.balanceTinybar, nil
}

func (g *fakeGateway) CreateToken(_ context.Context, def TokenDefinition, keys TokenSigningKeys) (TokenReceipt, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.createTokenCalls++
	if g.createTokenErr != nil {
		return TokenReceipt{}, g.createTokenErr
	}
	if keys.TreasuryPrivateKey == "" || keys.SupplyPrivateKey == "" {
		return TokenReceipt{}, fmt.Errorf("token creation signatures are required")
	}
	if def.Name == "" || def.Symbol == "" {
		return TokenReceipt{}, fmt.Errorf("token name and symbol are required")
	}
	g.nextEntity++
	return TokenReceipt{
		TokenID:       fmt.Sprintf("0.0.%d", 1000+g.nextEntity),
		TransactionID: g.nextTxID(),
	}, nil
}

func (g *fakeGateway) MintToken(_ context.Context, req MintRequest) (MintReceipt, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.mintCalls++
	if g.mintErr != nil {
		return MintReceipt{}, g.mintErr
	}
	if req.SupplyPrivateKey == "" {
		return MintReceipt{}, fmt.Errorf("supply signature is required")
	}
	return MintReceipt{TransactionID: g.nextTxID(), TotalSupply: req.Amount}, nil
}

func (g *fakeGateway) TransferToken(_ context.Context, req TransferRequest) (TransferReceipt, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.transferCalls++
	if g.transferErr != nil {
		return TransferReceipt{}, g.transferErr
	}
	if req.TreasuryPrivateKey == "" {
		return TransferReceipt{}, fmt.Errorf("treasury signature is required")
	}
	return TransferReceipt{TransactionID: g.nextTxID()}, nil
}

type immediateBackoff struct{}

func (immediateBackoff) NextDelay(int) time.Duration { return 0 }

type serviceFixture struct {
	service   *Service
	events    *memEventStore
	donations *memDonationStore
	journal   *memJournal
	gateway   *fakeGateway
	vault     *fakeVault
}

func newTestService(t *testing.T, events *memEventStore, extra ...Option) *serviceFixture {
	t.Helper()
	if events == nil {
		events = newMemEventStore()
	}
	fx := &serviceFixture{
		events:    events,
		donations: newMemDonationStore(),
		journal:   newMemJournal(),
		gateway:   &fakeGateway{},
		vault:     &fakeVault{},
	}
	options := []Option{
		WithSecretVault(fx.vault),
		WithLedgerGateway(fx.gateway),
		WithEventStore(fx.events),
		WithDonationStore(fx.donations),
		WithSettlementJournal(fx.journal),
		WithBackoffScheduler(immediateBackoff{}),
	}
	options = append(options, extra...)
	service, err := NewService(Config{
		EncryptionKey: testSecretHex,
		Ledger: LedgerConfig{
			RequestTimeoutSecs:   1,
			BalanceRetryAttempts: 2,
		},
	}, options...)
	if err != nil {
		t.Fatalf("NewService failed: %v", err)
	}
	fx.service = service
	return fx
}

func bareEvent(id string) Event {
	return Event{ID: id, Name: "Summer Gala", CreatedAt: time.Now().UTC()}
}

func provisionedEvent(id string) Event {
	event := bareEvent(id)
	event.WalletAccountID = "0.0.1001"
	event.WalletPrivateKey = sealedKey("treasury-seed")
	return event
}

func tokenizedEvent(id string) Event {
	event := provisionedEvent(id)
	event.TokenID = "0.0.2002"
	event.TokenSupplyPublicKey = "supply-pub"
	event.TokenSupplyPrivateKey = sealedKey("supply-seed")
	event.TokenAdminPublicKey = "admin-pub"
	event.TokenAdminPrivateKey = sealedKey("admin-seed")
	event.TokenMetadataPublicKey = "meta-pub"
	event.TokenMetadataPrivateKey = sealedKey("meta-seed")
	return event
}

func TestNewService_DefaultsAndGatewayWrapping(t *testing.T) {
	gateway := &fakeGateway{}
	service, err := NewService(Config{EncryptionKey: testSecretHex},
		WithSecretVault(&fakeVault{}),
		WithLedgerGateway(gateway),
	)
	if err != nil {
		t.Fatalf("NewService failed: %v", err)
	}

	deps := service.Dependencies()
	if deps.KeyGenerator == nil {
		t.Fatal("expected a default key generator")
	}
	if deps.EventLocker == nil {
		t.Fatal("expected a default event locker")
	}
	if deps.MetricsRecorder == nil {
		t.Fatal("expected a default metrics recorder")
	}
	if _, ok := deps.LedgerGateway.(*RetryingLedgerGateway); !ok {
		t.Fatalf("expected the gateway to be wrapped for retries, got %T", deps.LedgerGateway)
	}

	cfg := service.Config()
	if cfg.ServiceName != "party-polaris" {
		t.Fatalf("unexpected service name %q", cfg.ServiceName)
	}
	if cfg.FundingThresholdHbar != 10 {
		t.Fatalf("unexpected funding threshold %d", cfg.FundingThresholdHbar)
	}
	if cfg.Ledger.Network != "local" {
		t.Fatalf("unexpected ledger network %q", cfg.Ledger.Network)
	}
}

func TestNewService_RuntimeConfigOverridesDefaults(t *testing.T) {
	service, err := NewService(Config{
		EncryptionKey:        testSecretHex,
		Environment:          "production",
		FundingThresholdHbar: 25,
	})
	if err != nil {
		t.Fatalf("NewService failed: %v", err)
	}
	cfg := service.Config()
	if cfg.FundingThresholdHbar != 25 {
		t.Fatalf("expected runtime threshold to win, got %d", cfg.FundingThresholdHbar)
	}
	if !cfg.Production() {
		t.Fatal("expected production environment")
	}
	if cfg.Ledger.RequestTimeoutSecs != 30 {
		t.Fatalf("expected default ledger timeout to survive, got %d", cfg.Ledger.RequestTimeoutSecs)
	}
}

func TestNewService_RejectsInvalidEncryptionSecret(t *testing.T) {
	_, err := NewService(Config{EncryptionKey: "not-hex"})
	if err == nil {
		t.Fatal("expected a configuration error")
	}
	if !errors.Is(err, ErrInvalidSecretKey) {
		t.Fatalf("expected ErrInvalidSecretKey, got %v", err)
	}
}

type staticStoreProvider struct {
	events    EventStore
	donations DonationStore
	journal   SettlementJournal
}

func (p staticStoreProvider) EventStore() EventStore               { return p.events }
func (p staticStoreProvider) DonationStore() DonationStore         { return p.donations }
func (p staticStoreProvider) SettlementJournal() SettlementJournal { return p.journal }

type staticStoreFactory struct {
	provider StoreProvider
	err      error
	client   any
}

func (f *staticStoreFactory) BuildStores(client any) (StoreProvider, error) {
	f.client = client
	if f.err != nil {
		return nil, f.err
	}
	return f.provider, nil
}

func TestNewService_ResolvesStoresFromProvider(t *testing.T) {
	events := newMemEventStore()
	donations := newMemDonationStore()
	journal := newMemJournal()

	service, err := NewService(Config{EncryptionKey: testSecretHex},
		WithRepositoryFactory(staticStoreProvider{events: events, donations: donations, journal: journal}),
	)
	if err != nil {
		t.Fatalf("NewService failed: %v", err)
	}
	deps := service.Dependencies()
	if deps.EventStore != EventStore(events) {
		t.Fatal("expected the provider's event store")
	}
	if deps.DonationStore != DonationStore(donations) {
		t.Fatal("expected the provider's donation store")
	}
	if deps.SettlementJournal != SettlementJournal(journal) {
		t.Fatal("expected the provider's settlement journal")
	}
}

func TestNewService_ResolvesStoresFromFactory(t *testing.T) {
	client := struct{ name string }{name: "persistence"}
	factory := &staticStoreFactory{provider: staticStoreProvider{
		events:    newMemEventStore(),
		donations: newMemDonationStore(),
		journal:   newMemJournal(),
	}}

	service, err := NewService(Config{EncryptionKey: testSecretHex},
		WithPersistenceClient(client),
		WithRepositoryFactory(factory),
	)
	if err != nil {
		t.Fatalf("NewService failed: %v", err)
	}
	if factory.client != any(client) {
		t.Fatal("expected the persistence client to reach the store factory")
	}
	if service.Dependencies().EventStore == nil {
		t.Fatal("expected a resolved event store")
	}
}

func TestNewService_SurfacesFactoryError(t *testing.T) {
	factory := &staticStoreFactory{err: errors.New("schema mismatch")}
	_, err := NewService(Config{EncryptionKey: testSecretHex},
		WithRepositoryFactory(factory),
	)
	if err == nil {
		t.Fatal("expected the store factory error to surface")
	}
}
