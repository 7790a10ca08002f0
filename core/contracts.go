package core

import (
	"context"
	"time"

	glog "github.com/goliatone/go-logger/glog"
	"github.com/shopspring/decimal"
)

type Logger = glog.Logger

type LoggerProvider = glog.LoggerProvider

type FieldsLogger = glog.FieldsLogger

type MetricsRecorder interface {
	IncCounter(ctx context.Context, name string, value int64, tags map[string]string)
	ObserveHistogram(ctx context.Context, name string, value float64, tags map[string]string)
}

// SecretVault protects custodial private keys at rest. Implementations must
// fail closed: a tampered or wrongly-keyed payload yields an error, never
// partial plaintext. Plaintext key material must never reach a log.
type SecretVault interface {
	Encrypt(ctx context.Context, plaintextKey string) (EncryptedSecret, error)
	Decrypt(ctx context.Context, secret EncryptedSecret) (string, error)
}

type EventStore interface {
	Get(ctx context.Context, eventID string) (Event, error)
	// AttachWallet persists the account id and encrypted treasury key in one
	// conditional update. It must fail with ErrWalletAlreadyProvisioned when
	// a wallet is already stored, even under concurrent writers.
	AttachWallet(ctx context.Context, eventID string, accountID string, treasuryKey EncryptedSecret) error
	// AttachToken persists the token grant in one conditional update,
	// failing with ErrTokenAlreadyIssued when a token id is already stored.
	AttachToken(ctx context.Context, eventID string, grant TokenGrant) error
	// ApplySettlement adds a settled contribution to the event aggregate.
	ApplySettlement(ctx context.Context, eventID string, amount decimal.Decimal) error
}

type DonationStore interface {
	Create(ctx context.Context, donation Donation) (Donation, error)
	Get(ctx context.Context, donationID string) (Donation, error)
	UpdateStatus(ctx context.Context, donationID string, status DonationStatus, transactionID string, reason string) error
	ListByEvent(ctx context.Context, eventID string) ([]Donation, error)
}

// StoreProvider resolves the backing stores from a repository factory.
type StoreProvider interface {
	EventStore() EventStore
	DonationStore() DonationStore
	SettlementJournal() SettlementJournal
}

type JobExecutionMessage struct {
	JobID          string
	Parameters     map[string]any
	IdempotencyKey string
	DedupPolicy    string
}

type JobNackOptions struct {
	Delay      time.Duration
	Requeue    bool
	DeadLetter bool
	Reason     string
}

type JobEnqueuer interface {
	Enqueue(ctx context.Context, msg *JobExecutionMessage) error
}

type JobDelivery interface {
	Message() *JobExecutionMessage
	Ack(ctx context.Context) error
	Nack(ctx context.Context, opts JobNackOptions) error
}

type JobDequeuer interface {
	Dequeue(ctx context.Context) (JobDelivery, error)
}

type JobWorkerHook interface {
	OnStart(ctx context.Context, event JobWorkerEvent)
	OnSuccess(ctx context.Context, event JobWorkerEvent)
	OnFailure(ctx context.Context, event JobWorkerEvent)
	OnRetry(ctx context.Context, event JobWorkerEvent)
}

type JobWorkerEvent struct {
	Message   *JobExecutionMessage
	Attempt   int
	Delay     time.Duration
	Err       error
	StartedAt time.Time
	Duration  time.Duration
}
