package polaris

import "github.com/MrWiki15/server-party-polaris/core"

type Config = core.Config

type LedgerConfig = core.LedgerConfig

type Option = core.Option

type Service = core.Service

type ServiceDependencies = core.ServiceDependencies

type SecretVault = core.SecretVault
type LedgerGateway = core.LedgerGateway
type KeyGenerator = core.KeyGenerator
type EventLocker = core.EventLocker
type EventStore = core.EventStore
type DonationStore = core.DonationStore
type SettlementJournal = core.SettlementJournal

type ProvisionWalletRequest = core.ProvisionWalletRequest
type IssueTokenRequest = core.IssueTokenRequest
type SettleDonationRequest = core.SettleDonationRequest
type SweepJournalRequest = core.SweepJournalRequest

var (
	WithLogger            = core.WithLogger
	WithLoggerProvider    = core.WithLoggerProvider
	WithMetricsRecorder   = core.WithMetricsRecorder
	WithErrorMapper       = core.WithErrorMapper
	WithSecretVault       = core.WithSecretVault
	WithLedgerGateway     = core.WithLedgerGateway
	WithKeyGenerator      = core.WithKeyGenerator
	WithEventLocker       = core.WithEventLocker
	WithBackoffScheduler  = core.WithBackoffScheduler
	WithPersistenceClient = core.WithPersistenceClient
	WithRepositoryFactory = core.WithRepositoryFactory
	WithConfigProvider    = core.WithConfigProvider
	WithOptionsResolver   = core.WithOptionsResolver
	WithEventStore        = core.WithEventStore
	WithDonationStore     = core.WithDonationStore
	WithSettlementJournal = core.WithSettlementJournal
)

func DefaultConfig() Config {
	return core.DefaultConfig()
}

func NewService(cfg Config, opts ...Option) (*Service, error) {
	return core.NewService(cfg, opts...)
}

func Setup(cfg Config, opts ...Option) (*Service, error) {
	return core.Setup(cfg, opts...)
}
