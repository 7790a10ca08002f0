package core

import (
	"context"
	"errors"
)

var ErrGatewayRequired = errors.New("core: ledger gateway is required")

// RepositoryStoreFactory builds the backing stores from a persistence client.
type RepositoryStoreFactory interface {
	BuildStores(client any) (StoreProvider, error)
}

// Service coordinates wallet provisioning, funding checks, token issuance,
// and donation settlement for party events.
type Service struct {
	config            Config
	logger            Logger
	loggerProvider    LoggerProvider
	metricsRecorder   MetricsRecorder
	errorMapper       ErrorMapper
	vault             SecretVault
	gateway           LedgerGateway
	keyGenerator      KeyGenerator
	eventLocker       EventLocker
	backoffScheduler  BackoffScheduler
	persistenceClient any
	repositoryFactory any
	configProvider    ConfigProvider
	optionsResolver   OptionsResolver
	eventStore        EventStore
	donationStore     DonationStore
	journal           SettlementJournal
}

type ServiceDependencies struct {
	Logger            Logger
	LoggerProvider    LoggerProvider
	MetricsRecorder   MetricsRecorder
	ErrorMapper       ErrorMapper
	SecretVault       SecretVault
	LedgerGateway     LedgerGateway
	KeyGenerator      KeyGenerator
	EventLocker       EventLocker
	BackoffScheduler  BackoffScheduler
	PersistenceClient any
	RepositoryFactory any
	ConfigProvider    ConfigProvider
	OptionsResolver   OptionsResolver
	EventStore        EventStore
	DonationStore     DonationStore
	SettlementJournal SettlementJournal
}

func NewService(cfg Config, options ...Option) (*Service, error) {
	builder := defaultServiceBuilder(cfg)
	for _, opt := range options {
		if opt == nil {
			continue
		}
		opt(&builder)
	}

	provider, logger := resolveLogger(builder.loggerProvider, builder.logger)

	if builder.metricsRecorder == nil {
		builder.metricsRecorder = NopMetricsRecorder{}
	}
	if builder.errorMapper == nil {
		builder.errorMapper = defaultErrorMapper
	}
	if builder.configProvider == nil {
		builder.configProvider = NewCfgxConfigProvider(nil)
	}
	if builder.optionsResolver == nil {
		builder.optionsResolver = GoOptionsResolver{}
	}
	if builder.keyGenerator == nil {
		builder.keyGenerator = Ed25519KeyGenerator{}
	}
	if builder.eventLocker == nil {
		builder.eventLocker = NewMemoryEventLocker()
	}

	defaults := DefaultConfig()
	loaded, err := builder.configProvider.Load(context.Background(), defaults)
	if err != nil {
		return nil, mapBuildError(builder.errorMapper, err)
	}
	finalConfig, err := builder.optionsResolver.Resolve(defaults, loaded, builder.runtimeConfig)
	if err != nil {
		return nil, mapBuildError(builder.errorMapper, err)
	}

	gateway := builder.gateway
	if gateway != nil {
		if _, alreadyRetrying := gateway.(*RetryingLedgerGateway); !alreadyRetrying {
			retrying, wrapErr := NewRetryingLedgerGateway(gateway, finalConfig.Ledger, builder.backoffScheduler)
			if wrapErr != nil {
				return nil, mapBuildError(builder.errorMapper, wrapErr)
			}
			gateway = retrying
		}
	}

	needsStores := builder.eventStore == nil || builder.donationStore == nil || builder.journal == nil
	if needsStores && builder.repositoryFactory != nil {
		var storeProvider StoreProvider
		if storeFactory, ok := builder.repositoryFactory.(RepositoryStoreFactory); ok {
			built, buildErr := storeFactory.BuildStores(builder.persistenceClient)
			if buildErr != nil {
				return nil, mapBuildError(builder.errorMapper, buildErr)
			}
			storeProvider = built
		} else if direct, ok := builder.repositoryFactory.(StoreProvider); ok {
			storeProvider = direct
		}
		if storeProvider != nil {
			if builder.eventStore == nil {
				builder.eventStore = storeProvider.EventStore()
			}
			if builder.donationStore == nil {
				builder.donationStore = storeProvider.DonationStore()
			}
			if builder.journal == nil {
				builder.journal = storeProvider.SettlementJournal()
			}
		}
	}

	return &Service{
		config:            finalConfig,
		logger:            logger,
		loggerProvider:    provider,
		metricsRecorder:   builder.metricsRecorder,
		errorMapper:       builder.errorMapper,
		vault:             builder.vault,
		gateway:           gateway,
		keyGenerator:      builder.keyGenerator,
		eventLocker:       builder.eventLocker,
		backoffScheduler:  builder.backoffScheduler,
		persistenceClient: builder.persistenceClient,
		repositoryFactory: builder.repositoryFactory,
		configProvider:    builder.configProvider,
		optionsResolver:   builder.optionsResolver,
		eventStore:        builder.eventStore,
		donationStore:     builder.donationStore,
		journal:           builder.journal,
	}, nil
}

func Setup(cfg Config, options ...Option) (*Service, error) {
	return NewService(cfg, options...)
}

func mapBuildError(mapper ErrorMapper, err error) error {
	if err == nil {
		return nil
	}
	if mapper == nil {
		return err
	}
	mapped := mapper(err)
	if mapped == nil {
		return err
	}
	return mapped
}

func (s *Service) Config() Config {
	if s == nil {
		return Config{}
	}
	return s.config
}

func (s *Service) Dependencies() ServiceDependencies {
	if s == nil {
		return ServiceDependencies{}
	}
	return ServiceDependencies{
		Logger:            s.logger,
		LoggerProvider:    s.loggerProvider,
		MetricsRecorder:   s.metricsRecorder,
		ErrorMapper:       s.errorMapper,
		SecretVault:       s.vault,
		LedgerGateway:     s.gateway,
		KeyGenerator:      s.keyGenerator,
		EventLocker:       s.eventLocker,
		BackoffScheduler:  s.backoffScheduler,
		PersistenceClient: s.persistenceClient,
		RepositoryFactory: s.repositoryFactory,
		ConfigProvider:    s.configProvider,
		OptionsResolver:   s.optionsResolver,
		EventStore:        s.eventStore,
		DonationStore:     s.donationStore,
		SettlementJournal: s.journal,
	}
}

func (s *Service) mapError(err error) error {
	if err == nil {
		return nil
	}
	if s == nil || s.errorMapper == nil {
		return err
	}
	mapped := s.errorMapper(err)
	if mapped == nil {
		return err
	}
	return mapped
}

func (s *Service) lockEvent(ctx context.Context, eventID string) (func(), error) {
	if s == nil || s.eventLocker == nil {
		return func() {}, nil
	}
	handle, err := s.eventLocker.Acquire(ctx, eventID, defaultEventLockTTL)
	if err != nil {
		return nil, s.mapError(err)
	}
	return func() {
		_ = handle.Unlock(ctx)
	}, nil
}
