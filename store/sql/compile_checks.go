package sqlstore

import "github.com/MrWiki15/server-party-polaris/core"

var (
	_ core.EventStore             = (*EventStore)(nil)
	_ core.DonationStore          = (*DonationStore)(nil)
	_ core.SettlementJournal      = (*JournalStore)(nil)
	_ core.StoreProvider          = (*RepositoryFactory)(nil)
	_ core.RepositoryStoreFactory = (*RepositoryFactory)(nil)
)
