package command

import gocmd "github.com/goliatone/go-command"

var (
	_ gocmd.Commander[ProvisionWalletMessage] = (*ProvisionWalletCommand)(nil)
	_ gocmd.Commander[CheckFundingMessage]    = (*CheckFundingCommand)(nil)
	_ gocmd.Commander[IssueTokenMessage]      = (*IssueTokenCommand)(nil)
	_ gocmd.Commander[SettleDonationMessage]  = (*SettleDonationCommand)(nil)
	_ gocmd.Commander[SweepJournalMessage]    = (*SweepJournalCommand)(nil)
)
