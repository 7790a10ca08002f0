package command

import (
	"context"

	gocmd "github.com/goliatone/go-command"

	"github.com/MrWiki15/server-party-polaris/core"
)

// MutatingService is the slice of the settlement service the commands need.
type MutatingService interface {
	ProvisionWallet(ctx context.Context, req core.ProvisionWalletRequest) (core.ProvisionedWallet, error)
	CheckFunding(ctx context.Context, eventID string) (core.FundingStatus, error)
	IssueToken(ctx context.Context, req core.IssueTokenRequest) (core.IssuedToken, error)
	SettleDonation(ctx context.Context, req core.SettleDonationRequest) (core.SettlementResult, error)
	SweepJournal(ctx context.Context, req core.SweepJournalRequest) (core.SweepReport, error)
}

type ProvisionWalletCommand struct {
	service MutatingService
}

func NewProvisionWalletCommand(service MutatingService) *ProvisionWalletCommand {
	return &ProvisionWalletCommand{service: service}
}

func (c *ProvisionWalletCommand) Execute(ctx context.Context, msg ProvisionWalletMessage) error {
	if c == nil || c.service == nil {
		return commandDependencyError("command: provision service is required")
	}
	out, err := c.service.ProvisionWallet(ctx, msg.Request)
	if err != nil {
		return err
	}
	storeResult(ctx, out)
	return nil
}

type CheckFundingCommand struct {
	service MutatingService
}

func NewCheckFundingCommand(service MutatingService) *CheckFundingCommand {
	return &CheckFundingCommand{service: service}
}

func (c *CheckFundingCommand) Execute(ctx context.Context, msg CheckFundingMessage) error {
	if c == nil || c.service == nil {
		return commandDependencyError("command: funding service is required")
	}
	out, err := c.service.CheckFunding(ctx, msg.EventID)
	if err != nil {
		return err
	}
	storeResult(ctx, out)
	return nil
}

type IssueTokenCommand struct {
	service MutatingService
}

func NewIssueTokenCommand(service MutatingService) *IssueTokenCommand {
	return &IssueTokenCommand{service: service}
}

func (c *IssueTokenCommand) Execute(ctx context.Context, msg IssueTokenMessage) error {
	if c == nil || c.service == nil {
		return commandDependencyError("command: issuance service is required")
	}
	out, err := c.service.IssueToken(ctx, msg.Request)
	if err != nil {
		return err
	}
	storeResult(ctx, out)
	return nil
}

type SettleDonationCommand struct {
	service MutatingService
}

func NewSettleDonationCommand(service MutatingService) *SettleDonationCommand {
	return &SettleDonationCommand{service: service}
}

func (c *SettleDonationCommand) Execute(ctx context.Context, msg SettleDonationMessage) error {
	if c == nil || c.service == nil {
		return commandDependencyError("command: settlement service is required")
	}
	out, err := c.service.SettleDonation(ctx, msg.Request)
	if err != nil {
		return err
	}
	storeResult(ctx, out)
	return nil
}

type SweepJournalCommand struct {
	service MutatingService
}

func NewSweepJournalCommand(service MutatingService) *SweepJournalCommand {
	return &SweepJournalCommand{service: service}
}

func (c *SweepJournalCommand) Execute(ctx context.Context, msg SweepJournalMessage) error {
	if c == nil || c.service == nil {
		return commandDependencyError("command: sweep service is required")
	}
	out, err := c.service.SweepJournal(ctx, msg.Request)
	if err != nil {
		return err
	}
	storeResult(ctx, out)
	return nil
}

func storeResult[T any](ctx context.Context, value T) {
	collector := gocmd.ResultFromContext[T](ctx)
	if collector == nil {
		return
	}
	collector.Store(value)
}
