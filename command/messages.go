package command

import (
	"fmt"
	"strings"

	"github.com/MrWiki15/server-party-polaris/core"
)

const (
	TypeProvisionWallet = "polaris.command.wallet.provision"
	TypeCheckFunding    = "polaris.command.wallet.check_funding"
	TypeIssueToken      = "polaris.command.token.issue"
	TypeSettleDonation  = "polaris.command.donation.settle"
	TypeSweepJournal    = "polaris.command.journal.sweep"
)

type ProvisionWalletMessage struct {
	Request core.ProvisionWalletRequest
}

func (ProvisionWalletMessage) Type() string { return TypeProvisionWallet }

func (m ProvisionWalletMessage) Validate() error {
	if strings.TrimSpace(m.Request.EventID) == "" {
		return fmt.Errorf("command: event id is required")
	}
	return nil
}

type CheckFundingMessage struct {
	EventID string
}

func (CheckFundingMessage) Type() string { return TypeCheckFunding }

func (m CheckFundingMessage) Validate() error {
	if strings.TrimSpace(m.EventID) == "" {
		return fmt.Errorf("command: event id is required")
	}
	return nil
}

type IssueTokenMessage struct {
	Request core.IssueTokenRequest
}

func (IssueTokenMessage) Type() string { return TypeIssueToken }

func (m IssueTokenMessage) Validate() error {
	if strings.TrimSpace(m.Request.EventID) == "" {
		return fmt.Errorf("command: event id is required")
	}
	return nil
}

type SettleDonationMessage struct {
	Request core.SettleDonationRequest
}

func (SettleDonationMessage) Type() string { return TypeSettleDonation }

func (m SettleDonationMessage) Validate() error {
	if strings.TrimSpace(m.Request.EventID) == "" {
		return fmt.Errorf("command: event id is required")
	}
	if strings.TrimSpace(m.Request.DonorWallet) == "" {
		return fmt.Errorf("command: donor wallet is required")
	}
	if !m.Request.Amount.IsPositive() {
		return fmt.Errorf("command: contribution amount must be positive")
	}
	return nil
}

type SweepJournalMessage struct {
	Request core.SweepJournalRequest
}

func (SweepJournalMessage) Type() string { return TypeSweepJournal }

func (m SweepJournalMessage) Validate() error {
	if m.Request.OlderThan < 0 {
		return fmt.Errorf("command: sweep cutoff must not be negative")
	}
	if m.Request.Limit < 0 {
		return fmt.Errorf("command: sweep limit must not be negative")
	}
	return nil
}
