package core

import (
	"context"
	"fmt"
	"strings"
)

func (s *Service) GetEvent(ctx context.Context, eventID string) (Event, error) {
	eventID = strings.TrimSpace(eventID)
	if eventID == "" {
		return Event{}, s.mapError(fmt.Errorf("core: event id is required"))
	}
	if s == nil || s.eventStore == nil {
		return Event{}, s.mapError(fmt.Errorf("core: event store is required"))
	}
	event, err := s.eventStore.Get(ctx, eventID)
	if err != nil {
		return Event{}, s.mapError(err)
	}
	return event, nil
}

func (s *Service) GetDonation(ctx context.Context, donationID string) (Donation, error) {
	donationID = strings.TrimSpace(donationID)
	if donationID == "" {
		return Donation{}, s.mapError(fmt.Errorf("core: donation id is required"))
	}
	if s == nil || s.donationStore == nil {
		return Donation{}, s.mapError(fmt.Errorf("core: donation store is required"))
	}
	donation, err := s.donationStore.Get(ctx, donationID)
	if err != nil {
		return Donation{}, s.mapError(err)
	}
	return donation, nil
}

func (s *Service) ListDonations(ctx context.Context, eventID string) ([]Donation, error) {
	eventID = strings.TrimSpace(eventID)
	if eventID == "" {
		return nil, s.mapError(fmt.Errorf("core: event id is required"))
	}
	if s == nil || s.donationStore == nil {
		return nil, s.mapError(fmt.Errorf("core: donation store is required"))
	}
	donations, err := s.donationStore.ListByEvent(ctx, eventID)
	if err != nil {
		return nil, s.mapError(err)
	}
	return donations, nil
}
