package api

import (
	"context"
	"fmt"

	battlecard "github.com/battlecardhq/battlecard-go"
)

// BattlecardService manages battlecards and their version history.
type BattlecardService struct {
	core *battlecard.Client
}

// List returns a page of battlecards.
func (s *BattlecardService) List(ctx context.Context, opts *ListOptions) ([]Battlecard, error) {
	var cards []Battlecard
	if err := s.core.Get(ctx, "/battlecards", opts.query(), &cards); err != nil {
		return nil, err
	}
	return cards, nil
}

// Create stores a new battlecard and returns it with server-assigned fields.
func (s *BattlecardService) Create(ctx context.Context, params *BattlecardParams) (*Battlecard, error) {
	var card Battlecard
	if err := s.core.Post(ctx, "/battlecards", params, &card); err != nil {
		return nil, err
	}
	return &card, nil
}

// Get fetches one battlecard by id, versions included.
func (s *BattlecardService) Get(ctx context.Context, id int) (*Battlecard, error) {
	var card Battlecard
	if err := s.core.Get(ctx, fmt.Sprintf("/battlecards/%d", id), nil, &card); err != nil {
		return nil, err
	}
	return &card, nil
}

// Update replaces the writable fields of a battlecard. The server snapshots
// the previous content as a new version.
func (s *BattlecardService) Update(ctx context.Context, id int, params *BattlecardParams) (*Battlecard, error) {
	var card Battlecard
	if err := s.core.Put(ctx, fmt.Sprintf("/battlecards/%d", id), params, &card); err != nil {
		return nil, err
	}
	return &card, nil
}

// Delete removes a battlecard and its versions.
func (s *BattlecardService) Delete(ctx context.Context, id int) error {
	return s.core.Delete(ctx, fmt.Sprintf("/battlecards/%d", id), nil)
}

// Versions returns the version history of a battlecard, oldest first. The
// backend embeds versions in the battlecard document, so this is a
// convenience over Get.
func (s *BattlecardService) Versions(ctx context.Context, id int) ([]BattlecardVersion, error) {
	card, err := s.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	return card.Versions, nil
}
