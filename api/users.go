package api

import (
	"context"

	battlecard "github.com/battlecardhq/battlecard-go"
)

// UserService reads and updates accounts.
type UserService struct {
	core *battlecard.Client
}

// Me returns the account the current session belongs to.
func (s *UserService) Me(ctx context.Context) (*User, error) {
	var user User
	if err := s.core.Get(ctx, "/users/me", nil, &user); err != nil {
		return nil, err
	}
	return &user, nil
}

// UpdateMe updates the current account. Only the fields set in params are
// sent.
func (s *UserService) UpdateMe(ctx context.Context, params *UserParams) (*User, error) {
	var user User
	if err := s.core.Put(ctx, "/users/me", params, &user); err != nil {
		return nil, err
	}
	return &user, nil
}

// List returns a page of accounts. Admin only; other roles get a Forbidden
// envelope.
func (s *UserService) List(ctx context.Context, opts *ListOptions) ([]User, error) {
	var users []User
	if err := s.core.Get(ctx, "/users", opts.query(), &users); err != nil {
		return nil, err
	}
	return users, nil
}
