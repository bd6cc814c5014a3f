package api

import (
	"context"
	"fmt"

	battlecard "github.com/battlecardhq/battlecard-go"
)

// CustomerService manages customer records.
type CustomerService struct {
	core *battlecard.Client
}

// List returns a page of customers.
func (s *CustomerService) List(ctx context.Context, opts *ListOptions) ([]Customer, error) {
	var customers []Customer
	if err := s.core.Get(ctx, "/customers", opts.query(), &customers); err != nil {
		return nil, err
	}
	return customers, nil
}

// Create stores a new customer.
func (s *CustomerService) Create(ctx context.Context, params *CustomerParams) (*Customer, error) {
	var customer Customer
	if err := s.core.Post(ctx, "/customers", params, &customer); err != nil {
		return nil, err
	}
	return &customer, nil
}

// Get fetches one customer by id.
func (s *CustomerService) Get(ctx context.Context, id int) (*Customer, error) {
	var customer Customer
	if err := s.core.Get(ctx, fmt.Sprintf("/customers/%d", id), nil, &customer); err != nil {
		return nil, err
	}
	return &customer, nil
}

// Update replaces the writable fields of a customer. Quality scores and
// known vendors are replaced wholesale when present.
func (s *CustomerService) Update(ctx context.Context, id int, params *CustomerParams) (*Customer, error) {
	var customer Customer
	if err := s.core.Put(ctx, fmt.Sprintf("/customers/%d", id), params, &customer); err != nil {
		return nil, err
	}
	return &customer, nil
}

// Delete removes a customer.
func (s *CustomerService) Delete(ctx context.Context, id int) error {
	return s.core.Delete(ctx, fmt.Sprintf("/customers/%d", id), nil)
}
