// Package api provides typed access to the battlecard backend. It sits on
// top of the resilient core client and never touches net/http directly:
// every call goes through the retry, auth and dedup pipeline.
//
// Construct the core first, then wrap it:
//
//	core, err := battlecard.New(battlecard.WithBaseURL("https://api.example.com/api/v1"))
//	if err != nil {
//		log.Fatal(err)
//	}
//	client := api.New(core)
//
//	pair, err := client.Auth.Login(ctx, "user@example.com", "secret")
//	cards, err := client.Battlecards.List(ctx, nil)
package api

import (
	"net/url"
	"strconv"

	battlecard "github.com/battlecardhq/battlecard-go"
)

// Client bundles the per-resource services. All services share one core
// client, so credentials, retries and pacing are common across them.
type Client struct {
	core *battlecard.Client

	Auth        *AuthService
	Battlecards *BattlecardService
	Customers   *CustomerService
	Users       *UserService
	AI          *AIService
}

// New wraps a configured core client with the typed service surface.
func New(core *battlecard.Client) *Client {
	return &Client{
		core:        core,
		Auth:        &AuthService{core: core},
		Battlecards: &BattlecardService{core: core},
		Customers:   &CustomerService{core: core},
		Users:       &UserService{core: core},
		AI:          &AIService{core: core},
	}
}

// Core exposes the underlying client for raw requests the typed surface
// does not cover.
func (c *Client) Core() *battlecard.Client {
	return c.core
}

// ListOptions carries the offset pagination knobs the collection endpoints
// accept. A nil value requests the server defaults.
type ListOptions struct {
	Skip  int
	Limit int
}

func (o *ListOptions) query() url.Values {
	if o == nil {
		return nil
	}
	q := url.Values{}
	if o.Skip > 0 {
		q.Set("skip", strconv.Itoa(o.Skip))
	}
	if o.Limit > 0 {
		q.Set("limit", strconv.Itoa(o.Limit))
	}
	if len(q) == 0 {
		return nil
	}
	return q
}

// MessageResponse is the generic acknowledgement body several endpoints
// return.
type MessageResponse struct {
	Message string `json:"message"`
}
