// Package battlecard provides a resilient Go client for the Battlecard
// Management Platform API:
//
//   - Retries with exponential backoff + jitter for network and 5xx faults
//   - Single-flight token refresh: concurrent 401s trigger one exchange
//   - Rate-limit compliance: 429 wait hints are honored, never retried blind
//   - De-duplication of concurrent identical reads into one exchange
//   - A stable error taxonomy with user-facing message translation
//   - Optional client-side pacing and Prometheus metrics
//
// Typical usage:
//
//	client, err := battlecard.New(
//	    battlecard.WithBaseURL("https://api.battlecardhq.com/api/v1"),
//	    battlecard.WithTokenStore(battlecard.NewKeyringStore()),
//	)
//	if err != nil {
//	    // configuration fault, reported in full
//	}
//
//	var cards []api.Battlecard
//	err = client.Get(ctx, "/battlecards", nil, &cards)
//
// Expected failures surface as an *Error envelope; inspect it with
// errors.As, or use UserMessage for a display string:
//
//	var apiErr *battlecard.Error
//	if errors.As(err, &apiErr) {
//	    log.Printf("code=%s retryable=%v", apiErr.Code, apiErr.Retryable)
//	    fmt.Println(apiErr.UserMessage())
//	}
//
// A session whose refresh was rejected is torn down: stored tokens are
// cleared and every call fails with a session-expired envelope
// (errors.Is(err, battlecard.ErrSessionExpired)) until the caller signs in
// again. The typed resource services in the api subpackage sit on top of
// this core and are the recommended way to call the backend.
package battlecard
