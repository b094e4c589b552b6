package mpesa

import "fmt"

// AuthError means the OAuth exchange failed; no charge or payout can
// proceed. Surfaced to callers as "payment service unavailable".
type AuthError struct {
	Err  error
	Body string
}

func (e *AuthError) Error() string {
	if e.Body != "" {
		return fmt.Sprintf("mpesa auth: %v: %s", e.Err, e.Body)
	}
	return fmt.Sprintf("mpesa auth: %v", e.Err)
}

func (e *AuthError) Unwrap() error { return e.Err }

// ChargeError is an HTTP-level or provider-rejected STK push. Body carries
// the provider's raw error payload for diagnostics; Err carries the
// underlying failure (an *AuthError when the token exchange failed) so
// callers can match it with errors.As.
type ChargeError struct {
	Status int
	Body   string
	Err    error
}

func (e *ChargeError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("mpesa stk push: %v", e.Err)
	}
	return fmt.Sprintf("mpesa stk push: %d %s", e.Status, e.Body)
}

func (e *ChargeError) Unwrap() error { return e.Err }

// PayoutError is a rejected or failed B2C submission.
type PayoutError struct {
	Status int
	Body   string
	Err    error
}

func (e *PayoutError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("mpesa b2c: %v", e.Err)
	}
	return fmt.Sprintf("mpesa b2c: %d %s", e.Status, e.Body)
}

func (e *PayoutError) Unwrap() error { return e.Err }
