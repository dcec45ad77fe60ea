// Package payment defines the hosted payment session contract used at checkout.
package payment

import (
	"context"
	"fmt"
)

// LineItem is a single priced row submitted to the payment provider.
type LineItem struct {
	Name string
	// UnitAmount is the unit price in minor currency units (cents).
	UnitAmount int64
	Quantity   int
}

// Session is an opaque handle for redirecting the shopper to the hosted
// payment page.
type Session struct {
	ID  string
	URL string
}

// Provider starts hosted payment sessions.
type Provider interface {
	CreateSession(ctx context.Context, items []LineItem) (*Session, error)
}

// ProviderError carries the message reported by the payment provider on any
// transport or validation failure.
type ProviderError struct {
	Message string
	Err     error
}

func (e *ProviderError) Error() string {
	return fmt.Sprintf("payment provider: %s", e.Message)
}

func (e *ProviderError) Unwrap() error {
	return e.Err
}
