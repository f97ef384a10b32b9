package gateway

import (
	"context"
	"errors"
)

// ErrExecutionRejected means the order did not reach the book: failed
// validation, transport error or timeout. It is never returned for an
// order that may have partially filled after confirmation.
var ErrExecutionRejected = errors.New("execution rejected")

// Side is the order direction.
type Side string

const (
	Buy  Side = "BUY"
	Sell Side = "SELL"
)

// OrderRequest describes one market order. Buys spend Amount of quote
// currency; sells release Quantity of the base asset. Price is the
// reference price the decision was made at.
type OrderRequest struct {
	Symbol   string
	Side     Side
	Quantity float64
	Amount   float64
	Price    float64
}

// Fill reports what actually executed. Quantity may be smaller than
// requested on a live venue.
type Fill struct {
	Quantity float64
	Price    float64
	Amount   float64
	Fee      float64
}

// Gateway submits orders to a venue. Implementations are selected once
// at startup; callers never branch on execution mode.
type Gateway interface {
	SubmitOrder(ctx context.Context, req OrderRequest) (Fill, error)
	Name() string
}
