package gateway

import (
	"context"
	"fmt"
	"log"
	"sync"
)

// PaperGateway simulates execution against a virtual cash balance.
// Orders fill completely at the requested price with the configured
// fee; the balance is isolated from the capital account so a paper run
// cannot touch real money paths.
type PaperGateway struct {
	mu      sync.Mutex
	cash    float64
	feeRate float64
}

// NewPaper creates a paper gateway holding initialCash of quote
// currency.
func NewPaper(initialCash, feeRate float64) *PaperGateway {
	return &PaperGateway{cash: initialCash, feeRate: feeRate}
}

func (g *PaperGateway) Name() string { return "paper" }

// Balance returns the remaining virtual cash.
func (g *PaperGateway) Balance() float64 {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.cash
}

// SubmitOrder fills the request at req.Price. A buy that exceeds the
// virtual balance is rejected.
func (g *PaperGateway) SubmitOrder(ctx context.Context, req OrderRequest) (Fill, error) {
	if err := ctx.Err(); err != nil {
		return Fill{}, fmt.Errorf("%w: %v", ErrExecutionRejected, err)
	}
	if req.Price <= 0 {
		return Fill{}, fmt.Errorf("%w: no price for %s", ErrExecutionRejected, req.Symbol)
	}

	g.mu.Lock()
	defer g.mu.Unlock()

	switch req.Side {
	case Buy:
		if req.Amount <= 0 {
			return Fill{}, fmt.Errorf("%w: buy amount must be positive", ErrExecutionRejected)
		}
		if req.Amount > g.cash {
			return Fill{}, fmt.Errorf("%w: paper balance %.2f < %.2f", ErrExecutionRejected, g.cash, req.Amount)
		}
		fee := req.Amount * g.feeRate
		qty := (req.Amount - fee) / req.Price
		g.cash -= req.Amount
		log.Printf("gateway[paper]: BUY %s qty=%.8f @ %.2f fee=%.2f", req.Symbol, qty, req.Price, fee)
		return Fill{Quantity: qty, Price: req.Price, Amount: req.Amount, Fee: fee}, nil

	case Sell:
		if req.Quantity <= 0 {
			return Fill{}, fmt.Errorf("%w: sell quantity must be positive", ErrExecutionRejected)
		}
		proceeds := req.Quantity * req.Price
		fee := proceeds * g.feeRate
		g.cash += proceeds - fee
		log.Printf("gateway[paper]: SELL %s qty=%.8f @ %.2f fee=%.2f", req.Symbol, req.Quantity, req.Price, fee)
		return Fill{Quantity: req.Quantity, Price: req.Price, Amount: proceeds, Fee: fee}, nil

	default:
		return Fill{}, fmt.Errorf("%w: unknown side %q", ErrExecutionRejected, req.Side)
	}
}
