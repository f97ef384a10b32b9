package gateway

import (
	"context"
	"fmt"
	"log"
	"time"

	"spot-trader/pkg/exchanges/upbit"
)

// LiveGateway submits real market orders through the Upbit client. A
// submission that fails or times out before the exchange confirms it
// maps to ErrExecutionRejected so the caller applies nothing; once the
// exchange has accepted the order, the reported fill is whatever
// actually executed.
type LiveGateway struct {
	client  *upbit.Client
	timeout time.Duration
	// settleWait gives a market order a moment to execute before the
	// fill is read back.
	settleWait time.Duration
}

// NewLive creates a live gateway. timeout bounds the whole
// submit-and-confirm exchange round trip.
func NewLive(client *upbit.Client, timeout time.Duration) *LiveGateway {
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	return &LiveGateway{client: client, timeout: timeout, settleWait: 300 * time.Millisecond}
}

func (g *LiveGateway) Name() string { return "live" }

// SubmitOrder places a market order and reads back the executed fill.
func (g *LiveGateway) SubmitOrder(ctx context.Context, req OrderRequest) (Fill, error) {
	ctx, cancel := context.WithTimeout(ctx, g.timeout)
	defer cancel()

	var (
		order upbit.Order
		err   error
	)
	switch req.Side {
	case Buy:
		if req.Amount <= 0 {
			return Fill{}, fmt.Errorf("%w: buy amount must be positive", ErrExecutionRejected)
		}
		order, err = g.client.BuyMarket(ctx, req.Symbol, req.Amount)
	case Sell:
		if req.Quantity <= 0 {
			return Fill{}, fmt.Errorf("%w: sell quantity must be positive", ErrExecutionRejected)
		}
		order, err = g.client.SellMarket(ctx, req.Symbol, req.Quantity)
	default:
		return Fill{}, fmt.Errorf("%w: unknown side %q", ErrExecutionRejected, req.Side)
	}
	if err != nil {
		// The order never got an exchange uuid, so nothing can have
		// executed.
		return Fill{}, fmt.Errorf("%w: %v", ErrExecutionRejected, err)
	}

	fill, err := g.confirm(ctx, order.UUID)
	if err != nil {
		// Submission was accepted but confirmation failed. Reporting a
		// rejection here could desync the ledger from the venue, so
		// surface it loudly instead.
		log.Printf("gateway[live]: UNCONFIRMED order %s %s %s: %v", order.UUID, req.Side, req.Symbol, err)
		return Fill{}, fmt.Errorf("confirm order %s: %w", order.UUID, err)
	}

	if fill.Quantity <= 0 {
		return Fill{}, fmt.Errorf("%w: order %s executed nothing", ErrExecutionRejected, order.UUID)
	}
	price := fill.AvgPrice
	if price <= 0 {
		price = req.Price
	}
	log.Printf("gateway[live]: %s %s qty=%.8f @ %.2f fee=%.2f", req.Side, req.Symbol, fill.Quantity, price, fill.Fee)
	return Fill{Quantity: fill.Quantity, Price: price, Amount: fill.Funds, Fee: fill.Fee}, nil
}

func (g *LiveGateway) confirm(ctx context.Context, orderUUID string) (upbit.Fill, error) {
	// Market orders usually settle immediately; poll a few times
	// before accepting a partial result.
	var last upbit.Fill
	for attempt := 0; attempt < 3; attempt++ {
		select {
		case <-ctx.Done():
			if last.Quantity > 0 {
				return last, nil
			}
			return upbit.Fill{}, ctx.Err()
		case <-time.After(g.settleWait):
		}

		order, err := g.client.GetOrder(ctx, orderUUID)
		if err != nil {
			return upbit.Fill{}, err
		}
		fill, err := upbit.FillFromOrder(order)
		if err != nil {
			return upbit.Fill{}, err
		}
		if fill.Done {
			return fill, nil
		}
		last = fill
	}
	return last, nil
}
