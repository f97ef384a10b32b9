package gateway

import (
	"context"
	"errors"
	"math"
	"testing"
)

func TestPaperBuyDeductsBalanceAndFee(t *testing.T) {
	g := NewPaper(1_000_000, 0.0005)
	ctx := context.Background()

	fill, err := g.SubmitOrder(ctx, OrderRequest{
		Symbol: "KRW-BTC", Side: Buy, Amount: 100_000, Price: 50_000_000,
	})
	if err != nil {
		t.Fatalf("buy: %v", err)
	}
	if fill.Fee != 50 {
		t.Errorf("fee = %v, want 50", fill.Fee)
	}
	wantQty := (100_000 - 50.0) / 50_000_000
	if math.Abs(fill.Quantity-wantQty) > 1e-12 {
		t.Errorf("qty = %v, want %v", fill.Quantity, wantQty)
	}
	if g.Balance() != 900_000 {
		t.Errorf("balance = %v, want 900000", g.Balance())
	}
}

func TestPaperBuyRejectsOverBalance(t *testing.T) {
	g := NewPaper(50_000, 0.0005)
	_, err := g.SubmitOrder(context.Background(), OrderRequest{
		Symbol: "KRW-BTC", Side: Buy, Amount: 50_001, Price: 50_000_000,
	})
	if !errors.Is(err, ErrExecutionRejected) {
		t.Errorf("err = %v, want ErrExecutionRejected", err)
	}
	if g.Balance() != 50_000 {
		t.Errorf("rejected buy touched balance: %v", g.Balance())
	}
}

func TestPaperSellCreditsProceeds(t *testing.T) {
	g := NewPaper(0, 0.0005)
	fill, err := g.SubmitOrder(context.Background(), OrderRequest{
		Symbol: "KRW-ETH", Side: Sell, Quantity: 0.5, Price: 4_000_000,
	})
	if err != nil {
		t.Fatalf("sell: %v", err)
	}
	if fill.Quantity != 0.5 {
		t.Errorf("qty = %v", fill.Quantity)
	}
	wantFee := 2_000_000 * 0.0005
	if fill.Fee != wantFee {
		t.Errorf("fee = %v, want %v", fill.Fee, wantFee)
	}
	if g.Balance() != 2_000_000-wantFee {
		t.Errorf("balance = %v", g.Balance())
	}
}

func TestPaperRejectsCancelledContext(t *testing.T) {
	g := NewPaper(1_000_000, 0.0005)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := g.SubmitOrder(ctx, OrderRequest{Symbol: "KRW-BTC", Side: Buy, Amount: 10_000, Price: 1})
	if !errors.Is(err, ErrExecutionRejected) {
		t.Errorf("err = %v, want ErrExecutionRejected", err)
	}
}
