package ledger

import (
	"context"
	"errors"
	"math"
	"testing"
)

const eps = 1e-6

func almostEqual(a, b float64) bool {
	if a == b {
		return true
	}
	diff := math.Abs(a - b)
	return diff <= eps*math.Max(math.Abs(a), math.Abs(b))
}

func checkInvariant(t *testing.T, pos Position) {
	t.Helper()
	want := pos.AvgPrice * pos.Quantity
	if math.Abs(pos.TotalInvested-want) > 1e-8*math.Max(1, math.Abs(want)) {
		t.Errorf("invariant broken: invested=%v avg*qty=%v", pos.TotalInvested, want)
	}
}

func TestApplyBuyNewPosition(t *testing.T) {
	l := New(nil)
	ctx := context.Background()

	pos, err := l.ApplyBuy(ctx, "KRW-BTC", 0.01, 50_000_000, 500_000)
	if err != nil {
		t.Fatalf("buy: %v", err)
	}
	if !almostEqual(pos.AvgPrice, 50_000_000) || !almostEqual(pos.Quantity, 0.01) {
		t.Errorf("got avg=%v qty=%v", pos.AvgPrice, pos.Quantity)
	}
	checkInvariant(t, pos)
}

func TestApplyBuyAveragesUp(t *testing.T) {
	l := New(nil)
	ctx := context.Background()

	if _, err := l.ApplyBuy(ctx, "KRW-BTC", 0.01, 50_000_000, 500_000); err != nil {
		t.Fatalf("first buy: %v", err)
	}
	pos, err := l.ApplyBuy(ctx, "KRW-BTC", 0.01, 60_000_000, 600_000)
	if err != nil {
		t.Fatalf("second buy: %v", err)
	}

	if !almostEqual(pos.AvgPrice, 55_000_000) {
		t.Errorf("avg = %v, want 55000000", pos.AvgPrice)
	}
	if !almostEqual(pos.Quantity, 0.02) {
		t.Errorf("qty = %v, want 0.02", pos.Quantity)
	}
	if !almostEqual(pos.TotalInvested, 1_100_000) {
		t.Errorf("invested = %v, want 1100000", pos.TotalInvested)
	}
	checkInvariant(t, pos)
}

func TestApplyBuyRejectsBadInput(t *testing.T) {
	l := New(nil)
	ctx := context.Background()

	cases := []struct {
		name            string
		qty, price, amt float64
	}{
		{"zero qty", 0, 100, 100},
		{"negative price", 1, -5, 100},
		{"nan amount", 1, 100, math.NaN()},
		{"inf price", 1, math.Inf(1), 100},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if _, err := l.ApplyBuy(ctx, "KRW-BTC", tc.qty, tc.price, tc.amt); !errors.Is(err, ErrInvalidInput) {
				t.Errorf("err = %v, want ErrInvalidInput", err)
			}
		})
	}
	if l.Count() != 0 {
		t.Errorf("rejected buys must not mutate, count=%d", l.Count())
	}
}

func TestApplySellPartial(t *testing.T) {
	l := New(nil)
	ctx := context.Background()
	l.ApplyBuy(ctx, "KRW-ETH", 2, 4_000_000, 8_000_000)

	res, err := l.ApplySell(ctx, "KRW-ETH", 1, 4_400_000)
	if err != nil {
		t.Fatalf("sell: %v", err)
	}
	if res.FullExit {
		t.Error("partial sell reported full exit")
	}
	if !almostEqual(res.Realized, 400_000) {
		t.Errorf("realized = %v, want 400000", res.Realized)
	}
	if !almostEqual(res.Remaining.AvgPrice, 4_000_000) {
		t.Errorf("avg changed on sell: %v", res.Remaining.AvgPrice)
	}
	if !almostEqual(res.Remaining.TotalInvested, 4_000_000) {
		t.Errorf("invested = %v, want 4000000", res.Remaining.TotalInvested)
	}
	checkInvariant(t, res.Remaining)
}

func TestApplySellFullExit(t *testing.T) {
	l := New(nil)
	ctx := context.Background()
	l.ApplyBuy(ctx, "KRW-ETH", 2, 4_000_000, 8_000_000)

	res, err := l.ApplySell(ctx, "KRW-ETH", 2, 3_800_000)
	if err != nil {
		t.Fatalf("sell: %v", err)
	}
	if !res.FullExit {
		t.Error("expected full exit")
	}
	if !almostEqual(res.Realized, -400_000) {
		t.Errorf("realized = %v, want -400000", res.Realized)
	}
	if l.Has("KRW-ETH") {
		t.Error("position still present after full exit")
	}
}

func TestApplySellResidualDust(t *testing.T) {
	l := New(nil)
	ctx := context.Background()
	l.ApplyBuy(ctx, "KRW-BTC", 0.01, 50_000_000, 500_000)

	// Leaves 1e-9 behind, inside the removal tolerance.
	res, err := l.ApplySell(ctx, "KRW-BTC", 0.01-1e-9, 50_000_000)
	if err != nil {
		t.Fatalf("sell: %v", err)
	}
	if !res.FullExit {
		t.Error("dust remainder should count as full exit")
	}
	if l.Has("KRW-BTC") {
		t.Error("dust position should be removed")
	}
}

func TestApplySellInsufficient(t *testing.T) {
	l := New(nil)
	ctx := context.Background()

	if _, err := l.ApplySell(ctx, "KRW-XRP", 1, 800); !errors.Is(err, ErrInsufficientPosition) {
		t.Errorf("missing position: err = %v, want ErrInsufficientPosition", err)
	}

	l.ApplyBuy(ctx, "KRW-XRP", 10, 800, 8_000)
	if _, err := l.ApplySell(ctx, "KRW-XRP", 11, 900); !errors.Is(err, ErrInsufficientPosition) {
		t.Errorf("oversell: err = %v, want ErrInsufficientPosition", err)
	}
	pos, _ := l.Position("KRW-XRP")
	if !almostEqual(pos.Quantity, 10) {
		t.Errorf("failed sell mutated position: qty=%v", pos.Quantity)
	}
}

func TestMarketValueUsesMarkedPrice(t *testing.T) {
	l := New(nil)
	ctx := context.Background()
	l.ApplyBuy(ctx, "KRW-BTC", 0.02, 55_000_000, 1_100_000)

	l.MarkPrice("KRW-BTC", 60_000_000)
	if got := l.MarketValue(); !almostEqual(got, 1_200_000) {
		t.Errorf("market value = %v, want 1200000", got)
	}
}
