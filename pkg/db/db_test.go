package db

import (
	"context"
	"testing"
	"time"
)

func openTestDB(t *testing.T) *Database {
	t.Helper()
	d, err := New(":memory:")
	if err != nil {
		t.Fatalf("open db: %v", err)
	}
	t.Cleanup(func() { d.Close() })
	if err := ApplyMigrations(d); err != nil {
		t.Fatalf("migrate: %v", err)
	}
	return d
}

func TestApplyMigrationsIdempotent(t *testing.T) {
	d := openTestDB(t)
	if err := ApplyMigrations(d); err != nil {
		t.Fatalf("second migrate: %v", err)
	}
}

func TestTradeRoundTrip(t *testing.T) {
	d := openTestDB(t)
	ctx := context.Background()

	trades := []Trade{
		{ID: "t1", Symbol: "KRW-BTC", Side: "BUY", Qty: 0.01, Price: 50_000_000, Amount: 500_000, Fee: 250, Strategy: "momentum", CreatedAt: time.Now().Add(-time.Minute)},
		{ID: "t2", Symbol: "KRW-BTC", Side: "SELL", Qty: 0.01, Price: 51_000_000, Amount: 510_000, Fee: 255, Profit: 10_000, ProfitRate: 0.02, CreatedAt: time.Now()},
	}
	for _, tr := range trades {
		if err := d.CreateTrade(ctx, tr); err != nil {
			t.Fatalf("create trade %s: %v", tr.ID, err)
		}
	}

	got, err := d.ListTrades(ctx, 10)
	if err != nil {
		t.Fatalf("list trades: %v", err)
	}
	if len(got) != 2 {
		t.Fatalf("expected 2 trades, got %d", len(got))
	}
	if got[0].ID != "t2" {
		t.Errorf("expected newest first, got %s", got[0].ID)
	}
	if got[0].ProfitRate != 0.02 {
		t.Errorf("profit_rate = %v, want 0.02", got[0].ProfitRate)
	}
}

func TestPositionUpsertAndDelete(t *testing.T) {
	d := openTestDB(t)
	ctx := context.Background()

	p := Position{Symbol: "KRW-ETH", Qty: 0.5, AvgPrice: 4_000_000, TotalInvested: 2_000_000, EntryTime: time.Now()}
	if err := d.UpsertPosition(ctx, p); err != nil {
		t.Fatalf("upsert: %v", err)
	}

	// Upsert again with changed qty; must replace, not duplicate.
	p.Qty = 0.75
	p.TotalInvested = 3_000_000
	if err := d.UpsertPosition(ctx, p); err != nil {
		t.Fatalf("upsert again: %v", err)
	}

	list, err := d.ListPositions(ctx)
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(list) != 1 {
		t.Fatalf("expected 1 position, got %d", len(list))
	}
	if list[0].Qty != 0.75 {
		t.Errorf("qty = %v, want 0.75", list[0].Qty)
	}

	if err := d.DeletePosition(ctx, "KRW-ETH"); err != nil {
		t.Fatalf("delete: %v", err)
	}
	list, err = d.ListPositions(ctx)
	if err != nil {
		t.Fatalf("list after delete: %v", err)
	}
	if len(list) != 0 {
		t.Fatalf("expected empty, got %d", len(list))
	}
}

func TestStrategySync(t *testing.T) {
	d := openTestDB(t)
	ctx := context.Background()

	s := StrategyRow{ID: "mom-btc", Name: "BTC momentum", StrategyType: "momentum", Symbol: "KRW-BTC", Params: `{"lookback":20}`, IsActive: true}
	if err := d.UpsertStrategy(ctx, s); err != nil {
		t.Fatalf("upsert: %v", err)
	}
	s.IsActive = false
	if err := d.UpsertStrategy(ctx, s); err != nil {
		t.Fatalf("upsert update: %v", err)
	}

	list, err := d.ListStrategies(ctx)
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(list) != 1 {
		t.Fatalf("expected 1 strategy, got %d", len(list))
	}
	if list[0].IsActive {
		t.Error("expected is_active=false after update")
	}
}
