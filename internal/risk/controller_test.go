package risk

import (
	"testing"

	"spot-trader/pkg/db"
)

func TestDailyLimitCheck(t *testing.T) {
	cases := []struct {
		name    string
		initial float64
		total   float64
		allowed bool
	}{
		{"flat day", 1_000_000, 1_000_000, true},
		{"profit below limit", 1_000_000, 1_049_999, true},
		{"profit at limit", 1_000_000, 1_050_000, false},
		{"profit above limit", 1_000_000, 1_100_000, false},
		{"loss below limit", 1_000_000, 970_001, true},
		{"loss at limit", 1_000_000, 970_000, false},
		{"loss above limit", 1_000_000, 900_000, false},
		{"zero initial skips check", 0, 500_000, true},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			c := NewInMemory(DefaultConfig())
			dec := c.DailyLimitCheck(tc.initial, tc.total)
			if dec.Allowed != tc.allowed {
				t.Errorf("allowed = %v (%s), want %v", dec.Allowed, dec.Reason, tc.allowed)
			}
			if !tc.allowed && !c.GetMetrics().Halted {
				t.Error("limit breach did not set halt flag")
			}
		})
	}
}

func TestPositionCountCheck(t *testing.T) {
	c := NewInMemory(DefaultConfig())

	if dec := c.PositionCountCheck(4, true); !dec.Allowed {
		t.Errorf("4/5 new symbol rejected: %s", dec.Reason)
	}
	if dec := c.PositionCountCheck(5, true); dec.Allowed {
		t.Error("5/5 new symbol allowed")
	}
	// Adding to a held symbol is exempt from the count gate.
	if dec := c.PositionCountCheck(5, false); !dec.Allowed {
		t.Errorf("add to existing rejected: %s", dec.Reason)
	}
}

func TestPositionSizeCap(t *testing.T) {
	c := NewInMemory(DefaultConfig())

	// 30% of 1,000,000 caps a 500,000 request at 300,000.
	if got := c.PositionSizeCap(500_000, 1_000_000); got != 300_000 {
		t.Errorf("capped = %v, want 300000", got)
	}
	// Requests under the cap pass through unchanged, never expanded.
	if got := c.PositionSizeCap(100_000, 1_000_000); got != 100_000 {
		t.Errorf("uncapped = %v, want 100000", got)
	}
	// No balance means no budget at all.
	if got := c.PositionSizeCap(100_000, 0); got != 0 {
		t.Errorf("cap with zero balance = %v, want 0", got)
	}
}

func TestStopLossTriggered(t *testing.T) {
	c := NewInMemory(DefaultConfig())

	// 2% stop below an average of 100: the line sits at 98.
	if !c.StopLossTriggered(100, 98) {
		t.Error("price at the line should trigger")
	}
	if !c.StopLossTriggered(100, 97.5) {
		t.Error("price below the line should trigger")
	}
	if c.StopLossTriggered(100, 98.01) {
		t.Error("price above the line should not trigger")
	}
	if c.StopLossTriggered(0, 50) {
		t.Error("zero average must never trigger")
	}
}

func TestRecordTradeAndReset(t *testing.T) {
	c := NewInMemory(DefaultConfig())

	c.RecordTrade(10_000)
	c.RecordTrade(-4_000)
	c.RecordTrade(0)

	m := c.GetMetrics()
	if m.DailyTrades != 3 || m.DailyWins != 1 || m.DailyLosses != 1 {
		t.Errorf("metrics = %+v", m)
	}
	if m.DailyPnL != 6_000 {
		t.Errorf("pnl = %v, want 6000", m.DailyPnL)
	}

	c.ResetDaily()
	if m := c.GetMetrics(); m.DailyTrades != 0 || m.DailyPnL != 0 || m.Halted {
		t.Errorf("metrics after reset = %+v", m)
	}
}

func TestControllerPersistsConfig(t *testing.T) {
	d, err := db.New(":memory:")
	if err != nil {
		t.Fatalf("open db: %v", err)
	}
	defer d.Close()
	if err := db.ApplyMigrations(d); err != nil {
		t.Fatalf("migrate: %v", err)
	}

	// First construction inserts the default row.
	c, err := NewController(d.DB)
	if err != nil {
		t.Fatalf("new controller: %v", err)
	}
	cfg := c.GetConfig()
	if cfg.MaxPositions != 5 || cfg.HaltPolicy != HaltAllowSells {
		t.Errorf("default config = %+v", cfg)
	}

	// Second construction reads it back.
	c2, err := NewController(d.DB)
	if err != nil {
		t.Fatalf("reload controller: %v", err)
	}
	if got := c2.GetConfig(); got.StopLossRate != cfg.StopLossRate {
		t.Errorf("reloaded stop_loss_rate = %v, want %v", got.StopLossRate, cfg.StopLossRate)
	}
}

func TestRecordTradePersistsMetrics(t *testing.T) {
	d, err := db.New(":memory:")
	if err != nil {
		t.Fatalf("open db: %v", err)
	}
	defer d.Close()
	if err := db.ApplyMigrations(d); err != nil {
		t.Fatalf("migrate: %v", err)
	}

	c, err := NewController(d.DB)
	if err != nil {
		t.Fatalf("new controller: %v", err)
	}
	c.RecordTrade(12_345)
	c.RecordTrade(-345)

	var pnl float64
	var trades int
	if err := d.DB.QueryRow(`SELECT daily_pnl, daily_trades FROM risk_metrics`).Scan(&pnl, &trades); err != nil {
		t.Fatalf("read metrics row: %v", err)
	}
	if pnl != 12_000 || trades != 2 {
		t.Errorf("persisted pnl=%v trades=%d, want 12000/2", pnl, trades)
	}
}
