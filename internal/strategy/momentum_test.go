package strategy

import (
	"testing"
)

func feed(t *testing.T, s Strategy, symbol string, prices []float64, volume float64) *Signal {
	t.Helper()
	var last *Signal
	for _, p := range prices {
		sig, err := s.OnTick(symbol, p, volume)
		if err != nil {
			t.Fatalf("tick: %v", err)
		}
		if sig != nil {
			last = sig
		}
	}
	return last
}

func TestMomentumBuysOnRise(t *testing.T) {
	s := NewMomentum("m1", "KRW-BTC", 5, 0.01, 0.01, 0, 100_000)

	prices := []float64{100, 100.2, 100.4, 100.8, 101.5}
	sig := feed(t, s, "KRW-BTC", prices, 1)
	if sig == nil || sig.Action != "BUY" {
		t.Fatalf("signal = %+v, want BUY", sig)
	}
	if sig.Amount != 100_000 {
		t.Errorf("amount = %v, want 100000", sig.Amount)
	}
}

func TestMomentumSellsOnDrop(t *testing.T) {
	s := NewMomentum("m1", "KRW-BTC", 5, 0.01, 0.01, 0, 100_000)

	prices := []float64{100, 99.9, 99.5, 99.2, 98.8}
	sig := feed(t, s, "KRW-BTC", prices, 1)
	if sig == nil || sig.Action != "SELL" {
		t.Fatalf("signal = %+v, want SELL", sig)
	}
}

func TestMomentumDoesNotRepeatSignal(t *testing.T) {
	s := NewMomentum("m1", "KRW-BTC", 3, 0.01, 0.01, 0, 100_000)

	if sig := feed(t, s, "KRW-BTC", []float64{100, 101, 102}, 1); sig == nil || sig.Action != "BUY" {
		t.Fatalf("first signal = %+v, want BUY", sig)
	}
	// Still rising: the BUY must not repeat.
	sig, err := s.OnTick("KRW-BTC", 103, 1)
	if err != nil {
		t.Fatalf("tick: %v", err)
	}
	if sig != nil {
		t.Errorf("repeated signal: %+v", sig)
	}
}

func TestMomentumIgnoresOtherSymbols(t *testing.T) {
	s := NewMomentum("m1", "KRW-BTC", 3, 0.01, 0.01, 0, 100_000)
	if sig := feed(t, s, "KRW-ETH", []float64{100, 105, 110}, 1); sig != nil {
		t.Errorf("signal for foreign symbol: %+v", sig)
	}
}

func TestMomentumRequiresVolumeConfirmation(t *testing.T) {
	s := NewMomentum("m1", "KRW-BTC", 3, 0.01, 0.01, 2.0, 100_000)

	// Rising prices on flat volume: no entry.
	if sig := feed(t, s, "KRW-BTC", []float64{100, 101, 102}, 1); sig != nil {
		t.Fatalf("entry without volume surge: %+v", sig)
	}
	// Next tick doubles the volume and keeps the trend.
	sig, err := s.OnTick("KRW-BTC", 103, 5)
	if err != nil {
		t.Fatalf("tick: %v", err)
	}
	if sig == nil || sig.Action != "BUY" {
		t.Fatalf("signal = %+v, want BUY on volume surge", sig)
	}
}

func TestBreakoutBuysAboveRollingHigh(t *testing.T) {
	s := NewBreakout("b1", "KRW-ETH", 4, 0, 200_000)

	prices := []float64{100, 102, 101, 99}
	if sig := feed(t, s, "KRW-ETH", prices, 1); sig != nil {
		t.Fatalf("premature signal: %+v", sig)
	}
	sig, err := s.OnTick("KRW-ETH", 103, 1)
	if err != nil {
		t.Fatalf("tick: %v", err)
	}
	if sig == nil || sig.Action != "BUY" {
		t.Fatalf("signal = %+v, want BUY above rolling high", sig)
	}
}

func TestBreakoutSellsBelowRollingLow(t *testing.T) {
	s := NewBreakout("b1", "KRW-ETH", 4, 0, 200_000)

	feed(t, s, "KRW-ETH", []float64{100, 102, 101, 99}, 1)
	sig, err := s.OnTick("KRW-ETH", 98, 1)
	if err != nil {
		t.Fatalf("tick: %v", err)
	}
	if sig == nil || sig.Action != "SELL" {
		t.Fatalf("signal = %+v, want SELL below rolling low", sig)
	}
}

func TestBuildAllSkipsInactive(t *testing.T) {
	configs := []Config{
		{ID: "a", Type: "momentum", Symbol: "KRW-BTC", Amount: 100_000, Active: true},
		{ID: "b", Type: "breakout", Symbol: "KRW-ETH", Amount: 100_000, Active: false},
	}
	built, err := BuildAll(configs)
	if err != nil {
		t.Fatalf("build: %v", err)
	}
	if len(built) != 1 || built[0].ID() != "a" {
		t.Errorf("built = %d strategies", len(built))
	}
}

func TestBuildUnknownType(t *testing.T) {
	if _, err := Build(Config{ID: "x", Type: "martingale", Symbol: "KRW-BTC"}); err == nil {
		t.Error("expected error for unknown type")
	}
}
