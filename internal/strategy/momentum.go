package strategy

import (
	"fmt"
)

// MomentumStrategy buys when the price has risen more than enterRate
// over the rolling window with above-average volume behind the move,
// and sells when it has dropped more than exitRate.
type MomentumStrategy struct {
	id        string
	symbol    string
	window    int
	enterRate float64
	exitRate  float64
	volMult   float64
	amount    float64

	prices     []float64
	volumes    []float64
	prevSignal string
}

// NewMomentum creates a momentum strategy spending amount per entry.
func NewMomentum(id, symbol string, window int, enterRate, exitRate, volMult, amount float64) *MomentumStrategy {
	if window < 2 {
		window = 2
	}
	return &MomentumStrategy{
		id:         id,
		symbol:     symbol,
		window:     window,
		enterRate:  enterRate,
		exitRate:   exitRate,
		volMult:    volMult,
		amount:     amount,
		prices:     make([]float64, 0, window),
		volumes:    make([]float64, 0, window),
		prevSignal: "HOLD",
	}
}

func (s *MomentumStrategy) ID() string { return s.id }

func (s *MomentumStrategy) Name() string {
	return fmt.Sprintf("Momentum_%d_%s", s.window, s.symbol)
}

func (s *MomentumStrategy) OnTick(symbol string, price, volume float64) (*Signal, error) {
	if symbol != s.symbol || price <= 0 {
		return nil, nil
	}

	s.prices = append(s.prices, price)
	s.volumes = append(s.volumes, volume)
	if len(s.prices) > s.window {
		s.prices = s.prices[1:]
		s.volumes = s.volumes[1:]
	}
	if len(s.prices) < s.window {
		return nil, nil
	}

	change := price/s.prices[0] - 1

	var sig *Signal
	switch {
	case change >= s.enterRate && s.volumeConfirms():
		sig = &Signal{
			Action:     "BUY",
			Symbol:     s.symbol,
			Amount:     s.amount,
			Confidence: clamp(change/s.enterRate, 0, 2) / 2,
			Note:       fmt.Sprintf("momentum up %.2f%% over %d ticks", change*100, s.window),
		}
	case change <= -s.exitRate:
		sig = &Signal{
			Action:     "SELL",
			Symbol:     s.symbol,
			Confidence: clamp(-change/s.exitRate, 0, 2) / 2,
			Note:       fmt.Sprintf("momentum down %.2f%% over %d ticks", change*100, s.window),
		}
	}

	if sig != nil && sig.Action != s.prevSignal {
		s.prevSignal = sig.Action
		return sig, nil
	}
	return nil, nil
}

// volumeConfirms checks the latest volume against the window average.
func (s *MomentumStrategy) volumeConfirms() bool {
	if s.volMult <= 0 {
		return true
	}
	sum := 0.0
	for _, v := range s.volumes[:len(s.volumes)-1] {
		sum += v
	}
	avg := sum / float64(len(s.volumes)-1)
	if avg <= 0 {
		return true
	}
	return s.volumes[len(s.volumes)-1] >= avg*s.volMult
}

func clamp(v, lo, hi float64) float64 {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
