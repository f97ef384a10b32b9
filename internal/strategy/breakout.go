package strategy

import (
	"fmt"
)

// BreakoutStrategy buys when price clears the rolling high on a
// volume surge and sells when it loses the rolling low.
type BreakoutStrategy struct {
	id      string
	symbol  string
	window  int
	volMult float64
	amount  float64

	prices     []float64
	volumes    []float64
	prevSignal string
}

// NewBreakout creates a volume breakout strategy.
func NewBreakout(id, symbol string, window int, volMult, amount float64) *BreakoutStrategy {
	if window < 2 {
		window = 2
	}
	return &BreakoutStrategy{
		id:         id,
		symbol:     symbol,
		window:     window,
		volMult:    volMult,
		amount:     amount,
		prevSignal: "HOLD",
	}
}

func (s *BreakoutStrategy) ID() string { return s.id }

func (s *BreakoutStrategy) Name() string {
	return fmt.Sprintf("Breakout_%d_%s", s.window, s.symbol)
}

func (s *BreakoutStrategy) OnTick(symbol string, price, volume float64) (*Signal, error) {
	if symbol != s.symbol || price <= 0 {
		return nil, nil
	}

	var sig *Signal
	if len(s.prices) >= s.window {
		high, low := s.prices[0], s.prices[0]
		volSum := 0.0
		for i, p := range s.prices {
			if p > high {
				high = p
			}
			if p < low {
				low = p
			}
			volSum += s.volumes[i]
		}
		avgVol := volSum / float64(len(s.volumes))

		switch {
		case price > high && (s.volMult <= 0 || avgVol <= 0 || volume >= avgVol*s.volMult):
			sig = &Signal{
				Action:     "BUY",
				Symbol:     s.symbol,
				Amount:     s.amount,
				Confidence: 0.6,
				Note:       fmt.Sprintf("breakout above %.2f on volume %.2fx", high, safeRatio(volume, avgVol)),
			}
		case price < low:
			sig = &Signal{
				Action:     "SELL",
				Symbol:     s.symbol,
				Confidence: 0.6,
				Note:       fmt.Sprintf("breakdown below %.2f", low),
			}
		}
	}

	s.prices = append(s.prices, price)
	s.volumes = append(s.volumes, volume)
	if len(s.prices) > s.window {
		s.prices = s.prices[1:]
		s.volumes = s.volumes[1:]
	}

	if sig != nil && sig.Action != s.prevSignal {
		s.prevSignal = sig.Action
		return sig, nil
	}
	return nil, nil
}

func safeRatio(a, b float64) float64 {
	if b <= 0 {
		return 0
	}
	return a / b
}
