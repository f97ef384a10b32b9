package ledger

import (
	"fmt"
	"math"
)

// maxSaneRate bounds a believable single-position profit rate. Rates
// beyond 300% on a spot position almost always mean a corrupted average
// price or a bad tick, not an actual gain.
const maxSaneRate = 3.0

// Rate is a profit rate with a plausibility verdict. Suspect values
// are fallback estimates and must be surfaced, never silently used.
type Rate struct {
	Value   float64
	Suspect bool
}

// ProfitRate computes the unrealized profit rate of the position for
// symbol at currentPrice. When the primary rate exceeds the sanity
// bound it recomputes from the last marked reference price and flags
// the result as suspect.
func (l *Ledger) ProfitRate(symbol string, currentPrice float64) (Rate, error) {
	l.mu.RLock()
	pos, ok := l.positions[symbol]
	if !ok || pos.AvgPrice <= 0 {
		l.mu.RUnlock()
		return Rate{}, fmt.Errorf("%w: %s", ErrNoPosition, symbol)
	}
	avg := pos.AvgPrice
	ref := pos.RefPrice
	l.mu.RUnlock()

	if !validAmount(currentPrice) {
		return Rate{}, fmt.Errorf("%w: price=%v", ErrInvalidInput, currentPrice)
	}

	rate := (currentPrice - avg) / avg
	if math.Abs(rate) <= maxSaneRate {
		return Rate{Value: rate}, nil
	}

	if ref > 0 {
		return Rate{Value: (currentPrice - ref) / ref, Suspect: true}, nil
	}
	return Rate{Value: rate, Suspect: true}, nil
}
