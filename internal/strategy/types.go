package strategy

// Signal is a decision emitted by a strategy. Amount is the quote
// notional a BUY wants to spend; sells always close the full position
// so SELL signals leave it zero.
type Signal struct {
	StrategyID string
	Action     string // BUY, SELL, HOLD
	Symbol     string
	Amount     float64
	Confidence float64
	Note       string
}

// Strategy consumes price ticks for its symbol and occasionally emits
// a signal. Implementations keep their own rolling state and are only
// called from the engine goroutine.
type Strategy interface {
	// ID returns the unique instance ID.
	ID() string
	// Name returns the human-readable name.
	Name() string
	// OnTick processes a new price update. A nil signal means HOLD.
	OnTick(symbol string, price, volume float64) (*Signal, error)
}
