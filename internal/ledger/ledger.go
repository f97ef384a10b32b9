package ledger

import (
	"context"
	"errors"
	"fmt"
	"log"
	"math"
	"sync"
	"time"

	"spot-trader/pkg/db"
)

var (
	// ErrInvalidInput rejects non-positive or non-finite quantities,
	// prices and amounts before any state is touched.
	ErrInvalidInput = errors.New("invalid trade input")
	// ErrInsufficientPosition rejects sells against a missing or too
	// small position.
	ErrInsufficientPosition = errors.New("insufficient position")
	// ErrNoPosition signals a profit query against a symbol the ledger
	// does not hold.
	ErrNoPosition = errors.New("no position")
)

// epsilon is the tolerance for treating a residual quantity as zero.
const epsilon = 1e-8

// Position is one weighted-average-cost holding.
type Position struct {
	Symbol        string    `json:"symbol"`
	Quantity      float64   `json:"quantity"`
	AvgPrice      float64   `json:"avg_price"`
	TotalInvested float64   `json:"total_invested"`
	EntryTime     time.Time `json:"entry_time"`
	// RefPrice is the last marked market price, used as a fallback
	// anchor when the primary profit rate fails the sanity bound.
	RefPrice float64 `json:"ref_price"`
}

// SellResult reports what a sell did to the ledger.
type SellResult struct {
	Realized  float64
	FullExit  bool
	Remaining Position
}

// Ledger tracks open positions in memory and mirrors every mutation
// into the positions table. All writes go through the coordinator, so
// the lock only guards concurrent API reads.
type Ledger struct {
	mu        sync.RWMutex
	positions map[string]*Position
	store     *db.Database
}

// New creates a ledger. store may be nil for tests.
func New(store *db.Database) *Ledger {
	return &Ledger{
		positions: make(map[string]*Position),
		store:     store,
	}
}

// Load seeds the ledger from persisted positions at startup.
func (l *Ledger) Load(ctx context.Context) error {
	if l.store == nil {
		return nil
	}
	rows, err := l.store.ListPositions(ctx)
	if err != nil {
		return fmt.Errorf("load positions: %w", err)
	}
	l.mu.Lock()
	defer l.mu.Unlock()
	for _, r := range rows {
		l.positions[r.Symbol] = &Position{
			Symbol:        r.Symbol,
			Quantity:      r.Qty,
			AvgPrice:      r.AvgPrice,
			TotalInvested: r.TotalInvested,
			EntryTime:     r.EntryTime,
		}
	}
	return nil
}

func validAmount(v float64) bool {
	return v > 0 && !math.IsNaN(v) && !math.IsInf(v, 0)
}

// ApplyBuy folds a filled buy into the position for symbol. amount is
// the invested quote amount net of fees.
func (l *Ledger) ApplyBuy(ctx context.Context, symbol string, qty, price, amount float64) (Position, error) {
	if symbol == "" || !validAmount(qty) || !validAmount(price) || !validAmount(amount) {
		return Position{}, fmt.Errorf("%w: buy %s qty=%v price=%v amount=%v", ErrInvalidInput, symbol, qty, price, amount)
	}

	l.mu.Lock()
	defer l.mu.Unlock()

	pos, ok := l.positions[symbol]
	if !ok {
		pos = &Position{
			Symbol:        symbol,
			Quantity:      qty,
			AvgPrice:      price,
			TotalInvested: amount,
			EntryTime:     time.Now(),
			RefPrice:      price,
		}
		l.positions[symbol] = pos
	} else {
		newQty := pos.Quantity + qty
		pos.AvgPrice = (pos.TotalInvested + amount) / newQty
		pos.Quantity = newQty
		pos.TotalInvested += amount
	}

	l.persist(ctx, pos)
	return *pos, nil
}

// ApplySell reduces the position for symbol by qty at currentPrice and
// returns the realized profit. The average price never moves on a sell;
// a remainder within epsilon of zero removes the position entirely.
func (l *Ledger) ApplySell(ctx context.Context, symbol string, qty, currentPrice float64) (SellResult, error) {
	if symbol == "" || !validAmount(qty) || !validAmount(currentPrice) {
		return SellResult{}, fmt.Errorf("%w: sell %s qty=%v price=%v", ErrInvalidInput, symbol, qty, currentPrice)
	}

	l.mu.Lock()
	defer l.mu.Unlock()

	pos, ok := l.positions[symbol]
	if !ok {
		return SellResult{}, fmt.Errorf("%w: %s", ErrInsufficientPosition, symbol)
	}
	if qty > pos.Quantity+epsilon {
		return SellResult{}, fmt.Errorf("%w: %s have %v want %v", ErrInsufficientPosition, symbol, pos.Quantity, qty)
	}
	if qty > pos.Quantity {
		qty = pos.Quantity
	}

	realized := (currentPrice - pos.AvgPrice) * qty
	pos.Quantity -= qty
	pos.TotalInvested -= pos.AvgPrice * qty
	pos.RefPrice = currentPrice

	res := SellResult{Realized: realized}
	if pos.Quantity <= epsilon {
		res.FullExit = true
		delete(l.positions, symbol)
		if l.store != nil {
			if err := l.store.DeletePosition(ctx, symbol); err != nil {
				log.Printf("ledger: delete position %s: %v", symbol, err)
			}
		}
	} else {
		res.Remaining = *pos
		l.persist(ctx, pos)
	}
	return res, nil
}

// MarkPrice records the latest market price for symbol so profit
// fallbacks have a recent anchor. Unknown symbols are ignored.
func (l *Ledger) MarkPrice(symbol string, price float64) {
	if !validAmount(price) {
		return
	}
	l.mu.Lock()
	if pos, ok := l.positions[symbol]; ok {
		pos.RefPrice = price
	}
	l.mu.Unlock()
}

// Position returns a copy of the position for symbol.
func (l *Ledger) Position(symbol string) (Position, bool) {
	l.mu.RLock()
	defer l.mu.RUnlock()
	pos, ok := l.positions[symbol]
	if !ok {
		return Position{}, false
	}
	return *pos, true
}

// Positions snapshots all open positions.
func (l *Ledger) Positions() []Position {
	l.mu.RLock()
	defer l.mu.RUnlock()
	res := make([]Position, 0, len(l.positions))
	for _, pos := range l.positions {
		res = append(res, *pos)
	}
	return res
}

// Count returns the number of open positions.
func (l *Ledger) Count() int {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return len(l.positions)
}

// Has reports whether symbol is currently held.
func (l *Ledger) Has(symbol string) bool {
	l.mu.RLock()
	defer l.mu.RUnlock()
	_, ok := l.positions[symbol]
	return ok
}

// MarketValue sums quantity times last marked price over all
// positions, falling back to the average price before the first mark.
func (l *Ledger) MarketValue() float64 {
	l.mu.RLock()
	defer l.mu.RUnlock()
	total := 0.0
	for _, pos := range l.positions {
		price := pos.RefPrice
		if price <= 0 {
			price = pos.AvgPrice
		}
		total += pos.Quantity * price
	}
	return total
}

// persist mirrors one position into the DB; callers hold the lock.
func (l *Ledger) persist(ctx context.Context, pos *Position) {
	if l.store == nil {
		return
	}
	err := l.store.UpsertPosition(ctx, db.Position{
		Symbol:        pos.Symbol,
		Qty:           pos.Quantity,
		AvgPrice:      pos.AvgPrice,
		TotalInvested: pos.TotalInvested,
		EntryTime:     pos.EntryTime,
	})
	if err != nil {
		log.Printf("ledger: persist position %s: %v", pos.Symbol, err)
	}
}
