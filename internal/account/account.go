package account

import (
	"errors"
	"fmt"
	"log"
	"sync"
	"time"
)

// ErrInsufficientCash rejects a debit larger than the cash balance.
var ErrInsufficientCash = errors.New("insufficient cash")

// Snapshot is a point-in-time read of the account.
type Snapshot struct {
	InitialValue  float64   `json:"initial_value"`
	CashBalance   float64   `json:"cash_balance"`
	RealizedToday float64   `json:"realized_today"`
	TradingHalted bool      `json:"trading_halted"`
	TradingDay    string    `json:"trading_day"`
	LastRollover  time.Time `json:"last_rollover"`
}

// Account tracks intraday capital: the day-start portfolio value, free
// cash, realized profit since rollover and the halt flag.
type Account struct {
	mu            sync.RWMutex
	initialValue  float64
	cash          float64
	realizedToday float64
	halted        bool
	tradingDay    string
	lastRollover  time.Time
}

// New creates an account holding initialCash, with the day-start value
// anchored to it.
func New(initialCash float64) *Account {
	now := time.Now()
	return &Account{
		initialValue: initialCash,
		cash:         initialCash,
		tradingDay:   now.Format("2006-01-02"),
		lastRollover: now,
	}
}

// Snapshot returns a consistent copy of the account state.
func (a *Account) Snapshot() Snapshot {
	a.mu.RLock()
	defer a.mu.RUnlock()
	return Snapshot{
		InitialValue:  a.initialValue,
		CashBalance:   a.cash,
		RealizedToday: a.realizedToday,
		TradingHalted: a.halted,
		TradingDay:    a.tradingDay,
		LastRollover:  a.lastRollover,
	}
}

// Cash returns the free cash balance.
func (a *Account) Cash() float64 {
	a.mu.RLock()
	defer a.mu.RUnlock()
	return a.cash
}

// InitialValue returns the day-start portfolio value.
func (a *Account) InitialValue() float64 {
	a.mu.RLock()
	defer a.mu.RUnlock()
	return a.initialValue
}

// Debit removes amount from cash, failing without mutation when cash
// would go negative.
func (a *Account) Debit(amount float64) error {
	a.mu.Lock()
	defer a.mu.Unlock()
	if amount > a.cash {
		return fmt.Errorf("%w: need %.2f, have %.2f", ErrInsufficientCash, amount, a.cash)
	}
	a.cash -= amount
	return nil
}

// Credit adds amount to cash.
func (a *Account) Credit(amount float64) {
	a.mu.Lock()
	a.cash += amount
	a.mu.Unlock()
}

// AddRealized accumulates realized profit for the current day.
func (a *Account) AddRealized(profit float64) {
	a.mu.Lock()
	a.realizedToday += profit
	a.mu.Unlock()
}

// Halt latches the trading-halted flag until the next rollover.
func (a *Account) Halt() {
	a.mu.Lock()
	a.halted = true
	a.mu.Unlock()
}

// Halted reports the halt flag.
func (a *Account) Halted() bool {
	a.mu.RLock()
	defer a.mu.RUnlock()
	return a.halted
}

// MaybeRollover transitions to a new trading day when the wall clock
// has crossed a calendar date. The current total portfolio value
// becomes the new day-start value and realized profit and the halt
// flag reset together. Returns true when a rollover happened.
func (a *Account) MaybeRollover(now time.Time, totalValue float64) bool {
	day := now.Format("2006-01-02")

	a.mu.Lock()
	defer a.mu.Unlock()
	if day == a.tradingDay {
		return false
	}

	log.Printf("account: rollover %s -> %s, day-start value %.2f (realized %.2f)",
		a.tradingDay, day, totalValue, a.realizedToday)

	a.tradingDay = day
	a.initialValue = totalValue
	a.realizedToday = 0
	a.halted = false
	a.lastRollover = now
	return true
}
