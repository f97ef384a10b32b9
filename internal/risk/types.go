package risk

import "time"

// HaltPolicy controls what a trading halt still permits.
type HaltPolicy string

const (
	// HaltBlockAll blocks every new order while halted.
	HaltBlockAll HaltPolicy = "block-all"
	// HaltAllowSells blocks new entries but lets positions be closed,
	// so a stop loss can still cut a runaway loss.
	HaltAllowSells HaltPolicy = "allow-sells"
)

// Config holds the risk limits applied to every trading decision.
type Config struct {
	ID              int64
	Name            string
	MaxDailyProfit  float64 // daily return that stops trading, e.g. 0.05
	MaxDailyLoss    float64 // daily drawdown that stops trading, e.g. 0.03
	MaxPositions    int     // concurrently held symbols
	MaxPositionSize float64 // fraction of total balance per position
	StopLossRate    float64 // loss fraction that forces an exit
	FeeRate         float64 // exchange taker fee
	MinTradeAmount  float64 // exchange minimum order notional
	HaltPolicy      HaltPolicy
	IsActive        bool
	CreatedAt       time.Time
	UpdatedAt       time.Time
}

// DefaultConfig returns the limits used until an operator saves a row.
func DefaultConfig() Config {
	return Config{
		Name:            "default",
		MaxDailyProfit:  0.05,
		MaxDailyLoss:    0.03,
		MaxPositions:    5,
		MaxPositionSize: 0.3,
		StopLossRate:    0.02,
		FeeRate:         0.0005,
		MinTradeAmount:  50_000,
		HaltPolicy:      HaltAllowSells,
		IsActive:        true,
	}
}

// Metrics aggregates the current day's realized results.
type Metrics struct {
	DailyPnL    float64 `json:"daily_pnl"`
	DailyTrades int     `json:"daily_trades"`
	DailyWins   int     `json:"daily_wins"`
	DailyLosses int     `json:"daily_losses"`
	Halted      bool    `json:"halted"`
}

// Decision is the outcome of one risk check.
type Decision struct {
	Allowed bool
	Reason  string
}
