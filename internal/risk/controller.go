package risk

import (
	"database/sql"
	"fmt"
	"log"
	"sync"
	"time"
)

// Controller applies the configured limits to trading decisions and
// keeps the day's realized metrics, mirrored into the risk_metrics
// table the same way the config lives in risk_configs.
type Controller struct {
	db      *sql.DB
	config  *Config
	metrics *Metrics
	mu      sync.RWMutex
}

// NewController creates a controller backed by the DB. If no active
// config row exists it inserts DefaultConfig.
func NewController(db *sql.DB) (*Controller, error) {
	c := &Controller{
		db:      db,
		metrics: &Metrics{},
	}

	if err := c.LoadConfig(); err != nil {
		if err == sql.ErrNoRows {
			def := DefaultConfig()
			if err := c.insertDefaultConfig(def); err != nil {
				return nil, fmt.Errorf("insert default risk config: %w", err)
			}
			c.config = &def
		} else {
			return nil, fmt.Errorf("load risk config: %w", err)
		}
	}

	cfg := c.GetConfig()
	log.Printf("risk: controller ready, daily +%.1f%%/-%.1f%%, stop_loss=%.1f%%, max_positions=%d",
		cfg.MaxDailyProfit*100, cfg.MaxDailyLoss*100, cfg.StopLossRate*100, cfg.MaxPositions)

	return c, nil
}

// NewInMemory creates a controller without DB persistence.
func NewInMemory(cfg Config) *Controller {
	return &Controller{
		config:  &cfg,
		metrics: &Metrics{},
	}
}

// LoadConfig loads the active risk configuration from the DB.
func (c *Controller) LoadConfig() error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.db == nil {
		cfg := DefaultConfig()
		c.config = &cfg
		return nil
	}

	cfg := &Config{}
	var (
		policy   string
		isActive int
	)
	err := c.db.QueryRow(`
		SELECT id, name, max_daily_profit, max_daily_loss, max_positions,
		       max_position_size, stop_loss_rate, fee_rate, min_trade_amount,
		       halt_policy, is_active, created_at, updated_at
		FROM risk_configs
		WHERE is_active = 1
		LIMIT 1
	`).Scan(
		&cfg.ID,
		&cfg.Name,
		&cfg.MaxDailyProfit,
		&cfg.MaxDailyLoss,
		&cfg.MaxPositions,
		&cfg.MaxPositionSize,
		&cfg.StopLossRate,
		&cfg.FeeRate,
		&cfg.MinTradeAmount,
		&policy,
		&isActive,
		&cfg.CreatedAt,
		&cfg.UpdatedAt,
	)
	if err != nil {
		return err
	}

	cfg.HaltPolicy = HaltPolicy(policy)
	if cfg.HaltPolicy != HaltBlockAll && cfg.HaltPolicy != HaltAllowSells {
		cfg.HaltPolicy = HaltAllowSells
	}
	cfg.IsActive = isActive == 1

	c.config = cfg
	return nil
}

func (c *Controller) insertDefaultConfig(cfg Config) error {
	if c.db == nil {
		c.config = &cfg
		return nil
	}
	_, err := c.db.Exec(`
		INSERT INTO risk_configs (
			name, max_daily_profit, max_daily_loss, max_positions,
			max_position_size, stop_loss_rate, fee_rate, min_trade_amount,
			halt_policy, is_active, created_at, updated_at
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, 1, CURRENT_TIMESTAMP, CURRENT_TIMESTAMP)
	`,
		cfg.Name,
		cfg.MaxDailyProfit,
		cfg.MaxDailyLoss,
		cfg.MaxPositions,
		cfg.MaxPositionSize,
		cfg.StopLossRate,
		cfg.FeeRate,
		cfg.MinTradeAmount,
		string(cfg.HaltPolicy),
	)
	return err
}

// GetConfig returns a copy of the active config.
func (c *Controller) GetConfig() Config {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return *c.config
}

// DailyLimitCheck compares today's return against the profit and loss
// limits. Both thresholds are inclusive; hitting either one halts
// trading for the rest of the day.
func (c *Controller) DailyLimitCheck(initialValue, totalValue float64) Decision {
	cfg := c.GetConfig()
	if initialValue <= 0 {
		return Decision{Allowed: true}
	}

	rate := (totalValue - initialValue) / initialValue
	switch {
	case rate >= cfg.MaxDailyProfit:
		c.setHalted(true)
		return Decision{Reason: fmt.Sprintf("daily profit limit reached: %+.2f%% >= %.2f%%", rate*100, cfg.MaxDailyProfit*100)}
	case rate <= -cfg.MaxDailyLoss:
		c.setHalted(true)
		return Decision{Reason: fmt.Sprintf("daily loss limit reached: %+.2f%% <= -%.2f%%", rate*100, cfg.MaxDailyLoss*100)}
	}
	return Decision{Allowed: true}
}

// PositionCountCheck gates a BUY that would open a new symbol. Adding
// to an already held symbol is always allowed here.
func (c *Controller) PositionCountCheck(openPositions int, newSymbol bool) Decision {
	cfg := c.GetConfig()
	if newSymbol && openPositions >= cfg.MaxPositions {
		return Decision{Reason: fmt.Sprintf("max positions reached: %d/%d", openPositions, cfg.MaxPositions)}
	}
	return Decision{Allowed: true}
}

// PositionSizeCap shrinks a requested buy amount to the per-position
// cap. It never expands a request; an empty portfolio caps to zero.
func (c *Controller) PositionSizeCap(requested, totalBalance float64) float64 {
	cfg := c.GetConfig()
	limit := totalBalance * cfg.MaxPositionSize
	if requested > limit {
		return limit
	}
	return requested
}

// StopLossTriggered reports whether price has fallen to or below the
// stop-loss line for a position entered at avgPrice.
func (c *Controller) StopLossTriggered(avgPrice, price float64) bool {
	cfg := c.GetConfig()
	if avgPrice <= 0 || cfg.StopLossRate <= 0 {
		return false
	}
	return price <= avgPrice*(1-cfg.StopLossRate)
}

// SellsAllowedWhileHalted reports whether the active halt policy still
// permits closing positions.
func (c *Controller) SellsAllowedWhileHalted() bool {
	return c.GetConfig().HaltPolicy == HaltAllowSells
}

func (c *Controller) setHalted(h bool) {
	c.mu.Lock()
	changed := c.metrics.Halted != h
	c.metrics.Halted = h
	c.mu.Unlock()

	if changed && c.db != nil {
		today := time.Now().Format("2006-01-02")
		if _, err := c.db.Exec(`
			INSERT INTO risk_metrics (date, halted) VALUES (?, ?)
			ON CONFLICT(date) DO UPDATE SET halted = ?
		`, today, boolToInt(h), boolToInt(h)); err != nil {
			log.Printf("risk: persist halt flag: %v", err)
		}
	}
}

// RecordTrade folds one realized trade into the day's metrics and
// upserts the aggregate row. netProfit must be net of fees; pass 0
// for a BUY.
func (c *Controller) RecordTrade(netProfit float64) {
	c.mu.Lock()
	c.metrics.DailyTrades++
	c.metrics.DailyPnL += netProfit
	wins, losses := 0, 0
	if netProfit > 0 {
		c.metrics.DailyWins++
		wins = 1
	} else if netProfit < 0 {
		c.metrics.DailyLosses++
		losses = 1
	}
	c.mu.Unlock()

	if c.db == nil {
		return
	}

	today := time.Now().Format("2006-01-02")
	if _, err := c.db.Exec(`
		INSERT INTO risk_metrics (date, daily_pnl, daily_trades, daily_wins, daily_losses)
		VALUES (?, ?, 1, ?, ?)
		ON CONFLICT(date) DO UPDATE SET
			daily_pnl = daily_pnl + ?,
			daily_trades = daily_trades + 1,
			daily_wins = daily_wins + ?,
			daily_losses = daily_losses + ?
	`, today, netProfit, wins, losses, netProfit, wins, losses); err != nil {
		log.Printf("risk: persist metrics: %v", err)
	}
}

// ResetDaily clears the in-memory counters and the halt flag at the
// day rollover.
func (c *Controller) ResetDaily() {
	c.mu.Lock()
	defer c.mu.Unlock()

	log.Printf("risk: daily reset, prev pnl=%.2f trades=%d wins=%d losses=%d",
		c.metrics.DailyPnL, c.metrics.DailyTrades, c.metrics.DailyWins, c.metrics.DailyLosses)

	*c.metrics = Metrics{}
}

// GetMetrics returns a snapshot of the day's metrics.
func (c *Controller) GetMetrics() Metrics {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return *c.metrics
}

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}
