package db

import (
	"context"
	"database/sql"
	"time"
)

// Trade is an executed trade row. Profit and ProfitRate are only
// meaningful for SELL rows.
type Trade struct {
	ID         string
	Symbol     string
	Side       string
	Qty        float64
	Price      float64
	Amount     float64
	Fee        float64
	Profit     float64
	ProfitRate float64
	Strategy   string
	CreatedAt  time.Time
}

// Position mirrors one ledger entry.
type Position struct {
	Symbol        string
	Qty           float64
	AvgPrice      float64
	TotalInvested float64
	EntryTime     time.Time
	UpdatedAt     time.Time
}

// StrategyRow is a configured strategy synced from the YAML file.
type StrategyRow struct {
	ID           string
	Name         string
	StrategyType string
	Symbol       string
	Params       string
	IsActive     bool
	CreatedAt    time.Time
	UpdatedAt    time.Time
}

// CreateTrade inserts a new trade row.
func (d *Database) CreateTrade(ctx context.Context, t Trade) error {
	var created any
	if !t.CreatedAt.IsZero() {
		created = t.CreatedAt
	}
	_, err := d.DB.ExecContext(ctx, `
		INSERT INTO trades (
			id, symbol, side, qty, price, amount, fee, profit, profit_rate, strategy, created_at
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, COALESCE(?, CURRENT_TIMESTAMP))
	`,
		t.ID, t.Symbol, t.Side, t.Qty, t.Price, t.Amount, t.Fee, t.Profit, t.ProfitRate, t.Strategy, created,
	)
	return err
}

// ListTrades returns the most recent trades, newest first.
func (d *Database) ListTrades(ctx context.Context, limit int) ([]Trade, error) {
	if limit <= 0 {
		limit = 50
	}
	rows, err := d.DB.QueryContext(ctx, `
		SELECT id, symbol, side, qty, price, amount, fee, profit, profit_rate, strategy, created_at
		FROM trades ORDER BY created_at DESC, id DESC LIMIT ?
	`, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var res []Trade
	for rows.Next() {
		var (
			t        Trade
			strategy sql.NullString
		)
		if err := rows.Scan(&t.ID, &t.Symbol, &t.Side, &t.Qty, &t.Price, &t.Amount, &t.Fee, &t.Profit, &t.ProfitRate, &strategy, &t.CreatedAt); err != nil {
			return nil, err
		}
		t.Strategy = strategy.String
		res = append(res, t)
	}
	return res, rows.Err()
}

// UpsertPosition stores the latest ledger entry for a symbol.
func (d *Database) UpsertPosition(ctx context.Context, p Position) error {
	_, err := d.DB.ExecContext(ctx, `
		INSERT INTO positions (symbol, qty, avg_price, total_invested, entry_time, updated_at)
		VALUES (?, ?, ?, ?, ?, CURRENT_TIMESTAMP)
		ON CONFLICT(symbol) DO UPDATE SET
			qty = excluded.qty,
			avg_price = excluded.avg_price,
			total_invested = excluded.total_invested,
			entry_time = excluded.entry_time,
			updated_at = CURRENT_TIMESTAMP
	`, p.Symbol, p.Qty, p.AvgPrice, p.TotalInvested, p.EntryTime)
	return err
}

// DeletePosition removes a fully exited symbol.
func (d *Database) DeletePosition(ctx context.Context, symbol string) error {
	_, err := d.DB.ExecContext(ctx, `DELETE FROM positions WHERE symbol = ?`, symbol)
	return err
}

// ListPositions returns all persisted positions.
func (d *Database) ListPositions(ctx context.Context) ([]Position, error) {
	rows, err := d.DB.QueryContext(ctx, `
		SELECT symbol, qty, avg_price, total_invested, entry_time, updated_at
		FROM positions`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var res []Position
	for rows.Next() {
		var (
			p     Position
			entry sql.NullTime
		)
		if err := rows.Scan(&p.Symbol, &p.Qty, &p.AvgPrice, &p.TotalInvested, &entry, &p.UpdatedAt); err != nil {
			return nil, err
		}
		p.EntryTime = entry.Time
		res = append(res, p)
	}
	return res, rows.Err()
}

// UpsertStrategy syncs one strategy definition into the DB.
func (d *Database) UpsertStrategy(ctx context.Context, s StrategyRow) error {
	_, err := d.DB.ExecContext(ctx, `
		INSERT INTO strategies (id, name, strategy_type, symbol, params, is_active, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, CURRENT_TIMESTAMP, CURRENT_TIMESTAMP)
		ON CONFLICT(id) DO UPDATE SET
			name = excluded.name,
			strategy_type = excluded.strategy_type,
			symbol = excluded.symbol,
			params = excluded.params,
			is_active = excluded.is_active,
			updated_at = CURRENT_TIMESTAMP
	`, s.ID, s.Name, s.StrategyType, s.Symbol, s.Params, s.IsActive)
	return err
}

// ListStrategies returns all strategy rows.
func (d *Database) ListStrategies(ctx context.Context) ([]StrategyRow, error) {
	rows, err := d.DB.QueryContext(ctx, `
		SELECT id, name, strategy_type, symbol, params, is_active, created_at, updated_at
		FROM strategies ORDER BY created_at`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var res []StrategyRow
	for rows.Next() {
		var s StrategyRow
		if err := rows.Scan(&s.ID, &s.Name, &s.StrategyType, &s.Symbol, &s.Params, &s.IsActive, &s.CreatedAt, &s.UpdatedAt); err != nil {
			return nil, err
		}
		res = append(res, s)
	}
	return res, rows.Err()
}
