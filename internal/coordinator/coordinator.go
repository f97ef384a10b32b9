package coordinator

import (
	"context"
	"errors"
	"fmt"
	"log"
	"sync"
	"time"

	"github.com/google/uuid"

	"spot-trader/internal/account"
	"spot-trader/internal/events"
	"spot-trader/internal/gateway"
	"spot-trader/internal/ledger"
	"spot-trader/internal/market"
	"spot-trader/internal/monitor"
	"spot-trader/internal/risk"
	"spot-trader/internal/strategy"
	"spot-trader/pkg/cache"
	"spot-trader/pkg/db"
)

// State names the stage a decision cycle ended in.
type State string

const (
	StateReceived      State = "RECEIVED_SIGNAL"
	StateRiskChecked   State = "RISK_CHECKED"
	StateExecuted      State = "EXECUTED"
	StateLedgerUpdated State = "LEDGER_UPDATED"
	StateRecorded      State = "RECORDED"
	StateRejected      State = "REJECTED"
	StateRolledBack    State = "ROLLED_BACK"
)

// Outcome reports how one signal was handled.
type Outcome struct {
	State  State
	Signal strategy.Signal
	Reason string
	Trade  *db.Trade
}

// Coordinator owns the serialized decision cycle: day rollover, the
// stop-loss sweep, risk gating, execution and applying fills to the
// ledger and account. Every mutation happens under one mutex; the API
// reads snapshots from the underlying components.
type Coordinator struct {
	mu sync.Mutex

	ledger   *ledger.Ledger
	account  *account.Account
	riskCtl  *risk.Controller
	gw       gateway.Gateway
	store    *db.Database
	bus      *events.Bus
	prices   *cache.PriceCache
	metrics  *monitor.SystemMetrics
	clock    func() time.Time
}

// New wires a coordinator. store and metrics may be nil in tests.
func New(l *ledger.Ledger, acct *account.Account, riskCtl *risk.Controller, gw gateway.Gateway, store *db.Database, bus *events.Bus, prices *cache.PriceCache, metrics *monitor.SystemMetrics) *Coordinator {
	return &Coordinator{
		ledger:  l,
		account: acct,
		riskCtl: riskCtl,
		gw:      gw,
		store:   store,
		bus:     bus,
		prices:  prices,
		metrics: metrics,
		clock:   time.Now,
	}
}

// Run consumes price ticks and strategy signals from the bus until ctx
// is cancelled. sweepInterval paces stop-loss sweeps in quiet markets;
// every handled signal also runs one.
func (c *Coordinator) Run(ctx context.Context, sweepInterval time.Duration) {
	ticks, unsubTicks := c.bus.Subscribe(events.EventPriceTick, 512)
	signals, unsubSignals := c.bus.Subscribe(events.EventStrategySignal, 64)

	if sweepInterval <= 0 {
		sweepInterval = 10 * time.Second
	}
	ticker := time.NewTicker(sweepInterval)

	go func() {
		defer unsubTicks()
		defer unsubSignals()
		defer ticker.Stop()

		for {
			select {
			case <-ctx.Done():
				return
			case msg, ok := <-ticks:
				if !ok {
					return
				}
				if tick, ok := msg.(market.Tick); ok {
					c.OnTick(tick.Symbol, tick.Price)
				}
			case msg, ok := <-signals:
				if !ok {
					return
				}
				if sig, ok := msg.(strategy.Signal); ok {
					c.HandleSignal(ctx, sig)
				}
			case <-ticker.C:
				c.RunMaintenance(ctx)
			}
		}
	}()
}

// OnTick records a fresh price. Cheap enough to run on every frame.
func (c *Coordinator) OnTick(symbol string, price float64) {
	if price <= 0 {
		return
	}
	c.prices.Set(symbol, price)
	c.ledger.MarkPrice(symbol, price)
	if c.metrics != nil {
		c.metrics.IncrementTicks()
	}
}

// RunMaintenance runs one cycle without a signal: rollover check,
// stop-loss sweep and the daily limit check.
func (c *Coordinator) RunMaintenance(ctx context.Context) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.beginCycle(ctx)
}

// HandleSignal runs one full decision cycle for a strategy signal.
func (c *Coordinator) HandleSignal(ctx context.Context, sig strategy.Signal) Outcome {
	c.mu.Lock()
	defer c.mu.Unlock()

	timer := monitor.NewTimer(c.cycleHistogram())
	defer timer.Stop()
	if c.metrics != nil {
		c.metrics.IncrementCycles()
	}

	// Housekeeping first so the signal is judged against today's
	// limits, and a pending stop loss beats any strategy opinion.
	c.beginCycle(ctx)

	switch sig.Action {
	case "BUY":
		return c.processBuy(ctx, sig)
	case "SELL":
		return c.processSell(ctx, sig)
	case "HOLD":
		return Outcome{State: StateReceived, Signal: sig, Reason: "hold"}
	default:
		return c.reject(sig, fmt.Sprintf("unknown action %q", sig.Action))
	}
}

func (c *Coordinator) cycleHistogram() *monitor.LatencyHistogram {
	if c.metrics == nil {
		return nil
	}
	return c.metrics.CycleLatency
}

// beginCycle performs the per-cycle housekeeping. Callers hold c.mu.
func (c *Coordinator) beginCycle(ctx context.Context) {
	now := c.clock()
	totalValue := c.account.Cash() + c.ledger.MarketValue()

	if c.account.MaybeRollover(now, totalValue) {
		c.riskCtl.ResetDaily()
		c.publish(events.EventRiskResume, c.account.Snapshot())
	}

	c.sweepStopLosses(ctx)

	if !c.account.Halted() {
		totalValue = c.account.Cash() + c.ledger.MarketValue()
		if dec := c.riskCtl.DailyLimitCheck(c.account.InitialValue(), totalValue); !dec.Allowed {
			c.account.Halt()
			log.Printf("coordinator: trading halted: %s", dec.Reason)
			c.publish(events.EventRiskHalt, dec.Reason)
		}
	}
}

// sweepStopLosses force-exits every position trading at or below its
// stop-loss line. Runs before signals so a breached stop cannot be
// outvoted by a strategy.
func (c *Coordinator) sweepStopLosses(ctx context.Context) {
	if c.account.Halted() && !c.riskCtl.SellsAllowedWhileHalted() {
		return
	}

	for _, pos := range c.ledger.Positions() {
		price, ok := c.prices.Get(pos.Symbol)
		if !ok {
			continue
		}
		if !c.riskCtl.StopLossTriggered(pos.AvgPrice, price) {
			continue
		}

		log.Printf("coordinator: stop loss %s avg=%.2f price=%.2f", pos.Symbol, pos.AvgPrice, price)
		c.publish(events.EventStopLoss, pos)

		sig := strategy.Signal{
			StrategyID: "stop-loss",
			Action:     "SELL",
			Symbol:     pos.Symbol,
			Note:       fmt.Sprintf("stop loss at %.2f (avg %.2f)", price, pos.AvgPrice),
		}
		out := c.executeSell(ctx, sig, pos, price)
		if out.State != StateRecorded {
			log.Printf("coordinator: stop loss exit %s failed: %s", pos.Symbol, out.Reason)
		}
	}
}

func (c *Coordinator) processBuy(ctx context.Context, sig strategy.Signal) Outcome {
	if c.account.Halted() {
		// A halt gating a buy is an expected outcome, not an error.
		return c.reject(sig, "trading halted for the day")
	}

	newSymbol := !c.ledger.Has(sig.Symbol)
	if dec := c.riskCtl.PositionCountCheck(c.ledger.Count(), newSymbol); !dec.Allowed {
		return c.reject(sig, dec.Reason)
	}

	price, ok := c.prices.Get(sig.Symbol)
	if !ok {
		return c.reject(sig, "no market price for "+sig.Symbol)
	}

	totalValue := c.account.Cash() + c.ledger.MarketValue()
	amount := c.riskCtl.PositionSizeCap(sig.Amount, totalValue)
	if amount < c.riskCtl.GetConfig().MinTradeAmount {
		return c.reject(sig, fmt.Sprintf("amount %.0f below minimum trade amount", amount))
	}
	if amount > c.account.Cash() {
		return c.reject(sig, fmt.Sprintf("insufficient cash: %.0f < %.0f", c.account.Cash(), amount))
	}

	fill, err := c.gw.SubmitOrder(ctx, gateway.OrderRequest{
		Symbol: sig.Symbol,
		Side:   gateway.Buy,
		Amount: amount,
		Price:  price,
	})
	if err != nil {
		return c.executionFailed(sig, err)
	}

	if err := c.account.Debit(fill.Amount); err != nil {
		// The venue accepted more than we could cover. Should be
		// impossible after the cash gate; surface loudly.
		log.Printf("coordinator: SUSPECT buy fill exceeds cash for %s: %v", sig.Symbol, err)
		return Outcome{State: StateRolledBack, Signal: sig, Reason: err.Error()}
	}

	// Fees never enter the cost basis.
	invested := fill.Amount - fill.Fee
	pos, err := c.ledger.ApplyBuy(ctx, sig.Symbol, fill.Quantity, fill.Price, invested)
	if err != nil {
		c.account.Credit(fill.Amount)
		log.Printf("coordinator: rolled back buy %s: %v", sig.Symbol, err)
		return Outcome{State: StateRolledBack, Signal: sig, Reason: err.Error()}
	}
	c.publish(events.EventPositionChange, pos)

	trade := db.Trade{
		ID:       uuid.NewString(),
		Symbol:   sig.Symbol,
		Side:     "BUY",
		Qty:      fill.Quantity,
		Price:    fill.Price,
		Amount:   fill.Amount,
		Fee:      fill.Fee,
		Strategy: sig.StrategyID,
	}
	c.record(ctx, &trade)
	c.riskCtl.RecordTrade(0)

	log.Printf("coordinator: BUY %s qty=%.8f @ %.2f (%s)", sig.Symbol, fill.Quantity, fill.Price, sig.StrategyID)
	return Outcome{State: StateRecorded, Signal: sig, Trade: &trade}
}

func (c *Coordinator) processSell(ctx context.Context, sig strategy.Signal) Outcome {
	pos, ok := c.ledger.Position(sig.Symbol)
	if !ok {
		return c.reject(sig, "no position in "+sig.Symbol)
	}
	if c.account.Halted() && !c.riskCtl.SellsAllowedWhileHalted() {
		return c.reject(sig, "trading halted, sells blocked by policy")
	}

	price, ok := c.prices.Get(sig.Symbol)
	if !ok {
		return c.reject(sig, "no market price for "+sig.Symbol)
	}

	return c.executeSell(ctx, sig, pos, price)
}

// executeSell closes the full position at the given reference price.
// Callers hold c.mu.
func (c *Coordinator) executeSell(ctx context.Context, sig strategy.Signal, pos ledger.Position, price float64) Outcome {
	rate, err := c.ledger.ProfitRate(sig.Symbol, price)
	if err != nil {
		return c.reject(sig, err.Error())
	}
	if rate.Suspect {
		log.Printf("coordinator: SUSPECT profit rate %.2f%% for %s, using fallback estimate", rate.Value*100, sig.Symbol)
		c.publish(events.EventProfitSuspect, map[string]any{"symbol": sig.Symbol, "rate": rate.Value})
		if c.metrics != nil {
			c.metrics.IncrementSuspect()
		}
	}

	fill, err := c.gw.SubmitOrder(ctx, gateway.OrderRequest{
		Symbol:   sig.Symbol,
		Side:     gateway.Sell,
		Quantity: pos.Quantity,
		Price:    price,
	})
	if err != nil {
		return c.executionFailed(sig, err)
	}

	// Record the rate at the executed price so it agrees with the
	// realized profit even when the fill slipped.
	if fill.Price > 0 && fill.Price != price {
		if r, err := c.ledger.ProfitRate(sig.Symbol, fill.Price); err == nil {
			rate = r
		}
	}

	// A live venue can fill less than requested; only the executed
	// part leaves the ledger.
	qty := fill.Quantity
	if qty > pos.Quantity {
		qty = pos.Quantity
	}
	res, err := c.ledger.ApplySell(ctx, sig.Symbol, qty, fill.Price)
	if err != nil {
		log.Printf("coordinator: SUSPECT sell fill not applicable for %s: %v", sig.Symbol, err)
		return Outcome{State: StateRolledBack, Signal: sig, Reason: err.Error()}
	}
	if !res.FullExit {
		log.Printf("coordinator: partial sell fill %s: %.8f of %.8f", sig.Symbol, qty, pos.Quantity)
	}

	proceeds := fill.Amount
	if proceeds <= 0 {
		proceeds = qty * fill.Price
	}
	c.account.Credit(proceeds - fill.Fee)

	netProfit := res.Realized - fill.Fee
	c.account.AddRealized(netProfit)
	c.riskCtl.RecordTrade(netProfit)
	c.publish(events.EventPositionChange, res.Remaining)

	trade := db.Trade{
		ID:         uuid.NewString(),
		Symbol:     sig.Symbol,
		Side:       "SELL",
		Qty:        qty,
		Price:      fill.Price,
		Amount:     proceeds,
		Fee:        fill.Fee,
		Profit:     netProfit,
		ProfitRate: rate.Value,
		Strategy:   sig.StrategyID,
	}
	c.record(ctx, &trade)

	log.Printf("coordinator: SELL %s qty=%.8f @ %.2f profit=%.2f (%.2f%%) (%s)",
		sig.Symbol, qty, fill.Price, netProfit, rate.Value*100, sig.StrategyID)
	return Outcome{State: StateRecorded, Signal: sig, Trade: &trade}
}

// executionFailed maps a gateway error to an outcome. Nothing has been
// applied in either case; the distinction is whether the venue might
// have seen the order.
func (c *Coordinator) executionFailed(sig strategy.Signal, err error) Outcome {
	if c.metrics != nil {
		c.metrics.IncrementRejections()
	}
	if errors.Is(err, gateway.ErrExecutionRejected) {
		log.Printf("coordinator: execution rejected %s %s: %v", sig.Action, sig.Symbol, err)
		c.publish(events.EventTradeRejected, map[string]any{"signal": sig, "reason": err.Error()})
		return Outcome{State: StateRejected, Signal: sig, Reason: err.Error()}
	}
	// Unconfirmed submission: treated as not applied, flagged for
	// reconciliation against the venue.
	log.Printf("coordinator: SUSPECT unconfirmed order %s %s: %v", sig.Action, sig.Symbol, err)
	c.publish(events.EventOrderSuspect, map[string]any{"signal": sig, "error": err.Error()})
	if c.metrics != nil {
		c.metrics.IncrementErrors()
	}
	return Outcome{State: StateRolledBack, Signal: sig, Reason: err.Error()}
}

func (c *Coordinator) reject(sig strategy.Signal, reason string) Outcome {
	if c.metrics != nil {
		c.metrics.IncrementRejections()
	}
	log.Printf("coordinator: rejected %s %s: %s", sig.Action, sig.Symbol, reason)
	c.publish(events.EventTradeRejected, map[string]any{"signal": sig, "reason": reason})
	return Outcome{State: StateRejected, Signal: sig, Reason: reason}
}

func (c *Coordinator) record(ctx context.Context, trade *db.Trade) {
	if c.metrics != nil {
		c.metrics.IncrementTrades()
	}
	if c.store != nil {
		if err := c.store.CreateTrade(ctx, *trade); err != nil {
			log.Printf("coordinator: persist trade %s: %v", trade.ID, err)
		}
	}
	c.publish(events.EventTradeRecorded, *trade)
}

func (c *Coordinator) publish(e events.Event, payload any) {
	if c.bus != nil {
		c.bus.Publish(e, payload)
	}
}
