package strategy

import (
	"context"
	"log"

	"spot-trader/internal/events"
	"spot-trader/internal/market"
)

// Engine fans price ticks out to the registered strategies and
// publishes their signals on the event bus.
type Engine struct {
	strategies []Strategy
	bus        *events.Bus
}

func NewEngine(bus *events.Bus) *Engine {
	return &Engine{bus: bus}
}

// Add registers a strategy implementation.
func (e *Engine) Add(s Strategy) {
	e.strategies = append(e.strategies, s)
	log.Printf("strategy: registered %s (%s)", s.Name(), s.ID())
}

// Strategies returns the registered strategies.
func (e *Engine) Strategies() []Strategy {
	return e.strategies
}

// Start subscribes to price ticks and forwards them to strategies
// until ctx is cancelled.
func (e *Engine) Start(ctx context.Context) {
	ticks, unsub := e.bus.Subscribe(events.EventPriceTick, 256)

	go func() {
		defer unsub()
		for {
			select {
			case <-ctx.Done():
				return
			case msg, ok := <-ticks:
				if !ok {
					return
				}
				tick, ok := msg.(market.Tick)
				if !ok {
					continue
				}
				e.handleTick(tick)
			}
		}
	}()
}

func (e *Engine) handleTick(tick market.Tick) {
	for _, s := range e.strategies {
		sig, err := s.OnTick(tick.Symbol, tick.Price, tick.Volume)
		if err != nil {
			log.Printf("strategy %s error: %v", s.Name(), err)
			continue
		}
		if sig != nil && sig.Action != "HOLD" {
			sig.StrategyID = s.ID()
			log.Printf("strategy %s signal: %s %s (%s)", s.Name(), sig.Action, sig.Symbol, sig.Note)
			e.bus.Publish(events.EventStrategySignal, *sig)
		}
	}
}
