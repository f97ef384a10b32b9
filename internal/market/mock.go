package market

import (
	"context"
	"log"
	"math/rand"
	"time"

	"spot-trader/internal/events"
)

// MockFeed generates synthetic ticks for local development.
type MockFeed struct {
	Bus        *events.Bus
	Symbols    []string
	StartPrice float64
	StepRate   float64
	Interval   time.Duration
}

func (m *MockFeed) Start(ctx context.Context) {
	if m.Bus == nil {
		log.Println("mock feed: bus not set")
		return
	}
	if len(m.Symbols) == 0 {
		m.Symbols = []string{"KRW-BTC"}
	}
	if m.StartPrice == 0 {
		m.StartPrice = 50_000_000
	}
	if m.StepRate == 0 {
		m.StepRate = 0.002
	}
	if m.Interval == 0 {
		m.Interval = time.Second
	}

	prices := make(map[string]float64, len(m.Symbols))
	for _, sym := range m.Symbols {
		prices[sym] = m.StartPrice
	}

	go func() {
		t := time.NewTicker(m.Interval)
		defer t.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-t.C:
				for _, sym := range m.Symbols {
					// simple random walk
					prices[sym] *= 1 + (rand.Float64()*2-1)*m.StepRate
					m.Bus.Publish(events.EventPriceTick, Tick{
						Symbol: sym,
						Price:  prices[sym],
						Volume: rand.Float64() * 10,
						Time:   time.Now(),
					})
				}
			}
		}
	}()
}
