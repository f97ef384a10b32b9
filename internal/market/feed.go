package market

import (
	"context"
	"log"
	"time"

	"spot-trader/internal/events"
	"spot-trader/pkg/exchanges/upbit"
	marketupbit "spot-trader/pkg/market/upbit"
)

// Tick is the price update published on the bus.
type Tick struct {
	Symbol string
	Price  float64
	Volume float64
	Time   time.Time
}

// Feed streams prices from Upbit and publishes them to the event bus.
// The websocket is the primary source; a REST snapshot poll covers
// gaps while the stream reconnects.
type Feed struct {
	Client  *upbit.Client
	Stream  *marketupbit.StreamClient
	Bus     *events.Bus
	Symbols []string
}

// Start begins streaming and polling for the configured symbols.
func (f *Feed) Start(ctx context.Context) {
	if f.Bus == nil || f.Client == nil || f.Stream == nil {
		log.Println("market feed not fully configured; skipping start")
		return
	}

	ch := make(chan marketupbit.Tick, 256)
	go f.Stream.Run(ctx, ch)
	go func() {
		for t := range ch {
			f.Bus.Publish(events.EventPriceTick, Tick{
				Symbol: t.Code,
				Price:  t.TradePrice,
				Volume: t.TradeVolume,
				Time:   time.UnixMilli(t.Timestamp),
			})
		}
	}()

	go f.pollSnapshots(ctx)
}

func (f *Feed) pollSnapshots(ctx context.Context) {
	ticker := time.NewTicker(time.Minute)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			tickers, err := f.Client.GetTickers(ctx, f.Symbols)
			if err != nil {
				log.Printf("market feed snapshot error: %v", err)
				continue
			}
			for _, t := range tickers {
				f.Bus.Publish(events.EventPriceTick, Tick{
					Symbol: t.Market,
					Price:  t.TradePrice,
					Volume: t.AccTradeVolume24h,
					Time:   time.UnixMilli(t.TradeTimestamp),
				})
			}
		}
	}
}
