package main

import (
	"context"
	"log"
	"os/signal"
	"syscall"

	"spot-trader/internal/account"
	"spot-trader/internal/api"
	"spot-trader/internal/coordinator"
	"spot-trader/internal/events"
	"spot-trader/internal/gateway"
	"spot-trader/internal/ledger"
	"spot-trader/internal/market"
	"spot-trader/internal/monitor"
	"spot-trader/internal/risk"
	"spot-trader/internal/strategy"
	"spot-trader/pkg/cache"
	"spot-trader/pkg/config"
	"spot-trader/pkg/db"
	"spot-trader/pkg/exchanges/upbit"
	marketupbit "spot-trader/pkg/market/upbit"
)

const version = "0.3.0"

func main() {
	log.SetFlags(log.LstdFlags | log.Lmicroseconds)

	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("load config: %v", err)
	}
	log.Printf("spot-trader %s starting on port %s", version, cfg.Port)

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	// Core services
	bus := events.NewBus()
	metrics := monitor.NewSystemMetrics()
	prices := cache.NewPriceCache()

	database, err := db.New(cfg.DBPath)
	if err != nil {
		log.Fatalf("open database: %v", err)
	}
	defer database.Close()
	if err := db.ApplyMigrations(database); err != nil {
		log.Fatalf("apply migrations: %v", err)
	}

	// Ledger seeded from persisted positions
	book := ledger.New(database)
	if err := book.Load(ctx); err != nil {
		log.Fatalf("load positions: %v", err)
	}
	log.Printf("ledger loaded: %d open positions", book.Count())

	riskCtl, err := risk.NewController(database.DB)
	if err != nil {
		log.Printf("risk controller init failed, using defaults: %v", err)
		riskCtl = risk.NewInMemory(risk.DefaultConfig())
	}

	// Exchange client (nil keys still serve public endpoints)
	client := upbit.NewClient(cfg.UpbitAccessKey, cfg.UpbitSecretKey)

	// Execution gateway and capital account
	var (
		gw   gateway.Gateway
		acct *account.Account
	)
	if cfg.PaperTrading {
		gw = gateway.NewPaper(cfg.PaperInitialBalance, cfg.FeeRate)
		acct = account.New(cfg.PaperInitialBalance)
		log.Printf("execution: paper trading with %.0f KRW", cfg.PaperInitialBalance)
	} else {
		if cfg.UpbitAccessKey == "" || cfg.UpbitSecretKey == "" {
			log.Fatal("live trading requires UPBIT_ACCESS_KEY and UPBIT_SECRET_KEY")
		}
		balance, err := client.GetKRWBalance(ctx)
		if err != nil {
			log.Fatalf("query KRW balance: %v", err)
		}
		gw = gateway.NewLive(client, cfg.OrderTimeout)
		acct = account.New(balance)
		log.Printf("execution: live trading with %.0f KRW", balance)
	}

	// Strategies from YAML, mirrored into the DB
	stratEngine := strategy.NewEngine(bus)
	configs, err := strategy.LoadConfigFile(cfg.StrategiesFile)
	if err != nil {
		log.Printf("strategy config: %v (running without strategies)", err)
	} else {
		if err := strategy.SyncToDB(ctx, database, configs); err != nil {
			log.Printf("sync strategies to db: %v", err)
		}
		built, err := strategy.BuildAll(configs)
		if err != nil {
			log.Fatalf("build strategies: %v", err)
		}
		for _, s := range built {
			stratEngine.Add(s)
		}
	}
	stratEngine.Start(ctx)

	// Trade coordinator
	coord := coordinator.New(book, acct, riskCtl, gw, database, bus, prices, metrics)
	coord.Run(ctx, cfg.SweepInterval)

	// Market data
	if cfg.UseMockFeed {
		mock := &market.MockFeed{Bus: bus, Symbols: cfg.Symbols}
		mock.Start(ctx)
		log.Printf("market: mock feed for %v", cfg.Symbols)
	} else {
		feed := &market.Feed{
			Client:  client,
			Stream:  marketupbit.NewStreamClient(cfg.Symbols),
			Bus:     bus,
			Symbols: cfg.Symbols,
		}
		feed.Start(ctx)
		log.Printf("market: upbit feed for %v", cfg.Symbols)
	}

	// Read-only status API
	mode := "live"
	if cfg.PaperTrading {
		mode = "paper"
	}
	server := api.NewServer(database, book, acct, riskCtl, prices, metrics, api.SystemMeta{
		Mode:        mode,
		Venue:       "upbit",
		Symbols:     cfg.Symbols,
		UseMockFeed: cfg.UseMockFeed,
		Version:     version,
	})

	go func() {
		if err := server.Start(":" + cfg.Port); err != nil {
			log.Fatalf("api server: %v", err)
		}
	}()

	<-ctx.Done()
	log.Println("shutting down")
}
