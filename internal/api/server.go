package api

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"spot-trader/internal/account"
	"spot-trader/internal/ledger"
	"spot-trader/internal/monitor"
	"spot-trader/internal/risk"
	"spot-trader/pkg/cache"
	"spot-trader/pkg/db"
)

// Server exposes read-only status endpoints over the trading core. It
// never mutates state; every handler reads snapshots.
type Server struct {
	Router  *gin.Engine
	DB      *db.Database
	Ledger  *ledger.Ledger
	Account *account.Account
	RiskCtl *risk.Controller
	Prices  *cache.PriceCache
	Metrics *monitor.SystemMetrics
	Meta    SystemMeta
}

// SystemMeta describes runtime status exposed to operators.
type SystemMeta struct {
	Mode        string   `json:"mode"`
	Venue       string   `json:"venue"`
	Symbols     []string `json:"symbols"`
	UseMockFeed bool     `json:"use_mock_feed"`
	Version     string   `json:"version"`
}

func NewServer(database *db.Database, led *ledger.Ledger, acct *account.Account, riskCtl *risk.Controller, prices *cache.PriceCache, metrics *monitor.SystemMetrics, meta SystemMeta) *Server {
	r := gin.New()

	// Middleware stack (order matters!)
	r.Use(gin.Recovery())
	r.Use(RequestIDMiddleware())
	r.Use(RequestLogger(metrics))
	r.Use(RateLimitMiddleware())
	r.Use(CORSMiddleware())

	s := &Server{
		Router:  r,
		DB:      database,
		Ledger:  led,
		Account: acct,
		RiskCtl: riskCtl,
		Prices:  prices,
		Metrics: metrics,
		Meta:    meta,
	}
	s.routes()
	return s
}

func (s *Server) routes() {
	s.Router.GET("/health", s.health)

	api := s.Router.Group("/api")
	{
		api.GET("/status", s.getStatus)
		api.GET("/positions", s.getPositions)
		api.GET("/trades", s.getTrades)
		api.GET("/prices", s.getPrices)
		api.GET("/risk/config", s.getRiskConfig)
		api.GET("/risk/metrics", s.getRiskMetrics)
		api.GET("/metrics", s.getMetrics)
	}
}

func (s *Server) health(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}

func (s *Server) getStatus(c *gin.Context) {
	snap := s.Account.Snapshot()
	c.JSON(http.StatusOK, gin.H{
		"meta":           s.Meta,
		"account":        snap,
		"open_positions": s.Ledger.Count(),
		"market_value":   s.Ledger.MarketValue(),
		"total_value":    snap.CashBalance + s.Ledger.MarketValue(),
	})
}

func (s *Server) getPositions(c *gin.Context) {
	positions := s.Ledger.Positions()
	type row struct {
		ledger.Position
		CurrentPrice float64 `json:"current_price"`
		ProfitRate   float64 `json:"profit_rate"`
		Suspect      bool    `json:"suspect"`
	}
	res := make([]row, 0, len(positions))
	for _, pos := range positions {
		r := row{Position: pos}
		if price, ok := s.Prices.Get(pos.Symbol); ok {
			r.CurrentPrice = price
			if rate, err := s.Ledger.ProfitRate(pos.Symbol, price); err == nil {
				r.ProfitRate = rate.Value
				r.Suspect = rate.Suspect
			}
		}
		res = append(res, r)
	}
	c.JSON(http.StatusOK, gin.H{"positions": res})
}

func (s *Server) getTrades(c *gin.Context) {
	if s.DB == nil {
		c.JSON(http.StatusOK, gin.H{"trades": []db.Trade{}})
		return
	}
	limit, _ := strconv.Atoi(c.DefaultQuery("limit", "50"))
	trades, err := s.DB.ListTrades(c.Request.Context(), limit)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{"trades": trades})
}

func (s *Server) getPrices(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"prices": s.Prices.GetAll()})
}

func (s *Server) getRiskConfig(c *gin.Context) {
	cfg := s.RiskCtl.GetConfig()
	c.JSON(http.StatusOK, gin.H{
		"max_daily_profit":  cfg.MaxDailyProfit,
		"max_daily_loss":    cfg.MaxDailyLoss,
		"max_positions":     cfg.MaxPositions,
		"max_position_size": cfg.MaxPositionSize,
		"stop_loss_rate":    cfg.StopLossRate,
		"fee_rate":          cfg.FeeRate,
		"min_trade_amount":  cfg.MinTradeAmount,
		"halt_policy":       cfg.HaltPolicy,
	})
}

func (s *Server) getRiskMetrics(c *gin.Context) {
	c.JSON(http.StatusOK, s.RiskCtl.GetMetrics())
}

func (s *Server) getMetrics(c *gin.Context) {
	if s.Metrics == nil {
		c.JSON(http.StatusOK, gin.H{})
		return
	}
	c.JSON(http.StatusOK, s.Metrics.GetSnapshot())
}

func (s *Server) Start(addr string) error {
	return s.Router.Run(addr)
}
