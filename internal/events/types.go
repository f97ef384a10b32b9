package events

// Event enumerates high-level topics inside the trading core.
type Event string

const (
	EventPriceTick      Event = "price_tick"
	EventStrategySignal Event = "strategy_signal"
	EventTradeRecorded  Event = "trade.recorded"
	EventTradeRejected  Event = "trade.rejected"
	EventPositionChange Event = "position_change"
	EventRiskHalt       Event = "risk.halt"
	EventRiskResume     Event = "risk.resume"
	EventStopLoss       Event = "risk.stop_loss"
	EventProfitSuspect  Event = "profit.suspect"
	EventOrderSuspect   Event = "order.suspect"
)
