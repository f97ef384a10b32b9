package upbit

// Account is one currency balance row from GET /v1/accounts.
type Account struct {
	Currency            string `json:"currency"`
	Balance             string `json:"balance"`
	Locked              string `json:"locked"`
	AvgBuyPrice         string `json:"avg_buy_price"`
	AvgBuyPriceModified bool   `json:"avg_buy_price_modified"`
	UnitCurrency        string `json:"unit_currency"`
}

// Ticker is a public market snapshot from GET /v1/ticker.
type Ticker struct {
	Market             string  `json:"market"`
	TradePrice         float64 `json:"trade_price"`
	PrevClosingPrice   float64 `json:"prev_closing_price"`
	Change             string  `json:"change"`
	ChangeRate         float64 `json:"change_rate"`
	SignedChangeRate   float64 `json:"signed_change_rate"`
	AccTradeVolume24h  float64 `json:"acc_trade_volume_24h"`
	AccTradePrice24h   float64 `json:"acc_trade_price_24h"`
	TradeTimestamp     int64   `json:"trade_timestamp"`
	HighestPrice52Week float64 `json:"highest_52_week_price"`
	LowestPrice52Week  float64 `json:"lowest_52_week_price"`
}

// Order is an order row from POST /v1/orders or GET /v1/order.
type Order struct {
	UUID            string `json:"uuid"`
	Side            string `json:"side"`
	OrdType         string `json:"ord_type"`
	Price           string `json:"price"`
	State           string `json:"state"`
	Market          string `json:"market"`
	CreatedAt       string `json:"created_at"`
	Volume          string `json:"volume"`
	RemainingVolume string `json:"remaining_volume"`
	ExecutedVolume  string `json:"executed_volume"`
	ReservedFee     string `json:"reserved_fee"`
	PaidFee         string `json:"paid_fee"`
	TradesCount     int    `json:"trades_count"`
	Trades          []struct {
		Market string `json:"market"`
		UUID   string `json:"uuid"`
		Price  string `json:"price"`
		Volume string `json:"volume"`
		Funds  string `json:"funds"`
		Side   string `json:"side"`
	} `json:"trades"`
}

// apiError is Upbit's error envelope.
type apiError struct {
	Error struct {
		Name    any    `json:"name"`
		Message string `json:"message"`
	} `json:"error"`
}
