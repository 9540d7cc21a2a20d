package feed

import "encoding/json"

// Channels this process trades on.
const (
	channelOrderbook = "orderbook_delta"
	channelTrade     = "trade"
	channelFill      = "fill"
)

// command is an outbound control frame.
type command struct {
	ID     int64  `json:"id"`
	Cmd    string `json:"cmd"`
	Params any    `json:"params"`
}

// subscribeParams opens channels for a set of markets.
type subscribeParams struct {
	Channels      []string `json:"channels"`
	MarketTickers []string `json:"market_tickers"`
}

// updateSubscriptionParams adds or removes markets on existing sids.
type updateSubscriptionParams struct {
	SIDs          []int64  `json:"sids"`
	Action        string   `json:"action"` // "add_markets" or "delete_markets"
	MarketTickers []string `json:"market_tickers"`
}

// envelope is the inbound frame shape shared by responses and data.
type envelope struct {
	ID   int64           `json:"id,omitempty"`
	Type string          `json:"type"`
	SID  int64           `json:"sid,omitempty"`
	Seq  int64           `json:"seq,omitempty"`
	Msg  json.RawMessage `json:"msg"`
}

// subscribedMsg acknowledges one channel subscription.
type subscribedMsg struct {
	SID     int64  `json:"sid"`
	Channel string `json:"channel"`
}

// errorMsg is a server-reported command failure.
type errorMsg struct {
	Code    int    `json:"code"`
	Message string `json:"msg"`
}

// snapshotMsg replaces the whole book. Levels are [price, quantity] pairs.
type snapshotMsg struct {
	MarketTicker string    `json:"market_ticker"`
	Yes          [][]int64 `json:"yes"`
	No           [][]int64 `json:"no"`
}

// deltaMsg is one signed change to a resting-bid level.
type deltaMsg struct {
	MarketTicker string `json:"market_ticker"`
	Price        int    `json:"price"`
	Delta        int64  `json:"delta"`
	Side         string `json:"side"`
}

// tradeMsg is one public trade print.
type tradeMsg struct {
	MarketTicker string `json:"market_ticker"`
	YesPrice     int    `json:"yes_price"`
	NoPrice      int    `json:"no_price"`
	Count        int64  `json:"count"`
	TakerSide    string `json:"taker_side"`
	TS           int64  `json:"ts"`
}

// fillMsg is one of our own executions. YesPrice is always the yes-side
// price; the no-side price is its complement.
type fillMsg struct {
	TradeID      string `json:"trade_id"`
	OrderID      string `json:"order_id"`
	MarketTicker string `json:"market_ticker"`
	IsTaker      bool   `json:"is_taker"`
	Side         string `json:"side"`
	YesPrice     int    `json:"yes_price"`
	Count        int64  `json:"count"`
	Action       string `json:"action"`
	TS           int64  `json:"ts"`
}
