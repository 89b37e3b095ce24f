package model

type TradeSide string

const (
	SELL_INTO_BID  TradeSide = "sell_into_bid"
	BUY_FROM_ASK   TradeSide = "buy_from_ask"
	HUMAN_BUY_FILL TradeSide = "human_buy_fill"
)

// Trade is one execution inside a run. Time is the 0-based step index.
type Trade struct {
	Time  int       `json:"time" yaml:"time"`
	Price Price     `json:"price" yaml:"price"`
	Size  Quantity  `json:"size" yaml:"size"`
	Side  TradeSide `json:"side" yaml:"side"`
}
