package model

// PriceLevel is resting liquidity at a single price.
type PriceLevel struct {
	Price Price    `json:"price" yaml:"price"`
	Size  Quantity `json:"size" yaml:"size"`
}

// MarketDepth represents the full order book depth
type MarketDepth struct {
	Bids []PriceLevel `json:"bids" yaml:"bids"` // Highest to lowest price
	Asks []PriceLevel `json:"asks" yaml:"asks"` // Lowest to highest price
}

// TopOfBook represents best bid/ask. Spread is zero unless both sides rest.
type TopOfBook struct {
	BestBid *PriceLevel `json:"bestBid" yaml:"best_bid"`
	BestAsk *PriceLevel `json:"bestAsk" yaml:"best_ask"`
	Spread  Price       `json:"spread" yaml:"spread"`
}

// HistorySample is the top of book observed at the end of a step.
// Mid is nil whenever either side of the book is empty.
type HistorySample struct {
	Time    int    `json:"time" yaml:"time"`
	BestBid *Price `json:"bid" yaml:"bid"`
	BestAsk *Price `json:"ask" yaml:"ask"`
	Mid     *Price `json:"mid" yaml:"mid"`
}
