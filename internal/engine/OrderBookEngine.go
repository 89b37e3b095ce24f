package engine

import (
	orderbookModel "github.com/Yusufzhafir/illiquid-sim/internal/engine/model"
	"github.com/Yusufzhafir/illiquid-sim/pkg/model"
	"github.com/google/btree"
)

// OrderBookEngine is an aggregated price-level book: one size per price, no
// order queue behind a level.
type OrderBookEngine interface {
	Initialize()
	AddLevel(side model.Side, price model.Price, size model.Quantity) bool
	Best(side model.Side) (model.PriceLevel, bool)
	ReduceBest(side model.Side, quantity model.Quantity) bool
	Mid() (model.Price, bool)
	GetTopOfBook() *model.TopOfBook
	GetMarketDepth(levels int) *model.MarketDepth
	Snapshot() *model.MarketDepth
}

type OrderBookEngineImpl struct {
	bids, asks *btree.BTree // price-level trees, best level is always Min()
}

func NewOrderBookEngine() OrderBookEngine {
	return &OrderBookEngineImpl{}
}

func (o *OrderBookEngineImpl) Initialize() {
	o.bids = btree.New(32)
	o.asks = btree.New(32)
}

// AddLevel inserts a level only when none rests at that exact price.
// It returns false, leaving the book untouched, when the price is taken or
// size is not positive.
func (o *OrderBookEngineImpl) AddLevel(side model.Side, price model.Price, size model.Quantity) bool {
	if size <= 0 {
		return false
	}
	switch side {
	case model.ASK:
		priceLevel := &orderbookModel.AskPriceLevel{Price: price, Size: size}
		if o.asks.Has(priceLevel) {
			return false
		}
		o.asks.ReplaceOrInsert(priceLevel)
	case model.BID:
		priceLevel := &orderbookModel.BidPriceLevel{Price: price, Size: size}
		if o.bids.Has(priceLevel) {
			return false
		}
		o.bids.ReplaceOrInsert(priceLevel)
	}
	return true
}

func (o *OrderBookEngineImpl) Best(side model.Side) (model.PriceLevel, bool) {
	if side == model.ASK {
		if o.asks.Len() == 0 {
			return model.PriceLevel{}, false
		}
		return o.asks.Min().(*orderbookModel.AskPriceLevel).ToLevel(), true
	}

	if o.bids.Len() == 0 {
		return model.PriceLevel{}, false
	}
	return o.bids.Min().(*orderbookModel.BidPriceLevel).ToLevel(), true
}

// ReduceBest takes quantity off the top level of side and drops the level
// once its size reaches zero or below. It reports false on an empty side.
func (o *OrderBookEngineImpl) ReduceBest(side model.Side, quantity model.Quantity) bool {
	if side == model.ASK {
		if o.asks.Len() == 0 {
			return false
		}
		askLevel := o.asks.Min().(*orderbookModel.AskPriceLevel)
		if askLevel.Reduce(quantity) {
			o.asks.DeleteMin()
		}
		return true
	}

	if o.bids.Len() == 0 {
		return false
	}
	bidLevel := o.bids.Min().(*orderbookModel.BidPriceLevel)
	if bidLevel.Reduce(quantity) {
		o.bids.DeleteMin()
	}
	return true
}

// Mid is the average of best bid and best ask; ok is false when a side is empty.
func (o *OrderBookEngineImpl) Mid() (model.Price, bool) {
	bestBid, hasBid := o.Best(model.BID)
	bestAsk, hasAsk := o.Best(model.ASK)
	if !hasBid || !hasAsk {
		return 0, false
	}
	return (bestBid.Price + bestAsk.Price) / 2, true
}

func (o *OrderBookEngineImpl) getMarketDepth(levels int) *model.MarketDepth {
	depth := &model.MarketDepth{
		Bids: make([]model.PriceLevel, 0, min(levels, o.bids.Len())),
		Asks: make([]model.PriceLevel, 0, min(levels, o.asks.Len())),
	}

	// Collect bid levels (highest price first)
	bidCount := 0
	o.bids.Ascend(func(item btree.Item) bool {
		if bidCount >= levels {
			return false
		}
		depth.Bids = append(depth.Bids, item.(*orderbookModel.BidPriceLevel).ToLevel())
		bidCount++
		return true
	})

	// Collect ask levels (lowest price first)
	askCount := 0
	o.asks.Ascend(func(item btree.Item) bool {
		if askCount >= levels {
			return false
		}
		depth.Asks = append(depth.Asks, item.(*orderbookModel.AskPriceLevel).ToLevel())
		askCount++
		return true
	})

	return depth
}

// GetTopOfBook returns best bid and ask
func (o *OrderBookEngineImpl) GetTopOfBook() *model.TopOfBook {
	tob := &model.TopOfBook{}

	if bestBid, ok := o.Best(model.BID); ok {
		tob.BestBid = &bestBid
	}
	if bestAsk, ok := o.Best(model.ASK); ok {
		tob.BestAsk = &bestAsk
	}

	// Calculate spread
	if tob.BestBid != nil && tob.BestAsk != nil {
		tob.Spread = tob.BestAsk.Price - tob.BestBid.Price
	}

	return tob
}

// GetMarketDepth returns at most levels price levels per side.
func (o *OrderBookEngineImpl) GetMarketDepth(levels int) *model.MarketDepth {
	return o.getMarketDepth(levels)
}

// Snapshot copies every level on both sides.
func (o *OrderBookEngineImpl) Snapshot() *model.MarketDepth {
	return o.getMarketDepth(max(o.bids.Len(), o.asks.Len()))
}
