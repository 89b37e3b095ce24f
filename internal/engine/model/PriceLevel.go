package model

import (
	"github.com/Yusufzhafir/illiquid-sim/pkg/model"
	"github.com/google/btree"
)

// AskPriceLevel ascending
type AskPriceLevel struct {
	Price model.Price
	Size  model.Quantity
}

func (pl *AskPriceLevel) Less(than btree.Item) bool {
	other := than.(*AskPriceLevel)
	return pl.Price < other.Price
}

func (pl *AskPriceLevel) ToLevel() model.PriceLevel {
	return model.PriceLevel{Price: pl.Price, Size: pl.Size}
}

// Reduce takes quantity off the level and reports whether it is now empty.
func (pl *AskPriceLevel) Reduce(quantity model.Quantity) bool {
	pl.Size -= quantity
	return pl.Size <= 0
}

// BidPriceLevel descending
type BidPriceLevel struct {
	Price model.Price
	Size  model.Quantity
}

func (bpl *BidPriceLevel) Less(than btree.Item) bool {
	other := than.(*BidPriceLevel)
	return bpl.Price > other.Price // Reverse
}

func (bpl *BidPriceLevel) ToLevel() model.PriceLevel {
	return model.PriceLevel{Price: bpl.Price, Size: bpl.Size}
}

func (bpl *BidPriceLevel) Reduce(quantity model.Quantity) bool {
	bpl.Size -= quantity
	return bpl.Size <= 0
}
