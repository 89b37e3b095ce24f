package model

import (
	"fmt"
)

// HumanOrder is the retail participant's resting limit buy. It never cancels
// and never reprices; it only accumulates fills against the best ask.
type HumanOrder struct {
	limitPrice       Price
	initialQuantity  Quantity
	filledQuantity   Quantity
	averageFillPrice Price
	hasFill          bool
}

func NewHumanOrder(limitPrice Price, quantity Quantity) HumanOrder {
	return HumanOrder{
		limitPrice:      limitPrice,
		initialQuantity: quantity,
	}
}

func (o *HumanOrder) GetFilledQuantity() Quantity {
	return o.filledQuantity
}

// Fill books quantity at price and folds it into the volume-weighted average.
func (o *HumanOrder) Fill(price Price, quantity Quantity) error {
	if quantity > o.GetRemainingQuantity() {
		return fmt.Errorf("human order cannot be filled for more than its remaining quantity %d", o.GetRemainingQuantity())
	}
	if !o.hasFill {
		o.averageFillPrice = price
		o.hasFill = true
	} else {
		total := float64(o.filledQuantity + quantity)
		o.averageFillPrice = Price((float64(o.averageFillPrice)*float64(o.filledQuantity) + float64(price)*float64(quantity)) / total)
	}
	o.filledQuantity += quantity
	return nil
}

// IsFilled is also true for degenerate orders with a non-positive size.
func (o *HumanOrder) IsFilled() bool {
	return o.filledQuantity >= o.initialQuantity
}

func (o *HumanOrder) GetRemainingQuantity() Quantity {
	return o.initialQuantity - o.filledQuantity
}

func (o *HumanOrder) GetLimitPrice() Price {
	return o.limitPrice
}

func (o *HumanOrder) GetInitialQuantity() Quantity {
	return o.initialQuantity
}

// CanMatch reports whether an ask at price is marketable for this order.
func (o *HumanOrder) CanMatch(price Price) bool {
	return !o.IsFilled() && price <= o.limitPrice
}

func (o *HumanOrder) Position() HumanPosition {
	pos := HumanPosition{FilledQuantity: o.filledQuantity}
	if o.hasFill {
		avg := o.averageFillPrice
		pos.AverageFillPrice = &avg
	}
	return pos
}

type Price float64
type Quantity int64
type Side uint8

const (
	BID Side = iota
	ASK
)

func (s Side) String() string {
	if s == ASK {
		return "ASK"
	}
	return "BID"
}
