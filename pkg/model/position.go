package model

// HumanPosition is the cumulative fill state of the human order.
// AverageFillPrice stays nil until the first fill.
type HumanPosition struct {
	FilledQuantity   Quantity `json:"filledQuantity" yaml:"filled_quantity"`
	AverageFillPrice *Price   `json:"averageFillPrice" yaml:"average_fill_price"`
}

func (p HumanPosition) Filled() bool {
	return p.FilledQuantity > 0
}

// PnL is measured against fair; ok is false when nothing filled.
func (p HumanPosition) PnL(fair Price) (pnl float64, ok bool) {
	if !p.Filled() || p.AverageFillPrice == nil {
		return 0, false
	}
	return float64(fair-*p.AverageFillPrice) * float64(p.FilledQuantity), true
}

// SimulationResult is what a finished run hands to the reporting layer.
type SimulationResult struct {
	History  []HistorySample `json:"history" yaml:"history"`
	Trades   []Trade         `json:"trades" yaml:"trades"`
	Position HumanPosition   `json:"position" yaml:"position"`
	PnL      *float64        `json:"pnl" yaml:"pnl"`
}
