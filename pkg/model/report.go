package model

import (
	"time"

	"github.com/google/uuid"
)

// RunReport wraps a finished run with the inputs needed to reproduce it.
type RunReport struct {
	ID         uuid.UUID        `json:"id" yaml:"id"`
	Seed       uint64           `json:"seed" yaml:"seed"`
	Config     SimulationConfig `json:"config" yaml:"config"`
	Result     SimulationResult `json:"result" yaml:"result"`
	StartedAt  time.Time        `json:"startedAt" yaml:"started_at"`
	FinishedAt time.Time        `json:"finishedAt" yaml:"finished_at"`
}

// RunSummary is the archive listing view of a run.
type RunSummary struct {
	ID               uuid.UUID `json:"id" yaml:"id"`
	Seed             uint64    `json:"seed" yaml:"seed"`
	Steps            int       `json:"steps" yaml:"steps"`
	TradeCount       int       `json:"tradeCount" yaml:"trade_count"`
	FilledQuantity   Quantity  `json:"filledQuantity" yaml:"filled_quantity"`
	AverageFillPrice *Price    `json:"averageFillPrice" yaml:"average_fill_price"`
	PnL              *float64  `json:"pnl" yaml:"pnl"`
	StartedAt        time.Time `json:"startedAt" yaml:"started_at"`
	FinishedAt       time.Time `json:"finishedAt" yaml:"finished_at"`
}

func (r RunReport) Summary() RunSummary {
	return RunSummary{
		ID:               r.ID,
		Seed:             r.Seed,
		Steps:            r.Config.Steps,
		TradeCount:       len(r.Result.Trades),
		FilledQuantity:   r.Result.Position.FilledQuantity,
		AverageFillPrice: r.Result.Position.AverageFillPrice,
		PnL:              r.Result.PnL,
		StartedAt:        r.StartedAt,
		FinishedAt:       r.FinishedAt,
	}
}
