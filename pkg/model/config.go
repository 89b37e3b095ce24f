package model

import "fmt"

const (
	MinSteps = 10
	MaxSteps = 200
)

// SimulationConfig is the full parameter set of one top-of-book run.
// Volatility is carried for reporting; the requote noise is fixed at 1.0.
type SimulationConfig struct {
	FairPrice       Price    `json:"fairPrice" toml:"fair_price" yaml:"fair_price"`
	InitialBid      Price    `json:"initialBid" toml:"initial_bid" yaml:"initial_bid"`
	InitialAsk      Price    `json:"initialAsk" toml:"initial_ask" yaml:"initial_ask"`
	InitialSize     Quantity `json:"initialSize" toml:"initial_size" yaml:"initial_size"`
	MMSpread        Price    `json:"mmSpread" toml:"mm_spread" yaml:"mm_spread"`
	MMSize          Quantity `json:"mmSize" toml:"mm_size" yaml:"mm_size"`
	Volatility      float64  `json:"volatility" toml:"volatility" yaml:"volatility"`
	Steps           int      `json:"steps" toml:"steps" yaml:"steps"`
	HumanLimitPrice Price    `json:"humanLimitPrice" toml:"human_limit_price" yaml:"human_limit_price"`
	HumanSize       Quantity `json:"humanSize" toml:"human_size" yaml:"human_size"`
}

func DefaultSimulationConfig() SimulationConfig {
	return SimulationConfig{
		FairPrice:       40,
		InitialBid:      20,
		InitialAsk:      80,
		InitialSize:     100,
		MMSpread:        5,
		MMSize:          50,
		Volatility:      2.5,
		Steps:           30,
		HumanLimitPrice: 21,
		HumanSize:       10,
	}
}

// Validate applies the parameter-form bounds. The simulator itself accepts
// anything, so only outer surfaces call this.
func (c SimulationConfig) Validate() error {
	if c.Steps < MinSteps || c.Steps > MaxSteps {
		return fmt.Errorf("%w: steps must be within [%d, %d], got %d", ErrInvalidConfig, MinSteps, MaxSteps, c.Steps)
	}
	return nil
}
