package simulation

import "github.com/Yusufzhafir/illiquid-sim/pkg/model"

// ChaseConfig parameterises the deterministic chase. The algo walks its bid
// up one unit per reaction cycle until it reaches fair value while keeping
// its offer mirrored below SpreadCeiling; the human then pays ChaseMarkup
// times fair value.
type ChaseConfig struct {
	FairValue       model.Price
	AlgoBuyStart    model.Price
	AlgoSellStart   model.Price
	HumanOrderPrice model.Price
	ChaseMarkup     model.Price
	SpreadCeiling   model.Price
}

func DefaultChaseConfig(fairValue, algoBuyStart model.Price) ChaseConfig {
	return ChaseConfig{
		FairValue:       fairValue,
		AlgoBuyStart:    algoBuyStart,
		AlgoSellStart:   100 - algoBuyStart,
		HumanOrderPrice: 21,
		ChaseMarkup:     1.2,
		SpreadCeiling:   100,
	}
}

// SimulateChase runs the chase with the default constants.
func SimulateChase(fairValue, algoBuyStart model.Price) model.ChaseResult {
	return SimulateChaseWith(DefaultChaseConfig(fairValue, algoBuyStart))
}

func SimulateChaseWith(cfg ChaseConfig) model.ChaseResult {
	algoBuy := cfg.AlgoBuyStart
	res := model.ChaseResult{
		FairValue: cfg.FairValue,
		Start:     model.ChaseStep{Step: 0, AlgoBuy: algoBuy, AlgoSell: cfg.AlgoSellStart},
		Steps:     make([]model.ChaseStep, 0),
	}

	step := 0
	for algoBuy < cfg.FairValue {
		step++
		algoBuy++
		humanPrice := cfg.HumanOrderPrice
		res.Steps = append(res.Steps, model.ChaseStep{
			Step:       step,
			AlgoBuy:    algoBuy,
			AlgoSell:   cfg.SpreadCeiling - algoBuy,
			HumanPrice: &humanPrice,
		})
	}

	// The human gives up and lifts the algo's offer above fair.
	humanBuyPrice := cfg.FairValue * cfg.ChaseMarkup
	res.Final = model.ChaseStep{
		Step:       step + 1,
		AlgoBuy:    cfg.FairValue,
		AlgoSell:   humanBuyPrice,
		HumanPrice: &humanBuyPrice,
	}
	res.HumanBuyPrice = humanBuyPrice
	res.Loss = humanBuyPrice - cfg.FairValue
	return res
}

// ChaseCycles is the number of reaction cycles SimulateChase will record.
func ChaseCycles(fairValue, algoBuyStart model.Price) int {
	if algoBuyStart >= fairValue {
		return 0
	}
	n := int(fairValue - algoBuyStart)
	if algoBuyStart+model.Price(n) < fairValue {
		n++
	}
	return n
}
