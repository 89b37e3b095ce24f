package model

// ChaseStep is one reaction cycle of the deterministic chase.
// HumanPrice is nil for the starting state, before the human has acted.
type ChaseStep struct {
	Step       int    `json:"step" yaml:"step"`
	AlgoBuy    Price  `json:"algoBuy" yaml:"algo_buy"`
	AlgoSell   Price  `json:"algoSell" yaml:"algo_sell"`
	HumanPrice *Price `json:"humanPrice" yaml:"human_price"`
}

type ChaseResult struct {
	FairValue     Price       `json:"fairValue" yaml:"fair_value"`
	Start         ChaseStep   `json:"start" yaml:"start"`
	Steps         []ChaseStep `json:"steps" yaml:"steps"`
	Final         ChaseStep   `json:"final" yaml:"final"`
	HumanBuyPrice Price       `json:"humanBuyPrice" yaml:"human_buy_price"`
	Loss          Price       `json:"loss" yaml:"loss"`
}
