// Package simulation runs the illiquid top-of-book market: a thin book, a
// market maker that keeps stacking quotes around a noisy fair price, random
// liquidity takers, and one price-insensitive human limit buy.
package simulation

import (
	"math"

	"github.com/Yusufzhafir/illiquid-sim/internal/engine"
	"github.com/Yusufzhafir/illiquid-sim/pkg/model"
)

const (
	liquidityEventProbability = 0.25
	bidSideProbability        = 0.5
	takeFraction              = 0.2
	requoteNoiseStdDev        = 1.0
)

// OrderBookSimulator owns one run. It is not safe for concurrent use and is
// never reused across runs.
type OrderBookSimulator struct {
	cfg  model.SimulationConfig
	rng  RandSource
	book engine.OrderBookEngine

	human model.HumanOrder

	step       int
	stepTrades int // index of the first trade recorded by the latest step
	trades     []model.Trade
	history    []model.HistorySample
}

// New builds the opening book: the two lone quotes plus one market-maker pair
// centred on the fair price.
func New(cfg model.SimulationConfig, rng RandSource) *OrderBookSimulator {
	book := engine.NewOrderBookEngine()
	book.Initialize()
	book.AddLevel(model.BID, cfg.InitialBid, cfg.InitialSize)
	book.AddLevel(model.ASK, cfg.InitialAsk, cfg.InitialSize)

	s := &OrderBookSimulator{
		cfg:     cfg,
		rng:     rng,
		book:    book,
		human:   model.NewHumanOrder(cfg.HumanLimitPrice, cfg.HumanSize),
		trades:  make([]model.Trade, 0),
		history: make([]model.HistorySample, 0, max(cfg.Steps, 0)),
	}
	s.quote(cfg.FairPrice)
	return s
}

// Step advances the market by one tick.
func (s *OrderBookSimulator) Step() {
	t := s.step
	s.stepTrades = len(s.trades)

	if s.rng.Float64() < liquidityEventProbability {
		s.takeLiquidity(t)
	}

	s.quote(s.cfg.FairPrice + model.Price(s.rng.NormFloat64()*requoteNoiseStdDev))

	s.matchHuman(t)

	s.history = append(s.history, s.sample(t))
	s.step++
}

// takeLiquidity hits the best bid or lifts the best ask. A bid draw on an
// empty bid side falls through to the asks; an ask draw on an empty ask side
// does nothing.
func (s *OrderBookSimulator) takeLiquidity(t int) {
	hitBid := s.rng.Float64() < bidSideProbability
	if bestBid, ok := s.book.Best(model.BID); hitBid && ok {
		s.take(t, model.BID, bestBid, model.SELL_INTO_BID)
		return
	}
	if bestAsk, ok := s.book.Best(model.ASK); ok {
		s.take(t, model.ASK, bestAsk, model.BUY_FROM_ASK)
	}
}

func (s *OrderBookSimulator) take(t int, side model.Side, level model.PriceLevel, tradeSide model.TradeSide) {
	quantity := min(level.Size, max(1, model.Quantity(float64(level.Size)*takeFraction)))
	s.trades = append(s.trades, model.Trade{Time: t, Price: level.Price, Size: quantity, Side: tradeSide})
	s.book.ReduceBest(side, quantity)
}

// quote adds a market-maker pair around center. Old quotes are never pulled,
// so they pile up as separate levels unless a price repeats exactly.
func (s *OrderBookSimulator) quote(center model.Price) {
	bid, ask := MarketMakerQuotes(center, s.cfg.MMSpread)
	s.book.AddLevel(model.BID, bid, s.cfg.MMSize)
	s.book.AddLevel(model.ASK, ask, s.cfg.MMSize)
}

func (s *OrderBookSimulator) matchHuman(t int) {
	bestAsk, ok := s.book.Best(model.ASK)
	if !ok || !s.human.CanMatch(bestAsk.Price) {
		return
	}
	quantity := min(s.human.GetRemainingQuantity(), bestAsk.Size)
	if err := s.human.Fill(bestAsk.Price, quantity); err != nil {
		// nothing is booked, so the trade log and the position stay in step
		return
	}
	s.trades = append(s.trades, model.Trade{Time: t, Price: bestAsk.Price, Size: quantity, Side: model.HUMAN_BUY_FILL})
	s.book.ReduceBest(model.ASK, quantity)
}

func (s *OrderBookSimulator) sample(t int) model.HistorySample {
	sample := model.HistorySample{Time: t}
	top := s.book.GetTopOfBook()
	if top.BestBid != nil {
		sample.BestBid = &top.BestBid.Price
	}
	if top.BestAsk != nil {
		sample.BestAsk = &top.BestAsk.Price
	}
	if mid, ok := s.book.Mid(); ok {
		sample.Mid = &mid
	}
	return sample
}

// Result copies the run so far. It never mutates the simulator.
func (s *OrderBookSimulator) Result() model.SimulationResult {
	res := model.SimulationResult{
		History:  append([]model.HistorySample(nil), s.history...),
		Trades:   append([]model.Trade(nil), s.trades...),
		Position: s.human.Position(),
	}
	if pnl, ok := res.Position.PnL(s.cfg.FairPrice); ok {
		res.PnL = &pnl
	}
	return res
}

// Last returns the sample and the trades recorded by the most recent Step.
func (s *OrderBookSimulator) Last() (model.HistorySample, []model.Trade, bool) {
	if len(s.history) == 0 {
		return model.HistorySample{}, nil, false
	}
	return s.history[len(s.history)-1], append([]model.Trade(nil), s.trades[s.stepTrades:]...), true
}

// Depth copies every resting level, best first on each side.
func (s *OrderBookSimulator) Depth() *model.MarketDepth {
	return s.book.Snapshot()
}

// TopOfBook reports the best level on each side and the spread between them.
func (s *OrderBookSimulator) TopOfBook() *model.TopOfBook {
	return s.book.GetTopOfBook()
}

// Ladder returns at most levels price levels per side, best first.
func (s *OrderBookSimulator) Ladder(levels int) *model.MarketDepth {
	return s.book.GetMarketDepth(levels)
}

// Steps is the number of steps taken so far.
func (s *OrderBookSimulator) Steps() int {
	return s.step
}

// MarketMakerQuotes returns the bid/ask pair spread around center, rounded
// to cents.
func MarketMakerQuotes(center, spread model.Price) (bid, ask model.Price) {
	return roundCents(center - spread), roundCents(center + spread)
}

func roundCents(p model.Price) model.Price {
	return model.Price(math.Round(float64(p)*100) / 100)
}
