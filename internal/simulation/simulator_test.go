package simulation

import (
	"testing"

	"github.com/Yusufzhafir/illiquid-sim/pkg/model"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// scriptedRand replays fixed draws. Once exhausted, Float64 returns 0.99 so
// no liquidity event fires, and NormFloat64 returns 0 so requotes land on
// the fair price.
type scriptedRand struct {
	floats []float64
	norms  []float64
}

func (r *scriptedRand) Float64() float64 {
	if len(r.floats) == 0 {
		return 0.99
	}
	v := r.floats[0]
	r.floats = r.floats[1:]
	return v
}

func (r *scriptedRand) NormFloat64() float64 {
	if len(r.norms) == 0 {
		return 0
	}
	v := r.norms[0]
	r.norms = r.norms[1:]
	return v
}

func levels(pairs ...float64) []model.PriceLevel {
	out := make([]model.PriceLevel, 0, len(pairs)/2)
	for i := 0; i+1 < len(pairs); i += 2 {
		out = append(out, model.PriceLevel{Price: model.Price(pairs[i]), Size: model.Quantity(pairs[i+1])})
	}
	return out
}

func TestNewSeedsMarketMakerQuotes(t *testing.T) {
	cfg := model.SimulationConfig{
		FairPrice:   40,
		InitialBid:  20,
		InitialAsk:  80,
		InitialSize: 100,
		MMSpread:    5,
		MMSize:      50,
	}
	sim := New(cfg, &scriptedRand{})

	depth := sim.Depth()
	assert.Equal(t, levels(35, 50, 20, 100), depth.Bids)
	assert.Equal(t, levels(45, 50, 80, 100), depth.Asks)
}

func TestNewSkipsQuoteAtExistingPrice(t *testing.T) {
	cfg := model.SimulationConfig{
		FairPrice:   40,
		InitialBid:  35,
		InitialAsk:  45,
		InitialSize: 100,
		MMSpread:    5,
		MMSize:      50,
	}
	sim := New(cfg, &scriptedRand{})

	depth := sim.Depth()
	assert.Equal(t, levels(35, 100), depth.Bids)
	assert.Equal(t, levels(45, 100), depth.Asks)
}

func TestHumanFillsAgainstSoleAsk(t *testing.T) {
	// A negative spread puts the maker's ask on top of the lone ask, leaving
	// it as the only ask level.
	cfg := model.SimulationConfig{
		FairPrice:       40,
		InitialBid:      20,
		InitialAsk:      30,
		InitialSize:     100,
		MMSpread:        -10,
		MMSize:          50,
		HumanLimitPrice: 31,
		HumanSize:       10,
		Steps:           1,
	}
	sim := New(cfg, &scriptedRand{})
	require.Equal(t, levels(30, 100), sim.Depth().Asks)

	sim.Step()

	res := sim.Result()
	require.Len(t, res.Trades, 1)
	assert.Equal(t, model.Trade{Time: 0, Price: 30, Size: 10, Side: model.HUMAN_BUY_FILL}, res.Trades[0])
	assert.Equal(t, levels(30, 90), sim.Depth().Asks)

	assert.Equal(t, model.Quantity(10), res.Position.FilledQuantity)
	require.NotNil(t, res.Position.AverageFillPrice)
	assert.Equal(t, model.Price(30), *res.Position.AverageFillPrice)
	require.NotNil(t, res.PnL)
	assert.InDelta(t, 100.0, *res.PnL, 1e-9)
}

func TestHumanNeverFillsBelowEveryAsk(t *testing.T) {
	cfg := model.DefaultSimulationConfig()
	cfg.HumanLimitPrice = 1
	cfg.Steps = model.MaxSteps

	sim := New(cfg, NewRand(7))
	for i := 0; i < cfg.Steps; i++ {
		sim.Step()
	}

	res := sim.Result()
	assert.Equal(t, model.Quantity(0), res.Position.FilledQuantity)
	assert.Nil(t, res.Position.AverageFillPrice)
	assert.Nil(t, res.PnL)
	for _, tr := range res.Trades {
		assert.NotEqual(t, model.HUMAN_BUY_FILL, tr.Side)
	}
}

func TestHumanPartialFillKeepsOrderResting(t *testing.T) {
	// MMSize 0 keeps the maker out so only the two lone asks are in play.
	cfg := model.SimulationConfig{
		FairPrice:       40,
		InitialBid:      10,
		InitialAsk:      30,
		InitialSize:     4,
		MMSize:          0,
		HumanLimitPrice: 100,
		HumanSize:       10,
	}
	sim := New(cfg, &scriptedRand{})
	sim.Step()

	res := sim.Result()
	require.Len(t, res.Trades, 1)
	assert.Equal(t, model.Quantity(4), res.Trades[0].Size)
	assert.Empty(t, sim.Depth().Asks)

	// Only four contracts existed; the rest of the order keeps resting.
	assert.Equal(t, model.Quantity(4), res.Position.FilledQuantity)
	assert.Equal(t, model.Price(30), *res.Position.AverageFillPrice)
}

func TestLiquidityTakerHitsBestBid(t *testing.T) {
	cfg := model.DefaultSimulationConfig()
	cfg.HumanLimitPrice = 0
	sim := New(cfg, &scriptedRand{floats: []float64{0.1, 0.2}})

	sim.Step()

	res := sim.Result()
	require.Len(t, res.Trades, 1)
	assert.Equal(t, model.Trade{Time: 0, Price: 35, Size: 10, Side: model.SELL_INTO_BID}, res.Trades[0])
	depth := sim.Depth()
	require.NotEmpty(t, depth.Bids)
	assert.Equal(t, model.PriceLevel{Price: 35, Size: 40}, depth.Bids[0])
}

func TestLiquidityTakerLiftsBestAsk(t *testing.T) {
	cfg := model.DefaultSimulationConfig()
	cfg.HumanLimitPrice = 0
	sim := New(cfg, &scriptedRand{floats: []float64{0.1, 0.7}})

	sim.Step()

	res := sim.Result()
	require.Len(t, res.Trades, 1)
	assert.Equal(t, model.Trade{Time: 0, Price: 45, Size: 10, Side: model.BUY_FROM_ASK}, res.Trades[0])
}

func TestLiquidityTakerTakesAtLeastOne(t *testing.T) {
	cfg := model.SimulationConfig{FairPrice: 40, InitialBid: 20, InitialAsk: 80, InitialSize: 3}
	sim := New(cfg, &scriptedRand{floats: []float64{0.1, 0.1}})

	sim.Step()

	res := sim.Result()
	require.Len(t, res.Trades, 1)
	assert.Equal(t, model.Quantity(1), res.Trades[0].Size)
	assert.Equal(t, levels(20, 2), sim.Depth().Bids)
}

func TestEmptyBidSideFallsThroughToAsks(t *testing.T) {
	cfg := model.SimulationConfig{FairPrice: 40, InitialBid: 20, InitialAsk: 80, InitialSize: 1}
	sim := New(cfg, &scriptedRand{floats: []float64{0.1, 0.1, 0.1, 0.1}})

	sim.Step()
	sim.Step()

	res := sim.Result()
	require.Len(t, res.Trades, 2)
	assert.Equal(t, model.SELL_INTO_BID, res.Trades[0].Side)
	assert.Equal(t, model.BUY_FROM_ASK, res.Trades[1].Side)
	assert.Equal(t, 1, res.Trades[1].Time)
	assert.Empty(t, sim.Depth().Asks)
}

func TestEmptyAskSideSkipsEvent(t *testing.T) {
	cfg := model.SimulationConfig{FairPrice: 40, InitialBid: 20, InitialAsk: 80, InitialSize: 1}
	sim := New(cfg, &scriptedRand{floats: []float64{0.1, 0.9, 0.1, 0.9}})

	sim.Step()
	sim.Step()

	res := sim.Result()
	require.Len(t, res.Trades, 1)
	assert.Equal(t, model.BUY_FROM_ASK, res.Trades[0].Side)
	assert.Equal(t, levels(20, 1), sim.Depth().Bids)
}

func TestRequoteStacksNewLevels(t *testing.T) {
	cfg := model.DefaultSimulationConfig()
	cfg.HumanLimitPrice = 0
	sim := New(cfg, &scriptedRand{norms: []float64{0.5, -0.25}})

	sim.Step()
	sim.Step()

	depth := sim.Depth()
	assert.Equal(t, levels(35.5, 50, 35, 50, 34.75, 50, 20, 100), depth.Bids)
	assert.Equal(t, levels(44.75, 50, 45, 50, 45.5, 50, 80, 100), depth.Asks)
}

func TestHistorySamplesEveryStep(t *testing.T) {
	cfg := model.DefaultSimulationConfig()
	cfg.HumanLimitPrice = 0
	sim := New(cfg, &scriptedRand{})

	for i := 0; i < 3; i++ {
		sim.Step()
	}

	res := sim.Result()
	require.Len(t, res.History, 3)
	for i, h := range res.History {
		assert.Equal(t, i, h.Time)
		require.NotNil(t, h.BestBid)
		require.NotNil(t, h.BestAsk)
		require.NotNil(t, h.Mid)
		assert.Equal(t, model.Price(35), *h.BestBid)
		assert.Equal(t, model.Price(45), *h.BestAsk)
		assert.Equal(t, model.Price(40), *h.Mid)
	}
	assert.Equal(t, 3, sim.Steps())
}

func TestHistoryMidMissingWhenSideEmpty(t *testing.T) {
	cfg := model.SimulationConfig{FairPrice: 40, InitialBid: 20, InitialAsk: 80, InitialSize: 1}
	sim := New(cfg, &scriptedRand{floats: []float64{0.1, 0.9}})

	sim.Step()

	h := sim.Result().History[0]
	require.NotNil(t, h.BestBid)
	assert.Nil(t, h.BestAsk)
	assert.Nil(t, h.Mid)
}

func TestLastReportsLatestStep(t *testing.T) {
	cfg := model.DefaultSimulationConfig()
	cfg.HumanLimitPrice = 0
	sim := New(cfg, &scriptedRand{floats: []float64{0.99, 0.1, 0.2}})

	_, _, ok := sim.Last()
	assert.False(t, ok)

	sim.Step()
	sample, trades, ok := sim.Last()
	require.True(t, ok)
	assert.Equal(t, 0, sample.Time)
	assert.Empty(t, trades)

	sim.Step()
	sample, trades, ok = sim.Last()
	require.True(t, ok)
	assert.Equal(t, 1, sample.Time)
	require.Len(t, trades, 1)
	assert.Equal(t, model.SELL_INTO_BID, trades[0].Side)
}

func TestInvariantsHoldAcrossSeeds(t *testing.T) {
	for seed := uint64(1); seed <= 40; seed++ {
		cfg := model.DefaultSimulationConfig()
		cfg.HumanLimitPrice = 44
		cfg.HumanSize = 120
		cfg.Steps = model.MaxSteps

		sim := New(cfg, NewRand(seed))
		var lastFilled model.Quantity
		for i := 0; i < cfg.Steps; i++ {
			sim.Step()

			depth := sim.Depth()
			for j, l := range depth.Bids {
				require.Positive(t, int64(l.Size), "seed %d step %d", seed, i)
				if j > 0 {
					require.Greater(t, depth.Bids[j-1].Price, l.Price, "seed %d step %d", seed, i)
				}
			}
			for j, l := range depth.Asks {
				require.Positive(t, int64(l.Size), "seed %d step %d", seed, i)
				if j > 0 {
					require.Less(t, depth.Asks[j-1].Price, l.Price, "seed %d step %d", seed, i)
				}
			}

			filled := sim.Result().Position.FilledQuantity
			require.GreaterOrEqual(t, filled, lastFilled)
			require.LessOrEqual(t, filled, cfg.HumanSize)
			lastFilled = filled
		}
	}
}

func TestHumanFillsMatchTradeLog(t *testing.T) {
	for seed := uint64(1); seed <= 40; seed++ {
		cfg := model.DefaultSimulationConfig()
		cfg.HumanLimitPrice = 46
		cfg.HumanSize = 75
		cfg.Steps = model.MaxSteps

		sim := New(cfg, NewRand(seed))
		for i := 0; i < cfg.Steps; i++ {
			sim.Step()
		}
		res := sim.Result()

		var booked model.Quantity
		var notional float64
		for _, tr := range res.Trades {
			if tr.Side == model.HUMAN_BUY_FILL {
				booked += tr.Size
				notional += float64(tr.Price) * float64(tr.Size)
			}
		}
		require.Equal(t, booked, res.Position.FilledQuantity, "seed %d", seed)
		if booked > 0 {
			require.NotNil(t, res.Position.AverageFillPrice)
			require.InDelta(t, notional/float64(booked), float64(*res.Position.AverageFillPrice), 1e-9, "seed %d", seed)
		}
	}
}

func TestTopOfBookAndLadder(t *testing.T) {
	cfg := model.DefaultSimulationConfig()
	sim := New(cfg, &scriptedRand{})

	top := sim.TopOfBook()
	require.NotNil(t, top.BestBid)
	require.NotNil(t, top.BestAsk)
	assert.Equal(t, model.PriceLevel{Price: 35, Size: 50}, *top.BestBid)
	assert.Equal(t, model.PriceLevel{Price: 45, Size: 50}, *top.BestAsk)
	assert.Equal(t, model.Price(10), top.Spread)

	ladder := sim.Ladder(1)
	assert.Equal(t, levels(35, 50), ladder.Bids)
	assert.Equal(t, levels(45, 50), ladder.Asks)
	assert.Equal(t, sim.Depth(), sim.Ladder(10))
}

func TestSameSeedReproducesRun(t *testing.T) {
	cfg := model.DefaultSimulationConfig()
	cfg.HumanLimitPrice = 43
	run := func() model.SimulationResult {
		sim := New(cfg, NewRand(42))
		for i := 0; i < cfg.Steps; i++ {
			sim.Step()
		}
		return sim.Result()
	}

	assert.Equal(t, run(), run())
}

func TestResultIsIdempotent(t *testing.T) {
	cfg := model.DefaultSimulationConfig()
	sim := New(cfg, NewRand(3))
	for i := 0; i < cfg.Steps; i++ {
		sim.Step()
	}

	first := sim.Result()
	second := sim.Result()
	assert.Equal(t, first, second)

	if len(first.Trades) > 0 {
		first.Trades[0].Size = -1
		assert.NotEqual(t, model.Quantity(-1), sim.Result().Trades[0].Size)
	}
}

func TestDegenerateHumanSizeNeverFills(t *testing.T) {
	cfg := model.DefaultSimulationConfig()
	cfg.HumanLimitPrice = 1000
	cfg.HumanSize = 0
	sim := New(cfg, NewRand(11))
	for i := 0; i < cfg.Steps; i++ {
		sim.Step()
	}
	res := sim.Result()
	assert.False(t, res.Position.Filled())
	assert.Nil(t, res.PnL)
}

func TestMarketMakerQuotesRoundToCents(t *testing.T) {
	bid, ask := MarketMakerQuotes(40.123456, 5)
	assert.Equal(t, model.Price(35.12), bid)
	assert.Equal(t, model.Price(45.12), ask)
}
