package run

import (
	"testing"
	"time"

	"github.com/Yusufzhafir/illiquid-sim/pkg/model"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func price(p model.Price) *model.Price { return &p }

func TestRecordsRoundTripReport(t *testing.T) {
	pnl := 100.0
	started := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	report := model.RunReport{
		ID:     uuid.New(),
		Seed:   ^uint64(0),
		Config: model.DefaultSimulationConfig(),
		Result: model.SimulationResult{
			History: []model.HistorySample{
				{Time: 0, BestBid: price(35), BestAsk: price(45), Mid: price(40)},
				{Time: 1, BestBid: price(35)},
			},
			Trades: []model.Trade{
				{Time: 0, Price: 45, Size: 10, Side: model.BUY_FROM_ASK},
				{Time: 1, Price: 30, Size: 10, Side: model.HUMAN_BUY_FILL},
			},
			Position: model.HumanPosition{FilledQuantity: 10, AverageFillPrice: price(30)},
			PnL:      &pnl,
		},
		StartedAt:  started,
		FinishedAt: started.Add(time.Second),
	}

	run, trades, samples, err := ToRecords(report, 0)
	require.NoError(t, err)
	assert.False(t, run.UserID.Valid)
	assert.Equal(t, "18446744073709551615", run.Seed)
	require.Len(t, trades, 2)
	assert.Equal(t, 1, trades[1].Seq)
	assert.Equal(t, "human_buy_fill", trades[1].Side)
	require.Len(t, samples, 2)
	assert.False(t, samples[1].Mid.Valid)

	back, err := ToReport(run, trades, samples)
	require.NoError(t, err)
	assert.Equal(t, report, *back)
}

func TestToRecordsKeepsUser(t *testing.T) {
	report := model.RunReport{ID: uuid.New(), Config: model.DefaultSimulationConfig()}

	run, trades, samples, err := ToRecords(report, 7)
	require.NoError(t, err)
	assert.True(t, run.UserID.Valid)
	assert.Equal(t, int64(7), run.UserID.Int64)
	assert.False(t, run.PnL.Valid)
	assert.Empty(t, trades)
	assert.Empty(t, samples)
}

func TestToReportRejectsBadSeed(t *testing.T) {
	_, err := ToReport(RunRecord{Seed: "abc", Config: "{}"}, nil, nil)
	assert.Error(t, err)
}
