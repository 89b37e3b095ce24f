package run

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/Yusufzhafir/illiquid-sim/pkg/model"
	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
)

// --- Models corresponding to DB tables ---
type RunRecord struct {
	ID               uuid.UUID       `db:"id"`
	UserID           sql.NullInt64   `db:"user_id"`
	Seed             string          `db:"seed"`   // NUMERIC(20,0), uint64 does not fit BIGINT
	Config           string          `db:"config"` // JSONB
	FilledQuantity   int64           `db:"filled_quantity"`
	AverageFillPrice sql.NullFloat64 `db:"average_fill_price"`
	PnL              sql.NullFloat64 `db:"pnl"`
	StartedAt        time.Time       `db:"started_at"`
	FinishedAt       time.Time       `db:"finished_at"`
}

// RunListing is a run row with the number of trades archived for it.
type RunListing struct {
	RunRecord
	TradeCount int `db:"trade_count"`
}

type TradeRecord struct {
	RunID uuid.UUID `db:"run_id"`
	Seq   int       `db:"seq"`
	Step  int       `db:"step"`
	Price float64   `db:"price"`
	Size  int64     `db:"size"`
	Side  string    `db:"side"`
}

type SampleRecord struct {
	RunID   uuid.UUID       `db:"run_id"`
	Step    int             `db:"step"`
	BestBid sql.NullFloat64 `db:"best_bid"`
	BestAsk sql.NullFloat64 `db:"best_ask"`
	Mid     sql.NullFloat64 `db:"mid"`
}

// --- Repository Interface ---
type RunRepository interface {
	CreateRun(ctx context.Context, tx *sqlx.Tx, run RunRecord) error
	CreateTrades(ctx context.Context, tx *sqlx.Tx, trades []TradeRecord) error
	CreateSamples(ctx context.Context, tx *sqlx.Tx, samples []SampleRecord) error
	GetRunByID(ctx context.Context, tx *sqlx.Tx, id uuid.UUID) (*RunRecord, error)
	ListTrades(ctx context.Context, tx *sqlx.Tx, runID uuid.UUID) ([]TradeRecord, error)
	ListSamples(ctx context.Context, tx *sqlx.Tx, runID uuid.UUID) ([]SampleRecord, error)
	ListRuns(ctx context.Context, tx *sqlx.Tx, limit int) ([]RunListing, error)
}

// --- Implementation ---
type runRepositoryImpl struct{}

func NewRunRepository() RunRepository {
	return &runRepositoryImpl{}
}

const runColumns = `id, user_id, seed, config, filled_quantity, average_fill_price, pnl, started_at, finished_at`

func (r *runRepositoryImpl) CreateRun(ctx context.Context, tx *sqlx.Tx, run RunRecord) error {
	_, err := tx.NamedExecContext(ctx,
		`INSERT INTO simulation_run (`+runColumns+`)
         VALUES (:id, :user_id, :seed, :config, :filled_quantity, :average_fill_price, :pnl, :started_at, :finished_at)`,
		run)
	return err
}

func (r *runRepositoryImpl) CreateTrades(ctx context.Context, tx *sqlx.Tx, trades []TradeRecord) error {
	if len(trades) == 0 {
		return nil
	}
	_, err := tx.NamedExecContext(ctx,
		`INSERT INTO simulation_trade (run_id, seq, step, price, size, side)
         VALUES (:run_id, :seq, :step, :price, :size, :side)`,
		trades)
	return err
}

func (r *runRepositoryImpl) CreateSamples(ctx context.Context, tx *sqlx.Tx, samples []SampleRecord) error {
	if len(samples) == 0 {
		return nil
	}
	_, err := tx.NamedExecContext(ctx,
		`INSERT INTO simulation_sample (run_id, step, best_bid, best_ask, mid)
         VALUES (:run_id, :step, :best_bid, :best_ask, :mid)`,
		samples)
	return err
}

func (r *runRepositoryImpl) GetRunByID(ctx context.Context, tx *sqlx.Tx, id uuid.UUID) (*RunRecord, error) {
	var run RunRecord
	err := tx.GetContext(ctx, &run,
		`SELECT `+runColumns+` FROM simulation_run WHERE id=$1`, id)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%w: %s", model.ErrRunNotFound, id)
	}
	if err != nil {
		return nil, err
	}
	return &run, nil
}

func (r *runRepositoryImpl) ListTrades(ctx context.Context, tx *sqlx.Tx, runID uuid.UUID) ([]TradeRecord, error) {
	var list []TradeRecord
	err := tx.SelectContext(ctx, &list,
		`SELECT run_id, seq, step, price, size, side FROM simulation_trade WHERE run_id=$1 ORDER BY seq`, runID)
	return list, err
}

func (r *runRepositoryImpl) ListSamples(ctx context.Context, tx *sqlx.Tx, runID uuid.UUID) ([]SampleRecord, error) {
	var list []SampleRecord
	err := tx.SelectContext(ctx, &list,
		`SELECT run_id, step, best_bid, best_ask, mid FROM simulation_sample WHERE run_id=$1 ORDER BY step`, runID)
	return list, err
}

func (r *runRepositoryImpl) ListRuns(ctx context.Context, tx *sqlx.Tx, limit int) ([]RunListing, error) {
	var list []RunListing
	err := tx.SelectContext(ctx, &list,
		`SELECT `+runColumns+`,
                (SELECT COUNT(*) FROM simulation_trade t WHERE t.run_id = simulation_run.id) AS trade_count
         FROM simulation_run ORDER BY started_at DESC LIMIT $1`, limit)
	return list, err
}

// ToRecords flattens a finished run into its table rows. userID <= 0 is
// stored as NULL.
func ToRecords(report model.RunReport, userID int64) (RunRecord, []TradeRecord, []SampleRecord, error) {
	cfg, err := json.Marshal(report.Config)
	if err != nil {
		return RunRecord{}, nil, nil, fmt.Errorf("marshal config: %w", err)
	}
	pos := report.Result.Position
	run := RunRecord{
		ID:               report.ID,
		UserID:           sql.NullInt64{Int64: userID, Valid: userID > 0},
		Seed:             strconv.FormatUint(report.Seed, 10),
		Config:           string(cfg),
		FilledQuantity:   int64(pos.FilledQuantity),
		AverageFillPrice: nullPrice(pos.AverageFillPrice),
		StartedAt:        report.StartedAt,
		FinishedAt:       report.FinishedAt,
	}
	if report.Result.PnL != nil {
		run.PnL = sql.NullFloat64{Float64: *report.Result.PnL, Valid: true}
	}

	trades := make([]TradeRecord, 0, len(report.Result.Trades))
	for i, tr := range report.Result.Trades {
		trades = append(trades, TradeRecord{
			RunID: report.ID,
			Seq:   i,
			Step:  tr.Time,
			Price: float64(tr.Price),
			Size:  int64(tr.Size),
			Side:  string(tr.Side),
		})
	}

	samples := make([]SampleRecord, 0, len(report.Result.History))
	for _, s := range report.Result.History {
		samples = append(samples, SampleRecord{
			RunID:   report.ID,
			Step:    s.Time,
			BestBid: nullPrice(s.BestBid),
			BestAsk: nullPrice(s.BestAsk),
			Mid:     nullPrice(s.Mid),
		})
	}
	return run, trades, samples, nil
}

// ToReport rebuilds the report ToRecords flattened.
func ToReport(run RunRecord, trades []TradeRecord, samples []SampleRecord) (*model.RunReport, error) {
	seed, err := strconv.ParseUint(run.Seed, 10, 64)
	if err != nil {
		return nil, fmt.Errorf("parse seed %q: %w", run.Seed, err)
	}
	var cfg model.SimulationConfig
	if err := json.Unmarshal([]byte(run.Config), &cfg); err != nil {
		return nil, fmt.Errorf("unmarshal config: %w", err)
	}

	report := &model.RunReport{
		ID:         run.ID,
		Seed:       seed,
		Config:     cfg,
		StartedAt:  run.StartedAt,
		FinishedAt: run.FinishedAt,
		Result: model.SimulationResult{
			History: make([]model.HistorySample, 0, len(samples)),
			Trades:  make([]model.Trade, 0, len(trades)),
			Position: model.HumanPosition{
				FilledQuantity:   model.Quantity(run.FilledQuantity),
				AverageFillPrice: pricePtr(run.AverageFillPrice),
			},
		},
	}
	if run.PnL.Valid {
		pnl := run.PnL.Float64
		report.Result.PnL = &pnl
	}
	for _, tr := range trades {
		report.Result.Trades = append(report.Result.Trades, model.Trade{
			Time:  tr.Step,
			Price: model.Price(tr.Price),
			Size:  model.Quantity(tr.Size),
			Side:  model.TradeSide(tr.Side),
		})
	}
	for _, s := range samples {
		report.Result.History = append(report.Result.History, model.HistorySample{
			Time:    s.Step,
			BestBid: pricePtr(s.BestBid),
			BestAsk: pricePtr(s.BestAsk),
			Mid:     pricePtr(s.Mid),
		})
	}
	return report, nil
}

func nullPrice(p *model.Price) sql.NullFloat64 {
	if p == nil {
		return sql.NullFloat64{}
	}
	return sql.NullFloat64{Float64: float64(*p), Valid: true}
}

func pricePtr(v sql.NullFloat64) *model.Price {
	if !v.Valid {
		return nil
	}
	p := model.Price(v.Float64)
	return &p
}
