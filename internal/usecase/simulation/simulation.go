package simulation

import (
	"context"
	"database/sql"
	"fmt"
	"math/rand/v2"
	"sort"
	"sync"
	"time"

	"github.com/Yusufzhafir/illiquid-sim/internal/infra/metrics"
	runRepository "github.com/Yusufzhafir/illiquid-sim/internal/repository/run"
	"github.com/Yusufzhafir/illiquid-sim/internal/settlement"
	simulator "github.com/Yusufzhafir/illiquid-sim/internal/simulation"
	"github.com/Yusufzhafir/illiquid-sim/pkg/model"
	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"github.com/rs/zerolog"
	"golang.org/x/sync/semaphore"
)

const (
	DefaultPreset = "default"

	defaultMaxConcurrentRuns = 8
	recentRunsCapacity       = 256
	defaultListLimit         = 50
	maxListLimit             = 500
	ladderLevels             = 5
)

// RunRequest selects the parameters of one run. Config, when set, replaces
// the preset entirely; Seed, when set, makes the run reproducible.
type RunRequest struct {
	Preset string
	Config *model.SimulationConfig
	Seed   *uint64
	UserID int64
}

// StepUpdate is what one step produced, as seen by live consumers.
type StepUpdate struct {
	Sample model.HistorySample
	Trades []model.Trade
	Top    *model.TopOfBook
	Ladder *model.MarketDepth
}

type StepHandler func(runID uuid.UUID, update StepUpdate)
type DoneHandler func(report model.RunReport)

type SimulationUseCase interface {
	Run(ctx context.Context, req RunRequest) (*model.RunReport, error)
	Start(ctx context.Context, req RunRequest) (uuid.UUID, error)
	Chase(ctx context.Context, fairValue, algoBuyStart model.Price) model.ChaseResult
	GetRun(ctx context.Context, id uuid.UUID) (*model.RunReport, error)
	ListRuns(ctx context.Context, limit int) ([]model.RunSummary, error)
	Preset(name string) (model.SimulationConfig, error)
	PresetNames() []string

	RegisterStepHandler(handler StepHandler)
	RegisterDoneHandler(handler DoneHandler)

	// Wait blocks until every run launched by Start has returned.
	Wait()
}

type simulationUseCaseImpl struct {
	ctx    context.Context
	logger zerolog.Logger

	db      *sqlx.DB // nil keeps runs in memory only
	runRepo runRepository.RunRepository
	settler settlement.Settler // nil skips settlement

	stepInterval time.Duration
	presets      map[string]model.SimulationConfig
	newRand      func(seed uint64) simulator.RandSource

	slots *semaphore.Weighted
	wg    sync.WaitGroup

	mu           sync.RWMutex
	stepHandlers []StepHandler
	doneHandlers []DoneHandler
	recent       map[uuid.UUID]*model.RunReport
	recentOrder  []uuid.UUID
}

type SimulationUseCaseOpts struct {
	Logger            zerolog.Logger
	Db                *sqlx.DB
	RunRepo           runRepository.RunRepository
	Settler           settlement.Settler
	StepInterval      time.Duration
	Presets           map[string]model.SimulationConfig
	MaxConcurrentRuns int64

	// NewRand overrides the seeded generator; tests script the market with it.
	NewRand func(seed uint64) simulator.RandSource
}

// NewSimulationUseCase constructs the use case. Runs launched by Start are
// bound to ctx rather than to the request that started them.
func NewSimulationUseCase(ctx context.Context, opts SimulationUseCaseOpts) SimulationUseCase {
	presets := make(map[string]model.SimulationConfig, len(opts.Presets)+1)
	presets[DefaultPreset] = model.DefaultSimulationConfig()
	for name, p := range opts.Presets {
		presets[name] = p
	}
	newRand := opts.NewRand
	if newRand == nil {
		newRand = func(seed uint64) simulator.RandSource { return simulator.NewRand(seed) }
	}
	maxRuns := opts.MaxConcurrentRuns
	if maxRuns <= 0 {
		maxRuns = defaultMaxConcurrentRuns
	}
	return &simulationUseCaseImpl{
		ctx:          ctx,
		logger:       opts.Logger.With().Str("component", "simulation").Logger(),
		db:           opts.Db,
		runRepo:      opts.RunRepo,
		settler:      opts.Settler,
		stepInterval: opts.StepInterval,
		presets:      presets,
		newRand:      newRand,
		slots:        semaphore.NewWeighted(maxRuns),
		recent:       make(map[uuid.UUID]*model.RunReport),
	}
}

func (uc *simulationUseCaseImpl) RegisterStepHandler(handler StepHandler) {
	uc.mu.Lock()
	defer uc.mu.Unlock()
	uc.stepHandlers = append(uc.stepHandlers, handler)
}

func (uc *simulationUseCaseImpl) RegisterDoneHandler(handler DoneHandler) {
	uc.mu.Lock()
	defer uc.mu.Unlock()
	uc.doneHandlers = append(uc.doneHandlers, handler)
}

func (uc *simulationUseCaseImpl) Run(ctx context.Context, req RunRequest) (*model.RunReport, error) {
	cfg, seed, err := uc.resolve(req)
	if err != nil {
		return nil, err
	}
	if err := uc.slots.Acquire(ctx, 1); err != nil {
		return nil, err
	}
	defer uc.slots.Release(1)
	return uc.run(ctx, uuid.New(), cfg, seed, req.UserID)
}

func (uc *simulationUseCaseImpl) Start(ctx context.Context, req RunRequest) (uuid.UUID, error) {
	cfg, seed, err := uc.resolve(req)
	if err != nil {
		return uuid.Nil, err
	}
	if !uc.slots.TryAcquire(1) {
		return uuid.Nil, model.ErrTooManyRuns
	}

	id := uuid.New()
	uc.wg.Add(1)
	go func() {
		defer uc.wg.Done()
		defer uc.slots.Release(1)
		if _, err := uc.run(uc.ctx, id, cfg, seed, req.UserID); err != nil {
			uc.logger.Error().Err(err).Str("run", id.String()).Msg("background run failed")
		}
	}()
	return id, nil
}

func (uc *simulationUseCaseImpl) Wait() {
	uc.wg.Wait()
}

func (uc *simulationUseCaseImpl) resolve(req RunRequest) (model.SimulationConfig, uint64, error) {
	var cfg model.SimulationConfig
	if req.Config != nil {
		cfg = *req.Config
	} else {
		name := req.Preset
		if name == "" {
			name = DefaultPreset
		}
		p, err := uc.Preset(name)
		if err != nil {
			return cfg, 0, err
		}
		cfg = p
	}
	if err := cfg.Validate(); err != nil {
		return cfg, 0, err
	}

	seed := rand.Uint64()
	if req.Seed != nil {
		seed = *req.Seed
	}
	return cfg, seed, nil
}

func (uc *simulationUseCaseImpl) run(ctx context.Context, id uuid.UUID, cfg model.SimulationConfig, seed uint64, userID int64) (*model.RunReport, error) {
	logger := uc.logger.With().Str("run", id.String()).Uint64("seed", seed).Logger()
	metrics.RunsStartedTotal.Inc()
	started := time.Now()

	sim := simulator.New(cfg, uc.newRand(seed))
	for i := 0; i < cfg.Steps; i++ {
		if err := ctx.Err(); err != nil {
			metrics.RunsCompletedTotal.WithLabelValues("cancelled").Inc()
			return nil, fmt.Errorf("run %s cancelled at step %d: %w", id, i, err)
		}

		sim.Step()
		sample, trades, _ := sim.Last()
		metrics.StepsTotal.Inc()
		for _, tr := range trades {
			metrics.TradesTotal.WithLabelValues(string(tr.Side)).Inc()
		}
		uc.notifyStep(id, StepUpdate{
			Sample: sample,
			Trades: trades,
			Top:    sim.TopOfBook(),
			Ladder: sim.Ladder(ladderLevels),
		})

		if uc.stepInterval > 0 && i < cfg.Steps-1 {
			select {
			case <-ctx.Done():
			case <-time.After(uc.stepInterval):
			}
		}
	}

	report := &model.RunReport{
		ID:         id,
		Seed:       seed,
		Config:     cfg,
		Result:     sim.Result(),
		StartedAt:  started,
		FinishedAt: time.Now(),
	}
	observe(report)

	if uc.settler != nil {
		if err := uc.settler.Settle(ctx, id, report.Result.Trades); err != nil {
			metrics.SettlementErrors.Inc()
			logger.Error().Err(err).Msg("settlement failed")
		}
	}
	if uc.db != nil {
		if err := uc.archive(ctx, report, userID); err != nil {
			metrics.RunsCompletedTotal.WithLabelValues("archive_failed").Inc()
			return nil, fmt.Errorf("archive run %s: %w", id, err)
		}
	}

	uc.remember(report)
	metrics.RunsCompletedTotal.WithLabelValues("ok").Inc()
	logger.Info().
		Int("steps", cfg.Steps).
		Int("trades", len(report.Result.Trades)).
		Int64("filled", int64(report.Result.Position.FilledQuantity)).
		Msg("run finished")
	uc.notifyDone(*report)
	return report, nil
}

func observe(report *model.RunReport) {
	metrics.RunDurationSeconds.Observe(report.FinishedAt.Sub(report.StartedAt).Seconds())
	if size := report.Config.HumanSize; size > 0 {
		metrics.HumanFillRatio.Observe(float64(report.Result.Position.FilledQuantity) / float64(size))
	}
	if report.Result.PnL != nil {
		metrics.HumanPnL.Observe(*report.Result.PnL)
	}
}

func (uc *simulationUseCaseImpl) notifyStep(id uuid.UUID, update StepUpdate) {
	uc.mu.RLock()
	handlers := uc.stepHandlers
	uc.mu.RUnlock()
	for _, h := range handlers {
		h(id, update)
	}
}

func (uc *simulationUseCaseImpl) notifyDone(report model.RunReport) {
	uc.mu.RLock()
	handlers := uc.doneHandlers
	uc.mu.RUnlock()
	for _, h := range handlers {
		h(report)
	}
}

// remember keeps the most recent reports so runs can be fetched without a
// database. Only runs that finished cleanly, archive included, are kept.
func (uc *simulationUseCaseImpl) remember(report *model.RunReport) {
	uc.mu.Lock()
	defer uc.mu.Unlock()
	uc.recent[report.ID] = report
	uc.recentOrder = append(uc.recentOrder, report.ID)
	if len(uc.recentOrder) > recentRunsCapacity {
		delete(uc.recent, uc.recentOrder[0])
		uc.recentOrder = uc.recentOrder[1:]
	}
}

func (uc *simulationUseCaseImpl) archive(ctx context.Context, report *model.RunReport, userID int64) error {
	run, trades, samples, err := runRepository.ToRecords(*report, userID)
	if err != nil {
		return err
	}

	tx, err := uc.db.BeginTxx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	if err := uc.runRepo.CreateRun(ctx, tx, run); err != nil {
		return fmt.Errorf("insert run: %w", err)
	}
	if err := uc.runRepo.CreateTrades(ctx, tx, trades); err != nil {
		return fmt.Errorf("insert trades: %w", err)
	}
	if err := uc.runRepo.CreateSamples(ctx, tx, samples); err != nil {
		return fmt.Errorf("insert samples: %w", err)
	}
	return tx.Commit()
}

func (uc *simulationUseCaseImpl) Chase(ctx context.Context, fairValue, algoBuyStart model.Price) model.ChaseResult {
	return simulator.SimulateChase(fairValue, algoBuyStart)
}

func (uc *simulationUseCaseImpl) GetRun(ctx context.Context, id uuid.UUID) (*model.RunReport, error) {
	uc.mu.RLock()
	report, ok := uc.recent[id]
	uc.mu.RUnlock()
	if ok {
		return report, nil
	}
	if uc.db == nil {
		return nil, fmt.Errorf("%w: %s", model.ErrRunNotFound, id)
	}

	tx, err := uc.db.BeginTxx(ctx, &sql.TxOptions{ReadOnly: true})
	if err != nil {
		return nil, err
	}
	defer tx.Rollback()

	run, err := uc.runRepo.GetRunByID(ctx, tx, id)
	if err != nil {
		return nil, err
	}
	trades, err := uc.runRepo.ListTrades(ctx, tx, id)
	if err != nil {
		return nil, err
	}
	samples, err := uc.runRepo.ListSamples(ctx, tx, id)
	if err != nil {
		return nil, err
	}
	return runRepository.ToReport(*run, trades, samples)
}

// ListRuns returns the newest runs first.
func (uc *simulationUseCaseImpl) ListRuns(ctx context.Context, limit int) ([]model.RunSummary, error) {
	if limit <= 0 {
		limit = defaultListLimit
	}
	limit = min(limit, maxListLimit)

	if uc.db == nil {
		uc.mu.RLock()
		defer uc.mu.RUnlock()
		out := make([]model.RunSummary, 0, min(limit, len(uc.recentOrder)))
		for i := len(uc.recentOrder) - 1; i >= 0 && len(out) < limit; i-- {
			out = append(out, uc.recent[uc.recentOrder[i]].Summary())
		}
		return out, nil
	}

	tx, err := uc.db.BeginTxx(ctx, &sql.TxOptions{ReadOnly: true})
	if err != nil {
		return nil, err
	}
	defer tx.Rollback()

	runs, err := uc.runRepo.ListRuns(ctx, tx, limit)
	if err != nil {
		return nil, err
	}
	out := make([]model.RunSummary, 0, len(runs))
	for _, run := range runs {
		report, err := runRepository.ToReport(run.RunRecord, nil, nil)
		if err != nil {
			return nil, err
		}
		summary := report.Summary()
		summary.TradeCount = run.TradeCount
		out = append(out, summary)
	}
	return out, nil
}

func (uc *simulationUseCaseImpl) Preset(name string) (model.SimulationConfig, error) {
	p, ok := uc.presets[name]
	if !ok {
		return model.SimulationConfig{}, fmt.Errorf("%w: %q", model.ErrPresetNotFound, name)
	}
	return p, nil
}

func (uc *simulationUseCaseImpl) PresetNames() []string {
	names := make([]string, 0, len(uc.presets))
	for name := range uc.presets {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
