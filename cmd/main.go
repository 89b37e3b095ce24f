package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/Yusufzhafir/illiquid-sim/internal/config"
	logx "github.com/Yusufzhafir/illiquid-sim/internal/infra/log"
	"github.com/Yusufzhafir/illiquid-sim/internal/infra/metrics"
	"github.com/Yusufzhafir/illiquid-sim/internal/repository"
	ledgerRepository "github.com/Yusufzhafir/illiquid-sim/internal/repository/ledger"
	runRepository "github.com/Yusufzhafir/illiquid-sim/internal/repository/run"
	userRepository "github.com/Yusufzhafir/illiquid-sim/internal/repository/user"
	"github.com/Yusufzhafir/illiquid-sim/internal/router"
	"github.com/Yusufzhafir/illiquid-sim/internal/router/middleware"
	"github.com/Yusufzhafir/illiquid-sim/internal/settlement"
	"github.com/Yusufzhafir/illiquid-sim/internal/usecase/simulation"
	"github.com/Yusufzhafir/illiquid-sim/internal/usecase/user"
	"github.com/Yusufzhafir/illiquid-sim/internal/websocket"
	"github.com/Yusufzhafir/illiquid-sim/pkg/model"
	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	tb "github.com/tigerbeetle/tigerbeetle-go"
	tbTypes "github.com/tigerbeetle/tigerbeetle-go/pkg/types"
	"golang.org/x/sync/errgroup"

	_ "github.com/lib/pq"
)

func main() {
	rootCtx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	cfg, err := config.Load()
	if err != nil {
		fallback := logx.NewLogger(config.Defaults().Log)
		fallback.Fatal().Err(err).Msg("load config")
	}
	logger := logx.NewLogger(cfg.Log)
	if err := cfg.Validate(); err != nil {
		logger.Fatal().Err(err).Msg("invalid config")
	}

	reg := metrics.Init(logger)
	hub := websocket.NewHub(logger)
	go hub.Run(rootCtx)

	serveMux := http.NewServeMux()

	//start ws on servemux
	serveMux.HandleFunc("/ws", func(w http.ResponseWriter, r *http.Request) {
		websocket.ServeWS(hub, w, r)
	})
	serveMux.Handle("GET /metrics", metrics.Handler(reg))

	simulationOpts := simulation.SimulationUseCaseOpts{
		Logger:       logger,
		StepInterval: cfg.Simulation.StepInterval,
		Presets:      cfg.Simulation.Presets,
	}
	bindRouterOpts := router.BindRouterOpts{
		ServerRouter: serveMux,
		Logger:       logger,
	}

	if cfg.DB.Enabled() {
		db, err := sqlx.Connect("postgres", cfg.DB.DSN())
		if err != nil {
			logger.Fatal().Err(err).Msg("error connecting postgres")
		}
		defer db.Close()
		if err := repository.Migrate(rootCtx, db); err != nil {
			logger.Fatal().Err(err).Msg("migrate schema")
		}

		simulationOpts.Db = db
		simulationOpts.RunRepo = runRepository.NewRunRepository()
		bindRouterOpts.UserUseCase = user.NewUserUseCase(user.UserUseCaseOpts{
			UserRepo: userRepository.NewUserRepository(db),
			Logger:   logger,
		})
		bindRouterOpts.TokenMaker = middleware.NewJWTMaker(cfg.JWTSecret)
		bindRouterOpts.TokenTTL = cfg.TokenTTL

		if cfg.TigerBeetle.Enabled {
			settler, closeTB, err := newSettler(rootCtx, cfg, db, logger)
			if err != nil {
				logger.Fatal().Err(err).Msg("tigerbeetle settlement")
			}
			defer closeTB()
			simulationOpts.Settler = settler
		}
	} else {
		logger.Warn().Msg("DB_HOST not set, runs are kept in memory only")
	}

	simulationUseCase := simulation.NewSimulationUseCase(rootCtx, simulationOpts)
	streamRuns(simulationUseCase, hub)

	bindRouterOpts.SimulationUseCase = simulationUseCase
	router.BindRouter(bindRouterOpts)
	logger.Info().Msg("finished binding router")

	server := &http.Server{
		Addr:              cfg.HTTPAddr,
		Handler:           router.Cors(serveMux),
		ReadHeaderTimeout: 10 * time.Second,
	}

	g, gctx := errgroup.WithContext(rootCtx)
	g.Go(func() error {
		logger.Info().Str("addr", server.Addr).Msg("HTTP server listening")
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		logger.Info().Msg("shutdown signal received")

		// Give in-flight requests up to 10s to finish.
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := server.Shutdown(shutdownCtx); err != nil {
			logger.Warn().Err(err).Msg("graceful shutdown failed, forcing close")
			_ = server.Close()
		}
		return nil
	})

	if err := g.Wait(); err != nil {
		logger.Error().Err(err).Msg("server error")
	}
	stop()
	simulationUseCase.Wait()
	logger.Info().Msg("server stopped")
}

func newSettler(ctx context.Context, cfg *config.Config, db *sqlx.DB, logger logx.Logger) (settlement.Settler, func(), error) {
	tbClient, err := tb.NewClient(tbTypes.ToUint128(cfg.TigerBeetle.ClusterID), []string{cfg.TigerBeetle.Address})
	if err != nil {
		return nil, nil, err
	}

	tx, err := db.BeginTxx(ctx, nil)
	if err != nil {
		tbClient.Close()
		return nil, nil, err
	}
	defer tx.Rollback()
	accounts, err := settlement.LoadAccounts(ctx, tx, ledgerRepository.NewLedgerRepository(),
		cfg.TigerBeetle.CashLedger, cfg.TigerBeetle.ContractLedger)
	if err != nil {
		tbClient.Close()
		return nil, nil, err
	}

	settler := settlement.NewSettler(settlement.SettlerOpts{
		Client:         tbClient,
		Accounts:       accounts,
		CashLedger:     cfg.TigerBeetle.CashLedger,
		ContractLedger: cfg.TigerBeetle.ContractLedger,
		Logger:         logger,
	})
	return settler, tbClient.Close, nil
}

// streamRuns forwards every step and every finished run to websocket clients.
func streamRuns(usecase simulation.SimulationUseCase, hub *websocket.Hub) {
	usecase.RegisterStepHandler(func(runID uuid.UUID, update simulation.StepUpdate) {
		id := runID.String()
		for _, tr := range update.Trades {
			hub.PublishTrade(id, tr)
		}
		hub.PublishSample(id, update.Sample, update.Top, update.Ladder)
	})
	usecase.RegisterDoneHandler(func(report model.RunReport) {
		hub.PublishDone(report.ID.String(), report.Result.Position, report.Result.PnL)
	})
}
