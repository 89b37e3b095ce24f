// Command init creates the schema and opens the settlement participant
// accounts in TigerBeetle. Running it again is a no-op once the accounts
// are recorded.
package main

import (
	"context"
	"errors"
	"os"
	"os/signal"
	"syscall"

	"github.com/Yusufzhafir/illiquid-sim/internal/config"
	logx "github.com/Yusufzhafir/illiquid-sim/internal/infra/log"
	"github.com/Yusufzhafir/illiquid-sim/internal/repository"
	ledgerRepository "github.com/Yusufzhafir/illiquid-sim/internal/repository/ledger"
	"github.com/Yusufzhafir/illiquid-sim/internal/settlement"
	"github.com/jmoiron/sqlx"
	tb "github.com/tigerbeetle/tigerbeetle-go"
	tbTypes "github.com/tigerbeetle/tigerbeetle-go/pkg/types"

	_ "github.com/lib/pq"
)

const accountCode = 1001

func main() {
	rootCtx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	cfg, err := config.Load()
	if err != nil {
		fallback := logx.NewLogger(config.Defaults().Log)
		fallback.Fatal().Err(err).Msg("load config")
	}
	logger := logx.NewLogger(cfg.Log)
	if !cfg.DB.Enabled() {
		logger.Fatal().Msg("DB_HOST is required")
	}

	db, err := sqlx.Connect("postgres", cfg.DB.DSN())
	if err != nil {
		logger.Fatal().Err(err).Msg("error connecting postgres")
	}
	defer db.Close()
	if err := repository.Migrate(rootCtx, db); err != nil {
		logger.Fatal().Err(err).Msg("migrate schema")
	}
	logger.Info().Msg("schema ready")

	if !cfg.TigerBeetle.Enabled {
		logger.Info().Msg("TB_ENABLED not set, skipping settlement accounts")
		return
	}

	client, err := tb.NewClient(tbTypes.ToUint128(cfg.TigerBeetle.ClusterID), []string{cfg.TigerBeetle.Address})
	if err != nil {
		logger.Fatal().Err(err).Msg("error connecting tigerbeetle")
	}
	defer client.Close()

	ledgerRepo := ledgerRepository.NewLedgerRepository()
	rootTx, err := db.BeginTxx(rootCtx, nil)
	if err != nil {
		logger.Fatal().Err(err).Msg("begin tx")
	}
	defer rootTx.Rollback()

	cash, contract := cfg.TigerBeetle.CashLedger, cfg.TigerBeetle.ContractLedger
	created, err := ensureAccounts(rootCtx, rootTx, ledgerRepo, client, cash, contract)
	if err != nil {
		logger.Fatal().Err(err).Msg("participant accounts")
	}
	if !created {
		logger.Info().Msg("participant accounts already exist")
		return
	}
	if err := rootTx.Commit(); err != nil {
		logger.Fatal().Err(err).Msg("commit")
	}

	existing, err := client.QueryAccounts(tbTypes.QueryFilter{Code: accountCode, Limit: 1000})
	if err != nil {
		logger.Fatal().Err(err).Msg("error fetching accounts")
	}
	logger.Info().Int("accounts", len(existing)).Uint32("cash_ledger", cash).Uint32("contract_ledger", contract).Msg("participant accounts opened")
}

// ensureAccounts opens and records the participant accounts unless a full
// set is already recorded. It reports whether anything was created.
func ensureAccounts(ctx context.Context, tx *sqlx.Tx, repo ledgerRepository.LedgerRepository, client settlement.Client, cash, contract uint32) (bool, error) {
	_, err := settlement.LoadAccounts(ctx, tx, repo, cash, contract)
	if err == nil {
		return false, nil
	}
	if !errors.Is(err, ledgerRepository.ErrAccountNotFound) {
		return false, err
	}

	accounts, err := settlement.OpenAccounts(client, cash, contract)
	if err != nil {
		return false, err
	}
	if err := settlement.SaveAccounts(ctx, tx, repo, accounts); err != nil {
		return false, err
	}
	return true, nil
}
