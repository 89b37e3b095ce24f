package ledger

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"math/big"
	"time"

	"github.com/jmoiron/sqlx"
)

// ParticipantAccount maps a settlement participant to its TigerBeetle
// account on one ledger.
type ParticipantAccount struct {
	ID          int64     `db:"id"`
	Participant string    `db:"participant"`
	TBLedgerID  int64     `db:"tb_ledger_id"`
	TBAccountID string    `db:"tb_account_id"`
	CreatedAt   time.Time `db:"created_at"`
}

var ErrAccountNotFound = errors.New("participant account not found")

// --- Interface ---
type LedgerRepository interface {
	CreateParticipantAccount(ctx context.Context, tx *sqlx.Tx, participant string, tbLedgerID int64, tbAccountID *big.Int) (int64, error)
	GetParticipantAccount(ctx context.Context, tx *sqlx.Tx, participant string, tbLedgerID int64) (*ParticipantAccount, error)
	ListParticipantAccounts(ctx context.Context, tx *sqlx.Tx) ([]ParticipantAccount, error)
}

type ledgerRepositoryImpl struct {
}

func NewLedgerRepository() LedgerRepository {
	return &ledgerRepositoryImpl{}
}

func (r *ledgerRepositoryImpl) CreateParticipantAccount(ctx context.Context, tx *sqlx.Tx, participant string, tbLedgerID int64, tbAccountID *big.Int) (int64, error) {
	var id int64
	err := tx.QueryRowContext(ctx,
		`INSERT INTO participant_account (participant, tb_ledger_id, tb_account_id)
         VALUES ($1, $2, $3) RETURNING id`,
		participant, tbLedgerID, tbAccountID.String(),
	).Scan(&id)
	return id, err
}

func (r *ledgerRepositoryImpl) GetParticipantAccount(ctx context.Context, tx *sqlx.Tx, participant string, tbLedgerID int64) (*ParticipantAccount, error) {
	var pa ParticipantAccount
	err := tx.GetContext(ctx, &pa,
		`SELECT id, participant, tb_ledger_id, tb_account_id, created_at
         FROM participant_account
         WHERE participant=$1 AND tb_ledger_id=$2`,
		participant, tbLedgerID)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%w: %s on ledger %d", ErrAccountNotFound, participant, tbLedgerID)
	}
	if err != nil {
		return nil, err
	}
	return &pa, nil
}

func (r *ledgerRepositoryImpl) ListParticipantAccounts(ctx context.Context, tx *sqlx.Tx) ([]ParticipantAccount, error) {
	var list []ParticipantAccount
	err := tx.SelectContext(ctx, &list,
		`SELECT id, participant, tb_ledger_id, tb_account_id, created_at
         FROM participant_account
         ORDER BY participant, tb_ledger_id`)
	return list, err
}
