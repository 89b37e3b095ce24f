package settlement

import (
	"context"
	"fmt"

	"github.com/Yusufzhafir/illiquid-sim/internal/repository/ledger"
	"github.com/Yusufzhafir/illiquid-sim/pkg/util"
	"github.com/jmoiron/sqlx"
)

// LoadAccounts reads the participant accounts written by SaveAccounts and
// checks every participant has both ledgers.
func LoadAccounts(ctx context.Context, tx *sqlx.Tx, repo ledger.LedgerRepository, cashLedger, contractLedger uint32) (Accounts, error) {
	rows, err := repo.ListParticipantAccounts(ctx, tx)
	if err != nil {
		return nil, fmt.Errorf("list participant accounts: %w", err)
	}
	accounts, err := AccountsFromRecords(rows)
	if err != nil {
		return nil, err
	}
	for _, p := range Participants {
		for _, l := range []uint32{cashLedger, contractLedger} {
			if _, err := accounts.lookup(p, l); err != nil {
				return nil, fmt.Errorf("%w: %v", ledger.ErrAccountNotFound, err)
			}
		}
	}
	return accounts, nil
}

func AccountsFromRecords(rows []ledger.ParticipantAccount) (Accounts, error) {
	accounts := make(Accounts, len(rows))
	for _, row := range rows {
		id, err := util.StringToUint128(row.TBAccountID)
		if err != nil {
			return nil, fmt.Errorf("account %d: %w", row.ID, err)
		}
		if row.TBLedgerID < 0 || row.TBLedgerID > int64(^uint32(0)) {
			return nil, fmt.Errorf("account %d: ledger %d out of range", row.ID, row.TBLedgerID)
		}
		accounts[AccountKey{Participant: Participant(row.Participant), Ledger: uint32(row.TBLedgerID)}] = id
	}
	return accounts, nil
}

func SaveAccounts(ctx context.Context, tx *sqlx.Tx, repo ledger.LedgerRepository, accounts Accounts) error {
	for key, id := range accounts {
		accountBigInt := id.BigInt()
		if _, err := repo.CreateParticipantAccount(ctx, tx, string(key.Participant), int64(key.Ledger), &accountBigInt); err != nil {
			return fmt.Errorf("save %s account on ledger %d: %w", key.Participant, key.Ledger, err)
		}
	}
	return nil
}
