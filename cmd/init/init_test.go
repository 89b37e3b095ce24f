package main

import (
	"context"
	"math/big"
	"testing"

	ledgerRepository "github.com/Yusufzhafir/illiquid-sim/internal/repository/ledger"
	"github.com/jmoiron/sqlx"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	tbTypes "github.com/tigerbeetle/tigerbeetle-go/pkg/types"
)

type memLedgerRepo struct {
	rows []ledgerRepository.ParticipantAccount
}

func (m *memLedgerRepo) CreateParticipantAccount(ctx context.Context, tx *sqlx.Tx, participant string, tbLedgerID int64, tbAccountID *big.Int) (int64, error) {
	id := int64(len(m.rows) + 1)
	m.rows = append(m.rows, ledgerRepository.ParticipantAccount{
		ID:          id,
		Participant: participant,
		TBLedgerID:  tbLedgerID,
		TBAccountID: tbAccountID.String(),
	})
	return id, nil
}

func (m *memLedgerRepo) GetParticipantAccount(ctx context.Context, tx *sqlx.Tx, participant string, tbLedgerID int64) (*ledgerRepository.ParticipantAccount, error) {
	for _, r := range m.rows {
		if r.Participant == participant && r.TBLedgerID == tbLedgerID {
			return &r, nil
		}
	}
	return nil, ledgerRepository.ErrAccountNotFound
}

func (m *memLedgerRepo) ListParticipantAccounts(ctx context.Context, tx *sqlx.Tx) ([]ledgerRepository.ParticipantAccount, error) {
	return m.rows, nil
}

type countingClient struct {
	accounts int
}

func (c *countingClient) CreateAccounts(accounts []tbTypes.Account) ([]tbTypes.AccountEventResult, error) {
	c.accounts += len(accounts)
	return nil, nil
}

func (c *countingClient) CreateTransfers(transfers []tbTypes.Transfer) ([]tbTypes.TransferEventResult, error) {
	return nil, nil
}

func TestEnsureAccountsIsIdempotent(t *testing.T) {
	repo := &memLedgerRepo{}
	client := &countingClient{}

	created, err := ensureAccounts(context.Background(), nil, repo, client, 10, 20)
	require.NoError(t, err)
	assert.True(t, created)
	assert.Equal(t, 6, client.accounts)
	assert.Len(t, repo.rows, 6)

	created, err = ensureAccounts(context.Background(), nil, repo, client, 10, 20)
	require.NoError(t, err)
	assert.False(t, created)
	assert.Equal(t, 6, client.accounts)
}
