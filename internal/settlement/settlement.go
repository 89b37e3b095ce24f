// Package settlement books simulated trades as double-entry transfers in
// TigerBeetle: one cash leg and one contract leg per trade, linked so they
// commit or fail together.
package settlement

import (
	"context"
	"fmt"
	"math"

	"github.com/Yusufzhafir/illiquid-sim/pkg/model"
	"github.com/google/uuid"
	"github.com/rs/zerolog"
	tbtypes "github.com/tigerbeetle/tigerbeetle-go/pkg/types"
)

type Participant string

const (
	HUMAN        Participant = "human"
	MARKET_MAKER Participant = "market_maker"
	CROWD        Participant = "crowd"
)

var Participants = []Participant{HUMAN, MARKET_MAKER, CROWD}

// Transfer codes, one per trade side.
const (
	CodeHumanBuyFill uint16 = 4001
	CodeBuyFromAsk   uint16 = 4002
	CodeSellIntoBid  uint16 = 4003

	accountCode uint16 = 1001

	// TigerBeetle caps a batch at 8189 events; keep pairs whole.
	maxBatchTransfers = 8000
)

// Client is the part of the TigerBeetle client settlement needs.
type Client interface {
	CreateAccounts(accounts []tbtypes.Account) ([]tbtypes.AccountEventResult, error)
	CreateTransfers(transfers []tbtypes.Transfer) ([]tbtypes.TransferEventResult, error)
}

type AccountKey struct {
	Participant Participant
	Ledger      uint32
}

// Accounts maps every participant and ledger to its TigerBeetle account.
type Accounts map[AccountKey]tbtypes.Uint128

func (a Accounts) lookup(p Participant, ledger uint32) (tbtypes.Uint128, error) {
	id, ok := a[AccountKey{Participant: p, Ledger: ledger}]
	if !ok {
		return tbtypes.Uint128{}, fmt.Errorf("no account for %s on ledger %d", p, ledger)
	}
	return id, nil
}

type Settler interface {
	Settle(ctx context.Context, runID uuid.UUID, trades []model.Trade) error
}

type SettlerOpts struct {
	Client         Client
	Accounts       Accounts
	CashLedger     uint32
	ContractLedger uint32
	Logger         zerolog.Logger
}

type settlerImpl struct {
	client         Client
	accounts       Accounts
	cashLedger     uint32
	contractLedger uint32
	logger         zerolog.Logger
}

func NewSettler(opts SettlerOpts) Settler {
	return &settlerImpl{
		client:         opts.Client,
		accounts:       opts.Accounts,
		cashLedger:     opts.CashLedger,
		contractLedger: opts.ContractLedger,
		logger:         opts.Logger.With().Str("component", "settlement").Logger(),
	}
}

// Settle books every trade of a run. The TigerBeetle client does not take a
// context, so ctx is only checked between batches.
func (s *settlerImpl) Settle(ctx context.Context, runID uuid.UUID, trades []model.Trade) error {
	transfers := make([]tbtypes.Transfer, 0, 2*len(trades))
	for _, tr := range trades {
		pair, err := s.transfersFor(runID, tr)
		if err != nil {
			return fmt.Errorf("settle run %s: %w", runID, err)
		}
		transfers = append(transfers, pair...)
	}

	for start := 0; start < len(transfers); start += maxBatchTransfers {
		if err := ctx.Err(); err != nil {
			return err
		}
		end := min(start+maxBatchTransfers, len(transfers))
		results, err := s.client.CreateTransfers(transfers[start:end])
		if err != nil {
			return fmt.Errorf("settle run %s: %w", runID, err)
		}
		if len(results) > 0 {
			return fmt.Errorf("settle run %s: %d transfers failed, first at %d: %s",
				runID, len(results), start+int(results[0].Index), results[0].Result)
		}
	}

	s.logger.Debug().Str("run", runID.String()).Int("trades", len(trades)).Msg("run settled")
	return nil
}

// transfersFor returns the linked cash and contract legs of one trade. Cash
// moves from buyer to seller in cents; contracts move the other way.
func (s *settlerImpl) transfersFor(runID uuid.UUID, tr model.Trade) ([]tbtypes.Transfer, error) {
	var buyer, seller Participant
	var code uint16
	switch tr.Side {
	case model.HUMAN_BUY_FILL:
		buyer, seller, code = HUMAN, MARKET_MAKER, CodeHumanBuyFill
	case model.BUY_FROM_ASK:
		buyer, seller, code = CROWD, MARKET_MAKER, CodeBuyFromAsk
	case model.SELL_INTO_BID:
		buyer, seller, code = MARKET_MAKER, CROWD, CodeSellIntoBid
	default:
		return nil, fmt.Errorf("unknown trade side %q", tr.Side)
	}

	cash, err := CashAmount(tr.Price, tr.Size)
	if err != nil {
		return nil, err
	}

	buyerCash, err := s.accounts.lookup(buyer, s.cashLedger)
	if err != nil {
		return nil, err
	}
	sellerCash, err := s.accounts.lookup(seller, s.cashLedger)
	if err != nil {
		return nil, err
	}
	buyerContracts, err := s.accounts.lookup(buyer, s.contractLedger)
	if err != nil {
		return nil, err
	}
	sellerContracts, err := s.accounts.lookup(seller, s.contractLedger)
	if err != nil {
		return nil, err
	}

	runTag := tbtypes.BytesToUint128(runID)
	return []tbtypes.Transfer{
		{
			ID:              tbtypes.ID(),
			DebitAccountID:  buyerCash,
			CreditAccountID: sellerCash,
			Amount:          tbtypes.ToUint128(cash),
			UserData128:     runTag,
			UserData32:      uint32(tr.Time),
			Ledger:          s.cashLedger,
			Code:            code,
			Flags:           tbtypes.TransferFlags{Linked: true}.ToUint16(),
		},
		{
			ID:              tbtypes.ID(),
			DebitAccountID:  sellerContracts,
			CreditAccountID: buyerContracts,
			Amount:          tbtypes.ToUint128(uint64(tr.Size)),
			UserData128:     runTag,
			UserData32:      uint32(tr.Time),
			Ledger:          s.contractLedger,
			Code:            code,
		},
	}, nil
}

// CashAmount is price x size in integer cents.
func CashAmount(price model.Price, size model.Quantity) (uint64, error) {
	cents := math.Round(float64(price) * 100)
	if cents <= 0 || size <= 0 {
		return 0, fmt.Errorf("%w: price %v size %d", model.ErrInvalidAmount, price, size)
	}
	return uint64(cents) * uint64(size), nil
}

// NewAccounts builds one account per participant and ledger, linked into a
// single chain so the batch is created atomically.
func NewAccounts(cashLedger, contractLedger uint32) (Accounts, []tbtypes.Account) {
	accounts := make(Accounts, 2*len(Participants))
	batch := make([]tbtypes.Account, 0, 2*len(Participants))
	for _, p := range Participants {
		for _, ledger := range []uint32{cashLedger, contractLedger} {
			id := tbtypes.ID()
			accounts[AccountKey{Participant: p, Ledger: ledger}] = id
			batch = append(batch, tbtypes.Account{
				ID:     id,
				Ledger: ledger,
				Code:   accountCode,
				Flags:  tbtypes.AccountFlags{Linked: true, History: true}.ToUint16(),
			})
		}
	}
	last := &batch[len(batch)-1]
	last.Flags = tbtypes.AccountFlags{History: true}.ToUint16()
	return accounts, batch
}

// OpenAccounts creates the participant accounts in TigerBeetle.
func OpenAccounts(client Client, cashLedger, contractLedger uint32) (Accounts, error) {
	accounts, batch := NewAccounts(cashLedger, contractLedger)
	results, err := client.CreateAccounts(batch)
	if err != nil {
		return nil, fmt.Errorf("create accounts: %w", err)
	}
	if len(results) > 0 {
		return nil, fmt.Errorf("create accounts: %d failed, first at %d: %s",
			len(results), results[0].Index, results[0].Result)
	}
	return accounts, nil
}
