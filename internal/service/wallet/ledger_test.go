package wallet

import (
	"context"
	"errors"
	"fmt"
	"math/rand"
	"sync"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kirinyoku/gamecafe/internal/domain"
	"github.com/kirinyoku/gamecafe/internal/repository"
	"github.com/kirinyoku/gamecafe/internal/repository/memory"
	"github.com/kirinyoku/gamecafe/internal/uow"
)

func newLedger(t *testing.T) (*Ledger, *memory.Store, uuid.UUID) {
	t.Helper()

	store := memory.New()
	u := domain.User{ID: uuid.New(), Phone: "+915550001", Name: "Player", Role: domain.RoleCustomer, ReferralCode: "PLAYER01"}
	require.NoError(t, store.Repos().Users().Create(context.Background(), &u))

	return New(store), store, u.ID
}

func TestCreditDebit(t *testing.T) {
	ctx := context.Background()
	l, _, id := newLedger(t)

	tx, err := l.Credit(ctx, Entry{CustomerID: id, Amount: 500, Description: "cash"})
	require.NoError(t, err)
	assert.Equal(t, 500.0, tx.Amount)
	assert.Equal(t, domain.TxCredit, tx.Type)

	tx, err = l.Debit(ctx, Entry{CustomerID: id, Amount: 120.5, Type: domain.TxPenalty})
	require.NoError(t, err)
	assert.Equal(t, -120.5, tx.Amount)

	b, err := l.Balance(ctx, id)
	require.NoError(t, err)
	assert.Equal(t, 379.5, b)

	txs, err := l.Transactions(ctx, id, 10)
	require.NoError(t, err)
	require.Len(t, txs, 2)
	assert.Equal(t, domain.TxPenalty, txs[0].Type)
}

func TestInvalidInput(t *testing.T) {
	ctx := context.Background()
	l, _, id := newLedger(t)

	for _, amount := range []float64{0, -1, 0.001} {
		_, err := l.Credit(ctx, Entry{CustomerID: id, Amount: amount})
		assert.ErrorIs(t, err, domain.ErrInvalidAmount, "credit %v", amount)

		_, err = l.Debit(ctx, Entry{CustomerID: id, Amount: amount})
		assert.ErrorIs(t, err, domain.ErrInvalidAmount, "debit %v", amount)
	}

	_, err := l.Credit(ctx, Entry{CustomerID: id, Amount: 10, Type: domain.TxPenalty})
	assert.ErrorIs(t, err, domain.ErrValidation)

	_, err = l.Debit(ctx, Entry{CustomerID: id, Amount: 10, Type: domain.TxReward})
	assert.ErrorIs(t, err, domain.ErrValidation)

	_, err = l.Credit(ctx, Entry{CustomerID: uuid.New(), Amount: 10})
	assert.ErrorIs(t, err, domain.ErrNotFound)
}

func TestPurchase(t *testing.T) {
	ctx := context.Background()
	l, _, id := newLedger(t)

	_, err := l.Purchase(ctx, id, 100, "pass", nil)
	assert.ErrorIs(t, err, domain.ErrInsufficientBalance)

	_, err = l.TopUp(ctx, id, 150)
	require.NoError(t, err)

	_, err = l.Purchase(ctx, id, 100, "pass", nil)
	require.NoError(t, err)

	_, err = l.Purchase(ctx, id, 100, "pass", nil)
	assert.ErrorIs(t, err, domain.ErrInsufficientBalance)

	b, err := l.Balance(ctx, id)
	require.NoError(t, err)
	assert.Equal(t, 50.0, b)
}

func TestPurchase_ConcurrentNeverOverdraws(t *testing.T) {
	ctx := context.Background()
	l, _, id := newLedger(t)

	_, err := l.TopUp(ctx, id, 500)
	require.NoError(t, err)

	var (
		wg sync.WaitGroup
		mu sync.Mutex
		ok int
	)
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if _, err := l.Purchase(ctx, id, 100, "pass", nil); err == nil {
				mu.Lock()
				ok++
				mu.Unlock()
			}
		}()
	}
	wg.Wait()

	assert.Equal(t, 5, ok)

	audit, err := l.Audit(ctx, id)
	require.NoError(t, err)
	assert.Zero(t, audit.Balance)
	assert.True(t, audit.Consistent)
}

func TestConservation(t *testing.T) {
	ctx := context.Background()
	l, _, id := newLedger(t)
	rng := rand.New(rand.NewSource(7))

	inflows := []domain.TransactionType{domain.TxCredit, domain.TxRefund, domain.TxCashback, domain.TxReward}
	outflows := []domain.TransactionType{domain.TxDebit, domain.TxPenalty}

	for i := 0; i < 300; i++ {
		amount := float64(rng.Intn(100000)+1) / 100
		var err error
		switch rng.Intn(3) {
		case 0:
			_, err = l.Credit(ctx, Entry{CustomerID: id, Amount: amount, Type: inflows[rng.Intn(len(inflows))]})
		case 1:
			_, err = l.Debit(ctx, Entry{CustomerID: id, Amount: amount, Type: outflows[rng.Intn(len(outflows))]})
		default:
			_, err = l.Purchase(ctx, id, amount, "item", nil)
			if errors.Is(err, domain.ErrInsufficientBalance) {
				err = nil
			}
		}
		require.NoError(t, err)

		audit, err := l.Audit(ctx, id)
		require.NoError(t, err)
		require.True(t, audit.Consistent, "step %d: balance %v ledger %v", i, audit.Balance, audit.LedgerSum)
	}
}

func TestWith_RollsBackWithCaller(t *testing.T) {
	ctx := context.Background()
	l, store, id := newLedger(t)

	boom := errors.New("boom")
	err := store.Do(ctx, func(ctx context.Context, repos repository.Repos, _ func(uow.AfterCommit)) error {
		if _, err := l.With(repos).Credit(ctx, Entry{CustomerID: id, Amount: 75}); err != nil {
			return err
		}
		return boom
	})
	require.ErrorIs(t, err, boom)

	audit, err := l.Audit(ctx, id)
	require.NoError(t, err)
	assert.Zero(t, audit.Balance)
	assert.Zero(t, audit.LedgerSum)
}

type downWallet struct {
	repository.WalletRepository
	err error
}

func (w downWallet) Balance(context.Context, uuid.UUID) (float64, error) { return 0, w.err }

func (w downWallet) List(context.Context, uuid.UUID, int) ([]domain.WalletTransaction, error) {
	return nil, w.err
}

type walletOverride struct {
	repository.Repos
	wallet repository.WalletRepository
}

func (r walletOverride) Wallet() repository.WalletRepository { return r.wallet }

func TestReads_StoreUnavailable(t *testing.T) {
	ctx := context.Background()
	l, store, customer := newLedger(t)

	down := fmt.Errorf("postgres.WalletRepo.Balance:%w", fmt.Errorf("%w: dial tcp: connection refused", repository.ErrUnavailable))
	bound := l.With(walletOverride{Repos: store.Repos(), wallet: downWallet{err: down}})

	_, err := bound.Balance(ctx, customer)
	assert.ErrorIs(t, err, domain.ErrUpstreamUnavailable)

	_, err = bound.Transactions(ctx, customer, 10)
	assert.ErrorIs(t, err, domain.ErrUpstreamUnavailable)

	_, err = l.Balance(ctx, uuid.New())
	assert.ErrorIs(t, err, domain.ErrNotFound)
	assert.NotErrorIs(t, err, domain.ErrUpstreamUnavailable)
}
