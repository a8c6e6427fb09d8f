// Package wallet keeps customer balances as an append-only ledger. A balance change is
// always written together with its transaction row, so the cached balance equals the
// ledger sum.
package wallet

import (
	"context"
	"errors"
	"fmt"
	"math"
	"strings"

	"github.com/google/uuid"

	"github.com/kirinyoku/gamecafe/internal/domain"
	"github.com/kirinyoku/gamecafe/internal/repository"
	"github.com/kirinyoku/gamecafe/internal/uow"
)

// Ledger credits and debits customer wallets.
type Ledger struct {
	uow   uow.Runner
	repos repository.Repos
}

func New(runner uow.Runner) *Ledger {
	return &Ledger{uow: runner}
}

// With binds the ledger to the repositories of a running unit of work so the ledger
// write commits with the caller's other changes.
func (l *Ledger) With(repos repository.Repos) *Ledger {
	return &Ledger{uow: l.uow, repos: repos}
}

// do runs fn in the bound unit of work or in a fresh one.
func (l *Ledger) do(ctx context.Context, fn func(ctx context.Context, repos repository.Repos) error) error {
	if l.repos != nil {
		return fn(ctx, l.repos)
	}
	return l.uow.Do(ctx, func(ctx context.Context, repos repository.Repos, _ func(uow.AfterCommit)) error {
		return fn(ctx, repos)
	})
}

func (l *Ledger) store() repository.Repos {
	if l.repos != nil {
		return l.repos
	}
	return l.uow.Repos()
}

type Entry struct {
	CustomerID  uuid.UUID
	Amount      float64
	Type        domain.TransactionType
	Description string
	ReferenceID *uuid.UUID
}

func validAmount(v float64) bool {
	return v > 0 && !math.IsInf(v, 0) && !math.IsNaN(v)
}

func roundMoney(v float64) float64 {
	return math.Round(v*100) / 100
}

// Credit appends a positive transaction. e.Type must be an inflow type and defaults to credit.
//
// Returns:
//   - domain.WalletTransaction: the stored transaction.
//   - error: domain.ErrInvalidAmount if e.Amount <= 0.
//   - error: domain.ErrNotFound if the customer does not exist.
func (l *Ledger) Credit(ctx context.Context, e Entry) (domain.WalletTransaction, error) {
	const op = "service.wallet.Credit"

	if e.Type == "" {
		e.Type = domain.TxCredit
	}

	if !e.Type.Inflow() {
		return domain.WalletTransaction{}, fmt.Errorf("%s:%w", op,
			domain.ValidationError{Field: "transaction_type", Reason: fmt.Sprintf("%s is not a credit type", e.Type)})
	}

	tx, err := l.append(ctx, e, 1, false)
	if err != nil {
		return domain.WalletTransaction{}, fmt.Errorf("%s:%w", op, err)
	}

	return tx, nil
}

// Debit appends a negative transaction. The balance may go below zero; penalties rely on
// that. e.Type must be an outflow type and defaults to debit.
//
// Returns:
//   - error: domain.ErrInvalidAmount if e.Amount <= 0.
//   - error: domain.ErrNotFound if the customer does not exist.
func (l *Ledger) Debit(ctx context.Context, e Entry) (domain.WalletTransaction, error) {
	const op = "service.wallet.Debit"

	if e.Type == "" {
		e.Type = domain.TxDebit
	}

	if !e.Type.Outflow() {
		return domain.WalletTransaction{}, fmt.Errorf("%s:%w", op,
			domain.ValidationError{Field: "transaction_type", Reason: fmt.Sprintf("%s is not a debit type", e.Type)})
	}

	tx, err := l.append(ctx, e, -1, false)
	if err != nil {
		return domain.WalletTransaction{}, fmt.Errorf("%s:%w", op, err)
	}

	return tx, nil
}

// Purchase debits cost only when the balance covers it. The check and the debit are one
// conditional write.
//
// Returns:
//   - error: domain.ErrInsufficientBalance if balance < cost; nothing is written.
func (l *Ledger) Purchase(
	ctx context.Context,
	customerID uuid.UUID,
	cost float64,
	description string,
	reference *uuid.UUID,
) (domain.WalletTransaction, error) {
	const op = "service.wallet.Purchase"

	tx, err := l.append(ctx, Entry{
		CustomerID:  customerID,
		Amount:      cost,
		Type:        domain.TxDebit,
		Description: description,
		ReferenceID: reference,
	}, -1, true)
	if err != nil {
		return domain.WalletTransaction{}, fmt.Errorf("%s:%w", op, err)
	}

	return tx, nil
}

// TopUp records an already settled payment as a credit.
func (l *Ledger) TopUp(ctx context.Context, customerID uuid.UUID, amount float64) (domain.WalletTransaction, error) {
	const op = "service.wallet.TopUp"

	tx, err := l.Credit(ctx, Entry{
		CustomerID:  customerID,
		Amount:      amount,
		Type:        domain.TxCredit,
		Description: fmt.Sprintf("Wallet top-up of %.2f", roundMoney(amount)),
	})
	if err != nil {
		return domain.WalletTransaction{}, fmt.Errorf("%s:%w", op, err)
	}

	return tx, nil
}

func (l *Ledger) append(ctx context.Context, e Entry, sign float64, covered bool) (domain.WalletTransaction, error) {
	if !validAmount(e.Amount) {
		return domain.WalletTransaction{}, domain.ErrInvalidAmount
	}

	amount := roundMoney(e.Amount)
	if amount == 0 {
		return domain.WalletTransaction{}, domain.ErrInvalidAmount
	}

	tx := domain.WalletTransaction{
		ID:          uuid.New(),
		CustomerID:  e.CustomerID,
		Amount:      sign * amount,
		Type:        e.Type,
		Description: strings.TrimSpace(e.Description),
		ReferenceID: e.ReferenceID,
	}

	err := l.do(ctx, func(ctx context.Context, repos repository.Repos) error {
		if covered {
			return repos.Wallet().AppendCovered(ctx, &tx)
		}
		return repos.Wallet().Append(ctx, &tx)
	})
	if err != nil {
		switch {
		case errors.Is(err, repository.ErrInsufficientFunds):
			return domain.WalletTransaction{}, fmt.Errorf("%w: %w", domain.ErrInsufficientBalance, err)
		case errors.Is(err, repository.ErrNotFound):
			return domain.WalletTransaction{}, fmt.Errorf("%w: customer %s", domain.ErrNotFound, e.CustomerID)
		}
		return domain.WalletTransaction{}, mapRepoErr(err)
	}

	return tx, nil
}

// Balance returns the cached balance.
func (l *Ledger) Balance(ctx context.Context, customerID uuid.UUID) (float64, error) {
	const op = "service.wallet.Balance"

	b, err := l.store().Wallet().Balance(ctx, customerID)
	if err != nil {
		return 0, fmt.Errorf("%s:%w", op, mapRepoErr(err))
	}

	return b, nil
}

func (l *Ledger) Transactions(ctx context.Context, customerID uuid.UUID, limit int) ([]domain.WalletTransaction, error) {
	const op = "service.wallet.Transactions"

	if limit <= 0 || limit > 200 {
		limit = 50
	}

	txs, err := l.store().Wallet().List(ctx, customerID, limit)
	if err != nil {
		return nil, fmt.Errorf("%s:%w", op, mapRepoErr(err))
	}

	return txs, nil
}

// Audit compares the cached balance with the ledger sum inside one unit of work.
func (l *Ledger) Audit(ctx context.Context, customerID uuid.UUID) (domain.WalletAudit, error) {
	const op = "service.wallet.Audit"

	audit := domain.WalletAudit{CustomerID: customerID}

	err := l.do(ctx, func(ctx context.Context, repos repository.Repos) error {
		b, err := repos.Wallet().Balance(ctx, customerID)
		if err != nil {
			return err
		}
		sum, err := repos.Wallet().LedgerSum(ctx, customerID)
		if err != nil {
			return err
		}
		audit.Balance = roundMoney(b)
		audit.LedgerSum = roundMoney(sum)
		return nil
	})
	if err != nil {
		return domain.WalletAudit{}, fmt.Errorf("%s:%w", op, mapRepoErr(err))
	}

	audit.Consistent = audit.Balance == audit.LedgerSum

	return audit, nil
}

func mapRepoErr(err error) error {
	switch {
	case errors.Is(err, repository.ErrUnavailable):
		return domain.Upstream(err)
	case errors.Is(err, repository.ErrNotFound):
		return fmt.Errorf("%w: %w", domain.ErrNotFound, err)
	}
	return err
}
