package services

import (
	"context"
	"database/sql"
	"errors"
	"sort"

	"flightbooking/internal/models"
	"flightbooking/internal/store"

	"github.com/google/uuid"
)

type AccountStore interface {
	GetByUser(ctx context.Context, userID string) (store.Account, error)
	GetForUpdate(ctx context.Context, tx store.Getter, userID string) (store.Account, error)
	UpdateBalance(ctx context.Context, tx store.Execer, userID string, balance int64) error
}

type TransactionStore interface {
	Create(ctx context.Context, tx store.Execer, input store.TransactionInput) error
	ListByUser(ctx context.Context, userID string, limit, offset int) ([]models.Transaction, error)
}

// Movement is one applied balance change, ready to be recorded.
type Movement struct {
	UserID        string
	Amount        int64
	BalanceBefore int64
	BalanceAfter  int64
}

// Ledger mutates balances and appends transaction log rows. Every method
// runs inside the caller's transaction so balance and log commit together.
type Ledger struct {
	accounts     AccountStore
	transactions TransactionStore
}

func NewLedger(accounts AccountStore, transactions TransactionStore) *Ledger {
	return &Ledger{accounts: accounts, transactions: transactions}
}

// Lock takes row locks on the given users in id order.
func (l *Ledger) Lock(ctx context.Context, tx store.Getter, userIDs ...string) error {
	ids := orderedUnique(userIDs)
	for _, id := range ids {
		if _, err := l.accounts.GetForUpdate(ctx, tx, id); err != nil {
			if errors.Is(err, sql.ErrNoRows) {
				return ErrUserNotFound
			}
			return err
		}
	}
	return nil
}

func (l *Ledger) Credit(ctx context.Context, tx store.Tx, userID string, amount int64) (Movement, error) {
	if amount <= 0 {
		return Movement{}, ErrInvalidAmount
	}
	account, err := l.lockAccount(ctx, tx, userID)
	if err != nil {
		return Movement{}, err
	}
	m := Movement{
		UserID:        userID,
		Amount:        amount,
		BalanceBefore: account.Balance,
		BalanceAfter:  account.Balance + amount,
	}
	if err := l.accounts.UpdateBalance(ctx, tx, userID, m.BalanceAfter); err != nil {
		return Movement{}, err
	}
	return m, nil
}

// Debit fails with ErrInsufficientFunds without writing when the balance
// would go negative.
func (l *Ledger) Debit(ctx context.Context, tx store.Tx, userID string, amount int64) (Movement, error) {
	if amount <= 0 {
		return Movement{}, ErrInvalidAmount
	}
	account, err := l.lockAccount(ctx, tx, userID)
	if err != nil {
		return Movement{}, err
	}
	after := account.Balance - amount
	if after < 0 {
		return Movement{}, ErrInsufficientFunds
	}
	m := Movement{
		UserID:        userID,
		Amount:        amount,
		BalanceBefore: account.Balance,
		BalanceAfter:  after,
	}
	if err := l.accounts.UpdateBalance(ctx, tx, userID, after); err != nil {
		return Movement{}, err
	}
	return m, nil
}

// Record appends the log row for a movement. Deposits and refunds must
// raise the balance by the amount; payments must lower it.
func (l *Ledger) Record(ctx context.Context, tx store.Execer, m Movement, bookingID *string, txType, description string) error {
	if err := ensureBalanced(m, txType); err != nil {
		return err
	}
	return l.transactions.Create(ctx, tx, store.TransactionInput{
		ID:            uuid.NewString(),
		UserID:        m.UserID,
		BookingID:     bookingID,
		Type:          txType,
		Amount:        m.Amount,
		BalanceBefore: m.BalanceBefore,
		BalanceAfter:  m.BalanceAfter,
		Description:   description,
	})
}

func (l *Ledger) Balance(ctx context.Context, userID string) (int64, error) {
	account, err := l.accounts.GetByUser(ctx, userID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return 0, ErrUserNotFound
		}
		return 0, err
	}
	return account.Balance, nil
}

func (l *Ledger) History(ctx context.Context, userID string, limit, offset int) ([]models.Transaction, error) {
	return l.transactions.ListByUser(ctx, userID, limit, offset)
}

func (l *Ledger) lockAccount(ctx context.Context, tx store.Getter, userID string) (store.Account, error) {
	account, err := l.accounts.GetForUpdate(ctx, tx, userID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return store.Account{}, ErrUserNotFound
		}
		return store.Account{}, err
	}
	return account, nil
}

func ensureBalanced(m Movement, txType string) error {
	switch txType {
	case models.TransactionDeposit, models.TransactionRefund:
		if m.BalanceAfter != m.BalanceBefore+m.Amount {
			return ErrUnbalancedTransaction
		}
	case models.TransactionPayment:
		if m.BalanceAfter != m.BalanceBefore-m.Amount {
			return ErrUnbalancedTransaction
		}
	default:
		return ErrUnknownTransactionType
	}
	return nil
}

func orderedUnique(ids []string) []string {
	seen := make(map[string]struct{}, len(ids))
	out := make([]string, 0, len(ids))
	for _, id := range ids {
		if _, ok := seen[id]; ok {
			continue
		}
		seen[id] = struct{}{}
		out = append(out, id)
	}
	sort.Strings(out)
	return out
}
