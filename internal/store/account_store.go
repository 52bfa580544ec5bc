package store

import "context"

// AccountStore manages the balance column of users.
type AccountStore struct {
	db DB
}

type Account struct {
	UserID   string `db:"id"`
	UserType string `db:"user_type"`
	Name     string `db:"name"`
	Balance  int64  `db:"account_balance"`
}

func NewAccountStore(db DB) *AccountStore {
	return &AccountStore{db: db}
}

func (s *AccountStore) GetByUser(ctx context.Context, userID string) (Account, error) {
	var row Account
	err := s.db.GetContext(ctx, &row, `
		SELECT id, user_type, name, account_balance
		FROM users
		WHERE id = $1
	`, userID)
	if err != nil {
		return Account{}, err
	}
	return row, nil
}

func (s *AccountStore) GetForUpdate(ctx context.Context, tx Getter, userID string) (Account, error) {
	var row Account
	err := tx.GetContext(ctx, &row, `
		SELECT id, user_type, name, account_balance
		FROM users
		WHERE id = $1
		FOR UPDATE
	`, userID)
	if err != nil {
		return Account{}, err
	}
	return row, nil
}

func (s *AccountStore) UpdateBalance(ctx context.Context, tx Execer, userID string, balance int64) error {
	_, err := tx.ExecContext(ctx, `
		UPDATE users
		SET account_balance = $1, updated_at = NOW()
		WHERE id = $2
	`, balance, userID)
	return err
}
