package store

import (
	"context"
	"fmt"
	"strings"

	"flightbooking/internal/models"
)

type UserStore struct {
	db DB
}

func NewUserStore(db DB) *UserStore {
	return &UserStore{db: db}
}

type UserInput struct {
	ID           string
	UserType     string
	Email        string
	Username     string
	PasswordHash string
	Name         string
	Tel          string
}

type CompanyInput struct {
	Bio      string
	Address  string
	Location string
}

// ProfileUpdate carries optional changes; nil fields are left untouched.
type ProfileUpdate struct {
	Name         *string
	Tel          *string
	PasswordHash *string
	Bio          *string
	Address      *string
	Location     *string
}

const profileColumns = `
	u.id, u.user_type, u.email, u.username, u.password_hash, u.name, u.tel,
	u.account_balance, u.is_active, u.created_at,
	c.bio, c.address, c.location, c.logo_path,
	p.photo_path, p.passport_img_path
`

func (s *UserStore) Create(ctx context.Context, tx Execer, input UserInput) error {
	_, err := tx.ExecContext(ctx, `
		INSERT INTO users (id, user_type, email, username, password_hash, name, tel, account_balance)
		VALUES ($1, $2, $3, $4, $5, $6, $7, 0)
	`, input.ID, input.UserType, input.Email, input.Username, input.PasswordHash, input.Name, input.Tel)
	return err
}

func (s *UserStore) CreateCompany(ctx context.Context, tx Execer, userID string, input CompanyInput) error {
	_, err := tx.ExecContext(ctx, `
		INSERT INTO companies (user_id, bio, address, location)
		VALUES ($1, $2, $3, $4)
	`, userID, input.Bio, input.Address, input.Location)
	return err
}

func (s *UserStore) CreatePassenger(ctx context.Context, tx Execer, userID string) error {
	_, err := tx.ExecContext(ctx, `INSERT INTO passengers (user_id) VALUES ($1)`, userID)
	return err
}

func (s *UserStore) GetByEmail(ctx context.Context, email string) (models.User, error) {
	var row models.User
	err := s.db.GetContext(ctx, &row, `
		SELECT id, user_type, email, username, password_hash, name, tel, account_balance, is_active, created_at
		FROM users
		WHERE email = $1
	`, email)
	if err != nil {
		return models.User{}, err
	}
	return row, nil
}

func (s *UserStore) GetByID(ctx context.Context, userID string) (models.User, error) {
	var row models.User
	err := s.db.GetContext(ctx, &row, `
		SELECT id, user_type, email, username, password_hash, name, tel, account_balance, is_active, created_at
		FROM users
		WHERE id = $1
	`, userID)
	if err != nil {
		return models.User{}, err
	}
	return row, nil
}

func (s *UserStore) GetProfile(ctx context.Context, userID string) (models.Profile, error) {
	var row models.Profile
	err := s.db.GetContext(ctx, &row, `
		SELECT `+profileColumns+`
		FROM users u
		LEFT JOIN companies c ON c.user_id = u.id
		LEFT JOIN passengers p ON p.user_id = u.id
		WHERE u.id = $1
	`, userID)
	if err != nil {
		return models.Profile{}, err
	}
	return row, nil
}

func (s *UserStore) EmailTaken(ctx context.Context, email string) (bool, error) {
	var taken bool
	err := s.db.GetContext(ctx, &taken, `SELECT EXISTS(SELECT 1 FROM users WHERE LOWER(email) = LOWER($1))`, email)
	return taken, err
}

func (s *UserStore) UsernameTaken(ctx context.Context, username string) (bool, error) {
	var taken bool
	err := s.db.GetContext(ctx, &taken, `SELECT EXISTS(SELECT 1 FROM users WHERE LOWER(username) = LOWER($1))`, username)
	return taken, err
}

// UpdateProfile writes the non-nil fields of update to users and, for
// companies, to the companies row.
func (s *UserStore) UpdateProfile(ctx context.Context, tx Execer, userID string, update ProfileUpdate) error {
	userSets, userArgs := setClauses([]column{
		{"name", update.Name},
		{"tel", update.Tel},
		{"password_hash", update.PasswordHash},
	})
	if len(userSets) > 0 {
		userSets = append(userSets, "updated_at = NOW()")
		query := fmt.Sprintf("UPDATE users SET %s WHERE id = $%d", strings.Join(userSets, ", "), len(userArgs)+1)
		if _, err := tx.ExecContext(ctx, query, append(userArgs, userID)...); err != nil {
			return err
		}
	}
	companySets, companyArgs := setClauses([]column{
		{"bio", update.Bio},
		{"address", update.Address},
		{"location", update.Location},
	})
	if len(companySets) > 0 {
		query := fmt.Sprintf("UPDATE companies SET %s WHERE user_id = $%d", strings.Join(companySets, ", "), len(companyArgs)+1)
		if _, err := tx.ExecContext(ctx, query, append(companyArgs, userID)...); err != nil {
			return err
		}
	}
	return nil
}

type column struct {
	name  string
	value *string
}

func setClauses(columns []column) ([]string, []any) {
	var sets []string
	var args []any
	for _, col := range columns {
		if col.value == nil {
			continue
		}
		args = append(args, *col.value)
		sets = append(sets, fmt.Sprintf("%s = $%d", col.name, len(args)))
	}
	return sets, args
}
