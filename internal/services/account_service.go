package services

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"strings"

	"flightbooking/internal/auth"
	"flightbooking/internal/db"
	"flightbooking/internal/models"
	"flightbooking/internal/store"
	"flightbooking/internal/validator"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
)

type UserStore interface {
	Create(ctx context.Context, tx store.Execer, input store.UserInput) error
	CreateCompany(ctx context.Context, tx store.Execer, userID string, input store.CompanyInput) error
	CreatePassenger(ctx context.Context, tx store.Execer, userID string) error
	GetByEmail(ctx context.Context, email string) (models.User, error)
	GetByID(ctx context.Context, userID string) (models.User, error)
	GetProfile(ctx context.Context, userID string) (models.Profile, error)
	EmailTaken(ctx context.Context, email string) (bool, error)
	UsernameTaken(ctx context.Context, username string) (bool, error)
	UpdateProfile(ctx context.Context, tx store.Execer, userID string, update store.ProfileUpdate) error
}

type AccountService struct {
	txRunner db.TxRunner
	users    UserStore
	ledger   *Ledger
	audit    AuditStore
	effects  SideEffects
}

func NewAccountService(txRunner db.TxRunner, users UserStore, ledger *Ledger, audit AuditStore, effects SideEffects) *AccountService {
	return &AccountService{
		txRunner: txRunner,
		users:    users,
		ledger:   ledger,
		audit:    audit,
		effects:  effects,
	}
}

type RegisterInput struct {
	UserType string
	Email    string
	Username string
	Password string
	Name     string
	Tel      string
	Bio      string
	Address  string
	Location string
}

func (s *AccountService) Register(ctx context.Context, in RegisterInput) (models.Profile, error) {
	in.Email = strings.ToLower(strings.TrimSpace(in.Email))
	in.Username = strings.TrimSpace(in.Username)
	fields := validator.FieldErrors{}
	emailTaken, err := s.users.EmailTaken(ctx, in.Email)
	if err != nil {
		return models.Profile{}, err
	}
	if emailTaken {
		fields.Add("email", "email is already registered")
	}
	usernameTaken, err := s.users.UsernameTaken(ctx, in.Username)
	if err != nil {
		return models.Profile{}, err
	}
	if usernameTaken {
		fields.Add("username", "username is already taken")
	}
	if len(fields) > 0 {
		return models.Profile{}, &ValidationError{Fields: fields}
	}

	hash, err := auth.HashPassword(in.Password)
	if err != nil {
		return models.Profile{}, err
	}
	userID := uuid.NewString()
	err = s.txRunner.WithTx(ctx, func(tx *sqlx.Tx) error {
		if err := s.users.Create(ctx, tx, store.UserInput{
			ID:           userID,
			UserType:     in.UserType,
			Email:        in.Email,
			Username:     in.Username,
			PasswordHash: hash,
			Name:         strings.TrimSpace(in.Name),
			Tel:          strings.TrimSpace(in.Tel),
		}); err != nil {
			return err
		}
		switch in.UserType {
		case models.UserTypeCompany:
			if err := s.users.CreateCompany(ctx, tx, userID, store.CompanyInput{
				Bio:      in.Bio,
				Address:  in.Address,
				Location: in.Location,
			}); err != nil {
				return err
			}
		default:
			if err := s.users.CreatePassenger(ctx, tx, userID); err != nil {
				return err
			}
		}
		data, _ := json.Marshal(map[string]string{"user_type": in.UserType, "email": in.Email})
		return s.audit.Log(ctx, tx, userID, "register", "user", userID, string(data))
	})
	if err != nil {
		return models.Profile{}, err
	}
	return s.Profile(ctx, userID)
}

// Login checks credentials. Unknown email and wrong password are reported
// the same way.
func (s *AccountService) Login(ctx context.Context, email, password string) (models.Profile, error) {
	user, err := s.users.GetByEmail(ctx, strings.ToLower(strings.TrimSpace(email)))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return models.Profile{}, ErrInvalidCredentials
		}
		return models.Profile{}, err
	}
	if !auth.CheckPassword(user.PasswordHash, password) {
		return models.Profile{}, ErrInvalidCredentials
	}
	if !user.IsActive {
		return models.Profile{}, ErrAccountInactive
	}
	if err := s.txRunner.WithTx(ctx, func(tx *sqlx.Tx) error {
		return s.audit.Log(ctx, tx, user.ID, "login", "user", user.ID, "{}")
	}); err != nil {
		return models.Profile{}, err
	}
	return s.Profile(ctx, user.ID)
}

func (s *AccountService) Logout(ctx context.Context, userID string) error {
	return s.txRunner.WithTx(ctx, func(tx *sqlx.Tx) error {
		return s.audit.Log(ctx, tx, userID, "logout", "user", userID, "{}")
	})
}

func (s *AccountService) Profile(ctx context.Context, userID string) (models.Profile, error) {
	profile, err := s.users.GetProfile(ctx, userID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return models.Profile{}, ErrUserNotFound
		}
		return models.Profile{}, err
	}
	return profile, nil
}

type UpdateProfileInput struct {
	UserID   string
	UserType string
	Name     *string
	Tel      *string
	Password *string
	Bio      *string
	Address  *string
	Location *string
	// TopUp is credited to a passenger balance as a deposit; zero skips it.
	TopUp int64
}

func (s *AccountService) UpdateProfile(ctx context.Context, in UpdateProfileInput) (models.Profile, error) {
	if in.TopUp < 0 {
		return models.Profile{}, ErrInvalidAmount
	}
	if in.TopUp > 0 && in.UserType != models.UserTypePassenger {
		return models.Profile{}, ErrTopUpNotAllowed
	}
	update := store.ProfileUpdate{
		Name: trimmedPtr(in.Name),
		Tel:  trimmedPtr(in.Tel),
	}
	if in.Password != nil {
		hash, err := auth.HashPassword(*in.Password)
		if err != nil {
			return models.Profile{}, err
		}
		update.PasswordHash = &hash
	}
	if in.UserType == models.UserTypeCompany {
		update.Bio = in.Bio
		update.Address = in.Address
		update.Location = in.Location
	}

	var deposit *Movement
	err := s.txRunner.WithTx(ctx, func(tx *sqlx.Tx) error {
		deposit = nil
		if err := s.users.UpdateProfile(ctx, tx, in.UserID, update); err != nil {
			return err
		}
		if in.TopUp > 0 {
			m, err := s.ledger.Credit(ctx, tx, in.UserID, in.TopUp)
			if err != nil {
				return err
			}
			if err := s.ledger.Record(ctx, tx, m, nil, models.TransactionDeposit, "Account top-up"); err != nil {
				return err
			}
			deposit = &m
		}
		data, _ := json.Marshal(map[string]any{
			"password_changed": in.Password != nil,
			"top_up":           in.TopUp,
		})
		return s.audit.Log(ctx, tx, in.UserID, "update_profile", "user", in.UserID, string(data))
	})
	if err != nil {
		return models.Profile{}, err
	}
	if deposit != nil {
		s.effects.notifyBalance(*deposit, "top_up")
	}
	return s.Profile(ctx, in.UserID)
}

func (s *AccountService) Transactions(ctx context.Context, userID string, limit, offset int) ([]models.Transaction, error) {
	return s.ledger.History(ctx, userID, limit, offset)
}

func trimmedPtr(value *string) *string {
	if value == nil {
		return nil
	}
	trimmed := strings.TrimSpace(*value)
	return &trimmed
}
