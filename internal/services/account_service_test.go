package services

import (
	"context"
	"database/sql"
	"errors"
	"testing"

	"flightbooking/internal/auth"
	"flightbooking/internal/models"
	"flightbooking/internal/store"
	"flightbooking/internal/websocket"
)

type stubUserStore struct {
	createFn          func(ctx context.Context, tx store.Execer, input store.UserInput) error
	createCompanyFn   func(ctx context.Context, tx store.Execer, userID string, input store.CompanyInput) error
	createPassengerFn func(ctx context.Context, tx store.Execer, userID string) error
	getByEmailFn      func(ctx context.Context, email string) (models.User, error)
	getByIDFn         func(ctx context.Context, userID string) (models.User, error)
	getProfileFn      func(ctx context.Context, userID string) (models.Profile, error)
	emailTakenFn      func(ctx context.Context, email string) (bool, error)
	usernameTakenFn   func(ctx context.Context, username string) (bool, error)
	updateProfileFn   func(ctx context.Context, tx store.Execer, userID string, update store.ProfileUpdate) error
}

func (s stubUserStore) Create(ctx context.Context, tx store.Execer, input store.UserInput) error {
	if s.createFn == nil {
		return nil
	}
	return s.createFn(ctx, tx, input)
}

func (s stubUserStore) CreateCompany(ctx context.Context, tx store.Execer, userID string, input store.CompanyInput) error {
	if s.createCompanyFn == nil {
		return nil
	}
	return s.createCompanyFn(ctx, tx, userID, input)
}

func (s stubUserStore) CreatePassenger(ctx context.Context, tx store.Execer, userID string) error {
	if s.createPassengerFn == nil {
		return nil
	}
	return s.createPassengerFn(ctx, tx, userID)
}

func (s stubUserStore) GetByEmail(ctx context.Context, email string) (models.User, error) {
	if s.getByEmailFn == nil {
		return models.User{}, sql.ErrNoRows
	}
	return s.getByEmailFn(ctx, email)
}

func (s stubUserStore) GetByID(ctx context.Context, userID string) (models.User, error) {
	if s.getByIDFn == nil {
		return models.User{}, sql.ErrNoRows
	}
	return s.getByIDFn(ctx, userID)
}

func (s stubUserStore) GetProfile(ctx context.Context, userID string) (models.Profile, error) {
	if s.getProfileFn == nil {
		return models.Profile{User: models.User{ID: userID}}, nil
	}
	return s.getProfileFn(ctx, userID)
}

func (s stubUserStore) EmailTaken(ctx context.Context, email string) (bool, error) {
	if s.emailTakenFn == nil {
		return false, nil
	}
	return s.emailTakenFn(ctx, email)
}

func (s stubUserStore) UsernameTaken(ctx context.Context, username string) (bool, error) {
	if s.usernameTakenFn == nil {
		return false, nil
	}
	return s.usernameTakenFn(ctx, username)
}

func (s stubUserStore) UpdateProfile(ctx context.Context, tx store.Execer, userID string, update store.ProfileUpdate) error {
	if s.updateProfileFn == nil {
		return nil
	}
	return s.updateProfileFn(ctx, tx, userID, update)
}

func TestRegisterCompany(t *testing.T) {
	env := newTestEnv()
	var created store.UserInput
	var companyRow store.CompanyInput
	passengerRow := false
	env.accounts.users = stubUserStore{
		createFn: func(_ context.Context, _ store.Execer, input store.UserInput) error {
			created = input
			return nil
		},
		createCompanyFn: func(_ context.Context, _ store.Execer, _ string, input store.CompanyInput) error {
			companyRow = input
			return nil
		},
		createPassengerFn: func(context.Context, store.Execer, string) error {
			passengerRow = true
			return nil
		},
	}

	profile, err := env.accounts.Register(context.Background(), RegisterInput{
		UserType: models.UserTypeCompany,
		Email:    " Ops@Sky.Test ",
		Username: "skyways",
		Password: "secret-pass",
		Name:     "Sky Ways",
		Tel:      "+375 29 000",
		Bio:      "Regional carrier",
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if created.Email != "ops@sky.test" || created.UserType != models.UserTypeCompany {
		t.Fatalf("unexpected user row: %+v", created)
	}
	if created.PasswordHash == "secret-pass" || !auth.CheckPassword(created.PasswordHash, "secret-pass") {
		t.Fatalf("password should be stored hashed")
	}
	if companyRow.Bio != "Regional carrier" || passengerRow {
		t.Fatalf("expected company profile only")
	}
	if profile.ID != created.ID {
		t.Fatalf("expected profile of the new user")
	}
	if len(env.world.audits) != 1 || env.world.audits[0] != "register" {
		t.Fatalf("expected register audit, got %v", env.world.audits)
	}
}

func TestRegisterReportsTakenFields(t *testing.T) {
	env := newTestEnv()
	env.accounts.users = stubUserStore{
		emailTakenFn:    func(context.Context, string) (bool, error) { return true, nil },
		usernameTakenFn: func(context.Context, string) (bool, error) { return true, nil },
		createFn: func(context.Context, store.Execer, store.UserInput) error {
			t.Fatalf("create should not be called")
			return nil
		},
	}
	_, err := env.accounts.Register(context.Background(), RegisterInput{UserType: models.UserTypePassenger, Email: "a@b.test", Username: "taken", Password: "password1"})
	var verr *ValidationError
	if !errors.As(err, &verr) {
		t.Fatalf("expected validation error, got %v", err)
	}
	if len(verr.Fields) != 2 {
		t.Fatalf("expected email and username errors, got %v", verr.Fields)
	}
}

func TestLogin(t *testing.T) {
	hash, err := auth.HashPassword("correct-horse")
	if err != nil {
		t.Fatalf("hash: %v", err)
	}
	users := map[string]models.User{
		"active@sky.test":   {ID: "u1", Email: "active@sky.test", PasswordHash: hash, IsActive: true},
		"inactive@sky.test": {ID: "u2", Email: "inactive@sky.test", PasswordHash: hash, IsActive: false},
	}
	env := newTestEnv()
	env.accounts.users = stubUserStore{
		getByEmailFn: func(_ context.Context, email string) (models.User, error) {
			user, ok := users[email]
			if !ok {
				return models.User{}, sql.ErrNoRows
			}
			return user, nil
		},
	}
	ctx := context.Background()

	profile, err := env.accounts.Login(ctx, "ACTIVE@sky.test", "correct-horse")
	if err != nil || profile.ID != "u1" {
		t.Fatalf("expected login, got %v %v", profile.ID, err)
	}
	if _, err := env.accounts.Login(ctx, "active@sky.test", "wrong"); err != ErrInvalidCredentials {
		t.Fatalf("expected ErrInvalidCredentials, got %v", err)
	}
	if _, err := env.accounts.Login(ctx, "nobody@sky.test", "correct-horse"); err != ErrInvalidCredentials {
		t.Fatalf("expected ErrInvalidCredentials, got %v", err)
	}
	if _, err := env.accounts.Login(ctx, "inactive@sky.test", "correct-horse"); err != ErrAccountInactive {
		t.Fatalf("expected ErrAccountInactive, got %v", err)
	}
}

func TestUpdateProfileTopUp(t *testing.T) {
	env := newTestEnv()
	env.world.addUser("p1", models.UserTypePassenger, 1000)
	var update store.ProfileUpdate
	env.accounts.users = stubUserStore{
		updateProfileFn: func(_ context.Context, _ store.Execer, _ string, u store.ProfileUpdate) error {
			update = u
			return nil
		},
	}

	_, err := env.accounts.UpdateProfile(context.Background(), UpdateProfileInput{
		UserID:   "p1",
		UserType: models.UserTypePassenger,
		Name:     stringPtr("  Alice  "),
		Bio:      stringPtr("ignored for passengers"),
		TopUp:    2500,
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if update.Name == nil || *update.Name != "Alice" || update.Bio != nil {
		t.Fatalf("unexpected update: %+v", update)
	}
	if env.world.balance("p1") != 3500 {
		t.Fatalf("expected balance 3500, got %d", env.world.balance("p1"))
	}
	deposits := env.world.transactionsOfType(models.TransactionDeposit)
	if len(deposits) != 1 || deposits[0].BookingID != nil || deposits[0].Amount != 2500 {
		t.Fatalf("unexpected deposit log: %+v", deposits)
	}
	pushes := env.notifier.events["p1"]
	if len(pushes) != 1 || pushes[0].Type != websocket.EventBalance {
		t.Fatalf("expected balance push, got %+v", pushes)
	}
}

func TestUpdateProfileTopUpRejectedForCompany(t *testing.T) {
	env := newTestEnv()
	_, err := env.accounts.UpdateProfile(context.Background(), UpdateProfileInput{UserID: "c1", UserType: models.UserTypeCompany, TopUp: 100})
	if err != ErrTopUpNotAllowed {
		t.Fatalf("expected ErrTopUpNotAllowed, got %v", err)
	}
}

func TestUpdateProfileRollsBackOnFailure(t *testing.T) {
	env := newTestEnv()
	env.world.addUser("p1", models.UserTypePassenger, 1000)
	env.accounts.audit = stubAuditStore{
		logFn: func(context.Context, store.Execer, string, string, string, string, string) error {
			return errors.New("audit failed")
		},
	}
	if _, err := env.accounts.UpdateProfile(context.Background(), UpdateProfileInput{UserID: "p1", UserType: models.UserTypePassenger, TopUp: 500}); err == nil {
		t.Fatalf("expected error")
	}
	if env.world.balance("p1") != 1000 || len(env.world.transactions) != 0 {
		t.Fatalf("top-up should roll back with the failed transaction")
	}
}

type stubAuditStore struct {
	logFn func(ctx context.Context, tx store.Execer, actorID, action, entityType, entityID, data string) error
}

func (s stubAuditStore) Log(ctx context.Context, tx store.Execer, actorID, action, entityType, entityID, data string) error {
	if s.logFn == nil {
		return nil
	}
	return s.logFn(ctx, tx, actorID, action, entityType, entityID, data)
}
