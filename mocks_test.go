package identity_test

import (
	"context"
	"database/sql"
	"time"

	identity "github.com/goliatone/go-identity"
	"github.com/goliatone/go-repository-bun"
	"github.com/google/uuid"
	"github.com/stretchr/testify/mock"
	"github.com/uptrace/bun"
)

type testLogger struct{}

func (testLogger) Debug(string, ...any) {}
func (testLogger) Info(string, ...any)  {}
func (testLogger) Warn(string, ...any)  {}
func (testLogger) Error(string, ...any) {}

// MockRepositoryManager implements identity.RepositoryManager
type MockRepositoryManager struct {
	mock.Mock
}

func (m *MockRepositoryManager) Validate() error {
	args := m.Called()
	return args.Error(0)
}

func (m *MockRepositoryManager) MustValidate() {
	m.Called()
}

func (m *MockRepositoryManager) RunInTx(ctx context.Context, opts *sql.TxOptions, f func(ctx context.Context, tx bun.Tx) error) error {
	args := m.Called(ctx, opts, f)
	return args.Error(0)
}

func (m *MockRepositoryManager) Accounts() identity.Accounts {
	args := m.Called()
	return args.Get(0).(identity.Accounts)
}

func (m *MockRepositoryManager) RefreshTokens() identity.RefreshTokens {
	args := m.Called()
	return args.Get(0).(identity.RefreshTokens)
}

func (m *MockRepositoryManager) ActionTokens() identity.ActionTokens {
	args := m.Called()
	return args.Get(0).(identity.ActionTokens)
}

func (m *MockRepositoryManager) AdminGrants() identity.AdminGrants {
	args := m.Called()
	return args.Get(0).(identity.AdminGrants)
}

func (m *MockRepositoryManager) AuthorProfiles() identity.AuthorProfiles {
	args := m.Called()
	return args.Get(0).(identity.AuthorProfiles)
}

// runTxPassthrough wires RunInTx so the handler body executes against the mocks.
func runTxPassthrough(repo *MockRepositoryManager) {
	call := repo.On("RunInTx", mock.Anything, (*sql.TxOptions)(nil), mock.Anything)
	call.Run(func(args mock.Arguments) {
		fn := args.Get(2).(func(context.Context, bun.Tx) error)
		var tx bun.Tx
		call.ReturnArguments = mock.Arguments{fn(args.Get(0).(context.Context), tx)}
	})
}

// MockAccounts implements identity.Accounts
type MockAccounts struct {
	mock.Mock
}

func (m *MockAccounts) GetByID(ctx context.Context, id string, criteria ...repository.SelectCriteria) (*identity.Account, error) {
	args := m.Called(ctx, id)
	if rec := args.Get(0); rec != nil {
		return rec.(*identity.Account), args.Error(1)
	}
	return nil, args.Error(1)
}

func (m *MockAccounts) GetByIdentifier(ctx context.Context, identifier string, criteria ...repository.SelectCriteria) (*identity.Account, error) {
	args := m.Called(ctx, identifier)
	if rec := args.Get(0); rec != nil {
		return rec.(*identity.Account), args.Error(1)
	}
	return nil, args.Error(1)
}

func (m *MockAccounts) Create(ctx context.Context, record *identity.Account, criteria ...repository.InsertCriteria) (*identity.Account, error) {
	args := m.Called(ctx, record)
	if rec := args.Get(0); rec != nil {
		return rec.(*identity.Account), args.Error(1)
	}
	return nil, args.Error(1)
}

func (m *MockAccounts) CreateTx(ctx context.Context, tx bun.IDB, record *identity.Account, criteria ...repository.InsertCriteria) (*identity.Account, error) {
	args := m.Called(ctx, tx, record)
	if rec := args.Get(0); rec != nil {
		return rec.(*identity.Account), args.Error(1)
	}
	return nil, args.Error(1)
}

func (m *MockAccounts) Update(ctx context.Context, record *identity.Account, criteria ...repository.UpdateCriteria) (*identity.Account, error) {
	args := m.Called(ctx, record)
	if rec := args.Get(0); rec != nil {
		return rec.(*identity.Account), args.Error(1)
	}
	return nil, args.Error(1)
}

func (m *MockAccounts) UpdateTx(ctx context.Context, tx bun.IDB, record *identity.Account, criteria ...repository.UpdateCriteria) (*identity.Account, error) {
	args := m.Called(ctx, tx, record)
	if rec := args.Get(0); rec != nil {
		return rec.(*identity.Account), args.Error(1)
	}
	return nil, args.Error(1)
}

func (m *MockAccounts) RawTx(ctx context.Context, tx bun.IDB, sql string, params ...any) ([]*identity.Account, error) {
	args := m.Called(ctx, tx, sql, params)
	if rec := args.Get(0); rec != nil {
		return rec.([]*identity.Account), args.Error(1)
	}
	return nil, args.Error(1)
}

func (m *MockAccounts) TrackAttemptedLogin(ctx context.Context, account *identity.Account) error {
	args := m.Called(ctx, account)
	return args.Error(0)
}

func (m *MockAccounts) TrackSuccessfulLogin(ctx context.Context, account *identity.Account) error {
	args := m.Called(ctx, account)
	return args.Error(0)
}

func (m *MockAccounts) MarkEmailVerified(ctx context.Context, id uuid.UUID) error {
	args := m.Called(ctx, id)
	return args.Error(0)
}

func (m *MockAccounts) ResetPassword(ctx context.Context, id uuid.UUID, passwordHash string) error {
	args := m.Called(ctx, id, passwordHash)
	return args.Error(0)
}

func (m *MockAccounts) ResetPasswordTx(ctx context.Context, tx bun.IDB, id uuid.UUID, passwordHash string) error {
	args := m.Called(ctx, tx, id, passwordHash)
	return args.Error(0)
}

// MockRefreshTokens implements identity.RefreshTokens
type MockRefreshTokens struct {
	mock.Mock
}

func (m *MockRefreshTokens) GetByHash(ctx context.Context, hash string) (*identity.RefreshToken, error) {
	args := m.Called(ctx, hash)
	if rec := args.Get(0); rec != nil {
		return rec.(*identity.RefreshToken), args.Error(1)
	}
	return nil, args.Error(1)
}

func (m *MockRefreshTokens) Create(ctx context.Context, record *identity.RefreshToken, criteria ...repository.InsertCriteria) (*identity.RefreshToken, error) {
	args := m.Called(ctx, record)
	if rec := args.Get(0); rec != nil {
		return rec.(*identity.RefreshToken), args.Error(1)
	}
	return nil, args.Error(1)
}

func (m *MockRefreshTokens) CreateTx(ctx context.Context, tx bun.IDB, record *identity.RefreshToken, criteria ...repository.InsertCriteria) (*identity.RefreshToken, error) {
	args := m.Called(ctx, tx, record)
	if rec := args.Get(0); rec != nil {
		return rec.(*identity.RefreshToken), args.Error(1)
	}
	return nil, args.Error(1)
}

func (m *MockRefreshTokens) MarkReplacedTx(ctx context.Context, tx bun.IDB, parentID, childID uuid.UUID) (bool, error) {
	args := m.Called(ctx, tx, parentID, childID)
	return args.Bool(0), args.Error(1)
}

func (m *MockRefreshTokens) RevokeFamily(ctx context.Context, familyID uuid.UUID) error {
	args := m.Called(ctx, familyID)
	return args.Error(0)
}

func (m *MockRefreshTokens) RevokeFamilyTx(ctx context.Context, tx bun.IDB, familyID uuid.UUID) error {
	args := m.Called(ctx, tx, familyID)
	return args.Error(0)
}

func (m *MockRefreshTokens) RevokeByAccount(ctx context.Context, accountID uuid.UUID) error {
	args := m.Called(ctx, accountID)
	return args.Error(0)
}

func (m *MockRefreshTokens) RevokeByAccountTx(ctx context.Context, tx bun.IDB, accountID uuid.UUID) error {
	args := m.Called(ctx, tx, accountID)
	return args.Error(0)
}

// MockActionTokens implements identity.ActionTokens
type MockActionTokens struct {
	mock.Mock
}

func (m *MockActionTokens) GetByHash(ctx context.Context, hash string, kind identity.ActionTokenKind) (*identity.ActionToken, error) {
	args := m.Called(ctx, hash, kind)
	if rec := args.Get(0); rec != nil {
		return rec.(*identity.ActionToken), args.Error(1)
	}
	return nil, args.Error(1)
}

func (m *MockActionTokens) Create(ctx context.Context, record *identity.ActionToken, criteria ...repository.InsertCriteria) (*identity.ActionToken, error) {
	args := m.Called(ctx, record)
	if rec := args.Get(0); rec != nil {
		return rec.(*identity.ActionToken), args.Error(1)
	}
	return nil, args.Error(1)
}

func (m *MockActionTokens) CreateTx(ctx context.Context, tx bun.IDB, record *identity.ActionToken, criteria ...repository.InsertCriteria) (*identity.ActionToken, error) {
	args := m.Called(ctx, tx, record)
	if rec := args.Get(0); rec != nil {
		return rec.(*identity.ActionToken), args.Error(1)
	}
	return nil, args.Error(1)
}

func (m *MockActionTokens) ConsumeTx(ctx context.Context, tx bun.IDB, id uuid.UUID, at time.Time) (bool, error) {
	args := m.Called(ctx, tx, id, at)
	return args.Bool(0), args.Error(1)
}

func (m *MockActionTokens) SupersedeTx(ctx context.Context, tx bun.IDB, accountID uuid.UUID, kind identity.ActionTokenKind, at time.Time) error {
	args := m.Called(ctx, tx, accountID, kind, at)
	return args.Error(0)
}

// MockAdminGrants implements identity.AdminGrants
type MockAdminGrants struct {
	mock.Mock
}

func (m *MockAdminGrants) GetByAccount(ctx context.Context, accountID uuid.UUID) (*identity.AdminGrant, error) {
	args := m.Called(ctx, accountID)
	if rec := args.Get(0); rec != nil {
		return rec.(*identity.AdminGrant), args.Error(1)
	}
	return nil, args.Error(1)
}

func (m *MockAdminGrants) Create(ctx context.Context, record *identity.AdminGrant, criteria ...repository.InsertCriteria) (*identity.AdminGrant, error) {
	args := m.Called(ctx, record)
	if rec := args.Get(0); rec != nil {
		return rec.(*identity.AdminGrant), args.Error(1)
	}
	return nil, args.Error(1)
}

func (m *MockAdminGrants) CreateTx(ctx context.Context, tx bun.IDB, record *identity.AdminGrant, criteria ...repository.InsertCriteria) (*identity.AdminGrant, error) {
	args := m.Called(ctx, tx, record)
	if rec := args.Get(0); rec != nil {
		return rec.(*identity.AdminGrant), args.Error(1)
	}
	return nil, args.Error(1)
}

func (m *MockAdminGrants) Exists(ctx context.Context, accountID uuid.UUID) (bool, error) {
	args := m.Called(ctx, accountID)
	return args.Bool(0), args.Error(1)
}

func (m *MockAdminGrants) Any(ctx context.Context) (bool, error) {
	args := m.Called(ctx)
	return args.Bool(0), args.Error(1)
}

// MockAuthorProfiles implements identity.AuthorProfiles
type MockAuthorProfiles struct {
	mock.Mock
}

func (m *MockAuthorProfiles) GetByID(ctx context.Context, id string, criteria ...repository.SelectCriteria) (*identity.AuthorProfile, error) {
	args := m.Called(ctx, id)
	if rec := args.Get(0); rec != nil {
		return rec.(*identity.AuthorProfile), args.Error(1)
	}
	return nil, args.Error(1)
}

func (m *MockAuthorProfiles) GetByAccount(ctx context.Context, accountID uuid.UUID) (*identity.AuthorProfile, error) {
	args := m.Called(ctx, accountID)
	if rec := args.Get(0); rec != nil {
		return rec.(*identity.AuthorProfile), args.Error(1)
	}
	return nil, args.Error(1)
}

func (m *MockAuthorProfiles) Create(ctx context.Context, record *identity.AuthorProfile, criteria ...repository.InsertCriteria) (*identity.AuthorProfile, error) {
	args := m.Called(ctx, record)
	if rec := args.Get(0); rec != nil {
		return rec.(*identity.AuthorProfile), args.Error(1)
	}
	return nil, args.Error(1)
}

func (m *MockAuthorProfiles) CreateTx(ctx context.Context, tx bun.IDB, record *identity.AuthorProfile, criteria ...repository.InsertCriteria) (*identity.AuthorProfile, error) {
	args := m.Called(ctx, tx, record)
	if rec := args.Get(0); rec != nil {
		return rec.(*identity.AuthorProfile), args.Error(1)
	}
	return nil, args.Error(1)
}

func (m *MockAuthorProfiles) UpdateStatus(ctx context.Context, id uuid.UUID, status identity.AuthorStatus, opts ...identity.ProfileUpdateOption) (*identity.AuthorProfile, error) {
	args := m.Called(ctx, id, status)
	if rec := args.Get(0); rec != nil {
		return rec.(*identity.AuthorProfile), args.Error(1)
	}
	return nil, args.Error(1)
}

func (m *MockAuthorProfiles) Resubmit(ctx context.Context, record *identity.AuthorProfile) (*identity.AuthorProfile, error) {
	args := m.Called(ctx, record)
	if rec := args.Get(0); rec != nil {
		return rec.(*identity.AuthorProfile), args.Error(1)
	}
	return nil, args.Error(1)
}

// MockActivitySink implements identity.ActivitySink
type MockActivitySink struct {
	mock.Mock
}

func (m *MockActivitySink) Record(ctx context.Context, event identity.ActivityEvent) error {
	args := m.Called(ctx, event)
	return args.Error(0)
}

// MockNotifier implements identity.Notifier
type MockNotifier struct {
	mock.Mock
}

func (m *MockNotifier) Send(ctx context.Context, n identity.Notification) error {
	args := m.Called(ctx, n)
	return args.Error(0)
}
