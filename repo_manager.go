package identity

import (
	"context"
	"database/sql"

	"github.com/goliatone/go-repository-bun"
	"github.com/uptrace/bun"
)

// RepositoryManager aggregates every persistence surface behind a single
// handle and owns transaction boundaries.
type RepositoryManager interface {
	repository.Validator
	repository.TransactionManager

	Accounts() Accounts
	RefreshTokens() RefreshTokens
	ActionTokens() ActionTokens
	AdminGrants() AdminGrants
	AuthorProfiles() AuthorProfiles
}

type mngr struct {
	db             *bun.DB
	accounts       Accounts
	refreshTokens  RefreshTokens
	actionTokens   ActionTokens
	adminGrants    AdminGrants
	authorProfiles AuthorProfiles
}

var _ RepositoryManager = (*mngr)(nil)

// NewRepositoryManager builds the default manager over a bun DB handle.
func NewRepositoryManager(db *bun.DB) RepositoryManager {
	return &mngr{
		db:             db,
		accounts:       NewAccountsRepository(db),
		refreshTokens:  NewRefreshTokensRepository(db),
		actionTokens:   NewActionTokensRepository(db),
		adminGrants:    NewAdminGrantsRepository(db),
		authorProfiles: NewAuthorProfilesRepository(db),
	}
}

func (m *mngr) Accounts() Accounts {
	return m.accounts
}

func (m *mngr) RefreshTokens() RefreshTokens {
	return m.refreshTokens
}

func (m *mngr) ActionTokens() ActionTokens {
	return m.actionTokens
}

func (m *mngr) AdminGrants() AdminGrants {
	return m.adminGrants
}

func (m *mngr) AuthorProfiles() AuthorProfiles {
	return m.authorProfiles
}

func (m *mngr) Validate() error {
	if m.db == nil {
		return ErrNoDatabaseConnection
	}
	return m.db.Ping()
}

func (m *mngr) MustValidate() {
	if err := m.Validate(); err != nil {
		panic(err)
	}
}

// RunInTx executes f inside a database transaction. The transaction is rolled
// back when f errors or the context is cancelled first.
func (m *mngr) RunInTx(ctx context.Context, opts *sql.TxOptions, f func(ctx context.Context, tx bun.Tx) error) error {
	select {
	case <-ctx.Done():
		return ctx.Err()
	default:
		return m.db.RunInTx(ctx, opts, f)
	}
}
