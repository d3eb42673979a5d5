package identity

import (
	"context"
	"time"

	"github.com/goliatone/go-repository-bun"
	"github.com/google/uuid"
	"github.com/uptrace/bun"
)

// ActionTokens is the persistence surface for single use token records.
type ActionTokens interface {
	GetByHash(ctx context.Context, hash string, kind ActionTokenKind) (*ActionToken, error)
	Create(ctx context.Context, record *ActionToken, criteria ...repository.InsertCriteria) (*ActionToken, error)
	CreateTx(ctx context.Context, tx bun.IDB, record *ActionToken, criteria ...repository.InsertCriteria) (*ActionToken, error)

	// ConsumeTx stamps consumed_at only when it is still null. Returns false
	// when another consumer already won: two concurrent attempts can never
	// both succeed.
	ConsumeTx(ctx context.Context, tx bun.IDB, id uuid.UUID, at time.Time) (bool, error)

	// SupersedeTx retires every live token of the (account, kind) pair so a
	// freshly issued token is the only usable one.
	SupersedeTx(ctx context.Context, tx bun.IDB, accountID uuid.UUID, kind ActionTokenKind, at time.Time) error
}

type actionTokens struct {
	repository.Repository[*ActionToken]
	db *bun.DB
}

var _ ActionTokens = (*actionTokens)(nil)

// NewActionTokensRepository builds the bun backed ActionTokens repository.
func NewActionTokensRepository(db *bun.DB) ActionTokens {
	repo := repository.NewRepository[*ActionToken](db, repository.ModelHandlers[*ActionToken]{
		NewRecord: func() *ActionToken { return &ActionToken{} },
		GetID: func(t *ActionToken) uuid.UUID {
			if t == nil {
				return uuid.Nil
			}
			return t.ID
		},
		SetID: func(t *ActionToken, id uuid.UUID) {
			if t != nil {
				t.ID = id
			}
		},
		GetIdentifier: func() string {
			return "token_hash"
		},
	})

	return &actionTokens{
		Repository: repo,
		db:         db,
	}
}

func (r *actionTokens) GetByHash(ctx context.Context, hash string, kind ActionTokenKind) (*ActionToken, error) {
	record := &ActionToken{}
	err := r.db.NewSelect().
		Model(record).
		Where("?TableAlias.token_hash = ?", hash).
		Where("?TableAlias.kind = ?", kind).
		Limit(1).
		Scan(ctx)

	if err != nil {
		if repository.IsRecordNotFound(err) {
			return nil, repository.NewRecordNotFound()
		}
		return nil, err
	}

	return record, nil
}

func (r *actionTokens) CreateTx(ctx context.Context, tx bun.IDB, record *ActionToken, criteria ...repository.InsertCriteria) (*ActionToken, error) {
	if record.ID == uuid.Nil {
		record.ID = uuid.New()
	}
	return r.Repository.CreateTx(ctx, tx, record, criteria...)
}

func (r *actionTokens) Create(ctx context.Context, record *ActionToken, criteria ...repository.InsertCriteria) (*ActionToken, error) {
	return r.CreateTx(ctx, r.db, record, criteria...)
}

func (r *actionTokens) ConsumeTx(ctx context.Context, tx bun.IDB, id uuid.UUID, at time.Time) (bool, error) {
	res, err := tx.NewUpdate().
		Model((*ActionToken)(nil)).
		Set("consumed_at = ?", at).
		Where("id = ?", id).
		Where("consumed_at IS NULL").
		Exec(ctx)

	if err != nil {
		return false, err
	}

	rows, err := res.RowsAffected()
	if err != nil {
		return false, err
	}

	return rows == 1, nil
}

func (r *actionTokens) SupersedeTx(ctx context.Context, tx bun.IDB, accountID uuid.UUID, kind ActionTokenKind, at time.Time) error {
	_, err := tx.NewUpdate().
		Model((*ActionToken)(nil)).
		Set("consumed_at = ?", at).
		Where("account_id = ?", accountID).
		Where("kind = ?", kind).
		Where("consumed_at IS NULL").
		Exec(ctx)

	return err
}
