package identity

import (
	"context"
	"time"

	"github.com/goliatone/go-repository-bun"
	"github.com/google/uuid"
	"github.com/uptrace/bun"
)

// RefreshTokens is the persistence surface for refresh token records. Records
// are never deleted; revocation timestamps keep the audit trail intact.
type RefreshTokens interface {
	GetByHash(ctx context.Context, hash string) (*RefreshToken, error)
	Create(ctx context.Context, record *RefreshToken, criteria ...repository.InsertCriteria) (*RefreshToken, error)
	CreateTx(ctx context.Context, tx bun.IDB, record *RefreshToken, criteria ...repository.InsertCriteria) (*RefreshToken, error)

	// MarkReplacedTx links the parent to its child only if the parent is
	// still live. Returns false when a concurrent rotation won the race.
	MarkReplacedTx(ctx context.Context, tx bun.IDB, parentID, childID uuid.UUID) (bool, error)

	RevokeFamily(ctx context.Context, familyID uuid.UUID) error
	RevokeFamilyTx(ctx context.Context, tx bun.IDB, familyID uuid.UUID) error
	RevokeByAccount(ctx context.Context, accountID uuid.UUID) error
	RevokeByAccountTx(ctx context.Context, tx bun.IDB, accountID uuid.UUID) error
}

type refreshTokens struct {
	repository.Repository[*RefreshToken]
	db *bun.DB
}

var _ RefreshTokens = (*refreshTokens)(nil)

// NewRefreshTokensRepository builds the bun backed RefreshTokens repository.
func NewRefreshTokensRepository(db *bun.DB) RefreshTokens {
	repo := repository.NewRepository[*RefreshToken](db, repository.ModelHandlers[*RefreshToken]{
		NewRecord: func() *RefreshToken { return &RefreshToken{} },
		GetID: func(t *RefreshToken) uuid.UUID {
			if t == nil {
				return uuid.Nil
			}
			return t.ID
		},
		SetID: func(t *RefreshToken, id uuid.UUID) {
			if t != nil {
				t.ID = id
			}
		},
		GetIdentifier: func() string {
			return "token_hash"
		},
	})

	return &refreshTokens{
		Repository: repo,
		db:         db,
	}
}

func (r *refreshTokens) GetByHash(ctx context.Context, hash string) (*RefreshToken, error) {
	record := &RefreshToken{}
	err := r.db.NewSelect().
		Model(record).
		Where("?TableAlias.token_hash = ?", hash).
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

func (r *refreshTokens) CreateTx(ctx context.Context, tx bun.IDB, record *RefreshToken, criteria ...repository.InsertCriteria) (*RefreshToken, error) {
	if record.ID == uuid.Nil {
		record.ID = uuid.New()
	}
	return r.Repository.CreateTx(ctx, tx, record, criteria...)
}

func (r *refreshTokens) Create(ctx context.Context, record *RefreshToken, criteria ...repository.InsertCriteria) (*RefreshToken, error) {
	return r.CreateTx(ctx, r.db, record, criteria...)
}

func (r *refreshTokens) MarkReplacedTx(ctx context.Context, tx bun.IDB, parentID, childID uuid.UUID) (bool, error) {
	res, err := tx.NewUpdate().
		Model((*RefreshToken)(nil)).
		Set("replaced_by = ?", childID).
		Where("id = ?", parentID).
		Where("replaced_by IS NULL").
		Where("revoked_at IS NULL").
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

func (r *refreshTokens) RevokeFamily(ctx context.Context, familyID uuid.UUID) error {
	return r.RevokeFamilyTx(ctx, r.db, familyID)
}

func (r *refreshTokens) RevokeFamilyTx(ctx context.Context, tx bun.IDB, familyID uuid.UUID) error {
	_, err := tx.NewUpdate().
		Model((*RefreshToken)(nil)).
		Set("revoked_at = ?", time.Now()).
		Where("family_id = ?", familyID).
		Where("revoked_at IS NULL").
		Exec(ctx)

	return err
}

func (r *refreshTokens) RevokeByAccount(ctx context.Context, accountID uuid.UUID) error {
	return r.RevokeByAccountTx(ctx, r.db, accountID)
}

func (r *refreshTokens) RevokeByAccountTx(ctx context.Context, tx bun.IDB, accountID uuid.UUID) error {
	_, err := tx.NewUpdate().
		Model((*RefreshToken)(nil)).
		Set("revoked_at = ?", time.Now()).
		Where("account_id = ?", accountID).
		Where("revoked_at IS NULL").
		Exec(ctx)

	return err
}
