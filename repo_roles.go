package identity

import (
	"context"
	"time"

	"github.com/goliatone/go-repository-bun"
	"github.com/google/uuid"
	"github.com/uptrace/bun"
)

// AdminGrants is the persistence surface for administrator grants.
type AdminGrants interface {
	GetByAccount(ctx context.Context, accountID uuid.UUID) (*AdminGrant, error)
	Create(ctx context.Context, record *AdminGrant, criteria ...repository.InsertCriteria) (*AdminGrant, error)
	CreateTx(ctx context.Context, tx bun.IDB, record *AdminGrant, criteria ...repository.InsertCriteria) (*AdminGrant, error)
	Exists(ctx context.Context, accountID uuid.UUID) (bool, error)
	Any(ctx context.Context) (bool, error)
}

type adminGrants struct {
	repository.Repository[*AdminGrant]
	db *bun.DB
}

var _ AdminGrants = (*adminGrants)(nil)

// NewAdminGrantsRepository builds the bun backed AdminGrants repository.
func NewAdminGrantsRepository(db *bun.DB) AdminGrants {
	repo := repository.NewRepository[*AdminGrant](db, repository.ModelHandlers[*AdminGrant]{
		NewRecord: func() *AdminGrant { return &AdminGrant{} },
		GetID: func(g *AdminGrant) uuid.UUID {
			if g == nil {
				return uuid.Nil
			}
			return g.AccountID
		},
		SetID: func(g *AdminGrant, id uuid.UUID) {
			if g != nil {
				g.AccountID = id
			}
		},
	})

	return &adminGrants{
		Repository: repo,
		db:         db,
	}
}

func (r *adminGrants) GetByAccount(ctx context.Context, accountID uuid.UUID) (*AdminGrant, error) {
	record := &AdminGrant{}
	err := r.db.NewSelect().
		Model(record).
		Where("?TableAlias.account_id = ?", accountID).
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

func (r *adminGrants) CreateTx(ctx context.Context, tx bun.IDB, record *AdminGrant, criteria ...repository.InsertCriteria) (*AdminGrant, error) {
	return r.Repository.CreateTx(ctx, tx, record, criteria...)
}

func (r *adminGrants) Create(ctx context.Context, record *AdminGrant, criteria ...repository.InsertCriteria) (*AdminGrant, error) {
	return r.CreateTx(ctx, r.db, record, criteria...)
}

func (r *adminGrants) Exists(ctx context.Context, accountID uuid.UUID) (bool, error) {
	return r.db.NewSelect().
		Model((*AdminGrant)(nil)).
		Where("account_id = ?", accountID).
		Exists(ctx)
}

func (r *adminGrants) Any(ctx context.Context) (bool, error) {
	return r.db.NewSelect().
		Model((*AdminGrant)(nil)).
		Exists(ctx)
}

// AuthorProfiles is the persistence surface for author application records.
type AuthorProfiles interface {
	GetByID(ctx context.Context, id string, criteria ...repository.SelectCriteria) (*AuthorProfile, error)
	GetByAccount(ctx context.Context, accountID uuid.UUID) (*AuthorProfile, error)
	Create(ctx context.Context, record *AuthorProfile, criteria ...repository.InsertCriteria) (*AuthorProfile, error)
	CreateTx(ctx context.Context, tx bun.IDB, record *AuthorProfile, criteria ...repository.InsertCriteria) (*AuthorProfile, error)
	UpdateStatus(ctx context.Context, id uuid.UUID, status AuthorStatus, opts ...ProfileUpdateOption) (*AuthorProfile, error)

	// Resubmit returns a rejected application to PENDING with fresh content.
	// The existing row is reused so the per account uniqueness constraint
	// holds across repeat applications.
	Resubmit(ctx context.Context, record *AuthorProfile) (*AuthorProfile, error)
}

// ProfileUpdateOption mutates the profile record before persisting a status change.
type ProfileUpdateOption func(*AuthorProfile)

// WithProfileSuspendedAt sets the SuspendedAt timestamp during a status transition.
func WithProfileSuspendedAt(at *time.Time) ProfileUpdateOption {
	return func(p *AuthorProfile) {
		p.SuspendedAt = at
	}
}

// WithProfileReviewedAt stamps the moment an application was reviewed.
func WithProfileReviewedAt(at *time.Time) ProfileUpdateOption {
	return func(p *AuthorProfile) {
		p.ReviewedAt = at
	}
}

type authorProfiles struct {
	repository.Repository[*AuthorProfile]
	db *bun.DB
}

var _ AuthorProfiles = (*authorProfiles)(nil)

// NewAuthorProfilesRepository builds the bun backed AuthorProfiles repository.
func NewAuthorProfilesRepository(db *bun.DB) AuthorProfiles {
	repo := repository.NewRepository[*AuthorProfile](db, repository.ModelHandlers[*AuthorProfile]{
		NewRecord: func() *AuthorProfile { return &AuthorProfile{} },
		GetID: func(p *AuthorProfile) uuid.UUID {
			if p == nil {
				return uuid.Nil
			}
			return p.ID
		},
		SetID: func(p *AuthorProfile, id uuid.UUID) {
			if p != nil {
				p.ID = id
			}
		},
	})

	return &authorProfiles{
		Repository: repo,
		db:         db,
	}
}

func (r *authorProfiles) GetByAccount(ctx context.Context, accountID uuid.UUID) (*AuthorProfile, error) {
	record := &AuthorProfile{}
	err := r.db.NewSelect().
		Model(record).
		Where("?TableAlias.account_id = ?", accountID).
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

func (r *authorProfiles) CreateTx(ctx context.Context, tx bun.IDB, record *AuthorProfile, criteria ...repository.InsertCriteria) (*AuthorProfile, error) {
	if record != nil {
		record.EnsureStatus()
		if record.ID == uuid.Nil {
			record.ID = uuid.New()
		}
	}
	return r.Repository.CreateTx(ctx, tx, record, criteria...)
}

func (r *authorProfiles) Create(ctx context.Context, record *AuthorProfile, criteria ...repository.InsertCriteria) (*AuthorProfile, error) {
	return r.CreateTx(ctx, r.db, record, criteria...)
}

func (r *authorProfiles) UpdateStatus(ctx context.Context, id uuid.UUID, status AuthorStatus, opts ...ProfileUpdateOption) (*AuthorProfile, error) {
	record := &AuthorProfile{
		ID:     id,
		Status: status,
	}

	for _, opt := range opts {
		if opt != nil {
			opt(record)
		}
	}

	// Column forces the stamp fields into the statement so a nil pointer
	// writes NULL, e.g. clearing suspended_at when an author is reinstated.
	_, err := r.db.NewUpdate().
		Model(record).
		Column("status", "reviewed_at", "suspended_at").
		WherePK().
		Where("deleted_at IS NULL").
		Exec(ctx)

	if err != nil {
		return nil, err
	}

	return r.Repository.GetByID(ctx, id.String())
}

func (r *authorProfiles) Resubmit(ctx context.Context, record *AuthorProfile) (*AuthorProfile, error) {
	record.Status = AuthorStatusPending
	record.ReviewedAt = nil
	record.SuspendedAt = nil

	_, err := r.db.NewUpdate().
		Model(record).
		Column("status", "bio", "social_links", "reviewed_at", "suspended_at").
		WherePK().
		Where("deleted_at IS NULL").
		Exec(ctx)

	if err != nil {
		return nil, err
	}

	return r.Repository.GetByID(ctx, record.ID.String())
}
