package identity

import (
	"context"
	"time"

	goerrors "github.com/goliatone/go-errors"
	"github.com/goliatone/go-repository-bun"
	"github.com/google/uuid"
	"github.com/uptrace/bun"
)

// Default lifetimes for each single use token kind.
var (
	EmailVerifyTTL   = 24 * time.Hour
	PasswordResetTTL = time.Hour
	AdminInviteTTL   = 72 * time.Hour
)

// ConsumedToken is the proof that a single use token was redeemed.
type ConsumedToken struct {
	AccountID uuid.UUID
	Metadata  map[string]any
}

// ActionTokenService issues and redeems single use, time boxed tokens for
// email verification, password resets, and admin invites.
type ActionTokenService struct {
	repo RepositoryManager
	now  func() time.Time
}

// ActionTokenOption configures the service.
type ActionTokenOption func(*ActionTokenService)

// WithActionTokenClock overrides the clock, mostly for tests.
func WithActionTokenClock(now func() time.Time) ActionTokenOption {
	return func(s *ActionTokenService) {
		if now != nil {
			s.now = now
		}
	}
}

// NewActionTokenService builds the service.
func NewActionTokenService(repo RepositoryManager, opts ...ActionTokenOption) *ActionTokenService {
	svc := &ActionTokenService{
		repo: repo,
		now:  time.Now,
	}

	for _, opt := range opts {
		if opt != nil {
			opt(svc)
		}
	}

	return svc
}

// Issue mints a new token of the given kind for the account and returns the
// raw value to embed in an outbound link. Any live token of the same
// (account, kind) pair is retired in the same transaction, so the newest
// token is the only one that works.
func (s *ActionTokenService) Issue(ctx context.Context, accountID uuid.UUID, kind ActionTokenKind, ttl time.Duration, metadata map[string]any) (string, error) {
	raw, err := newOpaqueToken()
	if err != nil {
		return "", err
	}

	now := s.now()
	record := &ActionToken{
		ID:        uuid.New(),
		TokenHash: hashOpaqueToken(raw),
		AccountID: accountID,
		Kind:      kind,
		ExpiresAt: now.Add(ttl),
		Metadata:  metadata,
	}

	err = s.repo.RunInTx(ctx, nil, func(ctx context.Context, tx bun.Tx) error {
		if err := s.repo.ActionTokens().SupersedeTx(ctx, tx, accountID, kind, now); err != nil {
			return err
		}

		_, err := s.repo.ActionTokens().CreateTx(ctx, tx, record)
		return err
	})

	if err != nil {
		return "", goerrors.Wrap(err, goerrors.CategoryInternal, "unable to issue token")
	}

	return raw, nil
}

// Consume redeems a raw token of the expected kind. Expiry is checked before
// consumption state, so an expired-and-used token reports expiry. Exactly one
// concurrent call can succeed; the rest get ErrTokenConsumed.
func (s *ActionTokenService) Consume(ctx context.Context, raw string, kind ActionTokenKind) (*ConsumedToken, error) {
	if raw == "" {
		return nil, ErrTokenNotFound
	}

	record, err := s.repo.ActionTokens().GetByHash(ctx, hashOpaqueToken(raw), kind)
	if err != nil {
		if repository.IsRecordNotFound(err) {
			return nil, ErrTokenNotFound
		}
		return nil, goerrors.Wrap(err, goerrors.CategoryInternal, "unable to load token")
	}

	now := s.now()

	if record.IsExpired(now) {
		return nil, ErrTokenExpired
	}

	if record.IsConsumed() {
		return nil, ErrTokenConsumed
	}

	var consumed bool
	err = s.repo.RunInTx(ctx, nil, func(ctx context.Context, tx bun.Tx) error {
		consumed, err = s.repo.ActionTokens().ConsumeTx(ctx, tx, record.ID, now)
		return err
	})

	if err != nil {
		return nil, goerrors.Wrap(err, goerrors.CategoryInternal, "unable to consume token")
	}

	if !consumed {
		return nil, ErrTokenConsumed
	}

	return &ConsumedToken{
		AccountID: record.AccountID,
		Metadata:  record.Metadata,
	}, nil
}
