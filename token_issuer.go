package identity

import (
	"context"
	"crypto/rand"
	"crypto/sha256"
	"encoding/base64"
	"encoding/hex"
	"errors"
	"time"

	"github.com/golang-jwt/jwt/v5"
	goerrors "github.com/goliatone/go-errors"
	"github.com/goliatone/go-repository-bun"
	"github.com/google/uuid"
	"github.com/uptrace/bun"
)

// TokenPair is the result of a sign in or refresh: a short lived signed
// access token plus the opaque refresh token that can mint the next pair.
type TokenPair struct {
	AccessToken      string    `json:"access_token"`
	AccessExpiresAt  time.Time `json:"access_expires_at"`
	RefreshToken     string    `json:"refresh_token"`
	RefreshExpiresAt time.Time `json:"refresh_expires_at"`
}

// TokenIssuer mints and verifies access tokens, and manages refresh token
// families with rotation and reuse detection.
type TokenIssuer struct {
	repo   RepositoryManager
	config Config
	logger Logger
	now    func() time.Time
}

// TokenIssuerOption configures a TokenIssuer.
type TokenIssuerOption func(*TokenIssuer)

// WithTokenIssuerClock overrides the clock, mostly for tests.
func WithTokenIssuerClock(now func() time.Time) TokenIssuerOption {
	return func(t *TokenIssuer) {
		if now != nil {
			t.now = now
		}
	}
}

// WithTokenIssuerLogger sets the logger.
func WithTokenIssuerLogger(logger Logger) TokenIssuerOption {
	return func(t *TokenIssuer) {
		if logger != nil {
			t.logger = logger
		}
	}
}

// NewTokenIssuer builds a TokenIssuer.
func NewTokenIssuer(repo RepositoryManager, config Config, opts ...TokenIssuerOption) *TokenIssuer {
	issuer := &TokenIssuer{
		repo:   repo,
		config: config,
		logger: defLogger{},
		now:    time.Now,
	}

	for _, opt := range opts {
		if opt != nil {
			opt(issuer)
		}
	}

	return issuer
}

// IssueAccessToken signs a short lived JWT carrying the role snapshot.
func (t *TokenIssuer) IssueAccessToken(accountID uuid.UUID, roles RoleSnapshot) (string, time.Time, error) {
	now := t.now()
	expiresAt := now.Add(t.config.GetAccessTokenTTL())

	claims := &JWTClaims{
		RegisteredClaims: jwt.RegisteredClaims{
			ID:        uuid.New().String(),
			Subject:   accountID.String(),
			Issuer:    t.config.GetIssuer(),
			Audience:  t.config.GetAudience(),
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(expiresAt),
		},
		UID:   accountID.String(),
		Roles: roles,
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signed, err := token.SignedString([]byte(t.config.GetSigningKey()))
	if err != nil {
		return "", time.Time{}, goerrors.Wrap(err, goerrors.CategoryInternal, "unable to sign access token")
	}

	return signed, expiresAt, nil
}

// VerifyAccessToken parses and validates a signed access token.
func (t *TokenIssuer) VerifyAccessToken(raw string) (AuthClaims, error) {
	if raw == "" {
		return nil, ErrTokenMalformed
	}

	claims := &JWTClaims{}
	_, err := jwt.ParseWithClaims(raw, claims, func(token *jwt.Token) (any, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, ErrTokenMalformed
		}
		return []byte(t.config.GetSigningKey()), nil
	})

	if err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) {
			return nil, ErrTokenExpired
		}
		return nil, ErrTokenMalformed
	}

	return claims, nil
}

// IssueRefreshToken starts a new token family for the account and returns the
// raw opaque token. Only the hash is persisted.
func (t *TokenIssuer) IssueRefreshToken(ctx context.Context, accountID uuid.UUID) (string, *RefreshToken, error) {
	raw, err := newOpaqueToken()
	if err != nil {
		return "", nil, err
	}

	now := t.now()
	record := &RefreshToken{
		ID:        uuid.New(),
		TokenHash: hashOpaqueToken(raw),
		AccountID: accountID,
		FamilyID:  uuid.New(),
		IssuedAt:  now,
		ExpiresAt: now.Add(t.config.GetRefreshTokenTTL()),
	}

	record, err = t.repo.RefreshTokens().Create(ctx, record)
	if err != nil {
		return "", nil, goerrors.Wrap(err, goerrors.CategoryInternal, "unable to persist refresh token")
	}

	return raw, record, nil
}

// Rotate exchanges a live refresh token for a fresh one in the same family.
// Presenting a token that was already rotated or revoked is treated as theft:
// the whole family is revoked and ErrTokenReuseDetected comes back.
func (t *TokenIssuer) Rotate(ctx context.Context, raw string) (string, *RefreshToken, error) {
	parent, err := t.repo.RefreshTokens().GetByHash(ctx, hashOpaqueToken(raw))
	if err != nil {
		if repository.IsRecordNotFound(err) {
			return "", nil, ErrTokenNotFound
		}
		return "", nil, goerrors.Wrap(err, goerrors.CategoryInternal, "unable to load refresh token")
	}

	now := t.now()

	if parent.IsDead() {
		if revokeErr := t.repo.RefreshTokens().RevokeFamily(ctx, parent.FamilyID); revokeErr != nil {
			t.logger.Error("unable to revoke token family %s: %v", parent.FamilyID, revokeErr)
		}
		return "", nil, ErrTokenReuseDetected.WithMetadata(map[string]any{
			"family_id": parent.FamilyID.String(),
		})
	}

	if parent.IsExpired(now) {
		return "", nil, ErrTokenExpired
	}

	rawChild, err := newOpaqueToken()
	if err != nil {
		return "", nil, err
	}

	child := &RefreshToken{
		ID:        uuid.New(),
		TokenHash: hashOpaqueToken(rawChild),
		AccountID: parent.AccountID,
		FamilyID:  parent.FamilyID,
		IssuedAt:  now,
		ExpiresAt: now.Add(t.config.GetRefreshTokenTTL()),
	}

	var replaced bool
	err = t.repo.RunInTx(ctx, nil, func(ctx context.Context, tx bun.Tx) error {
		if _, err := t.repo.RefreshTokens().CreateTx(ctx, tx, child); err != nil {
			return err
		}

		replaced, err = t.repo.RefreshTokens().MarkReplacedTx(ctx, tx, parent.ID, child.ID)
		return err
	})

	if err != nil {
		return "", nil, goerrors.Wrap(err, goerrors.CategoryInternal, "unable to rotate refresh token")
	}

	// Losing the conditional update means someone else rotated this token
	// between our read and our write. Same treatment as replay.
	if !replaced {
		if revokeErr := t.repo.RefreshTokens().RevokeFamily(ctx, parent.FamilyID); revokeErr != nil {
			t.logger.Error("unable to revoke token family %s: %v", parent.FamilyID, revokeErr)
		}
		return "", nil, ErrTokenReuseDetected.WithMetadata(map[string]any{
			"family_id": parent.FamilyID.String(),
		})
	}

	return rawChild, child, nil
}

// RevokeFamily invalidates every token in the family, e.g. on sign out.
func (t *TokenIssuer) RevokeFamily(ctx context.Context, familyID uuid.UUID) error {
	return t.repo.RefreshTokens().RevokeFamily(ctx, familyID)
}

// RevokeAccountTokens invalidates every live refresh token for the account.
func (t *TokenIssuer) RevokeAccountTokens(ctx context.Context, accountID uuid.UUID) error {
	return t.repo.RefreshTokens().RevokeByAccount(ctx, accountID)
}

// newOpaqueToken returns 32 bytes of entropy, URL safe encoded.
func newOpaqueToken() (string, error) {
	buf := make([]byte, 32)
	if _, err := rand.Read(buf); err != nil {
		return "", goerrors.Wrap(err, goerrors.CategoryInternal, "unable to generate token")
	}
	return base64.RawURLEncoding.EncodeToString(buf), nil
}

// hashOpaqueToken is the storage form of an opaque token. Only hashes touch
// the database so a leaked table cannot be replayed.
func hashOpaqueToken(raw string) string {
	sum := sha256.Sum256([]byte(raw))
	return hex.EncodeToString(sum[:])
}
