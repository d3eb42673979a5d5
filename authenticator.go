package identity

import (
	"context"
	"time"
)

// Authenticator is the front door for password sign in and refresh exchange.
type Authenticator struct {
	credentials *Credentials
	issuer      *TokenIssuer
	resolver    *Resolver
	activity    ActivitySink
	logger      Logger
}

// AuthenticatorOption configures the Authenticator.
type AuthenticatorOption func(*Authenticator)

// WithAuthenticatorActivity sets the audit sink.
func WithAuthenticatorActivity(sink ActivitySink) AuthenticatorOption {
	return func(a *Authenticator) {
		a.activity = normalizeActivitySink(sink)
	}
}

// WithAuthenticatorLogger sets the logger.
func WithAuthenticatorLogger(logger Logger) AuthenticatorOption {
	return func(a *Authenticator) {
		if logger != nil {
			a.logger = logger
		}
	}
}

// NewAuthenticator builds the Authenticator.
func NewAuthenticator(credentials *Credentials, issuer *TokenIssuer, resolver *Resolver, opts ...AuthenticatorOption) *Authenticator {
	auth := &Authenticator{
		credentials: credentials,
		issuer:      issuer,
		resolver:    resolver,
		activity:    noopActivitySink{},
		logger:      defLogger{},
	}

	for _, opt := range opts {
		if opt != nil {
			opt(auth)
		}
	}

	return auth
}

// SignIn verifies the credentials and mints a fresh token pair with a brand
// new refresh family.
func (a *Authenticator) SignIn(ctx context.Context, identifier, password string) (*TokenPair, error) {
	account, err := a.credentials.Verify(ctx, identifier, password)
	if err != nil {
		a.record(ctx, ActivityEventLoginFailure, "", map[string]any{
			"identifier": identifier,
		})
		return nil, err
	}

	auth, err := a.resolver.SnapshotFor(ctx, account.ID)
	if err != nil {
		return nil, err
	}

	access, accessExpires, err := a.issuer.IssueAccessToken(account.ID, auth.Snapshot())
	if err != nil {
		return nil, err
	}

	rawRefresh, refresh, err := a.issuer.IssueRefreshToken(ctx, account.ID)
	if err != nil {
		return nil, err
	}

	a.record(ctx, ActivityEventLoginSuccess, account.ID.String(), nil)

	return &TokenPair{
		AccessToken:      access,
		AccessExpiresAt:  accessExpires,
		RefreshToken:     rawRefresh,
		RefreshExpiresAt: refresh.ExpiresAt,
	}, nil
}

// Refresh rotates the presented refresh token and mints a new access token
// with the account's current role snapshot.
func (a *Authenticator) Refresh(ctx context.Context, rawRefresh string) (*TokenPair, error) {
	rawChild, child, err := a.issuer.Rotate(ctx, rawRefresh)
	if err != nil {
		return nil, err
	}

	auth, err := a.resolver.SnapshotFor(ctx, child.AccountID)
	if err != nil {
		return nil, err
	}

	access, accessExpires, err := a.issuer.IssueAccessToken(child.AccountID, auth.Snapshot())
	if err != nil {
		return nil, err
	}

	a.record(ctx, ActivityEventTokenRotated, child.AccountID.String(), map[string]any{
		"family_id": child.FamilyID.String(),
	})

	return &TokenPair{
		AccessToken:      access,
		AccessExpiresAt:  accessExpires,
		RefreshToken:     rawChild,
		RefreshExpiresAt: child.ExpiresAt,
	}, nil
}

// SignOut revokes the family behind the presented refresh token. An unknown
// token is a no-op; sign out never fails the client for a stale credential.
func (a *Authenticator) SignOut(ctx context.Context, rawRefresh string) error {
	record, err := a.issuer.repo.RefreshTokens().GetByHash(ctx, hashOpaqueToken(rawRefresh))
	if err != nil {
		return nil
	}

	return a.issuer.RevokeFamily(ctx, record.FamilyID)
}

func (a *Authenticator) record(ctx context.Context, eventType ActivityEventType, accountID string, metadata map[string]any) {
	event := ActivityEvent{
		EventType:  eventType,
		Actor:      ActorRef{ID: accountID, Type: "account"},
		AccountID:  accountID,
		Metadata:   metadata,
		OccurredAt: time.Now(),
	}

	if err := a.activity.Record(ctx, event); err != nil {
		a.logger.Error("unable to record %s: %v", eventType, err)
	}
}
