package identity

import (
	"context"
	"time"
)

// ActivityEventType enumerates supported activity categories.
type ActivityEventType string

const (
	ActivityEventAccountRegistered   ActivityEventType = "identity.account.registered"
	ActivityEventAccountVerified     ActivityEventType = "identity.account.verified"
	ActivityEventLoginSuccess        ActivityEventType = "identity.login.success"
	ActivityEventLoginFailure        ActivityEventType = "identity.login.failure"
	ActivityEventTokenRotated        ActivityEventType = "identity.token.rotated"
	ActivityEventTokenReuse          ActivityEventType = "identity.token.reuse"
	ActivityEventPasswordReset       ActivityEventType = "identity.password.reset"
	ActivityEventAuthorStatusChanged ActivityEventType = "identity.author.status.changed"
	ActivityEventAdminInvited        ActivityEventType = "identity.admin.invited"
	ActivityEventAdminAccepted       ActivityEventType = "identity.admin.accepted"
)

// ActorRef identifies who/what triggered an action.
type ActorRef struct {
	ID   string
	Type string
}

// ActivityEvent captures audit-friendly information about an action.
type ActivityEvent struct {
	EventType  ActivityEventType
	Actor      ActorRef
	AccountID  string
	FromStatus AuthorStatus
	ToStatus   AuthorStatus
	Metadata   map[string]any
	OccurredAt time.Time
}

// ActivitySink consumes activity events for auditing/telemetry purposes.
type ActivitySink interface {
	Record(ctx context.Context, event ActivityEvent) error
}

// ActivitySinkFunc adapts a function to the ActivitySink interface.
type ActivitySinkFunc func(ctx context.Context, event ActivityEvent) error

// Record implements ActivitySink.
func (f ActivitySinkFunc) Record(ctx context.Context, event ActivityEvent) error {
	if f == nil {
		return nil
	}
	return f(ctx, event)
}

type noopActivitySink struct{}

func (noopActivitySink) Record(context.Context, ActivityEvent) error {
	return nil
}

func normalizeActivitySink(s ActivitySink) ActivitySink {
	if s == nil {
		return noopActivitySink{}
	}
	return s
}
