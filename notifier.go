package identity

import (
	"context"
	"fmt"
	"time"
)

// Notification is the minimal contract with the external mail transport.
// Body rendering beyond these plain strings belongs to the host.
type Notification struct {
	Recipient string
	Subject   string
	HTMLBody  string
}

// Notifier delivers notifications out-of-band. Delivery is best effort: the
// package never fails an operation because a notification could not be sent.
type Notifier interface {
	Send(ctx context.Context, n Notification) error
}

// NotifierFunc adapts a function to the Notifier interface.
type NotifierFunc func(ctx context.Context, n Notification) error

// Send implements Notifier.
func (f NotifierFunc) Send(ctx context.Context, n Notification) error {
	if f == nil {
		return nil
	}
	return f(ctx, n)
}

type noopNotifier struct{}

func (noopNotifier) Send(context.Context, Notification) error { return nil }

func normalizeNotifier(n Notifier) Notifier {
	if n == nil {
		return noopNotifier{}
	}
	return n
}

// DefaultNotifyTimeout bounds a single dispatch attempt.
var DefaultNotifyTimeout = 10 * time.Second

// dispatcher sends notifications without blocking or failing the caller. Each
// dispatch runs on its own goroutine with its own deadline, detached from the
// request context so a client disconnect cannot cancel delivery.
type dispatcher struct {
	notifier Notifier
	logger   Logger
	timeout  time.Duration
}

func newDispatcher(n Notifier, logger Logger) dispatcher {
	if logger == nil {
		logger = defLogger{}
	}
	return dispatcher{
		notifier: normalizeNotifier(n),
		logger:   logger,
		timeout:  DefaultNotifyTimeout,
	}
}

func (d dispatcher) dispatch(n Notification) {
	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), d.timeout)
		defer cancel()

		if err := d.notifier.Send(ctx, n); err != nil {
			d.logger.Error("notification dispatch to %s failed: %v", n.Recipient, err)
		}
	}()
}

// actionLink formats the out-of-band link carried in notification bodies.
func actionLink(baseURL, path, rawToken string) string {
	return fmt.Sprintf("%s%s/%s", baseURL, path, rawToken)
}
