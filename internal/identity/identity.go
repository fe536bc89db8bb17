package identity

import (
	"context"
	"errors"
	"sync"
	"time"
)

// DefaultWait bounds how long callers wait for the identity handshake
// before giving up.
const DefaultWait = 5 * time.Second

// ErrUnavailable is returned when no owner id becomes available within
// the bounded wait.
var ErrUnavailable = errors.New("identity: owner id unavailable")

// Provider yields the id of the authenticated owner. Implementations may
// resolve asynchronously; Await must not block longer than the bounded
// wait.
type Provider interface {
	Await(ctx context.Context) (string, error)
}

// Handle is a Provider whose owner id arrives asynchronously, typically
// after an external authentication handshake completes.
type Handle struct {
	once  sync.Once
	ready chan struct{}
	id    string
}

// NewHandle creates an unresolved handle.
func NewHandle() *Handle {
	return &Handle{ready: make(chan struct{})}
}

// Set resolves the handle. Only the first call wins; later calls are
// ignored.
func (h *Handle) Set(id string) {
	h.once.Do(func() {
		h.id = id
		close(h.ready)
	})
}

// Await returns the owner id, waiting up to DefaultWait for the handle to
// resolve. The context can cancel the wait earlier.
func (h *Handle) Await(ctx context.Context) (string, error) {
	select {
	case <-h.ready:
		return h.id, nil
	default:
	}

	timer := time.NewTimer(DefaultWait)
	defer timer.Stop()

	select {
	case <-h.ready:
		return h.id, nil
	case <-timer.C:
		return "", ErrUnavailable
	case <-ctx.Done():
		return "", ctx.Err()
	}
}

// Static returns a provider that is already resolved.
func Static(id string) Provider {
	return staticProvider(id)
}

type staticProvider string

func (p staticProvider) Await(ctx context.Context) (string, error) {
	return string(p), nil
}
