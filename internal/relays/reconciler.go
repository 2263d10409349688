package relays

import (
	"context"
	"fmt"
	"sync"

	"github.com/sandwichfarm/nostrum/internal/ops"
)

// Transport is the connection side the reconciler drives
type Transport interface {
	IsSameRelaySetConfig(relays []Relay) bool
	Disconnect()
	Connect(ctx context.Context, relays []Relay, searchRelays []string) error
	RequestAndWatch(ctx context.Context)
}

// Reconciler reconnects the transport when the desired relay set differs
// from the connected one
type Reconciler struct {
	transport    Transport
	searchRelays []string
	logger       *ops.Logger

	mu sync.Mutex
}

// NewReconciler creates a reconciler that adds searchRelays to every
// connection
func NewReconciler(transport Transport, searchRelays []string, logger *ops.Logger) *Reconciler {
	if logger == nil {
		logger = ops.Default()
	}
	return &Reconciler{
		transport:    transport,
		searchRelays: append([]string(nil), searchRelays...),
		logger:       logger.WithComponent("reconciler"),
	}
}

// Reconcile tears down and rebuilds connections only when desired differs
// from the live set. It reports whether a reconnect happened. Calls are
// serialized so two triggers never interleave their reconnect sequences.
func (r *Reconciler) Reconcile(ctx context.Context, desired []Relay) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.transport.IsSameRelaySetConfig(desired) {
		r.logger.LogReconcile(len(desired), false)
		return false, nil
	}

	r.transport.Disconnect()
	if err := r.transport.Connect(ctx, desired, r.searchRelays); err != nil {
		return true, fmt.Errorf("failed to connect relay set: %w", err)
	}
	r.transport.RequestAndWatch(ctx)

	r.logger.LogReconcile(len(desired), true)
	return true, nil
}
