package link

import (
	"context"
	"fmt"
	"sync"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
)

// AttemptID identifies one connection attempt. Results carrying an ID that
// is no longer current are discarded.
type AttemptID string

// Connector performs the blocking part of an attempt: bind+accept for
// servers, connect for clients. It must return promptly once ctx is done
// when the platform allows it, and may still return a handle afterwards.
type Connector interface {
	Connect(ctx context.Context, ep Endpoint) (Handle, error)
}

type attempt struct {
	id       AttemptID
	endpoint Endpoint
	state    State
	outcome  Outcome
	cancel   context.CancelFunc
	done     chan struct{}

	handle  Handle
	taken   bool
	revoked error
}

// Negotiator runs at most one current link attempt and resolves the race
// between the network finishing and the user cancelling.
type Negotiator struct {
	connector Connector
	registry  *Registry
	logger    *logrus.Logger
	strict    bool

	mu       sync.Mutex
	current  *attempt
	attempts map[AttemptID]*attempt
}

func NewNegotiator(connector Connector, registry *Registry, cfg Config) *Negotiator {
	logger := cfg.Logger
	if logger == nil {
		logger = logrus.StandardLogger()
	}

	return &Negotiator{
		connector: connector,
		registry:  registry,
		logger:    logger,
		strict:    cfg.StrictContracts,
		attempts:  make(map[AttemptID]*attempt),
	}
}

// Start supersedes the current attempt, if any, and begins a new one in the
// background. It never blocks on the network.
func (n *Negotiator) Start(ep Endpoint) AttemptID {
	ctx, cancel := context.WithCancel(context.Background())
	a := &attempt{
		id:       AttemptID(uuid.NewString()),
		endpoint: ep,
		state:    StateConnecting,
		cancel:   cancel,
		done:     make(chan struct{}),
		handle:   InvalidHandle,
	}

	n.mu.Lock()
	n.forgetResolvedLocked()
	if prev := n.current; prev != nil {
		n.supersedeLocked(prev)
	}
	n.current = a
	n.attempts[a.id] = a
	n.mu.Unlock()

	n.logger.WithFields(logrus.Fields{
		"attempt": a.id,
		"role":    ep.Role,
		"addr":    ep.Address(),
	}).Info("Link attempt started")

	if err := ep.Validate(); err != nil {
		n.mu.Lock()
		n.resolveLocked(a, Outcome{State: StateFailed, Err: err})
		n.mu.Unlock()
		cancel()
		return a.id
	}

	go n.run(ctx, a)
	return a.id
}

// Cancel resolves the current attempt as cancelled. A handle that was
// obtained but not yet taken is released and the attempt turns Cancelled.
// Stale IDs and taken handles are ignored.
func (n *Negotiator) Cancel(id AttemptID) {
	n.mu.Lock()
	defer n.mu.Unlock()

	a := n.current
	if a == nil || a.id != id {
		return
	}

	switch a.state {
	case StateConnecting:
		n.resolveLocked(a, Outcome{State: StateCancelled})
		a.cancel()
	case StateCompleted:
		if a.taken || a.revoked != nil {
			return
		}
		n.revokeLocked(a, ErrCancelled)
		n.logger.WithField("attempt", a.id).Info("Link cancelled before the handle was taken")
	}
}

// AwaitOutcome blocks until the attempt resolves or ctx is done. Do not call
// it from a goroutine that must stay responsive.
func (n *Negotiator) AwaitOutcome(ctx context.Context, id AttemptID) (Outcome, error) {
	n.mu.Lock()
	a, ok := n.attempts[id]
	n.mu.Unlock()
	if !ok {
		return Outcome{State: StateFailed, Handle: InvalidHandle}, fmt.Errorf("%w: %s", ErrUnknownAttempt, id)
	}

	select {
	case <-a.done:
		n.mu.Lock()
		defer n.mu.Unlock()
		return a.outcome, nil
	case <-ctx.Done():
		return Outcome{State: StateConnecting, Handle: InvalidHandle}, ctx.Err()
	}
}

// Take transfers the completed attempt's handle to the caller, who then
// owns it exclusively. Cancellation after Take has no effect on the handle.
func (n *Negotiator) Take(id AttemptID) (Handle, error) {
	n.mu.Lock()
	defer n.mu.Unlock()

	a, ok := n.attempts[id]
	if !ok {
		return InvalidHandle, fmt.Errorf("%w: %s", ErrUnknownAttempt, id)
	}
	if a.revoked != nil {
		return InvalidHandle, a.revoked
	}
	if a.state != StateCompleted {
		return InvalidHandle, fmt.Errorf("%w: attempt %s is %s", ErrNotRegistered, id, a.state)
	}
	if a.taken {
		return InvalidHandle, fmt.Errorf("%w: attempt %s already taken", ErrNotRegistered, id)
	}

	h, err := n.registry.Take(a.handle)
	if err != nil {
		return InvalidHandle, err
	}
	a.taken = true
	return h, nil
}

// Consume forgets a resolved attempt. An untaken handle is released and
// the negotiator returns to idle if the attempt was current.
func (n *Negotiator) Consume(id AttemptID) {
	n.mu.Lock()
	defer n.mu.Unlock()

	a, ok := n.attempts[id]
	if !ok || !a.state.Terminal() {
		return
	}

	if a.state == StateCompleted && !a.taken && a.revoked == nil {
		n.revokeLocked(a, ErrCancelled)
	}

	delete(n.attempts, id)
	if n.current == a {
		n.current = nil
	}
}

func (n *Negotiator) State() State {
	n.mu.Lock()
	defer n.mu.Unlock()

	if n.current == nil {
		return StateIdle
	}
	return n.current.state
}

func (n *Negotiator) Current() AttemptID {
	n.mu.Lock()
	defer n.mu.Unlock()

	if n.current == nil {
		return ""
	}
	return n.current.id
}

func (n *Negotiator) run(ctx context.Context, a *attempt) {
	defer a.cancel()

	h, err := n.connector.Connect(ctx, a.endpoint)
	if err == nil && !h.Valid() {
		err = fmt.Errorf("%w: connector returned handle %d", ErrHandleConversion, h)
	}

	n.mu.Lock()
	defer n.mu.Unlock()

	if err != nil {
		if h.Valid() {
			n.registry.Discard(h)
		}
		if ctx.Err() != nil {
			n.resolveLocked(a, Outcome{State: StateCancelled})
			return
		}
		n.resolveLocked(a, Outcome{State: StateFailed, Err: err})
		return
	}

	switch {
	case n.current != a:
		n.logger.WithField("attempt", a.id).Debug("Discarding handle from superseded link attempt")
		n.registry.Discard(h)
	case a.state == StateCancelled:
		n.retireLocked(h)
	case a.state == StateConnecting:
		if err := n.registry.Register(h); err != nil {
			n.registry.Discard(h)
			n.resolveLocked(a, Outcome{State: StateFailed, Err: err})
			n.contractViolation(err)
			return
		}
		a.handle = h
		n.resolveLocked(a, Outcome{State: StateCompleted, Handle: h})
	default:
		n.registry.Discard(h)
	}
}

// retireLocked passes a handle that arrived after cancellation through the
// registry so it is closed exactly once.
func (n *Negotiator) retireLocked(h Handle) {
	if err := n.registry.Register(h); err != nil {
		n.registry.Discard(h)
		return
	}
	n.registry.Release(h)
}

func (n *Negotiator) supersedeLocked(prev *attempt) {
	switch prev.state {
	case StateConnecting:
		n.resolveLocked(prev, Outcome{State: StateCancelled, Err: ErrSuperseded})
		prev.cancel()
	case StateCompleted:
		if !prev.taken && prev.revoked == nil {
			n.revokeLocked(prev, ErrSuperseded)
		}
	}
}

// revokeLocked releases a completed but untaken handle and turns the
// attempt into Cancelled, so no caller sees the closed descriptor number.
// done is already closed; waiters that read the outcome later see reason.
func (n *Negotiator) revokeLocked(a *attempt, reason error) {
	n.registry.Release(a.handle)
	a.revoked = reason
	a.handle = InvalidHandle
	a.state = StateCancelled
	a.outcome = Outcome{State: StateCancelled, Handle: InvalidHandle, Err: reason}
}

// forgetResolvedLocked drops resolved attempts that are no longer current.
func (n *Negotiator) forgetResolvedLocked() {
	for id, a := range n.attempts {
		if a == n.current || !a.state.Terminal() {
			continue
		}
		if a.state == StateCompleted && !a.taken && a.revoked == nil {
			continue
		}
		delete(n.attempts, id)
	}
}

func (n *Negotiator) resolveLocked(a *attempt, out Outcome) bool {
	if a.state.Terminal() {
		return false
	}
	if out.State != StateCompleted {
		out.Handle = InvalidHandle
	}

	a.state = out.State
	a.outcome = out
	close(a.done)

	entry := n.logger.WithFields(logrus.Fields{
		"attempt": a.id,
		"role":    a.endpoint.Role,
	})
	switch out.State {
	case StateCompleted:
		entry.WithField("handle", out.Handle).Info("Link attempt completed")
	case StateFailed:
		entry.WithField("kind", ErrorKind(out.Err)).Warnf("Link attempt failed: %v", out.Err)
	case StateCancelled:
		if out.Err != nil {
			entry.Infof("Link attempt cancelled: %v", out.Err)
		} else {
			entry.Info("Link attempt cancelled")
		}
	}
	return true
}

func (n *Negotiator) contractViolation(err error) {
	n.logger.Errorf("Link handle contract violated: %v", err)
	if n.strict {
		panic(err)
	}
}
