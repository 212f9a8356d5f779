package link

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/sirupsen/logrus/hooks/test"
)

type closeCounter struct {
	mu     sync.Mutex
	counts map[Handle]int
}

func newCloseCounter() *closeCounter {
	return &closeCounter{counts: make(map[Handle]int)}
}

func (c *closeCounter) Close(h Handle) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.counts[h]++
	return nil
}

func (c *closeCounter) Count(h Handle) int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.counts[h]
}

type connectResult struct {
	h   Handle
	err error
}

type connectCall struct {
	ctx   context.Context
	ep    Endpoint
	reply chan connectResult
}

// gatedConnector parks every Connect until the test replies. With honorCtx
// unset it ignores cancellation, like a blocking accept that cannot be
// interrupted.
type gatedConnector struct {
	calls    chan *connectCall
	honorCtx bool
}

func newGatedConnector(honorCtx bool) *gatedConnector {
	return &gatedConnector{
		calls:    make(chan *connectCall, 8),
		honorCtx: honorCtx,
	}
}

func (g *gatedConnector) Connect(ctx context.Context, ep Endpoint) (Handle, error) {
	c := &connectCall{ctx: ctx, ep: ep, reply: make(chan connectResult, 1)}
	g.calls <- c

	if g.honorCtx {
		select {
		case r := <-c.reply:
			return r.h, r.err
		case <-ctx.Done():
			return InvalidHandle, ctx.Err()
		}
	}

	r := <-c.reply
	return r.h, r.err
}

func (g *gatedConnector) next(t *testing.T) *connectCall {
	t.Helper()
	select {
	case c := <-g.calls:
		return c
	case <-time.After(2 * time.Second):
		t.Fatal("Timeout waiting for Connect call")
		return nil
	}
}

type connectorFunc func(ctx context.Context, ep Endpoint) (Handle, error)

func (f connectorFunc) Connect(ctx context.Context, ep Endpoint) (Handle, error) {
	return f(ctx, ep)
}

func newTestLogger() *logrus.Logger {
	l, _ := test.NewNullLogger()
	l.SetLevel(logrus.DebugLevel)
	return l
}

func newTestNegotiator(connector Connector) (*Negotiator, *Registry, *closeCounter) {
	closer := newCloseCounter()
	logger := newTestLogger()
	registry := NewRegistry(closer.Close, logger)
	n := NewNegotiator(connector, registry, Config{Logger: logger})
	return n, registry, closer
}

func await(t *testing.T, n *Negotiator, id AttemptID) Outcome {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()

	out, err := n.AwaitOutcome(ctx, id)
	if err != nil {
		t.Fatalf("AwaitOutcome failed: %v", err)
	}
	return out
}

var testServer = Endpoint{Role: RoleServer, Port: 7777}
