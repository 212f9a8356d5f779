package link

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
)

// Consumer takes exclusive ownership of a connected link descriptor, the
// way the emulator core does once the link dialog closes.
type Consumer interface {
	Adopt(h Handle) error
}

// Record is the diagnostic trace of one resolved attempt.
type Record struct {
	ID       AttemptID
	Endpoint Endpoint
	State    State
	ErrKind  string
	Err      string
	At       time.Time
}

type Recorder interface {
	Record(ctx context.Context, rec Record) error
}

// Session plays the part of the link dialog: it starts one attempt, turns
// ctx cancellation into a user cancel, and reports a single outcome.
type Session struct {
	negotiator *Negotiator
	recorder   Recorder
	logger     *logrus.Logger
}

func NewSession(negotiator *Negotiator, recorder Recorder, logger *logrus.Logger) *Session {
	if logger == nil {
		logger = logrus.StandardLogger()
	}
	return &Session{
		negotiator: negotiator,
		recorder:   recorder,
		logger:     logger,
	}
}

// Run blocks until the attempt for ep resolves. On StateCompleted the
// returned handle belongs to the caller; otherwise it is InvalidHandle.
func (s *Session) Run(ctx context.Context, ep Endpoint) (Handle, Outcome) {
	id := s.negotiator.Start(ep)
	stop := context.AfterFunc(ctx, func() {
		s.negotiator.Cancel(id)
	})
	defer stop()
	defer s.negotiator.Consume(id)

	out, err := s.negotiator.AwaitOutcome(context.Background(), id)
	if err != nil {
		out = Outcome{State: StateFailed, Handle: InvalidHandle, Err: err}
	}

	h := InvalidHandle
	if out.State == StateCompleted {
		h, err = s.negotiator.Take(id)
		switch {
		case err == nil:
		case errors.Is(err, ErrCancelled), errors.Is(err, ErrSuperseded):
			out = Outcome{State: StateCancelled, Handle: InvalidHandle, Err: err}
		default:
			out = Outcome{State: StateFailed, Handle: InvalidHandle, Err: err}
		}
	}

	s.record(id, ep, out)
	return h, out
}

// RunInput parses raw dialog input and runs it like Run. Input that does not
// parse resolves Failed with ErrValidation and is recorded without any
// attempt reaching the network.
func (s *Session) RunInput(ctx context.Context, role Role, host, port string) (Handle, Outcome) {
	ep, err := ParseEndpoint(role, host, port)
	if err == nil {
		return s.Run(ctx, ep)
	}

	ep = Endpoint{Role: role, Host: host}
	if role == RoleServer {
		ep.Host = ""
	}
	id := AttemptID(uuid.NewString())
	out := Outcome{State: StateFailed, Handle: InvalidHandle, Err: err}

	s.logger.WithFields(logrus.Fields{
		"attempt": id,
		"role":    role,
		"kind":    ErrorKind(err),
	}).Warnf("Link attempt failed: %v", err)
	s.record(id, ep, out)
	return InvalidHandle, out
}

// Link runs an attempt and, on success, hands the descriptor to consumer.
func (s *Session) Link(ctx context.Context, ep Endpoint, consumer Consumer) (Outcome, error) {
	h, out := s.Run(ctx, ep)
	if out.State != StateCompleted {
		return out, out.Err
	}
	return out, consumer.Adopt(h)
}

func (s *Session) record(id AttemptID, ep Endpoint, out Outcome) {
	if s.recorder == nil {
		return
	}

	rec := Record{
		ID:       id,
		Endpoint: ep,
		State:    out.State,
		ErrKind:  ErrorKind(out.Err),
		At:       time.Now(),
	}
	if out.Err != nil {
		rec.Err = out.Err.Error()
	}

	if err := s.recorder.Record(context.Background(), rec); err != nil {
		s.logger.Warnf("Failed to record link attempt %s: %v", id, err)
	}
}
