package cli

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/gofrs/flock"
	"github.com/rudransh-shrivastava/gblink/internal/db"
	"github.com/rudransh-shrivastava/gblink/internal/link"
	"github.com/rudransh-shrivastava/gblink/internal/logger"
	"github.com/rudransh-shrivastava/gblink/internal/pipe"
	"github.com/rudransh-shrivastava/gblink/internal/store"
	"github.com/rudransh-shrivastava/gblink/internal/transport"
	"github.com/schollz/progressbar/v3"
	"github.com/sirupsen/logrus"
)

var errLinkBusy = errors.New("another link session is using this database")

type linkRequest struct {
	role    link.Role
	host    string
	port    string
	timeout time.Duration
	quiet   bool
}

// runLink drives one link dialog: it resolves defaults, negotiates the
// socket, and pipes stdin/stdout through it until the peer hangs up.
func runLink(req linkRequest) {
	log := logger.NewLogger()
	log.SetOutput(os.Stderr)

	fl, err := acquireInstanceLock(dbPath + ".lock")
	if err != nil {
		log.Fatal(err)
		return
	}
	defer releaseInstanceLock(log, fl)

	gdb, err := db.Open(dbPath)
	if err != nil {
		log.Fatal(err)
		return
	}
	defer func() { _ = db.Close(gdb) }()

	defaults, err := store.NewSettingsStore(gdb).Get(context.Background())
	if err != nil {
		log.Fatal(err)
		return
	}
	req = applyDefaults(req, defaults)

	connector := transport.NewTCPConnector(transport.Config{
		ConnectTimeout: req.timeout,
		ReuseAddr:      true,
		Logger:         log,
	})
	registry := link.NewRegistry(nil, log)
	negotiator := link.NewNegotiator(connector, registry, link.Config{Logger: log})
	session := link.NewSession(negotiator, store.NewAttemptStore(gdb), log)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	var sp *spinner
	if !req.quiet {
		sp = startSpinner(spinnerLabel(req.role))
	}
	h, out := session.RunInput(ctx, req.role, req.host, req.port)
	sp.Stop()
	stop()

	switch out.State {
	case link.StateCompleted:
		log.Info(out.Status())
	case link.StateCancelled:
		log.Warn(out.Status())
		return
	default:
		log.WithField("kind", link.ErrorKind(out.Err)).Debugf("Link attempt error: %v", out.Err)
		log.Fatal(out.Status())
		return
	}

	if err := pipe.New(os.Stdin, os.Stdout, log).Adopt(h); err != nil {
		log.Fatal(err)
	}
}

func applyDefaults(req linkRequest, defaults db.Settings) linkRequest {
	if req.role == link.RoleClient && req.host == "" {
		req.host = defaults.Host
	}
	if req.port == "" {
		req.port = defaults.Port
	}
	if req.timeout == 0 {
		req.timeout = time.Duration(defaults.ConnectTimeoutMs) * time.Millisecond
	}
	return req
}

func spinnerLabel(role link.Role) string {
	if role == link.RoleServer {
		return "Waiting for connection..."
	}
	return "Connecting..."
}

// acquireInstanceLock keeps a single live link per database, matching the
// single link-cable peer.
func acquireInstanceLock(path string) (*flock.Flock, error) {
	fl := flock.New(path)

	locked, err := fl.TryLock()
	if err != nil {
		return nil, fmt.Errorf("acquiring lock %s: %w", path, err)
	}
	if !locked {
		return nil, fmt.Errorf("%w (%s)", errLinkBusy, path)
	}
	return fl, nil
}

func releaseInstanceLock(log *logrus.Logger, fl *flock.Flock) {
	if err := fl.Close(); err != nil {
		log.Debugf("Failed to release lock %s: %v", fl.Path(), err)
	}
}

type spinner struct {
	bar  *progressbar.ProgressBar
	done chan struct{}
	wg   sync.WaitGroup
}

func startSpinner(label string) *spinner {
	s := &spinner{
		bar: progressbar.NewOptions(-1,
			progressbar.OptionSetWriter(os.Stderr),
			progressbar.OptionSetDescription(label),
			progressbar.OptionSpinnerType(14),
			progressbar.OptionClearOnFinish(),
		),
		done: make(chan struct{}),
	}

	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		ticker := time.NewTicker(100 * time.Millisecond)
		defer ticker.Stop()
		for {
			select {
			case <-s.done:
				return
			case <-ticker.C:
				_ = s.bar.Add(1)
			}
		}
	}()
	return s
}

func (s *spinner) Stop() {
	if s == nil {
		return
	}
	close(s.done)
	s.wg.Wait()
	_ = s.bar.Finish()
}
