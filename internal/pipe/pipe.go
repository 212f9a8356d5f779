// Package pipe adopts a connected link descriptor and shuttles raw bytes
// between it and a local reader/writer, netcat style. It stands in for the
// emulator core when testing a link by hand.
package pipe

import (
	"errors"
	"fmt"
	"io"
	"net"
	"os"
	"sync/atomic"
	"syscall"
	"time"

	"github.com/rudransh-shrivastava/gblink/internal/link"
	"github.com/sirupsen/logrus"
	"golang.org/x/sync/errgroup"
)

// DefaultLinger bounds how long pending local input is still sent after the
// peer has hung up.
const DefaultLinger = 200 * time.Millisecond

type Pipe struct {
	in     io.Reader
	out    io.Writer
	logger *logrus.Logger
	linger time.Duration
}

func New(in io.Reader, out io.Writer, logger *logrus.Logger) *Pipe {
	if logger == nil {
		logger = logrus.StandardLogger()
	}
	return &Pipe{in: in, out: out, logger: logger, linger: DefaultLinger}
}

// Adopt takes ownership of h and copies in both directions until the peer
// closes the link. h is closed before Adopt returns, even if the local
// input is still open.
func (p *Pipe) Adopt(h link.Handle) error {
	if !h.Valid() {
		return fmt.Errorf("adopting link: invalid handle %d", h)
	}

	f := os.NewFile(uintptr(h), "link")
	conn, err := net.FileConn(f)
	_ = f.Close()
	if err != nil {
		return fmt.Errorf("adopting link handle %d: %w", h, err)
	}
	defer func() { _ = conn.Close() }()

	p.logger.Infof("Link open with %s", conn.RemoteAddr())

	var sent atomic.Int64
	var received int64
	peerDone := make(chan struct{})
	var g errgroup.Group

	g.Go(func() error {
		defer close(peerDone)
		n, err := io.Copy(p.out, conn)
		received = n
		return err
	})

	g.Go(func() error {
		copied := make(chan error, 1)
		go func() {
			_, err := io.Copy(conn, &countingReader{r: p.in, n: &sent})
			copied <- err
		}()

		select {
		case err := <-copied:
			return p.finishSend(conn, err)
		case <-peerDone:
		}

		// The peer is gone. Local input may never reach EOF, so only wait
		// briefly for what is already in flight.
		timer := time.NewTimer(p.linger)
		defer timer.Stop()
		select {
		case err := <-copied:
			return p.finishSend(conn, err)
		case <-timer.C:
			p.logger.Debug("Peer hung up, dropping unsent local input")
			return nil
		}
	})

	err = g.Wait()
	p.logger.WithFields(logrus.Fields{
		"sent":     sent.Load(),
		"received": received,
	}).Info("Link closed")
	return err
}

func (p *Pipe) finishSend(conn net.Conn, err error) error {
	if cw, ok := conn.(interface{ CloseWrite() error }); ok {
		_ = cw.CloseWrite()
	}
	if errors.Is(err, net.ErrClosed) || errors.Is(err, syscall.EPIPE) {
		return nil
	}
	return err
}

// countingReader tracks bytes handed to the link as they are read, so the
// total is known even when the copy is abandoned.
type countingReader struct {
	r io.Reader
	n *atomic.Int64
}

func (c *countingReader) Read(b []byte) (int, error) {
	n, err := c.r.Read(b)
	c.n.Add(int64(n))
	return n, err
}

var _ link.Consumer = (*Pipe)(nil)
