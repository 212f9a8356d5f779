// Package transport opens the raw TCP link socket and turns it into a bare
// descriptor for the emulator core.
package transport

import (
	"context"
	"fmt"
	"net"
	"syscall"

	"github.com/rudransh-shrivastava/gblink/internal/link"
	"github.com/sirupsen/logrus"
	"golang.org/x/sys/unix"
)

type TCPConnector struct {
	config Config
	logger *logrus.Logger
}

func NewTCPConnector(cfg Config) *TCPConnector {
	logger := cfg.Logger
	if logger == nil {
		logger = logrus.StandardLogger()
	}

	return &TCPConnector{
		config: cfg,
		logger: logger,
	}
}

func (c *TCPConnector) Connect(ctx context.Context, ep link.Endpoint) (link.Handle, error) {
	if err := ep.Validate(); err != nil {
		return link.InvalidHandle, err
	}

	if ep.Role == link.RoleServer {
		return c.serve(ctx, ep)
	}
	return c.dial(ctx, ep)
}

// serve accepts exactly one peer and stops listening right after.
func (c *TCPConnector) serve(ctx context.Context, ep link.Endpoint) (link.Handle, error) {
	lc := net.ListenConfig{Control: c.control}

	ln, err := lc.Listen(ctx, "tcp", ep.Address())
	if err != nil {
		if ctx.Err() != nil {
			return link.InvalidHandle, ctx.Err()
		}
		return link.InvalidHandle, fmt.Errorf("%w: listen on port %d: %w", link.ErrBind, ep.Port, err)
	}
	defer func() { _ = ln.Close() }()

	c.logger.Infof("Link server waiting for client on port %d...", ep.Port)

	conn, err := acceptOne(ctx, ln, ep.Port)
	if err != nil {
		return link.InvalidHandle, err
	}

	c.logger.Infof("Link cable connected to %s", conn.RemoteAddr())
	return Detach(conn)
}

// acceptOne waits for a single peer on ln. Accept failures belong to the
// listening side and are reported as bind errors.
func acceptOne(ctx context.Context, ln net.Listener, port int) (net.Conn, error) {
	// Accept has no context, closing the listener is what unblocks it.
	stop := context.AfterFunc(ctx, func() {
		_ = ln.Close()
	})
	defer stop()

	conn, err := ln.Accept()
	if err != nil {
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		return nil, fmt.Errorf("%w: accept on port %d: %w", link.ErrBind, port, err)
	}
	return conn, nil
}

func (c *TCPConnector) dial(ctx context.Context, ep link.Endpoint) (link.Handle, error) {
	d := net.Dialer{Timeout: c.config.ConnectTimeout}

	conn, err := d.DialContext(ctx, "tcp", ep.Address())
	if err != nil {
		if ctx.Err() != nil {
			return link.InvalidHandle, ctx.Err()
		}
		return link.InvalidHandle, fmt.Errorf("%w: %s: %w", link.ErrConnect, ep.Address(), err)
	}

	c.logger.Infof("Link cable connected to %s", conn.RemoteAddr())
	return Detach(conn)
}

func (c *TCPConnector) control(_, _ string, rc syscall.RawConn) error {
	if !c.config.ReuseAddr {
		return nil
	}

	var sockErr error
	err := rc.Control(func(fd uintptr) {
		sockErr = unix.SetsockoptInt(int(fd), unix.SOL_SOCKET, unix.SO_REUSEADDR, 1)
	})
	if err != nil {
		return err
	}
	return sockErr
}

var _ link.Connector = (*TCPConnector)(nil)
