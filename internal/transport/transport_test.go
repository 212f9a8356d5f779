package transport

import (
	"context"
	"net"
	"strconv"
	"testing"
	"time"

	"github.com/rudransh-shrivastava/gblink/internal/link"
	"github.com/rudransh-shrivastava/gblink/internal/logger"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/sys/unix"
)

func newTestConnector(timeout time.Duration) *TCPConnector {
	cfg := DefaultConfig()
	cfg.ConnectTimeout = timeout
	cfg.Logger = logger.NewLogger()
	return NewTCPConnector(cfg)
}

func freePort(t *testing.T) int {
	t.Helper()
	ln, err := net.Listen("tcp", ":0")
	require.NoError(t, err)
	port := ln.Addr().(*net.TCPAddr).Port
	require.NoError(t, ln.Close())
	return port
}

func readHandle(t *testing.T, h link.Handle, n int) string {
	t.Helper()
	buf := make([]byte, n)
	got := 0
	for got < n {
		r, err := unix.Read(int(h), buf[got:])
		require.NoError(t, err)
		require.NotZero(t, r, "unexpected EOF on link handle")
		got += r
	}
	return string(buf)
}

func TestTCPConnectorServerAcceptsOneClient(t *testing.T) {
	c := newTestConnector(time.Second)
	port := freePort(t)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	type result struct {
		h   link.Handle
		err error
	}
	done := make(chan result, 1)
	go func() {
		h, err := c.Connect(ctx, link.Endpoint{Role: link.RoleServer, Port: port})
		done <- result{h, err}
	}()

	var client net.Conn
	require.Eventually(t, func() bool {
		conn, err := net.Dial("tcp", net.JoinHostPort("127.0.0.1", strconv.Itoa(port)))
		if err != nil {
			return false
		}
		client = conn
		return true
	}, 3*time.Second, 20*time.Millisecond)
	defer func() { _ = client.Close() }()

	var res result
	select {
	case res = <-done:
	case <-ctx.Done():
		t.Fatal("Timeout waiting for accept")
	}
	require.NoError(t, res.err)
	require.True(t, res.h.Valid())
	defer func() { _ = unix.Close(int(res.h)) }()

	_, err := client.Write([]byte("sync"))
	require.NoError(t, err)
	assert.Equal(t, "sync", readHandle(t, res.h, 4))

	// The listener is gone once the first peer is accepted.
	_, err = net.DialTimeout("tcp", net.JoinHostPort("127.0.0.1", strconv.Itoa(port)), 200*time.Millisecond)
	assert.Error(t, err)
}

func TestTCPConnectorClientConnects(t *testing.T) {
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	defer func() { _ = ln.Close() }()

	accepted := make(chan net.Conn, 1)
	go func() {
		conn, err := ln.Accept()
		if err != nil {
			return
		}
		accepted <- conn
	}()

	c := newTestConnector(time.Second)
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	h, err := c.Connect(ctx, link.Endpoint{
		Role: link.RoleClient,
		Host: "127.0.0.1",
		Port: ln.Addr().(*net.TCPAddr).Port,
	})
	require.NoError(t, err)
	defer func() { _ = unix.Close(int(h)) }()

	var server net.Conn
	select {
	case server = <-accepted:
	case <-ctx.Done():
		t.Fatal("Timeout waiting for accept")
	}
	defer func() { _ = server.Close() }()

	_, err = server.Write([]byte{0x81})
	require.NoError(t, err)
	assert.Equal(t, string([]byte{0x81}), readHandle(t, h, 1))

	n, err := unix.Write(int(h), []byte{0x02})
	require.NoError(t, err)
	assert.Equal(t, 1, n)

	buf := make([]byte, 1)
	_, err = server.Read(buf)
	require.NoError(t, err)
	assert.Equal(t, byte(0x02), buf[0])
}

func TestTCPConnectorDescriptorIsBlocking(t *testing.T) {
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	defer func() { _ = ln.Close() }()

	go func() {
		conn, err := ln.Accept()
		if err == nil {
			defer func() { _ = conn.Close() }()
			time.Sleep(500 * time.Millisecond)
		}
	}()

	c := newTestConnector(time.Second)
	h, err := c.Connect(context.Background(), link.Endpoint{
		Role: link.RoleClient,
		Host: "127.0.0.1",
		Port: ln.Addr().(*net.TCPAddr).Port,
	})
	require.NoError(t, err)
	defer func() { _ = unix.Close(int(h)) }()

	flags, err := unix.FcntlInt(uintptr(h), unix.F_GETFL, 0)
	require.NoError(t, err)
	assert.Zero(t, flags&unix.O_NONBLOCK)

	fdFlags, err := unix.FcntlInt(uintptr(h), unix.F_GETFD, 0)
	require.NoError(t, err)
	assert.NotZero(t, fdFlags&unix.FD_CLOEXEC)
}

func TestTCPConnectorBindConflict(t *testing.T) {
	ln, err := net.Listen("tcp", ":0")
	require.NoError(t, err)
	defer func() { _ = ln.Close() }()

	c := newTestConnector(time.Second)
	h, err := c.Connect(context.Background(), link.Endpoint{
		Role: link.RoleServer,
		Port: ln.Addr().(*net.TCPAddr).Port,
	})
	require.ErrorIs(t, err, link.ErrBind)
	assert.False(t, h.Valid())
}

func TestTCPConnectorConnectRefused(t *testing.T) {
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	port := ln.Addr().(*net.TCPAddr).Port
	require.NoError(t, ln.Close())

	c := newTestConnector(time.Second)
	h, err := c.Connect(context.Background(), link.Endpoint{
		Role: link.RoleClient,
		Host: "127.0.0.1",
		Port: port,
	})
	require.ErrorIs(t, err, link.ErrConnect)
	assert.False(t, h.Valid())
}

func TestTCPConnectorNoListenerOnRemoteHost(t *testing.T) {
	c := newTestConnector(300 * time.Millisecond)
	h, err := c.Connect(context.Background(), link.Endpoint{
		Role: link.RoleClient,
		Host: "10.0.0.5",
		Port: 7777,
	})
	require.ErrorIs(t, err, link.ErrConnect)
	assert.False(t, h.Valid())
}

func TestTCPConnectorCancelWhileWaiting(t *testing.T) {
	c := newTestConnector(time.Second)
	port := freePort(t)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() {
		_, err := c.Connect(ctx, link.Endpoint{Role: link.RoleServer, Port: port})
		done <- err
	}()

	time.Sleep(100 * time.Millisecond)
	cancel()

	select {
	case err := <-done:
		assert.ErrorIs(t, err, context.Canceled)
	case <-time.After(3 * time.Second):
		t.Fatal("Connect did not return after cancel")
	}
}

func TestTCPConnectorRejectsInvalidEndpoint(t *testing.T) {
	c := newTestConnector(time.Second)
	_, err := c.Connect(context.Background(), link.Endpoint{Role: link.RoleClient, Port: 7777})
	assert.ErrorIs(t, err, link.ErrValidation)
}

func TestAcceptOneFailureIsBindKind(t *testing.T) {
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	require.NoError(t, ln.Close())

	conn, err := acceptOne(context.Background(), ln, 7777)
	assert.Nil(t, conn)
	require.ErrorIs(t, err, link.ErrBind)
	assert.Equal(t, "bind", link.ErrorKind(err))
}

func TestAcceptOneCancelled(t *testing.T) {
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	defer func() { _ = ln.Close() }()

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err = acceptOne(ctx, ln, 7777)
	assert.ErrorIs(t, err, context.Canceled)
}
