package transport

import (
	"fmt"
	"net"
	"syscall"

	"github.com/rudransh-shrivastava/gblink/internal/link"
	"golang.org/x/sys/unix"
)

// Detach duplicates the socket behind conn into a blocking descriptor that
// is invisible to the Go runtime poller, then closes conn. The returned
// handle keeps the TCP connection open on its own.
func Detach(conn net.Conn) (link.Handle, error) {
	defer func() { _ = conn.Close() }()

	sc, ok := conn.(syscall.Conn)
	if !ok {
		return link.InvalidHandle, fmt.Errorf("%w: %T has no raw socket", link.ErrHandleConversion, conn)
	}

	raw, err := sc.SyscallConn()
	if err != nil {
		return link.InvalidHandle, fmt.Errorf("%w: %w", link.ErrHandleConversion, err)
	}

	fd := -1
	var dupErr error
	err = raw.Control(func(s uintptr) {
		fd, dupErr = unix.FcntlInt(s, unix.F_DUPFD_CLOEXEC, 0)
	})
	if err != nil {
		return link.InvalidHandle, fmt.Errorf("%w: %w", link.ErrHandleConversion, err)
	}
	if dupErr != nil {
		return link.InvalidHandle, fmt.Errorf("%w: dup: %w", link.ErrHandleConversion, dupErr)
	}

	if err := unix.SetNonblock(fd, false); err != nil {
		_ = unix.Close(fd)
		return link.InvalidHandle, fmt.Errorf("%w: clearing O_NONBLOCK: %w", link.ErrHandleConversion, err)
	}

	return link.Handle(fd), nil
}
