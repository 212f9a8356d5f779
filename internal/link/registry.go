package link

import (
	"fmt"
	"sync"

	"github.com/sirupsen/logrus"
	"golang.org/x/sys/unix"
)

// Handle is a raw OS descriptor for a connected link socket.
type Handle int

const InvalidHandle Handle = -1

func (h Handle) Valid() bool {
	return h >= 0
}

// CloseFunc releases the OS resource behind a handle.
type CloseFunc func(Handle) error

func closeDescriptor(h Handle) error {
	return unix.Close(int(h))
}

// Registry holds the single live link handle. A registered handle leaves
// the registry exactly once, either through Take or through Release.
type Registry struct {
	mu      sync.Mutex
	live    Handle
	closeFn CloseFunc
	logger  *logrus.Logger
}

// NewRegistry returns an empty registry. A nil closeFn closes the
// descriptor with close(2).
func NewRegistry(closeFn CloseFunc, logger *logrus.Logger) *Registry {
	if closeFn == nil {
		closeFn = closeDescriptor
	}
	if logger == nil {
		logger = logrus.StandardLogger()
	}
	return &Registry{
		live:    InvalidHandle,
		closeFn: closeFn,
		logger:  logger,
	}
}

func (r *Registry) Register(h Handle) error {
	if !h.Valid() {
		return fmt.Errorf("register: invalid handle %d", h)
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if r.live.Valid() {
		return fmt.Errorf("%w: handle %d is live, refusing %d", ErrConflict, r.live, h)
	}
	r.live = h
	r.logger.Debugf("Registered link handle %d", h)
	return nil
}

// Release closes h if it is the live handle. Stale, unknown, taken or
// already released handles are ignored.
func (r *Registry) Release(h Handle) {
	r.mu.Lock()
	if !h.Valid() || r.live != h {
		r.mu.Unlock()
		return
	}
	r.live = InvalidHandle
	r.mu.Unlock()

	r.close(h)
}

// Take hands the live handle to an external owner. The registry forgets it
// and will never close it.
func (r *Registry) Take(h Handle) (Handle, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if !h.Valid() || r.live != h {
		return InvalidHandle, fmt.Errorf("%w: %d", ErrNotRegistered, h)
	}
	r.live = InvalidHandle
	r.logger.Debugf("Link handle %d handed off", h)
	return h, nil
}

func (r *Registry) Live() (Handle, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.live, r.live.Valid()
}

// Discard closes a handle that never entered the live slot, such as one
// produced by a superseded attempt.
func (r *Registry) Discard(h Handle) {
	if !h.Valid() {
		return
	}

	r.mu.Lock()
	live := r.live == h
	r.mu.Unlock()
	if live {
		r.logger.Errorf("Refusing to discard live link handle %d", h)
		return
	}

	r.close(h)
}

func (r *Registry) close(h Handle) {
	if err := r.closeFn(h); err != nil {
		r.logger.Debugf("Closing link handle %d: %v", h, err)
		return
	}
	r.logger.Debugf("Released link handle %d", h)
}
