package stream

import (
	"sync"
	"time"

	"github.com/docubot/backend/services"
)

// CancelToken is the per-request cancellation handle for an in-flight
// streaming transport. It owns the idle timer: the timer is armed when the
// token is created, reset on every received frame, and aborts the transport
// when it expires. User-initiated cancellation goes through the same Abort
// path, so there is no ambient timer or abort state shared across requests.
type CancelToken struct {
	mu      sync.Mutex
	idle    time.Duration
	timer   *time.Timer
	aborted bool
	reason  error
	onAbort []func()
}

// NewCancelToken creates a token with the given idle window. A window of
// zero disables the idle timer.
func NewCancelToken(idleWindow time.Duration) *CancelToken {
	t := &CancelToken{idle: idleWindow}
	if idleWindow > 0 {
		t.timer = time.AfterFunc(idleWindow, func() {
			t.Abort(services.ErrStreamIdleTimeout)
		})
	}
	return t
}

// OnAbort registers a function invoked exactly once when the token aborts,
// typically closing the underlying transport so blocked reads return.
func (t *CancelToken) OnAbort(fn func()) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.aborted {
		go fn()
		return
	}
	t.onAbort = append(t.onAbort, fn)
}

// Touch resets the idle timer. Called once per received frame.
func (t *CancelToken) Touch() {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.aborted || t.timer == nil {
		return
	}
	t.timer.Reset(t.idle)
}

// Abort cancels the transport with the given reason. Subsequent calls are
// no-ops; the first reason wins.
func (t *CancelToken) Abort(reason error) {
	t.mu.Lock()
	if t.aborted {
		t.mu.Unlock()
		return
	}
	t.aborted = true
	t.reason = reason
	if t.timer != nil {
		t.timer.Stop()
	}
	fns := t.onAbort
	t.onAbort = nil
	t.mu.Unlock()

	for _, fn := range fns {
		fn()
	}
}

// Stop releases the idle timer without aborting. Called on normal completion.
func (t *CancelToken) Stop() {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.timer != nil {
		t.timer.Stop()
	}
}

// Err returns the abort reason, or nil if the token has not aborted
func (t *CancelToken) Err() error {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.reason
}

// Aborted reports whether the token has been aborted
func (t *CancelToken) Aborted() bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.aborted
}
