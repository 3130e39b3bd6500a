// Package interrupt provides two-stage shutdown for the daemons: the first
// SIGINT/SIGTERM cancels the context so in-flight jobs can drain, a second
// signal exits immediately.
package interrupt

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"
	"sync"
	"syscall"
)

// ExitInterrupt is the exit code for interrupt (130 = 128 + SIGINT).
const ExitInterrupt = 130

const (
	drainMessage = "\nShutting down, waiting for in-flight jobs (press Ctrl+C again to force)"
	forceMessage = "\nForced exit."
)

// Handler manages graceful shutdown with second-signal escalation.
type Handler struct {
	mu          sync.Mutex
	interrupted bool
	cancel      context.CancelFunc
	done        chan struct{}

	// Injected dependencies (for testing)
	sigCh    <-chan os.Signal
	exitFunc func(int)
	stderr   io.Writer
}

// Options holds injectable dependencies for testing.
type Options struct {
	SigCh    <-chan os.Signal
	ExitFunc func(int)
	// Stderr is the writer for user-facing messages.
	// Must be safe for concurrent writes; os.Stderr is.
	Stderr io.Writer
}

// NewHandler creates a handler listening for SIGINT/SIGTERM.
// Returns the handler and a context that is cancelled on the first signal.
func NewHandler(parent context.Context) (*Handler, context.Context) {
	sigCh := make(chan os.Signal, 2)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	return NewHandlerWithOptions(parent, Options{SigCh: sigCh})
}

// NewHandlerWithOptions creates a handler with injected dependencies.
func NewHandlerWithOptions(parent context.Context, opts Options) (*Handler, context.Context) {
	ctx, cancel := context.WithCancel(parent)

	h := &Handler{
		cancel:   cancel,
		done:     make(chan struct{}),
		sigCh:    opts.SigCh,
		exitFunc: opts.ExitFunc,
		stderr:   opts.Stderr,
	}
	if h.exitFunc == nil {
		h.exitFunc = os.Exit
	}
	if h.stderr == nil {
		h.stderr = os.Stderr
	}

	go h.listen(ctx)
	return h, ctx
}

func (h *Handler) listen(ctx context.Context) {
	// Stop watching the context after the first signal cancels it, but
	// keep listening so a second signal can still force an exit while
	// jobs drain.
	ctxDone := ctx.Done()
	for {
		select {
		case <-h.done:
			return
		case <-ctxDone:
			return
		case _, ok := <-h.sigCh:
			if !ok {
				return
			}
			if h.markInterrupted() {
				fmt.Fprintln(h.stderr, drainMessage)
				ctxDone = nil
				h.cancel()
				continue
			}
			fmt.Fprintln(h.stderr, forceMessage)
			h.exitFunc(ExitInterrupt)
			return
		}
	}
}

// markInterrupted records the first signal. Returns true on the first call.
func (h *Handler) markInterrupted() bool {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.interrupted {
		return false
	}
	h.interrupted = true
	return true
}

// Interrupted reports whether a signal was received.
func (h *Handler) Interrupted() bool {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.interrupted
}

// Stop releases the signal listener. The context stays usable.
func (h *Handler) Stop() {
	h.mu.Lock()
	defer h.mu.Unlock()
	select {
	case <-h.done:
	default:
		close(h.done)
	}
}
