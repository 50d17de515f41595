package cli

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"
	"sync"
	"syscall"
)

// SignalHandler cancels a context on the first Ctrl+C and exits with 130
// on the second.
type SignalHandler struct {
	ctx        context.Context
	cancel     context.CancelFunc
	sigCh      chan os.Signal
	shutdownCh chan struct{}
	once       sync.Once
	stderr     io.Writer
	exit       func(int)
}

// NewSignalHandler creates a signal handler with a cancellable context.
func NewSignalHandler() *SignalHandler {
	h := newSignalHandler(os.Stderr, os.Exit)
	signal.Notify(h.sigCh, syscall.SIGINT, syscall.SIGTERM)
	go h.watch()
	return h
}

func newSignalHandler(stderr io.Writer, exit func(int)) *SignalHandler {
	ctx, cancel := context.WithCancel(context.Background())
	return &SignalHandler{
		ctx:        ctx,
		cancel:     cancel,
		sigCh:      make(chan os.Signal, 1),
		shutdownCh: make(chan struct{}),
		stderr:     stderr,
		exit:       exit,
	}
}

// Context returns the handler's context, which is cancelled on shutdown.
func (h *SignalHandler) Context() context.Context {
	return h.ctx
}

// Shutdown cancels the context. Safe to call more than once.
func (h *SignalHandler) Shutdown() {
	h.once.Do(func() {
		close(h.shutdownCh)
		h.cancel()
	})
}

func (h *SignalHandler) watch() {
	for sig := range h.sigCh {
		h.handle(sig)
	}
}

func (h *SignalHandler) handle(os.Signal) {
	select {
	case <-h.shutdownCh:
		fmt.Fprintln(h.stderr, "\nForce quit")
		h.exit(130)
	default:
		fmt.Fprintln(h.stderr, "\nInterrupted")
		h.Shutdown()
	}
}

// Stop releases resources and stops watching for signals.
func (h *SignalHandler) Stop() {
	signal.Stop(h.sigCh)
	close(h.sigCh)
	h.cancel()
}
