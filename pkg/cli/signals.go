package cli

import (
	"context"
	"os"
	"os/signal"
	"syscall"
)

// SetupSignalHandler returns a context that is canceled on SIGINT or
// SIGTERM. Calling stop releases the signal registration; a second signal
// after stop terminates the process as usual.
func SetupSignalHandler() (ctx context.Context, stop context.CancelFunc) {
	return WithSignals(context.Background())
}

// WithSignals derives a context from parent that is canceled on SIGINT or
// SIGTERM.
func WithSignals(parent context.Context) (context.Context, context.CancelFunc) {
	return signal.NotifyContext(parent, os.Interrupt, syscall.SIGTERM)
}
