package cli

import (
	"context"
	"syscall"
	"testing"
	"time"
)

func TestSetupSignalHandler(t *testing.T) {
	ctx, stop := SetupSignalHandler()
	defer stop()

	select {
	case <-ctx.Done():
		t.Error("Context should not be cancelled initially")
	default:
	}
}

func TestWithSignals_Cancelled(t *testing.T) {
	ctx, stop := WithSignals(context.Background())
	defer stop()

	if err := syscall.Kill(syscall.Getpid(), syscall.SIGTERM); err != nil {
		t.Fatalf("failed to send signal: %v", err)
	}

	select {
	case <-ctx.Done():
	case <-time.After(2 * time.Second):
		t.Fatal("context was not cancelled by SIGTERM")
	}
}

func TestWithSignals_ParentCancel(t *testing.T) {
	parent, cancel := context.WithCancel(context.Background())
	ctx, stop := WithSignals(parent)
	defer stop()

	cancel()
	select {
	case <-ctx.Done():
	case <-time.After(time.Second):
		t.Fatal("context should follow its parent")
	}
}

func TestWithSignals_Stop(t *testing.T) {
	ctx, stop := WithSignals(context.Background())
	stop()

	select {
	case <-ctx.Done():
	default:
		t.Error("stop should cancel the context")
	}
}
