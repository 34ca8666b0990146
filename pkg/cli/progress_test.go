package cli

import (
	"bytes"
	"errors"
	"strings"
	"sync"
	"testing"
)

func TestSimpleProgressBasic(t *testing.T) {
	buf := &bytes.Buffer{}
	progress := NewProgressReporter(buf)

	progress.Start(4)
	progress.Update(2)
	progress.Finish()

	output := buf.String()
	if !strings.Contains(output, "Progress:") {
		t.Error("expected progress output to contain 'Progress:'")
	}
	if !strings.Contains(output, "(4/4)") {
		t.Errorf("expected final count in output: %q", output)
	}
}

func TestSimpleProgressZeroTotal(t *testing.T) {
	buf := &bytes.Buffer{}
	progress := NewProgressReporter(buf)

	progress.Start(0)
	progress.Update(0)
	progress.Finish()

	if got := buf.String(); got != "\n" {
		t.Errorf("output = %q, want a single newline", got)
	}
}

func TestSimpleProgressConcurrentIncrement(t *testing.T) {
	buf := &bytes.Buffer{}
	progress := NewProgressReporter(buf).(*SimpleProgress)
	progress.Start(50)

	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			progress.Increment()
		}()
	}
	wg.Wait()

	if progress.current != 50 {
		t.Errorf("current = %d, want 50", progress.current)
	}
}

func TestSimpleProgressError(t *testing.T) {
	buf := &bytes.Buffer{}
	progress := NewProgressReporter(buf)

	progress.Start(2)
	progress.Error(errors.New("item 1 cancelled"))
	progress.Increment()

	output := buf.String()
	if !strings.Contains(output, "Error: item 1 cancelled") {
		t.Errorf("expected error in output: %q", output)
	}
	if !strings.Contains(output, "1 failed") {
		t.Errorf("expected failure count in output: %q", output)
	}
}
