package audit

import (
	"fmt"
	"time"

	"github.com/google/uuid"

	"mercator-hq/gatekeeper/pkg/transform"
)

// prepare validates e and fills ID and CreatedAt when unset.
func prepare(e *Entry, now time.Time) error {
	if e == nil {
		return fmt.Errorf("%w: nil entry", ErrInvalidEntry)
	}
	if e.RunID == "" {
		return fmt.Errorf("%w: run id is required", ErrInvalidEntry)
	}
	if e.Outcome == "" {
		return fmt.Errorf("%w: outcome is required", ErrInvalidEntry)
	}
	if e.ID == "" {
		e.ID = uuid.NewString()
	}
	if e.CreatedAt.IsZero() {
		e.CreatedAt = now
	}
	e.CreatedAt = e.CreatedAt.UTC()
	return nil
}

func copyEntry(e *Entry) *Entry {
	c := *e
	c.ModuleIDs = append([]string(nil), e.ModuleIDs...)
	c.Residual = append([]string(nil), e.Residual...)
	c.Corrections = make([]transform.CorrectionRecord, len(e.Corrections))
	for i, r := range e.Corrections {
		r.Delta = append(r.Delta[:0:0], r.Delta...)
		c.Corrections[i] = r
	}
	return &c
}
