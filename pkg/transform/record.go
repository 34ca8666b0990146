package transform

import (
	"fmt"

	"mercator-hq/gatekeeper/pkg/gates"
	"mercator-hq/gatekeeper/pkg/remediation"
)

// Notes attached to correction records that did not change the document.
const (
	NoteAlreadyPresent = "already present"
	NoteNoMatch        = "no match"
	NoteUnchanged      = "unchanged"
	NoteInPlace        = "section already in place"
	NoteDuplicate      = "duplicate"
)

// Edit is one contiguous change. Offset refers to the text produced by the
// edits before it in the same delta.
type Edit struct {
	Offset   int    `json:"offset"`
	Removed  string `json:"removed,omitempty"`
	Inserted string `json:"inserted,omitempty"`
}

// CorrectionRecord is the lineage entry for one applied remediation.
type CorrectionRecord struct {
	GateID           string                     `json:"gate_id"`
	ModuleID         string                     `json:"module_id"`
	TemplateID       string                     `json:"template_id"`
	Severity         gates.Severity             `json:"severity"`
	Strategy         remediation.StrategyKind   `json:"strategy"`
	Insertion        remediation.InsertionPoint `json:"insertion_point"`
	MatchKind        remediation.MatchKind      `json:"match_kind"`
	Delta            []Edit                     `json:"delta"`
	Iteration        int                        `json:"iteration"`
	OrderInIteration int                        `json:"order_in_iteration"`
	Confidence       float64                    `json:"confidence"`
	HashBefore       string                     `json:"content_hash_before"`
	HashAfter        string                     `json:"content_hash_after"`
	Note             string                     `json:"note,omitempty"`
}

// Changed reports whether the record carries a non-empty delta.
func (r CorrectionRecord) Changed() bool {
	return len(r.Delta) > 0
}

// Replay applies delta to text.
func Replay(text string, delta []Edit) (string, error) {
	for i, e := range delta {
		end := e.Offset + len(e.Removed)
		if e.Offset < 0 || end > len(text) {
			return "", fmt.Errorf("%w: edit %d at offset %d out of range", ErrInvalidDelta, i, e.Offset)
		}
		if text[e.Offset:end] != e.Removed {
			return "", fmt.Errorf("%w: edit %d removed text does not match document", ErrInvalidDelta, i)
		}
		text = text[:e.Offset] + e.Inserted + text[end:]
	}
	return text, nil
}

// Changes returns a summary of inserted and removed byte counts.
func Changes(delta []Edit) (inserted, removed int) {
	for _, e := range delta {
		inserted += len(e.Inserted)
		removed += len(e.Removed)
	}
	return inserted, removed
}
