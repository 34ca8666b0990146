package audit

import (
	"context"
	"errors"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"mercator-hq/gatekeeper/pkg/document"
	"mercator-hq/gatekeeper/pkg/gates"
	"mercator-hq/gatekeeper/pkg/remediation"
	"mercator-hq/gatekeeper/pkg/transform"
)

var base = time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

func sampleEntry(runID string, created time.Time, outcome string) *Entry {
	input := "Buy now.\n"
	final := "Capital at risk.\n\nBuy now.\n"
	return &Entry{
		RunID:          runID,
		CreatedAt:      created,
		DocumentType:   "promotion",
		ModuleIDs:      []string{"cobs"},
		PolicyVersion:  "abc123",
		Outcome:        outcome,
		IterationsUsed: 1,
		InputHash:      document.HashString(input),
		FinalHash:      document.HashString(final),
		Corrections: []transform.CorrectionRecord{{
			GateID:     "risk_warning",
			ModuleID:   "cobs",
			TemplateID: "risk_warning_start",
			Severity:   gates.SeverityCritical,
			Strategy:   remediation.StrategyTemplateInsertion,
			Insertion:  remediation.Section("Risk Warning"),
			MatchKind:  remediation.MatchExact,
			Delta:      []transform.Edit{{Offset: 0, Inserted: "Capital at risk.\n\n"}},
			Iteration:  1,
			Confidence: 0.85,
			HashBefore: document.HashString(input),
			HashAfter:  document.HashString(final),
		}},
		InputText: input,
		FinalText: final,
	}
}

type storeFactory struct {
	name string
	open func(t *testing.T) Store
}

func factories() []storeFactory {
	return []storeFactory{
		{name: "memory", open: func(t *testing.T) Store { return NewMemoryStore() }},
		{name: "sqlite/modernc", open: func(t *testing.T) Store {
			s, err := NewSQLiteStore(&SQLiteConfig{
				Path:        filepath.Join(t.TempDir(), "audit.db"),
				Driver:      DriverModernc,
				WALMode:     true,
				BusyTimeout: time.Second,
			}, nil)
			if err != nil {
				t.Fatalf("NewSQLiteStore() error = %v", err)
			}
			return s
		}},
		{name: "sqlite/mattn", open: func(t *testing.T) Store {
			s, err := NewSQLiteStore(&SQLiteConfig{
				Path:   filepath.Join(t.TempDir(), "audit.db"),
				Driver: DriverMattn,
			}, nil)
			if err != nil {
				if strings.Contains(strings.ToLower(err.Error()), "cgo") {
					t.Skip("go-sqlite3 requires cgo")
				}
				t.Fatalf("NewSQLiteStore() error = %v", err)
			}
			return s
		}},
	}
}

func TestStore_RecordAndGet(t *testing.T) {
	for _, f := range factories() {
		t.Run(f.name, func(t *testing.T) {
			ctx := context.Background()
			s := f.open(t)
			defer s.Close()

			in := sampleEntry("run-1", base, "converged")
			if err := s.Record(ctx, in); err != nil {
				t.Fatalf("Record() error = %v", err)
			}
			if in.ID == "" {
				t.Error("Record() should assign an id")
			}

			got, err := s.Get(ctx, "run-1")
			if err != nil {
				t.Fatalf("Get() error = %v", err)
			}
			if !got.CreatedAt.Equal(base) {
				t.Errorf("CreatedAt = %v, want %v", got.CreatedAt, base)
			}
			if got.PolicyVersion != "abc123" || got.Outcome != "converged" || got.IterationsUsed != 1 {
				t.Errorf("entry fields = %+v", got)
			}
			if len(got.Corrections) != 1 {
				t.Fatalf("len(Corrections) = %d", len(got.Corrections))
			}
			rec := got.Corrections[0]
			if rec.Severity != gates.SeverityCritical || rec.Insertion != remediation.Section("Risk Warning") {
				t.Errorf("correction = %+v", rec)
			}
			if err := Verify(got); err != nil {
				t.Errorf("Verify() of stored entry error = %v", err)
			}

			if _, err := s.Get(ctx, "missing"); !errors.Is(err, ErrNotFound) {
				t.Errorf("Get(missing) error = %v, want ErrNotFound", err)
			}
			if err := s.Record(ctx, sampleEntry("run-1", base, "converged")); !errors.Is(err, ErrDuplicateRun) {
				t.Errorf("duplicate Record() error = %v, want ErrDuplicateRun", err)
			}
		})
	}
}

func TestStore_List(t *testing.T) {
	for _, f := range factories() {
		t.Run(f.name, func(t *testing.T) {
			ctx := context.Background()
			s := f.open(t)
			defer s.Close()

			for i, outcome := range []string{"converged", "needs_review", "stalled", "converged"} {
				e := sampleEntry("run-"+string(rune('a'+i)), base.Add(time.Duration(i)*time.Hour), outcome)
				if err := s.Record(ctx, e); err != nil {
					t.Fatalf("Record() error = %v", err)
				}
			}

			since := base.Add(90 * time.Minute)
			tests := []struct {
				name string
				q    *Query
				want []string
			}{
				{name: "all newest first", q: nil, want: []string{"run-d", "run-c", "run-b", "run-a"}},
				{name: "by outcome", q: &Query{Outcome: "converged"}, want: []string{"run-d", "run-a"}},
				{name: "since", q: &Query{Since: &since}, want: []string{"run-d", "run-c"}},
				{name: "limit", q: &Query{Limit: 1}, want: []string{"run-d"}},
				{name: "document type", q: &Query{DocumentType: "letter"}, want: nil},
			}
			for _, tt := range tests {
				t.Run(tt.name, func(t *testing.T) {
					got, err := s.List(ctx, tt.q)
					if err != nil {
						t.Fatalf("List() error = %v", err)
					}
					if len(got) != len(tt.want) {
						t.Fatalf("List() returned %d entries, want %d", len(got), len(tt.want))
					}
					for i, e := range got {
						if e.RunID != tt.want[i] {
							t.Errorf("[%d] = %s, want %s", i, e.RunID, tt.want[i])
						}
					}
				})
			}
		})
	}
}

func TestStore_DeleteAndTrim(t *testing.T) {
	for _, f := range factories() {
		t.Run(f.name, func(t *testing.T) {
			ctx := context.Background()
			s := f.open(t)
			defer s.Close()

			for i := 0; i < 5; i++ {
				e := sampleEntry("run-"+string(rune('a'+i)), base.AddDate(0, 0, i), "converged")
				if err := s.Record(ctx, e); err != nil {
					t.Fatalf("Record() error = %v", err)
				}
			}

			deleted, err := s.DeleteBefore(ctx, base.AddDate(0, 0, 2))
			if err != nil || deleted != 2 {
				t.Fatalf("DeleteBefore() = %d, %v; want 2", deleted, err)
			}
			deleted, err = s.Trim(ctx, 1)
			if err != nil || deleted != 2 {
				t.Fatalf("Trim() = %d, %v; want 2", deleted, err)
			}
			if n, _ := s.Count(ctx); n != 1 {
				t.Errorf("Count() = %d, want 1", n)
			}
			if _, err := s.Get(ctx, "run-e"); err != nil {
				t.Errorf("newest entry should survive trim: %v", err)
			}
		})
	}
}

func TestRecord_Invalid(t *testing.T) {
	s := NewMemoryStore()
	tests := []struct {
		name  string
		entry *Entry
	}{
		{name: "nil", entry: nil},
		{name: "no run id", entry: &Entry{Outcome: "converged"}},
		{name: "no outcome", entry: &Entry{RunID: "r"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if err := s.Record(context.Background(), tt.entry); !errors.Is(err, ErrInvalidEntry) {
				t.Errorf("Record() error = %v, want ErrInvalidEntry", err)
			}
		})
	}
}

func TestMemoryStore_Closed(t *testing.T) {
	s := NewMemoryStore()
	s.Close()
	if err := s.Record(context.Background(), sampleEntry("r", base, "converged")); !errors.Is(err, ErrClosed) {
		t.Errorf("Record() after Close error = %v", err)
	}
}

func TestNewSQLiteStore_UnsupportedDriver(t *testing.T) {
	_, err := NewSQLiteStore(&SQLiteConfig{Path: filepath.Join(t.TempDir(), "a.db"), Driver: "postgres"}, nil)
	if !errors.Is(err, ErrUnsupportedDriver) {
		t.Errorf("error = %v, want ErrUnsupportedDriver", err)
	}
}

func TestVerify(t *testing.T) {
	e := sampleEntry("r", base, "converged")
	if err := Verify(e); err != nil {
		t.Fatalf("Verify() error = %v", err)
	}

	hashOnly := sampleEntry("r", base, "converged")
	hashOnly.InputText, hashOnly.FinalText = "", ""
	if err := Verify(hashOnly); err != nil {
		t.Errorf("hash-only Verify() error = %v", err)
	}

	tampered := sampleEntry("r", base, "converged")
	tampered.FinalText = "Buy now.\n"
	if err := Verify(tampered); err == nil {
		t.Error("Verify() should reject a tampered final text")
	}

	forged := sampleEntry("r", base, "converged")
	forged.Corrections[0].Delta[0].Inserted = "Capital may be at risk.\n\n"
	if err := Verify(forged); err == nil {
		t.Error("Verify() should reject a forged delta")
	}
}
