package auditlog

import (
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
)

func TestWriter_RotatesHourlyAndAppends(t *testing.T) {
	dir := t.TempDir()
	clock := time.Date(2026, 3, 1, 10, 59, 0, 0, time.UTC)

	w := NewWriter(dir, "audit")
	w.now = func() time.Time { return clock }
	if err := w.Record(Entry{Actor: "admin", Action: "create", Kind: "claim", ID: "a"}); err != nil {
		t.Fatalf("Record: %v", err)
	}
	clock = clock.Add(2 * time.Minute)
	if err := w.Record(Entry{Actor: "admin", Action: "delete", Kind: "claim", ID: "a"}); err != nil {
		t.Fatalf("Record: %v", err)
	}
	if err := w.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}

	// A second writer appends a new frame to the same hour file.
	w2 := NewWriter(dir, "audit")
	w2.now = func() time.Time { return clock }
	if err := w2.Record(Entry{Actor: "admin", Action: "rename", Kind: "claim", ID: "b", Detail: map[string]any{"name": "x"}}); err != nil {
		t.Fatalf("Record: %v", err)
	}
	_ = w2.Close()

	got, err := ReadAll(dir, "audit")
	if err != nil {
		t.Fatalf("ReadAll: %v", err)
	}
	want := []Entry{
		{Time: "2026-03-01T10:59:00Z", Actor: "admin", Action: "create", Kind: "claim", ID: "a"},
		{Time: "2026-03-01T11:01:00Z", Actor: "admin", Action: "delete", Kind: "claim", ID: "a"},
		{Time: "2026-03-01T11:01:00Z", Actor: "admin", Action: "rename", Kind: "claim", ID: "b", Detail: map[string]any{"name": "x"}},
	}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Fatalf("entries (-want +got):\n%s", diff)
	}
}

func TestReadAll_MissingDir(t *testing.T) {
	got, err := ReadAll(t.TempDir()+"/absent", "audit")
	if err != nil || len(got) != 0 {
		t.Fatalf("expected nothing, got %v %v", got, err)
	}
}
