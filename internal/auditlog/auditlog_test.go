package auditlog

import (
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
)

func TestAppendEntryChain(t *testing.T) {
	first := time.Date(2024, time.March, 5, 14, 22, 41, 0, time.UTC)
	second := time.Date(2024, time.March, 5, 14, 25, 3, 0, time.UTC)

	log := AppendEntry("", "📧 sent check", first)
	if log != "📧 sent check (05/03 14:22)" {
		t.Fatalf("unexpected first entry: %q", log)
	}

	log = AppendEntry(log, "↩️ return request", second)
	want := "📧 sent check (05/03 14:22) | ↩️ return request (05/03 14:25)"
	if log != want {
		t.Fatalf("unexpected chained log:\n got %q\nwant %q", log, want)
	}
}

func TestAppendEntryBlankExisting(t *testing.T) {
	now := time.Date(2024, time.December, 31, 9, 5, 0, 0, time.UTC)
	if got := AppendEntry("   ", "sent", now); got != "sent (31/12 09:05)" {
		t.Fatalf("expected blank log to be treated as empty, got %q", got)
	}
}

func TestAppendEntryKeepsTextVerbatim(t *testing.T) {
	now := time.Date(2024, time.March, 5, 14, 22, 0, 0, time.UTC)
	got := AppendEntry("old note ", " sent", now)
	if want := "old note  |  sent (05/03 14:22)"; got != want {
		t.Fatalf("unexpected log:\n got %q\nwant %q", got, want)
	}
}

func TestStampUsesTimestampLocation(t *testing.T) {
	loc := time.FixedZone("IST", 2*60*60)
	now := time.Date(2024, time.March, 5, 23, 30, 0, 0, time.UTC).In(loc)
	if got := Stamp(now); got != "06/03 01:30" {
		t.Fatalf("expected stamp in the timestamp's zone, got %q", got)
	}
}

func TestEntries(t *testing.T) {
	log := "a (01/01 10:00) | b (01/01 11:00) |  | c (02/01 09:00)"
	want := []string{"a (01/01 10:00)", "b (01/01 11:00)", "c (02/01 09:00)"}
	if diff := cmp.Diff(want, Entries(log)); diff != "" {
		t.Fatalf("entries mismatch (-want +got):\n%s", diff)
	}
	if Entries("  ") != nil {
		t.Fatalf("expected no entries for blank log")
	}
}
