package orders

import (
	"testing"
	"time"

	"github.com/rpattn/orderdesk/internal/domain"

	"github.com/google/go-cmp/cmp"
)

func orderNumbers(records []domain.OrderRecord) []string {
	out := make([]string, 0, len(records))
	for _, r := range records {
		out = append(out, r.OrderNumber)
	}
	return out
}

func searchFixture() []domain.OrderRecord {
	return []domain.OrderRecord{
		{OrderNumber: "123-456", SKU: "A", NormalizedPhone: "541234567", TrackingNumber: "RR998877IL"},
		{OrderNumber: "999-123", SKU: "B", NormalizedPhone: "529876543"},
		{OrderNumber: "PO-7788", SKU: "C", NormalizedPhone: "", TrackingNumber: "lp00123456"},
		{OrderNumber: "555", SKU: "D", NormalizedPhone: "541234567"},
		{OrderNumber: "777", SKU: "E", NormalizedPhone: ""},
	}
}

func TestSearchOrderNumberSubstring(t *testing.T) {
	got := orderNumbers(Search(searchFixture(), "123"))
	want := []string{"123-456", "999-123", "PO-7788"}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Fatalf("unexpected matches (-want +got):\n%s", diff)
	}
}

func TestSearchIsCaseInsensitiveAndCanonicalizesQuery(t *testing.T) {
	got := orderNumbers(Search(searchFixture(), "\u200f po-77 \t"))
	if diff := cmp.Diff([]string{"PO-7788"}, got); diff != "" {
		t.Fatalf("unexpected matches (-want +got):\n%s", diff)
	}

	got = orderNumbers(Search(searchFixture(), "LP001"))
	if diff := cmp.Diff([]string{"PO-7788"}, got); diff != "" {
		t.Fatalf("unexpected tracking matches (-want +got):\n%s", diff)
	}
}

func TestSearchPhoneExactMatch(t *testing.T) {
	got := orderNumbers(Search(searchFixture(), "+972 54-123-4567"))
	if diff := cmp.Diff([]string{"123-456", "555"}, got); diff != "" {
		t.Fatalf("unexpected phone matches (-want +got):\n%s", diff)
	}

	if got := Search(searchFixture(), "054-12345"); len(got) != 0 {
		t.Fatalf("partial phone must not match, got %v", orderNumbers(got))
	}
}

func TestSearchEmptyPhoneKeyDoesNotMatchEmptyPhones(t *testing.T) {
	// "PO-" has no digits, so its phone key is empty
	got := orderNumbers(Search(searchFixture(), "PO-"))
	if diff := cmp.Diff([]string{"PO-7788"}, got); diff != "" {
		t.Fatalf("unexpected matches (-want +got):\n%s", diff)
	}
}

func TestSearchEmptyQuery(t *testing.T) {
	for _, q := range []string{"", "  ", "\u200e\u00a0"} {
		if got := Search(searchFixture(), q); got != nil {
			t.Fatalf("expected no search for %q, got %v", q, orderNumbers(got))
		}
	}
}

func TestSortByDate(t *testing.T) {
	day := func(d int) time.Time { return time.Date(2024, time.March, d, 0, 0, 0, 0, time.UTC) }
	records := []domain.OrderRecord{
		{OrderNumber: "late", OrderedAt: day(9)},
		{OrderNumber: "undated"},
		{OrderNumber: "early", OrderedAt: day(1)},
		{OrderNumber: "mid-a", OrderedAt: day(5)},
		{OrderNumber: "mid-b", OrderedAt: day(5)},
	}

	asc := orderNumbers(SortByDate(records, false))
	if diff := cmp.Diff([]string{"early", "mid-a", "mid-b", "late", "undated"}, asc); diff != "" {
		t.Fatalf("ascending mismatch (-want +got):\n%s", diff)
	}
	desc := orderNumbers(SortByDate(records, true))
	if diff := cmp.Diff([]string{"late", "mid-a", "mid-b", "early", "undated"}, desc); diff != "" {
		t.Fatalf("descending mismatch (-want +got):\n%s", diff)
	}
	if records[0].OrderNumber != "late" {
		t.Fatalf("SortByDate must not reorder its input")
	}
}
