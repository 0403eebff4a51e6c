package main

import (
	"testing"

	"github.com/rpattn/orderdesk/internal/domain"

	"github.com/google/go-cmp/cmp"
)

func TestParseSelection(t *testing.T) {
	refs, err := parseSelection([]string{"123-456/SOFA", "A/B/C"})
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	want := []domain.RecordRef{
		{Key: domain.RecordKey{OrderNumber: "123-456", SKU: "SOFA"}},
		{Key: domain.RecordKey{OrderNumber: "A/B", SKU: "C"}},
	}
	if diff := cmp.Diff(want, refs); diff != "" {
		t.Fatalf("unexpected refs (-want +got):\n%s", diff)
	}

	for _, bad := range []string{"nosku", "/SKU", "ORDER/"} {
		if _, err := parseSelection([]string{bad}); err == nil {
			t.Fatalf("expected error for %q", bad)
		}
	}
}
