package orders

import (
	"slices"
	"strings"

	"github.com/rpattn/orderdesk/internal/canon"
	"github.com/rpattn/orderdesk/internal/domain"
	"github.com/rpattn/orderdesk/internal/phone"
)

// Search returns the records whose order number or tracking number contains the query, or
// whose normalized phone equals the query's subscriber number. Input order is preserved.
// An empty query matches nothing.
func Search(records []domain.OrderRecord, query string) []domain.OrderRecord {
	cleaned := canon.Canonicalize(query)
	if cleaned == "" {
		return nil
	}
	needle := strings.ToLower(cleaned)
	phoneKey := phone.SubscriberNumber(cleaned)

	var matched []domain.OrderRecord
	for _, record := range records {
		if matches(record, needle, phoneKey) {
			matched = append(matched, record)
		}
	}
	return matched
}

func matches(record domain.OrderRecord, needle, phoneKey string) bool {
	if strings.Contains(strings.ToLower(record.OrderNumber), needle) {
		return true
	}
	if strings.Contains(strings.ToLower(record.TrackingNumber), needle) {
		return true
	}
	// an empty phone key would otherwise match every record without a phone
	return phoneKey != "" && record.NormalizedPhone == phoneKey
}

// SortByDate returns a copy of records ordered by order date. Records without a parseable
// date sort last in both directions; ties keep their input order.
func SortByDate(records []domain.OrderRecord, descending bool) []domain.OrderRecord {
	sorted := slices.Clone(records)
	slices.SortStableFunc(sorted, func(a, b domain.OrderRecord) int {
		switch {
		case a.OrderedAt.IsZero() && b.OrderedAt.IsZero():
			return 0
		case a.OrderedAt.IsZero():
			return 1
		case b.OrderedAt.IsZero():
			return -1
		}
		cmp := a.OrderedAt.Compare(b.OrderedAt)
		if descending {
			return -cmp
		}
		return cmp
	})
	return sorted
}
