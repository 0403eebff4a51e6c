package orders

import "github.com/rpattn/orderdesk/internal/domain"

// DefaultBulkThreshold is the largest implicit selection that may trigger notifications.
const DefaultBulkThreshold = 10

// Selection is the effective working set of a bulk action.
type Selection struct {
	Records     []domain.OrderRecord `json:"records"`
	ImplicitAll bool                 `json:"implicitAll"`
	UnsafeBulk  bool                 `json:"unsafeBulk"`
}

// ResolveSelection determines which matched records an action applies to. With no explicit
// selection every matched record is used, and the result is flagged unsafe when it exceeds
// threshold. Explicit selections are honored regardless of size; a selected ref is matched
// by source identity when it carries one, else by order number and SKU.
func ResolveSelection(matched []domain.OrderRecord, selected []domain.RecordRef, threshold int) Selection {
	if threshold <= 0 {
		threshold = DefaultBulkThreshold
	}

	if len(selected) == 0 {
		records := make([]domain.OrderRecord, len(matched))
		copy(records, matched)
		return Selection{
			Records:     records,
			ImplicitAll: true,
			UnsafeBulk:  len(records) > threshold,
		}
	}

	bySource := make(map[domain.SourceRef]bool)
	byKey := make(map[domain.RecordKey]bool)
	for _, ref := range selected {
		if ref.Source.IsZero() {
			byKey[ref.Key] = true
			continue
		}
		bySource[ref.Source] = true
	}

	records := []domain.OrderRecord{}
	for _, record := range matched {
		if !record.Source.IsZero() && bySource[record.Source] {
			records = append(records, record)
			continue
		}
		if byKey[record.Key()] {
			records = append(records, record)
		}
	}
	return Selection{Records: records}
}
