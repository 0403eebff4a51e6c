package orders

import (
	"errors"
	"fmt"
	"sort"
	"strings"
)

// Field names a canonical OrderRecord input column.
type Field string

const (
	FieldOrderNumber  Field = "order_number"
	FieldQuantity     Field = "quantity"
	FieldSKU          Field = "sku"
	FieldCustomerName Field = "customer_name"
	FieldStreet       Field = "street"
	FieldHouseNumber  Field = "house_number"
	FieldCity         Field = "city"
	FieldPhone        Field = "phone"
	FieldTracking     Field = "tracking_number"
	FieldOrderDate    Field = "order_date"
	FieldOrderType    Field = "order_type"
	FieldNotes        Field = "notes"
	FieldLeadTime     Field = "lead_time"
	FieldAuditLog     Field = "audit_log"
)

// ErrMissingColumn is returned when a source lacks a column the mapping requires.
var ErrMissingColumn = errors.New("required column missing")

// DefaultHeaders lists the accepted header aliases per field. Aliases are compared after
// normalizeHeader.
var DefaultHeaders = map[Field][]string{
	FieldOrderNumber:  {"order_number", "order", "order_no", "order_id", "מספר הזמנה", "הזמנה"},
	FieldQuantity:     {"quantity", "qty", "כמות"},
	FieldSKU:          {"sku", "product", "item", "מק\"ט", "מקט", "מוצר"},
	FieldCustomerName: {"customer_name", "name", "full_name", "customer", "שם לקוח", "שם"},
	FieldStreet:       {"street", "address", "רחוב", "כתובת"},
	FieldHouseNumber:  {"house_number", "house", "house_no", "מספר בית", "בית"},
	FieldCity:         {"city", "עיר", "ישוב"},
	FieldPhone:        {"phone", "phone_number", "mobile", "tel", "טלפון", "נייד"},
	FieldTracking:     {"tracking_number", "tracking", "shipment", "shipment_number", "מספר משלוח", "משלוח"},
	FieldOrderDate:    {"order_date", "date", "created_at", "תאריך", "תאריך הזמנה"},
	FieldOrderType:    {"order_type", "type", "סוג הזמנה", "סוג"},
	FieldNotes:        {"notes", "note", "comments", "הערות"},
	FieldLeadTime:     {"lead_time", "eta", "זמן אספקה"},
	FieldAuditLog:     {"audit_log", "log", "לוג", "יומן פעולות"},
}

// legacyColumns is the column order of the original order sheet.
var legacyColumns = map[Field]int{
	FieldOrderNumber:  0,
	FieldQuantity:     1,
	FieldSKU:          2,
	FieldCustomerName: 3,
	FieldStreet:       4,
	FieldHouseNumber:  5,
	FieldCity:         6,
	FieldPhone:        7,
	FieldTracking:     8,
	FieldOrderDate:    9,
}

// Mapping describes how source columns map to record fields. Exactly one of Headers
// (named access) or Positions (legacy positional access) is used.
type Mapping struct {
	Headers   map[Field][]string
	Positions map[Field]int
}

// NamedMapping returns the default named mapping with overrides prepended to the alias lists.
func NamedMapping(overrides map[Field][]string) Mapping {
	headers := make(map[Field][]string, len(DefaultHeaders))
	for field, aliases := range DefaultHeaders {
		headers[field] = append(append([]string{}, overrides[field]...), aliases...)
	}
	for field, aliases := range overrides {
		if _, ok := headers[field]; !ok {
			headers[field] = append([]string{}, aliases...)
		}
	}
	return Mapping{Headers: headers}
}

// LegacyPositional returns the fixed column layout of the original sheet.
func LegacyPositional() Mapping {
	positions := make(map[Field]int, len(legacyColumns))
	for field, idx := range legacyColumns {
		positions[field] = idx
	}
	return Mapping{Positions: positions}
}

// Positional reports whether the mapping addresses columns by index.
func (m Mapping) Positional() bool {
	return len(m.Positions) > 0
}

// Layout is a mapping resolved against one source's header row.
type Layout struct {
	columns    map[Field]int
	positional bool
	minWidth   int
}

// Column returns the index of a field's column.
func (l Layout) Column(field Field) (int, bool) {
	idx, ok := l.columns[field]
	return idx, ok
}

// Positional reports whether rows are addressed by index.
func (l Layout) Positional() bool {
	return l.positional
}

// Resolve validates the mapping against a header row. Named mappings require the order
// number column; every other column is optional.
func (m Mapping) Resolve(headers []string) (Layout, error) {
	if m.Positional() {
		layout := Layout{columns: make(map[Field]int, len(m.Positions)), positional: true}
		for field, idx := range m.Positions {
			if idx < 0 {
				return Layout{}, fmt.Errorf("negative column index %d for %s", idx, field)
			}
			layout.columns[field] = idx
			if idx+1 > layout.minWidth {
				layout.minWidth = idx + 1
			}
		}
		if _, ok := layout.columns[FieldOrderNumber]; !ok {
			return Layout{}, fmt.Errorf("%w: %s", ErrMissingColumn, FieldOrderNumber)
		}
		return layout, nil
	}

	index := make(map[string]int, len(headers))
	for idx, header := range headers {
		key := normalizeHeader(header)
		if key == "" {
			continue
		}
		if _, seen := index[key]; !seen {
			index[key] = idx
		}
	}

	layout := Layout{columns: make(map[Field]int, len(m.Headers))}
	fields := make([]Field, 0, len(m.Headers))
	for field := range m.Headers {
		fields = append(fields, field)
	}
	sort.Slice(fields, func(i, j int) bool { return fields[i] < fields[j] })

	claimed := make(map[int]Field)
	for _, field := range fields {
		for _, alias := range m.Headers[field] {
			idx, ok := index[normalizeHeader(alias)]
			if !ok {
				continue
			}
			if owner, taken := claimed[idx]; taken && owner != field {
				continue
			}
			layout.columns[field] = idx
			claimed[idx] = field
			break
		}
	}

	if _, ok := layout.columns[FieldOrderNumber]; !ok {
		return Layout{}, fmt.Errorf("%w: %s (headers: %s)", ErrMissingColumn, FieldOrderNumber, strings.Join(headers, ", "))
	}
	return layout, nil
}

func normalizeHeader(h string) string {
	h = strings.ToLower(strings.TrimSpace(h))
	return strings.NewReplacer(" ", "", "_", "", "-", "", ".", "", "\"", "", "'", "", "״", "").Replace(h)
}
