package repository

import (
	"strconv"
	"strings"

	"github.com/rpattn/orderdesk/internal/canon"
	"github.com/rpattn/orderdesk/internal/datasource"
	"github.com/rpattn/orderdesk/internal/domain"
)

// DefaultTable is the order table created by the bundled migrations.
const DefaultTable = "orders"

// orderColumns doubles as the header row handed to the projector, so the names must stay
// aliases of the default named mapping.
var orderColumns = []string{
	"order_number",
	"sku",
	"order_type",
	"customer_name",
	"phone",
	"street",
	"house_number",
	"city",
	"quantity",
	"tracking_number",
	"order_date",
	"notes",
	"lead_time",
	"audit_log",
}

func selectColumns() string {
	return "id, " + strings.Join(orderColumns, ", ")
}

func insertValues(record domain.OrderRecord) []any {
	return []any{
		record.OrderNumber,
		record.SKU,
		string(record.Type),
		record.CustomerName,
		record.RawPhone,
		record.Address.Street,
		record.Address.HouseNumber,
		record.Address.City,
		record.Quantity,
		record.TrackingNumber,
		record.OrderDate,
		record.Notes,
		record.LeadTime,
		record.AuditLog,
	}
}

func rawRow(table string, id int64, cells []string, position int) domain.RawRow {
	return domain.RawRow{
		Cells:     cells,
		Headers:   orderColumns,
		RowNumber: position,
		Table:     table,
		ID:        strconv.FormatInt(id, 10),
	}
}

// logRow is the slice of an order row needed to address and update its audit log.
type logRow struct {
	id          int64
	orderNumber string
	sku         string
	log         string
}

func (r logRow) matches(key domain.RecordKey) bool {
	return canon.Canonicalize(r.orderNumber) == key.OrderNumber && canon.Canonicalize(r.sku) == key.SKU
}

// lookupArgs returns the ids and order numbers whose rows are needed to resolve refs.
func lookupArgs(refs []domain.RecordRef) ([]int64, []string) {
	var ids []int64
	var numbers []string
	seen := make(map[string]bool)
	for _, ref := range refs {
		if id, err := strconv.ParseInt(ref.Source.ID, 10, 64); err == nil {
			ids = append(ids, id)
		}
		if ref.Key.OrderNumber != "" && !seen[ref.Key.OrderNumber] {
			seen[ref.Key.OrderNumber] = true
			numbers = append(numbers, ref.Key.OrderNumber)
		}
	}
	return ids, numbers
}

// resolveRow picks the row ref addresses. The row id is trusted only while that row still
// holds the same order line; otherwise the key must identify exactly one row.
func resolveRow(rows []logRow, ref domain.RecordRef) (logRow, error) {
	if id, err := strconv.ParseInt(ref.Source.ID, 10, 64); err == nil {
		for _, row := range rows {
			if row.id == id && row.matches(ref.Key) {
				return row, nil
			}
		}
	}

	var found []logRow
	for _, row := range rows {
		if row.matches(ref.Key) {
			found = append(found, row)
		}
	}
	switch len(found) {
	case 0:
		return logRow{}, datasource.ErrRecordNotFound
	case 1:
		return found[0], nil
	default:
		return logRow{}, datasource.ErrAmbiguousRecord
	}
}
