package orders

import (
	"errors"
	"fmt"
	"math"
	"strconv"
	"strings"
	"time"

	"github.com/rpattn/orderdesk/internal/canon"
	"github.com/rpattn/orderdesk/internal/domain"
	"github.com/rpattn/orderdesk/internal/phone"

	"github.com/xuri/excelize/v2"
)

// DateLayout is the display format of order dates.
const DateLayout = "02/01/2006"

// ErrRaggedRow is returned for positional rows too short to hold every mapped column.
var ErrRaggedRow = errors.New("row shorter than mapped columns")

var (
	// day-first layouts; "2" and "1" accept one or two digits when parsing
	dateLayouts = []string{
		"2/1/2006",
		"2/1/2006 15:04",
		"2/1/2006 15:04:05",
		"2.1.2006",
		"2-1-2006",
		"2/1/06",
		"2006-01-02",
		"2006-01-02 15:04:05",
		time.RFC3339,
	}

	trackingSentinels = map[string]bool{"none": true}

	trackingFallbackLabels = map[domain.OrderType]string{
		domain.OrderTypeRegular:        "install",
		domain.OrderTypePreOrder:       "install",
		domain.OrderTypeDoubleDelivery: "install",
		domain.OrderTypePickup:         "pickup",
		domain.OrderTypeSparePart:      "spare-parts",
	}

	deliveryEstimates = map[domain.OrderType]string{
		domain.OrderTypeRegular:        "7-14 business days",
		domain.OrderTypePickup:         "ready for pickup within 3 business days",
		domain.OrderTypeSparePart:      "3-5 business days",
		domain.OrderTypeDoubleDelivery: "two shipments, 7-14 business days each",
	}
)

const longLeadTimeLabel = "long lead time"

// RowIssue records a row that could not be projected.
type RowIssue struct {
	RowNumber int    `json:"rowNumber"`
	Message   string `json:"message"`
	Err       error  `json:"-"`
}

// ProjectAll projects every row, skipping rows that fail and reporting them as issues.
func ProjectAll(rows []domain.RawRow, layout Layout) ([]domain.OrderRecord, []RowIssue) {
	records := make([]domain.OrderRecord, 0, len(rows))
	var issues []RowIssue
	for _, row := range rows {
		record, err := Project(row, layout)
		if err != nil {
			issues = append(issues, RowIssue{RowNumber: row.RowNumber, Message: err.Error(), Err: err})
			continue
		}
		records = append(records, record)
	}
	return records, issues
}

// Project maps one raw row into an OrderRecord.
func Project(row domain.RawRow, layout Layout) (domain.OrderRecord, error) {
	if layout.positional && len(row.Cells) < layout.minWidth {
		return domain.OrderRecord{}, fmt.Errorf("row %d: %w (%d < %d)", row.RowNumber, ErrRaggedRow, len(row.Cells), layout.minWidth)
	}

	cell := func(field Field) string {
		idx, ok := layout.columns[field]
		if !ok || idx >= len(row.Cells) {
			return ""
		}
		return row.Cells[idx]
	}

	orderType := domain.ParseOrderType(canon.Canonicalize(cell(FieldOrderType)))
	address := domain.Address{
		Street:      canon.Canonicalize(cell(FieldStreet)),
		HouseNumber: canon.Canonicalize(cell(FieldHouseNumber)),
		City:        canon.Canonicalize(cell(FieldCity)),
	}
	name := canon.Canonicalize(cell(FieldCustomerName))
	rawPhone := strings.TrimSpace(cell(FieldPhone))
	tracking, trackingLabel := TrackingFields(cell(FieldTracking), orderType)
	leadTime := canon.Canonicalize(cell(FieldLeadTime))
	orderDate, orderedAt := FormatOrderDate(cell(FieldOrderDate))

	record := domain.OrderRecord{
		OrderNumber:      canon.Canonicalize(cell(FieldOrderNumber)),
		SKU:              canon.Canonicalize(cell(FieldSKU)),
		Type:             orderType,
		CustomerName:     name,
		FirstName:        FirstName(name),
		RawPhone:         rawPhone,
		NormalizedPhone:  phone.SubscriberNumber(rawPhone),
		Address:          address,
		AddressDisplay:   address.Display(),
		Quantity:         FormatQuantity(cell(FieldQuantity)),
		TrackingNumber:   tracking,
		TrackingLabel:    trackingLabel,
		OrderDate:        orderDate,
		OrderedAt:        orderedAt,
		Notes:            strings.TrimSpace(cell(FieldNotes)),
		LeadTime:         leadTime,
		DeliveryEstimate: DeliveryEstimate(orderType, leadTime),
		AuditLog:         strings.TrimSpace(cell(FieldAuditLog)),
		Source: domain.SourceRef{
			Table: row.Table,
			Row:   row.RowNumber,
			ID:    row.ID,
		},
	}
	return record, nil
}

// FormatQuantity renders integral quantities without a fractional part. Values that do not
// parse fall back to stripping a literal ".0" suffix.
func FormatQuantity(raw string) string {
	trimmed := strings.TrimSpace(raw)
	if f, err := strconv.ParseFloat(trimmed, 64); err == nil && f == math.Trunc(f) && math.Abs(f) < 1<<53 {
		return strconv.FormatInt(int64(f), 10)
	}
	return strings.TrimSuffix(trimmed, ".0")
}

// TrackingFields returns the real tracking number and its display label. Empty and sentinel
// values yield an empty tracking number and a label derived from the order type.
func TrackingFields(raw string, orderType domain.OrderType) (tracking, label string) {
	tracking = canon.Canonicalize(raw)
	if tracking == "" || trackingSentinels[strings.ToLower(tracking)] {
		fallback, ok := trackingFallbackLabels[orderType]
		if !ok {
			fallback = trackingFallbackLabels[domain.OrderTypeRegular]
		}
		return "", fallback
	}
	return tracking, tracking
}

// DeliveryEstimate returns the delivery time label for an order type.
func DeliveryEstimate(orderType domain.OrderType, leadTime string) string {
	if orderType == domain.OrderTypePreOrder {
		leadTime = strings.TrimSpace(leadTime)
		if leadTime == "" {
			return longLeadTimeLabel
		}
		if _, err := strconv.ParseFloat(leadTime, 64); err == nil {
			return "about " + FormatQuantity(leadTime) + " weeks"
		}
		return "about " + leadTime
	}
	if label, ok := deliveryEstimates[orderType]; ok {
		return label
	}
	return deliveryEstimates[domain.OrderTypeRegular]
}

// FirstName returns the first whitespace-delimited token of a full name.
func FirstName(fullName string) string {
	fields := strings.Fields(fullName)
	if len(fields) == 0 {
		return ""
	}
	return fields[0]
}

// FormatOrderDate parses a day-first date or a spreadsheet serial and renders it as
// DateLayout. Unparseable values are returned trimmed with a zero time.
func FormatOrderDate(raw string) (string, time.Time) {
	trimmed := canon.Canonicalize(raw)
	if trimmed == "" {
		return "", time.Time{}
	}
	for _, layout := range dateLayouts {
		if t, err := time.Parse(layout, trimmed); err == nil {
			return t.Format(DateLayout), t
		}
	}
	if serial, err := strconv.ParseFloat(trimmed, 64); err == nil && serial >= 1 && serial < 2958466 {
		if t, err := excelize.ExcelDateToTime(serial, false); err == nil {
			return t.Format(DateLayout), t
		}
	}
	return trimmed, time.Time{}
}
