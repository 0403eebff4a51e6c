package domain

import (
	"strconv"
	"strings"
	"time"
)

// OrderType classifies an order line for labelling and routing purposes.
type OrderType string

const (
	OrderTypeRegular        OrderType = "regular"
	OrderTypePreOrder       OrderType = "pre_order"
	OrderTypePickup         OrderType = "pickup"
	OrderTypeSparePart      OrderType = "spare_part"
	OrderTypeDoubleDelivery OrderType = "double_delivery"
)

var orderTypeAliases = map[string]OrderType{
	"":                OrderTypeRegular,
	"regular":         OrderTypeRegular,
	"רגיל":            OrderTypeRegular,
	"רגילה":           OrderTypeRegular,
	"preorder":        OrderTypePreOrder,
	"pre_order":       OrderTypePreOrder,
	"pre-order":       OrderTypePreOrder,
	"pre order":       OrderTypePreOrder,
	"הזמנה מוקדמת":    OrderTypePreOrder,
	"הזמנה מראש":      OrderTypePreOrder,
	"pickup":          OrderTypePickup,
	"pick up":         OrderTypePickup,
	"pick-up":         OrderTypePickup,
	"איסוף":           OrderTypePickup,
	"איסוף עצמי":      OrderTypePickup,
	"spare_part":      OrderTypeSparePart,
	"spare part":      OrderTypeSparePart,
	"spare parts":     OrderTypeSparePart,
	"spare-parts":     OrderTypeSparePart,
	"חלקים":           OrderTypeSparePart,
	"חלקי חילוף":      OrderTypeSparePart,
	"double_delivery": OrderTypeDoubleDelivery,
	"double delivery": OrderTypeDoubleDelivery,
	"double-delivery": OrderTypeDoubleDelivery,
	"משלוח כפול":      OrderTypeDoubleDelivery,
	"כפולה":           OrderTypeDoubleDelivery,
}

// ParseOrderType maps a free-text type label to an OrderType. Unknown labels are Regular.
func ParseOrderType(raw string) OrderType {
	key := strings.ToLower(strings.Join(strings.Fields(raw), " "))
	if t, ok := orderTypeAliases[key]; ok {
		return t
	}
	return OrderTypeRegular
}

// Address holds the decomposed delivery address of an order line.
type Address struct {
	Street      string `json:"street"`
	HouseNumber string `json:"houseNumber"`
	City        string `json:"city"`
}

// Display joins the address parts with single spaces.
func (a Address) Display() string {
	return strings.TrimSpace(strings.Join(strings.Fields(a.Street+" "+a.HouseNumber+" "+a.City), " "))
}

// RecordKey is the composite identity of an order line.
type RecordKey struct {
	OrderNumber string `json:"orderNumber"`
	SKU         string `json:"sku"`
}

func (k RecordKey) String() string {
	return k.OrderNumber + "/" + k.SKU
}

// SourceRef addresses the exact backing row of a record. Sheets set Row, SQL tables set Table and ID.
type SourceRef struct {
	Table string `json:"table,omitempty"`
	Row   int    `json:"row,omitempty"`
	ID    string `json:"id,omitempty"`
}

// IsZero reports whether the reference carries no row identity.
func (s SourceRef) IsZero() bool {
	return s.Row == 0 && s.ID == ""
}

func (s SourceRef) String() string {
	if s.ID != "" {
		return s.Table + "#" + s.ID
	}
	return s.Table + ":" + strconv.Itoa(s.Row)
}

// RecordRef is the write-back address of one record. Stores prefer Source and fall back to Key.
type RecordRef struct {
	Key    RecordKey `json:"key"`
	Source SourceRef `json:"source"`
}

func (r RecordRef) String() string {
	if r.Source.IsZero() {
		return r.Key.String()
	}
	return r.Source.String()
}

// RawRow is one row as read from a data source, before projection.
type RawRow struct {
	Cells     []string
	Headers   []string
	RowNumber int
	Table     string
	ID        string
}

// Cell returns the value of the named column, or "" when the column is absent.
func (r RawRow) Cell(header string) (string, bool) {
	for idx, name := range r.Headers {
		if name == header {
			if idx < len(r.Cells) {
				return r.Cells[idx], true
			}
			return "", true
		}
	}
	return "", false
}

// OrderRecord is the canonical, typed form of an order line.
type OrderRecord struct {
	OrderNumber      string    `json:"orderNumber"`
	SKU              string    `json:"sku"`
	Type             OrderType `json:"type"`
	CustomerName     string    `json:"customerName"`
	FirstName        string    `json:"firstName"`
	RawPhone         string    `json:"rawPhone"`
	NormalizedPhone  string    `json:"normalizedPhone"`
	Address          Address   `json:"address"`
	AddressDisplay   string    `json:"addressDisplay"`
	Quantity         string    `json:"quantity"`
	TrackingNumber   string    `json:"trackingNumber"`
	TrackingLabel    string    `json:"trackingLabel"`
	OrderDate        string    `json:"orderDate"`
	OrderedAt        time.Time `json:"orderedAt"`
	Notes            string    `json:"notes"`
	LeadTime         string    `json:"leadTime,omitempty"`
	DeliveryEstimate string    `json:"deliveryEstimate"`
	AuditLog         string    `json:"auditLog"`
	Source           SourceRef `json:"source"`
}

// Key returns the composite identity of the record.
func (o OrderRecord) Key() RecordKey {
	return RecordKey{OrderNumber: o.OrderNumber, SKU: o.SKU}
}

// Ref returns the write-back address of the record.
func (o OrderRecord) Ref() RecordRef {
	return RecordRef{Key: o.Key(), Source: o.Source}
}

// PhoneDisplay renders the subscriber number in local format.
func (o OrderRecord) PhoneDisplay() string {
	if o.NormalizedPhone == "" {
		return ""
	}
	return "0" + o.NormalizedPhone
}

// HasShipment reports whether a carrier tracking number exists for the line.
func (o OrderRecord) HasShipment() bool {
	return o.TrackingNumber != ""
}

// ClipboardRow renders the tab-separated line operators paste into supplier spreadsheets.
func (o OrderRecord) ClipboardRow() string {
	line := strings.Join([]string{
		o.OrderNumber,
		o.Quantity,
		o.FirstName,
		o.Address.Street,
		o.Address.HouseNumber,
		o.Address.City,
		o.PhoneDisplay(),
	}, "\t")
	return strings.NewReplacer("'", "", `"`, "").Replace(line)
}

// Summary renders the order line as a single line of text.
func (o OrderRecord) Summary() string {
	var b strings.Builder
	b.WriteString("Order " + o.OrderNumber)
	b.WriteString(", qty " + o.Quantity)
	b.WriteString(", SKU " + o.SKU)
	b.WriteString(", name " + o.CustomerName)
	b.WriteString(", address " + o.AddressDisplay)
	b.WriteString(", phone " + o.PhoneDisplay())
	b.WriteString(", shipment " + o.TrackingLabel)
	b.WriteString(", date " + o.OrderDate)
	return b.String()
}
