// Package sheet reads order rows from XLSX or CSV files and writes audit logs back into them.
package sheet

import (
	"bytes"
	"context"
	"encoding/csv"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/rpattn/orderdesk/internal/canon"
	"github.com/rpattn/orderdesk/internal/datasource"
	"github.com/rpattn/orderdesk/internal/domain"
	"github.com/rpattn/orderdesk/internal/orders"

	"github.com/xuri/excelize/v2"
)

// DefaultLogColumn is the header of the audit log column created when a sheet has none.
const DefaultLogColumn = "audit_log"

// ErrUnsupportedFormat is returned for files that are neither .xlsx nor .csv.
var ErrUnsupportedFormat = fmt.Errorf("unsupported file format")

// Store is a spreadsheet-backed order source and audit log store.
type Store struct {
	path      string
	worksheet string
	logColumn string
	mapping   orders.Mapping

	// serializes read-modify-write cycles within this process
	mu sync.Mutex
}

// NewStore returns a store over an .xlsx or .csv file. worksheet selects the XLSX tab and
// defaults to the first one.
func NewStore(path, worksheet, logColumn string, mapping orders.Mapping) (*Store, error) {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".xlsx", ".csv":
	default:
		return nil, fmt.Errorf("%w: %s", ErrUnsupportedFormat, filepath.Ext(path))
	}
	if strings.TrimSpace(logColumn) == "" {
		logColumn = DefaultLogColumn
	}
	return &Store{path: path, worksheet: worksheet, logColumn: logColumn, mapping: mapping}, nil
}

type workbook struct {
	name   string
	grid   grid
	xlsx   *excelize.File
	csvBOM bool
}

func (w *workbook) close() {
	if w.xlsx != nil {
		_ = w.xlsx.Close()
	}
}

func (s *Store) isCSV() bool {
	return strings.EqualFold(filepath.Ext(s.path), ".csv")
}

func (s *Store) open() (*workbook, error) {
	if s.isCSV() {
		payload, err := os.ReadFile(s.path)
		if err != nil {
			return nil, fmt.Errorf("%w: %w", datasource.ErrLoad, err)
		}
		records, bom, err := parseCSV(payload)
		if err != nil {
			return nil, fmt.Errorf("%w: %w", datasource.ErrLoad, err)
		}
		g, err := detectHeader(records)
		if err != nil {
			return nil, fmt.Errorf("%w: %s: %w", datasource.ErrLoad, filepath.Base(s.path), err)
		}
		return &workbook{name: strings.TrimSuffix(filepath.Base(s.path), filepath.Ext(s.path)), grid: g, csvBOM: bom}, nil
	}

	f, err := excelize.OpenFile(s.path)
	if err != nil {
		return nil, fmt.Errorf("%w: failed to open xlsx: %w", datasource.ErrLoad, err)
	}
	name, records, err := readWorksheet(f, s.worksheet)
	if err != nil {
		_ = f.Close()
		return nil, fmt.Errorf("%w: %w", datasource.ErrLoad, err)
	}
	g, err := detectHeader(records)
	if err != nil {
		_ = f.Close()
		return nil, fmt.Errorf("%w: %s: %w", datasource.ErrLoad, name, err)
	}
	return &workbook{name: name, grid: g, xlsx: f}, nil
}

// LoadRows reads the header row and every non-blank data row.
func (s *Store) LoadRows(ctx context.Context) (datasource.Table, error) {
	if err := ctx.Err(); err != nil {
		return datasource.Table{}, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	book, err := s.open()
	if err != nil {
		return datasource.Table{}, err
	}
	defer book.close()

	g := book.grid
	table := datasource.Table{Name: book.name, Headers: g.headers}
	for idx := g.headerRowIndex + 1; idx < len(g.records); idx++ {
		if len(cleanRow(g.records[idx])) == 0 {
			continue
		}
		// Positional rows keep their own width so short rows are rejected by the projector.
		cells := g.records[idx]
		if !s.mapping.Positional() {
			cells = padRow(cells, len(g.headers))
		}
		table.Rows = append(table.Rows, domain.RawRow{
			Cells:     cells,
			Headers:   g.headers,
			RowNumber: idx + 1,
			Table:     book.name,
		})
	}
	if len(table.Rows) == 0 {
		return datasource.Table{}, fmt.Errorf("%w: %s has no data rows", datasource.ErrLoad, book.name)
	}
	return table, nil
}

// ReadLog returns the current audit log of one row.
func (s *Store) ReadLog(ctx context.Context, ref domain.RecordRef) (string, error) {
	logs, err := s.ReadLogs(ctx, []domain.RecordRef{ref})
	if err != nil {
		return "", err
	}
	return logs[ref], nil
}

// ReadLogs reads the audit logs of several rows from a single pass over the file.
func (s *Store) ReadLogs(ctx context.Context, refs []domain.RecordRef) (map[domain.RecordRef]string, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	book, err := s.open()
	if err != nil {
		return nil, err
	}
	defer book.close()

	locator, err := s.newLocator(book)
	if err != nil {
		return nil, err
	}

	out := make(map[domain.RecordRef]string, len(refs))
	for _, ref := range refs {
		idx, err := locator.find(ref)
		if err != nil {
			return nil, fmt.Errorf("read log %s: %w", ref, err)
		}
		out[ref] = locator.logValue(idx)
	}
	return out, nil
}

// WriteLog replaces the audit log of exactly one row and saves the file.
func (s *Store) WriteLog(ctx context.Context, ref domain.RecordRef, value string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	book, err := s.open()
	if err != nil {
		return err
	}
	defer book.close()

	locator, err := s.newLocator(book)
	if err != nil {
		return err
	}
	idx, err := locator.find(ref)
	if err != nil {
		return fmt.Errorf("write log %s: %w", ref, err)
	}

	col := locator.logCol
	if col < 0 {
		col = book.grid.width()
		if err := s.setCell(book, book.grid.headerRowIndex, col, s.logColumn); err != nil {
			return err
		}
	}
	if err := s.setCell(book, idx, col, value); err != nil {
		return err
	}
	return s.save(book)
}

// Close releases nothing; files are opened per operation.
func (s *Store) Close() error { return nil }

func (s *Store) setCell(book *workbook, recordIdx, col int, value string) error {
	if book.xlsx != nil {
		cell, err := excelize.CoordinatesToCellName(col+1, recordIdx+1)
		if err != nil {
			return fmt.Errorf("invalid cell: %w", err)
		}
		if err := book.xlsx.SetCellStr(book.name, cell, value); err != nil {
			return fmt.Errorf("failed to set %s: %w", cell, err)
		}
		return nil
	}

	row := book.grid.records[recordIdx]
	if len(row) <= col {
		row = padRow(row, col+1)
	}
	row[col] = value
	book.grid.records[recordIdx] = row
	return nil
}

func (s *Store) save(book *workbook) error {
	if book.xlsx != nil {
		if err := book.xlsx.Save(); err != nil {
			return fmt.Errorf("failed to save workbook: %w", err)
		}
		return nil
	}

	var buf bytes.Buffer
	if book.csvBOM {
		buf.Write(byteOrderMark)
	}
	w := csv.NewWriter(&buf)
	if err := w.WriteAll(book.grid.records); err != nil {
		return fmt.Errorf("failed to encode csv: %w", err)
	}

	tmp, err := os.CreateTemp(filepath.Dir(s.path), ".orderdesk-*.csv")
	if err != nil {
		return fmt.Errorf("failed to create temp file: %w", err)
	}
	defer func() { _ = os.Remove(tmp.Name()) }()
	if _, err := tmp.Write(buf.Bytes()); err != nil {
		_ = tmp.Close()
		return fmt.Errorf("failed to write csv: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("failed to write csv: %w", err)
	}
	if err := os.Rename(tmp.Name(), s.path); err != nil {
		return fmt.Errorf("failed to replace csv: %w", err)
	}
	return nil
}

// locator finds rows of one open workbook by source row or by order number and SKU.
type locator struct {
	book     *workbook
	orderCol int
	skuCol   int
	logCol   int
}

func (s *Store) newLocator(book *workbook) (*locator, error) {
	layout, err := s.mapping.Resolve(book.grid.headers)
	if err != nil {
		return nil, fmt.Errorf("%w: %s: %w", datasource.ErrLoad, book.name, err)
	}
	l := &locator{book: book, orderCol: -1, skuCol: -1, logCol: columnIndex(book.grid.headers, s.logColumn)}
	if idx, ok := layout.Column(orders.FieldOrderNumber); ok {
		l.orderCol = idx
	}
	if idx, ok := layout.Column(orders.FieldSKU); ok {
		l.skuCol = idx
	}
	if l.logCol < 0 {
		if idx, ok := layout.Column(orders.FieldAuditLog); ok {
			l.logCol = idx
		}
	}
	return l, nil
}

func (l *locator) cell(recordIdx, col int) string {
	if col < 0 || recordIdx >= len(l.book.grid.records) {
		return ""
	}
	row := l.book.grid.records[recordIdx]
	if col >= len(row) {
		return ""
	}
	return row[col]
}

func (l *locator) matchesKey(recordIdx int, key domain.RecordKey) bool {
	return canon.Canonicalize(l.cell(recordIdx, l.orderCol)) == key.OrderNumber &&
		canon.Canonicalize(l.cell(recordIdx, l.skuCol)) == key.SKU
}

// find returns the record index of ref. A source row is trusted only while it still holds
// the same order line; otherwise the key must match exactly one row.
func (l *locator) find(ref domain.RecordRef) (int, error) {
	g := l.book.grid
	if row := ref.Source.Row; row > g.headerRowIndex+1 && row <= len(g.records) {
		if l.matchesKey(row-1, ref.Key) {
			return row - 1, nil
		}
	}
	if ref.Key.OrderNumber == "" {
		return -1, datasource.ErrRecordNotFound
	}

	found := -1
	for idx := g.headerRowIndex + 1; idx < len(g.records); idx++ {
		if !l.matchesKey(idx, ref.Key) {
			continue
		}
		if found >= 0 {
			return -1, datasource.ErrAmbiguousRecord
		}
		found = idx
	}
	if found < 0 {
		return -1, datasource.ErrRecordNotFound
	}
	return found, nil
}

func (l *locator) logValue(recordIdx int) string {
	return strings.TrimSpace(l.cell(recordIdx, l.logCol))
}
