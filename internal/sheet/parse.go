package sheet

import (
	"bufio"
	"bytes"
	"encoding/csv"
	"errors"
	"fmt"
	"strings"

	"github.com/xuri/excelize/v2"
)

var byteOrderMark = []byte{0xEF, 0xBB, 0xBF}

// grid is a worksheet as read from disk: every row, header detection applied.
type grid struct {
	records        [][]string
	headers        []string
	headerRowIndex int
}

func parseCSV(payload []byte) ([][]string, bool, error) {
	hasBOM := bytes.HasPrefix(payload, byteOrderMark)
	reader := bufio.NewReader(bytes.NewReader(payload))
	if hasBOM {
		_, _ = reader.Discard(len(byteOrderMark))
	}

	csvReader := csv.NewReader(reader)
	csvReader.FieldsPerRecord = -1
	csvReader.LazyQuotes = true

	records, err := csvReader.ReadAll()
	if err != nil {
		return nil, hasBOM, fmt.Errorf("failed to read csv: %w", err)
	}
	return records, hasBOM, nil
}

// readWorksheet returns every row of the named worksheet, or of the first one when name is
// empty. Cell values are raw so dates arrive as serial numbers instead of locale formats.
func readWorksheet(f *excelize.File, name string) (string, [][]string, error) {
	sheets := f.GetSheetList()
	if len(sheets) == 0 {
		return "", nil, errors.New("workbook has no sheets")
	}
	if name == "" {
		name = sheets[0]
	} else if idx, err := f.GetSheetIndex(name); err != nil || idx < 0 {
		return "", nil, fmt.Errorf("worksheet %q not found", name)
	}

	rows, err := f.GetRows(name, excelize.Options{RawCellValue: true})
	if err != nil {
		return "", nil, fmt.Errorf("failed to read rows from worksheet %q: %w", name, err)
	}
	return name, rows, nil
}

// detectHeader treats the first non-blank row as the header row.
func detectHeader(records [][]string) (grid, error) {
	if len(records) == 0 {
		return grid{}, errors.New("sheet is empty")
	}
	for idx, row := range records {
		if len(cleanRow(row)) == 0 {
			continue
		}
		return grid{
			records:        records,
			headers:        sanitizeHeaders(row),
			headerRowIndex: idx,
		}, nil
	}
	return grid{}, errors.New("header row could not be detected")
}

// width is the length of the widest row, header included. Data rows may run past an
// unlabeled trailing header cell.
func (g grid) width() int {
	w := len(g.headers)
	for _, row := range g.records {
		if len(row) > w {
			w = len(row)
		}
	}
	return w
}

func cleanRow(row []string) []string {
	var cleaned []string
	for _, cell := range row {
		if strings.TrimSpace(cell) != "" {
			cleaned = append(cleaned, cell)
		}
	}
	return cleaned
}

// sanitizeHeaders trims header names, names blank columns by position and suffixes duplicates.
func sanitizeHeaders(raw []string) []string {
	headers := make([]string, len(raw))
	seen := make(map[string]int)

	for idx, value := range raw {
		name := strings.TrimSpace(value)
		if name == "" {
			name = fmt.Sprintf("column_%d", idx+1)
		}

		base := name
		count := seen[base]
		if count > 0 {
			name = fmt.Sprintf("%s_%d", base, count+1)
		}
		seen[base] = count + 1

		headers[idx] = name
	}

	return headers
}

func padRow(row []string, length int) []string {
	if len(row) >= length {
		return row[:length]
	}
	padded := make([]string, length)
	copy(padded, row)
	return padded
}

func columnIndex(headers []string, name string) int {
	want := strings.ToLower(strings.TrimSpace(name))
	for idx, header := range headers {
		if strings.ToLower(strings.TrimSpace(header)) == want {
			return idx
		}
	}
	return -1
}
