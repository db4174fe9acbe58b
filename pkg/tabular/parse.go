package tabular

import (
	"bytes"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"strings"
	"unicode/utf8"

	"github.com/tealeg/xlsx/v3"
)

// ErrUnreadable is returned when the bytes are not a usable CSV or workbook.
var ErrUnreadable = errors.New("unreadable tabular file")

// Record is one parsed data row keyed by normalized header.
type Record struct {
	// Row is 1-based over data rows, header excluded.
	Row    int
	Fields map[string]string
}

var utf8BOM = []byte{0xEF, 0xBB, 0xBF}

// IsExcel reports whether the upload should be read as a workbook.
func IsExcel(filename, contentType string) bool {
	ct := strings.ToLower(contentType)
	if strings.Contains(ct, "excel") || strings.Contains(ct, "spreadsheetml") {
		return true
	}
	name := strings.ToLower(filename)
	return strings.HasSuffix(name, ".xlsx") || strings.HasSuffix(name, ".xls")
}

// IsTabular reports whether the upload is CSV or a workbook.
func IsTabular(filename, contentType string) bool {
	if IsExcel(filename, contentType) {
		return true
	}
	ct := strings.ToLower(contentType)
	return strings.Contains(ct, "csv") || strings.HasSuffix(strings.ToLower(filename), ".csv")
}

// NormalizeHeader trims, lowercases and replaces spaces with underscores.
func NormalizeHeader(h string) string {
	h = strings.ToLower(strings.TrimSpace(h))
	return strings.Join(strings.Fields(h), "_")
}

// Parse reads data as a workbook or CSV. Both paths yield identical records
// for equivalent content.
func Parse(data []byte, excel bool) ([]Record, error) {
	var (
		grid [][]string
		err  error
	)
	if excel {
		grid, err = readWorkbook(data)
	} else {
		grid, err = readCSV(data)
	}
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrUnreadable, err)
	}
	return toRecords(grid)
}

func readCSV(data []byte) ([][]string, error) {
	data = bytes.TrimPrefix(data, utf8BOM)
	if !utf8.Valid(data) {
		return nil, errors.New("file is not valid UTF-8")
	}
	r := csv.NewReader(bytes.NewReader(data))
	r.FieldsPerRecord = -1
	r.LazyQuotes = true
	var out [][]string
	for {
		rec, err := r.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, err
		}
		out = append(out, rec)
	}
	return out, nil
}

// readWorkbook returns the first sheet as a grid.
func readWorkbook(data []byte) ([][]string, error) {
	wb, err := xlsx.OpenBinary(data)
	if err != nil {
		return nil, err
	}
	if len(wb.Sheets) == 0 {
		return nil, errors.New("workbook has no sheets")
	}
	sheet := wb.Sheets[0]
	var out [][]string
	err = sheet.ForEachRow(func(row *xlsx.Row) error {
		cells := make([]string, 0, sheet.MaxCol)
		for i := 0; i < sheet.MaxCol; i++ {
			cells = append(cells, cellText(row.GetCell(i)))
		}
		out = append(out, cells)
		return nil
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

// cellText returns the stored value of plain numeric cells, so a number
// format cannot round the data, and the formatted text of everything else.
func cellText(c *xlsx.Cell) string {
	if c.Type() == xlsx.CellTypeNumeric && !c.IsTime() {
		return c.Value
	}
	return c.String()
}

func toRecords(grid [][]string) ([]Record, error) {
	headerAt := -1
	for i, row := range grid {
		if !blankRow(row) {
			headerAt = i
			break
		}
	}
	if headerAt < 0 {
		return nil, fmt.Errorf("%w: no header row", ErrUnreadable)
	}
	header := make([]string, len(grid[headerAt]))
	for i, h := range grid[headerAt] {
		header[i] = NormalizeHeader(h)
	}

	var out []Record
	for _, row := range grid[headerAt+1:] {
		if blankRow(row) {
			continue
		}
		fields := make(map[string]string, len(header))
		for i, h := range header {
			if h == "" {
				continue
			}
			if i < len(row) {
				fields[h] = row[i]
			} else {
				fields[h] = ""
			}
		}
		out = append(out, Record{Row: len(out) + 1, Fields: fields})
	}
	return out, nil
}

func blankRow(row []string) bool {
	for _, c := range row {
		if strings.TrimSpace(c) != "" {
			return false
		}
	}
	return true
}
