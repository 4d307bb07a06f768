package parser

import (
	"bytes"
	"fmt"
	"strings"

	"vipham/internal/domain"
	"vipham/internal/violation"

	"github.com/xuri/excelize/v2"
)

// Column names reported in MissingColumnsError, as they appear in the template sheet.
const (
	ColumnName      = domain.LabelFullName
	ColumnClass     = domain.LabelClassName
	ColumnViolation = domain.LabelViolation
)

var headerAliases = []struct {
	column string
	folded []string
}{
	{ColumnName, []string{"ho va ten", "ho ten", "full name", "name"}},
	{ColumnClass, []string{"lop", "class"}},
	{ColumnViolation, []string{"loi vi pham", "vi pham", "violation"}},
}

// ParseTable parses rows whose first row is a header. Sheets with fewer than
// two rows yield no records and no error.
func (p *Parser) ParseTable(rows [][]string) ([]domain.Record, error) {
	if len(rows) < 2 {
		return nil, nil
	}
	idx, err := resolveColumns(rows[0])
	if err != nil {
		return nil, err
	}

	records := make([]domain.Record, 0, len(rows)-1)
	for _, row := range rows[1:] {
		name := cell(row, idx[0])
		class := cell(row, idx[1])
		rawViolation := cell(row, idx[2])
		if name == "" || class == "" {
			continue
		}
		rec, ok := p.newRecord(name, class, rawViolation)
		if !ok {
			continue
		}
		records = append(records, rec)
	}
	return records, nil
}

func resolveColumns(header []string) ([3]int, error) {
	idx := [3]int{-1, -1, -1}
	folded := make([]string, len(header))
	for i, h := range header {
		folded[i] = strings.Join(strings.Fields(violation.Fold(h)), " ")
	}
	var missing []string
	for col, spec := range headerAliases {
	search:
		for _, alias := range spec.folded {
			for i, h := range folded {
				if h == alias {
					idx[col] = i
					break search
				}
			}
		}
		if idx[col] < 0 {
			missing = append(missing, spec.column)
		}
	}
	if len(missing) > 0 {
		return idx, &domain.MissingColumnsError{Missing: missing}
	}
	return idx, nil
}

func cell(row []string, i int) string {
	if i < 0 || i >= len(row) {
		return ""
	}
	return strings.TrimSpace(row[i])
}

// ReadWorkbook returns the rows of the first sheet of an XLSX document.
func ReadWorkbook(data []byte) ([][]string, error) {
	f, err := excelize.OpenReader(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("%w: open workbook: %v", domain.ErrMalformedInput, err)
	}
	defer f.Close()

	sheets := f.GetSheetList()
	if len(sheets) == 0 {
		return nil, nil
	}
	rows, err := f.GetRows(sheets[0])
	if err != nil {
		return nil, fmt.Errorf("%w: read sheet %q: %v", domain.ErrMalformedInput, sheets[0], err)
	}
	return rows, nil
}
