package report

import (
	"fmt"
	"time"

	"vipham/internal/domain"

	"github.com/xuri/excelize/v2"
)

const xlsxSheet = "ViPhamHocSinh"

var xlsxColumnWidths = []float64{30, 10, 30, 15}

// BuildXLSX writes the header block followed by one row per record, in
// working-set order.
func BuildXLSX(h Header, rs []domain.Record, loc *time.Location) ([]byte, error) {
	f := excelize.NewFile()
	defer f.Close()

	if err := f.SetSheetName(f.GetSheetName(0), xlsxSheet); err != nil {
		return nil, fmt.Errorf("rename sheet: %w", err)
	}

	rows := [][]interface{}{
		{Title},
		{fmt.Sprintf("Ngày tạo: %s", FormatDate(h.GeneratedAt))},
		{fmt.Sprintf("Người tạo: %s (%s)", h.Author.Name, h.Author.Role)},
		{},
		{domain.LabelFullName, domain.LabelClassName, domain.LabelViolation, domain.LabelTime},
	}
	for _, r := range rs {
		rows = append(rows, []interface{}{r.FullName, r.ClassName, r.Violation, FormatClock(r.Timestamp, loc)})
	}
	for i := range rows {
		if len(rows[i]) == 0 {
			continue
		}
		axis, err := excelize.CoordinatesToCellName(1, i+1)
		if err != nil {
			return nil, err
		}
		if err := f.SetSheetRow(xlsxSheet, axis, &rows[i]); err != nil {
			return nil, fmt.Errorf("write row %d: %w", i+1, err)
		}
	}

	lastCol, err := excelize.ColumnNumberToName(len(xlsxColumnWidths))
	if err != nil {
		return nil, err
	}
	for row := 1; row <= 3; row++ {
		if err := f.MergeCell(xlsxSheet, fmt.Sprintf("A%d", row), fmt.Sprintf("%s%d", lastCol, row)); err != nil {
			return nil, fmt.Errorf("merge header row %d: %w", row, err)
		}
	}
	for i, width := range xlsxColumnWidths {
		col, err := excelize.ColumnNumberToName(i + 1)
		if err != nil {
			return nil, err
		}
		if err := f.SetColWidth(xlsxSheet, col, col, width); err != nil {
			return nil, fmt.Errorf("set width %s: %w", col, err)
		}
	}

	buf, err := f.WriteToBuffer()
	if err != nil {
		return nil, fmt.Errorf("serialize workbook: %w", err)
	}
	return buf.Bytes(), nil
}
