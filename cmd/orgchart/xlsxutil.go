package main

import (
	"fmt"
	"strconv"

	"github.com/xuri/excelize/v2"

	"github.com/iota-uz/orgflow/modules/orgchart/domain/record"
)

// readXLSXRows reads sheet (or the first sheet) of a workbook. The first row
// is the header. Rows are tagged with their sheet row number.
func readXLSXRows(path, sheet string) ([]map[string]string, error) {
	f, err := excelize.OpenFile(path)
	if err != nil {
		return nil, err
	}
	defer func() { _ = f.Close() }()

	if sheet == "" {
		sheets := f.GetSheetList()
		if len(sheets) == 0 {
			return nil, fmt.Errorf("workbook has no sheets")
		}
		sheet = sheets[0]
	} else if idx, err := f.GetSheetIndex(sheet); err != nil || idx < 0 {
		return nil, fmt.Errorf("sheet %q not found", sheet)
	}

	rows, err := f.GetRows(sheet)
	if err != nil {
		return nil, err
	}
	if len(rows) == 0 {
		return nil, fmt.Errorf("missing header")
	}
	header, err := cleanHeader(rows[0])
	if err != nil {
		return nil, err
	}
	out := make([]map[string]string, 0, len(rows)-1)
	for i, cells := range rows[1:] {
		if row, ok := rowMap(header, cells); ok {
			row[record.SourceRowKey] = strconv.Itoa(i + 2)
			out = append(out, row)
		}
	}
	return out, nil
}
