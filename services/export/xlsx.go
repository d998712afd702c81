package export

import (
	"io"

	"github.com/pkg/errors"
	"github.com/xuri/excelize/v2"
)

const (
	defaultSheet = "Sheet1"
	minColWidth  = 12
	maxColWidth  = 40
	widthSample  = 50 // rows looked at to size columns
)

// Sheet is a single worksheet: a bold, filterable header row followed by the rows.
type Sheet struct {
	Title  string
	Header []string
	Rows   [][]string
}

// WriteXLSX writes a workbook holding the sheet to w.
func WriteXLSX(w io.Writer, s Sheet) error {
	f := excelize.NewFile()
	defer f.Close()

	name := s.Title
	if name == "" {
		name = defaultSheet
	}
	if err := f.SetSheetName(defaultSheet, name); err != nil {
		return errors.Wrap(err, "renaming sheet")
	}

	for col, h := range s.Header {
		cell, err := excelize.CoordinatesToCellName(col+1, 1)
		if err != nil {
			return err
		}
		if err = f.SetCellStr(name, cell, h); err != nil {
			return errors.Wrapf(err, "setting cell %s", cell)
		}
	}
	if len(s.Header) > 0 {
		end, err := excelize.CoordinatesToCellName(len(s.Header), 1)
		if err != nil {
			return err
		}
		bold, err := f.NewStyle(&excelize.Style{Font: &excelize.Font{Bold: true}})
		if err != nil {
			return errors.Wrap(err, "creating header style")
		}
		_ = f.SetCellStyle(name, "A1", end, bold)
		_ = f.AutoFilter(name, "A1:"+end, nil)
	}

	for r, row := range s.Rows {
		for c, val := range row {
			cell, err := excelize.CoordinatesToCellName(c+1, r+2)
			if err != nil {
				return err
			}
			if err = f.SetCellStr(name, cell, val); err != nil {
				return errors.Wrapf(err, "setting cell %s", cell)
			}
		}
	}

	for c := range s.Header {
		col, err := excelize.ColumnNumberToName(c + 1)
		if err != nil {
			return err
		}
		_ = f.SetColWidth(name, col, col, colWidth(s, c))
	}

	_, err := f.WriteTo(w)
	return errors.Wrap(err, "writing workbook")
}

func colWidth(s Sheet, c int) float64 {
	longest := len(s.Header[c])
	for r := 0; r < len(s.Rows) && r < widthSample; r++ {
		if c < len(s.Rows[r]) && len(s.Rows[r][c]) > longest {
			longest = len(s.Rows[r][c])
		}
	}
	w := float64(longest) * 0.9
	if w < minColWidth {
		w = minColWidth
	}
	if w > maxColWidth {
		w = maxColWidth
	}
	return w
}
