// Package upload ingests care activity spreadsheets.
package upload

import (
	"bytes"
	"encoding/csv"
	"fmt"
	"io"
	"net/http"
	"path/filepath"
	"strings"

	"careplan/internal/apperror"
	"careplan/internal/dto"

	"github.com/xuri/excelize/v2"
)

const (
	ContentTypeCSV  = "text/csv"
	ContentTypeXLSX = "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"
)

// Row is one data row keyed by header. Number is the spreadsheet row number,
// the header being row 1.
type Row struct {
	Number int
	Values map[string]string
}

func (r Row) Get(header string) string {
	return strings.TrimSpace(r.Values[header])
}

func (r Row) blank() bool {
	for _, v := range r.Values {
		if strings.TrimSpace(v) != "" {
			return false
		}
	}
	return true
}

type Sheet struct {
	Headers []string
	Rows    []Row
}

func newSheet(records [][]string) (Sheet, error) {
	if len(records) == 0 {
		return Sheet{}, apperror.Validation("The file is empty", nil)
	}

	headers := make([]string, len(records[0]))
	for i, h := range records[0] {
		headers[i] = strings.TrimSpace(strings.TrimPrefix(h, "\ufeff"))
	}

	sheet := Sheet{Headers: headers}
	for i, record := range records[1:] {
		row := Row{Number: i + 2, Values: make(map[string]string, len(headers))}
		for col, header := range headers {
			if header == "" || col >= len(record) {
				continue
			}
			row.Values[header] = record[col]
		}
		if row.blank() {
			continue
		}
		sheet.Rows = append(sheet.Rows, row)
	}
	return sheet, nil
}

func ParseCSV(r io.Reader) (Sheet, error) {
	reader := csv.NewReader(r)
	reader.FieldsPerRecord = -1
	reader.TrimLeadingSpace = true

	records, err := reader.ReadAll()
	if err != nil {
		return Sheet{}, apperror.Validation(fmt.Sprintf("The CSV file could not be read: %v", err), nil)
	}
	return newSheet(records)
}

// ParseXLSX reads the first worksheet of the workbook.
func ParseXLSX(r io.Reader) (Sheet, error) {
	f, err := excelize.OpenReader(r)
	if err != nil {
		return Sheet{}, apperror.Validation("The XLSX file could not be read", nil)
	}
	defer f.Close()

	sheets := f.GetSheetList()
	if len(sheets) == 0 {
		return Sheet{}, apperror.Validation("The workbook has no worksheet", nil)
	}

	records, err := f.GetRows(sheets[0])
	if err != nil {
		return Sheet{}, fmt.Errorf("upload: failed to read rows: %w", err)
	}
	return newSheet(records)
}

// Parse picks the parser from the file extension.
func Parse(filename string, r io.Reader) (Sheet, error) {
	switch strings.ToLower(filepath.Ext(filename)) {
	case ".csv":
		return ParseCSV(r)
	case ".xlsx":
		return ParseXLSX(r)
	}
	return Sheet{}, apperror.New(apperror.TypeUnsupportedFile, http.StatusUnsupportedMediaType, "Only .csv and .xlsx files are supported")
}

func FromDTO(in dto.CareActivityBulkDTO) Sheet {
	sheet := Sheet{Headers: make([]string, len(in.Headers))}
	for i, h := range in.Headers {
		sheet.Headers[i] = strings.TrimSpace(h)
	}
	for i, d := range in.Data {
		row := Row{Number: i + 2, Values: make(map[string]string, len(d.RowData))}
		for k, v := range d.RowData {
			row.Values[strings.TrimSpace(k)] = v
		}
		if row.blank() {
			continue
		}
		sheet.Rows = append(sheet.Rows, row)
	}
	return sheet
}

// Workbook is a rendered spreadsheet ready to be sent as an attachment.
type Workbook struct {
	Filename string
	Data     []byte
}

// WriteXLSX renders a single-sheet workbook with a bold, frozen header row.
func WriteXLSX(sheetName string, headers []string, rows [][]string) ([]byte, error) {
	f := excelize.NewFile()
	defer f.Close()

	index, err := f.NewSheet(sheetName)
	if err != nil {
		return nil, fmt.Errorf("upload: failed to create sheet: %w", err)
	}
	if sheetName != "Sheet1" {
		if err := f.DeleteSheet("Sheet1"); err != nil {
			return nil, fmt.Errorf("upload: failed to delete default sheet: %w", err)
		}
	}
	f.SetActiveSheet(index)

	headerStyle, err := f.NewStyle(&excelize.Style{
		Font: &excelize.Font{Bold: true},
		Fill: excelize.Fill{Type: "pattern", Color: []string{"#E6F3FF"}, Pattern: 1},
	})
	if err != nil {
		return nil, fmt.Errorf("upload: failed to create header style: %w", err)
	}

	for col, header := range headers {
		cell, err := excelize.CoordinatesToCellName(col+1, 1)
		if err != nil {
			return nil, fmt.Errorf("upload: failed to convert coordinates: %w", err)
		}
		if err := f.SetCellValue(sheetName, cell, header); err != nil {
			return nil, fmt.Errorf("upload: failed to set header cell %s: %w", cell, err)
		}
		if err := f.SetCellStyle(sheetName, cell, cell, headerStyle); err != nil {
			return nil, fmt.Errorf("upload: failed to set header style: %w", err)
		}
	}
	if len(headers) > 0 {
		last, _ := excelize.ColumnNumberToName(len(headers))
		if err := f.SetColWidth(sheetName, "A", last, 22); err != nil {
			return nil, fmt.Errorf("upload: failed to set column width: %w", err)
		}
	}

	for r, values := range rows {
		for c, value := range values {
			if value == "" {
				continue
			}
			cell, err := excelize.CoordinatesToCellName(c+1, r+2)
			if err != nil {
				return nil, fmt.Errorf("upload: failed to convert coordinates: %w", err)
			}
			if err := f.SetCellValue(sheetName, cell, value); err != nil {
				return nil, fmt.Errorf("upload: failed to set cell %s: %w", cell, err)
			}
		}
	}

	if err := f.SetPanes(sheetName, &excelize.Panes{
		Freeze:      true,
		YSplit:      1,
		TopLeftCell: "A2",
		ActivePane:  "bottomLeft",
	}); err != nil {
		return nil, fmt.Errorf("upload: failed to freeze header: %w", err)
	}

	var buf bytes.Buffer
	if _, err := f.WriteTo(&buf); err != nil {
		return nil, fmt.Errorf("upload: failed to write workbook: %w", err)
	}
	return buf.Bytes(), nil
}
