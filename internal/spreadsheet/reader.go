// Package spreadsheet reads and writes the tabular exports the reconciler
// consumes. The first row of the first sheet is the header row.
package spreadsheet

import (
	"bytes"
	"encoding/csv"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/xuri/excelize/v2"

	"github.com/joseph-ayodele/housing-reconciler/constants"
)

// Table is a header row plus data rows, cells trimmed of surrounding space.
type Table struct {
	Source string
	Header []string
	Rows   [][]string
}

// ReadFile reads the spreadsheet at path.
func ReadFile(path string) (*Table, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer func() { _ = f.Close() }()
	return Read(f, path)
}

// Read reads a spreadsheet from r; filename selects the format by extension.
func Read(r io.Reader, filename string) (*Table, error) {
	ext := constants.NormalizeExt(filepath.Ext(filename))
	if _, ok := constants.AllowedExtensions[ext]; !ok {
		return nil, fmt.Errorf("unsupported spreadsheet format %q", ext)
	}

	data, err := io.ReadAll(r)
	if err != nil {
		return nil, err
	}

	var rows [][]string
	switch ext {
	case "csv":
		rows, err = readCSV(data)
	default:
		rows, err = readXLSX(data)
	}
	if err != nil {
		return nil, err
	}
	if len(rows) == 0 {
		return nil, fmt.Errorf("worksheet is empty")
	}

	return &Table{Source: filename, Header: rows[0], Rows: rows[1:]}, nil
}

func readXLSX(data []byte) ([][]string, error) {
	file, err := excelize.OpenReader(bytes.NewReader(data))
	if err != nil {
		return nil, err
	}
	defer func() { _ = file.Close() }()

	sheetName := file.GetSheetName(0)
	if sheetName == "" {
		return nil, fmt.Errorf("no worksheet found")
	}

	// Raw values keep date cells as serial numbers instead of locale-formatted text.
	return file.GetRows(sheetName, excelize.Options{RawCellValue: true})
}

func readCSV(data []byte) ([][]string, error) {
	data = bytes.TrimPrefix(data, []byte("\xef\xbb\xbf"))
	r := csv.NewReader(bytes.NewReader(data))
	r.FieldsPerRecord = -1
	r.TrimLeadingSpace = true
	return r.ReadAll()
}

// NormalizeHeader lowercases and trims a header, including full-width spaces.
func NormalizeHeader(header string) string {
	return strings.ToLower(strings.TrimSpace(strings.ReplaceAll(header, "　", " ")))
}

// HeaderIndex maps normalized header names to their column index; the first
// occurrence of a repeated header wins.
func (t *Table) HeaderIndex() map[string]int {
	index := make(map[string]int, len(t.Header))
	for i, h := range t.Header {
		name := NormalizeHeader(h)
		if name == "" {
			continue
		}
		if _, ok := index[name]; !ok {
			index[name] = i
		}
	}
	return index
}

// CellValue returns the trimmed cell at idx, or "" when the row is short.
func CellValue(row []string, idx int) string {
	if idx < 0 || idx >= len(row) {
		return ""
	}
	return strings.TrimSpace(strings.ReplaceAll(row[idx], "　", " "))
}
