// Package ingest implements the survey ingestion pipeline: reading tabular
// field-survey files, coercing raw string cells into typed plot documents, and
// applying them to the store as an unordered batch of upserts keyed by plot ID.
package ingest

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/xuri/excelize/v2"
)

// ErrEmptyInput is returned when the input file contains no data rows.
// Ingestion with nothing to do is fatal, per the pipeline contract.
var ErrEmptyInput = errors.New("input contains no data rows")

// Row is one raw record from a tabular survey file, mapping header name to
// the untyped cell value.
type Row map[string]string

// ReadRows loads the entire input file into memory. CSV and XLSX inputs are
// supported, dispatched on file extension. The first row names the columns.
func ReadRows(path string) ([]Row, error) {
	switch ext := strings.ToLower(filepath.Ext(path)); ext {
	case ".csv":
		return readCSV(path)
	case ".xlsx":
		return readXLSX(path)
	default:
		return nil, fmt.Errorf("unsupported input format %q (want .csv or .xlsx)", ext)
	}
}

func readCSV(path string) ([]Row, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open input: %w", err)
	}
	defer f.Close()

	cr := csv.NewReader(f)
	header, err := cr.Read()
	if err != nil {
		if errors.Is(err, io.EOF) {
			return nil, ErrEmptyInput
		}
		return nil, fmt.Errorf("failed to read header: %w", err)
	}

	var rows []Row
	for {
		record, err := cr.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("failed to read record: %w", err)
		}
		rows = append(rows, recordToRow(header, record))
	}

	if len(rows) == 0 {
		return nil, ErrEmptyInput
	}
	return rows, nil
}

func readXLSX(path string) ([]Row, error) {
	x, err := excelize.OpenFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open input: %w", err)
	}
	defer x.Close()

	sheets := x.GetSheetList()
	if len(sheets) == 0 {
		return nil, ErrEmptyInput
	}

	records, err := x.GetRows(sheets[0])
	if err != nil {
		return nil, fmt.Errorf("failed to read sheet %q: %w", sheets[0], err)
	}
	if len(records) < 2 {
		return nil, ErrEmptyInput
	}

	header := records[0]
	var rows []Row
	for _, record := range records[1:] {
		if isBlank(record) {
			continue
		}
		rows = append(rows, recordToRow(header, record))
	}

	if len(rows) == 0 {
		return nil, ErrEmptyInput
	}
	return rows, nil
}

// recordToRow zips a header with a record. XLSX rows may come back short of
// the header width; missing cells read as empty.
func recordToRow(header, record []string) Row {
	row := make(Row, len(header))
	for i, name := range header {
		if i < len(record) {
			row[name] = record[i]
		} else {
			row[name] = ""
		}
	}
	return row
}

func isBlank(record []string) bool {
	for _, cell := range record {
		if strings.TrimSpace(cell) != "" {
			return false
		}
	}
	return true
}
