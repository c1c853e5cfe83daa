package export

import (
	"bytes"
	"encoding/csv"
	"fmt"
)

// Table is one header row plus its data rows, keyed by header.
type Table struct {
	Headers []string
	Rows    []map[string]string
}

// Dataset is the exportable content of an attendance report: the event
// table, plus an optional per-student summary table.
type Dataset struct {
	Headers []string
	Rows    []map[string]string
	Summary *Table
}

func (d Dataset) events() Table {
	return Table{Headers: d.Headers, Rows: d.Rows}
}

// CSVExporter renders a Dataset into CSV bytes.
type CSVExporter struct{}

// NewCSVExporter builds a CSV exporter.
func NewCSVExporter() *CSVExporter {
	return &CSVExporter{}
}

// Render produces CSV encoded bytes. The summary table, when present,
// follows the event rows after one blank record.
func (e *CSVExporter) Render(data Dataset) ([]byte, error) {
	if len(data.Headers) == 0 {
		return nil, fmt.Errorf("csv requires at least one header")
	}
	buf := &bytes.Buffer{}
	writer := csv.NewWriter(buf)
	if err := writeTable(writer, data.events()); err != nil {
		return nil, err
	}
	if data.Summary != nil {
		if err := writer.Write([]string{""}); err != nil {
			return nil, fmt.Errorf("write csv separator: %w", err)
		}
		if err := writeTable(writer, *data.Summary); err != nil {
			return nil, err
		}
	}
	writer.Flush()
	if err := writer.Error(); err != nil {
		return nil, fmt.Errorf("flush csv: %w", err)
	}
	return buf.Bytes(), nil
}

func writeTable(writer *csv.Writer, table Table) error {
	if err := writer.Write(table.Headers); err != nil {
		return fmt.Errorf("write csv headers: %w", err)
	}
	for _, row := range table.Rows {
		record := make([]string, len(table.Headers))
		for i, header := range table.Headers {
			record[i] = row[header]
		}
		if err := writer.Write(record); err != nil {
			return fmt.Errorf("write csv row: %w", err)
		}
	}
	return nil
}
