package eprime

import (
	"bufio"
	"io"
	"strings"
)

// Writer emits TabularData as tab-delimited text: one header line, then one
// line per row.
type Writer struct {
	columns []string
}

// NewWriter creates a writer emitting every column in table order.
func NewWriter() *Writer {
	return &Writer{}
}

// WithColumns restricts output to the named columns, in the given order.
// Names absent from the table produce blank cells.
func (w *Writer) WithColumns(columns []string) *Writer {
	w.columns = columns
	return w
}

// Write emits data to out. Tabs and newlines inside cells are replaced with
// spaces so the output stays one row per line.
func (w *Writer) Write(out io.Writer, data *TabularData) error {
	columns := w.columns
	if columns == nil {
		columns = data.Columns
	}

	bw := bufio.NewWriter(out)
	for i, name := range columns {
		if i > 0 {
			if _, err := bw.WriteString("\t"); err != nil {
				return err
			}
		}
		if _, err := bw.WriteString(cleanCell(name)); err != nil {
			return err
		}
	}
	if _, err := bw.WriteString("\n"); err != nil {
		return err
	}

	for _, row := range data.Rows {
		for i, name := range columns {
			if i > 0 {
				if _, err := bw.WriteString("\t"); err != nil {
					return err
				}
			}
			if _, err := bw.WriteString(cleanCell(row[name])); err != nil {
				return err
			}
		}
		if _, err := bw.WriteString("\n"); err != nil {
			return err
		}
	}
	return bw.Flush()
}

var cellCleaner = strings.NewReplacer("\t", " ", "\n", " ", "\r", " ")

func cleanCell(s string) string {
	return cellCleaner.Replace(s)
}
