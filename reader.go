package eprime

import (
	"bytes"
	"encoding/csv"
	"io"
	"strings"
)

// Reader recognizes and parses one input format.
type Reader interface {
	// CanParse inspects the first lines of a stream (the dispatcher hands
	// it two) and reports whether this reader understands them.
	CanParse(firstLines []string) bool
	// Parse consumes the whole stream into a table.
	Parse(r io.Reader) (*TabularData, error)
}

// LogReader parses the nested log-frame format.
type LogReader struct {
	parser *LogFrameParser
}

// NewLogReader creates a LogReader with a default-configured frame parser.
func NewLogReader() *LogReader {
	return &LogReader{parser: NewLogFrameParser()}
}

// CanParse reports whether the first lines contain a level marker.
func (lr *LogReader) CanParse(firstLines []string) bool {
	return lr.parser.CanParse(firstLines)
}

// Parse reads the stream as a log-frame file and flattens it.
func (lr *LogReader) Parse(r io.Reader) (*TabularData, error) {
	lf, err := lr.parser.Parse(r)
	if err != nil {
		return nil, err
	}
	return lf.ToTabularData(), nil
}

// DelimitedReader parses header-plus-rows flat files split on a single
// delimiter. The two wirings used here are tab- and comma-delimited.
type DelimitedReader struct {
	delim rune
}

// NewTabReader creates a reader for tab-delimited files.
func NewTabReader() *DelimitedReader { return &DelimitedReader{delim: '\t'} }

// NewCSVReader creates a reader for comma-delimited files.
func NewCSVReader() *DelimitedReader { return &DelimitedReader{delim: ','} }

// CanParse reports whether the first line contains the delimiter.
func (dr *DelimitedReader) CanParse(firstLines []string) bool {
	return len(firstLines) > 0 && strings.ContainsRune(firstLines[0], dr.delim)
}

// Parse reads a header line naming the columns, then one row per line.
// Short rows leave trailing cells blank.
func (dr *DelimitedReader) Parse(r io.Reader) (*TabularData, error) {
	cr := csv.NewReader(r)
	cr.Comma = dr.delim
	cr.FieldsPerRecord = -1
	cr.LazyQuotes = true

	records, err := cr.ReadAll()
	if err != nil {
		return nil, &DamagedFileError{Msg: err.Error()}
	}
	data := NewTabularData()
	if len(records) == 0 {
		return data, nil
	}
	header := records[0]
	for _, name := range header {
		data.AddColumn(strings.TrimSpace(name))
	}
	for _, rec := range records[1:] {
		row := make(map[string]string, len(header))
		for i, name := range data.Columns {
			if i < len(rec) {
				row[name] = rec[i]
			}
		}
		data.AddRow(row, data.Columns)
	}
	return data, nil
}

// defaultReaders is the dispatch order: the log format is the most
// distinctive, so it is sniffed first.
func defaultReaders() []Reader {
	return []Reader{NewLogReader(), NewTabReader(), NewCSVReader()}
}

// ParseAny sniffs the first two lines of the stream and dispatches to the
// first reader that recognizes them. name labels the input (usually a file
// name) in the UnknownTypeError raised when nothing matches. The stream is
// fully buffered before parsing begins.
func ParseAny(name string, r io.Reader) (*TabularData, error) {
	raw, err := io.ReadAll(r)
	if err != nil {
		return nil, err
	}
	firstLines := sniffLines(raw, 2)
	for _, reader := range defaultReaders() {
		if reader.CanParse(firstLines) {
			return reader.Parse(bytes.NewReader(raw))
		}
	}
	return nil, &UnknownTypeError{Name: name}
}

// sniffLines returns up to n non-empty leading lines of raw.
func sniffLines(raw []byte, n int) []string {
	var lines []string
	for _, line := range strings.Split(string(raw), "\n") {
		line = strings.TrimRight(line, "\r")
		if strings.TrimSpace(line) == "" {
			continue
		}
		lines = append(lines, line)
		if len(lines) == n {
			break
		}
	}
	return lines
}
