// Package eprime defines the core data structures for E-Prime log conversion.
package eprime

// TabularData is an ordered table of string-valued cells. Columns holds the
// global column order (first-seen order unless rearranged by SortColumns);
// each row maps column name to cell text.
type TabularData struct {
	Columns []string
	Rows    []map[string]string

	seen map[string]bool
}

// NewTabularData creates an empty table.
func NewTabularData() *TabularData {
	return &TabularData{seen: make(map[string]bool)}
}

// AddColumn registers a column name, preserving first-seen order.
// Re-registering a known name is a no-op.
func (t *TabularData) AddColumn(name string) {
	if t.seen == nil {
		t.seen = make(map[string]bool)
		for _, c := range t.Columns {
			t.seen[c] = true
		}
	}
	if t.seen[name] {
		return
	}
	t.seen[name] = true
	t.Columns = append(t.Columns, name)
}

// AddRow appends a row, registering any columns not seen before. keys gives
// the row's own key order; pass nil to register in map iteration order.
func (t *TabularData) AddRow(row map[string]string, keys []string) {
	if keys == nil {
		for k := range row {
			keys = append(keys, k)
		}
	}
	for _, k := range keys {
		t.AddColumn(k)
	}
	t.Rows = append(t.Rows, row)
}

// Value returns the cell at row i, column name, or "" when the row has no
// such cell.
func (t *TabularData) Value(i int, name string) string {
	if i < 0 || i >= len(t.Rows) {
		return ""
	}
	return t.Rows[i][name]
}

// SortColumns rearranges the column order: names listed in order come first,
// in the given order; remaining columns keep their relative order. Names not
// present in the table are ignored.
func (t *TabularData) SortColumns(order []string) {
	if t.seen == nil {
		t.seen = make(map[string]bool)
		for _, c := range t.Columns {
			t.seen[c] = true
		}
	}
	var sorted []string
	picked := make(map[string]bool)
	for _, name := range order {
		if t.seen[name] && !picked[name] {
			picked[name] = true
			sorted = append(sorted, name)
		}
	}
	for _, name := range t.Columns {
		if !picked[name] {
			sorted = append(sorted, name)
		}
	}
	t.Columns = sorted
}

// Append adds all rows of other to t, merging column sets. Used when several
// input files are concatenated into one output table.
func (t *TabularData) Append(other *TabularData) {
	for _, row := range other.Rows {
		t.AddRow(row, other.Columns)
	}
}
