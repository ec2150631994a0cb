package eprime

import (
	"fmt"
	"sort"
	"strconv"
	"strings"
)

// sorterName is the internal computed column producing each row's numeric
// sort key. It is never part of the public column list.
const sorterName = "sorter"

// column is the closed set of column kinds a ColumnCalculator composes:
// data, computed, copydown and counter columns. path carries the chain of
// in-progress column names for the current row, for cycle detection.
type column interface {
	name() string
	compute(row *Row, path []string) (string, error)
}

// statefulColumn is implemented by column kinds carrying running state
// across rows. Their state is rewound whenever the row realization is
// rebuilt, so a rebuild replays the table from scratch.
type statefulColumn interface {
	resetState()
}

// dataColumn returns the row's stored value for its name.
type dataColumn struct {
	colName string
}

func (c *dataColumn) name() string { return c.colName }

func (c *dataColumn) compute(row *Row, path []string) (string, error) {
	v, _ := row.stored(c.colName)
	return v, nil
}

// computedColumn evaluates an expression, substituting the computed string
// value of every referenced column.
type computedColumn struct {
	colName string
	expr    Expression
	cc      *ColumnCalculator
}

func (c *computedColumn) name() string { return c.colName }

func (c *computedColumn) compute(row *Row, path []string) (string, error) {
	// A literal value stored in the row under this name short-circuits
	// evaluation, supporting static columns with no cross-references.
	if v, ok := row.stored(c.colName); ok {
		return v, nil
	}
	return c.computeWithoutCheck(row, path)
}

// computeWithoutCheck evaluates the expression unconditionally, skipping the
// stored-value shortcut. The sorter column always goes through here.
func (c *computedColumn) computeWithoutCheck(row *Row, path []string) (string, error) {
	for _, name := range path {
		if name == c.colName {
			return "", &ComputationError{Msg: "column " + c.colName + " contains a loop"}
		}
	}
	chain := make([]string, 0, len(path)+1)
	chain = append(chain, path...)
	chain = append(chain, c.colName)

	text := c.expr.String()
	for _, ref := range c.expr.Columns() {
		col, ok := c.cc.findColumn(ref)
		if !ok {
			return "", &ColumnNotFoundError{Column: ref}
		}
		val, err := row.cellOf(col, chain)
		if err != nil {
			return "", err
		}
		if val == "" {
			val = "0"
		}
		text = strings.ReplaceAll(text, "{"+ref+"}", val)
	}
	return c.cc.calc.Compute(text)
}

// copydownColumn carries the last non-blank value of a source column forward
// across rows. Stateful: rows must be walked strictly in order.
type copydownColumn struct {
	colName string
	source  string
	cc      *ColumnCalculator
	carry   string
}

func (c *copydownColumn) name() string { return c.colName }

func (c *copydownColumn) compute(row *Row, path []string) (string, error) {
	for _, name := range path {
		if name == c.colName {
			return "", &ComputationError{Msg: "column " + c.colName + " contains a loop"}
		}
	}
	col, ok := c.cc.findColumn(c.source)
	if !ok {
		return "", &ColumnNotFoundError{Column: c.source}
	}
	chain := make([]string, 0, len(path)+1)
	chain = append(chain, path...)
	chain = append(chain, c.colName)
	v, err := row.cellOf(col, chain)
	if err != nil {
		return "", err
	}
	if v != "" {
		c.carry = v
	}
	return c.carry, nil
}

func (c *copydownColumn) resetState() { c.carry = "" }

// CounterOptions configures a counter column. Zero values give a counter
// that starts at 0 and increments by one on every row, never resetting.
type CounterOptions struct {
	// Start is the value the counter holds before any row advances it, and
	// the value it returns to when ResetWhen fires.
	Start float64
	// CountBy advances the counter. Nil increments by one.
	CountBy func(float64) float64
	// CountWhen gates advancing. Nil counts on every row.
	CountWhen func(*Row) bool
	// ResetWhen resets the counter to Start before the row's optional
	// advance. Nil never resets.
	ResetWhen func(*Row) bool
}

// CountByDelta returns a CountBy function advancing by a fixed delta.
func CountByDelta(d float64) func(float64) float64 {
	return func(v float64) float64 { return v + d }
}

// counterColumn maintains running state advanced or reset per row.
// Stateful: rows must be walked strictly in order.
type counterColumn struct {
	colName    string
	opts       CounterOptions
	value      float64
	evaluating bool
}

func (c *counterColumn) name() string { return c.colName }

// compute refuses reentry: predicates receive the row and may read any cell
// through it, including this counter's own, which is not memoized until
// compute returns and would otherwise recurse without bound.
func (c *counterColumn) compute(row *Row, path []string) (string, error) {
	if c.evaluating {
		return "", &ComputationError{Msg: "column " + c.colName + " contains a loop"}
	}
	c.evaluating = true
	defer func() { c.evaluating = false }()

	if c.opts.ResetWhen != nil && c.opts.ResetWhen(row) {
		c.value = c.opts.Start
	}
	if c.opts.CountWhen == nil || c.opts.CountWhen(row) {
		if c.opts.CountBy != nil {
			c.value = c.opts.CountBy(c.value)
		} else {
			c.value++
		}
	}
	return strconv.FormatFloat(c.value, 'f', -1, 64), nil
}

func (c *counterColumn) resetState() { c.value = c.opts.Start }

// ColumnCalculator composes a data source with derived columns into an
// evaluable table. The unified column order is data columns first, then
// computed, copydown and counter columns, in declaration order within each
// kind.
type ColumnCalculator struct {
	calc Calculator
	data *TabularData

	dataCols  []column
	computed  []column
	copydowns []column
	counters  []column

	columns []column
	index   map[string]int

	sorter *computedColumn
	rows   []*Row
}

// NewColumnCalculator creates a calculator with no data and a default sort
// key of 1 for every row.
func NewColumnCalculator() *ColumnCalculator {
	c := &ColumnCalculator{calc: NewCalculator()}
	c.sorter = &computedColumn{colName: sorterName, expr: ParseExpression("1"), cc: c}
	c.rebuild()
	return c
}

// SetData wraps each column of data as a data column and rebuilds the
// unified column list.
func (c *ColumnCalculator) SetData(data *TabularData) {
	c.data = data
	c.dataCols = c.dataCols[:0]
	for _, name := range data.Columns {
		c.dataCols = append(c.dataCols, &dataColumn{colName: name})
	}
	c.rebuild()
}

// ComputedColumn registers a derived column evaluating exprText per row.
// The expression may reference columns that do not exist yet; a missing
// reference surfaces on evaluation, not here. A name colliding with any
// existing column fails with ComputationError.
func (c *ColumnCalculator) ComputedColumn(name, exprText string) error {
	if err := c.checkName(name); err != nil {
		return err
	}
	c.computed = append(c.computed, &computedColumn{colName: name, expr: ParseExpression(exprText), cc: c})
	c.rebuild()
	return nil
}

// CopydownColumn registers a derived column carrying forward the last
// non-blank value of the source column.
func (c *ColumnCalculator) CopydownColumn(name, source string) error {
	if err := c.checkName(name); err != nil {
		return err
	}
	c.copydowns = append(c.copydowns, &copydownColumn{colName: name, source: source, cc: c})
	c.rebuild()
	return nil
}

// CounterColumn registers a stateful counter column.
func (c *ColumnCalculator) CounterColumn(name string, opts CounterOptions) error {
	if err := c.checkName(name); err != nil {
		return err
	}
	c.counters = append(c.counters, &counterColumn{colName: name, opts: opts, value: opts.Start})
	c.rebuild()
	return nil
}

// SortExpression sets the expression producing each row's numeric sort key.
func (c *ColumnCalculator) SortExpression(exprText string) {
	c.sorter.expr = ParseExpression(exprText)
	c.rows = nil
}

func (c *ColumnCalculator) checkName(name string) error {
	if _, exists := c.index[name]; exists {
		return &ComputationError{Msg: "duplicate column name " + name}
	}
	return nil
}

func (c *ColumnCalculator) rebuild() {
	c.columns = c.columns[:0]
	c.columns = append(c.columns, c.dataCols...)
	c.columns = append(c.columns, c.computed...)
	c.columns = append(c.columns, c.copydowns...)
	c.columns = append(c.columns, c.counters...)
	c.index = make(map[string]int, len(c.columns))
	for i, col := range c.columns {
		if _, dup := c.index[col.name()]; !dup {
			c.index[col.name()] = i
		}
	}
	c.rows = nil
}

// Columns returns the unified column names in evaluation order.
func (c *ColumnCalculator) Columns() []string {
	out := make([]string, len(c.columns))
	for i, col := range c.columns {
		out[i] = col.name()
	}
	return out
}

// ColumnIndex resolves a column position from either an integer position or
// a column name. Unknown names and out-of-range positions report not found
// rather than failing.
func (c *ColumnCalculator) ColumnIndex(id any) (int, bool) {
	switch v := id.(type) {
	case int:
		if v >= 0 && v < len(c.columns) {
			return v, true
		}
	case string:
		if i, ok := c.index[v]; ok {
			return i, true
		}
	}
	return 0, false
}

func (c *ColumnCalculator) findColumn(name string) (column, bool) {
	i, ok := c.index[name]
	if !ok {
		return nil, false
	}
	return c.columns[i], true
}

// Rows realizes the table on first access: one Row per data record, with
// copydown and counter cells forced strictly in row order so their running
// state stays coherent. Computed cells stay lazy per row.
func (c *ColumnCalculator) Rows() ([]*Row, error) {
	if c.rows != nil {
		return c.rows, nil
	}
	var rows []*Row
	if c.data != nil {
		rows = make([]*Row, 0, len(c.data.Rows))
		for _, stored := range c.data.Rows {
			rows = append(rows, &Row{cc: c, data: stored, memo: make([]*string, len(c.columns))})
		}
	}
	statefulStart := len(c.dataCols) + len(c.computed)
	for i := statefulStart; i < len(c.columns); i++ {
		if s, ok := c.columns[i].(statefulColumn); ok {
			s.resetState()
		}
	}
	for _, r := range rows {
		for i := statefulStart; i < len(c.columns); i++ {
			if _, err := r.at(i, nil); err != nil {
				return nil, err
			}
		}
		key, err := c.sorter.computeWithoutCheck(r, nil)
		if err != nil {
			return nil, err
		}
		if key == "" {
			key = "0"
		}
		f, err := strconv.ParseFloat(key, 64)
		if err != nil {
			return nil, &ExpressionError{Expr: c.sorter.expr.String(), Msg: "sort key is not numeric: " + key}
		}
		r.sortKey = f
	}
	c.rows = rows
	return c.rows, nil
}

// Row returns the i-th realized row, triggering realization on first
// access.
func (c *ColumnCalculator) Row(i int) (*Row, error) {
	rows, err := c.Rows()
	if err != nil {
		return nil, err
	}
	if i < 0 || i >= len(rows) {
		return nil, fmt.Errorf("row %d out of range (%d rows)", i, len(rows))
	}
	return rows[i], nil
}

// Each yields every realized row in order, stopping on the first error
// returned by fn.
func (c *ColumnCalculator) Each(fn func(*Row) error) error {
	rows, err := c.Rows()
	if err != nil {
		return err
	}
	for _, r := range rows {
		if err := fn(r); err != nil {
			return err
		}
	}
	return nil
}

// SortedRows returns the realized rows ordered by sort key. The sort is
// stable, so rows with equal keys keep their original order.
func (c *ColumnCalculator) SortedRows() ([]*Row, error) {
	rows, err := c.Rows()
	if err != nil {
		return nil, err
	}
	out := make([]*Row, len(rows))
	copy(out, rows)
	sort.SliceStable(out, func(i, j int) bool { return out[i].sortKey < out[j].sortKey })
	return out, nil
}

// ToTabularData forces every cell of every row and returns the result as a
// plain table, ready for a writer.
func (c *ColumnCalculator) ToTabularData() (*TabularData, error) {
	rows, err := c.Rows()
	if err != nil {
		return nil, err
	}
	names := c.Columns()
	out := NewTabularData()
	for _, name := range names {
		out.AddColumn(name)
	}
	for _, r := range rows {
		cells := make(map[string]string, len(names))
		for _, name := range names {
			v, err := r.Get(name)
			if err != nil {
				return nil, err
			}
			cells[name] = v
		}
		out.AddRow(cells, names)
	}
	return out, nil
}

// Row is one record under evaluation: the stored data cells plus a lazily
// filled memo of computed cells indexed by column position, and a numeric
// sort key.
type Row struct {
	cc      *ColumnCalculator
	data    map[string]string
	memo    []*string
	sortKey float64
}

func (r *Row) stored(name string) (string, bool) {
	v, ok := r.data[name]
	return v, ok
}

// Get returns the cell for the named column, computing it on first access.
// Unknown names fail with ColumnNotFoundError.
func (r *Row) Get(name string) (string, error) {
	i, ok := r.cc.index[name]
	if !ok {
		return "", &ColumnNotFoundError{Column: name}
	}
	return r.at(i, nil)
}

// At returns the cell at column position i. Out-of-range positions fail
// with ColumnNotFoundError.
func (r *Row) At(i int) (string, error) {
	if i < 0 || i >= len(r.cc.columns) {
		return "", &ColumnNotFoundError{Column: "#" + strconv.Itoa(i)}
	}
	return r.at(i, nil)
}

// SortKey returns the row's numeric sort key, produced by the calculator's
// sort expression during realization.
func (r *Row) SortKey() float64 { return r.sortKey }

func (r *Row) at(i int, path []string) (string, error) {
	if r.memo[i] != nil {
		return *r.memo[i], nil
	}
	v, err := r.cc.columns[i].compute(r, path)
	if err != nil {
		return "", err
	}
	r.memo[i] = &v
	return v, nil
}

// cellOf resolves a cell through the memo when the column is registered,
// falling back to direct computation otherwise.
func (r *Row) cellOf(col column, path []string) (string, error) {
	if i, ok := r.cc.index[col.name()]; ok {
		return r.at(i, path)
	}
	return col.compute(r, path)
}
