package engine

// Table is a tabular step argument: a header of column names and rows of
// string cells. Row width is not checked against the header.
type Table struct {
	columns []string
	rows    [][]string
}

// NewTable creates a table with the given columns.
func NewTable(columns ...string) *Table {
	return &Table{columns: append([]string(nil), columns...)}
}

// AddColumn appends a column name.
func (t *Table) AddColumn(name string) {
	t.columns = append(t.columns, name)
}

// AddRow appends a row of cells.
func (t *Table) AddRow(cells []string) {
	t.rows = append(t.rows, append([]string(nil), cells...))
}

// Columns returns the column names in order.
func (t *Table) Columns() []string { return t.columns }

// Rows returns the data rows in order.
func (t *Table) Rows() [][]string { return t.rows }

// Hashes returns each row as a column → cell map. Cells past the last column
// are dropped; missing cells map to "".
func (t *Table) Hashes() []map[string]string {
	out := make([]map[string]string, 0, len(t.rows))
	for _, row := range t.rows {
		h := make(map[string]string, len(t.columns))
		for i, col := range t.columns {
			if i < len(row) {
				h[col] = row[i]
			} else {
				h[col] = ""
			}
		}
		out = append(out, h)
	}
	return out
}

// Arg is one positional invoke argument: either a string or a table.
type Arg struct {
	Value string
	Table *Table
}

// IsTable reports whether the argument is a table.
func (a Arg) IsTable() bool { return a.Table != nil }

// InvokeArgs are the positional arguments of one step invocation.
//
// Every table-shaped argument writes into the same table, which sits at the
// position of the first one.
type InvokeArgs struct {
	args  []Arg
	table *Table
}

// AddArg appends a positional string argument.
func (a *InvokeArgs) AddArg(s string) {
	a.args = append(a.args, Arg{Value: s})
}

// TableArg returns the shared table argument, creating it in place on first use.
func (a *InvokeArgs) TableArg() *Table {
	if a.table == nil {
		a.table = &Table{}
		a.args = append(a.args, Arg{Table: a.table})
	}
	return a.table
}

// Table returns the shared table argument, or nil when none was given.
func (a *InvokeArgs) Table() *Table {
	if a == nil {
		return nil
	}
	return a.table
}

// Len returns the number of positional arguments.
func (a *InvokeArgs) Len() int {
	if a == nil {
		return 0
	}
	return len(a.args)
}

// At returns the i-th positional argument.
func (a *InvokeArgs) At(i int) Arg { return a.args[i] }

// Strings returns the string arguments in order, skipping the table.
func (a *InvokeArgs) Strings() []string {
	if a == nil {
		return nil
	}
	out := make([]string, 0, len(a.args))
	for _, arg := range a.args {
		if !arg.IsTable() {
			out = append(out, arg.Value)
		}
	}
	return out
}
