package cli

import (
	"fmt"
	"io"
	"os"
	"strings"
	"text/tabwriter"
)

var flatten = strings.NewReplacer("\t", " ", "\n", " ", "\r", "")

// Table prints aligned columns. The header and its underline appear with
// the first row, so a table with no rows prints nothing.
type Table struct {
	tw      *tabwriter.Writer
	columns []string
	prefix  string
	started bool
}

// NewTable writes to stdout.
func NewTable(columns ...string) *Table {
	return NewTableTo(os.Stdout, columns...)
}

func NewTableTo(w io.Writer, columns ...string) *Table {
	return &Table{tw: tabwriter.NewWriter(w, 0, 0, 2, ' ', 0), columns: columns}
}

// WithPrefix indents every line, header included.
func (t *Table) WithPrefix(prefix string) *Table {
	t.prefix = prefix
	return t
}

// Row adds one line. Tabs and newlines inside a cell become spaces.
func (t *Table) Row(cells ...string) {
	if !t.started {
		t.started = true
		t.line(t.columns)
		rule := make([]string, len(t.columns))
		for i, c := range t.columns {
			rule[i] = strings.Repeat("-", len(c))
		}
		t.line(rule)
	}
	flat := make([]string, len(cells))
	for i, c := range cells {
		flat[i] = flatten.Replace(c)
	}
	t.line(flat)
}

func (t *Table) line(cells []string) {
	fmt.Fprintln(t.tw, t.prefix+strings.Join(cells, "\t"))
}

// Flush emits the buffered rows.
func (t *Table) Flush() {
	if t.started {
		t.tw.Flush()
	}
}

// Truncate cuts s to n runes, ending in "...".
func Truncate(s string, n int) string {
	r := []rune(s)
	if n <= 3 || len(r) <= n {
		return s
	}
	return string(r[:n-3]) + "..."
}
