package report

import (
	"fmt"
	"io"
	"strings"
)

// table renders fixed-width columns with a dashed header rule. Column
// widths are chosen by the caller; values wider than their column are
// not truncated, only misaligned.
type table struct {
	w    io.Writer
	cols []column
}

type column struct {
	name  string
	width int
	// precision applies to float values; -1 renders integers.
	precision int
}

func newTable(w io.Writer) *table {
	return &table{w: w}
}

func (t *table) addColumn(name string, width int) {
	if width < len(name) {
		width = len(name)
	}
	t.cols = append(t.cols, column{name: name, width: width, precision: -1})
}

func (t *table) addFloatColumn(name string, width, precision int) {
	if width < len(name) {
		width = len(name)
	}
	t.cols = append(t.cols, column{name: name, width: width, precision: precision})
}

func (t *table) printHeader() {
	parts := make([]string, len(t.cols))
	rules := make([]string, len(t.cols))
	for i, c := range t.cols {
		parts[i] = fmt.Sprintf("%-*s", c.width, c.name)
		rules[i] = strings.Repeat("-", c.width)
	}
	fmt.Fprintln(t.w, strings.Join(parts, "  "))
	fmt.Fprintln(t.w, strings.Join(rules, "  "))
}

func (t *table) printRow(values ...any) {
	parts := make([]string, 0, len(values))
	for i, v := range values {
		c := t.cols[i]
		switch val := v.(type) {
		case string:
			parts = append(parts, fmt.Sprintf("%-*s", c.width, val))
		case float64:
			precision := c.precision
			if precision < 0 {
				precision = 3
			}
			parts = append(parts, fmt.Sprintf("%*.*f", c.width, precision, val))
		default:
			parts = append(parts, fmt.Sprintf("%*v", c.width, val))
		}
	}
	fmt.Fprintln(t.w, strings.Join(parts, "  "))
}
