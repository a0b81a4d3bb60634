package core

import (
	"fmt"
	"strings"
)

// WhereBuilder assembles a parameterized WHERE clause for PostgreSQL.
// Placeholders are numbered in the order conditions are added, so
// NextArgIndex can be used for trailing LIMIT/OFFSET arguments.
type WhereBuilder struct {
	conditions []string
	args       []any
	argIndex   int
}

// NewWhereBuilder returns an empty builder whose first placeholder is $1.
func NewWhereBuilder() *WhereBuilder {
	return &WhereBuilder{argIndex: 1}
}

// Add appends "col = $n". Empty values are skipped so optional filters can
// be passed through unconditionally.
func (wb *WhereBuilder) Add(col, val string) {
	if val == "" {
		return
	}
	wb.AddOp(col, "=", val)
}

// AddOp appends "col op $n" with val as the argument.
func (wb *WhereBuilder) AddOp(col, op string, val any) {
	wb.conditions = append(wb.conditions, fmt.Sprintf("%s %s $%d", col, op, wb.argIndex))
	wb.args = append(wb.args, val)
	wb.argIndex++
}

// AddTimestampRange appends an inclusive range on col.
func (wb *WhereBuilder) AddTimestampRange(col string, start, end any) {
	wb.AddOp(col, ">=", start)
	wb.AddOp(col, "<=", end)
}

// NextArgIndex returns the number of the next placeholder.
func (wb *WhereBuilder) NextArgIndex() int {
	return wb.argIndex
}

// Build returns the clause, prefixed with " WHERE ", and its arguments.
// With no conditions it returns "" and nil.
func (wb *WhereBuilder) Build() (string, []any) {
	if len(wb.conditions) == 0 {
		return "", nil
	}
	return " WHERE " + strings.Join(wb.conditions, " AND "), wb.args
}
