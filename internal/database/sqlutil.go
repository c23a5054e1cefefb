package database

import (
	"database/sql"
	"strconv"
	"strings"
)

// InClause returns a "$n,$n+1,..." placeholder list starting at $start and
// the matching bound arguments. An empty slice yields "NULL" so that
// "x IN (NULL)" matches nothing on every dialect.
func InClause(values []int64, start int) (string, []any) {
	if len(values) == 0 {
		return "NULL", nil
	}
	var sb strings.Builder
	args := make([]any, len(values))
	for i, v := range values {
		if i > 0 {
			sb.WriteByte(',')
		}
		sb.WriteByte('$')
		sb.WriteString(strconv.Itoa(start + i))
		args[i] = v
	}
	return sb.String(), args
}

// BoolInt converts a flag to the 0/1 form stored in SMALLINT columns.
func BoolInt(b bool) int {
	if b {
		return 1
	}
	return 0
}

// FloatPtr converts a nullable column into a pointer.
func FloatPtr(n sql.NullFloat64) *float64 {
	if !n.Valid {
		return nil
	}
	v := n.Float64
	return &v
}

// NullFloat is the inverse of FloatPtr.
func NullFloat(p *float64) sql.NullFloat64 {
	if p == nil {
		return sql.NullFloat64{}
	}
	return sql.NullFloat64{Float64: *p, Valid: true}
}
