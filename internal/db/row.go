package db

import (
	"fmt"
	"sort"
	"strconv"
	"time"

	"github.com/Guizzs26/watch-crm/internal/mapper"
)

type (
	Filter = mapper.Filter
	Order  = mapper.Order
	Query  = mapper.Query
)

var (
	Eq      = mapper.Eq
	Ne      = mapper.Ne
	Lt      = mapper.Lt
	Lte     = mapper.Lte
	Gt      = mapper.Gt
	Gte     = mapper.Gte
	Like    = mapper.Like
	In      = mapper.In
	IsNull  = mapper.IsNull
	NotNull = mapper.NotNull
	Asc     = mapper.Asc
	Desc    = mapper.Desc
)

// Row maps column names to scalar values (string, int64, float64, bool, time.Time or nil).
// Column names read back from the store are always lowercase
type Row map[string]any

// Columns returns the column names in sorted order
func (r Row) Columns() []string {
	cols := make([]string, 0, len(r))
	for k := range r {
		cols = append(cols, k)
	}
	sort.Strings(cols)
	return cols
}

func (r Row) String(col string) string {
	switch v := r[col].(type) {
	case nil:
		return ""
	case string:
		return v
	case []byte:
		return string(v)
	default:
		return fmt.Sprint(v)
	}
}

func (r Row) Int64(col string) int64 {
	switch v := r[col].(type) {
	case int64:
		return v
	case int:
		return int64(v)
	case int32:
		return int64(v)
	case float64:
		return int64(v)
	case string:
		i, _ := strconv.ParseInt(v, 10, 64)
		return i
	case bool:
		if v {
			return 1
		}
	}
	return 0
}

func (r Row) Float64(col string) float64 {
	switch v := r[col].(type) {
	case float64:
		return v
	case float32:
		return float64(v)
	case int64:
		return float64(v)
	case int:
		return float64(v)
	case string:
		f, _ := strconv.ParseFloat(v, 64)
		return f
	}
	return 0
}

// Bool accepts native booleans and the 0/1 integers Firebird stores them as
func (r Row) Bool(col string) bool {
	switch v := r[col].(type) {
	case bool:
		return v
	case int64:
		return v != 0
	case string:
		b, _ := strconv.ParseBool(v)
		return b
	}
	return false
}

// Time returns nil for NULL or unparseable values
func (r Row) Time(col string) *time.Time {
	switch v := r[col].(type) {
	case time.Time:
		return &v
	case string:
		for _, layout := range []string{time.RFC3339Nano, "2006-01-02 15:04:05", "2006-01-02"} {
			if t, err := time.Parse(layout, v); err == nil {
				return &t
			}
		}
	}
	return nil
}
