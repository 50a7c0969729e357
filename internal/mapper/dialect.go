package mapper

import (
	"strconv"
	"time"
)

// Dialect captures the per-engine differences the builder has to respect
type Dialect struct {
	Name string

	// Placeholder renders the n-th (1-based) bind parameter
	Placeholder func(n int) string

	// UpperIdentifiers standardizes table and column names to uppercase
	UpperIdentifiers bool

	// Returning means the generated id is read with INSERT ... RETURNING <pk>
	// instead of the driver's LastInsertId
	Returning bool

	// FirstSkip renders pagination as SELECT FIRST n SKIP m (Firebird)
	FirstSkip bool

	// UnboundedLimit is the LIMIT literal used when only an offset is given
	UnboundedLimit string

	// FormatValue converts Go values the engine cannot bind natively. Nil means passthrough
	FormatValue func(any) any
}

func questionMark(int) string { return "?" }

func dollar(n int) string { return "$" + strconv.Itoa(n) }

var (
	Postgres = Dialect{
		Name:           "postgres",
		Placeholder:    dollar,
		Returning:      true,
		UnboundedLimit: "ALL",
	}

	// Firebird 2.5 has no BOOLEAN type and is case-sensitive for quoted names
	Firebird = Dialect{
		Name:             "firebird",
		Placeholder:      questionMark,
		UpperIdentifiers: true,
		Returning:        true,
		FirstSkip:        true,
		FormatValue:      formatFirebirdValue,
	}

	SQLite = Dialect{
		Name:           "sqlite",
		Placeholder:    questionMark,
		UnboundedLimit: "-1",
	}
)

// formatFirebirdValue handles type conversion for Firebird 2.5 specificities
func formatFirebirdValue(v any) any {
	switch val := v.(type) {
	case bool:
		if val {
			return 1
		}
		return 0
	case time.Time:
		// TIMESTAMP columns carry no zone; instants are stored in UTC
		return val.UTC().Format("2006-01-02 15:04:05")
	default:
		return val
	}
}
