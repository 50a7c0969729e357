package mapper

// Op is the closed set of comparison operators a Filter may use
type Op string

const (
	OpEq      Op = "="
	OpNe      Op = "<>"
	OpLt      Op = "<"
	OpLte     Op = "<="
	OpGt      Op = ">"
	OpGte     Op = ">="
	OpLike    Op = "LIKE"
	OpIn      Op = "IN"
	OpIsNull  Op = "IS NULL"
	OpNotNull Op = "IS NOT NULL"
)

func (o Op) valid() bool {
	switch o {
	case OpEq, OpNe, OpLt, OpLte, OpGt, OpGte, OpLike, OpIn, OpIsNull, OpNotNull:
		return true
	}
	return false
}

// unary operators take no bound value
func (o Op) unary() bool {
	return o == OpIsNull || o == OpNotNull
}

// Filter is a single "column op value" predicate. A list of filters is AND-ed.
// Value is always bound as a parameter, never interpolated
type Filter struct {
	Column string
	Op     Op
	Value  any
}

func Eq(column string, value any) Filter  { return Filter{Column: column, Op: OpEq, Value: value} }
func Ne(column string, value any) Filter  { return Filter{Column: column, Op: OpNe, Value: value} }
func Lt(column string, value any) Filter  { return Filter{Column: column, Op: OpLt, Value: value} }
func Lte(column string, value any) Filter { return Filter{Column: column, Op: OpLte, Value: value} }
func Gt(column string, value any) Filter  { return Filter{Column: column, Op: OpGt, Value: value} }
func Gte(column string, value any) Filter { return Filter{Column: column, Op: OpGte, Value: value} }

func Like(column string, pattern string) Filter {
	return Filter{Column: column, Op: OpLike, Value: pattern}
}

// In matches any of values. An empty list matches nothing
func In(column string, values ...any) Filter {
	return Filter{Column: column, Op: OpIn, Value: values}
}

func IsNull(column string) Filter  { return Filter{Column: column, Op: OpIsNull} }
func NotNull(column string) Filter { return Filter{Column: column, Op: OpNotNull} }

type Order struct {
	Column string
	Desc   bool
}

func Asc(column string) Order  { return Order{Column: column} }
func Desc(column string) Order { return Order{Column: column, Desc: true} }

// Query describes a SELECT. The zero value selects every row in store order
type Query struct {
	Where   []Filter
	OrderBy []Order
	Limit   int
	Offset  int
}
