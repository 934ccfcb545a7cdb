package access

import (
	"fmt"
	"strings"
)

// Filter is a declarative row predicate. A leaf compares Field to Value for
// equality; a branch combines children with AND or OR. The same Filter is
// rendered to SQL for list and by-id queries and can be evaluated in memory.
type Filter struct {
	Field string
	Value any
	And   []Filter
	Or    []Filter
}

func Equals(field string, value any) Filter {
	return Filter{Field: field, Value: value}
}

func AllOf(filters ...Filter) Filter {
	return Filter{And: filters}
}

func AnyOf(filters ...Filter) Filter {
	return Filter{Or: filters}
}

// Matches evaluates the filter against a record keyed by column name.
// Values are compared by their printed form so typed strings and differing
// integer widths compare equal.
func (f Filter) Matches(record map[string]any) bool {
	switch {
	case len(f.And) > 0:
		for _, child := range f.And {
			if !child.Matches(record) {
				return false
			}
		}
		return true
	case len(f.Or) > 0:
		for _, child := range f.Or {
			if child.Matches(record) {
				return true
			}
		}
		return false
	case f.Field == "":
		return true
	}
	v, ok := record[f.Field]
	if !ok {
		return false
	}
	return fmt.Sprint(v) == fmt.Sprint(f.Value)
}

// SQL renders the filter as a parameterised WHERE fragment.
func (f Filter) SQL() (string, []any) {
	switch {
	case len(f.And) > 0:
		return joinSQL(f.And, " AND ")
	case len(f.Or) > 0:
		return joinSQL(f.Or, " OR ")
	case f.Field == "":
		return "1 = 1", nil
	}
	return f.Field + " = ?", []any{f.Value}
}

func joinSQL(children []Filter, sep string) (string, []any) {
	parts := make([]string, 0, len(children))
	var args []any
	for _, child := range children {
		s, a := child.SQL()
		parts = append(parts, s)
		args = append(args, a...)
	}
	return "(" + strings.Join(parts, sep) + ")", args
}

func (f Filter) String() string {
	s, args := f.SQL()
	for _, a := range args {
		s = strings.Replace(s, "?", fmt.Sprintf("%q", fmt.Sprint(a)), 1)
	}
	return s
}
