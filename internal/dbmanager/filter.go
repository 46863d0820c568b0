package dbmanager

import (
	"sort"
	"strings"

	"github.com/tablekit/tablekit/internal/dberr"
	"github.com/tablekit/tablekit/internal/dialect"
)

// Cond is one AND-group of equality conditions: every key must equal its
// value for a row to match.
type Cond map[string]any

// Filter selects rows as the logical OR of its conditions. A filter with
// one Cond is a plain AND of equalities; multiple Conds match rows
// satisfying any of them.
type Filter []Cond

// Where builds a single-condition filter.
func Where(c Cond) Filter {
	return Filter{c}
}

// Empty reports whether the filter constrains nothing.
func (f Filter) Empty() bool {
	for _, c := range f {
		if len(c) > 0 {
			return false
		}
	}
	return true
}

// whereSQL renders the filter as a WHERE clause with ? bind variables,
// to be rebound per dialect. An empty filter yields an empty clause.
// Column keys are sorted so generated SQL is deterministic.
func (m *Manager) whereSQL(op string, f Filter) (string, []any, *dberr.Error) {
	if f.Empty() {
		return "", nil, nil
	}

	groups := make([]string, 0, len(f))
	var args []any
	for _, cond := range f {
		if len(cond) == 0 {
			continue
		}
		keys := make([]string, 0, len(cond))
		for k := range cond {
			if !dialect.ValidIdent(k) {
				return "", nil, dberr.Newf(dberr.Data, op, "invalid column name %q in filter", k)
			}
			keys = append(keys, k)
		}
		sort.Strings(keys)

		terms := make([]string, 0, len(keys))
		for _, k := range keys {
			terms = append(terms, m.d.QuoteIdent(k)+" = ?")
			args = append(args, cond[k])
		}
		groups = append(groups, "("+strings.Join(terms, " AND ")+")")
	}

	return " WHERE " + strings.Join(groups, " OR "), args, nil
}
