package query

import (
	"fmt"
	"strings"
	"time"
)

// Filter carries the optional list filters. A nil field contributes no
// condition, so an all-nil Filter compiles to the identity predicate.
type Filter struct {
	Name          *string
	AgeGt         *int
	AgeLt         *int
	CreatedAfter  *time.Time
	CreatedBefore *time.Time
}

// Predicate is the conjunction of the filter's conditions, expressed as
// SQL fragments with sequential positional args ($1..$n).
type Predicate struct {
	conds []string
	args  []any
}

// Predicate compiles the filter. Comparisons are strict (> and <, never
// >=/<=); the name condition is a case-insensitive substring match on
// the trimmed term.
func (f Filter) Predicate() Predicate {
	var p Predicate
	if f.Name != nil {
		if name := strings.TrimSpace(*f.Name); name != "" {
			p.add("name ILIKE '%%' || $%d || '%%'", name)
		}
	}
	if f.AgeGt != nil {
		p.add("age > $%d", *f.AgeGt)
	}
	if f.AgeLt != nil {
		p.add("age < $%d", *f.AgeLt)
	}
	if f.CreatedAfter != nil {
		p.add("created_at > $%d", *f.CreatedAfter)
	}
	if f.CreatedBefore != nil {
		p.add("created_at < $%d", *f.CreatedBefore)
	}
	return p
}

func (p *Predicate) add(cond string, arg any) {
	p.args = append(p.args, arg)
	p.conds = append(p.conds, fmt.Sprintf(cond, len(p.args)))
}

func (p Predicate) Empty() bool { return len(p.conds) == 0 }

// Where returns a leading " WHERE ..." clause, or "" for the identity
// predicate so the query degrades to an unfiltered scan.
func (p Predicate) Where() string {
	if p.Empty() {
		return ""
	}
	return " WHERE " + strings.Join(p.conds, " AND ")
}

// Args returns the positional arguments matching the Where clause.
// Further placeholders in the same statement continue at NextArg.
func (p Predicate) Args() []any { return p.args }

func (p Predicate) NextArg() int { return len(p.args) + 1 }
