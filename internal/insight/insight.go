// Package insight implements the four business-question pipelines over a
// loaded warehouse snapshot. Every pipeline is a pure function of the
// snapshot and its filter parameters: no pipeline retains state across
// invocations, so concurrent queries against the same snapshot are safe.
package insight

import (
	"strings"
	"time"
)

// DateRange bounds a query. Both bounds are inclusive; a zero time leaves
// that side unbounded.
type DateRange struct {
	Start time.Time
	End   time.Time
}

// Filter is the parameter set shared by every pipeline.
type Filter struct {
	Dates DateRange
	// StoreIDs restricts the query to a store subset. Empty means all
	// stores in the loaded snapshot.
	StoreIDs []string
}

// where builds the shared filter predicate against the given (possibly
// qualified) date and store-id columns, returning the SQL fragment (each
// condition prefixed with AND) and its arguments.
func (f Filter) where(dateCol, storeCol string) (string, []any) {
	var sb strings.Builder
	var args []any

	if !f.Dates.Start.IsZero() {
		sb.WriteString(" AND " + dateCol + " >= ?")
		args = append(args, f.Dates.Start)
	}
	if !f.Dates.End.IsZero() {
		sb.WriteString(" AND " + dateCol + " <= ?")
		args = append(args, f.Dates.End)
	}
	if len(f.StoreIDs) > 0 {
		sb.WriteString(" AND " + storeCol + " IN (" + placeholders(len(f.StoreIDs)) + ")")
		for _, id := range f.StoreIDs {
			args = append(args, id)
		}
	}
	return sb.String(), args
}

func placeholders(n int) string {
	return strings.TrimSuffix(strings.Repeat("?, ", n), ", ")
}
