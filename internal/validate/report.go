package validate

import "time"

// Severity grades a finding. Error findings mean the numbers downstream
// pipelines produce cannot be trusted; warnings mean they can, with caveats.
type Severity string

const (
	SeverityInfo    Severity = "info"
	SeverityWarning Severity = "warning"
	SeverityError   Severity = "error"
)

// Finding is one data-quality observation. Findings describe the data, they
// are never raised as Go errors: a snapshot with findings still loads and
// still serves queries.
type Finding struct {
	Check    string   `json:"check"`
	Table    string   `json:"table"`
	Severity Severity `json:"severity"`
	Message  string   `json:"message"`
	Count    int64    `json:"count"`
}

// ColumnRate is one required column's non-null share within its table.
type ColumnRate struct {
	Column         string  `json:"column"`
	NonNullPercent float64 `json:"non_null_percent"`
}

// TableSummary profiles one loaded table: its row count and the non-null
// rate of every required column. Summaries are reported unconditionally,
// findings or not.
type TableSummary struct {
	Table   string       `json:"table"`
	Rows    int64        `json:"rows"`
	Columns []ColumnRate `json:"columns,omitempty"`
}

// Report is the outcome of one validation run over a loaded snapshot.
type Report struct {
	StartedAt time.Time      `json:"started_at"`
	Duration  time.Duration  `json:"duration"`
	Checks    int            `json:"checks"`
	Tables    []TableSummary `json:"tables"`
	Findings  []Finding      `json:"findings"`
}

// Passed reports whether the run produced no error-severity findings.
func (r *Report) Passed() bool {
	return r.CountBySeverity(SeverityError) == 0
}

// CountBySeverity returns how many findings carry the given severity.
func (r *Report) CountBySeverity(s Severity) int {
	n := 0
	for _, f := range r.Findings {
		if f.Severity == s {
			n++
		}
	}
	return n
}
