package warehouse

import (
	"fmt"
	"strings"
)

// DataSourceError indicates a source file or directory is missing or
// unreadable. It is fatal to the load that encountered it.
type DataSourceError struct {
	Path string
	Err  error
}

func (e *DataSourceError) Error() string {
	return fmt.Sprintf("data source %s: %v", e.Path, e.Err)
}

func (e *DataSourceError) Unwrap() error {
	return e.Err
}

// SchemaError indicates a structural mismatch: one or more required columns
// are entirely absent from a source table. Data-quality problems inside
// present columns are the validator's concern, not a SchemaError.
type SchemaError struct {
	Table   string
	Columns []string
}

func (e *SchemaError) Error() string {
	return fmt.Sprintf("table %s: required columns missing: %s",
		e.Table, strings.Join(e.Columns, ", "))
}
