package dusc

import "fmt"

// ErrDatasetFormat represents a sparse dataset whose ragged structure is
// unreadable or inconsistent with its declared shapes.
type ErrDatasetFormat struct {
	Reason string
}

func (e *ErrDatasetFormat) Error() string {
	return fmt.Sprintf("invalid sparse dataset: %s", e.Reason)
}

// ErrAllocation represents a padded event table that would exceed the
// configured memory budget.
type ErrAllocation struct {
	RequiredBytes int64
	BudgetBytes   int64
}

func (e *ErrAllocation) Error() string {
	return fmt.Sprintf("event tables need %d bytes, budget is %d bytes", e.RequiredBytes, e.BudgetBytes)
}

// ErrWindowOutOfRange represents a window outside the valid extent. It is
// recovered locally by clamping and only surfaces in logs.
type ErrWindowOutOfRange struct {
	Window RealWindow
	Scan   Shape
}

func (e *ErrWindowOutOfRange) Error() string {
	return fmt.Sprintf("real-space window %+v outside scan extent %dx%d, clamped", e.Window, e.Scan.Rows, e.Scan.Cols)
}

// ErrDimensionMismatch represents event tables whose length disagrees with
// their declared shapes. This is an integration defect, never recovered.
type ErrDimensionMismatch struct {
	Table    string
	Expected int
	Actual   int
}

func (e *ErrDimensionMismatch) Error() string {
	return fmt.Sprintf("table %q has %d entries, shapes declare %d", e.Table, e.Actual, e.Expected)
}
