package cache

import (
	"context"
	"log/slog"
	"time"

	"github.com/cairnlabs/storelens/internal/state"
	"github.com/cairnlabs/storelens/internal/validate"
)

// Recorded wraps a LoadFunc so every successful load lands in the history
// store as an epoch, with its validation run attached. Recording failures
// are logged, never propagated: history is diagnostic, not load-bearing.
func Recorded(load LoadFunc, st *state.Store, logger *slog.Logger) LoadFunc {
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	return func(ctx context.Context, key Key) (*Snapshot, error) {
		start := time.Now()
		snap, err := load(ctx, key)
		if err != nil {
			return nil, err
		}

		counts := make(map[string]int64)
		for _, table := range snap.Warehouse.Tables() {
			counts[table] = snap.Warehouse.RowCount(table)
		}
		epoch := &state.Epoch{
			ID:        snap.ID.String(),
			DataDir:   key.DataDir,
			Cities:    key.Cities,
			RowCounts: counts,
			Duration:  time.Since(start),
			Status:    "ok",
		}
		if err := st.RecordEpoch(ctx, epoch); err != nil {
			logger.Warn("failed to record load epoch", "error", err)
			return snap, nil
		}
		if snap.Report != nil {
			run := &state.ValidationRun{
				EpochID:  epoch.ID,
				Checks:   snap.Report.Checks,
				Findings: len(snap.Report.Findings),
				Errors:   snap.Report.CountBySeverity(validate.SeverityError),
				Warnings: snap.Report.CountBySeverity(validate.SeverityWarning),
				Passed:   snap.Report.Passed(),
			}
			if err := st.RecordValidation(ctx, run); err != nil {
				logger.Warn("failed to record validation run", "error", err)
			}
		}
		return snap, nil
	}
}
