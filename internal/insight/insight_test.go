package insight

import (
	"context"
	"testing"
	"time"

	"github.com/cairnlabs/storelens/internal/testutil"
	"github.com/cairnlabs/storelens/internal/warehouse"
	"github.com/stretchr/testify/require"
)

func openBasic(t *testing.T) *warehouse.Warehouse {
	t.Helper()

	dir := testutil.WriteBasicSnapshot(t)
	w, err := warehouse.Open(context.Background(), warehouse.Config{
		DataDir:     dir,
		StoreCities: testutil.DefaultCities,
		Logger:      testutil.NewTestLogger(t),
	})
	require.NoError(t, err)
	t.Cleanup(func() { _ = w.Close() })
	return w
}

func date(y int, m time.Month, d int) time.Time {
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}
