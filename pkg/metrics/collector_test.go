package metrics

import (
	"testing"
	"time"

	"github.com/HaiboGNU/eos-sub000/pkg/clusterview"
	"github.com/HaiboGNU/eos-sub000/pkg/types"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/require"
)

func TestCollectorUpdatesFileSystemsTotal(t *testing.T) {
	view := clusterview.New(nil)
	require.NoError(t, view.UpsertFileSystem(&types.FileSystem{ID: 1, Config: types.ConfigReadWrite}))
	require.NoError(t, view.UpsertFileSystem(&types.FileSystem{ID: 2, Config: types.ConfigReadWrite}))
	require.NoError(t, view.UpsertFileSystem(&types.FileSystem{ID: 3, Config: types.ConfigOff}))

	c := NewCollector(view)
	c.collect()

	require.Equal(t, float64(2), testutil.ToFloat64(FileSystemsTotal.WithLabelValues(string(types.ConfigReadWrite))))
	require.Equal(t, float64(1), testutil.ToFloat64(FileSystemsTotal.WithLabelValues(string(types.ConfigOff))))
}

func TestCollectorStartStop(t *testing.T) {
	view := clusterview.New(nil)
	c := NewCollector(view)
	c.Start()
	time.Sleep(10 * time.Millisecond)
	c.Stop()
}
