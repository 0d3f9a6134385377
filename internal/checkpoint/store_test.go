package checkpoint

import (
	"context"
	"testing"

	"github.com/lalmajed/citysh/lib/testutil"
	"github.com/stretchr/testify/require"
)

func setup(t *testing.T) Store {
	res, cleanup := testutil.Setup(t, testutil.SetupParams{
		Name:     "internal/checkpoint",
		DbSchema: Schema,
	})
	t.Cleanup(cleanup)
	return NewStore(res.DB)
}

func TestRunLifecycle(t *testing.T) {
	store := setup(t)
	ctx := context.Background()

	err := store.Begin(ctx, Run{
		ID:          "run1",
		Source:      "layer/28",
		StartedAt:   1700000000,
		RecordLimit: 5000,
	})
	require.NoError(t, err)

	run, err := store.Get(ctx, "run1")
	require.NoError(t, err)
	require.Equal(t, StateRunning, run.State)
	require.Equal(t, int64(5000), run.RecordLimit)

	require.NoError(t, store.Progress(ctx, "run1", 2000, 2000, 1990))
	require.NoError(t, store.Progress(ctx, "run1", 4000, 4000, 3985))

	run, err = store.Get(ctx, "run1")
	require.NoError(t, err)
	require.Equal(t, int64(4000), run.LastOffset)
	require.Equal(t, int64(4000), run.Fetched)
	require.Equal(t, int64(3985), run.Kept)

	require.NoError(t, store.Finish(ctx, "run1", StateDone, 1700000100, ""))

	run, err = store.Get(ctx, "run1")
	require.NoError(t, err)
	require.Equal(t, StateDone, run.State)
	require.Equal(t, int64(1700000100), run.FinishedAt)
	require.False(t, run.Resumable())
}

func TestLatestResumable(t *testing.T) {
	store := setup(t)
	ctx := context.Background()

	// a completed run is not resumable
	require.NoError(t, store.Begin(ctx, Run{ID: "done1", Source: "layer/28", StartedAt: 100}))
	require.NoError(t, store.Finish(ctx, "done1", StateDone, 110, ""))

	_, ok, err := store.LatestResumable(ctx, "layer/28")
	require.NoError(t, err)
	require.False(t, ok)

	// a failed run is, and the newest failure wins
	require.NoError(t, store.Begin(ctx, Run{ID: "failed1", Source: "layer/28", StartedAt: 200}))
	require.NoError(t, store.Progress(ctx, "failed1", 2000, 2000, 2000))
	require.NoError(t, store.Finish(ctx, "failed1", StateFailed, 210, "page at offset 2000: boom"))

	require.NoError(t, store.Begin(ctx, Run{ID: "stopped1", Source: "layer/28", StartedAt: 300}))
	require.NoError(t, store.Progress(ctx, "stopped1", 6000, 6000, 6000))
	require.NoError(t, store.Finish(ctx, "stopped1", StateStopped, 310, ""))

	run, ok, err := store.LatestResumable(ctx, "layer/28")
	require.NoError(t, err)
	require.True(t, ok)
	require.Equal(t, "stopped1", run.ID)
	require.Equal(t, int64(6000), run.LastOffset)
	require.True(t, run.Resumable())

	// runs never leak across sources
	_, ok, err = store.LatestResumable(ctx, "layer/29")
	require.NoError(t, err)
	require.False(t, ok)
}

func TestListNewestFirst(t *testing.T) {
	store := setup(t)
	ctx := context.Background()

	for i, id := range []string{"a", "b", "c"} {
		require.NoError(t, store.Begin(ctx, Run{ID: id, Source: "layer/28", StartedAt: int64(100 * (i + 1))}))
	}

	runs, err := store.List(ctx, 2)
	require.NoError(t, err)
	require.Len(t, runs, 2)
	require.Equal(t, "c", runs[0].ID)
	require.Equal(t, "b", runs[1].ID)
}
