package harvest

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/lalmajed/citysh/internal/checkpoint"
	"github.com/lalmajed/citysh/internal/parcel"
	"github.com/lalmajed/citysh/internal/umaps"
	"github.com/lalmajed/citysh/lib/testutil"
	"github.com/stretchr/testify/require"
)

// fakeFetcher simulates a layer of sequential parcels. Every tenth
// parcel is a multi unit residential so classification has something
// to find.
type fakeFetcher struct {
	total      int64
	idFor      func(index int64) int64
	missingIDs map[int64]bool
	failOnceAt map[int]error
	failAt     map[int]error
	countErr   error
	onPage     func(served int)

	mu         sync.Mutex
	requests   []umaps.QueryRequest
	bootstraps int
	served     int
}

func (f *fakeFetcher) Bootstrap(ctx context.Context) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.bootstraps++
	return nil
}

func (f *fakeFetcher) Count(ctx context.Context, where string) (int64, error) {
	if f.countErr != nil {
		return 0, f.countErr
	}
	return f.total, nil
}

func (f *fakeFetcher) QueryPage(ctx context.Context, req umaps.QueryRequest) (*umaps.Page, error) {
	f.mu.Lock()
	f.requests = append(f.requests, req)
	call := len(f.requests)
	f.mu.Unlock()

	if err, ok := f.failOnceAt[call]; ok {
		delete(f.failOnceAt, call)
		return nil, err
	}
	if err, ok := f.failAt[call]; ok {
		return nil, err
	}

	remaining := f.total - req.Offset
	if remaining < 0 {
		remaining = 0
	}
	n := req.Count
	if remaining < n {
		n = remaining
	}

	features := make([]umaps.Feature, 0, n)
	for i := int64(0); i < n; i++ {
		index := req.Offset + i
		id := index
		if f.idFor != nil {
			id = f.idFor(index)
		}
		features = append(features, f.feature(id, !f.missingIDs[index]))
	}

	f.mu.Lock()
	f.served++
	served := f.served
	f.mu.Unlock()
	if f.onPage != nil {
		f.onPage(served)
	}
	return &umaps.Page{Features: features, ExceededTransferLimit: req.Offset+n < f.total}, nil
}

func (f *fakeFetcher) feature(id int64, withID bool) umaps.Feature {
	attrs := map[string]any{
		"OBJECTID":         float64(id),
		"MAINLANDUSE":      float64(100000),
		"RESIDENTIALUNITS": float64(1),
		"NOOFFLOORS":       float64(1),
	}
	if id%10 == 0 {
		attrs["MAINLANDUSE"] = float64(1000000)
	}
	if withID {
		attrs["PARCEL_ID"] = fmt.Sprintf("P%06d", id)
	}
	return umaps.Feature{
		Attributes: attrs,
		Geometry:   &umaps.Geometry{X: 46.7, Y: 24.7},
	}
}

type captureSink struct {
	calls  int
	kept   int
	paths  []string
	intent error
}

func (s *captureSink) Export(ctx context.Context, result *Result) ([]string, error) {
	s.calls++
	s.kept = len(result.Records)
	if s.intent != nil {
		return nil, s.intent
	}
	return s.paths, nil
}

func testOptions() Options {
	return Options{
		Source:      "test-layer",
		Where:       "CITY_ID='00100001'",
		PageSize:    2000,
		MinInterval: time.Millisecond,
		Burst:       100,
		Backoff: BackoffOptions{
			BaseDelay:   time.Millisecond,
			MaxDelay:    2 * time.Millisecond,
			MaxAttempts: 3,
		},
	}
}

func testJournal(t *testing.T) *checkpoint.Store {
	res, cleanup := testutil.Setup(t, testutil.SetupParams{
		Name:     "internal/harvest",
		DbSchema: checkpoint.Schema,
	})
	t.Cleanup(cleanup)
	store := checkpoint.NewStore(res.DB)
	return &store
}

func TestRunnerFullRun(t *testing.T) {
	fetcher := &fakeFetcher{total: 8500}
	sink := &captureSink{paths: []string{"out.csv", "out.json", "out_geo.json"}}
	journal := testJournal(t)

	runner := NewRunner(fetcher, sink, journal, testOptions())
	result, err := runner.Run(context.Background())
	require.NoError(t, err)

	require.Equal(t, StateDone, result.State)
	require.Equal(t, StateDone, runner.State())

	// 8500 records at 2000 per page is exactly 5 requests
	require.Len(t, fetcher.requests, 5)
	for i, req := range fetcher.requests {
		require.Equal(t, int64(i*2000), req.Offset)
		require.Equal(t, int64(2000), req.Count)
	}

	require.Equal(t, int64(5), result.Pages)
	require.Equal(t, int64(8500), result.Fetched)
	require.Equal(t, int64(8500), result.Expected)
	require.Len(t, result.Records, 8500)
	require.Equal(t, int64(850), result.Apartments)
	require.Equal(t, 1, fetcher.bootstraps)

	// fetch order survives the whole pipeline
	require.Equal(t, "P000000", result.Records[0].ParcelID)
	require.Equal(t, "P008499", result.Records[8499].ParcelID)
	require.Equal(t, parcel.LabelApartment, result.Records[0].CategoryLabel)
	require.Equal(t, parcel.LabelNonApartment, result.Records[1].CategoryLabel)

	require.Equal(t, 1, sink.calls)
	require.Equal(t, sink.paths, result.Outputs)

	run, err := journal.Get(context.Background(), result.RunID)
	require.NoError(t, err)
	require.Equal(t, checkpoint.StateDone, run.State)
	require.Equal(t, int64(8500), run.Fetched)
	require.Equal(t, int64(8500), run.Kept)
}

func TestRunnerFatalMidwayExportsPartialResult(t *testing.T) {
	fetcher := &fakeFetcher{
		total:  10000,
		failAt: map[int]error{3: &umaps.ServerError{Code: 400, Message: "Invalid query"}},
	}
	sink := &captureSink{paths: []string{"out.csv"}}
	journal := testJournal(t)

	runner := NewRunner(fetcher, sink, journal, testOptions())
	result, err := runner.Run(context.Background())
	require.Error(t, err)

	require.Equal(t, StateFailed, result.State)
	require.Len(t, fetcher.requests, 3)

	// the two completed pages are exported anyway
	require.Equal(t, 1, sink.calls)
	require.Equal(t, 4000, sink.kept)
	require.Len(t, result.Records, 4000)
	require.Equal(t, int64(2), result.Pages)
	require.Equal(t, int64(4000), result.ResumeOffset)

	run, ok, jerr := journal.LatestResumable(context.Background(), "test-layer")
	require.NoError(t, jerr)
	require.True(t, ok)
	require.Equal(t, result.RunID, run.ID)
	require.Equal(t, checkpoint.StateFailed, run.State)
	require.Equal(t, int64(4000), run.LastOffset)
	require.NotEmpty(t, run.Error)
}

func TestRunnerRetriesTransientFailure(t *testing.T) {
	fetcher := &fakeFetcher{
		total:      8500,
		failOnceAt: map[int]error{2: &umaps.StatusError{StatusCode: 502}},
	}
	sink := &captureSink{}

	runner := NewRunner(fetcher, sink, nil, testOptions())
	result, err := runner.Run(context.Background())
	require.NoError(t, err)

	require.Equal(t, StateDone, result.State)
	// 5 pages plus one retried request
	require.Len(t, fetcher.requests, 6)
	require.Len(t, result.Records, 8500)
}

func TestRunnerDeduplicatesAcrossPages(t *testing.T) {
	fetcher := &fakeFetcher{
		total: 6000,
		idFor: func(index int64) int64 { return index % 4000 },
	}
	sink := &captureSink{}

	runner := NewRunner(fetcher, sink, nil, testOptions())
	result, err := runner.Run(context.Background())
	require.NoError(t, err)

	require.Equal(t, int64(6000), result.Fetched)
	require.Len(t, result.Records, 4000)
	require.Equal(t, int64(2000), result.Duplicates)

	// the first occurrence was kept, so order is still fetch order
	require.Equal(t, "P000000", result.Records[0].ParcelID)
	require.Equal(t, "P003999", result.Records[3999].ParcelID)
}

func TestRunnerStopBetweenPages(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	fetcher := &fakeFetcher{total: 100000}
	fetcher.onPage = func(served int) {
		if served == 2 {
			cancel()
		}
	}
	sink := &captureSink{paths: []string{"out.csv"}}
	journal := testJournal(t)

	runner := NewRunner(fetcher, sink, journal, testOptions())
	result, err := runner.Run(ctx)
	require.NoError(t, err)

	require.True(t, result.StoppedEarly)
	require.Equal(t, StateDone, result.State)
	require.Len(t, fetcher.requests, 2)
	require.Len(t, result.Records, 4000)

	// what we had still went out
	require.Equal(t, 1, sink.calls)
	require.Equal(t, 4000, sink.kept)

	run, ok, jerr := journal.LatestResumable(context.Background(), "test-layer")
	require.NoError(t, jerr)
	require.True(t, ok)
	require.Equal(t, checkpoint.StateStopped, run.State)
	require.Equal(t, int64(4000), run.LastOffset)
}

func TestRunnerLimit(t *testing.T) {
	fetcher := &fakeFetcher{total: 100000}
	sink := &captureSink{}

	opts := testOptions()
	opts.Limit = 3000
	runner := NewRunner(fetcher, sink, nil, opts)
	result, err := runner.Run(context.Background())
	require.NoError(t, err)

	require.Len(t, fetcher.requests, 2)
	require.Equal(t, int64(2000), fetcher.requests[0].Count)
	require.Equal(t, int64(1000), fetcher.requests[1].Count)
	require.Len(t, result.Records, 3000)
}

func TestRunnerResumeOffset(t *testing.T) {
	fetcher := &fakeFetcher{total: 8500}
	sink := &captureSink{}

	opts := testOptions()
	opts.StartOffset = 6000
	runner := NewRunner(fetcher, sink, nil, opts)
	result, err := runner.Run(context.Background())
	require.NoError(t, err)

	require.Len(t, fetcher.requests, 2)
	require.Equal(t, int64(6000), fetcher.requests[0].Offset)
	require.Equal(t, int64(8000), fetcher.requests[1].Offset)
	require.Len(t, result.Records, 2500)
	require.Equal(t, "P006000", result.Records[0].ParcelID)
}

func TestRunnerSkipsFeaturesWithoutParcelID(t *testing.T) {
	fetcher := &fakeFetcher{
		total:      2500,
		missingIDs: map[int64]bool{3: true, 700: true, 2100: true},
	}
	sink := &captureSink{}

	runner := NewRunner(fetcher, sink, nil, testOptions())
	result, err := runner.Run(context.Background())
	require.NoError(t, err)

	require.Equal(t, int64(3), result.Skipped)
	require.Len(t, result.Records, 2497)
	require.Equal(t, int64(2500), result.Fetched)
}

func TestRunnerCountFailureIsTolerated(t *testing.T) {
	fetcher := &fakeFetcher{
		total:    4500,
		countErr: &umaps.StatusError{StatusCode: 500},
	}
	sink := &captureSink{}

	runner := NewRunner(fetcher, sink, nil, testOptions())
	result, err := runner.Run(context.Background())
	require.NoError(t, err)

	require.Equal(t, StateDone, result.State)
	require.Equal(t, int64(0), result.Expected)
	require.Len(t, result.Records, 4500)
}

func TestRunnerExportFailureFailsRun(t *testing.T) {
	fetcher := &fakeFetcher{total: 100}
	sink := &captureSink{intent: fmt.Errorf("disk full")}

	runner := NewRunner(fetcher, sink, nil, testOptions())
	result, err := runner.Run(context.Background())
	require.Error(t, err)
	require.Equal(t, StateFailed, result.State)
	require.Len(t, result.Records, 100)
}
