// Package harvest orchestrates a parcel run: paging through the portal
// layer, normalizing and classifying every feature, deduplicating by
// parcel id, and handing the accumulated records to the export sink.
package harvest

import (
	"context"
	"fmt"
	"log/slog"
	"strconv"
	"time"

	"github.com/lalmajed/citysh/internal/checkpoint"
	"github.com/lalmajed/citysh/internal/parcel"
	"github.com/lalmajed/citysh/internal/umaps"
	"github.com/lalmajed/citysh/lib/telemetry"
	"github.com/lalmajed/citysh/lib/timezone"
	"github.com/mazen160/go-random"
	"go.opentelemetry.io/otel/codes"
)

var tracer = telemetry.Tracer("citysh.internal.harvest")

// Fetcher is the runner's one network seam. *umaps.Client satisfies it.
type Fetcher interface {
	Bootstrap(ctx context.Context) error
	QueryPage(ctx context.Context, req umaps.QueryRequest) (*umaps.Page, error)
	Count(ctx context.Context, where string) (int64, error)
}

// Sink receives the accumulated records once fetching ends, whether the
// run completed, failed or was stopped. It returns the paths it wrote.
type Sink interface {
	Export(ctx context.Context, result *Result) ([]string, error)
}

// Options configures a single run.
type Options struct {
	// Source keys the journal, it should identify the layer being
	// harvested (the map server url plus layer id works well).
	Source string
	Where  string
	// OutFields narrows the requested attributes, empty means all.
	OutFields []string
	OrderBy   string

	PageSize    int64
	Limit       int64
	StartOffset int64

	Rules     parcel.Rules
	Normalize parcel.NormalizerOptions

	MinInterval time.Duration
	Burst       int
	Backoff     BackoffOptions
}

// Result is everything a run produced. Records are in fetch order with
// duplicates removed. On a failed or stopped run it holds the pages
// that made it through, the partial-result contract the exports rely
// on.
type Result struct {
	RunID        string
	State        State
	Records      []*parcel.Record
	Expected     int64
	Pages        int64
	Fetched      int64
	Duplicates   int64
	Skipped      int64
	OutOfBounds  int64
	Apartments   int64
	ResumeOffset int64
	StoppedEarly bool
	Started      time.Time
	Finished     time.Time
	Outputs      []string
	Err          error
}

type Runner struct {
	fetcher    Fetcher
	sink       Sink
	journal    *checkpoint.Store
	limiter    *Limiter
	backoff    Backoff
	normalizer parcel.Normalizer
	classifier parcel.Classifier
	opts       Options

	state State
}

// NewRunner wires a run together. journal may be nil, the run then
// keeps no resume record.
func NewRunner(fetcher Fetcher, sink Sink, journal *checkpoint.Store, opts Options) *Runner {
	limiter := NewLimiter(opts.MinInterval, opts.Burst)
	backoffOpts := opts.Backoff
	backoffOpts.OnThrottle = limiter.RecordThrottle
	return &Runner{
		fetcher:    fetcher,
		sink:       sink,
		journal:    journal,
		limiter:    limiter,
		backoff:    NewBackoff(backoffOpts),
		normalizer: parcel.NewNormalizer(opts.Normalize),
		classifier: parcel.NewClassifier(opts.Rules),
		opts:       opts,
		state:      StateIdle,
	}
}

// State reports where the run currently is. Runners are single use,
// after Run returns the state stays Done or Failed.
func (r *Runner) State() State {
	return r.state
}

// Run executes the harvest to completion. The returned result is never
// nil. A non-nil error means the run failed, the result still carries
// every record fetched before the failure and the paths the sink
// managed to write. A context cancellation between pages is not an
// error: the run exports what it has and completes as stopped.
func (r *Runner) Run(ctx context.Context) (*Result, error) {
	ctx, span := tracer.Start(ctx, "Run")
	defer span.End()

	result := &Result{
		RunID:   newRunID(),
		State:   StateFetching,
		Started: timezone.Now(),
	}
	r.state = StateFetching

	slog.InfoContext(ctx, "starting harvest run",
		"run_id", result.RunID,
		"source", r.opts.Source,
		"offset", r.opts.StartOffset,
		"limit", r.opts.Limit)

	r.journalBegin(ctx, result)
	r.fetch(ctx, result)

	r.state = StateExporting
	if result.Err == nil || len(result.Records) > 0 {
		// Export even after a failure so completed pages are not lost.
		outputs, err := r.sink.Export(context.WithoutCancel(ctx), result)
		result.Outputs = outputs
		if err != nil {
			slog.ErrorContext(ctx, "failed to export results", "run_id", result.RunID, "err", err)
			if result.Err == nil {
				result.Err = fmt.Errorf("export: %w", err)
			}
		}
	}

	result.Finished = timezone.Now()
	if result.Err != nil {
		r.state = StateFailed
		result.State = StateFailed
		span.RecordError(result.Err)
		span.SetStatus(codes.Error, "harvest run failed")
	} else {
		r.state = StateDone
		result.State = StateDone
	}
	r.journalFinish(ctx, result)

	slog.InfoContext(ctx, "harvest run finished",
		"run_id", result.RunID,
		"state", result.State.String(),
		"pages", result.Pages,
		"fetched", result.Fetched,
		"kept", len(result.Records),
		"apartments", result.Apartments,
		"duplicates", result.Duplicates,
		"skipped", result.Skipped,
		"elapsed", result.Finished.Sub(result.Started).Round(time.Second))

	return result, result.Err
}

// fetch drives the page loop, filling result until the cursor is done,
// the context is canceled, or a page fails fatally.
func (r *Runner) fetch(ctx context.Context, result *Result) {
	if err := r.fetcher.Bootstrap(ctx); err != nil {
		// Queries may still succeed without a warmed session, so a
		// failed bootstrap only costs us the cookies.
		slog.WarnContext(ctx, "failed to bootstrap portal session", "err", err)
		if ctx.Err() != nil {
			result.StoppedEarly = true
			return
		}
	}

	cursor := NewCursor(r.opts.PageSize, r.opts.Limit)
	cursor.SetStartOffset(r.opts.StartOffset)

	if total, err := r.fetcher.Count(ctx, r.opts.Where); err != nil {
		slog.WarnContext(ctx, "failed to count records, progress will be blind", "err", err)
	} else {
		cursor.SetExpectedTotal(total)
		result.Expected = total
		slog.InfoContext(ctx, "portal reports matching records", "count", total)
	}

	index := parcel.NewIndex()
	for {
		if ctx.Err() != nil {
			result.StoppedEarly = true
			break
		}
		req, ok := cursor.Next()
		if !ok {
			break
		}

		if err := r.limiter.Wait(ctx); err != nil {
			result.StoppedEarly = true
			break
		}

		var page *umaps.Page
		err := r.backoff.Do(ctx, func() error {
			fetched, err := r.fetcher.QueryPage(ctx, umaps.QueryRequest{
				Where:          r.opts.Where,
				OutFields:      r.opts.OutFields,
				OrderBy:        r.opts.OrderBy,
				Offset:         req.Offset,
				Count:          req.Count,
				ReturnGeometry: true,
			})
			if err != nil {
				return err
			}
			page = fetched
			return nil
		})
		if err != nil {
			if Classify(err) == ClassCanceled {
				result.StoppedEarly = true
				break
			}
			result.Err = fmt.Errorf("page at offset %d: %w", req.Offset, err)
			break
		}

		got := int64(len(page.Features))
		for _, feature := range page.Features {
			r.ingest(ctx, result, index, feature)
		}
		cursor.Advance(req, got)
		result.Pages++
		result.Fetched = cursor.Fetched()
		result.ResumeOffset = cursor.Offset()
		r.journalProgress(ctx, result)
		r.logProgress(ctx, result, cursor, got)
	}

	result.ResumeOffset = cursor.Offset()
	if result.StoppedEarly {
		slog.WarnContext(ctx, "harvest stopped early, exporting what we have",
			"run_id", result.RunID,
			"fetched", result.Fetched,
			"resume_offset", result.ResumeOffset)
	}
}

func (r *Runner) ingest(ctx context.Context, result *Result, index *parcel.Index, feature umaps.Feature) {
	rec, err := r.normalizer.Normalize(ctx, feature)
	if err != nil {
		result.Skipped++
		slog.WarnContext(ctx, "skipping record", "err", err)
		return
	}
	if !index.Accept(rec.ParcelID) {
		result.Duplicates++
		return
	}
	rec.IsApartment = r.classifier.Classify(rec)
	rec.CategoryLabel = parcel.Label(rec.IsApartment)
	if rec.IsApartment {
		result.Apartments++
	}
	if rec.OutOfBounds {
		result.OutOfBounds++
	}
	result.Records = append(result.Records, rec)
}

func (r *Runner) logProgress(ctx context.Context, result *Result, cursor *Cursor, got int64) {
	args := []any{
		"page", result.Pages,
		"records", got,
		"fetched", result.Fetched,
		"kept", len(result.Records),
	}
	if target := cursor.Target(); target > 0 && result.Fetched > 0 {
		pct := float64(result.Fetched) / float64(target) * 100
		if pct > 100 {
			pct = 100
		}
		args = append(args, "progress", fmt.Sprintf("%.1f%%", pct))
		if remaining := target - result.Fetched; remaining > 0 {
			elapsed := timezone.Now().Sub(result.Started)
			eta := time.Duration(float64(elapsed) / float64(result.Fetched) * float64(remaining))
			args = append(args, "eta", eta.Round(time.Second))
		}
	}
	slog.InfoContext(ctx, "harvested page", args...)
}

// The journal helpers write through context.WithoutCancel: resume
// offsets matter most when the run context just got canceled.

func (r *Runner) journalBegin(ctx context.Context, result *Result) {
	if r.journal == nil {
		return
	}
	err := r.journal.Begin(context.WithoutCancel(ctx), checkpoint.Run{
		ID:          result.RunID,
		Source:      r.opts.Source,
		StartedAt:   result.Started.Unix(),
		LastOffset:  r.opts.StartOffset,
		RecordLimit: r.opts.Limit,
	})
	if err != nil {
		slog.WarnContext(ctx, "failed to journal run start", "err", err)
	}
}

func (r *Runner) journalProgress(ctx context.Context, result *Result) {
	if r.journal == nil {
		return
	}
	err := r.journal.Progress(context.WithoutCancel(ctx), result.RunID, result.ResumeOffset, result.Fetched, int64(len(result.Records)))
	if err != nil {
		slog.WarnContext(ctx, "failed to journal progress", "err", err)
	}
}

func (r *Runner) journalFinish(ctx context.Context, result *Result) {
	if r.journal == nil {
		return
	}
	state := checkpoint.StateDone
	errText := ""
	if result.Err != nil {
		state = checkpoint.StateFailed
		errText = result.Err.Error()
	} else if result.StoppedEarly {
		state = checkpoint.StateStopped
	}
	err := r.journal.Finish(context.WithoutCancel(ctx), result.RunID, state, result.Finished.Unix(), errText)
	if err != nil {
		slog.WarnContext(ctx, "failed to journal run finish", "err", err)
	}
}

// newRunID returns a short random id for log and journal correlation.
func newRunID() string {
	id, err := random.String(12)
	if err != nil {
		return strconv.FormatInt(time.Now().UnixNano(), 36)
	}
	return id
}
