// Package orchestrator runs batches of curve requests.
// Each request is generated independently; failures are collected per request
// and never abort the rest of the batch. Successful records are stored and
// then published.
package orchestrator

import (
	"context"
	"errors"
	"fmt"
	"runtime"
	"sync"
	"time"

	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"

	"kelly-curve-lab/internal/bounds"
	"kelly-curve-lab/internal/curve"
	"kelly-curve-lab/internal/distribution"
	"kelly-curve-lab/internal/domain"
	"kelly-curve-lab/internal/kelly"
	"kelly-curve-lab/internal/observability"
	"kelly-curve-lab/internal/payoff"
	"kelly-curve-lab/internal/pipeline"
	"kelly-curve-lab/internal/publish"
	"kelly-curve-lab/internal/storage"
	"kelly-curve-lab/internal/training"
	"kelly-curve-lab/internal/transform"
)

// Failure kinds.
const (
	KindInvalidRequest       = "invalid_request"
	KindInvalidParameter     = "invalid_parameter"
	KindInsufficientPrices   = "insufficient_prices"
	KindInsufficientTailData = "insufficient_tail_data"
	KindDomainLengthMismatch = "domain_length_mismatch"
	KindZeroMaxLoss          = "zero_max_loss"
	KindNoFeasibleBound      = "no_feasible_bound"
	KindDuplicate            = "duplicate"
	KindStorage              = "storage"
	KindCanceled             = "canceled"
	KindOther                = "other"
)

// Engine generates one curve record. *pipeline.Engine implements it.
type Engine interface {
	GenerateWithProgress(ctx context.Context, req domain.CurveRequest, progress curve.ProgressFunc) (*domain.CurveRecord, error)
}

var _ Engine = (*pipeline.Engine)(nil)

// ProgressEvent reports boundary-stage progress of one request in a batch.
type ProgressEvent struct {
	Index int    `json:"index"`
	Asset string `json:"asset"`
	Label string `json:"label"`
	Done  int    `json:"done"`
	Total int    `json:"total"`
}

// Options for creating Orchestrator.
type Options struct {
	Engine    Engine                   // required
	Store     storage.CurveRecordStore // optional
	Publisher publish.Publisher        // optional
	Workers   int                      // concurrent requests; default GOMAXPROCS
	Progress  func(ProgressEvent)      // optional, called concurrently
	Metrics   *observability.Metrics
	Logger    zerolog.Logger
}

// Orchestrator coordinates batch execution.
type Orchestrator struct {
	engine    Engine
	store     storage.CurveRecordStore
	publisher publish.Publisher
	workers   int
	progress  func(ProgressEvent)
	metrics   *observability.Metrics
	log       zerolog.Logger
}

// New creates a new Orchestrator.
func New(opts Options) *Orchestrator {
	if opts.Workers <= 0 {
		opts.Workers = runtime.GOMAXPROCS(0)
	}
	return &Orchestrator{
		engine:    opts.Engine,
		store:     opts.Store,
		publisher: opts.Publisher,
		workers:   opts.Workers,
		progress:  opts.Progress,
		metrics:   opts.Metrics,
		log:       opts.Logger,
	}
}

// Failure describes one failed request.
type Failure struct {
	Index int    // position in the batch
	Asset string
	Label string
	Kind  string
	Err   error
}

func (f Failure) String() string {
	return fmt.Sprintf("request %d (%s/%s): %s: %v", f.Index, f.Asset, f.Label, f.Kind, f.Err)
}

// RunResult contains results from a batch run.
type RunResult struct {
	Requested  int
	Succeeded  int
	Failed     int
	Records    []*domain.CurveRecord // successful records in request order
	Failures   []Failure             // in request order
	PublishErr error
	Duration   time.Duration
}

// Run generates every request. The returned error is non-nil only when ctx
// ends before the batch completes; the result is still populated.
func (o *Orchestrator) Run(ctx context.Context, reqs []domain.CurveRequest) (*RunResult, error) {
	start := time.Now()
	o.log.Info().Int("requests", len(reqs)).Int("workers", o.workers).Msg("batch started")

	records := make([]*domain.CurveRecord, len(reqs))
	failures := make([]*Failure, len(reqs))

	var g errgroup.Group
	g.SetLimit(o.workers)
	for i, req := range reqs {
		g.Go(func() error {
			rec, kind, err := o.runOne(ctx, i, req)
			if err != nil {
				failures[i] = &Failure{Index: i, Asset: req.Asset, Label: req.Label, Kind: kind, Err: err}
				o.log.Warn().Err(err).
					Int("index", i).
					Str("asset", req.Asset).
					Str("label", req.Label).
					Str("kind", kind).
					Msg("curve request failed")
				o.metrics.RecordCurve(kind, 0)
				return nil
			}
			records[i] = rec
			o.metrics.RecordCurve("", len(rec.Utilizations))
			return nil
		})
	}
	_ = g.Wait()

	result := &RunResult{Requested: len(reqs)}
	for i := range reqs {
		if failures[i] != nil {
			result.Failures = append(result.Failures, *failures[i])
			continue
		}
		result.Records = append(result.Records, records[i])
	}
	result.Succeeded = len(result.Records)
	result.Failed = len(result.Failures)

	if o.publisher != nil && len(result.Records) > 0 && ctx.Err() == nil {
		result.PublishErr = o.publisher.Publish(ctx, result.Records...)
		o.metrics.RecordPublish(result.PublishErr)
		if result.PublishErr != nil {
			o.log.Error().Err(result.PublishErr).Int("records", len(result.Records)).Msg("publish failed")
		}
	}

	result.Duration = time.Since(start)
	o.metrics.RecordBatch(result.Failed, result.Duration)
	o.log.Info().
		Int("requested", result.Requested).
		Int("succeeded", result.Succeeded).
		Int("failed", result.Failed).
		Dur("duration", result.Duration).
		Msg("batch completed")

	return result, ctx.Err()
}

func (o *Orchestrator) runOne(ctx context.Context, i int, req domain.CurveRequest) (*domain.CurveRecord, string, error) {
	if err := ctx.Err(); err != nil {
		return nil, KindCanceled, err
	}

	var progress curve.ProgressFunc
	if o.progress != nil {
		progress = func(done, total int) {
			o.progress(ProgressEvent{Index: i, Asset: req.Asset, Label: req.Label, Done: done, Total: total})
		}
	}
	rec, err := o.engine.GenerateWithProgress(ctx, req, progress)
	if err != nil {
		return nil, Classify(err), err
	}

	if o.store != nil {
		start := time.Now()
		err := o.store.Insert(ctx, rec)
		o.metrics.RecordDBQuery("curve_records", "insert", time.Since(start), err)
		if errors.Is(err, storage.ErrDuplicateKey) {
			return nil, KindDuplicate, fmt.Errorf("store %s: %w", rec.CurveID, err)
		}
		if err != nil {
			return nil, KindStorage, fmt.Errorf("store %s: %w", rec.CurveID, err)
		}
	}
	return rec, "", nil
}

// Classify maps a generation error to its failure kind.
func Classify(err error) string {
	switch {
	case err == nil:
		return ""
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		return KindCanceled
	case errors.Is(err, pipeline.ErrInvalidRequest):
		return KindInvalidRequest
	case errors.Is(err, distribution.ErrInvalidParameter):
		return KindInvalidParameter
	case errors.Is(err, training.ErrInsufficientPrices), errors.Is(err, training.ErrInvalidPrice):
		return KindInsufficientPrices
	case errors.Is(err, training.ErrInsufficientTailData), errors.Is(err, distribution.ErrNoSamples):
		return KindInsufficientTailData
	case errors.Is(err, transform.ErrDomainLengthMismatch), errors.Is(err, kelly.ErrLengthMismatch):
		return KindDomainLengthMismatch
	case errors.Is(err, payoff.ErrZeroMaxLoss):
		return KindZeroMaxLoss
	case errors.Is(err, bounds.ErrNoFeasibleBound):
		return KindNoFeasibleBound
	case errors.Is(err, storage.ErrDuplicateKey):
		return KindDuplicate
	default:
		return KindOther
	}
}

// FailureKinds counts failures by kind.
func (r *RunResult) FailureKinds() map[string]int {
	out := make(map[string]int)
	for _, f := range r.Failures {
		out[f.Kind]++
	}
	return out
}

// SerializedProgress wraps fn so concurrent requests call it one at a time.
func SerializedProgress(fn func(ProgressEvent)) func(ProgressEvent) {
	var mu sync.Mutex
	return func(ev ProgressEvent) {
		mu.Lock()
		defer mu.Unlock()
		fn(ev)
	}
}
