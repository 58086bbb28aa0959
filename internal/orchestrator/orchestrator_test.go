package orchestrator

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"kelly-curve-lab/internal/bounds"
	"kelly-curve-lab/internal/curve"
	"kelly-curve-lab/internal/distribution"
	"kelly-curve-lab/internal/domain"
	"kelly-curve-lab/internal/idhash"
	"kelly-curve-lab/internal/observability"
	"kelly-curve-lab/internal/payoff"
	"kelly-curve-lab/internal/pipeline"
	"kelly-curve-lab/internal/publish"
	"kelly-curve-lab/internal/storage"
	"kelly-curve-lab/internal/storage/memory"
	"kelly-curve-lab/internal/training"
	"kelly-curve-lab/internal/transform"
)

// fakeEngine fails requests whose label is a key of errs.
type fakeEngine struct {
	errs map[string]error
}

func (f *fakeEngine) GenerateWithProgress(ctx context.Context, req domain.CurveRequest, progress curve.ProgressFunc) (*domain.CurveRecord, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if err, ok := f.errs[req.Label]; ok {
		return nil, err
	}
	if progress != nil {
		progress(1, 2)
		progress(2, 2)
	}
	return &domain.CurveRecord{
		CurveID:        idhash.CurveIDForRequest(req),
		Asset:          req.Asset,
		Label:          req.Label,
		StrikeFraction: req.StrikeFraction,
		ExpirationDays: req.ExpirationDays,
		CurrentPrice:   req.CurrentPrice,
		Type:           req.OptionType(),
		Params:         domain.FitParams{Family: domain.FamilyCosh, D: 0.01},
		Utilizations:   []float64{0, 0.5},
		Premiums:       []float64{0.01, 0.02},
		FittedPremiums: []float64{0.01, 0.02},
		UpperBound:     1,
	}, nil
}

func requests(labels ...string) []domain.CurveRequest {
	out := make([]domain.CurveRequest, len(labels))
	for i, l := range labels {
		out[i] = domain.CurveRequest{Asset: "BTC", Label: l, StrikeFraction: 1.1, ExpirationDays: 7, CurrentPrice: 100}
	}
	return out
}

func TestOrchestrator_Run_Empty(t *testing.T) {
	orch := New(Options{Engine: &fakeEngine{}})
	result, err := orch.Run(context.Background(), nil)
	require.NoError(t, err)
	assert.Equal(t, 0, result.Requested)
	assert.Empty(t, result.Records)
	assert.Empty(t, result.Failures)
}

func TestOrchestrator_Run_PartialSuccess(t *testing.T) {
	store := memory.NewCurveRecordStore()
	pub := publish.NewMemoryPublisher()
	reg := prometheus.NewRegistry()
	metrics := observability.NewMetrics("test", reg)

	engine := &fakeEngine{errs: map[string]error{
		"bad-bounds": fmt.Errorf("curve: %w", bounds.ErrNoFeasibleBound),
		"flat":       payoff.ErrZeroMaxLoss,
		"thin-tail":  fmt.Errorf("fit BTC: %w", training.ErrInsufficientTailData),
	}}
	orch := New(Options{
		Engine:    engine,
		Store:     store,
		Publisher: pub,
		Workers:   3,
		Metrics:   metrics,
		Logger:    zerolog.Nop(),
	})

	result, err := orch.Run(context.Background(), requests("a", "bad-bounds", "b", "flat", "thin-tail", "c"))
	require.NoError(t, err)

	assert.Equal(t, 6, result.Requested)
	assert.Equal(t, 3, result.Succeeded)
	assert.Equal(t, 3, result.Failed)
	assert.NoError(t, result.PublishErr)

	labels := make([]string, 0, len(result.Records))
	for _, r := range result.Records {
		labels = append(labels, r.Label)
	}
	assert.Equal(t, []string{"a", "b", "c"}, labels)

	require.Len(t, result.Failures, 3)
	assert.Equal(t, 1, result.Failures[0].Index)
	assert.Equal(t, KindNoFeasibleBound, result.Failures[0].Kind)
	assert.Equal(t, KindZeroMaxLoss, result.Failures[1].Kind)
	assert.Equal(t, KindInsufficientTailData, result.Failures[2].Kind)
	assert.Contains(t, result.Failures[0].String(), "BTC/bad-bounds")
	assert.Equal(t, map[string]int{KindNoFeasibleBound: 1, KindZeroMaxLoss: 1, KindInsufficientTailData: 1}, result.FailureKinds())

	stored, err := store.GetAll(context.Background())
	require.NoError(t, err)
	assert.Len(t, stored, 3)
	assert.Len(t, pub.Records(), 3)

	assert.Equal(t, 3.0, testutil.ToFloat64(metrics.CurvesGenerated.WithLabelValues("ok")))
	assert.Equal(t, 3.0, testutil.ToFloat64(metrics.CurvesGenerated.WithLabelValues("error")))
	assert.Equal(t, 1.0, testutil.ToFloat64(metrics.BatchRunsTotal.WithLabelValues("partial")))
	assert.Equal(t, 1.0, testutil.ToFloat64(metrics.RecordsPublished.WithLabelValues("ok")))
}

func TestOrchestrator_Run_DuplicateRecord(t *testing.T) {
	store := memory.NewCurveRecordStore()
	orch := New(Options{Engine: &fakeEngine{}, Store: store, Workers: 1})

	_, err := orch.Run(context.Background(), requests("a"))
	require.NoError(t, err)

	result, err := orch.Run(context.Background(), requests("a"))
	require.NoError(t, err)
	require.Len(t, result.Failures, 1)
	assert.Equal(t, KindDuplicate, result.Failures[0].Kind)
	assert.ErrorIs(t, result.Failures[0].Err, storage.ErrDuplicateKey)
}

type failingPublisher struct{}

func (failingPublisher) Publish(context.Context, ...*domain.CurveRecord) error {
	return errors.New("broker unavailable")
}
func (failingPublisher) Close() error { return nil }

func TestOrchestrator_Run_PublishFailureKeepsRecords(t *testing.T) {
	orch := New(Options{Engine: &fakeEngine{}, Publisher: failingPublisher{}})
	result, err := orch.Run(context.Background(), requests("a", "b"))
	require.NoError(t, err)
	assert.Error(t, result.PublishErr)
	assert.Equal(t, 2, result.Succeeded)
}

func TestOrchestrator_Run_Canceled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	pub := publish.NewMemoryPublisher()
	orch := New(Options{Engine: &fakeEngine{}, Publisher: pub})
	result, err := orch.Run(ctx, requests("a", "b"))
	assert.ErrorIs(t, err, context.Canceled)
	require.NotNil(t, result)
	assert.Equal(t, 2, result.Failed)
	assert.Equal(t, KindCanceled, result.Failures[0].Kind)
	assert.Empty(t, pub.Records())
}

func TestOrchestrator_Run_Progress(t *testing.T) {
	var (
		mu     sync.Mutex
		events []ProgressEvent
	)
	orch := New(Options{
		Engine:  &fakeEngine{},
		Workers: 2,
		Progress: SerializedProgress(func(ev ProgressEvent) {
			mu.Lock()
			defer mu.Unlock()
			events = append(events, ev)
		}),
	})
	_, err := orch.Run(context.Background(), requests("a", "b"))
	require.NoError(t, err)

	require.Len(t, events, 4)
	byIndex := map[int][]int{}
	for _, ev := range events {
		assert.Equal(t, 2, ev.Total)
		byIndex[ev.Index] = append(byIndex[ev.Index], ev.Done)
	}
	assert.Equal(t, []int{1, 2}, byIndex[0])
	assert.Equal(t, []int{1, 2}, byIndex[1])
}

func TestClassify(t *testing.T) {
	cases := map[string]error{
		KindInvalidRequest:       fmt.Errorf("x: %w", pipeline.ErrInvalidRequest),
		KindInvalidParameter:     distribution.ErrInvalidParameter,
		KindInsufficientPrices:   training.ErrInsufficientPrices,
		KindInsufficientTailData: training.ErrInsufficientTailData,
		KindDomainLengthMismatch: transform.ErrDomainLengthMismatch,
		KindZeroMaxLoss:          payoff.ErrZeroMaxLoss,
		KindNoFeasibleBound:      bounds.ErrNoFeasibleBound,
		KindDuplicate:            storage.ErrDuplicateKey,
		KindCanceled:             context.DeadlineExceeded,
		KindOther:                errors.New("boom"),
	}
	for want, err := range cases {
		assert.Equal(t, want, Classify(err), want)
	}
	assert.Equal(t, "", Classify(nil))
}
