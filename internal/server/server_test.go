package server

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"kelly-curve-lab/internal/bounds"
	"kelly-curve-lab/internal/curve"
	"kelly-curve-lab/internal/domain"
	"kelly-curve-lab/internal/idhash"
	"kelly-curve-lab/internal/observability"
	"kelly-curve-lab/internal/orchestrator"
	"kelly-curve-lab/internal/storage/memory"
	"kelly-curve-lab/internal/training"
)

type fakeEngine struct {
	errs map[string]error
}

func (f *fakeEngine) GenerateWithProgress(ctx context.Context, req domain.CurveRequest, progress curve.ProgressFunc) (*domain.CurveRecord, error) {
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
		Utilizations:   []float64{0, 0.5},
		Premiums:       []float64{0.01, 0.02},
		FittedPremiums: []float64{0.01, 0.02},
		UpperBound:     1,
	}, nil
}

type fixture struct {
	srv     *Server
	ts      *httptest.Server
	store   *memory.CurveRecordStore
	metrics *observability.Metrics
}

func newFixture(t *testing.T, errs map[string]error) *fixture {
	t.Helper()
	reg := prometheus.NewRegistry()
	metrics := observability.NewMetrics("test", reg)
	store := memory.NewCurveRecordStore()
	srv := New(Options{
		Engine:         &fakeEngine{errs: errs},
		Store:          store,
		Workers:        2,
		Metrics:        metrics,
		MetricsHandler: promhttp.HandlerFor(reg, promhttp.HandlerOpts{}),
	})
	ts := httptest.NewServer(srv.Handler())
	t.Cleanup(func() {
		srv.Hub().Close()
		ts.Close()
	})
	return &fixture{srv: srv, ts: ts, store: store, metrics: metrics}
}

func request(label string) domain.CurveRequest {
	return domain.CurveRequest{
		Asset:          "BTC",
		Label:          label,
		StartMs:        0,
		EndMs:          1000,
		StrikeFraction: 1.1,
		ExpirationDays: 7,
		CurrentPrice:   30000,
	}
}

func postJSON(t *testing.T, url string, v any) *http.Response {
	t.Helper()
	body, err := json.Marshal(v)
	require.NoError(t, err)
	resp, err := http.Post(url, "application/json", bytes.NewReader(body))
	require.NoError(t, err)
	t.Cleanup(func() { resp.Body.Close() })
	return resp
}

func TestGenerateAndGet(t *testing.T) {
	f := newFixture(t, nil)

	resp := postJSON(t, f.ts.URL+"/curves", request("a"))
	require.Equal(t, http.StatusCreated, resp.StatusCode)

	var rec domain.CurveRecord
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&rec))
	assert.Equal(t, "BTC", rec.Asset)
	assert.Equal(t, idhash.CurveIDForRequest(request("a")), rec.CurveID)

	get, err := http.Get(f.ts.URL + "/curves/" + rec.CurveID)
	require.NoError(t, err)
	defer get.Body.Close()
	require.Equal(t, http.StatusOK, get.StatusCode)

	var got domain.CurveRecord
	require.NoError(t, json.NewDecoder(get.Body).Decode(&got))
	assert.Equal(t, rec.CurveID, got.CurveID)
	assert.Equal(t, []float64{0.01, 0.02}, got.Premiums)

	assert.Equal(t, 1.0, testutil.ToFloat64(f.metrics.HTTPRequests.WithLabelValues("/curves", "Created")))
}

func TestGetMissing(t *testing.T) {
	f := newFixture(t, nil)

	resp, err := http.Get(f.ts.URL + "/curves/nope")
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
}

func TestGenerateFailureStatus(t *testing.T) {
	f := newFixture(t, map[string]error{
		"conflict": fmt.Errorf("wrap: %w", bounds.ErrNoFeasibleBound),
		"short":    training.ErrInsufficientPrices,
	})

	tests := []struct {
		label string
		code  int
		kind  string
	}{
		{"conflict", http.StatusUnprocessableEntity, orchestrator.KindNoFeasibleBound},
		{"short", http.StatusUnprocessableEntity, orchestrator.KindInsufficientPrices},
	}
	for _, tt := range tests {
		t.Run(tt.label, func(t *testing.T) {
			resp := postJSON(t, f.ts.URL+"/curves", request(tt.label))
			assert.Equal(t, tt.code, resp.StatusCode)

			var body ErrorResponse
			require.NoError(t, json.NewDecoder(resp.Body).Decode(&body))
			assert.Equal(t, tt.kind, body.Kind)
			assert.NotEmpty(t, body.Error)
		})
	}
}

func TestGenerateDuplicate(t *testing.T) {
	f := newFixture(t, nil)

	first := postJSON(t, f.ts.URL+"/curves", request("a"))
	require.Equal(t, http.StatusCreated, first.StatusCode)

	second := postJSON(t, f.ts.URL+"/curves", request("a"))
	assert.Equal(t, http.StatusConflict, second.StatusCode)
}

func TestGenerateBadBody(t *testing.T) {
	f := newFixture(t, nil)

	resp, err := http.Post(f.ts.URL+"/curves", "application/json", strings.NewReader(`{"asset":`))
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)

	unknown, err := http.Post(f.ts.URL+"/curves", "application/json", strings.NewReader(`{"colour":"red"}`))
	require.NoError(t, err)
	defer unknown.Body.Close()
	assert.Equal(t, http.StatusBadRequest, unknown.StatusCode)
}

func TestBatchAndList(t *testing.T) {
	f := newFixture(t, map[string]error{"bad": training.ErrInsufficientPrices})

	eth := request("c")
	eth.Asset = "ETH"
	resp := postJSON(t, f.ts.URL+"/curves/batch", []domain.CurveRequest{request("a"), request("bad"), eth})
	require.Equal(t, http.StatusOK, resp.StatusCode)

	var batch BatchResponse
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&batch))
	assert.Equal(t, 3, batch.Requested)
	assert.Equal(t, 2, batch.Succeeded)
	assert.Equal(t, 1, batch.Failed)
	require.Len(t, batch.Failures, 1)
	assert.Equal(t, 1, batch.Failures[0].Index)
	assert.Equal(t, orchestrator.KindInsufficientPrices, batch.Failures[0].Kind)

	all, err := http.Get(f.ts.URL + "/curves")
	require.NoError(t, err)
	defer all.Body.Close()
	var recs []domain.CurveRecord
	require.NoError(t, json.NewDecoder(all.Body).Decode(&recs))
	assert.Len(t, recs, 2)

	btc, err := http.Get(f.ts.URL + "/curves?asset=BTC")
	require.NoError(t, err)
	defer btc.Body.Close()
	recs = nil
	require.NoError(t, json.NewDecoder(btc.Body).Decode(&recs))
	require.Len(t, recs, 1)
	assert.Equal(t, "BTC", recs[0].Asset)
}

func TestHealthAndMetrics(t *testing.T) {
	f := newFixture(t, nil)

	resp, err := http.Get(f.ts.URL + "/health")
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)

	m, err := http.Get(f.ts.URL + "/metrics")
	require.NoError(t, err)
	defer m.Body.Close()
	assert.Equal(t, http.StatusOK, m.StatusCode)
}

func TestProgressWebsocket(t *testing.T) {
	f := newFixture(t, nil)

	wsURL := "ws" + strings.TrimPrefix(f.ts.URL, "http") + "/ws/progress"
	conn, _, err := websocket.DefaultDialer.Dial(wsURL, nil)
	require.NoError(t, err)
	defer conn.Close()

	require.Eventually(t, func() bool { return f.srv.Hub().Clients() == 1 }, 2*time.Second, 10*time.Millisecond)

	resp := postJSON(t, f.ts.URL+"/curves", request("a"))
	require.Equal(t, http.StatusCreated, resp.StatusCode)

	var events []orchestrator.ProgressEvent
	for len(events) < 2 {
		require.NoError(t, conn.SetReadDeadline(time.Now().Add(2*time.Second)))
		var ev orchestrator.ProgressEvent
		require.NoError(t, conn.ReadJSON(&ev))
		events = append(events, ev)
	}
	assert.Equal(t, "BTC", events[0].Asset)
	assert.Equal(t, 1, events[0].Done)
	assert.Equal(t, 2, events[1].Done)
	assert.Equal(t, 2, events[1].Total)
}

func TestStatusForKind(t *testing.T) {
	assert.Equal(t, http.StatusBadRequest, StatusForKind(orchestrator.KindInvalidRequest))
	assert.Equal(t, http.StatusBadRequest, StatusForKind(orchestrator.KindInvalidParameter))
	assert.Equal(t, http.StatusConflict, StatusForKind(orchestrator.KindDuplicate))
	assert.Equal(t, http.StatusUnprocessableEntity, StatusForKind(orchestrator.KindZeroMaxLoss))
	assert.Equal(t, http.StatusInternalServerError, StatusForKind(orchestrator.KindStorage))
}
