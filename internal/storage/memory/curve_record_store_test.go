package memory

import (
	"context"
	"errors"
	"testing"

	"kelly-curve-lab/internal/domain"
	"kelly-curve-lab/internal/storage"
)

func testRecord(id, asset string, createdAt int64) *domain.CurveRecord {
	return &domain.CurveRecord{
		CurveID:        id,
		Asset:          asset,
		Label:          "train-2024",
		StrikeFraction: 1.1,
		ExpirationDays: 7,
		CurrentPrice:   2500,
		Type:           domain.OptionCall,
		Params:         domain.FitParams{Family: domain.FamilyCosh, A: 0.1, B: 1, C: 2, D: 0.01},
		Utilizations:   []float64{0, 0.5},
		Premiums:       []float64{0.01, 0.03},
		FittedPremiums: []float64{0.01, 0.029},
		UpperBound:     1,
		DailyPDFs:      []domain.PDF{{X: []float64{1, 2}, Density: []float64{0.5, 0.5}}},
		CreatedAtMs:    createdAt,
	}
}

func TestCurveRecordStore_InsertAndGet(t *testing.T) {
	store := NewCurveRecordStore()
	ctx := context.Background()

	rec := testRecord("c1", "ETH", 1000)
	if err := store.Insert(ctx, rec); err != nil {
		t.Fatalf("Insert failed: %v", err)
	}

	got, err := store.GetByID(ctx, "c1")
	if err != nil {
		t.Fatalf("GetByID failed: %v", err)
	}
	if got.Params != rec.Params {
		t.Errorf("Params mismatch: got %+v, want %+v", got.Params, rec.Params)
	}
	if got.DailyPDFs != nil {
		t.Errorf("DailyPDFs should not be persisted")
	}

	// stored record is isolated from the caller's slices
	rec.Premiums[0] = 99
	got, _ = store.GetByID(ctx, "c1")
	if got.Premiums[0] != 0.01 {
		t.Errorf("store shares slices with caller")
	}
}

func TestCurveRecordStore_DuplicateKey(t *testing.T) {
	store := NewCurveRecordStore()
	ctx := context.Background()

	if err := store.Insert(ctx, testRecord("c1", "ETH", 1)); err != nil {
		t.Fatalf("First insert failed: %v", err)
	}
	err := store.Insert(ctx, testRecord("c1", "ETH", 2))
	if !errors.Is(err, storage.ErrDuplicateKey) {
		t.Errorf("Expected ErrDuplicateKey, got %v", err)
	}
}

func TestCurveRecordStore_NotFound(t *testing.T) {
	store := NewCurveRecordStore()

	_, err := store.GetByID(context.Background(), "missing")
	if !errors.Is(err, storage.ErrNotFound) {
		t.Errorf("Expected ErrNotFound, got %v", err)
	}
}

func TestCurveRecordStore_InvalidInput(t *testing.T) {
	store := NewCurveRecordStore()
	ctx := context.Background()

	if err := store.Insert(ctx, nil); !errors.Is(err, storage.ErrInvalidInput) {
		t.Errorf("Expected ErrInvalidInput for nil, got %v", err)
	}

	rec := testRecord("c1", "ETH", 1)
	rec.FittedPremiums = nil
	if err := store.Insert(ctx, rec); !errors.Is(err, storage.ErrInvalidInput) {
		t.Errorf("Expected ErrInvalidInput for ragged curve, got %v", err)
	}
}

func TestCurveRecordStore_GetByAssetOrdering(t *testing.T) {
	store := NewCurveRecordStore()
	ctx := context.Background()

	for _, r := range []*domain.CurveRecord{
		testRecord("b", "ETH", 2000),
		testRecord("a", "ETH", 2000),
		testRecord("z", "ETH", 1000),
		testRecord("x", "BTC", 500),
	} {
		if err := store.Insert(ctx, r); err != nil {
			t.Fatalf("Insert failed: %v", err)
		}
	}

	got, err := store.GetByAsset(ctx, "ETH")
	if err != nil {
		t.Fatalf("GetByAsset failed: %v", err)
	}
	want := []string{"z", "a", "b"}
	if len(got) != len(want) {
		t.Fatalf("Expected %d records, got %d", len(want), len(got))
	}
	for i, id := range want {
		if got[i].CurveID != id {
			t.Errorf("record %d: got %s, want %s", i, got[i].CurveID, id)
		}
	}

	all, _ := store.GetAll(ctx)
	if len(all) != 4 || all[0].CurveID != "x" {
		t.Errorf("GetAll ordering wrong: first=%s len=%d", all[0].CurveID, len(all))
	}
}
