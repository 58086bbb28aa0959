// Package dataset reads the tabular collaborator inputs: curve request rows
// and the date-indexed price table with one column per asset.
package dataset

import (
	"context"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"strconv"
	"strings"
	"time"

	"kelly-curve-lab/internal/domain"
	"kelly-curve-lab/internal/storage"
)

var (
	// ErrMissingColumn is returned when a required header column is absent.
	ErrMissingColumn = errors.New("missing column")

	// ErrMalformedRow is returned for cells that do not parse.
	ErrMalformedRow = errors.New("malformed row")
)

// DateLayout is the day format used by both tables.
const DateLayout = "2006-01-02"

// Request columns. The first seven are required.
const (
	ColAsset                = "asset"
	ColLabel                = "label"
	ColStart                = "start"
	ColEnd                  = "end"
	ColStrike               = "strike"
	ColExpirationDays       = "expiration_days"
	ColCurrentPrice         = "current_price"
	ColType                 = "type"
	ColUnderlyingQuantity   = "underlying_quantity"
	ColRate                 = "rate"
	ColCarry                = "carry"
	ColLowerStrike          = "lower_strike"
	ColLowerStrikePremium   = "lower_strike_premium"
	ColUpperStrike          = "upper_strike"
	ColUpperStrikePremium   = "upper_strike_premium"
	ColShorterExpiryPremium = "shorter_expiry_premium"
	ColLongerExpiryPremium  = "longer_expiry_premium"
)

var requiredRequestColumns = []string{
	ColAsset, ColLabel, ColStart, ColEnd, ColStrike, ColExpirationDays, ColCurrentPrice,
}

// ParseTime parses a day (2006-01-02), an RFC 3339 timestamp or Unix
// milliseconds into Unix milliseconds (UTC).
func ParseTime(s string) (int64, error) {
	s = strings.TrimSpace(s)
	if ms, err := strconv.ParseInt(s, 10, 64); err == nil {
		return ms, nil
	}
	if t, err := time.Parse(DateLayout, s); err == nil {
		return t.UTC().UnixMilli(), nil
	}
	t, err := time.Parse(time.RFC3339, s)
	if err != nil {
		return 0, fmt.Errorf("%w: time %q", ErrMalformedRow, s)
	}
	return t.UTC().UnixMilli(), nil
}

type row struct {
	line   int
	cells  []string
	header map[string]int
}

func (r row) get(col string) string {
	i, ok := r.header[col]
	if !ok || i >= len(r.cells) {
		return ""
	}
	return strings.TrimSpace(r.cells[i])
}

func (r row) float(col string) (float64, error) {
	v, err := strconv.ParseFloat(r.get(col), 64)
	if err != nil {
		return 0, fmt.Errorf("%w: line %d column %s: %q", ErrMalformedRow, r.line, col, r.get(col))
	}
	return v, nil
}

// optFloat returns nil for an empty or absent cell.
func (r row) optFloat(col string) (*float64, error) {
	if r.get(col) == "" {
		return nil, nil
	}
	v, err := r.float(col)
	if err != nil {
		return nil, err
	}
	return &v, nil
}

func (r row) time(col string) (int64, error) {
	ms, err := ParseTime(r.get(col))
	if err != nil {
		return 0, fmt.Errorf("line %d column %s: %w", r.line, col, err)
	}
	return ms, nil
}

func readHeader(cr *csv.Reader) (map[string]int, error) {
	names, err := cr.Read()
	if err != nil {
		return nil, fmt.Errorf("read header: %w", err)
	}
	header := make(map[string]int, len(names))
	for i, n := range names {
		header[strings.ToLower(strings.TrimSpace(n))] = i
	}
	return header, nil
}

// ReadRequests parses curve request rows.
func ReadRequests(r io.Reader) ([]domain.CurveRequest, error) {
	cr := csv.NewReader(r)
	cr.FieldsPerRecord = -1
	header, err := readHeader(cr)
	if err != nil {
		return nil, err
	}
	for _, col := range requiredRequestColumns {
		if _, ok := header[col]; !ok {
			return nil, fmt.Errorf("%w: %s", ErrMissingColumn, col)
		}
	}

	var out []domain.CurveRequest
	for line := 2; ; line++ {
		cells, err := cr.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("line %d: %w", line, err)
		}
		req, err := parseRequest(row{line: line, cells: cells, header: header})
		if err != nil {
			return nil, err
		}
		out = append(out, req)
	}
	return out, nil
}

func parseRequest(r row) (domain.CurveRequest, error) {
	req := domain.CurveRequest{
		Asset: r.get(ColAsset),
		Label: r.get(ColLabel),
		Type:  domain.OptionType(strings.ToLower(r.get(ColType))),
	}
	var err error
	if req.StartMs, err = r.time(ColStart); err != nil {
		return req, err
	}
	if req.EndMs, err = r.time(ColEnd); err != nil {
		return req, err
	}
	if req.StrikeFraction, err = r.float(ColStrike); err != nil {
		return req, err
	}
	days, err := strconv.Atoi(r.get(ColExpirationDays))
	if err != nil {
		return req, fmt.Errorf("%w: line %d column %s: %q", ErrMalformedRow, r.line, ColExpirationDays, r.get(ColExpirationDays))
	}
	req.ExpirationDays = days
	if req.CurrentPrice, err = r.float(ColCurrentPrice); err != nil {
		return req, err
	}

	optional := []struct {
		col string
		dst *float64
	}{
		{ColUnderlyingQuantity, &req.UnderlyingQuantity},
		{ColRate, &req.Rate},
		{ColCarry, &req.Carry},
	}
	for _, o := range optional {
		v, err := r.optFloat(o.col)
		if err != nil {
			return req, err
		}
		if v != nil {
			*o.dst = *v
		}
	}

	pointers := []struct {
		col string
		dst **float64
	}{
		{ColLowerStrike, &req.LowerStrikeFraction},
		{ColLowerStrikePremium, &req.LowerStrikePremium},
		{ColUpperStrike, &req.UpperStrikeFraction},
		{ColUpperStrikePremium, &req.UpperStrikePremium},
		{ColShorterExpiryPremium, &req.ShorterExpiryPremium},
		{ColLongerExpiryPremium, &req.LongerExpiryPremium},
	}
	for _, p := range pointers {
		if *p.dst, err = r.optFloat(p.col); err != nil {
			return req, err
		}
	}
	return req, nil
}

// ReadPriceTable parses a wide price table: the first column is the date,
// every other column an asset. Empty cells are skipped.
func ReadPriceTable(r io.Reader) ([]*domain.PricePoint, error) {
	cr := csv.NewReader(r)
	cr.FieldsPerRecord = -1
	names, err := cr.Read()
	if err != nil {
		return nil, fmt.Errorf("read header: %w", err)
	}
	if len(names) < 2 {
		return nil, fmt.Errorf("%w: price table needs a date column and at least one asset", ErrMissingColumn)
	}
	assets := make([]string, len(names))
	for i, n := range names {
		assets[i] = strings.TrimSpace(n)
	}

	var out []*domain.PricePoint
	for line := 2; ; line++ {
		cells, err := cr.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("line %d: %w", line, err)
		}
		ts, err := ParseTime(cells[0])
		if err != nil {
			return nil, fmt.Errorf("line %d: %w", line, err)
		}
		for i := 1; i < len(cells) && i < len(assets); i++ {
			cell := strings.TrimSpace(cells[i])
			if cell == "" {
				continue
			}
			v, err := strconv.ParseFloat(cell, 64)
			if err != nil {
				return nil, fmt.Errorf("%w: line %d column %s: %q", ErrMalformedRow, line, assets[i], cell)
			}
			out = append(out, &domain.PricePoint{Asset: assets[i], TimestampMs: ts, Close: v})
		}
	}
	return out, nil
}

// ImportPrices reads a price table into store and returns the point count.
func ImportPrices(ctx context.Context, store storage.PriceHistoryStore, r io.Reader) (int, error) {
	points, err := ReadPriceTable(r)
	if err != nil {
		return 0, err
	}
	if len(points) == 0 {
		return 0, nil
	}
	if err := store.InsertBulk(ctx, points); err != nil {
		return 0, fmt.Errorf("insert prices: %w", err)
	}
	return len(points), nil
}
