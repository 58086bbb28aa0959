package idhash

import (
	"crypto/sha256"
	"fmt"
	"strconv"

	"github.com/mr-tron/base58"

	"kelly-curve-lab/internal/domain"
)

// ComputeCurveID computes a deterministic curve_id.
// Formula: base58(SHA256(asset|label|type|strike|expiration_days|start_ms|end_ms))
// The strike is formatted with the shortest exact representation, so
// 1.1 and 1.10 hash identically.
func ComputeCurveID(
	asset string,
	label string,
	optionType domain.OptionType,
	strikeFraction float64,
	expirationDays int,
	startMs, endMs int64,
) string {
	data := fmt.Sprintf("%s|%s|%s|%s|%d|%d|%d",
		asset,
		label,
		string(optionType),
		strconv.FormatFloat(strikeFraction, 'g', -1, 64),
		expirationDays,
		startMs,
		endMs,
	)

	hash := sha256.Sum256([]byte(data))
	return base58.Encode(hash[:])
}

// CurveIDForRequest computes the curve_id of a request.
func CurveIDForRequest(r domain.CurveRequest) string {
	return ComputeCurveID(r.Asset, r.Label, r.OptionType(), r.StrikeFraction, r.ExpirationDays, r.StartMs, r.EndMs)
}
