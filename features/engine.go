// Package features computes the versioned behavioral feature vector that
// every downstream model and detector consumes. It never raises: any
// per-feature failure degrades to a safe default plus a data-quality
// warning, mirroring the Python original's defensive posture
// (app/features/engine.py).
package features

import (
	"context"
	"fmt"
	"math"
	"strings"
	"time"

	"go.uber.org/zap"
	"gonum.org/v1/gonum/stat"

	"github.com/creditbridge/decision-service/domain"
	"github.com/creditbridge/decision-service/pkg/clock"
)

const (
	FeatureSet     = "core_behavioral"
	FeatureVersion = "v1"

	defaultLookbackDays = 30
)

var mobileEventTypes = map[string]bool{
	"app_open":         true,
	"location_update":  true,
	"mobile_payment":   true,
	"sms_verification": true,
}

// Engine turns a borrower's raw events into a FeatureVector under the
// fixed (core_behavioral, v1) schema.
type Engine struct {
	repo         domain.Repository
	clock        clock.Clock
	lookbackDays int
	logger       *zap.Logger
}

func NewEngine(repo domain.Repository, clk clock.Clock, lookbackDays int, logger *zap.Logger) *Engine {
	if lookbackDays <= 0 {
		lookbackDays = defaultLookbackDays
	}
	return &Engine{repo: repo, clock: clk, lookbackDays: lookbackDays, logger: logger}
}

// Result carries the computed vector plus the warning/quality metadata
// that gets folded into it, matching the auxiliary keys in spec §4.B.
type Result struct {
	Vector              domain.FeatureVector
	DataQualityWarnings []string
	DataQualityScore    float64
}

// ComputeFeatures fetches raw events for borrowerID and reduces them to
// the core_behavioral/v1 feature vector. It never returns an error; all
// failure modes degrade into warnings.
func (e *Engine) ComputeFeatures(ctx context.Context, borrowerID string, hasPhone bool) Result {
	now := e.clock.Now()
	cutoff := now.AddDate(0, 0, -e.lookbackDays)

	var warnings []string
	events, err := e.repo.GetRawEvents(ctx, borrowerID)
	if err != nil {
		warnings = append(warnings, "raw_events_fetch_failed")
		events = nil
	}

	windowed := filterByWindow(events, cutoff, now)
	if len(windowed) == 0 {
		warnings = append(warnings, "no_raw_events")
	} else if len(windowed) < 5 {
		warnings = append(warnings, fmt.Sprintf("low_event_count_%d", len(windowed)))
	}

	mobileScore, w := computeMobileActivityScore(windowed, hasPhone)
	warnings = append(warnings, w...)

	volume, w := computeTransactionVolume(windowed)
	warnings = append(warnings, w...)

	consistency, w := computeActivityConsistency(windowed)
	warnings = append(warnings, w...)

	quality := computeDataQualityScore(warnings)

	feats := map[string]float64{
		"mobile_activity_score":  mobileScore,
		"transaction_volume_30d": volume,
		"activity_consistency":   consistency,
		"event_count":            float64(len(windowed)),
		"lookback_days":          float64(e.lookbackDays),
		"has_phone":              boolToFloat(hasPhone),
		"data_quality_score":     quality,
	}

	vector := domain.FeatureVector{
		BorrowerID:       borrowerID,
		FeatureSet:       FeatureSet,
		FeatureVersion:   FeatureVersion,
		Features:         feats,
		ComputedAt:       now,
		SourceEventCount: len(windowed),
	}

	if e.logger != nil {
		e.logger.Debug("features computed",
			zap.String("borrower_id", borrowerID),
			zap.Int("event_count", len(windowed)),
			zap.Strings("warnings", warnings),
		)
	}

	return Result{Vector: vector, DataQualityWarnings: warnings, DataQualityScore: quality}
}

// SaveFeatures persists the vector and audits the computation.
func (e *Engine) SaveFeatures(ctx context.Context, r Result) (*domain.FeatureVector, error) {
	saved, err := e.repo.SaveModelFeatures(ctx, r.Vector.BorrowerID, r.Vector.FeatureSet, r.Vector.FeatureVersion, r.Vector.Features)
	if err != nil {
		return nil, err
	}
	names := make([]string, 0, len(r.Vector.Features))
	for k := range r.Vector.Features {
		names = append(names, k)
	}
	e.repo.LogAuditEvent(ctx, "features_computed", "feature_vector", r.Vector.BorrowerID, map[string]interface{}{
		"feature_names": names,
		"warnings":      r.DataQualityWarnings,
	})
	return saved, nil
}

// ComputeAndSave combines ComputeFeatures and SaveFeatures.
func (e *Engine) ComputeAndSave(ctx context.Context, borrowerID string, hasPhone bool) (*domain.FeatureVector, Result, error) {
	r := e.ComputeFeatures(ctx, borrowerID, hasPhone)
	saved, err := e.SaveFeatures(ctx, r)
	return saved, r, err
}

func filterByWindow(events []domain.RawEvent, start, end time.Time) []domain.RawEvent {
	out := make([]domain.RawEvent, 0, len(events))
	for _, ev := range events {
		if ev.CreatedAt.IsZero() {
			continue
		}
		if ev.CreatedAt.Before(start) || ev.CreatedAt.After(end) {
			continue
		}
		out = append(out, ev)
	}
	return out
}

func computeMobileActivityScore(events []domain.RawEvent, hasPhone bool) (score float64, warnings []string) {
	defer func() {
		if r := recover(); r != nil {
			score = 0
			warnings = append(warnings, "mobile_score_computation_failed")
		}
	}()

	mobileCount := 0
	for _, ev := range events {
		if mobileEventTypes[ev.EventType] {
			mobileCount++
		}
	}

	raw := 0.0
	if hasPhone {
		raw += 20
	}
	raw += math.Min(float64(len(events)), 50)
	raw += math.Min(float64(mobileCount)*3, 30)

	score = clamp(raw, 0, 100)
	if score < 0 || score > 100 {
		warnings = append(warnings, "mobile_score_out_of_range")
	}
	return score, warnings
}

func computeTransactionVolume(events []domain.RawEvent) (volume float64, warnings []string) {
	defer func() {
		if r := recover(); r != nil {
			volume = 0
			warnings = append(warnings, "transaction_volume_computation_failed")
		}
	}()

	total := 0.0
	for _, ev := range events {
		if ev.EventType != "transaction" {
			continue
		}
		amount, ok := toFloat(ev.EventData["amount"])
		if !ok {
			continue
		}
		total += amount
	}
	if total < 0 {
		warnings = append(warnings, "negative_transaction_volume")
		total = 0
	}
	return total, warnings
}

func computeActivityConsistency(events []domain.RawEvent) (consistency float64, warnings []string) {
	defer func() {
		if r := recover(); r != nil {
			consistency = 0
			warnings = append(warnings, "consistency_computation_failed")
		}
	}()

	if len(events) == 0 {
		return 0, nil
	}
	if len(events) == 1 {
		return 50, nil
	}

	byDay := map[string]int{}
	for _, ev := range events {
		byDay[ev.CreatedAt.UTC().Format("2006-01-02")]++
	}
	if len(byDay) == 1 {
		return 50, nil
	}

	counts := make([]float64, 0, len(byDay))
	for _, c := range byDay {
		counts = append(counts, float64(c))
	}
	mean := stat.Mean(counts, nil)
	if mean == 0 {
		return 0, nil
	}
	sd := stat.StdDev(counts, nil)
	cv := sd / mean

	consistency = clamp(100-50*cv, 0, 100)
	if consistency < 0 || consistency > 100 {
		warnings = append(warnings, "consistency_score_out_of_range")
	}
	return consistency, warnings
}

func computeDataQualityScore(warnings []string) float64 {
	if len(warnings) == 0 {
		return 1.0
	}

	score := 1.0

	critical := []string{"raw_events_fetch_failed", "no_raw_events"}
	for _, w := range warnings {
		if containsAny(w, critical) {
			score -= 0.3
		}
	}

	major := []string{"computation_failed", "out_of_range"}
	for _, w := range warnings {
		if containsAny(w, major) {
			score -= 0.2
		}
	}

	minor := []string{"low_event_count"}
	for _, w := range warnings {
		if containsAny(w, minor) {
			score -= 0.1
		}
	}

	return clamp(score, 0, 1)
}

func containsAny(s string, substrs []string) bool {
	for _, sub := range substrs {
		if strings.Contains(s, sub) {
			return true
		}
	}
	return false
}

func clamp(v, lo, hi float64) float64 {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}

func boolToFloat(b bool) float64 {
	if b {
		return 1
	}
	return 0
}

func toFloat(v interface{}) (float64, bool) {
	switch n := v.(type) {
	case float64:
		return n, true
	case float32:
		return float64(n), true
	case int:
		return float64(n), true
	case int64:
		return float64(n), true
	case string:
		var f float64
		if _, err := fmt.Sscanf(n, "%g", &f); err == nil {
			return f, true
		}
		return 0, false
	default:
		return 0, false
	}
}
