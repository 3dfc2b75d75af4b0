// Package fraudengine aggregates the registered fraud detectors into one
// combined score, flag set, and explanation list (spec §4.E).
package fraudengine

import (
	"fmt"

	"go.uber.org/zap"

	"github.com/creditbridge/decision-service/domain"
	"github.com/creditbridge/decision-service/frauddetectors"
)

type AggregationStrategy string

const (
	StrategyMax      AggregationStrategy = "max"
	StrategyAvg      AggregationStrategy = "avg"
	StrategyWeighted AggregationStrategy = "weighted"
)

// Result is the Fraud Engine's public output shape (spec §4.E.6).
type Result struct {
	FraudScore         float64
	Flags              []string
	Explanation        []string
	CombinedFraudScore *float64
	ConsolidatedFlags  []string
	MergedExplanation  []string
	IsFraud            bool
	RiskLevel          string
	Confidence         float64
	DetectorOutputs    []DetectorOutput
	AggregationDetails map[string]interface{}
}

// DetectorOutput records one detector's raw evaluation, named.
type DetectorOutput struct {
	Name   string
	Output frauddetectors.Output
	Err    error
}

// Engine validates feature compatibility, runs every registered detector,
// and aggregates their outputs by a configured strategy.
type Engine struct {
	detectors []frauddetectors.Detector
	strategy  AggregationStrategy
	logger    *zap.Logger
}

func NewEngine(detectors []frauddetectors.Detector, strategy AggregationStrategy, logger *zap.Logger) *Engine {
	if strategy == "" {
		strategy = StrategyMax
	}
	return &Engine{detectors: detectors, strategy: strategy, logger: logger}
}

// Evaluate runs the pipeline described in spec §4.E steps 1-6.
func (e *Engine) Evaluate(input frauddetectors.Input) (Result, error) {
	if len(input.Features) == 0 || input.FeatureSet == "" || input.FeatureVersion == "" {
		return Result{}, &domain.FeatureCompatibilityError{
			Component: "FraudEngine",
			Reason:    "engineered feature vectors required, not raw data",
		}
	}

	for _, det := range e.detectors {
		if err := det.ValidateFeatures(input); err != nil {
			return Result{}, &domain.FeatureCompatibilityError{
				Component: det.Name(),
				Reason:    err.Error(),
			}
		}
	}

	outputs := make([]DetectorOutput, 0, len(e.detectors))
	for _, det := range e.detectors {
		out, err := det.Evaluate(input)
		if err != nil && e.logger != nil {
			e.logger.Error("fraud detector failed", zap.String("detector", det.Name()), zap.Error(err))
		}
		outputs = append(outputs, DetectorOutput{Name: det.Name(), Output: out, Err: err})
	}

	combined, details := e.aggregate(outputs)

	flags, explanation := consolidate(outputs)

	riskLevel := riskLevelFor(combined)
	isFraud := combined >= 0.6

	combinedPtr := combined

	return Result{
		FraudScore:         combined,
		Flags:              flags,
		Explanation:         explanation,
		CombinedFraudScore: &combinedPtr,
		ConsolidatedFlags:  flags,
		MergedExplanation:  explanation,
		IsFraud:            isFraud,
		RiskLevel:          riskLevel,
		Confidence:         1.0,
		DetectorOutputs:    outputs,
		AggregationDetails: details,
	}, nil
}

func (e *Engine) aggregate(outputs []DetectorOutput) (float64, map[string]interface{}) {
	var scores []float64
	for _, o := range outputs {
		if o.Err != nil {
			continue
		}
		scores = append(scores, o.Output.FraudScore)
	}
	if len(scores) == 0 {
		return 0, map[string]interface{}{"strategy": string(e.strategy), "scores": scores}
	}

	var combined float64
	switch e.strategy {
	case StrategyAvg:
		sum := 0.0
		for _, s := range scores {
			sum += s
		}
		combined = sum / float64(len(scores))
	case StrategyWeighted:
		// Equal weights in the absence of per-detector confidence.
		sum := 0.0
		for _, s := range scores {
			sum += s
		}
		combined = sum / float64(len(scores))
	default: // max
		combined = scores[0]
		for _, s := range scores[1:] {
			if s > combined {
				combined = s
			}
		}
	}

	return combined, map[string]interface{}{"strategy": string(e.strategy), "scores": scores}
}

func consolidate(outputs []DetectorOutput) (flags, explanation []string) {
	seen := map[string]bool{}
	for _, o := range outputs {
		if o.Err != nil {
			continue
		}
		for _, f := range o.Output.Flags {
			prefixed := fmt.Sprintf("%s:%s", o.Name, f)
			if !seen[prefixed] {
				seen[prefixed] = true
				flags = append(flags, prefixed)
			}
		}
		for _, ex := range o.Output.Explanation {
			explanation = append(explanation, fmt.Sprintf("[%s] %s", o.Name, ex))
		}
	}
	return flags, explanation
}

func riskLevelFor(score float64) string {
	switch {
	case score >= 0.8:
		return "critical"
	case score >= 0.6:
		return "high"
	case score >= 0.3:
		return "medium"
	default:
		return "low"
	}
}
