// Package ensemble composes the registered credit/trust models and the
// Fraud Engine over one immutable feature payload (spec §4.F).
package ensemble

import (
	"fmt"
	"sort"
	"strings"

	"go.uber.org/zap"

	"github.com/creditbridge/decision-service/domain"
	"github.com/creditbridge/decision-service/explain"
	"github.com/creditbridge/decision-service/fraudengine"
	"github.com/creditbridge/decision-service/frauddetectors"
	"github.com/creditbridge/decision-service/models"
)

// Weights maps a logical model family (credit/trust/fraud) to its
// contribution in the weighted-average aggregation (spec §4.F.6).
type Weights struct {
	Credit float64
	Trust  float64
	Fraud  float64
}

var DefaultWeights = Weights{Credit: 0.5, Trust: 0.3, Fraud: 0.2}

const requiredFeatureSet = "core_behavioral"
const requiredFeatureVersion = "v1"

var gateRequiredKeys = []string{"mobile_activity_score", "transaction_volume_30d", "activity_consistency"}

// Output is the Ensemble's unified result (spec §4.F.11).
type Output struct {
	FinalCreditScore    float64
	FraudFlag           bool
	Decision            string
	RiskLevel           string
	ModelOutputs        map[string]models.Output
	FailedModels        []string
	Explanation         map[string]models.Explanation
	StructuredExplanation explain.Structured
	FraudResult         fraudengine.Result
	EnsembleVersion     string
	ModelsUsed          []string
	WeightsUsed         Weights

	OverrideReason string
	OverrideSource string
}

// Ensemble runs models in registration order and then the Fraud Engine.
type Ensemble struct {
	models      []models.Model
	fraudEngine *fraudengine.Engine
	weights     Weights
	version     string
	explainer   *explain.Engine
	logger      *zap.Logger
}

func New(mdls []models.Model, fe *fraudengine.Engine, weights Weights, version string, explainer *explain.Engine, logger *zap.Logger) *Ensemble {
	if weights == (Weights{}) {
		weights = DefaultWeights
	}
	return &Ensemble{models: mdls, fraudEngine: fe, weights: weights, version: version, explainer: explainer, logger: logger}
}

// Predict runs the full pipeline described in spec §4.F.
func (e *Ensemble) Predict(borrower *domain.Borrower, loan *domain.LoanRequest) (Output, error) {
	if borrower == nil || borrower.EngineeredFeatures == nil {
		return Output{}, &domain.FeatureCompatibilityError{
			Component: "Ensemble",
			Reason:    "borrower.engineered_features missing; call the feature-computing entry point first",
		}
	}
	for _, k := range gateRequiredKeys {
		if _, ok := borrower.EngineeredFeatures[k]; !ok {
			return Output{}, &domain.FeatureCompatibilityError{
				Component: "Ensemble",
				Reason:    "borrower.engineered_features missing required key " + k,
			}
		}
	}

	featureSet := borrower.FeatureSet
	if featureSet == "" {
		featureSet = requiredFeatureSet
	}
	featureVersion := borrower.FeatureVersion
	if featureVersion == "" {
		featureVersion = requiredFeatureVersion
	}

	input := models.Input{
		Borrower:       borrower,
		LoanRequest:    loan,
		Features:       borrower.EngineeredFeatures,
		FeatureSet:     featureSet,
		FeatureVersion: featureVersion,
	}

	for _, m := range e.models {
		if err := m.ValidateFeatures(input); err != nil {
			return Output{}, &domain.FeatureCompatibilityError{Component: m.Name(), Reason: err.Error()}
		}
	}

	modelOutputs := map[string]models.Output{}
	var failedModels []string
	creditSucceeded := false
	explanations := map[string]models.Explanation{}
	var orderedNames []string

	for _, m := range e.models {
		orderedNames = append(orderedNames, m.Name())
		out, err := m.Predict(input)
		if err != nil {
			failedModels = append(failedModels, m.Name())
			if e.logger != nil {
				e.logger.Error("model prediction failed", zap.String("model", m.Name()), zap.Error(err))
			}
			continue
		}
		modelOutputs[m.Name()] = out
		if strings.Contains(strings.ToLower(m.Name()), "credit") {
			creditSucceeded = true
		}
		explanations[m.Name()] = m.Explain(input, out)
	}

	if !creditSucceeded {
		return Output{}, &domain.CriticalModelFailure{FailedModels: failedModels}
	}

	// Critical-flag override (highest priority, spec §4.F.5). Iterate in a
	// stable, sorted order so the chosen override source is deterministic
	// across runs when more than one model sets a critical flag.
	overrideNames := make([]string, 0, len(modelOutputs))
	for name := range modelOutputs {
		overrideNames = append(overrideNames, name)
	}
	sort.Strings(overrideNames)

	for _, name := range overrideNames {
		out := modelOutputs[name]
		if out.IsFraud || out.FlagRisk {
			reason := "fraud detected"
			overrideReason := "fraud_detection"
			if out.FlagRisk {
				reason = "fraud ring pattern detected"
				overrideReason = "fraud_ring"
			}
			return Output{
				FinalCreditScore: 0,
				FraudFlag:        true,
				Decision:         string(domain.DecisionRejected),
				RiskLevel:        "critical",
				ModelOutputs:     modelOutputs,
				FailedModels:     failedModels,
				Explanation:      explanations,
				OverrideReason:   overrideReason,
				OverrideSource:   name,
				EnsembleVersion:  e.version,
				ModelsUsed:       orderedNames,
				WeightsUsed:      e.weights,
			}.withOverrideMessage(fmt.Sprintf("CRITICAL: %s by %s", reason, name)), nil
		}
	}

	finalScore := e.aggregateScore(modelOutputs)
	fraudFlagFromModels := false
	for _, out := range modelOutputs {
		if out.IsFraud || out.FlagRisk {
			fraudFlagFromModels = true
		}
	}

	fraudInput := e.buildFraudInput(input, modelOutputs)
	fraudResult, err := e.fraudEngine.Evaluate(fraudInput)
	fraudFlag := fraudFlagFromModels
	if err != nil {
		if e.logger != nil {
			e.logger.Error("fraud engine unavailable", zap.Error(err))
		}
		fraudResult = fraudengine.Result{
			Flags:             []string{"fraud_engine_unavailable"},
			ConsolidatedFlags: []string{"fraud_engine_unavailable"},
			MergedExplanation: []string{"Fraud detection engine unavailable - defaulting to REVIEW"},
		}
	} else if fraudResult.IsFraud {
		fraudFlag = true
	}

	decision, riskLevel := decisionFor(finalScore)
	if fraudFlag {
		decision = string(domain.DecisionRejected)
		riskLevel = "critical"
	}

	structured := explain.Structured{}
	if e.explainer != nil {
		structured = e.explainer.Explain(explanations)
	}

	return Output{
		FinalCreditScore:      finalScore,
		FraudFlag:             fraudFlag,
		Decision:              decision,
		RiskLevel:             riskLevel,
		ModelOutputs:          modelOutputs,
		FailedModels:          failedModels,
		Explanation:           explanations,
		StructuredExplanation: structured,
		FraudResult:           fraudResult,
		EnsembleVersion:       e.version,
		ModelsUsed:            orderedNames,
		WeightsUsed:           e.weights,
	}, nil
}

func (o Output) withOverrideMessage(msg string) Output {
	o.Explanation = mergeOverrideExplanation(o.Explanation, msg)
	return o
}

func mergeOverrideExplanation(m map[string]models.Explanation, msg string) map[string]models.Explanation {
	if m == nil {
		m = map[string]models.Explanation{}
	}
	m["_override"] = models.Explanation{Summary: msg}
	return m
}

func (e *Ensemble) aggregateScore(outputs map[string]models.Output) float64 {
	totalWeight := 0.0
	weightedSum := 0.0
	for name, out := range outputs {
		weight := e.weightFor(name)
		totalWeight += weight
		weightedSum += weight * normalizeScore(out)
	}
	if totalWeight == 0 {
		return 50
	}
	score := weightedSum / totalWeight
	if score < 0 {
		score = 0
	}
	if score > 100 {
		score = 100
	}
	return round2(score)
}

// weightFor resolves the credit/trust/fraud weight bucket for a model by
// substring match on its name, per the Open Question resolution recorded
// in DESIGN.md: weight is taken over the surviving models only, i.e. the
// caller divides by totalWeight rather than a fixed denominator.
func (e *Ensemble) weightFor(name string) float64 {
	lower := strings.ToLower(name)
	switch {
	case strings.Contains(lower, "credit"):
		return e.weights.Credit
	case strings.Contains(lower, "trust"):
		return e.weights.Trust
	case strings.Contains(lower, "fraud"):
		return e.weights.Fraud
	default:
		return e.weights.Credit
	}
}

func normalizeScore(out models.Output) float64 {
	if out.HasScore && out.Score <= 100 {
		return out.Score
	}
	if out.HasTrust {
		return out.TrustScore * 100
	}
	if out.HasFraudScore {
		return (1 - out.FraudScore) * 100
	}
	return 50
}

func decisionFor(score float64) (string, string) {
	switch {
	case score >= 70:
		return string(domain.DecisionApproved), "low"
	case score >= 50:
		return string(domain.DecisionReview), "medium"
	default:
		return string(domain.DecisionRejected), "high"
	}
}

func round2(v float64) float64 {
	return float64(int(v*100+0.5)) / 100
}

func (e *Ensemble) buildFraudInput(input models.Input, outputs map[string]models.Output) frauddetectors.Input {
	tg := frauddetectors.TrustGraphData{}
	for name, out := range outputs {
		if out.HasTrust && strings.Contains(strings.ToLower(name), "trust") {
			tg = frauddetectors.TrustGraphData{
				Present:        true,
				TrustScore:     out.TrustScore,
				FlagRisk:       out.FlagRisk,
				DefaultRate:    out.DefaultRate,
				NetworkSize:    out.NetworkSize,
				DefaultedCount: out.DefaultedCount,
			}
		}
	}
	return frauddetectors.Input{
		Features:       input.Features,
		FeatureSet:     input.FeatureSet,
		FeatureVersion: input.FeatureVersion,
		TrustGraphData: tg,
	}
}
