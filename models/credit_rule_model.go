package models

import "github.com/creditbridge/decision-service/features"

const (
	CreditModelName           = "RuleBasedCreditModel-v1.0"
	creditModelBaseline       = 50.0
)

var creditModelRequiredKeys = []string{"mobile_activity_score", "transaction_volume_30d", "activity_consistency"}

// RuleBasedCreditModel is a deterministic additive scorer over the
// core_behavioral/v1 feature set (spec §4.C).
type RuleBasedCreditModel struct{}

func NewRuleBasedCreditModel() *RuleBasedCreditModel { return &RuleBasedCreditModel{} }

func (m *RuleBasedCreditModel) Name() string                   { return CreditModelName }
func (m *RuleBasedCreditModel) RequiredFeatureSet() string      { return features.FeatureSet }
func (m *RuleBasedCreditModel) RequiredFeatureVersion() string  { return features.FeatureVersion }
func (m *RuleBasedCreditModel) RequiredFeatureKeys() []string   { return creditModelRequiredKeys }

func (m *RuleBasedCreditModel) ValidateFeatures(input Input) error {
	if err := CheckSchema(m.Name(), m.RequiredFeatureSet(), m.RequiredFeatureVersion(), input.FeatureSet, input.FeatureVersion); err != nil {
		return err
	}
	return RequireKeys(m.Name(), m.RequiredFeatureKeys(), input.Features)
}

func (m *RuleBasedCreditModel) Predict(input Input) (Output, error) {
	score := creditModelBaseline

	mobile := input.Features["mobile_activity_score"]
	switch {
	case mobile >= 75 && mobile <= 100:
		score += 15
	case mobile >= 50 && mobile < 75:
		score += 10
	case mobile >= 25 && mobile < 50:
		score += 5
	}

	volume := input.Features["transaction_volume_30d"]
	switch {
	case volume >= 10000:
		score += 15
	case volume >= 5000:
		score += 10
	case volume >= 1000:
		score += 5
	}

	consistency := input.Features["activity_consistency"]
	switch {
	case consistency >= 75:
		score += 10
	case consistency >= 50:
		score += 5
	case consistency >= 25:
		score += 0
	default:
		score -= 5
	}

	if input.LoanRequest != nil && input.LoanRequest.RequestedAmount > 0 {
		amount := input.LoanRequest.RequestedAmount
		switch {
		case amount < 10000:
			score += 5
		case amount < 25000:
			score += 0
		case amount < 50000:
			score -= 5
		default:
			score -= 10
		}
	}

	if score < 0 {
		score = 0
	}
	if score > 100 {
		score = 100
	}

	riskLevel := "high"
	switch {
	case score >= 70:
		riskLevel = "low"
	case score >= 50:
		riskLevel = "medium"
	}

	return Output{Score: score, HasScore: true, RiskLevel: riskLevel}, nil
}

func (m *RuleBasedCreditModel) Explain(input Input, output Output) Explanation {
	var factors []Factor
	mobile := input.Features["mobile_activity_score"]
	factors = append(factors, Factor{
		Factor:      "mobile_activity_score",
		Impact:      bucketImpact(mobile, 75, 50, 25),
		Explanation: "mobile engagement contributes to the additive score",
	})
	volume := input.Features["transaction_volume_30d"]
	factors = append(factors, Factor{
		Factor:      "transaction_volume_30d",
		Impact:      bucketImpact(volume, 10000, 5000, 1000),
		Explanation: "30-day transaction volume contributes to the additive score",
	})
	consistency := input.Features["activity_consistency"]
	factors = append(factors, Factor{
		Factor:      "activity_consistency",
		Impact:      bucketImpact(consistency, 75, 50, 25),
		Explanation: "day-to-day activity consistency contributes to the additive score",
	})

	return Explanation{
		Summary:      "rule-based additive score from baseline 50",
		Factors:      factors,
		FeaturesUsed: m.RequiredFeatureKeys(),
	}
}

func bucketImpact(v, high, mid, low float64) string {
	switch {
	case v >= high:
		return "HIGH"
	case v >= mid:
		return "MEDIUM"
	case v >= low:
		return "LOW"
	default:
		return "NEGATIVE"
	}
}
