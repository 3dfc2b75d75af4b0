package frauddetectors

import "github.com/creditbridge/decision-service/features"

const RuleDetectorName = "RuleBasedFraudDetector-v2.0"

var ruleDetectorRequiredKeys = []string{"transaction_volume_30d", "activity_consistency"}

// RuleBasedFraudDetector applies thresholded rules over the engineered
// feature vector (spec §4.D).
type RuleBasedFraudDetector struct {
	LowVolumeThreshold       float64
	VeryLowVolumeThreshold   float64
	LowConsistencyThreshold  float64
	VeryLowConsistencyThresh float64
}

func NewRuleBasedFraudDetector() *RuleBasedFraudDetector {
	return &RuleBasedFraudDetector{
		VeryLowVolumeThreshold:   500,
		LowVolumeThreshold:       1000,
		VeryLowConsistencyThresh: 15,
		LowConsistencyThreshold:  30,
	}
}

func (d *RuleBasedFraudDetector) Name() string                  { return RuleDetectorName }
func (d *RuleBasedFraudDetector) RequiredFeatureSet() string     { return features.FeatureSet }
func (d *RuleBasedFraudDetector) RequiredFeatureVersion() string { return features.FeatureVersion }
func (d *RuleBasedFraudDetector) RequiredFeatureKeys() []string  { return ruleDetectorRequiredKeys }

func (d *RuleBasedFraudDetector) ValidateFeatures(input Input) error {
	if err := checkSchema(d.Name(), d.RequiredFeatureSet(), d.RequiredFeatureVersion(), input.FeatureSet, input.FeatureVersion); err != nil {
		return err
	}
	return requireKeys(d.Name(), d.RequiredFeatureKeys(), input.Features)
}

func (d *RuleBasedFraudDetector) Evaluate(input Input) (Output, error) {
	score := 0.0
	var flags []string
	var explanation []string

	volume := input.Features["transaction_volume_30d"]
	switch {
	case volume < d.VeryLowVolumeThreshold:
		score += 0.4
		flags = append(flags, "very_low_transaction_volume")
		explanation = append(explanation, "transaction volume is very low over the last 30 days")
	case volume < d.LowVolumeThreshold:
		score += 0.2
		flags = append(flags, "low_transaction_volume")
		explanation = append(explanation, "transaction volume is low over the last 30 days")
	}

	consistency := input.Features["activity_consistency"]
	switch {
	case consistency < d.VeryLowConsistencyThresh:
		score += 0.4
		flags = append(flags, "very_low_activity_consistency")
		explanation = append(explanation, "daily activity pattern is very inconsistent")
	case consistency < d.LowConsistencyThreshold:
		score += 0.2
		flags = append(flags, "low_activity_consistency")
		explanation = append(explanation, "daily activity pattern is inconsistent")
	}

	if score > 1 {
		score = 1
	}

	return Output{FraudScore: score, Flags: flags, Explanation: explanation}, nil
}
