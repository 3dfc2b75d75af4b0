package frauddetectors

import "github.com/creditbridge/decision-service/features"

const TrustGraphDetectorName = "TrustGraphFraudDetector-v2.0"

// TrustGraphFraudDetector derives fraud signals from the trust-graph
// context the Ensemble assembles from the TrustGraphModel's output
// (spec §4.D). It declares the standard schema but no required
// behavioral keys.
type TrustGraphFraudDetector struct{}

func NewTrustGraphFraudDetector() *TrustGraphFraudDetector { return &TrustGraphFraudDetector{} }

func (d *TrustGraphFraudDetector) Name() string                  { return TrustGraphDetectorName }
func (d *TrustGraphFraudDetector) RequiredFeatureSet() string     { return features.FeatureSet }
func (d *TrustGraphFraudDetector) RequiredFeatureVersion() string { return features.FeatureVersion }
func (d *TrustGraphFraudDetector) RequiredFeatureKeys() []string  { return nil }

func (d *TrustGraphFraudDetector) ValidateFeatures(input Input) error {
	return checkSchema(d.Name(), d.RequiredFeatureSet(), d.RequiredFeatureVersion(), input.FeatureSet, input.FeatureVersion)
}

func (d *TrustGraphFraudDetector) Evaluate(input Input) (Output, error) {
	tg := input.TrustGraphData
	if !tg.Present {
		return Output{
			FraudScore:  0.3,
			Flags:       []string{"no_trust_graph_data"},
			Explanation: []string{"no trust graph data available for this borrower"},
		}, nil
	}

	score := 1 - tg.TrustScore
	var flags []string
	var explanation []string

	if tg.FlagRisk {
		flags = append(flags, "fraud_ring_detected")
		explanation = append(explanation, "peer network matches a fraud ring pattern")
	}
	if tg.NetworkSize == 0 {
		if score < 0.3 {
			score = 0.3
		}
		flags = append(flags, "network_isolation")
		explanation = append(explanation, "borrower has no peer network")
	}
	if tg.DefaultRate > 0.3 {
		flags = append(flags, "high_peer_default_rate")
		explanation = append(explanation, "peer network has a high default rate")
	}
	switch {
	case tg.TrustScore < 0.3:
		flags = append(flags, "very_low_trust_score")
		explanation = append(explanation, "trust score is very low")
	case tg.TrustScore < 0.5:
		flags = append(flags, "low_trust_score")
		explanation = append(explanation, "trust score is low")
	}

	if score < 0 {
		score = 0
	}
	if score > 1 {
		score = 1
	}

	return Output{FraudScore: score, Flags: flags, Explanation: explanation}, nil
}
