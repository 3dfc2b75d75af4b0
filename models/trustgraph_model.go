package models

import (
	"math"

	"github.com/creditbridge/decision-service/features"
)

const TrustModelName = "TrustGraphModel-v1.0-POC"

// TrustGraphModel scores a borrower's trust network rather than the
// engineered feature vector (spec §4.C). It still declares the same
// schema as the credit models so the Ensemble's gate can validate it
// uniformly, but requires no specific feature keys.
type TrustGraphModel struct{}

func NewTrustGraphModel() *TrustGraphModel { return &TrustGraphModel{} }

func (m *TrustGraphModel) Name() string                  { return TrustModelName }
func (m *TrustGraphModel) RequiredFeatureSet() string     { return features.FeatureSet }
func (m *TrustGraphModel) RequiredFeatureVersion() string { return features.FeatureVersion }
func (m *TrustGraphModel) RequiredFeatureKeys() []string  { return nil }

func (m *TrustGraphModel) ValidateFeatures(input Input) error {
	return CheckSchema(m.Name(), m.RequiredFeatureSet(), m.RequiredFeatureVersion(), input.FeatureSet, input.FeatureVersion)
}

func (m *TrustGraphModel) Predict(input Input) (Output, error) {
	trust := 0.5
	peerCount := 0
	defaultedCount := 0

	if input.Borrower != nil {
		peerCount = len(input.Borrower.Peers)
		for _, peer := range input.Borrower.Peers {
			defaulted := !peer.Repaid
			delta := math.Log(1+float64(peer.InteractionCount)) / 10
			if defaulted {
				trust -= delta
				defaultedCount++
			} else {
				trust += delta
			}
		}
	}
	trust = clamp01(trust)

	flagRisk := false
	defaultRate := 0.0
	if peerCount > 0 {
		defaultRate = float64(defaultedCount) / float64(peerCount)
		if defaultRate > 0.5 {
			flagRisk = true
		}
	}

	return Output{
		TrustScore:     trust,
		HasTrust:       true,
		FlagRisk:       flagRisk,
		NetworkSize:    peerCount,
		DefaultedCount: defaultedCount,
		DefaultRate:    defaultRate,
	}, nil
}

func (m *TrustGraphModel) Explain(input Input, output Output) Explanation {
	return Explanation{
		Summary: "trust score derived from peer repayment history",
		Factors: []Factor{
			{Factor: "peer_network_size", Impact: "INFO", Explanation: "network size and repayment outcomes adjust trust from a 0.5 baseline"},
		},
	}
}

func clamp01(v float64) float64 {
	if v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}
