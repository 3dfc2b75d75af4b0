// Package frauddetectors holds the polymorphic fraud scorers the Fraud
// Engine runs over the same feature payload as the credit models
// (spec §4.D).
package frauddetectors

import "github.com/creditbridge/decision-service/models"

// TrustGraphData is the trust-network context a trust-aware detector
// consumes, built by the Ensemble from the TrustGraphModel's output.
type TrustGraphData struct {
	Present        bool
	TrustScore     float64
	FlagRisk       bool
	DefaultRate    float64
	NetworkSize    int
	DefaultedCount int
}

// Input mirrors models.Input but adds the trust-graph context detectors
// may read instead of (or in addition to) the feature vector.
type Input struct {
	Borrower       interface{}
	LoanRequest    interface{}
	Features       map[string]float64
	FeatureSet     string
	FeatureVersion string
	TrustGraphData TrustGraphData
}

// Output is a detector's evaluation result (spec §4.D).
type Output struct {
	FraudScore  float64
	Flags       []string
	Explanation []string
}

// Detector is the polymorphic fraud-scorer contract.
type Detector interface {
	Name() string
	RequiredFeatureSet() string
	RequiredFeatureVersion() string
	RequiredFeatureKeys() []string
	ValidateFeatures(input Input) error
	Evaluate(input Input) (Output, error)
}

func checkSchema(name, reqSet, reqVersion, set, version string) error {
	return models.CheckSchema(name, reqSet, reqVersion, set, version)
}

func requireKeys(name string, keys []string, features map[string]float64) error {
	return models.RequireKeys(name, keys, features)
}
