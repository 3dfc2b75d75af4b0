// Package models holds the polymorphic credit/trust scorers the Ensemble
// runs over a single immutable feature payload (spec §4.C).
package models

import "github.com/creditbridge/decision-service/domain"

// Input is the immutable payload every Model receives — the same shape
// the Ensemble builds once per predict() call.
type Input struct {
	Borrower       *domain.Borrower
	LoanRequest    *domain.LoanRequest
	Features       map[string]float64
	FeatureSet     string
	FeatureVersion string
}

// Output is a loosely-typed result bag; concrete models populate the
// fields that apply to them (Score/RiskLevel for credit-family models,
// TrustScore/FlagRisk for trust-family models) so the Ensemble's
// normalization and override checks can inspect either shape.
type Output struct {
	Score         float64
	HasScore      bool
	TrustScore    float64
	HasTrust      bool
	FraudScore    float64
	HasFraudScore bool
	FlagRisk      bool
	RiskLevel     string
	IsFraud       bool

	// Trust-graph context, populated only by trust-family models, used
	// by the Ensemble to build the Fraud Engine's trust_graph_data.
	NetworkSize    int
	DefaultedCount int
	DefaultRate    float64
}

// Explanation is the per-model explanation the Ensemble stores under
// explanation.per_model[name].
type Explanation struct {
	Summary      string
	Factors      []Factor
	FeaturesUsed []string
}

// Factor is one contributing signal in a model's explanation.
type Factor struct {
	Factor      string
	Impact      string
	Explanation string
}

// Model is the polymorphic scorer contract (spec §4.C). Implementations
// must be stateless and safe for concurrent use (spec §4.F "Thread
// safety").
type Model interface {
	Name() string
	RequiredFeatureSet() string
	RequiredFeatureVersion() string
	RequiredFeatureKeys() []string
	ValidateFeatures(input Input) error
	Predict(input Input) (Output, error)
	Explain(input Input, output Output) Explanation
}
