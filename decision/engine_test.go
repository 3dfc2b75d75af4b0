package decision

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/creditbridge/decision-service/domain"
	"github.com/creditbridge/decision-service/policy"
)

func newTestEngine() *Engine {
	return NewEngine("1.0.0", policy.DefaultConfig(), nil, nil)
}

func TestMakeDecision_MissingCreditResultForcesReview(t *testing.T) {
	e := newTestEngine()
	result := e.MakeDecision(nil, map[string]interface{}{"fraud_score": 0.1}, nil, 1000)
	assert.Equal(t, domain.DecisionReview, result.Decision)
	assert.Equal(t, []string{"Missing credit scoring result - requires manual review"}, result.Reasons)
}

func TestMakeDecision_MissingFraudResultForcesReview(t *testing.T) {
	e := newTestEngine()
	result := e.MakeDecision(map[string]interface{}{"score": 90.0}, nil, nil, 1000)
	assert.Equal(t, domain.DecisionReview, result.Decision)
	assert.Equal(t, []string{"Missing fraud detection result - requires manual review"}, result.Reasons)
}

func TestMakeDecision_NullFraudScoreForcesReview(t *testing.T) {
	e := newTestEngine()
	result := e.MakeDecision(map[string]interface{}{"score": 90.0}, map[string]interface{}{"flags": []string{}}, nil, 1000)
	assert.Equal(t, domain.DecisionReview, result.Decision)
	assert.Equal(t, []string{"Fraud detection unavailable - requires manual review"}, result.Reasons)
}

func TestMakeDecision_AcceptsCombinedFraudScoreKey(t *testing.T) {
	e := newTestEngine()
	result := e.MakeDecision(
		map[string]interface{}{"score": 90.0},
		map[string]interface{}{"combined_fraud_score": 0.05, "flags": []string{}},
		nil, 1000,
	)
	assert.Equal(t, domain.DecisionApproved, result.Decision)
}

func TestMakeDecision_CleanApproval(t *testing.T) {
	e := newTestEngine()
	result := e.MakeDecision(
		map[string]interface{}{"score": 90.0},
		map[string]interface{}{"fraud_score": 0.05, "flags": []string{}},
		nil, 5000,
	)
	assert.Equal(t, domain.DecisionApproved, result.Decision)
	assert.Len(t, result.Reasons, 1)
}

func TestMakeDecision_FraudRingOverridesHighCreditScore(t *testing.T) {
	e := newTestEngine()
	result := e.MakeDecision(
		map[string]interface{}{"score": 95.0},
		map[string]interface{}{"fraud_score": 0.4, "flags": []string{"trustgraph:fraud_ring_detected"}},
		nil, 5000,
	)
	assert.Equal(t, domain.DecisionRejected, result.Decision)
	assert.Contains(t, result.Reasons, "Fraud ring pattern detected")
}
