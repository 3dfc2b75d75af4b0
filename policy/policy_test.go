package policy

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestRuleCriticalFraudRejection_BoundaryExact(t *testing.T) {
	cfg := DefaultConfig()
	triggered, reason := ruleCriticalFraudRejection(Signals{FraudScore: 0.8}, cfg)
	assert.True(t, triggered)
	assert.Contains(t, reason, "Critical fraud risk detected")
}

func TestRuleCriticalFraudRejection_JustBelowBoundary(t *testing.T) {
	cfg := DefaultConfig()
	triggered, _ := ruleCriticalFraudRejection(Signals{FraudScore: 0.79}, cfg)
	assert.False(t, triggered)
}

func TestRuleFraudRingRejection_MatchesPrefixedFlag(t *testing.T) {
	cfg := DefaultConfig()
	triggered, reason := ruleFraudRingRejection(Signals{FraudFlags: []string{"trustgraph:fraud_ring_detected"}}, cfg)
	assert.True(t, triggered)
	assert.Equal(t, "Fraud ring pattern detected", reason)
}

func TestRuleExcessiveLoanAmountRejection_BoundaryExact(t *testing.T) {
	cfg := DefaultConfig()
	triggered, _ := ruleExcessiveLoanAmountRejection(Signals{LoanAmount: cfg.MaxLoanAmount}, cfg)
	assert.False(t, triggered, "amount exactly at the max must not be rejected")

	triggered, _ = ruleExcessiveLoanAmountRejection(Signals{LoanAmount: cfg.MaxLoanAmount + 1}, cfg)
	assert.True(t, triggered, "amount one unit over the max must be rejected")
}

func TestRuleBorderlineCreditReview_Boundaries(t *testing.T) {
	cfg := DefaultConfig()

	triggered, _ := ruleBorderlineCreditReview(Signals{CreditScore: 50}, cfg)
	assert.True(t, triggered, "credit score of exactly 50 is borderline-review eligible")

	triggered, _ = ruleBorderlineCreditReview(Signals{CreditScore: 70}, cfg)
	assert.False(t, triggered, "credit score of exactly 70 meets approval, not borderline review")
}

func TestRuleCreditScoreApproval_RequiresAcceptableFraud(t *testing.T) {
	cfg := DefaultConfig()

	triggered, _ := ruleCreditScoreApproval(Signals{CreditScore: 70, FraudScore: 0.1}, cfg)
	assert.True(t, triggered)

	triggered, _ = ruleCreditScoreApproval(Signals{CreditScore: 95, FraudScore: 0.8}, cfg)
	assert.False(t, triggered, "critical fraud score must block approval even with a perfect credit score")
}

func TestRuleFairnessBiasReview_JoinsFlags(t *testing.T) {
	cfg := DefaultConfig()
	triggered, reason := ruleFairnessBiasReview(Signals{FairnessFlags: []string{"disparate_impact_gender"}}, cfg)
	assert.True(t, triggered)
	assert.Equal(t, "Fairness bias detected: disparate_impact_gender", reason)
}
