package fairness

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/creditbridge/decision-service/domain"
)

func TestEvaluate_EmptySampleReportsNoBias(t *testing.T) {
	m := NewMonitor()
	report := m.Evaluate(nil)
	assert.False(t, report.BiasDetected)
}

func TestEvaluate_EqualApprovalRatesNoBias(t *testing.T) {
	m := NewMonitor()
	sample := []domain.DemographicDecision{
		{Gender: "female", Decision: domain.DecisionApproved},
		{Gender: "female", Decision: domain.DecisionRejected},
		{Gender: "male", Decision: domain.DecisionApproved},
		{Gender: "male", Decision: domain.DecisionRejected},
	}
	report := m.Evaluate(sample)
	assert.Equal(t, 1.0, report.DisparateImpact)
	assert.False(t, report.BiasDetected)
}

func TestEvaluate_RegionDisparityIsIndependentOfGender(t *testing.T) {
	m := NewMonitor()
	sample := []domain.DemographicDecision{
		{Gender: "female", Region: "dhaka", Decision: domain.DecisionApproved},
		{Gender: "male", Region: "dhaka", Decision: domain.DecisionApproved},
		{Gender: "female", Region: "chittagong", Decision: domain.DecisionRejected},
		{Gender: "male", Region: "chittagong", Decision: domain.DecisionRejected},
		{Gender: "female", Region: "chittagong", Decision: domain.DecisionRejected},
		{Gender: "male", Region: "chittagong", Decision: domain.DecisionApproved},
	}
	report := m.Evaluate(sample)

	// Region approval rates are sharply skewed: dhaka 2/2 approved, chittagong 1/4 approved.
	assert.True(t, report.RegionDisparityDetected)
	assert.Less(t, report.RegionDisparateImpact, 0.8)
}

func TestEvaluate_SkewedApprovalRatesFlagsBias(t *testing.T) {
	m := NewMonitor()
	sample := []domain.DemographicDecision{
		{Gender: "female", Decision: domain.DecisionApproved},
		{Gender: "female", Decision: domain.DecisionRejected},
		{Gender: "female", Decision: domain.DecisionRejected},
		{Gender: "female", Decision: domain.DecisionRejected},
		{Gender: "male", Decision: domain.DecisionApproved},
		{Gender: "male", Decision: domain.DecisionApproved},
		{Gender: "male", Decision: domain.DecisionApproved},
		{Gender: "male", Decision: domain.DecisionRejected},
	}
	report := m.Evaluate(sample)
	assert.True(t, report.BiasDetected)
	assert.Less(t, report.DisparateImpact, 0.8)
}
