package frauddetectors

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRuleBasedFraudDetector_HealthyActivityScoresZero(t *testing.T) {
	d := NewRuleBasedFraudDetector()
	out, err := d.Evaluate(Input{Features: map[string]float64{
		"transaction_volume_30d": 5000,
		"activity_consistency":   80,
	}})
	require.NoError(t, err)
	assert.Equal(t, 0.0, out.FraudScore)
	assert.Empty(t, out.Flags)
}

func TestRuleBasedFraudDetector_VeryLowVolumeAndConsistencyStack(t *testing.T) {
	d := NewRuleBasedFraudDetector()
	out, err := d.Evaluate(Input{Features: map[string]float64{
		"transaction_volume_30d": 100,
		"activity_consistency":   5,
	}})
	require.NoError(t, err)
	assert.Equal(t, 0.8, out.FraudScore)
	assert.ElementsMatch(t, []string{"very_low_transaction_volume", "very_low_activity_consistency"}, out.Flags)
}

func TestRuleBasedFraudDetector_ScoreClampedAtOne(t *testing.T) {
	d := &RuleBasedFraudDetector{VeryLowVolumeThreshold: 1000000, LowVolumeThreshold: 2000000, VeryLowConsistencyThresh: 1000000, LowConsistencyThreshold: 2000000}
	out, err := d.Evaluate(Input{Features: map[string]float64{"transaction_volume_30d": 0, "activity_consistency": 0}})
	require.NoError(t, err)
	assert.LessOrEqual(t, out.FraudScore, 1.0)
}
