package frauddetectors

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTrustGraphFraudDetector_NoDataFallsBackToFlatScore(t *testing.T) {
	d := NewTrustGraphFraudDetector()
	out, err := d.Evaluate(Input{})
	require.NoError(t, err)
	assert.Equal(t, 0.3, out.FraudScore)
	assert.Equal(t, []string{"no_trust_graph_data"}, out.Flags)
}

func TestTrustGraphFraudDetector_FlagRiskAddsFraudRingFlag(t *testing.T) {
	d := NewTrustGraphFraudDetector()
	out, err := d.Evaluate(Input{TrustGraphData: TrustGraphData{
		Present: true, TrustScore: 0.5, FlagRisk: true, NetworkSize: 5,
	}})
	require.NoError(t, err)
	assert.Contains(t, out.Flags, "fraud_ring_detected")
}

func TestTrustGraphFraudDetector_IsolatedNetworkFloorsScore(t *testing.T) {
	d := NewTrustGraphFraudDetector()
	out, err := d.Evaluate(Input{TrustGraphData: TrustGraphData{
		Present: true, TrustScore: 0.9, NetworkSize: 0,
	}})
	require.NoError(t, err)
	assert.GreaterOrEqual(t, out.FraudScore, 0.3)
	assert.Contains(t, out.Flags, "network_isolation")
}

func TestTrustGraphFraudDetector_HighTrustLowScore(t *testing.T) {
	d := NewTrustGraphFraudDetector()
	out, err := d.Evaluate(Input{TrustGraphData: TrustGraphData{
		Present: true, TrustScore: 0.95, NetworkSize: 10,
	}})
	require.NoError(t, err)
	assert.InDelta(t, 0.05, out.FraudScore, 0.0001)
	assert.Empty(t, out.Flags)
}
