// Package fairness is the optional, non-blocking bias monitor of spec
// §4.K step 12, supplemented from original_source/backend/app/ai/fairness.py.
// It is explicitly POC-only (spec §9 Open Questions): production
// thresholds are not specified.
package fairness

import "github.com/creditbridge/decision-service/domain"

// SampleSize is the last-N-decisions window the POC monitor reads. Not
// to be over-engineered per spec §9.
const SampleSize = 20

// Report is the monitor's output, audited but never blocking.
type Report struct {
	DisparateImpact float64
	BiasDetected    bool

	// RegionDisparateImpact and RegionDisparityDetected mirror the
	// gender-based fields above but bucket by Region instead, per the
	// original's separate regional disparity check.
	RegionDisparateImpact   float64
	RegionDisparityDetected bool
}

// Monitor evaluates disparate impact across the most recent decisions'
// demographic attributes. Gender and region are read only here — never
// fed into a Model or Detector (spec §3 fairness invariant).
type Monitor struct{}

func NewMonitor() *Monitor { return &Monitor{} }

// Evaluate computes the four-fifths-rule approval-rate-ratio disparate
// impact independently across gender groups and region groups. Any
// failure must be swallowed by the caller (spec §4.K step 12).
func (m *Monitor) Evaluate(sample []domain.DemographicDecision) Report {
	if len(sample) == 0 {
		return Report{}
	}

	genderImpact, genderBias := disparateImpact(sample, func(d domain.DemographicDecision) string { return d.Gender })
	regionImpact, regionBias := disparateImpact(sample, func(d domain.DemographicDecision) string { return d.Region })

	return Report{
		DisparateImpact:         genderImpact,
		BiasDetected:            genderBias,
		RegionDisparateImpact:   regionImpact,
		RegionDisparityDetected: regionBias,
	}
}

// disparateImpact computes the four-fifths-rule ratio (lowest approval
// rate over highest approval rate) across the groups produced by
// keyOf, mirroring the original's min/max regional disparity check
// (and, for gender, its female/male ratio collapses to the same
// min/max-over-two-groups shape when only those two are present).
func disparateImpact(sample []domain.DemographicDecision, keyOf func(domain.DemographicDecision) string) (float64, bool) {
	approvedByGroup := map[string]int{}
	totalByGroup := map[string]int{}
	for _, d := range sample {
		group := keyOf(d)
		if group == "" {
			group = "unknown"
		}
		totalByGroup[group]++
		if d.Decision == domain.DecisionApproved {
			approvedByGroup[group]++
		}
	}

	var maxRate, minRate float64
	first := true
	for group, total := range totalByGroup {
		if total == 0 {
			continue
		}
		rate := float64(approvedByGroup[group]) / float64(total)
		if first {
			maxRate, minRate = rate, rate
			first = false
			continue
		}
		if rate > maxRate {
			maxRate = rate
		}
		if rate < minRate {
			minRate = rate
		}
	}

	if maxRate == 0 {
		return 0, false
	}

	impact := minRate / maxRate
	return impact, impact < 0.8 // four-fifths rule
}
