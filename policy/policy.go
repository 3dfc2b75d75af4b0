// Package policy holds the pure rule functions that turn AI signals into
// (triggered, reason) pairs, grouped into three ordered buckets
// (spec §4.G).
package policy

import (
	"fmt"
	"strings"
)

// Config carries the tunable thresholds spec §6 enumerates.
type Config struct {
	MinApprovalScore         float64
	MinReviewScore           float64
	MaxLoanAmount            float64
	RequireManualReviewAbove float64
	MaxFraudScore            float64
	CriticalRiskThreshold    float64
	HighRiskThreshold        float64
	MediumRiskThreshold      float64
}

func DefaultConfig() Config {
	return Config{
		MinApprovalScore:         70,
		MinReviewScore:           50,
		MaxLoanAmount:            500000,
		RequireManualReviewAbove: 200000,
		MaxFraudScore:            0.6,
		CriticalRiskThreshold:    0.8,
		HighRiskThreshold:        0.6,
		MediumRiskThreshold:      0.3,
	}
}

// Signals is the pure-function input every rule receives: the credit
// score, fraud score/flags, any fairness flags, and the loan amount.
type Signals struct {
	CreditScore  float64
	FraudScore   float64
	FraudFlags   []string
	FairnessFlags []string
	LoanAmount   float64
}

// Rule is a pure predicate over Signals.
type Rule func(s Signals, cfg Config) (triggered bool, reason string)

// RejectionRules fire in order; any firing rejects.
func RejectionRules() []Rule {
	return []Rule{
		ruleCriticalFraudRejection,
		ruleFraudRingRejection,
		ruleLowCreditScoreRejection,
		ruleExcessiveLoanAmountRejection,
	}
}

// ReviewRules fire in order; any firing routes to manual review.
func ReviewRules() []Rule {
	return []Rule{
		ruleHighFraudReview,
		ruleFairnessBiasReview,
		ruleBorderlineCreditReview,
		ruleHighValueLoanReview,
	}
}

// ApprovalRules fire in order; any firing approves.
func ApprovalRules() []Rule {
	return []Rule{
		ruleCreditScoreApproval,
	}
}

func ruleCriticalFraudRejection(s Signals, cfg Config) (bool, string) {
	if s.FraudScore >= cfg.CriticalRiskThreshold {
		return true, fmt.Sprintf("Critical fraud risk detected (score: %.2f)", s.FraudScore)
	}
	return false, ""
}

func ruleFraudRingRejection(s Signals, cfg Config) (bool, string) {
	for _, f := range s.FraudFlags {
		if strings.Contains(f, "fraud_ring") {
			return true, "Fraud ring pattern detected"
		}
	}
	return false, ""
}

func ruleLowCreditScoreRejection(s Signals, cfg Config) (bool, string) {
	if s.CreditScore < 50 {
		return true, fmt.Sprintf("Credit score (%.1f) below minimum threshold (50)", s.CreditScore)
	}
	return false, ""
}

func ruleExcessiveLoanAmountRejection(s Signals, cfg Config) (bool, string) {
	if s.LoanAmount > cfg.MaxLoanAmount {
		return true, fmt.Sprintf("Requested amount (%.0f) exceeds maximum (%.0f)", s.LoanAmount, cfg.MaxLoanAmount)
	}
	return false, ""
}

func ruleHighFraudReview(s Signals, cfg Config) (bool, string) {
	if s.FraudScore >= 0.5 && s.FraudScore < cfg.CriticalRiskThreshold {
		return true, fmt.Sprintf("Elevated fraud risk requires review (score: %.2f)", s.FraudScore)
	}
	return false, ""
}

func ruleFairnessBiasReview(s Signals, cfg Config) (bool, string) {
	if len(s.FairnessFlags) > 0 {
		return true, fmt.Sprintf("Fairness bias detected: %s", strings.Join(s.FairnessFlags, ", "))
	}
	return false, ""
}

func ruleBorderlineCreditReview(s Signals, cfg Config) (bool, string) {
	if s.CreditScore >= 50 && s.CreditScore < cfg.MinApprovalScore {
		return true, fmt.Sprintf("Borderline credit score (%.1f) requires manual review", s.CreditScore)
	}
	return false, ""
}

func ruleHighValueLoanReview(s Signals, cfg Config) (bool, string) {
	if s.LoanAmount >= cfg.RequireManualReviewAbove {
		return true, fmt.Sprintf("High-value loan (%.0f) requires manual review", s.LoanAmount)
	}
	return false, ""
}

func ruleCreditScoreApproval(s Signals, cfg Config) (bool, string) {
	if s.CreditScore >= cfg.MinApprovalScore && s.FraudScore < cfg.CriticalRiskThreshold {
		return true, fmt.Sprintf("Credit score (%.1f) meets approval threshold with acceptable fraud risk", s.CreditScore)
	}
	return false, ""
}
