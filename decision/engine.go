// Package decision applies the policy rule buckets in priority order
// with safety overrides, and builds the lineage record (spec §4.H).
package decision

import (
	"context"

	"go.uber.org/zap"

	"github.com/creditbridge/decision-service/domain"
	"github.com/creditbridge/decision-service/ensemble"
	"github.com/creditbridge/decision-service/fraudengine"
	"github.com/creditbridge/decision-service/models"
	"github.com/creditbridge/decision-service/policy"
)

const engineVersion = "2.0.0"

// CreditResult is a typed view of the credit signal (score and risk
// level). MakeDecision does not take this type: it reads the same fields
// from a loosely-typed map.
type CreditResult struct {
	Score     float64
	RiskLevel string
}

// Engine evaluates REJECT > REVIEW > APPROVE in order, each guarded by
// the safety overrides in spec §4.H.1.
type Engine struct {
	policyVersion string
	cfg           policy.Config
	repo          domain.Repository
	logger        *zap.Logger
}

func NewEngine(policyVersion string, cfg policy.Config, repo domain.Repository, logger *zap.Logger) *Engine {
	return &Engine{policyVersion: policyVersion, cfg: cfg, repo: repo, logger: logger}
}

// MakeDecision implements spec §4.H.1-5. creditResult and fraudResult are
// passed as loosely-typed maps exactly as the orchestrator receives them
// from the Ensemble, so the nil/malformed checks mirror the source's
// duck-typed safety overrides precisely: a credit map that is nil, empty,
// or lacks a numeric "score" counts as a missing credit result.
func (e *Engine) MakeDecision(creditResult map[string]interface{}, fraudResult map[string]interface{}, fairnessFlags []string, loanAmount float64) domain.DecisionResult {
	creditScore, hasCreditScore := creditResult["score"].(float64)
	if !hasCreditScore {
		return domain.DecisionResult{
			Decision:      domain.DecisionReview,
			Reasons:       []string{"Missing credit scoring result - requires manual review"},
			PolicyVersion: e.policyVersion,
		}
	}
	if fraudResult == nil {
		return domain.DecisionResult{
			Decision:      domain.DecisionReview,
			Reasons:       []string{"Missing fraud detection result - requires manual review"},
			PolicyVersion: e.policyVersion,
		}
	}

	fraudScore, ok := extractFraudScore(fraudResult)
	if !ok {
		return domain.DecisionResult{
			Decision:      domain.DecisionReview,
			Reasons:       []string{"Fraud detection unavailable - requires manual review"},
			PolicyVersion: e.policyVersion,
		}
	}

	signals := policy.Signals{
		CreditScore:   creditScore,
		FraudScore:    fraudScore,
		FraudFlags:    toStringSlice(fraudResult["flags"]),
		FairnessFlags: fairnessFlags,
		LoanAmount:    loanAmount,
	}

	var reasons []string
	for _, rule := range policy.RejectionRules() {
		if triggered, reason := rule(signals, e.cfg); triggered {
			reasons = append(reasons, reason)
		}
	}
	if len(reasons) > 0 {
		return domain.DecisionResult{Decision: domain.DecisionRejected, Reasons: reasons, PolicyVersion: e.policyVersion}
	}

	for _, rule := range policy.ReviewRules() {
		if triggered, reason := rule(signals, e.cfg); triggered {
			reasons = append(reasons, reason)
		}
	}
	if len(reasons) > 0 {
		return domain.DecisionResult{Decision: domain.DecisionReview, Reasons: reasons, PolicyVersion: e.policyVersion}
	}

	for _, rule := range policy.ApprovalRules() {
		if triggered, reason := rule(signals, e.cfg); triggered {
			reasons = append(reasons, reason)
		}
	}
	if len(reasons) > 0 {
		return domain.DecisionResult{Decision: domain.DecisionApproved, Reasons: reasons, PolicyVersion: e.policyVersion}
	}

	return domain.DecisionResult{
		Decision:      domain.DecisionReview,
		Reasons:       []string{"No definitive policy rule triggered - requires manual review"},
		PolicyVersion: e.policyVersion,
	}
}

// SaveLineage builds the lineage map shape described in spec §4.H and
// persists it. Failure is non-blocking: it is audited here as
// "lineage_save_failed" and then returned, and the caller must not let it
// change the already-persisted decision.
func (e *Engine) SaveLineage(ctx context.Context, decisionID, borrowerID string, ensembleOut ensemble.Output, fraudResult fraudengine.Result, trustGraphUsed, alternativeDataUsed bool) error {
	dataSources := map[string]interface{}{
		"borrower_profile": true,
		"loan_request":     true,
		"trust_graph":      trustGraphUsed,
		"credit_bureau":    false,
		"alternative_data": alternativeDataUsed,
	}

	modelsUsed := map[string]interface{}{}
	for name, out := range ensembleOut.ModelOutputs {
		modelsUsed[name] = map[string]interface{}{
			"model":   name,
			"version": e.policyVersion,
			"score":   normalizedScoreForLineage(out),
		}
	}
	modelsUsed["fraud_detection"] = map[string]interface{}{
		"combined_score": fraudResult.FraudScore,
		"detectors":      detectorNames(fraudResult),
	}

	fraudChecks := map[string]interface{}{
		"fraud_score":          fraudResult.FraudScore,
		"fraud_flags":          fraudResult.ConsolidatedFlags,
		"fraud_explanation":    fraudResult.MergedExplanation,
		"aggregation_strategy": fraudResult.AggregationDetails["strategy"],
		"detector_count":       len(fraudResult.DetectorOutputs),
	}

	_, err := e.repo.SaveDecisionLineage(ctx, decisionID, borrowerID, dataSources, modelsUsed, e.policyVersion, fraudChecks)
	if err != nil {
		e.repo.LogAuditEvent(ctx, "lineage_save_failed", "decision_lineage", decisionID, map[string]interface{}{
			"error": err.Error(),
		})
		if e.logger != nil {
			e.logger.Warn("lineage save failed, decision unaffected", zap.String("decision_id", decisionID), zap.Error(err))
		}
	}
	return err
}

func normalizedScoreForLineage(out models.Output) float64 {
	if out.HasScore {
		return out.Score
	}
	if out.HasTrust {
		return out.TrustScore * 100
	}
	return 0
}

func detectorNames(r fraudengine.Result) []string {
	names := make([]string, 0, len(r.DetectorOutputs))
	for _, d := range r.DetectorOutputs {
		names = append(names, d.Name)
	}
	return names
}

func extractFraudScore(fraudResult map[string]interface{}) (float64, bool) {
	if v, ok := fraudResult["fraud_score"]; ok && v != nil {
		if f, ok := v.(float64); ok {
			return f, true
		}
	}
	if v, ok := fraudResult["combined_fraud_score"]; ok && v != nil {
		if f, ok := v.(float64); ok {
			return f, true
		}
	}
	return 0, false
}

func toStringSlice(v interface{}) []string {
	if v == nil {
		return nil
	}
	if s, ok := v.([]string); ok {
		return s
	}
	return nil
}
