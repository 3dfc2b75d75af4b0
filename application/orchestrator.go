// Package application composes the Repository, Feature Engine, Ensemble,
// Decision Engine, Background Runner, and Request Guards into the
// ordered loan-request pipeline (spec §4.K).
package application

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/creditbridge/decision-service/background"
	"github.com/creditbridge/decision-service/decision"
	"github.com/creditbridge/decision-service/domain"
	"github.com/creditbridge/decision-service/ensemble"
	"github.com/creditbridge/decision-service/fairness"
	"github.com/creditbridge/decision-service/features"
	"github.com/creditbridge/decision-service/guards"
)

// LoanRequestInput is the bound-and-authenticated shape the HTTP layer
// hands to the orchestrator.
type LoanRequestInput struct {
	UserID          string
	IdempotencyKey  string
	RequestedAmount float64
	Purpose         string
	RawBody         []byte
}

// AISignals is the wire shape under credit_decision.ai_signals (spec §6).
type AISignals struct {
	BaseCreditScore   float64  `json:"base_credit_score"`
	TrustScore        float64  `json:"trust_score"`
	TrustBoost        float64  `json:"trust_boost"`
	FinalCreditScore  float64  `json:"final_credit_score"`
	FraudScore        float64  `json:"fraud_score"`
	FraudFlags        []string `json:"fraud_flags"`
	RiskLevel         string   `json:"risk_level"`
	FlagRisk          bool     `json:"flag_risk"`
}

// Explanation is the wire shape under credit_decision.explanation.
type Explanation struct {
	Combined      string   `json:"combined"`
	CreditFactors []string `json:"credit_factors"`
	TrustAnalysis string   `json:"trust_analysis"`
	FraudAnalysis string   `json:"fraud_analysis"`
	PolicyReasons []string `json:"policy_reasons"`
	PeerNetwork   int      `json:"peer_network"`
}

// CreditDecisionView is the wire shape under response.credit_decision.
type CreditDecisionView struct {
	ID             string      `json:"id"`
	AISignals      AISignals   `json:"ai_signals"`
	PolicyDecision PolicyView  `json:"policy_decision"`
	Explanation    Explanation `json:"explanation"`
	ModelVersion   string      `json:"model_version"`
	CreatedAt      time.Time   `json:"created_at"`
}

// PolicyView is the wire shape under credit_decision.policy_decision.
type PolicyView struct {
	Decision      string   `json:"decision"`
	Reasons       []string `json:"reasons"`
	PolicyVersion string   `json:"policy_version"`
}

// LoanRequestResponse is the full 200 response shape (spec §6).
type LoanRequestResponse struct {
	LoanRequest         domain.LoanRequest  `json:"loan_request"`
	CreditDecision      CreditDecisionView  `json:"credit_decision"`
	BackgroundTaskQueued bool               `json:"background_task_queued"`
}

// Outcome is the orchestrator's verdict for the HTTP layer to translate
// into a status code; Err carries the *domain.DecisionError when non-nil.
type Outcome struct {
	StatusCode        int
	Response          *LoanRequestResponse
	Err               *domain.DecisionError
	RetryAfterSeconds int
}

// Config bundles every tunable of the pipeline (spec §6).
type Config struct {
	ModelVersion   string
	EnsembleVersion string
}

// Orchestrator is the fixed composition described in spec §4.K.
type Orchestrator struct {
	repo          domain.Repository
	featureEngine *features.Engine
	ensemble      *ensemble.Ensemble
	decisionEngine *decision.Engine
	runner        *background.Runner
	rateLimiter   *guards.RateLimiter
	idempotency   *guards.IdempotencyCache
	fairness      *fairness.Monitor
	cfg           Config
	logger        *zap.Logger
}

func NewOrchestrator(
	repo domain.Repository,
	featureEngine *features.Engine,
	ens *ensemble.Ensemble,
	decisionEngine *decision.Engine,
	runner *background.Runner,
	rateLimiter *guards.RateLimiter,
	idempotency *guards.IdempotencyCache,
	fairnessMonitor *fairness.Monitor,
	cfg Config,
	logger *zap.Logger,
) *Orchestrator {
	return &Orchestrator{
		repo: repo, featureEngine: featureEngine, ensemble: ens, decisionEngine: decisionEngine,
		runner: runner, rateLimiter: rateLimiter, idempotency: idempotency, fairness: fairnessMonitor,
		cfg: cfg, logger: logger,
	}
}

// HandleLoanRequest runs the full ordered pipeline of spec §4.K.
func (o *Orchestrator) HandleLoanRequest(ctx context.Context, in LoanRequestInput) Outcome {
	// 1. Rate-limit gate.
	if allowed, retryAfter := o.rateLimiter.Allow(in.UserID); !allowed {
		return Outcome{StatusCode: 429, RetryAfterSeconds: retryAfter, Err: &domain.DecisionError{
			Code: domain.ErrRateLimited, Message: fmt.Sprintf("rate limit exceeded, retry after %ds", retryAfter), HTTPStatus: 429,
		}}
	}

	bodyHash := hashBody(in.RawBody)

	// 1. Idempotency lookup.
	if in.IdempotencyKey != "" {
		lookup := o.idempotency.Get(in.IdempotencyKey, bodyHash)
		if lookup.Conflict {
			return Outcome{StatusCode: 409, Err: &domain.DecisionError{
				Code: domain.ErrIdempotencyConflict, Message: "idempotency key reused with a different request body", HTTPStatus: 409,
			}}
		}
		if lookup.Hit {
			var replay LoanRequestResponse
			_ = json.Unmarshal(lookup.Entry.ResponseBody, &replay)
			return Outcome{StatusCode: lookup.Entry.StatusCode, Response: &replay}
		}
	}

	// 2. Input validation.
	if in.RequestedAmount <= 0 || in.Purpose == "" {
		o.repo.LogAuditEvent(ctx, "invalid_loan_request", "loan_request", in.UserID, map[string]interface{}{
			"requested_amount": in.RequestedAmount, "purpose": in.Purpose,
		})
		return Outcome{StatusCode: 422, Err: &domain.DecisionError{
			Code: domain.ErrInvalidRequest, Message: "requested_amount must be > 0 and purpose must be non-empty", HTTPStatus: 422,
		}}
	}

	// 3. Resolve borrower.
	borrower, err := o.repo.GetBorrowerByUser(ctx, in.UserID)
	if err != nil {
		return Outcome{StatusCode: 503, Err: &domain.DecisionError{Code: domain.ErrRepositoryTransient, Message: "borrower lookup failed", Description: err.Error(), HTTPStatus: 503}}
	}
	if borrower == nil {
		return Outcome{StatusCode: 404, Err: &domain.DecisionError{Code: domain.ErrAuthIdentity, Message: "borrower profile not found", HTTPStatus: 404}}
	}

	// 4. Create loan request.
	loanReq, err := o.repo.CreateLoanRequest(ctx, borrower.ID, in.RequestedAmount, in.Purpose)
	if err != nil {
		return Outcome{StatusCode: 503, Err: &domain.DecisionError{Code: domain.ErrRepositoryTransient, Message: "failed to create loan request", Description: err.Error(), HTTPStatus: 503}}
	}

	// 5. Audit.
	o.repo.LogAuditEvent(ctx, "loan_requested", "loan_request", loanReq.ID, map[string]interface{}{
		"borrower_id": borrower.ID, "requested_amount": loanReq.RequestedAmount,
	})

	// 6. Compute features.
	featResult := o.featureEngine.ComputeFeatures(ctx, borrower.ID, borrower.HasPhone)
	if _, err := o.featureEngine.SaveFeatures(ctx, featResult); err != nil {
		o.repo.LogAuditEvent(ctx, "loan_request_failed", "loan_request", loanReq.ID, map[string]interface{}{
			"error_type": "feature_computation_error", "error": err.Error(),
		})
		return Outcome{StatusCode: 500, Err: &domain.DecisionError{Code: domain.ErrInsufficientData, Message: "feature computation failed", Description: err.Error(), HTTPStatus: 500}}
	}
	borrower.EngineeredFeatures = featResult.Vector.Features
	borrower.FeatureSet = featResult.Vector.FeatureSet
	borrower.FeatureVersion = featResult.Vector.FeatureVersion

	// 7. Ensemble.
	ensembleOut, err := o.ensemble.Predict(borrower, loanReq)
	if err != nil {
		switch err.(type) {
		case *domain.CriticalModelFailure:
			return Outcome{StatusCode: 503, Err: &domain.DecisionError{Code: domain.ErrCriticalModelFailure, Message: "all credit models failed", Description: err.Error(), HTTPStatus: 503}}
		default:
			o.repo.LogAuditEvent(ctx, "loan_request_failed", "loan_request", loanReq.ID, map[string]interface{}{
				"error_type": "validation_error", "error": err.Error(),
			})
			return Outcome{StatusCode: 500, Err: &domain.DecisionError{Code: domain.ErrFeatureValidation, Message: "feature validation error", Description: err.Error(), HTTPStatus: 500}}
		}
	}

	// 8. Decision Engine.
	creditResultMap := map[string]interface{}{"score": ensembleOut.FinalCreditScore, "risk_level": ensembleOut.RiskLevel}
	fraudResultMap := map[string]interface{}{"flags": ensembleOut.FraudResult.ConsolidatedFlags}
	if ensembleOut.FraudResult.CombinedFraudScore != nil {
		fraudResultMap["fraud_score"] = *ensembleOut.FraudResult.CombinedFraudScore
	}
	decisionResult := o.decisionEngine.MakeDecision(creditResultMap, fraudResultMap, nil, loanReq.RequestedAmount)

	// 9. Persist decision.
	combinedExplanation := buildCombinedExplanation(decisionResult, ensembleOut)
	creditDecision, err := o.repo.SaveCreditDecision(ctx, loanReq.ID, ensembleOut.FinalCreditScore, string(decisionResult.Decision), combinedExplanation, o.cfg.ModelVersion)
	if err != nil {
		return Outcome{StatusCode: 503, Err: &domain.DecisionError{Code: domain.ErrRepositoryWrite, Message: err.Error(), HTTPStatus: 503}}
	}

	// 10. Lineage (non-blocking).
	_ = o.decisionEngine.SaveLineage(ctx, creditDecision.ID, borrower.ID, ensembleOut, ensembleOut.FraudResult, len(borrower.Peers) > 0, false)

	// 11. Audit the full signal payload.
	o.repo.LogAuditEvent(ctx, "credit_decision_with_policy_engine", "credit_decision", creditDecision.ID, map[string]interface{}{
		"ai_signals":      creditResultMap,
		"policy_decision": decisionResult,
	})

	// 12. Optional fairness monitoring (non-blocking).
	o.runFairnessMonitoring(ctx)

	// 13. Enqueue background feature recomputation.
	go o.runner.TriggerFeatureComputation(context.Background(), borrower.ID, borrower.HasPhone)

	response := o.buildResponse(*loanReq, *creditDecision, decisionResult, ensembleOut, borrower)

	// 14. Idempotency cache entry.
	if in.IdempotencyKey != "" {
		respBytes, _ := json.Marshal(response)
		o.idempotency.Set(in.IdempotencyKey, bodyHash, respBytes, 200, nil)
	}

	return Outcome{StatusCode: 200, Response: &response}
}

func (o *Orchestrator) runFairnessMonitoring(ctx context.Context) {
	defer func() { _ = recover() }()
	sample, err := o.repo.RecentDecisionsWithDemographics(ctx, fairness.SampleSize)
	if err != nil {
		return
	}
	report := o.fairness.Evaluate(sample)
	o.repo.LogAuditEvent(ctx, "fairness_monitoring", "fairness_report", "", map[string]interface{}{
		"disparate_impact":          report.DisparateImpact,
		"bias_detected":             report.BiasDetected,
		"region_disparate_impact":   report.RegionDisparateImpact,
		"region_disparity_detected": report.RegionDisparityDetected,
	})
}

func (o *Orchestrator) buildResponse(loanReq domain.LoanRequest, cd domain.CreditDecision, dr domain.DecisionResult, eo ensemble.Output, borrower *domain.Borrower) LoanRequestResponse {
	trustScore, fraudScore := 0.0, 0.0
	for _, out := range eo.ModelOutputs {
		if out.HasTrust {
			trustScore = out.TrustScore
		}
	}
	if eo.FraudResult.CombinedFraudScore != nil {
		fraudScore = *eo.FraudResult.CombinedFraudScore
	}

	return LoanRequestResponse{
		LoanRequest: loanReq,
		CreditDecision: CreditDecisionView{
			ID: cd.ID,
			AISignals: AISignals{
				BaseCreditScore:  eo.FinalCreditScore,
				TrustScore:       trustScore,
				TrustBoost:       trustScore * 100 * eo.WeightsUsed.Trust,
				FinalCreditScore: eo.FinalCreditScore,
				FraudScore:       fraudScore,
				FraudFlags:       eo.FraudResult.ConsolidatedFlags,
				RiskLevel:        eo.RiskLevel,
				FlagRisk:         eo.FraudFlag,
			},
			PolicyDecision: PolicyView{Decision: string(dr.Decision), Reasons: dr.Reasons, PolicyVersion: dr.PolicyVersion},
			Explanation: Explanation{
				Combined:      cd.Explanation,
				CreditFactors: creditFactors(eo),
				TrustAnalysis: modelSummary(eo, "trust"),
				FraudAnalysis: strings.Join(eo.FraudResult.MergedExplanation, "; "),
				PolicyReasons: dr.Reasons,
				PeerNetwork:   len(borrower.Peers),
			},
			ModelVersion: cd.ModelVersion,
			CreatedAt:    cd.CreatedAt,
		},
		BackgroundTaskQueued: true,
	}
}

// creditFactors extracts the credit model's contributing factors as
// "<factor>: <explanation>" strings for the response's explanation block.
func creditFactors(eo ensemble.Output) []string {
	var factors []string
	for name, exp := range eo.Explanation {
		if !strings.Contains(strings.ToLower(name), "credit") {
			continue
		}
		for _, f := range exp.Factors {
			factors = append(factors, fmt.Sprintf("%s: %s", f.Factor, f.Explanation))
		}
	}
	return factors
}

// modelSummary returns the explanation summary of the first model whose
// name contains the given substring (case-insensitive).
func modelSummary(eo ensemble.Output, nameSubstr string) string {
	for name, exp := range eo.Explanation {
		if strings.Contains(strings.ToLower(name), nameSubstr) {
			return exp.Summary
		}
	}
	return ""
}

func buildCombinedExplanation(dr domain.DecisionResult, eo ensemble.Output) string {
	out := ""
	for i, r := range dr.Reasons {
		if i > 0 {
			out += "; "
		}
		out += r
	}
	return out
}

func hashBody(body []byte) string {
	sum := sha256.Sum256(body)
	return hex.EncodeToString(sum[:])
}
