package application

import (
	"context"
	"net/http"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/creditbridge/decision-service/background"
	"github.com/creditbridge/decision-service/decision"
	"github.com/creditbridge/decision-service/domain"
	"github.com/creditbridge/decision-service/ensemble"
	"github.com/creditbridge/decision-service/explain"
	"github.com/creditbridge/decision-service/fairness"
	"github.com/creditbridge/decision-service/features"
	"github.com/creditbridge/decision-service/fraudengine"
	"github.com/creditbridge/decision-service/frauddetectors"
	"github.com/creditbridge/decision-service/guards"
	"github.com/creditbridge/decision-service/models"
	"github.com/creditbridge/decision-service/pkg/clock"
	"github.com/creditbridge/decision-service/policy"
)

// fakeRepo is a minimal, concurrency-safe Repository double covering
// exactly the calls the orchestrator and its collaborators make.
type fakeRepo struct {
	domain.Repository
	mu        sync.Mutex
	borrower  *domain.Borrower
	decisions int
}

func (r *fakeRepo) GetBorrowerByUser(ctx context.Context, userID string) (*domain.Borrower, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.borrower, nil
}

func (r *fakeRepo) CreateLoanRequest(ctx context.Context, borrowerID string, amount float64, purpose string) (*domain.LoanRequest, error) {
	return &domain.LoanRequest{ID: "loan-1", BorrowerID: borrowerID, RequestedAmount: amount, Purpose: purpose, Status: domain.LoanStatusPending, CreatedAt: time.Now()}, nil
}

func (r *fakeRepo) SaveCreditDecision(ctx context.Context, loanRequestID string, score float64, decisionStr, explanation, modelVersion string) (*domain.CreditDecision, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.decisions++
	d, _ := domain.NormalizeDecision(decisionStr)
	return &domain.CreditDecision{ID: "cd-1", LoanRequestID: loanRequestID, CreditScore: score, Decision: d, Explanation: explanation, ModelVersion: modelVersion, CreatedAt: time.Now()}, nil
}

func (r *fakeRepo) SaveDecisionLineage(ctx context.Context, decisionID, borrowerID string, dataSources, modelsUsed map[string]interface{}, policyVersion string, fraudChecks map[string]interface{}) (*domain.DecisionLineage, error) {
	return &domain.DecisionLineage{ID: "lineage-1"}, nil
}

func (r *fakeRepo) SaveModelFeatures(ctx context.Context, borrowerID, featureSet, featureVersion string, feats map[string]float64) (*domain.FeatureVector, error) {
	return &domain.FeatureVector{BorrowerID: borrowerID, FeatureSet: featureSet, FeatureVersion: featureVersion, Features: feats}, nil
}

func (r *fakeRepo) GetRawEvents(ctx context.Context, borrowerID string) ([]domain.RawEvent, error) {
	now := time.Now()
	return []domain.RawEvent{
		{EventType: "mobile_payment", CreatedAt: now.AddDate(0, 0, -1)},
		{EventType: "transaction", CreatedAt: now.AddDate(0, 0, -2), EventData: map[string]interface{}{"amount": 5000.0}},
		{EventType: "app_open", CreatedAt: now.AddDate(0, 0, -3)},
	}, nil
}

func (r *fakeRepo) GetUnprocessedEvents(ctx context.Context, borrowerID string) ([]domain.RawEvent, error) {
	return nil, nil
}

func (r *fakeRepo) MarkEventProcessed(ctx context.Context, eventID string, notes string) error { return nil }
func (r *fakeRepo) MarkEventFailed(ctx context.Context, eventID string, errText string) error  { return nil }

func (r *fakeRepo) LogAuditEvent(ctx context.Context, action, entityType, entityID string, metadata map[string]interface{}) *domain.AuditLog {
	return &domain.AuditLog{Action: action}
}

func (r *fakeRepo) RecentDecisionsWithDemographics(ctx context.Context, n int) ([]domain.DemographicDecision, error) {
	return nil, nil
}

func newTestOrchestrator(repo *fakeRepo, rateMax int) *Orchestrator {
	clk := clock.Real{}
	featureEngine := features.NewEngine(repo, clk, 30, nil)

	fe := fraudengine.NewEngine([]frauddetectors.Detector{
		frauddetectors.NewRuleBasedFraudDetector(),
		frauddetectors.NewTrustGraphFraudDetector(),
	}, fraudengine.StrategyMax, nil)

	ens := ensemble.New(
		[]models.Model{models.NewRuleBasedCreditModel(), models.NewTrustGraphModel()},
		fe, ensemble.DefaultWeights, "test-1.0.0", explain.NewEngine(), nil,
	)

	decisionEngine := decision.NewEngine("1.0.0", policy.DefaultConfig(), repo, nil)
	runner := background.NewRunner(repo, featureEngine, clk, nil)
	rateLimiter := guards.NewRateLimiter(rateMax, 60, clk)
	idempotency := guards.NewIdempotencyCache(1000, 3600, clk)
	fairnessMonitor := fairness.NewMonitor()

	return NewOrchestrator(repo, featureEngine, ens, decisionEngine, runner, rateLimiter, idempotency, fairnessMonitor, Config{ModelVersion: "ensemble-1.0.0", EnsembleVersion: "1.0.0"}, nil)
}

func TestHandleLoanRequest_UnknownBorrowerReturns404(t *testing.T) {
	repo := &fakeRepo{}
	o := newTestOrchestrator(repo, 100)

	outcome := o.HandleLoanRequest(context.Background(), LoanRequestInput{UserID: "u-1", RequestedAmount: 1000, Purpose: "car", RawBody: []byte(`{}`)})
	assert.Equal(t, http.StatusNotFound, outcome.StatusCode)
}

func TestHandleLoanRequest_InvalidAmountReturns422(t *testing.T) {
	repo := &fakeRepo{borrower: &domain.Borrower{ID: "b-1", HasPhone: true}}
	o := newTestOrchestrator(repo, 100)

	outcome := o.HandleLoanRequest(context.Background(), LoanRequestInput{UserID: "u-1", RequestedAmount: 0, Purpose: "car", RawBody: []byte(`{}`)})
	assert.Equal(t, http.StatusUnprocessableEntity, outcome.StatusCode)
}

func TestHandleLoanRequest_CleanRequestApproves(t *testing.T) {
	repo := &fakeRepo{borrower: &domain.Borrower{ID: "b-1", HasPhone: true, Peers: []domain.PeerRecord{
		{InteractionCount: 20, Repaid: true}, {InteractionCount: 20, Repaid: true},
	}}}
	o := newTestOrchestrator(repo, 100)

	outcome := o.HandleLoanRequest(context.Background(), LoanRequestInput{UserID: "u-1", RequestedAmount: 5000, Purpose: "car", RawBody: []byte(`{"a":1}`)})
	require.Equal(t, http.StatusOK, outcome.StatusCode)
	require.NotNil(t, outcome.Response)
	assert.True(t, outcome.Response.BackgroundTaskQueued)
	assert.Equal(t, string(domain.DecisionApproved), outcome.Response.CreditDecision.PolicyDecision.Decision)

	explanation := outcome.Response.CreditDecision.Explanation
	assert.NotEmpty(t, explanation.CreditFactors, "credit model factors should be surfaced in the response")
	assert.NotEmpty(t, explanation.TrustAnalysis, "trust model summary should be surfaced in the response")
}

func TestHandleLoanRequest_IdempotentReplayReturnsSameResponse(t *testing.T) {
	repo := &fakeRepo{borrower: &domain.Borrower{ID: "b-1", HasPhone: true}}
	o := newTestOrchestrator(repo, 100)

	in := LoanRequestInput{UserID: "u-1", IdempotencyKey: "key-1", RequestedAmount: 5000, Purpose: "car", RawBody: []byte(`{"a":1}`)}
	first := o.HandleLoanRequest(context.Background(), in)
	require.Equal(t, http.StatusOK, first.StatusCode)

	second := o.HandleLoanRequest(context.Background(), in)
	assert.Equal(t, http.StatusOK, second.StatusCode)
	assert.Equal(t, 1, repo.decisions, "a replayed idempotent request must not create a second decision")
}

func TestHandleLoanRequest_IdempotencyConflictOnDifferentBody(t *testing.T) {
	repo := &fakeRepo{borrower: &domain.Borrower{ID: "b-1", HasPhone: true}}
	o := newTestOrchestrator(repo, 100)

	first := o.HandleLoanRequest(context.Background(), LoanRequestInput{UserID: "u-1", IdempotencyKey: "key-1", RequestedAmount: 5000, Purpose: "car", RawBody: []byte(`{"a":1}`)})
	require.Equal(t, http.StatusOK, first.StatusCode)

	second := o.HandleLoanRequest(context.Background(), LoanRequestInput{UserID: "u-1", IdempotencyKey: "key-1", RequestedAmount: 9000, Purpose: "car", RawBody: []byte(`{"a":2}`)})
	assert.Equal(t, http.StatusConflict, second.StatusCode)
}

func TestHandleLoanRequest_RateLimitReturns429WithRetryAfter(t *testing.T) {
	repo := &fakeRepo{borrower: &domain.Borrower{ID: "b-1", HasPhone: true}}
	o := newTestOrchestrator(repo, 1)

	first := o.HandleLoanRequest(context.Background(), LoanRequestInput{UserID: "u-1", RequestedAmount: 5000, Purpose: "car", RawBody: []byte(`{"a":1}`)})
	require.Equal(t, http.StatusOK, first.StatusCode)

	second := o.HandleLoanRequest(context.Background(), LoanRequestInput{UserID: "u-1", RequestedAmount: 5000, Purpose: "car", RawBody: []byte(`{"a":2}`)})
	assert.Equal(t, http.StatusTooManyRequests, second.StatusCode)
	assert.GreaterOrEqual(t, second.RetryAfterSeconds, 1)

	thirdDifferentUser := o.HandleLoanRequest(context.Background(), LoanRequestInput{UserID: "u-2", RequestedAmount: 5000, Purpose: "car", RawBody: []byte(`{"a":1}`)})
	assert.Equal(t, http.StatusOK, thirdDifferentUser.StatusCode, "a different user must not be affected by user-1's rate limit")
}
