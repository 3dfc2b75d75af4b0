package domain

import "context"

// Repository is the typed, transaction-boundary-enforced persistence
// port for the whole pipeline (§4.A). Implemented by infrastructure's
// Postgres-backed store; mocked in tests.
type Repository interface {
	CreateBorrower(ctx context.Context, userID, fullName, gender, region string) (*Borrower, error)
	GetBorrowerByUser(ctx context.Context, userID string) (*Borrower, error)

	CreateLoanRequest(ctx context.Context, borrowerID string, amount float64, purpose string) (*LoanRequest, error)

	SaveCreditDecision(ctx context.Context, loanRequestID string, score float64, decision string, explanation, modelVersion string) (*CreditDecision, error)
	SaveDecisionLineage(ctx context.Context, decisionID, borrowerID string, dataSources, modelsUsed map[string]interface{}, policyVersion string, fraudChecks map[string]interface{}) (*DecisionLineage, error)

	SaveModelFeatures(ctx context.Context, borrowerID, featureSet, featureVersion string, features map[string]float64) (*FeatureVector, error)
	GetLatestFeatures(ctx context.Context, borrowerID, featureSet string) (*FeatureVector, error)

	LogAuditEvent(ctx context.Context, action, entityType, entityID string, metadata map[string]interface{}) *AuditLog

	GetRawEvents(ctx context.Context, borrowerID string) ([]RawEvent, error)
	GetUnprocessedEvents(ctx context.Context, borrowerID string) ([]RawEvent, error)
	MarkEventProcessed(ctx context.Context, eventID string, notes string) error
	MarkEventFailed(ctx context.Context, eventID string, errText string) error

	// RecentDecisionsWithDemographics backs the fairness monitor's
	// sampling window (last N decisions, POC-only per spec §9).
	RecentDecisionsWithDemographics(ctx context.Context, n int) ([]DemographicDecision, error)
}

// DemographicDecision pairs a persisted decision with the borrower's
// recorded demographic attribute, for the fairness monitor only — never
// fed to a Model or Detector.
type DemographicDecision struct {
	Decision Decision
	Gender   string
	Region   string
}
