package domain

import "fmt"

// DecisionError is the single error type carried from any layer up to the
// HTTP boundary. Internal layers never construct HTTP semantics directly;
// the orchestrator maps error kinds to Code/HTTPStatus at the edge.
type DecisionError struct {
	Code        string
	Message     string
	Description string
	HTTPStatus  int
}

func (e *DecisionError) Error() string {
	return e.Message
}

const (
	ErrInvalidRequest       = "DECISION_001"
	ErrInsufficientData     = "DECISION_002"
	ErrFeatureValidation    = "DECISION_003"
	ErrCriticalModelFailure = "DECISION_004"
	ErrRepositoryTransient  = "DECISION_005"
	ErrRepositoryWrite      = "DECISION_006"
	ErrAuthIdentity         = "DECISION_007"
	ErrRateLimited          = "DECISION_008"
	ErrIdempotencyConflict  = "DECISION_009"
)

// FeatureCompatibilityError is raised by a Model/Detector's
// validate_features gate, or by the Fraud Engine/Ensemble gate, naming
// the offending component and the specific mismatch.
type FeatureCompatibilityError struct {
	Component string
	Reason    string
}

func (e *FeatureCompatibilityError) Error() string {
	return fmt.Sprintf("%s: %s", e.Component, e.Reason)
}

// CriticalModelFailure is raised by the Ensemble when no credit model
// succeeded — i.e. every model whose name contains "credit" failed.
type CriticalModelFailure struct {
	FailedModels []string
}

func (e *CriticalModelFailure) Error() string {
	return fmt.Sprintf("all credit models failed: %v", e.FailedModels)
}

// RepositoryError wraps a persistence failure. Decision writes that
// return no row are CRITICAL per spec §4.A/§7; audit writes never
// produce this — they degrade to AuditLog.Error instead.
type RepositoryError struct {
	Critical bool
	EntityID string
	Message  string
}

func (e *RepositoryError) Error() string {
	if e.Critical {
		return fmt.Sprintf("CRITICAL: %s (entity %s) decision was not persisted", e.Message, e.EntityID)
	}
	return fmt.Sprintf("%s (entity %s)", e.Message, e.EntityID)
}
