// Package domain holds the core entities and value objects of the credit
// decision pipeline: borrowers, raw events, feature vectors, loan requests,
// decisions, lineage, and the shared error vocabulary used across layers.
package domain

import "time"

// Borrower is owned exclusively by the Repository; gender is recorded but
// must never influence a model or detector output.
type Borrower struct {
	ID       string
	UserID   string
	FullName string
	Gender   string
	Region   string
	HasPhone bool

	// EngineeredFeatures is attached by the orchestrator after the Feature
	// Engine runs; it is not a persisted column on this struct.
	EngineeredFeatures map[string]float64
	FeatureSet         string
	FeatureVersion     string

	// Peers feeds the TrustGraphModel and the fraud engine's trust-graph
	// context; it is supplied by the caller, not computed from events.
	Peers []PeerRecord
}

// PeerRecord describes one relationship in a borrower's trust network.
type PeerRecord struct {
	InteractionCount int
	Repaid           bool
}

// RawEvent is mutated at most twice: once to mark it processed, once to
// mark it failed. Both transitions set ProcessedAt.
type RawEvent struct {
	ID              string
	BorrowerID      string
	EventType       string
	EventData       map[string]interface{}
	SchemaVersion   string
	Processed       bool
	ProcessedAt     *time.Time
	ProcessingNotes string
	CreatedAt       time.Time
}

// FeatureVector is immutable after insert. FeatureSet+FeatureVersion
// identify the schema that Features must fully satisfy.
type FeatureVector struct {
	BorrowerID       string
	FeatureSet       string
	FeatureVersion   string
	Features         map[string]float64
	ComputedAt       time.Time
	SourceEventCount int
}

// LoanRequest is the mutating request a borrower makes against the
// decision pipeline.
type LoanRequest struct {
	ID              string
	BorrowerID      string
	RequestedAmount float64
	Purpose         string
	Status          string
	CreatedAt       time.Time
}

const (
	LoanStatusPending = "pending"
)

// Decision is the normalized {approved, rejected, review} outcome stored
// against a loan request. "review" is stored natively, not mapped to
// "rejected" — see DESIGN.md's Open Question resolution.
type Decision string

const (
	DecisionApproved Decision = "approved"
	DecisionRejected Decision = "rejected"
	DecisionReview   Decision = "review"
)

// NormalizeDecision lower-cases and validates a wire/storage decision
// value per spec §6 ("case-insensitive accepted, normalized to lowercase").
func NormalizeDecision(raw string) (Decision, bool) {
	switch Decision(lower(raw)) {
	case DecisionApproved:
		return DecisionApproved, true
	case DecisionRejected:
		return DecisionRejected, true
	case DecisionReview:
		return DecisionReview, true
	default:
		return "", false
	}
}

func lower(s string) string {
	b := []byte(s)
	for i, c := range b {
		if c >= 'A' && c <= 'Z' {
			b[i] = c + ('a' - 'A')
		}
	}
	return string(b)
}

// CreditDecision is persisted exactly once per loan request on the happy
// path; overrides replace Decision and prepend metadata to Explanation
// rather than creating a new row.
type CreditDecision struct {
	ID            string
	LoanRequestID string
	CreditScore   float64
	Decision      Decision
	Explanation   string
	ModelVersion  string
	CreatedAt     time.Time
}

// DecisionLineage is append-only and reconstructs what produced a
// decision: which data sources, which models/versions/scores, and which
// policy version.
type DecisionLineage struct {
	ID            string
	DecisionID    string
	BorrowerID    string
	DataSources   map[string]interface{}
	ModelsUsed    map[string]interface{}
	PolicyVersion string
	FraudChecks   map[string]interface{}
	CreatedAt     time.Time
}

// AuditLog is append-only; persistence failures for it must never
// propagate to the caller (see Repository.LogAuditEvent).
type AuditLog struct {
	ID         string
	Action     string
	EntityType string
	EntityID   string
	Metadata   map[string]interface{}
	CreatedAt  time.Time
	Error      string
}

// DecisionResult is the Decision Engine's value object. Reasons is never
// empty — every code path that produces one appends at least one reason.
type DecisionResult struct {
	Decision      Decision
	Reasons       []string
	PolicyVersion string
}

// IdempotencyEntry is held in-process only (§4.J, §5).
type IdempotencyEntry struct {
	Key             string
	RequestBodyHash string
	ResponseBody    []byte
	StatusCode      int
	Headers         map[string]string
	CreatedAt       time.Time
}

// RateBucket is a per-user in-process token bucket (§4.J, §5).
type RateBucket struct {
	UserID     string
	Tokens     float64
	LastRefill time.Time
}
