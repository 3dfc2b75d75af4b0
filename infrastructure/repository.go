// Package infrastructure is the Postgres-backed implementation of
// domain.Repository (spec §4.A), grounded on the teacher's
// decision_repository.go: database/sql + lib/pq, raw SQL, JSONB columns.
package infrastructure

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	_ "github.com/lib/pq"
	"go.uber.org/zap"

	"github.com/creditbridge/decision-service/domain"
)

// PostgresRepository implements domain.Repository over a database/sql
// handle opened with the lib/pq driver.
type PostgresRepository struct {
	db     *sql.DB
	logger *zap.Logger
}

func NewPostgresRepository(db *sql.DB, logger *zap.Logger) *PostgresRepository {
	return &PostgresRepository{db: db, logger: logger}
}

// InitializeSchema runs the repository's idempotent DDL, matching the
// teacher's InitializeDatabase entrypoint.
func (r *PostgresRepository) InitializeSchema(ctx context.Context) error {
	_, err := r.db.ExecContext(ctx, schemaSQL)
	return err
}

func (r *PostgresRepository) CreateBorrower(ctx context.Context, userID, fullName, gender, region string) (*domain.Borrower, error) {
	if userID == "" || fullName == "" {
		return nil, &domain.RepositoryError{EntityID: userID, Message: "user_id and full_name are required"}
	}

	id := uuid.NewString()
	row := r.db.QueryRowContext(ctx, `
		INSERT INTO borrowers (id, user_id, full_name, gender, region)
		VALUES ($1, $2, $3, $4, $5)
		RETURNING id, user_id, full_name, gender, region
	`, id, userID, fullName, gender, region)

	b := &domain.Borrower{}
	if err := row.Scan(&b.ID, &b.UserID, &b.FullName, &b.Gender, &b.Region); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, &domain.RepositoryError{EntityID: userID, Message: "transaction returned no row"}
		}
		return nil, &domain.RepositoryError{EntityID: userID, Message: err.Error()}
	}
	return b, nil
}

func (r *PostgresRepository) GetBorrowerByUser(ctx context.Context, userID string) (*domain.Borrower, error) {
	row := r.db.QueryRowContext(ctx, `
		SELECT id, user_id, full_name, gender, region, has_phone
		FROM borrowers WHERE user_id = $1
	`, userID)

	b := &domain.Borrower{}
	if err := row.Scan(&b.ID, &b.UserID, &b.FullName, &b.Gender, &b.Region, &b.HasPhone); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, &domain.RepositoryError{EntityID: userID, Message: err.Error()}
	}
	return b, nil
}

func (r *PostgresRepository) CreateLoanRequest(ctx context.Context, borrowerID string, amount float64, purpose string) (*domain.LoanRequest, error) {
	if amount <= 0 || purpose == "" {
		return nil, &domain.RepositoryError{EntityID: borrowerID, Message: "requested_amount must be > 0 and purpose non-empty"}
	}

	id := uuid.NewString()
	row := r.db.QueryRowContext(ctx, `
		INSERT INTO loan_requests (id, borrower_id, requested_amount, purpose, status)
		VALUES ($1, $2, $3, $4, $5)
		RETURNING id, borrower_id, requested_amount, purpose, status, created_at
	`, id, borrowerID, amount, purpose, domain.LoanStatusPending)

	lr := &domain.LoanRequest{}
	if err := row.Scan(&lr.ID, &lr.BorrowerID, &lr.RequestedAmount, &lr.Purpose, &lr.Status, &lr.CreatedAt); err != nil {
		return nil, &domain.RepositoryError{EntityID: borrowerID, Message: err.Error()}
	}
	return lr, nil
}

func (r *PostgresRepository) SaveCreditDecision(ctx context.Context, loanRequestID string, score float64, decisionRaw string, explanation, modelVersion string) (*domain.CreditDecision, error) {
	if score < 0 || score > 1000 {
		return nil, &domain.RepositoryError{EntityID: loanRequestID, Message: "score out of range [0,1000]"}
	}
	if modelVersion == "" {
		return nil, &domain.RepositoryError{EntityID: loanRequestID, Message: "model_version must not be empty"}
	}
	normalized, ok := domain.NormalizeDecision(decisionRaw)
	if !ok {
		return nil, &domain.RepositoryError{EntityID: loanRequestID, Message: "decision must be one of approved/rejected/review"}
	}

	id := uuid.NewString()
	row := r.db.QueryRowContext(ctx, `
		INSERT INTO credit_decisions (id, loan_request_id, credit_score, decision, explanation, model_version)
		VALUES ($1, $2, $3, $4, $5, $6)
		RETURNING id, loan_request_id, credit_score, decision, explanation, model_version, created_at
	`, id, loanRequestID, score, string(normalized), explanation, modelVersion)

	cd := &domain.CreditDecision{}
	var decStr string
	if err := row.Scan(&cd.ID, &cd.LoanRequestID, &cd.CreditScore, &decStr, &cd.Explanation, &cd.ModelVersion, &cd.CreatedAt); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, &domain.RepositoryError{Critical: true, EntityID: loanRequestID, Message: "credit decision insert"}
		}
		return nil, &domain.RepositoryError{Critical: true, EntityID: loanRequestID, Message: err.Error()}
	}
	cd.Decision = domain.Decision(decStr)
	return cd, nil
}

func (r *PostgresRepository) SaveDecisionLineage(ctx context.Context, decisionID, borrowerID string, dataSources, modelsUsed map[string]interface{}, policyVersion string, fraudChecks map[string]interface{}) (*domain.DecisionLineage, error) {
	if dataSources == nil || modelsUsed == nil || fraudChecks == nil {
		return nil, &domain.RepositoryError{EntityID: decisionID, Message: "data_sources, models_used, and fraud_checks must all be maps"}
	}

	dsJSON, _ := json.Marshal(dataSources)
	muJSON, _ := json.Marshal(modelsUsed)
	fcJSON, _ := json.Marshal(fraudChecks)

	id := uuid.NewString()
	row := r.db.QueryRowContext(ctx, `
		INSERT INTO decision_lineage (id, decision_id, borrower_id, data_sources, models_used, policy_version, fraud_checks)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		RETURNING id, decision_id, borrower_id, policy_version, created_at
	`, id, decisionID, borrowerID, dsJSON, muJSON, policyVersion, fcJSON)

	dl := &domain.DecisionLineage{DataSources: dataSources, ModelsUsed: modelsUsed, FraudChecks: fraudChecks}
	if err := row.Scan(&dl.ID, &dl.DecisionID, &dl.BorrowerID, &dl.PolicyVersion, &dl.CreatedAt); err != nil {
		return nil, &domain.RepositoryError{EntityID: decisionID, Message: err.Error()}
	}
	return dl, nil
}

func (r *PostgresRepository) SaveModelFeatures(ctx context.Context, borrowerID, featureSet, featureVersion string, features map[string]float64) (*domain.FeatureVector, error) {
	featJSON, _ := json.Marshal(features)

	row := r.db.QueryRowContext(ctx, `
		INSERT INTO feature_vectors (borrower_id, feature_set, feature_version, features, source_event_count)
		VALUES ($1, $2, $3, $4, $5)
		RETURNING computed_at
	`, borrowerID, featureSet, featureVersion, featJSON, int(features["event_count"]))

	fv := &domain.FeatureVector{
		BorrowerID:     borrowerID,
		FeatureSet:     featureSet,
		FeatureVersion: featureVersion,
		Features:       features,
	}
	if err := row.Scan(&fv.ComputedAt); err != nil {
		return nil, &domain.RepositoryError{EntityID: borrowerID, Message: err.Error()}
	}
	return fv, nil
}

func (r *PostgresRepository) GetLatestFeatures(ctx context.Context, borrowerID, featureSet string) (*domain.FeatureVector, error) {
	row := r.db.QueryRowContext(ctx, `
		SELECT feature_set, feature_version, features, computed_at, source_event_count
		FROM feature_vectors
		WHERE borrower_id = $1 AND feature_set = $2
		ORDER BY computed_at DESC
		LIMIT 1
	`, borrowerID, featureSet)

	var featJSON []byte
	fv := &domain.FeatureVector{BorrowerID: borrowerID}
	if err := row.Scan(&fv.FeatureSet, &fv.FeatureVersion, &featJSON, &fv.ComputedAt, &fv.SourceEventCount); err != nil {
		return nil, &domain.RepositoryError{EntityID: borrowerID, Message: err.Error()}
	}
	_ = json.Unmarshal(featJSON, &fv.Features)
	return fv, nil
}

// LogAuditEvent never raises: it always returns an AuditLog, with Error
// set on failure rather than an error value surfacing to the caller.
func (r *PostgresRepository) LogAuditEvent(ctx context.Context, action, entityType, entityID string, metadata map[string]interface{}) *domain.AuditLog {
	if action == "" || entityType == "" {
		return &domain.AuditLog{Error: "action and entity_type are required"}
	}
	if metadata == nil {
		metadata = map[string]interface{}{}
	}
	metaJSON, _ := json.Marshal(metadata)

	id := uuid.NewString()
	_, err := r.db.ExecContext(ctx, `
		INSERT INTO audit_log (id, action, entity_type, entity_id, metadata)
		VALUES ($1, $2, $3, $4, $5)
	`, id, action, entityType, entityID, metaJSON)

	if err != nil {
		if r.logger != nil {
			r.logger.Error("audit log write failed", zap.String("action", action), zap.Error(err))
		}
		return &domain.AuditLog{Error: err.Error()}
	}
	return &domain.AuditLog{ID: id, Action: action, EntityType: entityType, EntityID: entityID, Metadata: metadata}
}

func (r *PostgresRepository) GetRawEvents(ctx context.Context, borrowerID string) ([]domain.RawEvent, error) {
	return r.queryEvents(ctx, `
		SELECT id, borrower_id, event_type, event_data, schema_version, processed, processed_at, processing_notes, created_at
		FROM raw_events WHERE borrower_id = $1 ORDER BY created_at DESC
	`, borrowerID)
}

func (r *PostgresRepository) GetUnprocessedEvents(ctx context.Context, borrowerID string) ([]domain.RawEvent, error) {
	return r.queryEvents(ctx, `
		SELECT id, borrower_id, event_type, event_data, schema_version, processed, processed_at, processing_notes, created_at
		FROM raw_events WHERE borrower_id = $1 AND processed = false ORDER BY created_at DESC
	`, borrowerID)
}

func (r *PostgresRepository) queryEvents(ctx context.Context, query string, borrowerID string) ([]domain.RawEvent, error) {
	rows, err := r.db.QueryContext(ctx, query, borrowerID)
	if err != nil {
		return nil, &domain.RepositoryError{EntityID: borrowerID, Message: err.Error()}
	}
	defer rows.Close()

	var events []domain.RawEvent
	for rows.Next() {
		var ev domain.RawEvent
		var dataJSON []byte
		if err := rows.Scan(&ev.ID, &ev.BorrowerID, &ev.EventType, &dataJSON, &ev.SchemaVersion, &ev.Processed, &ev.ProcessedAt, &ev.ProcessingNotes, &ev.CreatedAt); err != nil {
			return nil, &domain.RepositoryError{EntityID: borrowerID, Message: err.Error()}
		}
		_ = json.Unmarshal(dataJSON, &ev.EventData)
		events = append(events, ev)
	}
	return events, nil
}

func (r *PostgresRepository) MarkEventProcessed(ctx context.Context, eventID string, notes string) error {
	now := time.Now()
	_, err := r.db.ExecContext(ctx, `
		UPDATE raw_events SET processed = true, processed_at = $2, processing_notes = $3 WHERE id = $1
	`, eventID, now, notes)
	return err
}

func (r *PostgresRepository) MarkEventFailed(ctx context.Context, eventID string, errText string) error {
	now := time.Now()
	_, err := r.db.ExecContext(ctx, `
		UPDATE raw_events SET processed = false, processed_at = $2, processing_notes = $3 WHERE id = $1
	`, eventID, now, fmt.Sprintf("FAILED: %s", errText))
	return err
}

func (r *PostgresRepository) RecentDecisionsWithDemographics(ctx context.Context, n int) ([]domain.DemographicDecision, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT cd.decision, b.gender, b.region
		FROM credit_decisions cd
		JOIN loan_requests lr ON lr.id = cd.loan_request_id
		JOIN borrowers b ON b.id = lr.borrower_id
		ORDER BY cd.created_at DESC
		LIMIT $1
	`, n)
	if err != nil {
		return nil, &domain.RepositoryError{Message: err.Error()}
	}
	defer rows.Close()

	var out []domain.DemographicDecision
	for rows.Next() {
		var dd domain.DemographicDecision
		var decStr string
		if err := rows.Scan(&decStr, &dd.Gender, &dd.Region); err != nil {
			return nil, &domain.RepositoryError{Message: err.Error()}
		}
		dd.Decision = domain.Decision(decStr)
		out = append(out, dd)
	}
	return out, nil
}
