package features

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/creditbridge/decision-service/domain"
	"github.com/creditbridge/decision-service/pkg/clock"
)

// fakeRepo implements only what the Feature Engine exercises; every other
// method panics if called so an unexpected dependency surfaces loudly.
type fakeRepo struct {
	domain.Repository
	events      []domain.RawEvent
	eventsErr   error
	savedVector *domain.FeatureVector
	auditCalls  int
}

func (r *fakeRepo) GetRawEvents(ctx context.Context, borrowerID string) ([]domain.RawEvent, error) {
	return r.events, r.eventsErr
}

func (r *fakeRepo) SaveModelFeatures(ctx context.Context, borrowerID, featureSet, featureVersion string, feats map[string]float64) (*domain.FeatureVector, error) {
	v := &domain.FeatureVector{BorrowerID: borrowerID, FeatureSet: featureSet, FeatureVersion: featureVersion, Features: feats}
	r.savedVector = v
	return v, nil
}

func (r *fakeRepo) LogAuditEvent(ctx context.Context, action, entityType, entityID string, metadata map[string]interface{}) *domain.AuditLog {
	r.auditCalls++
	return &domain.AuditLog{Action: action}
}

func TestComputeFeatures_NoEventsWarnsButNeverErrors(t *testing.T) {
	clk := clock.Frozen{At: time.Now()}
	repo := &fakeRepo{}
	e := NewEngine(repo, clk, 30, nil)

	result := e.ComputeFeatures(context.Background(), "b-1", true)
	assert.Contains(t, result.DataQualityWarnings, "no_raw_events")
	assert.Equal(t, FeatureSet, result.Vector.FeatureSet)
	assert.Equal(t, FeatureVersion, result.Vector.FeatureVersion)
	assert.Less(t, result.DataQualityScore, 1.0)
}

func TestComputeFeatures_RepositoryErrorDegradesToWarning(t *testing.T) {
	clk := clock.Frozen{At: time.Now()}
	repo := &fakeRepo{eventsErr: assertAnError{}}
	e := NewEngine(repo, clk, 30, nil)

	result := e.ComputeFeatures(context.Background(), "b-1", false)
	assert.Contains(t, result.DataQualityWarnings, "raw_events_fetch_failed")
}

type assertAnError struct{}

func (assertAnError) Error() string { return "boom" }

func TestComputeFeatures_FiltersEventsOutsideWindow(t *testing.T) {
	now := time.Date(2026, 1, 31, 0, 0, 0, 0, time.UTC)
	clk := clock.Frozen{At: now}
	repo := &fakeRepo{events: []domain.RawEvent{
		{EventType: "app_open", CreatedAt: now.AddDate(0, 0, -5)},
		{EventType: "app_open", CreatedAt: now.AddDate(0, 0, -90)},
	}}
	e := NewEngine(repo, clk, 30, nil)

	result := e.ComputeFeatures(context.Background(), "b-1", true)
	assert.Equal(t, 1, result.Vector.SourceEventCount)
}

func TestComputeFeatures_MobilePhoneRaisesMobileScore(t *testing.T) {
	now := time.Now()
	clk := clock.Frozen{At: now}
	events := []domain.RawEvent{
		{EventType: "mobile_payment", CreatedAt: now.AddDate(0, 0, -1)},
		{EventType: "app_open", CreatedAt: now.AddDate(0, 0, -2)},
	}
	repo := &fakeRepo{events: events}

	withPhone := NewEngine(repo, clk, 30, nil).ComputeFeatures(context.Background(), "b-1", true)
	withoutPhone := NewEngine(repo, clk, 30, nil).ComputeFeatures(context.Background(), "b-1", false)

	assert.Greater(t, withPhone.Vector.Features["mobile_activity_score"], withoutPhone.Vector.Features["mobile_activity_score"])
}

func TestSaveFeatures_PersistsAndAudits(t *testing.T) {
	clk := clock.Frozen{At: time.Now()}
	repo := &fakeRepo{}
	e := NewEngine(repo, clk, 30, nil)

	result := e.ComputeFeatures(context.Background(), "b-1", true)
	_, err := e.SaveFeatures(context.Background(), result)
	require.NoError(t, err)
	assert.Equal(t, 1, repo.auditCalls)
	assert.NotNil(t, repo.savedVector)
}
