package models

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/curricula/backend/internal/domain/categorization"
	"github.com/google/uuid"
	"gorm.io/datatypes"
)

// CategorizationJobModel is the persistence model for the categorization Job aggregate root.
// Scope, items and failures are stored as JSONB documents.
type CategorizationJobModel struct {
	TenantAggregateModel
	Status            string         `gorm:"type:varchar(32);not null;index"`
	ScopeFrameworkIDs datatypes.JSON `gorm:"not null"`
	ItemIDs           datatypes.JSON `gorm:"not null"`
	Total             int            `gorm:"not null;default:0"`
	Processed         int            `gorm:"not null;default:0"`
	Succeeded         int            `gorm:"not null;default:0"`
	Failed            int            `gorm:"not null;default:0"`
	Failures          datatypes.JSON `gorm:"not null"`
	CancelRequested   bool           `gorm:"not null;default:false"`
	FailureReason     string         `gorm:"type:text"`
	StartedAt         *time.Time
	FinishedAt        *time.Time `gorm:"index"`
}

// TableName returns the table name for GORM
func (CategorizationJobModel) TableName() string {
	return "categorization_jobs"
}

// ToDomain converts the persistence model to a domain Job
func (m *CategorizationJobModel) ToDomain() (*categorization.Job, error) {
	var scope, items []uuid.UUID
	if err := unmarshalJSON(m.ScopeFrameworkIDs, &scope); err != nil {
		return nil, fmt.Errorf("decode scope of job %s: %w", m.ID, err)
	}
	if err := unmarshalJSON(m.ItemIDs, &items); err != nil {
		return nil, fmt.Errorf("decode items of job %s: %w", m.ID, err)
	}
	var failures []categorization.ItemFailure
	if err := unmarshalJSON(m.Failures, &failures); err != nil {
		return nil, fmt.Errorf("decode failures of job %s: %w", m.ID, err)
	}

	return categorization.RestoreJob(categorization.JobSnapshot{
		ID:                m.ID,
		TenantID:          m.TenantID,
		Status:            categorization.JobStatus(m.Status),
		ScopeFrameworkIDs: scope,
		ItemIDs:           items,
		Progress: categorization.Progress{
			Total:     m.Total,
			Processed: m.Processed,
			Succeeded: m.Succeeded,
			Failed:    m.Failed,
		},
		Failures:        failures,
		CancelRequested: m.CancelRequested,
		FailureReason:   m.FailureReason,
		CreatedAt:       m.CreatedAt,
		UpdatedAt:       m.UpdatedAt,
		StartedAt:       m.StartedAt,
		FinishedAt:      m.FinishedAt,
		Version:         m.Version,
	}), nil
}

// CategorizationJobModelFromDomain creates a new persistence model from a domain Job
func CategorizationJobModelFromDomain(job *categorization.Job) (*CategorizationJobModel, error) {
	s := job.Snapshot()

	scope, err := json.Marshal(s.ScopeFrameworkIDs)
	if err != nil {
		return nil, err
	}
	items, err := json.Marshal(s.ItemIDs)
	if err != nil {
		return nil, err
	}
	if s.Failures == nil {
		s.Failures = []categorization.ItemFailure{}
	}
	failures, err := json.Marshal(s.Failures)
	if err != nil {
		return nil, err
	}

	m := &CategorizationJobModel{
		Status:            string(s.Status),
		ScopeFrameworkIDs: datatypes.JSON(scope),
		ItemIDs:           datatypes.JSON(items),
		Total:             s.Progress.Total,
		Processed:         s.Progress.Processed,
		Succeeded:         s.Progress.Succeeded,
		Failed:            s.Progress.Failed,
		Failures:          datatypes.JSON(failures),
		CancelRequested:   s.CancelRequested,
		FailureReason:     s.FailureReason,
		StartedAt:         s.StartedAt,
		FinishedAt:        s.FinishedAt,
	}
	m.ID = s.ID
	m.TenantID = s.TenantID
	m.CreatedAt = s.CreatedAt
	m.UpdatedAt = s.UpdatedAt
	m.Version = s.Version
	return m, nil
}

func unmarshalJSON(raw datatypes.JSON, dst any) error {
	if len(raw) == 0 {
		return nil
	}
	return json.Unmarshal(raw, dst)
}
