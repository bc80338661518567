package categorization

import (
	"time"

	"github.com/curricula/backend/internal/domain/categorization"
	"github.com/google/uuid"
)

// SubmitJobRequest starts a categorization job over content items,
// scoped to the given frameworks
type SubmitJobRequest struct {
	ItemIDs      []uuid.UUID `json:"item_ids" binding:"required,min=1,dive,required"`
	FrameworkIDs []uuid.UUID `json:"framework_ids" binding:"required,min=1,dive,required"`
}

// ProgressResponse mirrors categorization.Progress
type ProgressResponse struct {
	Total     int `json:"total"`
	Processed int `json:"processed"`
	Succeeded int `json:"succeeded"`
	Failed    int `json:"failed"`
	Percent   int `json:"percent"`
}

// FailureResponse is one failed item of a job
type FailureResponse struct {
	ItemID     uuid.UUID `json:"item_id"`
	Kind       string    `json:"kind"`
	Reason     string    `json:"reason"`
	Attempts   int       `json:"attempts"`
	OccurredAt time.Time `json:"occurred_at"`
}

// JobResponse is the full view of a job
type JobResponse struct {
	ID              uuid.UUID         `json:"id"`
	Status          string            `json:"status"`
	FrameworkIDs    []uuid.UUID       `json:"framework_ids"`
	ItemCount       int               `json:"item_count"`
	Progress        ProgressResponse  `json:"progress"`
	CancelRequested bool              `json:"cancel_requested"`
	FailureReason   string            `json:"failure_reason,omitempty"`
	Failures        []FailureResponse `json:"failures"`
	CreatedAt       time.Time         `json:"created_at"`
	UpdatedAt       time.Time         `json:"updated_at"`
	StartedAt       *time.Time        `json:"started_at,omitempty"`
	FinishedAt      *time.Time        `json:"finished_at,omitempty"`
}

// JobSummaryResponse is a job in list views, without failures
type JobSummaryResponse struct {
	ID           uuid.UUID        `json:"id"`
	Status       string           `json:"status"`
	FrameworkIDs []uuid.UUID      `json:"framework_ids"`
	Progress     ProgressResponse `json:"progress"`
	CreatedAt    time.Time        `json:"created_at"`
	FinishedAt   *time.Time       `json:"finished_at,omitempty"`
}

// ToProgressResponse converts progress counters
func ToProgressResponse(p categorization.Progress) ProgressResponse {
	percent := 0
	if p.Total > 0 {
		percent = p.Processed * 100 / p.Total
	}
	return ProgressResponse{
		Total:     p.Total,
		Processed: p.Processed,
		Succeeded: p.Succeeded,
		Failed:    p.Failed,
		Percent:   percent,
	}
}

// ToFailureResponses converts item failures
func ToFailureResponses(failures []categorization.ItemFailure) []FailureResponse {
	out := make([]FailureResponse, 0, len(failures))
	for _, f := range failures {
		out = append(out, FailureResponse{
			ItemID:     f.ItemID,
			Kind:       string(f.Kind),
			Reason:     f.Reason,
			Attempts:   f.Attempts,
			OccurredAt: f.OccurredAt,
		})
	}
	return out
}

// ToJobResponse converts a job snapshot
func ToJobResponse(s categorization.JobSnapshot) JobResponse {
	return JobResponse{
		ID:              s.ID,
		Status:          s.Status.String(),
		FrameworkIDs:    s.ScopeFrameworkIDs,
		ItemCount:       len(s.ItemIDs),
		Progress:        ToProgressResponse(s.Progress),
		CancelRequested: s.CancelRequested,
		FailureReason:   s.FailureReason,
		Failures:        ToFailureResponses(s.Failures),
		CreatedAt:       s.CreatedAt,
		UpdatedAt:       s.UpdatedAt,
		StartedAt:       s.StartedAt,
		FinishedAt:      s.FinishedAt,
	}
}

// ToJobSummaryResponse converts a job snapshot for list views
func ToJobSummaryResponse(s categorization.JobSnapshot) JobSummaryResponse {
	return JobSummaryResponse{
		ID:           s.ID,
		Status:       s.Status.String(),
		FrameworkIDs: s.ScopeFrameworkIDs,
		Progress:     ToProgressResponse(s.Progress),
		CreatedAt:    s.CreatedAt,
		FinishedAt:   s.FinishedAt,
	}
}
