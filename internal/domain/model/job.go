package model

import "time"

type JobType string

const (
	JobTypeImagine JobType = "imagine"
)

type JobStatus string

const (
	JobStatusPending            JobStatus = "pending"
	JobStatusProcessing         JobStatus = "processing"
	JobStatusAwaitingCompletion JobStatus = "awaiting_completion"
	JobStatusCompleted          JobStatus = "completed"
	JobStatusFailed             JobStatus = "failed"
)

// IsTerminal reports whether no further transition is permitted.
func (s JobStatus) IsTerminal() bool {
	return s == JobStatusCompleted || s == JobStatusFailed
}

// Job is the durable record for one user-submitted generation request.
// The job repository is its single owner; components read and mutate
// through it and never cache a copy across an async boundary.
type Job struct {
	ID               string
	UserID           string
	Type             JobType
	Status           JobStatus
	Prompt           string
	OriginalImageKey string
	APIJobID         string
	ResultImageKeys  []string
	Error            string
	CreatedAt        time.Time
	CompletedAt      *time.Time
}

func NewImagineJob(id, userID, prompt, originalImageKey string) *Job {
	return &Job{
		ID:               id,
		UserID:           userID,
		Type:             JobTypeImagine,
		Status:           JobStatusPending,
		Prompt:           prompt,
		OriginalImageKey: originalImageKey,
		CreatedAt:        time.Now(),
	}
}
