package model

import "errors"

// DispatchTask is the typed message enqueued at intake and consumed by a
// dispatch worker. It carries everything the worker needs to submit the job
// to the external provider without re-reading the upload.
type DispatchTask struct {
	TaskID   string `json:"taskId"`
	JobID    string `json:"jobId"`
	UserID   string `json:"userId"`
	ImageURL string `json:"imageUrl"`
	Prompt   string `json:"prompt"`
}

// Validate is applied at the worker boundary; a malformed task is dropped
// rather than dispatched.
func (t *DispatchTask) Validate() error {
	switch {
	case t.JobID == "":
		return errors.New("dispatch task: missing jobId")
	case t.UserID == "":
		return errors.New("dispatch task: missing userId")
	case t.ImageURL == "":
		return errors.New("dispatch task: missing imageUrl")
	case t.Prompt == "":
		return errors.New("dispatch task: missing prompt")
	}
	return nil
}

// CorrelationEntry maps a provider-issued job id back to the internal job.
type CorrelationEntry struct {
	JobID  string `json:"jobId"`
	UserID string `json:"userId"`
}
