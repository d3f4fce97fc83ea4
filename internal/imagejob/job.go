// Package imagejob drives the asynchronous image-generation lifecycle:
// submit a job upstream, poll until terminal, mirror the result into
// owned storage. Terminal states are cached so repeated polls are
// idempotent and never duplicate billing or storage writes.
package imagejob

import (
	"errors"
	"fmt"
)

// Status is an image job's lifecycle state. Jobs transition from pending
// to exactly one terminal state and stay there.
type Status string

const (
	StatusPending Status = "pending"
	StatusSuccess Status = "success"
	StatusError   Status = "error"
)

// Job is the local view of one external generation job. For a successful
// job ResultURL is the mirrored location, never the upstream URL.
type Job struct {
	JobID       string `json:"job_id"`
	Status      Status `json:"status"`
	ResultURL   string `json:"result_url,omitempty"`
	ErrorDetail string `json:"error_detail,omitempty"`
}

// Terminal reports whether the job reached success or error.
func (j Job) Terminal() bool {
	return j.Status == StatusSuccess || j.Status == StatusError
}

// SubmissionError is a provider-reported failure at submission time. No
// job exists when this is returned.
type SubmissionError struct {
	Detail string
}

func (e *SubmissionError) Error() string {
	return fmt.Sprintf("image submission rejected: %s", e.Detail)
}

// ErrPollTimeout is returned by PollUntilDone when the retry budget is
// exhausted while the job is still pending. Distinct from a job error:
// the job may yet finish, the caller just stopped waiting.
var ErrPollTimeout = errors.New("image job still pending after poll budget exhausted")

// ErrEmptyPrompt rejects submissions with no prompt content.
var ErrEmptyPrompt = errors.New("image prompt must not be empty")
