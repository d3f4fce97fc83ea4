package imagejob

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"polychat/internal/storage"
)

const mirrorAttempts = 3

// TerminalStore caches first-observed terminal job states so repeated
// polls return the identical result without upstream side effects.
type TerminalStore interface {
	GetTerminal(ctx context.Context, jobID string) (Job, bool, error)
	PutTerminal(ctx context.Context, job Job) error
}

// Generator is the upstream submission/fetch surface the manager drives.
type Generator interface {
	Text2Img(ctx context.Context, prompt, modelID string, options map[string]any) (*generationResponse, error)
	Fetch(ctx context.Context, requestID string) (*generationResponse, error)
}

// Manager owns the submit → poll → materialize lifecycle. It never loops
// on its own: the caller schedules polling with its own retry budget.
type Manager struct {
	generator Generator
	store     TerminalStore
	mirror    storage.Mirror
	logger    *slog.Logger
}

// NewManager creates a Manager.
func NewManager(generator Generator, store TerminalStore, mirror storage.Mirror, logger *slog.Logger) *Manager {
	return &Manager{
		generator: generator,
		store:     store,
		mirror:    mirror,
		logger:    logger,
	}
}

// Submit sends a generation request and returns the provider's job
// handle. A provider-reported submission failure never yields a jobID.
// When the provider answers with an immediate result, the terminal state
// is materialized and cached right away; the returned jobID still polls
// normally.
func (m *Manager) Submit(ctx context.Context, prompt, modelID string, options map[string]any) (string, error) {
	if strings.TrimSpace(prompt) == "" {
		return "", ErrEmptyPrompt
	}

	resp, err := m.generator.Text2Img(ctx, prompt, modelID, options)
	if err != nil {
		return "", &SubmissionError{Detail: err.Error()}
	}
	if resp.Status == "error" {
		return "", &SubmissionError{Detail: resp.Message}
	}
	jobID := resp.ID.String()
	if jobID == "" {
		return "", &SubmissionError{Detail: "provider returned no job id"}
	}

	m.logger.Info("image job submitted", "job_id", jobID, "model_id", modelID, "eta", resp.ETA)

	if resp.Status == "success" && len(resp.Output) > 0 {
		if _, err := m.materialize(ctx, jobID, resp.Output[0]); err != nil {
			// Leave the job pending; the next poll retries the mirror.
			m.logger.Warn("immediate result not materialized", "job_id", jobID, "error", err)
		}
	}

	return jobID, nil
}

// Poll returns the job's current state. The first observation of a
// terminal upstream state transitions the local view exactly once; every
// later poll answers from the cache with the identical record.
func (m *Manager) Poll(ctx context.Context, jobID string) (Job, error) {
	if cached, found, err := m.store.GetTerminal(ctx, jobID); err != nil {
		return Job{}, err
	} else if found {
		return cached, nil
	}

	resp, err := m.generator.Fetch(ctx, jobID)
	if err != nil {
		return Job{}, fmt.Errorf("fetch job %s: %w", jobID, err)
	}

	switch resp.Status {
	case "success":
		if len(resp.Output) == 0 {
			return Job{}, fmt.Errorf("job %s succeeded with no output", jobID)
		}
		return m.materialize(ctx, jobID, resp.Output[0])

	case "error", "failed":
		job := Job{JobID: jobID, Status: StatusError, ErrorDetail: resp.Message}
		if err := m.store.PutTerminal(ctx, job); err != nil {
			return Job{}, err
		}
		return m.terminalView(ctx, job)

	default:
		return Job{JobID: jobID, Status: StatusPending}, nil
	}
}

// materialize mirrors the upstream result into owned storage, then caches
// the terminal record. Mirroring happens before the job is reported
// complete: the upstream URL is ephemeral and is never handed out.
func (m *Manager) materialize(ctx context.Context, jobID, upstreamURL string) (Job, error) {
	var mirrored string
	var err error
	for attempt := 1; attempt <= mirrorAttempts; attempt++ {
		mirrored, err = m.mirror.Mirror(ctx, upstreamURL)
		if err == nil {
			break
		}
		m.logger.Warn("mirror attempt failed", "job_id", jobID, "attempt", attempt, "error", err)
		if ctx.Err() != nil {
			return Job{}, ctx.Err()
		}
	}
	if err != nil {
		return Job{}, fmt.Errorf("mirror result for job %s: %w", jobID, err)
	}

	job := Job{JobID: jobID, Status: StatusSuccess, ResultURL: mirrored}
	if err := m.store.PutTerminal(ctx, job); err != nil {
		return Job{}, err
	}
	return m.terminalView(ctx, job)
}

// terminalView re-reads the cache after a PutTerminal so concurrent
// first-observers all return the record the winning writer stored.
func (m *Manager) terminalView(ctx context.Context, fallback Job) (Job, error) {
	cached, found, err := m.store.GetTerminal(ctx, fallback.JobID)
	if err != nil || !found {
		return fallback, nil
	}
	return cached, nil
}

// PollBudget bounds a caller's polling loop.
type PollBudget struct {
	MaxAttempts int
	Interval    time.Duration
}

// DefaultPollBudget matches the upstream provider's typical generation
// latency of tens of seconds.
var DefaultPollBudget = PollBudget{MaxAttempts: 20, Interval: 3 * time.Second}

// PollUntilDone polls on the caller's budget until the job is terminal.
// Budget exhaustion while still pending returns ErrPollTimeout, which is
// not a job failure: the job may still complete upstream.
func (m *Manager) PollUntilDone(ctx context.Context, jobID string, budget PollBudget) (Job, error) {
	if budget.MaxAttempts <= 0 {
		budget = DefaultPollBudget
	}

	for attempt := 1; attempt <= budget.MaxAttempts; attempt++ {
		job, err := m.Poll(ctx, jobID)
		if err != nil {
			return Job{}, err
		}
		if job.Terminal() {
			return job, nil
		}

		if attempt == budget.MaxAttempts {
			break
		}
		select {
		case <-ctx.Done():
			return Job{}, ctx.Err()
		case <-time.After(budget.Interval):
		}
	}
	return Job{}, ErrPollTimeout
}
