package imagejob

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"testing"
	"time"
)

// fakeGenerator scripts upstream responses per call.
type fakeGenerator struct {
	submitResp  *generationResponse
	submitErr   error
	fetchResps  []*generationResponse
	fetchErr    error
	fetchCalls  int
	submitCalls int
}

func (g *fakeGenerator) Text2Img(ctx context.Context, prompt, modelID string, options map[string]any) (*generationResponse, error) {
	g.submitCalls++
	return g.submitResp, g.submitErr
}

func (g *fakeGenerator) Fetch(ctx context.Context, requestID string) (*generationResponse, error) {
	if g.fetchErr != nil {
		return nil, g.fetchErr
	}
	i := g.fetchCalls
	if i >= len(g.fetchResps) {
		i = len(g.fetchResps) - 1
	}
	g.fetchCalls++
	return g.fetchResps[i], nil
}

// memTerminalStore mimics the Redis cache's first-writer-wins put.
type memTerminalStore struct {
	mu   sync.Mutex
	jobs map[string]Job
	puts int
}

func newMemTerminalStore() *memTerminalStore {
	return &memTerminalStore{jobs: map[string]Job{}}
}

func (s *memTerminalStore) GetTerminal(ctx context.Context, jobID string) (Job, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	job, ok := s.jobs[jobID]
	return job, ok, nil
}

func (s *memTerminalStore) PutTerminal(ctx context.Context, job Job) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.puts++
	if _, exists := s.jobs[job.JobID]; !exists {
		s.jobs[job.JobID] = job
	}
	return nil
}

type fakeMirror struct {
	calls    int
	failures int // fail this many leading calls
}

func (m *fakeMirror) Mirror(ctx context.Context, remoteURL string) (string, error) {
	m.calls++
	if m.calls <= m.failures {
		return "", errors.New("download failed")
	}
	return "/media/" + fmt.Sprintf("mirrored-%d.png", m.calls), nil
}

func newTestManager(g *fakeGenerator, s TerminalStore, m *fakeMirror) *Manager {
	return NewManager(g, s, m, slog.New(slog.DiscardHandler))
}

func TestSubmitReturnsJobID(t *testing.T) {
	gen := &fakeGenerator{
		submitResp: &generationResponse{Status: "processing", ID: json.Number("12345"), ETA: 20},
	}
	m := newTestManager(gen, newMemTerminalStore(), &fakeMirror{})

	jobID, err := m.Submit(context.Background(), "a red fox", "flux", nil)
	if err != nil {
		t.Fatalf("Submit() error = %v", err)
	}
	if jobID != "12345" {
		t.Errorf("jobID = %q, want %q", jobID, "12345")
	}
}

func TestSubmitFailures(t *testing.T) {
	tests := []struct {
		name    string
		prompt  string
		gen     *fakeGenerator
		wantErr error
	}{
		{
			name:    "empty prompt never reaches the provider",
			prompt:  "   ",
			gen:     &fakeGenerator{},
			wantErr: ErrEmptyPrompt,
		},
		{
			name:   "transport error",
			prompt: "a fox",
			gen:    &fakeGenerator{submitErr: errors.New("connect refused")},
		},
		{
			name:   "provider-reported error",
			prompt: "a fox",
			gen:    &fakeGenerator{submitResp: &generationResponse{Status: "error", Message: "invalid model"}},
		},
		{
			name:   "missing job id",
			prompt: "a fox",
			gen:    &fakeGenerator{submitResp: &generationResponse{Status: "processing"}},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			m := newTestManager(tt.gen, newMemTerminalStore(), &fakeMirror{})
			jobID, err := m.Submit(context.Background(), tt.prompt, "flux", nil)
			if err == nil {
				t.Fatal("Submit() should fail")
			}
			if jobID != "" {
				t.Errorf("failed submission returned jobID %q", jobID)
			}
			if tt.wantErr != nil {
				if !errors.Is(err, tt.wantErr) {
					t.Errorf("error = %v, want %v", err, tt.wantErr)
				}
				return
			}
			var subErr *SubmissionError
			if !errors.As(err, &subErr) {
				t.Errorf("error type = %T, want *SubmissionError", err)
			}
		})
	}

	if tests[0].gen.submitCalls != 0 {
		t.Error("empty prompt should not call the provider")
	}
}

func TestPollPendingThenSuccess(t *testing.T) {
	gen := &fakeGenerator{
		fetchResps: []*generationResponse{
			{Status: "processing"},
			{Status: "success", Output: []string{"https://upstream/img.png"}},
		},
	}
	store := newMemTerminalStore()
	mirror := &fakeMirror{}
	m := newTestManager(gen, store, mirror)

	job, err := m.Poll(context.Background(), "j1")
	if err != nil {
		t.Fatalf("first Poll() error = %v", err)
	}
	if job.Status != StatusPending {
		t.Fatalf("Status = %q, want pending", job.Status)
	}
	if job.Terminal() {
		t.Error("pending job reported terminal")
	}

	job, err = m.Poll(context.Background(), "j1")
	if err != nil {
		t.Fatalf("second Poll() error = %v", err)
	}
	if job.Status != StatusSuccess {
		t.Fatalf("Status = %q, want success", job.Status)
	}
	if job.ResultURL == "" || job.ResultURL == "https://upstream/img.png" {
		t.Errorf("ResultURL = %q, want a mirrored location", job.ResultURL)
	}
}

func TestPollIdempotentAfterTerminal(t *testing.T) {
	gen := &fakeGenerator{
		fetchResps: []*generationResponse{
			{Status: "success", Output: []string{"https://upstream/img.png"}},
		},
	}
	store := newMemTerminalStore()
	mirror := &fakeMirror{}
	m := newTestManager(gen, store, mirror)

	first, err := m.Poll(context.Background(), "j1")
	if err != nil {
		t.Fatalf("Poll() error = %v", err)
	}

	for i := 0; i < 3; i++ {
		again, err := m.Poll(context.Background(), "j1")
		if err != nil {
			t.Fatalf("repeat Poll() error = %v", err)
		}
		if again != first {
			t.Errorf("repeat poll = %+v, want identical %+v", again, first)
		}
	}

	// Terminal polls answer from cache: one upstream fetch, one mirror.
	if gen.fetchCalls != 1 {
		t.Errorf("fetch calls = %d, want 1", gen.fetchCalls)
	}
	if mirror.calls != 1 {
		t.Errorf("mirror calls = %d, want 1", mirror.calls)
	}
}

func TestPollErrorState(t *testing.T) {
	gen := &fakeGenerator{
		fetchResps: []*generationResponse{
			{Status: "failed", Message: "NSFW content detected"},
		},
	}
	m := newTestManager(gen, newMemTerminalStore(), &fakeMirror{})

	job, err := m.Poll(context.Background(), "j1")
	if err != nil {
		t.Fatalf("Poll() error = %v", err)
	}
	if job.Status != StatusError {
		t.Errorf("Status = %q, want error", job.Status)
	}
	if job.ErrorDetail != "NSFW content detected" {
		t.Errorf("ErrorDetail = %q", job.ErrorDetail)
	}

	// Error state is cached the same way success is.
	again, err := m.Poll(context.Background(), "j1")
	if err != nil {
		t.Fatalf("repeat Poll() error = %v", err)
	}
	if again != job {
		t.Errorf("repeat poll = %+v, want %+v", again, job)
	}
	if gen.fetchCalls != 1 {
		t.Errorf("fetch calls = %d, want 1", gen.fetchCalls)
	}
}

func TestPollRetriesMirror(t *testing.T) {
	gen := &fakeGenerator{
		fetchResps: []*generationResponse{
			{Status: "success", Output: []string{"https://upstream/img.png"}},
		},
	}
	mirror := &fakeMirror{failures: 2}
	m := newTestManager(gen, newMemTerminalStore(), mirror)

	job, err := m.Poll(context.Background(), "j1")
	if err != nil {
		t.Fatalf("Poll() error = %v", err)
	}
	if job.Status != StatusSuccess {
		t.Errorf("Status = %q, want success after mirror retries", job.Status)
	}
	if mirror.calls != 3 {
		t.Errorf("mirror calls = %d, want 3", mirror.calls)
	}
}

func TestPollUntilDoneTimeout(t *testing.T) {
	gen := &fakeGenerator{
		fetchResps: []*generationResponse{{Status: "processing"}},
	}
	m := newTestManager(gen, newMemTerminalStore(), &fakeMirror{})

	_, err := m.PollUntilDone(context.Background(), "j1", PollBudget{MaxAttempts: 3, Interval: time.Millisecond})
	if !errors.Is(err, ErrPollTimeout) {
		t.Fatalf("PollUntilDone() error = %v, want ErrPollTimeout", err)
	}
	if gen.fetchCalls != 3 {
		t.Errorf("fetch calls = %d, want 3", gen.fetchCalls)
	}
}

func TestPollUntilDoneCompletes(t *testing.T) {
	gen := &fakeGenerator{
		fetchResps: []*generationResponse{
			{Status: "processing"},
			{Status: "processing"},
			{Status: "success", Output: []string{"https://upstream/img.png"}},
		},
	}
	m := newTestManager(gen, newMemTerminalStore(), &fakeMirror{})

	job, err := m.PollUntilDone(context.Background(), "j1", PollBudget{MaxAttempts: 5, Interval: time.Millisecond})
	if err != nil {
		t.Fatalf("PollUntilDone() error = %v", err)
	}
	if job.Status != StatusSuccess {
		t.Errorf("Status = %q, want success", job.Status)
	}
}
