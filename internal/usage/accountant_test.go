package usage

import (
	"context"
	"log/slog"
	"sync"
	"testing"

	"polychat/internal/models"
)

// memStore is an in-memory Store with the same atomicity contract as the
// Postgres repository: increments are serialized per store.
type memStore struct {
	mu      sync.Mutex
	records map[string]models.UsageRecord
	incs    int
}

func newMemStore() *memStore {
	return &memStore{records: map[string]models.UsageRecord{}}
}

func (s *memStore) GetUsage(ctx context.Context, userID string) (models.UsageRecord, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	rec, ok := s.records[userID]
	if !ok {
		return models.UsageRecord{}, ErrUserNotFound
	}
	return rec, nil
}

func (s *memStore) AtomicIncrement(ctx context.Context, userID string, tokenDelta, imageDelta int64) (models.UsageRecord, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	rec, ok := s.records[userID]
	if !ok {
		return models.UsageRecord{}, ErrUserNotFound
	}
	rec.TokenCount += tokenDelta
	rec.ImageGenerationCount += imageDelta
	s.records[userID] = rec
	s.incs++
	return rec, nil
}

func testLogger() *slog.Logger {
	return slog.New(slog.DiscardHandler)
}

func TestApplyDelta(t *testing.T) {
	store := newMemStore()
	store.records["u1"] = models.UsageRecord{UserID: "u1", SubscriptionTier: models.TierFree}
	a := NewAccountant(store, testLogger())

	rec, err := a.ApplyDelta(context.Background(), "u1", 150, 0)
	if err != nil {
		t.Fatalf("ApplyDelta() error = %v", err)
	}
	if rec.TokenCount != 150 {
		t.Errorf("TokenCount = %d, want 150", rec.TokenCount)
	}

	rec, err = a.ApplyDelta(context.Background(), "u1", 50, 1)
	if err != nil {
		t.Fatalf("ApplyDelta() error = %v", err)
	}
	if rec.TokenCount != 200 || rec.ImageGenerationCount != 1 {
		t.Errorf("counters = (%d, %d), want (200, 1)", rec.TokenCount, rec.ImageGenerationCount)
	}
}

func TestApplyDeltaZeroSkipsStore(t *testing.T) {
	store := newMemStore()
	store.records["u1"] = models.UsageRecord{UserID: "u1"}
	a := NewAccountant(store, testLogger())

	if _, err := a.ApplyDelta(context.Background(), "u1", 0, 0); err != nil {
		t.Fatalf("ApplyDelta() error = %v", err)
	}
	if store.incs != 0 {
		t.Errorf("store saw %d increments, want 0", store.incs)
	}
}

func TestApplyDeltaUnknownUser(t *testing.T) {
	a := NewAccountant(newMemStore(), testLogger())

	if _, err := a.ApplyDelta(context.Background(), "ghost", 10, 0); err != ErrUserNotFound {
		t.Errorf("ApplyDelta() error = %v, want ErrUserNotFound", err)
	}
}

func TestApplyDeltaConcurrent(t *testing.T) {
	store := newMemStore()
	store.records["u1"] = models.UsageRecord{UserID: "u1"}
	a := NewAccountant(store, testLogger())

	const workers = 32
	const perWorker = 10

	var wg sync.WaitGroup
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for j := 0; j < perWorker; j++ {
				if _, err := a.ApplyDelta(context.Background(), "u1", 7, 1); err != nil {
					t.Errorf("ApplyDelta() error = %v", err)
					return
				}
			}
		}()
	}
	wg.Wait()

	rec, err := a.Usage(context.Background(), "u1")
	if err != nil {
		t.Fatalf("Usage() error = %v", err)
	}
	if want := int64(workers * perWorker * 7); rec.TokenCount != want {
		t.Errorf("TokenCount = %d, want %d", rec.TokenCount, want)
	}
	if want := int64(workers * perWorker); rec.ImageGenerationCount != want {
		t.Errorf("ImageGenerationCount = %d, want %d", rec.ImageGenerationCount, want)
	}
}
