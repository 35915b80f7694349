package refresh

import (
	"bytes"
	"context"
	"errors"
	"log/slog"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/metafam/metagame/internal/model"
)

// --- モック定義 ---

// mockSyncRepo はProfileSyncRepositoryのテスト用モック。
type mockSyncRepo struct {
	listDueFunc func(ctx context.Context, limit int) ([]*model.ProfileSyncState, error)

	mu    sync.Mutex
	saved map[string]*model.ProfileSyncState
	limit int
}

func (m *mockSyncRepo) ListDue(ctx context.Context, limit int) ([]*model.ProfileSyncState, error) {
	m.limit = limit
	if m.listDueFunc != nil {
		return m.listDueFunc(ctx, limit)
	}
	return nil, nil
}

func (m *mockSyncRepo) Save(_ context.Context, st *model.ProfileSyncState) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.saved == nil {
		m.saved = map[string]*model.ProfileSyncState{}
	}
	m.saved[st.PlayerID] = st
	return nil
}

func (m *mockSyncRepo) MarkAllDue(context.Context, time.Time) (int64, error) { return 0, nil }

// mockSyncer はProfileSyncerのテスト用モック。
type mockSyncer struct {
	fn func(playerID string) error

	running    atomic.Int32
	maxRunning atomic.Int32
	calls      atomic.Int32
}

func (m *mockSyncer) UpdateSingle(_ context.Context, playerID string) (*model.UpdateSingleResult, error) {
	m.calls.Add(1)
	n := m.running.Add(1)
	defer m.running.Add(-1)
	for {
		cur := m.maxRunning.Load()
		if n <= cur || m.maxRunning.CompareAndSwap(cur, n) {
			break
		}
	}
	time.Sleep(5 * time.Millisecond)

	if m.fn != nil {
		if err := m.fn(playerID); err != nil {
			return nil, err
		}
	}
	return &model.UpdateSingleResult{Success: true, UpdatedProfiles: []string{}}, nil
}

func newTestScheduler(repo *mockSyncRepo, syncer *mockSyncer, cfg Config) *Scheduler {
	var buf bytes.Buffer
	logger := slog.New(slog.NewJSONHandler(&buf, nil))
	s := NewScheduler(repo, syncer, logger, cfg)
	s.now = func() time.Time { return time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC) }
	return s
}

func dueStates(ids ...string) []*model.ProfileSyncState {
	out := make([]*model.ProfileSyncState, len(ids))
	for i, id := range ids {
		out[i] = &model.ProfileSyncState{PlayerID: id, EthereumAddress: "0x" + id}
	}
	return out
}

// --- テスト ---

func TestScheduler_RunOnce_RecordsSuccessAndBackoff(t *testing.T) {
	repo := &mockSyncRepo{
		listDueFunc: func(context.Context, int) ([]*model.ProfileSyncState, error) {
			return dueStates("ok", "ng"), nil
		},
	}
	syncer := &mockSyncer{fn: func(id string) error {
		if id == "ng" {
			return errors.New("ceramic down")
		}
		return nil
	}}
	s := newTestScheduler(repo, syncer, Config{ProfileTTL: 6 * time.Hour})

	if err := s.RunOnce(context.Background()); err != nil {
		t.Fatalf("RunOnce: %v", err)
	}

	base := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	ok := repo.saved["ok"]
	if ok == nil || ok.ConsecutiveErrors != 0 || !ok.NextSyncAt.Equal(base.Add(6*time.Hour)) {
		t.Errorf("ok state = %+v", ok)
	}
	ng := repo.saved["ng"]
	if ng == nil || ng.ConsecutiveErrors != 1 || ng.LastError != "ceramic down" || !ng.NextSyncAt.Equal(base.Add(30*time.Minute)) {
		t.Errorf("ng state = %+v", ng)
	}
}

func TestScheduler_RunOnce_RespectsConcurrency(t *testing.T) {
	repo := &mockSyncRepo{
		listDueFunc: func(context.Context, int) ([]*model.ProfileSyncState, error) {
			return dueStates("a", "b", "c", "d", "e", "f", "g", "h"), nil
		},
	}
	syncer := &mockSyncer{}
	s := newTestScheduler(repo, syncer, Config{MaxConcurrency: 2})

	if err := s.RunOnce(context.Background()); err != nil {
		t.Fatalf("RunOnce: %v", err)
	}

	if got := syncer.calls.Load(); got != 8 {
		t.Errorf("calls = %d, want 8", got)
	}
	if got := syncer.maxRunning.Load(); got > 2 {
		t.Errorf("max concurrent = %d, want <= 2", got)
	}
}

func TestScheduler_RunOnce_ListError(t *testing.T) {
	repo := &mockSyncRepo{
		listDueFunc: func(context.Context, int) ([]*model.ProfileSyncState, error) {
			return nil, errors.New("db down")
		},
	}
	s := newTestScheduler(repo, &mockSyncer{}, Config{})

	if err := s.RunOnce(context.Background()); err == nil {
		t.Fatal("expected error")
	}
}

func TestScheduler_Defaults(t *testing.T) {
	repo := &mockSyncRepo{}
	s := newTestScheduler(repo, &mockSyncer{}, Config{})

	if err := s.RunOnce(context.Background()); err != nil {
		t.Fatalf("RunOnce: %v", err)
	}
	if repo.limit != 100 {
		t.Errorf("batch size = %d, want 100", repo.limit)
	}
	if s.cfg.MaxConcurrency != 4 || s.cfg.ProfileTTL != 24*time.Hour {
		t.Errorf("cfg = %+v", s.cfg)
	}
}

func TestScheduler_Start_StopsOnCancel(t *testing.T) {
	var cycles atomic.Int32
	repo := &mockSyncRepo{
		listDueFunc: func(context.Context, int) ([]*model.ProfileSyncState, error) {
			cycles.Add(1)
			return nil, nil
		},
	}
	s := newTestScheduler(repo, &mockSyncer{}, Config{})

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		s.Start(ctx, 10*time.Millisecond)
		close(done)
	}()

	time.Sleep(50 * time.Millisecond)
	cancel()

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("scheduler did not stop")
	}
	if cycles.Load() < 1 {
		t.Error("expected at least one cycle")
	}
}
