package monitor

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/ternarybob/arbor"
	"github.com/ternarybob/vigilo/internal/common"
	"github.com/ternarybob/vigilo/internal/interfaces"
	"github.com/ternarybob/vigilo/internal/models"
	"github.com/ternarybob/vigilo/internal/storage/badger"
)

// stubProber returns a canned result without touching the network.
type stubProber struct {
	result *interfaces.ProbeResult
}

func (p stubProber) Probe(ctx context.Context, target *models.Target, deadline time.Duration) *interfaces.ProbeResult {
	return p.result
}

// countingBreaker records how the monitor feeds it.
type countingBreaker struct {
	mu        sync.Mutex
	blocked   bool
	successes int
	failures  int
}

func (b *countingBreaker) IsBlocked(targetID uint64) bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.blocked
}

func (b *countingBreaker) RecordSuccess(targetID uint64) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.successes++
}

func (b *countingBreaker) RecordFailure(targetID uint64) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.failures++
}

func (b *countingBreaker) Forget(targetID uint64) {}

func (b *countingBreaker) counts() (int, int) {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.successes, b.failures
}

// failingCheckStore rejects every RecordCheck.
type failingCheckStore struct {
	interfaces.CheckStorage
}

func (failingCheckStore) RecordCheck(ctx context.Context, check *models.Check, decide interfaces.WindowDecider) (*models.DowntimeWindow, error) {
	return nil, errors.New("commit failed")
}

// failingStorage wraps a real manager with a broken check store.
type failingStorage struct {
	interfaces.StorageManager
}

func (f failingStorage) CheckStorage() interfaces.CheckStorage {
	return failingCheckStore{}
}

func newTestManager(t *testing.T) interfaces.StorageManager {
	t.Helper()

	logger := arbor.NewLogger()
	manager, err := badger.NewManager(logger, &common.BadgerConfig{Path: t.TempDir()})
	if err != nil {
		t.Fatalf("failed to open test store: %v", err)
	}
	t.Cleanup(func() {
		manager.Close()
	})
	return manager
}

func seedMonitorTarget(t *testing.T, manager interfaces.StorageManager, url string, enabled bool) *models.Target {
	t.Helper()

	target := &models.Target{
		URL:                  url,
		Name:                 "monitored",
		CheckIntervalSeconds: 60,
		Enabled:              enabled,
	}
	if err := manager.TargetStorage().CreateTarget(context.Background(), target); err != nil {
		t.Fatalf("failed to create target: %v", err)
	}
	return target
}

func availableResult() *interfaces.ProbeResult {
	status := 200
	ms := 42.0
	return &interfaces.ProbeResult{Available: true, StatusCode: &status, ResponseTimeMs: &ms}
}

func TestRunCheckRecordsSuccess(t *testing.T) {
	manager := newTestManager(t)
	target := seedMonitorTarget(t, manager, "https://up.example.com", true)
	breaker := &countingBreaker{}

	service := NewService(manager, stubProber{availableResult()}, breaker, &common.ProbeConfig{TimeoutSeconds: 30}, arbor.NewLogger())

	check, err := service.RunCheck(context.Background(), target.ID)
	if err != nil {
		t.Fatalf("RunCheck failed: %v", err)
	}
	if check == nil || !check.Available {
		t.Fatalf("expected available check, got %+v", check)
	}

	successes, failures := breaker.counts()
	if successes != 1 || failures != 0 {
		t.Errorf("breaker saw %d successes / %d failures, want 1/0", successes, failures)
	}
}

func TestRunCheckPersistenceFailureFeedsBreaker(t *testing.T) {
	manager := newTestManager(t)
	target := seedMonitorTarget(t, manager, "https://store-down.example.com", true)
	breaker := &countingBreaker{}

	service := NewService(failingStorage{manager}, stubProber{availableResult()}, breaker, &common.ProbeConfig{TimeoutSeconds: 30}, arbor.NewLogger())

	if _, err := service.RunCheck(context.Background(), target.ID); err == nil {
		t.Fatal("expected error when the check cannot be recorded")
	}

	successes, failures := breaker.counts()
	if failures != 1 {
		t.Errorf("breaker saw %d failures, want 1 for unrecordable check", failures)
	}
	if successes != 0 {
		t.Errorf("breaker saw %d successes, want 0", successes)
	}
}

func TestRunCheckSkipsWhenBlocked(t *testing.T) {
	manager := newTestManager(t)
	target := seedMonitorTarget(t, manager, "https://blocked.example.com", true)
	breaker := &countingBreaker{blocked: true}

	service := NewService(manager, stubProber{availableResult()}, breaker, &common.ProbeConfig{TimeoutSeconds: 30}, arbor.NewLogger())

	check, err := service.RunCheck(context.Background(), target.ID)
	if err != nil {
		t.Fatalf("RunCheck failed: %v", err)
	}
	if check != nil {
		t.Errorf("expected suppressed run to return nil, got %+v", check)
	}

	count, err := manager.CheckStorage().CountChecks(context.Background(), target.ID)
	if err != nil {
		t.Fatalf("CountChecks failed: %v", err)
	}
	if count != 0 {
		t.Errorf("suppressed run persisted %d checks", count)
	}
}

func TestRunCheckSkipsDisabledTarget(t *testing.T) {
	manager := newTestManager(t)
	target := seedMonitorTarget(t, manager, "https://disabled.example.com", false)
	breaker := &countingBreaker{}

	service := NewService(manager, stubProber{availableResult()}, breaker, &common.ProbeConfig{TimeoutSeconds: 30}, arbor.NewLogger())

	check, err := service.RunCheck(context.Background(), target.ID)
	if err != nil {
		t.Fatalf("RunCheck failed: %v", err)
	}
	if check != nil {
		t.Errorf("expected nil check for disabled target, got %+v", check)
	}

	successes, failures := breaker.counts()
	if successes != 0 || failures != 0 {
		t.Errorf("breaker saw %d/%d, want untouched for skipped run", successes, failures)
	}
}
