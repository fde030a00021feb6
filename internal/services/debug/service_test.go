package debug

import (
	"context"
	"encoding/json"
	"errors"
	"testing"

	"github.com/chromedp/cdproto/network"
	"github.com/ternarybob/arbor"
	"github.com/ternarybob/vigilo/internal/common"
	"github.com/ternarybob/vigilo/internal/interfaces"
	"github.com/ternarybob/vigilo/internal/models"
	"github.com/ternarybob/vigilo/internal/services/broadcast"
	"github.com/ternarybob/vigilo/internal/storage/badger"
)

// Session lifecycle tests run without a browser: they never start a
// capture, only exercise the pending and terminal transitions.
func newTestService(t *testing.T) (interfaces.DebugService, interfaces.StorageManager) {
	t.Helper()

	logger := arbor.NewLogger()
	manager, err := badger.NewManager(logger, &common.BadgerConfig{Path: t.TempDir()})
	if err != nil {
		t.Fatalf("failed to open test store: %v", err)
	}
	t.Cleanup(func() {
		manager.Close()
	})

	config := &common.DebugConfig{
		FlushIntervalMs:        100,
		MaxDurationSeconds:     600,
		DefaultDurationSeconds: 300,
		BodyByteLimit:          1024,
	}
	service := NewService(manager, nil, broadcast.NewService(logger), config, logger)
	return service, manager
}

func seedTarget(t *testing.T, manager interfaces.StorageManager, url string) *models.Target {
	t.Helper()

	target := &models.Target{
		URL:                  url,
		Name:                 "debug test",
		CheckIntervalSeconds: 60,
		Enabled:              true,
	}
	if err := manager.TargetStorage().CreateTarget(context.Background(), target); err != nil {
		t.Fatalf("failed to create target: %v", err)
	}
	return target
}

func intPtr(v int) *int { return &v }

func TestCreateSessionAppliesDefaultDuration(t *testing.T) {
	service, manager := newTestService(t)
	target := seedTarget(t, manager, "https://example.com")

	session, err := service.CreateSession(context.Background(), &models.DebugSessionCreate{TargetID: target.ID})
	if err != nil {
		t.Fatalf("CreateSession failed: %v", err)
	}

	if session.Status != models.SessionStatusPending {
		t.Errorf("expected pending status, got %s", session.Status)
	}
	if session.DurationLimitSeconds == nil || *session.DurationLimitSeconds != 300 {
		t.Errorf("expected default duration limit 300, got %v", session.DurationLimitSeconds)
	}
}

func TestCreateSessionClampsDurationToMax(t *testing.T) {
	service, manager := newTestService(t)
	target := seedTarget(t, manager, "https://example.com")

	session, err := service.CreateSession(context.Background(), &models.DebugSessionCreate{
		TargetID:             target.ID,
		DurationLimitSeconds: intPtr(7200),
	})
	if err != nil {
		t.Fatalf("CreateSession failed: %v", err)
	}
	if session.DurationLimitSeconds == nil || *session.DurationLimitSeconds != 600 {
		t.Errorf("expected duration clamped to 600, got %v", session.DurationLimitSeconds)
	}
}

func TestCreateSessionRejectsNonPositiveDuration(t *testing.T) {
	service, manager := newTestService(t)
	target := seedTarget(t, manager, "https://example.com")

	_, err := service.CreateSession(context.Background(), &models.DebugSessionCreate{
		TargetID:             target.ID,
		DurationLimitSeconds: intPtr(-5),
	})
	if !errors.Is(err, interfaces.ErrInvalid) {
		t.Errorf("expected ErrInvalid, got %v", err)
	}
}

func TestCreateSessionUnknownTarget(t *testing.T) {
	service, _ := newTestService(t)

	_, err := service.CreateSession(context.Background(), &models.DebugSessionCreate{TargetID: 9999})
	if !errors.Is(err, interfaces.ErrNotFound) {
		t.Errorf("expected ErrNotFound, got %v", err)
	}
}

func TestCreateSessionConflictsWithExisting(t *testing.T) {
	service, manager := newTestService(t)
	target := seedTarget(t, manager, "https://example.com")

	if _, err := service.CreateSession(context.Background(), &models.DebugSessionCreate{TargetID: target.ID}); err != nil {
		t.Fatalf("first CreateSession failed: %v", err)
	}

	_, err := service.CreateSession(context.Background(), &models.DebugSessionCreate{TargetID: target.ID})
	if !errors.Is(err, interfaces.ErrConflict) {
		t.Errorf("expected ErrConflict for second session on same target, got %v", err)
	}
}

func TestStopPendingSession(t *testing.T) {
	service, manager := newTestService(t)
	target := seedTarget(t, manager, "https://example.com")

	session, err := service.CreateSession(context.Background(), &models.DebugSessionCreate{TargetID: target.ID})
	if err != nil {
		t.Fatalf("CreateSession failed: %v", err)
	}

	stopped, err := service.StopSession(context.Background(), session.ID)
	if err != nil {
		t.Fatalf("StopSession failed: %v", err)
	}
	if stopped.Status != models.SessionStatusStopped {
		t.Errorf("expected stopped status, got %s", stopped.Status)
	}
	if stopped.StoppedAt == nil {
		t.Error("expected StoppedAt to be set")
	}
}

func TestStopTerminalSessionNotActive(t *testing.T) {
	service, manager := newTestService(t)
	target := seedTarget(t, manager, "https://example.com")

	session, err := service.CreateSession(context.Background(), &models.DebugSessionCreate{TargetID: target.ID})
	if err != nil {
		t.Fatalf("CreateSession failed: %v", err)
	}
	if _, err := service.StopSession(context.Background(), session.ID); err != nil {
		t.Fatalf("StopSession failed: %v", err)
	}

	_, err = service.StopSession(context.Background(), session.ID)
	if !errors.Is(err, interfaces.ErrNotActive) {
		t.Errorf("expected ErrNotActive on double stop, got %v", err)
	}
}

func TestStopOrphanedActiveSessionFails(t *testing.T) {
	service, manager := newTestService(t)
	target := seedTarget(t, manager, "https://example.com")

	session, err := service.CreateSession(context.Background(), &models.DebugSessionCreate{TargetID: target.ID})
	if err != nil {
		t.Fatalf("CreateSession failed: %v", err)
	}

	// Simulate a session left active in storage by a previous process
	session.Status = models.SessionStatusActive
	if err := manager.DebugStorage().UpdateSession(context.Background(), session); err != nil {
		t.Fatalf("UpdateSession failed: %v", err)
	}

	if _, err := service.StopSession(context.Background(), session.ID); err == nil {
		t.Fatal("expected error stopping orphaned active session")
	}

	stored, err := service.GetSession(context.Background(), session.ID)
	if err != nil {
		t.Fatalf("GetSession failed: %v", err)
	}
	if stored.Status != models.SessionStatusFailed {
		t.Errorf("expected orphaned session marked failed, got %s", stored.Status)
	}
	if stored.ErrorDetail == "" {
		t.Error("expected error detail on failed session")
	}
}

func TestListSessionsFiltersByTarget(t *testing.T) {
	service, manager := newTestService(t)
	first := seedTarget(t, manager, "https://one.example.com")
	second := seedTarget(t, manager, "https://two.example.com")

	if _, err := service.CreateSession(context.Background(), &models.DebugSessionCreate{TargetID: first.ID}); err != nil {
		t.Fatalf("CreateSession failed: %v", err)
	}
	if _, err := service.CreateSession(context.Background(), &models.DebugSessionCreate{TargetID: second.ID}); err != nil {
		t.Fatalf("CreateSession failed: %v", err)
	}

	sessions, err := service.ListSessions(context.Background(), first.ID)
	if err != nil {
		t.Fatalf("ListSessions failed: %v", err)
	}
	if len(sessions) != 1 || sessions[0].TargetID != first.ID {
		t.Errorf("expected 1 session for target %d, got %d", first.ID, len(sessions))
	}

	all, err := service.ListSessions(context.Background(), 0)
	if err != nil {
		t.Fatalf("ListSessions failed: %v", err)
	}
	if len(all) != 2 {
		t.Errorf("expected 2 sessions in total, got %d", len(all))
	}
}

func TestActiveSessionForTargetNilWhenNone(t *testing.T) {
	service, manager := newTestService(t)
	target := seedTarget(t, manager, "https://example.com")

	if capture := service.ActiveSessionForTarget(target.ID); capture != nil {
		t.Errorf("expected nil capture for target with no running session, got %v", capture)
	}
}

func TestCapturableBody(t *testing.T) {
	cases := []struct {
		mime string
		want bool
	}{
		{"text/html", true},
		{"text/plain; charset=utf-8", true},
		{"application/json", true},
		{"application/xml", true},
		{"application/javascript", true},
		{"image/png", false},
		{"font/woff2", false},
		{"application/octet-stream", false},
		{"video/mp4", false},
	}

	for _, tc := range cases {
		if got := capturableBody(tc.mime); got != tc.want {
			t.Errorf("capturableBody(%q) = %v, want %v", tc.mime, got, tc.want)
		}
	}
}

func TestMarshalHeaders(t *testing.T) {
	headers := network.Headers{
		"Content-Type": "application/json",
		"X-Request-Id": "abc123",
	}

	got := marshalHeaders(headers)
	if got == "" {
		t.Fatal("expected non-empty header JSON")
	}

	var decoded map[string]interface{}
	if err := json.Unmarshal([]byte(got), &decoded); err != nil {
		t.Fatalf("headers did not round-trip as JSON: %v", err)
	}
	if decoded["Content-Type"] != "application/json" {
		t.Errorf("unexpected Content-Type: %v", decoded["Content-Type"])
	}
}
