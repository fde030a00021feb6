package targets

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"

	"github.com/ternarybob/arbor"
	"github.com/ternarybob/vigilo/internal/common"
	"github.com/ternarybob/vigilo/internal/interfaces"
	"github.com/ternarybob/vigilo/internal/models"
	"github.com/ternarybob/vigilo/internal/services/events"
	"github.com/ternarybob/vigilo/internal/storage/badger"
)

func newTestService(t *testing.T) interfaces.TargetService {
	t.Helper()

	logger := arbor.NewLogger()
	manager, err := badger.NewManager(logger, &common.BadgerConfig{Path: t.TempDir()})
	if err != nil {
		t.Fatalf("failed to open test store: %v", err)
	}
	t.Cleanup(func() {
		manager.Close()
	})

	return NewService(manager, nil, common.NewDefaultConfig(), logger)
}

func boolPtr(b bool) *bool    { return &b }
func strPtr(s string) *string { return &s }
func intPtr(i int) *int       { return &i }

func TestCreateAppliesDefaults(t *testing.T) {
	service := newTestService(t)

	target, err := service.Create(context.Background(), &models.TargetCreate{
		URL:  "https://example.com",
		Name: "example",
	})
	if err != nil {
		t.Fatalf("Create failed: %v", err)
	}

	if target.ID == 0 {
		t.Error("expected assigned id")
	}
	if target.CheckIntervalSeconds != models.MinCheckIntervalSeconds {
		t.Errorf("interval = %d, want default %d", target.CheckIntervalSeconds, models.MinCheckIntervalSeconds)
	}
	if !target.Enabled {
		t.Error("expected target enabled by default")
	}
	if target.CreatedAt.IsZero() || target.UpdatedAt.IsZero() {
		t.Error("expected timestamps to be set")
	}
}

func TestCreateRejectsInvalidInput(t *testing.T) {
	service := newTestService(t)

	cases := []struct {
		name  string
		input *models.TargetCreate
	}{
		{"missing url", &models.TargetCreate{Name: "x"}},
		{"bad scheme", &models.TargetCreate{URL: "ftp://example.com", Name: "x"}},
		{"missing name", &models.TargetCreate{URL: "https://example.com"}},
		{"interval too short", &models.TargetCreate{URL: "https://example.com", Name: "x", CheckIntervalSeconds: 30}},
		{"interval too long", &models.TargetCreate{URL: "https://example.com", Name: "x", CheckIntervalSeconds: 7200}},
	}
	for _, tc := range cases {
		_, err := service.Create(context.Background(), tc.input)
		if !errors.Is(err, interfaces.ErrInvalid) {
			t.Errorf("%s: got %v, want ErrInvalid", tc.name, err)
		}
	}
}

func TestCreateDuplicateURLConflicts(t *testing.T) {
	service := newTestService(t)

	input := &models.TargetCreate{URL: "https://dup.example.com", Name: "first"}
	if _, err := service.Create(context.Background(), input); err != nil {
		t.Fatalf("Create failed: %v", err)
	}

	_, err := service.Create(context.Background(), &models.TargetCreate{URL: "https://dup.example.com", Name: "second"})
	if !errors.Is(err, interfaces.ErrConflict) {
		t.Errorf("got %v, want ErrConflict", err)
	}
}

func TestUpdatePatchSemantics(t *testing.T) {
	service := newTestService(t)

	target, err := service.Create(context.Background(), &models.TargetCreate{
		URL:                  "https://patch.example.com",
		Name:                 "before",
		CheckIntervalSeconds: 120,
	})
	if err != nil {
		t.Fatalf("Create failed: %v", err)
	}

	updated, err := service.Update(context.Background(), target.ID, &models.TargetUpdate{
		Name:    strPtr("after"),
		Enabled: boolPtr(false),
	})
	if err != nil {
		t.Fatalf("Update failed: %v", err)
	}

	if updated.Name != "after" {
		t.Errorf("name = %q, want %q", updated.Name, "after")
	}
	if updated.Enabled {
		t.Error("expected target disabled")
	}
	// Untouched fields keep their values
	if updated.URL != "https://patch.example.com" {
		t.Errorf("url changed to %q", updated.URL)
	}
	if updated.CheckIntervalSeconds != 120 {
		t.Errorf("interval changed to %d", updated.CheckIntervalSeconds)
	}

	if _, err := service.Update(context.Background(), target.ID, &models.TargetUpdate{
		CheckIntervalSeconds: intPtr(10),
	}); !errors.Is(err, interfaces.ErrInvalid) {
		t.Errorf("got %v, want ErrInvalid for out-of-range interval", err)
	}

	if _, err := service.Update(context.Background(), 9999, &models.TargetUpdate{Name: strPtr("x")}); !errors.Is(err, interfaces.ErrNotFound) {
		t.Errorf("got %v, want ErrNotFound", err)
	}
}

func TestDeleteRemovesTarget(t *testing.T) {
	service := newTestService(t)

	target, err := service.Create(context.Background(), &models.TargetCreate{
		URL:  "https://delete.example.com",
		Name: "doomed",
	})
	if err != nil {
		t.Fatalf("Create failed: %v", err)
	}

	if err := service.Delete(context.Background(), target.ID); err != nil {
		t.Fatalf("Delete failed: %v", err)
	}
	if _, err := service.Get(context.Background(), target.ID); !errors.Is(err, interfaces.ErrNotFound) {
		t.Errorf("got %v, want ErrNotFound after delete", err)
	}
	if err := service.Delete(context.Background(), target.ID); !errors.Is(err, interfaces.ErrNotFound) {
		t.Errorf("got %v, want ErrNotFound for double delete", err)
	}
}

func TestDeleteDeliversEventBeforeReturning(t *testing.T) {
	logger := arbor.NewLogger()
	manager, err := badger.NewManager(logger, &common.BadgerConfig{Path: t.TempDir()})
	if err != nil {
		t.Fatalf("failed to open test store: %v", err)
	}
	t.Cleanup(func() {
		manager.Close()
	})

	eventService := events.NewService(logger)
	var delivered atomic.Bool
	err = eventService.Subscribe(interfaces.EventTargetDeleted, func(ctx context.Context, event interfaces.Event) error {
		delivered.Store(true)
		return nil
	})
	if err != nil {
		t.Fatalf("Subscribe failed: %v", err)
	}

	service := NewService(manager, eventService, common.NewDefaultConfig(), logger)

	target, err := service.Create(context.Background(), &models.TargetCreate{
		URL:  "https://sync-delete.example.com",
		Name: "sync delete",
	})
	if err != nil {
		t.Fatalf("Create failed: %v", err)
	}

	if err := service.Delete(context.Background(), target.ID); err != nil {
		t.Fatalf("Delete failed: %v", err)
	}

	// The deleted event is synchronous: no waiting, no polling
	if !delivered.Load() {
		t.Error("expected deleted event delivered before Delete returned")
	}
}
