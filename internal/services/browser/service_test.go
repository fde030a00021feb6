package browser

import (
	"context"
	"strings"
	"testing"

	"github.com/ternarybob/arbor"
	"github.com/ternarybob/vigilo/internal/common"
)

func TestAcquireRejectsUnsupportedKind(t *testing.T) {
	config := &common.BrowserConfig{Kind: "firefox", Headless: true}
	service := NewService(config, "vigilo-test", arbor.NewLogger())

	_, _, err := service.Acquire(context.Background())
	if err == nil {
		t.Fatal("expected error for unsupported browser kind")
	}
	if !strings.Contains(err.Error(), "firefox") {
		t.Errorf("error %q does not name the rejected kind", err)
	}
	if service.Healthy() {
		t.Error("service must not report healthy after a rejected kind")
	}
}

func TestHealthyBeforeFirstAcquire(t *testing.T) {
	config := &common.BrowserConfig{Kind: "chromium", Headless: true}
	service := NewService(config, "vigilo-test", arbor.NewLogger())

	// No Chrome has been launched yet
	if service.Healthy() {
		t.Error("expected unhealthy before first acquire")
	}
	if err := service.Shutdown(context.Background()); err != nil {
		t.Errorf("Shutdown before start failed: %v", err)
	}
}
