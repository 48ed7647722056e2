package notification

import (
	"strings"
	"testing"
	"time"
)

func TestNewEmailNotifier(t *testing.T) {
	notifier, err := NewEmailNotifier(SMTPConfig{
		Host: "localhost",
		Port: 1025,
		From: "noreply@example.com",
	})
	if err != nil {
		t.Fatalf("NewEmailNotifier failed: %v", err)
	}
	if notifier.client == nil {
		t.Fatal("mail client not initialized")
	}

	_, err = NewEmailNotifier(SMTPConfig{
		Host:    "localhost",
		Port:    1025,
		From:    "noreply@example.com",
		Timeout: 5 * time.Second,
		TLS:     true,
	})
	if err != nil {
		t.Fatalf("NewEmailNotifier with explicit timeout failed: %v", err)
	}
}

func TestRenderBody(t *testing.T) {
	body, err := renderBody("text", "Hello {{.Name}}", map[string]string{"Name": "Alice"})
	if err != nil {
		t.Fatalf("renderBody failed: %v", err)
	}
	if body != "Hello Alice" {
		t.Errorf("unexpected body: %q", body)
	}

	body, err = renderBody("text", "", nil)
	if err != nil {
		t.Fatalf("renderBody on empty template failed: %v", err)
	}
	if body != "" {
		t.Errorf("expected empty body, got %q", body)
	}

	_, err = renderBody("text", "{{.Broken", nil)
	if err == nil {
		t.Fatal("expected parse error")
	}
	if !strings.Contains(err.Error(), "parse") {
		t.Errorf("unexpected error: %v", err)
	}
}
