package notify

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"
)

type countingNotifier struct {
	sent []AlertMessage
	err  error
}

func (c *countingNotifier) Notify(ctx context.Context, msg AlertMessage) error {
	if c.err != nil {
		return c.err
	}
	c.sent = append(c.sent, msg)
	return nil
}

func TestWebhookNotifier_PostsRenderedAlert(t *testing.T) {
	var got webhookPayload
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if err := json.NewDecoder(r.Body).Decode(&got); err != nil {
			t.Errorf("decode: %v", err)
		}
		w.WriteHeader(http.StatusNoContent)
	}))
	defer server.Close()

	n, err := NewWebhookNotifier(server.URL, nil)
	if err != nil {
		t.Fatalf("new notifier: %v", err)
	}
	msg := AlertMessage{
		Kind:      KindStaleData,
		RunID:     "run-1",
		At:        time.Date(2023, 3, 15, 12, 15, 0, 0, time.UTC),
		LastUsage: "2023-03-10",
	}
	if err := n.Notify(context.Background(), msg); err != nil {
		t.Fatalf("notify: %v", err)
	}
	if got.MsgType != "text" {
		t.Fatalf("msgtype = %q", got.MsgType)
	}
	for _, want := range []string{"stale_data", "run-1", "Last usage date: 2023-03-10"} {
		if !strings.Contains(got.Text.Content, want) {
			t.Fatalf("content %q missing %q", got.Text.Content, want)
		}
	}
	if strings.Contains(got.Text.Content, "Error:") {
		t.Fatalf("empty error rendered: %q", got.Text.Content)
	}
}

func TestWebhookNotifier_Non2xx(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
	}))
	defer server.Close()

	n, _ := NewWebhookNotifier(server.URL, nil)
	if err := n.Notify(context.Background(), AlertMessage{Kind: KindRunFailed}); err == nil {
		t.Fatalf("expected error")
	}
	if _, err := NewWebhookNotifier("", nil); err == nil {
		t.Fatalf("expected empty url error")
	}
}

func TestCooldown_SuppressesRepeats(t *testing.T) {
	next := &countingNotifier{}
	c := NewCooldown(next, time.Hour)
	now := time.Date(2023, 3, 15, 12, 0, 0, 0, time.UTC)
	c.now = func() time.Time { return now }

	ctx := context.Background()
	_ = c.Notify(ctx, AlertMessage{Kind: KindStaleData})
	_ = c.Notify(ctx, AlertMessage{Kind: KindStaleData})
	_ = c.Notify(ctx, AlertMessage{Kind: KindRunFailed})
	if len(next.sent) != 2 {
		t.Fatalf("expected 2 alerts, got %d", len(next.sent))
	}

	now = now.Add(2 * time.Hour)
	_ = c.Notify(ctx, AlertMessage{Kind: KindStaleData})
	if len(next.sent) != 3 {
		t.Fatalf("expected alert after cooldown, got %d", len(next.sent))
	}

	c.Reset(KindRunFailed)
	_ = c.Notify(ctx, AlertMessage{Kind: KindRunFailed})
	if len(next.sent) != 4 {
		t.Fatalf("expected alert after reset, got %d", len(next.sent))
	}
}

func TestCooldown_FailedSendIsRetried(t *testing.T) {
	next := &countingNotifier{err: errors.New("down")}
	c := NewCooldown(next, time.Hour)
	if err := c.Notify(context.Background(), AlertMessage{Kind: KindRunFailed}); err == nil {
		t.Fatalf("expected error")
	}
	next.err = nil
	if err := c.Notify(context.Background(), AlertMessage{Kind: KindRunFailed}); err != nil {
		t.Fatalf("notify: %v", err)
	}
	if len(next.sent) != 1 {
		t.Fatalf("expected retry to send")
	}
}
