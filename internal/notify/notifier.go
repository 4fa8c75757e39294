package notify

import (
	"context"
	"sync"
	"time"
)

const (
	KindRunFailed = "run_failed"
	KindStaleData = "stale_data"
)

// AlertMessage is an operations alert about a pipeline run.
type AlertMessage struct {
	Kind       string            `json:"kind"`
	RunID      string            `json:"run_id"`
	At         time.Time         `json:"at"`
	Error      string            `json:"error,omitempty"`
	LastUsage  string            `json:"last_usage_date,omitempty"`
	ReportURL  string            `json:"report_url,omitempty"`
	Suggestion string            `json:"suggestion,omitempty"`
	Meta       map[string]string `json:"meta,omitempty"`
}

// Notifier sends alerts.
type Notifier interface {
	Notify(ctx context.Context, msg AlertMessage) error
}

// Cooldown suppresses repeated alerts of the same kind within interval, so an hourly
// schedule does not page every hour for the same stale meter.
type Cooldown struct {
	next     Notifier
	interval time.Duration
	now      func() time.Time

	mu   sync.Mutex
	sent map[string]time.Time
}

// NewCooldown wraps next.
func NewCooldown(next Notifier, interval time.Duration) *Cooldown {
	return &Cooldown{next: next, interval: interval, now: time.Now, sent: make(map[string]time.Time)}
}

// Notify forwards msg unless an alert of the same kind was sent recently.
func (c *Cooldown) Notify(ctx context.Context, msg AlertMessage) error {
	if c == nil || c.next == nil {
		return nil
	}
	now := c.now()
	c.mu.Lock()
	last, ok := c.sent[msg.Kind]
	if ok && c.interval > 0 && now.Sub(last) < c.interval {
		c.mu.Unlock()
		return nil
	}
	c.mu.Unlock()

	if err := c.next.Notify(ctx, msg); err != nil {
		return err
	}
	c.mu.Lock()
	c.sent[msg.Kind] = now
	c.mu.Unlock()
	return nil
}

// Reset forgets the last alert of kind; called when the condition clears.
func (c *Cooldown) Reset(kind string) {
	if c == nil {
		return
	}
	c.mu.Lock()
	delete(c.sent, kind)
	c.mu.Unlock()
}
