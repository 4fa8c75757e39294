package audit

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"log"
	"net"
	"net/http"
	"strings"
	"time"

	"github.com/google/uuid"

	"building-energy/internal/auth"
)

// Entry is one recorded operator action.
type Entry struct {
	ID            string
	Actor         string
	Role          string
	Action        string
	ResourceType  string
	ResourceID    string
	Metadata      json.RawMessage
	PayloadDigest string
	IP            string
	UserAgent     string
	CreatedAt     time.Time
}

const (
	ActionRunTrigger   = "run.trigger"
	ActionIngestUpload = "ingest.upload"
)

// Logger writes audit entries.
type Logger interface {
	Log(ctx context.Context, entry Entry) error
}

// NewID generates an entry id.
func NewID() string {
	return uuid.NewString()
}

// DigestJSON computes a SHA256 hex digest for metadata payloads.
func DigestJSON(data []byte) string {
	if len(data) == 0 {
		return ""
	}
	sum := sha256.Sum256(data)
	return hex.EncodeToString(sum[:])
}

// FromRequest fills the caller identity and client details of an entry.
func FromRequest(r *http.Request, action, resourceType, resourceID string, meta map[string]any) Entry {
	entry := Entry{
		Action:       action,
		ResourceType: resourceType,
		ResourceID:   resourceID,
		IP:           ClientIP(r),
		UserAgent:    r.UserAgent(),
	}
	entry.Actor = auth.SubjectFromContext(r.Context())
	entry.Role = string(auth.RoleFromContext(r.Context()))
	if len(meta) > 0 {
		entry.Metadata, _ = json.Marshal(meta)
	}
	return entry
}

// ClientIP returns the uploader or operator address: the first X-Forwarded-For hop,
// then X-Real-IP, then the connection's remote host.
func ClientIP(r *http.Request) string {
	if r == nil {
		return ""
	}
	for _, header := range []string{"X-Forwarded-For", "X-Real-IP"} {
		first, _, _ := strings.Cut(r.Header.Get(header), ",")
		if ip := strings.TrimSpace(first); ip != "" {
			return ip
		}
	}
	if host, _, err := net.SplitHostPort(r.RemoteAddr); err == nil {
		return host
	}
	return r.RemoteAddr
}

// LogLogger writes entries to a standard logger; used by the file and SQLite
// deployments that have no audit table.
type LogLogger struct {
	logger *log.Logger
}

// NewLogLogger constructs a LogLogger.
func NewLogLogger(logger *log.Logger) *LogLogger {
	if logger == nil {
		logger = log.Default()
	}
	return &LogLogger{logger: logger}
}

// Log prints entry.
func (l *LogLogger) Log(ctx context.Context, entry Entry) error {
	l.logger.Printf("audit: action=%s actor=%s role=%s resource=%s/%s ip=%s meta=%s",
		entry.Action, entry.Actor, entry.Role, entry.ResourceType, entry.ResourceID, entry.IP, string(entry.Metadata))
	return nil
}
