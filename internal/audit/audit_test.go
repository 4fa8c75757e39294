package audit

import (
	"bytes"
	"context"
	"encoding/json"
	"log"
	"net/http/httptest"
	"strings"
	"testing"

	"building-energy/internal/auth"
)

func TestClientIP(t *testing.T) {
	r := httptest.NewRequest("POST", "/api/v1/runs", nil)
	r.RemoteAddr = "10.0.0.5:4321"
	if got := ClientIP(r); got != "10.0.0.5" {
		t.Fatalf("remote addr ip = %q", got)
	}
	r.Header.Set("X-Real-IP", " 10.0.0.9 ")
	if got := ClientIP(r); got != "10.0.0.9" {
		t.Fatalf("real ip = %q", got)
	}
	r.Header.Set("X-Forwarded-For", "192.0.2.1, 10.0.0.1")
	if got := ClientIP(r); got != "192.0.2.1" {
		t.Fatalf("forwarded ip = %q", got)
	}
}

func TestFromRequest_CarriesIdentity(t *testing.T) {
	r := httptest.NewRequest("POST", "/api/v1/ingest", nil)
	r = r.WithContext(auth.WithIdentity(r.Context(), auth.RoleOperator, "meter-gateway"))
	r.Header.Set("User-Agent", "uploader/1.0")

	entry := FromRequest(r, ActionIngestUpload, "batch", "", map[string]any{"usage": 48})
	if entry.Actor != "meter-gateway" || entry.Role != "operator" {
		t.Fatalf("identity = %s/%s", entry.Actor, entry.Role)
	}
	if entry.UserAgent != "uploader/1.0" {
		t.Fatalf("user agent = %q", entry.UserAgent)
	}
	var meta map[string]int
	if err := json.Unmarshal(entry.Metadata, &meta); err != nil || meta["usage"] != 48 {
		t.Fatalf("metadata = %s err=%v", entry.Metadata, err)
	}
}

func TestLogLogger(t *testing.T) {
	var buf bytes.Buffer
	l := NewLogLogger(log.New(&buf, "", 0))
	if err := l.Log(context.Background(), Entry{Action: ActionRunTrigger, Actor: "ops", ResourceType: "run", ResourceID: "r1"}); err != nil {
		t.Fatalf("log: %v", err)
	}
	if !strings.Contains(buf.String(), "action=run.trigger actor=ops") || !strings.Contains(buf.String(), "resource=run/r1") {
		t.Fatalf("output = %q", buf.String())
	}
}

func TestDigestJSON(t *testing.T) {
	if DigestJSON(nil) != "" {
		t.Fatalf("empty digest should be empty")
	}
	if len(DigestJSON([]byte(`{"a":1}`))) != 64 {
		t.Fatalf("digest length")
	}
}
