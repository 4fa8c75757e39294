package auth

import (
	"net/http"
	"strings"
)

// Policy determines required roles by request.
type Policy struct {
	ExemptPaths    map[string]struct{}
	ExemptPrefixes []string
	// SignedPaths accept an ingest signature instead of a token.
	SignedPaths map[string]struct{}
}

// NewDefaultPolicy builds a default policy with exemptions.
func NewDefaultPolicy(exemptPaths []string, exemptPrefixes []string) Policy {
	set := make(map[string]struct{}, len(exemptPaths))
	for _, path := range exemptPaths {
		set[path] = struct{}{}
	}
	return Policy{
		ExemptPaths:    set,
		ExemptPrefixes: exemptPrefixes,
		SignedPaths:    map[string]struct{}{"/api/v1/ingest": {}},
	}
}

// AcceptsSignature reports whether r carries an ingest signature on a path that
// verifies it downstream.
func (p Policy) AcceptsSignature(r *http.Request) bool {
	if r == nil || r.Header.Get(HeaderIngestSignature) == "" {
		return false
	}
	_, ok := p.SignedPaths[r.URL.Path]
	return ok
}

// IsExempt returns true when a request should skip auth.
func (p Policy) IsExempt(r *http.Request) bool {
	if r == nil {
		return true
	}
	if _, ok := p.ExemptPaths[r.URL.Path]; ok {
		return true
	}
	for _, prefix := range p.ExemptPrefixes {
		if strings.HasPrefix(r.URL.Path, prefix) {
			return true
		}
	}
	return false
}

// RequiredRole resolves the role a request needs. Reads need viewer, data uploads
// need operator, triggering runs needs admin.
func (p Policy) RequiredRole(r *http.Request) (Role, bool) {
	if r == nil {
		return "", false
	}
	path := r.URL.Path
	method := r.Method

	switch {
	case path == "/api/v1/runs":
		if method == http.MethodPost {
			return RoleAdmin, true
		}
		return RoleViewer, true
	case path == "/api/v1/ingest":
		return RoleOperator, true
	case path == "/api/v1/ratecard":
		return RoleViewer, true
	case path == "/api/v1/report", path == "/api/v1/report/stream":
		return RoleViewer, true
	case path == "/api/v1/report/table.xlsx":
		return RoleViewer, true
	case strings.HasPrefix(path, "/api/v1/statements/"):
		if method == http.MethodGet {
			return RoleViewer, true
		}
		return RoleAdmin, true
	}

	if strings.HasPrefix(path, "/api/") {
		if method == http.MethodGet || method == http.MethodHead || method == http.MethodOptions {
			return RoleViewer, true
		}
		return RoleOperator, true
	}
	return "", false
}
