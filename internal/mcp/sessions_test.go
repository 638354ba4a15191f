// ABOUTME: Tests for session expiry and request credential parsing
// ABOUTME: Uses a fake clock on the session store

package mcp

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"
)

func TestSessionStore_IdleExpiry(t *testing.T) {
	now := time.Date(2026, 1, 1, 12, 0, 0, 0, time.UTC)
	s := newSessionStore(time.Minute)
	s.now = func() time.Time { return now }

	kept := s.create("2025-11-25", "", "")
	dropped := s.create("2025-11-25", "", "")

	now = now.Add(45 * time.Second)
	if _, ok := s.touch(kept.id); !ok {
		t.Fatal("session should still be live")
	}

	now = now.Add(30 * time.Second)
	if _, ok := s.touch(dropped.id); ok {
		t.Error("idle session should have expired")
	}
	if _, ok := s.get(kept.id); !ok {
		t.Error("touched session should survive")
	}
	if got := s.count(); got != 1 {
		t.Errorf("count() = %d, want 1", got)
	}
}

func TestSessionStore_NoExpiry(t *testing.T) {
	now := time.Now()
	s := newSessionStore(0)
	s.now = func() time.Time { return now }

	sess := s.create("2025-11-25", "", "")
	now = now.Add(24 * 365 * time.Hour)
	if _, ok := s.touch(sess.id); !ok {
		t.Error("sessions must not expire when idle timeout is disabled")
	}
}

func TestExpiredSessionNeedsReinitialize(t *testing.T) {
	server, mux := setupTestServer(t, Config{SessionIdleTimeout: time.Minute})
	now := time.Now()
	server.sessions.now = func() time.Time { return now }

	session := initialize(t, mux, "/mcp")
	now = now.Add(2 * time.Minute)

	rr, _ := post(t, mux, "/mcp", session, `{"jsonrpc":"2.0","id":2,"method":"ping"}`)
	if rr.Code != http.StatusNotFound {
		t.Errorf("expected 404 for expired session, got %d", rr.Code)
	}
}

func TestCredentialsFrom(t *testing.T) {
	tests := []struct {
		name   string
		target string
		header string
		kind   credentialKind
		token  string
	}{
		{"none", "/mcp", "", credNone, ""},
		{"path", "/mcp/abc", "", credLaunch, "abc"},
		{"path trailing slash", "/mcp/abc/", "", credLaunch, "abc"},
		{"path extra segment", "/mcp/abc/def", "", credMalformed, ""},
		{"query", "/mcp?token=q1", "", credLaunch, "q1"},
		{"path beats query", "/mcp/p1?token=q1", "", credLaunch, "p1"},
		{"bearer", "/mcp", "Bearer b1", credBearer, "b1"},
		{"query beats bearer", "/mcp?token=q1", "Bearer b1", credLaunch, "q1"},
		{"basic ignored", "/mcp", "Basic xyz", credNone, ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := httptest.NewRequest(http.MethodPost, tt.target, nil)
			if tt.header != "" {
				r.Header.Set("Authorization", tt.header)
			}
			got := credentialsFrom(r)
			if got.kind != tt.kind || got.token != tt.token {
				t.Errorf("credentialsFrom(%s) = %+v, want kind %d token %q", tt.target, got, tt.kind, tt.token)
			}
		})
	}
}
