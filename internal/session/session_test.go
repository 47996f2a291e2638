package session

import (
	"errors"
	"testing"
	"time"

	"github.com/siteplanhq/notify/internal/config"
)

func newTestManager(t *testing.T, ttl time.Duration) *Manager {
	t.Helper()

	m, err := NewManager(config.SessionConfig{Secret: "test-secret", TTL: ttl})
	if err != nil {
		t.Fatalf("NewManager returned error: %v", err)
	}
	return m
}

func TestManager_IssueParse_RoundTrip(t *testing.T) {
	t.Parallel()

	m := newTestManager(t, time.Hour)

	token, err := m.Issue("u1", "client")
	if err != nil {
		t.Fatalf("Issue() error: %v", err)
	}

	claims, err := m.Parse(token)
	if err != nil {
		t.Fatalf("Parse() error: %v", err)
	}
	if claims.UserID != "u1" || claims.Role != "client" {
		t.Fatalf("unexpected claims: %+v", claims)
	}
	if claims.ID == "" {
		t.Fatalf("expected a JTI on the token")
	}
}

func TestManager_Parse_Expired(t *testing.T) {
	t.Parallel()

	m := newTestManager(t, time.Nanosecond)

	token, err := m.Issue("u1", "client")
	if err != nil {
		t.Fatalf("Issue() error: %v", err)
	}

	time.Sleep(10 * time.Millisecond)

	if _, err := m.Parse(token); !errors.Is(err, ErrTokenExpired) {
		t.Fatalf("expected ErrTokenExpired, got %v", err)
	}
}

func TestManager_Parse_WrongSecret(t *testing.T) {
	t.Parallel()

	m := newTestManager(t, time.Hour)
	token, err := m.Issue("u1", "client")
	if err != nil {
		t.Fatalf("Issue() error: %v", err)
	}

	other, err := NewManager(config.SessionConfig{Secret: "different", TTL: time.Hour})
	if err != nil {
		t.Fatalf("NewManager returned error: %v", err)
	}

	if _, err := other.Parse(token); !errors.Is(err, ErrTokenInvalid) {
		t.Fatalf("expected ErrTokenInvalid, got %v", err)
	}
}

func TestManager_Parse_Garbage(t *testing.T) {
	t.Parallel()

	m := newTestManager(t, time.Hour)

	if _, err := m.Parse("not-a-token"); !errors.Is(err, ErrTokenInvalid) {
		t.Fatalf("expected ErrTokenInvalid, got %v", err)
	}
}

func TestNewManager_InvalidConfig(t *testing.T) {
	t.Parallel()

	if _, err := NewManager(config.SessionConfig{Secret: "", TTL: time.Hour}); err == nil {
		t.Fatalf("expected error for empty secret")
	}
	if _, err := NewManager(config.SessionConfig{Secret: "s", TTL: 0}); err == nil {
		t.Fatalf("expected error for zero ttl")
	}
}
