package httpapi

import (
	"net/http/httptest"
	"testing"
	"time"
)

func TestPINGuardLocksAfterFailuresAndExpires(t *testing.T) {
	now := time.Date(2026, 3, 14, 12, 0, 0, 0, time.UTC)
	guard := newPINGuard(3, time.Minute)
	guard.now = func() time.Time { return now }

	for i := 0; i < 3; i++ {
		if guard.Locked("10.0.0.1") {
			t.Fatalf("locked too early after %d failures", i)
		}
		guard.Fail("10.0.0.1")
	}
	if !guard.Locked("10.0.0.1") {
		t.Fatalf("expected lockout after 3 failures")
	}
	if guard.Locked("10.0.0.2") {
		t.Fatalf("lockout must be per client")
	}

	now = now.Add(61 * time.Second)
	if guard.Locked("10.0.0.1") {
		t.Fatalf("expected failures outside the window to be forgotten")
	}
}

func TestPINGuardResetClearsFailures(t *testing.T) {
	guard := newPINGuard(2, time.Minute)
	guard.Fail("c")
	guard.Fail("c")
	guard.Reset("c")
	if guard.Locked("c") {
		t.Fatalf("expected reset to clear failures")
	}
}

func TestRemoteHostStripsPort(t *testing.T) {
	req := httptest.NewRequest("GET", "/", nil)
	req.RemoteAddr = "[::1]:5001"
	if got := remoteHost(req); got != "::1" {
		t.Fatalf("expected ::1, got %q", got)
	}
	req.RemoteAddr = "192.168.1.9"
	if got := remoteHost(req); got != "192.168.1.9" {
		t.Fatalf("expected bare address, got %q", got)
	}
}
