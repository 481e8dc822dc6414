package auth

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"
)

func newTestService(t *testing.T, store Store, opts ...ServiceOption) *Service {
	t.Helper()
	base := []ServiceOption{
		WithSigningKey("test-secret-at-least-32-characters!!", "HS256", "authgrid"),
	}
	svc, err := NewService(store, append(base, opts...)...)
	if err != nil {
		t.Fatalf("NewService: %v", err)
	}
	return svc
}

func seedUser(t *testing.T, store *memStore, id, email, password string, active bool) *User {
	t.Helper()
	hash, err := HashPassword(password)
	if err != nil {
		t.Fatalf("HashPassword: %v", err)
	}
	u := &User{
		ID:           id,
		Email:        email,
		PasswordHash: hash,
		IsActive:     active,
	}
	store.addUser(u)
	return u
}

func TestIssueAndRotateSession(t *testing.T) {
	ctx := context.Background()
	store := newMemStore()
	user := seedUser(t, store, "u1", "alice@example.com", "s3cret", true)
	svc := newTestService(t, store)

	pair, err := svc.IssueSession(ctx, user)
	if err != nil {
		t.Fatalf("IssueSession: %v", err)
	}
	if pair.RefreshToken == "" || pair.AccessToken == "" {
		t.Fatal("expected both tokens to be set")
	}

	next, rotatedUser, err := svc.RotateSession(ctx, pair.RefreshToken)
	if err != nil {
		t.Fatalf("RotateSession: %v", err)
	}
	if rotatedUser.ID != "u1" {
		t.Fatalf("rotated user = %q, want u1", rotatedUser.ID)
	}
	if next.RefreshToken == pair.RefreshToken {
		t.Fatal("rotation must mint a fresh token value")
	}

	// The presented token is terminal after rotation.
	if _, _, err := svc.RotateSession(ctx, pair.RefreshToken); !errors.Is(err, ErrSessionRevoked) {
		t.Fatalf("reuse err = %v, want ErrSessionRevoked", err)
	}
	// The replacement still works.
	if _, _, err := svc.RotateSession(ctx, next.RefreshToken); err != nil {
		t.Fatalf("rotate replacement: %v", err)
	}
}

func TestRotateSessionUnknownToken(t *testing.T) {
	svc := newTestService(t, newMemStore())
	if _, _, err := svc.RotateSession(context.Background(), "no-such-token"); !errors.Is(err, ErrSessionNotFound) {
		t.Fatalf("err = %v, want ErrSessionNotFound", err)
	}
	if _, _, err := svc.RotateSession(context.Background(), ""); !errors.Is(err, ErrSessionNotFound) {
		t.Fatalf("empty token err = %v, want ErrSessionNotFound", err)
	}
}

func TestRotateSessionConcurrencySingleWinner(t *testing.T) {
	ctx := context.Background()
	store := newMemStore()
	user := seedUser(t, store, "u1", "alice@example.com", "s3cret", true)
	svc := newTestService(t, store)

	pair, err := svc.IssueSession(ctx, user)
	if err != nil {
		t.Fatalf("IssueSession: %v", err)
	}

	const n = 16
	var (
		wg      sync.WaitGroup
		mu      sync.Mutex
		wins    int
		revoked int
	)
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, _, err := svc.RotateSession(ctx, pair.RefreshToken)
			mu.Lock()
			defer mu.Unlock()
			switch {
			case err == nil:
				wins++
			case errors.Is(err, ErrSessionRevoked):
				revoked++
			default:
				t.Errorf("unexpected rotation error: %v", err)
			}
		}()
	}
	wg.Wait()

	if wins != 1 {
		t.Fatalf("winners = %d, want exactly 1", wins)
	}
	if revoked != n-1 {
		t.Fatalf("revoked losers = %d, want %d", revoked, n-1)
	}
}

func TestRotateSessionLazyExpiry(t *testing.T) {
	ctx := context.Background()
	store := newMemStore()
	user := seedUser(t, store, "u1", "alice@example.com", "s3cret", true)

	base := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	now := base
	svc := newTestService(t, store,
		WithSessionTTL(time.Hour),
		WithClock(func() time.Time { return now }),
	)

	pair, err := svc.IssueSession(ctx, user)
	if err != nil {
		t.Fatalf("IssueSession: %v", err)
	}

	now = base.Add(2 * time.Hour)
	if _, _, err := svc.RotateSession(ctx, pair.RefreshToken); !errors.Is(err, ErrSessionExpired) {
		t.Fatalf("err = %v, want ErrSessionExpired", err)
	}

	// The expired observation is persisted: the record is revoked now and the
	// second presentation short-circuits on that flag.
	rec := store.sessionByToken(pair.RefreshToken)
	if rec == nil || !rec.Revoked {
		t.Fatal("expired session was not persisted as revoked")
	}
	if _, _, err := svc.RotateSession(ctx, pair.RefreshToken); !errors.Is(err, ErrSessionRevoked) {
		t.Fatalf("second presentation err = %v, want ErrSessionRevoked", err)
	}
}

func TestRotateSessionInactiveUser(t *testing.T) {
	ctx := context.Background()
	store := newMemStore()
	user := seedUser(t, store, "u1", "alice@example.com", "s3cret", true)
	svc := newTestService(t, store)

	pair, err := svc.IssueSession(ctx, user)
	if err != nil {
		t.Fatalf("IssueSession: %v", err)
	}
	inactive := false
	if _, err := store.UpdateUser(ctx, "u1", UserUpdate{IsActive: &inactive}); err != nil {
		t.Fatalf("UpdateUser: %v", err)
	}
	if _, _, err := svc.RotateSession(ctx, pair.RefreshToken); !errors.Is(err, ErrInvalidCredentials) {
		t.Fatalf("err = %v, want ErrInvalidCredentials", err)
	}
}

func TestRevokeSessionIdempotent(t *testing.T) {
	ctx := context.Background()
	store := newMemStore()
	user := seedUser(t, store, "u1", "alice@example.com", "s3cret", true)
	svc := newTestService(t, store)

	pair, err := svc.IssueSession(ctx, user)
	if err != nil {
		t.Fatalf("IssueSession: %v", err)
	}

	if !svc.RevokeSession(ctx, pair.RefreshToken) {
		t.Fatal("first revoke should report true")
	}
	if svc.RevokeSession(ctx, pair.RefreshToken) {
		t.Fatal("second revoke should report false")
	}
	if svc.RevokeSession(ctx, "no-such-token") {
		t.Fatal("revoking an unknown token should report false")
	}

	if _, _, err := svc.RotateSession(ctx, pair.RefreshToken); !errors.Is(err, ErrSessionRevoked) {
		t.Fatalf("rotate after revoke err = %v, want ErrSessionRevoked", err)
	}
}

func TestRevokeOnReuseCascade(t *testing.T) {
	ctx := context.Background()
	store := newMemStore()
	user := seedUser(t, store, "u1", "alice@example.com", "s3cret", true)
	svc := newTestService(t, store, WithRevokeOnReuse(true))

	first, err := svc.IssueSession(ctx, user)
	if err != nil {
		t.Fatalf("IssueSession: %v", err)
	}
	second, _, err := svc.RotateSession(ctx, first.RefreshToken)
	if err != nil {
		t.Fatalf("RotateSession: %v", err)
	}
	if _, err := svc.IssueSession(ctx, user); err != nil {
		t.Fatalf("IssueSession: %v", err)
	}

	// Presenting the rotated-away token again trips the cascade: every session
	// the user holds goes terminal.
	if _, _, err := svc.RotateSession(ctx, first.RefreshToken); !errors.Is(err, ErrSessionRevoked) {
		t.Fatalf("reuse err = %v, want ErrSessionRevoked", err)
	}
	if n := store.liveSessionCount("u1"); n != 0 {
		t.Fatalf("live sessions after cascade = %d, want 0", n)
	}
	if _, _, err := svc.RotateSession(ctx, second.RefreshToken); !errors.Is(err, ErrSessionRevoked) {
		t.Fatalf("successor after cascade err = %v, want ErrSessionRevoked", err)
	}
}

func TestReuseWithoutCascadeLeavesOthersLive(t *testing.T) {
	ctx := context.Background()
	store := newMemStore()
	user := seedUser(t, store, "u1", "alice@example.com", "s3cret", true)
	svc := newTestService(t, store)

	first, err := svc.IssueSession(ctx, user)
	if err != nil {
		t.Fatalf("IssueSession: %v", err)
	}
	second, _, err := svc.RotateSession(ctx, first.RefreshToken)
	if err != nil {
		t.Fatalf("RotateSession: %v", err)
	}

	if _, _, err := svc.RotateSession(ctx, first.RefreshToken); !errors.Is(err, ErrSessionRevoked) {
		t.Fatalf("reuse err = %v, want ErrSessionRevoked", err)
	}
	if _, _, err := svc.RotateSession(ctx, second.RefreshToken); err != nil {
		t.Fatalf("successor should survive without cascade: %v", err)
	}
}
