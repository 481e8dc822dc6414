package auth

import (
	"errors"
	"testing"
	"time"
)

func newTestCodec(t *testing.T) *Codec {
	t.Helper()
	c, err := NewCodec("test-secret-at-least-32-characters!!", "HS256", "authgrid")
	if err != nil {
		t.Fatalf("NewCodec: %v", err)
	}
	return c
}

func TestCodecRoundTrip(t *testing.T) {
	c := newTestCodec(t)

	token, exp, err := c.Issue("user-1", TokenTypeAccess, "sess-1", 15*time.Minute)
	if err != nil {
		t.Fatalf("Issue: %v", err)
	}
	if !exp.After(time.Now()) {
		t.Fatalf("expected future expiry, got %v", exp)
	}

	claims, err := c.Verify(token, TokenTypeAccess)
	if err != nil {
		t.Fatalf("Verify: %v", err)
	}
	if claims.Subject != "user-1" {
		t.Fatalf("subject = %q, want user-1", claims.Subject)
	}
	if claims.SessionID != "sess-1" {
		t.Fatalf("sid = %q, want sess-1", claims.SessionID)
	}
	if claims.TokenType != string(TokenTypeAccess) {
		t.Fatalf("type = %q, want access", claims.TokenType)
	}
	if claims.ID == "" {
		t.Fatal("expected non-empty jti")
	}
}

func TestCodecWrongType(t *testing.T) {
	c := newTestCodec(t)
	token, _, err := c.Issue("user-1", TokenTypeRefresh, "", time.Minute)
	if err != nil {
		t.Fatalf("Issue: %v", err)
	}
	if _, err := c.Verify(token, TokenTypeAccess); !errors.Is(err, ErrTokenWrongType) {
		t.Fatalf("err = %v, want ErrTokenWrongType", err)
	}
}

func TestCodecExpired(t *testing.T) {
	c := newTestCodec(t)
	base := time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC)
	c.now = func() time.Time { return base }

	token, _, err := c.Issue("user-1", TokenTypeAccess, "", time.Minute)
	if err != nil {
		t.Fatalf("Issue: %v", err)
	}

	c.now = func() time.Time { return base.Add(2 * time.Minute) }
	if _, err := c.Verify(token, TokenTypeAccess); !errors.Is(err, ErrTokenExpired) {
		t.Fatalf("err = %v, want ErrTokenExpired", err)
	}
}

func TestCodecBadSignature(t *testing.T) {
	c := newTestCodec(t)
	other, err := NewCodec("a-completely-different-secret-value!", "HS256", "authgrid")
	if err != nil {
		t.Fatalf("NewCodec: %v", err)
	}
	token, _, err := other.Issue("user-1", TokenTypeAccess, "", time.Minute)
	if err != nil {
		t.Fatalf("Issue: %v", err)
	}
	if _, err := c.Verify(token, TokenTypeAccess); !errors.Is(err, ErrTokenSignature) {
		t.Fatalf("err = %v, want ErrTokenSignature", err)
	}
}

func TestCodecMalformed(t *testing.T) {
	c := newTestCodec(t)
	for _, token := range []string{"garbage", "a.b", "a.b.c.d"} {
		if _, err := c.Verify(token, TokenTypeAccess); !errors.Is(err, ErrTokenMalformed) {
			t.Fatalf("Verify(%q) = %v, want ErrTokenMalformed", token, err)
		}
	}
}

func TestCodecMissingToken(t *testing.T) {
	c := newTestCodec(t)
	if _, err := c.Verify("  ", TokenTypeAccess); !errors.Is(err, ErrMissingToken) {
		t.Fatalf("err = %v, want ErrMissingToken", err)
	}
}

func TestCodecIssuerMismatch(t *testing.T) {
	c := newTestCodec(t)
	other, err := NewCodec("test-secret-at-least-32-characters!!", "HS256", "someone-else")
	if err != nil {
		t.Fatalf("NewCodec: %v", err)
	}
	token, _, err := other.Issue("user-1", TokenTypeAccess, "", time.Minute)
	if err != nil {
		t.Fatalf("Issue: %v", err)
	}
	if _, err := c.Verify(token, TokenTypeAccess); !errors.Is(err, ErrTokenMalformed) {
		t.Fatalf("err = %v, want ErrTokenMalformed", err)
	}
}

func TestNewCodecRejectsUnknownAlgorithm(t *testing.T) {
	if _, err := NewCodec("secret", "RS256", ""); err == nil {
		t.Fatal("expected error for unsupported algorithm")
	}
	if _, err := NewCodec("", "HS256", ""); err == nil {
		t.Fatal("expected error for empty secret")
	}
}

func TestCodecIssueValidation(t *testing.T) {
	c := newTestCodec(t)
	if _, _, err := c.Issue("", TokenTypeAccess, "", time.Minute); err == nil {
		t.Fatal("expected error for empty subject")
	}
	if _, _, err := c.Issue("user-1", TokenTypeAccess, "", 0); err == nil {
		t.Fatal("expected error for non-positive ttl")
	}
}
