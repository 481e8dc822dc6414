package auth

import (
	"context"
	"errors"
	"strings"
	"time"
)

const (
	defaultAccessTTL  = 15 * time.Minute
	defaultSessionTTL = 7 * 24 * time.Hour
)

// Service composes the credential codec, session lifecycle and permission
// resolution into login, refresh and logout operations. All state besides the
// immutable configuration lives in the Store, so a single Service is safe to
// share across arbitrarily many concurrent requests.
type Service struct {
	store Store
	codec *Codec
	now   func() time.Time

	accessTTL  time.Duration
	sessionTTL time.Duration
	wildcard   string

	// revokeOnReuse escalates presentation of a revoked, unexpired session
	// token into revocation of every session the owner holds. Off by default.
	revokeOnReuse bool
}

// ServiceOption configures Service behavior.
type ServiceOption func(*Service) error

// WithSigningKey configures the symmetric secret and algorithm used for
// access credentials. Required.
func WithSigningKey(secret, algorithm, issuer string) ServiceOption {
	return func(s *Service) error {
		codec, err := NewCodec(secret, algorithm, issuer)
		if err != nil {
			return err
		}
		s.codec = codec
		return nil
	}
}

// WithAccessTTL configures access credential lifetime.
func WithAccessTTL(ttl time.Duration) ServiceOption {
	return func(s *Service) error {
		if ttl > 0 {
			s.accessTTL = ttl
		}
		return nil
	}
}

// WithSessionTTL configures session credential lifetime.
func WithSessionTTL(ttl time.Duration) ServiceOption {
	return func(s *Service) error {
		if ttl > 0 {
			s.sessionTTL = ttl
		}
		return nil
	}
}

// WithWildcard overrides the superuser wildcard permission token.
func WithWildcard(token string) ServiceOption {
	return func(s *Service) error {
		if strings.TrimSpace(token) != "" {
			s.wildcard = strings.TrimSpace(token)
		}
		return nil
	}
}

// WithRevokeOnReuse enables cascade revocation when a rotated-away session
// token is presented again before its expiry.
func WithRevokeOnReuse(enabled bool) ServiceOption {
	return func(s *Service) error {
		s.revokeOnReuse = enabled
		return nil
	}
}

// WithClock overrides the time source (useful for tests).
func WithClock(fn func() time.Time) ServiceOption {
	return func(s *Service) error {
		if fn != nil {
			s.now = fn
		}
		return nil
	}
}

// NewService constructs a Service. A signing key is mandatory.
func NewService(store Store, opts ...ServiceOption) (*Service, error) {
	if store == nil {
		return nil, errors.New("auth: store is required")
	}
	svc := &Service{
		store:      store,
		now:        time.Now,
		accessTTL:  defaultAccessTTL,
		sessionTTL: defaultSessionTTL,
		wildcard:   WildcardPermission,
	}
	for _, opt := range opts {
		if err := opt(svc); err != nil {
			return nil, err
		}
	}
	if svc.codec == nil {
		return nil, errors.New("auth: signing key is required")
	}
	svc.codec.now = svc.now
	return svc, nil
}

// Codec exposes the credential codec for callers that only verify tokens.
func (s *Service) Codec() *Codec { return s.codec }

// EnsureBuiltins seeds the predefined permission catalog.
func (s *Service) EnsureBuiltins(ctx context.Context) error {
	return s.store.EnsurePermissions(ctx, BuiltinPermissions)
}

// Login authenticates the email/password pair and issues a fresh credential
// pair. Unknown email, wrong password and inactive account are deliberately
// indistinguishable to the caller.
func (s *Service) Login(ctx context.Context, email, password string) (TokenPair, Principal, error) {
	email = strings.TrimSpace(strings.ToLower(email))
	if email == "" || password == "" {
		return TokenPair{}, Principal{}, ErrInvalidCredentials
	}
	user, err := s.store.FindUserByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return TokenPair{}, Principal{}, ErrInvalidCredentials
		}
		return TokenPair{}, Principal{}, err
	}
	if !user.IsActive {
		return TokenPair{}, Principal{}, ErrInvalidCredentials
	}
	if err := VerifyPassword(user.PasswordHash, password); err != nil {
		return TokenPair{}, Principal{}, ErrInvalidCredentials
	}

	principal, err := s.principal(ctx, user.ID)
	if err != nil {
		return TokenPair{}, Principal{}, err
	}
	pair, err := s.IssueSession(ctx, principal.User)
	if err != nil {
		return TokenPair{}, Principal{}, err
	}
	return pair, principal, nil
}

// Refresh rotates the presented session credential and returns a fresh pair.
func (s *Service) Refresh(ctx context.Context, sessionToken string) (TokenPair, Principal, error) {
	pair, user, err := s.RotateSession(ctx, sessionToken)
	if err != nil {
		return TokenPair{}, Principal{}, err
	}
	return pair, s.newPrincipal(user), nil
}

// Logout revokes the presented session credential. It reports whether a live
// session was actually revoked; callers treat any outcome as success.
func (s *Service) Logout(ctx context.Context, sessionToken string) bool {
	return s.RevokeSession(ctx, sessionToken)
}

// AuthenticateToken verifies an access credential and loads its principal
// with resolved permissions.
func (s *Service) AuthenticateToken(ctx context.Context, token string) (Principal, error) {
	claims, err := s.codec.Verify(token, TokenTypeAccess)
	if err != nil {
		return Principal{}, err
	}
	principal, err := s.principal(ctx, claims.Subject)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return Principal{}, ErrInvalidCredentials
		}
		return Principal{}, err
	}
	if !principal.User.IsActive {
		return Principal{}, ErrInvalidCredentials
	}
	return principal, nil
}

func (s *Service) principal(ctx context.Context, userID string) (Principal, error) {
	user, err := s.store.FindUserByID(ctx, userID)
	if err != nil {
		return Principal{}, err
	}
	return s.newPrincipal(user), nil
}
