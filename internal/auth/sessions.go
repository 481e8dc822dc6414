package auth

import (
	"context"
	"crypto/rand"
	"encoding/base64"
	"errors"

	"authgrid.org/internal/ids"
)

// sessionTokenBytes sizes the opaque external value at 256 bits of entropy.
const sessionTokenBytes = 32

// IssueSession creates one new session record for the user and mints the
// paired access credential. The external token value is freshly generated and
// never reused, including across revoked sessions.
func (s *Service) IssueSession(ctx context.Context, user *User) (TokenPair, error) {
	if user == nil || user.ID == "" {
		return TokenPair{}, ErrInvalidCredentials
	}
	sess, err := s.newSession(user.ID)
	if err != nil {
		return TokenPair{}, err
	}
	if err := s.store.CreateSession(ctx, sess); err != nil {
		return TokenPair{}, err
	}
	return s.mintPair(user.ID, sess)
}

// RotateSession exchanges a live session credential for a fresh pair,
// revoking the presented one. The revoke-old and create-new writes happen in
// a single atomic store call, so two concurrent rotations of one token leave
// exactly one winner; the loser observes ErrSessionRevoked.
func (s *Service) RotateSession(ctx context.Context, sessionToken string) (TokenPair, *User, error) {
	if sessionToken == "" {
		return TokenPair{}, nil, ErrSessionNotFound
	}
	rec, err := s.store.FindSessionByToken(ctx, sessionToken)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return TokenPair{}, nil, ErrSessionNotFound
		}
		return TokenPair{}, nil, err
	}
	now := s.now().UTC()
	if rec.Revoked {
		if s.revokeOnReuse && now.Before(rec.ExpiresAt) {
			// Reuse of a rotated-away token before expiry means the value was
			// seen by more than one party. Invalidate everything the owner
			// holds rather than guessing which holder is legitimate.
			_, _ = s.store.RevokeSessionsForUser(ctx, rec.UserID)
		}
		return TokenPair{}, nil, ErrSessionRevoked
	}
	if now.After(rec.ExpiresAt) {
		// Lazy terminalization: persist the derived expired state so the next
		// lookup short-circuits on the revoked flag.
		_, _ = s.store.MarkSessionRevoked(ctx, rec.ID)
		return TokenPair{}, nil, ErrSessionExpired
	}

	user, err := s.store.FindUserByID(ctx, rec.UserID)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return TokenPair{}, nil, ErrInvalidCredentials
		}
		return TokenPair{}, nil, err
	}
	if !user.IsActive {
		return TokenPair{}, nil, ErrInvalidCredentials
	}

	next, err := s.newSession(rec.UserID)
	if err != nil {
		return TokenPair{}, nil, err
	}
	if err := s.store.RotateSession(ctx, rec.ID, next); err != nil {
		return TokenPair{}, nil, err
	}
	pair, err := s.mintPair(user.ID, next)
	if err != nil {
		return TokenPair{}, nil, err
	}
	return pair, user, nil
}

// RevokeSession marks the session revoked if it is still live. Unknown tokens
// and already-terminal sessions report false without error: logout on a stale
// token is not a failure worth surfacing.
func (s *Service) RevokeSession(ctx context.Context, sessionToken string) bool {
	if sessionToken == "" {
		return false
	}
	rec, err := s.store.FindSessionByToken(ctx, sessionToken)
	if err != nil || rec.Revoked {
		return false
	}
	ok, err := s.store.MarkSessionRevoked(ctx, rec.ID)
	if err != nil {
		return false
	}
	return ok
}

func (s *Service) newSession(userID string) (*Session, error) {
	buf := make([]byte, sessionTokenBytes)
	if _, err := rand.Read(buf); err != nil {
		return nil, err
	}
	now := s.now().UTC()
	return &Session{
		ID:        ids.New(),
		Token:     base64.RawURLEncoding.EncodeToString(buf),
		UserID:    userID,
		ExpiresAt: now.Add(s.sessionTTL),
		CreatedAt: now,
	}, nil
}

func (s *Service) mintPair(userID string, sess *Session) (TokenPair, error) {
	access, accessExp, err := s.codec.Issue(userID, TokenTypeAccess, sess.ID, s.accessTTL)
	if err != nil {
		return TokenPair{}, err
	}
	return TokenPair{
		AccessToken:      access,
		RefreshToken:     sess.Token,
		AccessExpiresAt:  accessExp,
		RefreshExpiresAt: sess.ExpiresAt,
	}, nil
}
