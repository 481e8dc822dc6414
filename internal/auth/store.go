package auth

import "context"

// Store describes the persistence operations the auth core requires. The
// implementation owns all locking and transaction discipline; the core never
// holds an in-process lock across a store call.
type Store interface {
	// Lookups used on the hot path.
	FindUserByEmail(ctx context.Context, email string) (*User, error)
	// FindUserByID returns the user with roles and each role's permissions
	// eagerly populated.
	FindUserByID(ctx context.Context, id string) (*User, error)

	// Session lifecycle.
	CreateSession(ctx context.Context, sess *Session) error
	FindSessionByToken(ctx context.Context, token string) (*Session, error)
	// RotateSession atomically marks the old record revoked and inserts the
	// replacement. When the old record was already claimed by a concurrent
	// caller it returns ErrSessionRevoked and persists nothing. The two writes
	// are never observable separately.
	RotateSession(ctx context.Context, oldID string, next *Session) error
	// MarkSessionRevoked reports whether a live session was terminated; false
	// means the record was missing or already terminal.
	MarkSessionRevoked(ctx context.Context, id string) (bool, error)
	RevokeSessionsForUser(ctx context.Context, userID string) (int, error)

	// Administrative CRUD.
	CreateUser(ctx context.Context, u *User, roleIDs []string) error
	ListUsers(ctx context.Context) ([]*User, error)
	UpdateUser(ctx context.Context, id string, upd UserUpdate) (*User, error)
	DeleteUser(ctx context.Context, id string) error

	CreateRole(ctx context.Context, role *Role) error
	FindRoleByID(ctx context.Context, id string) (*Role, error)
	ListRoles(ctx context.Context) ([]*Role, error)
	UpdateRole(ctx context.Context, id string, upd RoleUpdate) (*Role, error)
	DeleteRole(ctx context.Context, id string) error
	SetRolePermissions(ctx context.Context, roleID string, permissionNames []string) error

	EnsurePermissions(ctx context.Context, perms []Permission) error
	ListPermissions(ctx context.Context) ([]Permission, error)
	UpdatePermissionDescription(ctx context.Context, name, description string) error
}
