package auth

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	_ "github.com/jackc/pgx/v5/stdlib"

	"authgrid.org/internal/ids"
)

var _ Store = (*PGStore)(nil)

// PGStore implements Store using PostgreSQL. All rotation atomicity promised
// by the Store contract is realized here with conditional updates inside
// transactions.
type PGStore struct {
	db *sql.DB
}

func NewPGStore(db *sql.DB) *PGStore {
	return &PGStore{db: db}
}

// Open connects to PostgreSQL with pool defaults tuned for the API server.
func Open(dsn string) (*PGStore, error) {
	db, err := sql.Open("pgx", dsn)
	if err != nil {
		return nil, err
	}
	db.SetMaxOpenConns(25)
	db.SetMaxIdleConns(10)
	db.SetConnMaxLifetime(30 * time.Minute)
	return &PGStore{db: db}, nil
}

func (s *PGStore) Close() error { return s.db.Close() }

func (s *PGStore) DB() *sql.DB { return s.db }

// Users ---------------------------------------------------------------------

const userColumns = `id, email, full_name, password_hash, is_active, is_superuser, created_at`

func scanUser(row interface{ Scan(...any) error }) (*User, error) {
	var u User
	err := row.Scan(&u.ID, &u.Email, &u.FullName, &u.PasswordHash, &u.IsActive, &u.IsSuperuser, &u.CreatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return &u, nil
}

func (s *PGStore) FindUserByEmail(ctx context.Context, email string) (*User, error) {
	row := s.db.QueryRowContext(ctx,
		`select `+userColumns+` from users where email=$1`, email)
	return scanUser(row)
}

func (s *PGStore) FindUserByID(ctx context.Context, id string) (*User, error) {
	row := s.db.QueryRowContext(ctx,
		`select `+userColumns+` from users where id=$1`, id)
	user, err := scanUser(row)
	if err != nil {
		return nil, err
	}
	if err := s.loadRoles(ctx, user); err != nil {
		return nil, err
	}
	return user, nil
}

func (s *PGStore) loadRoles(ctx context.Context, user *User) error {
	rows, err := s.db.QueryContext(ctx, `
		select r.id, r.name, r.description, r.created_at
		from roles r
		join user_roles ur on ur.role_id = r.id
		where ur.user_id = $1
		order by r.name`, user.ID)
	if err != nil {
		return err
	}
	defer rows.Close()

	for rows.Next() {
		var role Role
		if err := rows.Scan(&role.ID, &role.Name, &role.Description, &role.CreatedAt); err != nil {
			return err
		}
		user.Roles = append(user.Roles, role)
	}
	if err := rows.Err(); err != nil {
		return err
	}
	for i := range user.Roles {
		perms, err := s.permissionsForRole(ctx, user.Roles[i].ID)
		if err != nil {
			return err
		}
		user.Roles[i].Permissions = perms
	}
	return nil
}

func (s *PGStore) CreateUser(ctx context.Context, u *User, roleIDs []string) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer func() { _ = tx.Rollback() }()

	var exists bool
	if err := tx.QueryRowContext(ctx,
		`select exists(select 1 from users where email=$1)`, u.Email).Scan(&exists); err != nil {
		return err
	}
	if exists {
		return fmt.Errorf("%w: email %s", ErrConflict, u.Email)
	}
	if err := tx.QueryRowContext(ctx, `
		insert into users(id, email, full_name, password_hash, is_active, is_superuser)
		values($1,$2,$3,$4,$5,$6)
		returning created_at`,
		u.ID, u.Email, u.FullName, u.PasswordHash, u.IsActive, u.IsSuperuser,
	).Scan(&u.CreatedAt); err != nil {
		return err
	}
	for _, roleID := range roleIDs {
		res, err := tx.ExecContext(ctx,
			`insert into user_roles(user_id, role_id)
			 select $1, id from roles where id=$2
			 on conflict do nothing`, u.ID, roleID)
		if err != nil {
			return err
		}
		if n, _ := res.RowsAffected(); n == 0 {
			return fmt.Errorf("%w: role %s", ErrNotFound, roleID)
		}
	}
	return tx.Commit()
}

func (s *PGStore) ListUsers(ctx context.Context) ([]*User, error) {
	rows, err := s.db.QueryContext(ctx,
		`select `+userColumns+` from users order by created_at`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var users []*User
	for rows.Next() {
		user, err := scanUser(rows)
		if err != nil {
			return nil, err
		}
		users = append(users, user)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	for _, user := range users {
		if err := s.loadRoles(ctx, user); err != nil {
			return nil, err
		}
	}
	return users, nil
}

func (s *PGStore) UpdateUser(ctx context.Context, id string, upd UserUpdate) (*User, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, err
	}
	defer func() { _ = tx.Rollback() }()

	var sets []string
	var args []any
	add := func(column string, value any) {
		args = append(args, value)
		sets = append(sets, fmt.Sprintf("%s=$%d", column, len(args)))
	}
	if upd.Email != nil {
		var exists bool
		if err := tx.QueryRowContext(ctx,
			`select exists(select 1 from users where email=$1 and id<>$2)`, *upd.Email, id).Scan(&exists); err != nil {
			return nil, err
		}
		if exists {
			return nil, fmt.Errorf("%w: email %s", ErrConflict, *upd.Email)
		}
		add("email", *upd.Email)
	}
	if upd.FullName != nil {
		add("full_name", *upd.FullName)
	}
	if upd.Password != nil {
		add("password_hash", *upd.Password)
	}
	if upd.IsActive != nil {
		add("is_active", *upd.IsActive)
	}
	if len(sets) > 0 {
		args = append(args, id)
		res, err := tx.ExecContext(ctx,
			fmt.Sprintf(`update users set %s where id=$%d`, strings.Join(sets, ", "), len(args)), args...)
		if err != nil {
			return nil, err
		}
		if n, _ := res.RowsAffected(); n == 0 {
			return nil, ErrNotFound
		}
	}
	if upd.RoleIDs != nil {
		if _, err := tx.ExecContext(ctx, `delete from user_roles where user_id=$1`, id); err != nil {
			return nil, err
		}
		for _, roleID := range upd.RoleIDs {
			res, err := tx.ExecContext(ctx,
				`insert into user_roles(user_id, role_id)
				 select $1, id from roles where id=$2`, id, roleID)
			if err != nil {
				return nil, err
			}
			if n, _ := res.RowsAffected(); n == 0 {
				return nil, fmt.Errorf("%w: role %s", ErrNotFound, roleID)
			}
		}
	}
	if err := tx.Commit(); err != nil {
		return nil, err
	}
	return s.FindUserByID(ctx, id)
}

func (s *PGStore) DeleteUser(ctx context.Context, id string) error {
	res, err := s.db.ExecContext(ctx, `delete from users where id=$1`, id)
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrNotFound
	}
	return nil
}

// Sessions ------------------------------------------------------------------

const sessionColumns = `id, token, user_id, expires_at, revoked, created_at`

func scanSession(row interface{ Scan(...any) error }) (*Session, error) {
	var sess Session
	err := row.Scan(&sess.ID, &sess.Token, &sess.UserID, &sess.ExpiresAt, &sess.Revoked, &sess.CreatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return &sess, nil
}

func (s *PGStore) CreateSession(ctx context.Context, sess *Session) error {
	_, err := s.db.ExecContext(ctx, `
		insert into sessions(id, token, user_id, expires_at, revoked, created_at)
		values($1,$2,$3,$4,false,$5)`,
		sess.ID, sess.Token, sess.UserID, sess.ExpiresAt, sess.CreatedAt)
	return err
}

func (s *PGStore) FindSessionByToken(ctx context.Context, token string) (*Session, error) {
	row := s.db.QueryRowContext(ctx,
		`select `+sessionColumns+` from sessions where token=$1`, token)
	return scanSession(row)
}

// RotateSession claims the old record with a conditional update and inserts
// the replacement in the same transaction. A concurrent rotation of the same
// session makes the conditional update affect zero rows, which surfaces as
// ErrSessionRevoked without any partial state.
func (s *PGStore) RotateSession(ctx context.Context, oldID string, next *Session) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer func() { _ = tx.Rollback() }()

	res, err := tx.ExecContext(ctx,
		`update sessions set revoked=true where id=$1 and revoked=false`, oldID)
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrSessionRevoked
	}
	if _, err := tx.ExecContext(ctx, `
		insert into sessions(id, token, user_id, expires_at, revoked, created_at)
		values($1,$2,$3,$4,false,$5)`,
		next.ID, next.Token, next.UserID, next.ExpiresAt, next.CreatedAt); err != nil {
		return err
	}
	return tx.Commit()
}

func (s *PGStore) MarkSessionRevoked(ctx context.Context, id string) (bool, error) {
	res, err := s.db.ExecContext(ctx,
		`update sessions set revoked=true where id=$1 and revoked=false`, id)
	if err != nil {
		return false, err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, err
	}
	return n > 0, nil
}

func (s *PGStore) RevokeSessionsForUser(ctx context.Context, userID string) (int, error) {
	res, err := s.db.ExecContext(ctx,
		`update sessions set revoked=true where user_id=$1 and revoked=false`, userID)
	if err != nil {
		return 0, err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return 0, err
	}
	return int(n), nil
}

// Roles ---------------------------------------------------------------------

func (s *PGStore) CreateRole(ctx context.Context, role *Role) error {
	var exists bool
	if err := s.db.QueryRowContext(ctx,
		`select exists(select 1 from roles where name=$1)`, role.Name).Scan(&exists); err != nil {
		return err
	}
	if exists {
		return fmt.Errorf("%w: role %s", ErrConflict, role.Name)
	}
	return s.db.QueryRowContext(ctx, `
		insert into roles(id, name, description) values($1,$2,$3)
		returning created_at`,
		role.ID, role.Name, role.Description,
	).Scan(&role.CreatedAt)
}

func (s *PGStore) FindRoleByID(ctx context.Context, id string) (*Role, error) {
	row := s.db.QueryRowContext(ctx,
		`select id, name, description, created_at from roles where id=$1`, id)
	var role Role
	if err := row.Scan(&role.ID, &role.Name, &role.Description, &role.CreatedAt); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	perms, err := s.permissionsForRole(ctx, role.ID)
	if err != nil {
		return nil, err
	}
	role.Permissions = perms
	return &role, nil
}

func (s *PGStore) ListRoles(ctx context.Context) ([]*Role, error) {
	rows, err := s.db.QueryContext(ctx,
		`select id, name, description, created_at from roles order by name`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var roles []*Role
	for rows.Next() {
		var role Role
		if err := rows.Scan(&role.ID, &role.Name, &role.Description, &role.CreatedAt); err != nil {
			return nil, err
		}
		roles = append(roles, &role)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	for _, role := range roles {
		perms, err := s.permissionsForRole(ctx, role.ID)
		if err != nil {
			return nil, err
		}
		role.Permissions = perms
	}
	return roles, nil
}

func (s *PGStore) UpdateRole(ctx context.Context, id string, upd RoleUpdate) (*Role, error) {
	var sets []string
	var args []any
	if upd.Name != nil {
		var exists bool
		if err := s.db.QueryRowContext(ctx,
			`select exists(select 1 from roles where name=$1 and id<>$2)`, *upd.Name, id).Scan(&exists); err != nil {
			return nil, err
		}
		if exists {
			return nil, fmt.Errorf("%w: role %s", ErrConflict, *upd.Name)
		}
		args = append(args, *upd.Name)
		sets = append(sets, fmt.Sprintf("name=$%d", len(args)))
	}
	if upd.Description != nil {
		args = append(args, *upd.Description)
		sets = append(sets, fmt.Sprintf("description=$%d", len(args)))
	}
	if len(sets) > 0 {
		args = append(args, id)
		res, err := s.db.ExecContext(ctx,
			fmt.Sprintf(`update roles set %s where id=$%d`, strings.Join(sets, ", "), len(args)), args...)
		if err != nil {
			return nil, err
		}
		if n, _ := res.RowsAffected(); n == 0 {
			return nil, ErrNotFound
		}
	}
	return s.FindRoleByID(ctx, id)
}

func (s *PGStore) DeleteRole(ctx context.Context, id string) error {
	res, err := s.db.ExecContext(ctx, `delete from roles where id=$1`, id)
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrNotFound
	}
	return nil
}

func (s *PGStore) SetRolePermissions(ctx context.Context, roleID string, permissionNames []string) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer func() { _ = tx.Rollback() }()

	var exists bool
	if err := tx.QueryRowContext(ctx,
		`select exists(select 1 from roles where id=$1)`, roleID).Scan(&exists); err != nil {
		return err
	}
	if !exists {
		return fmt.Errorf("%w: role %s", ErrNotFound, roleID)
	}
	if _, err := tx.ExecContext(ctx, `delete from role_permissions where role_id=$1`, roleID); err != nil {
		return err
	}
	for _, name := range permissionNames {
		res, err := tx.ExecContext(ctx,
			`insert into role_permissions(role_id, permission_id)
			 select $1, id from permissions where name=$2`, roleID, name)
		if err != nil {
			return err
		}
		if n, _ := res.RowsAffected(); n == 0 {
			return fmt.Errorf("%w: permission %s", ErrNotFound, name)
		}
	}
	return tx.Commit()
}

// Permissions ---------------------------------------------------------------

func (s *PGStore) permissionsForRole(ctx context.Context, roleID string) ([]Permission, error) {
	rows, err := s.db.QueryContext(ctx, `
		select p.id, p.name, p.description, p.created_at
		from permissions p
		join role_permissions rp on rp.permission_id = p.id
		where rp.role_id = $1
		order by p.name`, roleID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var perms []Permission
	for rows.Next() {
		var p Permission
		if err := rows.Scan(&p.ID, &p.Name, &p.Description, &p.CreatedAt); err != nil {
			return nil, err
		}
		perms = append(perms, p)
	}
	return perms, rows.Err()
}

func (s *PGStore) EnsurePermissions(ctx context.Context, perms []Permission) error {
	for _, p := range perms {
		id := p.ID
		if id == "" {
			id = ids.New()
		}
		if _, err := s.db.ExecContext(ctx,
			`insert into permissions(id, name, description) values($1,$2,$3)
			 on conflict (name) do nothing`,
			id, p.Name, p.Description); err != nil {
			return err
		}
	}
	return nil
}

func (s *PGStore) ListPermissions(ctx context.Context) ([]Permission, error) {
	rows, err := s.db.QueryContext(ctx,
		`select id, name, description, created_at from permissions order by name`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var perms []Permission
	for rows.Next() {
		var p Permission
		if err := rows.Scan(&p.ID, &p.Name, &p.Description, &p.CreatedAt); err != nil {
			return nil, err
		}
		perms = append(perms, p)
	}
	return perms, rows.Err()
}

func (s *PGStore) UpdatePermissionDescription(ctx context.Context, name, description string) error {
	res, err := s.db.ExecContext(ctx,
		`update permissions set description=$1 where name=$2`, description, name)
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return fmt.Errorf("%w: permission %s", ErrNotFound, name)
	}
	return nil
}
