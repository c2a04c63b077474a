package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/MrEthical07/authcore"
	"github.com/google/uuid"
)

// ErrDuplicateEmail is returned by Create when the email is already taken.
var ErrDuplicateEmail = errors.New("email already registered")

const principalColumns = `id, email, password_hash, enabled, email_verified,
	failed_login_attempts, locked_until, last_failed_login_at, last_login_at`

const rolesQuery = `
select r.id, r.name, r.description, p.id, p.name
from principal_roles pr
join roles r on r.id = pr.role_id
left join role_permissions rp on rp.role_id = r.id
left join permissions p on p.id = rp.permission_id
where pr.principal_id = $1
order by r.name, p.name`

// Store is a PrincipalStore over the principals, roles and permissions
// tables.
type Store struct {
	db *sql.DB
}

var _ authcore.PrincipalStore = (*Store)(nil)

func New(db *sql.DB) *Store {
	return &Store{db: db}
}

func normalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

func (s *Store) FindByEmail(ctx context.Context, email string) (*authcore.Principal, error) {
	row := s.db.QueryRowContext(ctx,
		`select `+principalColumns+` from principals where email = $1`, normalizeEmail(email))
	return s.load(ctx, row)
}

func (s *Store) FindByID(ctx context.Context, id string) (*authcore.Principal, error) {
	row := s.db.QueryRowContext(ctx,
		`select `+principalColumns+` from principals where id = $1`, id)
	return s.load(ctx, row)
}

func (s *Store) load(ctx context.Context, row *sql.Row) (*authcore.Principal, error) {
	var (
		p                                       authcore.Principal
		lockedUntil, lastFailedLogin, lastLogin sql.NullTime
	)
	err := row.Scan(&p.ID, &p.Email, &p.PasswordHash, &p.Enabled, &p.EmailVerified,
		&p.FailedLoginAttempts, &lockedUntil, &lastFailedLogin, &lastLogin)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, authcore.ErrPrincipalNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("postgres: load principal: %w", err)
	}
	p.LockedUntil = timePtr(lockedUntil)
	p.LastFailedLoginAt = timePtr(lastFailedLogin)
	p.LastLoginAt = timePtr(lastLogin)

	roles, err := s.roles(ctx, p.ID)
	if err != nil {
		return nil, err
	}
	p.Roles = roles
	return &p, nil
}

func (s *Store) roles(ctx context.Context, principalID string) ([]authcore.Role, error) {
	rows, err := s.db.QueryContext(ctx, rolesQuery, principalID)
	if err != nil {
		return nil, fmt.Errorf("postgres: load roles: %w", err)
	}
	defer rows.Close()

	var roles []authcore.Role
	for rows.Next() {
		var (
			role             authcore.Role
			permID, permName sql.NullString
		)
		if err := rows.Scan(&role.ID, &role.Name, &role.Description, &permID, &permName); err != nil {
			return nil, fmt.Errorf("postgres: scan role: %w", err)
		}
		// Rows arrive ordered by role name, one per granted permission.
		if n := len(roles); n == 0 || roles[n-1].ID != role.ID {
			roles = append(roles, role)
		}
		if permName.Valid {
			last := &roles[len(roles)-1]
			last.Permissions = append(last.Permissions, authcore.Permission{ID: permID.String, Name: permName.String})
		}
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("postgres: load roles: %w", err)
	}
	return roles, nil
}

func (s *Store) ClearLockout(ctx context.Context, id string) error {
	return s.update(ctx,
		`update principals set failed_login_attempts = 0, locked_until = null where id = $1`, id)
}

// RecordLoginFailure increments the counter and sets the lock in one
// statement. The prev CTE captures the lock as it was before the update so a
// failure on an already locked row neither extends the lock nor reports a new
// trigger. SET expressions read pre-update values, hence the + 1.
func (s *Store) RecordLoginFailure(ctx context.Context, id string, now time.Time, policy authcore.LockoutPolicy) (authcore.LockoutOutcome, error) {
	now = now.UTC()
	until := now.Add(policy.Duration)

	var (
		attempts    int
		lockedUntil sql.NullTime
		prevUntil   sql.NullTime
	)
	err := s.db.QueryRowContext(ctx, `
with prev as (select id, locked_until from principals where id = $1 for update)
update principals p set
	failed_login_attempts = p.failed_login_attempts + 1,
	last_failed_login_at = $2,
	locked_until = case
		when p.locked_until is not null and p.locked_until > $2 then p.locked_until
		when p.failed_login_attempts + 1 >= $3 then $4
		else p.locked_until
	end
from prev
where p.id = prev.id
returning p.failed_login_attempts, p.locked_until, prev.locked_until`,
		id, now, policy.Threshold, until,
	).Scan(&attempts, &lockedUntil, &prevUntil)
	if errors.Is(err, sql.ErrNoRows) {
		return authcore.LockoutOutcome{}, authcore.ErrPrincipalNotFound
	}
	if err != nil {
		return authcore.LockoutOutcome{}, fmt.Errorf("postgres: record login failure: %w", err)
	}

	wasLocked := prevUntil.Valid && now.Before(prevUntil.Time)
	locked := lockedUntil.Valid && now.Before(lockedUntil.Time)
	return authcore.LockoutOutcome{
		Attempts:    attempts,
		LockedUntil: timePtr(lockedUntil),
		Locked:      locked,
		Triggered:   locked && !wasLocked,
	}, nil
}

func (s *Store) RecordLoginSuccess(ctx context.Context, id string, now time.Time) error {
	return s.update(ctx,
		`update principals set failed_login_attempts = 0, locked_until = null, last_login_at = $2 where id = $1`,
		id, now.UTC())
}

// SetEnabled toggles whether the principal may sign in.
func (s *Store) SetEnabled(ctx context.Context, id string, enabled bool) error {
	return s.update(ctx, `update principals set enabled = $2 where id = $1`, id, enabled)
}

func (s *Store) update(ctx context.Context, query string, args ...any) error {
	res, err := s.db.ExecContext(ctx, query, args...)
	if err != nil {
		return fmt.Errorf("postgres: update principal: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("postgres: update principal: %w", err)
	}
	if n == 0 {
		return authcore.ErrPrincipalNotFound
	}
	return nil
}

/*
====================================
PROVISIONING
====================================
*/

// Create inserts p and links it to its roles by name. Roles must already
// exist (see UpsertRole). An empty ID is replaced with a random UUID.
func (s *Store) Create(ctx context.Context, p authcore.Principal) (authcore.Principal, error) {
	p.Email = normalizeEmail(p.Email)
	if p.Email == "" {
		return authcore.Principal{}, errors.New("postgres: email is required")
	}
	if p.ID == "" {
		p.ID = uuid.NewString()
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return authcore.Principal{}, fmt.Errorf("postgres: begin: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	_, err = tx.ExecContext(ctx,
		`insert into principals (id, email, password_hash, enabled, email_verified) values ($1, $2, $3, $4, $5)`,
		p.ID, p.Email, p.PasswordHash, p.Enabled, p.EmailVerified)
	if err != nil {
		if isUniqueViolation(err) {
			return authcore.Principal{}, fmt.Errorf("%w: %s", ErrDuplicateEmail, p.Email)
		}
		return authcore.Principal{}, fmt.Errorf("postgres: insert principal: %w", err)
	}

	for _, role := range p.Roles {
		res, err := tx.ExecContext(ctx,
			`insert into principal_roles (principal_id, role_id) select $1, id from roles where name = $2`,
			p.ID, role.Name)
		if err != nil {
			return authcore.Principal{}, fmt.Errorf("postgres: link role %q: %w", role.Name, err)
		}
		if n, _ := res.RowsAffected(); n == 0 {
			return authcore.Principal{}, fmt.Errorf("postgres: unknown role %q", role.Name)
		}
	}

	if err := tx.Commit(); err != nil {
		return authcore.Principal{}, fmt.Errorf("postgres: commit: %w", err)
	}
	return p, nil
}

// UpsertRole creates role (or updates its description) and grants every
// listed permission, creating permission rows as needed. Existing grants
// are kept.
func (s *Store) UpsertRole(ctx context.Context, role authcore.Role) (string, error) {
	if role.Name == "" {
		return "", errors.New("postgres: role name is required")
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return "", fmt.Errorf("postgres: begin: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	var roleID string
	err = tx.QueryRowContext(ctx, `
insert into roles (id, name, description) values ($1, $2, $3)
on conflict (name) do update set description = excluded.description
returning id`,
		uuid.NewString(), role.Name, role.Description,
	).Scan(&roleID)
	if err != nil {
		return "", fmt.Errorf("postgres: upsert role: %w", err)
	}

	for _, perm := range role.Permissions {
		if perm.Name == "" {
			continue
		}
		if _, err := tx.ExecContext(ctx,
			`insert into permissions (id, name) values ($1, $2) on conflict (name) do nothing`,
			uuid.NewString(), perm.Name); err != nil {
			return "", fmt.Errorf("postgres: upsert permission %q: %w", perm.Name, err)
		}
		if _, err := tx.ExecContext(ctx, `
insert into role_permissions (role_id, permission_id)
select $1, id from permissions where name = $2
on conflict do nothing`,
			roleID, perm.Name); err != nil {
			return "", fmt.Errorf("postgres: grant %q: %w", perm.Name, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return "", fmt.Errorf("postgres: commit: %w", err)
	}
	return roleID, nil
}

func timePtr(t sql.NullTime) *time.Time {
	if !t.Valid {
		return nil
	}
	v := t.Time.UTC()
	return &v
}
