package postgres

import (
	"context"
	"database/sql"
	"errors"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/MrEthical07/authcore"
	"github.com/jackc/pgerrcode"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var testNow = time.Date(2025, 3, 1, 10, 0, 0, 0, time.UTC)

func newMock(t *testing.T) (*sql.DB, sqlmock.Sqlmock) {
	t.Helper()
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() {
		assert.NoError(t, mock.ExpectationsWereMet())
		db.Close()
	})
	return db, mock
}

func principalRow(attempts int64, lockedUntil any) *sqlmock.Rows {
	return sqlmock.NewRows([]string{
		"id", "email", "password_hash", "enabled", "email_verified",
		"failed_login_attempts", "locked_until", "last_failed_login_at", "last_login_at",
	}).AddRow("p-1", "alice@example.com", "$argon2id$hash", true, false, attempts, lockedUntil, nil, nil)
}

func TestFindByEmailLoadsRoles(t *testing.T) {
	db, mock := newMock(t)
	store := New(db)

	mock.ExpectQuery("select id, email, password_hash.* from principals where email = \\$1").
		WithArgs("alice@example.com").
		WillReturnRows(principalRow(2, nil))
	mock.ExpectQuery("from principal_roles pr").
		WithArgs("p-1").
		WillReturnRows(sqlmock.NewRows([]string{"id", "name", "description", "id", "name"}).
			AddRow("r-1", "editor", "", "perm-1", "reports:read").
			AddRow("r-1", "editor", "", "perm-2", "reports:write").
			AddRow("r-2", "empty", "no grants", nil, nil))

	p, err := store.FindByEmail(context.Background(), "  Alice@Example.com ")
	require.NoError(t, err)

	assert.Equal(t, "p-1", p.ID)
	assert.Equal(t, 2, p.FailedLoginAttempts)
	assert.Nil(t, p.LockedUntil)
	require.Len(t, p.Roles, 2)
	assert.Equal(t, "editor", p.Roles[0].Name)
	assert.Equal(t, []authcore.Permission{{ID: "perm-1", Name: "reports:read"}, {ID: "perm-2", Name: "reports:write"}}, p.Roles[0].Permissions)
	assert.Equal(t, "empty", p.Roles[1].Name)
	assert.Empty(t, p.Roles[1].Permissions)
}

func TestFindByIDNotFound(t *testing.T) {
	db, mock := newMock(t)
	store := New(db)

	mock.ExpectQuery("from principals where id = \\$1").
		WithArgs("missing").
		WillReturnError(sql.ErrNoRows)

	_, err := store.FindByID(context.Background(), "missing")
	assert.ErrorIs(t, err, authcore.ErrPrincipalNotFound)
}

func TestFindByIDStoreError(t *testing.T) {
	db, mock := newMock(t)
	store := New(db)

	mock.ExpectQuery("from principals where id = \\$1").
		WillReturnError(errors.New("connection reset"))

	_, err := store.FindByID(context.Background(), "p-1")
	require.Error(t, err)
	assert.NotErrorIs(t, err, authcore.ErrPrincipalNotFound)
}

func TestRecordLoginFailure(t *testing.T) {
	policy := authcore.LockoutPolicy{Threshold: 5, Duration: 15 * time.Minute}
	until := testNow.Add(15 * time.Minute)
	earlier := testNow.Add(10 * time.Minute)

	tests := []struct {
		name          string
		attempts      int64
		lockedUntil   any
		prevUntil     any
		wantLocked    bool
		wantTriggered bool
		wantUntil     time.Time
	}{
		{"below threshold", 3, nil, nil, false, false, time.Time{}},
		{"reaches threshold", 5, until, nil, true, true, until},
		{"already locked", 6, earlier, earlier, true, false, earlier},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			db, mock := newMock(t)
			store := New(db)

			mock.ExpectQuery(`with prev as .* for update\)\s+update principals p set\s+failed_login_attempts = p\.failed_login_attempts \+ 1`).
				WithArgs("p-1", testNow, 5, until).
				WillReturnRows(sqlmock.NewRows([]string{"failed_login_attempts", "locked_until", "locked_until"}).
					AddRow(tt.attempts, tt.lockedUntil, tt.prevUntil))

			out, err := store.RecordLoginFailure(context.Background(), "p-1", testNow, policy)
			require.NoError(t, err)
			assert.Equal(t, int(tt.attempts), out.Attempts)
			assert.Equal(t, tt.wantLocked, out.Locked)
			assert.Equal(t, tt.wantTriggered, out.Triggered)
			if tt.wantLocked {
				require.NotNil(t, out.LockedUntil)
				assert.True(t, out.LockedUntil.Equal(tt.wantUntil))
			} else {
				assert.Nil(t, out.LockedUntil)
			}
		})
	}
}

func TestRecordLoginFailureMissingPrincipal(t *testing.T) {
	db, mock := newMock(t)
	store := New(db)

	mock.ExpectQuery("update principals set").WillReturnError(sql.ErrNoRows)

	_, err := store.RecordLoginFailure(context.Background(), "gone", testNow, authcore.LockoutPolicy{Threshold: 5, Duration: time.Minute})
	assert.ErrorIs(t, err, authcore.ErrPrincipalNotFound)
}

func TestClearLockoutAndSuccess(t *testing.T) {
	db, mock := newMock(t)
	store := New(db)

	mock.ExpectExec("update principals set failed_login_attempts = 0, locked_until = null where id = \\$1").
		WithArgs("p-1").
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec("last_login_at = \\$2").
		WithArgs("p-1", testNow).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec("update principals set failed_login_attempts = 0").
		WithArgs("gone").
		WillReturnResult(sqlmock.NewResult(0, 0))

	require.NoError(t, store.ClearLockout(context.Background(), "p-1"))
	require.NoError(t, store.RecordLoginSuccess(context.Background(), "p-1", testNow))
	assert.ErrorIs(t, store.ClearLockout(context.Background(), "gone"), authcore.ErrPrincipalNotFound)
}

func TestCreateMapsUniqueViolation(t *testing.T) {
	db, mock := newMock(t)
	store := New(db)

	mock.ExpectBegin()
	mock.ExpectExec("insert into principals").
		WillReturnError(&pgconn.PgError{Code: pgerrcode.UniqueViolation})
	mock.ExpectRollback()

	_, err := store.Create(context.Background(), authcore.Principal{Email: "alice@example.com", PasswordHash: "h"})
	assert.ErrorIs(t, err, ErrDuplicateEmail)
}

func TestCreateLinksRoles(t *testing.T) {
	db, mock := newMock(t)
	store := New(db)

	mock.ExpectBegin()
	mock.ExpectExec("insert into principals").
		WithArgs("p-1", "bob@example.com", "h", true, false).
		WillReturnResult(sqlmock.NewResult(1, 1))
	mock.ExpectExec("insert into principal_roles").
		WithArgs("p-1", "editor").
		WillReturnResult(sqlmock.NewResult(1, 1))
	mock.ExpectCommit()

	p, err := store.Create(context.Background(), authcore.Principal{
		ID:           "p-1",
		Email:        "Bob@Example.com",
		PasswordHash: "h",
		Enabled:      true,
		Roles:        []authcore.Role{{Name: "editor"}},
	})
	require.NoError(t, err)
	assert.Equal(t, "bob@example.com", p.Email)
}

func TestCreateRejectsUnknownRole(t *testing.T) {
	db, mock := newMock(t)
	store := New(db)

	mock.ExpectBegin()
	mock.ExpectExec("insert into principals").WillReturnResult(sqlmock.NewResult(1, 1))
	mock.ExpectExec("insert into principal_roles").WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectRollback()

	_, err := store.Create(context.Background(), authcore.Principal{
		Email: "bob@example.com",
		Roles: []authcore.Role{{Name: "nope"}},
	})
	assert.ErrorContains(t, err, "unknown role")
}

func TestUpsertRole(t *testing.T) {
	db, mock := newMock(t)
	store := New(db)

	mock.ExpectBegin()
	mock.ExpectQuery("insert into roles").
		WithArgs(sqlmock.AnyArg(), "editor", "edits reports").
		WillReturnRows(sqlmock.NewRows([]string{"id"}).AddRow("r-1"))
	mock.ExpectExec("insert into permissions").
		WithArgs(sqlmock.AnyArg(), "reports:write").
		WillReturnResult(sqlmock.NewResult(1, 1))
	mock.ExpectExec("insert into role_permissions").
		WithArgs("r-1", "reports:write").
		WillReturnResult(sqlmock.NewResult(1, 1))
	mock.ExpectCommit()

	id, err := store.UpsertRole(context.Background(), authcore.Role{
		Name:        "editor",
		Description: "edits reports",
		Permissions: []authcore.Permission{{Name: "reports:write"}, {Name: ""}},
	})
	require.NoError(t, err)
	assert.Equal(t, "r-1", id)
}
