package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/jackc/pgerrcode"
	"github.com/jackc/pgx/v5/pgconn"
	_ "github.com/jackc/pgx/v5/stdlib"
)

// Schema creates every table this package reads or writes.
const Schema = `
create table if not exists principals (
	id                    text primary key,
	email                 text not null unique,
	password_hash         text not null,
	enabled               boolean not null default true,
	email_verified        boolean not null default false,
	failed_login_attempts integer not null default 0,
	locked_until          timestamptz,
	last_failed_login_at  timestamptz,
	last_login_at         timestamptz
);

create table if not exists roles (
	id          text primary key,
	name        text not null unique,
	description text not null default ''
);

create table if not exists permissions (
	id   text primary key,
	name text not null unique
);

create table if not exists role_permissions (
	role_id       text not null references roles (id) on delete cascade,
	permission_id text not null references permissions (id) on delete cascade,
	primary key (role_id, permission_id)
);

create table if not exists principal_roles (
	principal_id text not null references principals (id) on delete cascade,
	role_id      text not null references roles (id) on delete cascade,
	primary key (principal_id, role_id)
);

create table if not exists security_events (
	id           text primary key,
	occurred_at  timestamptz not null,
	event_type   text not null,
	principal_id text,
	email        text,
	ip           text,
	user_agent   text,
	success      boolean not null,
	error        text,
	detail       text,
	metadata     jsonb
);
create index if not exists security_events_principal_idx on security_events (principal_id, occurred_at);
`

// Open connects to dsn through the pgx stdlib driver and pings once.
func Open(ctx context.Context, dsn string) (*sql.DB, error) {
	db, err := sql.Open("pgx", dsn)
	if err != nil {
		return nil, fmt.Errorf("postgres: open: %w", err)
	}
	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("postgres: ping: %w", err)
	}
	return db, nil
}

// Migrate applies Schema.
func Migrate(ctx context.Context, db *sql.DB) error {
	if _, err := db.ExecContext(ctx, Schema); err != nil {
		return fmt.Errorf("postgres: migrate: %w", err)
	}
	return nil
}

func isUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == pgerrcode.UniqueViolation
}

func nullString(s string) sql.NullString {
	return sql.NullString{String: s, Valid: s != ""}
}
