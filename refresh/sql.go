package refresh

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/MrEthical07/authcore/internal/random"
	"github.com/jackc/pgerrcode"
	"github.com/jackc/pgx/v5/pgconn"
)

// Schema creates the table SQLStore expects.
const Schema = `
create table if not exists refresh_tokens (
	token_hash   text primary key,
	principal_id text not null,
	expires_at   timestamptz not null,
	created_at   timestamptz not null
);
create index if not exists refresh_tokens_principal_idx on refresh_tokens (principal_id);
create index if not exists refresh_tokens_expires_idx on refresh_tokens (expires_at);
`

// SQLStore keeps refresh tokens in a relational table.
type SQLStore struct {
	db  *sql.DB
	cfg Config
}

var _ Store = (*SQLStore)(nil)

// NewSQLStore returns a store over db. Only TTL and Now are used from cfg.
func NewSQLStore(db *sql.DB, cfg Config) *SQLStore {
	return &SQLStore{db: db, cfg: cfg.withDefaults()}
}

// Issue inserts a new token row. A hash collision is retried once.
func (s *SQLStore) Issue(ctx context.Context, principalID string) (Record, error) {
	if principalID == "" {
		return Record{}, errors.New("refresh: empty principal id")
	}

	for attempt := 0; ; attempt++ {
		token, err := random.NewToken()
		if err != nil {
			return Record{}, err
		}
		now := s.cfg.Now().UTC()
		rec := Record{
			Token:       token,
			PrincipalID: principalID,
			CreatedAt:   now,
			ExpiresAt:   now.Add(s.cfg.TTL),
		}

		_, err = s.db.ExecContext(ctx,
			`insert into refresh_tokens (token_hash, principal_id, expires_at, created_at) values ($1, $2, $3, $4)`,
			random.HashToken(token), principalID, rec.ExpiresAt, rec.CreatedAt,
		)
		if err == nil {
			return rec, nil
		}
		if pgErr, ok := maybePgError(err); ok && pgErr.Code == pgerrcode.UniqueViolation && attempt == 0 {
			continue
		}
		return Record{}, fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
}

func (s *SQLStore) Lookup(ctx context.Context, token string) (*Record, error) {
	if !random.WellFormed(token) {
		return nil, ErrNotFound
	}

	rec := Record{Token: token}
	err := s.db.QueryRowContext(ctx,
		`select principal_id, expires_at, created_at from refresh_tokens where token_hash = $1`,
		random.HashToken(token),
	).Scan(&rec.PrincipalID, &rec.ExpiresAt, &rec.CreatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	return &rec, nil
}

func (s *SQLStore) Delete(ctx context.Context, token string) (bool, error) {
	if !random.WellFormed(token) {
		return false, nil
	}
	n, err := s.exec(ctx, `delete from refresh_tokens where token_hash = $1`, random.HashToken(token))
	return n > 0, err
}

func (s *SQLStore) DeleteAllForPrincipal(ctx context.Context, principalID string) (int64, error) {
	return s.exec(ctx, `delete from refresh_tokens where principal_id = $1`, principalID)
}

func (s *SQLStore) DeleteExpired(ctx context.Context, before time.Time) (int64, error) {
	return s.exec(ctx, `delete from refresh_tokens where expires_at < $1`, before.UTC())
}

func (s *SQLStore) exec(ctx context.Context, query string, args ...any) (int64, error) {
	res, err := s.db.ExecContext(ctx, query, args...)
	if err != nil {
		return 0, fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	return n, nil
}

func maybePgError(err error) (*pgconn.PgError, bool) {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		return pgErr, true
	}
	return nil, false
}
