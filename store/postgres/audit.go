package postgres

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"

	"github.com/MrEthical07/authcore"
)

// AuditSink writes audit events to the security_events table. Use it behind
// the engine's async dispatcher; a slow database then drops or delays events
// instead of slowing sign-ins.
type AuditSink struct {
	db *sql.DB
}

var _ authcore.AuditSink = (*AuditSink)(nil)

func NewAuditSink(db *sql.DB) *AuditSink {
	return &AuditSink{db: db}
}

// Emit inserts ev. Replaying an event with the same ID is a no-op.
func (s *AuditSink) Emit(ctx context.Context, ev authcore.AuditEvent) error {
	var metadata []byte
	if len(ev.Metadata) > 0 {
		raw, err := json.Marshal(ev.Metadata)
		if err != nil {
			return fmt.Errorf("postgres: encode audit metadata: %w", err)
		}
		metadata = raw
	}

	_, err := s.db.ExecContext(ctx, `
insert into security_events
	(id, occurred_at, event_type, principal_id, email, ip, user_agent, success, error, detail, metadata)
values ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)
on conflict (id) do nothing`,
		ev.ID, ev.Timestamp.UTC(), ev.EventType,
		nullString(ev.PrincipalID), nullString(ev.Email), nullString(ev.IP), nullString(ev.UserAgent),
		ev.Success, nullString(ev.Error), nullString(ev.Detail), metadata,
	)
	if err != nil {
		return fmt.Errorf("postgres: insert audit event: %w", err)
	}
	return nil
}
