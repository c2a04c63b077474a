package postgres

import (
	"context"
	"errors"
	"testing"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/MrEthical07/authcore"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAuditSinkEmit(t *testing.T) {
	db, mock := newMock(t)
	sink := NewAuditSink(db)

	ev := authcore.AuditEvent{
		ID:          "ev-1",
		Timestamp:   testNow,
		EventType:   authcore.AuditLoginFailure,
		PrincipalID: "p-1",
		Email:       "alice@example.com",
		Success:     false,
		Error:       "invalid_credentials",
		Metadata:    map[string]string{"attempts": "2"},
	}

	mock.ExpectExec("insert into security_events").
		WithArgs("ev-1", testNow, authcore.AuditLoginFailure, "p-1", "alice@example.com", nil, nil,
			false, "invalid_credentials", nil, []byte(`{"attempts":"2"}`)).
		WillReturnResult(sqlmock.NewResult(1, 1))

	require.NoError(t, sink.Emit(context.Background(), ev))
}

func TestAuditSinkEmitError(t *testing.T) {
	db, mock := newMock(t)
	sink := NewAuditSink(db)

	mock.ExpectExec("insert into security_events").WillReturnError(errors.New("disk full"))

	err := sink.Emit(context.Background(), authcore.AuditEvent{ID: "ev-2", EventType: authcore.AuditLogout})
	assert.ErrorContains(t, err, "disk full")
}
