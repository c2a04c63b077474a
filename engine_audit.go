package authcore

import (
	"context"
	"errors"

	"github.com/MrEthical07/authcore/internal/audit"
)

// Audit event types.
const (
	AuditLoginSuccess   = audit.EventLoginSuccess
	AuditLoginFailure   = audit.EventLoginFailure
	AuditAccountLocked  = audit.EventAccountLocked
	AuditLockoutCleared = audit.EventLockoutCleared
	AuditRefreshSuccess = audit.EventRefreshSuccess
	AuditRefreshFailure = audit.EventRefreshFailure
	AuditLogout         = audit.EventLogout
	AuditLogoutAll      = audit.EventLogoutAll
	AuditTokenRevoked   = audit.EventTokenRevoked
)

// AuditErrorCode is the stable error classification recorded on events.
type AuditErrorCode string

const (
	auditErrInvalidCredentials AuditErrorCode = "invalid_credentials"
	auditErrAccountLocked      AuditErrorCode = "account_locked"
	auditErrAccountDisabled    AuditErrorCode = "account_disabled"
	auditErrInvalidToken       AuditErrorCode = "invalid_token"
	auditErrExpiredToken       AuditErrorCode = "expired_token"
	auditErrUnavailable        AuditErrorCode = "backend_unavailable"
	auditErrInternal           AuditErrorCode = "internal_error"
)

// Audit sinks re-exported for callers configuring [Builder.WithAuditSink].
type (
	NoOpAuditSink       = audit.NoOpSink
	ChannelAuditSink    = audit.ChannelSink
	JSONWriterAuditSink = audit.JSONWriterSink
	SlogAuditSink       = audit.SlogSink
	MultiAuditSink      = audit.MultiSink
)

var (
	NewChannelAuditSink    = audit.NewChannelSink
	NewJSONWriterAuditSink = audit.NewJSONWriterSink
	NewSlogAuditSink       = audit.NewSlogSink
)

func (e *Engine) emitAudit(
	ctx context.Context,
	eventType string,
	success bool,
	principalID string,
	email string,
	err error,
	detail string,
) {
	if e == nil || e.audit == nil {
		return
	}

	event := audit.NewEvent(eventType, e.now())
	event.PrincipalID = principalID
	event.Email = email
	event.IP = clientIPFromContext(ctx)
	event.UserAgent = userAgentFromContext(ctx)
	event.Success = success
	event.Detail = detail
	if code := auditErrorCode(err); code != "" {
		event.Error = string(code)
	}

	e.audit.Emit(ctx, event)
}

func auditErrorCode(err error) AuditErrorCode {
	if err == nil {
		return ""
	}

	switch {
	case errors.Is(err, ErrInvalidCredentials):
		return auditErrInvalidCredentials
	case errors.Is(err, ErrAccountLocked):
		return auditErrAccountLocked
	case errors.Is(err, ErrAccountDisabled):
		return auditErrAccountDisabled
	case errors.Is(err, ErrExpiredRefreshToken),
		errors.Is(err, ErrTokenExpired):
		return auditErrExpiredToken
	case errors.Is(err, ErrInvalidRefreshToken),
		errors.Is(err, ErrTokenBadSignature),
		errors.Is(err, ErrTokenMalformed),
		errors.Is(err, ErrTokenRevoked):
		return auditErrInvalidToken
	case errors.Is(err, ErrCredentialStoreUnavailable),
		errors.Is(err, ErrRefreshStoreUnavailable),
		errors.Is(err, ErrRevocationUnavailable):
		return auditErrUnavailable
	default:
		return auditErrInternal
	}
}
