package authcore

import "time"

// SecurityReport summarizes the security-relevant configuration of a built
// engine for startup logs and health endpoints.
type SecurityReport struct {
	SigningAlgorithm      string
	AccessTTL             time.Duration
	RefreshTTL            time.Duration
	RefreshRotation       bool
	LockoutThreshold      int
	LockoutDuration       time.Duration
	RevocationEnabled     bool
	RevocationPolicy      string
	RevocationUnavailable uint64
	RevocationWrites      uint64
	Argon2                PasswordConfigReport
	AuditEnabled          bool
	MetricsEnabled        bool
}

type PasswordConfigReport struct {
	Memory      uint32
	Time        uint32
	Parallelism uint8
	SaltLength  uint32
	KeyLength   uint32
}

func (e *Engine) SecurityReport() SecurityReport {
	if e == nil {
		return SecurityReport{}
	}

	report := SecurityReport{
		SigningAlgorithm:  e.config.JWT.SigningMethod,
		AccessTTL:         e.config.JWT.AccessTTL,
		RefreshTTL:        e.config.Refresh.TTL,
		RefreshRotation:   false,
		LockoutThreshold:  e.config.Lockout.Threshold,
		LockoutDuration:   e.config.Lockout.Duration,
		RevocationEnabled: e.config.Revocation.Enabled,
		RevocationPolicy:  e.config.Revocation.OnUnavailable.String(),
		Argon2: PasswordConfigReport{
			Memory:      e.config.Password.Memory,
			Time:        e.config.Password.Time,
			Parallelism: e.config.Password.Parallelism,
			SaltLength:  e.config.Password.SaltLength,
			KeyLength:   e.config.Password.KeyLength,
		},
		AuditEnabled:   e.config.Audit.Enabled,
		MetricsEnabled: e.config.Metrics.Enabled,
	}
	if e.revocation != nil {
		report.RevocationUnavailable = e.revocation.Unavailable()
		report.RevocationWrites = e.revocation.Writes()
	}
	return report
}
