package authcore

import "github.com/MrEthical07/authcore/internal/metrics"

// MetricID names one engine counter or histogram.
type MetricID = metrics.ID

// MetricsSnapshot is a point-in-time copy of every counter and histogram.
// Histogram slices hold non-cumulative bucket counts; bucket upper bounds are
// [MetricBucketBounds], the last bucket being +Inf.
type MetricsSnapshot = metrics.Snapshot

const (
	MetricLoginSuccess          = metrics.LoginSuccess
	MetricLoginFailure          = metrics.LoginFailure
	MetricLoginUnknownPrincipal = metrics.LoginUnknownPrincipal
	MetricLoginLocked           = metrics.LoginLocked
	MetricLoginDisabled         = metrics.LoginDisabled
	MetricLockoutTriggered      = metrics.LockoutTriggered
	MetricLockoutCleared        = metrics.LockoutCleared
	MetricRefreshSuccess        = metrics.RefreshSuccess
	MetricRefreshFailure        = metrics.RefreshFailure
	MetricRefreshExpired        = metrics.RefreshExpired
	MetricLogout                = metrics.Logout
	MetricLogoutAll             = metrics.LogoutAll
	MetricRevocationWrite       = metrics.RevocationWrite
	MetricRevocationHit         = metrics.RevocationHit
	MetricRevocationUnavailable = metrics.RevocationUnavailable
	MetricTokenVerifyFailure    = metrics.TokenVerifyFailure
	MetricAuthorizeDenied       = metrics.AuthorizeDenied
	MetricSweepDeleted          = metrics.SweepDeleted
	MetricValidateLatency       = metrics.ValidateLatency
)

// MetricBucketBounds are the upper bounds of the latency histogram buckets.
var MetricBucketBounds = metrics.BucketBounds

func (e *Engine) metricInc(id MetricID) {
	if e == nil || e.metrics == nil {
		return
	}
	e.metrics.Inc(id)
}
