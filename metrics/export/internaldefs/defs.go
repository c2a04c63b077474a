package internaldefs

import (
	"strconv"

	"github.com/MrEthical07/authcore"
)

// BucketCount is the number of latency buckets, the last being +Inf.
const BucketCount = len(authcore.MetricBucketBounds) + 1

// CounterDef names one engine counter for export. Dispatcher counters are
// read from the audit dispatcher instead of the snapshot, and ID is unused.
type CounterDef struct {
	ID         authcore.MetricID
	Name       string
	Help       string
	Dispatcher bool
}

// HistogramDef names one engine histogram for export.
type HistogramDef struct {
	ID   authcore.MetricID
	Name string
	Help string
}

var CounterDefs = []CounterDef{
	{ID: authcore.MetricLoginSuccess, Name: "authcore_login_success_total", Help: "Successful sign-ins."},
	{ID: authcore.MetricLoginFailure, Name: "authcore_login_failure_total", Help: "Failed sign-ins of any kind."},
	{ID: authcore.MetricLoginUnknownPrincipal, Name: "authcore_login_unknown_principal_total", Help: "Sign-ins for emails with no principal."},
	{ID: authcore.MetricLoginLocked, Name: "authcore_login_locked_total", Help: "Sign-ins rejected because the principal was locked."},
	{ID: authcore.MetricLoginDisabled, Name: "authcore_login_disabled_total", Help: "Sign-ins rejected because the principal was disabled."},
	{ID: authcore.MetricLockoutTriggered, Name: "authcore_lockout_triggered_total", Help: "Failures that locked a principal."},
	{ID: authcore.MetricLockoutCleared, Name: "authcore_lockout_cleared_total", Help: "Expired locks cleared on sign-in."},
	{ID: authcore.MetricRefreshSuccess, Name: "authcore_refresh_success_total", Help: "Access tokens minted from a refresh token."},
	{ID: authcore.MetricRefreshFailure, Name: "authcore_refresh_failure_total", Help: "Rejected refresh attempts."},
	{ID: authcore.MetricRefreshExpired, Name: "authcore_refresh_expired_total", Help: "Refresh attempts with an expired token."},
	{ID: authcore.MetricLogout, Name: "authcore_logout_total", Help: "Refresh tokens deleted by logout."},
	{ID: authcore.MetricLogoutAll, Name: "authcore_logout_all_total", Help: "Force-logout-all operations."},
	{ID: authcore.MetricRevocationWrite, Name: "authcore_revocation_write_total", Help: "Access tokens written to the revocation list."},
	{ID: authcore.MetricRevocationHit, Name: "authcore_revocation_hit_total", Help: "Requests rejected with a revoked token."},
	{ID: authcore.MetricRevocationUnavailable, Name: "authcore_revocation_unavailable_total", Help: "Revocation calls that could not reach Redis."},
	{ID: authcore.MetricTokenVerifyFailure, Name: "authcore_token_verify_failure_total", Help: "Access tokens rejected by Validate."},
	{ID: authcore.MetricAuthorizeDenied, Name: "authcore_authorize_denied_total", Help: "Authorization checks that denied access."},
	{ID: authcore.MetricSweepDeleted, Name: "authcore_sweep_deleted_total", Help: "Expired refresh tokens removed by the sweeper."},
	{Name: "authcore_audit_dropped_total", Help: "Audit events dropped under dispatcher backpressure.", Dispatcher: true},
}

var HistogramDefs = []HistogramDef{
	{ID: authcore.MetricValidateLatency, Name: "authcore_validate_latency_seconds", Help: "Validate latency histogram."},
}

// Source is what an exporter reads on each scrape. *authcore.Engine
// satisfies it.
type Source interface {
	MetricsSnapshot() authcore.MetricsSnapshot
	AuditDropped() uint64
}

// Reading is one scrape of a Source laid out against the def tables.
// Counters is indexed like CounterDefs and Histograms like HistogramDefs.
// Histograms holds cumulative buckets, so the last entry is the sample
// count. A histogram the engine never observed is reported as absent.
type Reading struct {
	Counters   []uint64
	Histograms []HistogramReading

	empty bool
}

// HistogramReading is one histogram's cumulative buckets.
type HistogramReading struct {
	Present    bool
	Cumulative [BucketCount]uint64
}

// Count is the total number of samples.
func (h HistogramReading) Count() uint64 { return h.Cumulative[BucketCount-1] }

// Empty reports a source with metrics disabled and nothing dropped.
func (r Reading) Empty() bool { return r.empty }

// Read takes one snapshot of src.
func Read(src Source) Reading {
	snapshot := src.MetricsSnapshot()
	dropped := src.AuditDropped()
	out := Reading{
		Counters:   make([]uint64, len(CounterDefs)),
		Histograms: make([]HistogramReading, len(HistogramDefs)),
		empty:      len(snapshot.Counters) == 0 && len(snapshot.Histograms) == 0 && dropped == 0,
	}
	for i, def := range CounterDefs {
		if def.Dispatcher {
			out.Counters[i] = dropped
			continue
		}
		out.Counters[i] = snapshot.Counters[def.ID]
	}
	for i, def := range HistogramDefs {
		raw, ok := snapshot.Histograms[def.ID]
		if !ok {
			continue
		}
		out.Histograms[i] = HistogramReading{Present: true, Cumulative: CumulativeBuckets(NormalizeBuckets(raw))}
	}
	return out
}

// UpperBounds returns the finite bucket bounds in seconds.
func UpperBounds() []float64 {
	out := make([]float64, 0, len(authcore.MetricBucketBounds))
	for _, b := range authcore.MetricBucketBounds {
		out = append(out, b.Seconds())
	}
	return out
}

// HistogramBounds returns every bucket's "le" label, ending in "+Inf".
func HistogramBounds() []string {
	out := make([]string, 0, BucketCount)
	for _, b := range UpperBounds() {
		out = append(out, strconv.FormatFloat(b, 'f', -1, 64))
	}
	return append(out, "+Inf")
}

// NormalizeBuckets pads or truncates raw to BucketCount entries.
func NormalizeBuckets(raw []uint64) [BucketCount]uint64 {
	var out [BucketCount]uint64
	for i := 0; i < len(out) && i < len(raw); i++ {
		out[i] = raw[i]
	}
	return out
}

// CumulativeBuckets turns per-bucket counts into running totals.
func CumulativeBuckets(raw [BucketCount]uint64) [BucketCount]uint64 {
	var out [BucketCount]uint64
	var running uint64
	for i := 0; i < len(raw); i++ {
		running += raw[i]
		out[i] = running
	}
	return out
}
