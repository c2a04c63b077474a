package internaldefs

import (
	"testing"

	"github.com/MrEthical07/authcore"
)

type source struct {
	snapshot authcore.MetricsSnapshot
	dropped  uint64
}

func (s source) MetricsSnapshot() authcore.MetricsSnapshot { return s.snapshot }
func (s source) AuditDropped() uint64                      { return s.dropped }

func counterIndex(t *testing.T, name string) int {
	t.Helper()
	for i, def := range CounterDefs {
		if def.Name == name {
			return i
		}
	}
	t.Fatalf("no counter named %s", name)
	return -1
}

func TestReadTakesDroppedFromDispatcher(t *testing.T) {
	r := Read(source{dropped: 5})

	if r.Empty() {
		t.Fatal("drops alone should make the reading non-empty")
	}
	if got := r.Counters[counterIndex(t, "authcore_audit_dropped_total")]; got != 5 {
		t.Fatalf("audit dropped = %d, want 5", got)
	}
	if got := r.Counters[counterIndex(t, "authcore_login_success_total")]; got != 0 {
		t.Fatalf("login success = %d, want 0", got)
	}
}

func TestReadCumulativeHistogram(t *testing.T) {
	r := Read(source{snapshot: authcore.MetricsSnapshot{
		Counters: map[authcore.MetricID]uint64{authcore.MetricLoginSuccess: 2},
		Histograms: map[authcore.MetricID][]uint64{
			authcore.MetricValidateLatency: {2, 0, 1},
		},
	}})

	if r.Empty() {
		t.Fatal("expected a non-empty reading")
	}
	h := r.Histograms[0]
	if !h.Present {
		t.Fatal("validate latency should be present")
	}
	if h.Cumulative[0] != 2 || h.Cumulative[2] != 3 || h.Count() != 3 {
		t.Fatalf("unexpected cumulative buckets %v", h.Cumulative)
	}
}

func TestReadEmptyWhenDisabled(t *testing.T) {
	r := Read(source{})
	if !r.Empty() {
		t.Fatal("expected an empty reading")
	}
	if r.Histograms[0].Present {
		t.Fatal("histogram should be absent")
	}
}

func TestDispatcherCountersAreDefinedOnce(t *testing.T) {
	n := 0
	for _, def := range CounterDefs {
		if def.Dispatcher {
			n++
		}
	}
	if n != 1 {
		t.Fatalf("dispatcher counters = %d, want 1", n)
	}
}
