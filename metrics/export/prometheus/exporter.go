package prometheus

import (
	"net/http"

	"github.com/MrEthical07/authcore"
	"github.com/MrEthical07/authcore/metrics/export/internaldefs"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Exporter is a prometheus.Collector over engine snapshots.
type Exporter struct {
	source     internaldefs.Source
	counters   []*prometheus.Desc
	histograms []*prometheus.Desc
	bounds     []float64
}

var _ prometheus.Collector = (*Exporter)(nil)

// NewExporter creates a collector that reads from engine.
func NewExporter(engine *authcore.Engine) *Exporter {
	return NewExporterFromSource(engine)
}

// NewExporterFromSource creates a collector over any snapshot source.
func NewExporterFromSource(source internaldefs.Source) *Exporter {
	e := &Exporter{
		source:     source,
		counters:   make([]*prometheus.Desc, 0, len(internaldefs.CounterDefs)),
		histograms: make([]*prometheus.Desc, 0, len(internaldefs.HistogramDefs)),
		bounds:     internaldefs.UpperBounds(),
	}
	for _, def := range internaldefs.CounterDefs {
		e.counters = append(e.counters, prometheus.NewDesc(def.Name, def.Help, nil, nil))
	}
	for _, def := range internaldefs.HistogramDefs {
		e.histograms = append(e.histograms, prometheus.NewDesc(def.Name, def.Help, nil, nil))
	}
	return e
}

func (e *Exporter) Describe(ch chan<- *prometheus.Desc) {
	for _, d := range e.counters {
		ch <- d
	}
	for _, d := range e.histograms {
		ch <- d
	}
}

// Collect emits nothing when the engine has metrics disabled.
func (e *Exporter) Collect(ch chan<- prometheus.Metric) {
	if e == nil || e.source == nil {
		return
	}

	reading := internaldefs.Read(e.source)
	if reading.Empty() {
		return
	}

	for i, d := range e.counters {
		ch <- prometheus.MustNewConstMetric(d, prometheus.CounterValue, float64(reading.Counters[i]))
	}
	for i, d := range e.histograms {
		h := reading.Histograms[i]
		if !h.Present {
			continue
		}
		buckets := make(map[float64]uint64, len(e.bounds))
		for j, bound := range e.bounds {
			buckets[bound] = h.Cumulative[j]
		}
		// The core keeps no latency sum.
		ch <- prometheus.MustNewConstHistogram(d, h.Count(), 0, buckets)
	}
}

// Handler serves the collector from a private registry.
func (e *Exporter) Handler() http.Handler {
	reg := prometheus.NewRegistry()
	reg.MustRegister(e)
	return promhttp.HandlerFor(reg, promhttp.HandlerOpts{})
}
