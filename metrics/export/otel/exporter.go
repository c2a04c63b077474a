package otel

import (
	"context"
	"errors"
	"fmt"

	"github.com/MrEthical07/authcore"
	"github.com/MrEthical07/authcore/metrics/export/internaldefs"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

var (
	ErrNilMeter  = errors.New("nil meter")
	ErrNilSource = errors.New("nil metrics source")
)

// histogram is exported as two gauges: cumulative bucket counts keyed by an
// "le" attribute, and the sample count.
type histogram struct {
	buckets metric.Int64ObservableGauge
	count   metric.Int64ObservableGauge
}

// Exporter publishes engine counters as OTel observable instruments.
type Exporter struct {
	source       internaldefs.Source
	registration metric.Registration
	counters     []metric.Int64ObservableCounter
	histograms   []histogram
	le           []metric.ObserveOption
}

// NewExporter registers instruments on meter that read from engine.
func NewExporter(meter metric.Meter, engine *authcore.Engine) (*Exporter, error) {
	return NewExporterFromSource(meter, engine)
}

func NewExporterFromSource(meter metric.Meter, source internaldefs.Source) (*Exporter, error) {
	if meter == nil {
		return nil, ErrNilMeter
	}
	if source == nil {
		return nil, ErrNilSource
	}

	e := &Exporter{source: source}
	for _, bound := range internaldefs.HistogramBounds() {
		e.le = append(e.le, metric.WithAttributeSet(attribute.NewSet(attribute.String("le", bound))))
	}

	var observables []metric.Observable
	for _, def := range internaldefs.CounterDefs {
		c, err := meter.Int64ObservableCounter(def.Name, metric.WithDescription(def.Help))
		if err != nil {
			return nil, fmt.Errorf("counter %s: %w", def.Name, err)
		}
		e.counters = append(e.counters, c)
		observables = append(observables, c)
	}
	for _, def := range internaldefs.HistogramDefs {
		buckets, err := meter.Int64ObservableGauge(def.Name+"_bucket", metric.WithDescription(def.Help))
		if err != nil {
			return nil, fmt.Errorf("histogram %s: %w", def.Name, err)
		}
		count, err := meter.Int64ObservableGauge(def.Name+"_count", metric.WithDescription(def.Help))
		if err != nil {
			return nil, fmt.Errorf("histogram %s: %w", def.Name, err)
		}
		e.histograms = append(e.histograms, histogram{buckets: buckets, count: count})
		observables = append(observables, buckets, count)
	}

	reg, err := meter.RegisterCallback(e.observe, observables...)
	if err != nil {
		return nil, fmt.Errorf("register callback: %w", err)
	}
	e.registration = reg
	return e, nil
}

// observe reports nothing while the engine has metrics disabled, matching
// the Prometheus collector.
func (e *Exporter) observe(_ context.Context, o metric.Observer) error {
	reading := internaldefs.Read(e.source)
	if reading.Empty() {
		return nil
	}
	for i, c := range e.counters {
		o.ObserveInt64(c, int64(reading.Counters[i]))
	}
	for i, h := range e.histograms {
		r := reading.Histograms[i]
		if !r.Present {
			continue
		}
		for j, n := range r.Cumulative {
			o.ObserveInt64(h.buckets, int64(n), e.le[j])
		}
		o.ObserveInt64(h.count, int64(r.Count()))
	}
	return nil
}

// Close unregisters the collection callback.
func (e *Exporter) Close() error {
	if e == nil || e.registration == nil {
		return nil
	}
	return e.registration.Unregister()
}
