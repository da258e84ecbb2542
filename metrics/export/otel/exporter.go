package otel

import (
	"context"
	"errors"
	"fmt"

	goFleet "github.com/MrEthical07/goFleet"
	"github.com/MrEthical07/goFleet/metrics/export/internaldefs"
	"go.opentelemetry.io/otel/metric"
)

var (
	ErrNilMeter  = errors.New("nil meter")
	ErrNilSource = errors.New("nil metrics source")
)

// MetricsSource is what the exporter observes. *goFleet.Engine implements it.
type MetricsSource interface {
	MetricsSnapshot() goFleet.MetricsSnapshot
	AuditDropped() uint64
}

// Gauge is a point-in-time value read on every collection, such as the number
// of live real-time connections. Fn must be safe for concurrent use.
type Gauge struct {
	Name string
	Help string
	Fn   func() float64
}

type counterInstrument struct {
	id  goFleet.MetricID
	ins metric.Int64ObservableCounter
}

type histogramInstruments struct {
	id      goFleet.MetricID
	buckets [8]metric.Int64ObservableGauge
	count   metric.Int64ObservableGauge
}

type gaugeInstrument struct {
	fn  func() float64
	ins metric.Float64ObservableGauge
}

// OTelExporter publishes fleet counters, the authenticate latency histogram
// and any extra gauges as observable instruments on a caller-owned Meter.
type OTelExporter struct {
	source       MetricsSource
	registration metric.Registration
	counters     []counterInstrument
	histograms   []histogramInstruments
	gauges       []gaugeInstrument
	auditDropped metric.Int64ObservableCounter
	observables  []metric.Observable
}

// NewOTelExporter observes engine.
func NewOTelExporter(meter metric.Meter, engine *goFleet.Engine, gauges ...Gauge) (*OTelExporter, error) {
	return NewOTelExporterFromSource(meter, engine, gauges...)
}

// NewOTelExporterFromSource creates every instrument on meter and registers
// one callback that reads a single snapshot per collection, so all counters in
// a collection agree with each other.
func NewOTelExporterFromSource(meter metric.Meter, source MetricsSource, gauges ...Gauge) (*OTelExporter, error) {
	if meter == nil {
		return nil, ErrNilMeter
	}
	if source == nil {
		return nil, ErrNilSource
	}

	e := &OTelExporter{source: source}
	if err := e.addCounters(meter); err != nil {
		return nil, err
	}
	if err := e.addHistograms(meter); err != nil {
		return nil, err
	}
	if err := e.addGauges(meter, gauges); err != nil {
		return nil, err
	}

	dropped, err := meter.Int64ObservableCounter(
		"gofleet_audit_dropped_total",
		metric.WithDescription("Audit events dropped because the dispatcher buffer was full."),
	)
	if err != nil {
		return nil, fmt.Errorf("create audit dropped counter: %w", err)
	}
	e.auditDropped = dropped
	e.observables = append(e.observables, dropped)

	reg, err := meter.RegisterCallback(e.observe, e.observables...)
	if err != nil {
		return nil, fmt.Errorf("register callback: %w", err)
	}
	e.registration = reg
	return e, nil
}

func (e *OTelExporter) addCounters(meter metric.Meter) error {
	for _, def := range internaldefs.CounterDefs {
		ins, err := meter.Int64ObservableCounter(def.Name, metric.WithDescription(def.Help))
		if err != nil {
			return fmt.Errorf("create observable counter %s: %w", def.Name, err)
		}
		e.counters = append(e.counters, counterInstrument{id: def.ID, ins: ins})
		e.observables = append(e.observables, ins)
	}
	return nil
}

// Histograms are flattened to one cumulative gauge per bucket plus a count,
// mirroring the Prometheus "le" layout.
func (e *OTelExporter) addHistograms(meter metric.Meter) error {
	for _, def := range internaldefs.HistogramDefs {
		h := histogramInstruments{id: def.ID}
		for i, suffix := range internaldefs.HistogramBoundSuffix {
			name := def.Name + "_bucket_le_" + suffix
			ins, err := meter.Int64ObservableGauge(name, metric.WithDescription("Samples at or below the bucket bound."))
			if err != nil {
				return fmt.Errorf("create histogram bucket gauge %s: %w", name, err)
			}
			h.buckets[i] = ins
			e.observables = append(e.observables, ins)
		}
		count, err := meter.Int64ObservableGauge(def.Name+"_count", metric.WithDescription("Total samples."))
		if err != nil {
			return fmt.Errorf("create histogram count gauge %s_count: %w", def.Name, err)
		}
		h.count = count
		e.observables = append(e.observables, count)
		e.histograms = append(e.histograms, h)
	}
	return nil
}

func (e *OTelExporter) addGauges(meter metric.Meter, gauges []Gauge) error {
	for _, g := range gauges {
		if g.Fn == nil {
			return fmt.Errorf("gauge %s: nil Fn", g.Name)
		}
		ins, err := meter.Float64ObservableGauge(g.Name, metric.WithDescription(g.Help))
		if err != nil {
			return fmt.Errorf("create gauge %s: %w", g.Name, err)
		}
		e.gauges = append(e.gauges, gaugeInstrument{fn: g.Fn, ins: ins})
		e.observables = append(e.observables, ins)
	}
	return nil
}

func (e *OTelExporter) observe(_ context.Context, o metric.Observer) error {
	snap := e.source.MetricsSnapshot()
	for _, c := range e.counters {
		o.ObserveInt64(c.ins, int64(snap.Counters[c.id]))
	}
	for _, h := range e.histograms {
		cumulative := internaldefs.CumulativeBuckets(internaldefs.NormalizeBuckets(snap.Histograms[h.id]))
		for i, v := range cumulative {
			o.ObserveInt64(h.buckets[i], int64(v))
		}
		o.ObserveInt64(h.count, int64(cumulative[len(cumulative)-1]))
	}
	for _, g := range e.gauges {
		o.ObserveFloat64(g.ins, g.fn())
	}
	o.ObserveInt64(e.auditDropped, int64(e.source.AuditDropped()))
	return nil
}

// Close unregisters the collection callback.
func (e *OTelExporter) Close() error {
	if e == nil || e.registration == nil {
		return nil
	}
	return e.registration.Unregister()
}
