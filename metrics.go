package livexpr

import (
	"context"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"

	"github.com/specialistvlad/livexpr/expr"
)

const meterName = "github.com/specialistvlad/livexpr"

// metrics holds the node counters of one Observer. Instruments that fail to
// register are left nil and skipped.
type metrics struct {
	created     metric.Int64Counter
	evicted     metric.Int64Counter
	evaluations metric.Int64Counter
	faults      metric.Int64Counter
	disposals   metric.Int64Counter
	kinds       map[expr.Kind]metric.MeasurementOption
}

func newMetrics(mp metric.MeterProvider) *metrics {
	if mp == nil {
		mp = otel.GetMeterProvider()
	}
	meter := mp.Meter(meterName)
	m := &metrics{kinds: make(map[expr.Kind]metric.MeasurementOption, len(expr.Kinds))}
	for _, k := range expr.Kinds {
		m.kinds[k] = metric.WithAttributes(attribute.String("kind", k.String()))
	}

	m.created, _ = meter.Int64Counter(
		"livexpr_nodes_created_total",
		metric.WithDescription("Total number of evaluation nodes created"),
	)
	m.evicted, _ = meter.Int64Counter(
		"livexpr_nodes_evicted_total",
		metric.WithDescription("Total number of evaluation nodes evicted"),
	)
	m.evaluations, _ = meter.Int64Counter(
		"livexpr_evaluations_total",
		metric.WithDescription("Total number of node evaluations"),
	)
	m.faults, _ = meter.Int64Counter(
		"livexpr_faults_total",
		metric.WithDescription("Total number of node evaluations that produced a fault"),
	)
	m.disposals, _ = meter.Int64Counter(
		"livexpr_disposals_total",
		metric.WithDescription("Total number of produced values released"),
	)
	return m
}

func (m *metrics) add(c metric.Int64Counter, k expr.Kind) {
	if c == nil {
		return
	}
	c.Add(context.Background(), 1, m.kinds[k])
}

func (m *metrics) recordCreated(k expr.Kind) { m.add(m.created, k) }

func (m *metrics) recordEvicted(k expr.Kind) { m.add(m.evicted, k) }

func (m *metrics) recordDisposal(k expr.Kind) { m.add(m.disposals, k) }

func (m *metrics) recordEvaluation(k expr.Kind, failed bool) {
	m.add(m.evaluations, k)
	if failed {
		m.add(m.faults, k)
	}
}
