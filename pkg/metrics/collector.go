// Package metrics exposes prometheus instrumentation for the detection
// pipeline, covering the error taxonomy (decode inconsistencies, stale
// writes, detector timeouts and faults, intake overflow) and the
// opportunity flow (candidates, emitted, suppressed, invalidated).
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Collector owns every prometheus metric the engine records.
type Collector struct {
	eventsTotal   *prometheus.CounterVec
	decodeErrors  prometheus.Counter
	staleWrites   prometheus.Counter
	reorgsTotal   prometheus.Counter
	pendingEvents prometheus.Gauge

	detectorTimeouts *prometheus.CounterVec
	detectorFaults   *prometheus.CounterVec
	detectionLatency *prometheus.HistogramVec

	candidates    *prometheus.CounterVec
	emitted       *prometheus.CounterVec
	suppressed    prometheus.Counter
	filtered      prometheus.Counter
	overflowDrops prometheus.Counter
	invalidated   prometheus.Counter
	liveOpps      prometheus.Gauge
}

// NewCollector registers all engine metrics with the given registerer.
// A nil registerer uses the default global registry.
func NewCollector(reg prometheus.Registerer) *Collector {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	factory := promauto.With(reg)

	return &Collector{
		eventsTotal: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "mevscope_events_total",
			Help: "Inbound events by kind",
		}, []string{"kind"}),
		decodeErrors: factory.NewCounter(prometheus.CounterOpts{
			Name: "mevscope_decode_errors_total",
			Help: "Events dropped as decode inconsistencies",
		}),
		staleWrites: factory.NewCounter(prometheus.CounterOpts{
			Name: "mevscope_stale_writes_total",
			Help: "State updates rejected as non-newer",
		}),
		reorgsTotal: factory.NewCounter(prometheus.CounterOpts{
			Name: "mevscope_reorgs_total",
			Help: "Reorg notices processed",
		}),
		pendingEvents: factory.NewGauge(prometheus.GaugeOpts{
			Name: "mevscope_pending_transactions",
			Help: "Pending transactions currently tracked",
		}),
		detectorTimeouts: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "mevscope_detector_timeouts_total",
			Help: "Detector invocations abandoned at the per-event deadline",
		}, []string{"detector"}),
		detectorFaults: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "mevscope_detector_faults_total",
			Help: "Detector invocations that returned an internal error",
		}, []string{"detector"}),
		detectionLatency: factory.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "mevscope_detection_latency_seconds",
			Help:    "Per-invocation detector latency",
			Buckets: []float64{.001, .005, .01, .025, .05, .1, .25, .5, 1},
		}, []string{"detector"}),
		candidates: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "mevscope_candidates_total",
			Help: "Raw candidates produced by detectors, by type",
		}, []string{"type"}),
		emitted: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "mevscope_opportunities_emitted_total",
			Help: "Opportunities emitted to the sink, by type",
		}, []string{"type"}),
		suppressed: factory.NewCounter(prometheus.CounterOpts{
			Name: "mevscope_opportunities_suppressed_total",
			Help: "Candidates suppressed by the dedup window",
		}),
		filtered: factory.NewCounter(prometheus.CounterOpts{
			Name: "mevscope_opportunities_filtered_total",
			Help: "Candidates rejected by global filters",
		}),
		overflowDrops: factory.NewCounter(prometheus.CounterOpts{
			Name: "mevscope_intake_overflow_drops_total",
			Help: "Candidates dropped because the scorer intake was full",
		}),
		invalidated: factory.NewCounter(prometheus.CounterOpts{
			Name: "mevscope_opportunities_invalidated_total",
			Help: "Emitted opportunities invalidated by reorgs",
		}),
		liveOpps: factory.NewGauge(prometheus.GaugeOpts{
			Name: "mevscope_opportunities_live",
			Help: "Opportunities currently in the ranked window",
		}),
	}
}

func (c *Collector) IncEvent(kind string)         { c.eventsTotal.WithLabelValues(kind).Inc() }
func (c *Collector) IncDecodeError()              { c.decodeErrors.Inc() }
func (c *Collector) IncStaleWrite()               { c.staleWrites.Inc() }
func (c *Collector) IncReorg()                    { c.reorgsTotal.Inc() }
func (c *Collector) SetPendingTransactions(n int) { c.pendingEvents.Set(float64(n)) }

func (c *Collector) IncDetectorTimeout(name string) { c.detectorTimeouts.WithLabelValues(name).Inc() }
func (c *Collector) IncDetectorFault(name string)   { c.detectorFaults.WithLabelValues(name).Inc() }

func (c *Collector) ObserveDetection(name string, d time.Duration) {
	c.detectionLatency.WithLabelValues(name).Observe(d.Seconds())
}

func (c *Collector) IncCandidate(typ string) { c.candidates.WithLabelValues(typ).Inc() }
func (c *Collector) IncEmitted(typ string)   { c.emitted.WithLabelValues(typ).Inc() }
func (c *Collector) IncSuppressed()          { c.suppressed.Inc() }
func (c *Collector) IncFiltered()            { c.filtered.Inc() }
func (c *Collector) IncOverflowDrop()        { c.overflowDrops.Inc() }
func (c *Collector) IncInvalidated(n int) {
	for i := 0; i < n; i++ {
		c.invalidated.Inc()
	}
}
func (c *Collector) SetLiveOpportunities(n int) { c.liveOpps.Set(float64(n)) }
