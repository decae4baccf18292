// Package metrics exports the activity of a simulation as Prometheus
// metrics. A Collector is hooked to the FTL, to the flash array, and, as a
// tracer, to the workload driver.
package metrics

import (
	"sync"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/sarchlab/ftlsim/ftl"
	"github.com/sarchlab/ftlsim/nand"
	"github.com/sarchlab/ftlsim/sim"
	"github.com/sarchlab/ftlsim/tracing"
	"github.com/sarchlab/ftlsim/workload"
)

const namespace = "ftlsim"

// Label names.
const (
	LabelKind   = "kind"
	LabelStatus = "status"
	LabelOp     = "op"
)

// Status label values.
const (
	StatusOK     = "ok"
	StatusFailed = "failed"
)

// RequestTaskKind is the task kind whose latency is observed, the kind of
// the requests traced by the workload driver.
const RequestTaskKind = workload.TaskKind

// StatsSource provides the counters of an FTL.
type StatsSource interface {
	Stats() ftl.Stats
}

// Collector turns hook calls into Prometheus metrics.
type Collector struct {
	timeTeller sim.TimeTeller

	requests       *prometheus.CounterVec
	requestSectors *prometheus.CounterVec
	latency        *prometheus.HistogramVec

	gcVictims   prometheus.Counter
	gcCopied    prometheus.Counter
	gcReclaimed prometheus.Counter

	nandOps     *prometheus.CounterVec
	nandLatency *prometheus.HistogramVec

	registry prometheus.Registerer

	lock     sync.Mutex
	inflight map[string]tracing.Task
}

// NewCollector creates a Collector. The time teller stamps the start and end
// of traced requests. If registry is nil, the metrics are created but not
// registered.
func NewCollector(
	registry prometheus.Registerer,
	timeTeller sim.TimeTeller,
) *Collector {
	c := &Collector{
		timeTeller: timeTeller,
		registry:   registry,
		inflight:   make(map[string]tracing.Task),

		requests: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Subsystem: "ftl",
				Name:      "requests_total",
				Help:      "Host requests handled by the FTL",
			},
			[]string{LabelKind, LabelStatus},
		),

		requestSectors: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Subsystem: "ftl",
				Name:      "request_sectors_total",
				Help:      "Sectors carried by successful host requests",
			},
			[]string{LabelKind},
		),

		latency: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Subsystem: "host",
				Name:      "request_latency_seconds",
				Help:      "Simulated time from issuing a request to its completion",
				Buckets:   prometheus.ExponentialBuckets(10e-6, 2, 16),
			},
			[]string{LabelKind},
		),

		gcVictims: prometheus.NewCounter(
			prometheus.CounterOpts{
				Namespace: namespace,
				Subsystem: "gc",
				Name:      "victims_total",
				Help:      "Blocks collected",
			},
		),

		gcCopied: prometheus.NewCounter(
			prometheus.CounterOpts{
				Namespace: namespace,
				Subsystem: "gc",
				Name:      "copied_pages_total",
				Help:      "Pages copied while collecting",
			},
		),

		gcReclaimed: prometheus.NewCounter(
			prometheus.CounterOpts{
				Namespace: namespace,
				Subsystem: "gc",
				Name:      "reclaimed_pages_total",
				Help:      "Pages freed by collection, net of the copies",
			},
		),

		nandOps: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Subsystem: "nand",
				Name:      "operations_total",
				Help:      "Flash commands executed",
			},
			[]string{LabelOp},
		),

		nandLatency: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Subsystem: "nand",
				Name:      "operation_latency_seconds",
				Help:      "Simulated time a flash command waits and executes",
				Buckets:   prometheus.ExponentialBuckets(10e-6, 2, 16),
			},
			[]string{LabelOp},
		),
	}

	if registry != nil {
		registry.MustRegister(
			c.requests,
			c.requestSectors,
			c.latency,
			c.gcVictims,
			c.gcCopied,
			c.gcReclaimed,
			c.nandOps,
			c.nandLatency,
		)
	}

	return c
}

// WatchFTL exports the gauges of an FTL: the empty pool size and the write
// amplification. It does nothing when the Collector has no registry.
func (c *Collector) WatchFTL(src StatsSource) {
	if c == nil || c.registry == nil {
		return
	}

	c.registry.MustRegister(
		prometheus.NewGaugeFunc(
			prometheus.GaugeOpts{
				Namespace: namespace,
				Subsystem: "ftl",
				Name:      "empty_blocks",
				Help:      "Blocks in the empty pool",
			},
			func() float64 { return float64(src.Stats().EmptyBlocks) },
		),
		prometheus.NewGaugeFunc(
			prometheus.GaugeOpts{
				Namespace: namespace,
				Subsystem: "ftl",
				Name:      "write_amplification",
				Help:      "Pages programmed per page written by the host",
			},
			func() float64 { return src.Stats().WriteAmplification() },
		),
	)
}

// Func handles the hooks of the FTL and of the flash array.
func (c *Collector) Func(ctx sim.HookCtx) {
	if c == nil {
		return
	}

	switch ctx.Pos {
	case ftl.HookPosRequestDone:
		c.observeRequest(ctx.Item.(*ftl.Request))
	case ftl.HookPosCollect:
		c.observeCollect(ctx.Item.(ftl.GCRecord))
	case nand.HookPosPageRead, nand.HookPosPageProgram, nand.HookPosBlockErase:
		c.observeOp(ctx.Item.(nand.Op))
	}
}

func (c *Collector) observeRequest(req *ftl.Request) {
	kind := req.Kind.String()

	if req.Err != nil {
		c.requests.WithLabelValues(kind, StatusFailed).Inc()
		return
	}

	c.requests.WithLabelValues(kind, StatusOK).Inc()
	c.requestSectors.WithLabelValues(kind).Add(float64(req.Sectors))
}

func (c *Collector) observeCollect(r ftl.GCRecord) {
	c.gcVictims.Inc()
	c.gcCopied.Add(float64(r.Copied))

	if r.Reclaimed > 0 {
		c.gcReclaimed.Add(float64(r.Reclaimed))
	}
}

func (c *Collector) observeOp(op nand.Op) {
	kind := op.Kind.String()
	c.nandOps.WithLabelValues(kind).Inc()
	c.nandLatency.WithLabelValues(kind).Observe(float64(op.Done - op.Start))
}

// StartTask remembers when a host request was issued.
func (c *Collector) StartTask(task tracing.Task) {
	if task.Kind != RequestTaskKind {
		return
	}

	c.lock.Lock()
	defer c.lock.Unlock()

	task.StartTime = c.timeTeller.CurrentTime()
	c.inflight[task.ID] = task
}

// StepTask does nothing.
func (c *Collector) StepTask(_ tracing.Task) {}

// EndTask observes the latency of a host request.
func (c *Collector) EndTask(task tracing.Task) {
	c.lock.Lock()
	started, ok := c.inflight[task.ID]
	delete(c.inflight, task.ID)
	c.lock.Unlock()

	if !ok {
		return
	}

	latency := c.timeTeller.CurrentTime() - started.StartTime
	c.latency.WithLabelValues(started.What).Observe(float64(latency))
}
