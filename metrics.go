package tollywood

import (
	"strconv"

	"github.com/prometheus/client_golang/prometheus"
)

// Metrics records scheduler activity via Prometheus collectors (pulled
// from ehsanshojaeiiii-sms-gateway's stack, the pack's only service
// with an observability story). Every method is nil-receiver safe, so a
// Scheduler built without WithMetrics simply skips every call site —
// this package never requires a Prometheus registry to function.
type Metrics struct {
	reductions prometheus.Counter
	messages   prometheus.Counter
	steals     prometheus.Counter
	queueDepth *prometheus.GaugeVec
}

// NewMetrics registers and returns a Metrics recorder against reg.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		reductions: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "tollywood_reductions_charged_total",
			Help: "Total reductions charged across all actor episodes.",
		}),
		messages: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "tollywood_messages_processed_total",
			Help: "Total messages handed to an actor's on_receive.",
		}),
		steals: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "tollywood_work_steals_total",
			Help: "Total successful steals from a peer worker queue.",
		}),
		queueDepth: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Name: "tollywood_worker_queue_depth",
			Help: "Pending executor count per worker queue, observed on enqueue.",
		}, []string{"queue"}),
	}
	reg.MustRegister(m.reductions, m.messages, m.steals, m.queueDepth)
	return m
}

func (m *Metrics) AddReductions(n int) {
	if m == nil {
		return
	}
	m.reductions.Add(float64(n))
}

func (m *Metrics) IncMessagesProcessed() {
	if m == nil {
		return
	}
	m.messages.Inc()
}

func (m *Metrics) IncSteals() {
	if m == nil {
		return
	}
	m.steals.Inc()
}

func (m *Metrics) ObserveQueueDepth(queueIndex, depth int) {
	if m == nil {
		return
	}
	m.queueDepth.WithLabelValues(strconv.Itoa(queueIndex)).Set(float64(depth))
}
