package metrics

import "github.com/prometheus/client_golang/prometheus"

type Observer interface {
	Observe(val float64, labels ...string)

	// for now we will tightly couple to the prometheus collector type
	prometheus.Collector
}

type Metrics struct {
	// MessagesCount counts guild messages received.
	MessagesCount Observer
	// CommandCount counts command invocations by command and result.
	CommandCount Observer
	// CommandLatency observes command handling time by command in seconds.
	CommandLatency Observer
	// SelfHealCount counts opt-in rows deleted because their role vanished.
	SelfHealCount Observer
	// PlatformErrors counts failed platform calls by operation.
	PlatformErrors Observer
}

// New creates the bot's metrics. They are not registered anywhere.
func New() *Metrics {
	return &Metrics{
		MessagesCount: NewPromCounter(
			prometheus.NewCounter(
				prometheus.CounterOpts{
					Namespace: "cardinal",
					Subsystem: "gateway",
					Name:      "messages",
					Help:      "Number of guild messages received.",
				},
			),
		),
		CommandCount: NewPromCounterVec(
			prometheus.NewCounterVec(
				prometheus.CounterOpts{
					Namespace: "cardinal",
					Name:      "commands_total",
					Help:      "Number of command invocations by result.",
				},
				[]string{"command", "result"},
			),
		),
		CommandLatency: NewPromObserverVec(
			prometheus.NewHistogramVec(
				prometheus.HistogramOpts{
					Buckets:   []float64{0.05, 0.1, 0.2, 0.5, 1, 2, 5, 10},
					Namespace: "cardinal",
					Name:      "command_latency_seconds",
					Help:      "How long it takes to handle a command in seconds.",
				},
				[]string{"command"},
			),
		),
		SelfHealCount: NewPromCounter(
			prometheus.NewCounter(
				prometheus.CounterOpts{
					Namespace: "cardinal",
					Name:      "selfheal_total",
					Help:      "Number of opt-in channels removed because their role no longer exists.",
				},
			),
		),
		PlatformErrors: NewPromCounterVec(
			prometheus.NewCounterVec(
				prometheus.CounterOpts{
					Namespace: "cardinal",
					Name:      "platform_errors_total",
					Help:      "Number of failed platform calls by operation.",
				},
				[]string{"op"},
			),
		),
	}
}

func (m *Metrics) Collectors() []prometheus.Collector {
	return []prometheus.Collector{
		m.MessagesCount,
		m.CommandCount,
		m.CommandLatency,
		m.SelfHealCount,
		m.PlatformErrors,
	}
}
