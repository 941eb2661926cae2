// Package metrics holds the process-wide atomic counters: a counters
// struct with monotonic increments only, exported through a prometheus
// registry owned by this package.
package metrics

import "github.com/prometheus/client_golang/prometheus"

// Counters is the monotonic counter set shared across components.
type Counters struct {
	MalformedLines      prometheus.Counter
	BackpressureDrops   prometheus.Counter
	RAMUnavailableTicks prometheus.Counter
	SpikeTransitions    *prometheus.CounterVec
	IncidentsCreated    prometheus.Counter
	LLMRetries          prometheus.Counter
	LLMFailures         prometheus.Counter
	LLMSchemaInvalid    prometheus.Counter
	CPUSumImplausible   prometheus.Counter
}

// Registry bundles the registry and the counters registered into it.
type Registry struct {
	reg      *prometheus.Registry
	Counters Counters
}

// NewRegistry builds a fresh, isolated registry. Each running monitor
// instance owns exactly one: the spec is single-host, single-instance.
func NewRegistry() *Registry {
	reg := prometheus.NewRegistry()

	c := Counters{
		MalformedLines: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "rca_monitor_malformed_lines_total",
			Help: "Tracer input lines dropped for failing JSON parse.",
		}),
		BackpressureDrops: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "rca_monitor_backpressure_drops_total",
			Help: "Events dropped because the ingest queue was full.",
		}),
		RAMUnavailableTicks: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "rca_monitor_ram_unavailable_ticks_total",
			Help: "Failed per-PID working-set lookups and failed host samples, one per failure.",
		}),
		SpikeTransitions: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "rca_monitor_spike_transitions_total",
			Help: "Spike detector state machine transitions, by target state.",
		}, []string{"to"}),
		IncidentsCreated: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "rca_monitor_incidents_created_total",
			Help: "SpikeIncidents created at the Normal to Confirmed edge.",
		}),
		LLMRetries: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "rca_monitor_llm_retries_total",
			Help: "RCA LLM requests retried after a transport or 5xx error.",
		}),
		LLMFailures: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "rca_monitor_llm_failures_total",
			Help: "RCA LLM requests that exhausted retries or hit a 4xx error.",
		}),
		LLMSchemaInvalid: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "rca_monitor_llm_schema_invalid_total",
			Help: "RCA LLM replies rejected by schema validation.",
		}),
		CPUSumImplausible: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "rca_monitor_cpu_sum_implausible_total",
			Help: "Ticks where summed per-PID cpu_pct exceeded 100%*num_cores beyond tolerance.",
		}),
	}

	reg.MustRegister(
		c.MalformedLines,
		c.BackpressureDrops,
		c.RAMUnavailableTicks,
		c.SpikeTransitions,
		c.IncidentsCreated,
		c.LLMRetries,
		c.LLMFailures,
		c.LLMSchemaInvalid,
		c.CPUSumImplausible,
	)

	return &Registry{reg: reg, Counters: c}
}

// Gatherer exposes the underlying prometheus.Gatherer for an external
// HTTP exposition surface to scrape; this package never listens itself.
func (r *Registry) Gatherer() prometheus.Gatherer {
	return r.reg
}
