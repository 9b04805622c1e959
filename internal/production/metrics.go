package production

import (
	"errors"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/comalice/chartkit/internal/core"
	"github.com/comalice/chartkit/internal/primitives"
)

// MetricsObserver is a core.Observer exporting Prometheus metrics:
//
//	chartkit_transitions_total{event}        committed macrosteps
//	chartkit_microsteps{event}               microsteps per macrostep
//	chartkit_state_entries_total{state}      state entries
//	chartkit_errors_total{kind}              failed macrosteps (guard, action, loop, other)
type MetricsObserver struct {
	transitions *prometheus.CounterVec
	microsteps  *prometheus.HistogramVec
	entries     *prometheus.CounterVec
	errors      *prometheus.CounterVec
}

// NewMetricsObserver creates the collectors and registers them with reg.
func NewMetricsObserver(reg prometheus.Registerer) (*MetricsObserver, error) {
	o := &MetricsObserver{
		transitions: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "chartkit_transitions_total",
				Help: "Total number of macrosteps that changed state",
			},
			[]string{"event"},
		),
		microsteps: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "chartkit_microsteps",
				Help:    "Microsteps taken per macrostep",
				Buckets: []float64{1, 2, 3, 5, 10, 25, 50, 100},
			},
			[]string{"event"},
		),
		entries: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "chartkit_state_entries_total",
				Help: "Total number of state entries",
			},
			[]string{"state"},
		),
		errors: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "chartkit_errors_total",
				Help: "Total number of failed macrosteps by kind",
			},
			[]string{"kind"},
		),
	}
	for _, c := range []prometheus.Collector{o.transitions, o.microsteps, o.entries, o.errors} {
		if err := reg.Register(c); err != nil {
			return nil, err
		}
	}
	return o, nil
}

func (o *MetricsObserver) OnTransition(_ string, report core.TransitionReport) {
	o.transitions.WithLabelValues(report.Event.Type).Inc()
	o.microsteps.WithLabelValues(report.Event.Type).Observe(float64(report.Microsteps))
	for _, id := range report.Entered {
		o.entries.WithLabelValues(id).Inc()
	}
}

func (o *MetricsObserver) OnError(_ string, _ primitives.Event, err error) {
	o.errors.WithLabelValues(errorKind(err)).Inc()
}

func errorKind(err error) string {
	var me *core.MachineError
	switch {
	case errors.As(err, &me):
		return string(me.Kind)
	case errors.Is(err, core.ErrInfiniteLoop):
		return "loop"
	default:
		return "other"
	}
}
