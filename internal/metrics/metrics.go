// Package metrics provides Prometheus metrics for switch mutations and observers.
package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Mutation results
const (
	ResultOK       = "ok"
	ResultNotFound = "not_found"
	ResultFault    = "hardware_fault"
)

var (
	mutations = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "carcontrol",
		Subsystem: "switch",
		Name:      "mutations_total",
		Help:      "Switch mutations by operation and result",
	}, []string{"operation", "result"})

	switchLevel = promauto.NewGaugeVec(prometheus.GaugeOpts{
		Namespace: "carcontrol",
		Subsystem: "switch",
		Name:      "on",
		Help:      "Current switch level (1 = on)",
	}, []string{"switch"})

	pinWrites = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: "carcontrol",
		Subsystem: "pin",
		Name:      "write_seconds",
		Help:      "Time taken by pin writes",
		Buckets:   []float64{.0001, .0005, .001, .005, .01, .05, .1, .5, 1},
	}, []string{"switch"})

	observers = promauto.NewGauge(prometheus.GaugeOpts{
		Namespace: "carcontrol",
		Subsystem: "broadcast",
		Name:      "observers",
		Help:      "Currently subscribed observers",
	})

	evictions = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: "carcontrol",
		Subsystem: "broadcast",
		Name:      "evictions_total",
		Help:      "Observers dropped because they fell behind or failed",
	})
)

// RecordMutation counts one toggle/set/all-off attempt.
func RecordMutation(operation, result string) {
	mutations.WithLabelValues(operation, result).Inc()
}

// SetSwitchLevel records the committed level of a switch.
func SetSwitchLevel(id string, on bool) {
	v := 0.0
	if on {
		v = 1
	}
	switchLevel.WithLabelValues(id).Set(v)
}

// ObservePinWrite records how long a pin write took.
func ObservePinWrite(id string, seconds float64) {
	pinWrites.WithLabelValues(id).Observe(seconds)
}

func ObserverAdded() {
	observers.Inc()
}

func ObserverRemoved() {
	observers.Dec()
}

func ObserverEvicted() {
	evictions.Inc()
}

// Handler returns the Prometheus metrics HTTP handler.
func Handler() http.Handler {
	return promhttp.Handler()
}
