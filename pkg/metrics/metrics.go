package metrics

import (
	"net/http"
	"sort"
	"sync"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Thin prometheus wrapper: families are registered lazily on first use so
// callers just Inc/Observe by name. Label keys are fixed by the first call
// for a given family; later calls must use the same key set.

var (
	mu        sync.Mutex
	registry  = prometheus.NewRegistry()
	counters  = map[string]*prometheus.CounterVec{}
	summaries = map[string]*prometheus.SummaryVec{}
)

// Handler serves the package registry; mounted by the monitoring service.
func Handler() http.Handler {
	return promhttp.HandlerFor(registry, promhttp.HandlerOpts{})
}

// Inc increments the counter family identified by name with the given labels.
func Inc(name string, labels map[string]string) {
	mu.Lock()
	c, ok := counters[name]
	if !ok {
		c = prometheus.NewCounterVec(prometheus.CounterOpts{Name: name}, labelKeys(labels))
		if err := registry.Register(c); err != nil {
			mu.Unlock()
			return
		}
		counters[name] = c
	}
	mu.Unlock()
	if m, err := c.GetMetricWith(prometheus.Labels(labels)); err == nil {
		m.Inc()
	}
}

// ObserveSummary records v into the summary family identified by name.
func ObserveSummary(name string, labels map[string]string, v float64) {
	mu.Lock()
	s, ok := summaries[name]
	if !ok {
		s = prometheus.NewSummaryVec(prometheus.SummaryOpts{
			Name:       name,
			Objectives: map[float64]float64{0.5: 0.05, 0.9: 0.01, 0.99: 0.001},
		}, labelKeys(labels))
		if err := registry.Register(s); err != nil {
			mu.Unlock()
			return
		}
		summaries[name] = s
	}
	mu.Unlock()
	if m, err := s.GetMetricWith(prometheus.Labels(labels)); err == nil {
		m.Observe(v)
	}
}

func labelKeys(labels map[string]string) []string {
	keys := make([]string, 0, len(labels))
	for k := range labels {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
