package observability

import (
	"sync"

	"github.com/prometheus/client_golang/prometheus"
)

// PromFactory is a MetricFactory backed by a prometheus.Registerer.
// Metric names are normalized (dots to underscores) since Prometheus
// metric names may not contain dots.
type PromFactory struct {
	registerer prometheus.Registerer

	mu         sync.Mutex
	counters   map[string]prometheus.Counter
	gauges     map[string]prometheus.Gauge
	histograms map[string]prometheus.Histogram
}

// NewPromFactory builds a PromFactory registered against reg. Pass
// prometheus.DefaultRegisterer to use the global registry, or a fresh
// prometheus.NewRegistry() for an isolated one (e.g. in tests).
func NewPromFactory(reg prometheus.Registerer) *PromFactory {
	return &PromFactory{
		registerer: reg,
		counters:   make(map[string]prometheus.Counter),
		gauges:     make(map[string]prometheus.Gauge),
		histograms: make(map[string]prometheus.Histogram),
	}
}

// Counter implements MetricFactory.
func (f *PromFactory) Counter(name string) Counter {
	f.mu.Lock()
	defer f.mu.Unlock()

	if c, ok := f.counters[name]; ok {
		return c
	}
	c := prometheus.NewCounter(prometheus.CounterOpts{
		Name: normalizeName(name),
		Help: name,
	})
	f.registerer.MustRegister(c)
	f.counters[name] = c
	return c
}

// Gauge implements MetricFactory.
func (f *PromFactory) Gauge(name string) Gauge {
	f.mu.Lock()
	defer f.mu.Unlock()

	if g, ok := f.gauges[name]; ok {
		return g
	}
	g := prometheus.NewGauge(prometheus.GaugeOpts{
		Name: normalizeName(name),
		Help: name,
	})
	f.registerer.MustRegister(g)
	f.gauges[name] = g
	return g
}

// Histogram implements MetricFactory.
func (f *PromFactory) Histogram(name string) Histogram {
	f.mu.Lock()
	defer f.mu.Unlock()

	if h, ok := f.histograms[name]; ok {
		return h
	}
	h := prometheus.NewHistogram(prometheus.HistogramOpts{
		Name:    normalizeName(name),
		Help:    name,
		Buckets: prometheus.DefBuckets,
	})
	f.registerer.MustRegister(h)
	f.histograms[name] = h
	return h
}

func normalizeName(name string) string {
	out := make([]byte, len(name))
	for i := 0; i < len(name); i++ {
		if name[i] == '.' {
			out[i] = '_'
		} else {
			out[i] = name[i]
		}
	}
	return string(out)
}
