package rail

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"sync"
	"time"

	consulapi "github.com/hashicorp/consul/api"
)

var (
	ErrNoHealthyRail = errors.New("rail: no healthy adapter available")
)

// HealthMaxAge bounds how old a health probe may be before it is treated
// as stale and the registry moves on to the next rail (spec §4.9).
const HealthMaxAge = 30 * time.Second

// Registry orders adapters by priority (fast rails first) and picks the
// first whose health probe is fresh and up. Once a settlement has
// prepared successfully on a rail, the coordinator pins to that rail for
// the rest of the settlement (spec §4.9) — the registry itself is
// stateless per call.
type Registry struct {
	mu       sync.RWMutex
	adapters []Adapter
	logger   *slog.Logger
	now      func() time.Time

	// consul, when non-nil, is consulted to confirm a rail's service tags
	// still advertise it as eligible (e.g. not drained for maintenance)
	// before it is offered to the coordinator.
	consul *consulapi.Client
}

type Option func(*Registry)

func WithLogger(logger *slog.Logger) Option {
	return func(r *Registry) { r.logger = logger }
}

func WithClock(now func() time.Time) Option {
	return func(r *Registry) { r.now = now }
}

// WithConsul wires a Consul client used to cross-check an adapter's
// `rail-eligible` service tag before the registry offers it.
func WithConsul(client *consulapi.Client) Option {
	return func(r *Registry) { r.consul = client }
}

func NewRegistry(opts ...Option) *Registry {
	r := &Registry{logger: slog.Default(), now: time.Now}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Register adds an adapter to the registry and keeps the internal slice
// sorted by ascending Priority (lower runs first).
func (r *Registry) Register(a Adapter) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.adapters = append(r.adapters, a)
	sort.SliceStable(r.adapters, func(i, j int) bool {
		return r.adapters[i].Priority() < r.adapters[j].Priority()
	})
}

// Select returns the highest-priority adapter that is currently healthy
// and, if Consul is wired, still tagged eligible. The coordinator tries
// the next rail only when Prepare is rejected or the health probe is
// stale (spec §4.9) — Select implements that selection, Prepare failure
// handling is the coordinator's retry loop over the ordered list.
func (r *Registry) Select(ctx context.Context) (Adapter, error) {
	r.mu.RLock()
	candidates := make([]Adapter, len(r.adapters))
	copy(candidates, r.adapters)
	r.mu.RUnlock()

	now := r.now()
	for _, a := range candidates {
		h, err := a.Health(ctx)
		if err != nil {
			r.logger.Warn("rail health probe failed", "rail", a.Name(), "error", err)
			continue
		}
		if !h.Up || h.IsStale(now, HealthMaxAge) {
			continue
		}
		if r.consul != nil && !r.isEligible(a.Name()) {
			continue
		}
		return a, nil
	}
	return nil, ErrNoHealthyRail
}

// Ordered returns every registered adapter, priority order, for the
// coordinator's prepare-retry loop.
func (r *Registry) Ordered() []Adapter {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]Adapter, len(r.adapters))
	copy(out, r.adapters)
	return out
}

func (r *Registry) isEligible(railName string) bool {
	services, _, err := r.consul.Health().Service(railName, "rail-eligible", true, nil)
	if err != nil {
		r.logger.Warn("consul health check failed", "rail", railName, "error", err)
		return true // fail open: Consul being unreachable must not take every rail offline
	}
	return len(services) > 0
}

func (r *Registry) String() string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return fmt.Sprintf("rail.Registry{adapters=%d}", len(r.adapters))
}
