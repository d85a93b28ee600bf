package resilience

import (
	"sort"
	"sync"
	"time"

	"github.com/sony/gobreaker/v2"
)

// Provider status values derived from the breaker state.
const (
	StatusHealthy   = "healthy"
	StatusDegraded  = "degraded"
	StatusUnhealthy = "unhealthy"
)

// ProviderHealth is a point-in-time view of one upstream client.
type ProviderHealth struct {
	Name          string
	CircuitState  gobreaker.State
	Counts        gobreaker.Counts
	LastSuccessAt *time.Time
	LastFailureAt *time.Time
	LastError     string
}

// Status is unhealthy while the breaker is open and degraded while it is
// probing in half-open.
func (h *ProviderHealth) Status() string {
	switch h.CircuitState {
	case gobreaker.StateOpen:
		return StatusUnhealthy
	case gobreaker.StateHalfOpen:
		return StatusDegraded
	default:
		return StatusHealthy
	}
}

// Registry tracks the upstream clients of one process. The composition root
// owns it; there is no package-level instance.
type Registry struct {
	mu      sync.RWMutex
	clients map[string]*tracked
	now     func() time.Time
}

type tracked struct {
	client      *Client
	lastSuccess time.Time
	lastFailure time.Time
	lastError   string
}

// NewRegistry creates an empty registry.
func NewRegistry() *Registry {
	return &Registry{
		clients: make(map[string]*tracked),
		now:     time.Now,
	}
}

// Register adds or replaces the client tracked under name.
func (r *Registry) Register(name string, client *Client) {
	r.mu.Lock()
	r.clients[name] = &tracked{client: client}
	r.mu.Unlock()
}

// RecordSuccess stamps the last successful call. Unknown names are ignored.
func (r *Registry) RecordSuccess(name string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if t, ok := r.clients[name]; ok {
		t.lastSuccess = r.now()
	}
}

// RecordFailure stamps the last failed call and keeps its message.
func (r *Registry) RecordFailure(name string, err error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	t, ok := r.clients[name]
	if !ok {
		return
	}
	t.lastFailure = r.now()
	if err != nil {
		t.lastError = err.Error()
	}
}

// GetHealth returns nil for an unregistered name.
func (r *Registry) GetHealth(name string) *ProviderHealth {
	r.mu.RLock()
	defer r.mu.RUnlock()
	if t, ok := r.clients[name]; ok {
		return t.snapshot(name)
	}
	return nil
}

// GetAllHealth returns every client's health ordered by name.
func (r *Registry) GetAllHealth() []*ProviderHealth {
	names := r.GetProviderNames()

	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]*ProviderHealth, 0, len(names))
	for _, name := range names {
		if t, ok := r.clients[name]; ok {
			out = append(out, t.snapshot(name))
		}
	}
	return out
}

// GetProviderNames returns the registered names in sorted order.
func (r *Registry) GetProviderNames() []string {
	r.mu.RLock()
	names := make([]string, 0, len(r.clients))
	for name := range r.clients {
		names = append(names, name)
	}
	r.mu.RUnlock()

	sort.Strings(names)
	return names
}

func (t *tracked) snapshot(name string) *ProviderHealth {
	return &ProviderHealth{
		Name:          name,
		CircuitState:  t.client.CircuitBreakerState(),
		Counts:        t.client.CircuitBreakerCounts(),
		LastSuccessAt: timePtr(t.lastSuccess),
		LastFailureAt: timePtr(t.lastFailure),
		LastError:     t.lastError,
	}
}

func timePtr(t time.Time) *time.Time {
	if t.IsZero() {
		return nil
	}
	return &t
}
