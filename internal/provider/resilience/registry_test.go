package resilience_test

import (
	"testing"
	"time"

	"github.com/sony/gobreaker/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/heliowatch/heliowatch/internal/provider/resilience"
)

func registered(registry *resilience.Registry, names ...string) {
	for _, name := range names {
		cfg := resilience.DefaultClientConfig(name)
		cfg.Registry = registry
		resilience.NewClient(cfg)
	}
}

func TestRegistry_Health(t *testing.T) {
	registry := resilience.NewRegistry()
	registered(registry, "weatherapi", "openweathermap")

	assert.Equal(t, []string{"openweathermap", "weatherapi"}, registry.GetProviderNames())
	assert.Nil(t, registry.GetHealth("climatology"))

	fresh := registry.GetHealth("weatherapi")
	require.NotNil(t, fresh)
	assert.Equal(t, gobreaker.StateClosed, fresh.CircuitState)
	assert.Equal(t, resilience.StatusHealthy, fresh.Status())
	assert.Nil(t, fresh.LastSuccessAt)
	assert.Nil(t, fresh.LastFailureAt)
	assert.Empty(t, fresh.LastError)

	registry.RecordSuccess("weatherapi")
	registry.RecordFailure("openweathermap", assert.AnError)
	registry.RecordFailure("openweathermap", nil)
	registry.RecordSuccess("climatology")

	all := registry.GetAllHealth()
	require.Len(t, all, 2)

	owm, wapi := all[0], all[1]
	assert.Equal(t, "openweathermap", owm.Name)
	require.NotNil(t, owm.LastFailureAt)
	assert.WithinDuration(t, time.Now(), *owm.LastFailureAt, time.Second)
	assert.Equal(t, assert.AnError.Error(), owm.LastError, "a nil error keeps the previous message")
	assert.Nil(t, owm.LastSuccessAt)

	assert.Equal(t, "weatherapi", wapi.Name)
	require.NotNil(t, wapi.LastSuccessAt)
	assert.Nil(t, wapi.LastFailureAt)
}

func TestRegistry_InstancesAreIndependent(t *testing.T) {
	a, b := resilience.NewRegistry(), resilience.NewRegistry()
	registered(a, "openweathermap")

	assert.Len(t, a.GetAllHealth(), 1)
	assert.Empty(t, b.GetAllHealth())
	assert.Empty(t, b.GetProviderNames())
}

func TestProviderHealth_Status(t *testing.T) {
	for state, want := range map[gobreaker.State]string{
		gobreaker.StateClosed:   resilience.StatusHealthy,
		gobreaker.StateHalfOpen: resilience.StatusDegraded,
		gobreaker.StateOpen:     resilience.StatusUnhealthy,
	} {
		h := resilience.ProviderHealth{CircuitState: state}
		assert.Equal(t, want, h.Status(), state.String())
	}
}
