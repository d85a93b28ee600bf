package main

import (
	"bytes"
	"encoding/json"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/heliowatch/heliowatch/internal/api/models"
	"github.com/heliowatch/heliowatch/internal/environment"
)

func run(t *testing.T, args ...string) (string, error) {
	t.Helper()
	t.Setenv("OWM_API_KEY", "")
	t.Setenv("WEATHERAPI_API_KEY", "")
	t.Setenv("CACHE_BACKEND", "memory")

	cmd := newRootCmd()
	var out bytes.Buffer
	cmd.SetOut(&out)
	cmd.SetErr(&out)
	cmd.SetArgs(args)

	err := cmd.Execute()
	return out.String(), err
}

func TestReport_JSON(t *testing.T) {
	out, err := run(t, "report", "--lat", "35.0117", "--lon", "-117.5591", "--output", "json")
	require.NoError(t, err)

	var rep models.EnvironmentReport
	require.NoError(t, json.Unmarshal([]byte(out), &rep))
	assert.Equal(t, 35.0117, rep.Coordinates.Lat)
	assert.Equal(t, "synthetic", rep.Provenance.Source)
	assert.Len(t, rep.Impacts, 3)
}

func TestReport_Text(t *testing.T) {
	out, err := run(t, "report", "--lat", "36.9333", "--lon", "-2.35")
	require.NoError(t, err)

	assert.Contains(t, out, "Source")
	assert.Contains(t, out, "synthetic")
	assert.Contains(t, out, "Aggregate")
	assert.Contains(t, out, "flight_operations")
	assert.Contains(t, out, "grid_dispatch")
	assert.Contains(t, out, "+1")
}

func TestReport_Errors(t *testing.T) {
	t.Run("bad output format", func(t *testing.T) {
		_, err := run(t, "report", "--lat", "1", "--lon", "1", "--output", "yaml")
		require.Error(t, err)
		assert.Contains(t, err.Error(), "unknown output format")
	})

	t.Run("missing flag", func(t *testing.T) {
		_, err := run(t, "report", "--lat", "1")
		require.Error(t, err)
		assert.Contains(t, err.Error(), "lon")
	})

	t.Run("out of range", func(t *testing.T) {
		_, err := run(t, "report", "--lat", "95", "--lon", "1")
		require.Error(t, err)
		assert.True(t, errors.Is(err, environment.ErrInvalidCoordinates))
	})
}

func TestRules(t *testing.T) {
	t.Setenv("RULE_FLIGHT_MAX_WIND_MS", "9")

	out, err := run(t, "rules")
	require.NoError(t, err)

	var rules models.RulesResponse
	require.NoError(t, json.Unmarshal([]byte(out), &rules))
	assert.Equal(t, 9.0, rules.Rules.Flight.MaxWindMS)
	assert.Len(t, rules.Subsystems, 3)
}

func TestSites(t *testing.T) {
	t.Setenv("WORKER_SITES", "alpha@10,20;beta@-5.5,100.25")

	out, err := run(t, "sites")
	require.NoError(t, err)

	assert.Contains(t, out, "NAME")
	assert.Contains(t, out, "alpha")
	assert.Contains(t, out, "-5.5000")
	assert.Contains(t, out, "100.2500")
}
