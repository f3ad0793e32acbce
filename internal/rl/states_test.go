package rl

import (
	"testing"

	"github.com/stretchr/testify/require"
)

// State components must never decrease, whatever order observations
// arrive in.
func TestDomainStatesMonotone(t *testing.T) {
	t.Parallel()

	d := NewDomainStates()
	observations := []map[string]float64{
		{"forms": 0.3, "links": 0.1},
		{"forms": 0.8},
		{"forms": 0.5, "links": 0.4},
		{"links": 0.2},
		{},
	}

	prev := d.State("a.test")
	for _, obs := range observations {
		d.Update("a.test", obs)
		cur := d.State("a.test")
		for k, v := range prev {
			require.GreaterOrEqual(t, cur[k], v, "component %q regressed", k)
		}
		prev = cur
	}

	require.Equal(t, map[string]float64{"forms": 0.8, "links": 0.4}, prev)
}

func TestDomainStatesSnapshotIsACopy(t *testing.T) {
	t.Parallel()

	d := NewDomainStates()
	d.Update("a.test", map[string]float64{"forms": 0.8})

	snap := d.State("a.test")
	d.Update("a.test", map[string]float64{"forms": 0.9})

	require.Equal(t, 0.8, snap["forms"], "snapshot changed under the caller")
	snap["forms"] = 42
	require.Equal(t, 0.9, d.State("a.test")["forms"])
}

func TestDomainStatesUnknownDomainIsEmpty(t *testing.T) {
	t.Parallel()

	d := NewDomainStates()
	require.Empty(t, d.State("never.seen"))
	require.Equal(t, 0, d.Len())
}

// A zero-score observation (failed fetch) still registers the domain.
func TestDomainStatesZeroObservationCountsDomain(t *testing.T) {
	t.Parallel()

	d := NewDomainStates()
	d.Update("a.test", map[string]float64{"forms": 0})
	require.Equal(t, 1, d.Len())
	require.Equal(t, 0.0, d.State("a.test")["forms"])
}

func TestDomainStatesTotals(t *testing.T) {
	t.Parallel()

	d := NewDomainStates()
	d.Update("a.test", map[string]float64{"forms": 0.8, "links": 0.2})
	d.Update("b.test", map[string]float64{"forms": 0.5})

	totals := d.Totals()
	require.InDelta(t, 1.3, totals["forms"], 1e-9)
	require.InDelta(t, 0.2, totals["links"], 1e-9)
	require.Equal(t, 2, d.Len())
}
