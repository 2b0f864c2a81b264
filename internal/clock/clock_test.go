package clock

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestManualAdvance(t *testing.T) {
	start := time.Unix(0, 0)
	m := NewManual(start)
	require.Equal(t, start, m.Now())

	next := m.Advance(5 * time.Second)
	require.Equal(t, start.Add(5*time.Second), next)
	require.Equal(t, next, m.Now())
}

func TestManualAdvanceNegativePanics(t *testing.T) {
	m := NewManual(time.Unix(0, 0))
	require.Panics(t, func() { m.Advance(-time.Second) })
}

func TestSystemClockMonotonic(t *testing.T) {
	s := NewSystem()
	a := s.Now()
	b := s.Now()
	require.False(t, b.Before(a))
}
