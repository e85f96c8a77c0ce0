package pressure

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestLimitsHalved(t *testing.T) {
	l := Limits{MaxQuestions: 10, MaxStars: 4}
	h := l.Halved()
	require.Equal(t, 5, h.MaxQuestions)
	require.Equal(t, 2, h.MaxStars)
}

func TestLimitsHalvedFloorsAtOne(t *testing.T) {
	l := Limits{MaxQuestions: 1, MaxStars: 1}
	h := l.Halved()
	require.Equal(t, 1, h.MaxQuestions)
	require.Equal(t, 1, h.MaxStars)
}

func TestGovernorDisabledWhenSoftLimitZero(t *testing.T) {
	g := New(0, Limits{MaxQuestions: 100, MaxStars: 20})
	_, ok := g.Observe()
	require.False(t, ok)
	require.False(t, g.Pressured())
	require.Equal(t, Limits{MaxQuestions: 100, MaxStars: 20}, g.EffectiveLimits())
}

func TestGovernorEffectiveLimitsUnhalvedWithoutPressure(t *testing.T) {
	g := New(1<<40, Limits{MaxQuestions: 100, MaxStars: 20})
	require.Equal(t, Limits{MaxQuestions: 100, MaxStars: 20}, g.EffectiveLimits())
}

func TestGovernorSetBaseUpdatesEffectiveLimits(t *testing.T) {
	g := New(0, Limits{MaxQuestions: 100, MaxStars: 20})
	g.SetBase(Limits{MaxQuestions: 50, MaxStars: 10})
	require.Equal(t, Limits{MaxQuestions: 50, MaxStars: 10}, g.EffectiveLimits())
}

func TestGovernorClearsCachesUnderPressure(t *testing.T) {
	// A 1-byte soft limit guarantees the current process is "over" it.
	g := New(1, Limits{MaxQuestions: 100, MaxStars: 20})
	cleared := 0
	g.SetCacheClearer(func() { cleared++ })

	_, ok := g.Observe()
	require.True(t, ok)
	require.True(t, g.Pressured())
	require.Equal(t, 1, cleared)
	require.Equal(t, Limits{MaxQuestions: 50, MaxStars: 10}, g.EffectiveLimits())
}
