package engine

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/wsearchd/wsearchd/internal/matcher"
	"github.com/wsearchd/wsearchd/internal/wordindex"
)

func newTestEngine(t *testing.T, words []string) *Engine {
	t.Helper()
	idx := wordindex.Build(words)
	cache := matcher.NewCache(64)
	return New(idx, cache)
}

func sampleWords() []string {
	return []string{"hello", "hallo", "hxllo", "heLLo", "world", "hell", "shell"}
}

func TestFindExactFixedLength(t *testing.T) {
	e := newTestEngine(t, sampleWords())

	got, err := e.FindExact("h?llo")
	require.NoError(t, err)
	require.Equal(t, []string{"hello", "hallo", "hxllo", "heLLo"}, got)
}

func TestFindExactCaseInsensitive(t *testing.T) {
	e := newTestEngine(t, sampleWords())

	got, err := e.FindExact("HELLO")
	require.NoError(t, err)
	require.Equal(t, []string{"hello", "heLLo"}, got)
}

func TestCountExactMatchesFindExact(t *testing.T) {
	e := newTestEngine(t, sampleWords())

	got, err := e.FindExact("h?llo")
	require.NoError(t, err)
	count, err := e.CountExact("h?llo")
	require.NoError(t, err)
	require.Equal(t, len(got), count)
}

func TestFindExactWithStar(t *testing.T) {
	e := newTestEngine(t, sampleWords())

	got, err := e.FindExact("h*ll*")
	require.NoError(t, err)
	require.Equal(t, []string{"hello", "hallo", "hxllo", "heLLo", "hell"}, got)
}

func TestFindExactNoMatchDueToFilter(t *testing.T) {
	e := newTestEngine(t, sampleWords())

	got, err := e.FindExact("zzzzz")
	require.NoError(t, err)
	require.Empty(t, got)
}

func TestFindPartialSubstring(t *testing.T) {
	e := newTestEngine(t, sampleWords())

	got, err := e.FindPartial("ell")
	require.NoError(t, err)
	require.Equal(t, []string{"hello", "heLLo", "hell", "shell"}, got)
}

func TestFindPartialAllQuestionMarks(t *testing.T) {
	e := newTestEngine(t, sampleWords())

	got, err := e.FindPartial("????")
	require.NoError(t, err)
	for _, w := range got {
		require.GreaterOrEqual(t, len(w), 4)
	}
}

func TestCountPartialMatchesFindPartial(t *testing.T) {
	e := newTestEngine(t, sampleWords())

	got, err := e.FindPartial("ll")
	require.NoError(t, err)
	count, err := e.CountPartial("ll")
	require.NoError(t, err)
	require.Equal(t, len(got), count)
}

func TestFindExactAscendingCorpusOrder(t *testing.T) {
	words := []string{"ab", "abc", "a", "abcd", "ab"}
	e := newTestEngine(t, words)

	got, err := e.FindExact("a*")
	require.NoError(t, err)
	require.Equal(t, []string{"ab", "abc", "a", "abcd", "ab"}, got)
}
