package matcher

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestParseMode(t *testing.T) {
	cases := []struct {
		in      string
		want    Mode
		wantErr bool
	}{
		{"exact", Exact, false},
		{"EXACT", Exact, false},
		{"partial", Partial, false},
		{"Partial", Partial, false},
		{"bogus", Exact, true},
		{"", Exact, true},
	}
	for _, c := range cases {
		got, err := ParseMode(c.in)
		if c.wantErr {
			require.Error(t, err)
			continue
		}
		require.NoError(t, err)
		require.Equal(t, c.want, got)
	}
}

func TestModeString(t *testing.T) {
	require.Equal(t, "exact", Exact.String())
	require.Equal(t, "partial", Partial.String())
}

func TestCompileExactMatchesCaseInsensitive(t *testing.T) {
	c := NewCache(16)
	re, err := c.Compile("he?lo", true)
	require.NoError(t, err)

	require.True(t, re.MatchString("hello"))
	require.True(t, re.MatchString("HELLO"))
	require.False(t, re.MatchString("xhellox"))
}

func TestCompilePartialUnanchored(t *testing.T) {
	c := NewCache(16)
	re, err := c.Compile("ell", false)
	require.NoError(t, err)

	require.True(t, re.MatchString("hello"))
	require.True(t, re.MatchString("shell"))
	require.False(t, re.MatchString("world"))
}

func TestCompileCachesByKey(t *testing.T) {
	c := NewCache(4)
	_, err := c.Compile("he*o", true)
	require.NoError(t, err)
	info := c.Info()
	require.Equal(t, int64(0), info.Hits)
	require.Equal(t, int64(1), info.Misses)

	_, err = c.Compile("he*o", true)
	require.NoError(t, err)
	info = c.Info()
	require.Equal(t, int64(1), info.Hits)
	require.Equal(t, int64(1), info.Misses)
}

func TestResizeAndClear(t *testing.T) {
	c := NewCache(4)
	_, _ = c.Compile("a*b", true)
	c.Resize(8)
	require.Equal(t, 0, c.Info().Size)

	_, _ = c.Compile("a*b", true)
	c.Clear()
	require.Equal(t, 0, c.Info().Size)
}

func TestToRegexBodyEscapesMetacharacters(t *testing.T) {
	body := toRegexBody("a.b*c?d", true)
	require.Equal(t, `a\.b.*c.d`, body)
}

func TestCountWildcards(t *testing.T) {
	q, s := CountWildcards("a?b?c*d*e")
	require.Equal(t, 2, q)
	require.Equal(t, 2, s)
}

func TestMinLiteralLen(t *testing.T) {
	require.Equal(t, 3, MinLiteralLen("a*b*c"))
	require.Equal(t, 5, MinLiteralLen("ab?de"))
	require.Equal(t, 0, MinLiteralLen("***"))
}
