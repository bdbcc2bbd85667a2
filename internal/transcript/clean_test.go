package transcript

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestClean_RemovesFillerAndKeepsRemainder(t *testing.T) {
	require.Equal(t, "こんにちは、", Clean("えっと こんにちは、"))
}

func TestClean_PunctuationOnlyBecomesEmpty(t *testing.T) {
	require.Equal(t, "", Clean("、。と"))
	require.Equal(t, "", Clean("  、  "))
}

func TestClean_EmptyStaysEmpty(t *testing.T) {
	require.Equal(t, "", Clean(""))
	require.Equal(t, "", Clean("   "))
}

func TestClean_CollapsesWhitespaceRuns(t *testing.T) {
	require.Equal(t, "こんにちは 元気", Clean("こんにちは   元気"))
}

func TestClean_IsIdempotent(t *testing.T) {
	inputs := []string{"えっと こんにちは、", "、。と", "こんにちは 元気", ""}
	for _, in := range inputs {
		once := Clean(in)
		twice := Clean(once)
		require.Equal(t, once, twice, "Clean should be idempotent for %q", in)
	}
}

func TestIsPunctuationOnly_StableUnderSurroundingWhitespace(t *testing.T) {
	require.True(t, isPunctuationOnly("  、。と  "))
	require.True(t, isPunctuationOnly("、。と"))
	require.False(t, isPunctuationOnly(" 元気 "))
}
