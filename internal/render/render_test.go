package render

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestPlainJoinsLinesWithNewline(t *testing.T) {
	out, err := Plain{}.Render(Draw{Lines: []Line{{Text: "a"}, {Text: "b"}}}, Options{})
	require.NoError(t, err)
	require.Equal(t, "a\r\nb", out)
}

func TestANSIFallsBackToPlainWhenDisabled(t *testing.T) {
	out, err := ANSI{}.Render(Draw{Lines: []Line{{Text: "a", Style: "combat"}}}, Options{EnableAnsi: false})
	require.NoError(t, err)
	require.Equal(t, "a", out)
}

func TestANSIAlwaysEndsWithReset(t *testing.T) {
	out, err := ANSI{}.Render(Draw{Lines: []Line{{Text: "a", Style: "combat"}}}, Options{EnableAnsi: true})
	require.NoError(t, err)
	require.True(t, strings.HasSuffix(out, ansiReset))
}

func TestANSIAppliesStyleCode(t *testing.T) {
	out, err := ANSI{}.Render(Draw{Lines: []Line{{Text: "Town Square", Style: "room-title"}}}, Options{EnableAnsi: true})
	require.NoError(t, err)
	require.Contains(t, out, styleCodes["room-title"])
	require.Contains(t, out, "Town Square")
}
