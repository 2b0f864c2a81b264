package session

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func feedString(e *LineEditor, s string) (string, bool) {
	var line string
	var done bool
	for i := 0; i < len(s); i++ {
		line, done = e.Feed(s[i])
	}
	return line, done
}

func TestPlainModeAssemblesLine(t *testing.T) {
	e := NewLineEditor(false)
	line, ok := feedString(e, "look\r")
	require.True(t, ok)
	require.Equal(t, "look", line)
}

func TestPlainModeBackspaceRemovesLastByte(t *testing.T) {
	e := NewLineEditor(false)
	feedString(e, "loko")
	e.Feed(0x7f)
	line, ok := feedString(e, "\r")
	require.True(t, ok)
	require.Equal(t, "lok", line)
}

func TestPlainModeIgnoresEscapeSequences(t *testing.T) {
	e := NewLineEditor(false)
	// An arrow-key escape sequence is not interpreted as cursor movement
	// in plain mode: the ESC byte is dropped and '[' and 'D' are kept as
	// literal characters.
	feedString(e, "go\x1b[D")
	line, ok := feedString(e, "\r")
	require.True(t, ok)
	require.Contains(t, line, "go")
}

func TestANSIModeCursorMovementAndInsert(t *testing.T) {
	e := NewLineEditor(true)
	feedString(e, "back")
	e.Feed(0x1b)
	e.Feed('[')
	e.Feed('D') // cursor left by one: "bac|k"
	e.Feed('X') // insert X before k: "bacX|k"
	line, ok := feedString(e, "\r")
	require.True(t, ok)
	require.Equal(t, "bacXk", line)
}

func TestANSIModeBackspaceAtCursor(t *testing.T) {
	e := NewLineEditor(true)
	feedString(e, "hello")
	e.Feed(0x1b)
	e.Feed('[')
	e.Feed('D')
	e.Feed(0x1b)
	e.Feed('[')
	e.Feed('D') // cursor now before "l" "l" : "hel|lo"
	e.Feed(0x7f)
	line, ok := feedString(e, "\r")
	require.True(t, ok)
	require.Equal(t, "helo", line)
}

func TestANSIModeHistoryRecall(t *testing.T) {
	e := NewLineEditor(true)
	feedString(e, "north\r")
	feedString(e, "south\r")

	e.Feed(0x1b)
	e.Feed('[')
	e.Feed('A') // recall "south"
	require.Equal(t, "south", e.Buffer())

	e.Feed(0x1b)
	e.Feed('[')
	e.Feed('A') // recall "north"
	require.Equal(t, "north", e.Buffer())
}

func TestANSIModeKillToEndAndKillLine(t *testing.T) {
	e := NewLineEditor(true)
	feedString(e, "hello world")
	e.Feed(0x1b)
	e.Feed('[')
	e.Feed('D')
	e.Feed(0x1b)
	e.Feed('[')
	e.Feed('D')
	e.Feed(0x1b)
	e.Feed('[')
	e.Feed('D')
	e.Feed(0x1b)
	e.Feed('[')
	e.Feed('D')
	e.Feed(0x1b)
	e.Feed('[')
	e.Feed('D') // cursor now before "world"
	e.Feed(0x0b)
	require.Equal(t, "hello ", e.Buffer())

	e.Feed(0x15)
	require.Equal(t, "", e.Buffer())
}

func TestVisualWidthCountsWideRunesAsTwo(t *testing.T) {
	require.Equal(t, 6, VisualWidth("ab"+string([]rune{0x4e2d, 0x6587})))
}

func TestVisualCursorTracksLeftRightMovement(t *testing.T) {
	e := NewLineEditor(true)
	feedString(e, "back")
	require.Equal(t, 4, e.VisualCursor())

	e.Feed(0x1b)
	e.Feed('[')
	e.Feed('D') // "bac|k"
	require.Equal(t, 3, e.VisualCursor())

	e.Feed(0x1b)
	e.Feed('[')
	e.Feed('H') // home
	require.Equal(t, 0, e.VisualCursor())
}
