package session

import "golang.org/x/text/width"

// escState tracks where Feed is within a multi-byte ANSI escape
// sequence (ESC '[' <final>).
type escState int

const (
	escNone escState = iota
	escSeenESC
	escSeenBracket
)

const historyLimit = 50

// LineEditor turns a raw input byte stream into completed lines. With
// ANSI capability on, it understands the editing chords spec §4.L names:
// cursor left/right, home/end, kill-to-end, kill-line, and up/down
// history recall. With ANSI off, it degrades to echo-only assembly per
// spec §9 Open Question 4: printable bytes append, CR/LF ends the line,
// backspace removes the last byte, and there is no cursor movement or
// history recall at all.
type LineEditor struct {
	ansi   bool
	buf    []rune
	cursor int
	// visualCol is cursor's terminal column, counting East Asian
	// wide/fullwidth runes before it as two columns each — kept in sync
	// by syncVisualCol on every cursor-moving edit in handleCSI so a
	// redraw never misjudges where to place the terminal cursor next to
	// CJK text.
	visualCol int

	history []string
	histIdx int // -1 means "not currently recalling"

	state escState
}

// NewLineEditor returns an editor in plain or ANSI mode.
func NewLineEditor(ansi bool) *LineEditor {
	return &LineEditor{ansi: ansi, histIdx: -1}
}

// Feed processes one input byte. It returns the completed line and true
// once the user presses Enter (CR or LF); otherwise it returns ("", false)
// having updated internal buffer/cursor state as a side effect.
func (e *LineEditor) Feed(b byte) (string, bool) {
	if !e.ansi {
		return e.feedPlain(b)
	}
	return e.feedANSI(b)
}

func (e *LineEditor) feedPlain(b byte) (string, bool) {
	switch {
	case b == '\r' || b == '\n':
		line := string(e.buf)
		e.buf = e.buf[:0]
		return line, true
	case b == 0x7f || b == 0x08:
		if len(e.buf) > 0 {
			e.buf = e.buf[:len(e.buf)-1]
		}
	case b >= 0x20:
		e.buf = append(e.buf, rune(b))
	}
	return "", false
}

func (e *LineEditor) feedANSI(b byte) (string, bool) {
	switch e.state {
	case escSeenESC:
		if b == '[' {
			e.state = escSeenBracket
		} else {
			e.state = escNone
		}
		return "", false
	case escSeenBracket:
		e.state = escNone
		e.handleCSI(b)
		return "", false
	}

	switch {
	case b == 0x1b:
		e.state = escSeenESC
	case b == '\r' || b == '\n':
		line := string(e.buf)
		e.pushHistory(line)
		e.buf = nil
		e.cursor = 0
		e.visualCol = 0
		e.histIdx = -1
		return line, true
	case b == 0x7f || b == 0x08: // backspace
		if e.cursor > 0 {
			e.buf = append(e.buf[:e.cursor-1], e.buf[e.cursor:]...)
			e.cursor--
		}
		e.syncVisualCol()
	case b == 0x0b: // ctrl+K: kill to end of line
		e.buf = e.buf[:e.cursor]
		e.syncVisualCol()
	case b == 0x15: // ctrl+U: kill whole line
		e.buf = nil
		e.cursor = 0
		e.syncVisualCol()
	case b >= 0x20:
		r := rune(b)
		tail := append([]rune{r}, e.buf[e.cursor:]...)
		e.buf = append(e.buf[:e.cursor], tail...)
		e.cursor++
		e.syncVisualCol()
	}
	return "", false
}

func (e *LineEditor) handleCSI(final byte) {
	switch final {
	case 'D': // left
		if e.cursor > 0 {
			e.cursor--
		}
	case 'C': // right
		if e.cursor < len(e.buf) {
			e.cursor++
		}
	case 'H': // home
		e.cursor = 0
	case 'F': // end
		e.cursor = len(e.buf)
	case 'A': // up: recall older history
		if len(e.history) == 0 {
			return
		}
		if e.histIdx == -1 {
			e.histIdx = len(e.history) - 1
		} else if e.histIdx > 0 {
			e.histIdx--
		}
		e.buf = []rune(e.history[e.histIdx])
		e.cursor = len(e.buf)
	case 'B': // down: recall newer history, or clear past the newest
		if e.histIdx == -1 {
			return
		}
		if e.histIdx < len(e.history)-1 {
			e.histIdx++
			e.buf = []rune(e.history[e.histIdx])
		} else {
			e.histIdx = -1
			e.buf = nil
		}
		e.cursor = len(e.buf)
	default:
		return
	}
	e.syncVisualCol()
}

// syncVisualCol recomputes visualCol from the buffer prefix up to cursor,
// so a redraw can move the real terminal cursor by columns rather than by
// rune count — a CJK character ahead of the cursor consumes two columns,
// not one (spec §9 Open Question 4's unicode-aware cursor handling).
func (e *LineEditor) syncVisualCol() {
	e.visualCol = VisualWidth(string(e.buf[:e.cursor]))
}

func (e *LineEditor) pushHistory(line string) {
	if line == "" {
		return
	}
	e.history = append(e.history, line)
	if len(e.history) > historyLimit {
		e.history = e.history[len(e.history)-historyLimit:]
	}
}

// Buffer returns the current in-progress line.
func (e *LineEditor) Buffer() string { return string(e.buf) }

// Cursor returns the current cursor position within Buffer, in runes.
func (e *LineEditor) Cursor() int { return e.cursor }

// VisualCursor returns the terminal column the cursor currently sits at,
// accounting for East Asian wide/fullwidth runes in the buffer ahead of
// it — what a redraw would move the real cursor to, as opposed to
// Cursor's rune-counted index.
func (e *LineEditor) VisualCursor() int { return e.visualCol }

// VisualWidth returns s's terminal column width, counting East Asian
// wide/fullwidth runes as two columns. syncVisualCol calls it on every
// cursor-moving edit in ANSI mode, whether or not the session has the
// unicode capability on.
func VisualWidth(s string) int {
	w := 0
	for _, r := range s {
		switch width.LookupRune(r).Kind() {
		case width.EastAsianWide, width.EastAsianFullwidth:
			w += 2
		default:
			w++
		}
	}
	return w
}
