// Package render defines the renderer adapter contract of spec §6: the
// external collaborator that turns a draw instruction into terminal
// text. The driver only ever calls through the Renderer interface; the
// real terminal-markup renderer is out of scope (spec §1's Non-goals) —
// this package also ships two minimal reference implementations (Plain
// and ANSI) so the
// contract's properties (CRLF line breaks, ANSI reset at end of frame)
// are pinned down by tests even without a real renderer wired in.
package render

// Options mirrors spec §6's render opts: what the connected client can
// and can't handle.
type Options struct {
	EnableAnsi    bool
	EnableUnicode bool
	Width         int
	Height        int
	ColorSystem   string
}

// Draw is the renderer-agnostic description of what to paint: a sequence
// of lines, each optionally carrying a semantic style tag the real
// renderer maps onto ANSI SGR codes. The driver builds a Draw; it never
// emits raw escape codes itself.
type Draw struct {
	Lines []Line
}

// Line is one line of output with an optional style tag ("", "room-title",
// "combat", "system", ...). The meaning of a tag is owned entirely by the
// renderer implementation.
type Line struct {
	Text  string
	Style string
}

// Renderer turns a Draw into terminal text under the given capabilities.
type Renderer interface {
	Render(draw Draw, opts Options) (string, error)
}

// Plain is a reference Renderer: no color, no unicode box-drawing,
// plain line-joined text. It exists to exercise the contract in tests,
// not as the shipped world-facing renderer.
type Plain struct{}

// Render joins draw's lines with CRLF, ignoring opts entirely — Plain
// never emits ANSI, so nothing in opts changes its output. The text
// inside each line is copied as-is.
func (Plain) Render(draw Draw, _ Options) (string, error) {
	out := ""
	for i, line := range draw.Lines {
		if i > 0 {
			out += "\r\n"
		}
		out += line.Text
	}
	return out, nil
}

const ansiReset = "\x1b[0m"

// ANSI is a reference Renderer that applies a small fixed style-tag to
// SGR-code mapping and always ends a frame with a reset code, so a
// caller's next write never inherits a dangling style (spec §8's
// ANSI-reset property).
type ANSI struct{}

var styleCodes = map[string]string{
	"room-title": "\x1b[1;36m",
	"combat":     "\x1b[1;31m",
	"system":     "\x1b[33m",
}

// Render renders draw with ANSI styling when opts.EnableAnsi is set;
// otherwise it behaves exactly like Plain.
func (ANSI) Render(draw Draw, opts Options) (string, error) {
	if !opts.EnableAnsi {
		return Plain{}.Render(draw, opts)
	}

	out := ""
	for i, line := range draw.Lines {
		if i > 0 {
			out += "\r\n"
		}
		if code, ok := styleCodes[line.Style]; ok {
			out += code + line.Text + ansiReset
		} else {
			out += line.Text
		}
	}
	out += ansiReset
	return out, nil
}
