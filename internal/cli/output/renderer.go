// Package output renders command results as styled text, markdown, or JSON.
package output

import (
	"encoding/json"
	"fmt"
	"io"
	"os"

	"golang.org/x/term"
)

// Mode selects the output format for a renderer.
type Mode string

const (
	// ModeAuto picks text on a terminal and markdown otherwise.
	ModeAuto Mode = "auto"
	// ModeText is styled human-readable output.
	ModeText Mode = "text"
	// ModeMarkdown is plain markdown, friendly to pipes and agents.
	ModeMarkdown Mode = "markdown"
	// ModeJSON is machine-readable JSON.
	ModeJSON Mode = "json"
)

// Renderer writes command output in a consistent format. Commands switch on
// EffectiveMode and use the style helpers for text output; markdown and JSON
// paths write plain content through Println and JSON.
type Renderer struct {
	out    io.Writer
	errOut io.Writer
	mode   Mode
	isTTY  bool
	styles Styles
}

// NewRenderer creates a renderer, detecting whether out is a terminal.
func NewRenderer(out, errOut io.Writer, mode Mode) *Renderer {
	isTTY := false
	if f, ok := out.(*os.File); ok {
		isTTY = term.IsTerminal(int(f.Fd()))
	}
	return NewRendererWithTTY(out, errOut, isTTY, mode)
}

// NewRendererWithTTY creates a renderer with an explicit TTY state.
// Tests use this to exercise both text and markdown paths.
func NewRendererWithTTY(out, errOut io.Writer, isTTY bool, mode Mode) *Renderer {
	return &Renderer{
		out:    out,
		errOut: errOut,
		mode:   mode,
		isTTY:  isTTY,
		styles: defaultStyles(),
	}
}

// EffectiveMode resolves ModeAuto against the TTY state.
func (r *Renderer) EffectiveMode() Mode {
	switch r.mode {
	case ModeText, ModeMarkdown, ModeJSON:
		return r.mode
	}
	if r.isTTY {
		return ModeText
	}
	return ModeMarkdown
}

// IsTTY reports whether the output writer is a terminal.
func (r *Renderer) IsTTY() bool {
	return r.isTTY
}

// Writer returns the underlying output writer, for encoders and tables.
func (r *Renderer) Writer() io.Writer {
	return r.out
}

// Styles returns the style set used for text output.
func (r *Renderer) Styles() Styles {
	return r.styles
}

// Println writes a line to the output stream.
func (r *Renderer) Println(s string) {
	fmt.Fprintln(r.out, s)
}

// Printf writes formatted output to the output stream.
func (r *Renderer) Printf(format string, a ...any) {
	fmt.Fprintf(r.out, format, a...)
}

// JSON writes v as indented JSON to the output stream.
func (r *Renderer) JSON(v any) error {
	enc := json.NewEncoder(r.out)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

// Header prints a styled section header followed by a blank line.
func (r *Renderer) Header(level int, text string) {
	style := r.styles.Header2
	if level <= 1 {
		style = r.styles.Header1
	}
	r.Println(style.Render(text))
	r.Println("")
}

// StatusLine prints an indented status glyph, a name, and an optional
// muted detail. Recognized statuses are success, failed, and skipped.
func (r *Renderer) StatusLine(name, status, detail string) {
	var icon string
	switch status {
	case "success":
		icon = r.styles.StatusSuccess.String()
	case "failed", "error":
		icon = r.styles.StatusFailed.String()
	case "skipped":
		icon = r.styles.StatusSkipped.String()
	default:
		icon = " "
	}
	line := fmt.Sprintf("  %s %s", icon, name)
	if detail != "" {
		line += " " + r.styles.Muted.Render(detail)
	}
	r.Println(line)
}

// Success prints a success glyph and message to the output stream.
func (r *Renderer) Success(msg string) {
	r.Println(r.styles.StatusSuccess.String() + " " + msg)
}

// Warning prints a warning message to the error stream.
func (r *Renderer) Warning(msg string) {
	fmt.Fprintln(r.errOut, r.styles.Warning.Render("! "+msg))
}

// Muted prints a dimmed line to the output stream.
func (r *Renderer) Muted(msg string) {
	r.Println(r.styles.Muted.Render(msg))
}

// NewSpinner creates a spinner that animates on the error stream.
// Callers should only start it when EffectiveMode is ModeText.
func (r *Renderer) NewSpinner(message string) *Spinner {
	return newSpinner(r.errOut, message, r.styles)
}
