// Package render provides markdown rendering and live typing for terminal output.
package render

import (
	"fmt"
	"io"
	"os"
	"strings"
	"sync"

	"github.com/charmbracelet/glamour"
)

const defaultWordWrap = 100

// Renderer renders markdown to the terminal.
type Renderer struct {
	gr     *glamour.TermRenderer
	writer io.Writer
}

// Option configures a Renderer.
type Option func(*options)

type options struct {
	plain    bool
	wordWrap int
}

// WithPlain renders without colors or terminal styling.
func WithPlain(plain bool) Option {
	return func(o *options) { o.plain = plain }
}

// WithWordWrap sets the wrap column. Zero keeps the default.
func WithWordWrap(n int) Option {
	return func(o *options) {
		if n > 0 {
			o.wordWrap = n
		}
	}
}

// NewRenderer creates a Renderer writing to the given writer.
// If w is nil, os.Stdout is used.
func NewRenderer(w io.Writer, opts ...Option) (*Renderer, error) {
	if w == nil {
		w = os.Stdout
	}
	o := options{wordWrap: defaultWordWrap}
	for _, opt := range opts {
		opt(&o)
	}

	style := glamour.WithAutoStyle()
	if o.plain {
		style = glamour.WithStandardStyle("notty")
	}
	gr, err := glamour.NewTermRenderer(style, glamour.WithWordWrap(o.wordWrap))
	if err != nil {
		return nil, fmt.Errorf("create glamour renderer: %w", err)
	}
	return &Renderer{gr: gr, writer: w}, nil
}

// Render renders a complete markdown string to the writer.
func (r *Renderer) Render(markdown string) error {
	out, err := r.gr.Render(markdown)
	if err != nil {
		return fmt.Errorf("render markdown: %w", err)
	}
	_, err = fmt.Fprint(r.writer, out)
	return err
}

// Typewriter prints a growing text as it streams in. Each Update writes only
// the part of the text that has not been printed yet.
type Typewriter struct {
	mu      sync.Mutex
	w       io.Writer
	printed string
}

// NewTypewriter creates a Typewriter writing to w. If w is nil, os.Stdout is used.
func NewTypewriter(w io.Writer) *Typewriter {
	if w == nil {
		w = os.Stdout
	}
	return &Typewriter{w: w}
}

// Update prints what text adds to the previous update. A text that does not
// extend the printed one starts over on a new line.
func (t *Typewriter) Update(text string) {
	t.mu.Lock()
	defer t.mu.Unlock()

	if !strings.HasPrefix(text, t.printed) {
		fmt.Fprintln(t.w)
		t.printed = ""
	}
	fmt.Fprint(t.w, text[len(t.printed):])
	t.printed = text
}

// Finish ends the current text with a newline and resets the Typewriter.
// It reports whether anything had been printed.
func (t *Typewriter) Finish() bool {
	t.mu.Lock()
	defer t.mu.Unlock()

	if t.printed == "" {
		return false
	}
	if !strings.HasSuffix(t.printed, "\n") {
		fmt.Fprintln(t.w)
	}
	t.printed = ""
	return true
}
