// Package render formats conversation messages for a terminal.
package render

import (
	"fmt"
	"io"
	"strings"

	"github.com/charmbracelet/glamour"
	"github.com/charmbracelet/lipgloss"
	"github.com/pkg/errors"

	"github.com/zhouzirui/research-relay/internal/client/conversation"
)

// Theme selects the palette. It is passed explicitly to New.
type Theme struct {
	Dark bool
}

// ParseTheme accepts "dark", "light" or "" (dark).
func ParseTheme(name string) (Theme, error) {
	switch strings.ToLower(strings.TrimSpace(name)) {
	case "", "dark":
		return Theme{Dark: true}, nil
	case "light":
		return Theme{Dark: false}, nil
	default:
		return Theme{}, errors.Errorf("unknown theme %q (want dark or light)", name)
	}
}

func (t Theme) glamourStyle() string {
	if t.Dark {
		return "dark"
	}
	return "light"
}

// Renderer turns messages into terminal text. In plain mode no escape
// sequences are emitted.
type Renderer struct {
	theme     Theme
	plain     bool
	width     int
	markdown  *glamour.TermRenderer
	user      lipgloss.Style
	assistant lipgloss.Style
	meta      lipgloss.Style
}

// Option configures a Renderer.
type Option func(*Renderer)

// WithPlain disables styling, e.g. when stdout is not a terminal.
func WithPlain(plain bool) Option {
	return func(r *Renderer) { r.plain = plain }
}

// WithWidth sets the word-wrap width for assistant text.
func WithWidth(width int) Option {
	return func(r *Renderer) { r.width = width }
}

// New builds a renderer for theme.
func New(theme Theme, opts ...Option) (*Renderer, error) {
	r := &Renderer{theme: theme, width: 80}
	for _, opt := range opts {
		opt(r)
	}
	if r.plain {
		return r, nil
	}

	md, err := glamour.NewTermRenderer(
		glamour.WithStandardStyle(theme.glamourStyle()),
		glamour.WithWordWrap(r.width),
	)
	if err != nil {
		return nil, errors.Wrap(err, "create markdown renderer")
	}
	r.markdown = md

	if theme.Dark {
		r.user = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("63"))
		r.assistant = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("205"))
		r.meta = lipgloss.NewStyle().Foreground(lipgloss.Color("246"))
	} else {
		r.user = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("19"))
		r.assistant = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("126"))
		r.meta = lipgloss.NewStyle().Foreground(lipgloss.Color("240"))
	}
	return r, nil
}

// Paragraphs splits text on blank lines and drops empty pieces.
func Paragraphs(text string) []string {
	var out []string
	for _, p := range strings.Split(text, "\n\n") {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}

// Header renders the sender line of m.
func (r *Renderer) Header(m conversation.Message) string {
	if r.plain {
		return fmt.Sprintf("[%s] %s:", m.Timestamp, m.SenderName)
	}
	name := r.assistant.Render(m.SenderName)
	if m.IsUser {
		name = r.user.Render(m.SenderName)
	}
	return r.meta.Render("["+m.Timestamp+"]") + " " + name
}

// Message renders the header and body of m. Assistant text is split into
// paragraphs; in styled mode each paragraph goes through the markdown renderer.
func (r *Renderer) Message(m conversation.Message) (string, error) {
	var b strings.Builder
	b.WriteString(r.Header(m))
	b.WriteString("\n")

	if m.IsUser {
		b.WriteString(m.Text)
		b.WriteString("\n")
		return b.String(), nil
	}

	for i, p := range Paragraphs(m.Text) {
		if r.plain {
			if i > 0 {
				b.WriteString("\n")
			}
			b.WriteString(p)
			b.WriteString("\n")
			continue
		}
		out, err := r.markdown.Render(p)
		if err != nil {
			return "", errors.Wrap(err, "render paragraph")
		}
		b.WriteString(out)
	}
	return b.String(), nil
}

// Printer writes finished assistant messages to w. Each message goes through
// the renderer once, in full, so styled output is never mixed with raw text.
type Printer struct {
	r    *Renderer
	w    io.Writer
	next int
}

// NewPrinter creates a Printer.
func NewPrinter(r *Renderer, w io.Writer) *Printer {
	return &Printer{r: r, w: w}
}

// Sync prints assistant messages that are finished and not printed yet. A
// message is finished once a newer message follows it; with final set the
// last message counts as finished too. Empty assistant messages are skipped
// once they are no longer last. User messages are skipped since the terminal
// already echoed them.
func (p *Printer) Sync(msgs []conversation.Message, final bool) error {
	for p.next < len(msgs) {
		m := msgs[p.next]
		last := p.next == len(msgs)-1

		if m.IsUser {
			p.next++
			continue
		}
		if m.Text == "" {
			if last {
				return nil
			}
			p.next++
			continue
		}
		if last && !final {
			return nil
		}

		out, err := p.r.Message(m)
		if err != nil {
			return err
		}
		if _, err := io.WriteString(p.w, out); err != nil {
			return errors.Wrap(err, "write message")
		}
		p.next++
	}
	return nil
}
