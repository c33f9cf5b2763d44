// Package cli provides the terminal feedback used by the one-shot commands:
// a spinner while a transaction is being mined and colored status lines.
package cli

import (
	"fmt"
	"io"
	"os"
	"strings"
	"sync"
	"time"
)

// Color codes for terminal output
const (
	ColorReset  = "\033[0m"
	ColorRed    = "\033[31m"
	ColorGreen  = "\033[32m"
	ColorYellow = "\033[33m"
	ColorBlue   = "\033[34m"
	ColorCyan   = "\033[36m"
	ColorBold   = "\033[1m"
)

// Printer writes status lines, colored when w is a terminal.
type Printer struct {
	w        io.Writer
	colorize bool
}

// NewPrinter creates a printer for w.
func NewPrinter(w io.Writer) *Printer {
	return &Printer{w: w, colorize: isTerminal(w)}
}

// Writer returns the underlying writer.
func (p *Printer) Writer() io.Writer {
	return p.w
}

// Success prints a success message
func (p *Printer) Success(format string, args ...interface{}) {
	p.line("✓", ColorGreen, format, args...)
}

// Error prints an error message
func (p *Printer) Error(format string, args ...interface{}) {
	p.line("✗", ColorRed, format, args...)
}

// Warning prints a warning message
func (p *Printer) Warning(format string, args ...interface{}) {
	p.line("⚠", ColorYellow, format, args...)
}

// Info prints an info message
func (p *Printer) Info(format string, args ...interface{}) {
	p.line("ℹ", ColorBlue, format, args...)
}

// Field prints an aligned "label: value" line.
func (p *Printer) Field(label string, value interface{}) {
	fmt.Fprintf(p.w, "%s %v\n", p.Colorize(fmt.Sprintf("%-14s", label+":"), ColorBold), value)
}

// Colorize returns text wrapped in color when output is a terminal.
func (p *Printer) Colorize(text, color string) string {
	if !p.colorize {
		return text
	}
	return color + text + ColorReset
}

func (p *Printer) line(symbol, color, format string, args ...interface{}) {
	fmt.Fprintf(p.w, "%s %s\n", p.Colorize(symbol, color), fmt.Sprintf(format, args...))
}

// Spinner represents a loading spinner
type Spinner struct {
	frames   []string
	current  int
	prefix   string
	mu       sync.Mutex
	writer   io.Writer
	active   bool
	colorize bool
	started  time.Time
	done     chan struct{}
}

// NewSpinner creates a spinner writing to p's writer.
func (p *Printer) NewSpinner(prefix string) *Spinner {
	return &Spinner{
		frames:   []string{"⠋", "⠙", "⠹", "⠸", "⠼", "⠴", "⠦", "⠧", "⠇", "⠏"},
		prefix:   prefix,
		writer:   p.w,
		colorize: p.colorize,
		done:     make(chan struct{}),
	}
}

// Start starts the spinner. Frames are only drawn on a terminal.
func (s *Spinner) Start() {
	s.mu.Lock()
	if s.active {
		s.mu.Unlock()
		return
	}
	s.active = true
	s.started = time.Now()
	s.mu.Unlock()

	if !s.colorize {
		fmt.Fprintf(s.writer, "%s ...\n", s.prefix)
		return
	}

	go func() {
		ticker := time.NewTicker(100 * time.Millisecond)
		defer ticker.Stop()

		for {
			select {
			case <-ticker.C:
				s.mu.Lock()
				if !s.active {
					s.mu.Unlock()
					return
				}
				s.render()
				s.current = (s.current + 1) % len(s.frames)
				s.mu.Unlock()
			case <-s.done:
				return
			}
		}
	}()
}

// Stop stops the spinner and clears its line.
func (s *Spinner) Stop() time.Duration {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.active {
		return 0
	}
	s.active = false
	close(s.done)
	if s.colorize {
		fmt.Fprint(s.writer, "\r"+strings.Repeat(" ", 80)+"\r")
	}
	return time.Since(s.started)
}

func (s *Spinner) render() {
	frame := s.frames[s.current]
	if s.colorize {
		frame = ColorCyan + frame + ColorReset
	}
	fmt.Fprintf(s.writer, "\r%s %s (%s)", frame, s.prefix, FormatDuration(time.Since(s.started)))
}

// Run shows a spinner labelled prefix while fn blocks, then reports the
// outcome.
func (p *Printer) Run(prefix string, fn func() error) error {
	sp := p.NewSpinner(prefix)
	sp.Start()
	err := fn()
	elapsed := sp.Stop()
	if err != nil {
		p.Error("%s: %v", prefix, err)
		return err
	}
	p.Success("%s (%s)", prefix, FormatDuration(elapsed))
	return nil
}

func isTerminal(w io.Writer) bool {
	f, ok := w.(*os.File)
	if !ok {
		return false
	}
	fileInfo, err := f.Stat()
	if err != nil {
		return false
	}
	return (fileInfo.Mode() & os.ModeCharDevice) != 0
}

// FormatDuration formats a duration for display
func FormatDuration(d time.Duration) string {
	if d < time.Second {
		return "< 1s"
	}
	if d < time.Minute {
		return fmt.Sprintf("%ds", int(d.Seconds()))
	}
	if d < time.Hour {
		return fmt.Sprintf("%dm%ds", int(d.Minutes()), int(d.Seconds())%60)
	}
	return fmt.Sprintf("%dh%dm", int(d.Hours()), int(d.Minutes())%60)
}
