package ui

import (
	"fmt"
	"io"
	"os"
	"sync"
	"time"

	"github.com/charmbracelet/bubbles/progress"
)

// Spinner displays a spinning animation while waiting on the network or
// on the browser.
type Spinner struct {
	message string
	frames  []string
	index   int
	done    chan struct{}
	wg      sync.WaitGroup
	writer  io.Writer
	active  bool
	mu      sync.Mutex
}

// DefaultFrames are the default spinner animation frames.
var DefaultFrames = []string{"⠋", "⠙", "⠹", "⠸", "⠼", "⠴", "⠦", "⠧", "⠇", "⠏"}

// SimpleFrames are ASCII spinner frames used without color.
var SimpleFrames = []string{"|", "/", "-", "\\"}

// NewSpinner creates a new spinner with a message.
func NewSpinner(message string) *Spinner {
	frames := DefaultFrames
	if NoColor {
		frames = SimpleFrames
	}

	return &Spinner{
		message: message,
		frames:  frames,
		writer:  os.Stderr,
		done:    make(chan struct{}),
	}
}

// Start begins the spinner animation. It does nothing in quiet mode.
func (s *Spinner) Start() {
	s.mu.Lock()
	if s.active || QuietMode {
		s.mu.Unlock()
		return
	}
	s.active = true
	s.done = make(chan struct{})
	s.mu.Unlock()

	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		ticker := time.NewTicker(80 * time.Millisecond)
		defer ticker.Stop()

		for {
			select {
			case <-s.done:
				return
			case <-ticker.C:
				s.mu.Lock()
				frame := s.frames[s.index]
				s.index = (s.index + 1) % len(s.frames)
				msg := s.message
				s.mu.Unlock()

				fmt.Fprintf(s.writer, "\r%s %s", frame, msg)
			}
		}
	}()
}

// Stop stops the spinner animation and clears its line.
func (s *Spinner) Stop() {
	s.mu.Lock()
	if !s.active {
		s.mu.Unlock()
		return
	}
	s.active = false
	close(s.done)
	s.mu.Unlock()

	s.wg.Wait()
	fmt.Fprintf(s.writer, "\r\033[K")
}

// StopWithError stops the spinner with an error message.
func (s *Spinner) StopWithError(message string) {
	s.Stop()
	cross := "✗"
	if NoColor {
		cross = "[ERROR]"
	}
	fmt.Fprintf(s.writer, "%s %s\n", Error(cross), message)
}

// Progress draws a bar for an upload of known size.
type Progress struct {
	total   int64
	current int64
	message string
	writer  io.Writer
	bar     progress.Model
	mu      sync.Mutex
}

// NewProgress creates a progress bar for total bytes.
func NewProgress(message string, total int64) *Progress {
	opts := []progress.Option{progress.WithWidth(30), progress.WithoutPercentage()}
	if !NoColor {
		opts = append(opts, progress.WithGradient(FlagYellow, FlagBlue))
	}

	return &Progress{
		message: message,
		total:   total,
		writer:  os.Stderr,
		bar:     progress.New(opts...),
	}
}

// Callback adapts the bar to an uploader's (sent, total) progress hook.
func (p *Progress) Callback() func(sent, total int64) {
	return func(sent, total int64) {
		p.mu.Lock()
		if total > 0 {
			p.total = total
		}
		p.mu.Unlock()
		p.Update(sent)
	}
}

// Update redraws the bar at current bytes.
func (p *Progress) Update(current int64) {
	p.mu.Lock()
	defer p.mu.Unlock()

	if QuietMode || p.total <= 0 {
		return
	}
	p.current = current
	pct := float64(current) / float64(p.total)
	if pct > 1 {
		pct = 1
	}

	fmt.Fprintf(p.writer, "\r\033[K%s %s %.0f%% (%s / %s)",
		p.message, p.bar.ViewAs(pct), pct*100, formatBytes(current), formatBytes(p.total))
}

// Done clears the bar. The caller prints the outcome.
func (p *Progress) Done() {
	p.mu.Lock()
	defer p.mu.Unlock()
	if QuietMode {
		return
	}
	fmt.Fprint(p.writer, "\r\033[K")
}

func formatBytes(b int64) string {
	const unit = 1024
	if b < unit {
		return fmt.Sprintf("%d B", b)
	}
	div, exp := int64(unit), 0
	for n := b / unit; n >= unit; n /= unit {
		div *= unit
		exp++
	}
	return fmt.Sprintf("%.1f %cB", float64(b)/float64(div), "KMGTPE"[exp])
}
