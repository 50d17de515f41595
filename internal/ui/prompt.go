package ui

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"runtime"
	"strings"
	"sync/atomic"

	"golang.org/x/term"
)

// ErrInterrupted is returned when Ctrl+C ends a prompt, the strategy
// selector or the introduction editor.
var ErrInterrupted = errors.New("interrupted")

type ctxHolder struct{ ctx context.Context }

var promptCtx atomic.Value // ctxHolder

// SetContext ties every prompt to ctx, normally the signal handler's.
func SetContext(ctx context.Context) {
	promptCtx.Store(ctxHolder{ctx})
}

func promptContext() context.Context {
	if h, ok := promptCtx.Load().(ctxHolder); ok {
		return h.ctx
	}
	return context.Background()
}

// interrupted maps a cancelled prompt context to ErrInterrupted.
func interrupted() error {
	if promptContext().Err() != nil {
		return ErrInterrupted
	}
	return nil
}

// HasDisplay reports whether a browser can be opened on this machine.
func HasDisplay() bool {
	switch runtime.GOOS {
	case "linux":
		return os.Getenv("DISPLAY") != "" || os.Getenv("WAYLAND_DISPLAY") != ""
	case "darwin":
		// SSH without X forwarding
		return os.Getenv("SSH_TTY") == "" || os.Getenv("DISPLAY") != ""
	case "windows":
		return true
	default:
		return os.Getenv("DISPLAY") != ""
	}
}

// IsTerminal reports whether stdin is an interactive terminal.
func IsTerminal() bool {
	return term.IsTerminal(int(os.Stdin.Fd()))
}

type readLineResult struct {
	line string
	err  error
}

// readLineAsync reads a line from stdin in a goroutine, one byte at a time so
// nothing is left buffered for a later bubbletea program. The goroutine is
// abandoned if the prompt is interrupted.
func readLineAsync() <-chan readLineResult {
	ch := make(chan readLineResult, 1)
	go func() {
		var line []byte
		buf := make([]byte, 1)
		for {
			n, err := os.Stdin.Read(buf)
			if err != nil {
				if err == io.EOF && len(line) > 0 {
					ch <- readLineResult{line: strings.TrimSpace(string(line))}
					return
				}
				ch <- readLineResult{err: err}
				return
			}
			if n > 0 {
				if buf[0] == '\n' {
					ch <- readLineResult{line: strings.TrimSpace(string(line))}
					return
				}
				if buf[0] != '\r' {
					line = append(line, buf[0])
				}
			}
		}
	}()
	return ch
}

// Prompt asks for one line of input.
// Returns ErrInterrupted if Ctrl+C is pressed.
func Prompt(message string) (string, error) {
	ctx := promptContext()
	if err := interrupted(); err != nil {
		return "", err
	}

	fmt.Fprint(os.Stderr, message)

	select {
	case <-ctx.Done():
		fmt.Fprintln(os.Stderr)
		return "", ErrInterrupted
	case result := <-readLineAsync():
		if result.err != nil {
			return "", result.err
		}
		return result.line, nil
	}
}

// PromptDefault asks for input, returning defaultValue on an empty answer.
func PromptDefault(message, defaultValue string) (string, error) {
	if defaultValue != "" {
		message = fmt.Sprintf("%s [%s]: ", message, defaultValue)
	} else {
		message = message + ": "
	}

	input, err := Prompt(message)
	if err != nil {
		return "", err
	}
	if input == "" {
		return defaultValue, nil
	}
	return input, nil
}

// Confirm asks for yes/no confirmation.
func Confirm(message string, defaultYes bool) (bool, error) {
	suffix := " [y/N]: "
	if defaultYes {
		suffix = " [Y/n]: "
	}

	input, err := Prompt(message + suffix)
	if err != nil {
		return false, err
	}

	input = strings.ToLower(strings.TrimSpace(input))
	if input == "" {
		return defaultYes, nil
	}
	return input == "y" || input == "yes", nil
}

// PromptSecret asks for a key without echoing it.
// An empty answer is allowed and returned as "".
func PromptSecret(message string) (string, error) {
	ctx := promptContext()
	if err := interrupted(); err != nil {
		return "", err
	}

	fmt.Fprint(os.Stderr, message+": ")

	fd := int(os.Stdin.Fd())
	if !term.IsTerminal(fd) {
		select {
		case <-ctx.Done():
			fmt.Fprintln(os.Stderr)
			return "", ErrInterrupted
		case result := <-readLineAsync():
			if result.err != nil {
				return "", result.err
			}
			return result.line, nil
		}
	}

	oldState, err := term.GetState(fd)
	if err != nil {
		return "", err
	}

	type readResult struct {
		secret []byte
		err    error
	}
	resultCh := make(chan readResult, 1)
	go func() {
		secret, err := term.ReadPassword(fd)
		resultCh <- readResult{secret, err}
	}()

	select {
	case <-ctx.Done():
		term.Restore(fd, oldState)
		fmt.Fprintln(os.Stderr)
		return "", ErrInterrupted
	case result := <-resultCh:
		fmt.Fprintln(os.Stderr)
		if result.err != nil {
			return "", result.err
		}
		s := strings.TrimSpace(string(result.secret))
		zeroBytes(result.secret)
		return s, nil
	}
}

func zeroBytes(b []byte) {
	for i := range b {
		b[i] = 0
	}
}
