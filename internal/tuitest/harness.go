// Package tuitest drives the chapterdesk binary inside a pseudo terminal and
// records what it draws, for end-to-end checks of key handling and layout.
package tuitest

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"strings"
	"sync"
	"time"

	"github.com/creack/pty"
)

const (
	defaultWidth   = 120
	defaultHeight  = 36
	defaultTimeout = 10 * time.Second
	settleDelay    = 150 * time.Millisecond
)

// Step is one scripted interaction. WaitFor holds the step until the plain
// screen output contains the text; Delay pauses before Input is written.
type Step struct {
	WaitFor string
	Delay   time.Duration
	Input   []byte
}

// Type returns a step that types text as individual key presses.
func Type(text string) Step {
	return Step{Input: []byte(text)}
}

// Press returns a step that sends one key sequence after a short settle
// delay, so the previous frame has been processed.
func Press(key []byte) Step {
	return Step{Delay: settleDelay, Input: key}
}

// Await returns a step that blocks until text appears on screen.
func Await(text string) Step {
	return Step{WaitFor: text}
}

// Session configures one run of the program.
type Session struct {
	Command []string
	Dir     string
	Env     []string
	Width   int
	Height  int
	Steps   []Step
	Timeout time.Duration
	// ExitCodes lists non-zero exit codes that still count as a clean run.
	ExitCodes []int
}

// Recording is the raw terminal stream and the frames parsed from it.
type Recording struct {
	Raw      []byte
	Frames   []Frame
	Duration time.Duration
}

// screen collects PTY output and wakes waiters whenever bytes arrive.
type screen struct {
	mu      sync.Mutex
	buf     bytes.Buffer
	updated chan struct{}
}

func newScreen() *screen {
	return &screen{updated: make(chan struct{}, 1)}
}

func (s *screen) Write(p []byte) (int, error) {
	s.mu.Lock()
	n, err := s.buf.Write(p)
	s.mu.Unlock()
	select {
	case s.updated <- struct{}{}:
	default:
	}
	return n, err
}

func (s *screen) bytes() []byte {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]byte(nil), s.buf.Bytes()...)
}

func (s *screen) contains(text string) bool {
	return strings.Contains(stripANSI(string(s.bytes())), text)
}

// Run starts the session's command in a PTY, replays the steps and waits for
// the program to exit.
func Run(ctx context.Context, cfg Session) (*Recording, error) {
	if len(cfg.Command) == 0 {
		return nil, errors.New("tuitest: command is required")
	}
	width, height := cfg.Width, cfg.Height
	if width <= 0 {
		width = defaultWidth
	}
	if height <= 0 {
		height = defaultHeight
	}
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = defaultTimeout
	}
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	cmd := exec.CommandContext(ctx, cfg.Command[0], cfg.Command[1:]...)
	cmd.Dir = cfg.Dir
	cmd.Env = sessionEnv(cfg.Env)

	ptmx, err := pty.StartWithSize(cmd, &pty.Winsize{Rows: uint16(height), Cols: uint16(width)})
	if err != nil {
		return nil, fmt.Errorf("tuitest: start program: %w", err)
	}
	defer func() { _ = ptmx.Close() }()

	out := newScreen()
	copyDone := make(chan struct{})
	go func() {
		defer close(copyDone)
		responder := newQueryResponder(ptmx)
		chunk := make([]byte, 4096)
		for {
			n, readErr := ptmx.Read(chunk)
			if n > 0 {
				responder.Process(chunk[:n])
				_, _ = out.Write(chunk[:n])
			}
			if readErr != nil {
				return
			}
		}
	}()

	start := time.Now()
	for i, step := range cfg.Steps {
		if step.WaitFor != "" {
			if err := waitForText(ctx, out, step.WaitFor); err != nil {
				return partial(out, start), fmt.Errorf("tuitest: step %d: %w", i, err)
			}
		}
		if step.Delay > 0 {
			select {
			case <-ctx.Done():
				return partial(out, start), fmt.Errorf("tuitest: step %d: %w", i, ctx.Err())
			case <-time.After(step.Delay):
			}
		}
		if len(step.Input) > 0 {
			if _, err := ptmx.Write(step.Input); err != nil {
				return partial(out, start), fmt.Errorf("tuitest: write input: %w", err)
			}
		}
	}

	waitErr := make(chan error, 1)
	go func() { waitErr <- cmd.Wait() }()

	select {
	case err := <-waitErr:
		if err != nil && !allowedExit(err, cfg.ExitCodes) {
			return partial(out, start), fmt.Errorf("tuitest: program exited with error: %w", err)
		}
	case <-ctx.Done():
		return partial(out, start), fmt.Errorf("tuitest: program did not exit: %w", ctx.Err())
	}

	_ = ptmx.Close()
	<-copyDone
	return partial(out, start), nil
}

func waitForText(ctx context.Context, out *screen, text string) error {
	for !out.contains(text) {
		select {
		case <-ctx.Done():
			return fmt.Errorf("waiting for %q: %w", text, ctx.Err())
		case <-out.updated:
		}
	}
	return nil
}

func partial(out *screen, start time.Time) *Recording {
	raw := out.bytes()
	return &Recording{Raw: raw, Frames: parseFrames(raw), Duration: time.Since(start)}
}

func allowedExit(err error, codes []int) bool {
	var exitErr *exec.ExitError
	if !errors.As(err, &exitErr) {
		return false
	}
	for _, code := range codes {
		if exitErr.ExitCode() == code {
			return true
		}
	}
	return false
}

func sessionEnv(extra []string) []string {
	env := append(os.Environ(), extra...)
	for _, entry := range env {
		if strings.HasPrefix(entry, "TERM=") {
			return env
		}
	}
	return append(env, "TERM=xterm-256color")
}

// Key sequences understood by bubbletea's input reader.
var (
	KeyEnter = []byte{'\r'}
	KeyEsc   = []byte{27}
	KeyTab   = []byte{'\t'}
	KeyCtrlC = []byte{3}
	KeyCtrlK = []byte{11}
	KeyCtrlS = []byte{19}
	KeyUp    = []byte("\x1b[A")
	KeyDown  = []byte("\x1b[B")
)
