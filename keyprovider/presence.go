package keyprovider

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"strings"
	"sync"

	"github.com/ruteri/device-key-registration/interfaces"
)

// PresenceFunc adapts a function to interfaces.PresenceChecker.
type PresenceFunc func(ctx context.Context, reason string) error

func (f PresenceFunc) ConfirmPresence(ctx context.Context, reason string) error {
	return f(ctx, reason)
}

// AlwaysPresent confirms immediately unless ctx is already done.
var AlwaysPresent = PresenceFunc(func(ctx context.Context, reason string) error {
	return ctx.Err()
})

// TerminalPresence asks for confirmation on a terminal. Any answer other
// than "y" or "yes" cancels.
//
// One goroutine owns the reader. Lines typed before the first prompt are
// queued for it, while lines typed after a prompt was abandoned are dropped
// so a late answer never confirms the next prompt.
type TerminalPresence struct {
	in  *bufio.Reader
	out io.Writer

	start sync.Once

	mu        sync.Mutex
	queued    []string
	waiting   chan terminalLine
	abandoned bool
	readErr   error
}

type terminalLine struct {
	line string
	err  error
}

// NewTerminalPresence creates a checker reading answers from in.
func NewTerminalPresence(in io.Reader, out io.Writer) *TerminalPresence {
	return &TerminalPresence{in: bufio.NewReader(in), out: out}
}

func (t *TerminalPresence) readLines() {
	for {
		line, err := t.in.ReadString('\n')

		t.mu.Lock()
		if line != "" {
			switch {
			case t.waiting != nil:
				t.waiting <- terminalLine{line: line}
				t.waiting = nil
			case !t.abandoned:
				t.queued = append(t.queued, line)
			}
		}
		if err != nil {
			t.readErr = err
			if t.waiting != nil {
				t.waiting <- terminalLine{err: err}
				t.waiting = nil
			}
		}
		t.mu.Unlock()

		if err != nil {
			return
		}
	}
}

// await registers the caller for the next line or returns one already
// available.
func (t *TerminalPresence) await() (chan terminalLine, *terminalLine) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.abandoned = false
	if len(t.queued) > 0 {
		line := t.queued[0]
		t.queued = t.queued[1:]
		return nil, &terminalLine{line: line}
	}
	if t.readErr != nil {
		return nil, &terminalLine{err: t.readErr}
	}
	t.waiting = make(chan terminalLine, 1)
	return t.waiting, nil
}

func (t *TerminalPresence) abandon(waiting chan terminalLine) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.waiting == waiting {
		t.waiting = nil
	}
	t.abandoned = true
}

func (t *TerminalPresence) ConfirmPresence(ctx context.Context, reason string) error {
	t.start.Do(func() { go t.readLines() })

	waiting, ready := t.await()
	fmt.Fprintf(t.out, "%s [y/N]: ", reason)

	if ready == nil {
		select {
		case <-ctx.Done():
			t.abandon(waiting)
			fmt.Fprintln(t.out)
			return ctx.Err()
		case answer := <-waiting:
			ready = &answer
		}
	}

	if ready.err != nil {
		return fmt.Errorf("%w: %v", interfaces.ErrAuthenticationCancelled, ready.err)
	}
	switch strings.ToLower(strings.TrimSpace(ready.line)) {
	case "y", "yes":
		return nil
	default:
		return interfaces.ErrAuthenticationCancelled
	}
}
