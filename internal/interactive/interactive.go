// Package interactive offers the terminal affordances around a finished
// run: resume after an interruption, or pause for a keypress before the
// window closes. The sync engine never calls it.
package interactive

import (
	"fmt"
	"io"
	"os"

	"github.com/mattn/go-isatty"
	"golang.org/x/term"

	"github.com/Ning0612/mirrorsync/internal/core/outcome"
	"github.com/Ning0612/mirrorsync/internal/domain"
)

// Action is what the operator chose after a run
type Action int

const (
	// ActionNone means there is nothing more to do
	ActionNone Action = iota
	// ActionResume asks the caller to start the same job again
	ActionResume
	// ActionQuit means the operator declined to resume
	ActionQuit
)

func (a Action) String() string {
	switch a {
	case ActionResume:
		return "resume"
	case ActionQuit:
		return "quit"
	default:
		return "none"
	}
}

// Session prompts on Out and reads single keys from In
type Session struct {
	In  *os.File
	Out io.Writer

	readKey func() (byte, error)
}

// New returns a session bound to the given terminal
func New(in *os.File, out io.Writer) *Session {
	s := &Session{In: in, Out: out}
	s.readKey = s.rawKey
	return s
}

// Enabled reports whether In is an interactive terminal
func (s *Session) Enabled() bool {
	if s == nil || s.In == nil {
		return false
	}
	fd := s.In.Fd()
	if !isatty.IsTerminal(fd) && !isatty.IsCygwinTerminal(fd) {
		return false
	}
	return term.IsTerminal(int(fd))
}

// AfterRun shows the outcome and waits for the operator. An interrupted
// run may be resumed with r; anything else just waits for a key.
// Without a terminal it returns ActionNone immediately.
func (s *Session) AfterRun(o domain.RunOutcome) Action {
	if !s.Enabled() {
		return ActionNone
	}
	return s.decide(o)
}

func (s *Session) decide(o domain.RunOutcome) Action {
	if o.Interrupted() {
		fmt.Fprintf(s.Out, "%s\nPress r to resume, any other key to exit. ", outcome.Describe(o))
		key, err := s.readKey()
		fmt.Fprintln(s.Out)
		if err != nil {
			return ActionQuit
		}
		if key == 'r' || key == 'R' {
			return ActionResume
		}
		return ActionQuit
	}

	fmt.Fprintf(s.Out, "%s\nPress any key to exit. ", outcome.Describe(o))
	_, _ = s.readKey()
	fmt.Fprintln(s.Out)
	return ActionNone
}

// rawKey reads one byte with the terminal in raw mode
func (s *Session) rawKey() (byte, error) {
	fd := int(s.In.Fd())
	old, err := term.MakeRaw(fd)
	if err != nil {
		return 0, fmt.Errorf("failed to enter raw mode: %w", err)
	}
	defer term.Restore(fd, old)

	var buf [1]byte
	if _, err := s.In.Read(buf[:]); err != nil {
		return 0, err
	}
	return buf[0], nil
}
