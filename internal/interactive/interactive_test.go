package interactive

import (
	"bytes"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Ning0612/mirrorsync/internal/domain"
)

func keys(k byte, err error) func() (byte, error) {
	return func() (byte, error) { return k, err }
}

var interrupted = domain.RunOutcome{
	Class:   domain.OutcomeFatal,
	Code:    domain.CodeSignal,
	Message: "interrupted by signal",
}

func TestEnabled_NotATerminal(t *testing.T) {
	f, err := os.Create(filepath.Join(t.TempDir(), "stdin"))
	require.NoError(t, err)
	defer f.Close()

	s := New(f, &bytes.Buffer{})
	assert.False(t, s.Enabled())

	var nilSession *Session
	assert.False(t, nilSession.Enabled())
	assert.False(t, (&Session{}).Enabled())
}

func TestAfterRun_NotATerminal(t *testing.T) {
	f, err := os.Create(filepath.Join(t.TempDir(), "stdin"))
	require.NoError(t, err)
	defer f.Close()

	out := &bytes.Buffer{}
	s := New(f, out)
	s.readKey = func() (byte, error) {
		t.Fatal("must not read without a terminal")
		return 0, nil
	}

	assert.Equal(t, ActionNone, s.AfterRun(interrupted))
	assert.Empty(t, out.String())
}

func TestDecide(t *testing.T) {
	tests := []struct {
		name    string
		outcome domain.RunOutcome
		key     byte
		keyErr  error
		want    Action
		prompt  string
	}{
		{"resume", interrupted, 'r', nil, ActionResume, "Press r to resume"},
		{"resume upper", interrupted, 'R', nil, ActionResume, "Press r to resume"},
		{"decline", interrupted, 'q', nil, ActionQuit, "Press r to resume"},
		{"read error", interrupted, 0, errors.New("eof"), ActionQuit, "Press r to resume"},
		{"success", domain.RunOutcome{Class: domain.OutcomeSuccess}, 'r', nil, ActionNone, "sync succeeded"},
		{"fatal io", domain.RunOutcome{Class: domain.OutcomeFatal, Code: domain.CodeFileIO, Message: "boom"}, 'r', nil, ActionNone, "Press any key"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			out := &bytes.Buffer{}
			s := &Session{Out: out, readKey: keys(tt.key, tt.keyErr)}
			assert.Equal(t, tt.want, s.decide(tt.outcome))
			assert.Contains(t, out.String(), tt.prompt)
		})
	}
}

func TestAction_String(t *testing.T) {
	assert.Equal(t, "none", ActionNone.String())
	assert.Equal(t, "resume", ActionResume.String())
	assert.Equal(t, "quit", ActionQuit.String())
}
