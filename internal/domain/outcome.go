package domain

// Cause codes reported through the exit status. They follow rsync's
// numbering so operators can look them up in its documentation.
const (
	CodeOK       = 0
	CodeFileIO   = 11
	CodeSignal   = 20
	CodePartial  = 23
	CodeVanished = 24
	CodeTimeout  = 30
)

// Exit codes for failures detected before any transfer starts
const (
	ExitOK              = 0
	ExitConfig          = 1
	ExitSourceMissing   = 2
	ExitDestNotWritable = 3
)

// OutcomeClass is the terminal classification of a job
type OutcomeClass string

const (
	OutcomeSuccess      OutcomeClass = "success"
	OutcomeWithWarnings OutcomeClass = "success-with-warnings"
	OutcomeFatal        OutcomeClass = "fatal"
	OutcomeNoop         OutcomeClass = "no-op"
)

// RunOutcome is derived once at the end of a run and never mutated
type RunOutcome struct {
	Class    OutcomeClass
	Code     int
	Message  string
	Warnings []Warning
	Err      error
}

// OK reports whether the outcome maps to a successful exit disposition
func (o RunOutcome) OK() bool {
	return o.Class != OutcomeFatal
}

// ExitCode returns the process exit status for the outcome
func (o RunOutcome) ExitCode() int {
	if o.Class == OutcomeFatal {
		return o.Code
	}
	return ExitOK
}

// Interrupted reports whether the run was stopped by a signal
func (o RunOutcome) Interrupted() bool {
	return o.Class == OutcomeFatal && o.Code == CodeSignal
}
