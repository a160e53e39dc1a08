package session

import "strconv"

// AssignError is an error for an assignment whose target is not a valid
// variable name.
type AssignError struct {
	// Target is the text left of the =.
	Target string
	// Reason overrides the default description, if not empty.
	Reason string
}

func (err *AssignError) Error() string {
	if err.Reason != "" {
		return "cannot assign to " + strconv.Quote(err.Target) + ": " + err.Reason
	}
	return "invalid variable name: " + strconv.Quote(err.Target)
}

// CommandError is an error from a session command, e.g. an unknown
// conversion or a memory command with nothing to store.
type CommandError struct {
	// Command is the command that failed, if any.
	Command string
	// Reason describes the failure.
	Reason string
	// Err is the underlying error, if any.
	Err error
}

func (err *CommandError) Error() string {
	s := err.Reason
	if err.Command != "" {
		s = err.Command + ": " + s
	}
	if err.Err != nil {
		s += ": " + err.Err.Error()
	}
	return s
}

func (err *CommandError) Unwrap() error {
	return err.Err
}
