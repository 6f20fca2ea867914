package fault

import (
	"errors"
	"strings"
)

// Kind is a stable fault category. It is comparable and implements error so
// it can be used directly as a sentinel with errors.Is.
type Kind string

func (k Kind) Error() string { return string(k) }

const (
	ResourceTaken   Kind = "resource_taken"
	BusTimeout      Kind = "bus_timeout"
	BusNack         Kind = "bus_nack"
	BusBusy         Kind = "bus_busy"
	CommandRejected Kind = "command_rejected"
	NotReady        Kind = "not_ready"
	InvalidConfig   Kind = "invalid_config"

	Unknown Kind = "error" // generic fallback
)

// Error keeps the operation and cause of a fault together with its kind.
type Error struct {
	Kind Kind
	Op   string
	Msg  string
	Err  error
}

func (e *Error) Error() string {
	var sb strings.Builder
	if e.Op != "" {
		sb.WriteString(e.Op)
		sb.WriteString(": ")
	}
	sb.WriteString(string(e.Kind))
	if e.Msg != "" {
		sb.WriteString(": ")
		sb.WriteString(e.Msg)
	}
	if e.Err != nil && e.Err != error(e.Kind) {
		sb.WriteString(": ")
		sb.WriteString(e.Err.Error())
	}
	return sb.String()
}

func (e *Error) Unwrap() error { return e.Err }

// Is matches a bare Kind against the kind of e.
func (e *Error) Is(target error) bool {
	k, ok := target.(Kind)
	return ok && k == e.Kind
}

// New returns a fault of the given kind without a cause.
func New(kind Kind, op, msg string) error {
	return &Error{Kind: kind, Op: op, Msg: msg}
}

// Wrap attaches kind and op to err. A nil err stays nil.
func Wrap(kind Kind, op string, err error) error {
	if err == nil {
		return nil
	}
	return &Error{Kind: kind, Op: op, Err: err}
}

// Of extracts the kind of err, the outermost one wins. It returns "" for a
// nil error and Unknown when no kind is attached.
func Of(err error) Kind {
	if err == nil {
		return ""
	}
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	var k Kind
	if errors.As(err, &k) {
		return k
	}
	return Unknown
}

// Op returns the operation of the outermost fault in err, if any.
func Op(err error) string {
	var e *Error
	if errors.As(err, &e) {
		return e.Op
	}
	return ""
}

// Classified reports whether err carries a kind.
func Classified(err error) bool {
	k := Of(err)
	return k != "" && k != Unknown
}
