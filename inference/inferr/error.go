package inferr

import (
	"fmt"
	"runtime/debug"
	"strings"

	"github.com/pkg/errors"
)

// enableDebugErrorPrinting makes errors include the frame they were created in when printed
var enableDebugErrorPrinting = false

const enableDebugFullStacktrace bool = false

type ErrCode int

const (
	None          ErrCode = iota
	Contradiction ErrCode = iota
	Falsehood
	InvalidHierarchy
	Unsupported
	Exhausted
	Scenario
)

type InferenceError interface {
	Error() string
	Code() ErrCode

	withStack([]byte) InferenceError
	getStack() []byte
}

// SetDebugPrinting toggles including the creation site in FormatWithCode
func SetDebugPrinting(enabled bool) {
	enableDebugErrorPrinting = enabled
}

func FormatWithCode(e InferenceError) string {
	if enableDebugErrorPrinting && e.getStack() != nil {
		stack := string(e.getStack())
		if !enableDebugFullStacktrace {
			if lines := strings.Split(stack, "\n"); len(lines) > 6 {
				stack = strings.TrimSpace(lines[6])
			}
		}
		return fmt.Sprintf("%s:(E%03d) %s", stack, e.Code(), e.Error())
	}
	return fmt.Sprintf("(E%03d) %s", e.Code(), e.Error())
}

func New[E InferenceError](err E) InferenceError {
	return err.withStack(debug.Stack())
}

// CodeOf finds the code of the first InferenceError wrapped by err, or None
func CodeOf(err error) ErrCode {
	var inferenceErr InferenceError
	if errors.As(err, &inferenceErr) {
		return inferenceErr.Code()
	}
	return None
}

// Is reports whether err wraps an InferenceError with the given code
func Is(err error, code ErrCode) bool {
	return err != nil && CodeOf(err) == code
}

type Unclassified struct {
	From  error
	stack []byte
}

func (e Unclassified) Error() string {
	return fmt.Sprintf("unclassified error: %v", e.From)
}
func (e Unclassified) Code() ErrCode    { return None }
func (e Unclassified) Unwrap() error    { return e.From }
func (e Unclassified) getStack() []byte { return e.stack }
func (e Unclassified) withStack(stack []byte) InferenceError {
	e.stack = stack
	return e
}

// NewContradiction is raised when a bound or constraint formula reduces to false
type NewContradiction struct {
	Relation string
	First    fmt.Stringer
	Second   fmt.Stringer
	Reason   string
	stack    []byte
}

func (e NewContradiction) Error() string {
	msg := fmt.Sprintf("contradiction: '%v' %s '%v' cannot hold", e.First, e.Relation, e.Second)
	if e.Reason != "" {
		msg += ": " + e.Reason
	}
	return msg
}
func (e NewContradiction) Code() ErrCode    { return Contradiction }
func (e NewContradiction) getStack() []byte { return e.stack }
func (e NewContradiction) withStack(stack []byte) InferenceError {
	e.stack = stack
	return e
}

// NewFalsehood is raised when operating on a bound set which already contains false
type NewFalsehood struct {
	Bounds string
	stack  []byte
}

func (e NewFalsehood) Error() string {
	return fmt.Sprintf("bound set %s contains false", e.Bounds)
}
func (e NewFalsehood) Code() ErrCode    { return Falsehood }
func (e NewFalsehood) getStack() []byte { return e.stack }
func (e NewFalsehood) withStack(stack []byte) InferenceError {
	e.stack = stack
	return e
}

type NewInvalidHierarchy struct {
	Subtype   fmt.Stringer
	Supertype fmt.Stringer
	stack     []byte
}

func (e NewInvalidHierarchy) Error() string {
	return fmt.Sprintf("'%v' is not a subclass of '%v'", e.Subtype, e.Supertype)
}
func (e NewInvalidHierarchy) Code() ErrCode    { return InvalidHierarchy }
func (e NewInvalidHierarchy) getStack() []byte { return e.stack }
func (e NewInvalidHierarchy) withStack(stack []byte) InferenceError {
	e.stack = stack
	return e
}

type NewUnsupported struct {
	Feature string
	stack   []byte
}

func (e NewUnsupported) Error() string {
	return fmt.Sprintf("%s is not supported", e.Feature)
}
func (e NewUnsupported) Code() ErrCode    { return Unsupported }
func (e NewUnsupported) getStack() []byte { return e.stack }
func (e NewUnsupported) withStack(stack []byte) InferenceError {
	e.stack = stack
	return e
}

// NewExhausted is raised when incorporation does not reach a fixed point within its budget
type NewExhausted struct {
	Steps int
	stack []byte
}

func (e NewExhausted) Error() string {
	return fmt.Sprintf("bound incorporation did not converge after %d steps", e.Steps)
}
func (e NewExhausted) Code() ErrCode    { return Exhausted }
func (e NewExhausted) getStack() []byte { return e.stack }
func (e NewExhausted) withStack(stack []byte) InferenceError {
	e.stack = stack
	return e
}

type NewScenario struct {
	File    string
	Message string
	stack   []byte
}

func (e NewScenario) Error() string {
	if e.File == "" {
		return e.Message
	}
	return fmt.Sprintf("%s: %s", e.File, e.Message)
}
func (e NewScenario) Code() ErrCode    { return Scenario }
func (e NewScenario) getStack() []byte { return e.stack }
func (e NewScenario) withStack(stack []byte) InferenceError {
	e.stack = stack
	return e
}

// Failure is the panic value for broken internal invariants.
// These are programming errors, never the result of bad input
type Failure struct {
	Message string
	Stack   []byte
}

func (f Failure) Error() string {
	return "inference invariant violated: " + f.Message
}

// Fail panics with a Failure
func Fail(format string, args ...any) {
	panic(Failure{Message: fmt.Sprintf(format, args...), Stack: debug.Stack()})
}
