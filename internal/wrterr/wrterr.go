// Package wrterr implements the closed error taxonomy shared by every
// component of the runtime. Errors travel by return value only: nothing in
// this package or its callers unwinds via panic/recover across a package
// boundary.
package wrterr

import "fmt"

// Kind is the top-level category of an error, matching spec section 7.
type Kind uint8

const (
	KindParse Kind = iota
	KindValidation
	KindTrap
	KindResource
	KindCapability
	KindAsync
	KindPlatform
)

func (k Kind) String() string {
	switch k {
	case KindParse:
		return "parse"
	case KindValidation:
		return "validation"
	case KindTrap:
		return "trap"
	case KindResource:
		return "resource"
	case KindCapability:
		return "capability"
	case KindAsync:
		return "async"
	case KindPlatform:
		return "platform"
	default:
		return "unknown"
	}
}

// Fields carries the structured, optional context a caller may attach to an
// Error: a byte offset in the input, a function index, or a faulting memory
// address. Zero values mean "not applicable", not "zero".
type Fields struct {
	Offset       int64
	FunctionIdx  uint32
	PC           uint64
	MemoryAddr   uint64
	SourceLine   uint32
	HasSourceLine bool
}

// Error is the single concrete error type every component returns. Code is
// stable across releases; Message is human-readable and never parsed by
// callers.
type Error struct {
	Kind    Kind
	Code    uint32
	Message string
	Fields  Fields
	Wrapped error
}

func (e *Error) Error() string {
	if e.Wrapped != nil {
		return fmt.Sprintf("%s[%d]: %s: %v", e.Kind, e.Code, e.Message, e.Wrapped)
	}
	return fmt.Sprintf("%s[%d]: %s", e.Kind, e.Code, e.Message)
}

func (e *Error) Unwrap() error { return e.Wrapped }

// New constructs an Error with no wrapped cause.
func New(kind Kind, code uint32, message string) *Error {
	return &Error{Kind: kind, Code: code, Message: message}
}

// Wrap attaches cause to a new Error of the given kind/code.
func Wrap(kind Kind, code uint32, message string, cause error) *Error {
	return &Error{Kind: kind, Code: code, Message: message, Wrapped: cause}
}

// WithFields returns a copy of e carrying the given structured fields.
func (e *Error) WithFields(f Fields) *Error {
	cp := *e
	cp.Fields = f
	return &cp
}

// RecoveryPolicy names how a recovery manager should react to an error of a
// given category, per spec section 7. The default for all core execution
// errors is Abort; only parse/validation diagnostics and resource pressure
// may be configured otherwise.
type RecoveryPolicy uint8

const (
	PolicyAbort RecoveryPolicy = iota
	PolicySkip
	PolicyUseDefault
	PolicyRetry
	PolicyLogAndContinue
)

// RecoveryManager maps error Kinds to a RecoveryPolicy. The zero value
// aborts on everything, matching the spec's default.
type RecoveryManager struct {
	policies   map[Kind]RecoveryPolicy
	retryLimit map[Kind]int
}

// NewRecoveryManager returns a manager defaulting every kind to Abort.
func NewRecoveryManager() *RecoveryManager {
	return &RecoveryManager{
		policies:   make(map[Kind]RecoveryPolicy),
		retryLimit: make(map[Kind]int),
	}
}

// Configure sets the policy for kind. Only KindParse, KindValidation, and
// KindResource may be set to anything but PolicyAbort; for any other kind
// Configure returns a validation error and leaves the manager unchanged,
// since relaxing recovery for execution errors would violate the safety
// case documented in spec section 7.
func (r *RecoveryManager) Configure(kind Kind, policy RecoveryPolicy, retryLimit int) error {
	if policy != PolicyAbort {
		switch kind {
		case KindParse, KindValidation, KindResource:
		default:
			return New(KindValidation, 900, fmt.Sprintf("recovery policy %v is not permitted for kind %v", policy, kind))
		}
	}
	r.policies[kind] = policy
	r.retryLimit[kind] = retryLimit
	return nil
}

// PolicyFor returns the configured policy for kind, defaulting to Abort.
func (r *RecoveryManager) PolicyFor(kind Kind) RecoveryPolicy {
	if r == nil {
		return PolicyAbort
	}
	if p, ok := r.policies[kind]; ok {
		return p
	}
	return PolicyAbort
}

// Recover decides whether the operation that produced err should be retried,
// given the manager's configured policy and the number of attempts already
// made. It never inspects err beyond its Kind.
func (r *RecoveryManager) Recover(err *Error, attempt int) (retry bool) {
	policy := r.PolicyFor(err.Kind)
	switch policy {
	case PolicyRetry:
		limit := r.retryLimit[err.Kind]
		return attempt < limit
	default:
		return false
	}
}
