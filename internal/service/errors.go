package service

import (
	"errors"
	"fmt"
	"strings"
)

var (
	// ErrInvalidTransition is returned when the action is unknown or not legal from the current status.
	ErrInvalidTransition = errors.New("invalid transition")
	// ErrUnauthorized is returned when the actor lacks the capability, ownership or assignment the action needs.
	ErrUnauthorized = errors.New("unauthorized")
	// ErrSelfAssignment is returned when the author would review or approve their own document.
	ErrSelfAssignment = errors.New("self assignment violation")
	// ErrMissingRequiredField is returned when the payload lacks a required field or carries an unusable value.
	ErrMissingRequiredField = errors.New("missing required field")
	// ErrDependencyBlocked is returned when obsolescence is requested while active dependents exist.
	ErrDependencyBlocked = errors.New("dependency blocked")
	// ErrConcurrentVersionInProgress is returned when another version of the family is in flight.
	ErrConcurrentVersionInProgress = errors.New("concurrent version in progress")
	// ErrStaleWrite is returned when the document changed between read and write. Retryable.
	ErrStaleWrite = errors.New("stale write")
	// ErrDocumentNotFound is returned when the document does not exist.
	ErrDocumentNotFound = errors.New("document not found")
	// ErrNoEffectiveVersion is returned when a family has no EFFECTIVE version.
	ErrNoEffectiveVersion = errors.New("no effective version")
	// ErrInvalidDependency is returned for self links and links to retired documents.
	ErrInvalidDependency = errors.New("invalid dependency")
	// ErrDependencyCycle is returned when a link would close a cycle.
	ErrDependencyCycle = errors.New("dependency cycle")
)

// WorkflowError is a refused operation. Kind is one of the sentinel errors
// above, so callers match it with errors.Is.
type WorkflowError struct {
	Op         string
	DocumentID string
	Kind       error
	Message    string
	// Fields names the offending payload fields of a MissingRequiredField error.
	Fields []string
	// Blocking lists the dependents of a DependencyBlocked error.
	Blocking []Dependent
	Err      error
}

func (e *WorkflowError) Error() string {
	var b strings.Builder
	b.WriteString(e.Op)
	if e.DocumentID != "" {
		b.WriteString(" ")
		b.WriteString(e.DocumentID)
	}
	b.WriteString(": ")
	b.WriteString(e.Kind.Error())
	if e.Message != "" {
		b.WriteString(": ")
		b.WriteString(e.Message)
	}
	if len(e.Fields) > 0 {
		fmt.Fprintf(&b, " [%s]", strings.Join(e.Fields, ", "))
	}
	if len(e.Blocking) > 0 {
		ids := make([]string, 0, len(e.Blocking))
		for _, d := range e.Blocking {
			ids = append(ids, d.String())
		}
		fmt.Fprintf(&b, " (blocked by %s)", strings.Join(ids, ", "))
	}
	if e.Err != nil {
		b.WriteString(": ")
		b.WriteString(e.Err.Error())
	}
	return b.String()
}

func (e *WorkflowError) Unwrap() []error {
	if e.Err == nil {
		return []error{e.Kind}
	}
	return []error{e.Kind, e.Err}
}

// IsRetryable reports whether err may succeed after reloading the document.
func IsRetryable(err error) bool {
	return errors.Is(err, ErrStaleWrite)
}

// KindOf returns a short label for the error kind, used in logs and metrics.
func KindOf(err error) string {
	var werr *WorkflowError
	if errors.As(err, &werr) {
		return strings.ReplaceAll(werr.Kind.Error(), " ", "_")
	}
	return "internal"
}

func refuse(op, documentID string, kind error, format string, args ...interface{}) *WorkflowError {
	return &WorkflowError{
		Op:         op,
		DocumentID: documentID,
		Kind:       kind,
		Message:    fmt.Sprintf(format, args...),
	}
}

func missingFields(op, documentID string, message string, fields ...string) *WorkflowError {
	return &WorkflowError{
		Op:         op,
		DocumentID: documentID,
		Kind:       ErrMissingRequiredField,
		Message:    message,
		Fields:     fields,
	}
}
