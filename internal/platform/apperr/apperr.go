// Package apperr is the error taxonomy shared by jobs, the process bridge, the event bus and the
// generation pipeline. Each kind is a concrete type so callers classify with errors.As; KindOf
// gives a stable string for logs and job rows.
package apperr

import (
	"errors"
	"fmt"
	"net/http"
	"strings"
)

type Kind string

const (
	KindValidation       Kind = "validation"
	KindAgentProcess     Kind = "agent_process"
	KindProtocol         Kind = "protocol"
	KindExternalProvider Kind = "external_provider"
	KindPersistence      Kind = "persistence"
	KindUnknown          Kind = "unknown"
)

// ValidationError is malformed input detected before any process or job is dispatched. Never retried.
type ValidationError struct {
	Field  string
	Reason string
}

func (e *ValidationError) Error() string {
	if e.Field == "" {
		return "validation: " + e.Reason
	}
	return fmt.Sprintf("validation: %s: %s", e.Field, e.Reason)
}

func Validation(field, reason string) error {
	return &ValidationError{Field: field, Reason: reason}
}

// AgentProcessError is a non-zero exit or a timeout of an agent process.
type AgentProcessError struct {
	Agent    string
	ExitCode int
	TimedOut bool
	Stderr   string
	Err      error
}

func (e *AgentProcessError) Error() string {
	var b strings.Builder
	fmt.Fprintf(&b, "agent %s", e.Agent)
	if e.TimedOut {
		b.WriteString(" timed out")
	} else {
		fmt.Fprintf(&b, " exited with code %d", e.ExitCode)
	}
	if tail := strings.TrimSpace(e.Stderr); tail != "" {
		b.WriteString(": ")
		b.WriteString(tail)
	} else if e.Err != nil {
		b.WriteString(": ")
		b.WriteString(e.Err.Error())
	}
	return b.String()
}

func (e *AgentProcessError) Unwrap() error { return e.Err }

// ProtocolError is a clean agent exit whose output carried no parseable result.
// RawOutput is kept so callers can degrade to a raw-output fallback.
type ProtocolError struct {
	Agent     string
	RawOutput string
	Err       error
}

func (e *ProtocolError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("agent %s: malformed result: %v", e.Agent, e.Err)
	}
	return fmt.Sprintf("agent %s: missing result", e.Agent)
}

func (e *ProtocolError) Unwrap() error { return e.Err }

// ExternalProviderError is a failure of an LLM or third-party API.
type ExternalProviderError struct {
	Provider   string
	StatusCode int
	Err        error
}

func (e *ExternalProviderError) Error() string {
	if e.StatusCode != 0 {
		return fmt.Sprintf("provider %s (http %d): %v", e.Provider, e.StatusCode, e.Err)
	}
	return fmt.Sprintf("provider %s: %v", e.Provider, e.Err)
}

func (e *ExternalProviderError) Unwrap() error { return e.Err }

func (e *ExternalProviderError) HTTPStatusCode() int { return e.StatusCode }

func Provider(provider string, err error) error {
	if err == nil {
		return nil
	}
	var pe *ExternalProviderError
	if errors.As(err, &pe) {
		return err
	}
	return &ExternalProviderError{Provider: provider, Err: err}
}

// PersistenceError is a durable queue or consumer failure. It never rolls back entity state.
type PersistenceError struct {
	Op  string
	Err error
}

func (e *PersistenceError) Error() string { return fmt.Sprintf("persistence %s: %v", e.Op, e.Err) }

func (e *PersistenceError) Unwrap() error { return e.Err }

func Persistence(op string, err error) error {
	if err == nil {
		return nil
	}
	return &PersistenceError{Op: op, Err: err}
}

func KindOf(err error) Kind {
	var (
		ve *ValidationError
		ae *AgentProcessError
		pe *ProtocolError
		xe *ExternalProviderError
		se *PersistenceError
	)
	switch {
	case err == nil:
		return ""
	case errors.As(err, &ve):
		return KindValidation
	case errors.As(err, &ae):
		return KindAgentProcess
	case errors.As(err, &pe):
		return KindProtocol
	case errors.As(err, &xe):
		return KindExternalProvider
	case errors.As(err, &se):
		return KindPersistence
	default:
		return KindUnknown
	}
}

// IsRetryable reports whether the job retry machinery should try again.
func IsRetryable(err error) bool {
	if err == nil {
		return false
	}
	return KindOf(err) != KindValidation
}

// HTTPStatus maps an error to the status the HTTP layer should answer with.
func HTTPStatus(err error) int {
	switch KindOf(err) {
	case KindValidation:
		return http.StatusBadRequest
	case KindExternalProvider, KindAgentProcess, KindProtocol:
		return http.StatusBadGateway
	case "":
		return http.StatusOK
	default:
		return http.StatusInternalServerError
	}
}
