// Package domain provides shared domain-level sentinel errors.
package domain

import "errors"

// Directory errors, surfaced by the management surface as client errors.
var (
	// ErrNotFound indicates the requested agent is not registered.
	ErrNotFound = errors.New("agent not found")

	// ErrAlreadyRegistered indicates the address is already in the directory.
	ErrAlreadyRegistered = errors.New("agent address already registered")

	// ErrCardResolution indicates the remote agent card could not be fetched
	// or parsed from the given address.
	ErrCardResolution = errors.New("agent card resolution failed")
)

// Delegation errors, caught at the router boundary and reported back to the
// decision engine instead of crashing the conversation.
var (
	// ErrAgentNotFound indicates the delegation target is not in the directory.
	ErrAgentNotFound = errors.New("delegation target not found")

	// ErrClientUnavailable indicates the target's connection handle is missing.
	ErrClientUnavailable = errors.New("remote client unavailable")

	// ErrTaskCanceled indicates the remote task was canceled by the remote agent.
	ErrTaskCanceled = errors.New("remote task canceled")

	// ErrTaskFailed indicates the remote task ended in the failed state.
	ErrTaskFailed = errors.New("remote task failed")

	// ErrTransport indicates a network, timeout, or malformed-response failure
	// while talking to a remote agent.
	ErrTransport = errors.New("remote transport error")
)

// Execution adapter errors.
var (
	// ErrUnexpectedState indicates structured turn content did not match the
	// expected {response:{result:[...]}} shape.
	ErrUnexpectedState = errors.New("unexpected state")

	// ErrUnsupportedOperation indicates the operation is not implemented by
	// this execution adapter (e.g. task cancellation).
	ErrUnsupportedOperation = errors.New("unsupported operation")
)
