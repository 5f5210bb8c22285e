// Package uxerror translates raw errors into user-friendly messages with
// recovery hints for the TUI.
package uxerror

import (
	"errors"
	"fmt"
	"strings"

	"sandbox-term/internal/adapter/tui/theme"
	"sandbox-term/internal/domain"
)

// FriendlyError is a user-facing error with suggestions for recovery.
type FriendlyError struct {
	Title   string   // short heading, e.g. "Connection Refused"
	Message string   // one-liner explanation
	Hints   []string // actionable recovery suggestions
	Raw     string   // original error text (for debug)
}

// Render formats the FriendlyError for display.
func (fe FriendlyError) Render() string {
	var sb strings.Builder
	sb.WriteString(fe.Title)
	if fe.Message != "" {
		sb.WriteString("\n  ")
		sb.WriteString(fe.Message)
	}
	if len(fe.Hints) > 0 {
		sb.WriteString("\n  Suggestions:")
		for _, h := range fe.Hints {
			sb.WriteString(fmt.Sprintf("\n    %s %s", theme.SymbolBullet, h))
		}
	}
	return sb.String()
}

type errorPattern struct {
	match   func(err error) bool
	produce func(err error) FriendlyError
}

var patterns = []errorPattern{
	// Domain sentinel errors (checked first so errors.Is works through wrapping).
	{
		match: isErr(domain.ErrProvisioningFailed),
		produce: func(err error) FriendlyError {
			return FriendlyError{
				Title:   "Sandbox Provisioning Failed",
				Message: lastSegment(err),
				Hints:   []string{"Press Ctrl+R to retry", "Check the template and workspace settings"},
				Raw:     err.Error(),
			}
		},
	},
	{
		match:   subsystemErr("readiness", domain.ErrTimeout),
		produce: constantError("Sandbox Not Ready", "The sandbox did not become ready before the deadline.", []string{"Press Ctrl+R to retry", "Increase readiness.deadline in config"}),
	},
	{
		match:   isErr(domain.ErrMissingSessionID),
		produce: constantError("Unexpected Backend Response", "The backend accepted the request but returned no session id.", []string{"Press Ctrl+R to retry", "Check the backend version"}),
	},
	{
		match:   isErr(domain.ErrBusy),
		produce: constantError("Provisioning In Progress", "A sandbox is already being provisioned.", []string{"Wait for it to finish", "Press Esc to cancel it"}),
	},
	{
		match:   isErr(domain.ErrNotConnected),
		produce: constantError("Terminal Not Connected", "The command was not sent.", []string{"Wait for the terminal to reconnect"}),
	},
	{
		match:   isErr(domain.ErrAuthInvalid),
		produce: constantError("Authentication Failed", "The bearer token was rejected or is missing.", []string{"Check auth.token, auth.token_env or auth.token_file", "Verify the token hasn't expired"}),
	},
	{
		match:   isErr(domain.ErrNotFound),
		produce: constantError("Session Not Found", "The backend does not know this session.", []string{"Check the session id", "Create a new sandbox"}),
	},
	{
		match:   isErr(domain.ErrInvalidInput),
		produce: func(err error) FriendlyError { return FriendlyError{Title: "Invalid Input", Message: lastSegment(err), Raw: err.Error()} },
	},

	// Network / connectivity patterns (string matching for external errors).
	{
		match:   containsAny("connection refused", "dial tcp", "no such host"),
		produce: constantError("Connection Failed", "Could not reach the sandbox backend.", []string{"Check your network connection", "Verify backend.base_url in config"}),
	},
	{
		match:   containsAny("deadline exceeded", "timeout", "timed out", "context deadline"),
		produce: constantError("Request Timed Out", "The backend took too long to respond.", []string{"Check your network connection", "Increase backend.request_timeout in config"}),
	},
	{
		match:   isErr(domain.ErrProviderError),
		produce: func(err error) FriendlyError {
			return FriendlyError{
				Title:   "Backend Error",
				Message: lastSegment(err),
				Hints:   []string{"Try again in a moment"},
				Raw:     err.Error(),
			}
		},
	},
}

// Humanize converts a raw error into a FriendlyError with recovery hints.
func Humanize(err error) FriendlyError {
	if err == nil {
		return FriendlyError{Title: "Unknown Error", Raw: "nil"}
	}

	for _, p := range patterns {
		if p.match(err) {
			return p.produce(err)
		}
	}

	return FriendlyError{
		Title:   "Unexpected Error",
		Message: err.Error(),
		Hints:   []string{"Try again", "Run with --log-level debug for more details"},
		Raw:     err.Error(),
	}
}

func isErr(target error) func(error) bool {
	return func(err error) bool { return errors.Is(err, target) }
}

func subsystemErr(subsystem string, target error) func(error) bool {
	return func(err error) bool {
		var de *domain.DomainError
		return errors.As(err, &de) && de.SubSystem == subsystem && errors.Is(err, target)
	}
}

// lastSegment returns the most specific part of a wrapped error message.
func lastSegment(err error) string {
	var de *domain.DomainError
	if errors.As(err, &de) && de.Detail != "" {
		return de.Detail
	}
	return err.Error()
}

// containsAny returns a match func that checks if the error string contains
// any of the given substrings (case-insensitive).
func containsAny(substrs ...string) func(error) bool {
	return func(err error) bool {
		lower := strings.ToLower(err.Error())
		for _, s := range substrs {
			if strings.Contains(lower, s) {
				return true
			}
		}
		return false
	}
}

// constantError returns a produce func that always returns the same FriendlyError.
func constantError(title, message string, hints []string) func(error) FriendlyError {
	return func(err error) FriendlyError {
		return FriendlyError{
			Title:   title,
			Message: message,
			Hints:   hints,
			Raw:     err.Error(),
		}
	}
}
