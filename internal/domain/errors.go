package domain

import (
	"errors"
	"fmt"
)

// Category sentinels: wrap with NewSubSystemError for subsystem-specific codes.
var (
	ErrNotFound      = fmt.Errorf("not found")
	ErrTimeout       = fmt.Errorf("operation timed out")
	ErrInvalidInput  = fmt.Errorf("invalid input")
	ErrProviderError = fmt.Errorf("provider error")
	ErrAuthInvalid   = fmt.Errorf("authentication failed")
	ErrLimitReached  = fmt.Errorf("limit reached")
)

// Sentinel errors for the domain layer.
var (
	ErrConfigLoad = fmt.Errorf("failed to load configuration")
	ErrDecryption = fmt.Errorf("decryption failed")
	ErrEncryption = fmt.Errorf("encryption operation failed")

	// Provisioning / readiness errors.
	ErrMissingSessionID   = fmt.Errorf("creation response carried no session id")
	ErrProvisioningFailed = fmt.Errorf("sandbox provisioning failed")
	ErrBusy               = fmt.Errorf("a session is already being provisioned")
	ErrNothingToRetry     = fmt.Errorf("no previous create request to retry")

	// Terminal transport errors.
	ErrNotConnected = fmt.Errorf("terminal not connected")
	ErrStreamClosed = fmt.Errorf("terminal stream closed")
)

// DomainError wraps a sentinel error with context.
type DomainError struct {
	Op        string // operation name (e.g., "Transport.Submit")
	Err       error  // underlying sentinel or wrapped error
	Detail    string // human-readable detail
	SubSystem string // subsystem identifier (e.g., "backend", "terminal"); used for ErrorCode dispatch
}

func (e *DomainError) Error() string {
	if e.Detail != "" {
		return fmt.Sprintf("%s: %s: %s", e.Op, e.Detail, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Op, e.Err)
}

func (e *DomainError) Unwrap() error { return e.Err }

// NewDomainError creates a new DomainError.
func NewDomainError(op string, err error, detail string) *DomainError {
	return &DomainError{Op: op, Err: err, Detail: detail}
}

// NewSubSystemError creates a DomainError tagged with a subsystem for ErrorCode dispatch.
func NewSubSystemError(subsystem, op string, err error, detail string) *DomainError {
	return &DomainError{Op: op, Err: err, Detail: detail, SubSystem: subsystem}
}

// WrapOp adds operation context to an error using fmt.Errorf wrapping.
// Returns nil if err is nil, enabling idiomatic use: return domain.WrapOp("op", err)
func WrapOp(op string, err error) error {
	if err == nil {
		return nil
	}
	return fmt.Errorf("%s: %w", op, err)
}

// IsRetryableError reports whether err is a failure the caller may clear with an explicit retry.
func IsRetryableError(err error) bool {
	return errors.Is(err, ErrTimeout) || errors.Is(err, ErrProvisioningFailed) || errors.Is(err, ErrProviderError)
}

// ErrorCode is a machine-parseable error category for monitoring and alerting.
type ErrorCode string

const (
	CodeUnknown             ErrorCode = "UNKNOWN"
	CodeConfigLoad          ErrorCode = "CONFIG_LOAD"
	CodeEncryption          ErrorCode = "ENCRYPTION"
	CodeDecryption          ErrorCode = "DECRYPTION"
	CodeMissingSessionID    ErrorCode = "MISSING_SESSION_ID"
	CodeProvisioningFailed  ErrorCode = "PROVISIONING_FAILED"
	CodeBusy                ErrorCode = "BUSY"
	CodeNothingToRetry      ErrorCode = "NOTHING_TO_RETRY"
	CodeNotConnected        ErrorCode = "NOT_CONNECTED"
	CodeStreamClosed        ErrorCode = "STREAM_CLOSED"
	CodeReadinessTimeout    ErrorCode = "READINESS_TIMEOUT"
	CodeConnectTimeout      ErrorCode = "CONNECT_TIMEOUT"
	CodeSessionNotFound     ErrorCode = "SESSION_NOT_FOUND"
	CodeInvalidCommand      ErrorCode = "INVALID_COMMAND"
	CodeInvalidParams       ErrorCode = "INVALID_PARAMS"
	CodeBackendUnavailable  ErrorCode = "BACKEND_UNAVAILABLE"
	CodeReconnectExhausted  ErrorCode = "RECONNECT_EXHAUSTED"
	CodeTerminalAuthInvalid ErrorCode = "TERMINAL_AUTH_INVALID"

	// Category error codes, used when no subsystem-specific code matches.
	CodeNotFound      ErrorCode = "NOT_FOUND"
	CodeTimeout       ErrorCode = "TIMEOUT"
	CodeInvalidInput  ErrorCode = "INVALID_INPUT"
	CodeProviderError ErrorCode = "PROVIDER_ERROR"
	CodeAuthInvalid   ErrorCode = "AUTH_INVALID"
	CodeLimitReached  ErrorCode = "LIMIT_REACHED"
)

// errorCodeMap maps sentinel errors to their machine-parseable codes.
var errorCodeMap = map[error]ErrorCode{
	ErrNotFound:      CodeNotFound,
	ErrTimeout:       CodeTimeout,
	ErrInvalidInput:  CodeInvalidInput,
	ErrProviderError: CodeProviderError,
	ErrAuthInvalid:   CodeAuthInvalid,
	ErrLimitReached:  CodeLimitReached,

	ErrConfigLoad:         CodeConfigLoad,
	ErrDecryption:         CodeDecryption,
	ErrEncryption:         CodeEncryption,
	ErrMissingSessionID:   CodeMissingSessionID,
	ErrProvisioningFailed: CodeProvisioningFailed,
	ErrBusy:               CodeBusy,
	ErrNothingToRetry:     CodeNothingToRetry,
	ErrNotConnected:       CodeNotConnected,
	ErrStreamClosed:       CodeStreamClosed,
}

// subSystemCodeMap maps (category sentinel, subsystem) pairs to specific ErrorCodes.
var subSystemCodeMap = map[error]map[string]ErrorCode{
	ErrNotFound: {
		"backend": CodeSessionNotFound,
	},
	ErrTimeout: {
		"readiness": CodeReadinessTimeout,
		"terminal":  CodeConnectTimeout,
	},
	ErrInvalidInput: {
		"terminal":     CodeInvalidCommand,
		"orchestrator": CodeInvalidParams,
	},
	ErrProviderError: {
		"backend": CodeBackendUnavailable,
	},
	ErrLimitReached: {
		"terminal": CodeReconnectExhausted,
	},
	ErrAuthInvalid: {
		"terminal": CodeTerminalAuthInvalid,
	},
}

// ErrorCodeOf returns the machine-parseable error code for the given error.
// It unwraps DomainError and uses errors.Is to match sentinel errors.
// For DomainErrors with a SubSystem, it also checks the subSystemCodeMap
// to resolve category sentinels to specific codes.
// Returns CodeUnknown if no matching sentinel is found.
func ErrorCodeOf(err error) ErrorCode {
	if err == nil {
		return CodeUnknown
	}

	if code, ok := errorCodeMap[err]; ok {
		return code
	}

	var de *DomainError
	if errors.As(err, &de) {
		if code := de.Code(); code != CodeUnknown {
			return code
		}
	}

	// Specific sentinels first so a wrapped subsystem error never resolves to its category.
	for _, sentinel := range []error{
		ErrMissingSessionID, ErrProvisioningFailed, ErrBusy, ErrNothingToRetry,
		ErrNotConnected, ErrStreamClosed, ErrConfigLoad, ErrDecryption, ErrEncryption,
	} {
		if errors.Is(err, sentinel) {
			return errorCodeMap[sentinel]
		}
	}
	for sentinel, code := range errorCodeMap {
		if errors.Is(err, sentinel) {
			return code
		}
	}

	return CodeUnknown
}

// categorySentinels is the fixed lookup order for subsystem codes.
var categorySentinels = []error{
	ErrNotFound, ErrTimeout, ErrInvalidInput, ErrProviderError, ErrAuthInvalid, ErrLimitReached,
}

// Code returns the ErrorCode for this DomainError's underlying sentinel.
// If SubSystem is set, checks the subSystemCodeMap for a specific code.
func (e *DomainError) Code() ErrorCode {
	if e.SubSystem != "" {
		for _, sentinel := range categorySentinels {
			if !errors.Is(e.Err, sentinel) {
				continue
			}
			if code, ok := subSystemCodeMap[sentinel][e.SubSystem]; ok {
				return code
			}
		}
	}
	if code, ok := errorCodeMap[e.Err]; ok {
		return code
	}
	return CodeUnknown
}
