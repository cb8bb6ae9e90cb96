package domain

import "errors"

// RetriableError defines an interface for errors that can be retried
type RetriableError interface {
	error
	IsRetriable() bool
}

// IsRetriable checks if an error is retriable
func IsRetriable(err error) bool {
	var re RetriableError
	if errors.As(err, &re) {
		return re.IsRetriable()
	}
	return false
}

// NetworkError represents a transport-level failure
type NetworkError struct {
	Op        string // Operation that failed (e.g., "listen", "dial", "send")
	Err       error  // Underlying error
	Retriable bool   // Whether this error is retriable
}

func (e *NetworkError) Error() string {
	return e.Op + ": " + e.Err.Error()
}

func (e *NetworkError) IsRetriable() bool {
	return e.Retriable
}

func (e *NetworkError) Unwrap() error {
	return e.Err
}

// NewNetworkError creates a new retriable network error
func NewNetworkError(op string, err error) *NetworkError {
	return &NetworkError{Op: op, Err: err, Retriable: true}
}

// NewFatalNetworkError creates a non-retriable network error.
// Bind and listen failures are reported this way and abort startup.
func NewFatalNetworkError(op string, err error) *NetworkError {
	return &NetworkError{Op: op, Err: err, Retriable: false}
}

// ConfigError represents a configuration error (never retriable)
type ConfigError struct {
	Field string
	Err   error
}

func (e *ConfigError) Error() string {
	return "config error [" + e.Field + "]: " + e.Err.Error()
}

func (e *ConfigError) IsRetriable() bool {
	return false
}

func (e *ConfigError) Unwrap() error {
	return e.Err
}

// ProtocolError is a control-plane request that could not be accepted.
// Message is what the peer receives in the Error response.
type ProtocolError struct {
	Message string
	Err     error
}

func (e *ProtocolError) Error() string {
	if e.Err == nil {
		return "protocol error: " + e.Message
	}
	return "protocol error: " + e.Message + ": " + e.Err.Error()
}

func (e *ProtocolError) Unwrap() error {
	return e.Err
}

// NewProtocolError wraps err with the message reported in-band.
func NewProtocolError(msg string, err error) *ProtocolError {
	return &ProtocolError{Message: msg, Err: err}
}

// MsgUnsupportedCommand is the in-band message for a non-STREAM request.
const MsgUnsupportedCommand = "Unsupported command"

var (
	// ErrUnsupportedCommand is returned for any request kind other than STREAM.
	ErrUnsupportedCommand = errors.New("unsupported command")

	// ErrMalformedRequest is returned when a request cannot be decoded.
	ErrMalformedRequest = errors.New("malformed request")

	// ErrRequestTooLarge is returned when a request exceeds the read limit.
	ErrRequestTooLarge = errors.New("request too large")

	// ErrInvalidAddress is returned when the reply address is missing or invalid.
	ErrInvalidAddress = errors.New("invalid reply address")

	// ErrSubscriptionRejected is returned to a client whose request got an Error response.
	ErrSubscriptionRejected = errors.New("subscription rejected")

	// ErrConfigNotFound is returned when configuration file is missing
	ErrConfigNotFound = errors.New("configuration not found")
)
