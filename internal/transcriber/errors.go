package transcriber

import (
	"errors"
	"fmt"
)

// TransportError marks a failure to reach or configure the transcription service.
// Sessions treat it as non-fatal: they fall back to mock behaviour or report it.
type TransportError struct {
	Backend string
	Op      string
	Err     error
}

func (e *TransportError) Error() string {
	if e == nil || e.Err == nil {
		return "transcription transport error"
	}
	return fmt.Sprintf("%s %s: %v", e.Backend, e.Op, e.Err)
}

func (e *TransportError) Unwrap() error {
	if e == nil {
		return nil
	}
	return e.Err
}

func NewTransportError(backend, op string, err error) error {
	if err == nil {
		return nil
	}
	return &TransportError{Backend: backend, Op: op, Err: err}
}

func IsTransportError(err error) bool {
	var te *TransportError
	return errors.As(err, &te)
}

// ErrUnsupportedFormat is returned for uploads that are not recognizable audio
var ErrUnsupportedFormat = errors.New("unsupported file type")

// ErrNotStarted is returned when audio is sent before Start
var ErrNotStarted = errors.New("backend not started")
