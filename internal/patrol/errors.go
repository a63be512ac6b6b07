package patrol

import (
	"errors"
	"fmt"
)

// Kind identifies which remote operation failed.
type Kind int

const (
	OptimizationFailed Kind = iota + 1
	MapSaveFailed
	MapFetchFailed
	ResultSaveFailed
)

func (k Kind) String() string {
	switch k {
	case OptimizationFailed:
		return "OptimizationFailed"
	case MapSaveFailed:
		return "MapSaveFailed"
	case MapFetchFailed:
		return "MapFetchFailed"
	case ResultSaveFailed:
		return "ResultSaveFailed"
	}
	return fmt.Sprintf("Kind(%d)", int(k))
}

// Sentinels for errors.Is matching on an *Error's kind.
var (
	ErrOptimizationFailed = errors.New("optimization failed")
	ErrMapSaveFailed      = errors.New("map save failed")
	ErrMapFetchFailed     = errors.New("map fetch failed")
	ErrResultSaveFailed   = errors.New("result save failed")
)

// ErrPersistenceUnavailable is wrapped by CRUD failures on a backend without
// storage.
var ErrPersistenceUnavailable = errors.New("persistence is not available on the single-endpoint backend")

func (k Kind) sentinel() error {
	switch k {
	case OptimizationFailed:
		return ErrOptimizationFailed
	case MapSaveFailed:
		return ErrMapSaveFailed
	case MapFetchFailed:
		return ErrMapFetchFailed
	case ResultSaveFailed:
		return ErrResultSaveFailed
	}
	return nil
}

// Error is a failed call to the patrol service. Network failures, non-2xx
// responses and undecodable bodies all surface as an Error of the
// operation's Kind; Message is what the user is shown.
type Error struct {
	Kind    Kind
	Message string
	// Status is the HTTP status code, or 0 when no response was received.
	Status int
	Err    error
}

func (e *Error) Error() string {
	if e.Err != nil && e.Err.Error() != e.Message {
		return fmt.Sprintf("%s: %s: %v", e.Kind, e.Message, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Kind, e.Message)
}

func (e *Error) Unwrap() error { return e.Err }

// Is matches the sentinel for e.Kind.
func (e *Error) Is(target error) bool {
	s := e.Kind.sentinel()
	return s != nil && target == s
}

// UserMessage returns the text to present for err: the server-supplied or
// default message of a patrol *Error, or err.Error() otherwise.
func UserMessage(err error) string {
	var pe *Error
	if errors.As(err, &pe) {
		return pe.Message
	}
	return err.Error()
}
