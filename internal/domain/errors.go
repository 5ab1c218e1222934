package domain

import (
	"errors"
	"fmt"
)

var (
	ErrNotFound                = errors.New("not found")
	ErrInvalidArgument         = errors.New("invalid argument")
	ErrInvalidSegment          = errors.New("invalid segment")
	ErrTripNotBookable         = errors.New("trip not bookable")
	ErrAlreadyExists           = errors.New("already exists")
	ErrInvalidTransition       = errors.New("invalid transition")
	ErrCodeGenerationExhausted = errors.New("ticket code generation exhausted")
	ErrHoldExpired             = errors.New("hold expired")

	// ErrSeatUnavailable is returned by hold stores; the coordinator turns it into ErrAlreadyExists.
	ErrSeatUnavailable = errors.New("seat unavailable")
	ErrSeatHeld        = fmt.Errorf("%w: active hold", ErrSeatUnavailable)
	ErrSeatSold        = fmt.Errorf("%w: sold hold", ErrSeatUnavailable)
)

// Error carries a human readable message for one of the sentinel kinds above.
// errors.Is(err, Kind) holds for every Error.
type Error struct {
	Kind error
	Msg  string
}

func (e *Error) Error() string {
	if e.Msg == "" {
		return e.Kind.Error()
	}
	return e.Msg
}

func (e *Error) Unwrap() error { return e.Kind }

func Errorf(kind error, format string, args ...any) error {
	return &Error{Kind: kind, Msg: fmt.Sprintf(format, args...)}
}

// NotFound builds the "<resource> not found" error used for collaborator lookups.
func NotFound(resource string) error {
	return &Error{Kind: ErrNotFound, Msg: resource + " not found"}
}

func AlreadyExists(format string, args ...any) error {
	return Errorf(ErrAlreadyExists, format, args...)
}

// IsBusiness reports whether err is one of the recoverable reservation outcomes
// rather than an infrastructure failure.
func IsBusiness(err error) bool {
	for _, kind := range []error{
		ErrNotFound,
		ErrInvalidArgument,
		ErrInvalidSegment,
		ErrTripNotBookable,
		ErrAlreadyExists,
		ErrInvalidTransition,
		ErrCodeGenerationExhausted,
		ErrHoldExpired,
		ErrSeatUnavailable,
	} {
		if errors.Is(err, kind) {
			return true
		}
	}
	return false
}
