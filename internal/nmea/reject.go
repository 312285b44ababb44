package nmea

import (
	"errors"
	"fmt"
)

// Reason classifies why a line did not produce a Coordinate.
type Reason int

const (
	NotGGASentence Reason = iota
	TooShort
	ConversionError
	DecodeError
	LineTooLong
	OutOfRange

	numReasons
)

var reasonNames = [numReasons]string{
	NotGGASentence:  "not_gga",
	TooShort:        "too_short",
	ConversionError: "conversion_error",
	DecodeError:     "decode_error",
	LineTooLong:     "line_too_long",
	OutOfRange:      "out_of_range",
}

// Reasons lists every rejection reason in declaration order.
func Reasons() []Reason {
	out := make([]Reason, 0, numReasons)
	for r := Reason(0); r < numReasons; r++ {
		out = append(out, r)
	}
	return out
}

// String returns the snake_case name used in logs and metric labels.
func (r Reason) String() string {
	if r < 0 || r >= numReasons {
		return fmt.Sprintf("reason(%d)", int(r))
	}
	return reasonNames[r]
}

var (
	ErrNotGGA      = errors.New("nmea: not a GGA sentence")
	ErrTooShort    = errors.New("nmea: sentence too short")
	ErrConversion  = errors.New("nmea: coordinate conversion failed")
	ErrDecode      = errors.New("nmea: line is not valid utf-8")
	ErrLineTooLong = errors.New("nmea: line too long")
	ErrOutOfRange  = errors.New("nmea: coordinate out of range")
)

var reasonErrs = [numReasons]error{
	NotGGASentence:  ErrNotGGA,
	TooShort:        ErrTooShort,
	ConversionError: ErrConversion,
	DecodeError:     ErrDecode,
	LineTooLong:     ErrLineTooLong,
	OutOfRange:      ErrOutOfRange,
}

// RejectError reports a line that was skipped. It is never fatal.
type RejectError struct {
	Reason Reason
	// Line is the offending line (possibly truncated to the sentence window).
	Line string
	// Field names the coordinate field for ConversionError/OutOfRange.
	Field string
	Err   error
}

func (e *RejectError) Error() string {
	msg := e.sentinel().Error()
	if e.Field != "" {
		msg += " field=" + e.Field
	}
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	return msg
}

func (e *RejectError) Unwrap() error { return e.Err }

// Is matches the sentinel error for the rejection reason.
func (e *RejectError) Is(target error) bool {
	return target == e.sentinel()
}

func (e *RejectError) sentinel() error {
	if e.Reason < 0 || e.Reason >= numReasons {
		return errors.New("nmea: rejected")
	}
	return reasonErrs[e.Reason]
}

// AsReject extracts a *RejectError from err.
func AsReject(err error) (*RejectError, bool) {
	var re *RejectError
	if errors.As(err, &re) {
		return re, true
	}
	return nil, false
}
