// Package mbuserr defines the tagged error taxonomy surfaced by the M-Bus
// core at its public API boundary.
package mbuserr

import "fmt"

// Kind identifies the category of a core error.
type Kind int

const (
	Other Kind = iota
	SerialPortError
	FrameParseError
	InvalidChecksum
	PrematureEndAtData
	UnknownDif
	UnknownVif
	UnknownVife
	VifTooLong
	InvalidHexString
	InvalidManufacturer
	InvalidManufacturerID
	DeviceDiscoveryError
)

func (k Kind) String() string {
	switch k {
	case SerialPortError:
		return "SerialPortError"
	case FrameParseError:
		return "FrameParseError"
	case InvalidChecksum:
		return "InvalidChecksum"
	case PrematureEndAtData:
		return "PrematureEndAtData"
	case UnknownDif:
		return "UnknownDif"
	case UnknownVif:
		return "UnknownVif"
	case UnknownVife:
		return "UnknownVife"
	case VifTooLong:
		return "VifTooLong"
	case InvalidHexString:
		return "InvalidHexString"
	case InvalidManufacturer:
		return "InvalidManufacturer"
	case InvalidManufacturerID:
		return "InvalidManufacturerID"
	case DeviceDiscoveryError:
		return "DeviceDiscoveryError"
	default:
		return "Other"
	}
}

// Error is the tagged-variant error type returned across the core's public
// API. It wraps an underlying cause (if any) and never substitutes zero
// values silently.
type Error struct {
	Kind    Kind
	Message string
	Cause   error
}

func (e *Error) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("%s: %s: %v", e.Kind, e.Message, e.Cause)
	}
	return fmt.Sprintf("%s: %s", e.Kind, e.Message)
}

func (e *Error) Unwrap() error { return e.Cause }

// Is reports whether target is an *Error with the same Kind, so callers can
// write errors.Is(err, mbuserr.New(mbuserr.FrameParseError, "")).
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	if !ok {
		return false
	}
	return t.Kind == e.Kind
}

// New builds an *Error with no wrapped cause.
func New(kind Kind, format string, args ...interface{}) *Error {
	return &Error{Kind: kind, Message: fmt.Sprintf(format, args...)}
}

// Wrap builds an *Error with an underlying cause.
func Wrap(kind Kind, cause error, format string, args ...interface{}) *Error {
	return &Error{Kind: kind, Message: fmt.Sprintf(format, args...), Cause: cause}
}

// Of reports the Kind that best describes a value with a specific kind, so
// callers can check the taxonomy without a type assertion:
//
//	if mbuserr.Of(err) == mbuserr.InvalidChecksum { ... }
func Of(err error) Kind {
	var e *Error
	for err != nil {
		if asErr, ok := err.(*Error); ok {
			e = asErr
			break
		}
		u, ok := err.(interface{ Unwrap() error })
		if !ok {
			break
		}
		err = u.Unwrap()
	}
	if e == nil {
		return Other
	}
	return e.Kind
}
