// Package errcode defines the error codes surfaced at the esch API boundary.
//
// A Code is itself an error, so packages wrap it with context and callers
// match it with errors.Is:
//
//	if errors.Is(err, errcode.ContainerFull) { ... }
package errcode

import (
	"errors"
	"fmt"
)

// Code identifies a class of failure.
type Code int

const (
	OK Code = iota
	NotImplemented
	OutOfMemory
	InvalidParameter
	InvalidState
	NotFound
	BadValueType
	OutOfBound
	NotSupported
	DeleteManagedObject
	GcRootMissing
	GcRootNotContainer
	ObjectUnexpectedGcAttached
	ContainerFull
)

var codeNames = [...]string{
	OK:                         "OK",
	NotImplemented:             "NotImplemented",
	OutOfMemory:                "OutOfMemory",
	InvalidParameter:           "InvalidParameter",
	InvalidState:               "InvalidState",
	NotFound:                   "NotFound",
	BadValueType:               "BadValueType",
	OutOfBound:                 "OutOfBound",
	NotSupported:               "NotSupported",
	DeleteManagedObject:        "DeleteManagedObject",
	GcRootMissing:              "GcRootMissing",
	GcRootNotContainer:         "GcRootNotContainer",
	ObjectUnexpectedGcAttached: "ObjectUnexpectedGcAttached",
	ContainerFull:              "ContainerFull",
}

// String returns the stable name of the code.
func (c Code) String() string {
	if c >= 0 && int(c) < len(codeNames) {
		return codeNames[c]
	}
	return fmt.Sprintf("Code(%d)", int(c))
}

// Error implements the error interface.
func (c Code) Error() string {
	return c.String()
}

// Of returns the code carried by err. A nil error is OK; an error that
// wraps no Code is reported as InvalidState.
func Of(err error) Code {
	if err == nil {
		return OK
	}
	var c Code
	if errors.As(err, &c) {
		return c
	}
	return InvalidState
}
