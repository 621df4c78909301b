package graph

import (
	"errors"
	"fmt"
)

// Every failed command wraps exactly one of these.
var (
	ErrDuplicateID                 = errors.New("duplicate id")
	ErrNotFound                    = errors.New("not found")
	ErrIncompatibleMedia           = errors.New("incompatible media")
	ErrInvalidConfig               = errors.New("invalid config")
	ErrInvalidSchedulePrecondition = errors.New("invalid schedule precondition")
	ErrInvalidControlTarget        = errors.New("invalid control target")
	ErrMalformedInput              = errors.New("malformed input")
	ErrPipelineConstructionFailed  = errors.New("pipeline construction failed")
)

func errorf(kind error, format string, args ...any) error {
	return fmt.Errorf("%w: %s", kind, fmt.Sprintf(format, args...))
}

func wrap(kind, err error) error {
	return fmt.Errorf("%w: %v", kind, err)
}
