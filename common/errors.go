// Package common - error taxonomy shared by the annotation pipeline packages.
package common

import (
	"fmt"

	"github.com/pkg/errors"
)

// ErrPermissionDenied reports that the persistence collaborator refused to
// accept the finished asset. It is distinct from a failure: the temporary
// output file is preserved and its path reported to the caller.
var ErrPermissionDenied = errors.New("persistence permission denied")

// ErrBackpressureTimeout reports that the export path waited longer than the
// configured bound for the muxer to become ready. It escalates the session to
// Failed rather than dropping frames.
var ErrBackpressureTimeout = errors.New("muxer readiness wait exceeded bound")

// ConfigurationError is fatal to the session that raised it: no usable capture
// format, a muxer that cannot be constructed, or a source transform the
// orientation resolver refuses to interpret.
type ConfigurationError struct {
	Op  string
	Err error
}

func (e *ConfigurationError) Error() string {
	if e.Err == nil {
		return fmt.Sprintf("configuration: %s", e.Op)
	}
	return fmt.Sprintf("configuration: %s: %v", e.Op, e.Err)
}

func (e *ConfigurationError) Unwrap() error { return e.Err }

// Configf wraps err as a ConfigurationError for operation op.
func Configf(err error, op string, args ...interface{}) error {
	return &ConfigurationError{Op: fmt.Sprintf(op, args...), Err: err}
}

// IsConfiguration reports whether err is (or wraps) a ConfigurationError.
func IsConfiguration(err error) bool {
	var ce *ConfigurationError
	return errors.As(err, &ce)
}
