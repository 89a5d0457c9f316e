package hazard

import (
	"github.com/agilira/go-errors"
)

// Error codes returned by this package's operations. They are attached to
// the ERROR branch of an operation's result so callers that want structured
// diagnostics can inspect them; the typed return values remain the primary
// control-flow signal.
const (
	ErrCodeNilRegistry     errors.ErrorCode = "HAZARD_NIL_REGISTRY"
	ErrCodeNilThreadHandle errors.ErrorCode = "HAZARD_NIL_THREAD_HANDLE"
	ErrCodeNilPointer      errors.ErrorCode = "HAZARD_NIL_POINTER"
	ErrCodeNilDestructor   errors.ErrorCode = "HAZARD_NIL_DESTRUCTOR"
	ErrCodeThreadInactive  errors.ErrorCode = "HAZARD_THREAD_INACTIVE"
)

func errNilRegistry() error {
	return errors.NewWithField(ErrCodeNilRegistry, "registry must not be nil", "operation", "Close")
}

func errNilThreadHandle(op string) error {
	return errors.NewWithField(ErrCodeNilThreadHandle, "thread handle must not be nil", "operation", op)
}

func errNilDestructor(op string) error {
	return errors.NewWithField(ErrCodeNilDestructor, "retire destructor must not be nil", "operation", op)
}

func errNilPointer(op string) error {
	return errors.NewWithField(ErrCodeNilPointer, "retired pointer must not be nil", "operation", op)
}

func errThreadInactive(op string) error {
	return errors.NewWithField(ErrCodeThreadInactive, "thread handle is unregistered", "operation", op)
}
