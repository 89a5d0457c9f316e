package sortedlist

import (
	"github.com/agilira/go-errors"
)

const (
	ErrCodeNilRegistry     errors.ErrorCode = "SORTEDLIST_NIL_REGISTRY"
	ErrCodeNilCompare      errors.ErrorCode = "SORTEDLIST_NIL_COMPARE"
	ErrCodeNilThreadHandle errors.ErrorCode = "SORTEDLIST_NIL_THREAD_HANDLE"
	ErrCodeNilNode         errors.ErrorCode = "SORTEDLIST_NIL_NODE"
)

func errNilRegistry() error {
	return errors.NewWithField(ErrCodeNilRegistry, "registry must not be nil", "operation", "NewList")
}

func errNilCompare() error {
	return errors.NewWithField(ErrCodeNilCompare, "compare function must not be nil", "operation", "NewList")
}

func errNilThreadHandle(op string) error {
	return errors.NewWithField(ErrCodeNilThreadHandle, "thread handle must not be nil", "operation", op)
}

func errNilNode(op string) error {
	return errors.NewWithField(ErrCodeNilNode, "node must not be nil", "operation", op)
}
