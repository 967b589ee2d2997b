package data

import "errors"

var (
	ErrInvalidConfig    = errors.New("data: invalid config")
	ErrRootExists       = errors.New("data: root key already read")
	ErrRootNotFound     = errors.New("data: root key not found")
	ErrPathNotFound     = errors.New("data: path not found")
	ErrNotContainer     = errors.New("data: content at path is not an object or array")
	ErrEmptyItem        = errors.New("data: cannot set an empty object or array")
	ErrIndexOutOfRange  = errors.New("data: array index out of range")
	ErrMutableRoot      = errors.New("data: root is mutable and keeps no history")
	ErrNoSnapshot       = errors.New("data: no snapshot at offset")
	ErrMalformedBundle  = errors.New("data: malformed bundle")
	ErrStaleAccessor    = errors.New("data: accessor snapshot is no longer retained")
	ErrComputableTarget = errors.New("data: key is computable")
)
