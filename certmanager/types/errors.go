package types

import (
	"github.com/pkg/errors"
)

var (
	ErrAlreadyExists         = errors.New("already exists")
	ErrInvalidIdentity       = errors.New("invalid identity")
	ErrCryptoOperationFailed = errors.New("crypto operation failed")
	ErrWrongPassword         = errors.New("wrong password or corrupted key")
	ErrNotFound              = errors.New("not found")
	ErrStorageIO             = errors.New("storage I/O error")
	ErrRevoked               = errors.New("certificate was revoked")
	ErrLocked                = errors.New("store is locked by another process")
	ErrIndexDisabled         = errors.New("certificate index is not configured")
)

// Classify wraps err so that errors.Is(result, kind) holds while keeping err's message and cause.
func Classify(kind error, err error, message string) error {
	if err == nil {
		return nil
	}
	return &classified{kind: kind, err: errors.Wrap(err, message)}
}

type classified struct {
	kind error
	err  error
}

func (e *classified) Error() string        { return e.err.Error() }
func (e *classified) Unwrap() error        { return e.err }
func (e *classified) Is(target error) bool { return target == e.kind }
