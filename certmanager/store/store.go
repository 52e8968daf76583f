package store

import (
	"context"
)

// Interface storage interface
//
// All state of a CA lives in one store: key and certificate pairs by name, the serial counter and
// the revocation list. It is not safe for concurrent use by multiple processes unless callers hold Lock.
type Interface interface {
	// Init creates the store directory if missing
	Init(ctx context.Context) error

	// Exists returns true if a key or a certificate exists for name
	Exists(ctx context.Context, name string) (bool, error)

	ReadKey(ctx context.Context, name string) ([]byte, error)
	// WriteKey never overwrites; returns ErrAlreadyExists if the key file exists
	WriteKey(ctx context.Context, name string, keyPEM []byte) error

	ReadCert(ctx context.Context, name string) ([]byte, error)
	// WriteCert never overwrites; returns ErrAlreadyExists if the certificate file exists
	WriteCert(ctx context.Context, name string, certPEM []byte) error

	// Remove deletes key and certificate of name
	Remove(ctx context.Context, name string) error

	// List returns names having a certificate
	List(ctx context.Context) ([]string, error)

	// NextSerial returns last issued serial + 1, does not persist
	NextSerial(ctx context.Context) (int64, error)
	// CommitSerial persist serial as the last issued serial
	CommitSerial(ctx context.Context, serial int64) error

	// ReadCRL returns ErrNotFound if no CRL was generated yet
	ReadCRL(ctx context.Context) ([]byte, error)
	WriteCRL(ctx context.Context, crlPEM []byte) error

	// Lock takes the advisory store lock, returns ErrLocked if it is held
	Lock(ctx context.Context) (unlock func() error, err error)
}
