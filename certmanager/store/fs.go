package store

import (
	"context"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"

	"github.com/hashicorp/go-multierror"
	"github.com/pkg/errors"
	"github.com/spf13/afero"
	"github.com/whitekid/goxp/log"

	"fsca/certmanager/types"
)

const (
	KeyExt  = ".key"
	CertExt = ".crt"

	lockFile = ".lock"
	tmpExt   = ".tmp"

	keyPerm  = 0o600
	certPerm = 0o644
	dirPerm  = 0o700
)

type fileStoreImpl struct {
	fs         afero.Fs
	dir        string
	serialFile string
	crlFile    string
}

var _ Interface = (*fileStoreImpl)(nil)

type Option func(*fileStoreImpl)

func WithSerialFile(name string) Option { return func(f *fileStoreImpl) { f.serialFile = name } }
func WithCRLFile(name string) Option    { return func(f *fileStoreImpl) { f.crlFile = name } }

// File create file store rooted at dir. Use afero.NewOsFs() for the real filesystem.
func File(fsys afero.Fs, dir string, opts ...Option) Interface {
	f := &fileStoreImpl{
		fs:         fsys,
		dir:        dir,
		serialFile: "serial",
		crlFile:    "crl.pem",
	}

	for _, opt := range opts {
		opt(f)
	}

	return f
}

func (f *fileStoreImpl) path(name string) string { return filepath.Join(f.dir, name) }

func (f *fileStoreImpl) namePath(name, ext string) (string, error) {
	if name == "" || strings.ContainsAny(name, `/\`) || name == "." || name == ".." {
		return "", errors.Wrapf(types.ErrInvalidIdentity, "invalid name %q", name)
	}
	return f.path(name + ext), nil
}

func (f *fileStoreImpl) Init(ctx context.Context) error {
	exists, err := afero.DirExists(f.fs, f.dir)
	if err != nil {
		return types.Classify(types.ErrStorageIO, err, "fail to init store")
	}

	if exists {
		log.Debugf("store directory %s exists", f.dir)
		return nil
	}

	if err := f.fs.MkdirAll(f.dir, dirPerm); err != nil {
		return types.Classify(types.ErrStorageIO, err, "fail to init store")
	}
	log.Infof("Created directory: %s", f.dir)

	return nil
}

func (f *fileStoreImpl) Exists(ctx context.Context, name string) (bool, error) {
	for _, ext := range []string{KeyExt, CertExt} {
		p, err := f.namePath(name, ext)
		if err != nil {
			return false, err
		}

		exists, err := afero.Exists(f.fs, p)
		if err != nil {
			return false, types.Classify(types.ErrStorageIO, err, "fail to check "+p)
		}

		if exists {
			return true, nil
		}
	}

	return false, nil
}

func (f *fileStoreImpl) ReadKey(ctx context.Context, name string) ([]byte, error) {
	return f.readNamed(name, KeyExt)
}

func (f *fileStoreImpl) WriteKey(ctx context.Context, name string, keyPEM []byte) error {
	return f.writeNamed(name, KeyExt, keyPEM, keyPerm)
}

func (f *fileStoreImpl) ReadCert(ctx context.Context, name string) ([]byte, error) {
	return f.readNamed(name, CertExt)
}

func (f *fileStoreImpl) WriteCert(ctx context.Context, name string, certPEM []byte) error {
	return f.writeNamed(name, CertExt, certPEM, certPerm)
}

func (f *fileStoreImpl) Remove(ctx context.Context, name string) (err error) {
	for _, ext := range []string{CertExt, KeyExt} {
		p, perr := f.namePath(name, ext)
		if perr != nil {
			return perr
		}

		log.Debugf("remove %s", p)
		if rerr := f.fs.Remove(p); rerr != nil && !errors.Is(rerr, fs.ErrNotExist) {
			err = multierror.Append(err, types.Classify(types.ErrStorageIO, rerr, "fail to remove "+p))
		}
	}

	return err
}

func (f *fileStoreImpl) List(ctx context.Context) ([]string, error) {
	entries, err := afero.ReadDir(f.fs, f.dir)
	if err != nil {
		return nil, types.Classify(types.ErrStorageIO, err, "fail to list store")
	}

	names := []string{}
	for _, entry := range entries {
		if entry.IsDir() || !strings.HasSuffix(entry.Name(), CertExt) {
			continue
		}
		names = append(names, strings.TrimSuffix(entry.Name(), CertExt))
	}
	sort.Strings(names)

	return names, nil
}

func (f *fileStoreImpl) NextSerial(ctx context.Context) (int64, error) {
	data, err := f.readFile(f.path(f.serialFile))
	if errors.Is(err, types.ErrNotFound) {
		return 1, nil
	}
	if err != nil {
		return 0, err
	}

	current, err := strconv.ParseInt(strings.TrimSpace(string(data)), 10, 64)
	if err != nil || current < 0 {
		return 0, errors.Wrapf(types.ErrStorageIO, "invalid serial file %s: %q", f.serialFile, data)
	}

	return current + 1, nil
}

func (f *fileStoreImpl) CommitSerial(ctx context.Context, serial int64) error {
	log.Debugf("commit serial %d", serial)
	return f.writeAtomic(f.path(f.serialFile), []byte(strconv.FormatInt(serial, 10)+"\n"), certPerm)
}

func (f *fileStoreImpl) ReadCRL(ctx context.Context) ([]byte, error) {
	return f.readFile(f.path(f.crlFile))
}

func (f *fileStoreImpl) WriteCRL(ctx context.Context, crlPEM []byte) error {
	return f.writeAtomic(f.path(f.crlFile), crlPEM, certPerm)
}

func (f *fileStoreImpl) Lock(ctx context.Context) (func() error, error) {
	p := f.path(lockFile)

	file, err := f.fs.OpenFile(p, os.O_WRONLY|os.O_CREATE|os.O_EXCL, keyPerm)
	if err != nil {
		if errors.Is(err, fs.ErrExist) {
			return nil, errors.Wrapf(types.ErrLocked, "remove %s if no other process is running", p)
		}
		return nil, types.Classify(types.ErrStorageIO, err, "fail to lock store")
	}
	defer file.Close()

	if _, err := fmt.Fprintf(file, "%d\n", os.Getpid()); err != nil {
		f.fs.Remove(p)
		return nil, types.Classify(types.ErrStorageIO, err, "fail to lock store")
	}

	return func() error {
		if err := f.fs.Remove(p); err != nil && !errors.Is(err, fs.ErrNotExist) {
			return types.Classify(types.ErrStorageIO, err, "fail to unlock store")
		}
		return nil
	}, nil
}

func (f *fileStoreImpl) readNamed(name, ext string) ([]byte, error) {
	p, err := f.namePath(name, ext)
	if err != nil {
		return nil, err
	}
	return f.readFile(p)
}

func (f *fileStoreImpl) readFile(p string) ([]byte, error) {
	log.Debugf("read file %s", p)

	data, err := afero.ReadFile(f.fs, p)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, errors.Wrapf(types.ErrNotFound, "%s", p)
		}
		return nil, types.Classify(types.ErrStorageIO, err, "fail to read "+p)
	}

	return data, nil
}

// writeNamed create new file, never overwrite
func (f *fileStoreImpl) writeNamed(name, ext string, data []byte, perm os.FileMode) error {
	p, err := f.namePath(name, ext)
	if err != nil {
		return err
	}

	log.Debugf("write file %s", p)
	file, err := f.fs.OpenFile(p, os.O_WRONLY|os.O_CREATE|os.O_EXCL, perm)
	if err != nil {
		if errors.Is(err, fs.ErrExist) {
			return errors.Wrapf(types.ErrAlreadyExists, "%s already exists", p)
		}
		return types.Classify(types.ErrStorageIO, err, "fail to create "+p)
	}

	if _, err := file.Write(data); err != nil {
		file.Close()
		return types.Classify(types.ErrStorageIO, err, "fail to write "+p)
	}

	if err := file.Close(); err != nil {
		return types.Classify(types.ErrStorageIO, err, "fail to write "+p)
	}

	return nil
}

// writeAtomic replace file content through a temporary file and rename
func (f *fileStoreImpl) writeAtomic(p string, data []byte, perm os.FileMode) error {
	log.Debugf("write file %s", p)

	tmp := p + tmpExt
	if err := afero.WriteFile(f.fs, tmp, data, perm); err != nil {
		f.fs.Remove(tmp)
		return types.Classify(types.ErrStorageIO, err, "fail to write "+p)
	}

	if err := f.fs.Rename(tmp, p); err != nil {
		f.fs.Remove(tmp)
		return types.Classify(types.ErrStorageIO, err, "fail to write "+p)
	}

	return nil
}
