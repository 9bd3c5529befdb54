// Package fs implements ports.FileSystem on the local disk.
package fs

import (
	"errors"
	"fmt"
	"io"
	iofs "io/fs"
	"os"
	"path/filepath"

	"github.com/cespare/xxhash/v2"
	"go.trai.ch/kiln/internal/core/domain"
	"go.trai.ch/kiln/internal/core/ports"
	"go.trai.ch/zerr"
)

var _ ports.FileSystem = (*FileSystem)(nil)

// FileSystem resolves relative paths against Root.
type FileSystem struct {
	Root string
}

// New creates a FileSystem rooted at root. An empty root means the working directory.
func New(root string) *FileSystem {
	return &FileSystem{Root: root}
}

func (f *FileSystem) abs(path string) string {
	path = filepath.FromSlash(path)
	if f.Root == "" || filepath.IsAbs(path) {
		return path
	}
	return filepath.Join(f.Root, path)
}

// Stat reports existence and modification time. A missing path is not an error.
func (f *FileSystem) Stat(path string) (domain.FileStat, error) {
	info, err := os.Stat(f.abs(path))
	if err != nil {
		if errors.Is(err, iofs.ErrNotExist) {
			return domain.FileStat{}, nil
		}
		return domain.FileStat{}, zerr.With(zerr.Wrap(err, domain.ErrPathStatFailed.Error()), "path", path)
	}
	return domain.FileStat{Exists: true, ModTime: info.ModTime()}, nil
}

// Hash returns the xxhash of the file content as 16 hex digits.
func (f *FileSystem) Hash(path string) (string, error) {
	file, err := os.Open(f.abs(path)) //nolint:gosec // path is a task name chosen by the user
	if err != nil {
		return "", zerr.With(zerr.Wrap(err, domain.ErrFileOpenFailed.Error()), "path", path)
	}
	defer file.Close() //nolint:errcheck // read-only

	h := xxhash.New()
	if _, err := io.Copy(h, file); err != nil {
		return "", zerr.With(zerr.Wrap(err, domain.ErrFileHashFailed.Error()), "path", path)
	}
	return fmt.Sprintf("%016x", h.Sum64()), nil
}

// Open opens path for reading.
func (f *FileSystem) Open(path string) (io.ReadCloser, error) {
	file, err := os.Open(f.abs(path)) //nolint:gosec // path is a task name chosen by the user
	if err != nil {
		return nil, zerr.With(zerr.Wrap(err, domain.ErrFileOpenFailed.Error()), "path", path)
	}
	return file, nil
}

// WriteFile streams into a temporary sibling and renames it over path when write succeeds.
func (f *FileSystem) WriteFile(path string, write func(w io.Writer) error) error {
	dst := f.abs(path)
	dir := filepath.Dir(dst)
	if err := os.MkdirAll(dir, domain.DirPerm); err != nil {
		return zerr.With(zerr.Wrap(err, domain.ErrFileWriteFailed.Error()), "path", path)
	}

	tmp, err := os.CreateTemp(dir, "."+filepath.Base(dst)+".tmp-*")
	if err != nil {
		return zerr.With(zerr.Wrap(err, domain.ErrFileWriteFailed.Error()), "path", path)
	}
	tmpName := tmp.Name()
	defer os.Remove(tmpName) //nolint:errcheck // gone after a successful rename

	if err := write(tmp); err != nil {
		_ = tmp.Close()
		return err
	}
	if err := tmp.Chmod(domain.FilePerm); err != nil {
		_ = tmp.Close()
		return zerr.With(zerr.Wrap(err, domain.ErrFileWriteFailed.Error()), "path", path)
	}
	if err := tmp.Close(); err != nil {
		return zerr.With(zerr.Wrap(err, domain.ErrFileWriteFailed.Error()), "path", path)
	}
	if err := os.Rename(tmpName, dst); err != nil {
		return zerr.With(zerr.Wrap(err, domain.ErrFileWriteFailed.Error()), "path", path)
	}
	return nil
}

// CopyFile copies src to dst through WriteFile.
func (f *FileSystem) CopyFile(dst, src string) error {
	in, err := os.Open(f.abs(src)) //nolint:gosec // path is a task name chosen by the user
	if err != nil {
		return zerr.With(zerr.Wrap(err, domain.ErrFileOpenFailed.Error()), "path", src)
	}
	defer in.Close() //nolint:errcheck // read-only

	return f.WriteFile(dst, func(w io.Writer) error {
		if _, err := io.Copy(w, in); err != nil {
			return zerr.With(zerr.Wrap(err, domain.ErrFileWriteFailed.Error()), "path", dst)
		}
		return nil
	})
}

// Rename moves src over dst, creating dst's parent directory if needed.
func (f *FileSystem) Rename(src, dst string) error {
	to := f.abs(dst)
	if err := os.MkdirAll(filepath.Dir(to), domain.DirPerm); err != nil {
		return zerr.With(zerr.Wrap(err, domain.ErrFileWriteFailed.Error()), "path", dst)
	}
	if err := os.Rename(f.abs(src), to); err != nil {
		return zerr.With(zerr.With(zerr.Wrap(err, domain.ErrFileWriteFailed.Error()), "path", dst), "from", src)
	}
	return nil
}

// RemoveAll removes path and everything below it.
func (f *FileSystem) RemoveAll(path string) error {
	if err := os.RemoveAll(f.abs(path)); err != nil {
		return zerr.With(zerr.Wrap(err, "failed to remove path"), "path", path)
	}
	return nil
}
