package ports

import (
	"io"

	"go.trai.ch/kiln/internal/core/domain"
)

// FileSystem is the slice of file system access the workspace and recipes need.
//
//go:generate mockgen -source=filesystem.go -destination=mocks/mock_filesystem.go -package=mocks
type FileSystem interface {
	// Stat reports whether path exists and when it was last modified.
	// A missing path is not an error.
	Stat(path string) (domain.FileStat, error)

	// Hash returns a content fingerprint of the file at path.
	Hash(path string) (string, error)

	// Open opens path for reading.
	Open(path string) (io.ReadCloser, error)

	// WriteFile creates path by streaming write into a temporary sibling
	// and renaming it into place once write returns nil.
	// Parent directories are created as needed.
	WriteFile(path string, write func(w io.Writer) error) error

	// CopyFile copies src to dst atomically.
	CopyFile(dst, src string) error

	// Rename moves src over dst, replacing dst if it exists.
	// Tools that must write their own output file use it to publish the result.
	Rename(src, dst string) error

	// RemoveAll removes path and any children it contains.
	RemoveAll(path string) error
}
