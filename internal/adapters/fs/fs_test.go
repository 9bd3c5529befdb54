package fs_test

import (
	"errors"
	"io"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.trai.ch/kiln/internal/adapters/fs"
	"go.trai.ch/kiln/internal/core/domain"
)

func TestStat(t *testing.T) {
	root := t.TempDir()
	fsys := fs.New(root)

	st, err := fsys.Stat("missing.txt")
	require.NoError(t, err)
	assert.False(t, st.Exists)

	mtime := time.Date(2024, 7, 29, 12, 0, 0, 0, time.UTC)
	path := filepath.Join(root, "a.txt")
	require.NoError(t, os.WriteFile(path, []byte("a"), domain.PrivateFilePerm))
	require.NoError(t, os.Chtimes(path, mtime, mtime))

	st, err = fsys.Stat("a.txt")
	require.NoError(t, err)
	assert.True(t, st.Exists)
	assert.True(t, st.ModTime.Equal(mtime))
}

func TestStat_AbsolutePathIgnoresRoot(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "x.txt")
	require.NoError(t, os.WriteFile(path, nil, domain.PrivateFilePerm))

	st, err := fs.New("/does/not/matter").Stat(path)
	require.NoError(t, err)
	assert.True(t, st.Exists)
}

func TestHash(t *testing.T) {
	root := t.TempDir()
	fsys := fs.New(root)
	require.NoError(t, os.WriteFile(filepath.Join(root, "a"), []byte("content"), domain.PrivateFilePerm))
	require.NoError(t, os.WriteFile(filepath.Join(root, "b"), []byte("content"), domain.PrivateFilePerm))
	require.NoError(t, os.WriteFile(filepath.Join(root, "c"), []byte("other"), domain.PrivateFilePerm))

	ha, err := fsys.Hash("a")
	require.NoError(t, err)
	hb, err := fsys.Hash("b")
	require.NoError(t, err)
	hc, err := fsys.Hash("c")
	require.NoError(t, err)

	assert.Len(t, ha, 16)
	assert.Equal(t, ha, hb)
	assert.NotEqual(t, ha, hc)

	_, err = fsys.Hash("missing")
	require.Error(t, err)
	assert.ErrorIs(t, err, os.ErrNotExist)
}

func TestWriteFile(t *testing.T) {
	root := t.TempDir()
	fsys := fs.New(root)

	err := fsys.WriteFile("nested/dir/out.txt", func(w io.Writer) error {
		_, err := io.WriteString(w, "hello")
		return err
	})
	require.NoError(t, err)

	data, err := os.ReadFile(filepath.Join(root, "nested", "dir", "out.txt"))
	require.NoError(t, err)
	assert.Equal(t, "hello", string(data))

	entries, err := os.ReadDir(filepath.Join(root, "nested", "dir"))
	require.NoError(t, err)
	assert.Len(t, entries, 1, "temporary file should be renamed away")
}

func TestWriteFile_FailureLeavesNoOutput(t *testing.T) {
	root := t.TempDir()
	fsys := fs.New(root)
	boom := errors.New("boom")

	err := fsys.WriteFile("out.txt", func(w io.Writer) error {
		_, _ = io.WriteString(w, "partial")
		return boom
	})
	require.ErrorIs(t, err, boom)

	entries, err := os.ReadDir(root)
	require.NoError(t, err)
	assert.Empty(t, entries)
}

func TestCopyFile(t *testing.T) {
	root := t.TempDir()
	fsys := fs.New(root)
	require.NoError(t, os.WriteFile(filepath.Join(root, "src.pdf"), []byte("slides"), domain.PrivateFilePerm))

	require.NoError(t, fsys.CopyFile("public/slides.pdf", "src.pdf"))

	data, err := os.ReadFile(filepath.Join(root, "public", "slides.pdf"))
	require.NoError(t, err)
	assert.Equal(t, "slides", string(data))

	err = fsys.CopyFile("x", "missing")
	assert.ErrorIs(t, err, os.ErrNotExist)
}

func TestRemoveAll(t *testing.T) {
	root := t.TempDir()
	fsys := fs.New(root)
	require.NoError(t, os.MkdirAll(filepath.Join(root, ".kiln", "store"), domain.DirPerm))

	require.NoError(t, fsys.RemoveAll(".kiln/store"))
	_, err := os.Stat(filepath.Join(root, ".kiln", "store"))
	assert.True(t, os.IsNotExist(err))

	require.NoError(t, fsys.RemoveAll("never-existed"))
}

func TestRename(t *testing.T) {
	root := t.TempDir()
	fsys := fs.New(root)
	require.NoError(t, os.WriteFile(filepath.Join(root, ".video.partial.mp4"), []byte("mp4"), domain.PrivateFilePerm))

	require.NoError(t, fsys.Rename(".video.partial.mp4", "out/video.mp4"))

	data, err := os.ReadFile(filepath.Join(root, "out", "video.mp4"))
	require.NoError(t, err)
	assert.Equal(t, "mp4", string(data))

	assert.ErrorIs(t, fsys.Rename("missing", "x"), os.ErrNotExist)
}

func TestOpen(t *testing.T) {
	root := t.TempDir()
	fsys := fs.New(root)
	require.NoError(t, os.WriteFile(filepath.Join(root, "dataset.bin"), []byte("KDS1"), domain.PrivateFilePerm))

	rc, err := fsys.Open("dataset.bin")
	require.NoError(t, err)
	data, err := io.ReadAll(rc)
	require.NoError(t, err)
	require.NoError(t, rc.Close())
	assert.Equal(t, "KDS1", string(data))

	_, err = fsys.Open("missing.bin")
	require.ErrorIs(t, err, os.ErrNotExist)
}
