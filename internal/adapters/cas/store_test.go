package cas_test

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.trai.ch/kiln/internal/adapters/cas"
	"go.trai.ch/kiln/internal/core/domain"
)

func TestStore_PutGet(t *testing.T) {
	t.Parallel()

	root := t.TempDir()
	store := cas.NewStore()

	info := domain.BuildInfo{
		TaskName:   "data/paths/gaussian_viz_frames_done.txt",
		OutputHash: "00ff00ff00ff00ff",
		Timestamp:  time.Date(2024, 7, 29, 10, 0, 0, 0, time.UTC),
		Duration:   1500 * time.Millisecond,
	}
	require.NoError(t, store.Put(root, info))

	got, err := store.Get(root, info.TaskName)
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, info, *got)

	entries, err := os.ReadDir(filepath.Join(root, domain.DefaultStorePath()))
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.Equal(t, ".json", filepath.Ext(entries[0].Name()))
}

func TestStore_Overwrite(t *testing.T) {
	t.Parallel()

	root := t.TempDir()
	store := cas.NewStore()

	require.NoError(t, store.Put(root, domain.BuildInfo{TaskName: "a", OutputHash: "1"}))
	require.NoError(t, store.Put(root, domain.BuildInfo{TaskName: "a", OutputHash: "2"}))

	got, err := store.Get(root, "a")
	require.NoError(t, err)
	assert.Equal(t, "2", got.OutputHash)
}

func TestStore_GetMissing(t *testing.T) {
	t.Parallel()

	got, err := cas.NewStore().Get(t.TempDir(), "missing")
	require.NoError(t, err)
	assert.Nil(t, got)
}

func TestStore_GetCorrupt(t *testing.T) {
	t.Parallel()

	root := t.TempDir()
	store := cas.NewStore()
	require.NoError(t, store.Put(root, domain.BuildInfo{TaskName: "task"}))

	dir := filepath.Join(root, domain.DefaultStorePath())
	entries, err := os.ReadDir(dir)
	require.NoError(t, err)
	require.Len(t, entries, 1)
	require.NoError(t, os.WriteFile(filepath.Join(dir, entries[0].Name()), []byte("{invalid"), domain.PrivateFilePerm))

	_, err = store.Get(root, "task")
	require.Error(t, err)
	assert.Contains(t, err.Error(), domain.ErrStoreUnmarshalFailed.Error())
}

func TestStore_PutFailsWhenStoreIsAFile(t *testing.T) {
	t.Parallel()

	root := t.TempDir()
	require.NoError(t, os.MkdirAll(filepath.Join(root, domain.KilnDirName), domain.DirPerm))
	require.NoError(t, os.WriteFile(filepath.Join(root, domain.DefaultStorePath()), nil, domain.PrivateFilePerm))

	err := cas.NewStore().Put(root, domain.BuildInfo{TaskName: "x"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), domain.ErrStoreCreateFailed.Error())
}
