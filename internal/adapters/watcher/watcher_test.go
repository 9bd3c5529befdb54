package watcher_test

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.trai.ch/kiln/internal/adapters/watcher"
	"go.trai.ch/kiln/internal/core/ports"
	"go.trai.ch/kiln/internal/core/ports/mocks"
	"go.uber.org/mock/gomock"
)

func TestIgnored(t *testing.T) {
	assert.True(t, watcher.Ignored(filepath.Join("work", ".kiln", "store", "x.json")))
	assert.True(t, watcher.Ignored(filepath.Join("work", ".git", "HEAD")))
	assert.False(t, watcher.Ignored(filepath.Join("work", "data", "input.png")))
	assert.False(t, watcher.Ignored("input.png"))
}

func TestWatcher_ReportsWrites(t *testing.T) {
	root := t.TempDir()
	require.NoError(t, os.MkdirAll(filepath.Join(root, "data"), 0o750))
	require.NoError(t, os.MkdirAll(filepath.Join(root, ".kiln"), 0o750))

	ctrl := gomock.NewController(t)
	log := mocks.NewMockLogger(ctrl)
	log.EXPECT().Warn(gomock.Any(), gomock.Any()).AnyTimes()

	w, err := watcher.NewWatcher(log)
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	require.NoError(t, w.Start(ctx, root))
	defer func() { _ = w.Stop() }()

	require.NoError(t, os.WriteFile(filepath.Join(root, ".kiln", "ignored.json"), []byte("{}"), 0o600))
	target := filepath.Join(root, "data", "input.txt")
	require.NoError(t, os.WriteFile(target, []byte("hi"), 0o600))

	got := make(chan ports.WatchEvent, 1)
	go func() {
		for ev := range w.Events() {
			got <- ev
			return
		}
	}()

	select {
	case ev := <-got:
		assert.Equal(t, target, ev.Path)
	case <-time.After(5 * time.Second):
		t.Fatal("no event received")
	}
}
