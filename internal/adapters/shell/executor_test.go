package shell_test

import (
	"bytes"
	"context"
	"io"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.trai.ch/kiln/internal/adapters/shell"
	"go.trai.ch/kiln/internal/core/domain"
	"go.trai.ch/kiln/internal/core/ports/mocks"
	"go.trai.ch/zerr"
	"go.uber.org/mock/gomock"
)

func newExecutor(t *testing.T) *shell.Executor {
	t.Helper()
	ctrl := gomock.NewController(t)
	lg := mocks.NewMockLogger(ctrl)
	lg.EXPECT().Info(gomock.Any(), gomock.Any()).AnyTimes()
	return shell.NewExecutor(lg)
}

func TestExecute_MultiLineOutput(t *testing.T) {
	cmd := &domain.Command{
		Name:       "test",
		Args:       []string{"sh", "-c", "echo line1; echo line2"},
		WorkingDir: t.TempDir(),
	}

	var stdout bytes.Buffer
	require.NoError(t, newExecutor(t).Execute(context.Background(), cmd, &stdout, io.Discard))

	assert.Contains(t, stdout.String(), "line1")
	assert.Contains(t, stdout.String(), "line2")
}

func TestExecute_Environment(t *testing.T) {
	cmd := &domain.Command{
		Args:        []string{"sh", "-c", "echo $MASTER_ADDR:$MASTER_PORT"},
		Environment: map[string]string{"MASTER_ADDR": "127.0.0.1", "MASTER_PORT": "8888"},
		WorkingDir:  t.TempDir(),
	}

	var stdout bytes.Buffer
	require.NoError(t, newExecutor(t).Execute(context.Background(), cmd, &stdout, io.Discard))
	assert.Contains(t, stdout.String(), "127.0.0.1:8888")
}

func TestExecute_WorkingDir(t *testing.T) {
	dir := t.TempDir()
	cmd := &domain.Command{
		Args:       []string{"sh", "-c", "echo hi > out.txt"},
		WorkingDir: dir,
	}

	require.NoError(t, newExecutor(t).Execute(context.Background(), cmd, io.Discard, io.Discard))
	data, err := os.ReadFile(filepath.Join(dir, "out.txt"))
	require.NoError(t, err)
	assert.Equal(t, "hi\n", string(data))
}

func TestExecute_CommandFailure(t *testing.T) {
	cmd := &domain.Command{
		Args:       []string{"sh", "-c", "exit 42"},
		WorkingDir: t.TempDir(),
	}

	err := newExecutor(t).Execute(context.Background(), cmd, io.Discard, io.Discard)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "command failed")

	var zErr *zerr.Error
	require.ErrorAs(t, err, &zErr)
	assert.Equal(t, 42, zErr.Metadata()["exit_code"])
	assert.Equal(t, "sh -c 'exit 42'", zErr.Metadata()["command"])
}

func TestExecute_InvalidCommand(t *testing.T) {
	cmd := &domain.Command{
		Args:       []string{"nonexistent-command-xyz123"},
		WorkingDir: t.TempDir(),
	}
	require.Error(t, newExecutor(t).Execute(context.Background(), cmd, io.Discard, io.Discard))
}

func TestExecute_EmptyCommand(t *testing.T) {
	err := newExecutor(t).Execute(context.Background(), &domain.Command{}, io.Discard, io.Discard)
	require.ErrorIs(t, err, domain.ErrEmptyCommand)
}

func TestExecute_StreamsANSI(t *testing.T) {
	ansiRed, ansiReset := "\033[31m", "\033[0m"
	cmd := &domain.Command{
		Args:       []string{"sh", "-c", "printf '" + ansiRed + "red" + ansiReset + "'"},
		WorkingDir: t.TempDir(),
	}

	var stdout bytes.Buffer
	require.NoError(t, newExecutor(t).Execute(context.Background(), cmd, &stdout, io.Discard))
	assert.True(t, strings.Contains(stdout.String(), ansiRed))
}

func TestExecute_NilStdoutLogsLines(t *testing.T) {
	ctrl := gomock.NewController(t)
	lg := mocks.NewMockLogger(ctrl)
	lg.EXPECT().Info("hello", "task", "greet")

	cmd := &domain.Command{
		Name:       "greet",
		Args:       []string{"sh", "-c", "echo hello"},
		WorkingDir: t.TempDir(),
	}
	require.NoError(t, shell.NewExecutor(lg).Execute(context.Background(), cmd, nil, nil))
}

func TestExecute_ContextCancel(t *testing.T) {
	ctx, cancel := context.WithTimeout(context.Background(), 100*time.Millisecond)
	defer cancel()

	cmd := &domain.Command{
		Args:       []string{"sh", "-c", "sleep 10"},
		WorkingDir: t.TempDir(),
	}

	start := time.Now()
	err := newExecutor(t).Execute(ctx, cmd, io.Discard, io.Discard)
	require.Error(t, err)
	assert.Less(t, time.Since(start), 5*time.Second)
}
