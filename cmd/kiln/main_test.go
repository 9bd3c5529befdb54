package main

import (
	"bytes"
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"go.trai.ch/kiln/internal/app"
	"go.trai.ch/kiln/internal/core/domain"
	"go.trai.ch/kiln/internal/core/ports"
	"go.trai.ch/kiln/internal/core/ports/mocks"
	"go.uber.org/mock/gomock"
)

func newApp(ctrl *gomock.Controller, loader ports.ConfigLoader, log ports.Logger) *app.App {
	return app.New(
		loader,
		mocks.NewMockFileSystem(ctrl),
		log,
		mocks.NewMockBuildInfoStore(ctrl),
		mocks.NewMockJournalOpener(ctrl),
		mocks.NewMockWatcher(ctrl),
	)
}

// TestRun_Success verifies that the run function returns 0 when the command succeeds.
func TestRun_Success(t *testing.T) {
	ctrl := gomock.NewController(t)
	mockLogger := mocks.NewMockLogger(ctrl)
	application := newApp(ctrl, mocks.NewMockConfigLoader(ctrl), mockLogger)

	provider := func(_ context.Context) (*app.Components, func(), error) {
		return &app.Components{App: application, Logger: mockLogger}, func() {}, nil
	}

	stderr := new(bytes.Buffer)
	exitCode := run(context.Background(), []string{"version"}, stderr, provider)
	assert.Equal(t, 0, exitCode)
}

// TestRun_InitializationError verifies that run returns 1 when component initialization fails.
func TestRun_InitializationError(t *testing.T) {
	provider := func(_ context.Context) (*app.Components, func(), error) {
		return nil, nil, errors.New("init failed")
	}

	stderr := new(bytes.Buffer)
	exitCode := run(context.Background(), []string{"version"}, stderr, provider)

	assert.Equal(t, 1, exitCode)
	assert.Contains(t, stderr.String(), "Error: init failed")
}

// TestRun_ExecutionError verifies that run logs the error and returns 1 when the command fails.
func TestRun_ExecutionError(t *testing.T) {
	dir := t.TempDir()
	t.Chdir(dir)

	ctrl := gomock.NewController(t)
	mockLoader := mocks.NewMockConfigLoader(ctrl)
	mockLogger := mocks.NewMockLogger(ctrl)

	mockLoader.EXPECT().DiscoverRoot(dir).Return("", domain.ErrConfigNotFound)
	mockLogger.EXPECT().Error(gomock.Any()).Do(func(err error) {
		assert.ErrorIs(t, err, domain.ErrConfigNotFound)
	})

	application := newApp(ctrl, mockLoader, mockLogger)
	provider := func(_ context.Context) (*app.Components, func(), error) {
		return &app.Components{App: application, Logger: mockLogger}, func() {}, nil
	}

	exitCode := run(context.Background(), []string{"run", "target"}, new(bytes.Buffer), provider)
	assert.Equal(t, 1, exitCode)
}

type jsonRecorder struct {
	*mocks.MockLogger
	json []bool
}

func (r *jsonRecorder) SetJSON(enable bool) {
	r.json = append(r.json, enable)
}

// TestRun_JSONFlag verifies that --json switches a capable logger before the command runs.
func TestRun_JSONFlag(t *testing.T) {
	ctrl := gomock.NewController(t)
	log := &jsonRecorder{MockLogger: mocks.NewMockLogger(ctrl)}
	application := newApp(ctrl, mocks.NewMockConfigLoader(ctrl), log)

	provider := func(_ context.Context) (*app.Components, func(), error) {
		return &app.Components{App: application, Logger: log}, func() {}, nil
	}

	exitCode := run(context.Background(), []string{"version", "--json"}, new(bytes.Buffer), provider)
	assert.Equal(t, 0, exitCode)
	assert.Equal(t, []bool{true}, log.json)
}

// TestRun_Cleanup verifies that the provider's cleanup runs once the command returns.
func TestRun_Cleanup(t *testing.T) {
	ctrl := gomock.NewController(t)
	mockLogger := mocks.NewMockLogger(ctrl)
	application := newApp(ctrl, mocks.NewMockConfigLoader(ctrl), mockLogger)

	cleaned := false
	provider := func(_ context.Context) (*app.Components, func(), error) {
		return &app.Components{App: application, Logger: mockLogger}, func() { cleaned = true }, nil
	}

	assert.Equal(t, 0, run(context.Background(), []string{"version"}, new(bytes.Buffer), provider))
	assert.True(t, cleaned)
}
