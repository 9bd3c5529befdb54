package telemetry_test

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"go.opentelemetry.io/otel/codes"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.trai.ch/kiln/internal/adapters/telemetry"
	"go.trai.ch/kiln/internal/core/ports/mocks"
	"go.uber.org/mock/gomock"
)

func TestBridge_ForwardsLifecycle(t *testing.T) {
	ctrl := gomock.NewController(t)
	renderer := mocks.NewMockRenderer(ctrl)

	var startID string
	gomock.InOrder(
		renderer.EXPECT().OnTaskStart(gomock.Any(), "", "data/heatmap.png", gomock.Any()).
			Do(func(spanID, _, _ string, _ any) { startID = spanID }),
		renderer.EXPECT().OnTaskComplete(gomock.Any(), gomock.Any(), nil).
			Do(func(spanID string, _ any, _ error) { assert.Equal(t, startID, spanID) }),
	)

	tp := sdktrace.NewTracerProvider(sdktrace.WithSpanProcessor(telemetry.NewBridge(renderer)))
	defer func() { _ = tp.Shutdown(context.Background()) }()

	_, span := tp.Tracer("test").Start(context.Background(), "data/heatmap.png")
	span.End()
}

func TestBridge_ParentID(t *testing.T) {
	ctrl := gomock.NewController(t)
	renderer := mocks.NewMockRenderer(ctrl)

	var parentID string
	renderer.EXPECT().OnTaskStart(gomock.Any(), "", "all", gomock.Any()).
		Do(func(spanID, _, _ string, _ any) { parentID = spanID })
	renderer.EXPECT().OnTaskStart(gomock.Any(), gomock.Any(), "child", gomock.Any()).
		Do(func(_, gotParent, _ string, _ any) { assert.Equal(t, parentID, gotParent) })
	renderer.EXPECT().OnTaskComplete(gomock.Any(), gomock.Any(), nil).Times(2)

	tp := sdktrace.NewTracerProvider(sdktrace.WithSpanProcessor(telemetry.NewBridge(renderer)))
	defer func() { _ = tp.Shutdown(context.Background()) }()

	ctx, root := tp.Tracer("test").Start(context.Background(), "all")
	_, child := tp.Tracer("test").Start(ctx, "child")
	child.End()
	root.End()
}

func TestBridge_ErrorStatus(t *testing.T) {
	ctrl := gomock.NewController(t)
	renderer := mocks.NewMockRenderer(ctrl)

	renderer.EXPECT().OnTaskStart(gomock.Any(), gomock.Any(), gomock.Any(), gomock.Any())
	renderer.EXPECT().OnTaskComplete(gomock.Any(), gomock.Any(), gomock.Any()).
		Do(func(_ string, _ any, err error) {
			assert.EqualError(t, err, "ffmpeg exited 1")
		})

	tp := sdktrace.NewTracerProvider(sdktrace.WithSpanProcessor(telemetry.NewBridge(renderer)))
	defer func() { _ = tp.Shutdown(context.Background()) }()

	_, span := tp.Tracer("test").Start(context.Background(), "video.mp4")
	span.RecordError(errors.New("ffmpeg exited 1"))
	span.SetStatus(codes.Error, "ffmpeg exited 1")
	span.End()
}

func TestBridge_NilRenderer(t *testing.T) {
	tp := sdktrace.NewTracerProvider(sdktrace.WithSpanProcessor(telemetry.NewBridge(nil)))
	defer func() { _ = tp.Shutdown(context.Background()) }()

	assert.NotPanics(t, func() {
		_, span := tp.Tracer("test").Start(context.Background(), "x")
		span.End()
	})
}
