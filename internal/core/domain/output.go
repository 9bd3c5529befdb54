package domain

import (
	"context"
	"io"
)

type taskOutputKey struct{}

// WithTaskOutput returns a context carrying w as the destination for task output.
func WithTaskOutput(ctx context.Context, w io.Writer) context.Context {
	return context.WithValue(ctx, taskOutputKey{}, w)
}

// TaskOutput returns the writer attached by WithTaskOutput, or io.Discard.
func TaskOutput(ctx context.Context) io.Writer {
	if w, ok := ctx.Value(taskOutputKey{}).(io.Writer); ok && w != nil {
		return w
	}
	return io.Discard
}
