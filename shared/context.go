package shared

import (
	"context"
)

func WithRunID(ctx context.Context, runID string) context.Context {
	return context.WithValue(ctx, RunIDKey, runID)
}

func WithKind(ctx context.Context, kind string) context.Context {
	return context.WithValue(ctx, KindKey, kind)
}

func WithProject(ctx context.Context, project string) context.Context {
	return context.WithValue(ctx, ProjectKey, project)
}

func RunIDFromCtx(ctx context.Context) string {
	runID, _ := ctx.Value(RunIDKey).(string)
	return runID
}
