package toolexecutor

import "context"

type execCtxKey struct{}

// ContextWithExecContext makes execCtx visible to the tool handler.
func ContextWithExecContext(ctx context.Context, execCtx *ExecutionContext) context.Context {
	if ctx == nil {
		ctx = context.Background()
	}
	if execCtx == nil {
		return ctx
	}
	return context.WithValue(ctx, execCtxKey{}, execCtx)
}

// ExecContextFromContext returns the ExecutionContext of the running call, if any.
func ExecContextFromContext(ctx context.Context) *ExecutionContext {
	if ctx == nil {
		return nil
	}
	execCtx, _ := ctx.Value(execCtxKey{}).(*ExecutionContext)
	return execCtx
}

// ClientFromContext returns the calling client id, or "" outside a request.
func ClientFromContext(ctx context.Context) string {
	if execCtx := ExecContextFromContext(ctx); execCtx != nil {
		return execCtx.ClientID
	}
	return ""
}
