package bastion

import "context"

type contextKey int

const ctxKeyReason contextKey = iota

// WithReason attaches a human-readable reason that is stored on every audit
// record written by mutations made with ctx.
func WithReason(ctx context.Context, reason string) context.Context {
	return context.WithValue(ctx, ctxKeyReason, reason)
}

func reasonFromContext(ctx context.Context) string {
	v, ok := ctx.Value(ctxKeyReason).(string)
	if !ok {
		return ""
	}
	return v
}
