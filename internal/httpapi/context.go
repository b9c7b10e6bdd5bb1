package httpapi

import (
	"context"
	"net/http"
)

// serverBaseCtx is a process-level context that can be canceled on shutdown.
// Defaults to Background if not set.
var serverBaseCtx = context.Background()

// SetBaseContext sets the process-level base context used by handlers.
func SetBaseContext(ctx context.Context) {
	if ctx == nil {
		serverBaseCtx = context.Background()
		return
	}
	serverBaseCtx = ctx
}

// workContext derives the context for long-running handler work. It is
// canceled when the client goes away, when the server shuts down or when
// the completion timeout elapses. The returned cancel func must be called.
func workContext(r *http.Request) (context.Context, context.CancelFunc) {
	ctx, cancel := context.WithCancelCause(r.Context())
	stop := context.AfterFunc(serverBaseCtx, func() { cancel(context.Cause(serverBaseCtx)) })
	release := func() {
		stop()
		cancel(context.Canceled)
	}
	if completionTimeout <= 0 {
		return ctx, release
	}
	tctx, tcancel := context.WithTimeout(ctx, completionTimeout)
	return tctx, func() {
		tcancel()
		release()
	}
}

// shuttingDown reports whether the process-level context is done.
func shuttingDown() bool { return serverBaseCtx.Err() != nil }
