// Package reporting sends errors and panics to Sentry.
//
// Without a DSN nothing is initialized and every function here is a no-op,
// so callers never need to check whether reporting is enabled.
package reporting

import (
	"context"
	"net/http"
	"time"

	"github.com/getsentry/sentry-go"
	sentryhttp "github.com/getsentry/sentry-go/http"
	"github.com/teremich/spotify-true-random/internal/shared"
)

const flushTimeout = 2 * time.Second

// Init configures the global Sentry client. The returned func flushes pending events and must be
// called before the process exits.
func Init(cfg shared.SentryConfig, release string) (flush func(), err error) {
	if cfg.DSN == "" {
		return func() {}, nil
	}

	if err := sentry.Init(sentry.ClientOptions{
		Dsn:              cfg.DSN,
		Environment:      cfg.Environment,
		Release:          release,
		TracesSampleRate: 1.0,
	}); err != nil {
		return func() {}, err
	}

	return func() { sentry.Flush(flushTimeout) }, nil
}

// Middleware attaches a request scoped hub to every request and reports panics.
//
// Panics are re-raised after reporting; the server's recover middleware turns them into a 500.
func Middleware(next http.Handler) http.Handler {
	return sentryhttp.New(sentryhttp.Options{
		Repanic: true,
		Timeout: flushTimeout,
	}).Handle(next)
}

// Capture reports err on the request's hub, falling back to the global hub.
func Capture(ctx context.Context, err error) {
	if err == nil {
		return
	}
	if hub := sentry.GetHubFromContext(ctx); hub != nil {
		hub.CaptureException(err)
		return
	}
	sentry.CaptureException(err)
}

// StartSpan starts a performance span named op. Finish it with span.Finish().
func StartSpan(ctx context.Context, op string) *sentry.Span {
	return sentry.StartSpan(ctx, op)
}
