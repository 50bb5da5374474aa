package app

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/httprate"
	"github.com/unrolled/secure"

	"github.com/cargotrail/cargotrail/internal/observability"
	"github.com/cargotrail/cargotrail/internal/platform/httpx"
	"github.com/cargotrail/cargotrail/internal/shared"
)

// MiddlewareStack wires the baseline middleware onto the router in the
// order they must run: request identity first, then session loading,
// panic recovery, timeouts, security headers, compression, rate limiting
// and CSRF checks. Metrics recording is appended last so it observes the
// final status code.
func MiddlewareStack(r chi.Router, cfg *Config, logger *slog.Logger, sessions *shared.SessionManager, csrf *shared.CSRFManager, metrics *observability.Metrics) {
	r.Use(middleware.RealIP)
	r.Use(middleware.RequestID)
	r.Use(sessionMiddleware(logger, sessions))
	r.Use(middleware.Recoverer)
	r.Use(middleware.Timeout(cfg.AppRequestTimeout))

	secureProcessor := secure.New(secure.Options{
		FrameDeny:          true,
		ContentTypeNosniff: true,
		BrowserXssFilter:   true,
		SSLRedirect:        false,
		IsDevelopment:      !cfg.IsProduction(),
	})
	r.Use(secureProcessor.Handler)

	r.Use(middleware.Compress(5))
	r.Use(httprate.Limit(
		60,
		time.Minute,
		httprate.WithKeyFuncs(httprate.KeyByIP),
	))
	r.Use(csrfMiddleware(logger, csrf))

	if metrics != nil {
		r.Use(metrics.Middleware)
	}
}

// sessionMiddleware loads the session for every request and commits it
// back before the first byte of the response is written.
func sessionMiddleware(logger *slog.Logger, sessions *shared.SessionManager) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			sess, err := sessions.Load(r.Context(), r)
			if err != nil {
				logger.Error("session load failed", slog.Any("error", err))
				httpx.Problem(w, http.StatusInternalServerError, "Session Error", "unable to load session")
				return
			}

			ctx := shared.ContextWithSession(r.Context(), sess)
			r = r.WithContext(ctx)

			cw := &commitWriter{
				ResponseWriter: w,
				commit: func() {
					if err := sessions.Commit(r.Context(), w, r, sess); err != nil {
						logger.Error("session commit failed", slog.Any("error", err))
					}
				},
			}
			next.ServeHTTP(cw, r)
			cw.ensureCommitted()
		})
	}
}

// commitWriter persists the session right before headers are flushed, so
// the Set-Cookie header can still be attached.
type commitWriter struct {
	http.ResponseWriter
	commit    func()
	committed bool
}

func (cw *commitWriter) WriteHeader(code int) {
	cw.ensureCommitted()
	cw.ResponseWriter.WriteHeader(code)
}

func (cw *commitWriter) Write(b []byte) (int, error) {
	cw.ensureCommitted()
	return cw.ResponseWriter.Write(b)
}

func (cw *commitWriter) ensureCommitted() {
	if cw.committed {
		return
	}
	cw.committed = true
	cw.commit()
}

// csrfMiddleware rejects state-changing requests whose token does not
// match the one bound to the session. Safe methods pass through.
func csrfMiddleware(logger *slog.Logger, csrf *shared.CSRFManager) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			switch r.Method {
			case http.MethodGet, http.MethodHead, http.MethodOptions:
				next.ServeHTTP(w, r)
				return
			}

			sess := shared.SessionFromContext(r.Context())
			if sess == nil {
				httpx.Problem(w, http.StatusForbidden, "Forbidden", "missing session")
				return
			}

			token := r.Header.Get(shared.CSRFHeader)
			if token == "" {
				token = r.PostFormValue("csrf_token")
			}
			if err := csrf.VerifyToken(r.Context(), sess, token); err != nil {
				logger.Warn("csrf verification failed",
					slog.String("path", r.URL.Path),
					slog.Any("error", err))
				httpx.Problem(w, http.StatusForbidden, "Forbidden", "invalid csrf token")
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}
