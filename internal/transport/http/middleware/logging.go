package middleware

import (
	"net/http"
	"time"

	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/go-sale-provisioner/internal/logger"
)

// RequestLogger stores a child of log tagged with the chi request id in the
// request context and writes one access log entry per request. It must run
// after chi's RequestID middleware.
func RequestLogger(log *logger.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			l := log
			if reqID := chimiddleware.GetReqID(r.Context()); reqID != "" {
				l = log.With("request_id", reqID)
			}
			r = r.WithContext(l.WithContext(r.Context()))

			start := time.Now()
			ww := chimiddleware.NewWrapResponseWriter(w, r.ProtoMajor)
			next.ServeHTTP(ww, r)

			status := ww.Status()
			if status == 0 {
				status = http.StatusOK
			}
			l.Info().
				Str("uri", r.RequestURI).
				Str("method", r.Method).
				Str("remote", r.RemoteAddr).
				Int("status", status).
				Dur("duration", time.Since(start)).
				Int("size", ww.BytesWritten()).
				Msg("request")
		})
	}
}
