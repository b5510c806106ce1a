package middleware

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5/middleware"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/hlog"
)

// RequestLogger attaches logger to each request context and logs one line per
// request with its chi request id.
func RequestLogger(logger zerolog.Logger) func(http.Handler) http.Handler {
	accessLog := hlog.AccessHandler(func(r *http.Request, status, size int, duration time.Duration) {
		hlog.FromRequest(r).Info().
			Str("method", r.Method).
			Str("path", r.URL.Path).
			Int("status", status).
			Int("size", size).
			Dur("duration", duration).
			Str("request_id", middleware.GetReqID(r.Context())).
			Msg("request")
	})
	return func(next http.Handler) http.Handler {
		return hlog.NewHandler(logger)(hlog.RemoteAddrHandler("ip")(accessLog(next)))
	}
}
