package http

import (
	"context"
	stdhttp "net/http"
	"time"

	"go.uber.org/zap"
)

const healthTimeout = 2 * time.Second

// Pinger reports whether the store answers.
type Pinger interface {
	Ping(ctx context.Context) error
}

// HandleHealth reports liveness, and store reachability when db is set.
func HandleHealth(db Pinger) stdhttp.HandlerFunc {
	return func(w stdhttp.ResponseWriter, r *stdhttp.Request) {
		if db != nil {
			ctx, cancel := context.WithTimeout(r.Context(), healthTimeout)
			defer cancel()
			if err := db.Ping(ctx); err != nil {
				LoggerFrom(r.Context()).Warn("health check failed", zap.Error(err))
				writeError(w, stdhttp.StatusServiceUnavailable, codeStorageUnavailable, "storage unavailable")
				return
			}
		}
		w.Header().Set("Content-Type", "text/plain; charset=utf-8")
		w.WriteHeader(stdhttp.StatusOK)
		_, _ = w.Write([]byte("ok"))
	}
}
