package httpx

import (
	"context"
	"net/http"
	"time"
)

// Check reports whether one dependency is reachable.
type Check func(ctx context.Context) error

// Health answers 200 when every check passes and 503 otherwise.
func (resp *Responder) Health(checks map[string]Check) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
		defer cancel()

		status := http.StatusOK
		deps := make(map[string]string, len(checks))
		for name, check := range checks {
			if err := check(ctx); err != nil {
				deps[name] = "down"
				status = http.StatusServiceUnavailable
				resp.logger.Warn(ctx, "health_check_failed", "Dependency unreachable", err, map[string]any{"dependency": name})
				continue
			}
			deps[name] = "up"
		}

		overall := "ok"
		if status != http.StatusOK {
			overall = "degraded"
		}
		w.Header().Set("Cache-Control", "no-store")
		resp.JSON(ctx, w, status, map[string]any{"status": overall, "dependencies": deps})
	}
}
