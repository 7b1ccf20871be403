// Package handlers implements the dispenser backend API served by the
// devserver: accounts, profiles, dispenser registration and simulated
// intakes, plus liveness and readiness probes.
package handlers

import (
	"context"
	"net/http"
	"time"

	"github.com/ieraasyl/DispenserClient/pkg/utils"
	"github.com/rs/zerolog/log"
)

const readyTimeout = 5 * time.Second

// Pinger is a dependency the readiness probe checks.
type Pinger interface {
	Ping(ctx context.Context) error
}

// HealthHandler serves /health and /ready. Backend state is in memory, so
// the only probed dependency is the Redis instance behind rate limiting.
type HealthHandler struct {
	redis Pinger
}

// NewHealthHandler accepts a nil redis when rate limiting is off.
func NewHealthHandler(redis Pinger) *HealthHandler {
	return &HealthHandler{redis: redis}
}

// HealthResponse is the body of both probes. Services is only set by /ready.
type HealthResponse struct {
	Status    string            `json:"status"`
	Timestamp time.Time         `json:"timestamp"`
	Services  map[string]string `json:"services,omitempty"`
}

// Health always answers 200 {"status":"ok"}.
func (h *HealthHandler) Health(w http.ResponseWriter, r *http.Request) {
	utils.RespondWithJSON(w, r, http.StatusOK, HealthResponse{Status: "ok", Timestamp: time.Now()})
}

// Ready answers 503 "degraded" when Redis is configured but unreachable.
func (h *HealthHandler) Ready(w http.ResponseWriter, r *http.Request) {
	resp := HealthResponse{
		Status:    "ok",
		Timestamp: time.Now(),
		Services:  map[string]string{"store": "healthy"},
	}
	code := http.StatusOK

	if h.redis != nil {
		ctx, cancel := context.WithTimeout(r.Context(), readyTimeout)
		defer cancel()

		resp.Services["redis"] = "healthy"
		if err := h.redis.Ping(ctx); err != nil {
			log.Error().Err(err).Msg("Redis readiness check failed")
			resp.Services["redis"] = "unhealthy"
			resp.Status = "degraded"
			code = http.StatusServiceUnavailable
		}
	}

	utils.RespondWithJSON(w, r, code, resp)
}
