// Package health serves GET /healthz: liveness plus a ping of each configured
// dependency.
package health

import (
	"context"
	"net/http"
	"sort"
	"time"

	"github.com/go-chi/chi/v5"

	"bizreg/pkg/platform/httputil"
)

const checkTimeout = 2 * time.Second

// CheckFunc pings one dependency.
type CheckFunc func(ctx context.Context) error

type Handler struct {
	checks map[string]CheckFunc
}

func NewHandler() *Handler {
	return &Handler{checks: make(map[string]CheckFunc)}
}

// Add registers a named dependency check. Nil checks are ignored.
func (h *Handler) Add(name string, check CheckFunc) *Handler {
	if check != nil {
		h.checks[name] = check
	}
	return h
}

func (h *Handler) Register(r chi.Router) {
	r.Get("/healthz", h.HandleHealth)
}

type Response struct {
	Status string            `json:"status"`
	Checks map[string]string `json:"checks,omitempty"`
}

func (h *Handler) HandleHealth(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), checkTimeout)
	defer cancel()

	names := make([]string, 0, len(h.checks))
	for name := range h.checks {
		names = append(names, name)
	}
	sort.Strings(names)

	resp := Response{Status: "ok", Checks: make(map[string]string, len(names))}
	status := http.StatusOK
	for _, name := range names {
		if err := h.checks[name](ctx); err != nil {
			resp.Checks[name] = "unavailable"
			resp.Status = "degraded"
			status = http.StatusServiceUnavailable
			continue
		}
		resp.Checks[name] = "ok"
	}
	httputil.WriteJSON(w, status, resp)
}
