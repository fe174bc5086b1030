// Package health exposes liveness and readiness probes.
package health

import (
	"context"
	"net/http"
	"time"

	httpx "github.com/atdock/atdock/internal/http"
)

// Checker is a named dependency probe.
type Checker struct {
	Name  string
	Check func(ctx context.Context) error
}

// Controller handles /healthz and /readyz.
type Controller struct {
	checkers []Checker
}

func NewController(checkers ...Checker) *Controller {
	return &Controller{checkers: checkers}
}

// Live responde 200 mientras el proceso esté vivo.
func (c *Controller) Live(w http.ResponseWriter, _ *http.Request) {
	httpx.WriteJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// Ready verifica las dependencias (store, cache). Con alguna caída responde
// 503 con el detalle por dependencia.
func (c *Controller) Ready(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 3*time.Second)
	defer cancel()

	status := http.StatusOK
	deps := make(map[string]string, len(c.checkers))
	for _, chk := range c.checkers {
		if err := chk.Check(ctx); err != nil {
			deps[chk.Name] = err.Error()
			status = http.StatusServiceUnavailable
			continue
		}
		deps[chk.Name] = "ok"
	}

	body := map[string]any{"status": "ok", "deps": deps}
	if status != http.StatusOK {
		body["status"] = "degraded"
	}
	httpx.WriteJSON(w, status, body)
}
