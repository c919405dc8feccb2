package handlers

import (
	"context"
	"time"

	"github.com/gofiber/fiber/v2"
)

// Dependency is a backing service readiness can ping. A dependency that is
// not Enabled runs in its fallback mode and is reported, not pinged.
type Dependency interface {
	Enabled() bool
	Ping(ctx context.Context) error
}

type check struct {
	name string
	dep  Dependency
	// required dependencies make the service unready when unreachable.
	required bool
	// offState is reported while the dependency is not configured.
	offState string
}

// HealthHandler responds to liveness and readiness probes.
type HealthHandler struct {
	serviceName string
	version     string
	checks      []check
	timeout     time.Duration
}

// NewHealthHandler wires the durable store, which gates readiness, and the
// activity stream, which is best effort.
func NewHealthHandler(serviceName, version string, postgres, redis Dependency) *HealthHandler {
	return &HealthHandler{
		serviceName: serviceName,
		version:     version,
		checks: []check{
			{name: "postgres", dep: postgres, required: true, offState: "in-memory"},
			{name: "redis", dep: redis, offState: "disabled"},
		},
		timeout: 2 * time.Second,
	}
}

// Live reports service liveness.
func (h *HealthHandler) Live(c *fiber.Ctx) error {
	return c.JSON(fiber.Map{
		"status":  "alive",
		"service": h.serviceName,
		"version": h.version,
	})
}

// Ready pings every dependency concurrently within one deadline.
func (h *HealthHandler) Ready(c *fiber.Ctx) error {
	ctx, cancel := context.WithTimeout(c.UserContext(), h.timeout)
	defer cancel()

	results := make([]error, len(h.checks))
	done := make(chan struct{})
	pending := 0
	for i, p := range h.checks {
		if p.dep == nil || !p.dep.Enabled() {
			continue
		}
		pending++
		go func(i int, dep Dependency) {
			results[i] = dep.Ping(ctx)
			done <- struct{}{}
		}(i, p.dep)
	}
	for ; pending > 0; pending-- {
		<-done
	}

	depStatus := fiber.Map{}
	ready := true
	for i, p := range h.checks {
		switch {
		case p.dep == nil || !p.dep.Enabled():
			depStatus[p.name] = p.offState
		case results[i] != nil:
			depStatus[p.name] = results[i].Error()
			if p.required {
				ready = false
			}
		default:
			depStatus[p.name] = "ok"
		}
	}

	if ready {
		return c.JSON(fiber.Map{
			"status":       "ready",
			"dependencies": depStatus,
		})
	}

	return c.Status(fiber.StatusServiceUnavailable).JSON(fiber.Map{
		"error": fiber.Map{
			"code":    "DEPENDENCY_UNAVAILABLE",
			"message": "one or more dependencies unavailable",
			"details": depStatus,
		},
	})
}
