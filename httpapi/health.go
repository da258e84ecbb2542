package httpapi

import (
	"context"
	"net/http"
	"sort"
	"time"

	"go.uber.org/zap"
)

const (
	StatusUp   = "UP"
	StatusDown = "DOWN"
)

// CheckFunc checks one dependency.
type CheckFunc func(ctx context.Context) error

// Health reports the state of the process dependencies.
type Health struct {
	checks  map[string]CheckFunc
	timeout time.Duration
	logger  *zap.Logger
}

// HealthReport is the /health body.
type HealthReport struct {
	Status string            `json:"status"`
	Checks map[string]string `json:"checks"`
}

// NewHealth returns an empty Health. Each check gets timeout.
func NewHealth(timeout time.Duration, logger *zap.Logger) *Health {
	if timeout <= 0 {
		timeout = 2 * time.Second
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Health{
		checks:  make(map[string]CheckFunc),
		timeout: timeout,
		logger:  logger.With(zap.String("component", "health")),
	}
}

// Add registers a named check. Not safe to call while serving.
func (h *Health) Add(name string, fn CheckFunc) *Health {
	h.checks[name] = fn
	return h
}

// Check runs every registered check.
func (h *Health) Check(ctx context.Context) HealthReport {
	names := make([]string, 0, len(h.checks))
	for name := range h.checks {
		names = append(names, name)
	}
	sort.Strings(names)

	report := HealthReport{Status: StatusUp, Checks: make(map[string]string, len(names))}
	for _, name := range names {
		cctx, cancel := context.WithTimeout(ctx, h.timeout)
		err := h.checks[name](cctx)
		cancel()
		if err != nil {
			h.logger.Warn("health check failed", zap.String("check", name), zap.Error(err))
			report.Checks[name] = StatusDown
			report.Status = StatusDown
			continue
		}
		report.Checks[name] = StatusUp
	}
	return report
}

func (h *Health) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	report := h.Check(r.Context())
	status := http.StatusOK
	if report.Status != StatusUp {
		status = http.StatusServiceUnavailable
	}
	writeJSON(w, status, report)
}
