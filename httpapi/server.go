package httpapi

import (
	"context"
	"errors"
	"net/http"
	"time"

	goFleet "github.com/MrEthical07/goFleet"
	"github.com/MrEthical07/goFleet/device"
	"github.com/MrEthical07/goFleet/internal/rate"
	"github.com/MrEthical07/goFleet/middleware"
	"github.com/MrEthical07/goFleet/respcache"
	"go.uber.org/zap"
)

// Deps are the components the routes are served by. Cache, Realtime,
// Limiter, Metrics and Health are optional.
type Deps struct {
	Auth     AuthService
	Devices  *device.Service
	Cache    *respcache.Cache
	Realtime http.Handler
	Limiter  *rate.Limiter
	Metrics  http.Handler
	Health   *Health
	Security goFleet.SecurityConfig
	Logger   *zap.Logger
}

type api struct {
	auth    AuthService
	devices *device.Service
	logger  *zap.Logger
}

// NewRouter builds the fleetd handler.
func NewRouter(d Deps) http.Handler {
	logger := d.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	a := &api{
		auth:    d.Auth,
		devices: d.Devices,
		logger:  logger.With(zap.String("component", "httpapi")),
	}

	authLimit := func(h http.Handler) http.Handler { return h }
	if d.Security.EnableAuthRateLimit && d.Limiter != nil {
		authLimit = middleware.RateLimit(d.Limiter, middleware.RateLimitConfig{
			Scope:  "auth",
			Limit:  d.Security.AuthRateLimit,
			Window: d.Security.AuthRateWindow,
		}, d.Auth, logger)
	}
	guard := middleware.Guard(d.Auth)

	routes := http.NewServeMux()
	routes.Handle("POST /api/auth/register", authLimit(http.HandlerFunc(a.register)))
	routes.Handle("POST /api/auth/login", authLimit(http.HandlerFunc(a.login)))
	routes.Handle("POST /api/auth/refresh-token", authLimit(http.HandlerFunc(a.refresh)))
	routes.Handle("POST /api/auth/logout", authLimit(http.HandlerFunc(a.logout)))

	routes.Handle("GET /api/devices", guard(http.HandlerFunc(a.listDevices)))
	routes.Handle("POST /api/devices", guard(http.HandlerFunc(a.createDevice)))
	var getDevice http.Handler = http.HandlerFunc(a.getDevice)
	if d.Cache != nil {
		getDevice = respcache.Decorate(getDevice, d.Cache.Interceptor(middleware.TenantFromRequest))
	}
	routes.Handle("GET /api/devices/{id}", guard(getDevice))
	routes.Handle("PATCH /api/devices/{id}", guard(http.HandlerFunc(a.updateDevice)))

	if d.Health != nil {
		routes.Handle("GET /health", d.Health)
	}
	if d.Metrics != nil {
		routes.Handle("GET /metrics", d.Metrics)
	}

	root := http.NewServeMux()
	if d.Realtime != nil {
		root.Handle("GET /ws", d.Realtime)
	}
	root.Handle("/", middleware.Timing(d.Security.SlowRequestThreshold, logger)(routes))
	return middleware.RequestContext(root)
}

// Server runs the router on a TCP address.
type Server struct {
	srv             *http.Server
	shutdownTimeout time.Duration
	logger          *zap.Logger
}

func NewServer(addr string, handler http.Handler, readHeaderTimeout, shutdownTimeout time.Duration, logger *zap.Logger) *Server {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Server{
		srv: &http.Server{
			Addr:              addr,
			Handler:           handler,
			ReadHeaderTimeout: readHeaderTimeout,
		},
		shutdownTimeout: shutdownTimeout,
		logger:          logger.With(zap.String("component", "server")),
	}
}

// Run serves until ctx is cancelled, then shuts down gracefully.
func (s *Server) Run(ctx context.Context) error {
	errCh := make(chan error, 1)
	go func() {
		s.logger.Info("starting HTTP server", zap.String("address", s.srv.Addr))
		if err := s.srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	s.logger.Info("shutting down HTTP server")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), s.shutdownTimeout)
	defer cancel()
	if err := s.srv.Shutdown(shutdownCtx); err != nil {
		return err
	}
	return <-errCh
}
