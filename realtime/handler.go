package realtime

import (
	"context"
	"net/http"
	"time"

	goFleet "github.com/MrEthical07/goFleet"
	"github.com/MrEthical07/goFleet/broadcast"
	"github.com/gorilla/websocket"
	"go.uber.org/zap"
)

// Close reasons sent with code 1008.
const (
	ReasonTokenMissing = "Token not provided"
	ReasonTokenInvalid = "Invalid or expired token"
)

// GreetingMessage accompanies the CONNECTION_SUCCESS event.
const GreetingMessage = "Successfully connected to real-time service."

// Authenticator resolves an access token to its owner.
type Authenticator interface {
	Authenticate(ctx context.Context, bearer string) (goFleet.Principal, error)
}

// Config tunes the connection pumps. Zero fields take defaults.
type Config struct {
	WriteWait      time.Duration
	PongWait       time.Duration
	PingPeriod     time.Duration
	MaxMessageSize int64
	SendBuffer     int
	CheckOrigin    func(*http.Request) bool
}

func (c Config) withDefaults() Config {
	if c.WriteWait <= 0 {
		c.WriteWait = 10 * time.Second
	}
	if c.PongWait <= 0 {
		c.PongWait = 60 * time.Second
	}
	if c.PingPeriod <= 0 || c.PingPeriod >= c.PongWait {
		c.PingPeriod = c.PongWait * 9 / 10
	}
	if c.MaxMessageSize <= 0 {
		c.MaxMessageSize = 4096
	}
	if c.SendBuffer <= 0 {
		c.SendBuffer = 256
	}
	if c.CheckOrigin == nil {
		c.CheckOrigin = func(*http.Request) bool { return true }
	}
	return c
}

// Handler is the websocket endpoint.
type Handler struct {
	auth      Authenticator
	registry  *broadcast.Registry
	publisher broadcast.Publisher
	cfg       Config
	upgrader  websocket.Upgrader
	logger    *zap.Logger
	metrics   *goFleet.Metrics
}

// NewHandler wires the endpoint. publisher receives relayed heartbeats; pass
// the registry itself for a single process or a broadcast.RedisRelay to span
// several.
func NewHandler(auth Authenticator, registry *broadcast.Registry, publisher broadcast.Publisher, cfg Config, logger *zap.Logger, metrics *goFleet.Metrics) *Handler {
	cfg = cfg.withDefaults()
	if publisher == nil {
		publisher = registry
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Handler{
		auth:      auth,
		registry:  registry,
		publisher: publisher,
		cfg:       cfg,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin:     cfg.CheckOrigin,
		},
		logger:  logger.With(zap.String("component", "realtime")),
		metrics: metrics,
	}
}

func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	ws, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.logger.Debug("websocket upgrade failed", zap.Error(err))
		return
	}

	token := r.URL.Query().Get("token")
	if token == "" {
		h.reject(ws, ReasonTokenMissing)
		return
	}
	principal, err := h.auth.Authenticate(r.Context(), token)
	if err != nil {
		h.reject(ws, ReasonTokenInvalid)
		return
	}

	c := newConn(ws, principal.UserID, principal.TenantID, h.cfg.SendBuffer)
	greeting, err := broadcast.Event{Type: broadcast.TypeConnectionSuccess, Message: GreetingMessage}.Encode()
	if err == nil {
		_ = c.Send(greeting)
	}
	if prev := h.registry.Register(principal.UserID, principal.TenantID, c); prev != nil {
		if old, ok := prev.(interface{ Close() }); ok {
			old.Close()
		}
	}
	h.metrics.Inc(goFleet.MetricRealtimeConnected)
	h.logger.Info("websocket client connected",
		zap.String("user_id", principal.UserID),
		zap.String("handle", principal.Handle),
		zap.String("tenant_id", principal.TenantID),
	)

	go c.writePump(h.cfg, h.logger)
	c.readPump(r.Context(), h.cfg, h.publisher, h.logger)

	h.registry.Release(principal.UserID, c)
	c.Close()
	h.logger.Info("websocket client disconnected", zap.String("user_id", principal.UserID))
}

func (h *Handler) reject(ws *websocket.Conn, reason string) {
	h.metrics.Inc(goFleet.MetricRealtimeRejected)
	msg := websocket.FormatCloseMessage(websocket.ClosePolicyViolation, reason)
	_ = ws.WriteControl(websocket.CloseMessage, msg, time.Now().Add(h.cfg.WriteWait))
	_ = ws.Close()
}
