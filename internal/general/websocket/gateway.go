package websocket

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/url"
	"slices"
	"strings"
	"time"

	"transport-connect/internal/domain/user"
	"transport-connect/internal/general/apperr"
	"transport-connect/internal/general/config"
	"transport-connect/internal/general/contracts"
	"transport-connect/internal/general/jwt"
	"transport-connect/internal/general/logger"
	"transport-connect/internal/general/metrics"
	"transport-connect/internal/general/realtime"
	"transport-connect/internal/ports"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
)

// Options tunes the socket lifecycle.
type Options struct {
	AuthTimeout      time.Duration
	PongWait         time.Duration
	PingInterval     time.Duration
	WriteTimeout     time.Duration
	OperationTimeout time.Duration
	SendBuffer       int
	MaxFrameBytes    int64
	EventsPerSecond  float64
	EventBurst       int
	AllowedOrigins   []string
}

// OptionsFromConfig maps the chat section of the config file.
func OptionsFromConfig(c config.ChatConfig) Options {
	return Options{
		AuthTimeout:      c.AuthTimeout,
		OperationTimeout: c.OperationTimeout,
		SendBuffer:       c.SendBuffer,
		MaxFrameBytes:    c.MaxFrameBytes,
		EventsPerSecond:  c.EventsPerSecond,
		EventBurst:       c.EventBurst,
		AllowedOrigins:   c.AllowedOrigins,
	}
}

func (o *Options) applyDefaults() {
	if o.AuthTimeout <= 0 {
		o.AuthTimeout = 5 * time.Second
	}
	if o.PongWait <= 0 {
		o.PongWait = 60 * time.Second
	}
	if o.PingInterval <= 0 || o.PingInterval >= o.PongWait {
		o.PingInterval = o.PongWait / 2
	}
	if o.WriteTimeout <= 0 {
		o.WriteTimeout = 5 * time.Second
	}
	if o.OperationTimeout <= 0 {
		o.OperationTimeout = 5 * time.Second
	}
	if o.SendBuffer <= 0 {
		o.SendBuffer = 64
	}
	if o.MaxFrameBytes <= 0 {
		o.MaxFrameBytes = 64 << 10
	}
	if o.EventsPerSecond <= 0 {
		o.EventsPerSecond = 20
	}
	if o.EventBurst <= 0 {
		o.EventBurst = 40
	}
}

// Gateway upgrades HTTP requests to authenticated realtime sessions and
// routes their events to the chat service.
type Gateway struct {
	logger   *logger.Logger
	jwtMgr   *jwt.Manager
	svc      ports.ChatService
	opts     Options
	upgrader websocket.Upgrader
	routes   map[string]route
}

// NewGateway wires a gateway. An empty AllowedOrigins list accepts any origin.
func NewGateway(logger *logger.Logger, jwtMgr *jwt.Manager, svc ports.ChatService, opts Options) *Gateway {
	opts.applyDefaults()
	g := &Gateway{
		logger: logger,
		jwtMgr: jwtMgr,
		svc:    svc,
		opts:   opts,
	}
	g.upgrader = websocket.Upgrader{
		ReadBufferSize:  1024,
		WriteBufferSize: 1024,
		CheckOrigin:     g.checkOrigin,
	}
	g.routes = g.buildRoutes()
	return g
}

func (g *Gateway) checkOrigin(r *http.Request) bool {
	if len(g.opts.AllowedOrigins) == 0 || slices.Contains(g.opts.AllowedOrigins, "*") {
		return true
	}
	origin := r.Header.Get("Origin")
	if origin == "" {
		return true
	}
	u, err := url.Parse(origin)
	if err != nil {
		return false
	}
	for _, allowed := range g.opts.AllowedOrigins {
		if strings.EqualFold(allowed, origin) || strings.EqualFold(allowed, u.Host) {
			return true
		}
	}
	return false
}

// ServeWS handles GET /ws. A credential in the upgrade request is checked
// before upgrading; otherwise the first frame must be an auth message.
func (g *Gateway) ServeWS(w http.ResponseWriter, r *http.Request) {
	ctx := g.logger.WithRequestID(r.Context(), uuid.NewString())

	claims, err := g.preUpgradeClaims(r)
	if err != nil {
		g.logger.Warn(ctx, "ws_auth_failed", "Rejected upgrade with invalid credential", err, nil)
		w.Header().Set("Content-Type", "application/json; charset=utf-8")
		w.WriteHeader(http.StatusUnauthorized)
		_ = json.NewEncoder(w).Encode(map[string]string{"error": "authentication failed: invalid token"})
		return
	}

	conn, err := g.upgrader.Upgrade(w, r, nil)
	if err != nil {
		g.logger.Error(ctx, "websocket_upgrade_failed", "Failed to upgrade to WebSocket", err, nil)
		return
	}
	conn.SetReadLimit(g.opts.MaxFrameBytes)

	who, err := g.authenticate(ctx, conn, claims)
	if err != nil {
		g.logger.Warn(ctx, "ws_auth_failed", "WebSocket authentication failed", err, nil)
		g.rejectConn(conn, apperr.Message(err))
		return
	}
	ctx = g.logger.WithUserID(ctx, who.ID)

	c := newClient(uuid.NewString(), who.ID, conn, g.opts)
	g.reply(c, contracts.EventAuthSuccess, contracts.AuthSuccess{
		UserID:    who.ID,
		Role:      who.Role.String(),
		Timestamp: time.Now().UTC(),
	})
	go c.writePump()

	g.svc.Connect(ctx, who, c)
	defer func() {
		c.Close()
		g.svc.Disconnect(context.WithoutCancel(ctx), who, c.ConnID())
	}()

	_ = conn.SetReadDeadline(time.Now().Add(g.opts.PongWait))
	conn.SetPongHandler(func(string) error {
		g.svc.Heartbeat(who)
		return conn.SetReadDeadline(time.Now().Add(g.opts.PongWait))
	})

	g.readLoop(ctx, &session{who: who, client: c})
}

// preUpgradeClaims returns nil claims when the request carries no credential.
func (g *Gateway) preUpgradeClaims(r *http.Request) (*jwt.Claims, error) {
	raw, err := jwt.FromRequest(r)
	if errors.Is(err, jwt.ErrNoCredential) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return g.jwtMgr.ParseAndValidate(raw)
}

// authenticate completes the handshake and checks the identity against the
// user store.
func (g *Gateway) authenticate(ctx context.Context, conn *websocket.Conn, claims *jwt.Claims) (user.Identity, error) {
	if claims == nil {
		var err error
		if claims, err = g.readAuthFrame(conn); err != nil {
			return user.Identity{}, err
		}
	}
	opCtx, cancel := context.WithTimeout(ctx, g.opts.OperationTimeout)
	defer cancel()
	return g.svc.ResolveIdentity(opCtx, claims.Subject, claims.Role)
}

func (g *Gateway) readAuthFrame(conn *websocket.Conn) (*jwt.Claims, error) {
	if err := conn.SetReadDeadline(time.Now().Add(g.opts.AuthTimeout)); err != nil {
		return nil, apperr.Unauthenticated("internal server error", err)
	}
	mt, frame, err := conn.ReadMessage()
	if err != nil {
		return nil, apperr.Unauthenticated("authentication timeout: please send auth message within "+g.opts.AuthTimeout.String(), err)
	}
	if mt != websocket.TextMessage {
		return nil, apperr.Unauthenticated("auth message must be in text format", nil)
	}
	claims, err := jwt.ValidateWSAuth(frame, g.jwtMgr)
	if err != nil {
		return nil, apperr.Unauthenticated("authentication failed: invalid token", err)
	}
	return claims, nil
}

// rejectConn writes auth_error directly (no pump runs yet) and closes.
func (g *Gateway) rejectConn(conn *websocket.Conn, msg string) {
	defer conn.Close()
	frame, err := realtime.Frame(contracts.EventAuthError, contracts.ErrorEvent{Message: msg})
	if err != nil {
		return
	}
	deadline := time.Now().Add(g.opts.WriteTimeout)
	_ = conn.SetWriteDeadline(deadline)
	if err := conn.WriteMessage(websocket.TextMessage, frame); err != nil {
		return
	}
	_ = conn.WriteControl(
		websocket.CloseMessage,
		websocket.FormatCloseMessage(websocket.ClosePolicyViolation, "unauthorized"),
		deadline,
	)
}

// reply enqueues an event for c alone.
func (g *Gateway) reply(c *client, event string, data any) {
	frame, err := realtime.Frame(event, data)
	if err != nil {
		g.logger.Error(context.Background(), "ws_frame_encode_failed", "Failed to encode frame", err, map[string]any{"event": event})
		return
	}
	if !c.Send(frame) {
		c.Close()
		return
	}
	metrics.EventsSent.WithLabelValues(event).Inc()
}
