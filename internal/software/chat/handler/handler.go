package handler

import (
	"context"
	"net/http"
	"time"

	"transport-connect/internal/domain/user"
	"transport-connect/internal/general/apperr"
	"transport-connect/internal/general/httpx"
	"transport-connect/internal/general/jwt"
	"transport-connect/internal/general/logger"
	"transport-connect/internal/general/metrics"
	"transport-connect/internal/ports"
)

const opTimeout = 5 * time.Second

// ChatHTTPHandler adapts REST requests to the ChatService.
type ChatHTTPHandler struct {
	svc       ports.ChatService
	logger    *logger.Logger
	auth      *jwt.Manager
	resp      *httpx.Responder
	checks    map[string]httpx.Check
	devTokens bool
}

// NewChatHTTPHandler wires the REST surface. checks back GET /health.
func NewChatHTTPHandler(
	svc ports.ChatService,
	logger *logger.Logger,
	auth *jwt.Manager,
	checks map[string]httpx.Check,
	devTokens bool,
) *ChatHTTPHandler {
	return &ChatHTTPHandler{
		svc:       svc,
		logger:    logger,
		auth:      auth,
		resp:      httpx.NewResponder(logger),
		checks:    checks,
		devTokens: devTokens,
	}
}

// RegisterRoutes mounts chat endpoints on the provided mux.
func (handler *ChatHTTPHandler) RegisterRoutes(mux *http.ServeMux) {
	authed := jwt.AuthMiddlewareFunc(handler.auth)

	mux.HandleFunc("GET /requests/{request_id}/messages", authed(handler.handleHistory))
	mux.HandleFunc("GET /requests/{request_id}/messages/unread-count", authed(handler.handleUnreadCount))
	mux.HandleFunc("GET /requests/{request_id}/messages/search", authed(handler.handleSearch))
	mux.HandleFunc("POST /requests/{request_id}/messages/read", authed(handler.handleMarkRead))

	mux.HandleFunc("PATCH /messages/{message_id}", authed(handler.handleEdit))
	mux.HandleFunc("DELETE /messages/{message_id}", authed(handler.handleDelete))
	mux.HandleFunc("POST /messages/{message_id}/reactions", authed(handler.handleAddReaction))
	mux.HandleFunc("DELETE /messages/{message_id}/reactions/{emoji}", authed(handler.handleRemoveReaction))

	mux.HandleFunc("GET /admin/overview",
		jwt.AuthMiddlewareFunc(handler.auth, user.RoleAdmin)(handler.handleOverview))
	mux.HandleFunc("GET /users/online",
		jwt.AuthMiddlewareFunc(handler.auth, user.RoleAdmin)(handler.handleOnlineUsers),
	)

	mux.HandleFunc("GET /health", handler.resp.Health(handler.checks))
	mux.Handle("GET /metrics", metrics.Handler())
	if handler.devTokens {
		mux.HandleFunc("POST /tokens", handler.handleCreateToken)
	}
}

// identity resolves the caller's claims against the user store.
func (handler *ChatHTTPHandler) identity(ctx context.Context, r *http.Request) (user.Identity, error) {
	claims := jwt.RequireClaims(r)
	if claims == nil {
		return user.Identity{}, apperr.Unauthenticated("authentication required", jwt.ErrNoCredential)
	}
	return handler.svc.ResolveIdentity(ctx, claims.Subject, claims.Role)
}

// begin prepares the logging context and caller for one request.
func (handler *ChatHTTPHandler) begin(w http.ResponseWriter, r *http.Request) (context.Context, context.CancelFunc, user.Identity, bool) {
	ctx := handler.resp.WithReqID(r.Context(), r)
	ctx, cancel := context.WithTimeout(ctx, opTimeout)
	who, err := handler.identity(ctx, r)
	if err != nil {
		cancel()
		handler.resp.Error(ctx, w, err)
		return nil, nil, user.Identity{}, false
	}
	return handler.logger.WithUserID(ctx, who.ID), cancel, who, true
}
