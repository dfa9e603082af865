package handler

import (
	"context"
	"net/http"
	"strconv"
	"strings"
	"time"

	"transport-connect/internal/domain/notification"
	"transport-connect/internal/general/apperr"
	"transport-connect/internal/general/httpx"
	"transport-connect/internal/general/jwt"
	"transport-connect/internal/general/logger"
	"transport-connect/internal/general/metrics"
	"transport-connect/internal/ports"
)

// NotificationHTTPHandler adapts HTTP requests to the NotificationService.
type NotificationHTTPHandler struct {
	svc    ports.NotificationService
	logger *logger.Logger
	auth   *jwt.Manager
	resp   *httpx.Responder
	checks map[string]httpx.Check
}

func NewNotificationHTTPHandler(svc ports.NotificationService, logger *logger.Logger, auth *jwt.Manager, checks map[string]httpx.Check) *NotificationHTTPHandler {
	return &NotificationHTTPHandler{svc: svc, logger: logger, auth: auth, resp: httpx.NewResponder(logger), checks: checks}
}

// RegisterRoutes mounts notification endpoints on the provided mux.
func (handler *NotificationHTTPHandler) RegisterRoutes(mux *http.ServeMux) {
	authed := jwt.AuthMiddlewareFunc(handler.auth)
	mux.HandleFunc("GET /notifications", authed(handler.handleList))
	mux.HandleFunc("POST /notifications/{notification_id}/read", authed(handler.handleMarkRead))
	mux.HandleFunc("GET /health", handler.resp.Health(handler.checks))
	mux.Handle("GET /metrics", metrics.Handler())
}

type listResponse struct {
	Notifications []*notification.Notification `json:"notifications"`
	Count         int                          `json:"count"`
	Unread        int                          `json:"unread"`
}

// ----- GET /notifications?limit= -----

func (handler *NotificationHTTPHandler) handleList(w http.ResponseWriter, r *http.Request) {
	ctx := handler.resp.WithReqID(r.Context(), r)
	who := jwt.RequireClaims(r).Identity()

	limit := 0
	if raw := strings.TrimSpace(r.URL.Query().Get("limit")); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n < 1 {
			handler.resp.Error(ctx, w, apperr.Validation("limit must be a positive integer", err))
			return
		}
		limit = n
	}

	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	list, err := handler.svc.List(ctx, who, limit)
	if err != nil {
		handler.resp.Error(ctx, w, err)
		return
	}
	unread := 0
	for _, n := range list {
		if n.ReadAt == nil {
			unread++
		}
	}
	handler.resp.JSON(ctx, w, http.StatusOK, listResponse{Notifications: list, Count: len(list), Unread: unread})
}

// ----- POST /notifications/{notification_id}/read -----

func (handler *NotificationHTTPHandler) handleMarkRead(w http.ResponseWriter, r *http.Request) {
	ctx := handler.resp.WithReqID(r.Context(), r)
	who := jwt.RequireClaims(r).Identity()
	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	id := r.PathValue("notification_id")
	if err := handler.svc.MarkRead(ctx, who, id); err != nil {
		handler.resp.Error(ctx, w, err)
		return
	}
	handler.logger.Info(ctx, "notification_read", "Notification marked read", map[string]any{"notification_id": id})
	handler.resp.JSON(ctx, w, http.StatusOK, map[string]string{"id": id, "status": "read"})
}
