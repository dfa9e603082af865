package handler

import (
	"encoding/json"
	"net/http"
	"strings"
	"time"

	"transport-connect/internal/domain/user"
	"transport-connect/internal/general/realtime"
)

type onlineResponse struct {
	Users []realtime.Presence `json:"users"`
	Count int                 `json:"count"`
}

// ----- GET /users/online (ADMIN) -----

func (handler *ChatHTTPHandler) handleOnlineUsers(w http.ResponseWriter, r *http.Request) {
	ctx, cancel, who, ok := handler.begin(w, r)
	if !ok {
		return
	}
	defer cancel()

	list, err := handler.svc.OnlineUsers(ctx, who)
	if err != nil {
		handler.resp.Error(ctx, w, err)
		return
	}
	if list == nil {
		list = []realtime.Presence{}
	}
	handler.resp.JSON(ctx, w, http.StatusOK, onlineResponse{Users: list, Count: len(list)})
}

// ----- GET /admin/overview (ADMIN) -----

func (handler *ChatHTTPHandler) handleOverview(w http.ResponseWriter, r *http.Request) {
	ctx, cancel, who, ok := handler.begin(w, r)
	if !ok {
		return
	}
	defer cancel()

	res, err := handler.svc.Overview(ctx, who)
	if err != nil {
		handler.resp.Error(ctx, w, err)
		return
	}
	if res.LongestIdle == nil {
		res.LongestIdle = []realtime.Presence{}
	}
	handler.resp.JSON(ctx, w, http.StatusOK, res)
}

type tokenRequest struct {
	UserID string `json:"user_id"`
	Role   string `json:"role"`
}

type tokenResponse struct {
	Token     string    `json:"token"`
	ExpiresAt time.Time `json:"expires_at"`
	UserID    string    `json:"user_id"`
	Role      user.Role `json:"role"`
}

// ----- POST /tokens (development only) -----

func (handler *ChatHTTPHandler) handleCreateToken(w http.ResponseWriter, r *http.Request) {
	ctx := handler.resp.WithReqID(r.Context(), r)

	var req tokenRequest
	r.Body = http.MaxBytesReader(w, r.Body, 4<<10)
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		handler.resp.Fail(ctx, w, http.StatusBadRequest, "Invalid request body", err)
		return
	}
	if strings.TrimSpace(req.UserID) == "" {
		handler.resp.Fail(ctx, w, http.StatusBadRequest, "user_id is required", nil)
		return
	}
	role, err := user.ParseRole(req.Role)
	if err != nil {
		handler.resp.Fail(ctx, w, http.StatusBadRequest, "role must be DRIVER, SHIPPER or ADMIN", err)
		return
	}

	tokenString, claims, err := handler.auth.IssueUserToken(req.UserID, role)
	if err != nil {
		handler.resp.Fail(ctx, w, http.StatusInternalServerError, "Failed to generate token", err)
		return
	}

	handler.logger.Info(ctx, "token_generated", "JWT token generated successfully",
		map[string]any{"user_id": req.UserID, "role": role.String()})

	handler.resp.JSON(ctx, w, http.StatusCreated, tokenResponse{
		Token:     tokenString,
		ExpiresAt: claims.ExpiresAt.Time,
		UserID:    req.UserID,
		Role:      role,
	})
}
