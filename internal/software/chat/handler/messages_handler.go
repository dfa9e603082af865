package handler

import (
	"net/http"
	"strconv"
	"strings"

	"transport-connect/internal/domain/message"
	"transport-connect/internal/general/apperr"
	"transport-connect/internal/general/httpx"
)

type searchResponse struct {
	RequestID string             `json:"requestId"`
	Query     string             `json:"query"`
	Messages  []*message.Message `json:"messages"`
	Count     int                `json:"count"`
}

type unreadResponse struct {
	RequestID   string `json:"requestId"`
	UnreadCount int    `json:"unreadCount"`
}

type editRequest struct {
	Content string `json:"content" validate:"required"`
}

type reactionRequest struct {
	Emoji string `json:"emoji" validate:"required,max=16"`
}

// positiveQuery reads an optional positive integer query parameter.
func positiveQuery(r *http.Request, key string) (int, error) {
	raw := strings.TrimSpace(r.URL.Query().Get(key))
	if raw == "" {
		return 0, nil
	}
	n, err := strconv.Atoi(raw)
	if err != nil || n < 1 {
		return 0, apperr.Validation(key+" must be a positive integer", err)
	}
	return n, nil
}

// ----- GET /requests/{request_id}/messages -----

func (handler *ChatHTTPHandler) handleHistory(w http.ResponseWriter, r *http.Request) {
	ctx, cancel, who, ok := handler.begin(w, r)
	if !ok {
		return
	}
	defer cancel()

	page, err := positiveQuery(r, "page")
	if err != nil {
		handler.resp.Error(ctx, w, err)
		return
	}
	limit, err := positiveQuery(r, "limit")
	if err != nil {
		handler.resp.Error(ctx, w, err)
		return
	}

	res, err := handler.svc.History(ctx, who, r.PathValue("request_id"), page, limit)
	if err != nil {
		handler.resp.Error(ctx, w, err)
		return
	}
	handler.resp.JSON(ctx, w, http.StatusOK, res)
}

// ----- GET /requests/{request_id}/messages/unread-count -----

func (handler *ChatHTTPHandler) handleUnreadCount(w http.ResponseWriter, r *http.Request) {
	ctx, cancel, who, ok := handler.begin(w, r)
	if !ok {
		return
	}
	defer cancel()

	requestID := r.PathValue("request_id")
	n, err := handler.svc.UnreadCount(ctx, who, requestID)
	if err != nil {
		handler.resp.Error(ctx, w, err)
		return
	}
	handler.resp.JSON(ctx, w, http.StatusOK, unreadResponse{RequestID: requestID, UnreadCount: n})
}

// ----- GET /requests/{request_id}/messages/search?q= -----

func (handler *ChatHTTPHandler) handleSearch(w http.ResponseWriter, r *http.Request) {
	ctx, cancel, who, ok := handler.begin(w, r)
	if !ok {
		return
	}
	defer cancel()

	requestID := r.PathValue("request_id")
	query := r.URL.Query().Get("q")
	msgs, err := handler.svc.Search(ctx, who, requestID, query)
	if err != nil {
		handler.resp.Error(ctx, w, err)
		return
	}
	handler.resp.JSON(ctx, w, http.StatusOK, searchResponse{
		RequestID: requestID,
		Query:     strings.TrimSpace(query),
		Messages:  msgs,
		Count:     len(msgs),
	})
}

// ----- POST /requests/{request_id}/messages/read -----

func (handler *ChatHTTPHandler) handleMarkRead(w http.ResponseWriter, r *http.Request) {
	ctx, cancel, who, ok := handler.begin(w, r)
	if !ok {
		return
	}
	defer cancel()

	res, err := handler.svc.MarkConversationRead(ctx, who, r.PathValue("request_id"))
	if err != nil {
		handler.resp.Error(ctx, w, err)
		return
	}
	handler.logger.Info(ctx, "conversation_read", "Conversation marked read", map[string]any{
		"request_id": res.RequestID,
		"count":      len(res.MessageIDs),
	})
	handler.resp.JSON(ctx, w, http.StatusOK, res)
}

// ----- PATCH /messages/{message_id} -----

func (handler *ChatHTTPHandler) handleEdit(w http.ResponseWriter, r *http.Request) {
	ctx, cancel, who, ok := handler.begin(w, r)
	if !ok {
		return
	}
	defer cancel()

	var req editRequest
	if err := httpx.Decode(w, r, &req); err != nil {
		handler.resp.Error(ctx, w, err)
		return
	}
	m, err := handler.svc.EditMessage(ctx, who, r.PathValue("message_id"), req.Content)
	if err != nil {
		handler.resp.Error(ctx, w, err)
		return
	}
	handler.resp.JSON(ctx, w, http.StatusOK, m)
}

// ----- DELETE /messages/{message_id} -----

func (handler *ChatHTTPHandler) handleDelete(w http.ResponseWriter, r *http.Request) {
	ctx, cancel, who, ok := handler.begin(w, r)
	if !ok {
		return
	}
	defer cancel()

	m, err := handler.svc.DeleteMessage(ctx, who, r.PathValue("message_id"))
	if err != nil {
		handler.resp.Error(ctx, w, err)
		return
	}
	handler.resp.JSON(ctx, w, http.StatusOK, m)
}

// ----- POST /messages/{message_id}/reactions -----

func (handler *ChatHTTPHandler) handleAddReaction(w http.ResponseWriter, r *http.Request) {
	ctx, cancel, who, ok := handler.begin(w, r)
	if !ok {
		return
	}
	defer cancel()

	var req reactionRequest
	if err := httpx.Decode(w, r, &req); err != nil {
		handler.resp.Error(ctx, w, err)
		return
	}
	m, err := handler.svc.AddReaction(ctx, who, r.PathValue("message_id"), req.Emoji)
	if err != nil {
		handler.resp.Error(ctx, w, err)
		return
	}
	handler.resp.JSON(ctx, w, http.StatusOK, m)
}

// ----- DELETE /messages/{message_id}/reactions/{emoji} -----

func (handler *ChatHTTPHandler) handleRemoveReaction(w http.ResponseWriter, r *http.Request) {
	ctx, cancel, who, ok := handler.begin(w, r)
	if !ok {
		return
	}
	defer cancel()

	m, err := handler.svc.RemoveReaction(ctx, who, r.PathValue("message_id"), r.PathValue("emoji"))
	if err != nil {
		handler.resp.Error(ctx, w, err)
		return
	}
	handler.resp.JSON(ctx, w, http.StatusOK, m)
}
