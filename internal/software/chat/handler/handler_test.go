package handler

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"
	"time"

	"transport-connect/internal/domain/message"
	"transport-connect/internal/domain/user"
	"transport-connect/internal/general/httpx"
	"transport-connect/internal/general/jwt"
	"transport-connect/internal/general/logger"
	"transport-connect/internal/general/memstore"
	"transport-connect/internal/general/realtime"
	"transport-connect/internal/ports"
	"transport-connect/internal/software/chat/service"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var (
	driver  = user.Identity{ID: memstore.DemoDriverID, Role: user.RoleDriver}
	shipper = user.Identity{ID: memstore.DemoShipperID, Role: user.RoleShipper}
	admin   = user.Identity{ID: memstore.DemoAdminID, Role: user.RoleAdmin}
)

type env struct {
	t   *testing.T
	svc ports.ChatService
	mgr *jwt.Manager
	mux *http.ServeMux
}

func newEnv(t *testing.T) *env {
	t.Helper()
	store := memstore.New()
	require.NoError(t, memstore.Seed(context.Background(), store))
	hub := realtime.NewHub(logger.Discard(), realtime.NewRegistry(nil), realtime.NewRooms())
	svc := service.NewChatService(logger.Discard(), store.UnitOfWork(), store.Users(), store.Requests(),
		store.Messages(), hub, nil, nil, service.Options{})
	mgr := jwt.NewManager("handler-secret", time.Hour)

	mux := http.NewServeMux()
	NewChatHTTPHandler(svc, logger.Discard(), mgr, map[string]httpx.Check{
		"store": func(context.Context) error { return nil },
	}, true).RegisterRoutes(mux)
	return &env{t: t, svc: svc, mgr: mgr, mux: mux}
}

func (e *env) do(who *user.Identity, method, path, body string) *httptest.ResponseRecorder {
	e.t.Helper()
	var r *http.Request
	if body != "" {
		r = httptest.NewRequest(method, path, strings.NewReader(body))
		r.Header.Set("Content-Type", "application/json")
	} else {
		r = httptest.NewRequest(method, path, nil)
	}
	if who != nil {
		tok, _, err := e.mgr.IssueUserToken(who.ID, who.Role)
		require.NoError(e.t, err)
		r.Header.Set("Authorization", "Bearer "+tok)
	}
	rec := httptest.NewRecorder()
	e.mux.ServeHTTP(rec, r)
	return rec
}

func (e *env) send(who user.Identity, content string) *message.Message {
	e.t.Helper()
	m, err := e.svc.SendMessage(context.Background(), who, ports.SendMessageInput{
		RequestID: memstore.DemoRequestID,
		Content:   content,
	})
	require.NoError(e.t, err)
	return m
}

func decodeBody[T any](t *testing.T, rec *httptest.ResponseRecorder) T {
	t.Helper()
	var out T
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &out), rec.Body.String())
	return out
}

const base = "/requests/" + memstore.DemoRequestID + "/messages"

func TestHistoryPaging(t *testing.T) {
	e := newEnv(t)
	for _, c := range []string{"one", "two", "three"} {
		e.send(driver, c)
	}

	rec := e.do(&shipper, http.MethodGet, base+"?page=1&limit=2", "")
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	page := decodeBody[ports.HistoryPage](t, rec)
	assert.Equal(t, 3, page.Total)
	assert.True(t, page.HasMore)
	require.Len(t, page.Messages, 2)
	assert.Equal(t, "three", page.Messages[0].Content)

	rec = e.do(&shipper, http.MethodGet, base+"?page=zero", "")
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = e.do(nil, http.MethodGet, base, "")
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	outsider := user.Identity{ID: "550e8400-e29b-41d4-a716-446655440099", Role: user.RoleShipper}
	rec = e.do(&outsider, http.MethodGet, base, "")
	assert.Equal(t, http.StatusUnauthorized, rec.Code, "unknown accounts are rejected")

	rec = e.do(&admin, http.MethodGet, base, "")
	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestUnreadCountAndMarkRead(t *testing.T) {
	e := newEnv(t)
	e.send(driver, "a")
	e.send(driver, "b")

	got := decodeBody[unreadResponse](t, e.do(&shipper, http.MethodGet, base+"/unread-count", ""))
	assert.Equal(t, 2, got.UnreadCount)

	rec := e.do(&shipper, http.MethodPost, base+"/read", "")
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	read := decodeBody[ports.ReadResult](t, rec)
	assert.Len(t, read.MessageIDs, 2)

	got = decodeBody[unreadResponse](t, e.do(&shipper, http.MethodGet, base+"/unread-count", ""))
	assert.Equal(t, 0, got.UnreadCount)
}

func TestSearch(t *testing.T) {
	e := newEnv(t)
	e.send(driver, "Loading at dock 4")
	e.send(shipper, "thanks")

	rec := e.do(&driver, http.MethodGet, base+"/search?q=DOCK", "")
	require.Equal(t, http.StatusOK, rec.Code)
	res := decodeBody[searchResponse](t, rec)
	assert.Equal(t, 1, res.Count)

	rec = e.do(&driver, http.MethodGet, base+"/search", "")
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestMessageMutations(t *testing.T) {
	e := newEnv(t)
	m := e.send(driver, "ETA 10 min")
	path := "/messages/" + m.ID

	rec := e.do(&driver, http.MethodPatch, path, `{"content":"ETA 15 min"}`)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	edited := decodeBody[message.Message](t, rec)
	assert.True(t, edited.IsEdited)
	require.Len(t, edited.EditHistory, 1)
	assert.Equal(t, "ETA 10 min", edited.EditHistory[0].Content)

	rec = e.do(&shipper, http.MethodPatch, path, `{"content":"hijack"}`)
	assert.Equal(t, http.StatusForbidden, rec.Code)

	rec = e.do(&driver, http.MethodPatch, path, `{"content":"x","pinned":true}`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = e.do(&shipper, http.MethodPost, path+"/reactions", `{"emoji":"👍"}`)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	reacted := decodeBody[message.Message](t, rec)
	require.Len(t, reacted.Reactions, 1)
	assert.Equal(t, 1, reacted.Reactions[0].Count)

	rec = e.do(&shipper, http.MethodDelete, path+"/reactions/"+url.PathEscape("👍"), "")
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	assert.Empty(t, decodeBody[message.Message](t, rec).Reactions)

	rec = e.do(&admin, http.MethodDelete, path, "")
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	deleted := decodeBody[message.Message](t, rec)
	assert.True(t, deleted.IsDeleted)
	assert.Equal(t, message.DeletedPlaceholder, deleted.Content)

	rec = e.do(&driver, http.MethodPatch, "/messages/missing", `{"content":"x"}`)
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestOnlineUsersIsAdminOnly(t *testing.T) {
	e := newEnv(t)
	assert.Equal(t, http.StatusForbidden, e.do(&driver, http.MethodGet, "/users/online", "").Code)

	rec := e.do(&admin, http.MethodGet, "/users/online", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, 0, decodeBody[onlineResponse](t, rec).Count)

	assert.Equal(t, http.StatusForbidden, e.do(&shipper, http.MethodGet, "/admin/overview", "").Code)
	rec = e.do(&admin, http.MethodGet, "/admin/overview", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `[]`, string(decodeBody[map[string]json.RawMessage](t, rec)["longestIdle"]))
}

func TestTokensAndHealth(t *testing.T) {
	e := newEnv(t)

	rec := e.do(nil, http.MethodPost, "/tokens", `{"user_id":"`+memstore.DemoShipperID+`","role":"shipper"}`)
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	tok := decodeBody[tokenResponse](t, rec)
	claims, err := e.mgr.ParseAndValidate(tok.Token)
	require.NoError(t, err)
	assert.Equal(t, user.RoleShipper, claims.Role)

	rec = e.do(nil, http.MethodPost, "/tokens", `{"user_id":"x","role":"pilot"}`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = e.do(nil, http.MethodGet, "/health", "")
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `"store":"up"`)

	// the socket upgrade is mounted by the binary, not by the REST handler
	rec = e.do(nil, http.MethodGet, "/ws", "")
	assert.Equal(t, http.StatusNotFound, rec.Code)
}
