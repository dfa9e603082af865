package service

import (
	"context"
	"sort"
	"strings"
	"time"
	"unicode/utf8"

	"transport-connect/internal/domain/message"
	"transport-connect/internal/domain/user"
	"transport-connect/internal/general/apperr"
	"transport-connect/internal/general/metrics"
	"transport-connect/internal/general/realtime"
	"transport-connect/internal/ports"
)

const (
	maxPageSize     = 100
	searchLimit     = 20
	maxSearchLength = 100
)

// History returns one newest-first page of non-deleted messages.
func (service *chatService) History(ctx context.Context, who user.Identity, requestID string, page, limit int) (ports.HistoryPage, error) {
	requestID, err := requireID(requestID)
	if err != nil {
		return ports.HistoryPage{}, err
	}
	if page < 1 {
		page = 1
	}
	if limit <= 0 {
		limit = service.opts.HistoryLimit
	}
	if limit > maxPageSize {
		limit = maxPageSize
	}
	offset := (page - 1) * limit

	out := ports.HistoryPage{RequestID: requestID, Page: page, Limit: limit}
	err = service.uow.WithinTx(ctx, func(ctx context.Context) error {
		if _, err := service.loadReadableRequest(ctx, who, requestID); err != nil {
			return err
		}
		msgs, total, err := service.messages.Page(ctx, requestID, offset, limit)
		if err != nil {
			return storeErr("messages", err)
		}
		out.Messages, out.Total = msgs, total
		return nil
	})
	if err != nil {
		return ports.HistoryPage{}, err
	}
	if out.Messages == nil {
		out.Messages = []*message.Message{}
	}
	out.HasMore = offset+len(out.Messages) < out.Total
	return out, nil
}

// Search finds text messages containing query, newest first.
func (service *chatService) Search(ctx context.Context, who user.Identity, requestID, query string) ([]*message.Message, error) {
	requestID, err := requireID(requestID)
	if err != nil {
		return nil, err
	}
	query = strings.TrimSpace(query)
	if query == "" {
		return nil, apperr.Validation("search query is required", nil)
	}
	if utf8.RuneCountInString(query) > maxSearchLength {
		return nil, apperr.Validation("search query is too long", nil)
	}

	var out []*message.Message
	err = service.uow.WithinTx(ctx, func(ctx context.Context) error {
		if _, err := service.loadReadableRequest(ctx, who, requestID); err != nil {
			return err
		}
		msgs, err := service.messages.Search(ctx, requestID, query, searchLimit)
		if err != nil {
			return storeErr("messages", err)
		}
		out = msgs
		return nil
	})
	if err != nil {
		return nil, err
	}
	if out == nil {
		out = []*message.Message{}
	}
	return out, nil
}

// UnreadCount counts messages of the conversation who has not read yet.
func (service *chatService) UnreadCount(ctx context.Context, who user.Identity, requestID string) (int, error) {
	requestID, err := requireID(requestID)
	if err != nil {
		return 0, err
	}
	var n int
	err = service.uow.WithinTx(ctx, func(ctx context.Context) error {
		if _, err := service.loadReadableRequest(ctx, who, requestID); err != nil {
			return err
		}
		count, err := service.messages.UnreadCount(ctx, requestID, who.ID)
		if err != nil {
			return storeErr("messages", err)
		}
		n = count
		return nil
	})
	return n, err
}

// OnlineUsers lists the registry. Admins only.
func (service *chatService) OnlineUsers(ctx context.Context, who user.Identity) ([]realtime.Presence, error) {
	if !who.IsAdmin() {
		return nil, apperr.Forbidden("admin role required", nil)
	}
	return service.hub.Registry().ListOnline(), nil
}

const overviewIdleTop = 5

// Overview counts connections and live rooms and lists the connections
// that have been quiet the longest. Admins only.
func (service *chatService) Overview(ctx context.Context, who user.Identity) (ports.Overview, error) {
	var res ports.Overview
	if !who.IsAdmin() {
		return res, apperr.Forbidden("admin role required", nil)
	}
	res.Timestamp = service.now()

	online := service.hub.Registry().ListOnline()
	res.Metrics.OnlineUsers = len(online)
	res.Metrics.ActiveConversations = service.hub.Rooms().Len()

	sort.SliceStable(online, func(i, j int) bool { return online[i].LastSeen.Before(online[j].LastSeen) })
	if len(online) > overviewIdleTop {
		online = online[:overviewIdleTop]
	}
	res.LongestIdle = online
	return res, nil
}

// PurgeExpired deletes messages whose expiry passed.
func (service *chatService) PurgeExpired(ctx context.Context, now time.Time) (int64, error) {
	var n int64
	err := service.uow.WithinTx(ctx, func(ctx context.Context) error {
		deleted, err := service.messages.DeleteExpired(ctx, now)
		if err != nil {
			return storeErr("messages", err)
		}
		n = deleted
		return nil
	})
	if err != nil {
		return 0, err
	}
	metrics.RetentionPurged.Add(float64(n))
	return n, nil
}
