package websocket

import (
	"context"
	"encoding/json"
	"time"

	"transport-connect/internal/domain/user"
	"transport-connect/internal/general/apperr"
	"transport-connect/internal/general/contracts"
	"transport-connect/internal/general/metrics"
	"transport-connect/internal/general/validation"
	"transport-connect/internal/ports"

	"github.com/gorilla/websocket"
	"golang.org/x/time/rate"
)

// session is the per-connection state visible to event handlers.
type session struct {
	who    user.Identity
	client *client
}

type route func(ctx context.Context, s *session, data json.RawMessage) error

func (g *Gateway) buildRoutes() map[string]route {
	return map[string]route{
		contracts.EventJoinConversation:    g.onJoin,
		contracts.EventLeaveConversation:   g.onLeave,
		contracts.EventSendMessage:         g.onSend,
		contracts.EventTypingStart:         g.onTyping(true),
		contracts.EventTypingStop:          g.onTyping(false),
		contracts.EventMarkMessagesRead:    g.onMarkRead,
		contracts.EventRequestStatusUpdate: g.onStatusUpdate,
		contracts.EventShareLocation:       g.onShareLocation,
		contracts.EventPing:                g.onPing,
	}
}

// readLoop handles the connection's events one at a time, in arrival order.
func (g *Gateway) readLoop(ctx context.Context, s *session) {
	conn := s.client.conn
	limiter := rate.NewLimiter(rate.Limit(g.opts.EventsPerSecond), g.opts.EventBurst)

	for {
		_, payload, err := conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) && !s.client.closed() {
				g.logger.Warn(ctx, "ws_unexpected_close", "Connection closed unexpectedly", err, nil)
			} else {
				g.logger.Debug(ctx, "ws_connection_closed", "Connection closed", nil)
			}
			return
		}
		_ = conn.SetReadDeadline(time.Now().Add(g.opts.PongWait))

		var env struct {
			Type string          `json:"type"`
			Data json.RawMessage `json:"data"`
		}
		if err := json.Unmarshal(payload, &env); err != nil || env.Type == "" {
			g.fail(ctx, s, "", apperr.Validation("invalid message format", err))
			continue
		}

		h, known := g.routes[env.Type]
		label := env.Type
		if !known {
			label = "unknown"
		}
		metrics.EventsReceived.WithLabelValues(label).Inc()

		if !limiter.Allow() {
			g.fail(ctx, s, env.Type, apperr.RateLimited("rate limit exceeded"))
			continue
		}
		g.svc.Heartbeat(s.who)

		if !known {
			if env.Type == contracts.EventAuth {
				g.fail(ctx, s, env.Type, apperr.Validation("already authenticated", nil))
			} else {
				g.fail(ctx, s, env.Type, apperr.Validation("unknown event type: "+env.Type, nil))
			}
			continue
		}

		opCtx, cancel := context.WithTimeout(ctx, g.opts.OperationTimeout)
		err = h(opCtx, s, env.Data)
		cancel()
		if err != nil {
			g.fail(ctx, s, env.Type, err)
			continue
		}
		g.logger.Debug(ctx, "ws_event_handled", "Event handled", map[string]any{"event": env.Type})
	}
}

// fail reports err to the originating connection only. The socket stays open.
func (g *Gateway) fail(ctx context.Context, s *session, event string, err error) {
	details := map[string]any{"event": event, "kind": string(apperr.KindOf(err))}
	switch apperr.KindOf(err) {
	case apperr.KindPersistence, "":
		g.logger.Error(ctx, "ws_event_failed", "Event handling failed", err, details)
	default:
		g.logger.Warn(ctx, "ws_event_rejected", "Event rejected", err, details)
	}
	g.reply(s.client, contracts.EventError, contracts.ErrorEvent{
		Message: apperr.Message(err),
		Code:    string(apperr.KindOf(err)),
		Event:   event,
	})
}

// decode unmarshals data into dst and validates it. Missing data leaves dst
// zero so the service can report the missing fields itself.
func decode(data json.RawMessage, dst any) error {
	if len(data) > 0 && string(data) != "null" {
		if err := json.Unmarshal(data, dst); err != nil {
			return apperr.Validation("invalid payload", err)
		}
	}
	return validation.Struct(dst)
}

func (g *Gateway) onJoin(ctx context.Context, s *session, data json.RawMessage) error {
	var p roomPayload
	if err := decode(data, &p); err != nil {
		return err
	}
	res, err := g.svc.JoinConversation(ctx, s.who, p.RequestID)
	if err != nil {
		return err
	}
	g.reply(s.client, contracts.EventConversationJoined, res)
	return nil
}

func (g *Gateway) onLeave(ctx context.Context, s *session, data json.RawMessage) error {
	var p roomPayload
	if err := decode(data, &p); err != nil {
		return err
	}
	if err := g.svc.LeaveConversation(ctx, s.who, p.RequestID); err != nil {
		return err
	}
	g.reply(s.client, contracts.EventConversationLeft, contracts.ConversationLeft{RequestID: p.RequestID})
	return nil
}

func (g *Gateway) onSend(ctx context.Context, s *session, data json.RawMessage) error {
	var p sendMessagePayload
	if err := decode(data, &p); err != nil {
		return err
	}
	_, err := g.svc.SendMessage(ctx, s.who, ports.SendMessageInput{
		RequestID:   p.RequestID,
		Content:     p.Content,
		Type:        p.Type,
		Priority:    p.Priority,
		ReplyTo:     p.ReplyTo,
		Location:    p.Location,
		Attachments: p.Attachments,
	})
	return err
}

func (g *Gateway) onTyping(start bool) route {
	return func(ctx context.Context, s *session, data json.RawMessage) error {
		var p roomPayload
		if err := decode(data, &p); err != nil {
			return err
		}
		if start {
			return g.svc.TypingStart(ctx, s.who, p.RequestID)
		}
		return g.svc.TypingStop(ctx, s.who, p.RequestID)
	}
}

func (g *Gateway) onMarkRead(ctx context.Context, s *session, data json.RawMessage) error {
	var p markReadPayload
	if err := decode(data, &p); err != nil {
		return err
	}
	_, err := g.svc.MarkRead(ctx, s.who, p.RequestID, p.MessageIDs)
	return err
}

func (g *Gateway) onStatusUpdate(ctx context.Context, s *session, data json.RawMessage) error {
	var p statusPayload
	if err := decode(data, &p); err != nil {
		return err
	}
	_, err := g.svc.UpdateStatus(ctx, s.who, ports.UpdateStatusInput{
		RequestID: p.RequestID,
		Status:    p.Status,
		Note:      p.Note,
		Location:  p.Location,
	})
	return err
}

func (g *Gateway) onShareLocation(ctx context.Context, s *session, data json.RawMessage) error {
	var p locationPayload
	if err := decode(data, &p); err != nil {
		return err
	}
	return g.svc.ShareLocation(ctx, s.who, p.RequestID, *p.Location)
}

func (g *Gateway) onPing(_ context.Context, s *session, _ json.RawMessage) error {
	g.reply(s.client, contracts.EventPong, pongPayload{Timestamp: time.Now().UnixMilli()})
	return nil
}
