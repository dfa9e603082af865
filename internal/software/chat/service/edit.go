package service

import (
	"context"
	"strings"
	"time"

	"transport-connect/internal/domain/message"
	"transport-connect/internal/domain/user"
	"transport-connect/internal/general/apperr"
	"transport-connect/internal/general/contracts"
)

// EditMessage replaces the content of the caller's own message.
func (service *chatService) EditMessage(ctx context.Context, who user.Identity, messageID, content string) (*message.Message, error) {
	return service.mutate(ctx, who, messageID, false, "message_edited", func(m *message.Message, now time.Time) (bool, error) {
		before := m.Content
		if err := m.Edit(who.ID, content, now, service.opts.MaxContentLength, service.opts.EditHistoryLimit); err != nil {
			return false, err
		}
		return m.Content != before, nil
	})
}

// DeleteMessage soft-deletes a message. The author or an admin may do it.
func (service *chatService) DeleteMessage(ctx context.Context, who user.Identity, messageID string) (*message.Message, error) {
	return service.mutate(ctx, who, messageID, true, "message_deleted", func(m *message.Message, now time.Time) (bool, error) {
		return m.Delete(who.ID, who.IsAdmin(), now)
	})
}

func (service *chatService) AddReaction(ctx context.Context, who user.Identity, messageID, emoji string) (*message.Message, error) {
	return service.mutate(ctx, who, messageID, false, "reaction_added", func(m *message.Message, now time.Time) (bool, error) {
		return m.AddReaction(who.ID, emoji, now)
	})
}

func (service *chatService) RemoveReaction(ctx context.Context, who user.Identity, messageID, emoji string) (*message.Message, error) {
	return service.mutate(ctx, who, messageID, false, "reaction_removed", func(m *message.Message, now time.Time) (bool, error) {
		return m.RemoveReaction(who.ID, emoji, now)
	})
}

// mutate loads a message under lock, checks conversation access, applies fn
// and broadcasts message_updated when something changed.
func (service *chatService) mutate(
	ctx context.Context,
	who user.Identity,
	messageID string,
	adminBypass bool,
	action string,
	fn func(m *message.Message, now time.Time) (bool, error),
) (*message.Message, error) {
	messageID = strings.TrimSpace(messageID)
	if messageID == "" {
		return nil, apperr.Validation("messageId is required", nil)
	}

	var (
		out     *message.Message
		changed bool
	)
	err := service.uow.WithinTx(ctx, func(ctx context.Context) error {
		m, err := service.messages.GetForUpdate(ctx, messageID)
		if err != nil {
			return storeErr("message", err)
		}
		r, err := service.requests.GetByID(ctx, m.RequestID)
		if err != nil {
			return storeErr("request", err)
		}
		if !r.IsParticipant(who.ID) && !(adminBypass && who.IsAdmin()) {
			return apperr.Forbidden(msgJoinForbidden, nil)
		}
		if changed, err = fn(m, service.now()); err != nil {
			return domainErr(err)
		}
		if changed {
			if err := service.messages.Update(ctx, m); err != nil {
				return storeErr("message", err)
			}
		}
		out = m
		return nil
	})
	if err != nil {
		service.logger.Warn(ctx, action+"_failed", "Message change refused", err, map[string]any{
			"message_id": messageID,
		})
		return nil, err
	}

	if changed {
		service.hub.ToRoom(out.RequestID, contracts.EventMessageUpdated, contracts.NewMessage{
			RequestID: out.RequestID,
			Message:   out,
		}, "")
		service.logger.Info(service.logger.WithShipmentID(ctx, out.RequestID), action, "Message updated", map[string]any{
			"message_id": out.ID,
		})
	}
	return out, nil
}
