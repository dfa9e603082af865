package service

import (
	"context"
	"errors"
	"strings"

	"transport-connect/internal/domain/message"
	"transport-connect/internal/domain/user"
	"transport-connect/internal/general/contracts"
	"transport-connect/internal/ports"
)

// MarkRead records receipts for the given messages of one conversation.
// The reader's own messages, foreign messages and existing receipts are
// skipped silently.
func (service *chatService) MarkRead(ctx context.Context, who user.Identity, requestID string, messageIDs []string) (ports.ReadResult, error) {
	requestID, err := requireID(requestID)
	if err != nil {
		return ports.ReadResult{}, err
	}
	ids := dedupe(messageIDs)
	return service.markRead(ctx, who, requestID, func(ctx context.Context) ([]*message.Message, error) {
		out := make([]*message.Message, 0, len(ids))
		for _, id := range ids {
			m, err := service.messages.GetForUpdate(ctx, id)
			if errors.Is(err, ports.ErrNotFound) {
				continue
			}
			if err != nil {
				return nil, storeErr("message", err)
			}
			if m.RequestID == requestID {
				out = append(out, m)
			}
		}
		return out, nil
	})
}

// MarkConversationRead marks every unread message of the conversation.
func (service *chatService) MarkConversationRead(ctx context.Context, who user.Identity, requestID string) (ports.ReadResult, error) {
	requestID, err := requireID(requestID)
	if err != nil {
		return ports.ReadResult{}, err
	}
	return service.markRead(ctx, who, requestID, func(ctx context.Context) ([]*message.Message, error) {
		msgs, err := service.messages.Unread(ctx, requestID, who.ID)
		return msgs, storeErr("messages", err)
	})
}

func (service *chatService) markRead(
	ctx context.Context,
	who user.Identity,
	requestID string,
	candidates func(ctx context.Context) ([]*message.Message, error),
) (ports.ReadResult, error) {
	ctx = service.logger.WithShipmentID(ctx, requestID)
	res := ports.ReadResult{RequestID: requestID, ReadBy: who.ID, MessageIDs: []string{}, ReadAt: service.now()}

	err := service.uow.WithinTx(ctx, func(ctx context.Context) error {
		if _, err := service.loadParticipantRequest(ctx, who, requestID, msgJoinForbidden); err != nil {
			return err
		}
		msgs, err := candidates(ctx)
		if err != nil {
			return err
		}
		for _, m := range msgs {
			if !m.MarkRead(who.ID, res.ReadAt) {
				continue
			}
			if err := service.messages.Update(ctx, m); err != nil {
				return storeErr("message", err)
			}
			res.MessageIDs = append(res.MessageIDs, m.ID)
		}
		return nil
	})
	if err != nil {
		return ports.ReadResult{}, err
	}

	if len(res.MessageIDs) > 0 {
		service.hub.ToRoom(requestID, contracts.EventMessagesRead, contracts.MessagesRead{
			RequestID:  requestID,
			ReadBy:     who.ID,
			MessageIDs: res.MessageIDs,
			ReadAt:     res.ReadAt,
		}, who.ID)
		service.logger.Debug(ctx, "messages_read", "Read receipts recorded", map[string]any{
			"count": len(res.MessageIDs),
		})
	}
	return res, nil
}

func dedupe(ids []string) []string {
	seen := make(map[string]struct{}, len(ids))
	out := make([]string, 0, len(ids))
	for _, id := range ids {
		id = strings.TrimSpace(id)
		if id == "" {
			continue
		}
		if _, ok := seen[id]; ok {
			continue
		}
		seen[id] = struct{}{}
		out = append(out, id)
	}
	return out
}
