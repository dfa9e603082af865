package service

import (
	"context"

	"transport-connect/internal/domain/message"
	"transport-connect/internal/domain/user"
	"transport-connect/internal/ports"
)

// JoinConversation admits a participant to the request room and returns the
// most recent history, oldest first.
func (service *chatService) JoinConversation(ctx context.Context, who user.Identity, requestID string) (ports.JoinResult, error) {
	requestID, err := requireID(requestID)
	if err != nil {
		return ports.JoinResult{}, err
	}
	ctx = service.logger.WithShipmentID(ctx, requestID)

	var history []*message.Message
	err = service.uow.WithinTx(ctx, func(ctx context.Context) error {
		if _, err := service.loadParticipantRequest(ctx, who, requestID, msgJoinForbidden); err != nil {
			return err
		}
		msgs, err := service.messages.Recent(ctx, requestID, service.opts.HistoryLimit)
		if err != nil {
			return storeErr("messages", err)
		}
		history = msgs
		return nil
	})
	if err != nil {
		service.logger.Warn(ctx, "join_conversation_denied", "Join refused", err, nil)
		return ports.JoinResult{}, err
	}

	service.hub.Join(requestID, who.ID)
	reverse(history)
	if history == nil {
		history = []*message.Message{}
	}

	service.logger.Info(ctx, "conversation_joined", "User joined conversation", map[string]any{
		"history": len(history),
	})
	return ports.JoinResult{RequestID: requestID, Messages: history}, nil
}

// LeaveConversation is idempotent and needs no authorization.
func (service *chatService) LeaveConversation(ctx context.Context, who user.Identity, requestID string) error {
	requestID, err := requireID(requestID)
	if err != nil {
		return err
	}
	if service.hub.Leave(requestID, who.ID) {
		service.logger.Info(service.logger.WithShipmentID(ctx, requestID), "conversation_left", "User left conversation", nil)
	}
	return nil
}
