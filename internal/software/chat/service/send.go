package service

import (
	"context"
	"fmt"
	"strings"

	"transport-connect/internal/domain/message"
	"transport-connect/internal/domain/notification"
	"transport-connect/internal/domain/request"
	"transport-connect/internal/domain/user"
	"transport-connect/internal/general/apperr"
	"transport-connect/internal/general/contracts"
	"transport-connect/internal/general/metrics"
	"transport-connect/internal/ports"
)

// SendMessage persists a participant's message, fans it out to the room and
// notifies the other participant.
func (service *chatService) SendMessage(ctx context.Context, who user.Identity, in ports.SendMessageInput) (*message.Message, error) {
	requestID := strings.TrimSpace(in.RequestID)
	if requestID == "" || strings.TrimSpace(in.Content) == "" {
		return nil, apperr.Validation(msgContentRequired, nil)
	}
	kind, err := message.ParseKind(in.Type)
	if err != nil {
		return nil, apperr.Validation(err.Error(), err)
	}
	prio, err := message.ParsePriority(in.Priority)
	if err != nil {
		return nil, apperr.Validation(err.Error(), err)
	}
	msg, err := message.New(message.Draft{
		RequestID:   requestID,
		SenderID:    who.ID,
		Content:     in.Content,
		Kind:        kind,
		Priority:    prio,
		ReplyTo:     in.ReplyTo,
		Location:    in.Location,
		Attachments: in.Attachments,
		TTL:         service.opts.MessageTTL,
	}, service.opts.MaxContentLength, service.now())
	if err != nil {
		return nil, domainErr(err)
	}
	ctx = service.logger.WithShipmentID(ctx, requestID)

	var (
		req    *request.Request
		sender *user.User
	)
	err = service.uow.WithinTx(ctx, func(ctx context.Context) error {
		r, err := service.loadParticipantRequest(ctx, who, requestID, msgSendForbidden)
		if err != nil {
			return err
		}
		if msg.ReplyTo != "" {
			parent, err := service.messages.GetByID(ctx, msg.ReplyTo)
			if err != nil || parent.RequestID != requestID {
				return apperr.Validation("replyTo must reference a message of this conversation", err)
			}
		}
		if sender, err = service.users.GetByID(ctx, who.ID); err != nil {
			return storeErr("user", err)
		}
		// stamped inside the transaction so history order follows commit order
		msg.Stamp(service.now())
		if err := service.messages.Create(ctx, msg); err != nil {
			return storeErr("message", err)
		}
		if err := service.requests.TouchLastMessage(ctx, requestID, msg.CreatedAt); err != nil {
			return storeErr("request", err)
		}
		req = r
		return nil
	})
	if err != nil {
		service.logger.Warn(ctx, "send_message_failed", "Message not sent", err, nil)
		return nil, err
	}
	metrics.MessagesSent.WithLabelValues(msg.Kind.String()).Inc()

	service.hub.ToRoom(requestID, contracts.EventNewMessage, contracts.NewMessage{
		RequestID: requestID,
		Message:   msg,
	}, "")

	recipient := req.OtherParticipant(who.ID)
	if service.hub.IsOnline(recipient) {
		service.hub.ToUser(recipient, contracts.EventNewMessageNotification, contracts.NewMessageNotification{
			RequestID: requestID,
			Message:   msg,
			Sender:    senderBrief(sender),
		})
	}
	service.notify(ctx, notification.Intent{
		UserID:    recipient,
		Kind:      notification.KindNewMessage,
		Title:     "New message",
		Body:      fmt.Sprintf("%s sent you a message", sender.DisplayName()),
		RequestID: requestID,
		Priority:  notification.Priority(msg.Priority),
		Data: map[string]any{
			"requestId": requestID,
			"messageId": msg.ID,
			"senderId":  who.ID,
		},
	})

	service.logger.Info(ctx, "message_sent", "Message sent", map[string]any{
		"message_id": msg.ID,
		"type":       msg.Kind.String(),
	})
	return msg, nil
}

func senderBrief(u *user.User) contracts.SenderBrief {
	return contracts.SenderBrief{
		ID:     u.ID,
		Name:   u.DisplayName(),
		Avatar: u.Avatar,
		Role:   u.Role.String(),
	}
}
