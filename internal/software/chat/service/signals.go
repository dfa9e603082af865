package service

import (
	"context"

	"transport-connect/internal/domain/geo"
	"transport-connect/internal/domain/user"
	"transport-connect/internal/general/apperr"
	"transport-connect/internal/general/contracts"
)

// TypingStart tells the other room members that who is typing.
func (service *chatService) TypingStart(ctx context.Context, who user.Identity, requestID string) error {
	return service.typing(who, requestID, contracts.EventUserTyping)
}

// TypingStop clears the typing indicator.
func (service *chatService) TypingStop(ctx context.Context, who user.Identity, requestID string) error {
	return service.typing(who, requestID, contracts.EventUserStopTyping)
}

func (service *chatService) typing(who user.Identity, requestID, event string) error {
	requestID, err := service.requireMember(who, requestID)
	if err != nil {
		return err
	}
	service.hub.ToRoom(requestID, event, contracts.Typing{UserID: who.ID, RequestID: requestID}, who.ID)
	return nil
}

// ShareLocation relays a position to the other room members. Nothing is stored.
func (service *chatService) ShareLocation(ctx context.Context, who user.Identity, requestID string, at geo.Point) error {
	requestID, err := service.requireMember(who, requestID)
	if err != nil {
		return err
	}
	if err := at.Validate(); err != nil {
		return apperr.Validation(err.Error(), err)
	}
	service.hub.ToRoom(requestID, contracts.EventLocationShared, contracts.LocationShared{
		RequestID: requestID,
		UserID:    who.ID,
		Location:  at,
		Timestamp: service.now(),
	}, who.ID)
	return nil
}

// requireMember admits only callers that joined the room; joining already
// checked participation.
func (service *chatService) requireMember(who user.Identity, requestID string) (string, error) {
	requestID, err := requireID(requestID)
	if err != nil {
		return "", err
	}
	if !service.hub.InRoom(requestID, who.ID) {
		return "", apperr.Forbidden(msgNotInRoom, nil)
	}
	return requestID, nil
}
