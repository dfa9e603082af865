package service

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"encoding/json"
	"errors"
	"strings"
	"time"

	"transport-connect/internal/domain/message"
	"transport-connect/internal/domain/notification"
	"transport-connect/internal/domain/request"
	"transport-connect/internal/domain/user"
	"transport-connect/internal/general/apperr"
	"transport-connect/internal/general/contracts"
	"transport-connect/internal/ports"
)

// Client-facing messages. Not-found and not-authorized stay distinct.
const (
	msgRequestIDRequired = "requestId is required"
	msgContentRequired   = "content and requestId are required"
	msgJoinForbidden     = "not authorized to access this conversation"
	msgSendForbidden     = "not authorized to send messages in this conversation"
	msgStatusForbidden   = "not authorized to update this request"
	msgNotInRoom         = "join the conversation first"
)

// generateCorrelationID creates a short id for tracing one operation across services.
func generateCorrelationID() string {
	var b [3]byte
	_, _ = rand.Read(b[:])
	return "req_" + time.Now().UTC().Format("20060102T150405") + "_" + hex.EncodeToString(b[:])
}

// storeErr classifies a repository failure.
func storeErr(resource string, err error) error {
	if err == nil {
		return nil
	}
	var ae *apperr.Error
	if errors.As(err, &ae) {
		return err
	}
	if errors.Is(err, ports.ErrNotFound) {
		return apperr.NotFound(resource, err)
	}
	return apperr.Persistence("storage failure", err)
}

// domainErr classifies an error raised by a domain entity.
func domainErr(err error) error {
	switch {
	case err == nil:
		return nil
	case errors.Is(err, message.ErrNotAuthor), errors.Is(err, message.ErrSystemImmutable),
		errors.Is(err, request.ErrSideNotAllowed):
		return apperr.Forbidden(err.Error(), err)
	case errors.Is(err, request.ErrInvalidTransition):
		return apperr.InvalidTransition(err.Error(), err)
	case errors.Is(err, ports.ErrNotFound), errors.Is(err, ports.ErrStaleState):
		return storeErr("record", err)
	}
	var ae *apperr.Error
	if errors.As(err, &ae) {
		return err
	}
	return apperr.Validation(err.Error(), err)
}

func requireID(id string) (string, error) {
	id = strings.TrimSpace(id)
	if id == "" {
		return "", apperr.Validation(msgRequestIDRequired, nil)
	}
	return id, nil
}

// loadParticipantRequest resolves a request and checks that who is one of
// its two participants. It must run inside a transaction.
func (service *chatService) loadParticipantRequest(ctx context.Context, who user.Identity, requestID, forbidden string) (*request.Request, error) {
	r, err := service.requests.GetByID(ctx, requestID)
	if err != nil {
		return nil, storeErr("request", err)
	}
	if !r.IsParticipant(who.ID) {
		return nil, apperr.Forbidden(forbidden, nil)
	}
	return r, nil
}

// loadReadableRequest is loadParticipantRequest with the REST admin bypass.
func (service *chatService) loadReadableRequest(ctx context.Context, who user.Identity, requestID string) (*request.Request, error) {
	r, err := service.requests.GetByID(ctx, requestID)
	if err != nil {
		return nil, storeErr("request", err)
	}
	if !r.IsParticipant(who.ID) && !who.IsAdmin() {
		return nil, apperr.Forbidden(msgJoinForbidden, nil)
	}
	return r, nil
}

// notify hands an intent to the notification pipeline. It never fails the caller.
func (service *chatService) notify(ctx context.Context, in notification.Intent) {
	if service.notifier == nil || in.UserID == "" {
		return
	}
	service.notifier.Notify(ctx, in)
}

// publishStatus emits request.status.{status} on the request exchange.
func (service *chatService) publishStatus(ctx context.Context, msg contracts.RequestStatusMessage) error {
	if service.pub == nil {
		return nil
	}
	body, err := json.Marshal(msg)
	if err != nil {
		return err
	}
	routingKey := contracts.RouteRequestStatusPrefix + msg.Status
	if err := service.pub.Publish(ctx, contracts.ExchangeRequestTopic, routingKey, body); err != nil {
		return err
	}
	service.logger.Info(ctx, "request_status_published", "Published request status", map[string]any{
		"routing_key": routingKey,
	})
	return nil
}

func reverse(msgs []*message.Message) {
	for i, j := 0, len(msgs)-1; i < j; i, j = i+1, j-1 {
		msgs[i], msgs[j] = msgs[j], msgs[i]
	}
}
