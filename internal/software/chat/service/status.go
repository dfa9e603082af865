package service

import (
	"context"
	"errors"
	"fmt"

	"transport-connect/internal/domain/message"
	"transport-connect/internal/domain/notification"
	"transport-connect/internal/domain/request"
	"transport-connect/internal/domain/user"
	"transport-connect/internal/general/apperr"
	"transport-connect/internal/general/contracts"
	"transport-connect/internal/general/metrics"
	"transport-connect/internal/ports"
)

var systemText = map[request.Status]string{
	request.StatusAccepted:    "Request accepted",
	request.StatusRejected:    "Request rejected",
	request.StatusPickupReady: "Package ready for pickup",
	request.StatusInTransit:   "Package in transit",
	request.StatusDelivered:   "Package delivered",
	request.StatusCancelled:   "Request cancelled",
	request.StatusDisputed:    "Request disputed",
}

// UpdateStatus applies one lifecycle transition. Transitions of the same
// request are serialized in process and guarded in the store by a
// conditional update; a lost race is retried against the fresh state.
func (service *chatService) UpdateStatus(ctx context.Context, who user.Identity, in ports.UpdateStatusInput) (*request.Request, error) {
	requestID, err := requireID(in.RequestID)
	if err != nil {
		return nil, err
	}
	next, err := request.ParseStatus(in.Status)
	if err != nil {
		return nil, apperr.Validation(err.Error(), err)
	}
	ctx = service.logger.WithShipmentID(ctx, requestID)
	corrID := generateCorrelationID()

	unlock := service.statusLocks.Lock(requestID)
	defer unlock()

	var (
		updated *request.Request
		entry   request.TimelineEntry
		from    request.Status
		sysMsg  *message.Message
	)
	for attempt := 1; ; attempt++ {
		err = service.uow.WithinTx(ctx, func(ctx context.Context) error {
			r, err := service.requests.GetForUpdate(ctx, requestID)
			if err != nil {
				return storeErr("request", err)
			}
			if !r.IsParticipant(who.ID) {
				return apperr.Forbidden(msgStatusForbidden, nil)
			}
			if err := r.CheckTransition(next); err != nil {
				return domainErr(err)
			}
			if !service.opts.Policy.Allows(r.SideOf(who.ID), next) {
				return domainErr(request.ErrSideNotAllowed)
			}

			from = r.Status
			now := service.now()
			if entry, err = r.Transition(next, who.ID, in.Note, in.Location, now); err != nil {
				return domainErr(err)
			}
			if err := service.requests.UpdateStatus(ctx, r, from, entry); err != nil {
				if errors.Is(err, ports.ErrStaleState) {
					return err
				}
				return storeErr("request", err)
			}

			text := systemText[next]
			if entry.Note != "" {
				text += ": " + entry.Note
			}
			sysMsg = message.NewSystem(requestID, text, now)
			if err := service.messages.Create(ctx, sysMsg); err != nil {
				return storeErr("message", err)
			}
			if err := service.requests.TouchLastMessage(ctx, requestID, now); err != nil {
				return storeErr("request", err)
			}
			updated = r
			return nil
		})
		if errors.Is(err, ports.ErrStaleState) && attempt < service.opts.StatusRetryBudget {
			service.logger.Debug(ctx, "request_status_retry", "Lost status race, retrying", map[string]any{
				"attempt": attempt,
			})
			continue
		}
		break
	}
	if errors.Is(err, ports.ErrStaleState) {
		err = apperr.Persistence("request changed concurrently, try again", err)
	}
	if err != nil {
		service.logger.Warn(ctx, "request_status_update_failed", "Status not updated", err, map[string]any{
			"status":         next.String(),
			"correlation_id": corrID,
		})
		return nil, err
	}
	metrics.StatusTransitions.WithLabelValues(next.String()).Inc()

	service.hub.ToRoom(requestID, contracts.EventRequestStatusUpdated, contracts.RequestStatusUpdated{
		RequestID: requestID,
		Status:    next.String(),
		Note:      entry.Note,
		UpdatedBy: who.ID,
		Location:  entry.Location,
		Timestamp: entry.At,
	}, "")
	service.hub.ToRoom(requestID, contracts.EventNewMessage, contracts.NewMessage{
		RequestID: requestID,
		Message:   sysMsg,
	}, "")

	// best effort, outside the transaction
	if err := service.publishStatus(ctx, contracts.RequestStatusMessage{
		RequestID:      requestID,
		TripID:         updated.TripID,
		Status:         next.String(),
		PreviousStatus: from.String(),
		UpdatedBy:      who.ID,
		Note:           entry.Note,
		Location:       entry.Location,
		Timestamp:      entry.At,
		Envelope: contracts.Envelope{
			CorrelationID: corrID,
			Producer:      contracts.ProducerChat,
			SentAt:        service.now(),
		},
	}); err != nil {
		service.logger.Error(ctx, "request_status_publish_failed", "Failed to publish status change", err, map[string]any{
			"correlation_id": corrID,
		})
	}

	service.notify(ctx, notification.Intent{
		UserID:    updated.OtherParticipant(who.ID),
		Kind:      notification.KindStatusUpdate,
		Title:     "Request status updated",
		Body:      fmt.Sprintf("Your request status was updated: %s", next),
		RequestID: requestID,
		Priority:  statusPriority(next),
		Data:      map[string]any{"requestId": requestID, "status": next.String()},
	})

	service.logger.Info(ctx, "request_status_updated", fmt.Sprintf("Request moved %s -> %s", from, next), map[string]any{
		"correlation_id": corrID,
	})
	return updated, nil
}

func statusPriority(s request.Status) notification.Priority {
	switch s {
	case request.StatusDisputed:
		return notification.PriorityUrgent
	case request.StatusCancelled, request.StatusRejected, request.StatusDelivered:
		return notification.PriorityHigh
	default:
		return notification.PriorityNormal
	}
}
