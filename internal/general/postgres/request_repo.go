package postgres

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"transport-connect/internal/domain/request"
	"transport-connect/internal/ports"
)

// RequestRepo persists shipment requests. The timeline is stored as JSONB.
type RequestRepo struct{}

func NewRequestRepo() ports.RequestRepository {
	return &RequestRepo{}
}

const requestColumns = `id, trip_id, driver_id, shipper_id, status, last_message_at, timeline, created_at, updated_at`

func (repo *RequestRepo) CreateRequest(ctx context.Context, r *request.Request) error {
	tx, err := MustTxFromContext(ctx)
	if err != nil {
		return err
	}
	timeline, err := json.Marshal(r.Timeline)
	if err != nil {
		return fmt.Errorf("marshal timeline: %w", err)
	}

	_, err = tx.Exec(ctx, `
		INSERT INTO requests (id, trip_id, driver_id, shipper_id, status, timeline, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		ON CONFLICT (id) DO NOTHING
	`, r.ID, r.TripID, r.DriverID, r.ShipperID, r.Status.String(), string(timeline), r.CreatedAt, r.UpdatedAt)
	if err != nil {
		return fmt.Errorf("insert request: %w", err)
	}
	return nil
}

func (repo *RequestRepo) GetByID(ctx context.Context, id string) (*request.Request, error) {
	return repo.get(ctx, id, false)
}

// GetForUpdate takes a row lock held until the transaction ends.
func (repo *RequestRepo) GetForUpdate(ctx context.Context, id string) (*request.Request, error) {
	return repo.get(ctx, id, true)
}

func (repo *RequestRepo) get(ctx context.Context, id string, lock bool) (*request.Request, error) {
	tx, err := MustTxFromContext(ctx)
	if err != nil {
		return nil, err
	}

	query := `SELECT ` + requestColumns + ` FROM requests WHERE id = $1`
	if lock {
		query += ` FOR UPDATE`
	}

	var (
		out         request.Request
		status      string
		timelineRaw []byte
	)
	err = tx.QueryRow(ctx, query, id).Scan(
		&out.ID, &out.TripID, &out.DriverID, &out.ShipperID, &status,
		&out.LastMessageAt, &timelineRaw, &out.CreatedAt, &out.UpdatedAt,
	)
	if err != nil {
		return nil, notFound(err)
	}
	out.Status = request.Status(status)
	if len(timelineRaw) > 0 {
		if err := json.Unmarshal(timelineRaw, &out.Timeline); err != nil {
			return nil, fmt.Errorf("decode timeline: %w", err)
		}
	}
	return &out, nil
}

// UpdateStatus is a compare-and-set on status: it only writes when the
// stored status is still from.
func (repo *RequestRepo) UpdateStatus(ctx context.Context, r *request.Request, from request.Status, entry request.TimelineEntry) error {
	tx, err := MustTxFromContext(ctx)
	if err != nil {
		return err
	}
	entryJSON, err := json.Marshal([]request.TimelineEntry{entry})
	if err != nil {
		return fmt.Errorf("marshal timeline entry: %w", err)
	}

	tag, err := tx.Exec(ctx, `
		UPDATE requests
		SET status = $3, timeline = timeline || $4::jsonb, updated_at = $5
		WHERE id = $1 AND status = $2
	`, r.ID, from.String(), r.Status.String(), string(entryJSON), entry.At)
	if err != nil {
		return fmt.Errorf("update request status: %w", err)
	}
	if tag.RowsAffected() == 0 {
		var exists bool
		if err := tx.QueryRow(ctx, `SELECT EXISTS (SELECT 1 FROM requests WHERE id = $1)`, r.ID).Scan(&exists); err != nil {
			return err
		}
		if !exists {
			return ports.ErrNotFound
		}
		return ports.ErrStaleState
	}
	return nil
}

func (repo *RequestRepo) TouchLastMessage(ctx context.Context, id string, at time.Time) error {
	tx, err := MustTxFromContext(ctx)
	if err != nil {
		return err
	}
	tag, err := tx.Exec(ctx, `
		UPDATE requests
		SET last_message_at = GREATEST(COALESCE(last_message_at, $2), $2)
		WHERE id = $1
	`, id, at)
	if err != nil {
		return fmt.Errorf("touch last message: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ports.ErrNotFound
	}
	return nil
}
