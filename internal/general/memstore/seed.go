package memstore

import (
	"context"
	"fmt"

	"transport-connect/internal/domain/request"
	"transport-connect/internal/domain/user"
)

// Demo identifiers installed by Seed. They make the in-memory mode usable
// with tokens minted by cmd/key.
const (
	DemoDriverID  = "550e8400-e29b-41d4-a716-446655440001"
	DemoShipperID = "550e8400-e29b-41d4-a716-446655440002"
	DemoAdminID   = "550e8400-e29b-41d4-a716-446655440003"
	DemoTripID    = "7c9e6679-7425-40de-944b-e07fc1f90ae7"
	DemoRequestID = "9b2f3c1a-5d4e-4f6a-8b7c-0d1e2f3a4b5c"
)

// Seed installs a driver, a shipper, an admin and one pending request between
// the first two.
func Seed(ctx context.Context, s *Store) error {
	users := []struct {
		id, first, last, email string
		role                   user.Role
	}{
		{DemoDriverID, "Dana", "Driver", "driver@example.com", user.RoleDriver},
		{DemoShipperID, "Sam", "Shipper", "shipper@example.com", user.RoleShipper},
		{DemoAdminID, "Ada", "Admin", "admin@example.com", user.RoleAdmin},
	}

	return s.UnitOfWork().WithinTx(ctx, func(txCtx context.Context) error {
		for _, u := range users {
			entity, err := user.NewUser(u.id, u.first, u.last, u.email, u.role)
			if err != nil {
				return fmt.Errorf("seed user %s: %w", u.email, err)
			}
			if err := s.Users().CreateUser(txCtx, entity); err != nil {
				return fmt.Errorf("seed user %s: %w", u.email, err)
			}
		}

		req, err := request.New(DemoRequestID, DemoTripID, DemoDriverID, DemoShipperID)
		if err != nil {
			return err
		}
		return s.Requests().CreateRequest(txCtx, req)
	})
}
