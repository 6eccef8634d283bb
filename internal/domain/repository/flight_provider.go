package repository

import (
	"context"

	"flightwatch-service/internal/domain/entity"
)

// FlightProvider fetches live airborne flights from the telemetry provider.
// Errors are *apperror.Error values of kind ExternalService.
type FlightProvider interface {
	FetchByBoundingBox(ctx context.Context, area entity.BoundingBox) ([]entity.Flight, error)
	FetchAll(ctx context.Context) ([]entity.Flight, error)
}
