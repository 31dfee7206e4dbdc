// Package geo checks proposed playdate locations against Google Maps.
package geo

import (
	"context"
	"fmt"
	"strings"

	"github.com/pawmatch/pawmatch/internal/database"
	apperrors "github.com/pawmatch/pawmatch/internal/errors"
	"github.com/pawmatch/pawmatch/internal/scoring"
	"github.com/pawmatch/pawmatch/internal/telemetry"
	"googlemaps.github.io/maps"
)

// MaxVenueDriftKm is how far the proposed coordinates may sit from the venue's own position
const MaxVenueDriftKm = 1.0

const statusClosedPermanently = "CLOSED_PERMANENTLY"

type mapsClient interface {
	PlaceDetails(ctx context.Context, r *maps.PlaceDetailsRequest) (maps.PlaceDetailsResult, error)
	ReverseGeocode(ctx context.Context, r *maps.GeocodingRequest) ([]maps.GeocodingResult, error)
}

// LocationValidator rejects locations Google Maps cannot place, and venues that closed for good
type LocationValidator struct {
	client mapsClient
}

func NewLocationValidator(apiKey string) (*LocationValidator, error) {
	client, err := maps.NewClient(maps.WithAPIKey(apiKey))
	if err != nil {
		return nil, fmt.Errorf("failed to create maps client: %w", err)
	}
	return &LocationValidator{client: client}, nil
}

// Validate returns a validation AppError for an unusable location and a plain error
// when Google Maps could not be reached.
func (v *LocationValidator) Validate(ctx context.Context, loc database.PlaydateLocation) error {
	logger := telemetry.GetContextualLogger(ctx).WithFields(map[string]interface{}{
		"operation": "validate_location",
		"venue_id":  loc.VenueID,
	})

	if loc.VenueID != "" {
		return v.validateVenue(ctx, loc, logger)
	}

	results, err := v.client.ReverseGeocode(ctx, &maps.GeocodingRequest{
		LatLng: &maps.LatLng{Lat: loc.Latitude, Lng: loc.Longitude},
	})
	if err != nil && !isZeroResults(err) {
		return fmt.Errorf("reverse geocode failed: %w", err)
	}
	if len(results) == 0 {
		logger.Info("Location could not be geocoded")
		return apperrors.NewValidationError("location", "location could not be found on the map")
	}
	return nil
}

func (v *LocationValidator) validateVenue(ctx context.Context, loc database.PlaydateLocation, logger *telemetry.ContextualLogger) error {
	place, err := v.client.PlaceDetails(ctx, &maps.PlaceDetailsRequest{
		PlaceID: loc.VenueID,
		Fields: []maps.PlaceDetailsFieldMask{
			maps.PlaceDetailsFieldMaskGeometryLocation,
			maps.PlaceDetailsFieldMaskBusinessStatus,
		},
	})
	if err != nil {
		if isNotFound(err) {
			return apperrors.NewValidationError("location.venue_id", "venue does not exist")
		}
		return fmt.Errorf("place details failed: %w", err)
	}

	if place.BusinessStatus == statusClosedPermanently {
		logger.Info("Venue is permanently closed")
		return apperrors.NewValidationError("location.venue_id", "venue is permanently closed")
	}

	at := place.Geometry.Location
	if drift := scoring.HaversineKm(loc.Latitude, loc.Longitude, at.Lat, at.Lng); drift > MaxVenueDriftKm {
		logger.WithField("drift_km", drift).Info("Coordinates do not match venue")
		return apperrors.NewValidationError("location", "coordinates do not match the venue")
	}
	return nil
}

func isZeroResults(err error) bool {
	return strings.Contains(err.Error(), "ZERO_RESULTS")
}

func isNotFound(err error) bool {
	msg := err.Error()
	return strings.Contains(msg, "NOT_FOUND") || strings.Contains(msg, "INVALID_REQUEST")
}
