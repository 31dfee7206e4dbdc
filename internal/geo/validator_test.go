package geo

import (
	"context"
	"errors"
	"testing"

	"github.com/pawmatch/pawmatch/internal/database"
	apperrors "github.com/pawmatch/pawmatch/internal/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"googlemaps.github.io/maps"
)

type MockMapsClient struct {
	mock.Mock
}

func (m *MockMapsClient) PlaceDetails(ctx context.Context, r *maps.PlaceDetailsRequest) (maps.PlaceDetailsResult, error) {
	args := m.Called(ctx, r)
	return args.Get(0).(maps.PlaceDetailsResult), args.Error(1)
}

func (m *MockMapsClient) ReverseGeocode(ctx context.Context, r *maps.GeocodingRequest) ([]maps.GeocodingResult, error) {
	args := m.Called(ctx, r)
	results, _ := args.Get(0).([]maps.GeocodingResult)
	return results, args.Error(1)
}

func venue(status string, lat, lng float64) maps.PlaceDetailsResult {
	var place maps.PlaceDetailsResult
	place.BusinessStatus = status
	place.Geometry.Location = maps.LatLng{Lat: lat, Lng: lng}
	return place
}

func TestValidate_Venue(t *testing.T) {
	loc := database.PlaydateLocation{
		Name: "Central Park Dog Run", Address: "Central Park, NY",
		Latitude: 40.7812, Longitude: -73.9665, VenueID: "place-1",
	}

	tests := []struct {
		name  string
		place maps.PlaceDetailsResult
		err   error
		check func(t *testing.T, err error)
	}{
		{
			name:  "operational venue",
			place: venue("OPERATIONAL", 40.7815, -73.9660),
			check: func(t *testing.T, err error) { assert.NoError(t, err) },
		},
		{
			name:  "closed for good",
			place: venue(statusClosedPermanently, 40.7812, -73.9665),
			check: func(t *testing.T, err error) {
				appErr, ok := apperrors.AsAppError(err)
				require.True(t, ok)
				assert.Equal(t, "location.venue_id", appErr.Metadata["field"])
			},
		},
		{
			name:  "coordinates elsewhere",
			place: venue("OPERATIONAL", 40.6892, -74.0445),
			check: func(t *testing.T, err error) {
				appErr, ok := apperrors.AsAppError(err)
				require.True(t, ok)
				assert.Equal(t, "location", appErr.Metadata["field"])
			},
		},
		{
			name: "unknown place",
			err:  errors.New("maps: NOT_FOUND - "),
			check: func(t *testing.T, err error) {
				assert.True(t, apperrors.HasCode(err, apperrors.CodeValidation))
			},
		},
		{
			name: "maps unavailable",
			err:  errors.New("context deadline exceeded"),
			check: func(t *testing.T, err error) {
				require.Error(t, err)
				_, isApp := apperrors.AsAppError(err)
				assert.False(t, isApp, "transport failures are not validation errors")
			},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			client := new(MockMapsClient)
			client.On("PlaceDetails", mock.Anything, mock.MatchedBy(func(r *maps.PlaceDetailsRequest) bool {
				return r.PlaceID == "place-1"
			})).Return(tt.place, tt.err)

			v := &LocationValidator{client: client}
			tt.check(t, v.Validate(context.Background(), loc))
			client.AssertNotCalled(t, "ReverseGeocode", mock.Anything, mock.Anything)
		})
	}
}

func TestValidate_Coordinates(t *testing.T) {
	loc := database.PlaydateLocation{Name: "Meadow", Address: "Somewhere", Latitude: 40.7, Longitude: -74.0}

	client := new(MockMapsClient)
	v := &LocationValidator{client: client}
	ctx := context.Background()

	client.On("ReverseGeocode", mock.Anything, mock.Anything).
		Return([]maps.GeocodingResult{{FormattedAddress: "New York, NY"}}, nil).Once()
	assert.NoError(t, v.Validate(ctx, loc))

	client.On("ReverseGeocode", mock.Anything, mock.Anything).
		Return(nil, errors.New("maps: ZERO_RESULTS - ")).Once()
	assert.True(t, apperrors.HasCode(v.Validate(ctx, loc), apperrors.CodeValidation))

	client.On("ReverseGeocode", mock.Anything, mock.Anything).
		Return(nil, errors.New("connection refused")).Once()
	err := v.Validate(ctx, loc)
	assert.ErrorContains(t, err, "reverse geocode failed")

	client.AssertExpectations(t)
}
