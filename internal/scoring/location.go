package scoring

import (
	"math"

	"github.com/pawmatch/pawmatch/internal/database"
)

const (
	// MaxMatchDistanceKm is the radius beyond which proximity contributes nothing
	MaxMatchDistanceKm = 50.0
	// UnknownLocationScore deprioritizes, but does not exclude, dogs without coordinates
	UnknownLocationScore = 0.2

	earthRadiusKm = 6371.0
)

type LocationResult struct {
	Score        float64          `json:"score"`
	DistanceKm   *float64         `json:"distance_km,omitempty"`
	CommonVenues []database.Venue `json:"common_venues"`
}

// Location scores proximity linearly from 1 at 0 km to 0 at MaxMatchDistanceKm.
// Common venues keep the order of a's list.
func Location(a, b *database.DogProfile) LocationResult {
	result := LocationResult{CommonVenues: []database.Venue{}}
	if a == nil || b == nil {
		result.Score = UnknownLocationScore
		return result
	}
	result.CommonVenues = commonVenues(a.Venues, b.Venues)

	if !a.HasCoordinates() || !b.HasCoordinates() {
		result.Score = UnknownLocationScore
		return result
	}

	d := HaversineKm(*a.Latitude, *a.Longitude, *b.Latitude, *b.Longitude)
	result.DistanceKm = &d
	result.Score = distanceScore(d)
	return result
}

func distanceScore(km float64) float64 {
	if km >= MaxMatchDistanceKm {
		return 0
	}
	return clamp01(1 - km/MaxMatchDistanceKm)
}

// HaversineKm returns the great-circle distance between two coordinates
func HaversineKm(lat1, lon1, lat2, lon2 float64) float64 {
	dLat := toRadians(lat2 - lat1)
	dLon := toRadians(lon2 - lon1)

	h := math.Sin(dLat/2)*math.Sin(dLat/2) +
		math.Cos(toRadians(lat1))*math.Cos(toRadians(lat2))*
			math.Sin(dLon/2)*math.Sin(dLon/2)

	return earthRadiusKm * 2 * math.Atan2(math.Sqrt(h), math.Sqrt(1-h))
}

func toRadians(deg float64) float64 {
	return deg * math.Pi / 180
}

func commonVenues(a, b database.Venues) []database.Venue {
	out := []database.Venue{}
	if len(a) == 0 || len(b) == 0 {
		return out
	}
	inB := make(map[string]struct{}, len(b))
	for _, v := range b {
		inB[v.ID] = struct{}{}
	}
	seen := make(map[string]struct{}, len(a))
	for _, v := range a {
		if _, ok := inB[v.ID]; !ok {
			continue
		}
		if _, dup := seen[v.ID]; dup {
			continue
		}
		seen[v.ID] = struct{}{}
		out = append(out, v)
	}
	return out
}
