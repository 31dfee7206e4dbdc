package scoring

import (
	"fmt"
	"testing"

	"github.com/pawmatch/pawmatch/internal/database"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func ptr[T any](v T) *T { return &v }

func labrador(id string) *database.DogProfile {
	return &database.DogProfile{
		ID:          id,
		OwnerID:     "owner-" + id,
		Name:        "Lab " + id,
		Breed:       "Labrador",
		EnergyLevel: database.LevelHigh,
		Size:        database.SizeMedium,
	}
}

func fullProfile(id string) *database.DogProfile {
	return &database.DogProfile{
		ID:             id,
		OwnerID:        "owner-" + id,
		Name:           "Dog " + id,
		Breed:          "Beagle",
		AgeYears:       ptr(4.0),
		Size:           database.SizeMedium,
		EnergyLevel:    database.LevelMedium,
		Friendliness:   ptr(4),
		Trainability:   ptr(3),
		ExerciseNeeds:  database.LevelHigh,
		SpecialNeeds:   database.StringList{"grain-free diet"},
		SpayedNeutered: ptr(true),
		Latitude:       ptr(40.7128),
		Longitude:      ptr(-74.0060),
		Venues:         database.Venues{{ID: "park-1", Name: "Central Bark"}},
	}
}

func TestCompatibility_IdenticalLabradors(t *testing.T) {
	result := Compatibility(labrador("a"), labrador("b"), DefaultWeights())

	assert.GreaterOrEqual(t, result.Score, 0.9)
	assert.Contains(t, result.Reasons, "Same breed")
	assert.Contains(t, result.Reasons, "Similar energy levels")
	assert.NotContains(t, result.Reasons, "Close in age", "neutral factors never become reasons")
}

func TestCompatibility_DisjointProfiles(t *testing.T) {
	a := &database.DogProfile{
		ID: "a", Breed: "Chihuahua", AgeYears: ptr(1.0), Size: database.SizeSmall,
		EnergyLevel: database.LevelLow, Friendliness: ptr(1), Trainability: ptr(1),
		ExerciseNeeds: database.LevelLow, SpecialNeeds: database.StringList{"insulin"},
	}
	b := &database.DogProfile{
		ID: "b", Breed: "Great Dane", AgeYears: ptr(12.0), Size: database.SizeGiant,
		EnergyLevel: database.LevelHigh, Friendliness: ptr(5), Trainability: ptr(5),
		ExerciseNeeds: database.LevelHigh, SpecialNeeds: database.StringList{"hip brace"},
	}

	result := Compatibility(a, b, DefaultWeights())
	assert.Less(t, result.Score, 0.25)
	assert.Empty(t, result.Reasons)
}

func TestCompatibility_SkipsBreedAndSizeWhenUnknown(t *testing.T) {
	a := &database.DogProfile{ID: "a", Breed: "Poodle", Size: database.SizeSmall}
	b := &database.DogProfile{ID: "b"}

	result := Compatibility(a, b, DefaultWeights())
	for _, f := range result.Factors {
		assert.NotEqual(t, FactorBreed, f.Factor)
		assert.NotEqual(t, FactorSize, f.Factor)
	}
	assert.Len(t, result.Factors, 6)
}

func TestCompatibility_NoFactorApplied(t *testing.T) {
	result := Compatibility(labrador("a"), labrador("b"), Weights{})
	assert.Equal(t, 0.0, result.Score)
	assert.Empty(t, result.Factors)
}

func TestCompatibility_PriorityFlagsRaiseWeight(t *testing.T) {
	a := labrador("a")
	b := labrador("b")
	b.Breed = "Poodle"

	plain := Compatibility(a, b, DefaultWeights())

	w := DefaultWeights()
	w.PrioritizeBreed = true
	prioritized := Compatibility(a, b, w)

	assert.Less(t, prioritized.Score, plain.Score, "a mismatched breed hurts more when breed is prioritized")
	for _, f := range prioritized.Factors {
		if f.Factor == FactorBreed {
			assert.InDelta(t, DefaultWeights().Breed*2, f.Weight, 1e-9)
		}
	}
}

func TestLevelScore_OrdinalDistance(t *testing.T) {
	tests := []struct {
		a, b     database.Level
		expected float64
	}{
		{database.LevelHigh, database.LevelHigh, 1},
		{database.LevelHigh, database.LevelMedium, 2.0 / 3.0},
		{database.LevelHigh, database.LevelLow, 1.0 / 3.0},
		{database.LevelHigh, "", neutralScore},
	}
	for _, tt := range tests {
		t.Run(fmt.Sprintf("%s-%s", tt.a, tt.b), func(t *testing.T) {
			assert.InDelta(t, tt.expected, levelScore(tt.a, tt.b), 1e-9)
		})
	}
}

func TestSpecialNeedsScore(t *testing.T) {
	assert.Equal(t, 1.0, specialNeedsScore(nil, nil))
	assert.Equal(t, neutralScore, specialNeedsScore(database.StringList{"x"}, nil))
	assert.Equal(t, 1.0, specialNeedsScore(database.StringList{"Allergy"}, database.StringList{"allergy"}))
	assert.InDelta(t, 0.75, specialNeedsScore(database.StringList{"a", "b"}, database.StringList{"b"}), 1e-9)
}

func TestLocation_MissingCoordinates(t *testing.T) {
	a := fullProfile("a")
	b := fullProfile("b")
	b.Latitude = nil

	result := Location(a, b)
	assert.Equal(t, UnknownLocationScore, result.Score)
	assert.Nil(t, result.DistanceKm)
	assert.Len(t, result.CommonVenues, 1)
}

func TestLocation_DistanceMapping(t *testing.T) {
	a := fullProfile("a")

	tests := []struct {
		name     string
		lat, lng float64
		minScore float64
		maxScore float64
	}{
		{"same spot", 40.7128, -74.0060, 1, 1},
		{"about 11 km north", 40.8128, -74.0060, 0.7, 0.8},
		{"beyond radius", 41.5, -74.0060, 0, 0},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			b := fullProfile("b")
			b.Latitude, b.Longitude = ptr(tt.lat), ptr(tt.lng)

			result := Location(a, b)
			require.NotNil(t, result.DistanceKm)
			assert.GreaterOrEqual(t, result.Score, tt.minScore)
			assert.LessOrEqual(t, result.Score, tt.maxScore)
		})
	}
}

func TestHaversineKm_KnownDistance(t *testing.T) {
	// London to Paris is roughly 344 km.
	d := HaversineKm(51.5074, -0.1278, 48.8566, 2.3522)
	assert.InDelta(t, 344, d, 5)
}

func TestScore_IsSymmetric(t *testing.T) {
	a := fullProfile("a")
	b := fullProfile("b")
	b.Breed = "Labrador"
	b.AgeYears = ptr(7.5)
	b.Friendliness = ptr(2)
	b.Latitude, b.Longitude = ptr(40.73), ptr(-73.99)
	b.SpecialNeeds = database.StringList{"grain-free diet", "anxiety"}

	s := NewScorer(DefaultWeights(), DefaultMatchThreshold)
	ab := s.Score(a, b)
	ba := s.Score(b, a)

	assert.Equal(t, ab.Combined, ba.Combined)
	assert.Equal(t, ab.Compatibility, ba.Compatibility)
	assert.Equal(t, ab.Location, ba.Location)
	assert.Equal(t, *ab.DistanceKm, *ba.DistanceKm)
	assert.ElementsMatch(t, ab.Warnings, ba.Warnings)
}

func TestScore_SelfIsMaximal(t *testing.T) {
	s := NewScorer(DefaultWeights(), DefaultMatchThreshold)
	a := fullProfile("a")
	self := s.Score(a, a).Combined

	others := []*database.DogProfile{labrador("l"), fullProfile("b")}
	shifted := fullProfile("c")
	shifted.EnergyLevel = database.LevelHigh
	others = append(others, shifted)

	for _, o := range others {
		assert.GreaterOrEqual(t, self, s.Score(a, o).Combined)
	}
	assert.InDelta(t, 1.0, self, 1e-9)
}

func TestScore_Warnings(t *testing.T) {
	a := fullProfile("a")
	b := fullProfile("b")
	b.SpayedNeutered = ptr(false)
	b.Size = database.SizeGiant
	a.Size = database.SizeSmall

	score := NewScorer(DefaultWeights(), 0).Score(a, b)
	assert.Contains(t, score.Warnings, WarningSpayNeuterMismatch)
	assert.Contains(t, score.Warnings, WarningSizeMismatch)

	b.SpayedNeutered = nil
	score = NewScorer(DefaultWeights(), 0).Score(a, b)
	assert.NotContains(t, score.Warnings, WarningSpayNeuterMismatch)
}

func TestScore_CombinedBlend(t *testing.T) {
	a, b := fullProfile("a"), fullProfile("b")
	score := NewScorer(DefaultWeights(), 0).Score(a, b)
	assert.InDelta(t, 0.6*score.Compatibility+0.4*score.Location, score.Combined, 1e-9)
}

func TestIsMatch_Threshold(t *testing.T) {
	s := NewScorer(DefaultWeights(), DefaultMatchThreshold)

	a, b := labrador("a"), labrador("b")
	a.Latitude, a.Longitude = ptr(10.0), ptr(10.0)
	b.Latitude, b.Longitude = ptr(10.0), ptr(10.001)
	assert.True(t, s.IsMatch(a, b))

	// Without coordinates the location part drops to the low default.
	c, d := labrador("c"), labrador("d")
	assert.InDelta(t, 0.6*0.91+0.4*UnknownLocationScore, s.Score(c, d).Combined, 1e-9)
	assert.False(t, s.IsMatch(c, d))
}

func TestRankNearby(t *testing.T) {
	s := NewScorer(DefaultWeights(), DefaultMatchThreshold)
	origin := fullProfile("origin")

	near := fullProfile("near")
	near.Latitude = ptr(40.7200)

	nearButDifferent := fullProfile("near-diff")
	nearButDifferent.Latitude = ptr(40.7200)
	nearButDifferent.Breed = "Husky"

	mid := fullProfile("mid")
	mid.Latitude = ptr(40.80)

	far := fullProfile("far")
	far.Latitude = ptr(42.0)

	unknown := fullProfile("unknown")
	unknown.Latitude = nil

	candidates := []*database.DogProfile{far, mid, unknown, nearButDifferent, origin, near}
	ranked := s.RankNearby(origin, candidates, 25, 10)

	require.Len(t, ranked, 3)
	assert.Equal(t, "near", ranked[0].Dog.ID)
	assert.Equal(t, "near-diff", ranked[1].Dog.ID)
	assert.Equal(t, "mid", ranked[2].Dog.ID)

	limited := s.RankNearby(origin, candidates, 25, 1)
	require.Len(t, limited, 1)
	assert.Equal(t, "near", limited[0].Dog.ID)

	assert.Empty(t, s.RankNearby(origin, candidates, 25, 0))
}

func TestDeriveMatchType(t *testing.T) {
	tests := []struct {
		name      string
		score     MatchScore
		superLike bool
		expected  database.MatchType
	}{
		{"super like wins", MatchScore{Combined: 0.95}, true, database.MatchTypeSuperLike},
		{"perfect", MatchScore{Combined: 0.92}, false, database.MatchTypePerfectMatch},
		{"nearby", MatchScore{Combined: 0.75, DistanceKm: ptr(1.5)}, false, database.MatchTypeNearby},
		{"same park", MatchScore{Combined: 0.75, DistanceKm: ptr(8.0), CommonVenues: []database.Venue{{ID: "p"}}}, false, database.MatchTypeSamePark},
		{"standard", MatchScore{Combined: 0.75, DistanceKm: ptr(8.0)}, false, database.MatchTypeStandard},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, DeriveMatchType(tt.score, tt.superLike))
		})
	}
}
