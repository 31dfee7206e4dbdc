package scoring

import (
	"sort"

	"github.com/pawmatch/pawmatch/internal/database"
)

const (
	CompatibilityWeight = 0.6
	LocationWeight      = 0.4

	DefaultMatchThreshold = 0.7
	PerfectMatchThreshold = 0.9
	NearbyDistanceKm      = 2.0
)

// Warning codes attached to a MatchScore
const (
	WarningSpayNeuterMismatch = "spay_neuter_mismatch"
	WarningSizeMismatch       = "size_mismatch"
)

type MatchScore struct {
	Combined      float64          `json:"combined"`
	Compatibility float64          `json:"compatibility"`
	Location      float64          `json:"location"`
	DistanceKm    *float64         `json:"distance_km,omitempty"`
	CommonVenues  []database.Venue `json:"common_venues"`
	Reasons       []string         `json:"reasons"`
	Warnings      []string         `json:"warnings"`
}

type RankedCandidate struct {
	Dog   *database.DogProfile `json:"dog"`
	Score MatchScore           `json:"score"`
}

// Scorer blends compatibility and location into one score
type Scorer struct {
	weights   Weights
	threshold float64
}

func NewScorer(weights Weights, matchThreshold float64) *Scorer {
	if matchThreshold <= 0 {
		matchThreshold = DefaultMatchThreshold
	}
	return &Scorer{weights: weights, threshold: matchThreshold}
}

func (s *Scorer) Threshold() float64 {
	return s.threshold
}

func (s *Scorer) Score(a, b *database.DogProfile) MatchScore {
	compat := Compatibility(a, b, s.weights)
	loc := Location(a, b)

	score := MatchScore{
		Combined:      clamp01(CompatibilityWeight*compat.Score + LocationWeight*loc.Score),
		Compatibility: compat.Score,
		Location:      loc.Score,
		DistanceKm:    loc.DistanceKm,
		CommonVenues:  loc.CommonVenues,
		Reasons:       append([]string{}, compat.Reasons...),
		Warnings:      []string{},
	}

	if loc.DistanceKm != nil && *loc.DistanceKm <= NearbyDistanceKm {
		score.Reasons = append(score.Reasons, "Lives nearby")
	}
	if len(loc.CommonVenues) > 0 {
		score.Reasons = append(score.Reasons, "Visits the same places")
	}

	if a != nil && b != nil {
		if a.SpayedNeutered != nil && b.SpayedNeutered != nil && *a.SpayedNeutered != *b.SpayedNeutered {
			score.Warnings = append(score.Warnings, WarningSpayNeuterMismatch)
		}
		if sa, sb := sizeRank(a.Size), sizeRank(b.Size); sa > 0 && sb > 0 && (sa-sb >= 2 || sb-sa >= 2) {
			score.Warnings = append(score.Warnings, WarningSizeMismatch)
		}
	}
	return score
}

// IsMatch reports whether the combined score clears the match threshold
func (s *Scorer) IsMatch(a, b *database.DogProfile) bool {
	return s.Score(a, b).Combined >= s.threshold
}

// RankNearby keeps candidates with known coordinates within radiusKm of dog,
// orders them by location then compatibility and returns at most limit of them.
func (s *Scorer) RankNearby(dog *database.DogProfile, candidates []*database.DogProfile, radiusKm float64, limit int) []RankedCandidate {
	ranked := make([]RankedCandidate, 0, len(candidates))
	if dog == nil || limit <= 0 {
		return ranked
	}

	for _, c := range candidates {
		if c == nil || c.ID == dog.ID {
			continue
		}
		score := s.Score(dog, c)
		if score.DistanceKm == nil || *score.DistanceKm > radiusKm {
			continue
		}
		ranked = append(ranked, RankedCandidate{Dog: c, Score: score})
	}

	sort.SliceStable(ranked, func(i, j int) bool {
		a, b := ranked[i].Score, ranked[j].Score
		if a.Location != b.Location {
			return a.Location > b.Location
		}
		if a.Compatibility != b.Compatibility {
			return a.Compatibility > b.Compatibility
		}
		return ranked[i].Dog.ID < ranked[j].Dog.ID
	})

	if len(ranked) > limit {
		ranked = ranked[:limit]
	}
	return ranked
}

// DeriveMatchType picks the most specific label for a new match
func DeriveMatchType(score MatchScore, superLike bool) database.MatchType {
	switch {
	case superLike:
		return database.MatchTypeSuperLike
	case score.Combined >= PerfectMatchThreshold:
		return database.MatchTypePerfectMatch
	case score.DistanceKm != nil && *score.DistanceKm <= NearbyDistanceKm:
		return database.MatchTypeNearby
	case len(score.CommonVenues) > 0:
		return database.MatchTypeSamePark
	default:
		return database.MatchTypeStandard
	}
}
