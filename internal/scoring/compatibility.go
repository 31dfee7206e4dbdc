// Package scoring ranks dog pairs. Everything here is pure and safe for concurrent use.
package scoring

import (
	"math"
	"strings"

	"github.com/pawmatch/pawmatch/internal/database"
)

// ReasonThreshold is the per-factor score a factor needs to be listed as a reason
const ReasonThreshold = 0.7

// neutralScore stands in for a factor when either side lacks data
const neutralScore = 0.5

type Factor string

const (
	FactorBreed        Factor = "breed"
	FactorEnergy       Factor = "energy"
	FactorAge          Factor = "age"
	FactorSize         Factor = "size"
	FactorFriendliness Factor = "friendliness"
	FactorExercise     Factor = "exercise"
	FactorTrainability Factor = "trainability"
	FactorSpecialNeeds Factor = "special_needs"
)

var factorReasons = map[Factor]string{
	FactorBreed:        "Same breed",
	FactorEnergy:       "Similar energy levels",
	FactorAge:          "Close in age",
	FactorSize:         "Similar size",
	FactorFriendliness: "Matching friendliness",
	FactorExercise:     "Similar exercise needs",
	FactorTrainability: "Similar trainability",
	FactorSpecialNeeds: "Compatible care needs",
}

// Weights are the per-factor base weights plus the owner's priority flags
type Weights struct {
	Breed        float64
	Energy       float64
	Age          float64
	Size         float64
	Friendliness float64
	Exercise     float64
	Trainability float64
	SpecialNeeds float64

	PrioritizeBreed  bool
	PrioritizeEnergy bool
	// PriorityMultiplier scales a prioritized factor's weight. Values below 1 are treated as 1.
	PriorityMultiplier float64
}

func DefaultWeights() Weights {
	return Weights{
		Breed:              0.25,
		Energy:             0.25,
		Age:                0.05,
		Size:               0.20,
		Friendliness:       0.05,
		Exercise:           0.05,
		Trainability:       0.03,
		SpecialNeeds:       0.12,
		PriorityMultiplier: 2.0,
	}
}

func (w Weights) multiplier(prioritized bool) float64 {
	if !prioritized || w.PriorityMultiplier < 1 {
		return 1
	}
	return w.PriorityMultiplier
}

// FactorScore is one applied factor
type FactorScore struct {
	Factor Factor  `json:"factor"`
	Score  float64 `json:"score"`
	Weight float64 `json:"weight"`
}

type CompatibilityResult struct {
	Score   float64       `json:"score"`
	Reasons []string      `json:"reasons"`
	Factors []FactorScore `json:"factors"`
}

// Compatibility computes the weighted similarity of two dogs.
// Size and breed are skipped unless both sides are known. Other missing data scores neutral.
func Compatibility(a, b *database.DogProfile, w Weights) CompatibilityResult {
	result := CompatibilityResult{Reasons: []string{}}
	if a == nil || b == nil {
		return result
	}

	var weighted, applied float64
	apply := func(f Factor, score, weight float64) {
		if weight <= 0 {
			return
		}
		result.Factors = append(result.Factors, FactorScore{Factor: f, Score: score, Weight: weight})
		weighted += score * weight
		applied += weight
		if score >= ReasonThreshold {
			result.Reasons = append(result.Reasons, factorReasons[f])
		}
	}

	if a.Breed != "" && b.Breed != "" {
		apply(FactorBreed, breedScore(a.Breed, b.Breed), w.Breed*w.multiplier(w.PrioritizeBreed))
	}
	apply(FactorEnergy, levelScore(a.EnergyLevel, b.EnergyLevel), w.Energy*w.multiplier(w.PrioritizeEnergy))
	apply(FactorAge, ageScore(a.AgeYears, b.AgeYears), w.Age)
	if sa, sb := sizeRank(a.Size), sizeRank(b.Size); sa > 0 && sb > 0 {
		apply(FactorSize, closeness(sa, sb, 3), w.Size)
	}
	apply(FactorFriendliness, ratingScore(a.Friendliness, b.Friendliness), w.Friendliness)
	apply(FactorExercise, levelScore(a.ExerciseNeeds, b.ExerciseNeeds), w.Exercise)
	apply(FactorTrainability, ratingScore(a.Trainability, b.Trainability), w.Trainability)
	apply(FactorSpecialNeeds, specialNeedsScore(a.SpecialNeeds, b.SpecialNeeds), w.SpecialNeeds)

	if applied == 0 {
		result.Score = 0
		return result
	}
	result.Score = clamp01(weighted / applied)
	return result
}

func breedScore(a, b string) float64 {
	if strings.EqualFold(strings.TrimSpace(a), strings.TrimSpace(b)) {
		return 1
	}
	return 0
}

func levelRank(l database.Level) int {
	switch l {
	case database.LevelLow:
		return 1
	case database.LevelMedium:
		return 2
	case database.LevelHigh:
		return 3
	}
	return 0
}

// levelScore maps low/medium/high to 1..3 and scores 1 - |a-b|/3
func levelScore(a, b database.Level) float64 {
	ra, rb := levelRank(a), levelRank(b)
	if ra == 0 || rb == 0 {
		return neutralScore
	}
	return closeness(ra, rb, 3)
}

func sizeRank(s database.Size) int {
	switch s {
	case database.SizeSmall:
		return 1
	case database.SizeMedium:
		return 2
	case database.SizeLarge:
		return 3
	case database.SizeGiant:
		return 4
	}
	return 0
}

// ratingScore compares two 1..5 ratings
func ratingScore(a, b *int) float64 {
	if a == nil || b == nil {
		return neutralScore
	}
	return closeness(*a, *b, 4)
}

// ageScore loses a tenth per year of difference
func ageScore(a, b *float64) float64 {
	if a == nil || b == nil {
		return neutralScore
	}
	return clamp01(1 - math.Abs(*a-*b)/10)
}

// specialNeedsScore is 1 when neither dog has special needs and degrades with
// how little the two lists overlap. One-sided needs are treated as unknown fit.
func specialNeedsScore(a, b database.StringList) float64 {
	switch {
	case len(a) == 0 && len(b) == 0:
		return 1
	case len(a) == 0 || len(b) == 0:
		return neutralScore
	}

	set := make(map[string]struct{}, len(a))
	for _, n := range a {
		set[strings.ToLower(n)] = struct{}{}
	}
	union := len(set)
	shared := 0
	seen := make(map[string]struct{}, len(b))
	for _, n := range b {
		key := strings.ToLower(n)
		if _, dup := seen[key]; dup {
			continue
		}
		seen[key] = struct{}{}
		if _, ok := set[key]; ok {
			shared++
		} else {
			union++
		}
	}
	return neutralScore + neutralScore*float64(shared)/float64(union)
}

func closeness(a, b, span int) float64 {
	d := a - b
	if d < 0 {
		d = -d
	}
	return clamp01(1 - float64(d)/float64(span))
}

func clamp01(v float64) float64 {
	return math.Max(0, math.Min(1, v))
}
