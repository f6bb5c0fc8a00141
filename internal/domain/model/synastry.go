package model

// Category is the life area a synastry aspect is attributed to.
type Category string

// Compatibility categories.
const (
	Romantic      Category = "romantic"
	Communication Category = "communication"
	Emotional     Category = "emotional"
	Spiritual     Category = "spiritual"
	Practical     Category = "practical"
)

// Categories lists every category in report order.
var Categories = []Category{Romantic, Emotional, Communication, Practical, Spiritual}

// Tier is the qualitative compatibility grade of a synastry aspect.
type Tier string

// Compatibility tiers.
const (
	Excellent   Tier = "excellent"
	Good        Tier = "good"
	Challenging Tier = "challenging"
	Difficult   Tier = "difficult"
)

// SynastryAspect is an aspect between a body of one chart and a body of another.
type SynastryAspect struct {
	Aspect
	Person1  CelestialPosition `json:"person1"`
	Person2  CelestialPosition `json:"person2"`
	Category Category          `json:"category"`
	Tier     Tier              `json:"tier"`
}

// Harmony classifies how evenly a distribution is spread.
type Harmony string

// Harmony classes.
const (
	Harmonious    Harmony = "harmonious"
	Complementary Harmony = "complementary"
	Unbalanced    Harmony = "challenging"
)

// ElementBalance is the combined element distribution of two charts, in percent.
type ElementBalance struct {
	Percentages map[Element]float64 `json:"percentages"`
	Harmony     Harmony             `json:"harmony"`
}

// ModalityBalance is the combined modality distribution of two charts, in percent.
type ModalityBalance struct {
	Percentages map[Modality]float64 `json:"percentages"`
	Harmony     Harmony              `json:"harmony"`
}

// TierCounts tallies synastry aspects by tier.
type TierCounts struct {
	Excellent   int `json:"excellent"`
	Good        int `json:"good"`
	Challenging int `json:"challenging"`
	Difficult   int `json:"difficult"`
}

// CompatibilityReport is the outcome of a synastry analysis.
type CompatibilityReport struct {
	OverallScore    int                 `json:"overall_score"`
	CategoryScores  map[Category]int    `json:"category_scores"`
	Breakdown       TierCounts          `json:"breakdown"`
	ElementBalance  ElementBalance      `json:"element_balance"`
	ModalityBalance ModalityBalance     `json:"modality_balance"`
	Aspects         []SynastryAspect    `json:"aspects"`
	KeyAspects      []SynastryAspect    `json:"key_aspects"`
	Composite       []CelestialPosition `json:"composite,omitempty"`
}
