package model

const (
	RationaleGapPrefix          = "gap:"
	RationalePrerequisitesUnmet = "prerequisites_unmet"
	RationaleDifficultyFit      = "difficulty_fit"
	RationaleDifficultyStretch  = "difficulty_stretch"
	RationaleDifficultyEasy     = "difficulty_easy"
)

type Recommendation struct {
	ContentID string   `json:"contentId"`
	Title     string   `json:"title"`
	Score     float64  `json:"score"`
	Rationale []string `json:"rationale"`
}

// RecommendationList is in rank order, most relevant first.
type RecommendationList struct {
	Items []Recommendation `json:"items"`
}

func (l RecommendationList) Len() int { return len(l.Items) }
