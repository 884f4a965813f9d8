package domain

// Methodology captures how the user prefers to learn.
type Methodology struct {
	Style       string `json:"style"`
	Depth       string `json:"depth"`
	Consumption string `json:"consumption"`
}

// LearningContext is the user profile the scorer ranks content against.
// Exactly one live row exists; every update snapshots the previous value
// into an append-only history log before overwriting.
type LearningContext struct {
	Goals            string            `json:"goals"`
	DigestFormat     string            `json:"digest_format"`
	Methodology      Methodology       `json:"methodology"`
	SkillLevels      map[string]string `json:"skill_levels"`
	TimeAvailability string            `json:"time_availability"`
	ProjectContext   string            `json:"project_context"`
}
