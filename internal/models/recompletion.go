package models

// RecompletionOnDemand is the recompletion mode required for on-demand
// completion resets (and for enrolments created with requireRecompletion).
const RecompletionOnDemand = "ondemand"

// RecompletionConfig is a course's recompletion configuration.
// Enabled is false when the course has no recompletion mode set at all.
type RecompletionConfig struct {
	CourseID int64
	Enabled  bool
	Mode     string
}
