package models

// CompletionRecord is the per-enrolment completion/grade view returned by the
// completion query. It is derived on demand and never persisted. Pointer fields
// are null whenever the decision tree says the value does not apply.
type CompletionRecord struct {
	UserEnrolmentID int64    `json:"enrolment_id"`
	UserID          int64    `json:"user_id"`
	BookingID       string   `json:"booking_id"`
	CanBeCompleted  bool     `json:"can_be_completed"`
	Completed       bool     `json:"completed"`
	TimeCompleted   *int64   `json:"time_completed"`
	FinalGrade      *string  `json:"final_grade"`
	FinalGradeRaw   *float64 `json:"final_grade_raw"`
	GradeMin        *float64 `json:"grade_min"`
	GradeMax        *float64 `json:"grade_max"`
	GradePass       *float64 `json:"grade_pass"`
	Passed          *bool    `json:"passed"`
}

// GradeItem is the course-level grade item of a course.
type GradeItem struct {
	ID        int64
	CourseID  int64
	GradeMin  float64
	GradeMax  float64
	GradePass float64
}

// Grade is one user's grade against a grade item.
type Grade struct {
	ItemID     int64
	UserID     int64
	FinalGrade float64
}
