package models

// EnrolmentStatus is the status of a user enrolment.
type EnrolmentStatus int

const (
	// EnrolmentActive means the enrolment is in effect (within its window).
	EnrolmentActive EnrolmentStatus = 0
	// EnrolmentSuspended means the enrolment exists but is suspended.
	EnrolmentSuspended EnrolmentStatus = 1
)

// EnrolmentContainer is the course-level enrolment slot backing one external booking.
// Each booking gets its own container, 1:1, for its whole lifetime; the booking ID
// is unique across all containers.
type EnrolmentContainer struct {
	ID           int64  `json:"id"`
	CourseID     int64  `json:"course_id"`
	BookingID    string `json:"booking_id"`
	Enabled      bool   `json:"enabled"`
	TimeCreated  int64  `json:"time_created"`
	TimeModified int64  `json:"time_modified"`
}

// UserEnrolment is one user's membership window produced by a container.
// TimeStart/TimeEnd are epoch seconds; 0 means the bound is open.
type UserEnrolment struct {
	ID           int64           `json:"id"`
	ContainerID  int64           `json:"container_id"`
	UserID       int64           `json:"user_id"`
	TimeStart    int64           `json:"time_start"`
	TimeEnd      int64           `json:"time_end"`
	Status       EnrolmentStatus `json:"status"`
	TimeCreated  int64           `json:"time_created"`
	TimeModified int64           `json:"time_modified"`
}

// Suspended reports whether the enrolment is suspended.
func (ue UserEnrolment) Suspended() bool {
	return ue.Status == EnrolmentSuspended
}

// CourseEnrolment is one row of a per-course enrolment listing: the user
// enrolment joined with its container's booking ID.
type CourseEnrolment struct {
	UserEnrolmentID int64  `json:"enrolment_id"`
	UserID          int64  `json:"user_id"`
	BookingID       string `json:"booking_id"`
	TimeStart       int64  `json:"time_start"`
	TimeEnd         int64  `json:"time_end"`
	Suspend         bool   `json:"suspend"`
	ContainerID     int64  `json:"-"`
}
