package enrolments

import "fmt"

// ErrorKind identifies one of the reportable failure conditions of the sync
// API. Kinds are stable wire values surfaced verbatim to the caller.
type ErrorKind string

const (
	KindUserNotFound                 ErrorKind = "user_not_found"
	KindCourseNotExist               ErrorKind = "course_not_exist"
	KindEnrolNoUserInstance          ErrorKind = "enrol_no_user_instance"
	KindEnrolNoInstance              ErrorKind = "enrol_no_instance"
	KindBookingIDEmpty               ErrorKind = "booking_id_empty"
	KindBookingIDDuplicate           ErrorKind = "booking_id_duplicate"
	KindBookingIDDuplicateMustChange ErrorKind = "booking_id_duplicate_must_change"
	KindTimeStartInvalid             ErrorKind = "time_start_invalid"
	KindTimeEndInvalid               ErrorKind = "time_end_invalid"
	KindTimeStartEndOrder            ErrorKind = "time_start_end_order"
	KindBookingOverlap               ErrorKind = "booking_overlap"
	KindRequestTooLarge              ErrorKind = "request_too_large"
	KindRecompletionNotExpectable    ErrorKind = "recompletion_not_expectable"
	KindRecompletionNotEnabled       ErrorKind = "recompletion_not_enabled"
	KindRecompletionNotOnDemand      ErrorKind = "recompletion_not_ondemand"
	KindRecompletionNotInstalled     ErrorKind = "recompletion_not_installed"
)

var messages = map[ErrorKind]string{
	KindUserNotFound:                 "user does not exist",
	KindCourseNotExist:               "course does not exist",
	KindEnrolNoUserInstance:          "no user enrolment found for enrolment id",
	KindEnrolNoInstance:              "no enrolment container found for enrolment id",
	KindBookingIDEmpty:               "booking id must not be empty",
	KindBookingIDDuplicate:           "booking id already in use",
	KindBookingIDDuplicateMustChange: "booking id already in use, a changed booking id is required",
	KindTimeStartInvalid:             "timestart must not be negative",
	KindTimeEndInvalid:               "timeend must not be negative",
	KindTimeStartEndOrder:            "timestart must not be after timeend",
	KindBookingOverlap:               "enrolment period overlaps with an existing enrolment",
	KindRequestTooLarge:              "too many enrolment ids requested, maximum is",
	KindRecompletionNotExpectable:    "recompletion support is not available on this platform",
	KindRecompletionNotEnabled:       "recompletion is not enabled for course",
	KindRecompletionNotOnDemand:      "recompletion is not configured in on-demand mode for course",
	KindRecompletionNotInstalled:     "recompletion support is not installed",
}

// Error is a structured domain error: a kind plus the offending identifier.
// It aborts the current operation; nothing is retried.
type Error struct {
	Kind ErrorKind
	Ref  string
}

// NewError builds a domain error for the given kind and reference.
func NewError(kind ErrorKind, ref string) *Error {
	return &Error{Kind: kind, Ref: ref}
}

func (e *Error) Error() string {
	msg, ok := messages[e.Kind]
	if !ok {
		msg = string(e.Kind)
	}
	if e.Ref != "" {
		return fmt.Sprintf("%s: %s", msg, e.Ref)
	}
	return msg
}
