package enrolments

// Window is an existing enrolment window considered during the overlap check.
type Window struct {
	ContainerID int64
	TimeStart   int64
	TimeEnd     int64
}

// overlapExists reports whether the candidate window (timeStart, timeEnd)
// conflicts with any of the existing windows of the same user in the same
// course. A bound of 0 means the bound is open. excludeContainerID, when
// non-zero, removes one container's window from consideration (needed when an
// existing booking is edited against itself).
func overlapExists(timeStart, timeEnd int64, existing []Window, excludeContainerID int64) bool {
	for _, w := range existing {
		if excludeContainerID != 0 && w.ContainerID == excludeContainerID {
			continue
		}
		if windowConflicts(timeStart, timeEnd, w.TimeStart, w.TimeEnd) {
			return true
		}
	}
	return false
}

// windowConflicts decides whether the candidate window conflicts with one
// existing window. Four mutually exclusive cases, keyed on which candidate
// bounds are open. The comparisons are deliberately literal: an existing
// timeEnd of 0 never satisfies a ">= timeEnd" containment check in case 4.
func windowConflicts(timeStart, timeEnd, existStart, existEnd int64) bool {
	switch {
	// Candidate has neither a start nor an end: it spans everything, so any
	// coexisting enrolment conflicts, whatever its own window is.
	case timeStart == 0 && timeEnd == 0:
		return true

	// Candidate has a start but no end.
	case timeStart > 0 && timeEnd == 0:
		return (existStart == 0 && existEnd == 0) ||
			(existStart == 0 && existEnd >= timeStart) ||
			existEnd == 0 ||
			existStart >= timeStart

	// Candidate has an end but no start.
	case timeStart == 0 && timeEnd > 0:
		return (existStart == 0 && existEnd == 0) ||
			(existEnd == 0 && existStart <= timeEnd) ||
			existStart == 0 ||
			(existEnd > 0 && existEnd <= timeEnd)

	// Candidate has both bounds.
	default:
		return (existStart == 0 && existEnd == 0) ||
			(existStart >= timeStart && existStart <= timeEnd) ||
			(existEnd > 0 && existEnd >= timeStart && existEnd <= timeEnd) ||
			(existStart <= timeStart && existEnd >= timeEnd)
	}
}
