package domain

// CanTransition enforces the allowed task status edges. The status
// progression is monotonic; error is reachable from every non-terminal
// status and has no outgoing edges. A transition to the same status is
// allowed so repeated writes stay idempotent.
func CanTransition(from, to TaskStatus) bool {
	if from == to {
		return from != TaskStatusError
	}
	switch from {
	case TaskStatusQueued:
		return to == TaskStatusTranscribing || to == TaskStatusError
	case TaskStatusTranscribing:
		return to == TaskStatusTranscribed || to == TaskStatusError
	case TaskStatusTranscribed:
		return to == TaskStatusReviewed || to == TaskStatusError
	case TaskStatusReviewed:
		return to == TaskStatusError
	default:
		return false
	}
}

// IsTerminal reports whether no further automatic progression can
// happen from the given status.
func IsTerminal(status TaskStatus) bool {
	return status == TaskStatusError
}
