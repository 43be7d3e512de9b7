package assessment

// transitions is the directed status graph. Terminal states have no edges.
var transitions = map[Status][]Status{
	StatusDraft:       {StatusScheduled, StatusCancelled},
	StatusScheduled:   {StatusInProgress, StatusCancelled, StatusRescheduled},
	StatusInProgress:  {StatusCompleted, StatusCancelled, StatusPaused},
	StatusPaused:      {StatusInProgress, StatusCancelled},
	StatusRescheduled: {StatusScheduled, StatusCancelled},
	StatusCompleted:   {},
	StatusCancelled:   {},
}

// IsTerminal reports whether no transition leaves status
func IsTerminal(status Status) bool {
	return status == StatusCompleted || status == StatusCancelled
}

// NextStatuses returns the statuses reachable from status in one step
func NextStatuses(status Status) []Status {
	return append([]Status(nil), transitions[status]...)
}

// ValidateTransition returns an *InvalidTransitionError unless to is reachable
// from from in one step. A self-transition is always valid.
func ValidateTransition(from, to Status) error {
	if from == to {
		return nil
	}
	for _, next := range transitions[from] {
		if next == to {
			return nil
		}
	}
	return &InvalidTransitionError{From: from, To: to}
}
