package store

import "github.com/nishaa-11/Nurse/internal/models"

var shiftTransitions = map[string][]string{
	"apply":             {models.StatusOpen},
	"assign":            {models.StatusOpen},
	"cancel_assignment": {models.StatusAssigned},
	"start":             {models.StatusAssigned},
	"complete":          {models.StatusInProgress},
	"cancel":            {models.StatusOpen, models.StatusAssigned, models.StatusInProgress},
}

var emergencyTransitions = map[string][]string{
	"accept":  {models.EmergencyActive},
	"decline": {models.EmergencyActive},
	"cancel":  {models.EmergencyActive},
	"expire":  {models.EmergencyActive},
}

func ValidShiftTransition(action, fromStatus string) bool {
	return allows(shiftTransitions, action, fromStatus)
}

func ValidEmergencyTransition(action, fromStatus string) bool {
	return allows(emergencyTransitions, action, fromStatus)
}

func allows(table map[string][]string, action, fromStatus string) bool {
	allowed, ok := table[action]
	if !ok {
		return false
	}
	for _, status := range allowed {
		if status == fromStatus {
			return true
		}
	}
	return false
}

// StatusAfter returns the shift status resulting from an action. Assignment
// actions depend on queue contents, so "cancel_assignment" is resolved by the
// store, not here.
func StatusAfter(action string) (string, bool) {
	switch action {
	case "assign":
		return models.StatusAssigned, true
	case "start":
		return models.StatusInProgress, true
	case "complete":
		return models.StatusCompleted, true
	case "cancel":
		return models.StatusCancelled, true
	}
	return "", false
}

// AssignedStatus reports whether a shift in the given status must carry an
// assigned nurse. The inverse also holds: outside these statuses
// assigned_nurse_id must be null.
func AssignedStatus(status string) bool {
	switch status {
	case models.StatusAssigned, models.StatusInProgress, models.StatusCompleted:
		return true
	}
	return false
}
