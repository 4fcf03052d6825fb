package service

import (
	"fmt"

	"github.com/noah-isme/provider-admission-api/internal/models"
	appErrors "github.com/noah-isme/provider-admission-api/pkg/errors"
)

var allowedTransitions = map[models.ApplicationStatus][]models.ApplicationStatus{
	models.ApplicationStatusSubmitted: {
		models.ApplicationStatusInReview,
		models.ApplicationStatusApproved,
		models.ApplicationStatusRejected,
	},
	models.ApplicationStatusInReview: {
		models.ApplicationStatusApproved,
		models.ApplicationStatusRejected,
	},
}

// IsAllowedTransition reports whether from -> to is an edge of the application lifecycle.
func IsAllowedTransition(from, to models.ApplicationStatus) bool {
	for _, next := range allowedTransitions[from] {
		if next == to {
			return true
		}
	}
	return false
}

// NextStatuses lists the statuses reachable from s.
func NextStatuses(s models.ApplicationStatus) []models.ApplicationStatus {
	next := allowedTransitions[s]
	out := make([]models.ApplicationStatus, len(next))
	copy(out, next)
	return out
}

// TransitionErrorKind separates an illegal edge from a lost race.
type TransitionErrorKind string

const (
	TransitionIllegal  TransitionErrorKind = "illegal"
	TransitionConflict TransitionErrorKind = "conflict"
)

// TransitionError reports a status change that could not be applied.
// Current is the status observed in storage when known.
type TransitionError struct {
	Kind          TransitionErrorKind
	ApplicationID string
	From          models.ApplicationStatus
	To            models.ApplicationStatus
	Current       models.ApplicationStatus
}

func (e *TransitionError) Error() string {
	switch e.Kind {
	case TransitionConflict:
		if e.Current != "" {
			return fmt.Sprintf("application %s is %s, expected %s", e.ApplicationID, e.Current, e.From)
		}
		return fmt.Sprintf("application %s is no longer %s", e.ApplicationID, e.From)
	default:
		return fmt.Sprintf("cannot move application from %s to %s", e.From, e.To)
	}
}

// Unwrap maps the error onto its HTTP-aware sentinel.
func (e *TransitionError) Unwrap() error {
	base := appErrors.ErrIllegalTransition
	if e.Kind == TransitionConflict {
		base = appErrors.ErrTransitionConflict
	}
	appErr := appErrors.Clone(base, e.Error())
	return appErrors.WithDetails(appErr, map[string]interface{}{
		"application_id": e.ApplicationID,
		"from":           e.From,
		"to":             e.To,
		"current":        e.Current,
	})
}
