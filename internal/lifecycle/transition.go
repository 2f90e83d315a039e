// Package lifecycle implements the application state machine:
//
//	pending ──accept──▶ accepted ──purchase──▶ purchased
//	   │
//	   └──reject──▶ rejected
//
// Transition is pure.  Service applies transitions through a Store and
// performs their side effects.
package lifecycle

import (
	"fmt"

	"github.com/iliyamo/script-marketplace/internal/model"
)

// Action is a producer-side operation on an application.
type Action string

const (
	ActionAccept   Action = "accept"
	ActionReject   Action = "reject"
	ActionPurchase Action = "purchase"
)

// Transition returns the status reached by applying action to from.
// Accepting an already accepted application is allowed and leaves the
// status unchanged so the conversation upsert can be replayed.
func Transition(from model.ApplicationStatus, action Action) (model.ApplicationStatus, error) {
	switch action {
	case ActionAccept:
		if from == model.StatusPending || from == model.StatusAccepted {
			return model.StatusAccepted, nil
		}
	case ActionReject:
		if from == model.StatusPending {
			return model.StatusRejected, nil
		}
	case ActionPurchase:
		if from == model.StatusAccepted {
			return model.StatusPurchased, nil
		}
	default:
		return from, fmt.Errorf("%w: unknown action %q", ErrInvalidTransition, action)
	}
	return from, fmt.Errorf("%w: cannot %s an application that is %s", ErrInvalidTransition, action, from)
}

// Terminal reports whether no action can leave s.
func Terminal(s model.ApplicationStatus) bool {
	return s == model.StatusRejected || s == model.StatusPurchased
}
