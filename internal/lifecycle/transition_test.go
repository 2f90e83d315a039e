package lifecycle

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/iliyamo/script-marketplace/internal/model"
)

func TestTransition(t *testing.T) {
	cases := []struct {
		from   model.ApplicationStatus
		action Action
		want   model.ApplicationStatus
		ok     bool
	}{
		{model.StatusPending, ActionAccept, model.StatusAccepted, true},
		{model.StatusAccepted, ActionAccept, model.StatusAccepted, true},
		{model.StatusRejected, ActionAccept, "", false},
		{model.StatusPurchased, ActionAccept, "", false},

		{model.StatusPending, ActionReject, model.StatusRejected, true},
		{model.StatusAccepted, ActionReject, "", false},
		{model.StatusRejected, ActionReject, "", false},
		{model.StatusPurchased, ActionReject, "", false},

		{model.StatusAccepted, ActionPurchase, model.StatusPurchased, true},
		{model.StatusPending, ActionPurchase, "", false},
		{model.StatusRejected, ActionPurchase, "", false},
		{model.StatusPurchased, ActionPurchase, "", false},
	}
	for _, tc := range cases {
		got, err := Transition(tc.from, tc.action)
		if tc.ok {
			assert.NoError(t, err, "%s from %s", tc.action, tc.from)
			assert.Equal(t, tc.want, got)
			continue
		}
		assert.True(t, errors.Is(err, ErrInvalidTransition), "%s from %s: %v", tc.action, tc.from, err)
		assert.Equal(t, tc.from, got, "status must not change on a rejected transition")
	}
}

func TestTransitionUnknownAction(t *testing.T) {
	_, err := Transition(model.StatusPending, Action("withdraw"))
	assert.ErrorIs(t, err, ErrInvalidTransition)
}

func TestTerminal(t *testing.T) {
	assert.False(t, Terminal(model.StatusPending))
	assert.False(t, Terminal(model.StatusAccepted))
	assert.True(t, Terminal(model.StatusRejected))
	assert.True(t, Terminal(model.StatusPurchased))
}
