package events

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestDispatchDeliversOrderedPayload(t *testing.T) {
	d := NewDispatcher()

	var got []any
	d.On(LoginAttempt, func(payload []any) {
		got = payload
	})

	d.Dispatch(LoginAttempt, "a@b.c", "secret", "email")

	assert.Equal(t, []any{"a@b.c", "secret", "email"}, got)
}

func TestSubscribersRunInRegistrationOrder(t *testing.T) {
	d := NewDispatcher()

	var order []int
	for i := range 5 {
		d.On("custom.event", func([]any) {
			order = append(order, i)
		})
	}

	d.Dispatch("custom.event")

	assert.Equal(t, []int{0, 1, 2, 3, 4}, order)
}

func TestDispatchIsSynchronous(t *testing.T) {
	d := NewDispatcher()

	ran := false
	d.On("custom.event", func([]any) {
		ran = true
	})

	d.Dispatch("custom.event")

	assert.True(t, ran)
}

func TestDispatchWithoutSubscribersIsNoop(t *testing.T) {
	d := NewDispatcher()

	assert.NotPanics(t, func() {
		d.Dispatch("nobody.listens", 1, 2, 3)
	})
}

func TestSubscribersAreScopedByName(t *testing.T) {
	d := NewDispatcher()

	calls := 0
	d.On(LoginSucceeded, func([]any) {
		calls++
	})

	d.Dispatch(LoginFailed)
	d.Dispatch(LoginSucceeded)

	assert.Equal(t, 1, calls)
}
