// Package events implements the in-process event pipeline. Named events
// carry an ordered payload list and are delivered synchronously to all
// subscribers in registration order. Delivery is advisory: subscribers
// observe transitions but cannot veto them.
package events

import "sync"

// Event names emitted by the account-lifecycle workflows.
const (
	LoginAttempt   = "login.attempt"
	LoginReady     = "login.ready"
	LoginSucceeded = "login.succeeded"
	LoginFailed    = "login.failed"

	LogoutBefore = "logout.before"
	LogoutAfter  = "logout.after"

	RegistrationAttempt   = "registration.attempt"
	RegistrationReady     = "registration.ready"
	RegistrationCompleted = "registration.completed"

	ForgotAttempt = "forgot.attempt"
	ForgotReady   = "forgot.ready"
	ForgotSent    = "forgot.sent"
	ForgotFailed  = "forgot.failed"

	ResetBefore = "reset.before"
	ResetAfter  = "reset.after"
)

// Handler receives the ordered payload of a dispatched event.
type Handler func(payload []any)

// Dispatcher maps event names to ordered subscriber lists. One dispatcher
// is constructed per process and passed explicitly to each workflow.
type Dispatcher struct {
	mu       sync.RWMutex
	handlers map[string][]Handler
}

func NewDispatcher() *Dispatcher {
	return &Dispatcher{
		handlers: make(map[string][]Handler),
	}
}

// On subscribes a handler to an event name. Handlers run in the order
// they were registered.
func (d *Dispatcher) On(name string, h Handler) {
	d.mu.Lock()
	defer d.mu.Unlock()

	d.handlers[name] = append(d.handlers[name], h)
}

// Dispatch delivers the payload to every subscriber of the event name
// and returns only after all of them have run.
func (d *Dispatcher) Dispatch(name string, payload ...any) {
	d.mu.RLock()
	handlers := d.handlers[name]
	d.mu.RUnlock()

	for _, h := range handlers {
		h(payload)
	}
}
