package event

import (
	"fmt"
	"sync"

	"go.notebook.dev/notebook/core"
)

// fireMu serializes dispatch, the manager's listener queues are not safe for concurrent fires.
var fireMu sync.Mutex

// Fire builds a fresh instance of the named event, lets fill populate it and
// dispatches it to the context's listeners.
func Fire[T core.Eventer](ctx core.Context, eventName string, fill func(evt T) error) error {
	evt, err := newEvent[T](eventName)
	if err != nil {
		return err
	}

	if fill != nil {
		if err := fill(evt); err != nil {
			return err
		}
	}

	if ctx.Event() == nil {
		return nil
	}

	fireMu.Lock()
	defer fireMu.Unlock()

	return ctx.Event().FireEvent(evt)
}

func newEvent[T core.Eventer](eventName string) (T, error) {
	evt, err := core.NewEventInstance(eventName)
	if err != nil {
		return *new(T), err
	}

	return assertEventType[T](evt, eventName)
}

func assertEventType[T core.Eventer](evt core.Eventer, eventName string) (T, error) {
	typedEvt, ok := evt.(T)
	if !ok {
		return *new(T), fmt.Errorf("event %s is not of expected type", eventName)
	}
	return typedEvt, nil
}
