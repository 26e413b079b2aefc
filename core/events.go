package core

import (
	"fmt"
	"reflect"
	"sort"
	"sync"

	"github.com/gookit/event"
)

var (
	eventRegistry      = make(map[string]Eventer)
	eventRegistryMutex sync.RWMutex
)

type Eventer interface {
	event.Event
	SetName(name string) Eventer
}

var _ Eventer = (*Event)(nil)

// Event is embedded by every notebook event. Data lives in a plain map so
// listeners can also consume events generically.
type Event struct {
	name    string
	data    map[string]any
	target  any
	aborted bool
}

func (e *Event) Abort(abort bool) {
	e.aborted = abort
}

func (e *Event) Fill(target any, data event.M) *Event {
	if data != nil {
		e.data = data
	}

	e.target = target
	return e
}

func (e *Event) Get(key string) any {
	if v, ok := e.data[key]; ok {
		return v
	}

	return nil
}

func (e *Event) Add(key string, val any) {
	if _, ok := e.data[key]; !ok {
		e.Set(key, val)
	}
}

func (e *Event) Set(key string, val any) {
	if e.data == nil {
		e.data = make(map[string]any)
	}

	e.data[key] = val
}

func (e *Event) Name() string {
	return e.name
}

func (e *Event) Data() map[string]any {
	return e.data
}

func (e *Event) IsAborted() bool {
	return e.aborted
}

func (e *Event) Target() any {
	return e.target
}

func (e *Event) SetName(name string) Eventer {
	e.name = name
	return e
}

func (e *Event) SetData(data event.M) event.Event {
	if data != nil {
		e.data = data
	}
	return e
}

func (e *Event) SetTarget(target any) *Event {
	e.target = target
	return e
}

func RegisterEvent(id string, evt Eventer) {
	eventRegistryMutex.Lock()
	defer eventRegistryMutex.Unlock()

	if _, ok := eventRegistry[id]; ok {
		panic(fmt.Sprintf("event %s already registered", id))
	}

	evt.SetName(id)

	eventRegistry[id] = evt
}

func GetEvents() []Eventer {
	eventRegistryMutex.RLock()
	defer eventRegistryMutex.RUnlock()

	keys := make([]string, 0, len(eventRegistry))
	for k := range eventRegistry {
		keys = append(keys, k)
	}

	sort.Strings(keys)

	events := make([]Eventer, 0, len(eventRegistry))
	for _, k := range keys {
		events = append(events, eventRegistry[k])
	}

	return events
}

// NewEventInstance returns a fresh zero value of the registered event type, named id.
// Registered prototypes are shared, so every fire must work on its own instance.
func NewEventInstance(id string) (Eventer, error) {
	eventRegistryMutex.RLock()
	proto, ok := eventRegistry[id]
	eventRegistryMutex.RUnlock()

	if !ok {
		return nil, fmt.Errorf("event %s not found", id)
	}

	typ := reflect.TypeOf(proto)
	if typ.Kind() != reflect.Ptr {
		return nil, fmt.Errorf("event %s must be registered as a pointer", id)
	}

	evt, ok := reflect.New(typ.Elem()).Interface().(Eventer)
	if !ok {
		return nil, fmt.Errorf("event %s is not an Eventer", id)
	}

	evt.SetName(id)

	return evt, nil
}
