package hub

import (
	"sync"

	"github.com/rqzrqh/channel_hub/engine"
)

// listener fans engine events out to dynamically registered handlers. Each
// registration returns a token so handlers can be removed on both success and
// failure paths.
type listener struct {
	mu       sync.Mutex
	nextID   int
	handlers map[engine.EventName]map[int]func(*engine.Event)
}

func newListener() *listener {
	return &listener{handlers: make(map[engine.EventName]map[int]func(*engine.Event))}
}

func (l *listener) on(name engine.EventName, fn func(*engine.Event)) int {
	l.mu.Lock()
	defer l.mu.Unlock()

	if l.handlers[name] == nil {
		l.handlers[name] = make(map[int]func(*engine.Event))
	}
	l.nextID++
	l.handlers[name][l.nextID] = fn
	return l.nextID
}

func (l *listener) off(name engine.EventName, id int) {
	l.mu.Lock()
	defer l.mu.Unlock()
	delete(l.handlers[name], id)
}

func (l *listener) emit(ev *engine.Event) {
	l.mu.Lock()
	fns := make([]func(*engine.Event), 0, len(l.handlers[ev.Name]))
	for _, fn := range l.handlers[ev.Name] {
		fns = append(fns, fn)
	}
	l.mu.Unlock()

	for _, fn := range fns {
		fn(ev)
	}
}
