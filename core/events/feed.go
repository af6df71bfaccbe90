package events

import "sync"

// Feed fans committed events out to a fixed set of sinks and to dynamic
// channel subscribers. Slow subscribers drop events instead of blocking the
// publisher.
type Feed struct {
	mu     sync.RWMutex
	sinks  []Emitter
	subs   map[uint64]chan Event
	nextID uint64
}

// NewFeed creates a feed publishing to the supplied sinks.
func NewFeed(sinks ...Emitter) *Feed {
	f := &Feed{subs: make(map[uint64]chan Event)}
	for _, sink := range sinks {
		if sink != nil {
			f.sinks = append(f.sinks, sink)
		}
	}
	return f
}

// AddSink registers an additional synchronous sink.
func (f *Feed) AddSink(sink Emitter) {
	if f == nil || sink == nil {
		return
	}
	f.mu.Lock()
	f.sinks = append(f.sinks, sink)
	f.mu.Unlock()
}

// Emit implements Emitter.
func (f *Feed) Emit(evt Event) {
	if f == nil || evt == nil {
		return
	}
	f.mu.RLock()
	defer f.mu.RUnlock()
	for _, sink := range f.sinks {
		sink.Emit(evt)
	}
	for _, ch := range f.subs {
		select {
		case ch <- evt:
		default:
		}
	}
}

// Subscribe returns a channel receiving every subsequent event and a cancel
// function that closes it.
func (f *Feed) Subscribe(buffer int) (<-chan Event, func()) {
	if buffer <= 0 {
		buffer = 64
	}
	ch := make(chan Event, buffer)
	f.mu.Lock()
	id := f.nextID
	f.nextID++
	f.subs[id] = ch
	f.mu.Unlock()
	var once sync.Once
	return ch, func() {
		once.Do(func() {
			f.mu.Lock()
			delete(f.subs, id)
			f.mu.Unlock()
			close(ch)
		})
	}
}
