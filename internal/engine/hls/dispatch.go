package hls

import (
	"sync"

	"hls-watch/internal/engine"
)

// dispatcher delivers events to listeners in order from one goroutine. The
// queue is unbounded so that emitting under the engine lock never blocks on a
// slow listener.
type dispatcher struct {
	mu        sync.Mutex
	queue     []engine.Event
	listeners map[int]func(engine.Event)
	nextID    int
	signal    chan struct{}
}

func newDispatcher() *dispatcher {
	return &dispatcher{
		listeners: make(map[int]func(engine.Event)),
		signal:    make(chan struct{}, 1),
	}
}

func (d *dispatcher) subscribe(fn func(engine.Event)) func() {
	d.mu.Lock()
	id := d.nextID
	d.nextID++
	d.listeners[id] = fn
	d.mu.Unlock()

	var once sync.Once
	return func() {
		once.Do(func() {
			d.mu.Lock()
			delete(d.listeners, id)
			d.mu.Unlock()
		})
	}
}

func (d *dispatcher) push(ev engine.Event) {
	d.mu.Lock()
	d.queue = append(d.queue, ev)
	d.mu.Unlock()
	select {
	case d.signal <- struct{}{}:
	default:
	}
}

// run drains the queue until done is closed.
func (d *dispatcher) run(done <-chan struct{}) {
	for {
		select {
		case <-done:
			return
		case <-d.signal:
		}
		for {
			d.mu.Lock()
			if len(d.queue) == 0 {
				d.mu.Unlock()
				break
			}
			ev := d.queue[0]
			d.queue = d.queue[1:]
			fns := make([]func(engine.Event), 0, len(d.listeners))
			for id := 0; id < d.nextID; id++ {
				if fn, ok := d.listeners[id]; ok {
					fns = append(fns, fn)
				}
			}
			d.mu.Unlock()

			for _, fn := range fns {
				fn(ev)
			}
		}
	}
}
