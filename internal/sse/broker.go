// Package sse streams note store changes to browsers as Server-Sent Events.
package sse

import (
	"encoding/json"
	"fmt"
	"net/http"
	"sync/atomic"
	"time"

	"github.com/starford/notekeep/internal/notestore"
)

// EventListsChanged is the throttled summary sent after store changes.
const EventListsChanged = "lists.changed"

// Event represents an SSE event to broadcast.
type Event struct {
	Type string `json:"type"`
	Data any    `json:"data"`
}

// Counts is the payload of a lists.changed event.
type Counts struct {
	Active    int `json:"active"`
	Completed int `json:"completed"`
}

// Broker manages SSE client connections and broadcasts events.
//
// A single event loop goroutine owns the client set and the summary throttle
// timestamp; public methods talk to it over channels.
type Broker struct {
	summaryMin time.Duration

	subscribeCh   chan chan []byte
	unsubscribeCh chan chan []byte
	publishCh     chan Event
	changeCh      chan notestore.Change
	countReqCh    chan chan int

	stopCh  chan struct{}
	stopped chan struct{}
	closed  atomic.Bool
}

// NewBroker creates a broker that emits at most one lists.changed event per
// summaryThrottle.
func NewBroker(summaryThrottle time.Duration) *Broker {
	if summaryThrottle <= 0 {
		summaryThrottle = 2 * time.Second
	}

	b := &Broker{
		summaryMin:    summaryThrottle,
		subscribeCh:   make(chan chan []byte),
		unsubscribeCh: make(chan chan []byte),
		publishCh:     make(chan Event, 256),
		changeCh:      make(chan notestore.Change, 256),
		countReqCh:    make(chan chan int),
		stopCh:        make(chan struct{}),
		stopped:       make(chan struct{}),
	}

	go b.run()
	return b
}

func frame(event Event) ([]byte, bool) {
	payload, err := json.Marshal(event.Data)
	if err != nil {
		return nil, false
	}
	return []byte(fmt.Sprintf("event: %s\ndata: %s\n\n", event.Type, payload)), true
}

func (b *Broker) run() {
	defer close(b.stopped)

	clients := make(map[chan []byte]struct{})
	var lastSummary time.Time
	var counts *Counts // latest list sizes, nil until the first change

	send := func(ch chan []byte, raw []byte) {
		select {
		case ch <- raw:
		default:
			// Slow browser; drop rather than stall the loop.
		}
	}
	broadcast := func(event Event) {
		raw, ok := frame(event)
		if !ok {
			return
		}
		for ch := range clients {
			send(ch, raw)
		}
	}

	for {
		select {
		case <-b.stopCh:
			for ch := range clients {
				close(ch)
			}
			return

		case ch := <-b.subscribeCh:
			clients[ch] = struct{}{}
			if counts != nil {
				if raw, ok := frame(Event{Type: EventListsChanged, Data: *counts}); ok {
					send(ch, raw)
				}
			}

		case ch := <-b.unsubscribeCh:
			if _, ok := clients[ch]; ok {
				delete(clients, ch)
				close(ch)
			}

		case event := <-b.publishCh:
			broadcast(event)

		case c := <-b.changeCh:
			counts = &Counts{Active: c.Active, Completed: c.Completed}
			broadcast(Event{Type: string(c.Kind), Data: c})

			now := time.Now()
			if now.Sub(lastSummary) >= b.summaryMin {
				lastSummary = now
				broadcast(Event{Type: EventListsChanged, Data: *counts})
			}

		case resp := <-b.countReqCh:
			resp <- len(clients)
		}
	}
}

// Close stops the loop and ends every open event stream.
func (b *Broker) Close() {
	if b.closed.CompareAndSwap(false, true) {
		close(b.stopCh)
	}
	<-b.stopped
}

// Subscribe registers a browser stream and returns the channel its SSE frames
// arrive on. Once any change has been seen, the current list counts are sent
// first as a lists.changed frame.
func (b *Broker) Subscribe() chan []byte {
	ch := make(chan []byte, 64)
	if b.closed.Load() {
		close(ch)
		return ch
	}

	select {
	case b.subscribeCh <- ch:
	case <-b.stopped:
		close(ch)
	}

	return ch
}

// Unsubscribe drops a stream registered with Subscribe and closes its channel.
func (b *Broker) Unsubscribe(ch chan []byte) {
	if b.closed.Load() {
		return
	}
	select {
	case b.unsubscribeCh <- ch:
	case <-b.stopped:
	}
}

// ClientCount returns the number of open event streams.
func (b *Broker) ClientCount() int {
	if b.closed.Load() {
		return 0
	}

	resp := make(chan int, 1)
	select {
	case b.countReqCh <- resp:
	case <-b.stopped:
		return 0
	}

	select {
	case n := <-resp:
		return n
	case <-b.stopped:
		return 0
	}
}

// Publish sends an arbitrary event to every open stream.
func (b *Broker) Publish(event Event) {
	if b.closed.Load() {
		return
	}
	select {
	case b.publishCh <- event:
	case <-b.stopped:
	}
}

// PublishChange forwards a store change and a throttled lists.changed
// summary. It has the signature of a notestore listener.
func (b *Broker) PublishChange(c notestore.Change) {
	if b.closed.Load() {
		return
	}
	select {
	case b.changeCh <- c:
	case <-b.stopped:
	}
}

// ServeHTTP streams note changes to one browser (GET /api/events) until the
// request is cancelled or the broker closes.
func (b *Broker) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	flusher, ok := w.(http.Flusher)
	if !ok {
		http.Error(w, "streaming unsupported", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.WriteHeader(http.StatusOK)
	flusher.Flush()

	ch := b.Subscribe()
	defer b.Unsubscribe(ch)

	ctx := r.Context()
	for {
		select {
		case <-ctx.Done():
			return
		case msg, ok := <-ch:
			if !ok {
				return
			}
			_, _ = w.Write(msg)
			flusher.Flush()
		}
	}
}
