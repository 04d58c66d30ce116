// Package sse streams domain events to browsers as Server-Sent Events.
package sse

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"sync/atomic"
	"time"

	"github.com/starford/finplan/internal/events"
	"github.com/starford/finplan/internal/subscription"
)

// HeartbeatInterval is how often idle streams receive a comment line so
// intermediaries do not time them out.
const HeartbeatInterval = 30 * time.Second

type subscriber struct {
	ch    chan []byte
	owner string
}

// Broker fans events out to subscribed streams.
//
// A single loop goroutine owns the subscriber set, the event sequence and
// the per-owner analytics throttle; every exported method talks to it over
// channels.
//
// Events carrying an owner reach only that owner's streams. Budget and
// expense events are followed by a throttled analytics.updated for the same
// owner.
type Broker struct {
	analyticsMin time.Duration
	heartbeat    time.Duration

	join    chan subscriber
	leave   chan chan []byte
	publish chan events.Event
	count   chan chan int

	quit   chan struct{}
	done   chan struct{}
	closed atomic.Bool
}

// NewBroker starts a broker that emits analytics.updated at most once per
// analyticsThrottle for each owner.
func NewBroker(analyticsThrottle time.Duration) *Broker {
	if analyticsThrottle <= 0 {
		analyticsThrottle = 2 * time.Second
	}

	b := &Broker{
		analyticsMin: analyticsThrottle,
		heartbeat:    HeartbeatInterval,
		join:         make(chan subscriber),
		leave:        make(chan chan []byte),
		publish:      make(chan events.Event, 256),
		count:        make(chan chan int),
		quit:         make(chan struct{}),
		done:         make(chan struct{}),
	}
	go b.loop()
	return b
}

// frame renders e as one SSE message with the given sequence id.
func frame(id uint64, e events.Event) ([]byte, error) {
	payload, err := json.Marshal(e.Data)
	if err != nil {
		return nil, err
	}
	return fmt.Appendf(nil, "id: %d\nevent: %s\ndata: %s\n\n", id, e.Type, payload), nil
}

func (b *Broker) loop() {
	defer close(b.done)

	subs := make(map[chan []byte]string)
	lastAnalytics := make(map[string]time.Time)
	var seq uint64

	deliver := func(e events.Event) {
		seq++
		msg, err := frame(seq, e)
		if err != nil {
			return
		}
		for ch, owner := range subs {
			if e.Owner != "" && owner != e.Owner {
				continue
			}
			// Slow readers miss messages rather than stall the loop.
			select {
			case ch <- msg:
			default:
			}
		}
	}

	for {
		select {
		case <-b.quit:
			for ch := range subs {
				close(ch)
			}
			return

		case s := <-b.join:
			subs[s.ch] = s.owner

		case ch := <-b.leave:
			if _, ok := subs[ch]; ok {
				delete(subs, ch)
				close(ch)
			}

		case e := <-b.publish:
			deliver(e)
			if !e.AffectsAnalytics() {
				continue
			}
			if now := time.Now(); now.Sub(lastAnalytics[e.Owner]) >= b.analyticsMin {
				lastAnalytics[e.Owner] = now
				deliver(events.New(events.AnalyticsUpdated, e.Owner, map[string]string{}))
			}

		case reply := <-b.count:
			reply <- len(subs)
		}
	}
}

// Close stops the loop and closes every subscriber channel. It is safe to
// call more than once.
func (b *Broker) Close() {
	if b.closed.CompareAndSwap(false, true) {
		close(b.quit)
	}
	<-b.done
}

// send hands v to the loop over ch unless the broker has stopped.
func send[T any](b *Broker, ch chan T, v T) bool {
	if b.closed.Load() {
		return false
	}
	select {
	case ch <- v:
		return true
	case <-b.done:
		return false
	}
}

// Subscribe registers a stream for owner's events (and unscoped ones).
// On a closed broker the returned channel is already closed.
func (b *Broker) Subscribe(owner string) chan []byte {
	ch := make(chan []byte, 64)
	if !send(b, b.join, subscriber{ch: ch, owner: owner}) {
		close(ch)
	}
	return ch
}

// Unsubscribe removes a stream and closes its channel.
func (b *Broker) Unsubscribe(ch chan []byte) {
	send(b, b.leave, ch)
}

// ClientCount returns the number of subscribed streams.
func (b *Broker) ClientCount() int {
	reply := make(chan int, 1)
	if !send(b, b.count, reply) {
		return 0
	}
	select {
	case n := <-reply:
		return n
	case <-b.done:
		return 0
	}
}

// Publish implements events.Publisher. It never fails; events published
// after Close are dropped.
func (b *Broker) Publish(_ context.Context, e events.Event) error {
	send(b, b.publish, e)
	return nil
}

// ServeHTTP streams the caller's events until the request ends or the
// broker closes.
func (b *Broker) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	flusher, ok := w.(http.Flusher)
	if !ok {
		http.Error(w, "streaming unsupported", http.StatusInternalServerError)
		return
	}

	h := w.Header()
	h.Set("Content-Type", "text/event-stream")
	h.Set("Cache-Control", "no-cache")
	h.Set("Connection", "keep-alive")
	h.Set("X-Accel-Buffering", "no")
	w.WriteHeader(http.StatusOK)
	flusher.Flush()

	var owner string
	if p, ok := subscription.FromContext(r.Context()); ok {
		owner = p.Owner
	}
	ch := b.Subscribe(owner)
	defer b.Unsubscribe(ch)

	ping := time.NewTicker(b.heartbeat)
	defer ping.Stop()

	for {
		select {
		case <-r.Context().Done():
			return
		case <-ping.C:
			_, _ = w.Write([]byte(": ping\n\n"))
			flusher.Flush()
		case msg, ok := <-ch:
			if !ok {
				return
			}
			_, _ = w.Write(msg)
			flusher.Flush()
		}
	}
}
