package sse

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/starford/finplan/internal/events"
	"github.com/starford/finplan/internal/subscription"
)

var bg = context.Background()

func drain(ch chan []byte) []string {
	var out []string
	for {
		select {
		case msg := <-ch:
			out = append(out, string(msg))
		default:
			return out
		}
	}
}

func TestSubscribeUnsubscribe(t *testing.T) {
	b := NewBroker(100 * time.Millisecond)
	defer b.Close()
	if b.ClientCount() != 0 {
		t.Fatalf("expected 0 clients")
	}
	ch := b.Subscribe("alice")
	if b.ClientCount() != 1 {
		t.Fatalf("expected 1 client")
	}
	b.Unsubscribe(ch)
	if b.ClientCount() != 0 {
		t.Fatalf("expected 0 clients after unsub")
	}
}

func TestPublishDelivery(t *testing.T) {
	b := NewBroker(100 * time.Millisecond)
	defer b.Close()
	ch := b.Subscribe("alice")
	defer b.Unsubscribe(ch)

	_ = b.Publish(bg, events.New(events.PlanCreated, "alice", map[string]string{"id": "p1"}))

	select {
	case msg := <-ch:
		s := string(msg)
		if !strings.Contains(s, "event: plan.created") {
			t.Errorf("missing event type in %q", s)
		}
		if !strings.Contains(s, `"id":"p1"`) {
			t.Errorf("missing data in %q", s)
		}
	case <-time.After(time.Second):
		t.Fatal("timeout waiting for message")
	}
}

func TestPublishScopedToOwner(t *testing.T) {
	b := NewBroker(time.Second)
	defer b.Close()
	alice := b.Subscribe("alice")
	bob := b.Subscribe("bob")
	defer b.Unsubscribe(alice)
	defer b.Unsubscribe(bob)

	_ = b.Publish(bg, events.New(events.PlanDeleted, "alice", map[string]string{"id": "p1"}))
	_ = b.Publish(bg, events.New(events.RatesUpdated, "", map[string]int{"changes": 2}))
	time.Sleep(50 * time.Millisecond)

	a := drain(alice)
	if len(a) != 2 {
		t.Errorf("alice got %d events, want 2: %q", len(a), a)
	}
	bb := drain(bob)
	if len(bb) != 1 || !strings.Contains(bb[0], "rates.updated") {
		t.Errorf("bob got %q, want only rates.updated", bb)
	}
}

func TestAnalyticsThrottle(t *testing.T) {
	b := NewBroker(500 * time.Millisecond)
	defer b.Close()
	ch := b.Subscribe("alice")
	defer b.Unsubscribe(ch)

	// First expense change triggers analytics.updated, the second does not.
	_ = b.Publish(bg, events.New(events.ExpenseCreated, "alice", map[string]string{"id": "e1"}))
	_ = b.Publish(bg, events.New(events.ExpenseUpdated, "alice", map[string]string{"id": "e1"}))
	// Plan events never trigger analytics.
	_ = b.Publish(bg, events.New(events.PlanUpdated, "alice", map[string]string{"id": "p1"}))

	time.Sleep(50 * time.Millisecond)
	analyticsCount, other := 0, 0
	for _, s := range drain(ch) {
		if strings.Contains(s, "analytics.updated") {
			analyticsCount++
		} else {
			other++
		}
	}
	if other != 3 {
		t.Errorf("domain events = %d, want 3", other)
	}
	if analyticsCount != 1 {
		t.Errorf("analytics events = %d, want 1 (throttled)", analyticsCount)
	}
}

func TestSSEHandler(t *testing.T) {
	b := NewBroker(100 * time.Millisecond)
	defer b.Close()

	ctx, cancel := context.WithCancel(subscription.WithPrincipal(bg,
		subscription.Principal{Owner: "alice", Tier: subscription.Free}))
	defer cancel()

	req := httptest.NewRequest(http.MethodGet, "/api/events", nil)
	req = req.WithContext(ctx)
	w := httptest.NewRecorder()

	done := make(chan struct{})
	go func() {
		b.ServeHTTP(w, req)
		close(done)
	}()

	// Give handler time to subscribe.
	time.Sleep(50 * time.Millisecond)
	if b.ClientCount() != 1 {
		t.Fatalf("expected 1 client from handler")
	}

	_ = b.Publish(bg, events.New(events.BudgetUpdated, "alice", map[string]string{"id": "b1"}))
	_ = b.Publish(bg, events.New(events.BudgetUpdated, "bob", map[string]string{"id": "b2"}))
	time.Sleep(50 * time.Millisecond)

	cancel()
	<-done

	body := w.Body.String()
	if !strings.Contains(body, "event: budget.updated") || !strings.Contains(body, `"id":"b1"`) {
		t.Errorf("handler output missing event: %q", body)
	}
	if strings.Contains(body, `"id":"b2"`) {
		t.Errorf("handler leaked another owner's event: %q", body)
	}
	if w.Header().Get("Content-Type") != "text/event-stream" {
		t.Errorf("content-type = %q", w.Header().Get("Content-Type"))
	}

	time.Sleep(50 * time.Millisecond)
	if b.ClientCount() != 0 {
		t.Errorf("client not cleaned up after disconnect")
	}
}

func TestPublishDropsOnFullBuffer(t *testing.T) {
	b := NewBroker(time.Second)
	defer b.Close()
	ch := b.Subscribe("")
	defer b.Unsubscribe(ch)

	// Fill buffer (capacity 64) and then one more should not block.
	for i := 0; i < 70; i++ {
		_ = b.Publish(bg, events.New(events.RatesUpdated, "", map[string]string{"i": "x"}))
	}
}

func TestCloseClosesSubscribersAndStopsOperations(t *testing.T) {
	b := NewBroker(100 * time.Millisecond)
	ch := b.Subscribe("alice")
	if b.ClientCount() != 1 {
		t.Fatalf("expected 1 client")
	}

	b.Close()

	select {
	case _, ok := <-ch:
		if ok {
			t.Fatal("expected subscriber channel to be closed")
		}
	case <-time.After(time.Second):
		t.Fatal("timeout waiting for channel close")
	}

	if b.ClientCount() != 0 {
		t.Fatalf("expected 0 clients after close")
	}

	// Should be safe no-op after close.
	if err := b.Publish(bg, events.New(events.PlanUpdated, "alice", nil)); err != nil {
		t.Fatalf("publish after close: %v", err)
	}
}

func TestFramesCarrySequenceIDs(t *testing.T) {
	b := NewBroker(time.Hour)
	defer b.Close()
	ch := b.Subscribe("alice")
	defer b.Unsubscribe(ch)

	_ = b.Publish(bg, events.New(events.PlanCreated, "alice", map[string]string{"id": "p1"}))
	_ = b.Publish(bg, events.New(events.PlanDeleted, "bob", map[string]string{"id": "p2"}))
	_ = b.Publish(bg, events.New(events.PlanUpdated, "alice", map[string]string{"id": "p1"}))

	var got []string
	for len(got) < 2 {
		select {
		case msg := <-ch:
			got = append(got, string(msg))
		case <-time.After(time.Second):
			t.Fatalf("got %d messages, want 2", len(got))
		}
	}
	// bob's event still consumes id 2.
	if !strings.HasPrefix(got[0], "id: 1\nevent: plan.created\n") || !strings.HasPrefix(got[1], "id: 3\nevent: plan.updated\n") {
		t.Errorf("frames = %q", got)
	}
}

func TestSSEHandler_Heartbeat(t *testing.T) {
	b := NewBroker(time.Second)
	b.heartbeat = 20 * time.Millisecond
	defer b.Close()

	ctx, cancel := context.WithCancel(bg)
	req := httptest.NewRequest(http.MethodGet, "/api/events", nil).WithContext(ctx)
	w := httptest.NewRecorder()

	done := make(chan struct{})
	go func() {
		b.ServeHTTP(w, req)
		close(done)
	}()
	time.Sleep(70 * time.Millisecond)
	cancel()
	<-done

	if !strings.Contains(w.Body.String(), ": ping\n\n") {
		t.Errorf("no heartbeat in %q", w.Body.String())
	}
}

func TestSSEHandler_EndsOnBrokerClose(t *testing.T) {
	b := NewBroker(time.Second)
	req := httptest.NewRequest(http.MethodGet, "/api/events", nil)
	w := httptest.NewRecorder()

	done := make(chan struct{})
	go func() {
		b.ServeHTTP(w, req)
		close(done)
	}()
	time.Sleep(30 * time.Millisecond)
	b.Close()

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("handler kept streaming after Close")
	}
}
