// Package live fans document-store change events out to page-region
// subscriptions. Subscriptions are tracked per request context and released
// when it ends, so navigating away never leaves a callback writing to a
// detached view.
package live

import (
	"context"
	"encoding/json"
	"log"
	"sync"

	"github.com/redis/go-redis/v9"

	"github.com/m-sarabi/tutor-track/internal/store"
)

const defaultChannel = "tutortrack:events"

// Topic keys route an event to the regions querying the touched documents.

func TopicStudents(tutorID string) string { return "students/" + tutorID }

func TopicStudent(studentID string) string { return "student/" + studentID }

func TopicSessions(studentID string) string { return "sessions/" + studentID }

func eventTopics(ev store.Event) []string {
	switch ev.Collection {
	case store.CollectionStudents:
		return []string{TopicStudents(ev.TutorID), TopicStudent(ev.StudentID)}
	case store.CollectionSessions:
		return []string{TopicSessions(ev.StudentID)}
	}
	return nil
}

type Hub struct {
	mu      sync.Mutex
	subs    map[*Subscription]struct{}
	rdb     *redis.Client
	channel string
}

// NewHub returns a hub. With a redis client, events travel through pub/sub
// so pushes reach subscribers on every instance; with nil they are
// dispatched in-process.
func NewHub(rdb *redis.Client) *Hub {
	return &Hub{
		subs:    make(map[*Subscription]struct{}),
		rdb:     rdb,
		channel: defaultChannel,
	}
}

// Notify implements store.Notifier.
func (h *Hub) Notify(ctx context.Context, ev store.Event) {
	if h.rdb != nil {
		payload, err := json.Marshal(ev)
		if err == nil {
			if err := h.rdb.Publish(ctx, h.channel, payload).Err(); err == nil {
				return // our own Run loop dispatches it back
			}
			log.Printf("live: redis publish failed, dispatching locally: %v", err)
		}
	}
	h.dispatch(ev)
}

// Run consumes the redis channel until ctx is done. No-op without redis.
func (h *Hub) Run(ctx context.Context) {
	if h.rdb == nil {
		return
	}
	pubsub := h.rdb.Subscribe(ctx, h.channel)
	defer pubsub.Close()

	ch := pubsub.Channel()
	for {
		select {
		case <-ctx.Done():
			return
		case msg, ok := <-ch:
			if !ok {
				return
			}
			var ev store.Event
			if err := json.Unmarshal([]byte(msg.Payload), &ev); err != nil {
				log.Printf("live: bad event payload: %v", err)
				continue
			}
			h.dispatch(ev)
		}
	}
}

func (h *Hub) dispatch(ev store.Event) {
	h.mu.Lock()
	defer h.mu.Unlock()
	for sub := range h.subs {
		if !sub.matches(ev) {
			continue
		}
		// Coalesce: a pending event already forces a full re-render.
		select {
		case sub.ch <- ev:
		default:
		}
	}
}

// Subscribe registers interest in the given topics. The subscription closes
// itself when ctx is cancelled; callers may also Close it directly.
func (h *Hub) Subscribe(ctx context.Context, topics ...string) *Subscription {
	sub := &Subscription{
		hub:    h,
		topics: make(map[string]struct{}, len(topics)),
		ch:     make(chan store.Event, 1),
	}
	for _, topic := range topics {
		sub.topics[topic] = struct{}{}
	}

	h.mu.Lock()
	h.subs[sub] = struct{}{}
	h.mu.Unlock()

	go func() {
		<-ctx.Done()
		sub.Close()
	}()
	return sub
}

type Subscription struct {
	hub    *Hub
	topics map[string]struct{}
	ch     chan store.Event
	once   sync.Once
}

// C fires whenever a matching document changes. The channel is never
// closed; select on it together with the request context.
func (s *Subscription) C() <-chan store.Event {
	return s.ch
}

func (s *Subscription) Close() {
	s.once.Do(func() {
		s.hub.mu.Lock()
		delete(s.hub.subs, s)
		s.hub.mu.Unlock()
	})
}

func (s *Subscription) matches(ev store.Event) bool {
	for _, topic := range eventTopics(ev) {
		if _, ok := s.topics[topic]; ok {
			return true
		}
	}
	return false
}
