package services

import (
	"sync"

	"github.com/AnshRaj112/globalchat/internal/models"
)

// Hub fans change batches out to local subscribers. Each subscriber has its
// own queue and delivery goroutine, so a slow subscriber does not hold up
// the others and batches reach each handler in publish order.
type Hub struct {
	mu     sync.RWMutex
	subs   map[*hubSubscriber]struct{}
	closed bool
}

func NewHub() *Hub {
	return &Hub{subs: make(map[*hubSubscriber]struct{})}
}

type hubSubscriber struct {
	hub     *Hub
	handler func([]models.Change)

	mu      sync.Mutex
	queue   [][]models.Change
	paused  bool
	stopped bool
	wake    chan struct{}
	done    chan struct{}
}

// subscribe registers handler. Batches published while the subscriber is
// paused are held until start.
func (h *Hub) subscribe(handler func([]models.Change), paused bool) *hubSubscriber {
	s := &hubSubscriber{
		hub:     h,
		handler: handler,
		paused:  paused,
		wake:    make(chan struct{}, 1),
		done:    make(chan struct{}),
	}
	h.mu.Lock()
	if h.closed {
		s.stopped = true
		close(s.done)
		h.mu.Unlock()
		return s
	}
	h.subs[s] = struct{}{}
	h.mu.Unlock()
	go s.run()
	return s
}

// Subscribe registers handler for every subsequent batch.
func (h *Hub) Subscribe(handler func([]models.Change)) func() {
	return h.subscribe(handler, false).stop
}

// Dispatch queues batch for every subscriber.
func (h *Hub) Dispatch(batch []models.Change) {
	if len(batch) == 0 {
		return
	}
	h.mu.RLock()
	defer h.mu.RUnlock()
	for s := range h.subs {
		s.enqueue(batch, false)
	}
}

// Subscribers returns the number of registered subscribers.
func (h *Hub) Subscribers() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.subs)
}

// Close stops every subscriber.
func (h *Hub) Close() {
	h.mu.Lock()
	h.closed = true
	subs := h.subs
	h.subs = make(map[*hubSubscriber]struct{})
	h.mu.Unlock()
	for s := range subs {
		s.halt()
	}
}

func (s *hubSubscriber) enqueue(batch []models.Change, front bool) {
	s.mu.Lock()
	if s.stopped {
		s.mu.Unlock()
		return
	}
	if front {
		s.queue = append([][]models.Change{batch}, s.queue...)
	} else {
		s.queue = append(s.queue, batch)
	}
	s.mu.Unlock()
	s.signal()
}

// start delivers first ahead of anything queued while paused, then resumes.
func (s *hubSubscriber) start(first []models.Change) {
	s.mu.Lock()
	if first != nil {
		s.queue = append([][]models.Change{first}, s.queue...)
	}
	s.paused = false
	s.mu.Unlock()
	s.signal()
}

func (s *hubSubscriber) signal() {
	select {
	case s.wake <- struct{}{}:
	default:
	}
}

func (s *hubSubscriber) run() {
	for {
		select {
		case <-s.done:
			return
		case <-s.wake:
		}
		for {
			s.mu.Lock()
			if s.stopped || s.paused || len(s.queue) == 0 {
				s.mu.Unlock()
				break
			}
			batch := s.queue[0]
			s.queue = s.queue[1:]
			s.mu.Unlock()
			s.handler(batch)
		}
	}
}

// halt stops delivery without touching the hub registry.
func (s *hubSubscriber) halt() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.stopped {
		return
	}
	s.stopped = true
	s.queue = nil
	close(s.done)
}

func (s *hubSubscriber) stop() {
	s.hub.mu.Lock()
	delete(s.hub.subs, s)
	s.hub.mu.Unlock()
	s.halt()
}
