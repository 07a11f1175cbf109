package clients

import (
	"context"
	"errors"
	"log/slog"
	"sync"

	"github.com/google/uuid"
)

var (
	ErrNoSubscribers = errors.New("no subscribers")
	ErrClosed        = errors.New("hub closed")
)

// Frame is an encoded image shared by every subscriber that receives it.
// Its bytes must not be modified.
type Frame struct {
	b []byte
}

// NewFrame wraps b. The caller gives up ownership of b.
func NewFrame(b []byte) *Frame { return &Frame{b: b} }

// Bytes returns the encoded image.
func (f *Frame) Bytes() []byte { return f.b }

// Len returns the encoded size in bytes.
func (f *Frame) Len() int { return len(f.b) }

// Hub broadcasts frames to subscribers. Each subscriber holds at most one
// unread frame; a newer frame replaces it.
type Hub struct {
	mu     sync.RWMutex
	subs   map[string]*Subscription
	closed bool
	logger *slog.Logger
}

func NewHub(logger *slog.Logger) *Hub {
	if logger == nil {
		logger = slog.Default()
	}
	return &Hub{
		subs:   make(map[string]*Subscription),
		logger: logger.With("component", "hub"),
	}
}

// Subscribe registers a subscriber that receives frames published from now
// on.
func (h *Hub) Subscribe() *Subscription {
	s := &Subscription{
		id:   uuid.NewString(),
		hub:  h,
		c:    make(chan *Frame, 1),
		done: make(chan struct{}),
	}
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.closed {
		close(s.done)
		return s
	}
	h.subs[s.id] = s
	h.logger.Debug("subscriber added", "subscriber", s.id, "subscribers", len(h.subs))
	return s
}

// Subscribers returns the number of live subscriptions.
func (h *Hub) Subscribers() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.subs)
}

// Closed reports whether Close has been called.
func (h *Hub) Closed() bool {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return h.closed
}

// Publish offers f to every subscriber and returns how many there were.
// It never blocks on a slow subscriber.
func (h *Hub) Publish(f *Frame) (int, error) {
	h.mu.RLock()
	defer h.mu.RUnlock()
	if h.closed {
		return 0, ErrClosed
	}
	if len(h.subs) == 0 {
		return 0, ErrNoSubscribers
	}
	for _, s := range h.subs {
		s.offer(f)
	}
	return len(h.subs), nil
}

// Close ends every subscription. Subscribers drain their pending frame
// before seeing ErrClosed.
func (h *Hub) Close() {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.closed {
		return
	}
	h.closed = true
	for id, s := range h.subs {
		close(s.done)
		delete(h.subs, id)
	}
}

func (h *Hub) remove(s *Subscription) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if _, ok := h.subs[s.id]; !ok {
		return
	}
	delete(h.subs, s.id)
	close(s.done)
	h.logger.Debug("subscriber removed", "subscriber", s.id, "subscribers", len(h.subs))
}

// Subscription is one subscriber's view of the hub.
type Subscription struct {
	id   string
	hub  *Hub
	mu   sync.Mutex
	c    chan *Frame
	done chan struct{}
}

// ID identifies the subscription in logs.
func (s *Subscription) ID() string { return s.id }

// offer replaces any unread frame with f.
func (s *Subscription) offer(f *Frame) {
	s.mu.Lock()
	defer s.mu.Unlock()
	select {
	case <-s.c:
	default:
	}
	s.c <- f
}

// Recv returns the next frame. It returns ErrClosed once the subscription
// or the hub is closed and no frame is pending.
func (s *Subscription) Recv(ctx context.Context) (*Frame, error) {
	select {
	case f := <-s.c:
		return f, nil
	default:
	}
	select {
	case f := <-s.c:
		return f, nil
	case <-s.done:
		select {
		case f := <-s.c:
			return f, nil
		default:
			return nil, ErrClosed
		}
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

// Close unsubscribes. It is safe to call more than once.
func (s *Subscription) Close() {
	s.hub.remove(s)
}
