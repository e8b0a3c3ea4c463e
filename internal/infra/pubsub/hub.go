package pubsub

import (
	"sync"

	domain "github.com/auditforge/auditforge/internal/domain/audits"
)

// subscriber buffer; a slow or disconnected client drops events rather
// than blocking the publisher
const subscriberBuffer = 16

// latestCap bounds the retained latest-event map.
const latestCap = 2048

// UserChannel addresses every event for a requester.
func UserChannel(requesterID string) string { return "user:" + requesterID }

// AuditChannel addresses the events of a single audit.
func AuditChannel(auditID string) string { return "audit:" + auditID }

// Hub is an in-process pub/sub fan-out for audit progress. Each event is
// published to the requester's channel and the audit's channel. Delivery is
// at-most-once per connected subscriber with per-audit FIFO ordering; there
// is no replay for late subscribers.
type Hub struct {
	mu       sync.Mutex
	nextID   int
	subs     map[string]map[int]chan domain.AuditProgress
	latest   map[string]domain.AuditProgress
	order    []string
	terminal map[string]struct{}
}

func NewHub() *Hub {
	return &Hub{
		subs:     make(map[string]map[int]chan domain.AuditProgress),
		latest:   make(map[string]domain.AuditProgress),
		terminal: make(map[string]struct{}),
	}
}

// Publish fans the event out to the requester channel and the audit
// channel. Events for an audit that already reached a terminal status are
// dropped, which keeps the "no events after failed/cancelled" contract even
// if a lagging pipeline step tries to report.
func (h *Hub) Publish(requesterID string, p domain.AuditProgress) {
	h.mu.Lock()
	defer h.mu.Unlock()

	if _, done := h.terminal[p.AuditID]; done {
		return
	}
	h.rememberLocked(p)
	if p.Status.Terminal() {
		h.terminal[p.AuditID] = struct{}{}
	}

	h.fanOutLocked(UserChannel(requesterID), p)
	h.fanOutLocked(AuditChannel(p.AuditID), p)
}

func (h *Hub) fanOutLocked(channel string, p domain.AuditProgress) {
	for _, ch := range h.subs[channel] {
		select {
		case ch <- p:
		default: // slow subscriber, drop
		}
	}
}

// rememberLocked tracks the latest event per audit in a bounded map.
func (h *Hub) rememberLocked(p domain.AuditProgress) {
	if _, seen := h.latest[p.AuditID]; !seen {
		h.order = append(h.order, p.AuditID)
		for len(h.order) > latestCap {
			old := h.order[0]
			h.order = h.order[1:]
			delete(h.latest, old)
			delete(h.terminal, old)
		}
	}
	h.latest[p.AuditID] = p
}

// Latest returns the most recent event seen for an audit, if any.
func (h *Hub) Latest(auditID string) (domain.AuditProgress, bool) {
	h.mu.Lock()
	defer h.mu.Unlock()
	p, ok := h.latest[auditID]
	return p, ok
}

// Subscribe registers a subscriber on a channel name built with UserChannel
// or AuditChannel. The cancel func unsubscribes and closes the stream; it is
// safe to call more than once and has no effect on any job.
func (h *Hub) Subscribe(channel string) (<-chan domain.AuditProgress, func()) {
	h.mu.Lock()
	defer h.mu.Unlock()

	h.nextID++
	id := h.nextID
	ch := make(chan domain.AuditProgress, subscriberBuffer)
	if h.subs[channel] == nil {
		h.subs[channel] = make(map[int]chan domain.AuditProgress)
	}
	h.subs[channel][id] = ch

	cancel := func() {
		h.mu.Lock()
		defer h.mu.Unlock()
		if set, ok := h.subs[channel]; ok {
			if c, ok := set[id]; ok {
				delete(set, id)
				close(c)
				if len(set) == 0 {
					delete(h.subs, channel)
				}
			}
		}
	}
	return ch, cancel
}
