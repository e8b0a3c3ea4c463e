package pubsub

import (
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	domain "github.com/auditforge/auditforge/internal/domain/audits"
)

func event(auditID string, status domain.Status, progress int) domain.AuditProgress {
	return domain.AuditProgress{
		AuditID:  auditID,
		Status:   status,
		Progress: progress,
	}
}

func TestPublishFanOut(t *testing.T) {
	h := NewHub()

	userCh, cancelUser := h.Subscribe(UserChannel("alice"))
	defer cancelUser()
	auditCh, cancelAudit := h.Subscribe(AuditChannel("a1"))
	defer cancelAudit()

	h.Publish("alice", event("a1", domain.StatusProcessing, 10))

	got := <-userCh
	assert.Equal(t, "a1", got.AuditID)
	assert.Equal(t, 10, got.Progress)

	got = <-auditCh
	assert.Equal(t, "a1", got.AuditID)
}

func TestPublishOrdering(t *testing.T) {
	h := NewHub()
	ch, cancel := h.Subscribe(AuditChannel("a1"))
	defer cancel()

	steps := []int{10, 70, 90, 100}
	for _, p := range steps {
		status := domain.StatusProcessing
		if p == 100 {
			status = domain.StatusCompleted
		}
		h.Publish("alice", event("a1", status, p))
	}

	for _, want := range steps {
		got := <-ch
		assert.Equal(t, want, got.Progress)
	}
}

func TestSlowSubscriberDoesNotBlock(t *testing.T) {
	h := NewHub()
	ch, cancel := h.Subscribe(AuditChannel("a1"))
	defer cancel()

	// overflow the buffer without draining; Publish must return
	for i := 0; i < subscriberBuffer*3; i++ {
		h.Publish("alice", event("a1", domain.StatusProcessing, i))
	}

	// the buffered prefix is intact, the rest was dropped
	assert.Len(t, ch, subscriberBuffer)
	first := <-ch
	assert.Equal(t, 0, first.Progress)
}

func TestNoEventsAfterTerminal(t *testing.T) {
	h := NewHub()
	ch, cancel := h.Subscribe(AuditChannel("a1"))
	defer cancel()

	h.Publish("alice", event("a1", domain.StatusFailed, 70))
	h.Publish("alice", event("a1", domain.StatusProcessing, 90))
	h.Publish("alice", event("a1", domain.StatusCompleted, 100))

	require.Len(t, ch, 1)
	got := <-ch
	assert.Equal(t, domain.StatusFailed, got.Status)

	// Latest stays pinned at the terminal event too
	latest, ok := h.Latest("a1")
	require.True(t, ok)
	assert.Equal(t, domain.StatusFailed, latest.Status)
}

func TestLatest(t *testing.T) {
	h := NewHub()

	_, ok := h.Latest("missing")
	assert.False(t, ok)

	h.Publish("alice", event("a1", domain.StatusQueued, 0))
	h.Publish("alice", event("a1", domain.StatusProcessing, 70))

	latest, ok := h.Latest("a1")
	require.True(t, ok)
	assert.Equal(t, 70, latest.Progress)
}

func TestLatestBounded(t *testing.T) {
	h := NewHub()
	for i := 0; i < latestCap+10; i++ {
		h.Publish("alice", event(fmt.Sprintf("a%d", i), domain.StatusQueued, 0))
	}
	// oldest entries were evicted
	_, ok := h.Latest("a0")
	assert.False(t, ok)
	_, ok = h.Latest(fmt.Sprintf("a%d", latestCap+9))
	assert.True(t, ok)
}

func TestUnsubscribe(t *testing.T) {
	h := NewHub()
	ch, cancel := h.Subscribe(AuditChannel("a1"))

	cancel()
	_, open := <-ch
	assert.False(t, open)

	// double cancel is harmless
	cancel()

	// publishing after unsubscribe reaches nobody but does not panic
	h.Publish("alice", event("a1", domain.StatusProcessing, 10))
}

func TestIndependentSubscribers(t *testing.T) {
	h := NewHub()
	ch1, cancel1 := h.Subscribe(AuditChannel("a1"))
	defer cancel1()
	ch2, cancel2 := h.Subscribe(AuditChannel("a1"))
	defer cancel2()

	h.Publish("alice", event("a1", domain.StatusProcessing, 10))

	assert.Equal(t, 10, (<-ch1).Progress)
	assert.Equal(t, 10, (<-ch2).Progress)
}
