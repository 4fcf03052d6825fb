package events

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestHubFanOut(t *testing.T) {
	hub := NewHub(4, nil)
	all := hub.Subscribe(nil)
	defer all.Close()
	onlyApproved := hub.Subscribe(func(e Event) bool { return e.To == "approved" })
	defer onlyApproved.Close()

	hub.Publish(Event{Type: TypeStatusChanged, ApplicationID: "app-1", From: "submitted", To: "in_review"})
	hub.Publish(Event{Type: TypeStatusChanged, ApplicationID: "app-1", From: "in_review", To: "approved"})

	first := <-all.C
	second := <-all.C
	assert.Equal(t, "in_review", first.To)
	assert.Equal(t, "approved", second.To)
	assert.False(t, first.OccurredAt.IsZero())

	filtered := <-onlyApproved.C
	assert.Equal(t, "approved", filtered.To)
	assert.Len(t, onlyApproved.C, 0)
}

func TestHubDropsForSlowSubscriber(t *testing.T) {
	hub := NewHub(1, nil)
	sub := hub.Subscribe(nil)
	defer sub.Close()

	hub.Publish(Event{ApplicationID: "a"})
	hub.Publish(Event{ApplicationID: "b"})

	assert.Equal(t, uint64(1), hub.Dropped())
	evt := <-sub.C
	assert.Equal(t, "a", evt.ApplicationID)
}

func TestSubscriptionCloseIsIdempotent(t *testing.T) {
	hub := NewHub(1, nil)
	sub := hub.Subscribe(nil)
	require.Equal(t, 1, hub.Subscribers())
	sub.Close()
	sub.Close()
	assert.Equal(t, 0, hub.Subscribers())
	_, open := <-sub.C
	assert.False(t, open)

	var nilHub *Hub
	nilHub.Publish(Event{})
}
