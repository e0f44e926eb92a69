package pipeline

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEventBus_OwnerFilter(t *testing.T) {
	bus := NewEventBus()

	var all, alice []string
	unsubAll := bus.SubscribeOwner("", ResultHandlerFunc(func(r *AnalysisResult) { all = append(all, r.ResultID) }))
	unsubAlice := bus.SubscribeOwner("alice", ResultHandlerFunc(func(r *AnalysisResult) { alice = append(alice, r.ResultID) }))

	bus.Publish(&AnalysisResult{ResultID: "1", OwnerID: "alice"})
	bus.Publish(&AnalysisResult{ResultID: "2", OwnerID: "bob"})
	bus.Publish(nil)

	assert.ElementsMatch(t, []string{"1", "2"}, all)
	assert.Equal(t, []string{"1"}, alice)
	assert.Equal(t, 2, bus.SubscriberCount())

	unsubAll()
	unsubAlice()
	assert.Zero(t, bus.SubscriberCount())
}

func TestEventBus_ChannelDropsWhenFull(t *testing.T) {
	bus := NewEventBus()
	ch, unsubscribe := bus.SubscribeOwnerChannel("bob", 1)

	bus.Publish(&AnalysisResult{ResultID: "1", OwnerID: "bob"})
	bus.Publish(&AnalysisResult{ResultID: "2", OwnerID: "bob"})

	got := <-ch
	assert.Equal(t, "1", got.ResultID)

	unsubscribe()
	_, open := <-ch
	require.False(t, open)
	unsubscribe()
}

func TestEventBus_HandlerMayUnsubscribeDuringPublish(t *testing.T) {
	bus := NewEventBus()

	calls := 0
	var unsubscribe func()
	unsubscribe = bus.SubscribeOwner("alice", ResultHandlerFunc(func(r *AnalysisResult) {
		calls++
		unsubscribe()
	}))

	bus.Publish(&AnalysisResult{ResultID: "1", OwnerID: "alice"})
	bus.Publish(&AnalysisResult{ResultID: "2", OwnerID: "alice"})

	assert.Equal(t, 1, calls)
	assert.Zero(t, bus.SubscriberCount())
}

func TestEventBus_CloseClosesChannels(t *testing.T) {
	bus := NewEventBus()
	ch, _ := bus.SubscribeOwnerChannel("", 0)

	bus.Close()
	_, open := <-ch
	assert.False(t, open)
	assert.Zero(t, bus.SubscriberCount())
}
