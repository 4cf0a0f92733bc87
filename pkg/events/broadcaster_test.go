package events

import (
	"fmt"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBroadcastReachesObservers(t *testing.T) {
	b := New()

	var got []Event
	b.Subscribe(ObserverFunc(func(e Event) {
		got = append(got, e)
	}))

	b.Broadcast(KindStatus, map[string]interface{}{"message": "starting"})
	b.Broadcast(KindData, map[string]interface{}{"count": 42})

	require.Len(t, got, 2)
	assert.Equal(t, KindStatus, got[0].Kind)
	assert.Equal(t, "starting", got[0].Payload["message"])
	assert.Equal(t, KindData, got[1].Kind)
	assert.Equal(t, 42, got[1].Payload["count"])
	assert.False(t, got[0].Timestamp.IsZero())
}

func TestHistoryBoundedToMostRecent(t *testing.T) {
	b := New()

	for i := 0; i < 60; i++ {
		b.Broadcast(KindInfo, map[string]interface{}{"seq": i})
	}

	history := b.History()
	require.Len(t, history, MaxHistory)

	// The 50 most recent, in order
	for i, e := range history {
		assert.Equal(t, 10+i, e.Payload["seq"])
	}
}

func TestSubscribeBackfillsHistory(t *testing.T) {
	b := New()
	b.Status("one")
	b.Status("two")

	var got []Event
	b.Subscribe(ObserverFunc(func(e Event) {
		got = append(got, e)
	}))

	require.Len(t, got, 2)
	assert.Equal(t, "one", got[0].Payload["message"])
	assert.Equal(t, "two", got[1].Payload["message"])

	b.Status("three")
	require.Len(t, got, 3)
	assert.Equal(t, "three", got[2].Payload["message"])
}

func TestUnsubscribeStopsDelivery(t *testing.T) {
	b := New()

	count := 0
	unsubscribe := b.Subscribe(ObserverFunc(func(Event) { count++ }))

	b.Status("a")
	unsubscribe()
	b.Status("b")

	assert.Equal(t, 1, count)
}

func TestConcurrentBroadcastAndSubscribe(t *testing.T) {
	b := New()

	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func(n int) {
			defer wg.Done()
			for j := 0; j < 25; j++ {
				b.Broadcast(KindInfo, map[string]interface{}{"msg": fmt.Sprintf("%d-%d", n, j)})
			}
		}(i)
	}
	for i := 0; i < 4; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			unsub := b.Subscribe(ObserverFunc(func(Event) {}))
			unsub()
		}()
	}
	wg.Wait()

	assert.Len(t, b.History(), MaxHistory)
}
