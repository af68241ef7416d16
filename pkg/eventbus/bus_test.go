package eventbus

import (
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestExactTopicDelivery(t *testing.T) {
	b := New()
	var got Payload
	_, err := b.On("processing.complete", func(sender, topic string, payload Payload) {
		got = payload
	})
	require.NoError(t, err)

	b.Emit("processing.complete", 0, Payload{"path": "/tmp/out.csv"})
	assert.Equal(t, "/tmp/out.csv", got["path"])
}

func TestWildcardSuffixMatch(t *testing.T) {
	b := New()
	var topics []string
	var mu sync.Mutex
	_, err := b.On("state.file.*", func(sender, topic string, payload Payload) {
		mu.Lock()
		topics = append(topics, topic)
		mu.Unlock()
	})
	require.NoError(t, err)

	b.Emit("state.file.tracked.added", 0, nil)
	b.Emit("state.file.tracked.file.count", 0, nil)
	b.Emit("other.topic", 0, nil)

	mu.Lock()
	defer mu.Unlock()
	assert.ElementsMatch(t, []string{"state.file.tracked.added", "state.file.tracked.file.count"}, topics)
}

func TestBadPatternRejected(t *testing.T) {
	b := New()
	_, err := b.On("a.b*.c", func(string, string, Payload) {})
	assert.ErrorIs(t, err, ErrBadPattern)

	_, err = b.On("a.*.c", func(string, string, Payload) {})
	assert.ErrorIs(t, err, ErrBadPattern)
}

func TestUnsubscribeStopsDelivery(t *testing.T) {
	b := New()
	calls := 0
	unsub, err := b.On("progress.update", func(string, string, Payload) { calls++ })
	require.NoError(t, err)

	unsub()
	b.Emit("progress.update", 0, nil)
	assert.Equal(t, 0, calls)
}

func TestOffRemovesSingleSubscription(t *testing.T) {
	b := New()
	var aCalls, bCalls int
	handlerA := func(string, string, Payload) { aCalls++ }
	handlerB := func(string, string, Payload) { bCalls++ }

	_, err := b.On("status.update", handlerA)
	require.NoError(t, err)
	_, err = b.On("status.update", handlerB)
	require.NoError(t, err)

	b.Off("status.update", handlerA)
	b.Emit("status.update", 0, nil)

	assert.Equal(t, 0, aCalls)
	assert.Equal(t, 1, bCalls)
}

func TestOffOnUnknownSubscriptionIsNoop(t *testing.T) {
	b := New()
	assert.NotPanics(t, func() {
		b.Off("nothing.subscribed", func(string, string, Payload) {})
	})
}

func TestDelayedEmitPreservesEmitTimeSender(t *testing.T) {
	b := New()
	done := make(chan string, 1)
	_, err := b.On("processing.start", func(sender, topic string, payload Payload) {
		done <- sender
	})
	require.NoError(t, err)

	b.EmitAs("engine:Engine.Start", "processing.start", 20*time.Millisecond, nil)

	select {
	case sender := <-done:
		assert.Equal(t, "engine:Engine.Start", sender)
	case <-time.After(time.Second):
		t.Fatal("delayed emit never fired")
	}
}

func TestHandlerPanicDoesNotStopOtherHandlers(t *testing.T) {
	b := New()
	secondCalled := false
	_, _ = b.On("processing.error", func(string, string, Payload) { panic("boom") })
	_, _ = b.On("processing.error", func(string, string, Payload) { secondCalled = true })

	assert.NotPanics(t, func() { b.Emit("processing.error", 0, nil) })
	assert.True(t, secondCalled)
}

func TestDefaultIsSingleton(t *testing.T) {
	assert.Same(t, Default(), Default())
}
