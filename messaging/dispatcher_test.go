package messaging

import (
	"context"
	"encoding/json"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/JokerTrickster/dicewire-go/contracts"
)

func TestDispatcherDelivery(t *testing.T) {
	t.Run("delivers events in publish order", func(t *testing.T) {
		d := NewDispatcher(WithDispatcherLogger(quietLogger()))
		defer d.Close()

		var mu sync.Mutex
		var got []EventKind
		d.Subscribe(func(evt Event) {
			mu.Lock()
			got = append(got, evt.Kind)
			mu.Unlock()
		})

		d.Publish(Event{Kind: EventStateChanged, State: StateConnecting})
		d.Publish(Event{Kind: EventStateChanged, State: StateConnected})
		d.Publish(Event{Kind: EventReconnected})

		require.Eventually(t, func() bool {
			mu.Lock()
			defer mu.Unlock()
			return len(got) == 3
		}, time.Second, 5*time.Millisecond)

		mu.Lock()
		assert.Equal(t, []EventKind{EventStateChanged, EventStateChanged, EventReconnected}, got)
		mu.Unlock()
	})

	t.Run("callbacks never overlap across concurrent publishers", func(t *testing.T) {
		d := NewDispatcher(WithDispatcherLogger(quietLogger()))
		defer d.Close()

		var active, maxActive, total int
		var mu sync.Mutex
		d.Subscribe(func(evt Event) {
			mu.Lock()
			active++
			if active > maxActive {
				maxActive = active
			}
			mu.Unlock()

			time.Sleep(time.Millisecond)

			mu.Lock()
			active--
			total++
			mu.Unlock()
		})

		var wg sync.WaitGroup
		for i := 0; i < 8; i++ {
			wg.Add(1)
			go func() {
				defer wg.Done()
				for j := 0; j < 4; j++ {
					d.Publish(Event{Kind: EventReconnected})
				}
			}()
		}
		wg.Wait()

		require.Eventually(t, func() bool {
			mu.Lock()
			defer mu.Unlock()
			return total == 32
		}, 2*time.Second, 5*time.Millisecond)

		mu.Lock()
		assert.Equal(t, 1, maxActive, "callbacks must not run concurrently")
		mu.Unlock()
	})

	t.Run("a panicking subscriber does not kill the loop", func(t *testing.T) {
		d := NewDispatcher(WithDispatcherLogger(quietLogger()))
		defer d.Close()

		var mu sync.Mutex
		delivered := 0
		d.Subscribe(func(evt Event) { panic("boom") })
		d.Subscribe(func(evt Event) {
			mu.Lock()
			delivered++
			mu.Unlock()
		})

		d.Publish(Event{Kind: EventReconnected})
		d.Publish(Event{Kind: EventReconnected})

		require.Eventually(t, func() bool {
			mu.Lock()
			defer mu.Unlock()
			return delivered == 2
		}, time.Second, 5*time.Millisecond)
	})
}

func TestTypedHandlers(t *testing.T) {
	t.Run("routes envelopes to handlers of their type", func(t *testing.T) {
		d := NewDispatcher(WithDispatcherLogger(quietLogger()))
		defer d.Close()

		var mu sync.Mutex
		var chats, notices []string
		require.NoError(t, d.RegisterHandler(contracts.TypeChat,
			MessageHandlerFunc(func(ctx context.Context, env *contracts.Envelope) error {
				mu.Lock()
				chats = append(chats, env.ID)
				mu.Unlock()
				return nil
			})))
		require.NoError(t, d.RegisterHandler(contracts.TypeNotice,
			MessageHandlerFunc(func(ctx context.Context, env *contracts.Envelope) error {
				mu.Lock()
				notices = append(notices, env.ID)
				mu.Unlock()
				return nil
			})))

		chat := contracts.NewEnvelope(contracts.TypeChat, json.RawMessage(`{"text":"hi"}`))
		notice := contracts.NewEnvelope(contracts.TypeNotice, nil)
		d.Publish(Event{Kind: EventMessageReceived, Envelope: chat})
		d.Publish(Event{Kind: EventMessageReceived, Envelope: notice})

		require.Eventually(t, func() bool {
			mu.Lock()
			defer mu.Unlock()
			return len(chats) == 1 && len(notices) == 1
		}, time.Second, 5*time.Millisecond)

		mu.Lock()
		assert.Equal(t, []string{chat.ID}, chats)
		assert.Equal(t, []string{notice.ID}, notices)
		mu.Unlock()
	})

	t.Run("rejects unknown and send-only types", func(t *testing.T) {
		d := NewDispatcher(WithDispatcherLogger(quietLogger()))
		defer d.Close()

		noop := MessageHandlerFunc(func(ctx context.Context, env *contracts.Envelope) error { return nil })
		assert.Error(t, d.RegisterHandler("mystery", noop))
		assert.Error(t, d.RegisterHandler(contracts.TypeDiceRoll, noop))
		assert.Error(t, d.RegisterHandler(contracts.TypeChat, nil))
	})
}

func TestDispatcherClose(t *testing.T) {
	t.Run("drains queued events before stopping", func(t *testing.T) {
		d := NewDispatcher(WithDispatcherLogger(quietLogger()))

		var mu sync.Mutex
		delivered := 0
		d.Subscribe(func(evt Event) {
			mu.Lock()
			delivered++
			mu.Unlock()
		})

		for i := 0; i < 10; i++ {
			d.Publish(Event{Kind: EventReconnected})
		}
		d.Close()

		mu.Lock()
		assert.Equal(t, 10, delivered)
		mu.Unlock()
	})

	t.Run("close is idempotent and publish after close is a no-op", func(t *testing.T) {
		d := NewDispatcher(WithDispatcherLogger(quietLogger()))
		d.Close()
		d.Close()
		d.Publish(Event{Kind: EventReconnected})
	})
}
