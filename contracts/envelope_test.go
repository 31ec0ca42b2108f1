package contracts

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
)

func TestNewEnvelope(t *testing.T) {
	t.Run("creates envelope with identity and current version", func(t *testing.T) {
		env := NewEnvelope(TypeChat, json.RawMessage(`{"text":"hi"}`))

		assert.NotEmpty(t, env.ID)
		assert.Equal(t, TypeChat, env.Type)
		assert.Equal(t, CurrentProtocolVersion, env.ProtocolVersion)
		assert.Equal(t, PriorityNormal, env.Priority)
		assert.NotZero(t, env.CreatedAt)

		_, err := uuid.Parse(env.ID)
		assert.NoError(t, err)
	})

	t.Run("generates unique ids per envelope", func(t *testing.T) {
		a := NewEnvelope(TypeChat, nil)
		b := NewEnvelope(TypeChat, nil)
		assert.NotEqual(t, a.ID, b.ID)
	})
}

func TestEnvelopeExpiry(t *testing.T) {
	now := time.Now().UTC()

	t.Run("fresh envelope is not expired", func(t *testing.T) {
		env := &Envelope{CreatedAt: now.Add(-10 * time.Second)}
		assert.False(t, env.Expired(now, 30*time.Second))
	})

	t.Run("stale envelope is expired", func(t *testing.T) {
		env := &Envelope{CreatedAt: now.Add(-31 * time.Second)}
		assert.True(t, env.Expired(now, 30*time.Second))
	})

	t.Run("zero ttl disables expiry", func(t *testing.T) {
		env := &Envelope{CreatedAt: now.Add(-time.Hour)}
		assert.False(t, env.Expired(now, 0))
	})
}

func TestPriority(t *testing.T) {
	t.Run("orders from low to critical", func(t *testing.T) {
		assert.Less(t, PriorityLow, PriorityNormal)
		assert.Less(t, PriorityNormal, PriorityHigh)
		assert.Less(t, PriorityHigh, PriorityCritical)
	})

	t.Run("String names each level", func(t *testing.T) {
		tests := []struct {
			priority Priority
			name     string
		}{
			{PriorityLow, "low"},
			{PriorityNormal, "normal"},
			{PriorityHigh, "high"},
			{PriorityCritical, "critical"},
			{Priority(42), "unknown"},
		}
		for _, tt := range tests {
			assert.Equal(t, tt.name, tt.priority.String())
		}
	})

	t.Run("Valid rejects out of range values", func(t *testing.T) {
		assert.True(t, PriorityLow.Valid())
		assert.True(t, PriorityCritical.Valid())
		assert.False(t, Priority(-1).Valid())
		assert.False(t, Priority(4).Valid())
	})
}

func TestTypeVocabulary(t *testing.T) {
	t.Run("send-only types cannot be received", func(t *testing.T) {
		assert.True(t, CanSend(TypePing))
		assert.False(t, CanReceive(TypePing))
		assert.True(t, CanSend(TypeDiceRoll))
		assert.False(t, CanReceive(TypeDiceRoll))
	})

	t.Run("receive-only types cannot be sent", func(t *testing.T) {
		assert.True(t, CanReceive(TypePong))
		assert.False(t, CanSend(TypePong))
		assert.True(t, CanReceive(TypeDiceResult))
		assert.False(t, CanSend(TypeDiceResult))
	})

	t.Run("chat flows both ways", func(t *testing.T) {
		assert.True(t, CanSend(TypeChat))
		assert.True(t, CanReceive(TypeChat))
	})

	t.Run("vocabulary is closed", func(t *testing.T) {
		assert.False(t, KnownType("dice.cheat"))
		assert.False(t, CanSend("dice.cheat"))
		assert.False(t, CanReceive("dice.cheat"))
	})

	t.Run("KnownTypes covers the vocabulary", func(t *testing.T) {
		types := KnownTypes()
		assert.Len(t, types, 11)
		for _, typ := range types {
			assert.True(t, KnownType(typ))
		}
	})
}

func TestVersionSupported(t *testing.T) {
	assert.True(t, VersionSupported("1.0"))
	assert.True(t, VersionSupported("1.1"))
	assert.False(t, VersionSupported("2.0"))
	assert.False(t, VersionSupported(""))
}
