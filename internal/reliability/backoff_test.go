package reliability

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestSchedule(t *testing.T) {
	t.Run("indexes delays by attempt", func(t *testing.T) {
		s := DefaultReconnectSchedule()

		tests := []struct {
			attempt  int
			expected time.Duration
		}{
			{0, 1 * time.Second},
			{1, 2 * time.Second},
			{2, 5 * time.Second},
			{3, 10 * time.Second},
			{4, 30 * time.Second},
		}
		for _, tt := range tests {
			assert.Equal(t, tt.expected, s.Delay(tt.attempt))
		}
	})

	t.Run("clamps past the end", func(t *testing.T) {
		s := Schedule{time.Second, 3 * time.Second}
		assert.Equal(t, 3*time.Second, s.Delay(2))
		assert.Equal(t, 3*time.Second, s.Delay(100))
	})

	t.Run("negative attempt uses first entry", func(t *testing.T) {
		s := Schedule{time.Second, 3 * time.Second}
		assert.Equal(t, time.Second, s.Delay(-1))
	})

	t.Run("empty schedule yields zero", func(t *testing.T) {
		assert.Equal(t, time.Duration(0), Schedule{}.Delay(0))
	})

	t.Run("Valid rejects empty and non-positive entries", func(t *testing.T) {
		assert.True(t, DefaultReconnectSchedule().Valid())
		assert.False(t, Schedule{}.Valid())
		assert.False(t, Schedule{time.Second, 0}.Valid())
		assert.False(t, Schedule{-time.Second}.Valid())
	})
}

func TestIncrementalDelay(t *testing.T) {
	d := DefaultRetryDelay()

	t.Run("grows with retry count", func(t *testing.T) {
		assert.Equal(t, 1*time.Second, d.Delay(1))
		assert.Equal(t, 2*time.Second, d.Delay(2))
		assert.Equal(t, 3*time.Second, d.Delay(3))
	})

	t.Run("caps at max", func(t *testing.T) {
		assert.Equal(t, 5*time.Second, d.Delay(5))
		assert.Equal(t, 5*time.Second, d.Delay(50))
	})

	t.Run("treats zero retries as one", func(t *testing.T) {
		assert.Equal(t, 1*time.Second, d.Delay(0))
	})
}
