package reliability

import (
	"testing"

	"github.com/relayworks/relay-go/contracts"
	"github.com/stretchr/testify/assert"
)

func TestEscalationPolicyResolve(t *testing.T) {
	t.Run("success always acknowledges", func(t *testing.T) {
		p := NewEscalationPolicy(3)

		for _, count := range []int{0, 1, 3, 100} {
			assert.Equal(t, Acknowledge, p.Resolve(contracts.OutcomeSuccess, count))
		}
	})

	t.Run("failure below threshold leaves for redelivery", func(t *testing.T) {
		p := NewEscalationPolicy(3)

		assert.Equal(t, Leave, p.Resolve(contracts.OutcomeFailure, 1))
		assert.Equal(t, Leave, p.Resolve(contracts.OutcomeFailure, 2))
	})

	t.Run("failure at or above threshold dead-letters", func(t *testing.T) {
		p := NewEscalationPolicy(3)

		assert.Equal(t, DeadLetter, p.Resolve(contracts.OutcomeFailure, 3))
		assert.Equal(t, DeadLetter, p.Resolve(contracts.OutcomeFailure, 4))
	})

	t.Run("threshold comparison is inclusive for all thresholds", func(t *testing.T) {
		for threshold := 1; threshold <= 10; threshold++ {
			p := NewEscalationPolicy(threshold)

			assert.Equal(t, DeadLetter, p.Resolve(contracts.OutcomeFailure, threshold),
				"threshold %d", threshold)
			if threshold > 1 {
				assert.Equal(t, Leave, p.Resolve(contracts.OutcomeFailure, threshold-1),
					"threshold %d", threshold)
			}
		}
	})

	t.Run("thresholds below one are clamped", func(t *testing.T) {
		p := NewEscalationPolicy(0)

		assert.Equal(t, 1, p.DeadLetterThreshold())
		assert.Equal(t, DeadLetter, p.Resolve(contracts.OutcomeFailure, 1))
	})
}

func TestResolutionString(t *testing.T) {
	assert.Equal(t, "acknowledge", Acknowledge.String())
	assert.Equal(t, "leave", Leave.String())
	assert.Equal(t, "dead-letter", DeadLetter.String())
	assert.Equal(t, "unknown", Resolution(99).String())
}
