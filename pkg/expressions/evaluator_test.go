package expressions

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEvaluator_Evaluate(t *testing.T) {
	e := NewEvaluator()
	doc := map[string]any{
		"paymentId": "pi_123",
		"originalData": map[string]any{
			"PaymentIntent ID": "pi_legacy",
			"metadata":         map[string]any{"registrationId": "reg_9"},
		},
	}

	t.Run("reads top level keys", func(t *testing.T) {
		v, err := e.Evaluate("paymentId", doc)
		require.NoError(t, err)
		assert.Equal(t, "pi_123", v)
	})

	t.Run("reads quoted keys with spaces", func(t *testing.T) {
		v, err := e.Evaluate(`originalData."PaymentIntent ID"`, doc)
		require.NoError(t, err)
		assert.Equal(t, "pi_legacy", v)
	})

	t.Run("missing paths evaluate to nil", func(t *testing.T) {
		v, err := e.Evaluate("originalData.metadata.paymentId", doc)
		require.NoError(t, err)
		assert.Nil(t, v)
	})

	t.Run("invalid expressions return an error", func(t *testing.T) {
		_, err := e.Evaluate("originalData.[", doc)
		assert.Error(t, err)
		assert.Error(t, e.Validate("a..b"))
	})
}

func TestEvaluator_FirstOf(t *testing.T) {
	e := NewEvaluator()
	doc := map[string]any{
		"customerEmail": "  ",
		"originalData":  map[string]any{"Customer Email": "a@b.com"},
	}

	v, expr, ok := e.FirstOf([]string{"customerEmail", `originalData."Customer Email"`}, doc)
	require.True(t, ok)
	assert.Equal(t, "a@b.com", v)
	assert.Equal(t, `originalData."Customer Email"`, expr)

	_, _, ok = e.FirstOf([]string{"missing", "alsoMissing"}, doc)
	assert.False(t, ok)
}

func TestIsEmpty(t *testing.T) {
	assert.True(t, IsEmpty(nil))
	assert.True(t, IsEmpty(" "))
	assert.True(t, IsEmpty([]any{}))
	assert.True(t, IsEmpty(map[string]any{}))
	assert.False(t, IsEmpty(0.0))
	assert.False(t, IsEmpty("x"))
}
