package expressions

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestSplitPath(t *testing.T) {
	t.Run("splits dotted identifiers", func(t *testing.T) {
		keys, ok := SplitPath("registrationData.bookingContact.email")
		assert.True(t, ok)
		assert.Equal(t, []string{"registrationData", "bookingContact", "email"}, keys)
	})

	t.Run("unquotes quoted keys", func(t *testing.T) {
		keys, ok := SplitPath(`originalData."PaymentIntent ID"`)
		assert.True(t, ok)
		assert.Equal(t, []string{"originalData", "PaymentIntent ID"}, keys)

		keys, ok = SplitPath(`"say \"hi\""`)
		assert.True(t, ok)
		assert.Equal(t, []string{`say "hi"`}, keys)
	})

	t.Run("single key", func(t *testing.T) {
		keys, ok := SplitPath("stripe_payment_intent_id")
		assert.True(t, ok)
		assert.Equal(t, []string{"stripe_payment_intent_id"}, keys)
	})

	t.Run("rejects anything but a key chain", func(t *testing.T) {
		for _, expression := range []string{
			"",
			"a.",
			".a",
			"a..b",
			"items[0].id",
			"length(items)",
			"a | b",
			"1abc",
			`"unterminated`,
		} {
			_, ok := SplitPath(expression)
			assert.False(t, ok, expression)
		}
	})
}
