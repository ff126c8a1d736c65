package fields

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAmountWithin(t *testing.T) {
	tests := []struct {
		name string
		a, b any
		want bool
	}{
		{name: "equal", a: 100.0, b: 100.0, want: true},
		{name: "0.09 apart", a: 100.00, b: 100.09, want: true},
		{name: "0.10 apart", a: 100.00, b: 100.10, want: false},
		{name: "0.10 apart reversed", a: 100.10, b: 100.00, want: false},
		{name: "string and number", a: "$1,234.50", b: 1234.5, want: true},
		{name: "decimal object", a: map[string]any{"$numberDecimal": "55.55"}, b: 55.5, want: true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := AmountWithin(tt.a, tt.b)
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}

	t.Run("malformed amount is an error", func(t *testing.T) {
		_, err := AmountWithin("twelve", 12.0)
		assert.Error(t, err)
	})
}

func TestEmailEqual(t *testing.T) {
	got, _ := EmailEqual(" Jane@Example.COM ", "jane@example.com")
	assert.True(t, got)

	got, _ = EmailEqual("jane@example.com", "john@example.com")
	assert.False(t, got)

	got, _ = EmailEqual("", "")
	assert.False(t, got)
}

func TestNameContains(t *testing.T) {
	tests := []struct {
		name string
		a, b any
		want bool
	}{
		{name: "equal ignoring case", a: "JOHN SMITH", b: "john smith", want: true},
		{name: "payment contains registration", a: "John A Smith", b: "a smith", want: true},
		{name: "registration contains payment", a: "smith", b: "John Smith", want: true},
		{name: "collapses whitespace", a: "John   Smith", b: "john smith", want: true},
		{name: "name object", a: "jane doe", b: map[string]any{"firstName": "Jane", "lastName": "Doe"}, want: true},
		{name: "different", a: "Jane Doe", b: "John Smith", want: false},
		{name: "empty never matches", a: "", b: "John Smith", want: false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := NameContains(tt.a, tt.b)
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)

			reversed, err := NameContains(tt.b, tt.a)
			require.NoError(t, err)
			assert.Equal(t, got, reversed)
		})
	}
}

func TestTimestampWithin(t *testing.T) {
	tests := []struct {
		name string
		a, b any
		want bool
	}{
		{name: "same instant", a: "2024-05-01T10:00:00Z", b: "2024-05-01T10:00:00Z", want: true},
		{name: "exactly 30 minutes", a: "2024-05-01T10:00:00Z", b: "2024-05-01T10:30:00Z", want: true},
		{name: "31 minutes", a: "2024-05-01T10:00:00Z", b: "2024-05-01T10:31:00Z", want: false},
		{name: "offsets are honoured", a: "2024-05-01T10:00:00Z", b: "2024-05-01T20:10:00+10:00", want: true},
		{name: "epoch milliseconds", a: float64(1714557600000), b: "2024-05-01T10:05:00Z", want: true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := TimestampWithin(tt.a, tt.b)
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}

	t.Run("unparseable timestamp is an error", func(t *testing.T) {
		_, err := TimestampWithin("yesterday", "2024-05-01T10:00:00Z")
		assert.Error(t, err)
	})
}

func TestExact(t *testing.T) {
	got, _ := Exact("pi_123", "pi_123")
	assert.True(t, got)

	got, _ = Exact("pi_123", "PI_123")
	assert.False(t, got)

	got, _ = Exact("", "")
	assert.False(t, got)
}
