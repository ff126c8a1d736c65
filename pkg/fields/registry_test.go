package fields

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Ramsey-B/clover/pkg/canonical"
)

func TestDefaultRegistry(t *testing.T) {
	registry := DefaultRegistry()

	t.Run("weights sum to 101", func(t *testing.T) {
		assert.Equal(t, 101, registry.TotalWeight())
	})

	t.Run("definitions keep declaration order", func(t *testing.T) {
		var names []string
		for _, d := range registry.Definitions() {
			names = append(names, d.Name)
		}
		assert.Equal(t, []string{
			FieldPaymentID, FieldRegistrationID, FieldTotalAmount, FieldProcessingFees,
			FieldEmail, FieldName, FieldTimestamp,
		}, names)
	})

	t.Run("recall fields", func(t *testing.T) {
		var names []string
		for _, d := range registry.RecallDefinitions() {
			names = append(names, d.Name)
		}
		assert.Equal(t, []string{FieldPaymentID, FieldRegistrationID, FieldEmail}, names)
	})
}

func TestNewRegistry(t *testing.T) {
	valid := Definition{Name: "paymentId", Weight: 1, PaymentPaths: []string{"a"}, RegistrationPaths: []string{"b"}}

	t.Run("rejects duplicates", func(t *testing.T) {
		_, err := NewRegistry(valid, valid)
		assert.Error(t, err)
	})

	t.Run("rejects non-positive weight", func(t *testing.T) {
		d := valid
		d.Weight = 0
		_, err := NewRegistry(d)
		assert.Error(t, err)
	})

	t.Run("rejects invalid paths", func(t *testing.T) {
		d := valid
		d.PaymentPaths = []string{"originalData.[unclosed"}
		_, err := NewRegistry(d)
		assert.Error(t, err)
	})

	t.Run("rejects empty registry", func(t *testing.T) {
		_, err := NewRegistry()
		assert.Error(t, err)
	})
}

func TestDefinition_Extract(t *testing.T) {
	adapter := canonical.NewAdapter()
	registry := DefaultRegistry()

	payment, err := adapter.AdaptPayment("pay_1", map[string]any{
		"paymentId":     "pi_1",
		"amount":        100.0,
		"createdAt":     "2024-05-01T10:00:00Z",
		"customerEmail": "   ",
		"originalData": map[string]any{
			"Customer Email": "jane@example.com",
			"metadata":       map[string]any{"registrationId": "reg_1"},
		},
	})
	require.NoError(t, err)

	registration, err := adapter.AdaptRegistration("reg_1", map[string]any{
		"createdAt":    "2024-05-01T10:05:00Z",
		"contactEmail": "  ",
		"registrationData": map[string]any{
			"bookingContact": map[string]any{"firstName": "Jane", "lastName": "Doe"},
		},
	})
	require.NoError(t, err)

	t.Run("canonical value comes before raw fallbacks", func(t *testing.T) {
		email, _ := registry.Get(FieldEmail)
		values := email.ExtractPayment(payment)
		require.Len(t, values, 2)
		assert.Equal(t, "customerEmail", values[0].Path)
		assert.Equal(t, "jane@example.com", values[0].Value)
		assert.Equal(t, `originalData."Customer Email"`, values[1].Path)
	})

	t.Run("blank values are skipped", func(t *testing.T) {
		email, _ := registry.Get(FieldEmail)
		assert.Empty(t, email.ExtractRegistration(registration))
	})

	t.Run("absent field yields nothing", func(t *testing.T) {
		fees, _ := registry.Get(FieldProcessingFees)
		assert.Empty(t, fees.ExtractPayment(payment))
		assert.Empty(t, fees.ExtractRegistration(registration))
	})

	t.Run("booking contact name is composed", func(t *testing.T) {
		name, _ := registry.Get(FieldName)
		values := name.ExtractRegistration(registration)
		require.NotEmpty(t, values)
		assert.Equal(t, "Jane Doe", canonical.FullName(values[len(values)-1].Value))
	})

	t.Run("registration id falls back to the document id", func(t *testing.T) {
		regID, _ := registry.Get(FieldRegistrationID)
		values := regID.ExtractRegistration(registration)
		require.NotEmpty(t, values)
		assert.Equal(t, "reg_1", values[0].Value)

		matched, err := regID.Matches(regID.ExtractPayment(payment)[0].Value, values[0].Value)
		require.NoError(t, err)
		assert.True(t, matched)
	})
}
