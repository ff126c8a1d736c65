package canonical

import (
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAdapter_AdaptPayment(t *testing.T) {
	adapter := NewAdapter()

	t.Run("reads canonical fields", func(t *testing.T) {
		p, err := adapter.AdaptPayment("pay-1", map[string]any{
			"paymentId":     "pi_123",
			"amount":        100.0,
			"feeAmount":     "2.95",
			"currency":      "aud",
			"customerEmail": " A@B.com ",
			"customerName":  "John Smith",
			"createdAt":     "2024-06-01T10:00:00Z",
		})
		require.NoError(t, err)
		assert.Equal(t, "pi_123", p.PaymentID)
		assert.Equal(t, 100.0, p.Amount)
		require.NotNil(t, p.FeeAmount)
		assert.Equal(t, 2.95, *p.FeeAmount)
		assert.Equal(t, "AUD", p.Currency)
		assert.Equal(t, "A@B.com", p.CustomerEmail)
		assert.Equal(t, time.Date(2024, 6, 1, 10, 0, 0, 0, time.UTC), p.CreatedAt)
		assert.Equal(t, GatewayStripe, p.GatewaySource)
	})

	t.Run("falls back to legacy paths in declared order", func(t *testing.T) {
		p, err := adapter.AdaptPayment("pay-2", map[string]any{
			"grossAmount": "$1,250.50",
			"originalData": map[string]any{
				"PaymentIntent ID":   "pi_legacy",
				"Customer Email":     "legacy@example.com",
				"Card Name":          "JANE DOE",
				"Created date (UTC)": "2024-05-30 08:15:00",
				"Fee":                18.4,
			},
		})
		require.NoError(t, err)
		assert.Equal(t, "pi_legacy", p.PaymentID)
		assert.Equal(t, 1250.50, p.Amount)
		assert.Equal(t, "legacy@example.com", p.CustomerEmail)
		assert.Equal(t, "JANE DOE", p.CustomerName)
		assert.Equal(t, time.Date(2024, 5, 30, 8, 15, 0, 0, time.UTC), p.CreatedAt)
		require.NotNil(t, p.FeeAmount)
		assert.Equal(t, 18.4, *p.FeeAmount)
	})

	t.Run("missing amount is an adapter error", func(t *testing.T) {
		_, err := adapter.AdaptPayment("pay-3", map[string]any{"createdAt": "2024-06-01T10:00:00Z"})
		var adapterErr *AdapterError
		require.True(t, errors.As(err, &adapterErr))
		assert.Equal(t, "amount", adapterErr.Field)
		assert.Equal(t, "pay-3", adapterErr.RecordID)
	})

	t.Run("unparseable amount is an adapter error", func(t *testing.T) {
		_, err := adapter.AdaptPayment("pay-4", map[string]any{"amount": "abc", "createdAt": "2024-06-01"})
		var adapterErr *AdapterError
		require.True(t, errors.As(err, &adapterErr))
		assert.Equal(t, "amount", adapterErr.Field)
	})

	t.Run("missing createdAt is an adapter error", func(t *testing.T) {
		_, err := adapter.AdaptPayment("pay-5", map[string]any{"amount": 10.0})
		var adapterErr *AdapterError
		require.True(t, errors.As(err, &adapterErr))
		assert.Equal(t, "createdAt", adapterErr.Field)
	})

	t.Run("missing optional fields do not fail", func(t *testing.T) {
		p, err := adapter.AdaptPayment("pay-6", map[string]any{"amount": 10.0, "timestamp": 1717236000.0})
		require.NoError(t, err)
		assert.Empty(t, p.PaymentID)
		assert.Nil(t, p.FeeAmount)
		assert.Empty(t, p.CustomerEmail)
		assert.Equal(t, GatewayUnknown, p.GatewaySource)
	})

	t.Run("square source is detected", func(t *testing.T) {
		p, err := adapter.AdaptPayment("pay-7", map[string]any{"amount": 10.0, "createdAt": "2024-06-01", "squarePaymentId": "sq_1"})
		require.NoError(t, err)
		assert.Equal(t, GatewaySquare, p.GatewaySource)
		assert.Equal(t, "sq_1", p.PaymentID)
	})
}

func TestAdapter_AdaptRegistration(t *testing.T) {
	adapter := NewAdapter()

	t.Run("reads nested registration data", func(t *testing.T) {
		r, err := adapter.AdaptRegistration("reg-doc-1", map[string]any{
			"registrationId":   "reg_1",
			"registrationType": "Lodges",
			"totalAmountPaid":  map[string]any{"$numberDecimal": "230.50"},
			"stripeFee":        "4.12",
			"createdAt":        "2024-06-01T09:55:00Z",
			"registrationData": map[string]any{
				"bookingContact": map[string]any{
					"emailAddress": "contact@lodge.org",
					"firstName":    "John",
					"lastName":     "Smith",
				},
			},
		})
		require.NoError(t, err)
		assert.Equal(t, "reg_1", r.RegistrationID)
		assert.Equal(t, RegistrationLodge, r.RegistrationType)
		require.NotNil(t, r.TotalAmountPaid)
		assert.Equal(t, 230.50, *r.TotalAmountPaid)
		require.NotNil(t, r.Fees)
		assert.Equal(t, 4.12, *r.Fees)
		assert.Equal(t, "contact@lodge.org", r.ContactEmail)
		assert.Equal(t, "John Smith", r.ContactName)
		assert.Equal(t, "John Smith", r.Lookup()[BookingContactNameKey])
	})

	t.Run("primary attendee object becomes the contact name", func(t *testing.T) {
		r, err := adapter.AdaptRegistration("reg-doc-2", map[string]any{
			"created_at":      "2024-06-01",
			"primaryAttendee": map[string]any{"firstName": "Mary", "lastName": "Jones"},
		})
		require.NoError(t, err)
		assert.Equal(t, "Mary Jones", r.ContactName)
		assert.Equal(t, "reg-doc-2", r.RegistrationID)
		assert.Equal(t, RegistrationUnknown, r.RegistrationType)
	})

	t.Run("missing createdAt is an adapter error", func(t *testing.T) {
		_, err := adapter.AdaptRegistration("reg-doc-3", map[string]any{"registrationId": "reg_3"})
		var adapterErr *AdapterError
		require.True(t, errors.As(err, &adapterErr))
		assert.Equal(t, "createdAt", adapterErr.Field)
		assert.Contains(t, adapterErr.Error(), "registration reg-doc-3")
	})
}

func TestPayment_Lookup(t *testing.T) {
	fee := 1.5
	p := &Payment{
		ID:        "pay-1",
		PaymentID: "pi_1",
		Amount:    12,
		FeeAmount: &fee,
		CreatedAt: time.Date(2024, 1, 2, 3, 4, 5, 0, time.UTC),
		RawFields: map[string]any{"paymentId": "stale", "other": "kept"},
	}

	doc := p.Lookup()
	assert.Equal(t, "pi_1", doc["paymentId"])
	assert.Equal(t, "kept", doc["other"])
	assert.Equal(t, 1.5, doc["feeAmount"])
	assert.Equal(t, "2024-01-02T03:04:05Z", doc["createdAt"])
	assert.Equal(t, "stale", p.RawFields["paymentId"], "raw fields are not mutated")
}

func TestParseRegistrationType(t *testing.T) {
	assert.Equal(t, RegistrationIndividuals, ParseRegistrationType("individual"))
	assert.Equal(t, RegistrationIndividuals, ParseRegistrationType("Individuals"))
	assert.Equal(t, RegistrationLodge, ParseRegistrationType("lodge"))
	assert.Equal(t, RegistrationDelegation, ParseRegistrationType("delegation"))
	assert.Equal(t, RegistrationUnknown, ParseRegistrationType(""))
}
