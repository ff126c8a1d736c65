package fields

import "github.com/Ramsey-B/clover/pkg/canonical"

// DefaultDefinitions are the seven payment/registration fields. Weights sum
// to 101. Within a field, paths are listed newest schema first and the first
// agreeing pair wins.
func DefaultDefinitions() []Definition {
	return []Definition{
		{
			Name:   FieldPaymentID,
			Weight: 50,
			PaymentPaths: []string{
				"paymentId",
				"transactionId",
				`originalData."PaymentIntent ID"`,
				"originalData.metadata.paymentId",
			},
			RegistrationPaths: []string{
				"stripePaymentIntentId",
				"squarePaymentId",
				"registrationData.stripePaymentIntentId",
				"registrationData.stripe_payment_intent_id",
			},
			Recall: true,
		},
		{
			Name:   FieldRegistrationID,
			Weight: 30,
			PaymentPaths: []string{
				"originalData.metadata.registrationId",
				"originalData.metadata.registration_id",
				`originalData."registrationId (metadata)"`,
			},
			RegistrationPaths: []string{
				"registrationId",
				"registrationData.registrationId",
			},
			Recall: true,
		},
		{
			Name:              FieldTotalAmount,
			Weight:            10,
			PaymentPaths:      []string{"amount", "grossAmount"},
			RegistrationPaths: []string{"totalAmountPaid", "totalAmount"},
			Compare:           AmountWithin,
		},
		{
			Name:   FieldProcessingFees,
			Weight: 5,
			PaymentPaths: []string{
				"feeAmount",
				"originalData.Fee",
				"originalData.metadata.processing_fees",
			},
			RegistrationPaths: []string{"stripeFee", "squareFee"},
			Compare:           AmountWithin,
		},
		{
			Name:         FieldEmail,
			Weight:       3,
			PaymentPaths: []string{"customerEmail", `originalData."Customer Email"`},
			RegistrationPaths: []string{
				"contactEmail",
				"customerEmail",
				"registrationData.bookingContact.email",
				"registrationData.bookingContact.emailAddress",
			},
			Compare: EmailEqual,
			Recall:  true,
		},
		{
			Name:         FieldName,
			Weight:       2,
			PaymentPaths: []string{"customerName", `originalData."Card Name"`},
			RegistrationPaths: []string{
				"contactName",
				"customerName",
				"primaryAttendee",
				canonical.BookingContactNameKey,
			},
			Compare: NameContains,
		},
		{
			Name:         FieldTimestamp,
			Weight:       1,
			PaymentPaths: []string{"createdAt", "timestamp", `originalData."Created date (UTC)"`},
			RegistrationPaths: []string{
				"createdAt",
				"created_at",
				"registrationData.metadata.created_at",
			},
			Compare: TimestampWithin,
		},
	}
}

// DefaultRegistry builds the registry from DefaultDefinitions.
func DefaultRegistry() *Registry {
	r, err := NewRegistry(DefaultDefinitions()...)
	if err != nil {
		panic(err)
	}
	return r
}
