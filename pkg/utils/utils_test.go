package utils

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/Gobusters/ectoerror/httperror"
	"github.com/labstack/echo/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type declineBody struct {
	PaymentID string `json:"paymentId" validate:"required"`
	Reason    string `json:"reason" validate:"required,oneof=no_match other"`
}

func bind(t *testing.T, body string) (declineBody, error) {
	t.Helper()
	e := echo.New()
	req := httptest.NewRequest(http.MethodPost, "/", strings.NewReader(body))
	req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
	return BindRequest[declineBody](e.NewContext(req, httptest.NewRecorder()))
}

func TestBindRequest(t *testing.T) {
	t.Run("binds a valid body", func(t *testing.T) {
		v, err := bind(t, `{"paymentId":"pay_1","reason":"no_match"}`)
		require.NoError(t, err)
		assert.Equal(t, "pay_1", v.PaymentID)
	})

	t.Run("rejects failed validation with 400", func(t *testing.T) {
		_, err := bind(t, `{"paymentId":"pay_1","reason":"bored"}`)
		require.Error(t, err)
		assert.True(t, httperror.IsHTTPError(err))
		assert.Equal(t, http.StatusBadRequest, httperror.GetStatusCode(err))
	})

	t.Run("rejects malformed json with 400", func(t *testing.T) {
		_, err := bind(t, `{"paymentId":`)
		require.Error(t, err)
		assert.Equal(t, http.StatusBadRequest, httperror.GetStatusCode(err))
	})
}

func TestValidationErrorToString(t *testing.T) {
	_, err := Validate(declineBody{})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "field 'PaymentID' failed rule 'required'")
	assert.Contains(t, err.Error(), "field 'Reason' failed rule 'required'")
}
