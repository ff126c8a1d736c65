package utils

import (
	"errors"
	"fmt"
	"net/http"

	"github.com/Gobusters/ectoerror/httperror"
	"github.com/labstack/echo/v4"
)

// BindRequest binds the body, path and query parameters into T and checks its
// `validate` tags. Both failures are 400s; a validation failure names every
// failing field.
func BindRequest[T any](c echo.Context) (T, error) {
	var req T

	if err := c.Bind(&req); err != nil {
		var bindErr *echo.HTTPError
		if errors.As(err, &bindErr) {
			return req, httperror.NewHTTPError(http.StatusBadRequest, fmt.Sprintf("invalid request: %v", bindErr.Message))
		}
		return req, httperror.WrapError(http.StatusBadRequest, err)
	}

	if _, err := Validate(req); err != nil {
		return req, httperror.NewHTTPError(http.StatusBadRequest, err.Error())
	}

	return req, nil
}
