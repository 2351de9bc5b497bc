package common

import (
	"errors"
	"fmt"
	"net/http"
	"strings"

	"github.com/go-playground/validator"
	"github.com/labstack/echo/v4"
)

// EchoValidator plugs go-playground/validator into echo's Validate call.
type EchoValidator struct {
	validate *validator.Validate
}

func NewEchoValidator() *EchoValidator {
	return &EchoValidator{validate: validator.New()}
}

func (v *EchoValidator) Validate(i interface{}) error {
	err := v.validate.Struct(i)
	if err == nil {
		return nil
	}

	var fieldErrs validator.ValidationErrors
	if errors.As(err, &fieldErrs) {
		failed := make([]string, 0, len(fieldErrs))
		for _, fe := range fieldErrs {
			failed = append(failed, fmt.Sprintf("%s (%s)", fe.Field(), fe.Tag()))
		}
		return echo.NewHTTPError(http.StatusBadRequest,
			"received invalid request body: "+strings.Join(failed, ", ")).SetInternal(err)
	}
	return echo.NewHTTPError(http.StatusBadRequest, fmt.Sprintf("received invalid request body: %v", err)).SetInternal(err)
}

// ErrorResponse is the JSON error body returned by every API route.
type ErrorResponse struct {
	Error   string `json:"error"`
	Details string `json:"details,omitempty"`
}
