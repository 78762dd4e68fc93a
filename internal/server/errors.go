package server

import (
	"errors"
	"net/http"
	"storefront-checkout/internal/apperror"

	"github.com/go-playground/validator/v10"
	"github.com/labstack/echo/v4"
	log "github.com/sirupsen/logrus"
)

type errorResponse struct {
	Error string `json:"error"`
	Field string `json:"field,omitempty"`
}

func errorHandler(err error, c echo.Context) {
	if c.Response().Committed {
		return
	}

	status := apperror.HTTPStatus(err)
	resp := errorResponse{Error: err.Error()}

	var (
		httpErr  *echo.HTTPError
		fieldErr *apperror.FieldError
	)
	switch {
	case errors.As(err, &httpErr):
		status = httpErr.Code
		if msg, ok := httpErr.Message.(string); ok {
			resp.Error = msg
		} else {
			resp.Error = http.StatusText(status)
		}
	case errors.As(err, &fieldErr):
		resp.Field = fieldErr.Field
		resp.Error = fieldErr.Message
	case status == http.StatusInternalServerError:
		log.WithError(err).WithField("uri", c.Request().RequestURI).Error("unhandled error")
		resp.Error = "internal server error"
	}

	if c.Request().Method == http.MethodHead {
		err = c.NoContent(status)
	} else {
		err = c.JSON(status, resp)
	}
	if err != nil {
		log.WithError(err).Error("write error response")
	}
}

type requestValidator struct {
	validate *validator.Validate
}

func newRequestValidator() *requestValidator {
	return &requestValidator{validate: validator.New(validator.WithRequiredStructEnabled())}
}

// Validate reports the first failing field as a validation error.
func (v *requestValidator) Validate(i interface{}) error {
	err := v.validate.Struct(i)
	if err == nil {
		return nil
	}

	var fieldErrs validator.ValidationErrors
	if errors.As(err, &fieldErrs) && len(fieldErrs) > 0 {
		fe := fieldErrs[0]
		return apperror.Validation(fe.Namespace(), "failed on "+fe.Tag())
	}
	return apperror.Validation("body", err.Error())
}
