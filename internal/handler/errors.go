package handler

import (
	"errors"
	"log/slog"

	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v3"

	"cinesphere/internal/details"
	"cinesphere/internal/repository"
	"cinesphere/internal/service"
)

// ErrorResponse is the standard error response format.
type ErrorResponse struct {
	Error string `json:"error"`
}

// StructValidator plugs go-playground/validator into fiber's binder.
type StructValidator struct {
	validate *validator.Validate
}

// NewStructValidator creates a StructValidator.
func NewStructValidator() *StructValidator {
	return &StructValidator{validate: validator.New(validator.WithRequiredStructEnabled())}
}

// Validate validates out according to its `validate` tags.
func (v *StructValidator) Validate(out any) error {
	return v.validate.Struct(out)
}

// ErrorHandler is the app-wide fiber error handler.
func ErrorHandler(c fiber.Ctx, err error) error {
	code := fiber.StatusInternalServerError
	var fe *fiber.Error
	if errors.As(err, &fe) {
		code = fe.Code
	}
	if code >= fiber.StatusInternalServerError {
		slog.Error("unhandled error", "error", err, "status", code, "path", c.Path())
	}
	return c.Status(code).JSON(ErrorResponse{Error: err.Error()})
}

// respondError maps domain errors onto HTTP responses. fallback is the message for unexpected errors.
func respondError(c fiber.Ctx, err error, fallback string) error {
	var swe *repository.StoreWriteError
	var verrs validator.ValidationErrors
	switch {
	case errors.As(err, &swe):
		return c.Status(fiber.StatusBadGateway).JSON(ErrorResponse{Error: "failed to save changes"})
	case errors.Is(err, details.ErrDetailsUnavailable):
		return c.Status(fiber.StatusBadGateway).JSON(ErrorResponse{Error: details.ErrDetailsUnavailable.Error()})
	case errors.Is(err, service.ErrInvalidStatus):
		return c.Status(fiber.StatusBadRequest).JSON(ErrorResponse{Error: err.Error()})
	case errors.As(err, &verrs):
		return c.Status(fiber.StatusBadRequest).JSON(ErrorResponse{Error: verrs.Error()})
	}
	slog.Error(fallback, "error", err, "path", c.Path())
	return c.Status(fiber.StatusInternalServerError).JSON(ErrorResponse{Error: fallback})
}

// badRequest reports a body that failed to decode or validate.
func badRequest(c fiber.Ctx, err error) error {
	var verrs validator.ValidationErrors
	if errors.As(err, &verrs) {
		return c.Status(fiber.StatusBadRequest).JSON(ErrorResponse{Error: verrs.Error()})
	}
	return c.Status(fiber.StatusBadRequest).JSON(ErrorResponse{Error: "invalid request body"})
}
