// Package services holds the study group business rules between the HTTP
// handlers and the storage backends.
package services

import (
	"errors"

	"go.opentelemetry.io/otel"

	"studygroup-service/internal/apperr"
	"studygroup-service/internal/repositories"
)

var tracer = otel.Tracer("studygroup-service/services")

// translate maps storage sentinels to coded errors. Errors that already carry
// a code pass through untouched.
func translate(err error, op string) error {
	if err == nil {
		return nil
	}
	if apperr.CodeOf(err) != apperr.CodeUnknown {
		return err
	}
	switch {
	case errors.Is(err, repositories.ErrGroupNotFound):
		return apperr.NotFound("Group not found.")
	case errors.Is(err, repositories.ErrMessageNotFound):
		return apperr.NotFound("Message not found.")
	case errors.Is(err, repositories.ErrStudentNotFound):
		return apperr.NotFound("Student not found.")
	case errors.Is(err, repositories.ErrAccountNotFound):
		return apperr.NotFound("Account not found.")
	case errors.Is(err, repositories.ErrUsernameTaken):
		return apperr.AlreadyExists("Username already exists.")
	default:
		return apperr.Internal(op, err)
	}
}
