package service

import (
	"errors"
	"fmt"

	"github.com/google/uuid"

	"github.com/noah-isme/sma-lifecycle-api/internal/models"
	appErrors "github.com/noah-isme/sma-lifecycle-api/pkg/errors"
)

func asAppError(err error) *appErrors.Error {
	var appErr *appErrors.Error
	if errors.As(err, &appErr) {
		return appErr
	}
	return nil
}

// normalizeID rejects ids that cannot name a row so that malformed input is
// reported as NOT_FOUND instead of reaching the store.
func normalizeID(t models.RecordType, id string) (string, error) {
	parsed, err := uuid.Parse(id)
	if err != nil {
		return "", appErrors.Clone(appErrors.ErrNotFound, fmt.Sprintf("%s not found", t))
	}
	return parsed.String(), nil
}

func validationError(err error, message string) error {
	return appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, message)
}

func stringPtr(v string) *string {
	if v == "" {
		return nil
	}
	return &v
}

func deref(v *string) string {
	if v == nil {
		return ""
	}
	return *v
}
