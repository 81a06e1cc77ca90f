package genai

import (
	"context"
	"errors"
	"net/http"

	"google.golang.org/api/googleapi"

	"github.com/docent-ai/docent/engine/domain"
)

// classify folds an SDK error into a domain.CapabilityError so callers
// can surface a remediation hint without inspecting transport details.
func classify(capability, stage string, err error) error {
	cause := domain.CauseUnknown

	var apiErr *googleapi.Error
	switch {
	case errors.As(err, &apiErr):
		switch apiErr.Code {
		case http.StatusTooManyRequests:
			cause = domain.CauseQuota
		case http.StatusUnauthorized, http.StatusForbidden:
			cause = domain.CauseAuth
		case http.StatusBadRequest, http.StatusRequestEntityTooLarge:
			cause = domain.CauseMalformed
		}
	case errors.Is(err, context.DeadlineExceeded):
		cause = domain.CauseTimeout
	}

	return domain.NewCapabilityError(capability, stage, cause, err)
}
