package dto

import (
	"errors"
	"fmt"
	"net/http"
)

// ErrNotFound is returned for records that do not exist or belong to another user
var ErrNotFound = errors.New("resource not found")

// AdmissionDeniedError is the structured denial returned instead of an answer
type AdmissionDeniedError struct {
	Allowed           bool   `json:"allowed"`
	Reason            string `json:"reason"`
	RetryAfterSeconds *int   `json:"retry_after_seconds,omitempty"`
	Tier              string `json:"tier,omitempty"`
	UpgradeHint       string `json:"upgrade_hint,omitempty"`
}

func (e *AdmissionDeniedError) Error() string {
	if e.RetryAfterSeconds != nil {
		return fmt.Sprintf("question denied: %s (retry after %ds)", e.Reason, *e.RetryAfterSeconds)
	}
	return "question denied: " + e.Reason
}

func (e *AdmissionDeniedError) HTTPStatus() int {
	switch e.Reason {
	case "rate_limited":
		return http.StatusTooManyRequests
	case "feature_not_in_tier":
		return http.StatusForbidden
	}
	return http.StatusBadRequest
}
