package services

import (
	"errors"
	"fmt"
	"strings"
)

// ErrorKind classifies every failure the styling pipeline can surface. The
// presentation layer branches on the kind; the message is what the user sees.
type ErrorKind string

const (
	ErrQuotaExceeded      ErrorKind = "quota_exceeded"
	ErrServiceUnavailable ErrorKind = "service_unavailable"
	ErrContractViolation  ErrorKind = "contract_violation"
	ErrGenerationDeclined ErrorKind = "generation_declined"
	ErrNoImageReturned    ErrorKind = "no_image_returned"
	ErrMalformedDataURL   ErrorKind = "malformed_data_url"
	ErrFetchFailure       ErrorKind = "fetch_failure"
)

type StylistError struct {
	Kind    ErrorKind
	Message string
	Err     error
}

func (e *StylistError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s: %v", e.Kind, e.Message, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Kind, e.Message)
}

func (e *StylistError) Unwrap() error {
	return e.Err
}

func NewStylistError(kind ErrorKind, message string, err error) *StylistError {
	return &StylistError{Kind: kind, Message: message, Err: err}
}

// ErrorKindOf returns the classified kind, or ErrServiceUnavailable for
// anything that escaped classification.
func ErrorKindOf(err error) ErrorKind {
	var se *StylistError
	if errors.As(err, &se) {
		return se.Kind
	}
	return ErrServiceUnavailable
}

// UserMessageOf returns the human readable message of a classified error.
func UserMessageOf(err error) string {
	var se *StylistError
	if errors.As(err, &se) {
		return se.Message
	}
	return "Something went wrong, please try again later"
}

var quotaIndicators = []string{"quota", "rate limit", "resource_exhausted", "resource exhausted", "429", "too many requests"}

// ClassifyTransportError maps a raw capability/transport error onto
// QuotaExceeded or ServiceUnavailable. The quota match is case-insensitive on
// the error text since the upstream SDK reports limits as plain messages.
func ClassifyTransportError(err error) *StylistError {
	var se *StylistError
	if errors.As(err, &se) {
		return se
	}
	lowered := strings.ToLower(err.Error())
	for _, indicator := range quotaIndicators {
		if strings.Contains(lowered, indicator) {
			return NewStylistError(ErrQuotaExceeded,
				"You have exceeded your API quota. Check your key usage status and try again", err)
		}
	}
	return NewStylistError(ErrServiceUnavailable,
		"The styling service is temporarily unavailable, please try again later", err)
}
