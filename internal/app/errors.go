package app

import (
	"fmt"
	"net/http"
)

type DomainError struct {
	Status  int
	Code    string
	Message string
	Details any
}

func (e *DomainError) Error() string {
	if e == nil {
		return ""
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

func domainError(status int, code, message string, details any) *DomainError {
	return &DomainError{
		Status:  status,
		Code:    code,
		Message: message,
		Details: details,
	}
}

func errNotAuthorized() *DomainError {
	return domainError(http.StatusForbidden, "NOT_AUTHORIZED", "Not authorized", nil)
}

func errNotFound(what string) *DomainError {
	return domainError(http.StatusNotFound, "NOT_FOUND", what+" not found", nil)
}

func errValidation(message string, details any) *DomainError {
	return domainError(http.StatusUnprocessableEntity, "VALIDATION_ERROR", message, details)
}

func errInvalidParent(message string) *DomainError {
	return domainError(http.StatusUnprocessableEntity, "INVALID_PARENT", message, nil)
}

func errCycle() *DomainError {
	return domainError(http.StatusUnprocessableEntity, "CYCLE_DETECTED", "Move would make a document its own ancestor", nil)
}

func errInvalidOperation(message string) *DomainError {
	return domainError(http.StatusUnprocessableEntity, "INVALID_OPERATION", message, nil)
}

func errNothingToPublish() *DomainError {
	return domainError(http.StatusBadRequest, "NOTHING_TO_PUBLISH", "No documents are marked for publishing", nil)
}

func errConflict(message string) *DomainError {
	return domainError(http.StatusConflict, "CONFLICT", message, nil)
}

func errPublishFailed(message string) *DomainError {
	return domainError(http.StatusInternalServerError, "PUBLISH_FAILED", message, nil)
}
