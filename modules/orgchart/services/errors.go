package services

import (
	"errors"
	"fmt"
	"net/http"

	"github.com/iota-uz/orgflow/modules/orgchart/domain/hierarchy"
)

const (
	CodeNodeNotFound   = "ORGCHART_NODE_NOT_FOUND"
	CodeInvalidQuery   = "ORGCHART_INVALID_QUERY"
	CodeSourceFailed   = "ORGCHART_SOURCE_FAILED"
	CodeBuildCanceled  = "ORGCHART_BUILD_CANCELED"
	CodeTooManyRecords = "ORGCHART_TOO_MANY_RECORDS"
	CodeBuildFailed    = "ORGCHART_BUILD_FAILED"
)

// statusClientClosed is the non-standard status used when the caller went away.
const statusClientClosed = 499

type ServiceError struct {
	Status  int
	Code    string
	Message string
	Cause   error
}

func (e *ServiceError) Error() string {
	if e.Cause == nil {
		return e.Message
	}
	return fmt.Sprintf("%s: %v", e.Message, e.Cause)
}

func (e *ServiceError) Unwrap() error { return e.Cause }

func newServiceError(status int, code, message string, cause error) *ServiceError {
	return &ServiceError{Status: status, Code: code, Message: message, Cause: cause}
}

// ErrorCode returns the service code carried by err, or "" for foreign errors.
func ErrorCode(err error) string {
	var svcErr *ServiceError
	if errors.As(err, &svcErr) {
		return svcErr.Code
	}
	return ""
}

func mapLookupError(err error, id string) error {
	if errors.Is(err, hierarchy.ErrNodeNotFound) {
		return newServiceError(http.StatusNotFound, CodeNodeNotFound, fmt.Sprintf("node %q not found", id), err)
	}
	return err
}
