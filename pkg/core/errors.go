package core

import (
	"context"
	"errors"
	"net"

	apierrors "k8s.io/apimachinery/pkg/api/errors"
)

// ErrorCategory describes the class of a failure encountered while fetching
// snapshots or consuming the watch stream.
type ErrorCategory string

const (
	// ErrorCategoryNone indicates no error.
	ErrorCategoryNone ErrorCategory = ""
	// ErrorCategoryRBAC indicates insufficient permissions (Forbidden/Unauthorized).
	ErrorCategoryRBAC ErrorCategory = "rbac"
	// ErrorCategoryNotFound indicates the monitored object does not exist.
	ErrorCategoryNotFound ErrorCategory = "not-found"
	// ErrorCategoryTransient indicates a retryable failure such as an
	// unreachable API server or a timeout.
	ErrorCategoryTransient ErrorCategory = "transient"
	// ErrorCategoryPermanent indicates a non-retryable failure unrelated to RBAC.
	ErrorCategoryPermanent ErrorCategory = "permanent"
)

// ClassifyError inspects an error chain and returns the appropriate category.
// Detectors use the category for diagnostics only: every fetch or watch
// failure is recovered locally by the next tick or a reconnect, never
// propagated.
func ClassifyError(err error) ErrorCategory {
	if err == nil {
		return ErrorCategoryNone
	}
	for current := err; current != nil; current = errors.Unwrap(current) {
		switch {
		case apierrors.IsForbidden(current) || apierrors.IsUnauthorized(current):
			return ErrorCategoryRBAC
		case apierrors.IsNotFound(current):
			return ErrorCategoryNotFound
		case apierrors.IsTooManyRequests(current), apierrors.IsTimeout(current),
			apierrors.IsServerTimeout(current), apierrors.IsServiceUnavailable(current):
			return ErrorCategoryTransient
		}
		if errors.Is(current, context.DeadlineExceeded) || errors.Is(current, context.Canceled) {
			return ErrorCategoryTransient
		}
		if netErr, ok := current.(net.Error); ok && netErr.Timeout() {
			return ErrorCategoryTransient
		}
	}
	return ErrorCategoryPermanent
}
