package platform

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"strings"
	"syscall"

	"github.com/maraichr/reviewgate/pkg/models"
)

// ErrorTypeLinesMismatch marks a comment rejected because its lines are not
// part of the diff.
const ErrorTypeLinesMismatch = "failed_lines_mismatch"

var (
	// ErrInvalidPayload is returned when a webhook body cannot be decoded.
	ErrInvalidPayload = errors.New("invalid webhook payload")

	// ErrInvalidSignature is returned when a webhook signature does not match.
	ErrInvalidSignature = errors.New("invalid webhook signature")

	// ErrMissingSignature is returned when a secret is configured but the
	// delivery carries no signature.
	ErrMissingSignature = errors.New("missing webhook signature")

	// ErrUnsupported is returned by primitives a platform has no API for.
	ErrUnsupported = errors.New("operation not supported by platform")
)

// Error is a failed platform API call.
type Error struct {
	Platform   models.Platform
	Op         string
	StatusCode int
	Code       string
	ErrorType  string
	Message    string
	Err        error
}

func (e *Error) Error() string {
	var b strings.Builder
	fmt.Fprintf(&b, "%s %s", e.Platform, e.Op)
	if e.StatusCode != 0 {
		fmt.Fprintf(&b, " (status %d)", e.StatusCode)
	}
	if e.ErrorType != "" {
		fmt.Fprintf(&b, " [%s]", e.ErrorType)
	}
	if e.Message != "" {
		b.WriteString(": " + e.Message)
	}
	if e.Err != nil {
		b.WriteString(": " + e.Err.Error())
	}
	return b.String()
}

func (e *Error) Unwrap() error { return e.Err }

// Class groups platform errors by how delivery should react to them.
type Class int

const (
	ClassUnknown Class = iota
	ClassLineMismatch
	ClassTransient
	ClassDefinitive
)

func (c Class) String() string {
	switch c {
	case ClassLineMismatch:
		return "line_mismatch"
	case ClassTransient:
		return "transient"
	case ClassDefinitive:
		return "definitive"
	}
	return "unknown"
}

var networkResetCodes = []string{"ECONNRESET", "ETIMEDOUT", "ECONNREFUSED", "EPIPE", "EAI_AGAIN", "ENOTFOUND"}

// Classify maps an error returned by a platform call onto a Class.
func Classify(err error) Class {
	if err == nil {
		return ClassUnknown
	}

	var pe *Error
	if errors.As(err, &pe) {
		if pe.ErrorType == ErrorTypeLinesMismatch {
			return ClassLineMismatch
		}
		switch {
		case pe.StatusCode == http.StatusUnauthorized,
			pe.StatusCode == http.StatusForbidden,
			pe.StatusCode == http.StatusNotFound:
			return ClassDefinitive
		case pe.StatusCode >= 500:
			return ClassTransient
		}
		if pe.Code != "" && isResetCode(pe.Code) {
			return ClassTransient
		}
	}

	if errors.Is(err, context.DeadlineExceeded) ||
		errors.Is(err, syscall.ECONNRESET) ||
		errors.Is(err, syscall.ECONNREFUSED) ||
		errors.Is(err, syscall.ETIMEDOUT) ||
		errors.Is(err, syscall.EPIPE) ||
		errors.Is(err, io.ErrUnexpectedEOF) {
		return ClassTransient
	}

	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return ClassTransient
	}

	if isResetCode(err.Error()) {
		return ClassTransient
	}
	return ClassUnknown
}

func isResetCode(s string) bool {
	upper := strings.ToUpper(s)
	for _, code := range networkResetCodes {
		if strings.Contains(upper, code) {
			return true
		}
	}
	return false
}

// StatusCode returns the HTTP status carried by a platform error, or 0.
func StatusCode(err error) int {
	var pe *Error
	if errors.As(err, &pe) {
		return pe.StatusCode
	}
	return 0
}
