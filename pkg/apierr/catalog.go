package apierr

import "net/http"

// --- Common ---

func InvalidRequestBody() *Error {
	return New(CodeInvalidRequestBody, http.StatusBadRequest, "Invalid request body")
}

func InternalError(cause error) *Error {
	return Wrap(CodeInternalError, http.StatusInternalServerError, "Internal server error", cause)
}

func NotImplemented(feature string) *Error {
	return New(CodeNotImplemented, http.StatusNotImplemented, feature+" is not implemented yet")
}

// --- Webhook ---

func UnsupportedPlatform(platform string) *Error {
	return New(CodeUnsupportedPlatform, http.StatusNotFound, "Unsupported platform: "+platform)
}

func MissingEventType(header string) *Error {
	return New(CodeMissingEventType, http.StatusBadRequest, "Missing "+header+" header")
}

func MissingSignature(header string) *Error {
	return New(CodeMissingSignature, http.StatusUnauthorized, "Missing "+header+" header")
}

func InvalidSignature() *Error {
	return New(CodeInvalidSignature, http.StatusUnauthorized, "Invalid webhook signature")
}

func PayloadTooLarge() *Error {
	return New(CodePayloadTooLarge, http.StatusRequestEntityTooLarge, "Webhook payload exceeds the size limit")
}

func EnqueueFailed(cause error) *Error {
	return Wrap(CodeEnqueueFailed, http.StatusServiceUnavailable, "Failed to queue webhook delivery", cause)
}

// --- Review ---

func PullRequestNotFound() *Error {
	return New(CodePullRequestNotFound, http.StatusNotFound, "Pull request not found")
}

func InvalidPullRequest() *Error {
	return New(CodeInvalidPullRequest, http.StatusBadRequest, "Invalid pull request number")
}

func DeliveryListFailed(cause error) *Error {
	return Wrap(CodeDeliveryListFailed, http.StatusInternalServerError, "Failed to list review deliveries", cause)
}

// --- Health ---

func DatabaseNotReady() *Error {
	return New(CodeDatabaseNotReady, http.StatusServiceUnavailable, "Database not ready")
}

func QueueNotReady() *Error {
	return New(CodeQueueNotReady, http.StatusServiceUnavailable, "Queue not ready")
}
