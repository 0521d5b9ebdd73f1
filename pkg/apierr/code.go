package apierr

// Code is a machine-readable error code returned in API responses.
type Code string

// Common errors.
const (
	CodeInvalidRequestBody Code = "INVALID_REQUEST_BODY"
	CodeInternalError      Code = "INTERNAL_ERROR"
	CodeNotImplemented     Code = "NOT_IMPLEMENTED"
)

// Webhook errors.
const (
	CodeUnsupportedPlatform Code = "UNSUPPORTED_PLATFORM"
	CodeMissingEventType    Code = "MISSING_EVENT_TYPE"
	CodeInvalidSignature    Code = "INVALID_SIGNATURE"
	CodeMissingSignature    Code = "MISSING_SIGNATURE"
	CodePayloadTooLarge     Code = "PAYLOAD_TOO_LARGE"
	CodeEnqueueFailed       Code = "ENQUEUE_FAILED"
)

// Review errors.
const (
	CodePullRequestNotFound Code = "PULL_REQUEST_NOT_FOUND"
	CodeInvalidPullRequest  Code = "INVALID_PULL_REQUEST"
	CodeDeliveryListFailed  Code = "DELIVERY_LIST_FAILED"
)

// Health errors.
const (
	CodeDatabaseNotReady Code = "DATABASE_NOT_READY"
	CodeQueueNotReady    Code = "QUEUE_NOT_READY"
)
