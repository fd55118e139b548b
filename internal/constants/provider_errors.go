package constants

// Optimization provider error codes

// Credential-related errors
const (
	ErrCodeInvalidAPIKey        = "INVALID_API_KEY"
	ErrCodeRateLimited          = "RATE_LIMITED"
	ErrCodeNetworkError         = "NETWORK_ERROR"
	ErrCodeAuthenticationFailed = "AUTHENTICATION_FAILED"
)

// Request/response errors
const (
	ErrCodeProviderTaskNotFound = "PROVIDER_TASK_NOT_FOUND"
	ErrCodeInvalidDataFormat    = "INVALID_DATA_FORMAT"
	ErrCodeProviderRejected     = "PROVIDER_REJECTED"
	ErrCodeProviderUnavailable  = "PROVIDER_UNAVAILABLE"
)

// Error Messages
// Human-readable messages corresponding to error codes

var ProviderErrorMessages = map[string]string{
	// Credentials
	ErrCodeInvalidAPIKey:        "The optimizer API key is invalid or has been revoked",
	ErrCodeRateLimited:          "Rate limit exceeded. Please try again later",
	ErrCodeNetworkError:         "Unable to reach the route optimizer",
	ErrCodeAuthenticationFailed: "Authentication with the route optimizer failed",

	// Requests
	ErrCodeProviderTaskNotFound: "The optimizer does not know this task",
	ErrCodeInvalidDataFormat:    "The data format is invalid",
	ErrCodeProviderRejected:     "The optimizer rejected the request",
	ErrCodeProviderUnavailable:  "The route optimizer is temporarily unavailable",
}

// GetErrorMessage returns the human-readable message for an error code
func GetErrorMessage(code string) string {
	if msg, exists := ProviderErrorMessages[code]; exists {
		return msg
	}
	return "An unknown error occurred"
}
