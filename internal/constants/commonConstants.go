package constants

type APIStatus string

const (
	APIStatusOk    APIStatus = "ok"
	APIStatusError APIStatus = "error"
)

// Request headers carrying the tenant and the acting user
const (
	HeaderCompanyID = "X-Company-Id"
	HeaderUserID    = "X-User-Id"
	HeaderRequestID = "X-Request-ID"
)
