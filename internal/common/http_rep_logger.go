package common

import (
	"bytes"
	"io"
	"net/http"
	"net/http/httputil"

	"caretransport/dispatch/internal/logging"
)

// LogHTTPRequest dumps an outgoing request at debug level with the
// Authorization header masked. The body is restored for the caller.
func LogHTTPRequest(req *http.Request) {
	var bodyCopy []byte
	if req.Body != nil {
		bodyCopy, _ = io.ReadAll(req.Body)
		req.Body = io.NopCloser(bytes.NewReader(bodyCopy))
	}

	auth := req.Header.Get("Authorization")
	if auth != "" {
		req.Header.Set("Authorization", "[redacted]")
	}
	dump, err := httputil.DumpRequestOut(req, true)
	if auth != "" {
		req.Header.Set("Authorization", auth)
	}

	if err != nil {
		logging.Debug("Failed to dump HTTP request", "url", req.URL.String(), "error", err.Error())
	} else {
		logging.Debug("Outgoing HTTP request", "method", req.Method, "url", req.URL.String(), "dump", string(dump))
	}

	if bodyCopy != nil {
		req.Body = io.NopCloser(bytes.NewReader(bodyCopy))
	}
}
