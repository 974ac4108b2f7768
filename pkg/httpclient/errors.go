package httpclient

import (
	"errors"
	"fmt"
	"strings"
)

// StatusError reports a response whose status code is outside 2xx.
type StatusError struct {
	Method     string
	URL        string
	StatusCode int
	Body       []byte
}

func (e *StatusError) Error() string {
	snippet := BodySnippet(e.Body)
	if snippet == "" {
		return fmt.Sprintf("%s %s: status %d", e.Method, e.URL, e.StatusCode)
	}
	return fmt.Sprintf("%s %s: status %d: %s", e.Method, e.URL, e.StatusCode, snippet)
}

// CheckStatus returns a *StatusError when resp is not a 2xx response.
func CheckStatus(method, url string, resp Response) error {
	if resp == nil {
		return fmt.Errorf("%s %s: empty response", method, url)
	}
	code := resp.StatusCode()
	if code >= 200 && code < 300 {
		return nil
	}
	return &StatusError{Method: method, URL: url, StatusCode: code, Body: resp.Body()}
}

// IsStatus reports whether err is a *StatusError with the given code.
func IsStatus(err error, code int) bool {
	var se *StatusError
	if !errors.As(err, &se) {
		return false
	}
	return se.StatusCode == code
}

// BodySnippet trims a response body to something safe to put in an error or log line.
func BodySnippet(body []byte) string {
	if len(body) == 0 {
		return ""
	}
	if len(body) > 512 {
		body = body[:512]
	}
	return strings.TrimSpace(string(body))
}
