package notion

import (
	"encoding/json"
	"fmt"
	"strings"
)

// RequestError is a non-2xx answer from the Notion API.
type RequestError struct {
	StatusCode int
	Code       string
	Message    string
	Body       string
}

type errorResponse struct {
	Object  string `json:"object"`
	Status  int    `json:"status"`
	Code    string `json:"code"`
	Message string `json:"message"`
}

func newRequestError(status int, raw []byte) *RequestError {
	var out errorResponse
	_ = json.Unmarshal(raw, &out)
	return &RequestError{
		StatusCode: status,
		Code:       strings.TrimSpace(out.Code),
		Message:    strings.TrimSpace(out.Message),
		Body:       strings.TrimSpace(string(raw)),
	}
}

func (e *RequestError) Error() string {
	if e == nil {
		return "notion request failed"
	}
	if e.Message != "" {
		if e.Code != "" {
			return fmt.Sprintf("notion http %d (%s): %s", e.StatusCode, e.Code, e.Message)
		}
		return fmt.Sprintf("notion http %d: %s", e.StatusCode, e.Message)
	}
	if e.Body != "" {
		return fmt.Sprintf("notion http %d: %s", e.StatusCode, e.Body)
	}
	return fmt.Sprintf("notion http %d", e.StatusCode)
}

// ErrorKind reports Notion's error code, falling back to an http status class.
func (e *RequestError) ErrorKind() string {
	if e == nil {
		return ""
	}
	if e.Code != "" {
		return e.Code
	}
	switch {
	case e.StatusCode == 401 || e.StatusCode == 403:
		return "unauthorized"
	case e.StatusCode == 429:
		return "rate_limited"
	case e.StatusCode >= 500:
		return "server_error"
	default:
		return fmt.Sprintf("http_%d", e.StatusCode)
	}
}
