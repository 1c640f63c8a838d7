package response

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
)

const maxErrorBody = 64 << 10

// APIError is a non-2xx answer from the backend.
type APIError struct {
	StatusCode int
	Detail     string
	Code       string
	RequestID  string
}

func (e *APIError) Error() string {
	if e.Detail == "" {
		return fmt.Sprintf("backend returned %d", e.StatusCode)
	}
	return fmt.Sprintf("backend returned %d: %s", e.StatusCode, e.Detail)
}

// IsStatus reports whether err is an *APIError with the given status.
func IsStatus(err error, status int) bool {
	var apiErr *APIError
	return errors.As(err, &apiErr) && apiErr.StatusCode == status
}

// Decode consumes and closes resp.Body. A 2xx body is decoded into out when
// out is non-nil; anything else becomes an *APIError.
func Decode(resp *http.Response, out interface{}) error {
	defer resp.Body.Close()
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return FromResponse(resp)
	}
	if out == nil {
		_, _ = io.Copy(io.Discard, resp.Body)
		return nil
	}
	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("read response body: %w", err)
	}
	if len(strings.TrimSpace(string(raw))) == 0 {
		return nil
	}
	if err := json.Unmarshal(raw, out); err != nil {
		return fmt.Errorf("decode response body: %w", err)
	}
	return nil
}

// FromResponse builds an *APIError from resp without closing the body.
func FromResponse(resp *http.Response) *APIError {
	apiErr := &APIError{StatusCode: resp.StatusCode, RequestID: resp.Header.Get("X-Request-Id")}
	raw, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))
	apiErr.Detail, apiErr.Code = parseErrorBody(raw)
	if apiErr.Detail == "" {
		apiErr.Detail = http.StatusText(resp.StatusCode)
	}
	return apiErr
}

func parseErrorBody(raw []byte) (detail, code string) {
	var body struct {
		Detail json.RawMessage `json:"detail"`
		Error  *envError       `json:"error"`
	}
	if err := json.Unmarshal(raw, &body); err != nil {
		return strings.TrimSpace(string(raw)), ""
	}
	if body.Error != nil {
		return body.Error.Message, body.Error.Code
	}
	if len(body.Detail) == 0 {
		return "", ""
	}
	var s string
	if err := json.Unmarshal(body.Detail, &s); err == nil {
		return s, ""
	}
	var issues []ValidationIssue
	if err := json.Unmarshal(body.Detail, &issues); err == nil {
		msgs := make([]string, 0, len(issues))
		for _, issue := range issues {
			msgs = append(msgs, issue.Msg)
		}
		return strings.Join(msgs, "; "), "validation_error"
	}
	return string(body.Detail), ""
}
