package apierror

import (
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
)

// Error represents an error response from the control API. PostgREST reports
// errors as a JSON object with message/details/hint/code fields; all four are
// folded into a single human-readable string by Error().
type Error struct {
	Message string `json:"message"`
	Details string `json:"details"`
	Hint    string `json:"hint"`
	Code    string `json:"code"`

	StatusCode int            `json:"-"`
	Request    *http.Request  `json:"-"`
	Response   *http.Response `json:"-"`
}

func (e *Error) Error() string {
	var sb strings.Builder
	if e.Request != nil {
		fmt.Fprintf(&sb, "%s %q: ", e.Request.Method, e.Request.URL.Path)
	}
	fmt.Fprintf(&sb, "%d", e.StatusCode)
	if e.Message != "" {
		fmt.Fprintf(&sb, " %s", e.Message)
	}
	if e.Details != "" {
		fmt.Fprintf(&sb, " (%s)", e.Details)
	}
	if e.Hint != "" {
		fmt.Fprintf(&sb, " hint: %s", e.Hint)
	}
	return sb.String()
}

// FromResponse builds an Error from a non-2xx response body. Bodies that are
// not the PostgREST error shape are kept verbatim as the message.
func FromResponse(req *http.Request, resp *http.Response, body []byte) *Error {
	apierr := &Error{
		StatusCode: resp.StatusCode,
		Request:    req,
		Response:   resp,
	}
	if err := json.Unmarshal(body, apierr); err != nil || apierr.Message == "" {
		msg := strings.TrimSpace(string(body))
		if msg == "" {
			msg = http.StatusText(resp.StatusCode)
		}
		apierr.Message = msg
	}
	return apierr
}
