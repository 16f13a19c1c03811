package option

import (
	"fmt"
	"net/http"
	"net/url"
	"time"

	"github.com/hilthontt/dynboard/api-sdk/internal/requestconfig"
)

// RequestOption is an option for the requests made by the dynsec client.
type RequestOption = requestconfig.RequestOption

// RequestOptionFunc adapts a function to a RequestOption.
type RequestOptionFunc = requestconfig.RequestOptionFunc

// Middleware wraps the outgoing request. Middlewares run in registration
// order, outermost first.
type Middleware = func(*http.Request, MiddlewareNext) (*http.Response, error)

// MiddlewareNext invokes the rest of the middleware chain.
type MiddlewareNext = func(*http.Request) (*http.Response, error)

// WithBaseURL sets the base URL of the control API.
func WithBaseURL(base string) RequestOption {
	u, err := url.Parse(base)
	return RequestOptionFunc(func(r *requestconfig.RequestConfig) error {
		if err != nil {
			return fmt.Errorf("requestoption: WithBaseURL failed to parse url %q: %w", base, err)
		}
		if u.Path != "" && u.Path[len(u.Path)-1] != '/' {
			u.Path += "/"
		}
		r.BaseURL = u
		return nil
	})
}

// WithDefaultBaseURL sets a base URL that is only used when WithBaseURL was
// not provided.
func WithDefaultBaseURL(base string) RequestOption {
	u, err := url.Parse(base)
	return RequestOptionFunc(func(r *requestconfig.RequestConfig) error {
		if err != nil {
			return fmt.Errorf("requestoption: WithDefaultBaseURL failed to parse url %q: %w", base, err)
		}
		if u.Path != "" && u.Path[len(u.Path)-1] != '/' {
			u.Path += "/"
		}
		r.DefaultBaseURL = u
		return nil
	})
}

// WithBearerToken authenticates requests against the control API. The token
// is sent both as a bearer Authorization header and as the PostgREST apikey
// header.
func WithBearerToken(token string) RequestOption {
	return RequestOptionFunc(func(r *requestconfig.RequestConfig) error {
		r.BearerToken = token
		return nil
	})
}

// WithHTTPClient overrides the http client used for requests.
func WithHTTPClient(client *http.Client) RequestOption {
	return RequestOptionFunc(func(r *requestconfig.RequestConfig) error {
		if client == nil {
			return fmt.Errorf("requestoption: custom http client cannot be nil")
		}
		r.HTTPClient = client
		return nil
	})
}

// WithHTTPDoer overrides the underlying transport with any implementation of
// Do, e.g. an instrumented round tripper.
func WithHTTPDoer(doer requestconfig.HTTPDoer) RequestOption {
	return RequestOptionFunc(func(r *requestconfig.RequestConfig) error {
		r.CustomHTTPDoer = doer
		return nil
	})
}

// WithRequestTimeout bounds each individual HTTP request.
func WithRequestTimeout(d time.Duration) RequestOption {
	return RequestOptionFunc(func(r *requestconfig.RequestConfig) error {
		r.RequestTimeout = d
		return nil
	})
}

// WithHeader sets an extra header on every request.
func WithHeader(key, value string) RequestOption {
	return RequestOptionFunc(func(r *requestconfig.RequestConfig) error {
		if r.ExtraHeaders == nil {
			r.ExtraHeaders = map[string]string{}
		}
		r.ExtraHeaders[key] = value
		return nil
	})
}

// WithMiddleware appends a middleware to the request chain.
func WithMiddleware(middlewares ...Middleware) RequestOption {
	return RequestOptionFunc(func(r *requestconfig.RequestConfig) error {
		r.Middlewares = append(r.Middlewares, middlewares...)
		return nil
	})
}
