package requestconfig

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/hilthontt/dynboard/api-sdk/internal"
	"github.com/hilthontt/dynboard/api-sdk/internal/apierror"
)

// This interface is primarily used to describe an [*http.Client], but also
// supports custom HTTP implementations.
type HTTPDoer interface {
	Do(req *http.Request) (*http.Response, error)
}

// RequestConfig represents all the state related to one request.
//
// Editing the variables inside RequestConfig directly is unstable api. Prefer
// composing the RequestOption instead if possible.
type RequestConfig struct {
	RequestTimeout time.Duration
	Context        context.Context
	Request        *http.Request
	BaseURL        *url.URL
	// DefaultBaseURL will be used if BaseURL is not explicitly overridden using
	// WithBaseURL.
	DefaultBaseURL *url.URL
	CustomHTTPDoer HTTPDoer
	HTTPClient     *http.Client
	Middlewares    []middleware
	BearerToken    string
	ExtraHeaders   map[string]string
	// If ResponseBodyInto is not nil, then we will attempt to deserialize into
	// ResponseBodyInto. If Destination is a *[]byte, then it will return the body as
	// is.
	ResponseBodyInto any
	// ResponseInto copies the *http.Response of the corresponding request into the
	// given address
	ResponseInto **http.Response
	Body         io.Reader
}

// middleware is exactly the same type as the Middleware type found in the [option] package,
// but it is redeclared here for circular dependency issues.
type middleware = func(*http.Request, middlewareNext) (*http.Response, error)

// middlewareNext is exactly the same type as the MiddlewareNext type found in the [option] package,
// but it is redeclared here for circular dependency issues.
type middlewareNext = func(*http.Request) (*http.Response, error)

type RequestOption interface {
	Apply(*RequestConfig) error
}

type RequestOptionFunc func(*RequestConfig) error

func (s RequestOptionFunc) Apply(r *RequestConfig) error {
	return s(r)
}

func getDefaultHeaders() map[string]string {
	return map[string]string{
		"User-Agent": fmt.Sprintf("Dynboard/Client %s", internal.PackageVersion),
		"Accept":     "application/json",
	}
}

// NewRequestConfig applies the options onto a fresh config and prepares the
// request body. The path may already carry a query string.
func NewRequestConfig(ctx context.Context, method, path string, params any, dst any, opts ...RequestOption) (*RequestConfig, error) {
	cfg := RequestConfig{
		Context:          ctx,
		HTTPClient:       http.DefaultClient,
		ResponseBodyInto: dst,
		ExtraHeaders:     map[string]string{},
	}

	for _, opt := range opts {
		if err := opt.Apply(&cfg); err != nil {
			return nil, err
		}
	}

	if params != nil {
		switch body := params.(type) {
		case io.Reader:
			cfg.Body = body
		case []byte:
			cfg.Body = bytes.NewReader(body)
		default:
			b, err := json.Marshal(params)
			if err != nil {
				return nil, fmt.Errorf("marshal request body: %w", err)
			}
			cfg.Body = bytes.NewReader(b)
		}
	}

	base := cfg.BaseURL
	if base == nil {
		base = cfg.DefaultBaseURL
	}
	if base == nil {
		return nil, fmt.Errorf("no base url configured: use option.WithBaseURL")
	}

	u, err := base.Parse(strings.TrimPrefix(path, "/"))
	if err != nil {
		return nil, fmt.Errorf("parse request path %q: %w", path, err)
	}

	req, err := http.NewRequestWithContext(ctx, method, u.String(), cfg.Body)
	if err != nil {
		return nil, err
	}

	for k, v := range getDefaultHeaders() {
		req.Header.Set(k, v)
	}
	if cfg.Body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if cfg.BearerToken != "" {
		req.Header.Set("Authorization", "Bearer "+cfg.BearerToken)
		req.Header.Set("apikey", cfg.BearerToken)
	}
	for k, v := range cfg.ExtraHeaders {
		req.Header.Set(k, v)
	}

	cfg.Request = req
	return &cfg, nil
}

// Execute performs the request, surfaces non-2xx responses as *apierror.Error
// and decodes the body into ResponseBodyInto. There is no automatic retry:
// submission retries are the caller's concern.
func (cfg *RequestConfig) Execute() error {
	ctx := cfg.Request.Context()
	if cfg.RequestTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, cfg.RequestTimeout)
		defer cancel()
	}
	req := cfg.Request.WithContext(ctx)

	var doer HTTPDoer = cfg.HTTPClient
	if cfg.CustomHTTPDoer != nil {
		doer = cfg.CustomHTTPDoer
	}

	handler := doer.Do
	for i := len(cfg.Middlewares) - 1; i >= 0; i-- {
		mw := cfg.Middlewares[i]
		next := handler
		handler = func(r *http.Request) (*http.Response, error) {
			return mw(r, next)
		}
	}

	resp, err := handler(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if cfg.ResponseInto != nil {
		*cfg.ResponseInto = resp
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("read response body: %w", err)
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return apierror.FromResponse(cfg.Request, resp, body)
	}

	switch dst := cfg.ResponseBodyInto.(type) {
	case nil:
		return nil
	case *[]byte:
		*dst = body
		return nil
	default:
		if len(body) == 0 {
			return nil
		}
		if err := json.Unmarshal(body, dst); err != nil {
			return fmt.Errorf("decode response body: %w", err)
		}
		return nil
	}
}

func ExecuteNewRequest(ctx context.Context, method, path string, params, res any, opts ...RequestOption) error {
	cfg, err := NewRequestConfig(ctx, method, path, params, res, opts...)
	if err != nil {
		return err
	}
	return cfg.Execute()
}
