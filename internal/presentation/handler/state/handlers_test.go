package state

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	dynsec "github.com/hilthontt/dynboard/api-sdk"
	"github.com/hilthontt/dynboard/api-sdk/option"
	"github.com/hilthontt/dynboard/internal/infrastructure/statecache"
)

type fakeFetcher struct {
	calls int
	state *dynsec.BrokerState
	err   error
}

func (f *fakeFetcher) Get(_ context.Context, broker string, _ ...option.RequestOption) (*dynsec.BrokerState, error) {
	f.calls++
	if f.err != nil {
		return nil, f.err
	}
	return f.state, nil
}

func testState() *dynsec.BrokerState {
	return &dynsec.BrokerState{
		Broker:    "alpha",
		UpdatedAt: time.Date(2026, 8, 1, 12, 0, 0, 0, time.UTC),
		Roles: []dynsec.Role{
			{
				RoleName: "sensors",
				ACLs: []dynsec.ACL{
					{ACLType: dynsec.ACLPublishClientSend, Topic: "telemetry/#", Allow: true},
				},
			},
		},
		Clients: []dynsec.ClientInfo{
			{Username: "sensor-1", Disabled: true, Roles: []dynsec.RoleRef{{RoleName: "sensors"}}},
		},
	}
}

func stateRequest(target, broker string) *http.Request {
	req := httptest.NewRequest(http.MethodGet, target, nil)
	rctx := chi.NewRouteContext()
	rctx.URLParams.Add("broker", broker)
	return req.WithContext(context.WithValue(req.Context(), chi.RouteCtxKey, rctx))
}

func TestGetState_ShapesTheBlob(t *testing.T) {
	fetcher := &fakeFetcher{state: testState()}
	h := NewHandler(fetcher, statecache.New(time.Minute), "", zap.NewNop().Sugar())

	rec := httptest.NewRecorder()
	h.GetStateHandler(rec, stateRequest("/api/brokers/alpha/state", "alpha"))

	require.Equal(t, http.StatusOK, rec.Code)

	var env struct {
		OK   bool `json:"ok"`
		Data struct {
			Broker string `json:"broker"`
			Roles  []struct {
				RoleName string `json:"rolename"`
				ACLCount int    `json:"acl_count"`
			} `json:"roles"`
			Clients []struct {
				Username string   `json:"username"`
				Enabled  bool     `json:"enabled"`
				Roles    []string `json:"roles"`
			} `json:"clients"`
		} `json:"data"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &env))
	assert.True(t, env.OK)
	assert.Equal(t, "alpha", env.Data.Broker)
	require.Len(t, env.Data.Roles, 1)
	assert.Equal(t, 1, env.Data.Roles[0].ACLCount)
	require.Len(t, env.Data.Clients, 1)
	assert.False(t, env.Data.Clients[0].Enabled, "a disabled client renders as enabled=false")
	assert.Equal(t, []string{"sensors"}, env.Data.Clients[0].Roles)
}

func TestGetState_ServedFromCacheUntilRefresh(t *testing.T) {
	fetcher := &fakeFetcher{state: testState()}
	cache := statecache.New(time.Minute)
	h := NewHandler(fetcher, cache, "", zap.NewNop().Sugar())

	h.GetStateHandler(httptest.NewRecorder(), stateRequest("/api/brokers/alpha/state", "alpha"))
	h.GetStateHandler(httptest.NewRecorder(), stateRequest("/api/brokers/alpha/state", "alpha"))
	assert.Equal(t, 1, fetcher.calls, "second read is a cache hit")

	h.GetStateHandler(httptest.NewRecorder(), stateRequest("/api/brokers/alpha/state?refresh=true", "alpha"))
	assert.Equal(t, 2, fetcher.calls, "refresh=true bypasses the cache")
}

func TestGetState_RecordsCurrentBroker(t *testing.T) {
	fetcher := &fakeFetcher{state: testState()}
	cache := statecache.New(time.Minute)
	h := NewHandler(fetcher, cache, "", zap.NewNop().Sugar())

	assert.Equal(t, "fallback", cache.CurrentBroker("fallback"))
	h.GetStateHandler(httptest.NewRecorder(), stateRequest("/api/brokers/alpha/state", "alpha"))
	assert.Equal(t, "alpha", cache.CurrentBroker("fallback"))
}

func TestGetState_BrokerlessRouteUsesDefaultBroker(t *testing.T) {
	fetcher := &fakeFetcher{state: testState()}
	cache := statecache.New(time.Minute)
	h := NewHandler(fetcher, cache, "beta", zap.NewNop().Sugar())

	rec := httptest.NewRecorder()
	h.GetStateHandler(rec, stateRequest("/api/state", ""))
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, 1, fetcher.calls)

	// once a broker was fetched it becomes the current context
	h.GetStateHandler(httptest.NewRecorder(), stateRequest("/api/brokers/alpha/state", "alpha"))
	rec = httptest.NewRecorder()
	h.GetStateHandler(rec, stateRequest("/api/state?refresh=true", ""))
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "alpha", cache.CurrentBroker("beta"))
}

func TestGetState_NoBrokerAndNoDefaultIs400(t *testing.T) {
	fetcher := &fakeFetcher{state: testState()}
	h := NewHandler(fetcher, statecache.New(time.Minute), "", zap.NewNop().Sugar())

	rec := httptest.NewRecorder()
	h.GetStateHandler(rec, stateRequest("/api/state", ""))

	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Zero(t, fetcher.calls)
}

func TestGetState_MissingBrokerRowIs404(t *testing.T) {
	fetcher := &fakeFetcher{err: fmt.Errorf("broker %q: %w", "ghost", dynsec.ErrBrokerStateNotFound)}
	h := NewHandler(fetcher, statecache.New(time.Minute), "", zap.NewNop().Sugar())

	rec := httptest.NewRecorder()
	h.GetStateHandler(rec, stateRequest("/api/brokers/ghost/state", "ghost"))

	assert.Equal(t, http.StatusNotFound, rec.Code)

	var env struct {
		OK    bool `json:"ok"`
		Error *struct {
			Message string `json:"message"`
		} `json:"error"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &env))
	assert.False(t, env.OK)
	require.NotNil(t, env.Error)
	assert.Contains(t, env.Error.Message, "ghost")
}

func TestGetState_UpstreamFailureIs502(t *testing.T) {
	fetcher := &fakeFetcher{err: fmt.Errorf("connection refused")}
	h := NewHandler(fetcher, statecache.New(time.Minute), "", zap.NewNop().Sugar())

	rec := httptest.NewRecorder()
	h.GetStateHandler(rec, stateRequest("/api/brokers/alpha/state", "alpha"))

	assert.Equal(t, http.StatusBadGateway, rec.Code)
}
