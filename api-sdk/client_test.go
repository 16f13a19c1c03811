package dynsec_test

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	dynsec "github.com/hilthontt/dynboard/api-sdk"
	"github.com/hilthontt/dynboard/api-sdk/option"
)

func TestSubmit_RequiresBrokerAndOperation(t *testing.T) {
	c := dynsec.NewClient(option.WithBaseURL("http://localhost:0"))

	_, err := c.Apply.Submit(context.Background(), dynsec.ApplyParams{Operation: dynsec.OpRefreshState})
	assert.ErrorIs(t, err, dynsec.ErrMissingBrokerParameter)

	_, err = c.Apply.Submit(context.Background(), dynsec.ApplyParams{Broker: "main"})
	assert.ErrorIs(t, err, dynsec.ErrMissingOperationParameter)
}

func TestSubmit_DecodesEnqueueAck(t *testing.T) {
	f := newFakeUpstream(t)

	resp, err := f.client().Apply.Submit(context.Background(), dynsec.ApplyParams{
		Broker:    "main",
		Operation: dynsec.OpCreateClient,
		Payload:   dynsec.CreateClientPayload{Username: "sensor-1", Password: "s3cret-pass"},
	})

	require.NoError(t, err)
	assert.True(t, resp.Queued)
	assert.Equal(t, int64(42), resp.QueueID)
}

func TestSubmit_NormalizesPostgRESTErrorBody(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusConflict, map[string]any{
			"message": "duplicate key value violates unique constraint",
			"details": "Key (broker, operation) already queued",
			"hint":    "wait for the pending operation to finish",
			"code":    "23505",
		})
	}))
	defer srv.Close()

	c := dynsec.NewClient(option.WithBaseURL(srv.URL))
	_, err := c.Apply.Submit(context.Background(), dynsec.ApplyParams{
		Broker:    "main",
		Operation: dynsec.OpRefreshState,
	})

	require.Error(t, err)
	var apierr *dynsec.APIError
	require.True(t, errors.As(err, &apierr))
	assert.Equal(t, http.StatusConflict, apierr.StatusCode)
	assert.Equal(t, "duplicate key value violates unique constraint", apierr.Message)
	assert.Contains(t, apierr.Error(), "hint: wait for the pending operation to finish")
}

func TestSubmit_NonJSONErrorBodyKeptVerbatim(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
		_, _ = w.Write([]byte("upstream connect error"))
	}))
	defer srv.Close()

	c := dynsec.NewClient(option.WithBaseURL(srv.URL))
	_, err := c.Apply.Submit(context.Background(), dynsec.ApplyParams{
		Broker:    "main",
		Operation: dynsec.OpRefreshState,
	})

	var apierr *dynsec.APIError
	require.True(t, errors.As(err, &apierr))
	assert.Equal(t, "upstream connect error", apierr.Message)
}

func TestBearerToken_SentAsAuthorizationAndAPIKey(t *testing.T) {
	var gotAuth, gotKey string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotAuth = r.Header.Get("Authorization")
		gotKey = r.Header.Get("apikey")
		writeJSON(w, http.StatusOK, []any{})
	}))
	defer srv.Close()

	c := dynsec.NewClient(option.WithBaseURL(srv.URL), option.WithBearerToken("tok-123"))
	_, _ = c.Queue.List(context.Background(), dynsec.QueueListParams{})

	assert.Equal(t, "Bearer tok-123", gotAuth)
	assert.Equal(t, "tok-123", gotKey)
}

func TestQueueGet_BuildsKeyedLookup(t *testing.T) {
	var gotQuery string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotQuery = r.URL.RawQuery
		writeJSON(w, http.StatusOK, []map[string]any{{"id": 42, "status": "pending"}})
	}))
	defer srv.Close()

	c := dynsec.NewClient(option.WithBaseURL(srv.URL))
	item, err := c.Queue.Get(context.Background(), 42)

	require.NoError(t, err)
	assert.Equal(t, "id=eq.42", gotQuery)
	assert.Equal(t, dynsec.StatusPending, item.Status)
	assert.False(t, item.Status.Terminal())
}

func TestQueueList_OrdersNewestFirst(t *testing.T) {
	var gotQuery map[string][]string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotQuery = r.URL.Query()
		writeJSON(w, http.StatusOK, []any{})
	}))
	defer srv.Close()

	c := dynsec.NewClient(option.WithBaseURL(srv.URL))
	_, err := c.Queue.List(context.Background(), dynsec.QueueListParams{Broker: "main", Limit: 50})

	require.NoError(t, err)
	assert.Equal(t, []string{"id.desc"}, gotQuery["order"])
	assert.Equal(t, []string{"50"}, gotQuery["limit"])
	assert.Equal(t, []string{"eq.main"}, gotQuery["broker"])
}

func TestStateGet_DecodesStateBlob(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "eq.main", r.URL.Query().Get("broker"))
		writeJSON(w, http.StatusOK, []map[string]any{{
			"broker":     "main",
			"updated_at": time.Now().UTC().Format(time.RFC3339),
			"state": map[string]any{
				"roles": []map[string]any{{
					"rolename": "admin",
					"acls": []map[string]any{
						{"acltype": "subscribePattern", "topic": "sensor/+/data", "allow": true, "priority": 0},
					},
				}},
				"clients": []map[string]any{{
					"username": "sensor-1",
					"disabled": true,
					"roles":    []map[string]any{{"rolename": "admin", "priority": 1}},
				}},
				"defaultACLAccess": map[string]any{"subscribe": true},
			},
		}})
	}))
	defer srv.Close()

	c := dynsec.NewClient(option.WithBaseURL(srv.URL))
	st, err := c.State.Get(context.Background(), "main")

	require.NoError(t, err)
	assert.Equal(t, "main", st.Broker)
	require.NotNil(t, st.Role("admin"))
	assert.Equal(t, "sensor/+/data", st.Role("admin").ACLs[0].Topic)
	require.NotNil(t, st.Client("sensor-1"))
	assert.True(t, st.Client("sensor-1").Disabled)
	assert.Nil(t, st.Role("nope"))
	assert.True(t, st.DefaultACLAccess.Subscribe)
}

func TestStateGet_MissingBrokerRow(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, []any{})
	}))
	defer srv.Close()

	c := dynsec.NewClient(option.WithBaseURL(srv.URL))
	_, err := c.State.Get(context.Background(), "ghost")
	assert.ErrorIs(t, err, dynsec.ErrBrokerStateNotFound)
}

func TestBackup_NowAndList(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/rpc/ds_backup_now":
			writeJSON(w, http.StatusOK, map[string]any{"backup_id": 9})
		case "/dyn_backups":
			assert.Equal(t, "created_at.desc", r.URL.Query().Get("order"))
			writeJSON(w, http.StatusOK, []map[string]any{{"id": 9, "broker": "main"}})
		default:
			w.WriteHeader(http.StatusNotFound)
		}
	}))
	defer srv.Close()

	c := dynsec.NewClient(option.WithBaseURL(srv.URL))

	id, err := c.Backup.Now(context.Background(), "main")
	require.NoError(t, err)
	assert.Equal(t, int64(9), id)

	backups, err := c.Backup.List(context.Background(), "main")
	require.NoError(t, err)
	require.Len(t, backups, 1)
	assert.Equal(t, int64(9), backups[0].ID)
}

func TestAuditEntry_IdempotentDetection(t *testing.T) {
	entry := dynsec.AuditEntry{Result: []byte(`{"status":"idempotent","detail":"acl exists"}`)}
	assert.True(t, entry.Idempotent())

	entry.Result = []byte(`{"status":"applied"}`)
	assert.False(t, entry.Idempotent())

	entry.Result = []byte(`"just a string"`)
	assert.False(t, entry.Idempotent())

	entry.Result = nil
	assert.False(t, entry.Idempotent())
}
