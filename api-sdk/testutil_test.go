package dynsec_test

import (
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"

	dynsec "github.com/hilthontt/dynboard/api-sdk"
	"github.com/hilthontt/dynboard/api-sdk/option"
)

// fakeUpstream simulates the PostgREST control API. Queue-item statuses are
// scripted per fetch: the n-th GET of an id serves statuses[n-1], and the
// last scripted status repeats once the script runs out.
type fakeUpstream struct {
	t   *testing.T
	srv *httptest.Server

	mu          sync.Mutex
	queueScript map[int64][]dynsec.Status
	queueFetch  map[int64]int
	audit       map[int64][]map[string]any
	auditStatus int
	applyFn     func(body map[string]any) (int, any)
	calls       []string
}

func newFakeUpstream(t *testing.T) *fakeUpstream {
	f := &fakeUpstream{
		t:           t,
		queueScript: map[int64][]dynsec.Status{},
		queueFetch:  map[int64]int{},
		audit:       map[int64][]map[string]any{},
	}
	f.srv = httptest.NewServer(http.HandlerFunc(f.handle))
	t.Cleanup(f.srv.Close)
	return f
}

func (f *fakeUpstream) client() *dynsec.Client {
	return dynsec.NewClient(option.WithBaseURL(f.srv.URL))
}

func (f *fakeUpstream) record(event string) {
	f.calls = append(f.calls, event)
}

func (f *fakeUpstream) callLog() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]string(nil), f.calls...)
}

func (f *fakeUpstream) fetches(id int64) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.queueFetch[id]
}

func (f *fakeUpstream) handle(w http.ResponseWriter, r *http.Request) {
	f.mu.Lock()
	defer f.mu.Unlock()

	switch {
	case r.Method == http.MethodPost && r.URL.Path == "/rpc/ds_apply":
		var body map[string]any
		if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
			w.WriteHeader(http.StatusBadRequest)
			return
		}
		status, resp := http.StatusOK, any(map[string]any{"queued": true, "queue_id": int64(42)})
		if f.applyFn != nil {
			status, resp = f.applyFn(body)
		}
		if m, ok := resp.(map[string]any); ok && m["queue_id"] != nil {
			f.record(fmt.Sprintf("apply:%v", m["queue_id"]))
		} else {
			f.record(fmt.Sprintf("apply:%v", body["operation"]))
		}
		writeJSON(w, status, resp)

	case r.Method == http.MethodGet && r.URL.Path == "/dyn_op_queue":
		var id int64
		fmt.Sscanf(r.URL.Query().Get("id"), "eq.%d", &id)
		f.queueFetch[id]++
		f.record(fmt.Sprintf("queue:%d", id))

		script := f.queueScript[id]
		if len(script) == 0 {
			writeJSON(w, http.StatusOK, []any{})
			return
		}
		n := f.queueFetch[id]
		if n > len(script) {
			n = len(script)
		}
		status := script[n-1]
		item := map[string]any{
			"id": id, "broker": "main", "operation": "add_role_acl",
			"status": status, "actor": "tester",
		}
		if status == dynsec.StatusFailed {
			item["error_message"] = "role does not exist"
		}
		writeJSON(w, http.StatusOK, []any{item})

	case r.Method == http.MethodGet && r.URL.Path == "/dyn_audit_log":
		var id int64
		fmt.Sscanf(r.URL.Query().Get("queue_id"), "eq.%d", &id)
		f.record(fmt.Sprintf("audit:%d", id))
		if f.auditStatus != 0 {
			writeJSON(w, f.auditStatus, map[string]any{"message": "audit unavailable"})
			return
		}
		entries := f.audit[id]
		if entries == nil {
			entries = []map[string]any{}
		}
		writeJSON(w, http.StatusOK, entries)

	default:
		f.t.Logf("fake upstream: unhandled %s %s", r.Method, r.URL)
		w.WriteHeader(http.StatusNotFound)
	}
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func auditEntry(queueID int64, result map[string]any) map[string]any {
	raw, _ := json.Marshal(result)
	return map[string]any{
		"id": queueID * 10, "queue_id": queueID, "actor": "tester",
		"broker": "main", "operation": "add_role_acl",
		"result": json.RawMessage(raw),
	}
}
