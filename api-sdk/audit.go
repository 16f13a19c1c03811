package dynsec

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"slices"
	"strconv"
	"time"

	"github.com/hilthontt/dynboard/api-sdk/internal/requestconfig"
	"github.com/hilthontt/dynboard/api-sdk/option"
)

// AuditEntry is the immutable record the server writes once a queue item has
// been processed. Its Result payload is the only place that distinguishes an
// applied change from an idempotent no-op.
type AuditEntry struct {
	ID        int64           `json:"id"`
	Timestamp time.Time       `json:"ts"`
	Actor     string          `json:"actor"`
	Broker    string          `json:"broker"`
	Operation Operation       `json:"operation"`
	Payload   json.RawMessage `json:"payload"`
	Result    json.RawMessage `json:"result"`
	QueueID   int64           `json:"queue_id"`
}

// Idempotent reports whether the entry's result marks the operation as a
// no-op: a JSON object with a status field equal to "idempotent".
func (e *AuditEntry) Idempotent() bool {
	var res struct {
		Status string `json:"status"`
	}
	if err := json.Unmarshal(e.Result, &res); err != nil {
		return false
	}
	return res.Status == "idempotent"
}

type AuditService struct {
	Options []option.RequestOption
}

func NewAuditService(opts ...option.RequestOption) *AuditService {
	a := &AuditService{opts}
	return a
}

// ListByQueueID fetches the audit entries written for one queue item. An
// empty result is a valid outcome: the audit trail is advisory.
func (a *AuditService) ListByQueueID(ctx context.Context, queueID int64, opts ...option.RequestOption) ([]AuditEntry, error) {
	opts = slices.Concat(a.Options, opts)

	query := url.Values{}
	query.Set("queue_id", "eq."+strconv.FormatInt(queueID, 10))
	fullURL := fmt.Sprintf("dyn_audit_log?%s", query.Encode())

	var entries []AuditEntry
	err := requestconfig.ExecuteNewRequest(ctx, http.MethodGet, fullURL, nil, &entries, opts...)
	return entries, err
}

type AuditListParams struct {
	Broker string
	Limit  int
}

// List returns recent audit entries, newest first.
func (a *AuditService) List(ctx context.Context, params AuditListParams, opts ...option.RequestOption) ([]AuditEntry, error) {
	opts = slices.Concat(a.Options, opts)

	query := url.Values{}
	query.Set("order", "id.desc")
	if params.Limit > 0 {
		query.Set("limit", strconv.Itoa(params.Limit))
	}
	if params.Broker != "" {
		query.Set("broker", "eq."+params.Broker)
	}
	fullURL := fmt.Sprintf("dyn_audit_log?%s", query.Encode())

	var entries []AuditEntry
	err := requestconfig.ExecuteNewRequest(ctx, http.MethodGet, fullURL, nil, &entries, opts...)
	return entries, err
}
