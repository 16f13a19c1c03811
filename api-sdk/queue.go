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

// Status of a queue item. An item transitions pending to succeeded or failed
// exactly once and never reverts.
type Status string

const (
	StatusPending   Status = "pending"
	StatusSucceeded Status = "succeeded"
	StatusFailed    Status = "failed"
)

// Terminal reports whether the status will never change again.
func (s Status) Terminal() bool {
	return s == StatusSucceeded || s == StatusFailed
}

// QueueItem is a submitted operation as the server tracks it. Created by
// rpc/ds_apply, mutated only server-side; clients read it, repeatedly and
// safely, until it turns terminal.
type QueueItem struct {
	ID           int64           `json:"id"`
	Broker       string          `json:"broker"`
	Operation    Operation       `json:"operation"`
	Payload      json.RawMessage `json:"payload"`
	Status       Status          `json:"status"`
	Actor        string          `json:"actor"`
	EnqueuedAt   time.Time       `json:"enqueued_at"`
	ProcessedAt  *time.Time      `json:"processed_at,omitempty"`
	ErrorMessage string          `json:"error_message,omitempty"`
}

type QueueService struct {
	Options []option.RequestOption
}

func NewQueueService(opts ...option.RequestOption) *QueueService {
	q := &QueueService{opts}
	return q
}

// Get fetches a single queue item by id. A keyed PostgREST lookup returns an
// array; an empty one means the item does not exist and never will, which
// surfaces as ErrQueueItemNotFound.
func (q *QueueService) Get(ctx context.Context, id int64, opts ...option.RequestOption) (*QueueItem, error) {
	opts = slices.Concat(q.Options, opts)

	query := url.Values{}
	query.Set("id", "eq."+strconv.FormatInt(id, 10))
	fullURL := fmt.Sprintf("dyn_op_queue?%s", query.Encode())

	var items []QueueItem
	err := requestconfig.ExecuteNewRequest(ctx, http.MethodGet, fullURL, nil, &items, opts...)
	if err != nil {
		return nil, err
	}
	if len(items) == 0 {
		return nil, fmt.Errorf("queue item %d: %w", id, ErrQueueItemNotFound)
	}
	return &items[0], nil
}

type QueueListParams struct {
	Broker string
	Limit  int
}

// List returns recent queue items, newest first.
func (q *QueueService) List(ctx context.Context, params QueueListParams, opts ...option.RequestOption) ([]QueueItem, error) {
	opts = slices.Concat(q.Options, opts)

	query := url.Values{}
	query.Set("order", "id.desc")
	if params.Limit > 0 {
		query.Set("limit", strconv.Itoa(params.Limit))
	}
	if params.Broker != "" {
		query.Set("broker", "eq."+params.Broker)
	}
	fullURL := fmt.Sprintf("dyn_op_queue?%s", query.Encode())

	var items []QueueItem
	err := requestconfig.ExecuteNewRequest(ctx, http.MethodGet, fullURL, nil, &items, opts...)
	return items, err
}
