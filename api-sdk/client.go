// Package dynsec is the Go client for the dynamic-security control API: a
// PostgREST-shaped HTTP service fronting an MQTT broker's dynamic security
// plugin. Mutations are asynchronous: they are enqueued via rpc/ds_apply and
// observed through the dyn_op_queue and dyn_audit_log tables. The Runner type
// owns the submit, poll and reconcile protocol.
package dynsec

import (
	"context"
	"net/http"
	"os"
	"slices"

	"github.com/hilthontt/dynboard/api-sdk/internal/requestconfig"
	"github.com/hilthontt/dynboard/api-sdk/option"
)

type Client struct {
	Options []option.RequestOption
	State   *StateService
	Apply   *ApplyService
	Queue   *QueueService
	Audit   *AuditService
	Backup  *BackupService
}

func DefaultClientOptions() []option.RequestOption {
	defaults := []option.RequestOption{
		option.WithDefaultBaseURL("http://localhost:3000/"),
	}
	if o, ok := os.LookupEnv("DYNSEC_API_URL"); ok {
		defaults = append(defaults, option.WithBaseURL(o))
	}
	if o, ok := os.LookupEnv("DYNSEC_API_TOKEN"); ok {
		defaults = append(defaults, option.WithBearerToken(o))
	}
	return defaults
}

func NewClient(opts ...option.RequestOption) *Client {
	opts = append(DefaultClientOptions(), opts...)

	r := &Client{
		Options: opts,
		State:   NewStateService(opts...),
		Apply:   NewApplyService(opts...),
		Queue:   NewQueueService(opts...),
		Audit:   NewAuditService(opts...),
		Backup:  NewBackupService(opts...),
	}

	return r
}

// Runner builds an operation runner over this client's services with the
// given polling policy.
func (c *Client) Runner(policy PollPolicy) *Runner {
	return &Runner{
		Apply:  c.Apply,
		Queue:  c.Queue,
		Audit:  c.Audit,
		Policy: policy,
	}
}

func (c *Client) Execute(ctx context.Context, method, path string, params, res any, opts ...option.RequestOption) error {
	opts = slices.Concat(c.Options, opts)
	return requestconfig.ExecuteNewRequest(ctx, method, path, params, res, opts...)
}

func (c *Client) Get(ctx context.Context, path string, params, res any, opts ...option.RequestOption) error {
	return c.Execute(ctx, http.MethodGet, path, params, res, opts...)
}

func (c *Client) Post(ctx context.Context, path string, params, res any, opts ...option.RequestOption) error {
	return c.Execute(ctx, http.MethodPost, path, params, res, opts...)
}
