package dynsec

import (
	"context"
	"encoding/json"
	"net/http"
	"slices"

	"github.com/hilthontt/dynboard/api-sdk/internal/requestconfig"
	"github.com/hilthontt/dynboard/api-sdk/option"
)

// Operation is a mutation kind accepted by rpc/ds_apply.
type Operation string

const (
	OpAddRoleACL        Operation = "add_role_acl"
	OpRemoveRoleACL     Operation = "remove_role_acl"
	OpAddClientRole     Operation = "add_client_role"
	OpRemoveClientRole  Operation = "remove_client_role"
	OpCreateClient      Operation = "create_client"
	OpCreateRole        Operation = "create_role"
	OpEnableClient      Operation = "enable_client"
	OpDisableClient     Operation = "disable_client"
	OpSetClientPassword Operation = "set_client_password"
	OpRefreshState      Operation = "refresh_state"
)

// Operations lists every mutation kind, in the order the plugin documents
// them.
func Operations() []Operation {
	return []Operation{
		OpAddRoleACL, OpRemoveRoleACL,
		OpAddClientRole, OpRemoveClientRole,
		OpCreateClient, OpCreateRole,
		OpEnableClient, OpDisableClient,
		OpSetClientPassword, OpRefreshState,
	}
}

// ACL types accepted by the plugin for role ACL entries.
const (
	ACLPublishClientSend    = "publishClientSend"
	ACLPublishClientReceive = "publishClientReceive"
	ACLSubscribeLiteral     = "subscribeLiteral"
	ACLSubscribePattern     = "subscribePattern"
	ACLUnsubscribeLiteral   = "unsubscribeLiteral"
	ACLUnsubscribePattern   = "unsubscribePattern"
)

type ApplyService struct {
	Options []option.RequestOption
}

func NewApplyService(opts ...option.RequestOption) *ApplyService {
	a := &ApplyService{opts}
	return a
}

type ApplyParams struct {
	Broker    string    `json:"broker"`
	Operation Operation `json:"operation"`
	Payload   any       `json:"payload"`
	DryRun    bool      `json:"dry_run"`
}

// ApplyResponse is the enqueue acknowledgement. When DryRun was requested the
// server returns a preview instead; its shape is server-defined and kept
// opaque in Preview.
type ApplyResponse struct {
	Queued  bool            `json:"queued"`
	QueueID int64           `json:"queue_id"`
	Preview json.RawMessage `json:"-"`
}

// Submit posts one mutation to rpc/ds_apply. The change is either enqueued
// (Queued with a QueueID to poll) or, on dry run, previewed. Submit itself is
// never retried on failure; only polling retries, and only for pending items.
func (a *ApplyService) Submit(ctx context.Context, params ApplyParams, opts ...option.RequestOption) (*ApplyResponse, error) {
	opts = slices.Concat(a.Options, opts)
	if params.Broker == "" {
		return nil, ErrMissingBrokerParameter
	}
	if params.Operation == "" {
		return nil, ErrMissingOperationParameter
	}
	if params.Payload == nil {
		params.Payload = struct{}{}
	}

	var raw json.RawMessage
	err := requestconfig.ExecuteNewRequest(ctx, http.MethodPost, "rpc/ds_apply", params, &raw, opts...)
	if err != nil {
		return nil, err
	}

	if params.DryRun {
		return &ApplyResponse{Preview: raw}, nil
	}

	res := &ApplyResponse{}
	if len(raw) > 0 {
		if err := json.Unmarshal(raw, res); err != nil {
			return nil, err
		}
	}
	return res, nil
}

// Payloads for the individual operation kinds. Field names follow the
// dynamic security plugin's JSON vocabulary.

type AddRoleACLPayload struct {
	Role     string `json:"role"`
	ACLType  string `json:"acltype"`
	Topic    string `json:"topic"`
	Allow    bool   `json:"allow"`
	Priority int    `json:"priority"`
}

type RemoveRoleACLPayload struct {
	Role    string `json:"role"`
	ACLType string `json:"acltype"`
	Topic   string `json:"topic"`
}

type AddClientRolePayload struct {
	Username string `json:"username"`
	Role     string `json:"role"`
	Priority int    `json:"priority"`
}

type RemoveClientRolePayload struct {
	Username string `json:"username"`
	Role     string `json:"role"`
}

type CreateClientPayload struct {
	Username string    `json:"username"`
	Password string    `json:"password"`
	TextName string    `json:"textname,omitempty"`
	Roles    []RoleRef `json:"roles,omitempty"`
}

type CreateRolePayload struct {
	RoleName string `json:"rolename"`
	TextName string `json:"textname,omitempty"`
	ACLs     []ACL  `json:"acls,omitempty"`
}

type EnableClientPayload struct {
	Username string `json:"username"`
}

type DisableClientPayload struct {
	Username string `json:"username"`
}

type SetClientPasswordPayload struct {
	Username string `json:"username"`
	Password string `json:"password"`
}
