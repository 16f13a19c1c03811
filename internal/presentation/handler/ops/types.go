package ops

import (
	"bytes"
	stdjson "encoding/json"
	"fmt"

	dynsec "github.com/hilthontt/dynboard/api-sdk"
	"github.com/hilthontt/dynboard/internal/infrastructure/validate"
)

type operationRequest struct {
	Operation dynsec.Operation   `json:"operation"`
	Payload   stdjson.RawMessage `json:"payload"`
	DryRun    bool               `json:"dry_run"`
}

type bulkRequest struct {
	Operations []operationRequest `json:"operations"`
}

type operationResponse struct {
	Outcome string             `json:"outcome"`
	QueueID int64              `json:"queue_id,omitempty"`
	Message string             `json:"message"`
	Error   string             `json:"error,omitempty"`
	Preview stdjson.RawMessage `json:"preview,omitempty"`
}

type bulkEntryResponse struct {
	Index     int              `json:"index"`
	Operation dynsec.Operation `json:"operation"`
	Outcome   string           `json:"outcome"`
	QueueID   int64            `json:"queue_id,omitempty"`
	Message   string           `json:"message"`
	Error     string           `json:"error,omitempty"`
}

type bulkResponse struct {
	Results []bulkEntryResponse `json:"results"`
	Applied int                 `json:"applied"`
	Skipped int                 `json:"skipped"`
	Failed  int                 `json:"failed"`
}

func operationKinds() []string {
	kinds := dynsec.Operations()
	out := make([]string, len(kinds))
	for i, k := range kinds {
		out[i] = string(k)
	}
	return out
}

func aclTypes() []string {
	return []string{
		dynsec.ACLPublishClientSend,
		dynsec.ACLPublishClientReceive,
		dynsec.ACLSubscribeLiteral,
		dynsec.ACLSubscribePattern,
		dynsec.ACLUnsubscribeLiteral,
		dynsec.ACLUnsubscribePattern,
	}
}

func decodeStrict(raw stdjson.RawMessage, dst any) error {
	dec := stdjson.NewDecoder(bytes.NewReader(raw))
	dec.DisallowUnknownFields()
	if err := dec.Decode(dst); err != nil {
		return fmt.Errorf("invalid payload: %w", err)
	}
	return nil
}

var (
	validateRole     = validate.Field("role", validate.Required(), validate.NoSpaces(), validate.MaxLength(128))
	validateUsername = validate.Field("username", validate.Required(), validate.NoSpaces(), validate.MaxLength(128))
	validatePassword = validate.Field("password", validate.Required(), validate.MinLength(8))
	validateACLType  = validate.Field("acltype", validate.Required(), validate.OneOf(aclTypes()...))
	validateTopic    = validate.Field("topic", validate.Required(), validate.TopicFilter())
)

// checkPayload decodes and validates the payload for one operation kind. The
// cached state, when available, powers best effort duplicate checks; a cold
// cache skips them and lets the server decide.
func checkPayload(op dynsec.Operation, raw stdjson.RawMessage, cached *dynsec.BrokerState) (any, error) {
	if len(raw) == 0 {
		raw = stdjson.RawMessage(`{}`)
	}

	switch op {
	case dynsec.OpAddRoleACL:
		var p dynsec.AddRoleACLPayload
		if err := decodeStrict(raw, &p); err != nil {
			return nil, err
		}
		if err := validateRole(p.Role); err != nil {
			return nil, err
		}
		if err := validateACLType(p.ACLType); err != nil {
			return nil, err
		}
		if err := validateTopic(p.Topic); err != nil {
			return nil, err
		}
		if cached != nil {
			if role := cached.Role(p.Role); role != nil {
				for _, acl := range role.ACLs {
					if acl.Priority == p.Priority {
						return nil, fmt.Errorf("role %q already has an ACL with priority %d", p.Role, p.Priority)
					}
				}
			}
		}
		return p, nil

	case dynsec.OpRemoveRoleACL:
		var p dynsec.RemoveRoleACLPayload
		if err := decodeStrict(raw, &p); err != nil {
			return nil, err
		}
		if err := validateRole(p.Role); err != nil {
			return nil, err
		}
		if err := validateACLType(p.ACLType); err != nil {
			return nil, err
		}
		if err := validateTopic(p.Topic); err != nil {
			return nil, err
		}
		return p, nil

	case dynsec.OpAddClientRole:
		var p dynsec.AddClientRolePayload
		if err := decodeStrict(raw, &p); err != nil {
			return nil, err
		}
		if err := validateUsername(p.Username); err != nil {
			return nil, err
		}
		if err := validateRole(p.Role); err != nil {
			return nil, err
		}
		return p, nil

	case dynsec.OpRemoveClientRole:
		var p dynsec.RemoveClientRolePayload
		if err := decodeStrict(raw, &p); err != nil {
			return nil, err
		}
		if err := validateUsername(p.Username); err != nil {
			return nil, err
		}
		if err := validateRole(p.Role); err != nil {
			return nil, err
		}
		return p, nil

	case dynsec.OpCreateClient:
		var p dynsec.CreateClientPayload
		if err := decodeStrict(raw, &p); err != nil {
			return nil, err
		}
		if err := validateUsername(p.Username); err != nil {
			return nil, err
		}
		if err := validatePassword(p.Password); err != nil {
			return nil, err
		}
		if cached != nil && cached.Client(p.Username) != nil {
			return nil, fmt.Errorf("client %q already exists", p.Username)
		}
		return p, nil

	case dynsec.OpCreateRole:
		var p dynsec.CreateRolePayload
		if err := decodeStrict(raw, &p); err != nil {
			return nil, err
		}
		if err := validateRole(p.RoleName); err != nil {
			return nil, err
		}
		for i, acl := range p.ACLs {
			if err := validateACLType(acl.ACLType); err != nil {
				return nil, fmt.Errorf("acl %d: %w", i, err)
			}
			if err := validateTopic(acl.Topic); err != nil {
				return nil, fmt.Errorf("acl %d: %w", i, err)
			}
		}
		if cached != nil && cached.Role(p.RoleName) != nil {
			return nil, fmt.Errorf("role %q already exists", p.RoleName)
		}
		return p, nil

	case dynsec.OpEnableClient:
		var p dynsec.EnableClientPayload
		if err := decodeStrict(raw, &p); err != nil {
			return nil, err
		}
		if err := validateUsername(p.Username); err != nil {
			return nil, err
		}
		return p, nil

	case dynsec.OpDisableClient:
		var p dynsec.DisableClientPayload
		if err := decodeStrict(raw, &p); err != nil {
			return nil, err
		}
		if err := validateUsername(p.Username); err != nil {
			return nil, err
		}
		return p, nil

	case dynsec.OpSetClientPassword:
		var p dynsec.SetClientPasswordPayload
		if err := decodeStrict(raw, &p); err != nil {
			return nil, err
		}
		if err := validateUsername(p.Username); err != nil {
			return nil, err
		}
		if err := validatePassword(p.Password); err != nil {
			return nil, err
		}
		return p, nil

	case dynsec.OpRefreshState:
		var p struct{}
		if err := decodeStrict(raw, &p); err != nil {
			return nil, fmt.Errorf("refresh_state takes no payload")
		}
		return struct{}{}, nil

	default:
		return nil, fmt.Errorf("unknown operation %q", op)
	}
}

// describe renders a short clause naming what the operation touches, used to
// build the user facing messages.
func describe(op dynsec.Operation, payload any) string {
	switch p := payload.(type) {
	case dynsec.AddRoleACLPayload:
		return fmt.Sprintf("%s ACL on %q for role %q", p.ACLType, p.Topic, p.Role)
	case dynsec.RemoveRoleACLPayload:
		return fmt.Sprintf("%s ACL on %q for role %q", p.ACLType, p.Topic, p.Role)
	case dynsec.AddClientRolePayload:
		return fmt.Sprintf("role %q for client %q", p.Role, p.Username)
	case dynsec.RemoveClientRolePayload:
		return fmt.Sprintf("role %q for client %q", p.Role, p.Username)
	case dynsec.CreateClientPayload:
		return fmt.Sprintf("client %q", p.Username)
	case dynsec.CreateRolePayload:
		return fmt.Sprintf("role %q", p.RoleName)
	case dynsec.EnableClientPayload:
		return fmt.Sprintf("client %q", p.Username)
	case dynsec.DisableClientPayload:
		return fmt.Sprintf("client %q", p.Username)
	case dynsec.SetClientPasswordPayload:
		return fmt.Sprintf("password for client %q", p.Username)
	default:
		return string(op)
	}
}

func outcomeMessage(op dynsec.Operation, payload any, outcome dynsec.Outcome) string {
	subject := describe(op, payload)

	switch outcome {
	case dynsec.OutcomeIdempotent:
		return fmt.Sprintf("No change: %s was already in the requested state.", subject)
	case dynsec.OutcomeFailed:
		return fmt.Sprintf("The broker rejected the change to %s.", subject)
	case dynsec.OutcomeDryRun:
		return fmt.Sprintf("Dry run: previewed change to %s, nothing was applied.", subject)
	}

	switch op {
	case dynsec.OpAddRoleACL:
		return fmt.Sprintf("Added %s.", subject)
	case dynsec.OpRemoveRoleACL:
		return fmt.Sprintf("Removed %s.", subject)
	case dynsec.OpAddClientRole:
		return fmt.Sprintf("Granted %s.", subject)
	case dynsec.OpRemoveClientRole:
		return fmt.Sprintf("Revoked %s.", subject)
	case dynsec.OpCreateClient, dynsec.OpCreateRole:
		return fmt.Sprintf("Created %s.", subject)
	case dynsec.OpEnableClient:
		return fmt.Sprintf("Enabled %s.", subject)
	case dynsec.OpDisableClient:
		return fmt.Sprintf("Disabled %s.", subject)
	case dynsec.OpSetClientPassword:
		return fmt.Sprintf("Updated %s.", subject)
	case dynsec.OpRefreshState:
		return "Refreshed the broker's dynamic security state."
	default:
		return fmt.Sprintf("Applied %s.", subject)
	}
}

// timeoutMessage never claims failure: an exhausted poll leaves the true
// outcome unknown.
func timeoutMessage(queueID int64) string {
	if queueID > 0 {
		return fmt.Sprintf("The operation is still pending after the configured wait; it may have succeeded. Check queue item %d.", queueID)
	}
	return "The operation is still pending after the configured wait; it may have succeeded. Check the operation queue."
}
