package dynsec

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"slices"
	"time"

	"github.com/hilthontt/dynboard/api-sdk/internal/requestconfig"
	"github.com/hilthontt/dynboard/api-sdk/option"
)

type StateService struct {
	Options []option.RequestOption
}

func NewStateService(opts ...option.RequestOption) *StateService {
	s := &StateService{opts}
	return s
}

// Get fetches the dynamic security state blob for one broker.
func (s *StateService) Get(ctx context.Context, broker string, opts ...option.RequestOption) (*BrokerState, error) {
	opts = slices.Concat(s.Options, opts)
	if broker == "" {
		return nil, ErrMissingBrokerParameter
	}

	query := url.Values{}
	query.Set("broker", "eq."+broker)
	query.Set("limit", "1")
	fullURL := fmt.Sprintf("dyn_state?%s", query.Encode())

	var rows []stateRow
	err := requestconfig.ExecuteNewRequest(ctx, http.MethodGet, fullURL, nil, &rows, opts...)
	if err != nil {
		return nil, err
	}
	if len(rows) == 0 {
		return nil, fmt.Errorf("broker %q: %w", broker, ErrBrokerStateNotFound)
	}

	st := &BrokerState{
		Broker:    rows[0].Broker,
		UpdatedAt: rows[0].UpdatedAt,
	}
	if len(rows[0].State) > 0 {
		if err := json.Unmarshal(rows[0].State, st); err != nil {
			return nil, fmt.Errorf("decode state for broker %q: %w", broker, err)
		}
	}
	return st, nil
}

type stateRow struct {
	Broker    string          `json:"broker"`
	State     json.RawMessage `json:"state"`
	UpdatedAt time.Time       `json:"updated_at"`
}

// BrokerState is the dynamic security document of a single broker: roles
// with their ACLs, clients with their role assignments, groups, and the
// default ACL access flags the plugin falls back to.
type BrokerState struct {
	Broker           string           `json:"-"`
	UpdatedAt        time.Time        `json:"-"`
	Roles            []Role           `json:"roles"`
	Clients          []ClientInfo     `json:"clients"`
	Groups           []Group          `json:"groups"`
	DefaultACLAccess DefaultACLAccess `json:"defaultACLAccess"`
}

// Role returns the named role, or nil.
func (s *BrokerState) Role(name string) *Role {
	for i := range s.Roles {
		if s.Roles[i].RoleName == name {
			return &s.Roles[i]
		}
	}
	return nil
}

// Client returns the named client, or nil.
func (s *BrokerState) Client(username string) *ClientInfo {
	for i := range s.Clients {
		if s.Clients[i].Username == username {
			return &s.Clients[i]
		}
	}
	return nil
}

type Role struct {
	RoleName string `json:"rolename"`
	TextName string `json:"textname,omitempty"`
	ACLs     []ACL  `json:"acls"`
}

type ACL struct {
	ACLType  string `json:"acltype"`
	Topic    string `json:"topic"`
	Allow    bool   `json:"allow"`
	Priority int    `json:"priority"`
}

type ClientInfo struct {
	Username string    `json:"username"`
	TextName string    `json:"textname,omitempty"`
	Disabled bool      `json:"disabled"`
	Roles    []RoleRef `json:"roles"`
	Groups   []string  `json:"groups,omitempty"`
}

type RoleRef struct {
	RoleName string `json:"rolename"`
	Priority int    `json:"priority"`
}

type Group struct {
	GroupName string    `json:"groupname"`
	TextName  string    `json:"textname,omitempty"`
	Roles     []RoleRef `json:"roles"`
	Clients   []string  `json:"clients"`
}

type DefaultACLAccess struct {
	PublishClientSend    bool `json:"publishClientSend"`
	PublishClientReceive bool `json:"publishClientReceive"`
	Subscribe            bool `json:"subscribe"`
	Unsubscribe          bool `json:"unsubscribe"`
}
