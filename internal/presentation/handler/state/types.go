package state

import (
	"time"

	dynsec "github.com/hilthontt/dynboard/api-sdk"
)

type stateView struct {
	Broker           string         `json:"broker"`
	UpdatedAt        time.Time      `json:"updated_at"`
	Roles            []roleView     `json:"roles"`
	Clients          []clientView   `json:"clients"`
	Groups           []groupView    `json:"groups"`
	DefaultACLAccess defaultACLView `json:"default_acl_access"`
}

type roleView struct {
	RoleName string       `json:"rolename"`
	TextName string       `json:"textname,omitempty"`
	ACLs     []dynsec.ACL `json:"acls"`
	ACLCount int          `json:"acl_count"`
}

type clientView struct {
	Username string   `json:"username"`
	TextName string   `json:"textname,omitempty"`
	Enabled  bool     `json:"enabled"`
	Roles    []string `json:"roles"`
	Groups   []string `json:"groups"`
}

type groupView struct {
	GroupName string   `json:"groupname"`
	Roles     []string `json:"roles"`
	Clients   []string `json:"clients"`
}

type defaultACLView struct {
	PublishClientSend    bool `json:"publishClientSend"`
	PublishClientReceive bool `json:"publishClientReceive"`
	Subscribe            bool `json:"subscribe"`
	Unsubscribe          bool `json:"unsubscribe"`
}

func shapeState(st *dynsec.BrokerState) stateView {
	view := stateView{
		Broker:    st.Broker,
		UpdatedAt: st.UpdatedAt,
		Roles:     make([]roleView, 0, len(st.Roles)),
		Clients:   make([]clientView, 0, len(st.Clients)),
		Groups:    make([]groupView, 0, len(st.Groups)),
		DefaultACLAccess: defaultACLView{
			PublishClientSend:    st.DefaultACLAccess.PublishClientSend,
			PublishClientReceive: st.DefaultACLAccess.PublishClientReceive,
			Subscribe:            st.DefaultACLAccess.Subscribe,
			Unsubscribe:          st.DefaultACLAccess.Unsubscribe,
		},
	}

	for _, role := range st.Roles {
		acls := role.ACLs
		if acls == nil {
			acls = []dynsec.ACL{}
		}
		view.Roles = append(view.Roles, roleView{
			RoleName: role.RoleName,
			TextName: role.TextName,
			ACLs:     acls,
			ACLCount: len(acls),
		})
	}

	for _, client := range st.Clients {
		roles := make([]string, 0, len(client.Roles))
		for _, ref := range client.Roles {
			roles = append(roles, ref.RoleName)
		}
		groups := client.Groups
		if groups == nil {
			groups = []string{}
		}
		view.Clients = append(view.Clients, clientView{
			Username: client.Username,
			TextName: client.TextName,
			Enabled:  !client.Disabled,
			Roles:    roles,
			Groups:   groups,
		})
	}

	for _, group := range st.Groups {
		roles := make([]string, 0, len(group.Roles))
		for _, ref := range group.Roles {
			roles = append(roles, ref.RoleName)
		}
		clients := group.Clients
		if clients == nil {
			clients = []string{}
		}
		view.Groups = append(view.Groups, groupView{
			GroupName: group.GroupName,
			Roles:     roles,
			Clients:   clients,
		})
	}

	return view
}
