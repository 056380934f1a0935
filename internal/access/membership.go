package access

import (
	"context"

	"github.com/clearvault/clearvault/internal/apiserver/database"
)

// Capability is a bitset of the cross-cutting group abilities
type Capability uint8

const (
	CapManagePermissions Capability = 1 << iota
	CapManageUsers
	CapViewActivity
	CapViewChecklist
)

// capabilityFor maps capability-gated actions to their flag
func capabilityFor(action Action) (Capability, bool) {
	switch action {
	case ActionManagePermissions:
		return CapManagePermissions, true
	case ActionManageUsers:
		return CapManageUsers, true
	case ActionViewActivity:
		return CapViewActivity, true
	case ActionViewChecklist:
		return CapViewChecklist, true
	default:
		return 0, false
	}
}

// Membership is a user's effective standing within one data room, computed
// once per request. Capabilities are the union across all of the user's
// groups; membership in any ADMINISTRATOR group implies every capability.
type Membership struct {
	DataRoomID uint
	UserID     uint
	GroupIDs   []uint
	Admin      bool
	Caps       Capability
}

// Exists reports whether the user belongs to any group in the data room
func (m *Membership) Exists() bool {
	return len(m.GroupIDs) > 0
}

// Has reports whether the membership carries the capability. Administrators
// implicitly hold every capability; this is the single place that rule lives.
func (m *Membership) Has(c Capability) bool {
	return m.Admin || m.Caps&c != 0
}

// LoadMembership computes the user's membership profile for a data room.
// Callers performing several checks in one request should load it once and
// reuse it.
func (e *Evaluator) LoadMembership(ctx context.Context, dataRoomID, userID uint) (*Membership, error) {
	groups, err := e.db.GetUserGroups(ctx, dataRoomID, userID)
	if err != nil {
		return nil, err
	}

	m := &Membership{DataRoomID: dataRoomID, UserID: userID}
	for _, g := range groups {
		m.GroupIDs = append(m.GroupIDs, g.ID)
		if g.Type == database.GroupAdministrator {
			m.Admin = true
		}
		if g.CanManagePermissions {
			m.Caps |= CapManagePermissions
		}
		if g.CanManageUsers {
			m.Caps |= CapManageUsers
		}
		if g.CanViewActivity {
			m.Caps |= CapViewActivity
		}
		if g.CanViewChecklist {
			m.Caps |= CapViewChecklist
		}
	}
	return m, nil
}
