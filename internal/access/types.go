package access

import "fmt"

// Action is an operation a caller wants to perform on a resource
type Action string

const (
	ActionView              Action = "VIEW"
	ActionEdit              Action = "EDIT"
	ActionManagePermissions Action = "MANAGE_PERMISSIONS"
	ActionManageUsers       Action = "MANAGE_USERS"
	ActionViewActivity      Action = "VIEW_ACTIVITY"
	ActionViewChecklist     Action = "VIEW_CHECKLIST"
	ActionDelete            Action = "DELETE"
	ActionRestore           Action = "RESTORE"
)

// DenyReason names the typed negative outcomes of an evaluation. A deny is
// the normal negative result, not an error.
type DenyReason string

const (
	DenyNoMembership           DenyReason = "NoMembership"
	DenyAccessWindowExpired    DenyReason = "AccessWindowExpired"
	DenyIPNotAllowed           DenyReason = "IPNotAllowed"
	DenyTwoFactorRequired      DenyReason = "TwoFactorRequired"
	DenyAccountInactive        DenyReason = "AccountInactive"
	DenyInsufficientCapability DenyReason = "InsufficientCapability"
	DenyNoResourceGrant        DenyReason = "NoResourceGrant"
	DenyAdministratorRequired  DenyReason = "AdministratorRequired"
)

// Decision is the result of an evaluation
type Decision struct {
	Allowed bool       `json:"allowed"`
	Reason  DenyReason `json:"reason,omitempty"`
}

// Allow returns a permitting decision
func Allow() Decision {
	return Decision{Allowed: true}
}

// Deny returns a denying decision with a typed reason
func Deny(reason DenyReason) Decision {
	return Decision{Allowed: false, Reason: reason}
}

// ResourceKind identifies what a ResourceRef points at
type ResourceKind string

const (
	KindDocument ResourceKind = "document"
	KindFolder   ResourceKind = "folder"
	KindDataRoom ResourceKind = "dataroom"
)

// ResourceRef identifies one document, folder or data room
type ResourceRef struct {
	Kind ResourceKind `json:"kind"`
	ID   uint         `json:"id"`
}

func (r ResourceRef) String() string {
	return fmt.Sprintf("%s:%d", r.Kind, r.ID)
}

// Caller carries the request-scoped facts supplied by the session/identity
// provider: the client address and whether a second factor was verified.
type Caller struct {
	IP                string
	TwoFactorVerified bool
}
