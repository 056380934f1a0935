package database

import (
	"strings"
	"time"

	"gorm.io/gorm"
)

// TenantStatus represents the lifecycle state of a tenant
type TenantStatus string

const (
	TenantActive    TenantStatus = "ACTIVE"
	TenantSuspended TenantStatus = "SUSPENDED"
	TenantExpired   TenantStatus = "EXPIRED"
)

// TenantUserRole represents the role of a user within a tenant
type TenantUserRole string

const (
	RoleTenantAdmin TenantUserRole = "TENANT_ADMIN"
	RoleMember      TenantUserRole = "MEMBER"
	RoleViewer      TenantUserRole = "VIEWER"
)

// TenantUserStatus represents the state of a tenant membership
type TenantUserStatus string

const (
	TenantUserActive   TenantUserStatus = "ACTIVE"
	TenantUserInactive TenantUserStatus = "INACTIVE"
	TenantUserPending  TenantUserStatus = "PENDING"
)

// UserStatus represents the account state of a user
type UserStatus string

const (
	UserActive   UserStatus = "ACTIVE"
	UserInactive UserStatus = "INACTIVE"
)

// PlatformRole separates platform operators from regular accounts. Tenant
// lifecycle operations are reserved for platform administrators; roles within
// a tenant are modeled separately on TenantUser.
type PlatformRole string

const (
	PlatformAdmin  PlatformRole = "ADMIN"
	PlatformNormal PlatformRole = "NORMAL"
)

// AccessType controls whether a user account is time-bounded
type AccessType string

const (
	AccessUnlimited AccessType = "UNLIMITED"
	AccessLimited   AccessType = "LIMITED"
)

// GroupType represents the kind of a data-room group
type GroupType string

const (
	GroupAdministrator GroupType = "ADMINISTRATOR"
	GroupUser          GroupType = "USER"
	GroupCustom        GroupType = "CUSTOM"
)

// Plan is immutable reference data describing subscription limits.
// A limit of -1 means unlimited.
type Plan struct {
	ID            uint   `json:"id" gorm:"primaryKey;autoIncrement"`
	Name          string `json:"name" gorm:"type:varchar(100);uniqueIndex"`
	MaxVDR        int    `json:"maxVdr" gorm:"not null;default:-1"`
	MaxAdminUsers int    `json:"maxAdminUsers" gorm:"not null;default:-1"`
	MaxStorageMB  int64  `json:"maxStorageMb" gorm:"not null;default:-1"`
	DurationDays  int    `json:"durationDays" gorm:"not null;default:0"`
	Features      string `json:"features" gorm:"type:text"` // JSON stored as text
}

// Tenant is the billing/organizational boundary owning users and data rooms.
// Tenants are never hard-deleted while memberships exist; DeletedAt soft-deletes.
type Tenant struct {
	ID        uint           `json:"id" gorm:"primaryKey;autoIncrement"`
	Name      string         `json:"name" gorm:"type:varchar(100);not null"`
	Slug      string         `json:"slug" gorm:"type:varchar(50);uniqueIndex"`
	Status    TenantStatus   `json:"status" gorm:"type:varchar(20);not null;default:'ACTIVE'"`
	PlanID    uint           `json:"planId" gorm:"not null;index"`
	EndDate   *time.Time     `json:"endDate"` // nil means a perpetual plan
	Settings  string         `json:"settings" gorm:"type:text"`
	CreatedAt time.Time      `json:"createdAt"`
	UpdatedAt time.Time      `json:"updatedAt"`
	DeletedAt gorm.DeletedAt `json:"-" gorm:"index"`
}

// User represents an account. The access-window fields are account-level
// gates evaluated ahead of any group authorization.
type User struct {
	ID              uint         `json:"id" gorm:"primaryKey;autoIncrement"`
	Username        string       `json:"username" gorm:"type:varchar(50);uniqueIndex"`
	Password        string       `json:"-" gorm:"not null"` // bcrypt hash, never exposed in JSON
	Role            PlatformRole `json:"role" gorm:"type:varchar(20);not null;default:'NORMAL'"`
	Status          UserStatus   `json:"status" gorm:"type:varchar(20);not null;default:'ACTIVE'"`
	AccessType      AccessType   `json:"accessType" gorm:"type:varchar(20);not null;default:'UNLIMITED'"`
	AccessStartAt   *time.Time   `json:"accessStartAt"`
	AccessEndAt     *time.Time   `json:"accessEndAt"`
	AllowedIPs      string       `json:"allowedIps" gorm:"type:text"` // comma-separated; empty means any
	Require2FA      bool         `json:"require2fa" gorm:"not null;default:false"`
	TwoFactorSecret string       `json:"-" gorm:"type:varchar(64)"` // TOTP secret, never exposed in JSON
	CreatedAt       time.Time    `json:"createdAt"`
	UpdatedAt       time.Time    `json:"updatedAt"`
}

// AllowedIPList parses the stored allow-list into individual addresses.
func (u *User) AllowedIPList() []string {
	if strings.TrimSpace(u.AllowedIPs) == "" {
		return nil
	}
	parts := strings.Split(u.AllowedIPs, ",")
	ips := make([]string, 0, len(parts))
	for _, p := range parts {
		if p = strings.TrimSpace(p); p != "" {
			ips = append(ips, p)
		}
	}
	return ips
}

// TenantUser joins users to tenants; unique per (tenantId, userId)
type TenantUser struct {
	ID        uint             `json:"id" gorm:"primaryKey;autoIncrement"`
	TenantID  uint             `json:"tenantId" gorm:"not null;uniqueIndex:uk_tenant_user,priority:1"`
	UserID    uint             `json:"userId" gorm:"not null;uniqueIndex:uk_tenant_user,priority:2;index"`
	Role      TenantUserRole   `json:"role" gorm:"type:varchar(20);not null;default:'MEMBER'"`
	Status    TenantUserStatus `json:"status" gorm:"type:varchar(20);not null;default:'PENDING'"`
	CreatedAt time.Time        `json:"createdAt"`
	UpdatedAt time.Time        `json:"updatedAt"`
}

// DataRoom is a tenant-scoped document workspace with its own folder tree
// and group-based access control
type DataRoom struct {
	ID        uint      `json:"id" gorm:"primaryKey;autoIncrement"`
	TenantID  uint      `json:"tenantId" gorm:"not null;index"`
	Name      string    `json:"name" gorm:"type:varchar(255);not null"`
	CreatedAt time.Time `json:"createdAt"`
	UpdatedAt time.Time `json:"updatedAt"`
}

// Group is a named set of users sharing capability flags within one data room
type Group struct {
	ID                   uint      `json:"id" gorm:"primaryKey;autoIncrement"`
	DataRoomID           uint      `json:"dataRoomId" gorm:"not null;index"`
	Type                 GroupType `json:"type" gorm:"type:varchar(20);not null;default:'CUSTOM'"`
	Name                 string    `json:"name" gorm:"type:varchar(100);not null"`
	CanViewChecklist     bool      `json:"canViewDueDiligenceChecklist" gorm:"not null;default:false"`
	CanManagePermissions bool      `json:"canManageDocumentPermissions" gorm:"not null;default:false"`
	CanViewGroupUsers    bool      `json:"canViewGroupUsers" gorm:"not null;default:false"`
	CanManageUsers       bool      `json:"canManageUsers" gorm:"not null;default:false"`
	CanViewActivity      bool      `json:"canViewGroupActivity" gorm:"not null;default:false"`
	CreatedAt            time.Time `json:"createdAt"`
	UpdatedAt            time.Time `json:"updatedAt"`
}

// GroupMember joins users to groups; unique per (groupId, userId)
type GroupMember struct {
	ID        uint      `json:"id" gorm:"primaryKey;autoIncrement"`
	GroupID   uint      `json:"groupId" gorm:"not null;uniqueIndex:uk_group_member,priority:1"`
	UserID    uint      `json:"userId" gorm:"not null;uniqueIndex:uk_group_member,priority:2;index"`
	CreatedAt time.Time `json:"createdAt"`
}

// Folder is a node in a data room's folder tree. A nil ParentID means the
// folder hangs off the data-room root.
type Folder struct {
	ID          uint       `json:"id" gorm:"primaryKey;autoIncrement"`
	DataRoomID  uint       `json:"dataRoomId" gorm:"not null;index"`
	ParentID    *uint      `json:"parentId" gorm:"index"`
	Name        string     `json:"name" gorm:"type:varchar(255);not null"`
	DeletedAt   *time.Time `json:"deletedAt" gorm:"index"`
	DeletedByID *uint      `json:"deletedById"`
	CreatedAt   time.Time  `json:"createdAt"`
	UpdatedAt   time.Time  `json:"updatedAt"`
}

// Document is a file entry. A nil FolderID means the document hangs off the
// data-room root.
type Document struct {
	ID          uint       `json:"id" gorm:"primaryKey;autoIncrement"`
	DataRoomID  uint       `json:"dataRoomId" gorm:"not null;index"`
	FolderID    *uint      `json:"folderId" gorm:"index"`
	Name        string     `json:"name" gorm:"type:varchar(255);not null"`
	SizeBytes   int64      `json:"sizeBytes" gorm:"not null;default:0"`
	DeletedAt   *time.Time `json:"deletedAt" gorm:"index"`
	DeletedByID *uint      `json:"deletedById"`
	CreatedAt   time.Time  `json:"createdAt"`
	UpdatedAt   time.Time  `json:"updatedAt"`
}

// FolderGroupPermission is an explicit per-folder grant for one group.
// Absence of a row means "inherit from the ancestor folder or default deny".
type FolderGroupPermission struct {
	ID        uint      `json:"id" gorm:"primaryKey;autoIncrement"`
	FolderID  uint      `json:"folderId" gorm:"not null;uniqueIndex:uk_folder_group,priority:1"`
	GroupID   uint      `json:"groupId" gorm:"not null;uniqueIndex:uk_folder_group,priority:2;index"`
	CanView   bool      `json:"canView" gorm:"not null;default:false"`
	CanEdit   bool      `json:"canEdit" gorm:"not null;default:false"`
	CreatedAt time.Time `json:"createdAt"`
	UpdatedAt time.Time `json:"updatedAt"`
}

// DocumentGroupPermission is an explicit per-document grant for one group
type DocumentGroupPermission struct {
	ID         uint      `json:"id" gorm:"primaryKey;autoIncrement"`
	DocumentID uint      `json:"documentId" gorm:"not null;uniqueIndex:uk_document_group,priority:1"`
	GroupID    uint      `json:"groupId" gorm:"not null;uniqueIndex:uk_document_group,priority:2;index"`
	CanView    bool      `json:"canView" gorm:"not null;default:false"`
	CanEdit    bool      `json:"canEdit" gorm:"not null;default:false"`
	CreatedAt  time.Time `json:"createdAt"`
	UpdatedAt  time.Time `json:"updatedAt"`
}

// AuditLog records a security-relevant access decision
type AuditLog struct {
	ID        string    `json:"id" gorm:"primaryKey;type:varchar(36)"`
	TenantID  uint      `json:"tenantId" gorm:"index"`
	UserID    uint      `json:"userId" gorm:"index"`
	Action    string    `json:"action" gorm:"type:varchar(50)"`
	Resource  string    `json:"resource" gorm:"type:varchar(100)"`
	Allowed   bool      `json:"allowed"`
	Reason    string    `json:"reason" gorm:"type:varchar(50)"`
	ClientIP  string    `json:"clientIp" gorm:"type:varchar(45)"`
	CreatedAt time.Time `json:"createdAt"`
}
