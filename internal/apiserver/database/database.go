package database

import (
	"context"
	"errors"
)

// ErrNotFound is returned when a requested record does not exist. Callers
// treat it as a distinct error kind from an authorization deny.
var ErrNotFound = errors.New("record not found")

// Database defines the persistence operations behind the access-control core.
type Database interface {
	// Close closes the database connection.
	Close() error

	// Transaction runs fn inside a single database transaction. The
	// transaction is carried on the context so nested store calls join it.
	Transaction(ctx context.Context, fn func(ctx context.Context) error) error

	// Users
	CreateUser(ctx context.Context, user *User) error
	GetUser(ctx context.Context, id uint) (*User, error)
	GetUserByUsername(ctx context.Context, username string) (*User, error)
	UpdateUser(ctx context.Context, user *User) error
	DeleteUser(ctx context.Context, id uint) error
	ListUsers(ctx context.Context) ([]*User, error)

	// Plans
	CreatePlan(ctx context.Context, plan *Plan) error
	GetPlan(ctx context.Context, id uint) (*Plan, error)
	ListPlans(ctx context.Context) ([]*Plan, error)

	// Tenants
	CreateTenant(ctx context.Context, tenant *Tenant) error
	GetTenant(ctx context.Context, id uint) (*Tenant, error)
	GetTenantBySlug(ctx context.Context, slug string) (*Tenant, error)
	UpdateTenant(ctx context.Context, tenant *Tenant) error
	DeleteTenant(ctx context.Context, id uint) error
	ListTenants(ctx context.Context) ([]*Tenant, error)

	// Tenant memberships
	AddUserToTenant(ctx context.Context, tu *TenantUser) error
	GetTenantUser(ctx context.Context, tenantID, userID uint) (*TenantUser, error)
	UpdateTenantUser(ctx context.Context, tu *TenantUser) error
	RemoveUserFromTenant(ctx context.Context, tenantID, userID uint) error
	ListTenantUsers(ctx context.Context, tenantID uint) ([]*TenantUser, error)
	GetUserTenants(ctx context.Context, userID uint) ([]*TenantUser, error)
	CountTenantAdmins(ctx context.Context, tenantID uint) (int64, error)
	CountActiveTenantUsers(ctx context.Context, tenantID uint) (int64, error)
	// AddTenantAdminWithinLimit inserts an ACTIVE TENANT_ADMIN membership and
	// the admin-count check in one transaction. maxAdmins of -1 means unlimited.
	AddTenantAdminWithinLimit(ctx context.Context, tu *TenantUser, maxAdmins int) error

	// Data rooms
	CreateDataRoom(ctx context.Context, room *DataRoom) error
	// CreateDataRoomWithinLimit inserts the room and the room-count check in
	// one transaction. maxVDR of -1 means unlimited.
	CreateDataRoomWithinLimit(ctx context.Context, room *DataRoom, maxVDR int) error
	GetDataRoom(ctx context.Context, id uint) (*DataRoom, error)
	ListDataRooms(ctx context.Context, tenantID uint) ([]*DataRoom, error)
	CountDataRooms(ctx context.Context, tenantID uint) (int64, error)

	// Groups
	CreateGroup(ctx context.Context, group *Group) error
	GetGroup(ctx context.Context, id uint) (*Group, error)
	UpdateGroup(ctx context.Context, group *Group) error
	DeleteGroup(ctx context.Context, id uint) error
	ListGroups(ctx context.Context, dataRoomID uint) ([]*Group, error)
	CountAdministratorGroups(ctx context.Context, dataRoomID uint) (int64, error)
	// GetUserGroups returns the groups the user belongs to within one data room.
	GetUserGroups(ctx context.Context, dataRoomID, userID uint) ([]*Group, error)

	// Group members
	AddGroupMember(ctx context.Context, member *GroupMember) error
	RemoveGroupMember(ctx context.Context, groupID, userID uint) error
	ListGroupMembers(ctx context.Context, groupID uint) ([]*GroupMember, error)

	// Folders and documents
	CreateFolder(ctx context.Context, folder *Folder) error
	GetFolder(ctx context.Context, id uint) (*Folder, error)
	ListFolders(ctx context.Context, dataRoomID uint) ([]*Folder, error)
	CreateDocument(ctx context.Context, doc *Document) error
	GetDocument(ctx context.Context, id uint) (*Document, error)
	ListDocuments(ctx context.Context, dataRoomID uint) ([]*Document, error)

	// Recycle bin
	SoftDeleteDocument(ctx context.Context, id, deletedBy uint) error
	SoftDeleteFolder(ctx context.Context, id, deletedBy uint) error
	RestoreDocument(ctx context.Context, id uint) error
	RestoreFolder(ctx context.Context, id uint) error
	PurgeDocument(ctx context.Context, id uint) error
	PurgeFolder(ctx context.Context, id uint) error
	ListDeletedFolders(ctx context.Context, dataRoomID uint) ([]*Folder, error)
	ListDeletedDocuments(ctx context.Context, dataRoomID uint) ([]*Document, error)

	// Resource-scoped permissions
	UpsertFolderPermission(ctx context.Context, perm *FolderGroupPermission) error
	UpsertDocumentPermission(ctx context.Context, perm *DocumentGroupPermission) error
	DeleteFolderPermission(ctx context.Context, folderID, groupID uint) error
	DeleteDocumentPermission(ctx context.Context, documentID, groupID uint) error
	GetFolderPermissionsForGroups(ctx context.Context, folderID uint, groupIDs []uint) ([]*FolderGroupPermission, error)
	GetDocumentPermissionsForGroups(ctx context.Context, documentID uint, groupIDs []uint) ([]*DocumentGroupPermission, error)

	// Quota inputs
	SumDocumentSizeBytes(ctx context.Context, tenantID uint) (int64, error)

	// Audit
	SaveAuditLog(ctx context.Context, entry *AuditLog) error
	ListAuditLogs(ctx context.Context, tenantID uint, limit int) ([]*AuditLog, error)
}
