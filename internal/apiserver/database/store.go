package database

import (
	"context"
	"errors"
	"time"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// ErrLimitExceeded is returned by the conditional-insert helpers when the
// post-creation count would exceed the plan limit.
var ErrLimitExceeded = errors.New("plan limit exceeded")

// store implements the Database interface on top of a gorm connection.
// Driver-specific setup lives in the per-driver constructors.
type store struct {
	db *gorm.DB
}

var _ Database = (*store)(nil)

// migrate creates or updates the schema for all persisted entities
func migrate(db *gorm.DB) error {
	return db.AutoMigrate(
		&Plan{},
		&Tenant{},
		&User{},
		&TenantUser{},
		&DataRoom{},
		&Group{},
		&GroupMember{},
		&Folder{},
		&Document{},
		&FolderGroupPermission{},
		&DocumentGroupPermission{},
		&AuditLog{},
	)
}

// conn returns the connection to use, joining a transaction from the
// context when one is present.
func (s *store) conn(ctx context.Context) *gorm.DB {
	return getDBFromContext(ctx, s.db)
}

// notFound maps gorm's record-not-found to the package sentinel
func notFound(err error) error {
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return ErrNotFound
	}
	return err
}

// Close closes the database connection
func (s *store) Close() error {
	sqlDB, err := s.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}

// Transaction runs fn inside a single transaction, reusing one already on
// the context.
func (s *store) Transaction(ctx context.Context, fn func(ctx context.Context) error) error {
	if tx := TransactionFromContext(ctx); tx != nil {
		return fn(ctx)
	}
	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		return fn(ContextWithTransaction(ctx, tx))
	})
}

// Users

func (s *store) CreateUser(ctx context.Context, user *User) error {
	return s.conn(ctx).Create(user).Error
}

func (s *store) GetUser(ctx context.Context, id uint) (*User, error) {
	var user User
	if err := s.conn(ctx).First(&user, "id = ?", id).Error; err != nil {
		return nil, notFound(err)
	}
	return &user, nil
}

func (s *store) GetUserByUsername(ctx context.Context, username string) (*User, error) {
	var user User
	if err := s.conn(ctx).First(&user, "username = ?", username).Error; err != nil {
		return nil, notFound(err)
	}
	return &user, nil
}

func (s *store) UpdateUser(ctx context.Context, user *User) error {
	return s.conn(ctx).Save(user).Error
}

func (s *store) DeleteUser(ctx context.Context, id uint) error {
	return s.conn(ctx).Delete(&User{}, "id = ?", id).Error
}

func (s *store) ListUsers(ctx context.Context) ([]*User, error) {
	var users []*User
	err := s.conn(ctx).Order("created_at desc").Find(&users).Error
	return users, err
}

// Plans

func (s *store) CreatePlan(ctx context.Context, plan *Plan) error {
	return s.conn(ctx).Create(plan).Error
}

func (s *store) GetPlan(ctx context.Context, id uint) (*Plan, error) {
	var plan Plan
	if err := s.conn(ctx).First(&plan, "id = ?", id).Error; err != nil {
		return nil, notFound(err)
	}
	return &plan, nil
}

func (s *store) ListPlans(ctx context.Context) ([]*Plan, error) {
	var plans []*Plan
	err := s.conn(ctx).Order("id asc").Find(&plans).Error
	return plans, err
}

// Tenants

func (s *store) CreateTenant(ctx context.Context, tenant *Tenant) error {
	return s.conn(ctx).Create(tenant).Error
}

func (s *store) GetTenant(ctx context.Context, id uint) (*Tenant, error) {
	var tenant Tenant
	if err := s.conn(ctx).First(&tenant, "id = ?", id).Error; err != nil {
		return nil, notFound(err)
	}
	return &tenant, nil
}

func (s *store) GetTenantBySlug(ctx context.Context, slug string) (*Tenant, error) {
	var tenant Tenant
	if err := s.conn(ctx).First(&tenant, "slug = ?", slug).Error; err != nil {
		return nil, notFound(err)
	}
	return &tenant, nil
}

func (s *store) UpdateTenant(ctx context.Context, tenant *Tenant) error {
	return s.conn(ctx).Save(tenant).Error
}

// DeleteTenant soft-deletes; memberships keep the row recoverable
func (s *store) DeleteTenant(ctx context.Context, id uint) error {
	return s.conn(ctx).Delete(&Tenant{}, "id = ?", id).Error
}

func (s *store) ListTenants(ctx context.Context) ([]*Tenant, error) {
	var tenants []*Tenant
	err := s.conn(ctx).Order("created_at desc").Find(&tenants).Error
	return tenants, err
}

// Tenant memberships

func (s *store) AddUserToTenant(ctx context.Context, tu *TenantUser) error {
	return s.conn(ctx).Create(tu).Error
}

func (s *store) GetTenantUser(ctx context.Context, tenantID, userID uint) (*TenantUser, error) {
	var tu TenantUser
	err := s.conn(ctx).
		Where("tenant_id = ? AND user_id = ?", tenantID, userID).
		First(&tu).Error
	if err != nil {
		return nil, notFound(err)
	}
	return &tu, nil
}

func (s *store) UpdateTenantUser(ctx context.Context, tu *TenantUser) error {
	return s.conn(ctx).Save(tu).Error
}

func (s *store) RemoveUserFromTenant(ctx context.Context, tenantID, userID uint) error {
	return s.conn(ctx).
		Where("tenant_id = ? AND user_id = ?", tenantID, userID).
		Delete(&TenantUser{}).Error
}

func (s *store) ListTenantUsers(ctx context.Context, tenantID uint) ([]*TenantUser, error) {
	var tus []*TenantUser
	err := s.conn(ctx).
		Where("tenant_id = ?", tenantID).
		Order("created_at asc").
		Find(&tus).Error
	return tus, err
}

func (s *store) GetUserTenants(ctx context.Context, userID uint) ([]*TenantUser, error) {
	var tus []*TenantUser
	err := s.conn(ctx).
		Where("user_id = ?", userID).
		Order("created_at asc").
		Find(&tus).Error
	return tus, err
}

func (s *store) CountTenantAdmins(ctx context.Context, tenantID uint) (int64, error) {
	var count int64
	err := s.conn(ctx).
		Model(&TenantUser{}).
		Where("tenant_id = ? AND role = ? AND status = ?", tenantID, RoleTenantAdmin, TenantUserActive).
		Count(&count).Error
	return count, err
}

func (s *store) CountActiveTenantUsers(ctx context.Context, tenantID uint) (int64, error) {
	var count int64
	err := s.conn(ctx).
		Model(&TenantUser{}).
		Where("tenant_id = ? AND status = ?", tenantID, TenantUserActive).
		Count(&count).Error
	return count, err
}

// AddTenantAdminWithinLimit runs the admin-count check and the insert as one
// transactional unit so two concurrent invites cannot both slip past the limit.
func (s *store) AddTenantAdminWithinLimit(ctx context.Context, tu *TenantUser, maxAdmins int) error {
	tu.Role = RoleTenantAdmin
	tu.Status = TenantUserActive
	return s.Transaction(ctx, func(ctx context.Context) error {
		if maxAdmins >= 0 {
			count, err := s.CountTenantAdmins(ctx, tu.TenantID)
			if err != nil {
				return err
			}
			if count >= int64(maxAdmins) {
				return ErrLimitExceeded
			}
		}
		return s.conn(ctx).Create(tu).Error
	})
}

// Data rooms

func (s *store) CreateDataRoom(ctx context.Context, room *DataRoom) error {
	return s.conn(ctx).Create(room).Error
}

// CreateDataRoomWithinLimit runs the room-count check and the insert as one
// transactional unit.
func (s *store) CreateDataRoomWithinLimit(ctx context.Context, room *DataRoom, maxVDR int) error {
	return s.Transaction(ctx, func(ctx context.Context) error {
		if maxVDR >= 0 {
			count, err := s.CountDataRooms(ctx, room.TenantID)
			if err != nil {
				return err
			}
			if count >= int64(maxVDR) {
				return ErrLimitExceeded
			}
		}
		return s.conn(ctx).Create(room).Error
	})
}

func (s *store) GetDataRoom(ctx context.Context, id uint) (*DataRoom, error) {
	var room DataRoom
	if err := s.conn(ctx).First(&room, "id = ?", id).Error; err != nil {
		return nil, notFound(err)
	}
	return &room, nil
}

func (s *store) ListDataRooms(ctx context.Context, tenantID uint) ([]*DataRoom, error) {
	var rooms []*DataRoom
	err := s.conn(ctx).
		Where("tenant_id = ?", tenantID).
		Order("created_at asc").
		Find(&rooms).Error
	return rooms, err
}

func (s *store) CountDataRooms(ctx context.Context, tenantID uint) (int64, error) {
	var count int64
	err := s.conn(ctx).
		Model(&DataRoom{}).
		Where("tenant_id = ?", tenantID).
		Count(&count).Error
	return count, err
}

// Groups

func (s *store) CreateGroup(ctx context.Context, group *Group) error {
	return s.conn(ctx).Create(group).Error
}

func (s *store) GetGroup(ctx context.Context, id uint) (*Group, error) {
	var group Group
	if err := s.conn(ctx).First(&group, "id = ?", id).Error; err != nil {
		return nil, notFound(err)
	}
	return &group, nil
}

func (s *store) UpdateGroup(ctx context.Context, group *Group) error {
	return s.conn(ctx).Save(group).Error
}

func (s *store) DeleteGroup(ctx context.Context, id uint) error {
	return s.Transaction(ctx, func(ctx context.Context) error {
		conn := s.conn(ctx)
		if err := conn.Where("group_id = ?", id).Delete(&GroupMember{}).Error; err != nil {
			return err
		}
		if err := conn.Where("group_id = ?", id).Delete(&FolderGroupPermission{}).Error; err != nil {
			return err
		}
		if err := conn.Where("group_id = ?", id).Delete(&DocumentGroupPermission{}).Error; err != nil {
			return err
		}
		return conn.Delete(&Group{}, "id = ?", id).Error
	})
}

func (s *store) ListGroups(ctx context.Context, dataRoomID uint) ([]*Group, error) {
	var groups []*Group
	err := s.conn(ctx).
		Where("data_room_id = ?", dataRoomID).
		Order("created_at asc").
		Find(&groups).Error
	return groups, err
}

func (s *store) CountAdministratorGroups(ctx context.Context, dataRoomID uint) (int64, error) {
	var count int64
	err := s.conn(ctx).
		Model(&Group{}).
		Where("data_room_id = ? AND type = ?", dataRoomID, GroupAdministrator).
		Count(&count).Error
	return count, err
}

func (s *store) GetUserGroups(ctx context.Context, dataRoomID, userID uint) ([]*Group, error) {
	var groups []*Group
	err := s.conn(ctx).
		Joins("JOIN group_members ON group_members.group_id = groups.id").
		Where("groups.data_room_id = ? AND group_members.user_id = ?", dataRoomID, userID).
		Find(&groups).Error
	return groups, err
}

// Group members

func (s *store) AddGroupMember(ctx context.Context, member *GroupMember) error {
	return s.conn(ctx).Create(member).Error
}

func (s *store) RemoveGroupMember(ctx context.Context, groupID, userID uint) error {
	return s.conn(ctx).
		Where("group_id = ? AND user_id = ?", groupID, userID).
		Delete(&GroupMember{}).Error
}

func (s *store) ListGroupMembers(ctx context.Context, groupID uint) ([]*GroupMember, error) {
	var members []*GroupMember
	err := s.conn(ctx).
		Where("group_id = ?", groupID).
		Order("created_at asc").
		Find(&members).Error
	return members, err
}

// Folders and documents

func (s *store) CreateFolder(ctx context.Context, folder *Folder) error {
	return s.conn(ctx).Create(folder).Error
}

func (s *store) GetFolder(ctx context.Context, id uint) (*Folder, error) {
	var folder Folder
	if err := s.conn(ctx).First(&folder, "id = ?", id).Error; err != nil {
		return nil, notFound(err)
	}
	return &folder, nil
}

func (s *store) ListFolders(ctx context.Context, dataRoomID uint) ([]*Folder, error) {
	var folders []*Folder
	err := s.conn(ctx).
		Where("data_room_id = ? AND deleted_at IS NULL", dataRoomID).
		Order("created_at asc").
		Find(&folders).Error
	return folders, err
}

func (s *store) CreateDocument(ctx context.Context, doc *Document) error {
	return s.conn(ctx).Create(doc).Error
}

func (s *store) GetDocument(ctx context.Context, id uint) (*Document, error) {
	var doc Document
	if err := s.conn(ctx).First(&doc, "id = ?", id).Error; err != nil {
		return nil, notFound(err)
	}
	return &doc, nil
}

func (s *store) ListDocuments(ctx context.Context, dataRoomID uint) ([]*Document, error) {
	var docs []*Document
	err := s.conn(ctx).
		Where("data_room_id = ? AND deleted_at IS NULL", dataRoomID).
		Order("created_at asc").
		Find(&docs).Error
	return docs, err
}

// Recycle bin

func (s *store) SoftDeleteDocument(ctx context.Context, id, deletedBy uint) error {
	now := time.Now()
	return s.conn(ctx).
		Model(&Document{}).
		Where("id = ? AND deleted_at IS NULL", id).
		Updates(map[string]any{"deleted_at": now, "deleted_by_id": deletedBy}).Error
}

// SoftDeleteFolder marks the folder and its whole subtree so that deleted
// documents drop out of storage usage and listings together.
func (s *store) SoftDeleteFolder(ctx context.Context, id, deletedBy uint) error {
	return s.Transaction(ctx, func(ctx context.Context) error {
		ids, err := s.folderSubtree(ctx, id)
		if err != nil {
			return err
		}
		now := time.Now()
		conn := s.conn(ctx)
		if err := conn.Model(&Folder{}).
			Where("id IN ? AND deleted_at IS NULL", ids).
			Updates(map[string]any{"deleted_at": now, "deleted_by_id": deletedBy}).Error; err != nil {
			return err
		}
		return conn.Model(&Document{}).
			Where("folder_id IN ? AND deleted_at IS NULL", ids).
			Updates(map[string]any{"deleted_at": now, "deleted_by_id": deletedBy}).Error
	})
}

func (s *store) RestoreDocument(ctx context.Context, id uint) error {
	return s.conn(ctx).
		Model(&Document{}).
		Where("id = ?", id).
		Updates(map[string]any{"deleted_at": nil, "deleted_by_id": nil}).Error
}

func (s *store) RestoreFolder(ctx context.Context, id uint) error {
	return s.Transaction(ctx, func(ctx context.Context) error {
		ids, err := s.folderSubtree(ctx, id)
		if err != nil {
			return err
		}
		conn := s.conn(ctx)
		if err := conn.Model(&Folder{}).
			Where("id IN ?", ids).
			Updates(map[string]any{"deleted_at": nil, "deleted_by_id": nil}).Error; err != nil {
			return err
		}
		return conn.Model(&Document{}).
			Where("folder_id IN ?", ids).
			Updates(map[string]any{"deleted_at": nil, "deleted_by_id": nil}).Error
	})
}

func (s *store) PurgeDocument(ctx context.Context, id uint) error {
	return s.Transaction(ctx, func(ctx context.Context) error {
		conn := s.conn(ctx)
		if err := conn.Where("document_id = ?", id).Delete(&DocumentGroupPermission{}).Error; err != nil {
			return err
		}
		return conn.Delete(&Document{}, "id = ?", id).Error
	})
}

// PurgeFolder is irreversible and cascades through descendant folders and
// documents, including their permission rows.
func (s *store) PurgeFolder(ctx context.Context, id uint) error {
	return s.Transaction(ctx, func(ctx context.Context) error {
		ids, err := s.folderSubtree(ctx, id)
		if err != nil {
			return err
		}
		conn := s.conn(ctx)
		var docIDs []uint
		if err := conn.Model(&Document{}).
			Where("folder_id IN ?", ids).
			Pluck("id", &docIDs).Error; err != nil {
			return err
		}
		if len(docIDs) > 0 {
			if err := conn.Where("document_id IN ?", docIDs).Delete(&DocumentGroupPermission{}).Error; err != nil {
				return err
			}
			if err := conn.Where("id IN ?", docIDs).Delete(&Document{}).Error; err != nil {
				return err
			}
		}
		if err := conn.Where("folder_id IN ?", ids).Delete(&FolderGroupPermission{}).Error; err != nil {
			return err
		}
		return conn.Where("id IN ?", ids).Delete(&Folder{}).Error
	})
}

// folderSubtree collects the folder and all descendant folder IDs,
// level by level.
func (s *store) folderSubtree(ctx context.Context, id uint) ([]uint, error) {
	all := []uint{id}
	frontier := []uint{id}
	for len(frontier) > 0 {
		var children []uint
		err := s.conn(ctx).
			Model(&Folder{}).
			Where("parent_id IN ?", frontier).
			Pluck("id", &children).Error
		if err != nil {
			return nil, err
		}
		all = append(all, children...)
		frontier = children
	}
	return all, nil
}

func (s *store) ListDeletedFolders(ctx context.Context, dataRoomID uint) ([]*Folder, error) {
	var folders []*Folder
	err := s.conn(ctx).
		Where("data_room_id = ? AND deleted_at IS NOT NULL", dataRoomID).
		Order("deleted_at desc").
		Find(&folders).Error
	return folders, err
}

func (s *store) ListDeletedDocuments(ctx context.Context, dataRoomID uint) ([]*Document, error) {
	var docs []*Document
	err := s.conn(ctx).
		Where("data_room_id = ? AND deleted_at IS NOT NULL", dataRoomID).
		Order("deleted_at desc").
		Find(&docs).Error
	return docs, err
}

// Resource-scoped permissions

func (s *store) UpsertFolderPermission(ctx context.Context, perm *FolderGroupPermission) error {
	return s.conn(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "folder_id"}, {Name: "group_id"}},
		DoUpdates: clause.AssignmentColumns([]string{"can_view", "can_edit", "updated_at"}),
	}).Create(perm).Error
}

func (s *store) UpsertDocumentPermission(ctx context.Context, perm *DocumentGroupPermission) error {
	return s.conn(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "document_id"}, {Name: "group_id"}},
		DoUpdates: clause.AssignmentColumns([]string{"can_view", "can_edit", "updated_at"}),
	}).Create(perm).Error
}

func (s *store) DeleteFolderPermission(ctx context.Context, folderID, groupID uint) error {
	return s.conn(ctx).
		Where("folder_id = ? AND group_id = ?", folderID, groupID).
		Delete(&FolderGroupPermission{}).Error
}

func (s *store) DeleteDocumentPermission(ctx context.Context, documentID, groupID uint) error {
	return s.conn(ctx).
		Where("document_id = ? AND group_id = ?", documentID, groupID).
		Delete(&DocumentGroupPermission{}).Error
}

func (s *store) GetFolderPermissionsForGroups(ctx context.Context, folderID uint, groupIDs []uint) ([]*FolderGroupPermission, error) {
	if len(groupIDs) == 0 {
		return nil, nil
	}
	var perms []*FolderGroupPermission
	err := s.conn(ctx).
		Where("folder_id = ? AND group_id IN ?", folderID, groupIDs).
		Find(&perms).Error
	return perms, err
}

func (s *store) GetDocumentPermissionsForGroups(ctx context.Context, documentID uint, groupIDs []uint) ([]*DocumentGroupPermission, error) {
	if len(groupIDs) == 0 {
		return nil, nil
	}
	var perms []*DocumentGroupPermission
	err := s.conn(ctx).
		Where("document_id = ? AND group_id IN ?", documentID, groupIDs).
		Find(&perms).Error
	return perms, err
}

// Quota inputs

// SumDocumentSizeBytes sums the sizes of non-deleted documents across all of
// the tenant's data rooms.
func (s *store) SumDocumentSizeBytes(ctx context.Context, tenantID uint) (int64, error) {
	var total int64
	rooms := s.conn(ctx).
		Model(&DataRoom{}).
		Select("id").
		Where("tenant_id = ?", tenantID)
	err := s.conn(ctx).
		Model(&Document{}).
		Where("deleted_at IS NULL AND data_room_id IN (?)", rooms).
		Select("COALESCE(SUM(size_bytes), 0)").
		Scan(&total).Error
	return total, err
}

// Audit

func (s *store) SaveAuditLog(ctx context.Context, entry *AuditLog) error {
	return s.conn(ctx).Create(entry).Error
}

func (s *store) ListAuditLogs(ctx context.Context, tenantID uint, limit int) ([]*AuditLog, error) {
	if limit <= 0 {
		limit = 100
	}
	var logs []*AuditLog
	err := s.conn(ctx).
		Where("tenant_id = ?", tenantID).
		Order("created_at desc").
		Limit(limit).
		Find(&logs).Error
	return logs, err
}
