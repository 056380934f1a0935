package recyclebin

import (
	"context"
	"testing"

	"github.com/clearvault/clearvault/internal/access"
	"github.com/clearvault/clearvault/internal/apiserver/database"
	"github.com/clearvault/clearvault/internal/common/config"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

type binFixture struct {
	db      database.Database
	service *Service

	admin  *database.User
	member *database.User
	room   *database.DataRoom
	folder *database.Folder
	doc    *database.Document
}

func newBinFixture(t *testing.T) *binFixture {
	t.Helper()
	ctx := context.Background()

	db, err := database.NewSQLite(&config.DatabaseConfig{Type: "sqlite", DBName: ":memory:"})
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })

	f := &binFixture{db: db}
	f.service = NewService(db, access.NewEvaluator(db, zap.NewNop()), zap.NewNop())

	f.admin = &database.User{Username: "admin", Password: "x", Status: database.UserActive}
	f.member = &database.User{Username: "member", Password: "x", Status: database.UserActive}
	require.NoError(t, db.CreateUser(ctx, f.admin))
	require.NoError(t, db.CreateUser(ctx, f.member))

	f.room = &database.DataRoom{TenantID: 1, Name: "Room"}
	require.NoError(t, db.CreateDataRoom(ctx, f.room))

	adminGroup := &database.Group{DataRoomID: f.room.ID, Type: database.GroupAdministrator, Name: "Administrators"}
	memberGroup := &database.Group{DataRoomID: f.room.ID, Type: database.GroupUser, Name: "Buyers"}
	require.NoError(t, db.CreateGroup(ctx, adminGroup))
	require.NoError(t, db.CreateGroup(ctx, memberGroup))
	require.NoError(t, db.AddGroupMember(ctx, &database.GroupMember{GroupID: adminGroup.ID, UserID: f.admin.ID}))
	require.NoError(t, db.AddGroupMember(ctx, &database.GroupMember{GroupID: memberGroup.ID, UserID: f.member.ID}))

	f.folder = &database.Folder{DataRoomID: f.room.ID, Name: "Contracts"}
	require.NoError(t, db.CreateFolder(ctx, f.folder))
	f.doc = &database.Document{DataRoomID: f.room.ID, FolderID: &f.folder.ID, Name: "nda.pdf", SizeBytes: 10}
	require.NoError(t, db.CreateDocument(ctx, f.doc))

	return f
}

func TestService_ListRequiresAdmin(t *testing.T) {
	f := newBinFixture(t)
	ctx := context.Background()

	require.NoError(t, f.db.SoftDeleteDocument(ctx, f.doc.ID, f.admin.ID))

	_, err := f.service.List(ctx, f.member.ID, f.room.ID)
	assert.ErrorIs(t, err, ErrAdministratorRequired)

	contents, err := f.service.List(ctx, f.admin.ID, f.room.ID)
	require.NoError(t, err)
	require.Len(t, contents.Documents, 1)
	assert.Equal(t, f.doc.ID, contents.Documents[0].ID)
	assert.Empty(t, contents.Folders)
}

func TestService_RestoreDocument(t *testing.T) {
	f := newBinFixture(t)
	ctx := context.Background()

	require.NoError(t, f.db.SoftDeleteDocument(ctx, f.doc.ID, f.admin.ID))

	err := f.service.RestoreDocument(ctx, f.member.ID, f.doc.ID)
	assert.ErrorIs(t, err, ErrAdministratorRequired)

	require.NoError(t, f.service.RestoreDocument(ctx, f.admin.ID, f.doc.ID))

	doc, err := f.db.GetDocument(ctx, f.doc.ID)
	require.NoError(t, err)
	assert.Nil(t, doc.DeletedAt)
	assert.Nil(t, doc.DeletedByID)
}

func TestService_RestoreFolderSubtree(t *testing.T) {
	f := newBinFixture(t)
	ctx := context.Background()

	require.NoError(t, f.db.SoftDeleteFolder(ctx, f.folder.ID, f.admin.ID))

	// The document inside went down with the folder.
	deleted, err := f.db.ListDeletedDocuments(ctx, f.room.ID)
	require.NoError(t, err)
	require.Len(t, deleted, 1)

	require.NoError(t, f.service.RestoreFolder(ctx, f.admin.ID, f.folder.ID))

	folder, err := f.db.GetFolder(ctx, f.folder.ID)
	require.NoError(t, err)
	assert.Nil(t, folder.DeletedAt)

	doc, err := f.db.GetDocument(ctx, f.doc.ID)
	require.NoError(t, err)
	assert.Nil(t, doc.DeletedAt)
}

func TestService_PurgeIsPermanent(t *testing.T) {
	f := newBinFixture(t)
	ctx := context.Background()

	require.NoError(t, f.db.SoftDeleteFolder(ctx, f.folder.ID, f.admin.ID))

	err := f.service.PurgeFolder(ctx, f.member.ID, f.folder.ID)
	assert.ErrorIs(t, err, ErrAdministratorRequired)

	require.NoError(t, f.service.PurgeFolder(ctx, f.admin.ID, f.folder.ID))

	_, err = f.db.GetFolder(ctx, f.folder.ID)
	assert.ErrorIs(t, err, database.ErrNotFound)
	_, err = f.db.GetDocument(ctx, f.doc.ID)
	assert.ErrorIs(t, err, database.ErrNotFound)
}

func TestService_PurgeRequiresSoftDeletedTarget(t *testing.T) {
	f := newBinFixture(t)
	ctx := context.Background()

	err := f.service.PurgeDocument(ctx, f.admin.ID, f.doc.ID)
	assert.ErrorIs(t, err, ErrNotInRecycleBin)
	err = f.service.PurgeFolder(ctx, f.admin.ID, f.folder.ID)
	assert.ErrorIs(t, err, ErrNotInRecycleBin)

	// Both survived the rejected purges.
	_, err = f.db.GetDocument(ctx, f.doc.ID)
	require.NoError(t, err)
	_, err = f.db.GetFolder(ctx, f.folder.ID)
	require.NoError(t, err)

	require.NoError(t, f.db.SoftDeleteDocument(ctx, f.doc.ID, f.admin.ID))
	require.NoError(t, f.service.PurgeDocument(ctx, f.admin.ID, f.doc.ID))
}

func TestService_UnknownDataRoom(t *testing.T) {
	f := newBinFixture(t)
	ctx := context.Background()

	_, err := f.service.List(ctx, f.admin.ID, 9999)
	assert.ErrorIs(t, err, database.ErrNotFound)
}
