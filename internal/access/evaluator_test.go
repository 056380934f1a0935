package access

import (
	"context"
	"testing"
	"time"

	"github.com/clearvault/clearvault/internal/apiserver/database"
	"github.com/clearvault/clearvault/internal/common/config"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

// fixture is a data room with one administrator and one plain member,
// plus a folder tree: root -> child, with a document in each.
type fixture struct {
	db        database.Database
	evaluator *Evaluator

	admin  *database.User
	member *database.User

	room        *database.DataRoom
	adminGroup  *database.Group
	memberGroup *database.Group

	rootFolder  *database.Folder
	childFolder *database.Folder
	rootDoc     *database.Document
	childDoc    *database.Document
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	ctx := context.Background()

	db, err := database.NewSQLite(&config.DatabaseConfig{Type: "sqlite", DBName: ":memory:"})
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })

	f := &fixture{db: db, evaluator: NewEvaluator(db, zap.NewNop())}

	f.admin = &database.User{Username: "admin", Password: "x", Status: database.UserActive, AccessType: database.AccessUnlimited}
	f.member = &database.User{Username: "member", Password: "x", Status: database.UserActive, AccessType: database.AccessUnlimited}
	require.NoError(t, db.CreateUser(ctx, f.admin))
	require.NoError(t, db.CreateUser(ctx, f.member))

	f.room = &database.DataRoom{TenantID: 1, Name: "Project Falcon"}
	require.NoError(t, db.CreateDataRoom(ctx, f.room))

	f.adminGroup = &database.Group{DataRoomID: f.room.ID, Type: database.GroupAdministrator, Name: "Administrators"}
	f.memberGroup = &database.Group{DataRoomID: f.room.ID, Type: database.GroupUser, Name: "Buyers"}
	require.NoError(t, db.CreateGroup(ctx, f.adminGroup))
	require.NoError(t, db.CreateGroup(ctx, f.memberGroup))
	require.NoError(t, db.AddGroupMember(ctx, &database.GroupMember{GroupID: f.adminGroup.ID, UserID: f.admin.ID}))
	require.NoError(t, db.AddGroupMember(ctx, &database.GroupMember{GroupID: f.memberGroup.ID, UserID: f.member.ID}))

	f.rootFolder = &database.Folder{DataRoomID: f.room.ID, Name: "Financials"}
	require.NoError(t, db.CreateFolder(ctx, f.rootFolder))
	f.childFolder = &database.Folder{DataRoomID: f.room.ID, ParentID: &f.rootFolder.ID, Name: "Q3"}
	require.NoError(t, db.CreateFolder(ctx, f.childFolder))

	f.rootDoc = &database.Document{DataRoomID: f.room.ID, FolderID: &f.rootFolder.ID, Name: "summary.pdf", SizeBytes: 100}
	require.NoError(t, db.CreateDocument(ctx, f.rootDoc))
	f.childDoc = &database.Document{DataRoomID: f.room.ID, FolderID: &f.childFolder.ID, Name: "ledger.xlsx", SizeBytes: 200}
	require.NoError(t, db.CreateDocument(ctx, f.childDoc))

	return f
}

func docRef(id uint) ResourceRef    { return ResourceRef{Kind: KindDocument, ID: id} }
func folderRef(id uint) ResourceRef { return ResourceRef{Kind: KindFolder, ID: id} }

func TestEvaluator_AdminSeesEverything(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	for _, action := range []Action{ActionView, ActionEdit, ActionDelete} {
		d, err := f.evaluator.CanPerform(ctx, f.admin.ID, docRef(f.childDoc.ID), action, Caller{})
		require.NoError(t, err)
		assert.True(t, d.Allowed, "admin should be allowed %s", action)
	}
}

func TestEvaluator_NoMembership(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	outsider := &database.User{Username: "outsider", Password: "x", Status: database.UserActive, AccessType: database.AccessUnlimited}
	require.NoError(t, f.db.CreateUser(ctx, outsider))

	d, err := f.evaluator.CanPerform(ctx, outsider.ID, docRef(f.rootDoc.ID), ActionView, Caller{})
	require.NoError(t, err)
	assert.False(t, d.Allowed)
	assert.Equal(t, DenyNoMembership, d.Reason)
}

func TestEvaluator_DefaultDenyWithoutGrant(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	d, err := f.evaluator.CanPerform(ctx, f.member.ID, docRef(f.rootDoc.ID), ActionView, Caller{})
	require.NoError(t, err)
	assert.False(t, d.Allowed)
	assert.Equal(t, DenyNoResourceGrant, d.Reason)
}

func TestEvaluator_InheritedFolderGrant(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	// Grant on the root folder: the member can view the document two levels
	// down through folder inheritance.
	require.NoError(t, f.db.UpsertFolderPermission(ctx, &database.FolderGroupPermission{
		FolderID: f.rootFolder.ID, GroupID: f.memberGroup.ID, CanView: true,
	}))

	d, err := f.evaluator.CanPerform(ctx, f.member.ID, docRef(f.childDoc.ID), ActionView, Caller{})
	require.NoError(t, err)
	assert.True(t, d.Allowed)

	// The grant is view-only; EDIT still denies.
	d, err = f.evaluator.CanPerform(ctx, f.member.ID, docRef(f.childDoc.ID), ActionEdit, Caller{})
	require.NoError(t, err)
	assert.False(t, d.Allowed)
	assert.Equal(t, DenyNoResourceGrant, d.Reason)
}

func TestEvaluator_ClosestGrantWins(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	// Ancestor allows, but the closer grant on the child folder revokes view.
	// The walk must halt at the child folder.
	require.NoError(t, f.db.UpsertFolderPermission(ctx, &database.FolderGroupPermission{
		FolderID: f.rootFolder.ID, GroupID: f.memberGroup.ID, CanView: true,
	}))
	require.NoError(t, f.db.UpsertFolderPermission(ctx, &database.FolderGroupPermission{
		FolderID: f.childFolder.ID, GroupID: f.memberGroup.ID, CanView: false,
	}))

	d, err := f.evaluator.CanPerform(ctx, f.member.ID, docRef(f.childDoc.ID), ActionView, Caller{})
	require.NoError(t, err)
	assert.False(t, d.Allowed)
	assert.Equal(t, DenyNoResourceGrant, d.Reason)

	// An explicit entry on the document itself beats both folders.
	require.NoError(t, f.db.UpsertDocumentPermission(ctx, &database.DocumentGroupPermission{
		DocumentID: f.childDoc.ID, GroupID: f.memberGroup.ID, CanView: true,
	}))
	d, err = f.evaluator.CanPerform(ctx, f.member.ID, docRef(f.childDoc.ID), ActionView, Caller{})
	require.NoError(t, err)
	assert.True(t, d.Allowed)
}

func TestEvaluator_GrantsUnionAcrossGroups(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	second := &database.Group{DataRoomID: f.room.ID, Type: database.GroupCustom, Name: "Advisors"}
	require.NoError(t, f.db.CreateGroup(ctx, second))
	require.NoError(t, f.db.AddGroupMember(ctx, &database.GroupMember{GroupID: second.ID, UserID: f.member.ID}))

	// One group revokes view, the other grants it at the same level: OR wins.
	require.NoError(t, f.db.UpsertFolderPermission(ctx, &database.FolderGroupPermission{
		FolderID: f.rootFolder.ID, GroupID: f.memberGroup.ID, CanView: false,
	}))
	require.NoError(t, f.db.UpsertFolderPermission(ctx, &database.FolderGroupPermission{
		FolderID: f.rootFolder.ID, GroupID: second.ID, CanView: true,
	}))

	d, err := f.evaluator.CanPerform(ctx, f.member.ID, folderRef(f.rootFolder.ID), ActionView, Caller{})
	require.NoError(t, err)
	assert.True(t, d.Allowed)
}

func TestEvaluator_AccountGatesPrecedeAuthorization(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	// Even an administrator is shut out when the account access window has
	// passed; the deny reason names the gate, not the missing grant.
	past := time.Now().Add(-time.Hour)
	f.admin.AccessType = database.AccessLimited
	f.admin.AccessEndAt = &past
	require.NoError(t, f.db.UpdateUser(ctx, f.admin))

	d, err := f.evaluator.CanPerform(ctx, f.admin.ID, docRef(f.rootDoc.ID), ActionView, Caller{})
	require.NoError(t, err)
	assert.False(t, d.Allowed)
	assert.Equal(t, DenyAccessWindowExpired, d.Reason)
}

func TestEvaluator_AccessWindowNotYetStarted(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	future := time.Now().Add(time.Hour)
	f.member.AccessType = database.AccessLimited
	f.member.AccessStartAt = &future
	require.NoError(t, f.db.UpdateUser(ctx, f.member))

	d, err := f.evaluator.CanPerform(ctx, f.member.ID, docRef(f.rootDoc.ID), ActionView, Caller{})
	require.NoError(t, err)
	assert.False(t, d.Allowed)
	assert.Equal(t, DenyAccessWindowExpired, d.Reason)
}

func TestEvaluator_IPAllowList(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	f.admin.AllowedIPs = "10.0.0.1, 10.0.0.2"
	require.NoError(t, f.db.UpdateUser(ctx, f.admin))

	d, err := f.evaluator.CanPerform(ctx, f.admin.ID, docRef(f.rootDoc.ID), ActionView, Caller{IP: "192.168.1.5"})
	require.NoError(t, err)
	assert.False(t, d.Allowed)
	assert.Equal(t, DenyIPNotAllowed, d.Reason)

	d, err = f.evaluator.CanPerform(ctx, f.admin.ID, docRef(f.rootDoc.ID), ActionView, Caller{IP: "10.0.0.2"})
	require.NoError(t, err)
	assert.True(t, d.Allowed)
}

func TestEvaluator_TwoFactorGate(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	f.admin.Require2FA = true
	require.NoError(t, f.db.UpdateUser(ctx, f.admin))

	d, err := f.evaluator.CanPerform(ctx, f.admin.ID, docRef(f.rootDoc.ID), ActionView, Caller{})
	require.NoError(t, err)
	assert.False(t, d.Allowed)
	assert.Equal(t, DenyTwoFactorRequired, d.Reason)

	d, err = f.evaluator.CanPerform(ctx, f.admin.ID, docRef(f.rootDoc.ID), ActionView, Caller{TwoFactorVerified: true})
	require.NoError(t, err)
	assert.True(t, d.Allowed)
}

func TestEvaluator_InactiveAccount(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	f.admin.Status = database.UserInactive
	require.NoError(t, f.db.UpdateUser(ctx, f.admin))

	d, err := f.evaluator.CanPerform(ctx, f.admin.ID, docRef(f.rootDoc.ID), ActionView, Caller{})
	require.NoError(t, err)
	assert.False(t, d.Allowed)
	assert.Equal(t, DenyAccountInactive, d.Reason)
}

func TestEvaluator_CapabilityActions(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	// A USER group without the flag cannot manage users, regardless of any
	// document grants it might hold.
	d, err := f.evaluator.CanPerform(ctx, f.member.ID, ResourceRef{Kind: KindDataRoom, ID: f.room.ID}, ActionManageUsers, Caller{})
	require.NoError(t, err)
	assert.False(t, d.Allowed)
	assert.Equal(t, DenyInsufficientCapability, d.Reason)

	f.memberGroup.CanManageUsers = true
	require.NoError(t, f.db.UpdateGroup(ctx, f.memberGroup))

	d, err = f.evaluator.CanPerform(ctx, f.member.ID, ResourceRef{Kind: KindDataRoom, ID: f.room.ID}, ActionManageUsers, Caller{})
	require.NoError(t, err)
	assert.True(t, d.Allowed)

	// Administrators hold every capability implicitly.
	d, err = f.evaluator.CanPerform(ctx, f.admin.ID, ResourceRef{Kind: KindDataRoom, ID: f.room.ID}, ActionViewActivity, Caller{})
	require.NoError(t, err)
	assert.True(t, d.Allowed)
}

func TestEvaluator_RecycleBinActionsAdminOnly(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	// Full grants on the document do not unlock DELETE for a non-admin.
	require.NoError(t, f.db.UpsertDocumentPermission(ctx, &database.DocumentGroupPermission{
		DocumentID: f.rootDoc.ID, GroupID: f.memberGroup.ID, CanView: true, CanEdit: true,
	}))

	d, err := f.evaluator.CanPerform(ctx, f.member.ID, docRef(f.rootDoc.ID), ActionDelete, Caller{})
	require.NoError(t, err)
	assert.False(t, d.Allowed)
	assert.Equal(t, DenyAdministratorRequired, d.Reason)

	require.NoError(t, f.db.SoftDeleteDocument(ctx, f.rootDoc.ID, f.admin.ID))

	d, err = f.evaluator.CanPerform(ctx, f.member.ID, docRef(f.rootDoc.ID), ActionRestore, Caller{})
	require.NoError(t, err)
	assert.False(t, d.Allowed)
	assert.Equal(t, DenyAdministratorRequired, d.Reason)

	d, err = f.evaluator.CanPerform(ctx, f.admin.ID, docRef(f.rootDoc.ID), ActionRestore, Caller{})
	require.NoError(t, err)
	assert.True(t, d.Allowed)
}

func TestEvaluator_SoftDeletedInvisible(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	require.NoError(t, f.db.SoftDeleteDocument(ctx, f.rootDoc.ID, f.admin.ID))

	_, err := f.evaluator.CanPerform(ctx, f.admin.ID, docRef(f.rootDoc.ID), ActionView, Caller{})
	assert.ErrorIs(t, err, database.ErrNotFound)
}

func TestEvaluator_UnknownResource(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	_, err := f.evaluator.CanPerform(ctx, f.admin.ID, docRef(9999), ActionView, Caller{})
	assert.ErrorIs(t, err, database.ErrNotFound)
}

func TestEvaluator_CanAccessRecycleBin(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	ok, err := f.evaluator.CanAccessRecycleBin(ctx, f.admin.ID, f.room.ID)
	require.NoError(t, err)
	assert.True(t, ok)

	ok, err = f.evaluator.CanAccessRecycleBin(ctx, f.member.ID, f.room.ID)
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestEvaluator_CanPerformWithReusesMembership(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	m, err := f.evaluator.LoadMembership(ctx, f.room.ID, f.admin.ID)
	require.NoError(t, err)
	require.True(t, m.Exists())
	assert.True(t, m.Admin)

	// Several checks against one loaded membership, as a request handler
	// batching decisions would do.
	for _, ref := range []ResourceRef{docRef(f.rootDoc.ID), docRef(f.childDoc.ID), folderRef(f.rootFolder.ID)} {
		d, err := f.evaluator.CanPerformWith(ctx, m, ref, ActionView, Caller{})
		require.NoError(t, err)
		assert.True(t, d.Allowed, "ref %s", ref)
	}
}

func TestMembership_CapabilityUnion(t *testing.T) {
	m := &Membership{GroupIDs: []uint{1, 2}, Caps: CapViewChecklist | CapViewActivity}
	assert.True(t, m.Has(CapViewChecklist))
	assert.False(t, m.Has(CapManageUsers))

	m.Admin = true
	assert.True(t, m.Has(CapManageUsers), "administrators hold every capability")
}
