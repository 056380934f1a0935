package access

import (
	"context"
	"time"

	"github.com/clearvault/clearvault/internal/apiserver/database"
	"go.uber.org/zap"
)

// Evaluator answers "may this user perform this action on this resource".
// It is a pure read over the policy store: no side effects, no locking.
// Callers are responsible for audit logging the decisions it returns.
type Evaluator struct {
	db     database.Database
	logger *zap.Logger
	now    func() time.Time
}

// NewEvaluator creates an access evaluator over the policy store
func NewEvaluator(db database.Database, logger *zap.Logger) *Evaluator {
	return &Evaluator{
		db:     db,
		logger: logger.Named("access.evaluator"),
		now:    time.Now,
	}
}

// CanPerform decides whether the user may perform the action on the
// referenced resource. A deny is returned as a Decision; only a missing
// user/resource or a store failure is returned as an error.
func (e *Evaluator) CanPerform(ctx context.Context, userID uint, ref ResourceRef, action Action, caller Caller) (Decision, error) {
	target, err := e.resolveTarget(ctx, ref, action)
	if err != nil {
		return Decision{}, err
	}

	m, err := e.LoadMembership(ctx, target.dataRoomID, userID)
	if err != nil {
		return Decision{}, err
	}
	return e.decide(ctx, m, target, action, caller)
}

// CanPerformWith is CanPerform with a membership computed earlier in the
// same request. The membership must belong to the resource's data room.
func (e *Evaluator) CanPerformWith(ctx context.Context, m *Membership, ref ResourceRef, action Action, caller Caller) (Decision, error) {
	target, err := e.resolveTarget(ctx, ref, action)
	if err != nil {
		return Decision{}, err
	}
	return e.decide(ctx, m, target, action, caller)
}

// CanAccessRecycleBin gates listing, restoration and permanent deletion of
// soft-deleted items: administrators of the data room only.
func (e *Evaluator) CanAccessRecycleBin(ctx context.Context, userID, dataRoomID uint) (bool, error) {
	if _, err := e.db.GetDataRoom(ctx, dataRoomID); err != nil {
		return false, err
	}
	m, err := e.LoadMembership(ctx, dataRoomID, userID)
	if err != nil {
		return false, err
	}
	return m.Admin, nil
}

// target is a resolved resource reference
type target struct {
	ref        ResourceRef
	dataRoomID uint
	document   *database.Document
	folder     *database.Folder
}

// resolveTarget loads the resource and the data room owning it. Soft-deleted
// documents and folders are invisible outside the recycle-bin actions.
func (e *Evaluator) resolveTarget(ctx context.Context, ref ResourceRef, action Action) (*target, error) {
	t := &target{ref: ref}
	recycle := action == ActionRestore

	switch ref.Kind {
	case KindDocument:
		doc, err := e.db.GetDocument(ctx, ref.ID)
		if err != nil {
			return nil, err
		}
		if doc.DeletedAt != nil && !recycle {
			return nil, database.ErrNotFound
		}
		t.document = doc
		t.dataRoomID = doc.DataRoomID
	case KindFolder:
		folder, err := e.db.GetFolder(ctx, ref.ID)
		if err != nil {
			return nil, err
		}
		if folder.DeletedAt != nil && !recycle {
			return nil, database.ErrNotFound
		}
		t.folder = folder
		t.dataRoomID = folder.DataRoomID
	case KindDataRoom:
		room, err := e.db.GetDataRoom(ctx, ref.ID)
		if err != nil {
			return nil, err
		}
		t.dataRoomID = room.ID
	default:
		return nil, database.ErrNotFound
	}

	// The owning data room must itself exist.
	if ref.Kind != KindDataRoom {
		if _, err := e.db.GetDataRoom(ctx, t.dataRoomID); err != nil {
			return nil, err
		}
	}
	return t, nil
}

func (e *Evaluator) decide(ctx context.Context, m *Membership, t *target, action Action, caller Caller) (Decision, error) {
	if !m.Exists() {
		return Deny(DenyNoMembership), nil
	}

	user, err := e.db.GetUser(ctx, m.UserID)
	if err != nil {
		return Decision{}, err
	}

	// Account-level gates are necessary-but-not-sufficient and short-circuit
	// ahead of any group-capability check.
	if d, denied := e.accountGate(user, caller); denied {
		return d, nil
	}

	// Recycle-bin actions are administrator-only, a hard override that no
	// CUSTOM-group grant can satisfy.
	if action == ActionDelete || action == ActionRestore {
		if m.Admin {
			return Allow(), nil
		}
		return Deny(DenyAdministratorRequired), nil
	}

	if c, ok := capabilityFor(action); ok {
		if m.Has(c) {
			return Allow(), nil
		}
		return Deny(DenyInsufficientCapability), nil
	}

	// Resource-scoped VIEW/EDIT. Administrators implicitly see everything in
	// their data room.
	if m.Admin {
		return Allow(), nil
	}
	return e.walkResource(ctx, m, t, action)
}

// accountGate applies the per-user constraints evaluated independently of
// group membership. Any violation denies regardless of group rights.
func (e *Evaluator) accountGate(user *database.User, caller Caller) (Decision, bool) {
	if user.AccessType == database.AccessLimited {
		now := e.now()
		if user.AccessStartAt != nil && now.Before(*user.AccessStartAt) {
			return Deny(DenyAccessWindowExpired), true
		}
		if user.AccessEndAt != nil && now.After(*user.AccessEndAt) {
			return Deny(DenyAccessWindowExpired), true
		}
	}
	if ips := user.AllowedIPList(); len(ips) > 0 {
		allowed := false
		for _, ip := range ips {
			if ip == caller.IP {
				allowed = true
				break
			}
		}
		if !allowed {
			return Deny(DenyIPNotAllowed), true
		}
	}
	if user.Require2FA && !caller.TwoFactorVerified {
		return Deny(DenyTwoFactorRequired), true
	}
	if user.Status != database.UserActive {
		return Deny(DenyAccountInactive), true
	}
	return Decision{}, false
}

// walkResource resolves the most specific applicable grant by walking from
// the resource upward through its folder ancestry. The presence of any entry
// for the user's groups at a level halts the walk: the closest explicit
// grant wins, and ties at one level resolve by logical OR. Reaching the
// data-room root without an entry is a deny.
func (e *Evaluator) walkResource(ctx context.Context, m *Membership, t *target, action Action) (Decision, error) {
	var parent *uint

	switch t.ref.Kind {
	case KindDocument:
		perms, err := e.db.GetDocumentPermissionsForGroups(ctx, t.document.ID, m.GroupIDs)
		if err != nil {
			return Decision{}, err
		}
		if len(perms) > 0 {
			for _, p := range perms {
				if action == ActionView && p.CanView || action == ActionEdit && p.CanEdit {
					return Allow(), nil
				}
			}
			return Deny(DenyNoResourceGrant), nil
		}
		parent = t.document.FolderID
	case KindFolder:
		id := t.folder.ID
		parent = &id
	default:
		// A data room has no permission entries of its own; non-admin
		// members fall through to the default deny.
		return Deny(DenyNoResourceGrant), nil
	}

	for parent != nil {
		perms, err := e.db.GetFolderPermissionsForGroups(ctx, *parent, m.GroupIDs)
		if err != nil {
			return Decision{}, err
		}
		if len(perms) > 0 {
			for _, p := range perms {
				if action == ActionView && p.CanView || action == ActionEdit && p.CanEdit {
					return Allow(), nil
				}
			}
			return Deny(DenyNoResourceGrant), nil
		}
		folder, err := e.db.GetFolder(ctx, *parent)
		if err != nil {
			return Decision{}, err
		}
		parent = folder.ParentID
	}

	return Deny(DenyNoResourceGrant), nil
}
