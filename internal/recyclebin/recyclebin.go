package recyclebin

import (
	"context"
	"errors"

	"github.com/clearvault/clearvault/internal/access"
	"github.com/clearvault/clearvault/internal/apiserver/database"
	"go.uber.org/zap"
)

// ErrAdministratorRequired is returned when a non-administrator attempts a
// recycle-bin operation. No document-level grant can satisfy this gate.
var ErrAdministratorRequired = errors.New("recycle bin access requires an administrator group")

// ErrNotInRecycleBin is returned when purging a target that was never
// soft-deleted. Permanent deletion always goes through the recycle bin.
var ErrNotInRecycleBin = errors.New("target is not in the recycle bin")

// Contents lists the soft-deleted items of one data room
type Contents struct {
	Folders   []*database.Folder   `json:"folders"`
	Documents []*database.Document `json:"documents"`
}

// Service gates and performs recycle-bin operations: listing, restoration
// and permanent deletion of soft-deleted folders and documents.
type Service struct {
	db        database.Database
	evaluator *access.Evaluator
	logger    *zap.Logger
}

// NewService creates a recycle-bin service
func NewService(db database.Database, evaluator *access.Evaluator, logger *zap.Logger) *Service {
	return &Service{
		db:        db,
		evaluator: evaluator,
		logger:    logger.Named("recyclebin"),
	}
}

// gate enforces administrator membership in the data room
func (s *Service) gate(ctx context.Context, userID, dataRoomID uint) error {
	ok, err := s.evaluator.CanAccessRecycleBin(ctx, userID, dataRoomID)
	if err != nil {
		return err
	}
	if !ok {
		return ErrAdministratorRequired
	}
	return nil
}

// List returns the soft-deleted folders and documents of a data room
func (s *Service) List(ctx context.Context, userID, dataRoomID uint) (*Contents, error) {
	if err := s.gate(ctx, userID, dataRoomID); err != nil {
		return nil, err
	}
	folders, err := s.db.ListDeletedFolders(ctx, dataRoomID)
	if err != nil {
		return nil, err
	}
	docs, err := s.db.ListDeletedDocuments(ctx, dataRoomID)
	if err != nil {
		return nil, err
	}
	return &Contents{Folders: folders, Documents: docs}, nil
}

// RestoreDocument clears deletedAt/deletedById on a soft-deleted document
func (s *Service) RestoreDocument(ctx context.Context, userID, documentID uint) error {
	doc, err := s.db.GetDocument(ctx, documentID)
	if err != nil {
		return err
	}
	if err := s.gate(ctx, userID, doc.DataRoomID); err != nil {
		return err
	}
	return s.db.RestoreDocument(ctx, documentID)
}

// RestoreFolder clears deletion marks on a folder and its subtree
func (s *Service) RestoreFolder(ctx context.Context, userID, folderID uint) error {
	folder, err := s.db.GetFolder(ctx, folderID)
	if err != nil {
		return err
	}
	if err := s.gate(ctx, userID, folder.DataRoomID); err != nil {
		return err
	}
	return s.db.RestoreFolder(ctx, folderID)
}

// PurgeDocument permanently deletes a soft-deleted document. Irreversible.
func (s *Service) PurgeDocument(ctx context.Context, userID, documentID uint) error {
	doc, err := s.db.GetDocument(ctx, documentID)
	if err != nil {
		return err
	}
	if err := s.gate(ctx, userID, doc.DataRoomID); err != nil {
		return err
	}
	if doc.DeletedAt == nil {
		return ErrNotInRecycleBin
	}
	return s.db.PurgeDocument(ctx, documentID)
}

// PurgeFolder permanently deletes a soft-deleted folder and cascades through
// its descendant folders and documents. Irreversible.
func (s *Service) PurgeFolder(ctx context.Context, userID, folderID uint) error {
	folder, err := s.db.GetFolder(ctx, folderID)
	if err != nil {
		return err
	}
	if err := s.gate(ctx, userID, folder.DataRoomID); err != nil {
		return err
	}
	if folder.DeletedAt == nil {
		return ErrNotInRecycleBin
	}
	return s.db.PurgeFolder(ctx, folderID)
}
