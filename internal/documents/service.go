package documents

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

var (
	errMissingDatabase   = errors.New("database handle is required")
	errMissingIDProvider = errors.New("id provider is required")
	noOpLogger           = zap.NewNop()

	// ErrNotFound indicates the screenplay id does not resolve.
	ErrNotFound = errors.New("documents: not found")
	// ErrPermissionDenied indicates the caller is neither owner nor collaborator.
	ErrPermissionDenied = errors.New("documents: permission denied")
	// ErrVersionConflict indicates an optimistic version check failed.
	ErrVersionConflict = errors.New("documents: version conflict")
	// ErrDeleted indicates the screenplay was soft-deleted.
	ErrDeleted = errors.New("documents: deleted")
)

// ServiceError wraps a failure with a dotted operation code.
type ServiceError struct {
	code string
	err  error
}

func (e *ServiceError) Error() string {
	if e.err == nil {
		return e.code
	}
	return fmt.Sprintf("%s: %v", e.code, e.err)
}

func (e *ServiceError) Unwrap() error {
	return e.err
}

// Code returns the dotted operation code.
func (e *ServiceError) Code() string {
	return e.code
}

const (
	opServiceNew = "documents.service.new"
	opCreate     = "documents.create"
	opGet        = "documents.get"
	opUpdate     = "documents.update"
	opList       = "documents.list"
	opDelete     = "documents.delete"
	opShare      = "documents.share"
)

func newServiceError(operation, reason string, cause error) error {
	code := fmt.Sprintf("%s.%s", operation, reason)
	return &ServiceError{code: code, err: cause}
}

// IDProvider mints identifiers for new screenplays.
type IDProvider interface {
	NewID() (string, error)
}

// UUIDProvider issues random UUID identifiers.
type UUIDProvider struct{}

// NewUUIDProvider constructs a UUIDProvider.
func NewUUIDProvider() UUIDProvider {
	return UUIDProvider{}
}

// NewID returns a fresh UUID string.
func (UUIDProvider) NewID() (string, error) {
	id, err := uuid.NewRandom()
	if err != nil {
		return "", err
	}
	return id.String(), nil
}

// ServiceConfig configures the screenplay service.
type ServiceConfig struct {
	Database   *gorm.DB
	Clock      func() time.Time
	IDProvider IDProvider
	Logger     *zap.Logger
}

// Service owns screenplay persistence for the reference backend: ownership
// and collaborator checks, optimistic versioning with forced overwrite, soft
// deletion, and recency listing.
type Service struct {
	db         *gorm.DB
	clock      func() time.Time
	idProvider IDProvider
	logger     *zap.Logger
}

// NewService validates the configuration and returns a Service.
func NewService(cfg ServiceConfig) (*Service, error) {
	if cfg.Database == nil {
		return nil, newServiceError(opServiceNew, "missing_database", errMissingDatabase)
	}
	if cfg.IDProvider == nil {
		return nil, newServiceError(opServiceNew, "missing_id_provider", errMissingIDProvider)
	}

	clock := cfg.Clock
	if clock == nil {
		clock = time.Now
	}
	logger := cfg.Logger
	if logger == nil {
		logger = noOpLogger
	}

	return &Service{
		db:         cfg.Database,
		clock:      clock,
		idProvider: cfg.IDProvider,
		logger:     logger,
	}, nil
}

// Create persists a new screenplay owned by userID.
func (s *Service) Create(ctx context.Context, userID string, input CreateInput) (Snapshot, error) {
	if strings.TrimSpace(userID) == "" {
		return Snapshot{}, newServiceError(opCreate, "missing_user", nil)
	}

	id, err := s.idProvider.NewID()
	if err != nil {
		s.logError(opCreate, "id_mint_failed", err)
		return Snapshot{}, newServiceError(opCreate, "id_mint_failed", err)
	}

	now := s.clock().UTC().Unix()
	record := Screenplay{
		ID:               id,
		OwnerID:          userID,
		Title:            input.Title,
		Author:           input.Author,
		Content:          input.Content,
		Version:          1,
		Status:           StatusActive,
		LastEditedBy:     userID,
		CreatedAtSeconds: now,
		UpdatedAtSeconds: now,
	}
	if err := s.db.WithContext(ctx).Create(&record).Error; err != nil {
		s.logError(opCreate, "insert_failed", err, zap.String("user_id", userID))
		return Snapshot{}, newServiceError(opCreate, "insert_failed", err)
	}
	return snapshotOf(record), nil
}

// Get returns a screenplay visible to userID. Soft-deleted records surface
// ErrDeleted so callers can distinguish them from missing ones.
func (s *Service) Get(ctx context.Context, userID, documentID string) (Snapshot, error) {
	record, err := s.fetch(ctx, s.db, documentID)
	if err != nil {
		return Snapshot{}, newServiceError(opGet, "fetch_failed", err)
	}
	if !s.canRead(record, userID) {
		return Snapshot{}, newServiceError(opGet, "forbidden", ErrPermissionDenied)
	}
	if record.Status == StatusDeleted {
		return Snapshot{}, newServiceError(opGet, "deleted", ErrDeleted)
	}
	return snapshotOf(record), nil
}

// Update writes screenplay content. With a non-zero Version and no Force
// flag the write only lands when the stored version still matches; Force
// implements the last-write-wins overwrite.
func (s *Service) Update(ctx context.Context, userID string, input UpdateInput) (Snapshot, error) {
	var updated Screenplay
	txErr := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		record, err := s.fetchForUpdate(tx, input.ID)
		if err != nil {
			return err
		}
		if !s.canRead(record, userID) {
			return ErrPermissionDenied
		}
		if record.Status == StatusDeleted {
			return ErrDeleted
		}
		if !input.Force && input.Version > 0 && input.Version != record.Version {
			return ErrVersionConflict
		}

		record.Title = input.Title
		record.Author = input.Author
		record.Content = input.Content
		record.Version++
		record.LastEditedBy = userID
		record.UpdatedAtSeconds = s.clock().UTC().Unix()
		if err := tx.Save(&record).Error; err != nil {
			return err
		}
		updated = record
		return nil
	})
	if txErr != nil {
		if isDomainError(txErr) {
			return Snapshot{}, newServiceError(opUpdate, "rejected", txErr)
		}
		s.logError(opUpdate, "write_failed", txErr,
			zap.String("user_id", userID), zap.String("document_id", input.ID))
		return Snapshot{}, newServiceError(opUpdate, "write_failed", txErr)
	}
	return snapshotOf(updated), nil
}

// List returns the caller's active screenplays, most recently updated first.
func (s *Service) List(ctx context.Context, userID string) ([]Snapshot, error) {
	var records []Screenplay
	err := s.db.WithContext(ctx).
		Where("status = ?", StatusActive).
		Where(
			s.db.Where("owner_id = ?", userID).
				Or("(',' || collaborators || ',') LIKE ?", "%,"+userID+",%"),
		).
		Order("updated_at_s DESC").
		Find(&records).Error
	if err != nil {
		s.logError(opList, "query_failed", err, zap.String("user_id", userID))
		return nil, newServiceError(opList, "query_failed", err)
	}

	snapshots := make([]Snapshot, 0, len(records))
	for _, record := range records {
		snapshots = append(snapshots, snapshotOf(record))
	}
	return snapshots, nil
}

// Delete soft-deletes a screenplay. Only the owner may delete.
func (s *Service) Delete(ctx context.Context, userID, documentID string) error {
	txErr := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		record, err := s.fetchForUpdate(tx, documentID)
		if err != nil {
			return err
		}
		if record.OwnerID != userID {
			return ErrPermissionDenied
		}
		if record.Status == StatusDeleted {
			return nil
		}
		record.Status = StatusDeleted
		record.UpdatedAtSeconds = s.clock().UTC().Unix()
		return tx.Save(&record).Error
	})
	if txErr != nil {
		if isDomainError(txErr) {
			return newServiceError(opDelete, "rejected", txErr)
		}
		s.logError(opDelete, "write_failed", txErr,
			zap.String("user_id", userID), zap.String("document_id", documentID))
		return newServiceError(opDelete, "write_failed", txErr)
	}
	return nil
}

// Share replaces the collaborator list. Only the owner may share.
func (s *Service) Share(ctx context.Context, userID, documentID string, collaborators []string) (Snapshot, error) {
	var updated Screenplay
	txErr := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		record, err := s.fetchForUpdate(tx, documentID)
		if err != nil {
			return err
		}
		if record.OwnerID != userID {
			return ErrPermissionDenied
		}
		if record.Status == StatusDeleted {
			return ErrDeleted
		}
		record.Collaborators = joinCollaborators(collaborators)
		record.UpdatedAtSeconds = s.clock().UTC().Unix()
		if err := tx.Save(&record).Error; err != nil {
			return err
		}
		updated = record
		return nil
	})
	if txErr != nil {
		if isDomainError(txErr) {
			return Snapshot{}, newServiceError(opShare, "rejected", txErr)
		}
		s.logError(opShare, "write_failed", txErr,
			zap.String("user_id", userID), zap.String("document_id", documentID))
		return Snapshot{}, newServiceError(opShare, "write_failed", txErr)
	}
	return snapshotOf(updated), nil
}

func (s *Service) fetch(ctx context.Context, db *gorm.DB, documentID string) (Screenplay, error) {
	var record Screenplay
	err := db.WithContext(ctx).Where("id = ?", documentID).Take(&record).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return Screenplay{}, ErrNotFound
	}
	if err != nil {
		return Screenplay{}, err
	}
	return record, nil
}

func (s *Service) fetchForUpdate(tx *gorm.DB, documentID string) (Screenplay, error) {
	var record Screenplay
	err := tx.Clauses(clause.Locking{Strength: "UPDATE"}).
		Where("id = ?", documentID).
		Take(&record).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return Screenplay{}, ErrNotFound
	}
	if err != nil {
		return Screenplay{}, err
	}
	return record, nil
}

func (s *Service) canRead(record Screenplay, userID string) bool {
	return record.OwnerID == userID || record.hasCollaborator(userID)
}

func isDomainError(err error) bool {
	return errors.Is(err, ErrNotFound) ||
		errors.Is(err, ErrPermissionDenied) ||
		errors.Is(err, ErrVersionConflict) ||
		errors.Is(err, ErrDeleted)
}

func (s *Service) logError(operation, reason string, err error, fields ...zap.Field) {
	attrs := []zap.Field{
		zap.String("operation", operation),
		zap.String("reason", reason),
	}
	if err != nil {
		attrs = append(attrs, zap.Error(err))
	}
	attrs = append(attrs, fields...)
	s.logger.Error("documents service error", attrs...)
}
