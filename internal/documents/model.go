package documents

import (
	"strings"
)

// Document status values.
const (
	StatusActive  = "active"
	StatusDeleted = "deleted"
)

// Screenplay models the persisted document row. Collaborators are stored as
// a comma-separated list; SQLite has no array column and the set stays tiny.
type Screenplay struct {
	ID               string `gorm:"column:id;primaryKey;size:190;not null"`
	OwnerID          string `gorm:"column:owner_id;size:190;not null;index:idx_screenplays_owner_updated,priority:1"`
	Title            string `gorm:"column:title;type:text;not null;default:''"`
	Author           string `gorm:"column:author;type:text;not null;default:''"`
	Content          string `gorm:"column:content;type:text;not null;default:''"`
	Version          int64  `gorm:"column:version;not null;default:1"`
	Status           string `gorm:"column:status;size:32;not null;default:'active'"`
	Collaborators    string `gorm:"column:collaborators;type:text;not null;default:''"`
	LastEditedBy     string `gorm:"column:last_edited_by;size:190;not null;default:''"`
	CreatedAtSeconds int64  `gorm:"column:created_at_s;not null"`
	UpdatedAtSeconds int64  `gorm:"column:updated_at_s;not null;index:idx_screenplays_owner_updated,priority:2"`
}

// TableName provides the explicit table binding for GORM.
func (Screenplay) TableName() string {
	return "screenplays"
}

func (s Screenplay) collaboratorList() []string {
	if s.Collaborators == "" {
		return nil
	}
	parts := strings.Split(s.Collaborators, ",")
	collaborators := make([]string, 0, len(parts))
	for _, part := range parts {
		if trimmed := strings.TrimSpace(part); trimmed != "" {
			collaborators = append(collaborators, trimmed)
		}
	}
	return collaborators
}

func (s Screenplay) hasCollaborator(userID string) bool {
	for _, collaborator := range s.collaboratorList() {
		if collaborator == userID {
			return true
		}
	}
	return false
}

func joinCollaborators(collaborators []string) string {
	cleaned := make([]string, 0, len(collaborators))
	for _, collaborator := range collaborators {
		if trimmed := strings.TrimSpace(collaborator); trimmed != "" {
			cleaned = append(cleaned, trimmed)
		}
	}
	return strings.Join(cleaned, ",")
}

// Snapshot is the wire-facing read model for a screenplay.
type Snapshot struct {
	ID               string   `json:"id"`
	Title            string   `json:"title"`
	Author           string   `json:"author"`
	Content          string   `json:"content"`
	Version          int64    `json:"version"`
	Status           string   `json:"status"`
	Collaborators    []string `json:"collaborators,omitempty"`
	LastEditedBy     string   `json:"last_edited_by,omitempty"`
	UpdatedAtSeconds int64    `json:"updated_at_s"`
}

func snapshotOf(record Screenplay) Snapshot {
	return Snapshot{
		ID:               record.ID,
		Title:            record.Title,
		Author:           record.Author,
		Content:          record.Content,
		Version:          record.Version,
		Status:           record.Status,
		Collaborators:    record.collaboratorList(),
		LastEditedBy:     record.LastEditedBy,
		UpdatedAtSeconds: record.UpdatedAtSeconds,
	}
}

// CreateInput describes a new screenplay to persist.
type CreateInput struct {
	Title   string
	Author  string
	Content string
}

// UpdateInput describes a write against an existing screenplay. A zero
// Version skips the optimistic check; Force overwrites regardless.
type UpdateInput struct {
	ID      string
	Title   string
	Author  string
	Content string
	Version int64
	Force   bool
}
