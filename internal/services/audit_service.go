package services

import (
	"context"
	"encoding/json"

	"gorm.io/gorm"

	apperrors "orgfolio/internal/errors"
	"orgfolio/internal/logger"
	"orgfolio/internal/models"
)

// Audit actions.
const (
	AuditCreatePortfolio = "CREATE_PORTFOLIO"
	AuditUpdatePortfolio = "UPDATE_PORTFOLIO"
	AuditDeletePortfolio = "DELETE_PORTFOLIO"
	AuditUpsertPosition  = "UPSERT_POSITION"
	AuditUpdatePosition  = "UPDATE_POSITION"
	AuditRemovePosition  = "REMOVE_POSITION"
	AuditManualSnapshot  = "MANUAL_SNAPSHOT"
)

const (
	defaultAuditLimit = 50
	maxAuditLimit     = 500
)

// AuditEntry is one event to record.
type AuditEntry struct {
	UserID       string
	OrganismID   string
	Action       string
	ResourceType string
	ResourceID   string
	IPAddress    string
	RequestID    string
	Changes      map[string]interface{}
}

// AuditFilter narrows an audit listing. OrganismID is required.
type AuditFilter struct {
	OrganismID   string
	ResourceType string
	ResourceID   string
	Limit        int
}

type auditService struct {
	db *gorm.DB
}

// NewAuditService creates a new AuditServicer.
func NewAuditService(db *gorm.DB) AuditServicer {
	return &auditService{db: db}
}

// Log stores entry. Failures are logged and swallowed: the mutation being
// audited has already been committed.
func (s *auditService) Log(ctx context.Context, entry AuditEntry) {
	log := logger.Named("audit").With("action", entry.Action, "resource_type", entry.ResourceType, "resource_id", entry.ResourceID)

	row := &models.AuditLog{
		UserID:       entry.UserID,
		OrganismID:   entry.OrganismID,
		Action:       entry.Action,
		ResourceType: entry.ResourceType,
		ResourceID:   entry.ResourceID,
		IPAddress:    entry.IPAddress,
		RequestID:    entry.RequestID,
	}
	if len(entry.Changes) > 0 {
		data, err := json.Marshal(entry.Changes)
		if err != nil {
			log.Warnw("audit changes not serializable", "error", err)
			data = []byte("{}")
		}
		row.Changes = string(data)
	}

	// the request may already be finished; the row is still worth keeping
	if err := s.db.WithContext(context.WithoutCancel(ctx)).Create(row).Error; err != nil {
		log.Errorw("failed to create audit log entry", "error", err, "user_id", entry.UserID)
	}
}

// List returns the most recent entries of an organism, newest first.
func (s *auditService) List(ctx context.Context, filter AuditFilter) ([]models.AuditLog, error) {
	if filter.OrganismID == "" {
		return nil, apperrors.WithMessage(apperrors.ErrInvalidInput, "organism_id is required")
	}
	limit := filter.Limit
	switch {
	case limit <= 0:
		limit = defaultAuditLimit
	case limit > maxAuditLimit:
		limit = maxAuditLimit
	}

	q := s.db.WithContext(ctx).Where("organism_id = ?", filter.OrganismID)
	if filter.ResourceType != "" {
		q = q.Where("resource_type = ?", filter.ResourceType)
	}
	if filter.ResourceID != "" {
		q = q.Where("resource_id = ?", filter.ResourceID)
	}

	entries := []models.AuditLog{}
	if err := q.Order("created_at DESC").Order("id DESC").Limit(limit).Find(&entries).Error; err != nil {
		return nil, apperrors.Wrap(apperrors.ErrInternalServer, err)
	}
	return entries, nil
}
