package requests

import (
	"context"
	"errors"
	"fmt"

	"gorm.io/gorm"

	"github.com/xelth-com/eckdesk/internal/models"
)

// ListFilter narrows a request listing. Empty fields match everything.
type ListFilter struct {
	Status       string
	Priority     string
	Technician   string
	RequesterUID string
}

// Store persists requests, their attachments and their audit trail
type Store interface {
	Create(ctx context.Context, r *models.Request) error
	Get(ctx context.Context, id string) (*models.Request, error)
	List(ctx context.Context, f ListFilter) ([]models.Request, error)
	Update(ctx context.Context, id string, fields map[string]any) error
	Delete(ctx context.Context, id string) error
	AddAttachment(ctx context.Context, a *models.Attachment) error
	RemoveAttachment(ctx context.Context, requestID, attachmentID string) error
	RecordEvent(ctx context.Context, e *models.RequestEvent) error
	Events(ctx context.Context, requestID string) ([]models.RequestEvent, error)
}

// GormStore is the PostgreSQL Store. It is also the request feed's snapshot source.
type GormStore struct {
	db *gorm.DB
}

// NewGormStore creates a store on db
func NewGormStore(db *gorm.DB) *GormStore {
	return &GormStore{db: db}
}

func (s *GormStore) withAttachments(ctx context.Context) *gorm.DB {
	return s.db.WithContext(ctx).Preload("Attachments", func(db *gorm.DB) *gorm.DB {
		return db.Order("position ASC")
	})
}

// Snapshot returns every request, newest first
func (s *GormStore) Snapshot(ctx context.Context) ([]models.Request, error) {
	return s.List(ctx, ListFilter{})
}

// Create inserts a request together with its attachments
func (s *GormStore) Create(ctx context.Context, r *models.Request) error {
	if err := s.db.WithContext(ctx).Create(r).Error; err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}
	return nil
}

// Get loads one request
func (s *GormStore) Get(ctx context.Context, id string) (*models.Request, error) {
	var r models.Request
	err := s.withAttachments(ctx).First(&r, "id = ?", id).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load request %s: %w", id, err)
	}
	return &r, nil
}

// List returns matching requests ordered by date descending
func (s *GormStore) List(ctx context.Context, f ListFilter) ([]models.Request, error) {
	q := s.withAttachments(ctx)
	if f.Status != "" {
		q = q.Where("status = ?", f.Status)
	}
	if f.Priority != "" {
		q = q.Where("priority = ?", f.Priority)
	}
	if f.Technician != "" {
		q = q.Where("technician = ?", f.Technician)
	}
	if f.RequesterUID != "" {
		q = q.Where("requester_uid = ?", f.RequesterUID)
	}

	var out []models.Request
	if err := q.Order("date DESC NULLS LAST").Order("created_at DESC").Find(&out).Error; err != nil {
		return nil, fmt.Errorf("failed to list requests: %w", err)
	}
	return out, nil
}

// Update sets the given columns on one request
func (s *GormStore) Update(ctx context.Context, id string, fields map[string]any) error {
	res := s.db.WithContext(ctx).Model(&models.Request{}).Where("id = ?", id).Updates(fields)
	if res.Error != nil {
		return fmt.Errorf("failed to update request %s: %w", id, res.Error)
	}
	if res.RowsAffected == 0 {
		return ErrNotFound
	}
	return nil
}

// Delete removes a request; its attachment rows go with it through the foreign key cascade
func (s *GormStore) Delete(ctx context.Context, id string) error {
	res := s.db.WithContext(ctx).Delete(&models.Request{}, "id = ?", id)
	if res.Error != nil {
		return fmt.Errorf("failed to delete request %s: %w", id, res.Error)
	}
	if res.RowsAffected == 0 {
		return ErrNotFound
	}
	return nil
}

// AddAttachment inserts an attachment row
func (s *GormStore) AddAttachment(ctx context.Context, a *models.Attachment) error {
	if err := s.db.WithContext(ctx).Create(a).Error; err != nil {
		return fmt.Errorf("failed to add attachment: %w", err)
	}
	return nil
}

// RemoveAttachment deletes one attachment row of a request
func (s *GormStore) RemoveAttachment(ctx context.Context, requestID, attachmentID string) error {
	res := s.db.WithContext(ctx).
		Where("id = ? AND request_id = ?", attachmentID, requestID).
		Delete(&models.Attachment{})
	if res.Error != nil {
		return fmt.Errorf("failed to remove attachment %s: %w", attachmentID, res.Error)
	}
	if res.RowsAffected == 0 {
		return ErrNotFound
	}
	return nil
}

// RecordEvent appends to a request's audit trail
func (s *GormStore) RecordEvent(ctx context.Context, e *models.RequestEvent) error {
	return s.db.WithContext(ctx).Create(e).Error
}

// Events returns a request's audit trail, oldest first
func (s *GormStore) Events(ctx context.Context, requestID string) ([]models.RequestEvent, error) {
	var out []models.RequestEvent
	err := s.db.WithContext(ctx).
		Where("request_id = ?", requestID).
		Order("created_at ASC").Order("id ASC").
		Find(&out).Error
	if err != nil {
		return nil, fmt.Errorf("failed to load events for %s: %w", requestID, err)
	}
	return out, nil
}
