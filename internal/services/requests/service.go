// Package requests implements the support request lifecycle: submission with
// attachments, listing, administrator edits and deletion, with the access rules
// applied to an explicitly passed Actor.
package requests

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"strings"
	"sync"
	"time"
	"unicode/utf8"

	"github.com/google/uuid"
	"gorm.io/datatypes"

	"github.com/xelth-com/eckdesk/internal/models"
	"github.com/xelth-com/eckdesk/internal/notify"
	"github.com/xelth-com/eckdesk/internal/storage"
)

// maxTitleRunes caps the title derived from a description's first line
const maxTitleRunes = 30

// Actor is the caller of an operation
type Actor struct {
	UID   string
	Email string
	Name  string
	Admin bool
}

// CreateInput is a new request as submitted
type CreateInput struct {
	Requester   string `json:"requester"`
	Name        string `json:"name"`
	Description string `json:"description"`
	Technician  string `json:"technician"`
	Status      string `json:"status"`
	Priority    string `json:"priority"`
	Site        string `json:"site"`
}

// UpdateInput lists the fields an administrator may change; nil leaves a field as is
type UpdateInput struct {
	Technician *string `json:"technician"`
	Status     *string `json:"status"`
	Priority   *string `json:"priority"`
	Site       *string `json:"site"`
}

// Service runs request operations
type Service struct {
	store    Store
	files    storage.FileStore
	notifier notify.Notifier
	now      func() time.Time

	mu        sync.RWMutex
	listeners []func(models.RequestEvent)
}

// NewService creates a request service
func NewService(store Store, files storage.FileStore, notifier notify.Notifier) *Service {
	if files == nil {
		files = storage.Disabled{}
	}
	if notifier == nil {
		notifier = notify.Nop{}
	}
	return &Service{
		store:    store,
		files:    files,
		notifier: notifier,
		now:      time.Now,
	}
}

// OnEvent registers fn to be called after every recorded mutation
func (s *Service) OnEvent(fn func(models.RequestEvent)) {
	s.mu.Lock()
	s.listeners = append(s.listeners, fn)
	s.mu.Unlock()
}

// DeriveTitle returns the first line of a description, cut to 30 characters
func DeriveTitle(description string) string {
	line, _, _ := strings.Cut(strings.TrimSpace(description), "\n")
	line = strings.TrimSpace(line)
	if utf8.RuneCountInString(line) <= maxTitleRunes {
		return line
	}
	return string([]rune(line)[:maxTitleRunes])
}

// Create validates and stores a new request. Files are uploaded before the row is
// written and removed again if the write fails.
func (s *Service) Create(ctx context.Context, actor Actor, in CreateInput, uploads []storage.File) (*models.Request, error) {
	in.Requester = strings.TrimSpace(in.Requester)
	in.Description = strings.TrimSpace(in.Description)
	if in.Requester == "" {
		return nil, invalid("requester", "is required")
	}
	if in.Description == "" {
		return nil, invalid("description", "is required")
	}
	if actor.UID == "" {
		return nil, ErrForbidden
	}

	status := models.StatusOpen
	technician := ""
	if actor.Admin {
		if in.Status != "" {
			status = in.Status
		}
		technician = strings.TrimSpace(in.Technician)
	}
	priority := in.Priority
	if priority == "" {
		priority = models.PriorityLow
	}
	if err := validateFields(&status, &priority, &in.Site, &technician); err != nil {
		return nil, err
	}
	for _, f := range uploads {
		if err := storage.Validate(f); err != nil {
			return nil, invalid("attachments", "%v", err)
		}
	}

	now := s.now().UTC()
	r := &models.Request{
		ID:             uuid.NewString(),
		Title:          DeriveTitle(in.Description),
		Name:           strings.TrimSpace(in.Name),
		Description:    in.Description,
		Requester:      in.Requester,
		RequesterUID:   actor.UID,
		RequesterEmail: actor.Email,
		Technician:     technician,
		Status:         status,
		Priority:       priority,
		Site:           in.Site,
		Date:           &now,
	}

	attachments, err := s.upload(ctx, r.ID, 0, uploads)
	if err != nil {
		return nil, err
	}
	r.Attachments = attachments

	if err := s.store.Create(ctx, r); err != nil {
		s.discard(attachments)
		return nil, err
	}
	log.Printf("📝 Request %s created by %s (%d attachments)", r.ID, actor.UID, len(attachments))

	s.record(ctx, actor, r.ID, models.ActionCreated, nil)
	if err := s.notifier.RequestCreated(ctx, r); err != nil {
		log.Printf("⚠️ Notification for request %s failed: %v", r.ID, err)
	}
	return r, nil
}

// Get returns a request the actor owns, or any request for an administrator
func (s *Service) Get(ctx context.Context, actor Actor, id string) (*models.Request, error) {
	r, err := s.load(ctx, id)
	if err != nil {
		return nil, err
	}
	if !actor.Admin && !r.OwnedBy(actor.UID) {
		return nil, ErrForbidden
	}
	return r, nil
}

// List returns every request for an administrator and the actor's own requests otherwise
func (s *Service) List(ctx context.Context, actor Actor, f ListFilter) ([]models.Request, error) {
	if !actor.Admin {
		if actor.UID == "" {
			return nil, ErrForbidden
		}
		f.RequesterUID = actor.UID
	}
	return s.store.List(ctx, f)
}

// Update changes technician, status, priority or site. Administrators only.
func (s *Service) Update(ctx context.Context, actor Actor, id string, in UpdateInput) (*models.Request, error) {
	if !actor.Admin {
		return nil, ErrForbidden
	}
	r, err := s.load(ctx, id)
	if err != nil {
		return nil, err
	}

	next := struct{ technician, status, priority, site string }{r.Technician, r.Status, r.Priority, r.Site}
	if in.Technician != nil {
		next.technician = strings.TrimSpace(*in.Technician)
	}
	if in.Status != nil {
		next.status = *in.Status
	}
	if in.Priority != nil {
		next.priority = *in.Priority
	}
	if in.Site != nil {
		next.site = *in.Site
	}
	if err := validateFields(&next.status, &next.priority, &next.site, &next.technician); err != nil {
		return nil, err
	}

	changes := map[string]models.FieldChange{}
	fields := map[string]any{}
	diff := func(column, key, from, to string) {
		if from != to {
			changes[key] = models.FieldChange{From: from, To: to}
			fields[column] = to
		}
	}
	diff("technician", "technician", r.Technician, next.technician)
	diff("status", "status", r.Status, next.status)
	diff("priority", "priority", r.Priority, next.priority)
	diff("site", "site", r.Site, next.site)
	if len(fields) == 0 {
		return r, nil
	}

	fields["updated_by"] = actorLabel(actor)
	if err := s.store.Update(ctx, id, fields); err != nil {
		return nil, err
	}
	s.record(ctx, actor, id, models.ActionUpdated, changes)

	return s.load(ctx, id)
}

// AddAttachment uploads a file onto an existing request. Administrators only.
func (s *Service) AddAttachment(ctx context.Context, actor Actor, id string, f storage.File) (*models.Attachment, error) {
	if !actor.Admin {
		return nil, ErrForbidden
	}
	if err := storage.Validate(f); err != nil {
		return nil, invalid("file", "%v", err)
	}
	r, err := s.load(ctx, id)
	if err != nil {
		return nil, err
	}

	next := 0
	for _, a := range r.Attachments {
		if a.Position >= next {
			next = a.Position + 1
		}
	}
	uploaded, err := s.upload(ctx, id, next, []storage.File{f})
	if err != nil {
		return nil, err
	}
	a := &uploaded[0]

	if err := s.store.AddAttachment(ctx, a); err != nil {
		s.discard(uploaded)
		return nil, err
	}
	s.record(ctx, actor, id, models.ActionAttachmentAdded, map[string]models.FieldChange{
		"attachment": {To: a.FileName},
	})
	return a, nil
}

// RemoveAttachment deletes an attachment from the file host and then from the request.
// A failed remote delete keeps the attachment.
func (s *Service) RemoveAttachment(ctx context.Context, actor Actor, id, attachmentID string) error {
	if !actor.Admin {
		return ErrForbidden
	}
	r, err := s.load(ctx, id)
	if err != nil {
		return err
	}

	var target *models.Attachment
	for i := range r.Attachments {
		if r.Attachments[i].ID == attachmentID {
			target = &r.Attachments[i]
			break
		}
	}
	if target == nil {
		return ErrNotFound
	}

	if err := s.files.Delete(ctx, target.CloudinaryPublicID, target.FileType); err != nil {
		return fmt.Errorf("failed to delete %s from the file host: %w", target.FileName, err)
	}
	if err := s.store.RemoveAttachment(ctx, id, attachmentID); err != nil {
		return err
	}
	s.record(ctx, actor, id, models.ActionAttachmentRemoved, map[string]models.FieldChange{
		"attachment": {From: target.FileName},
	})
	return nil
}

// Delete removes a request owned by the actor, or any request for an administrator.
// Every attachment is deleted from the file host first; any failure aborts the delete.
// Attachments already destroyed before the failure are dropped from the request, so
// the request only ever points at files that still exist.
func (s *Service) Delete(ctx context.Context, actor Actor, id string) error {
	r, err := s.load(ctx, id)
	if err != nil {
		return err
	}
	if !actor.Admin && !r.OwnedBy(actor.UID) {
		return ErrForbidden
	}

	for i, a := range r.Attachments {
		if err := s.files.Delete(ctx, a.CloudinaryPublicID, a.FileType); err != nil {
			s.forget(ctx, id, r.Attachments[:i])
			return fmt.Errorf("failed to delete %s from the file host: %w", a.FileName, err)
		}
	}
	if err := s.store.Delete(ctx, id); err != nil {
		return err
	}
	log.Printf("🗑️ Request %s deleted by %s", id, actor.UID)

	s.record(ctx, actor, id, models.ActionDeleted, nil)
	return nil
}

// forget removes attachment rows whose files are already gone from the host
func (s *Service) forget(ctx context.Context, requestID string, gone []models.Attachment) {
	for _, a := range gone {
		if err := s.store.RemoveAttachment(ctx, requestID, a.ID); err != nil {
			log.Printf("🔴 Attachment %s of request %s was deleted remotely but kept: %v", a.ID, requestID, err)
		}
	}
}

// Events returns the audit trail of a request visible to the actor
func (s *Service) Events(ctx context.Context, actor Actor, id string) ([]models.RequestEvent, error) {
	if _, err := s.Get(ctx, actor, id); err != nil {
		return nil, err
	}
	return s.store.Events(ctx, id)
}

func (s *Service) load(ctx context.Context, id string) (*models.Request, error) {
	if _, err := uuid.Parse(id); err != nil {
		return nil, ErrNotFound
	}
	return s.store.Get(ctx, id)
}

func (s *Service) upload(ctx context.Context, requestID string, position int, files []storage.File) ([]models.Attachment, error) {
	out := make([]models.Attachment, 0, len(files))
	for i, f := range files {
		obj, err := s.files.Upload(ctx, f)
		if err != nil {
			s.discard(out)
			return nil, fmt.Errorf("failed to upload %s: %w", f.Name, err)
		}
		id, err := uuid.NewV7()
		if err != nil {
			id = uuid.New()
		}
		out = append(out, models.Attachment{
			ID:                 id.String(),
			RequestID:          requestID,
			Position:           position + i,
			FileName:           f.Name,
			FileType:           f.Type,
			FileSize:           f.Size,
			CloudinaryURL:      obj.URL,
			CloudinaryPublicID: obj.PublicID,
			ThumbnailURL:       obj.ThumbnailURL,
			UploadedAt:         s.now().UTC(),
		})
	}
	return out, nil
}

// discard removes uploaded files that never made it into the database
func (s *Service) discard(attachments []models.Attachment) {
	for _, a := range attachments {
		ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		if err := s.files.Delete(ctx, a.CloudinaryPublicID, a.FileType); err != nil {
			log.Printf("🔴 Orphaned upload %s could not be removed: %v", a.CloudinaryPublicID, err)
		}
		cancel()
	}
}

func (s *Service) record(ctx context.Context, actor Actor, requestID, action string, changes map[string]models.FieldChange) {
	e := models.RequestEvent{
		RequestID: requestID,
		ActorUID:  actor.UID,
		Action:    action,
		CreatedAt: s.now().UTC(),
	}
	if len(changes) > 0 {
		raw, err := json.Marshal(changes)
		if err == nil {
			e.Changes = datatypes.JSON(raw)
		}
	}
	if err := s.store.RecordEvent(ctx, &e); err != nil {
		log.Printf("⚠️ Failed to record %s event for %s: %v", action, requestID, err)
	}

	s.mu.RLock()
	listeners := s.listeners
	s.mu.RUnlock()
	for _, fn := range listeners {
		fn(e)
	}
}

func validateFields(status, priority, site, technician *string) error {
	if !models.IsStatus(*status) {
		return invalid("status", "unknown status %q", *status)
	}
	if !models.IsPriority(*priority) {
		return invalid("priority", "unknown priority %q", *priority)
	}
	if *site != "" && !models.IsSite(*site) {
		return invalid("site", "unknown site %q", *site)
	}
	if *technician != "" && !isTechnician(*technician) {
		return invalid("technician", "unknown technician %q", *technician)
	}
	return nil
}

func isTechnician(name string) bool {
	for _, t := range models.Technicians {
		if t == name {
			return true
		}
	}
	return false
}

func actorLabel(a Actor) string {
	if a.Email != "" {
		return a.Email
	}
	if a.Name != "" {
		return a.Name
	}
	return a.UID
}

// IsValidation reports whether err is a ValidationError
func IsValidation(err error) bool {
	var v *ValidationError
	return errors.As(err, &v)
}
